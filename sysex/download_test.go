package sysex

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTransferFile(t *testing.T, size int) string {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i * 131)
	}
	path := filepath.Join(t.TempDir(), "seq.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func fixedResolver(path string) FileResolver {
	return func(slot int) (string, error) {
		return path, nil
	}
}

func TestDownloadFullTransfer(t *testing.T) {
	path := writeTransferFile(t, 10240)
	m := NewDownloadManager(fixedResolver(path))

	total, err := m.Start(2, 7)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if total != 40 {
		t.Fatalf("total = %d chunks, want 40 for 10240 bytes", total)
	}
	if m.State(2) != StateActive {
		t.Fatalf("state = %v, want active", m.State(2))
	}
	if m.Program(2) != 7 {
		t.Errorf("program = %d, want 7", m.Program(2))
	}

	var assembled []byte
	for chunk := 0; chunk < total; chunk++ {
		enc, gotTotal, err := m.Chunk(2, chunk)
		if err != nil {
			t.Fatalf("Chunk(%d): %v", chunk, err)
		}
		if gotTotal != total {
			t.Fatalf("Chunk(%d) total = %d", chunk, gotTotal)
		}
		raw, err := Decode7(enc)
		if err != nil {
			t.Fatalf("Decode7(%d): %v", chunk, err)
		}
		assembled = append(assembled, raw...)
	}

	want, _ := os.ReadFile(path)
	if !bytes.Equal(assembled, want) {
		t.Fatalf("assembled %d bytes do not match source %d bytes", len(assembled), len(want))
	}
	if m.State(2) != StateComplete {
		t.Errorf("state = %v after last chunk, want complete", m.State(2))
	}
}

func TestDownloadOutOfOrderKeepsSessionAlive(t *testing.T) {
	path := writeTransferFile(t, 1000)
	m := NewDownloadManager(fixedResolver(path))
	if _, err := m.Start(0, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, _, err := m.Chunk(0, 1); !errors.Is(err, ErrProtocol) {
		t.Fatalf("skipping chunk 0: err = %v, want protocol error", err)
	}
	if m.State(0) != StateActive {
		t.Fatalf("state = %v after bad request, want active", m.State(0))
	}
	// The expected chunk still serves.
	if _, _, err := m.Chunk(0, 0); err != nil {
		t.Fatalf("Chunk(0) after retry: %v", err)
	}
	// Repeats are also out of order.
	if _, _, err := m.Chunk(0, 0); !errors.Is(err, ErrProtocol) {
		t.Errorf("repeated chunk: err = %v, want protocol error", err)
	}
}

func TestDownloadBusyAndRestart(t *testing.T) {
	path := writeTransferFile(t, 100)
	m := NewDownloadManager(fixedResolver(path))
	if _, err := m.Start(1, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := m.Start(1, 0); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Start err = %v, want busy", err)
	}

	// A finished session may be restarted.
	if _, _, err := m.Chunk(1, 0); err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if m.State(1) != StateComplete {
		t.Fatalf("state = %v, want complete", m.State(1))
	}
	if _, err := m.Start(1, 0); err != nil {
		t.Errorf("restart after completion failed: %v", err)
	}
}

func TestDownloadCompleteReleasesBuffer(t *testing.T) {
	path := writeTransferFile(t, 100)
	m := NewDownloadManager(fixedResolver(path))
	if _, err := m.Start(3, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Complete(3); !errors.Is(err, ErrProtocol) {
		t.Fatalf("Complete on active session: err = %v, want protocol error", err)
	}
	if _, _, err := m.Chunk(3, 0); err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if err := m.Complete(3); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if m.State(3) != StateComplete {
		t.Errorf("state = %v after finalize, want complete", m.State(3))
	}
	// A finalized slot is free for a fresh transfer.
	if _, err := m.Start(3, 0); err != nil {
		t.Errorf("restart after finalize failed: %v", err)
	}
}

func TestDownloadRejectsOversizeFile(t *testing.T) {
	path := writeTransferFile(t, MaxFileSize+1)
	m := NewDownloadManager(fixedResolver(path))
	if _, err := m.Start(0, 0); !errors.Is(err, ErrTooLarge) {
		t.Errorf("err = %v, want too-large", err)
	}
	if m.State(0) != StateIdle {
		t.Errorf("state = %v after rejected start, want idle", m.State(0))
	}
}

func TestDownloadMissingFile(t *testing.T) {
	m := NewDownloadManager(func(slot int) (string, error) {
		return filepath.Join(t.TempDir(), "gone.bin"), nil
	})
	if _, err := m.Start(0, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want not-found", err)
	}

	empty := NewDownloadManager(nil)
	if _, err := empty.Start(0, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("no resolver: err = %v, want not-found", err)
	}
}

func TestDownloadEmptyFileMovesAsOneChunk(t *testing.T) {
	path := writeTransferFile(t, 0)
	m := NewDownloadManager(fixedResolver(path))
	total, err := m.Start(0, 0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if total != 1 {
		t.Fatalf("total = %d, want 1", total)
	}
	enc, _, err := m.Chunk(0, 0)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(enc) != 0 {
		t.Errorf("encoded = % X, want empty", enc)
	}
	if m.State(0) != StateComplete {
		t.Errorf("state = %v, want complete", m.State(0))
	}
}

func TestDownloadTimeout(t *testing.T) {
	path := writeTransferFile(t, 1000)
	m := NewDownloadManager(fixedResolver(path))

	now := time.Now()
	m.SetNow(func() time.Time { return now })
	if _, err := m.Start(4, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Just inside the window: survives.
	now = now.Add(SessionTimeout - time.Second)
	if n := m.CheckTimeouts(); n != 0 {
		t.Fatalf("CheckTimeouts = %d inside the window", n)
	}
	if m.State(4) != StateActive {
		t.Fatalf("state = %v, want active", m.State(4))
	}

	// Serving a chunk refreshes activity.
	if _, _, err := m.Chunk(4, 0); err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	now = now.Add(SessionTimeout + time.Second)
	if n := m.CheckTimeouts(); n != 1 {
		t.Fatalf("CheckTimeouts = %d past the window, want 1", n)
	}
	if m.State(4) != StateError {
		t.Errorf("state = %v after timeout, want error", m.State(4))
	}

	// Abort clears the error state back to idle.
	m.Abort(4)
	if m.State(4) != StateIdle {
		t.Errorf("state = %v after abort, want idle", m.State(4))
	}
	m.Abort(4) // idempotent
}

func TestDownloadSlotRange(t *testing.T) {
	m := NewDownloadManager(nil)
	if _, err := m.Start(NumSessions, 0); !errors.Is(err, ErrRange) {
		t.Error("slot 16 accepted")
	}
	if _, _, err := m.Chunk(-1, 0); !errors.Is(err, ErrRange) {
		t.Error("slot -1 accepted")
	}
	if m.State(99) != StateIdle {
		t.Error("out-of-range state not idle")
	}
}
