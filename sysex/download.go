package sysex

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// Transfer limits. Files move in fixed-size raw chunks, each 7-bit encoded
// for its own data frame.
const (
	NumSessions    = 16
	ChunkSize      = 256
	MaxFileSize    = 16 * 1024
	SessionTimeout = 30 * time.Second
)

// SessionState tracks one slot's transfer lifecycle.
type SessionState int

const (
	StateIdle SessionState = iota
	StateActive
	StateComplete
	StateError
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateComplete:
		return "complete"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// FileResolver maps a slot number to the sequence file backing it.
type FileResolver func(slot int) (string, error)

type session struct {
	state     SessionState
	program   byte
	data      []byte
	next      int // next chunk expected, enforced strictly
	total     int
	lastTouch time.Time
}

// DownloadManager serves chunked sequence-file transfers, one session per
// slot. It is not safe for concurrent use; the host drives it from the
// same goroutine that dispatches frames.
type DownloadManager struct {
	sessions [NumSessions]session
	resolve  FileResolver
	now      func() time.Time
	logger   *log.Logger
}

func NewDownloadManager(resolve FileResolver) *DownloadManager {
	return &DownloadManager{
		resolve: resolve,
		now:     time.Now,
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "download",
		}),
	}
}

// SetNow overrides the clock source. Tests use it to force timeouts.
func (m *DownloadManager) SetNow(now func() time.Time) { m.now = now }

func (m *DownloadManager) session(slot int) (*session, error) {
	if slot < 0 || slot >= NumSessions {
		return nil, fmt.Errorf("%w: download slot %d", ErrRange, slot)
	}
	return &m.sessions[slot], nil
}

// State reports a slot's lifecycle state; out-of-range slots read as idle.
func (m *DownloadManager) State(slot int) SessionState {
	s, err := m.session(slot)
	if err != nil {
		return StateIdle
	}
	return s.state
}

// Start opens a transfer session for a slot and returns the chunk count.
// A slot with a transfer already in flight reports busy; starting over a
// finished or failed session is allowed and resets it.
func (m *DownloadManager) Start(slot int, program byte) (int, error) {
	s, err := m.session(slot)
	if err != nil {
		return 0, err
	}
	if s.state == StateActive {
		return 0, fmt.Errorf("%w: slot %d", ErrBusy, slot)
	}
	if m.resolve == nil {
		return 0, fmt.Errorf("%w: no file resolver installed", ErrNotFound)
	}
	path, err := m.resolve(slot)
	if err != nil {
		return 0, fmt.Errorf("%w: slot %d: %v", ErrNotFound, slot, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: slot %d: %v", ErrNotFound, slot, err)
	}
	if len(data) > MaxFileSize {
		return 0, fmt.Errorf("%w: %s is %d bytes (max %d)", ErrTooLarge, path, len(data), MaxFileSize)
	}
	total := (len(data) + ChunkSize - 1) / ChunkSize
	if total == 0 {
		total = 1 // an empty file still moves as one empty chunk
	}
	*s = session{
		state:     StateActive,
		program:   program,
		data:      data,
		total:     total,
		lastTouch: m.now(),
	}
	m.logger.Info("session opened", "slot", slot, "file", path, "bytes", len(data), "chunks", total)
	return total, nil
}

// Chunk serves one 7-bit-encoded chunk. Chunks must be requested strictly
// in order; a skipped or repeated number is a protocol fault that leaves
// the session active so the requester can retry with the right number.
// Serving the final chunk completes the session.
func (m *DownloadManager) Chunk(slot, chunk int) ([]byte, int, error) {
	s, err := m.session(slot)
	if err != nil {
		return nil, 0, err
	}
	if s.state != StateActive {
		return nil, 0, fmt.Errorf("%w: slot %d has no active session", ErrNotFound, slot)
	}
	if chunk != s.next {
		return nil, 0, fmt.Errorf("%w: slot %d expects chunk %d, got %d", ErrProtocol, slot, s.next, chunk)
	}
	s.lastTouch = m.now()

	lo := chunk * ChunkSize
	hi := lo + ChunkSize
	if hi > len(s.data) {
		hi = len(s.data)
	}
	var raw []byte
	if lo < hi {
		raw = s.data[lo:hi]
	}
	s.next++
	if s.next >= s.total {
		s.state = StateComplete
		m.logger.Info("session complete", "slot", slot, "chunks", s.total)
	}
	return Encode7(raw), s.total, nil
}

// Program reports the program byte the session was opened with.
func (m *DownloadManager) Program(slot int) byte {
	s, err := m.session(slot)
	if err != nil {
		return 0
	}
	return s.program
}

// Complete finalizes a session whose chunks have all been served,
// releasing the file buffer. The slot stays in the complete state until
// restarted or aborted.
func (m *DownloadManager) Complete(slot int) error {
	s, err := m.session(slot)
	if err != nil {
		return err
	}
	if s.state != StateComplete {
		return fmt.Errorf("%w: slot %d is %s, not complete", ErrProtocol, slot, s.state)
	}
	s.data = nil
	return nil
}

// Abort drops a session back to idle. Aborting an idle slot is a no-op.
func (m *DownloadManager) Abort(slot int) {
	s, err := m.session(slot)
	if err != nil {
		return
	}
	if s.state != StateIdle {
		m.logger.Info("session aborted", "slot", slot, "state", s.state)
	}
	*s = session{}
}

// CheckTimeouts fails every active session whose last activity is older
// than the session timeout, returning how many were failed. The host
// calls it from its periodic tick.
func (m *DownloadManager) CheckTimeouts() int {
	expired := 0
	cutoff := m.now().Add(-SessionTimeout)
	for slot := range m.sessions {
		s := &m.sessions[slot]
		if s.state != StateActive || !s.lastTouch.Before(cutoff) {
			continue
		}
		m.logger.Warn("session timed out", "slot", slot, "served", s.next, "total", s.total)
		s.state = StateError
		s.data = nil
		expired++
	}
	return expired
}
