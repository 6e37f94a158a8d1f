package player

import "testing"

type padEvent struct {
	pad  int
	data any
	key  uint8
	on   bool
}

func newPadFixture(t *testing.T) (*PadManager, *[]padEvent, string) {
	t.Helper()
	path := writeSMF(t, "pad.mid", 120, []testNote{{key: 60, atBeat: 0, lenBeats: 1}})
	m := NewPadManager()
	var got []padEvent
	m.SetNoteHandler(func(pad int, userdata any, note, velocity uint8, on bool) {
		got = append(got, padEvent{pad: pad, data: userdata, key: note, on: on})
	})
	return m, &got, path
}

func TestPadLoadAndTrigger(t *testing.T) {
	m, got, path := newPadFixture(t)
	if err := m.Load(3, path, "strings"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !m.Occupied(3) || m.Occupied(2) {
		t.Fatal("occupancy wrong after load")
	}

	if err := m.Trigger(3); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	m.UpdateAll(100, -1)

	if len(*got) == 0 {
		t.Fatal("no events after trigger")
	}
	ev := (*got)[0]
	if ev.pad != 3 || ev.data != "strings" || ev.key != 60 || !ev.on {
		t.Errorf("event = %+v, want pad 3 userdata strings note-on 60", ev)
	}
}

func TestPadRangeAndEmptyErrors(t *testing.T) {
	m, _, path := newPadFixture(t)
	if err := m.Load(NumPads, path, nil); err == nil {
		t.Error("Load out of range succeeded")
	}
	if err := m.Trigger(0); err == nil {
		t.Error("Trigger on empty pad succeeded")
	}
	if _, err := m.TriggerQuantized(31, 0, 4); err == nil {
		t.Error("TriggerQuantized on empty pad succeeded")
	}
	// Stops are silent no-ops.
	m.Stop(0)
	m.Stop(-1)
	m.StopAll()
}

func TestPadLoadFailureKeepsBinding(t *testing.T) {
	m, got, path := newPadFixture(t)
	if err := m.Load(0, path, "keep"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := m.Load(0, "missing.mid", "lost"); err == nil {
		t.Fatal("Load of missing file succeeded")
	}

	if err := m.Trigger(0); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	m.UpdateAll(100, -1)
	if len(*got) == 0 || (*got)[0].data != "keep" {
		t.Errorf("events = %+v, want userdata keep", *got)
	}
}

func TestPadUnload(t *testing.T) {
	m, _, path := newPadFixture(t)
	if err := m.Load(1, path, nil); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.Unload(1)
	if m.Occupied(1) {
		t.Error("pad still occupied after unload")
	}
	m.Unload(1) // idempotent
}

func TestPadTempoFansOut(t *testing.T) {
	m, _, path := newPadFixture(t)
	if err := m.Load(0, path, nil); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.SetTempo(90)
	if got := m.Player(0).Tempo(); got != 90 {
		t.Errorf("pad tempo = %v, want 90", got)
	}

	// Future loads pick the tempo up too.
	if err := m.Load(5, path, nil); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := m.Player(5).Tempo(); got != 90 {
		t.Errorf("new pad tempo = %v, want 90", got)
	}
}

// One sweep over several occupied pads must keep each pad's events in
// chronological order and interleave pads in ascending index order, so
// identical inputs always produce the same stream.
func TestUpdateAllSweepIsDeterministic(t *testing.T) {
	m, got, _ := newPadFixture(t)
	pads := []struct {
		pad int
		key uint8
	}{{2, 60}, {5, 70}, {9, 80}}
	for _, p := range pads {
		path := writeSMF(t, "sweep.mid", 120, []testNote{
			{key: p.key, atBeat: 0, lenBeats: 0.5},
			{key: p.key + 1, atBeat: 1, lenBeats: 0.5},
		})
		if err := m.Load(p.pad, path, nil); err != nil {
			t.Fatalf("Load pad %d: %v", p.pad, err)
		}
		if err := m.Trigger(p.pad); err != nil {
			t.Fatalf("Trigger pad %d: %v", p.pad, err)
		}
	}

	// Three sweeps: onsets at beat 0, then their releases, then beat 1.
	m.UpdateAll(100, -1)
	m.UpdateAll(200, -1)
	m.UpdateAll(300, -1)

	want := []padEvent{
		{pad: 2, key: 60, on: true}, {pad: 5, key: 70, on: true}, {pad: 9, key: 80, on: true},
		{pad: 2, key: 60, on: false}, {pad: 5, key: 70, on: false}, {pad: 9, key: 80, on: false},
		{pad: 2, key: 61, on: true}, {pad: 5, key: 71, on: true}, {pad: 9, key: 81, on: true},
	}
	if len(*got) != len(want) {
		t.Fatalf("recorded %d events, want %d: %+v", len(*got), len(want), *got)
	}
	for i, w := range want {
		g := (*got)[i]
		if g.pad != w.pad || g.key != w.key || g.on != w.on {
			t.Errorf("event %d = %+v, want %+v", i, g, w)
		}
	}
}

func TestPadQuantizedTrigger(t *testing.T) {
	m, got, path := newPadFixture(t)
	if err := m.Load(7, path, nil); err != nil {
		t.Fatalf("Load: %v", err)
	}
	boundary, err := m.TriggerQuantized(7, 5, 4)
	if err != nil {
		t.Fatalf("TriggerQuantized: %v", err)
	}
	if boundary != 8 {
		t.Fatalf("boundary = %v, want 8", boundary)
	}
	m.UpdateAll(100, 7.9)
	if len(*got) != 0 {
		t.Fatalf("events before boundary: %+v", *got)
	}
	m.UpdateAll(100, 8.0)
	if len(*got) == 0 {
		t.Fatal("no events after boundary")
	}
	if !m.IsPlaying(7) {
		t.Error("pad not playing after boundary")
	}
}
