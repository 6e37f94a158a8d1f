package player

import "testing"

func perfSpecs(t *testing.T) []SequenceSpec {
	t.Helper()
	a := writeSMF(t, "a.mid", 120, []testNote{{key: 60, atBeat: 0, lenBeats: 1}})
	b := writeSMF(t, "b.mid", 120, []testNote{{key: 72, atBeat: 0, lenBeats: 1}})
	return []SequenceSpec{
		{Name: "drums", Loop: true, Phrases: []Phrase{
			{File: a, LoopCount: 1, Name: "intro"},
			{File: b, LoopCount: 0, Name: "groove"},
		}},
		{Name: "bass", Phrases: []Phrase{
			{File: b, LoopCount: 0, Name: "line"},
		}},
	}
}

func TestLoadSequencesCountsPlayable(t *testing.T) {
	m := NewPerformanceManager()
	specs := perfSpecs(t)
	specs = append(specs, SequenceSpec{Name: "broken", Phrases: []Phrase{
		{File: "missing.mid", LoopCount: 1, Name: "x"},
	}})

	if got := m.LoadSequences(specs); got != 2 {
		t.Errorf("LoadSequences = %d, want 2", got)
	}
	if m.Sequence(0) == nil || m.Sequence(1) == nil {
		t.Fatal("sequence slots not populated")
	}
	// The broken slot keeps its position so slot indexing stays aligned
	// with the project.
	if s := m.Sequence(2); s == nil || s.Len() != 0 {
		t.Error("broken sequence slot missing or unexpectedly playable")
	}
}

func TestQuantizedPlayStartsOnBarBoundary(t *testing.T) {
	m := NewPerformanceManager()
	m.LoadSequences(perfSpecs(t))
	m.SetStartMode(StartQuantized)

	var notes int
	m.SetNoteHandler(func(note, vel uint8, on bool) {
		if on {
			notes++
		}
	})

	// Pulse 250 is inside bar 2 (beat 10.42); the next bar starts at
	// beat 12.
	if err := m.Play(0, 250); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !m.Sequence(0).PendingStart() {
		t.Fatal("sequence not armed")
	}

	m.UpdateAll(100, 11.9)
	if notes != 0 {
		t.Fatalf("%d notes before the bar boundary", notes)
	}
	m.UpdateAll(100, 12.0)
	if notes == 0 {
		t.Fatal("no notes after the bar boundary")
	}
}

func TestImmediateModeResumes(t *testing.T) {
	m := NewPerformanceManager()
	m.LoadSequences(perfSpecs(t))
	m.SetStartMode(StartImmediate)

	if err := m.Play(1, -1); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !m.Sequence(1).IsPlaying() {
		t.Fatal("sequence not playing in immediate mode")
	}
	m.UpdateAll(200, -1)
	pos := m.Sequence(1).Position()
	if pos <= 0 {
		t.Fatalf("position = %v, want progress", pos)
	}

	// Pause keeps position, stop rewinds.
	m.PauseAll()
	if got := m.Sequence(1).Position(); got != pos {
		t.Errorf("position = %v after pause, want %v", got, pos)
	}
	m.Stop(1)
	if got := m.Sequence(1).Position(); got != 0 {
		t.Errorf("position = %v after stop, want 0", got)
	}
}

func TestLoadPadBuildsSingleLoopingPhrase(t *testing.T) {
	m := NewPerformanceManager()
	file := writeSMF(t, "clap.mid", 120, []testNote{{key: 39, atBeat: 0, lenBeats: 1}})

	if err := m.LoadPad(4, file); err != nil {
		t.Fatalf("LoadPad: %v", err)
	}
	s := m.Sequence(4)
	if s == nil {
		t.Fatal("slot 4 empty after LoadPad")
	}
	if s.Name() != "clap" || s.Len() != 1 {
		t.Errorf("sequence = %s with %d phrases, want clap with 1", s.Name(), s.Len())
	}

	m.SetStartMode(StartImmediate)
	if err := m.Play(4, -1); err != nil {
		t.Fatalf("Play: %v", err)
	}
	// Runs well past one pass of the 0.5 s phrase without stopping.
	for i := 0; i < 20; i++ {
		m.UpdateAll(100, -1)
	}
	if !s.IsPlaying() {
		t.Error("pad sequence stopped; should loop until told otherwise")
	}

	m.UnloadPad(4)
	if m.Sequence(4) != nil {
		t.Error("slot still occupied after UnloadPad")
	}
}

func TestLoadPadRejectsBadSlot(t *testing.T) {
	m := NewPerformanceManager()
	file := writeSMF(t, "x.mid", 120, []testNote{{key: 60, atBeat: 0, lenBeats: 1}})
	if err := m.LoadPad(MaxSequences, file); err == nil {
		t.Error("LoadPad out of range succeeded")
	}
	if err := m.LoadPad(-1, file); err == nil {
		t.Error("LoadPad(-1) succeeded")
	}
}

func TestSetTempoReachesAllSequences(t *testing.T) {
	m := NewPerformanceManager()
	m.LoadSequences(perfSpecs(t))
	m.SetTempo(140)
	if got := m.Sequence(0).Tempo(); got != 140 {
		t.Errorf("sequence 0 tempo = %v, want 140", got)
	}
	if got := m.Tempo(); got != 140 {
		t.Errorf("Tempo() = %v, want 140", got)
	}
	m.SetTempo(-3)
	if got := m.Tempo(); got != 140 {
		t.Errorf("Tempo() = %v after invalid set, want 140", got)
	}
}
