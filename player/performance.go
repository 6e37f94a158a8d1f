package player

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// MaxSequences bounds the performance's sequence table.
const MaxSequences = 16

// StartMode selects how Play schedules a sequence start.
type StartMode int

const (
	// StartImmediate resumes a sequence at its stored position.
	StartImmediate StartMode = iota
	// StartQuantized defers the start to the next bar boundary (the next
	// multiple of 96 pulses at or after the current pulse).
	StartQuantized
)

// SequenceSpec is the project-loader contract: an ordered phrase list
// resolved to absolute file paths, plus the sequence's loop flag.
type SequenceSpec struct {
	Name    string
	Loop    bool
	Phrases []Phrase
}

// PerformanceManager owns up to 16 sequence players, one per
// project-defined sequence, and can repurpose a slot as a single-phrase
// pad sequence so pad triggering and multi-phrase sequencing share one
// update path.
type PerformanceManager struct {
	seqs [MaxSequences]*SequencePlayer
	mode StartMode
	bpm  float64

	onNote   NoteHandler
	onChange PhraseChangeHandler

	logger *log.Logger
}

func NewPerformanceManager() *PerformanceManager {
	return &PerformanceManager{
		bpm: 120,
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "perf",
		}),
	}
}

func (m *PerformanceManager) SetStartMode(mode StartMode) { m.mode = mode }
func (m *PerformanceManager) StartMode() StartMode        { return m.mode }

// SetNoteHandler installs the note sink for all current and future
// sequences.
func (m *PerformanceManager) SetNoteHandler(h NoteHandler) {
	m.onNote = h
	for _, s := range m.seqs {
		if s != nil {
			s.SetNoteHandler(h)
		}
	}
}

// SetPhraseChangeHandler installs the phrase-change sink for all current
// and future sequences.
func (m *PerformanceManager) SetPhraseChangeHandler(h PhraseChangeHandler) {
	m.onChange = h
	for _, s := range m.seqs {
		if s != nil {
			s.SetPhraseChangeHandler(h)
		}
	}
}

// LoadSequences installs one sequence player per spec, keeping slot order
// aligned with the input. A phrase that fails to load is skipped and
// logged; loading continues. Returns how many sequences ended up with at
// least one playable phrase.
func (m *PerformanceManager) LoadSequences(specs []SequenceSpec) int {
	loaded := 0
	for i, spec := range specs {
		if i >= MaxSequences {
			m.logger.Warn("too many sequences in project", "have", len(specs), "max", MaxSequences)
			break
		}
		s := NewSequencePlayer(spec.Name)
		s.SetSequenceLoop(spec.Loop)
		s.SetTempo(m.bpm)
		s.SetNoteHandler(m.onNote)
		s.SetPhraseChangeHandler(m.onChange)
		for _, ph := range spec.Phrases {
			if _, err := s.AddPhrase(ph.File, ph.LoopCount, ph.Name); err != nil {
				m.logger.Error("phrase load failed", "sequence", spec.Name, "file", ph.File, "err", err)
			}
		}
		m.seqs[i] = s
		if s.Len() > 0 {
			loaded++
		} else {
			m.logger.Warn("sequence has no playable phrases", "sequence", spec.Name)
		}
	}
	return loaded
}

// LoadPad repurposes a slot as a single-phrase sequence built from one
// pad's MIDI file. The phrase loops until explicitly stopped.
func (m *PerformanceManager) LoadPad(slot int, file string) error {
	if slot < 0 || slot >= MaxSequences {
		return fmt.Errorf("%w: sequence slot %d", ErrRange, slot)
	}
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	s := NewSequencePlayer(name)
	s.SetSequenceLoop(false)
	s.SetTempo(m.bpm)
	s.SetNoteHandler(m.onNote)
	s.SetPhraseChangeHandler(m.onChange)
	if _, err := s.AddPhrase(file, 0, name); err != nil {
		return err
	}
	if old := m.seqs[slot]; old != nil {
		old.Stop()
	}
	m.seqs[slot] = s
	return nil
}

// UnloadPad stops and removes the sequence occupying a slot.
func (m *PerformanceManager) UnloadPad(slot int) {
	if slot < 0 || slot >= MaxSequences {
		return
	}
	if s := m.seqs[slot]; s != nil {
		s.Stop()
		m.seqs[slot] = nil
	}
}

func (m *PerformanceManager) sequence(i int) (*SequencePlayer, error) {
	if i < 0 || i >= MaxSequences || m.seqs[i] == nil {
		return nil, fmt.Errorf("%w: sequence %d", ErrRange, i)
	}
	return m.seqs[i], nil
}

// Sequence exposes one sequence player, or nil for an empty slot.
func (m *PerformanceManager) Sequence(i int) *SequencePlayer {
	if i < 0 || i >= MaxSequences {
		return nil
	}
	return m.seqs[i]
}

// Play starts one sequence according to the manager-wide start mode.
// currentPulse is the external clock position; quantized starts land on
// the next bar boundary at or after it.
func (m *PerformanceManager) Play(i int, currentPulse int) error {
	s, err := m.sequence(i)
	if err != nil {
		return err
	}
	switch m.mode {
	case StartQuantized:
		beat := float64(currentPulse) / PulsesPerQuarter
		bars := float64(PulsesPerBar / PulsesPerQuarter)
		boundary, err := s.PlayQuantized(beat, bars)
		if err != nil {
			return err
		}
		m.logger.Debug("quantized start armed", "sequence", s.Name(), "boundary", boundary)
		return nil
	default:
		return s.Resume()
	}
}

// PlayAll starts every loaded sequence under the current start mode.
func (m *PerformanceManager) PlayAll(currentPulse int) {
	for i, s := range m.seqs {
		if s == nil || s.Len() == 0 {
			continue
		}
		if err := m.Play(i, currentPulse); err != nil {
			m.logger.Error("start failed", "sequence", s.Name(), "err", err)
		}
	}
}

// Stop halts one sequence and rewinds it to the top.
func (m *PerformanceManager) Stop(i int) {
	if i < 0 || i >= MaxSequences || m.seqs[i] == nil {
		return
	}
	m.seqs[i].Stop()
	m.seqs[i].Seek(0)
}

func (m *PerformanceManager) StopAll() {
	for i := range m.seqs {
		m.Stop(i)
	}
}

// PauseAll halts playback but keeps every sequence's position so an
// Immediate start resumes in place.
func (m *PerformanceManager) PauseAll() {
	for _, s := range m.seqs {
		if s != nil {
			s.Stop()
		}
	}
}

// SeekAll repositions every loaded sequence's current phrase.
func (m *PerformanceManager) SeekAll(seconds float64) {
	for _, s := range m.seqs {
		if s != nil {
			s.Seek(seconds)
		}
	}
}

// JumpToPhrase delegates to the target sequence.
func (m *PerformanceManager) JumpToPhrase(i, phrase int) error {
	s, err := m.sequence(i)
	if err != nil {
		return err
	}
	return s.JumpToPhrase(phrase)
}

// SyncAll re-anchors every sequence to a new absolute pulse position.
func (m *PerformanceManager) SyncAll(currentPulse int) {
	for _, s := range m.seqs {
		if s != nil {
			s.SyncStartBeat(currentPulse)
		}
	}
}

// SetTempo applies to all current and future sequences.
func (m *PerformanceManager) SetTempo(bpm float64) {
	if bpm <= 0 {
		return
	}
	m.bpm = bpm
	for _, s := range m.seqs {
		if s != nil {
			s.SetTempo(bpm)
		}
	}
}

func (m *PerformanceManager) Tempo() float64 { return m.bpm }

// UpdateAll drives every loaded sequence from the wall-clock tick.
func (m *PerformanceManager) UpdateAll(deltaMS, currentBeat float64) {
	for _, s := range m.seqs {
		if s != nil {
			s.Update(deltaMS, currentBeat)
		}
	}
}

// UpdateAllSamples drives every loaded sequence from the audio callback.
func (m *PerformanceManager) UpdateAllSamples(numSamples, sampleRate int, currentBeat float64) {
	for _, s := range m.seqs {
		if s != nil {
			s.UpdateSamples(numSamples, sampleRate, currentBeat)
		}
	}
}
