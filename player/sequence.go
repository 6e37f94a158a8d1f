package player

import "fmt"

// MaxPhrases bounds the phrase chain of one sequence.
const MaxPhrases = 64

// Phrase is one schedulable MIDI file segment inside a sequence. A
// LoopCount of zero or below means the phrase repeats until an explicit
// jump; N > 0 means the sequence advances after N passes.
type Phrase struct {
	File      string
	LoopCount int
	Name      string

	// Parsed at AddPhrase time so advancement never touches the disk.
	data *phraseData
}

// PhraseChangeHandler fires with the new phrase index and name whenever the
// sequence moves to another phrase, by auto-advance or by explicit jump.
type PhraseChangeHandler func(index int, name string)

// SequencePlayer chains phrases through a single internal phrase player,
// advancing according to per-phrase loop counts.
type SequencePlayer struct {
	name    string
	phrases []Phrase

	current int
	loops   int // completed passes of the current phrase
	seqLoop bool
	playing bool
	loaded  bool
	advance bool

	pp *PhrasePlayer

	onChange  PhraseChangeHandler
	onRestart RestartHandler
}

func NewSequencePlayer(name string) *SequencePlayer {
	s := &SequencePlayer{name: name, pp: NewPhrasePlayer()}
	s.pp.SetLoop(true)
	s.pp.SetRestartHandler(s.phraseRestarted)
	return s
}

func (s *SequencePlayer) Name() string { return s.name }
func (s *SequencePlayer) Len() int     { return len(s.phrases) }

func (s *SequencePlayer) SetNoteHandler(h NoteHandler)                 { s.pp.SetNoteHandler(h) }
func (s *SequencePlayer) SetPhraseChangeHandler(h PhraseChangeHandler) { s.onChange = h }
func (s *SequencePlayer) SetRestartHandler(h RestartHandler)           { s.onRestart = h }
func (s *SequencePlayer) SetSequenceLoop(loop bool)                    { s.seqLoop = loop }
func (s *SequencePlayer) SequenceLoop() bool                           { return s.seqLoop }

// AddPhrase appends and returns the new phrase's index. The file is parsed
// here, once; playback and advancement swap the parsed data in without
// going back to the disk, so a bad file fails now, not mid-performance.
func (s *SequencePlayer) AddPhrase(file string, loopCount int, name string) (int, error) {
	if len(s.phrases) >= MaxPhrases {
		return -1, fmt.Errorf("%w: sequence %q is full (%d phrases)", ErrCapacity, s.name, MaxPhrases)
	}
	data, err := parsePhraseFile(file)
	if err != nil {
		return -1, err
	}
	s.phrases = append(s.phrases, Phrase{File: file, LoopCount: loopCount, Name: name, data: data})
	return len(s.phrases) - 1, nil
}

func (s *SequencePlayer) Phrase(i int) (Phrase, error) {
	if i < 0 || i >= len(s.phrases) {
		return Phrase{}, fmt.Errorf("%w: phrase %d of %d", ErrRange, i, len(s.phrases))
	}
	return s.phrases[i], nil
}

// CurrentPhrase reports the active phrase index, or -1 when nothing has
// been loaded yet.
func (s *SequencePlayer) CurrentPhrase() int {
	if !s.loaded {
		return -1
	}
	return s.current
}

// Play resets to phrase 0 and starts immediately.
func (s *SequencePlayer) Play() error {
	if len(s.phrases) == 0 {
		return fmt.Errorf("%w: sequence %q is empty", ErrRange, s.name)
	}
	s.loadPhrase(0)
	s.pp.Play()
	s.playing = true
	return nil
}

// PlayQuantized resets to phrase 0 and arms the start behind the next
// boundary that is a multiple of quantizeBeats.
func (s *SequencePlayer) PlayQuantized(currentBeat, quantizeBeats float64) (float64, error) {
	if len(s.phrases) == 0 {
		return 0, fmt.Errorf("%w: sequence %q is empty", ErrRange, s.name)
	}
	s.loadPhrase(0)
	boundary, err := s.pp.PlayQuantized(currentBeat, quantizeBeats)
	if err != nil {
		return 0, err
	}
	s.playing = true
	return boundary, nil
}

// Resume continues from the stored position, falling back to a fresh Play
// when the sequence never started.
func (s *SequencePlayer) Resume() error {
	if !s.loaded {
		return s.Play()
	}
	s.pp.Resume()
	s.playing = true
	return nil
}

// Stop halts playback, releasing held notes but keeping position.
func (s *SequencePlayer) Stop() {
	s.pp.Stop()
	s.playing = false
}

// JumpToPhrase is the only way to leave an infinite-loop phrase. Playback
// state is preserved: a playing sequence starts the target phrase, a
// stopped one just repositions.
func (s *SequencePlayer) JumpToPhrase(i int) error {
	if i < 0 || i >= len(s.phrases) {
		return fmt.Errorf("%w: phrase %d of %d", ErrRange, i, len(s.phrases))
	}
	wasPlaying := s.playing
	s.pp.Stop()
	s.loadPhrase(i)
	if s.onChange != nil {
		s.onChange(i, s.phrases[i].Name)
	}
	if wasPlaying {
		s.pp.Play()
	}
	return nil
}

// loadPhrase installs the pre-parsed data for phrase i. No file access
// happens here, so it may run inside an update tick.
func (s *SequencePlayer) loadPhrase(i int) {
	s.pp.install(s.phrases[i].data)
	s.pp.SetLoop(true)
	s.current = i
	s.loops = 0
	s.loaded = true
}

func (s *SequencePlayer) phraseRestarted() {
	s.loops++
	if s.onRestart != nil {
		s.onRestart()
	}
	lc := s.phrases[s.current].LoopCount
	if lc > 0 && s.loops >= lc {
		// Halt the wrapped pass; postUpdate swaps the phrase in.
		s.advance = true
		s.pp.Stop()
	}
}

// Update delegates time advancement to the active phrase player and then
// applies any advancement its loop-restart signalled.
func (s *SequencePlayer) Update(deltaMS, currentBeat float64) {
	if !s.playing {
		return
	}
	s.pp.Update(deltaMS, currentBeat)
	s.postUpdate()
}

func (s *SequencePlayer) UpdateSamples(numSamples, sampleRate int, currentBeat float64) {
	if !s.playing {
		return
	}
	s.pp.UpdateSamples(numSamples, sampleRate, currentBeat)
	s.postUpdate()
}

func (s *SequencePlayer) postUpdate() {
	if !s.advance {
		return
	}
	s.advance = false
	next := s.current + 1
	if next >= len(s.phrases) {
		if !s.seqLoop {
			s.playing = false
			return
		}
		next = 0
	}
	s.loadPhrase(next)
	if s.onChange != nil {
		s.onChange(next, s.phrases[next].Name)
	}
	s.pp.Play()
}

func (s *SequencePlayer) SyncStartBeat(currentPulse int) { s.pp.SyncStartBeat(currentPulse) }
func (s *SequencePlayer) Seek(seconds float64)           { s.pp.Seek(seconds) }
func (s *SequencePlayer) SetTempo(bpm float64)           { s.pp.SetTempo(bpm) }
func (s *SequencePlayer) Tempo() float64                 { return s.pp.Tempo() }
func (s *SequencePlayer) Position() float64              { return s.pp.Position() }
func (s *SequencePlayer) Duration() float64              { return s.pp.Duration() }
func (s *SequencePlayer) IsPlaying() bool                { return s.playing }
func (s *SequencePlayer) PendingStart() bool             { return s.pp.PendingStart() }
