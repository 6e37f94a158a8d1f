// Package player implements the playback core: single-file phrase players,
// phrase-chaining sequence players, the 32-slot pad table and the
// performance manager that multiplexes sequences for a whole project.
//
// All players advance on an externally driven tick, either wall-clock
// milliseconds (Update) or rendered sample counts (UpdateSamples). Exactly
// one tick source may drive a given player at a time.
package player

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"
)

// External MIDI clock units.
const (
	PulsesPerQuarter = 24
	PulsesPerBar     = 96 // 4 beats
)

// Note events per phrase file.
const maxNoteEvents = 16384

var (
	ErrLoad     = errors.New("load failed")
	ErrRange    = errors.New("out of range")
	ErrCapacity = errors.New("capacity exceeded")
)

// NoteHandler receives note on/off events. Handlers run on whichever
// goroutine drives the player's updates and must not block.
type NoteHandler func(note, velocity uint8, on bool)

// RestartHandler fires when a looping player wraps past its end, after the
// wrap's note-offs and before events at the wrapped position.
type RestartHandler func()

type noteEvent struct {
	at  float64 // seconds on the file timeline (at the notated tempo)
	key uint8
	vel uint8
	on  bool
}

// PhrasePlayer owns one loaded MIDI file and a playhead. Positions and
// durations are expressed in seconds on the file timeline; the tempo set
// with SetTempo scales how fast real time moves that playhead.
type PhrasePlayer struct {
	events   []noteEvent
	duration float64
	fileBPM  float64

	bpm     float64
	pos     float64
	next    int
	playing bool
	loop    bool

	pending   bool
	pendingAt float64 // armed beat boundary
	startBeat float64 // external-clock beat mapped to position 0

	sounding [128]bool

	onNote    NoteHandler
	onRestart RestartHandler
}

func NewPhrasePlayer() *PhrasePlayer {
	return &PhrasePlayer{bpm: 120, fileBPM: 120}
}

func (p *PhrasePlayer) SetNoteHandler(h NoteHandler)       { p.onNote = h }
func (p *PhrasePlayer) SetRestartHandler(h RestartHandler) { p.onRestart = h }

// phraseData is the parsed, playback-ready form of one MIDI file. It is
// immutable after parsing, so several players may share one instance.
type phraseData struct {
	events   []noteEvent
	duration float64
	fileBPM  float64
}

// Load parses a standard MIDI file into the internal event list. On failure
// the previous state is untouched. A successful load resets the playhead.
func (p *PhrasePlayer) Load(path string) error {
	data, err := parsePhraseFile(path)
	if err != nil {
		return err
	}
	p.install(data)
	return nil
}

// install swaps in already parsed phrase data and resets the playhead. It
// touches no I/O, so it is safe on the update path.
func (p *PhrasePlayer) install(data *phraseData) {
	p.events = data.events
	p.duration = data.duration
	p.fileBPM = data.fileBPM
	p.pos = 0
	p.next = 0
	p.playing = false
	p.pending = false
	p.sounding = [128]bool{}
}

// parsePhraseFile reads a standard MIDI file into its playback form.
func parsePhraseFile(path string) (*phraseData, error) {
	file, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoad, path, err)
	}
	clock, ok := file.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("%w: %s: only metric time format is supported", ErrLoad, path)
	}
	fileBPM := 120.0
	if tc := file.TempoChanges(); len(tc) > 0 {
		fileBPM = tc[0].BPM
	}

	type tickNote struct {
		tick uint32
		key  uint8
		vel  uint8
		on   bool
	}
	var raw []tickNote
	endTick := uint32(0)
	for _, track := range file.Tracks {
		abs := uint32(0)
		var ch, key, vel uint8
		for _, ev := range track {
			abs += ev.Delta
			switch {
			case ev.Message.GetNoteStart(&ch, &key, &vel):
				raw = append(raw, tickNote{tick: abs, key: key, vel: vel, on: true})
			case ev.Message.GetNoteEnd(&ch, &key):
				raw = append(raw, tickNote{tick: abs, key: key, on: false})
			}
		}
		if abs > endTick {
			endTick = abs
		}
	}
	if len(raw) > maxNoteEvents {
		return nil, fmt.Errorf("%w: %s: %d note events (limit %d)", ErrLoad, path, len(raw), maxNoteEvents)
	}
	sort.SliceStable(raw, func(i, j int) bool { return raw[i].tick < raw[j].tick })

	events := make([]noteEvent, len(raw))
	for i, r := range raw {
		events[i] = noteEvent{
			at:  clock.Duration(fileBPM, r.tick).Seconds(),
			key: r.key,
			vel: r.vel,
			on:  r.on,
		}
	}

	return &phraseData{
		events:   events,
		duration: clock.Duration(fileBPM, endTick).Seconds(),
		fileBPM:  fileBPM,
	}, nil
}

// Play starts playback from position 0 immediately, with no quantization.
func (p *PhrasePlayer) Play() {
	p.releaseAll()
	p.pos = 0
	p.next = 0
	p.pending = false
	p.playing = true
}

// PlayQuantized arms playback behind the next beat boundary at or after
// currentBeat that is a multiple of quantizeBeats. No event fires until an
// update observes the external clock reach that boundary. The computed
// boundary is returned for UI feedback.
func (p *PhrasePlayer) PlayQuantized(currentBeat, quantizeBeats float64) (float64, error) {
	if quantizeBeats <= 0 {
		return 0, fmt.Errorf("%w: quantize %v beats", ErrRange, quantizeBeats)
	}
	boundary := math.Ceil(currentBeat/quantizeBeats) * quantizeBeats
	p.releaseAll()
	p.playing = false
	p.pending = true
	p.pendingAt = boundary
	return boundary, nil
}

// Resume continues playback at the stored position. A player that never
// loaded a file stays stopped.
func (p *PhrasePlayer) Resume() {
	if len(p.events) == 0 && p.duration <= 0 {
		return
	}
	p.pending = false
	p.playing = true
}

// Stop halts playback and releases all sounding notes. It keeps the current
// position and is idempotent.
func (p *PhrasePlayer) Stop() {
	p.releaseAll()
	p.playing = false
	p.pending = false
}

// Update advances the playhead by a wall-clock delta. currentBeat < 0 means
// free-running: no pending quantized start can resolve.
func (p *PhrasePlayer) Update(deltaMS, currentBeat float64) {
	p.advance(deltaMS/1000.0, currentBeat)
}

// UpdateSamples advances the playhead by a rendered sample count. It moves
// musical time exactly as the millisecond path does for the same elapsed
// real time, so the two tick sources are interchangeable between sessions.
func (p *PhrasePlayer) UpdateSamples(numSamples, sampleRate int, currentBeat float64) {
	if sampleRate <= 0 {
		return
	}
	p.advance(float64(numSamples)/float64(sampleRate), currentBeat)
}

func (p *PhrasePlayer) advance(deltaSeconds, currentBeat float64) {
	if p.pending {
		if currentBeat < 0 || currentBeat < p.pendingAt {
			return
		}
		p.pending = false
		p.playing = true
		p.pos = 0
		p.next = 0
		p.startBeat = p.pendingAt
	}
	if !p.playing {
		return
	}
	if p.duration <= 0 {
		p.playing = false
		return
	}

	target := p.pos + deltaSeconds*p.rate()
	for {
		p.emitUntil(math.Min(target, p.duration))
		if target < p.duration {
			break
		}
		// Crossed the phrase end: release held notes before anything at
		// the wrapped position sounds.
		p.releaseAll()
		if !p.loop {
			p.playing = false
			p.pos = p.duration
			return
		}
		if p.onRestart != nil {
			p.onRestart()
		}
		if !p.playing {
			// A restart handler stopped us (sequence advancement).
			p.pos = 0
			p.next = 0
			return
		}
		target -= p.duration
		p.startBeat += p.duration * p.fileBPM / 60.0
		p.pos = 0
		p.next = 0
	}
	p.pos = target
}

func (p *PhrasePlayer) emitUntil(limit float64) {
	for p.next < len(p.events) && p.events[p.next].at <= limit {
		ev := p.events[p.next]
		p.next++
		if ev.on {
			p.sounding[ev.key] = true
		} else {
			p.sounding[ev.key] = false
		}
		if p.onNote != nil {
			p.onNote(ev.key, ev.vel, ev.on)
		}
	}
}

func (p *PhrasePlayer) releaseAll() {
	for key := range p.sounding {
		if p.sounding[key] {
			p.sounding[key] = false
			if p.onNote != nil {
				p.onNote(uint8(key), 0, false)
			}
		}
	}
}

// SyncStartBeat re-anchors the clock-to-position mapping to an absolute
// pulse count without altering the audible position. Used when a Song
// Position Pointer redefines the transport's time base.
func (p *PhrasePlayer) SyncStartBeat(currentPulse int) {
	beat := float64(currentPulse) / PulsesPerQuarter
	p.startBeat = beat - p.pos*p.fileBPM/60.0
}

// Seek clamps into [0, duration] and repositions event scanning. Sounding
// notes are released so no note sticks across the jump.
func (p *PhrasePlayer) Seek(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	if seconds > p.duration {
		seconds = p.duration
	}
	p.releaseAll()
	p.pos = seconds
	p.next = sort.Search(len(p.events), func(i int) bool { return p.events[i].at >= seconds })
}

// SetTempo applies to subsequent updates only; elapsed position is never
// rescaled retroactively.
func (p *PhrasePlayer) SetTempo(bpm float64) {
	if bpm > 0 {
		p.bpm = bpm
	}
}

func (p *PhrasePlayer) rate() float64 { return p.bpm / p.fileBPM }

func (p *PhrasePlayer) Tempo() float64     { return p.bpm }
func (p *PhrasePlayer) FileTempo() float64 { return p.fileBPM }
func (p *PhrasePlayer) Position() float64  { return p.pos }
func (p *PhrasePlayer) Duration() float64  { return p.duration }
func (p *PhrasePlayer) IsPlaying() bool    { return p.playing }
func (p *PhrasePlayer) PendingStart() bool { return p.pending }
func (p *PhrasePlayer) StartBeat() float64 { return p.startBeat }
func (p *PhrasePlayer) Looping() bool      { return p.loop }
func (p *PhrasePlayer) SetLoop(loop bool)  { p.loop = loop }
