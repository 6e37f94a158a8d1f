package player

import "fmt"

// NumPads is the fixed size of the pad table.
const NumPads = 32

// PadNoteHandler is the shared note sink for all pads. The pad index and
// the userdata bound at load time disambiguate the source.
type PadNoteHandler func(pad int, userdata any, note, velocity uint8, on bool)

type padSlot struct {
	player   *PhrasePlayer
	userdata any
}

// PadManager owns up to 32 independent phrase players, one per pad, and
// fans tempo, sync and update calls out to every occupied slot. Slots must
// only be mutated from the goroutine that also drives the update sweep.
type PadManager struct {
	slots  [NumPads]*padSlot
	onNote PadNoteHandler
	bpm    float64
}

func NewPadManager() *PadManager {
	return &PadManager{bpm: 120}
}

func (m *PadManager) SetNoteHandler(h PadNoteHandler) { m.onNote = h }

// Load binds a file and userdata to a pad, replacing any previous player.
// A failed load leaves the previous binding untouched.
func (m *PadManager) Load(pad int, file string, userdata any) error {
	if pad < 0 || pad >= NumPads {
		return fmt.Errorf("%w: pad %d", ErrRange, pad)
	}
	p := NewPhrasePlayer()
	p.SetTempo(m.bpm)
	p.SetNoteHandler(func(note, vel uint8, on bool) {
		if m.onNote != nil {
			m.onNote(pad, m.slots[pad].userdata, note, vel, on)
		}
	})
	if err := p.Load(file); err != nil {
		return err
	}
	if old := m.slots[pad]; old != nil {
		old.player.Stop()
	}
	m.slots[pad] = &padSlot{player: p, userdata: userdata}
	return nil
}

// Unload stops and removes a pad's player. Unloading an empty pad is a
// no-op.
func (m *PadManager) Unload(pad int) {
	if pad < 0 || pad >= NumPads {
		return
	}
	if s := m.slots[pad]; s != nil {
		s.player.Stop()
		m.slots[pad] = nil
	}
}

func (m *PadManager) slot(pad int) (*padSlot, error) {
	if pad < 0 || pad >= NumPads {
		return nil, fmt.Errorf("%w: pad %d", ErrRange, pad)
	}
	s := m.slots[pad]
	if s == nil {
		return nil, fmt.Errorf("%w: pad %d is empty", ErrRange, pad)
	}
	return s, nil
}

// Trigger starts a pad from position 0 immediately.
func (m *PadManager) Trigger(pad int) error {
	s, err := m.slot(pad)
	if err != nil {
		return err
	}
	s.player.Play()
	return nil
}

// TriggerQuantized arms a pad behind the next quantize boundary and
// returns the boundary beat.
func (m *PadManager) TriggerQuantized(pad int, currentBeat, quantizeBeats float64) (float64, error) {
	s, err := m.slot(pad)
	if err != nil {
		return 0, err
	}
	return s.player.PlayQuantized(currentBeat, quantizeBeats)
}

// Stop halts one pad; stopping an empty or already stopped pad is a no-op.
func (m *PadManager) Stop(pad int) {
	if pad < 0 || pad >= NumPads {
		return
	}
	if s := m.slots[pad]; s != nil {
		s.player.Stop()
	}
}

func (m *PadManager) StopAll() {
	for i := range m.slots {
		m.Stop(i)
	}
}

func (m *PadManager) SetLoop(pad int, loop bool) error {
	s, err := m.slot(pad)
	if err != nil {
		return err
	}
	s.player.SetLoop(loop)
	return nil
}

// SyncPad re-anchors one pad's clock mapping to an absolute pulse count.
func (m *PadManager) SyncPad(pad int, currentPulse int) error {
	s, err := m.slot(pad)
	if err != nil {
		return err
	}
	s.player.SyncStartBeat(currentPulse)
	return nil
}

// SyncAll re-anchors every occupied pad. Each pad free-runs independently,
// so a transport jump must reach all of them without restarting any.
func (m *PadManager) SyncAll(currentPulse int) {
	for _, s := range m.slots {
		if s != nil {
			s.player.SyncStartBeat(currentPulse)
		}
	}
}

// SetTempo applies to all current and future pad players.
func (m *PadManager) SetTempo(bpm float64) {
	if bpm <= 0 {
		return
	}
	m.bpm = bpm
	for _, s := range m.slots {
		if s != nil {
			s.player.SetTempo(bpm)
		}
	}
}

func (m *PadManager) Tempo() float64 { return m.bpm }

// UpdateAll sweeps every occupied slot once, ascending by index so event
// interleaving is deterministic for identical inputs.
func (m *PadManager) UpdateAll(deltaMS, currentBeat float64) {
	for _, s := range m.slots {
		if s != nil {
			s.player.Update(deltaMS, currentBeat)
		}
	}
}

func (m *PadManager) UpdateAllSamples(numSamples, sampleRate int, currentBeat float64) {
	for _, s := range m.slots {
		if s != nil {
			s.player.UpdateSamples(numSamples, sampleRate, currentBeat)
		}
	}
}

func (m *PadManager) Occupied(pad int) bool {
	return pad >= 0 && pad < NumPads && m.slots[pad] != nil
}

func (m *PadManager) IsPlaying(pad int) bool {
	if pad < 0 || pad >= NumPads || m.slots[pad] == nil {
		return false
	}
	return m.slots[pad].player.IsPlaying()
}

// Player exposes a pad's phrase player, or nil for an empty slot.
func (m *PadManager) Player(pad int) *PhrasePlayer {
	if pad < 0 || pad >= NumPads || m.slots[pad] == nil {
		return nil
	}
	return m.slots[pad].player
}
