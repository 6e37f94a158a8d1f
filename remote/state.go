package remote

import (
	"fmt"

	"github.com/gbraad-music/samplecrate-sub002/sysex"
)

// NumChannels is the channel-strip count of the internal mixer state.
const NumChannels = 16

// ChannelState is one strip's last commanded values.
type ChannelState struct {
	Mute   bool
	Solo   bool
	Volume byte
	Pan    byte
}

// StateMixer tracks channel-strip state in memory. The audio engine that
// would apply it is external; downstream consumers read the state on
// their own tick.
type StateMixer struct {
	channels [NumChannels]ChannelState
}

func NewStateMixer() *StateMixer {
	m := &StateMixer{}
	for i := range m.channels {
		m.channels[i] = ChannelState{Volume: 100, Pan: 64} // pan 64 is center
	}
	return m
}

func (m *StateMixer) strip(channel int) (*ChannelState, error) {
	if channel < 0 || channel >= NumChannels {
		return nil, fmt.Errorf("mixer: channel %d out of range", channel)
	}
	return &m.channels[channel], nil
}

func (m *StateMixer) SetMute(channel int, mute bool) error {
	s, err := m.strip(channel)
	if err != nil {
		return err
	}
	s.Mute = mute
	return nil
}

func (m *StateMixer) SetSolo(channel int, solo bool) error {
	s, err := m.strip(channel)
	if err != nil {
		return err
	}
	s.Solo = solo
	return nil
}

func (m *StateMixer) SetVolume(channel int, volume byte) error {
	s, err := m.strip(channel)
	if err != nil {
		return err
	}
	s.Volume = volume
	return nil
}

func (m *StateMixer) SetPan(channel int, pan byte) error {
	s, err := m.strip(channel)
	if err != nil {
		return err
	}
	s.Pan = pan
	return nil
}

// Channel reads one strip's state. Out-of-range reads return the zero
// state.
func (m *StateMixer) Channel(channel int) ChannelState {
	if channel < 0 || channel >= NumChannels {
		return ChannelState{}
	}
	return m.channels[channel]
}

// Audible reports whether a strip should sound given the solo set.
func (m *StateMixer) Audible(channel int) bool {
	s, err := m.strip(channel)
	if err != nil {
		return false
	}
	if s.Mute {
		return false
	}
	for i := range m.channels {
		if m.channels[i].Solo {
			return s.Solo
		}
	}
	return true
}

// StateRack keeps one effect-chain snapshot per program in memory so get
// and get-all-state commands answer from the last commanded values.
type StateRack struct {
	programs map[byte]*sysex.FxState
}

func NewStateRack() *StateRack {
	return &StateRack{programs: map[byte]*sysex.FxState{}}
}

func (r *StateRack) state(program byte) *sysex.FxState {
	st, ok := r.programs[program]
	if !ok {
		st = sysex.NewFxState(program)
		r.programs[program] = st
	}
	return st
}

func (r *StateRack) SetEffect(program byte, fx sysex.Effect, enabled bool, params []byte) error {
	if fx >= sysex.NumActiveEffects {
		return fmt.Errorf("rack: %s carries no parameters", fx)
	}
	want, err := sysex.ParamCount(fx)
	if err != nil {
		return err
	}
	if len(params) != want {
		return fmt.Errorf("rack: %s takes %d params, got %d", fx, want, len(params))
	}
	st := r.state(program)
	st.Enabled[fx] = enabled
	copy(st.Params[fx], params)
	return nil
}

func (r *StateRack) Effect(program byte, fx sysex.Effect) (bool, []byte, error) {
	if fx >= sysex.NumActiveEffects {
		return false, nil, fmt.Errorf("rack: %s carries no parameters", fx)
	}
	if _, err := sysex.ParamCount(fx); err != nil {
		return false, nil, err
	}
	st := r.state(program)
	params := make([]byte, len(st.Params[fx]))
	copy(params, st.Params[fx])
	return st.Enabled[fx], params, nil
}

func (r *StateRack) State(program byte) (*sysex.FxState, error) {
	return r.state(program), nil
}
