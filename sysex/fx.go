package sysex

import "fmt"

// Effect identifies one slot in the fixed per-channel effect chain.
type Effect byte

const (
	FxDistortion Effect = 0
	FxFilter     Effect = 1
	FxEQ         Effect = 2
	FxCompressor Effect = 3
	FxDelay      Effect = 4

	// Two chain slots are reserved for future effects; their ids are
	// valid on the wire but carry no parameters yet.
	NumEffects         = 7
	NumActiveEffects   = 5
	FxStatePayloadSize = 32
)

var fxParamCounts = [NumActiveEffects]int{
	FxDistortion: 2,
	FxFilter:     2,
	FxEQ:         3,
	FxCompressor: 5,
	FxDelay:      3,
}

var fxNames = [NumActiveEffects]string{
	FxDistortion: "distortion",
	FxFilter:     "filter",
	FxEQ:         "eq",
	FxCompressor: "compressor",
	FxDelay:      "delay",
}

// ParamCount reports how many parameter bytes an effect carries. Reserved
// effect ids report zero.
func ParamCount(fx Effect) (int, error) {
	if fx >= NumEffects {
		return 0, fmt.Errorf("%w: effect %d", ErrRange, fx)
	}
	if fx >= NumActiveEffects {
		return 0, nil
	}
	return fxParamCounts[fx], nil
}

func (fx Effect) String() string {
	if fx < NumActiveEffects {
		return fxNames[fx]
	}
	if fx < NumEffects {
		return fmt.Sprintf("reserved(%d)", byte(fx))
	}
	return fmt.Sprintf("effect(%d)", byte(fx))
}

// FxGet requests the current parameters of one effect on one program's
// channel strip.
func FxGet(device, program byte, fx Effect) ([]byte, error) {
	if _, err := ParamCount(fx); err != nil {
		return nil, err
	}
	return Message(device, CmdFxGet, []byte{program, byte(fx)})
}

// FxSet replaces all parameters of one effect in a single frame. The
// parameter count must match the effect exactly; partial updates are not
// part of the protocol.
func FxSet(device, program byte, fx Effect, enabled bool, params []byte) ([]byte, error) {
	want, err := ParamCount(fx)
	if err != nil {
		return nil, err
	}
	if len(params) != want {
		return nil, fmt.Errorf("%w: %s takes %d params, got %d", ErrProtocol, fx, want, len(params))
	}
	payload := make([]byte, 0, 3+len(params))
	payload = append(payload, program, byte(fx), boolByte(enabled))
	payload = append(payload, params...)
	return Message(device, CmdFxSet, payload)
}

// FxSetRequest is a decoded FxSet payload.
type FxSetRequest struct {
	Program byte
	Fx      Effect
	Enabled bool
	Params  []byte
}

// ParseFxSet validates the payload shape against the effect's declared
// parameter count.
func ParseFxSet(payload []byte) (FxSetRequest, error) {
	if len(payload) < 3 {
		return FxSetRequest{}, fmt.Errorf("%w: fx-set payload too short", ErrProtocol)
	}
	fx := Effect(payload[1])
	want, err := ParamCount(fx)
	if err != nil {
		return FxSetRequest{}, err
	}
	if len(payload)-3 != want {
		return FxSetRequest{}, fmt.Errorf("%w: %s takes %d params, got %d", ErrProtocol, fx, want, len(payload)-3)
	}
	return FxSetRequest{
		Program: payload[0],
		Fx:      fx,
		Enabled: payload[2] != 0,
		Params:  payload[3:],
	}, nil
}

// FxGetAllState requests a full effect-chain snapshot for one program.
func FxGetAllState(device, program byte) ([]byte, error) {
	return Message(device, CmdFxGetAllState, []byte{program})
}

// FxState is the complete effect chain of one program's channel strip:
// enable flags plus every active effect's parameters, flattened in effect
// order.
type FxState struct {
	Program byte
	Version byte
	Route   byte
	Enabled [NumActiveEffects]bool
	Params  [NumActiveEffects][]byte
}

// fxStateVersion is bumped whenever the snapshot layout changes.
const fxStateVersion = 1

// NewFxState returns a zeroed snapshot with per-effect parameter slices
// sized to their declared counts.
func NewFxState(program byte) *FxState {
	st := &FxState{Program: program, Version: fxStateVersion}
	for fx := range st.Params {
		st.Params[fx] = make([]byte, fxParamCounts[fx])
	}
	return st
}

// EncodePayload flattens the snapshot into the fixed 32-byte wire form:
// program, version, route, enable bitmask, 15 parameter bytes in effect
// order, 13 reserved zero bytes.
func (st *FxState) EncodePayload() ([]byte, error) {
	out := make([]byte, FxStatePayloadSize)
	out[0] = st.Program
	out[1] = st.Version
	out[2] = st.Route
	for fx := 0; fx < NumActiveEffects; fx++ {
		if st.Enabled[fx] {
			out[3] |= 1 << fx
		}
	}
	at := 4
	for fx := 0; fx < NumActiveEffects; fx++ {
		want := fxParamCounts[fx]
		if len(st.Params[fx]) != want {
			return nil, fmt.Errorf("%w: %s has %d params, want %d", ErrProtocol, Effect(fx), len(st.Params[fx]), want)
		}
		for _, b := range st.Params[fx] {
			if b > 0x7F {
				return nil, fmt.Errorf("%w: %s param %#x is not 7-bit", ErrProtocol, Effect(fx), b)
			}
			out[at] = b
			at++
		}
	}
	return out, nil
}

// FxStateResponse frames a full chain snapshot for the wire.
func FxStateResponse(device byte, st *FxState) ([]byte, error) {
	payload, err := st.EncodePayload()
	if err != nil {
		return nil, err
	}
	return Message(device, CmdFxStateResponse, payload)
}

// ParseFxState decodes a snapshot payload. The length must be exactly the
// fixed snapshot size; anything else is a framing fault.
func ParseFxState(payload []byte) (*FxState, error) {
	if len(payload) != FxStatePayloadSize {
		return nil, fmt.Errorf("%w: fx state payload is %d bytes, want %d", ErrProtocol, len(payload), FxStatePayloadSize)
	}
	st := NewFxState(payload[0])
	st.Version = payload[1]
	st.Route = payload[2]
	at := 4
	for fx := 0; fx < NumActiveEffects; fx++ {
		st.Enabled[fx] = payload[3]&(1<<fx) != 0
		copy(st.Params[fx], payload[at:at+fxParamCounts[fx]])
		at += fxParamCounts[fx]
	}
	return st, nil
}
