// Package sysex implements the remote-control wire protocol: SysEx frame
// building and dispatch, effect parameter commands, the 7-bit transfer
// codec and the chunked sequence download sessions.
//
// Frame layout: F0 7D <device> <command> [payload...] F7. Two-byte 14-bit
// values always travel LSB-first.
package sysex

import (
	"errors"
	"fmt"
)

const (
	FrameStart   = 0xF0
	FrameEnd     = 0xF7
	Manufacturer = 0x7D // educational/non-commercial id

	// DeviceBroadcast addresses every listener; it is never a real
	// device identity.
	DeviceBroadcast = 0x7F
	// DeviceAny, set as the local id, accepts any addressed frame.
	// Receive side only: frames are never built for it.
	DeviceAny = 0x7E
	// MaxDevice is the highest assignable device identity.
	MaxDevice = 0x7D
)

// Command codes. Play is pinned at 0x20; the rest are stable wire
// constants grouped by concern.
const (
	CmdPing byte = 0x01

	CmdPlay        byte = 0x20
	CmdStop        byte = 0x21
	CmdPause       byte = 0x22
	CmdSetPosition byte = 0x23
	CmdSetBPM      byte = 0x24
	CmdTriggerPad  byte = 0x25

	CmdChannelMute   byte = 0x30
	CmdChannelSolo   byte = 0x31
	CmdChannelVolume byte = 0x32
	CmdChannelPan    byte = 0x33

	CmdFileLoad byte = 0x40

	CmdFxGet           byte = 0x50
	CmdFxSet           byte = 0x51
	CmdFxGetAllState   byte = 0x52
	CmdFxStateResponse byte = 0x53

	CmdDownloadStart        byte = 0x60
	CmdDownloadChunkRequest byte = 0x61
	CmdDownloadChunkData    byte = 0x62
	CmdDownloadComplete     byte = 0x63
	CmdDownloadAbort        byte = 0x64
)

var (
	ErrProtocol = errors.New("protocol error")
	ErrRange    = errors.New("out of range")
	ErrNotFound = errors.New("not found")
	ErrTooLarge = errors.New("too large")
	ErrBusy     = errors.New("transfer in progress")
)

// Handler receives the dispatched command with the payload bytes between
// the command code and the trailing F7.
type Handler func(device, command byte, payload []byte)

// Engine holds one local device identity and one registered handler. The
// host constructs it once and feeds it raw MIDI buffers.
type Engine struct {
	device  byte
	handler Handler
}

func NewEngine(device byte, handler Handler) (*Engine, error) {
	if device > MaxDevice && device != DeviceAny {
		return nil, fmt.Errorf("%w: device id %#x is reserved", ErrProtocol, device)
	}
	return &Engine{device: device, handler: handler}, nil
}

func (e *Engine) DeviceID() byte       { return e.device }
func (e *Engine) SetHandler(h Handler) { e.handler = h }

// Parse inspects one complete MIDI message. It returns true only when the
// buffer is a well-formed frame addressed to this device (or broadcast)
// and was dispatched. Everything else returns false without error: the
// same stream may carry unrelated traffic.
func (e *Engine) Parse(buf []byte) bool {
	if len(buf) < 5 {
		return false
	}
	if buf[0] != FrameStart || buf[1] != Manufacturer || buf[len(buf)-1] != FrameEnd {
		return false
	}
	dev := buf[2]
	if dev > 0x7F {
		return false
	}
	if e.device != DeviceAny && dev != e.device && dev != DeviceBroadcast {
		return false
	}
	if e.handler != nil {
		e.handler(dev, buf[3], buf[4:len(buf)-1])
	}
	return true
}

// Message frames one command. The target may be a real device id or the
// broadcast id; payload bytes must already be 7-bit clean.
func Message(device, command byte, payload []byte) ([]byte, error) {
	if device > MaxDevice && device != DeviceBroadcast {
		return nil, fmt.Errorf("%w: cannot address device %#x", ErrProtocol, device)
	}
	if command > 0x7F {
		return nil, fmt.Errorf("%w: command %#x is not 7-bit", ErrProtocol, command)
	}
	for i, b := range payload {
		if b > 0x7F {
			return nil, fmt.Errorf("%w: payload byte %d is %#x, not 7-bit", ErrProtocol, i, b)
		}
	}
	msg := make([]byte, 0, len(payload)+5)
	msg = append(msg, FrameStart, Manufacturer, device, command)
	msg = append(msg, payload...)
	return append(msg, FrameEnd), nil
}

// Append14 appends a 14-bit value as two 7-bit bytes, LSB first.
func Append14(b []byte, v uint16) []byte {
	return append(b, byte(v)&0x7F, byte(v>>7)&0x7F)
}

// Get14 reassembles a 14-bit value from its LSB-first byte pair.
func Get14(lsb, msb byte) uint16 {
	return uint16(lsb&0x7F) | uint16(msb&0x7F)<<7
}

func Ping(device byte) ([]byte, error)  { return Message(device, CmdPing, nil) }
func Play(device byte) ([]byte, error)  { return Message(device, CmdPlay, nil) }
func Stop(device byte) ([]byte, error)  { return Message(device, CmdStop, nil) }
func Pause(device byte) ([]byte, error) { return Message(device, CmdPause, nil) }

// SetPosition carries a 14-bit playhead position in tenths of a second.
func SetPosition(device byte, position uint16) ([]byte, error) {
	if position > 0x3FFF {
		return nil, fmt.Errorf("%w: position %d exceeds 14 bits", ErrRange, position)
	}
	return Message(device, CmdSetPosition, Append14(nil, position))
}

// SetBPM carries a 14-bit tempo in beats per minute.
func SetBPM(device byte, bpm uint16) ([]byte, error) {
	if bpm > 0x3FFF {
		return nil, fmt.Errorf("%w: bpm %d exceeds 14 bits", ErrRange, bpm)
	}
	return Message(device, CmdSetBPM, Append14(nil, bpm))
}

func TriggerPad(device byte, pad byte) ([]byte, error) {
	return Message(device, CmdTriggerPad, []byte{pad})
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func ChannelMute(device, channel byte, mute bool) ([]byte, error) {
	return Message(device, CmdChannelMute, []byte{channel, boolByte(mute)})
}

func ChannelSolo(device, channel byte, solo bool) ([]byte, error) {
	return Message(device, CmdChannelSolo, []byte{channel, boolByte(solo)})
}

func ChannelVolume(device, channel, volume byte) ([]byte, error) {
	return Message(device, CmdChannelVolume, []byte{channel, volume})
}

func ChannelPan(device, channel, pan byte) ([]byte, error) {
	return Message(device, CmdChannelPan, []byte{channel, pan})
}

// FileLoad carries a length-prefixed filename. Names longer than 255
// bytes are rejected at build time; the name itself must be 7-bit clean.
func FileLoad(device byte, filename string) ([]byte, error) {
	name := []byte(filename)
	if len(name) == 0 {
		return nil, fmt.Errorf("%w: empty filename", ErrProtocol)
	}
	if len(name) > 255 {
		return nil, fmt.Errorf("%w: filename is %d bytes (max 255)", ErrProtocol, len(name))
	}
	payload := make([]byte, 0, len(name)+1)
	payload = append(payload, byte(len(name)))
	payload = append(payload, name...)
	return Message(device, CmdFileLoad, payload)
}

// ParseFileLoad validates that the length prefix matches the payload
// exactly.
func ParseFileLoad(payload []byte) (string, error) {
	if len(payload) < 2 {
		return "", fmt.Errorf("%w: file-load payload too short", ErrProtocol)
	}
	n := int(payload[0])
	if len(payload)-1 != n {
		return "", fmt.Errorf("%w: filename length %d does not match %d payload bytes", ErrProtocol, n, len(payload)-1)
	}
	return string(payload[1:]), nil
}

func checkSlot(slot int) error {
	if slot < 0 || slot >= NumSessions {
		return fmt.Errorf("%w: download slot %d", ErrRange, slot)
	}
	return nil
}

// DownloadStart asks an instance to open a transfer session for a slot's
// sequence file.
func DownloadStart(device byte, slot int, program byte) ([]byte, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	return Message(device, CmdDownloadStart, []byte{byte(slot), program})
}

// DownloadChunkRequest asks for one chunk by number; chunks must be
// requested strictly in order.
func DownloadChunkRequest(device byte, slot, chunk int) ([]byte, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	if chunk < 0 || chunk > 0x3FFF {
		return nil, fmt.Errorf("%w: chunk %d", ErrRange, chunk)
	}
	return Message(device, CmdDownloadChunkRequest, Append14([]byte{byte(slot)}, uint16(chunk)))
}

// DownloadChunkData carries one 7-bit-encoded chunk back to the requester.
func DownloadChunkData(device byte, slot, chunk, total int, encoded []byte) ([]byte, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	if chunk < 0 || chunk > 0x3FFF || total < 0 || total > 0x3FFF {
		return nil, fmt.Errorf("%w: chunk %d of %d", ErrRange, chunk, total)
	}
	payload := Append14(Append14([]byte{byte(slot)}, uint16(chunk)), uint16(total))
	payload = append(payload, encoded...)
	return Message(device, CmdDownloadChunkData, payload)
}

func DownloadComplete(device byte, slot int) ([]byte, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	return Message(device, CmdDownloadComplete, []byte{byte(slot)})
}

func DownloadAbort(device byte, slot int) ([]byte, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	return Message(device, CmdDownloadAbort, []byte{byte(slot)})
}
