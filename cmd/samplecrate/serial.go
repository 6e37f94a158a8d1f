package main

import (
	"github.com/charmbracelet/log"
	"go.bug.st/serial"

	"github.com/gbraad-music/samplecrate-sub002/sysex"
)

const serialBaud = 115200

// serveSerial reads a raw SysEx byte stream from a serial port and pushes
// complete frames into the host's queue. Bytes outside a frame are
// discarded; a new frame start mid-frame resets accumulation.
func serveSerial(portName string, frames chan<- []byte, logger *log.Logger) {
	mode := &serial.Mode{BaudRate: serialBaud}
	port, err := serial.Open(portName, mode)
	if err != nil {
		logger.Error("serial open failed", "port", portName, "err", err)
		return
	}
	defer port.Close()
	logger.Info("serial listening", "port", portName)

	buf := make([]byte, 256)
	var frame []byte
	inFrame := false
	for {
		n, err := port.Read(buf)
		if err != nil {
			logger.Error("serial read failed", "port", portName, "err", err)
			return
		}
		for _, b := range buf[:n] {
			switch {
			case b == sysex.FrameStart:
				frame = append(frame[:0], b)
				inFrame = true
			case !inFrame:
				// skip
			case b == sysex.FrameEnd:
				frame = append(frame, b)
				inFrame = false
				out := make([]byte, len(frame))
				copy(out, frame)
				select {
				case frames <- out:
				default:
					logger.Warn("serial frame dropped, queue full")
				}
			default:
				frame = append(frame, b)
			}
		}
	}
}
