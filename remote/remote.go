// Package remote dispatches received control frames to the playback core.
// It owns no transport: the host feeds it complete SysEx messages and
// installs a send function for replies.
package remote

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/gbraad-music/samplecrate-sub002/player"
	"github.com/gbraad-music/samplecrate-sub002/sysex"
)

// Mixer applies channel-strip commands to the audio side.
type Mixer interface {
	SetMute(channel int, mute bool) error
	SetSolo(channel int, solo bool) error
	SetVolume(channel int, volume byte) error
	SetPan(channel int, pan byte) error
}

// EffectRack exposes one effect chain per program.
type EffectRack interface {
	SetEffect(program byte, fx sysex.Effect, enabled bool, params []byte) error
	Effect(program byte, fx sysex.Effect) (enabled bool, params []byte, err error)
	State(program byte) (*sysex.FxState, error)
}

// Options collects the collaborators a controller drives. Pads and
// Performance are required; the rest degrade to "command ignored" when
// nil so a headless instance can run without a mixer or rack.
type Options struct {
	DeviceID    byte
	Pads        *player.PadManager
	Performance *player.PerformanceManager
	Downloads   *sysex.DownloadManager
	Mixer       Mixer
	Rack        EffectRack

	// Send transmits a reply frame. Nil drops replies.
	Send func([]byte) error
	// LoadFile handles a file-load command with an already validated name.
	LoadFile func(name string) error
	// Pulse reports the external clock position for quantized pad starts.
	// Nil means free-running.
	Pulse func() int

	Logger *log.Logger
}

// Controller parses frames addressed to its device id and executes them
// against the playback core. All methods must run on the goroutine that
// also drives player updates.
type Controller struct {
	opts   Options
	engine *sysex.Engine
	logger *log.Logger
}

func NewController(opts Options) (*Controller, error) {
	if opts.Pads == nil || opts.Performance == nil {
		return nil, fmt.Errorf("remote: pad and performance managers are required")
	}
	c := &Controller{opts: opts, logger: opts.Logger}
	if c.logger == nil {
		c.logger = log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "remote",
		})
	}
	engine, err := sysex.NewEngine(opts.DeviceID, c.handle)
	if err != nil {
		return nil, err
	}
	c.engine = engine
	return c, nil
}

// Feed offers one complete MIDI message to the controller. It reports
// whether the buffer was a control frame addressed here.
func (c *Controller) Feed(frame []byte) bool {
	return c.engine.Parse(frame)
}

func (c *Controller) send(frame []byte, err error) {
	if err != nil {
		c.logger.Error("reply build failed", "err", err)
		return
	}
	if c.opts.Send == nil {
		return
	}
	if err := c.opts.Send(frame); err != nil {
		c.logger.Error("reply send failed", "err", err)
	}
}

func (c *Controller) pulse() int {
	if c.opts.Pulse == nil {
		return -1
	}
	return c.opts.Pulse()
}

func (c *Controller) handle(device, command byte, payload []byte) {
	switch command {
	case sysex.CmdPing:
		c.send(sysex.Ping(c.opts.DeviceID))

	case sysex.CmdPlay:
		c.opts.Performance.PlayAll(c.pulse())

	case sysex.CmdStop:
		c.opts.Performance.StopAll()
		c.opts.Pads.StopAll()

	case sysex.CmdPause:
		c.opts.Performance.PauseAll()
		c.opts.Pads.StopAll()

	case sysex.CmdSetPosition:
		if len(payload) != 2 {
			c.logger.Warn("bad set-position payload", "len", len(payload))
			return
		}
		tenths := sysex.Get14(payload[0], payload[1])
		c.opts.Performance.SeekAll(float64(tenths) / 10)

	case sysex.CmdSetBPM:
		if len(payload) != 2 {
			c.logger.Warn("bad set-bpm payload", "len", len(payload))
			return
		}
		bpm := float64(sysex.Get14(payload[0], payload[1]))
		c.opts.Performance.SetTempo(bpm)
		c.opts.Pads.SetTempo(bpm)

	case sysex.CmdTriggerPad:
		if len(payload) != 1 {
			c.logger.Warn("bad trigger-pad payload", "len", len(payload))
			return
		}
		c.triggerPad(int(payload[0]))

	case sysex.CmdChannelMute, sysex.CmdChannelSolo, sysex.CmdChannelVolume, sysex.CmdChannelPan:
		c.channelStrip(command, payload)

	case sysex.CmdFileLoad:
		name, err := sysex.ParseFileLoad(payload)
		if err != nil {
			c.logger.Warn("bad file-load payload", "err", err)
			return
		}
		if c.opts.LoadFile == nil {
			c.logger.Warn("file load ignored, no loader installed", "file", name)
			return
		}
		if err := c.opts.LoadFile(name); err != nil {
			c.logger.Error("file load failed", "file", name, "err", err)
		}

	case sysex.CmdFxGet, sysex.CmdFxSet, sysex.CmdFxGetAllState:
		c.effects(command, payload)

	case sysex.CmdDownloadStart, sysex.CmdDownloadChunkRequest, sysex.CmdDownloadAbort, sysex.CmdDownloadComplete:
		c.download(command, payload)

	default:
		c.logger.Debug("unhandled command", "command", fmt.Sprintf("%#x", command))
	}
}

// triggerPad toggles a pad: a playing pad stops, a stopped one starts
// under the performance start mode.
func (c *Controller) triggerPad(pad int) {
	if c.opts.Pads.IsPlaying(pad) {
		c.opts.Pads.Stop(pad)
		return
	}
	pulse := c.pulse()
	if c.opts.Performance.StartMode() == player.StartQuantized && pulse >= 0 {
		beat := float64(pulse) / player.PulsesPerQuarter
		bars := float64(player.PulsesPerBar / player.PulsesPerQuarter)
		if _, err := c.opts.Pads.TriggerQuantized(pad, beat, bars); err != nil {
			c.logger.Warn("pad trigger failed", "pad", pad, "err", err)
		}
		return
	}
	if err := c.opts.Pads.Trigger(pad); err != nil {
		c.logger.Warn("pad trigger failed", "pad", pad, "err", err)
	}
}

func (c *Controller) channelStrip(command byte, payload []byte) {
	if c.opts.Mixer == nil {
		c.logger.Debug("channel command ignored, no mixer installed")
		return
	}
	if len(payload) != 2 {
		c.logger.Warn("bad channel payload", "len", len(payload))
		return
	}
	channel := int(payload[0])
	var err error
	switch command {
	case sysex.CmdChannelMute:
		err = c.opts.Mixer.SetMute(channel, payload[1] != 0)
	case sysex.CmdChannelSolo:
		err = c.opts.Mixer.SetSolo(channel, payload[1] != 0)
	case sysex.CmdChannelVolume:
		err = c.opts.Mixer.SetVolume(channel, payload[1])
	case sysex.CmdChannelPan:
		err = c.opts.Mixer.SetPan(channel, payload[1])
	}
	if err != nil {
		c.logger.Warn("channel command failed", "channel", channel, "err", err)
	}
}

func (c *Controller) effects(command byte, payload []byte) {
	if c.opts.Rack == nil {
		c.logger.Debug("effect command ignored, no rack installed")
		return
	}
	switch command {
	case sysex.CmdFxGet:
		if len(payload) != 2 {
			c.logger.Warn("bad fx-get payload", "len", len(payload))
			return
		}
		program, fx := payload[0], sysex.Effect(payload[1])
		enabled, params, err := c.opts.Rack.Effect(program, fx)
		if err != nil {
			c.logger.Warn("fx get failed", "program", program, "fx", fx, "err", err)
			return
		}
		// Answered in fx-set form so both sides share one decoder.
		c.send(sysex.FxSet(c.opts.DeviceID, program, fx, enabled, params))

	case sysex.CmdFxSet:
		req, err := sysex.ParseFxSet(payload)
		if err != nil {
			c.logger.Warn("bad fx-set payload", "err", err)
			return
		}
		if err := c.opts.Rack.SetEffect(req.Program, req.Fx, req.Enabled, req.Params); err != nil {
			c.logger.Warn("fx set failed", "program", req.Program, "fx", req.Fx, "err", err)
		}

	case sysex.CmdFxGetAllState:
		if len(payload) != 1 {
			c.logger.Warn("bad fx-state request payload", "len", len(payload))
			return
		}
		st, err := c.opts.Rack.State(payload[0])
		if err != nil {
			c.logger.Warn("fx state failed", "program", payload[0], "err", err)
			return
		}
		c.send(sysex.FxStateResponse(c.opts.DeviceID, st))
	}
}

func (c *Controller) download(command byte, payload []byte) {
	if c.opts.Downloads == nil {
		c.logger.Debug("download command ignored, no session manager installed")
		return
	}
	switch command {
	case sysex.CmdDownloadStart:
		if len(payload) != 2 {
			c.logger.Warn("bad download-start payload", "len", len(payload))
			return
		}
		slot := int(payload[0])
		if _, err := c.opts.Downloads.Start(slot, payload[1]); err != nil {
			c.logger.Warn("download start failed", "slot", slot, "err", err)
			// Negative ack so the requester does not wait out the timeout.
			c.send(sysex.DownloadAbort(c.opts.DeviceID, slot))
		}

	case sysex.CmdDownloadChunkRequest:
		if len(payload) != 3 {
			c.logger.Warn("bad chunk-request payload", "len", len(payload))
			return
		}
		slot := int(payload[0])
		chunk := int(sysex.Get14(payload[1], payload[2]))
		encoded, total, err := c.opts.Downloads.Chunk(slot, chunk)
		if err != nil {
			c.logger.Warn("chunk request failed", "slot", slot, "chunk", chunk, "err", err)
			return
		}
		c.send(sysex.DownloadChunkData(c.opts.DeviceID, slot, chunk, total, encoded))
		if c.opts.Downloads.State(slot) == sysex.StateComplete {
			c.send(sysex.DownloadComplete(c.opts.DeviceID, slot))
		}

	case sysex.CmdDownloadComplete:
		if len(payload) != 1 {
			c.logger.Warn("bad complete payload", "len", len(payload))
			return
		}
		if err := c.opts.Downloads.Complete(int(payload[0])); err != nil {
			c.logger.Warn("complete failed", "slot", payload[0], "err", err)
		}

	case sysex.CmdDownloadAbort:
		if len(payload) != 1 {
			c.logger.Warn("bad abort payload", "len", len(payload))
			return
		}
		c.opts.Downloads.Abort(int(payload[0]))
	}
}
