package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/gbraad-music/samplecrate-sub002/config"
	"github.com/gbraad-music/samplecrate-sub002/player"
	"github.com/gbraad-music/samplecrate-sub002/project"
	"github.com/gbraad-music/samplecrate-sub002/remote"
	"github.com/gbraad-music/samplecrate-sub002/sysex"
)

// host assembles one running instance: players, remote control, MIDI
// ports and the external clock state. All player mutation happens on the
// tick goroutine; the MIDI listener only feeds the frames and cmds
// channels and bumps the pulse counter.
type host struct {
	cfg  config.Config
	proj *project.Project

	pads      *player.PadManager
	perf      *player.PerformanceManager
	downloads *sysex.DownloadManager
	mixer     *remote.StateMixer
	rack      *remote.StateRack
	ctrl      *remote.Controller

	frames chan []byte
	cmds   chan func()

	// pulse is the external MIDI clock position; -1 until the first
	// timing clock arrives (free-running).
	pulse atomic.Int64

	in         drivers.In
	out        drivers.Out
	send       func(midi.Message) error
	stopListen func()

	logger *log.Logger
}

// newHostWithProject builds a host, optionally overriding the configured
// project file.
func newHostWithProject(cfgPath, projectPath string) (*host, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if projectPath != "" {
		cfg.Project = projectPath
	}
	h := &host{
		cfg:    cfg,
		pads:   player.NewPadManager(),
		perf:   player.NewPerformanceManager(),
		mixer:  remote.NewStateMixer(),
		rack:   remote.NewStateRack(),
		frames: make(chan []byte, 64),
		cmds:   make(chan func(), 16),
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "samplecrate",
		}),
	}
	h.pulse.Store(-1)
	h.perf.SetTempo(cfg.BPM)
	h.pads.SetTempo(cfg.BPM)
	h.perf.SetStartMode(player.StartQuantized)

	h.perf.SetNoteHandler(func(note, velocity uint8, on bool) {
		h.emit(0, note, velocity, on)
	})
	h.pads.SetNoteHandler(func(pad int, userdata any, note, velocity uint8, on bool) {
		ch, _ := userdata.(uint8)
		h.emit(ch, note, velocity, on)
	})
	h.perf.SetPhraseChangeHandler(func(index int, name string) {
		h.logger.Info("phrase", "index", index, "name", name)
	})

	if cfg.Project != "" {
		proj, err := project.Load(cfg.Project)
		if err != nil {
			return nil, err
		}
		h.proj = proj
		n := h.perf.LoadSequences(proj.SequenceSpecs())
		h.logger.Info("project loaded", "name", proj.Name, "sequences", n)
		for pad, file := range proj.Pads {
			if err := h.pads.Load(pad, file, uint8(pad%16)); err != nil {
				h.logger.Error("pad load failed", "pad", pad, "file", file, "err", err)
			}
		}
	}

	h.downloads = sysex.NewDownloadManager(h.resolveSlot)

	ctrl, err := remote.NewController(remote.Options{
		DeviceID:    cfg.DeviceID,
		Pads:        h.pads,
		Performance: h.perf,
		Downloads:   h.downloads,
		Mixer:       h.mixer,
		Rack:        h.rack,
		Send:        h.sendFrame,
		LoadFile:    h.loadFile,
		Pulse:       h.pulseNow,
	})
	if err != nil {
		return nil, err
	}
	h.ctrl = ctrl
	return h, nil
}

// emit is the single MIDI note sink. Channel strips gate it.
func (h *host) emit(channel, note, velocity uint8, on bool) {
	if h.send == nil {
		return
	}
	if on && !h.mixer.Audible(int(channel)) {
		return
	}
	var msg midi.Message
	if on {
		msg = midi.NoteOn(channel, note, velocity)
	} else {
		msg = midi.NoteOff(channel, note)
	}
	if err := h.send(msg); err != nil {
		h.logger.Error("send failed", "err", err)
	}
}

func (h *host) sendFrame(frame []byte) error {
	if h.send == nil {
		return fmt.Errorf("no output port open")
	}
	return h.send(midi.Message(frame))
}

// resolveSlot maps a download slot to the first phrase file of the
// project sequence occupying it.
func (h *host) resolveSlot(slot int) (string, error) {
	if h.proj == nil || slot >= len(h.proj.Sequences) {
		return "", fmt.Errorf("no sequence in slot %d", slot)
	}
	return h.proj.Sequences[slot].Phrases[0].File, nil
}

// loadFile binds a remotely named file to the first free pad. Relative
// names resolve under the data directory.
func (h *host) loadFile(name string) error {
	if !filepath.IsAbs(name) {
		name = filepath.Join(h.cfg.DataDir, name)
	}
	for pad := 0; pad < player.NumPads; pad++ {
		if h.pads.Occupied(pad) {
			continue
		}
		if err := h.pads.Load(pad, name, uint8(pad%16)); err != nil {
			return err
		}
		h.logger.Info("file loaded", "file", name, "pad", pad)
		return nil
	}
	return fmt.Errorf("all pads occupied")
}

func (h *host) pulseNow() int {
	return int(h.pulse.Load())
}

// beat converts the pulse counter for the players; negative means no
// external clock yet.
func (h *host) beat() float64 {
	p := h.pulse.Load()
	if p < 0 {
		return -1
	}
	return float64(p) / player.PulsesPerQuarter
}

// openMIDI connects the configured ports, opening virtual ones when the
// named ports are missing.
func (h *host) openMIDI() error {
	drv, ok := drivers.Get().(*rtmididrv.Driver)
	if !ok {
		return fmt.Errorf("rtmidi driver unavailable")
	}
	in, err := midi.FindInPort(h.cfg.Input)
	if err != nil {
		h.logger.Info("input port not found, opening virtual port", "wanted", h.cfg.Input)
		in, err = drv.OpenVirtualIn("samplecrate")
		if err != nil {
			return err
		}
	}
	out, err := midi.FindOutPort(h.cfg.Output)
	if err != nil {
		h.logger.Info("output port not found, opening virtual port", "wanted", h.cfg.Output)
		out, err = drv.OpenVirtualOut("samplecrate")
		if err != nil {
			return err
		}
	}
	h.in = in
	h.out = out
	h.send, err = midi.SendTo(out)
	if err != nil {
		return err
	}
	h.logger.Info("midi ready", "input", in.String(), "output", out.String())
	return nil
}

// listen starts the MIDI input callback. Control frames and transport
// commands cross to the tick goroutine through channels; only the pulse
// counter is touched here.
func (h *host) listen() error {
	stop, err := midi.ListenTo(h.in, func(msg midi.Message, absms int32) {
		var bt []byte
		var spp uint16
		switch {
		case msg.GetSysEx(&bt):
			frame := make([]byte, 0, len(bt)+2)
			frame = append(frame, sysex.FrameStart)
			frame = append(frame, bt...)
			frame = append(frame, sysex.FrameEnd)
			select {
			case h.frames <- frame:
			default:
				h.logger.Warn("frame dropped, queue full")
			}

		case msg.Is(midi.TimingClockMsg):
			if h.pulse.Load() < 0 {
				h.pulse.Store(0)
			} else {
				h.pulse.Add(1)
			}

		case msg.GetSPP(&spp):
			// One SPP unit is a sixteenth, six clock pulses.
			p := int64(spp) * 6
			h.pulse.Store(p)
			h.post(func() {
				h.perf.SyncAll(int(p))
				h.pads.SyncAll(int(p))
			})

		case msg.Is(midi.StartMsg):
			h.pulse.Store(0)
			h.post(func() { h.perf.PlayAll(0) })

		case msg.Is(midi.ContinueMsg):
			h.post(func() { h.perf.PlayAll(h.pulseNow()) })

		case msg.Is(midi.StopMsg):
			h.post(func() {
				h.perf.PauseAll()
				h.pads.StopAll()
			})
		}
	}, midi.UseSysEx())
	if err != nil {
		return err
	}
	h.stopListen = stop
	return nil
}

func (h *host) post(fn func()) {
	select {
	case h.cmds <- fn:
	default:
		h.logger.Warn("command dropped, queue full")
	}
}

// drain runs on the tick goroutine and applies everything the listener
// queued since the last tick.
func (h *host) drain() {
	for {
		select {
		case frame := <-h.frames:
			h.ctrl.Feed(frame)
		case fn := <-h.cmds:
			fn()
		default:
			return
		}
	}
}

// tick advances all players by a wall-clock delta.
func (h *host) tick(deltaMS float64) {
	h.drain()
	beat := h.beat()
	h.perf.UpdateAll(deltaMS, beat)
	h.pads.UpdateAll(deltaMS, beat)
}

// tickSamples advances all players by a rendered sample count.
func (h *host) tickSamples(numSamples int) {
	h.drain()
	beat := h.beat()
	h.perf.UpdateAllSamples(numSamples, h.cfg.SampleRate, beat)
	h.pads.UpdateAllSamples(numSamples, h.cfg.SampleRate, beat)
}

// triggerPad toggles a pad the same way the remote trigger command does.
func (h *host) triggerPad(pad int) error {
	if h.pads.IsPlaying(pad) {
		h.pads.Stop(pad)
		return nil
	}
	pulse := h.pulseNow()
	if h.perf.StartMode() == player.StartQuantized && pulse >= 0 {
		beat := float64(pulse) / player.PulsesPerQuarter
		bars := float64(player.PulsesPerBar / player.PulsesPerQuarter)
		_, err := h.pads.TriggerQuantized(pad, beat, bars)
		return err
	}
	return h.pads.Trigger(pad)
}

func (h *host) close() {
	if h.stopListen != nil {
		h.stopListen()
	}
	h.perf.StopAll()
	h.pads.StopAll()
	midi.CloseDriver()
}
