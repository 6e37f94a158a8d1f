package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gbraad-music/samplecrate-sub002/audio"
	"github.com/gbraad-music/samplecrate-sub002/player"
)

var (
	runAudio      bool
	runProject    string
	runSerialPort string
	runImmediate  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a playback instance",
	Long: `Load the configured project, open the MIDI ports and serve playback and
remote control until interrupted.

One tick source drives all players for the whole session: a wall-clock
ticker by default, or the audio callback with --audio. Remote frames may
additionally arrive over a raw serial port with --serial.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runAudio, "audio", false, "drive playback from the audio callback")
	runCmd.Flags().StringVar(&runProject, "project", "", "project file (overrides config)")
	runCmd.Flags().StringVar(&runSerialPort, "serial", "", "serial port carrying SysEx frames")
	runCmd.Flags().BoolVar(&runImmediate, "immediate", false, "start pads immediately instead of on the next bar")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	h, err := newRunHost()
	if err != nil {
		return err
	}
	defer h.close()

	if err := h.openMIDI(); err != nil {
		return err
	}
	if err := h.listen(); err != nil {
		return err
	}
	if runSerialPort != "" {
		go serveSerial(runSerialPort, h.frames, h.logger)
	}

	// Timeout sweeps ride the command queue so they run on whichever
	// goroutine is ticking.
	go func() {
		for range time.Tick(time.Second) {
			h.post(func() { h.downloads.CheckTimeouts() })
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	if runAudio {
		drv, err := audio.NewDriver(h.cfg.SampleRate, h.tickSamples)
		if err != nil {
			return err
		}
		h.logger.Info("audio drive", "rate", h.cfg.SampleRate)
		drv.Start()
		<-sig
		return drv.Close()
	}

	h.logger.Info("wall-clock drive")
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-sig:
			return nil
		case now := <-ticker.C:
			h.tick(now.Sub(last).Seconds() * 1000)
			last = now
		}
	}
}

func newRunHost() (*host, error) {
	h, err := newHostWithProject(configPath, runProject)
	if err != nil {
		return nil, err
	}
	if runImmediate {
		h.perf.SetStartMode(player.StartImmediate)
	}
	return h, nil
}
