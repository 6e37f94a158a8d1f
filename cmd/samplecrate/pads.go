package main

import (
	"github.com/spf13/cobra"

	"github.com/gbraad-music/samplecrate-sub002/ui"
)

var padsProject string

var padsCmd = &cobra.Command{
	Use:   "pads",
	Short: "Run the interactive pad grid",
	Long: `Run a playback instance behind a terminal pad grid. The keyboard rows
1-8, q-i, a-k and z-, map onto the 32 pads; the display tick is also the
playback driver, so this mode always runs on the wall clock.`,
	RunE: runPads,
}

func init() {
	padsCmd.Flags().StringVar(&padsProject, "project", "", "project file (overrides config)")
	rootCmd.AddCommand(padsCmd)
}

func runPads(cmd *cobra.Command, args []string) error {
	h, err := newHostWithProject(configPath, padsProject)
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

	return ui.Run(ui.Options{
		Pads:        h.pads,
		Performance: h.perf,
		Trigger:     h.triggerPad,
		StopAll: func() {
			h.perf.StopAll()
			h.pads.StopAll()
		},
		Tick: h.tick,
	})
}
