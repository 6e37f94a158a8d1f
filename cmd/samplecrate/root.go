package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "samplecrate",
	Short: "A multi-timbral MIDI phrase player with SysEx remote control",
	Long: `samplecrate plays MIDI phrase files as looping pads and phrase-chained
sequences, synchronized to an external MIDI clock, and exposes every
transport, mixer and effect operation over a SysEx remote-control
protocol so instances can drive each other.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "samplecrate.yaml", "config file")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
