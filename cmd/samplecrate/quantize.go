package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gitlab.com/gomidi/quantizer/lib/quantizer"
)

var quantizeOut string

var quantizeCmd = &cobra.Command{
	Use:   "quantize <file.mid>",
	Short: "Quantize a phrase file's note timings",
	Long: `Snap a phrase file's note timings to the grid and write the result out.
Quantized phrases start cleanly on loop and sequence boundaries.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuantize,
}

func init() {
	quantizeCmd.Flags().StringVarP(&quantizeOut, "output", "o", "", "output file (default: overwrite input)")
	rootCmd.AddCommand(quantizeCmd)
}

func runQuantize(cmd *cobra.Command, args []string) error {
	in := args[0]
	out := quantizeOut
	if out == "" {
		out = in
	}
	raw, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	var bf bytes.Buffer
	bf.Write(raw)
	if err := quantizer.Quantize(&bf, &bf); err != nil {
		return fmt.Errorf("quantize %s: %w", in, err)
	}
	if err := os.WriteFile(out, bf.Bytes(), 0o644); err != nil {
		return err
	}
	fmt.Printf("quantized %s -> %s\n", in, out)
	return nil
}
