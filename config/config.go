// Package config loads the instance configuration file. A missing file is
// not an error; every field has a usable default so a bare instance can
// start with no configuration at all.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// DeviceID is this instance's remote-control identity, 0..0x7D.
	DeviceID byte `yaml:"device_id"`
	// Input and Output select MIDI ports by substring match; empty picks
	// the first available port.
	Input  string `yaml:"input"`
	Output string `yaml:"output"`

	BPM        float64 `yaml:"bpm"`
	SampleRate int     `yaml:"sample_rate"`

	// DataDir is where downloaded sequence files land.
	DataDir string `yaml:"data_dir"`
	// Project is the project file loaded at startup; empty starts bare.
	Project string `yaml:"project"`
}

func Default() Config {
	return Config{
		DeviceID:   0,
		BPM:        120,
		SampleRate: 44100,
		DataDir:    "data",
	}
}

// Load reads a config file over the defaults. path == "" or a missing
// file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.DeviceID > 0x7D {
		return fmt.Errorf("device_id %#x is reserved (max 0x7D)", c.DeviceID)
	}
	if c.BPM <= 0 {
		return fmt.Errorf("bpm must be positive, got %v", c.BPM)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	return nil
}
