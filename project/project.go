// Package project loads the YAML project description: named sequences of
// phrase files plus per-pad file bindings. All file paths in a project are
// relative to the project file's directory.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/gbraad-music/samplecrate-sub002/player"
)

// PhraseEntry is one phrase row in a sequence's file list.
type PhraseEntry struct {
	File string `yaml:"file"`
	Loop int    `yaml:"loop"` // passes before advancing; 0 repeats forever
	Name string `yaml:"name"`
}

// SequenceEntry is one named phrase chain.
type SequenceEntry struct {
	Name    string        `yaml:"name"`
	Loop    bool          `yaml:"loop"` // wrap to the first phrase after the last
	Phrases []PhraseEntry `yaml:"phrases"`
}

// Project is the parsed project file with every path already resolved to
// an absolute location.
type Project struct {
	Name      string          `yaml:"name"`
	Sequences []SequenceEntry `yaml:"sequences"`
	Pads      map[int]string  `yaml:"pads"`

	dir string
}

// Load parses a project file and resolves its paths. Pad indices outside
// the pad table and empty file references fail the whole load; a project
// with a bad binding should not half-start.
func Load(path string) (*Project, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}
	var p Project
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("project: %s: %w", path, err)
	}
	p.dir = filepath.Dir(path)

	for si := range p.Sequences {
		seq := &p.Sequences[si]
		if len(seq.Phrases) == 0 {
			return nil, fmt.Errorf("project: sequence %q has no phrases", seq.Name)
		}
		for pi := range seq.Phrases {
			ph := &seq.Phrases[pi]
			if ph.File == "" {
				return nil, fmt.Errorf("project: sequence %q phrase %d has no file", seq.Name, pi)
			}
			ph.File = p.resolve(ph.File)
			if ph.Name == "" {
				ph.Name = trimName(ph.File)
			}
		}
	}
	for pad, file := range p.Pads {
		if pad < 0 || pad >= player.NumPads {
			return nil, fmt.Errorf("project: pad %d out of range (0..%d)", pad, player.NumPads-1)
		}
		if file == "" {
			return nil, fmt.Errorf("project: pad %d has no file", pad)
		}
		p.Pads[pad] = p.resolve(file)
	}
	return &p, nil
}

func (p *Project) resolve(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(p.dir, file)
}

func trimName(file string) string {
	base := filepath.Base(file)
	return base[:len(base)-len(filepath.Ext(base))]
}

// Dir reports the directory the project file lives in.
func (p *Project) Dir() string { return p.dir }

// PadFile reports the file bound to a pad, or "" when unbound.
func (p *Project) PadFile(pad int) string { return p.Pads[pad] }

// SequenceSpecs converts the parsed sequences into the player's loader
// contract.
func (p *Project) SequenceSpecs() []player.SequenceSpec {
	specs := make([]player.SequenceSpec, len(p.Sequences))
	for i, seq := range p.Sequences {
		spec := player.SequenceSpec{Name: seq.Name, Loop: seq.Loop}
		for _, ph := range seq.Phrases {
			spec.Phrases = append(spec.Phrases, player.Phrase{
				File:      ph.File,
				LoopCount: ph.Loop,
				Name:      ph.Name,
			})
		}
		specs[i] = spec
	}
	return specs
}
