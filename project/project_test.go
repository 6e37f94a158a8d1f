package project

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProject(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "set.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("writing project: %v", err)
	}
	return path
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	path := writeProject(t, `
name: live set
sequences:
  - name: drums
    loop: true
    phrases:
      - file: phrases/intro.mid
        loop: 2
      - file: /abs/groove.mid
        loop: 0
        name: groove
pads:
  0: pads/kick.mid
  31: pads/crash.mid
`)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Name != "live set" {
		t.Errorf("Name = %q", p.Name)
	}
	dir := filepath.Dir(path)

	ph := p.Sequences[0].Phrases[0]
	if want := filepath.Join(dir, "phrases/intro.mid"); ph.File != want {
		t.Errorf("relative path = %q, want %q", ph.File, want)
	}
	// The name defaults to the file's base name.
	if ph.Name != "intro" {
		t.Errorf("default name = %q, want intro", ph.Name)
	}
	if got := p.Sequences[0].Phrases[1].File; got != "/abs/groove.mid" {
		t.Errorf("absolute path rewritten to %q", got)
	}
	if want := filepath.Join(dir, "pads/kick.mid"); p.PadFile(0) != want {
		t.Errorf("PadFile(0) = %q, want %q", p.PadFile(0), want)
	}
	if p.PadFile(5) != "" {
		t.Errorf("PadFile(5) = %q, want empty", p.PadFile(5))
	}
}

func TestLoadRejectsBadPads(t *testing.T) {
	path := writeProject(t, `
sequences:
  - name: s
    phrases:
      - file: a.mid
pads:
  32: too-far.mid
`)
	if _, err := Load(path); err == nil {
		t.Error("pad 32 accepted")
	}

	path = writeProject(t, `
pads:
  0: ""
`)
	if _, err := Load(path); err == nil {
		t.Error("empty pad file accepted")
	}
}

func TestLoadRejectsEmptySequence(t *testing.T) {
	path := writeProject(t, `
sequences:
  - name: hollow
    phrases: []
`)
	if _, err := Load(path); err == nil {
		t.Error("sequence without phrases accepted")
	}

	path = writeProject(t, `
sequences:
  - name: s
    phrases:
      - loop: 1
`)
	if _, err := Load(path); err == nil {
		t.Error("phrase without file accepted")
	}
}

func TestSequenceSpecsCarriesLoopCounts(t *testing.T) {
	path := writeProject(t, `
sequences:
  - name: drums
    loop: true
    phrases:
      - file: a.mid
        loop: 3
        name: A
`)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	specs := p.SequenceSpecs()
	if len(specs) != 1 {
		t.Fatalf("specs = %d, want 1", len(specs))
	}
	if !specs[0].Loop || specs[0].Name != "drums" {
		t.Errorf("spec = %+v", specs[0])
	}
	ph := specs[0].Phrases[0]
	if ph.LoopCount != 3 || ph.Name != "A" {
		t.Errorf("phrase = %+v", ph)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing project file accepted")
	}
}
