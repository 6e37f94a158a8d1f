// Package ui renders the live pad grid and sequence states in the
// terminal. In wall-clock mode its tick loop is also the playback driver:
// every frame advances the players by the measured elapsed time.
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gbraad-music/samplecrate-sub002/player"
)

const tickInterval = 60 * time.Millisecond

// padKeys maps keyboard rows onto the 32-pad grid, top row first.
var padKeys = [4]string{
	"12345678",
	"qwertyui",
	"asdfghjk",
	"zxcvbnm,",
}

// Options wires the monitor to the playback core. Tick runs once per
// frame with the measured wall-clock delta; in audio-driven sessions the
// host passes a no-op and the monitor only renders.
type Options struct {
	Pads        *player.PadManager
	Performance *player.PerformanceManager

	Trigger func(pad int) error
	StopAll func()
	Tick    func(deltaMS float64)
}

type tickMsg time.Time

type model struct {
	opts    Options
	last    time.Time
	message string
}

// Run blocks inside the bubbletea event loop until the user quits.
func Run(opts Options) error {
	p := tea.NewProgram(model{opts: opts, last: time.Now()}, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		now := time.Time(msg)
		if m.opts.Tick != nil {
			m.opts.Tick(now.Sub(m.last).Seconds() * 1000)
		}
		m.last = now
		return m, tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			if m.opts.StopAll != nil {
				m.opts.StopAll()
			}
			return m, tea.Quit
		case " ":
			if m.opts.StopAll != nil {
				m.opts.StopAll()
			}
			m.message = "all stopped"
			return m, nil
		}
		if pad, ok := padForKey(msg.String()); ok {
			if m.opts.Trigger != nil {
				if err := m.opts.Trigger(pad); err != nil {
					m.message = fmt.Sprintf("pad %d: %v", pad, err)
				} else {
					m.message = fmt.Sprintf("pad %d", pad)
				}
			}
		}
		return m, nil
	}
	return m, nil
}

func padForKey(key string) (int, bool) {
	if len(key) != 1 {
		return 0, false
	}
	for row, keys := range padKeys {
		if col := strings.IndexByte(keys, key[0]); col >= 0 {
			return row*8 + col, true
		}
	}
	return 0, false
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FFFF"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))

	padEmpty   = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
	padLoaded  = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	padPending = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")).Bold(true)
	padActive  = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#00AA00")).
			Bold(true)

	seqPlaying = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	seqStopped = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("samplecrate") + "\n\n")

	for row := 0; row < 4; row++ {
		for col := 0; col < 8; col++ {
			pad := row*8 + col
			cell := fmt.Sprintf(" %c ", padKeys[row][col])
			b.WriteString(m.padStyle(pad).Render(cell) + " ")
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.opts.Performance != nil {
		for i := 0; i < player.MaxSequences; i++ {
			s := m.opts.Performance.Sequence(i)
			if s == nil {
				continue
			}
			line := fmt.Sprintf("%2d %-16s phrase %d/%d  %5.1fs/%5.1fs",
				i, s.Name(), s.CurrentPhrase()+1, s.Len(), s.Position(), s.Duration())
			if s.IsPlaying() {
				if s.PendingStart() {
					b.WriteString(padPending.Render(line+"  armed") + "\n")
				} else {
					b.WriteString(seqPlaying.Render(line+"  playing") + "\n")
				}
			} else {
				b.WriteString(seqStopped.Render(line) + "\n")
			}
		}
		b.WriteString("\n")
	}

	if m.message != "" {
		b.WriteString(m.message + "\n")
	}
	b.WriteString(helpStyle.Render("keys: trigger pad • space: stop all • esc: quit"))
	return b.String()
}

func (m model) padStyle(pad int) lipgloss.Style {
	if m.opts.Pads == nil || !m.opts.Pads.Occupied(pad) {
		return padEmpty
	}
	p := m.opts.Pads.Player(pad)
	switch {
	case p.PendingStart():
		return padPending
	case p.IsPlaying():
		return padActive
	default:
		return padLoaded
	}
}
