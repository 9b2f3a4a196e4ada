package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type doneMsg struct {
	details []string
	err     error
}

type tickMsg time.Time

type runModel struct {
	title   string
	started time.Time
	elapsed time.Duration
	details []string
	err     error
	done    bool
	action  func(context.Context) ([]string, error)
}

func (m runModel) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			details, err := m.action(ctx)
			return doneMsg{details: details, err: err}
		},
		tick(),
	)
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tickMsg:
		m.elapsed = time.Since(m.started)
		return m, tick()
	case doneMsg:
		m.details = msg.details
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m runModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteByte('\n')
	if !m.done {
		fmt.Fprintf(&b, "\nrunning... %s\n", m.elapsed.Truncate(time.Second))
		return b.String()
	}
	if m.err != nil {
		fmt.Fprintf(&b, "%s: %v\n", failStyle.Render("FAILED"), m.err)
	} else {
		b.WriteString(okStyle.Render("OK"))
		b.WriteByte('\n')
	}
	for _, d := range m.details {
		b.WriteString("- " + d + "\n")
	}
	return b.String()
}

// Run executes action under a bubbletea status view and returns its result.
func Run(title string, action func(context.Context) ([]string, error)) ([]string, error) {
	p := tea.NewProgram(runModel{title: title, started: time.Now(), action: action})
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	res := final.(runModel)
	return res.details, res.err
}
