package main

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-jsapi/conformance"
	"github.com/wippyai/wasm-jsapi/engine"
)

var (
	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type caseRef struct {
	suite string
	c     conformance.Case
}

func (r caseRef) name() string { return r.suite + "/" + r.c.Name }

type interactiveModel struct {
	err      error
	backend  engine.Backend
	report   *conformance.Report
	cfg      Config
	all      []caseRef
	visible  []caseRef
	filter   textinput.Model
	selected int
	state    modelState
}

type modelState int

const (
	stateBrowse modelState = iota
	stateFilter
	stateRunning
	stateShowResult
)

func newInteractiveModel(cfg Config, suites []conformance.Suite) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "regexp"
	ti.Prompt = "filter: "
	ti.Width = 40

	m := &interactiveModel{cfg: cfg, filter: ti, state: stateBrowse}
	for _, s := range suites {
		for _, c := range s.Cases {
			m.all = append(m.all, caseRef{suite: s.Name, c: c})
		}
	}
	m.visible = m.all
	return m
}

type backendMsg struct {
	err     error
	backend engine.Backend
}

type reportMsg struct {
	err    error
	report *conformance.Report
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.openBackend
}

func (m *interactiveModel) openBackend() tea.Msg {
	name := m.cfg.backends()[0]
	b, err := engine.New(context.Background(), name, &m.cfg.Engine)
	if err != nil {
		return backendMsg{err: err}
	}
	return backendMsg{backend: b}
}

func (m *interactiveModel) close() {
	if m.backend != nil {
		_ = m.backend.Close(context.Background())
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateFilter {
			switch msg.String() {
			case "enter", "esc":
				m.filter.Blur()
				m.state = stateBrowse
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			m.applyFilter()
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			m.close()
			return m, tea.Quit

		case "up", "k":
			if m.state == stateBrowse && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateBrowse && m.selected < len(m.visible)-1 {
				m.selected++
			}

		case "/":
			if m.state == stateBrowse {
				m.state = stateFilter
				return m, m.filter.Focus()
			}

		case "enter":
			switch m.state {
			case stateBrowse:
				if len(m.visible) == 0 || m.backend == nil {
					return m, nil
				}
				m.state = stateRunning
				return m, m.runCases(m.visible[m.selected : m.selected+1])
			case stateShowResult:
				m.state = stateBrowse
				m.report = nil
				m.err = nil
			}

		case "a":
			if m.state == stateBrowse && len(m.visible) > 0 && m.backend != nil {
				m.state = stateRunning
				return m, m.runCases(m.visible)
			}

		case "esc":
			if m.state == stateShowResult {
				m.state = stateBrowse
				m.report = nil
				m.err = nil
			}
		}

	case backendMsg:
		m.backend = msg.backend
		m.err = msg.err

	case reportMsg:
		m.report = msg.report
		m.err = msg.err
		m.state = stateShowResult
	}
	return m, nil
}

func (m *interactiveModel) applyFilter() {
	m.selected = 0
	pattern := strings.TrimSpace(m.filter.Value())
	if pattern == "" {
		m.visible = m.all
		return
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		// keep the previous selection while the pattern is incomplete
		return
	}
	m.visible = nil
	for _, ref := range m.all {
		if re.MatchString(ref.name()) {
			m.visible = append(m.visible, ref)
		}
	}
}

func (m *interactiveModel) runCases(refs []caseRef) tea.Cmd {
	var suites []conformance.Suite
	for _, ref := range refs {
		if n := len(suites); n > 0 && suites[n-1].Name == ref.suite {
			suites[n-1].Cases = append(suites[n-1].Cases, ref.c)
			continue
		}
		suites = append(suites, conformance.Suite{Name: ref.suite, Cases: []conformance.Case{ref.c}})
	}
	backend := m.backend
	return func() tea.Msg {
		rep, err := conformance.NewRunner().Run(context.Background(), backend, suites...)
		return reportMsg{report: rep, err: err}
	}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return failStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.backend == nil {
		return "Opening backend..."
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("WebAssembly JS-API conformance"))
	b.WriteString(" ")
	b.WriteString(m.backend.Name())
	b.WriteString(" ")
	b.WriteString(skipStyle.Render(m.backend.Features().String()))
	b.WriteString("\n\n")

	switch m.state {
	case stateBrowse, stateFilter:
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
		for i, ref := range m.window() {
			line := ref.name()
			if missing := ref.c.Requires &^ m.backend.Features(); missing != 0 {
				line += " " + skipStyle.Render("["+missing.String()+"]")
			}
			if i == m.selected-m.offset() {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "\n%d of %d cases\n", len(m.visible), len(m.all))
		b.WriteString(helpStyle.Render("↑/↓ select • enter run • a run all shown • / filter • q quit"))

	case stateRunning:
		b.WriteString("Running...")

	case stateShowResult:
		if m.err != nil {
			b.WriteString(failStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n")
		}
		if m.report != nil {
			writeText(&b, painter(true), m.report)
		}
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}
	return b.String()
}

const pageSize = 20

func (m *interactiveModel) offset() int {
	if m.selected < pageSize {
		return 0
	}
	return m.selected - pageSize + 1
}

func (m *interactiveModel) window() []caseRef {
	start := m.offset()
	end := min(start+pageSize, len(m.visible))
	return m.visible[start:end]
}

func runInteractive(cfg Config, suites []conformance.Suite) error {
	p := tea.NewProgram(newInteractiveModel(cfg, suites), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
