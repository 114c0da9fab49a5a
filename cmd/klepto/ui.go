package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"klepto/internal/engine/analysis"
	"klepto/internal/engine/rules"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	denyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type item struct {
	title, desc string
	severity    rules.Severity
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

type model struct {
	list       list.Model
	findings   []rules.Finding
	coverage   analysis.DocCoverage
	lastUpdate time.Time
	fileCount  int
	crateName  string
}

type updateMsg struct {
	findings  []rules.Finding
	coverage  analysis.DocCoverage
	fileCount int
	crateName string
	at        time.Time
}

func newUpdateMsg(res *Result) updateMsg {
	return updateMsg{
		findings:  res.Findings,
		coverage:  res.Coverage,
		fileCount: len(res.Analysis.Files),
		crateName: res.Analysis.CrateName,
		at:        res.At,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v-4)
	case updateMsg:
		m.findings = msg.findings
		m.coverage = msg.coverage
		m.fileCount = msg.fileCount
		m.crateName = msg.crateName
		m.lastUpdate = msg.at

		items := make([]list.Item, 0, len(m.findings))
		for _, f := range m.findings {
			items = append(items, item{
				title:    fmt.Sprintf("%s %s", f.Severity, f.Code),
				desc:     fmt.Sprintf("%s (%s)", f.Message, f.Location),
				severity: f.Severity,
			})
		}
		m.list.SetItems(items)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) counts() (deny, warn int) {
	for _, f := range m.findings {
		switch f.Severity {
		case rules.Deny:
			deny++
		case rules.Warn:
			warn++
		}
	}
	return deny, warn
}

func (m model) View() string {
	status := statusStyle.Render(fmt.Sprintf("Last update: %v | %s | %d files | docs %.1f%%",
		m.lastUpdate.Local().Format("15:04:05"), m.crateName, m.fileCount, m.coverage.Percent))

	var summary string
	if len(m.findings) == 0 {
		summary = successStyle.Render("No findings")
	} else {
		deny, warn := m.counts()
		summary = fmt.Sprintf("%s | %s | %d total",
			denyStyle.Render(fmt.Sprintf("%d Deny", deny)),
			warnStyle.Render(fmt.Sprintf("%d Warn", warn)),
			len(m.findings))
	}

	header := fmt.Sprintf("%s\n%s | %s\n", titleStyle("Klepto"), status, summary)
	return docStyle.Render(header + "\n" + m.list.View())
}

func initialModel() model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Findings"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	return model{
		list:       l,
		lastUpdate: time.Now(),
	}
}

// RunUI blocks until the user quits or ctx is cancelled. Watcher re-runs are
// pushed into the program as updateMsg.
func (a *App) RunUI(ctx context.Context, initial *Result) error {
	p := tea.NewProgram(initialModel(), tea.WithAltScreen(), tea.WithContext(ctx))
	a.teaProgram.Store(p)
	defer a.teaProgram.Store(nil)

	if initial != nil {
		go p.Send(newUpdateMsg(initial))
	}
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
