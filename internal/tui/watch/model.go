package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/zjetlab/zjetrun/internal/ledger"
)

// RunSource is the read side of the ledger the watch view polls.
type RunSource interface {
	LatestRun(ctx context.Context) (*ledger.Run, error)
	Run(ctx context.Context, runID string) (*ledger.Run, error)
	Invocations(ctx context.Context, runID string) ([]*ledger.Invocation, error)
}

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	source RunSource
	// runID pins the view to one run; empty follows the latest run.
	runID string

	width  int
	height int

	run    *ledger.Run
	invs   []*ledger.Invocation
	counts statusCounts

	invTable table.Model
	theme    Theme

	lastError string
}

type statusCounts struct {
	queued    int
	running   int
	succeeded int
	failed    int
	skipped   int
}

type tickMsg time.Time

type runSnapshotMsg struct {
	run  *ledger.Run
	invs []*ledger.Invocation
}

type errMsg error

// New creates a new watch TUI model. An empty runID follows the latest run.
func New(source RunSource, runID string) *Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ST", Width: 2},
			{Title: "Suffix", Width: 36},
			{Title: "Channel", Width: 8},
			{Title: "Level", Width: 10},
			{Title: "Type", Width: 5},
			{Title: "Duration", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return &Model{
		source:   source,
		runID:    runID,
		invTable: t,
		theme:    NewDefaultTheme(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchSnapshot(),
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.invTable.SetWidth(m.width - 6)

	case tickMsg:
		return m, tea.Batch(
			m.fetchSnapshot(),
			tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		)

	case runSnapshotMsg:
		m.run = msg.run
		m.invs = msg.invs
		m.counts = countStatuses(msg.invs)
		m.lastError = ""
		m.updateTable()

	case errMsg:
		m.lastError = msg.Error()
	}

	m.invTable, cmd = m.invTable.Update(msg)
	return m, cmd
}

func (m *Model) updateTable() {
	rows := make([]table.Row, 0, len(m.invs))
	for _, inv := range m.invs {
		rows = append(rows, table.Row{
			m.statusSymbol(inv.Status),
			inv.Suffix,
			inv.Channel,
			inv.Level,
			string(inv.InputType),
			invDuration(inv),
		})
	}
	m.invTable.SetRows(rows)
}

func (m Model) statusSymbol(status ledger.Status) string {
	switch status {
	case ledger.StatusQueued:
		return m.theme.StatusQueued.Render("○")
	case ledger.StatusRunning:
		return m.theme.StatusRunning.Render("◉")
	case ledger.StatusSucceeded:
		return m.theme.StatusOK.Render("●")
	case ledger.StatusFailed:
		return m.theme.StatusFailed.Render("∅")
	case ledger.StatusTimedOut:
		return m.theme.StatusFailed.Render("◑")
	case ledger.StatusInterrupted:
		return m.theme.StatusFailed.Render("◔")
	case ledger.StatusSkipped:
		return m.theme.StatusSkipped.Render("◌")
	}
	return "○"
}

func invDuration(inv *ledger.Invocation) string {
	if inv.StartedAt == nil {
		return "-"
	}
	end := time.Now()
	if inv.CompletedAt != nil {
		end = *inv.CompletedAt
	}
	return end.Sub(*inv.StartedAt).Round(time.Millisecond).String()
}

func countStatuses(invs []*ledger.Invocation) statusCounts {
	var c statusCounts
	for _, inv := range invs {
		switch inv.Status {
		case ledger.StatusQueued:
			c.queued++
		case ledger.StatusRunning:
			c.running++
		case ledger.StatusSucceeded:
			c.succeeded++
		case ledger.StatusFailed, ledger.StatusTimedOut, ledger.StatusInterrupted:
			c.failed++
		case ledger.StatusSkipped:
			c.skipped++
		}
	}
	return c
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing watch..."
	}

	header := m.renderHeader()
	invocations := m.theme.Border.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render("Invocations"),
			m.invTable.View(),
		),
	)

	var errBar string
	if m.lastError != "" {
		errBar = m.theme.StatusFailed.Render(fmt.Sprintf(" ⚠ %s", m.lastError))
	}

	help := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit • [↑/↓] Scroll Invocations")

	parts := []string{header, invocations}
	if errBar != "" {
		parts = append(parts, errBar)
	}
	parts = append(parts, help)

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

func (m Model) renderHeader() string {
	if m.run == nil {
		return m.theme.Border.Width(m.width - 4).Render(
			m.theme.Dim.Render(" No runs recorded yet..."),
		)
	}

	status := m.theme.StatusRunning.Render(strings.ToUpper(string(m.run.Status)))
	switch m.run.Status {
	case ledger.StatusSucceeded:
		status = m.theme.StatusOK.Render("SUCCEEDED")
	case ledger.StatusFailed, ledger.StatusTimedOut, ledger.StatusInterrupted:
		status = m.theme.StatusFailed.Render(strings.ToUpper(string(m.run.Status)))
	}

	items := []string{
		fmt.Sprintf("Run: %s", shortID(m.run.ID)),
		fmt.Sprintf("Sample: %s", m.run.Sample),
		fmt.Sprintf("Status: %s", status),
		fmt.Sprintf("Done: %d/%d  Failed: %d",
			m.counts.succeeded, len(m.invs), m.counts.failed),
	}

	cell := (m.width - 4) / len(items)
	rendered := make([]string, 0, len(items))
	for _, item := range items {
		rendered = append(rendered, lipgloss.NewStyle().Width(cell).Render(item))
	}

	return m.theme.Border.Width(m.width - 4).Render(
		lipgloss.JoinHorizontal(lipgloss.Top, rendered...),
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (m Model) fetchSnapshot() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		var (
			run *ledger.Run
			err error
		)
		if m.runID != "" {
			run, err = m.source.Run(ctx, m.runID)
		} else {
			run, err = m.source.LatestRun(ctx)
		}
		if err != nil {
			return errMsg(err)
		}
		if run == nil {
			return runSnapshotMsg{}
		}

		invs, err := m.source.Invocations(ctx, run.ID)
		if err != nil {
			return errMsg(err)
		}
		return runSnapshotMsg{run: run, invs: invs}
	}
}
