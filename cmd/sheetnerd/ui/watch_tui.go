package ui

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// WatchResult is one settled watch event after re-validation, pushed into
// the dashboard with Program.Send.
type WatchResult struct {
	Path     string
	Op       string
	Format   string
	Verdict  string // PASS, FAIL, ERROR or REMOVED
	Detail   string
	Errors   int
	Warnings int
	When     time.Time
}

// WatchModel is the live dashboard for watch mode: a spinner while idle
// and one table row per sheet seen so far, newest activity on top.
type WatchModel struct {
	dir      string
	spinner  spinner.Model
	table    table.Model
	styles   Styles
	results  map[string]WatchResult
	events   int
	width    int
	quitting bool
}

// NewWatchModel builds the dashboard for one watched directory.
func NewWatchModel(dir string, styles Styles) WatchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	t := table.New(
		table.WithColumns(watchColumns(100)),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	ts := table.DefaultStyles()
	ts.Header = ts.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(styles.Theme.Border).
		Bold(true)
	ts.Selected = ts.Selected.
		Foreground(styles.Theme.Foreground).
		Bold(true)
	t.SetStyles(ts)

	return WatchModel{
		dir:     dir,
		spinner: sp,
		table:   t,
		styles:  styles,
		results: make(map[string]WatchResult),
	}
}

func watchColumns(width int) []table.Column {
	file := width - 52
	if file < 20 {
		file = 20
	}
	return []table.Column{
		{Title: "File", Width: file},
		{Title: "Format", Width: 7},
		{Title: "Status", Width: 8},
		{Title: "Issues", Width: 16},
		{Title: "Checked", Width: 9},
	}
}

// Init starts the spinner.
func (m WatchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles key presses, window resizes, spinner ticks and incoming
// watch results.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.table.SetColumns(watchColumns(msg.Width))
		if msg.Height > 10 {
			m.table.SetHeight(msg.Height - 6)
		}
		return m, nil

	case WatchResult:
		m.results[msg.Path] = msg
		m.events++
		m.table.SetRows(m.rows())
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// rows flattens the result map, newest activity first.
func (m WatchModel) rows() []table.Row {
	results := make([]WatchResult, 0, len(m.results))
	for _, r := range m.results {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].When.Equal(results[j].When) {
			return results[i].When.After(results[j].When)
		}
		return results[i].Path < results[j].Path
	})

	rows := make([]table.Row, 0, len(results))
	for _, r := range results {
		issues := ""
		switch r.Verdict {
		case "REMOVED":
		case "ERROR":
			issues = r.Detail
		default:
			issues = fmt.Sprintf("%d err, %d warn", r.Errors, r.Warnings)
		}
		rows = append(rows, table.Row{
			filepath.Base(r.Path),
			r.Format,
			r.Verdict,
			issues,
			r.When.Format("15:04:05"),
		})
	}
	return rows
}

// View renders the dashboard.
func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}

	header := fmt.Sprintf("%s %s %s",
		m.spinner.View(),
		m.styles.Title.Render("Watching "+m.dir),
		m.styles.Muted.Render(fmt.Sprintf("(%d events)", m.events)))

	body := m.styles.Muted.Render("  waiting for sheet changes...")
	if len(m.results) > 0 {
		body = m.table.View()
	}

	footer := m.styles.Muted.Render("q to quit")

	return fmt.Sprintf("%s\n\n%s\n\n%s\n", header, body, footer)
}
