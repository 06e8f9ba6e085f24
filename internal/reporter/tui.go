package reporter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/snipharness/internal/snippet"
)

var spinnerChars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	runStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14")) // cyan
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	skipStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type tickMsg time.Time

// TUIModel is the Bubbletea model for the live run display.
type TUIModel struct {
	ids        []string // all snippet ids, sorted
	getResults func() map[string]*snippet.RunResult
	cancelRun  func() // called on 'q' to cancel the run context

	results      map[string]*snippet.RunResult
	scrollOffset int
	frame        int
	width        int
	height       int
}

// NewTUIModel creates a TUI over the orchestrator's results snapshot.
func NewTUIModel(ids []string, getResults func() map[string]*snippet.RunResult, cancelRun func()) TUIModel {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return TUIModel{
		ids:        sorted,
		getResults: getResults,
		cancelRun:  cancelRun,
		results:    make(map[string]*snippet.RunResult),
	}
}

// Init implements tea.Model.
func (m TUIModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancelRun != nil {
				m.cancelRun()
			}
			return m, tea.Quit

		case "j", "down":
			m.scrollDown(1)

		case "k", "up":
			m.scrollUp(1)

		case "g", "home":
			m.scrollOffset = 0

		case "G", "end":
			m.scrollOffset = m.maxScroll()

		case "pgdown":
			m.scrollDown(m.visibleRows())

		case "pgup":
			m.scrollUp(m.visibleRows())
		}

	case tickMsg:
		m.results = m.getResults()
		m.frame++
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

func (m *TUIModel) scrollDown(n int) {
	m.scrollOffset += n
	if max := m.maxScroll(); m.scrollOffset > max {
		m.scrollOffset = max
	}
}

func (m *TUIModel) scrollUp(n int) {
	m.scrollOffset -= n
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
}

func (m TUIModel) visibleRows() int {
	// header(1) + progress(1) + blank(1) + help(1) = 4 reserved lines
	avail := m.height - 4
	if avail < 3 {
		return 3
	}
	return avail
}

func (m TUIModel) maxScroll() int {
	if len(m.ids) <= m.visibleRows() {
		return 0
	}
	return len(m.ids) - m.visibleRows()
}

// View implements tea.Model.
func (m TUIModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	var passed, running, failed, skipped, queued int
	for _, res := range m.results {
		switch res.Status {
		case snippet.StatusPass:
			passed++
		case snippet.StatusRunning:
			running++
		case snippet.StatusFail, snippet.StatusToolchainError, snippet.StatusTimeout:
			failed++
		case snippet.StatusSkipped:
			skipped++
		default:
			queued++
		}
	}
	queued += len(m.ids) - len(m.results)

	b.WriteString(headerStyle.Render(fmt.Sprintf("snipharness — %d snippets", len(m.ids))))
	b.WriteString("\n")
	b.WriteString(m.progressLine(passed, running, failed, skipped, queued))
	b.WriteString("\n")

	rows := m.buildRows()
	vis := m.visibleRows()
	start := m.scrollOffset
	if start > len(rows) {
		start = len(rows)
	}
	end := start + vis
	if end > len(rows) {
		end = len(rows)
	}

	if start > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  ↑ %d more above", start)))
		b.WriteString("\n")
	}
	for i := start; i < end; i++ {
		b.WriteString(rows[i])
		b.WriteString("\n")
	}
	if end < len(rows) {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  ↓ %d more below", len(rows)-end)))
		b.WriteString("\n")
	}

	used := 2 + (end - start) + 1
	if start > 0 {
		used++
	}
	if end < len(rows) {
		used++
	}
	for i := used; i < m.height-1; i++ {
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("  ↑↓/jk: scroll  g/G: top/bottom  q: quit"))

	return b.String()
}

// buildRows orders lines failed → running → passed → skipped → queued so
// problems stay visible at the top.
func (m TUIModel) buildRows() []string {
	var failed, running, passed, skipped, queued []string
	spinner := spinnerChars[m.frame%len(spinnerChars)]

	for _, id := range m.ids {
		res := m.results[id]
		if res == nil || res.Status == snippet.StatusPending {
			queued = append(queued, dimStyle.Render(fmt.Sprintf("  ─ %-10s %s", "queued", id)))
			continue
		}

		switch res.Status {
		case snippet.StatusRunning:
			elapsed := time.Since(res.StartedAt).Truncate(time.Second)
			running = append(running, runStyle.Render(fmt.Sprintf("  %s %-10s %-45s %s", spinner, "running", id, elapsed)))
		case snippet.StatusPass:
			passed = append(passed, doneStyle.Render(fmt.Sprintf("  ✓ %-10s %-45s %dms%s", "pass", id, res.DurationMS, retrySuffix(res))))
		case snippet.StatusSkipped:
			skipped = append(skipped, skipStyle.Render(fmt.Sprintf("  ⊘ %-10s %-45s %s", "skipped", id, res.Reason)))
		default:
			reason := res.Reason
			if len(reason) > 40 {
				reason = reason[:40] + "..."
			}
			label := strings.ToLower(res.Status.String())
			failed = append(failed, failedStyle.Render(fmt.Sprintf("  ✗ %-10s %-45s %s", label, id, reason)))
		}
	}

	rows := make([]string, 0, len(m.ids))
	rows = append(rows, failed...)
	rows = append(rows, running...)
	rows = append(rows, passed...)
	rows = append(rows, skipped...)
	rows = append(rows, queued...)
	return rows
}

func (m TUIModel) progressLine(passed, running, failed, skipped, queued int) string {
	var parts []string
	if passed > 0 {
		parts = append(parts, doneStyle.Render(fmt.Sprintf("%d passed", passed)))
	}
	if running > 0 {
		parts = append(parts, runStyle.Render(fmt.Sprintf("%d running", running)))
	}
	if failed > 0 {
		parts = append(parts, failedStyle.Render(fmt.Sprintf("%d failed", failed)))
	}
	if skipped > 0 {
		parts = append(parts, skipStyle.Render(fmt.Sprintf("%d skipped", skipped)))
	}
	if queued > 0 {
		parts = append(parts, dimStyle.Render(fmt.Sprintf("%d queued", queued)))
	}
	return fmt.Sprintf("  %s", strings.Join(parts, "  "))
}
