// Package tui implements the interactive dashboard: a live table of TCP
// listeners with a kill flow driven by the termination state machine.
package tui

import (
	"context"
	"fmt"
	"os/user"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Kade-Heyborne/port-manager/internal/port"
	"github.com/Kade-Heyborne/port-manager/internal/process"
	"github.com/Kade-Heyborne/port-manager/internal/terminate"
)

// viewState tracks which screen is currently showing.
type viewState int

const (
	viewTable viewState = iota
	viewDetail
	viewKillConfirm
	viewKillResult
	viewSearch
)

const refreshInterval = 2 * time.Second

// Messages for async operations.
type scanDoneMsg struct {
	entries []port.Entry
	err     error
}

type tickMsg time.Time

type killDoneMsg struct {
	target  port.Entry
	outcome terminate.Outcome
	err     error
}

type detailDoneMsg struct {
	detail *process.Detail
	err    error
}

// Model is the Bubbletea model for the portman dashboard.
type Model struct {
	scanner    *port.LsofScanner
	inspector  *process.Inspector
	terminator *terminate.Terminator
	timeouts   terminate.Config
	version    string

	entries  []port.Entry
	filtered []int // indices into entries for currently displayed rows

	cursor       int
	scrollOffset int
	searchQuery  string

	// Detail view state.
	detailEntry *port.Entry
	detail      *process.Detail
	detailErr   error

	// Kill flow state.
	killEntry   *port.Entry
	killForce   bool
	killOutcome terminate.Outcome
	killErr     error
	killing     bool

	currentUser string
	scanning    bool
	spinner     spinner.Model

	width  int
	height int

	currentView viewState
}

// New creates the dashboard model.
func New(scanner *port.LsofScanner, inspector *process.Inspector, terminator *terminate.Terminator, timeouts terminate.Config, version string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorCyan)

	currentUser := "unknown"
	if u, err := user.Current(); err == nil {
		currentUser = u.Username
	}

	return Model{
		scanner:     scanner,
		inspector:   inspector,
		terminator:  terminator,
		timeouts:    timeouts,
		version:     version,
		currentUser: currentUser,
		scanning:    true,
		spinner:     sp,
		currentView: viewTable,
	}
}

// Init starts the spinner and kicks off the initial scan.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.doScan(), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) doScan() tea.Cmd {
	scanner := m.scanner
	return func() tea.Msg {
		entries, err := scanner.ListListeners(context.Background())
		return scanDoneMsg{entries: entries, err: err}
	}
}

func (m Model) doKill(target port.Entry, force bool) tea.Cmd {
	terminator := m.terminator
	inspector := m.inspector
	cfg := m.timeouts
	return func() tea.Msg {
		ctx := context.Background()
		handle, err := inspector.Describe(ctx, target.PID)
		if err != nil {
			// Gone since the last scan.
			return killDoneMsg{target: target, outcome: terminate.OutcomeAlreadyGone}
		}
		outcome, err := terminator.Terminate(ctx, handle, target.Port, force, cfg, terminate.NopObserver{})
		return killDoneMsg{target: target, outcome: outcome, err: err}
	}
}

func (m Model) doInspect(pid int) tea.Cmd {
	inspector := m.inspector
	return func() tea.Msg {
		detail, err := inspector.Inspect(context.Background(), pid)
		return detailDoneMsg{detail: detail, err: err}
	}
}

// Update handles all messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if m.scanning || m.killing {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tickMsg:
		if m.currentView == viewTable && !m.killing {
			return m, tea.Batch(m.doScan(), tickCmd())
		}
		return m, tickCmd()

	case scanDoneMsg:
		m.scanning = false
		if msg.err == nil {
			m.entries = msg.entries
			sort.SliceStable(m.entries, func(i, j int) bool {
				return m.entries[i].Port < m.entries[j].Port
			})
			m.rebuildFiltered()
		}
		return m, nil

	case killDoneMsg:
		m.killing = false
		m.killOutcome = msg.outcome
		m.killErr = msg.err
		m.currentView = viewKillResult
		return m, nil

	case detailDoneMsg:
		m.detail = msg.detail
		m.detailErr = msg.err
		m.currentView = viewDetail
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		switch m.currentView {
		case viewTable:
			return m.updateTable(msg)
		case viewDetail:
			return m.updateDetail(msg)
		case viewKillConfirm:
			return m.updateKillConfirm(msg)
		case viewKillResult:
			return m.updateKillResult(msg)
		case viewSearch:
			return m.updateSearch(msg)
		}
	}

	return m, nil
}

func (m Model) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "j", "down":
		if len(m.filtered) > 0 && m.cursor < len(m.filtered)-1 {
			m.cursor++
			m.adjustScroll()
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
			m.adjustScroll()
		}
	case "K":
		if entry := m.selectedEntry(); entry != nil {
			m.killEntry = entry
			m.currentView = viewKillConfirm
		}
	case "i", "enter":
		if entry := m.selectedEntry(); entry != nil {
			m.detailEntry = entry
			m.detail = nil
			m.detailErr = nil
			return m, m.doInspect(entry.PID)
		}
	case "r":
		m.scanning = true
		return m, tea.Batch(m.doScan(), m.spinner.Tick)
	case "/":
		m.currentView = viewSearch
		m.searchQuery = ""
	case "esc":
		if m.searchQuery != "" {
			m.searchQuery = ""
			m.rebuildFiltered()
		}
	}
	return m, nil
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "backspace":
		m.currentView = viewTable
	case "K":
		if m.detailEntry != nil {
			m.killEntry = m.detailEntry
			m.currentView = viewKillConfirm
		}
	}
	return m, nil
}

func (m Model) updateKillConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y":
		if m.killEntry != nil {
			m.killing = true
			m.killForce = false
			return m, tea.Batch(m.doKill(*m.killEntry, false), m.spinner.Tick)
		}
	case "f":
		if m.killEntry != nil {
			m.killing = true
			m.killForce = true
			return m, tea.Batch(m.doKill(*m.killEntry, true), m.spinner.Tick)
		}
	case "n", "N", "esc":
		m.currentView = viewTable
		m.killEntry = nil
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateKillResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "enter", "backspace":
		m.currentView = viewTable
		m.killEntry = nil
		m.killOutcome = ""
		m.killErr = nil
		m.scanning = true
		return m, tea.Batch(m.doScan(), m.spinner.Tick)
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.currentView = viewTable
		m.rebuildFiltered()
	case "esc":
		m.currentView = viewTable
		m.searchQuery = ""
		m.rebuildFiltered()
	case "backspace":
		if len(m.searchQuery) > 0 {
			m.searchQuery = m.searchQuery[:len(m.searchQuery)-1]
			m.rebuildFiltered()
		}
	default:
		key := msg.String()
		if len(key) == 1 {
			m.searchQuery += key
			m.rebuildFiltered()
		}
	}
	return m, nil
}

func (m *Model) selectedEntry() *port.Entry {
	if len(m.filtered) == 0 || m.cursor < 0 || m.cursor >= len(m.filtered) {
		return nil
	}
	idx := m.filtered[m.cursor]
	if idx >= len(m.entries) {
		return nil
	}
	entry := m.entries[idx]
	return &entry
}

func (m *Model) rebuildFiltered() {
	m.filtered = m.filtered[:0]
	query := strings.ToLower(m.searchQuery)
	for i, e := range m.entries {
		if query != "" {
			match := strings.Contains(strings.ToLower(e.Process), query) ||
				strings.Contains(strings.ToLower(e.User), query) ||
				strings.Contains(fmt.Sprintf("%d", e.Port), query) ||
				strings.Contains(fmt.Sprintf("%d", e.PID), query)
			if !match {
				continue
			}
		}
		m.filtered = append(m.filtered, i)
	}
	if m.cursor >= len(m.filtered) {
		m.cursor = max(0, len(m.filtered)-1)
	}
	m.adjustScroll()
}

func (m *Model) adjustScroll() {
	visible := m.visibleRows()
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+visible {
		m.scrollOffset = m.cursor - visible + 1
	}
	maxOffset := max(0, len(m.filtered)-visible)
	if m.scrollOffset > maxOffset {
		m.scrollOffset = maxOffset
	}
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
}

func (m Model) visibleRows() int {
	// Header, column headers, search line, help bar.
	const reserved = 6
	return max(1, m.height-reserved)
}

// View renders the current screen.
func (m Model) View() string {
	switch m.currentView {
	case viewDetail:
		return m.viewDetail()
	case viewKillConfirm:
		return m.viewKillConfirm()
	case viewKillResult:
		return m.viewKillResult()
	case viewSearch:
		return m.viewSearch()
	default:
		return m.viewTable()
	}
}

func (m Model) viewTable() string {
	var b strings.Builder

	title := titleStyle.Render(fmt.Sprintf("portman %s", m.version))
	stats := dimStyle.Render(fmt.Sprintf("Listeners: %d", len(m.entries)))
	b.WriteString(title + "  " + stats + "\n")

	if m.scanning && len(m.entries) == 0 {
		b.WriteString("\n" + m.spinner.View() + " Scanning ports...\n")
		return b.String()
	}

	b.WriteString(headerStyle.Render(fmt.Sprintf(
		"  %-7s %-7s %-16s %-11s %s", "PORT", "PID", "PROCESS", "USER", "COMMAND",
	)) + "\n")

	if len(m.filtered) == 0 {
		if m.searchQuery != "" {
			b.WriteString("\n  No results matching: " + m.searchQuery + "\n")
		} else {
			b.WriteString("\n  No listening ports found.\n")
		}
	} else {
		end := min(m.scrollOffset+m.visibleRows(), len(m.filtered))
		for i := m.scrollOffset; i < end; i++ {
			e := m.entries[m.filtered[i]]

			cursor := "  "
			if i == m.cursor {
				cursor = cursorStyle.Render("> ")
			}

			cmd := e.Command
			maxCmdLen := max(10, m.width-50)
			if len(cmd) > maxCmdLen {
				cmd = cmd[:maxCmdLen-3] + "..."
			}

			line := fmt.Sprintf("%-7d %-7d %-16s %-11s %s",
				e.Port, e.PID, truncate(e.Process, 16), truncate(e.User, 11), cmd)
			b.WriteString(cursor + rowStyle(e.User).Render(line) + "\n")
		}

		if len(m.filtered) > m.visibleRows() {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  [%d-%d of %d]",
				m.scrollOffset+1, end, len(m.filtered))) + "\n")
		}
	}

	if m.searchQuery != "" {
		b.WriteString("\n" + dimStyle.Render(fmt.Sprintf("  filter: %s", m.searchQuery)))
	}

	b.WriteString(helpStyle.Render("j/k:navigate  K:kill  i:info  r:refresh  /:search  q:quit") + "\n")

	return b.String()
}

func (m Model) viewDetail() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("portman -- Process Detail") + "\n\n")

	if m.detailErr != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("  Error: %v", m.detailErr)) + "\n")
		b.WriteString(helpStyle.Render("\nesc:back  q:quit") + "\n")
		return b.String()
	}

	if m.detailEntry == nil {
		b.WriteString("  No listener selected.\n")
		b.WriteString(helpStyle.Render("\nesc:back  q:quit") + "\n")
		return b.String()
	}

	e := m.detailEntry
	b.WriteString(labelStyle.Render("Port:") + valueStyle.Render(fmt.Sprintf("%d/%s", e.Port, e.Protocol)) + "\n")
	b.WriteString(labelStyle.Render("Process:") + valueStyle.Render(fmt.Sprintf("%s (PID %d)", e.Process, e.PID)) + "\n")

	if d := m.detail; d != nil {
		b.WriteString(labelStyle.Render("Command:") + valueStyle.Render(d.Command) + "\n")
		b.WriteString(labelStyle.Render("User:") + valueStyle.Render(d.User) + "\n")

		if !d.StartTime.IsZero() {
			ago := time.Since(d.StartTime).Truncate(time.Second)
			b.WriteString(labelStyle.Render("Started:") + valueStyle.Render(
				fmt.Sprintf("%s ago (%s)", formatDuration(ago), d.StartTime.Format("2006-01-02 15:04:05")),
			) + "\n")
		}

		b.WriteString(labelStyle.Render("CPU:") + valueStyle.Render(fmt.Sprintf("%.1f%%", d.CPUPercent)) + "\n")
		b.WriteString(labelStyle.Render("Memory:") + valueStyle.Render(formatBytes(d.MemRSS)+" (RSS)") + "\n")

		if d.PPID > 0 {
			b.WriteString(labelStyle.Render("Parent PID:") + valueStyle.Render(fmt.Sprintf("%d", d.PPID)) + "\n")
		}

		if len(d.Children) > 0 {
			childStrs := make([]string, len(d.Children))
			for i, c := range d.Children {
				childStrs[i] = fmt.Sprintf("%d", c)
			}
			b.WriteString(labelStyle.Render("Children:") + valueStyle.Render(strings.Join(childStrs, ", ")) + "\n")
		}
	} else {
		b.WriteString(labelStyle.Render("User:") + valueStyle.Render(e.User) + "\n")
	}

	b.WriteString(helpStyle.Render("\nK:kill  esc:back  q:quit") + "\n")
	return b.String()
}

func (m Model) viewKillConfirm() string {
	var b strings.Builder

	b.WriteString(dangerStyle.Render(" KILL PROCESS ") + "\n\n")

	if m.killEntry == nil {
		b.WriteString("  No process selected.\n")
		b.WriteString(helpStyle.Render("\nesc:cancel  q:quit") + "\n")
		return b.String()
	}

	if m.killing {
		stage := "terminating"
		if m.killForce {
			stage = "force killing"
		}
		b.WriteString(fmt.Sprintf("  %s %s %s (PID %d), waiting for port %d to be released...\n",
			m.spinner.View(), stage, m.killEntry.Process, m.killEntry.PID, m.killEntry.Port))
		return b.String()
	}

	e := m.killEntry
	b.WriteString(fmt.Sprintf("  Kill process %q (PID %d) on port %d?\n\n", e.Process, e.PID, e.Port))

	if e.User == "root" || e.User != m.currentUser {
		b.WriteString(warnStyle.Render("  WARNING: This process belongs to user '"+e.User+"'.") + "\n")
		b.WriteString(warnStyle.Render("  You may need elevated privileges to kill it.") + "\n\n")
	}

	b.WriteString("  " + dimStyle.Render("[y] SIGTERM with escalation  [f] SIGKILL immediately  [n] cancel") + "\n")
	b.WriteString(helpStyle.Render("\ny:terminate  f:force  n/esc:cancel") + "\n")
	return b.String()
}

func (m Model) viewKillResult() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("portman -- Kill Result") + "\n\n")

	switch {
	case m.killErr != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("  Failed: %v", m.killErr)) + "\n")
	case m.killOutcome.Success():
		b.WriteString(successStyle.Render("  "+outcomeText(m.killOutcome, m.killEntry)) + "\n")
	default:
		b.WriteString(errorStyle.Render("  "+outcomeText(m.killOutcome, m.killEntry)) + "\n")
	}

	b.WriteString(helpStyle.Render("\nenter/esc:back  q:quit") + "\n")
	return b.String()
}

func (m Model) viewSearch() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("portman -- Search") + "\n\n")
	b.WriteString("  Type to filter: " + m.searchQuery + "_\n")
	b.WriteString(helpStyle.Render("\nenter:apply  esc:cancel") + "\n")

	return b.String()
}

// outcomeText renders a termination outcome for the result screen.
func outcomeText(o terminate.Outcome, e *port.Entry) string {
	name, pid, portNum := "process", 0, 0
	if e != nil {
		name, pid, portNum = e.Process, e.PID, e.Port
	}
	switch o {
	case terminate.OutcomeAlreadyGone:
		return fmt.Sprintf("%s (PID %d) was already gone; port %d is free", name, pid, portNum)
	case terminate.OutcomeTerminatedGracefully:
		return fmt.Sprintf("%s (PID %d) terminated gracefully; port %d is free", name, pid, portNum)
	case terminate.OutcomeTerminatedForcefully:
		return fmt.Sprintf("%s (PID %d) killed; port %d is free", name, pid, portNum)
	case terminate.OutcomeTimedOutGraceful:
		return fmt.Sprintf("port %d was not released within the graceful window", portNum)
	case terminate.OutcomeTimedOutForceful:
		return fmt.Sprintf("port %d is still bound after SIGKILL (possibly stuck in the kernel)", portNum)
	case terminate.OutcomePermissionDenied:
		return fmt.Sprintf("permission denied signaling %s (PID %d); try sudo", name, pid)
	default:
		return string(o)
	}
}

// truncate shortens s to maxLen, appending "..." if cut.
func truncate(s string, maxLen int) string {
	if maxLen < 4 {
		maxLen = 4
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	hours := int(d.Hours())
	if hours < 24 {
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%d days %d hours", hours/24, hours%24)
}

func formatBytes(b int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
