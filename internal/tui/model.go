package tui

import (
	"fmt"
	"strings"

	"borealis/internal/protocol"
	"borealis/internal/ui"
	"borealis/pkg/transaction"
)

// State is the lifecycle of the live view.
type State int

const (
	StateRunning State = iota
	StateCanceling
	StateDone
)

// maxLogLines bounds the in-memory log buffer. The journal and report
// carry the durable outcome; the view only keeps a window of recent
// output and drops the oldest lines past this.
const maxLogLines = 10000

// maxEntryRows caps the per-entry status block so a big update still
// leaves room for the log.
const maxEntryRows = 8

// Model holds the view state apart from the terminal plumbing, so the
// transitions stay testable.
type Model struct {
	title   string
	entries []transaction.Entry
	lines   []string
	state   State
	report  *transaction.Report

	width     int
	height    int
	follow    bool
	inputOpen bool

	styles *Styles
	keys   KeyMap
}

// NewModel creates the view state for one transaction.
func NewModel(title string, entries []transaction.Entry) *Model {
	return &Model{
		title:   title,
		entries: entries,
		state:   StateRunning,
		follow:  true,
		styles:  DefaultStyles(),
		keys:    DefaultKeyMap(),
	}
}

// AppendEvent adds one streamed line to the log buffer. Stderr lines
// are tinted so diagnostics stand out from regular tool output.
func (m *Model) AppendEvent(ev protocol.LogEvent) {
	line := ev.Line
	if ev.Stream == protocol.StreamStderr {
		line = m.styles.Stderr.Render(line)
	}
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
}

// LineCount returns how many log lines are buffered.
func (m *Model) LineCount() int {
	return len(m.lines)
}

// LogContent joins the buffered log for the viewport.
func (m *Model) LogContent() string {
	return strings.Join(m.lines, "\n")
}

// SetEntries replaces the status snapshot shown in the entry block.
func (m *Model) SetEntries(entries []transaction.Entry) {
	m.entries = entries
}

// SetSize records the terminal dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// MarkCanceling flips a running view into the canceling state. Once
// done, the state stays done.
func (m *Model) MarkCanceling() {
	if m.state == StateRunning {
		m.state = StateCanceling
	}
}

// Finish records the final report and ends the run.
func (m *Model) Finish(rep *transaction.Report) {
	m.report = rep
	m.state = StateDone
}

// Done reports whether the transaction has finished.
func (m *Model) Done() bool {
	return m.state == StateDone
}

// stateLabel renders the header tag for the current state.
func (m *Model) stateLabel() string {
	switch m.state {
	case StateCanceling:
		return m.styles.Warning.Render("canceling, letting the current step finish")
	case StateDone:
		switch {
		case m.report == nil:
			return m.styles.Error.Render("failed")
		case m.report.Succeeded():
			return m.styles.Success.Render("succeeded")
		case m.report.Failure == transaction.FailureCanceled:
			return m.styles.Warning.Render("canceled")
		default:
			return m.styles.Error.Render("failed")
		}
	default:
		return m.styles.State.Render("running")
	}
}

// entryRows renders one styled row per entry, clamped to maxEntryRows.
// When clamped, rows still running or queued win over finished ones so
// the active work stays visible.
func (m *Model) entryRows() []string {
	entries := m.entries
	var overflow int
	if len(entries) > maxEntryRows {
		entries = selectVisible(entries, maxEntryRows-1)
		overflow = len(m.entries) - len(entries)
	}

	rows := make([]string, 0, len(entries)+1)
	for _, e := range entries {
		style := m.styles.StatusStyle(e.Status)
		row := fmt.Sprintf(" %s %s %s %s",
			style.Render(ui.StatusSymbol(e.Status)),
			style.Render(string(e.Action)),
			m.styles.EntryName.Render(e.Ref.Name),
			m.styles.EntrySource.Render("["+string(e.Ref.Source)+"]"),
		)
		rows = append(rows, row)
	}
	if overflow > 0 {
		rows = append(rows, m.styles.Muted.Render(fmt.Sprintf("   and %d more", overflow)))
	}
	return rows
}

// selectVisible keeps up to max entries, preferring those not yet in a
// terminal state and keeping queue order within each group.
func selectVisible(entries []transaction.Entry, max int) []transaction.Entry {
	if len(entries) <= max {
		return entries
	}
	kept := make([]transaction.Entry, 0, max)
	for _, e := range entries {
		if !e.Status.Terminal() {
			kept = append(kept, e)
			if len(kept) == max {
				return kept
			}
		}
	}
	for _, e := range entries {
		if e.Status.Terminal() {
			kept = append(kept, e)
			if len(kept) == max {
				break
			}
		}
	}
	return kept
}

// logHeight computes the rows left for the log viewport after the
// header, entry block, optional input line, and footer.
func (m *Model) logHeight() int {
	used := 2 // header row and the blank line under it
	used += len(m.entryRows())
	used++ // blank line between entries and log
	if m.inputOpen {
		used++
	}
	used++ // footer
	h := m.height - used
	if h < 3 {
		h = 3
	}
	return h
}
