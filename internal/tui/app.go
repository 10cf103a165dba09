package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"borealis/internal/broker"
	"borealis/internal/protocol"
	"borealis/pkg/transaction"
)

// Messages for the asynchronous transaction feed.
type (
	// eventMsg carries one streamed output line from the helper.
	eventMsg struct {
		ev protocol.LogEvent
	}

	// streamClosedMsg arrives when the event channel is exhausted.
	streamClosedMsg struct{}

	// doneMsg carries the final report once execution finishes.
	doneMsg struct {
		report *transaction.Report
	}
)

// App drives the live view of one running transaction.
type App struct {
	*Model
	handle *broker.Handle

	viewport  viewport.Model
	spinner   spinner.Model
	textInput textinput.Model
	ready     bool
}

// NewApp creates the live view for a submitted transaction.
func NewApp(title string, handle *broker.Handle) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ColorPrimary)

	ti := textinput.New()
	ti.Placeholder = "line for the running tool"
	ti.CharLimit = 200

	return &App{
		Model:     NewModel(title, handle.Status()),
		handle:    handle,
		spinner:   sp,
		textInput: ti,
	}
}

// Init starts the spinner and the two listeners feeding the view.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.nextEvent(), a.waitDone())
}

// nextEvent receives one output line. It is re-issued after every
// eventMsg so the channel drains without blocking the update loop.
func (a *App) nextEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-a.handle.Events()
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg{ev: ev}
	}
}

// waitDone blocks until the broker finishes and delivers the report.
func (a *App) waitDone() tea.Cmd {
	return func() tea.Msg {
		rep, _ := a.handle.Wait(context.Background())
		return doneMsg{report: rep}
	}
}

// Update handles all messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetSize(msg.Width, msg.Height)
		if !a.ready {
			a.viewport = viewport.New(msg.Width, a.logHeight())
			a.viewport.SetContent(a.LogContent())
			a.ready = true
		}
		a.layout()

	case tea.KeyMsg:
		return a.updateKeys(msg)

	case eventMsg:
		a.AppendEvent(msg.ev)
		a.SetEntries(a.handle.Status())
		a.syncLog()
		cmds = append(cmds, a.nextEvent())

	case streamClosedMsg:
		// Nothing left to stream. doneMsg still delivers the outcome.

	case doneMsg:
		a.Finish(msg.report)
		a.SetEntries(a.handle.Status())
		a.inputOpen = false
		a.textInput.Blur()
		a.syncLog()

	case spinner.TickMsg:
		if !a.Done() {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return a, tea.Batch(cmds...)
}

// updateKeys routes key presses. While the input line is open it owns
// every key except send and escape.
func (a *App) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.inputOpen {
		switch {
		case key.Matches(msg, a.keys.Send):
			line := a.textInput.Value()
			a.closeInput()
			if err := a.handle.SendInput(line); err != nil {
				a.AppendEvent(protocol.LogEvent{
					Stream: protocol.StreamStderr,
					Line:   "input not delivered: " + err.Error(),
				})
			}
			a.syncLog()
			return a, nil
		case key.Matches(msg, a.keys.Blur):
			a.closeInput()
			return a, nil
		default:
			var cmd tea.Cmd
			a.textInput, cmd = a.textInput.Update(msg)
			return a, cmd
		}
	}

	switch {
	case key.Matches(msg, a.keys.Cancel):
		if a.Done() {
			return a, tea.Quit
		}
		a.handle.Cancel()
		a.MarkCanceling()
		return a, nil

	case key.Matches(msg, a.keys.Close):
		if a.Done() {
			return a, tea.Quit
		}
		// The transaction keeps the screen until it finishes; cancel
		// is the only way out early.
		return a, nil

	case key.Matches(msg, a.keys.Answer):
		if !a.Done() {
			a.openInput()
			return a, textinput.Blink
		}
		return a, nil

	case key.Matches(msg, a.keys.Follow):
		a.follow = true
		a.viewport.GotoBottom()
		return a, nil

	default:
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		// Scrolling up detaches from the tail until follow is pressed
		// or the user scrolls back down.
		a.follow = a.viewport.AtBottom()
		return a, cmd
	}
}

func (a *App) openInput() {
	a.inputOpen = true
	a.textInput.SetValue("")
	a.textInput.Focus()
	a.layout()
}

func (a *App) closeInput() {
	a.inputOpen = false
	a.textInput.Blur()
	a.layout()
}

// layout resizes the viewport after anything above or below it changed.
func (a *App) layout() {
	if !a.ready {
		return
	}
	a.viewport.Width = a.width
	a.viewport.Height = a.logHeight()
	a.textInput.Width = a.width - 4
	if a.follow {
		a.viewport.GotoBottom()
	}
}

// syncLog pushes the buffer into the viewport and sticks to the tail
// while following.
func (a *App) syncLog() {
	if !a.ready {
		return
	}
	a.viewport.SetContent(a.LogContent())
	if a.follow {
		a.viewport.GotoBottom()
	}
}

// View renders the whole screen.
func (a *App) View() string {
	if !a.ready {
		return "starting..."
	}

	var b strings.Builder
	b.WriteString(a.renderHeader())
	b.WriteString("\n\n")
	for _, row := range a.entryRows() {
		b.WriteString(row)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(a.viewport.View())
	b.WriteString("\n")
	if a.inputOpen {
		b.WriteString(a.styles.InputPrompt.Render("> "))
		b.WriteString(a.textInput.View())
		b.WriteString("\n")
	}
	b.WriteString(a.renderFooter())
	return b.String()
}

// renderHeader shows the title on the left and the run state on the
// right edge.
func (a *App) renderHeader() string {
	title := a.styles.Header.Render(" " + a.title + " ")
	state := a.stateLabel()
	if !a.Done() {
		state = a.spinner.View() + " " + state
	}
	gap := a.width - lipgloss.Width(title) - lipgloss.Width(state) - 1
	if gap < 1 {
		gap = 1
	}
	return title + strings.Repeat(" ", gap) + state
}

// renderFooter shows the keys that currently do something.
func (a *App) renderFooter() string {
	var hints []string
	switch {
	case a.inputOpen:
		hints = []string{"enter: send", "esc: back"}
	case a.Done():
		hints = []string{"q: close", "↑/↓: scroll"}
	default:
		hints = []string{"c: cancel", "i: answer prompt", "↑/↓: scroll", "f: follow"}
	}
	return a.styles.Footer.Render(strings.Join(hints, "  "))
}

// Run shows the live view until the transaction finishes and the user
// closes it. It renders on the alternate screen, so the caller prints
// the durable report after it returns.
func Run(title string, handle *broker.Handle) error {
	p := tea.NewProgram(NewApp(title, handle), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
