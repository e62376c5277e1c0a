// Package tui is the terminal rendition of the voice question UI.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ashureev/askvoice/internal/voice"
)

// Controller is the part of voice.Session the model drives.
type Controller interface {
	AskQuestion(ctx context.Context, text string)
	StartListening()
	StopListening()
	Speak(text string)
	Snapshot() voice.State
}

var _ Controller = (*voice.Session)(nil)

// stateMsg carries a session snapshot into the update loop.
type stateMsg voice.State

// chromeHeight is the number of lines around the answer viewport.
const chromeHeight = 9

// NewNotifier returns a voice.WithNotify callback and the channel it feeds.
// Only the latest snapshot is kept, so a slow UI never blocks the session.
func NewNotifier() (func(voice.State), <-chan voice.State) {
	ch := make(chan voice.State, 1)
	var mu sync.Mutex
	notify := func(st voice.State) {
		mu.Lock()
		defer mu.Unlock()
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
	return notify, ch
}

// Model is the root Bubble Tea model for the voice UI.
type Model struct {
	ctrl     Controller
	updates  <-chan voice.State
	state    voice.State
	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
	width    int
	height   int
	quitting bool
}

// New creates a model driving ctrl and rendering the snapshots from updates.
func New(ctrl Controller, updates <-chan voice.State) Model {
	input := textinput.New()
	input.Placeholder = "Type a question, or press Ctrl+R and speak"
	input.Prompt = "> "
	input.CharLimit = 2000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = StyleLoading

	return Model{
		ctrl:     ctrl,
		updates:  updates,
		state:    ctrl.Snapshot(),
		input:    input,
		spinner:  sp,
		viewport: viewport.New(0, 0),
	}
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForState(m.updates))
}

// waitForState returns a command that waits for the next session snapshot.
func waitForState(updates <-chan voice.State) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		st, ok := <-updates
		if !ok {
			return nil
		}
		return stateMsg(st)
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		return m, nil

	case stateMsg:
		m.state = voice.State(msg)
		m.refreshAnswer()
		return m, waitForState(m.updates)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyCtrlC:
		m.quitting = true
		return m, tea.Quit

	case KeyAsk:
		question := strings.TrimSpace(m.input.Value())
		if question == "" {
			return m, nil
		}
		m.input.Reset()
		ctrl := m.ctrl
		return m, func() tea.Msg {
			ctrl.AskQuestion(context.Background(), question)
			return nil
		}

	case KeyListen:
		ctrl := m.ctrl
		if m.state.Listening {
			return m, func() tea.Msg {
				ctrl.StopListening()
				return nil
			}
		}
		return m, func() tea.Msg {
			ctrl.StartListening()
			return nil
		}

	case KeyReplay:
		answer := m.state.Answer
		if answer == "" {
			return m, nil
		}
		ctrl := m.ctrl
		return m, func() tea.Msg {
			ctrl.Speak(answer)
			return nil
		}

	case KeyUp, KeyDown, KeyPageUp, KeyPageDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	sections := []string{
		StyleTitle.Render("Ask by voice"),
		m.input.View(),
		m.listeningView(),
	}
	if m.state.Question != "" {
		sections = append(sections, StyleQuestion.Render("Q: "+m.state.Question))
	}
	if panel := m.panelView(); panel != "" {
		sections = append(sections, panel)
	}
	sections = append(sections, HelpView())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) listeningView() string {
	if m.state.Listening {
		return StyleListening.Render("● Listening...")
	}
	return StyleIdle.Render("○ Not listening")
}

// panelView renders at most one of loading, error or answer.
func (m Model) panelView() string {
	switch m.state.Panel() {
	case voice.PanelLoading:
		return m.spinner.View() + StyleLoading.Render(" Thinking...")
	case voice.PanelError:
		return StyleError.Render(m.state.Error)
	case voice.PanelAnswer:
		return StyleAnswerBox.Render(m.viewport.View())
	default:
		return ""
	}
}

// computeLayout sizes the input and the answer viewport to the window.
func (m *Model) computeLayout() {
	m.input.Width = max(m.width-4, 10)
	m.viewport.Width = max(m.width-4, 10)
	m.viewport.Height = max(m.height-chromeHeight, 3)
	m.refreshAnswer()
}

func (m *Model) refreshAnswer() {
	if m.viewport.Width == 0 {
		return
	}
	m.viewport.SetContent(renderAnswer(m.state, m.viewport.Width))
}

func renderAnswer(st voice.State, width int) string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Width(width).Render(st.Answer))
	if st.Route != "" {
		b.WriteString("\n\n")
		b.WriteString(StyleMeta.Render("Route: " + st.Route))
	}
	for i, src := range st.Sources {
		line := fmt.Sprintf("[%d] %s", i+1, src.ID)
		if src.Score != nil {
			line += fmt.Sprintf(" (score %.2f)", *src.Score)
		}
		b.WriteString("\n")
		b.WriteString(StyleMeta.Render(line))
	}
	return b.String()
}
