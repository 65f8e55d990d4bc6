package chatcmder

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/ansi"

	"github.com/KimYongKuk/commercial-analysis/pkg/cliui"
	"github.com/KimYongKuk/commercial-analysis/pkg/conversation"
)

const (
	// Lines below the viewport: status line and input.
	chromeHeight = 2

	assistantName = "JobFlex"
	userName      = "you"

	statusWaiting = "답변을 생성하고 있습니다..."
	statusHelp    = "Enter 전송 · PgUp/PgDn 스크롤 · Esc 종료"
)

// snapshotMsg carries engine state from the observer into the program.
type snapshotMsg conversation.Snapshot

// turnDoneMsg is sent when Submit returns.
type turnDoneMsg struct {
	err error
}

type chatModel struct {
	ctx    context.Context
	engine *conversation.Engine

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	snapshot conversation.Snapshot

	markdownStyle string
	renderer      *glamour.TermRenderer

	// rendered caches markdown output of finalized replies by message ID.
	rendered map[int]string

	notice string
	width  int
	height int
	ready  bool
}

func newChatModel(ctx context.Context, engine *conversation.Engine, markdownStyle string) chatModel {
	ti := textinput.New()
	ti.Prompt = cliui.UserStyle.Render(userName+"> ")
	ti.Placeholder = "메시지를 입력하세요"
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(cliui.AssistantStyle),
	)

	return chatModel{
		ctx:           ctx,
		engine:        engine,
		input:         ti,
		viewport:      viewport.New(80, 20),
		spinner:       sp,
		snapshot:      engine.Snapshot(),
		markdownStyle: markdownStyle,
		rendered:      map[int]string{},
	}
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case snapshotMsg:
		m.snapshot = conversation.Snapshot(msg)
		m.refresh()
		return m, nil

	case turnDoneMsg:
		m.snapshot = m.engine.Snapshot()
		if msg.err != nil {
			m.notice = msg.err.Error()
		}
		m.refresh()
		return m, m.input.Focus()

	case spinner.TickMsg:
		if m.input.Focused() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case "enter":
		// The input is blurred while a turn is in flight.
		if !m.input.Focused() {
			return m, nil
		}

		text := strings.TrimSpace(m.input.Value())
		switch text {
		case "":
			return m, nil
		case "/exit", "/quit":
			return m, tea.Quit
		}

		m.input.Reset()
		m.input.Blur()
		m.notice = ""
		return m, tea.Batch(submitCmd(m.ctx, m.engine, text), m.spinner.Tick)
	}

	if !m.input.Focused() {
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submitCmd runs one turn off the update loop. Progress arrives as
// snapshotMsg through the engine observer.
func submitCmd(ctx context.Context, engine *conversation.Engine, text string) tea.Cmd {
	return func() tea.Msg {
		return turnDoneMsg{err: engine.Submit(ctx, text)}
	}
}

func (m *chatModel) resize(width, height int) {
	m.width = width
	m.height = height

	m.viewport.Width = width
	m.viewport.Height = max(height-chromeHeight, 1)
	m.input.Width = max(width-ansi.StringWidth(m.input.Prompt)-1, 1)

	m.renderer = nil
	if r, err := cliui.NewMarkdownRenderer(m.markdownStyle, m.contentWidth()); err == nil {
		m.renderer = r
	}
	clear(m.rendered)

	m.ready = true
	m.refresh()
}

func (m *chatModel) contentWidth() int {
	return max(m.width-2, 20)
}

func (m *chatModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m *chatModel) renderTranscript() string {
	var b strings.Builder
	for i, msg := range m.snapshot.Transcript {
		if i > 0 {
			b.WriteString("\n")
		}

		if msg.Sender == conversation.SenderUser {
			b.WriteString(cliui.UserStyle.Render(userName))
			b.WriteString("\n")
			b.WriteString(ansi.Wrap(msg.Text, m.contentWidth(), ""))
		} else {
			b.WriteString(cliui.AssistantStyle.Render(assistantName))
			b.WriteString("\n")
			b.WriteString(m.renderReply(msg))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// renderReply wraps a streaming reply as plain text and renders a finalized
// one as markdown.
func (m *chatModel) renderReply(msg conversation.Message) string {
	if msg.Streaming {
		if msg.Text == "" {
			return cliui.DimStyle.Render("…")
		}
		return ansi.Wrap(msg.Text, m.contentWidth(), "")
	}

	if out, ok := m.rendered[msg.ID]; ok {
		return out
	}

	out := ansi.Wrap(msg.Text, m.contentWidth(), "")
	if m.renderer != nil {
		if r, err := m.renderer.Render(msg.Text); err == nil {
			out = strings.Trim(r, "\n")
		}
	}
	m.rendered[msg.ID] = out
	return out
}

func (m chatModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	return m.viewport.View() + "\n" + m.statusLine() + "\n" + m.input.View()
}

func (m chatModel) statusLine() string {
	var line string
	switch {
	case !m.input.Focused():
		line = m.spinner.View() + " " + cliui.DimStyle.Render(statusWaiting)
	case m.notice != "":
		line = cliui.ErrorStyle.Render(m.notice)
	default:
		line = cliui.DimStyle.Render(statusHelp)
	}

	if id := m.snapshot.ConversationID; id != "" {
		line += cliui.DimStyle.Render("  · " + id)
	}

	return ansi.Truncate(line, m.width, "…")
}
