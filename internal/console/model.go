package console

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chat-client/internal/models"
	"chat-client/internal/session"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	chromeHeight  = 4
	maxNotes      = 20
)

type phase int

const (
	phaseLogin phase = iota
	phaseChat
)

type styles struct {
	header lipgloss.Style
	typing lipgloss.Style
	note   lipgloss.Style
	err    lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		header: lipgloss.NewStyle().Bold(true),
		typing: lipgloss.NewStyle().Italic(true).Faint(true),
		note:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		err:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

// Model is the bubbletea model of the chat screen. It starts on a username
// prompt and switches to the channel view once connected.
type Model struct {
	ctx    context.Context
	chat   Chat
	styles styles

	input    textinput.Model
	viewport viewport.Model

	phase      phase
	connecting bool
	username   string
	loginErr   string
	channel    string
	notes      []string
}

// New builds the model. A non-empty username is submitted by Init.
func New(ctx context.Context, chat Chat, username string) Model {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "username"
	input.CharLimit = 2000
	input.Width = defaultWidth - 4
	input.Cursor.SetMode(cursor.CursorStatic)
	input.Focus()

	return Model{
		ctx:        ctx,
		chat:       chat,
		styles:     defaultStyles(),
		input:      input,
		viewport:   viewport.New(defaultWidth, defaultHeight-chromeHeight),
		connecting: strings.TrimSpace(username) != "",
		username:   username,
	}
}

func (m Model) Init() tea.Cmd {
	if m.connecting {
		return m.connect(m.username)
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

		before := m.input.Value()
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		// Every edit of a message draft is a keystroke; the session
		// decides whether a typing frame goes out.
		if m.phase == phaseChat && m.input.Value() != before && composing(m.input.Value()) {
			m.chat.NotifyTyping()
		}
		return m, cmd

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chromeHeight, 1)
		m.input.Width = max(msg.Width-4, 1)
		m.refresh()

	case eventMsg:
		if m.phase == phaseChat {
			m.refresh()
		}

	case connectedMsg:
		m.connecting = false
		if msg.err != nil {
			m.loginErr = loginError(msg.err)
			return m, nil
		}
		m.phase = phaseChat
		m.username = msg.user.Username
		m.loginErr = ""
		m.input.Reset()
		m.input.Placeholder = "message, or /help"
		m.refresh()

	case switchedMsg:
		if !msg.ok {
			m.addNote(fmt.Sprintf("already in #%s or switching too fast", m.chat.ActiveChannel()))
		}
		m.refresh()

	case createdMsg:
		if msg.err != nil {
			m.addNote("create channel: " + rejectionDetail(msg.err))
		} else {
			m.addNote("created #" + msg.channel.ID)
		}
		m.refresh()

	case channelsMsg:
		m.addChannelNotes(msg)
		m.refresh()
	}
	return m, nil
}

func composing(draft string) bool {
	return strings.TrimSpace(draft) != "" && !strings.HasPrefix(draft, "/")
}

func loginError(err error) string {
	switch {
	case errors.Is(err, session.ErrInvalidUsername):
		return "Username is required"
	case errors.Is(err, session.ErrConnectRejected):
		return rejectionDetail(err)
	}
	return "connect failed: " + err.Error()
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	value := m.input.Value()
	if m.phase == phaseLogin {
		if m.connecting {
			return m, nil
		}
		m.input.Reset()
		m.connecting = true
		m.loginErr = ""
		return m, m.connect(value)
	}

	m.input.Reset()
	cmd := Parse(value)
	switch cmd.Kind {
	case CmdEmpty:
	case CmdSend:
		if !m.chat.Send(cmd.Arg) {
			if m.chat.ActiveChannel() == session.HomeChannel {
				m.addNote("join a channel first: /join <channel>")
			} else {
				m.addNote("not connected, message not sent")
			}
		}
	case CmdJoin:
		if cmd.Arg == "" {
			m.addNote("usage: /join <channel>")
			break
		}
		return m, m.switchTo(strings.TrimPrefix(cmd.Arg, "#"))
	case CmdHome:
		return m, m.switchTo(session.HomeChannel)
	case CmdCreate:
		return m, m.create(cmd)
	case CmdChannels:
		return m, m.listChannels()
	case CmdWho:
		name := "-"
		if user, ok := m.chat.User(); ok {
			name = user.Username
		}
		m.addNote(fmt.Sprintf("user=%s state=%s channel=#%s", name, m.chat.State(), m.chat.ActiveChannel()))
	case CmdHelp:
		for _, line := range strings.Split(helpText, "\n") {
			m.addNote(line)
		}
	case CmdQuit:
		return m, tea.Quit
	case CmdUnknown:
		m.addNote(fmt.Sprintf("unknown command %s, type /help", cmd.Arg))
	}
	m.refresh()
	return m, nil
}

func (m Model) connect(username string) tea.Cmd {
	return func() tea.Msg {
		user, err := m.chat.Connect(m.ctx, username)
		return connectedMsg{user: user, err: err}
	}
}

func (m Model) switchTo(channelID string) tea.Cmd {
	return func() tea.Msg {
		return switchedMsg{channelID: channelID, ok: m.chat.SwitchChannel(m.ctx, channelID)}
	}
}

func (m Model) create(cmd Command) tea.Cmd {
	return func() tea.Msg {
		ch, err := m.chat.CreateChannel(m.ctx, cmd.Arg, cmd.Description, cmd.Private)
		return createdMsg{channel: ch, err: err}
	}
}

func (m Model) listChannels() tea.Cmd {
	return func() tea.Msg {
		return channelsMsg(m.chat.ListChannels(m.ctx))
	}
}

func (m *Model) addNote(note string) {
	m.notes = append(m.notes, note)
	if len(m.notes) > maxNotes {
		m.notes = m.notes[len(m.notes)-maxNotes:]
	}
}

func (m *Model) addChannelNotes(channels []models.Channel) {
	if len(channels) == 0 {
		m.addNote("no channels")
		return
	}
	for _, ch := range channels {
		line := fmt.Sprintf("#%s  %s (%d members)", ch.ID, ch.Description, ch.MemberCount)
		if ch.IsPrivate {
			line += " private"
		}
		if ch.ID == m.chat.ActiveChannel() {
			line = "* " + line
		} else {
			line = "  " + line
		}
		m.addNote(line)
	}
}

// refresh re-renders the viewport from the session. Notes belong to the
// channel they were written in.
func (m *Model) refresh() {
	if active := m.chat.ActiveChannel(); active != m.channel {
		m.channel = active
		m.notes = nil
	}

	var b strings.Builder
	if m.channel == session.HomeChannel {
		b.WriteString(m.styles.note.Render("you are home, /join <channel> to chat, /channels to list"))
		b.WriteByte('\n')
	}
	for _, msg := range m.chat.Messages() {
		b.WriteString(formatMessage(msg))
		b.WriteByte('\n')
	}
	for _, note := range m.notes {
		b.WriteString(m.styles.note.Render(note))
		b.WriteByte('\n')
	}
	m.viewport.SetContent(strings.TrimRight(b.String(), "\n"))
	m.viewport.GotoBottom()
}

func typingLine(users []string) string {
	switch len(users) {
	case 0:
		return ""
	case 1:
		return users[0] + " is typing..."
	}
	return strings.Join(users, ", ") + " are typing..."
}

func (m Model) View() string {
	if m.phase == phaseLogin {
		var b strings.Builder
		b.WriteString(m.styles.header.Render("chat login"))
		b.WriteString("\n\n")
		if m.connecting {
			b.WriteString("connecting...\n")
		} else {
			b.WriteString("username:\n")
		}
		b.WriteString(m.input.View())
		if m.loginErr != "" {
			b.WriteString("\n")
			b.WriteString(m.styles.err.Render(m.loginErr))
		}
		return b.String()
	}

	header := fmt.Sprintf("#%s  %s  %s", m.chat.ActiveChannel(), m.chat.State(), m.username)
	return strings.Join([]string{
		m.styles.header.Render(header),
		m.viewport.View(),
		m.styles.typing.Render(typingLine(m.chat.TypingUsers())),
		m.input.View(),
	}, "\n")
}
