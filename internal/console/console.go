// Package console is a terminal front-end for a chat session built on
// bubbletea.
package console

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"chat-client/internal/api"
	"chat-client/internal/models"
	"chat-client/internal/session"
)

// Chat is the part of *session.Session the console drives.
type Chat interface {
	Connect(ctx context.Context, username string) (models.User, error)
	ListChannels(ctx context.Context) []models.Channel
	SwitchChannel(ctx context.Context, channelID string) bool
	CreateChannel(ctx context.Context, name, description string, private bool) (models.Channel, error)
	Send(text string) bool
	NotifyTyping() bool
	State() session.State
	User() (models.User, bool)
	ActiveChannel() string
	Messages() []models.Message
	TypingUsers() []string
}

// eventMsg carries a session change into the update loop.
type eventMsg session.Event

type connectedMsg struct {
	user models.User
	err  error
}

type switchedMsg struct {
	channelID string
	ok        bool
}

type createdMsg struct {
	channel models.Channel
	err     error
}

type channelsMsg []models.Channel

// Forwarder hands session events to a running program. Observe never blocks:
// a full buffer already holds a pending redraw, so the event is dropped.
type Forwarder struct {
	events chan session.Event
}

func NewForwarder(size int) *Forwarder {
	if size <= 0 {
		size = 64
	}
	return &Forwarder{events: make(chan session.Event, size)}
}

// Observe is a session.Observer.
func (f *Forwarder) Observe(ev session.Event) {
	select {
	case f.events <- ev:
	default:
	}
}

// Run delivers events to send until ctx is done. send is usually
// (*tea.Program).Send.
func (f *Forwarder) Run(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-f.events:
			send(eventMsg(ev))
		}
	}
}

const helpText = `/join <channel>    switch channel
/home              leave the active channel
/create <name> [description] [--private]
/channels          list channels
/who               show session status
/quit              exit (also ctrl+c, esc)
anything else is sent to the active channel`

func formatMessage(m models.Message) string {
	ts := "--:--"
	if !m.Timestamp.IsZero() {
		ts = m.Timestamp.Local().Format("15:04")
	}
	return fmt.Sprintf("[%s] %s: %s", ts, m.SenderUsername, m.Text)
}

// rejectionDetail returns the backend's message for a rejected request.
func rejectionDetail(err error) string {
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) && statusErr.Detail != "" {
		return statusErr.Detail
	}
	return err.Error()
}
