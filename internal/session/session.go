// Package session keeps one user's realtime chat session in sync with the
// backend: connection lifecycle, channel roster, per-channel message history,
// optimistic sends and typing indicators.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"chat-client/internal/models"
	"chat-client/internal/telemetry"
	"chat-client/internal/ws"
)

const (
	// HomeChannel is the landing view. It has no history and accepts no sends.
	HomeChannel = "home"
	// DefaultChannel is active after Connect and after Disconnect.
	DefaultChannel = "general"
)

// State is the status of the realtime socket.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Backend is the chat REST API.
type Backend interface {
	ConnectUser(ctx context.Context, username string) (models.User, error)
	DisconnectUser(ctx context.Context, userID string) error
	ListChannels(ctx context.Context) ([]models.Channel, error)
	CreateChannel(ctx context.Context, req models.CreateChannelRequest) (models.Channel, error)
	ListMessages(ctx context.Context, channelID string) ([]models.Message, error)
}

// Dialer opens the realtime socket of a user.
type Dialer interface {
	Dial(ctx context.Context, userID string, handlers ws.Handlers) (*ws.Conn, error)
}

// Options tunes a Session. Zero values take the defaults.
type Options struct {
	DefaultChannel string
	// ReconnectDelay is the fixed wait between a socket close and the next dial.
	ReconnectDelay time.Duration
	// TypingIdle is how long input must be idle before another typing frame
	// may be sent.
	TypingIdle time.Duration
	// TypingExpiry is how long a remote typist stays listed without a refresh.
	TypingExpiry time.Duration
	// SwitchDebounce suppresses channel switches while a previous one settles.
	SwitchDebounce time.Duration
	Audit          *telemetry.AuditEmitter
}

func DefaultOptions() Options {
	return Options{
		DefaultChannel: DefaultChannel,
		ReconnectDelay: 2 * time.Second,
		TypingIdle:     time.Second,
		TypingExpiry:   3 * time.Second,
		SwitchDebounce: 500 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DefaultChannel == "" {
		o.DefaultChannel = d.DefaultChannel
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = d.ReconnectDelay
	}
	if o.TypingIdle <= 0 {
		o.TypingIdle = d.TypingIdle
	}
	if o.TypingExpiry <= 0 {
		o.TypingExpiry = d.TypingExpiry
	}
	if o.SwitchDebounce <= 0 {
		o.SwitchDebounce = d.SwitchDebounce
	}
	return o
}

// EventKind says which part of the session changed.
type EventKind int

const (
	EventStateChanged EventKind = iota + 1
	EventChannelsChanged
	EventMessagesChanged
	EventActiveChannelChanged
	EventTypingChanged
)

// Event is delivered to the Observer after the change is applied.
type Event struct {
	Kind      EventKind
	State     State
	ChannelID string
}

// Observer is called without the session lock held, so it may read the
// session. It must not block.
type Observer func(Event)

// Session is safe for concurrent use. All state changes, whether from API
// calls, inbound frames or timers, are serialized by one mutex and no network
// I/O happens while it is held.
type Session struct {
	backend Backend
	dialer  Dialer
	opts    Options

	mu       sync.Mutex
	observer Observer

	user     *models.User
	loggedIn bool
	joining  bool
	state    State
	conn     *ws.Conn
	// gen identifies the current socket; callbacks of older sockets are ignored.
	gen uint64
	// epoch changes on Disconnect; responses started before it are dropped.
	epoch     uint64
	reconnect *time.Timer

	channels []models.Channel
	messages map[string][]models.Message
	// historySeq numbers history requests per channel; only the latest
	// response for a channel is stored.
	historySeq map[string]uint64
	current    string
	switching  *time.Timer

	typing     bool
	typingIdle *time.Timer
	typists    map[string]*time.Timer
}

// New builds a disconnected session.
func New(backend Backend, dialer Dialer, opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		backend:    backend,
		dialer:     dialer,
		opts:       opts,
		state:      StateDisconnected,
		messages:   make(map[string][]models.Message),
		historySeq: make(map[string]uint64),
		current:    opts.DefaultChannel,
		typists:    make(map[string]*time.Timer),
	}
}

// SetObserver replaces the change listener. nil disables notifications.
func (s *Session) SetObserver(observer Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = observer
}

func (s *Session) emit(events ...Event) {
	s.mu.Lock()
	observer := s.observer
	s.mu.Unlock()
	if observer == nil {
		return
	}
	for _, ev := range events {
		observer(ev)
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns the local identity while connected.
func (s *Session) User() (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

func (s *Session) ActiveChannel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) Channels() []models.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Channel{}, s.channels...)
}

// Messages returns the active channel's messages in arrival order.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message{}, s.messages[s.current]...)
}

func (s *Session) ChannelMessages(channelID string) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message{}, s.messages[channelID]...)
}

// TypingUsers lists the remote users typing in the active channel, sorted.
func (s *Session) TypingUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typingUsersLocked()
}

func (s *Session) typingUsersLocked() []string {
	users := make([]string, 0, len(s.typists))
	for name := range s.typists {
		users = append(users, name)
	}
	sort.Strings(users)
	return users
}

// IsTyping reports whether the local user is inside a typing window.
func (s *Session) IsTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

// Snapshot is a point-in-time summary of the session.
type Snapshot struct {
	State         State        `json:"state"`
	User          *models.User `json:"user,omitempty"`
	ActiveChannel string       `json:"active_channel"`
	ChannelCount  int          `json:"channel_count"`
	MessageCount  int          `json:"message_count"`
	TypingUsers   []string     `json:"typing_users"`
	ConnID        string       `json:"conn_id,omitempty"`
	ConnectedAt   *time.Time   `json:"connected_at,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		State:         s.state,
		ActiveChannel: s.current,
		ChannelCount:  len(s.channels),
		MessageCount:  len(s.messages[s.current]),
		TypingUsers:   s.typingUsersLocked(),
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	if s.conn != nil {
		info := s.conn.Info()
		snap.ConnID = info.ConnID
		snap.ConnectedAt = &info.ConnectedAt
	}
	return snap
}

func stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
