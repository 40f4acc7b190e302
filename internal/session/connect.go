package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"chat-client/internal/api"
	"chat-client/internal/models"
	"chat-client/internal/observability"
	"chat-client/internal/ws"
)

const wsEventsRoutingKey = "session_events.ws"

// Connect registers username with the backend, opens the realtime socket and
// loads the channel roster and the active channel's history. Socket failures
// do not fail Connect; they are retried in the background.
func (s *Session) Connect(ctx context.Context, username string) (models.User, error) {
	name := strings.TrimSpace(username)
	if name == "" {
		return models.User{}, ErrInvalidUsername
	}

	s.mu.Lock()
	if s.loggedIn || s.joining {
		s.mu.Unlock()
		return models.User{}, ErrAlreadyConnected
	}
	s.joining = true
	epoch := s.epoch
	s.mu.Unlock()

	user, err := s.backend.ConnectUser(ctx, name)

	s.mu.Lock()
	s.joining = false
	if err == nil && epoch == s.epoch {
		s.user = &user
		s.loggedIn = true
	}
	stale := epoch != s.epoch
	s.mu.Unlock()

	if err != nil {
		if errors.Is(err, api.ErrRejected) {
			log.Printf("session: connect rejected username=%q: %v", name, err)
			s.opts.Audit.Emit(ctx, "", "session.connect", "rejected", err.Error())
			return models.User{}, fmt.Errorf("%w: %w", ErrConnectRejected, err)
		}
		log.Printf("session: connect failed username=%q: %v", name, err)
		s.opts.Audit.Emit(ctx, "", "session.connect", "error", err.Error())
		return models.User{}, fmt.Errorf("connect %q: %w", name, err)
	}
	if stale {
		// Disconnect ran while the registration was in flight.
		if err := s.backend.DisconnectUser(ctx, user.ID); err != nil {
			log.Printf("session: disconnect notify failed user_id=%s: %v", user.ID, err)
		}
		return models.User{}, ErrNotConnected
	}

	log.Printf("session: registered user_id=%s username=%q", user.ID, user.Username)
	s.opts.Audit.Emit(ctx, user.ID, "session.connect", "success", "")

	s.open(ctx)
	s.ListChannels(ctx)
	if channelID := s.ActiveChannel(); channelID != HomeChannel {
		s.LoadHistory(ctx, channelID)
	}
	return user, nil
}

// Disconnect ends the session: reconnects stop, the backend is told the user
// left, the socket is closed and all local state returns to its initial
// values. It is safe to call when not connected.
func (s *Session) Disconnect(ctx context.Context) {
	s.mu.Lock()
	s.loggedIn = false
	s.gen++
	s.epoch++
	stopTimer(&s.reconnect)
	stopTimer(&s.switching)
	stopTimer(&s.typingIdle)
	s.clearTypistsLocked()
	user, conn := s.user, s.conn
	s.user = nil
	s.conn = nil
	s.state = StateDisconnected
	s.channels = nil
	s.messages = make(map[string][]models.Message)
	s.current = s.opts.DefaultChannel
	s.typing = false
	s.mu.Unlock()

	if user != nil {
		if err := s.backend.DisconnectUser(ctx, user.ID); err != nil {
			log.Printf("session: disconnect notify failed user_id=%s: %v", user.ID, err)
		}
		s.opts.Audit.Emit(ctx, user.ID, "session.disconnect", "success", "")
		log.Printf("session: disconnected user_id=%s", user.ID)
	}
	if conn != nil {
		info := conn.Info()
		_ = conn.Close()
		observability.SetWSConnected(false)
		observability.IncWSEvent("close")
		s.publishWSEvent(ctx, "ws_disconnect", info, "client disconnect")
	}

	s.emit(
		Event{Kind: EventStateChanged, State: StateDisconnected},
		Event{Kind: EventChannelsChanged},
		Event{Kind: EventActiveChannelChanged, ChannelID: s.opts.DefaultChannel},
		Event{Kind: EventMessagesChanged, ChannelID: s.opts.DefaultChannel},
		Event{Kind: EventTypingChanged},
	)
}

// open dials a new socket for the logged in user. Dial failures are handled
// like a close and schedule a retry.
func (s *Session) open(ctx context.Context) {
	s.mu.Lock()
	if !s.loggedIn || s.user == nil || s.conn != nil || s.state == StateConnecting {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	userID := s.user.ID
	s.state = StateConnecting
	s.mu.Unlock()

	s.emit(Event{Kind: EventStateChanged, State: StateConnecting})
	observability.IncWSEvent("dial")

	conn, err := s.dialer.Dial(ctx, userID, s.handlers(gen))
	if err != nil {
		log.Printf("session: websocket dial failed user_id=%s: %v", userID, err)
		observability.IncWSEvent("error")
		s.publishWSEvent(ctx, "ws_error", ws.ConnInfo{UserID: userID}, err.Error())
		s.closed(gen, err)
		return
	}

	s.mu.Lock()
	if gen != s.gen || !s.loggedIn {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.state = StateConnected
	s.mu.Unlock()

	conn.Start()
	info := conn.Info()
	observability.SetWSConnected(true)
	observability.IncWSEvent("open")
	log.Printf("session: websocket connected user_id=%s conn_id=%s", userID, info.ConnID)
	s.publishWSEvent(ctx, "ws_connect", info, "")
	s.emit(Event{Kind: EventStateChanged, State: StateConnected})
}

func (s *Session) handlers(gen uint64) ws.Handlers {
	return ws.Handlers{
		OnMessage: func(data []byte) { s.handleFrame(gen, data) },
		OnError: func(err error) {
			log.Printf("session: websocket error: %v", err)
			observability.IncWSEvent("error")
		},
		OnClose: func(err error) { s.closed(gen, err) },
	}
}

// closed handles the end of socket gen. While the user is still logged in a
// single reconnect is scheduled after ReconnectDelay.
func (s *Session) closed(gen uint64, cause error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	var info ws.ConnInfo
	if s.conn != nil {
		info = s.conn.Info()
	}
	s.conn = nil
	s.state = StateDisconnected
	s.typing = false
	stopTimer(&s.typingIdle)
	retry := s.loggedIn && s.user != nil
	if retry {
		stopTimer(&s.reconnect)
		s.reconnect = time.AfterFunc(s.opts.ReconnectDelay, func() { s.retry(gen) })
	}
	s.mu.Unlock()

	observability.SetWSConnected(false)
	reason := "server closed"
	if cause != nil {
		reason = cause.Error()
	}
	if info.ConnID != "" {
		observability.IncWSEvent("close")
		log.Printf("session: websocket closed conn_id=%s: %s", info.ConnID, reason)
		s.publishWSEvent(context.Background(), "ws_disconnect", info, reason)
	}
	if retry {
		log.Printf("session: reconnecting in %s", s.opts.ReconnectDelay)
	}
	s.emit(Event{Kind: EventStateChanged, State: StateDisconnected})
}

func (s *Session) retry(gen uint64) {
	s.mu.Lock()
	if s.reconnect == nil || gen != s.gen || !s.loggedIn || s.user == nil {
		s.mu.Unlock()
		return
	}
	s.reconnect = nil
	userID := s.user.ID
	s.mu.Unlock()

	log.Printf("session: attempting websocket reconnect user_id=%s", userID)
	observability.IncWSEvent("reconnect")
	s.publishWSEvent(context.Background(), "ws_reconnect", ws.ConnInfo{UserID: userID}, "")
	s.open(context.Background())
}

func (s *Session) publishWSEvent(ctx context.Context, name string, info ws.ConnInfo, reason string) {
	wsPayload := map[string]interface{}{
		"event":   name,
		"conn_id": info.ConnID,
		"url":     info.URL,
	}
	if !info.ConnectedAt.IsZero() && name == "ws_disconnect" {
		wsPayload["duration_ms"] = time.Since(info.ConnectedAt).Milliseconds()
	}
	if reason != "" {
		wsPayload["reason"] = reason
	}
	envelope := observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload: map[string]interface{}{
			"ws":       wsPayload,
			"identity": map[string]interface{}{"user_id": info.UserID},
		},
	}
	if err := observability.PublishEvent(ctx, wsEventsRoutingKey, envelope); err != nil {
		log.Printf("session: publish %s failed: %v", name, err)
	}
}
