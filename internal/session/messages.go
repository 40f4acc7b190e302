package session

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"chat-client/internal/models"
	"chat-client/internal/observability"
)

// Send appends a message to the active channel immediately and transmits it.
// It reports false when text is blank, the socket is not open, or home is
// active.
func (s *Session) Send(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	s.mu.Lock()
	if s.conn == nil || s.user == nil || s.current == HomeChannel {
		s.mu.Unlock()
		return false
	}
	msg := models.Message{
		ID:             uuid.NewString(),
		Text:           text,
		SenderID:       s.user.ID,
		SenderUsername: s.user.Username,
		ChannelID:      s.current,
		Timestamp:      models.NewTimestamp(time.Now().UTC()),
		MessageType:    models.MessageTypeText,
	}
	s.messages[msg.ChannelID] = append(s.messages[msg.ChannelID], msg)
	s.typing = false
	stopTimer(&s.typingIdle)
	conn := s.conn
	s.mu.Unlock()

	s.emit(Event{Kind: EventMessagesChanged, ChannelID: msg.ChannelID})

	err := conn.Send(models.OutboundMessage{
		Type:           models.FrameMessage,
		Text:           msg.Text,
		ChannelID:      msg.ChannelID,
		SenderUsername: msg.SenderUsername,
	})
	if err != nil {
		log.Printf("session: send failed channel_id=%s: %v", msg.ChannelID, err)
		return true
	}
	observability.IncFrame("out", models.FrameMessage)
	return true
}

// NotifyTyping is called on every local keystroke. A typing frame goes out
// only on the first keystroke after TypingIdle of inactivity; it reports
// whether one was sent.
func (s *Session) NotifyTyping() bool {
	s.mu.Lock()
	if s.conn == nil || s.user == nil || s.current == HomeChannel {
		s.mu.Unlock()
		return false
	}
	var frame *models.OutboundTyping
	if !s.typing {
		s.typing = true
		frame = &models.OutboundTyping{
			Type:      models.FrameTyping,
			ChannelID: s.current,
			Username:  s.user.Username,
		}
	}
	if s.typingIdle != nil {
		s.typingIdle.Stop()
	}
	var idle *time.Timer
	idle = time.AfterFunc(s.opts.TypingIdle, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.typingIdle == idle {
			s.typing = false
			s.typingIdle = nil
		}
	})
	s.typingIdle = idle
	conn := s.conn
	s.mu.Unlock()

	if frame == nil {
		return false
	}
	if err := conn.Send(*frame); err != nil {
		log.Printf("session: typing send failed channel_id=%s: %v", frame.ChannelID, err)
		return false
	}
	observability.IncFrame("out", models.FrameTyping)
	return true
}

func (s *Session) handleFrame(gen uint64, data []byte) {
	var frame models.InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Printf("session: malformed frame: %v", err)
		observability.IncFrame("in", "malformed")
		return
	}
	observability.IncFrame("in", frame.Type)

	var events []Event
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	switch frame.Type {
	case models.FrameNewMessage:
		events = s.applyMessageLocked(frame.Message)
	case models.FrameUserTyping:
		events = s.applyTypingLocked(frame.ChannelID, frame.Username)
	case models.FrameMessageSent:
		log.Printf("session: message stored message_id=%s", frame.MessageID)
	default:
		log.Printf("session: ignoring frame type=%q", frame.Type)
	}
	s.mu.Unlock()

	s.emit(events...)
}

func (s *Session) applyMessageLocked(msg *models.Message) []Event {
	if msg == nil {
		log.Printf("session: new_message frame without message")
		return nil
	}
	// The local copy was appended when it was sent.
	if s.user != nil && msg.SenderID == s.user.ID {
		observability.IncEchoSuppressed()
		return nil
	}
	if msg.ChannelID == "" {
		msg.ChannelID = s.current
	}
	s.messages[msg.ChannelID] = append(s.messages[msg.ChannelID], *msg)
	return []Event{{Kind: EventMessagesChanged, ChannelID: msg.ChannelID}}
}

func (s *Session) applyTypingLocked(channelID, username string) []Event {
	if username == "" || channelID != s.current {
		return nil
	}
	prev, listed := s.typists[username]
	if listed {
		prev.Stop()
	}
	var expiry *time.Timer
	expiry = time.AfterFunc(s.opts.TypingExpiry, func() {
		s.mu.Lock()
		if s.typists[username] != expiry {
			s.mu.Unlock()
			return
		}
		delete(s.typists, username)
		channelID := s.current
		s.mu.Unlock()
		s.emit(Event{Kind: EventTypingChanged, ChannelID: channelID})
	})
	s.typists[username] = expiry
	if listed {
		return nil
	}
	return []Event{{Kind: EventTypingChanged, ChannelID: channelID}}
}

func (s *Session) clearTypistsLocked() {
	for name, t := range s.typists {
		t.Stop()
		delete(s.typists, name)
	}
}
