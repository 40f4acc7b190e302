package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"chat-client/internal/api"
	"chat-client/internal/models"
)

// ListChannels refreshes the roster. A failed fetch is logged and leaves an
// empty roster.
func (s *Session) ListChannels(ctx context.Context) []models.Channel {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	channels, err := s.backend.ListChannels(ctx)
	if err != nil {
		log.Printf("session: list channels failed: %v", err)
		channels = []models.Channel{}
	}

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return append([]models.Channel{}, channels...)
	}
	s.channels = channels
	out := append([]models.Channel{}, channels...)
	s.mu.Unlock()

	s.emit(Event{Kind: EventChannelsChanged})
	return out
}

// CreateChannel asks the backend for a new channel and appends it to the
// roster.
func (s *Session) CreateChannel(ctx context.Context, name, description string, private bool) (models.Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Channel{}, ErrInvalidChannelName
	}
	userID := s.userID()

	ch, err := s.backend.CreateChannel(ctx, models.CreateChannelRequest{
		Name:        name,
		Description: strings.TrimSpace(description),
		IsPrivate:   private,
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, api.ErrRejected) {
			outcome = "rejected"
		}
		log.Printf("session: create channel %q failed: %v", name, err)
		s.opts.Audit.Emit(ctx, userID, "channel.create", outcome, err.Error())
		return models.Channel{}, err
	}

	s.mu.Lock()
	s.channels = append(s.channels, ch)
	s.mu.Unlock()

	log.Printf("session: channel created channel_id=%s", ch.ID)
	s.opts.Audit.Emit(ctx, userID, "channel.create", "success", ch.ID)
	s.emit(Event{Kind: EventChannelsChanged})
	return ch, nil
}

// LoadHistory fetches the recent messages of channelID and replaces the local
// list for it. Home always yields an empty list without a request. A response
// for a channel that stopped being active while it was in flight is dropped.
func (s *Session) LoadHistory(ctx context.Context, channelID string) []models.Message {
	if channelID == HomeChannel {
		s.mu.Lock()
		delete(s.messages, HomeChannel)
		s.mu.Unlock()
		s.emit(Event{Kind: EventMessagesChanged, ChannelID: HomeChannel})
		return []models.Message{}
	}

	s.mu.Lock()
	epoch := s.epoch
	wasActive := s.current == channelID
	s.historySeq[channelID]++
	seq := s.historySeq[channelID]
	s.mu.Unlock()

	msgs, err := s.backend.ListMessages(ctx, channelID)
	if err != nil {
		log.Printf("session: load history channel_id=%s failed: %v", channelID, err)
		msgs = []models.Message{}
	}

	s.mu.Lock()
	if epoch != s.epoch || seq != s.historySeq[channelID] || (wasActive && s.current != channelID) {
		s.mu.Unlock()
		log.Printf("session: dropping stale history channel_id=%s", channelID)
		return msgs
	}
	s.messages[channelID] = append([]models.Message{}, msgs...)
	s.mu.Unlock()

	s.emit(Event{Kind: EventMessagesChanged, ChannelID: channelID})
	return msgs
}

// SwitchChannel makes channelID active and loads its history. It reports
// false without doing anything when channelID is empty, already active, or a
// previous switch is still settling.
func (s *Session) SwitchChannel(ctx context.Context, channelID string) bool {
	channelID = strings.TrimSpace(channelID)

	s.mu.Lock()
	if channelID == "" || channelID == s.current || s.switching != nil {
		s.mu.Unlock()
		return false
	}
	s.current = channelID
	s.clearTypistsLocked()
	s.typing = false
	stopTimer(&s.typingIdle)
	var settle *time.Timer
	settle = time.AfterFunc(s.opts.SwitchDebounce, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.switching == settle {
			s.switching = nil
		}
	})
	s.switching = settle
	s.mu.Unlock()

	s.emit(
		Event{Kind: EventActiveChannelChanged, ChannelID: channelID},
		Event{Kind: EventTypingChanged, ChannelID: channelID},
	)
	s.LoadHistory(ctx, channelID)
	return true
}

func (s *Session) userID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return ""
	}
	return s.user.ID
}
