package backendtest

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-client/internal/models"
)

var (
	ErrUsernameTaken   = errors.New("Username already taken")
	ErrChannelExists   = errors.New("Channel already exists")
	ErrChannelNotFound = errors.New("Channel not found")
)

const historyLimit = 50

// store keeps users, channels and messages in memory.
type store struct {
	mu       sync.RWMutex
	users    map[string]models.User
	channels map[string]models.Channel
	order    []string
	messages map[string][]models.Message
}

func newStore() *store {
	s := &store{
		users:    make(map[string]models.User),
		channels: make(map[string]models.Channel),
		messages: make(map[string][]models.Message),
	}
	for _, seed := range []struct{ id, description string }{
		{"general", "General discussion"},
		{"random", "Random topics"},
		{"tech", "Technology discussions"},
		{"music", "Music and entertainment"},
	} {
		s.putChannel(models.Channel{
			ID:          seed.id,
			Name:        strings.ToUpper(seed.id[:1]) + seed.id[1:],
			Description: seed.description,
			CreatedBy:   "system",
			CreatedAt:   models.NewTimestamp(time.Now().UTC()),
		})
	}
	return s
}

func (s *store) putChannel(ch models.Channel) {
	s.channels[ch.ID] = ch
	s.order = append(s.order, ch.ID)
}

func (s *store) connectUser(username string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return models.User{}, ErrUsernameTaken
		}
	}
	user := models.User{
		ID:       uuid.NewString(),
		Username: username,
		IsOnline: true,
		LastSeen: models.NewTimestamp(time.Now().UTC()),
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *store) setOffline(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.IsOnline = false
		u.LastSeen = models.NewTimestamp(time.Now().UTC())
		s.users[userID] = u
	}
}

func (s *store) user(userID string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	return u, ok
}

// listChannels reports the message count of each channel as member_count.
func (s *store) listChannels() []models.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Channel, 0, len(s.order))
	for _, id := range s.order {
		ch := s.channels[id]
		ch.MemberCount = len(s.messages[id])
		out = append(out, ch)
	}
	return out
}

func (s *store) createChannel(req models.CreateChannelRequest) (models.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := strings.ReplaceAll(strings.ToLower(req.Name), " ", "-")
	if _, ok := s.channels[id]; ok {
		return models.Channel{}, ErrChannelExists
	}
	ch := models.Channel{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   "system",
		CreatedAt:   models.NewTimestamp(time.Now().UTC()),
		IsPrivate:   req.IsPrivate,
	}
	s.putChannel(ch)
	return ch, nil
}

func (s *store) channelMessages(channelID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.channels[channelID]; !ok {
		return nil, ErrChannelNotFound
	}
	msgs := append([]models.Message(nil), s.messages[channelID]...)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp.Before(msgs[j].Timestamp.Time) })
	if len(msgs) > historyLimit {
		msgs = msgs[len(msgs)-historyLimit:]
	}
	return msgs, nil
}

func (s *store) saveMessage(msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ChannelID] = append(s.messages[msg.ChannelID], msg)
}
