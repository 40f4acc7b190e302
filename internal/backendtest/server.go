// Package backendtest provides an in-process chat backend that speaks the
// same REST and websocket protocol as the production server, for tests.
package backendtest

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"chat-client/internal/models"
)

var errNotConnected = errors.New("user not connected")

// ReceivedFrame is a frame the server read from a client socket.
type ReceivedFrame struct {
	UserID         string `json:"-"`
	Type           string `json:"type"`
	Text           string `json:"text"`
	ChannelID      string `json:"channel_id"`
	SenderUsername string `json:"sender_username"`
	Username       string `json:"username"`
}

// Server is a running fake backend. URL is its http:// root.
type Server struct {
	URL string

	srv   *httptest.Server
	store *store
	hub   *Hub

	mu              sync.Mutex
	historyRequests map[string]int
	historyDelay    map[string]time.Duration
	connects        []time.Time
	frames          []ReceivedFrame
	rejectSockets   bool
	disconnects     []string
}

// New starts a fake backend; it is closed when the test ends.
func New(t interface{ Cleanup(func()) }) *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		store:           newStore(),
		hub:             NewHub(),
		historyRequests: make(map[string]int),
		historyDelay:    make(map[string]time.Duration),
	}
	s.srv = httptest.NewServer(s.router())
	s.URL = s.srv.URL
	t.Cleanup(s.Close)
	return s
}

// Close shuts down every socket and the listener.
func (s *Server) Close() {
	s.hub.CloseAll()
	s.srv.Close()
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().UTC()})
	})
	r.POST("/api/users/connect", s.connectUser)
	r.POST("/api/users/:user_id/disconnect", s.disconnectUser)
	r.GET("/api/channels", s.listChannels)
	r.POST("/api/channels", s.createChannel)
	r.GET("/api/channels/:channel_id/messages", s.channelMessages)
	r.GET("/ws/:user_id", s.handleWS)
	return r
}

func (s *Server) connectUser(c *gin.Context) {
	var req models.ConnectUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"msg": err.Error()}}})
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Username is required"})
		return
	}
	user, err := s.store.connectUser(req.Username)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) disconnectUser(c *gin.Context) {
	userID := c.Param("user_id")
	s.store.setOffline(userID)
	s.mu.Lock()
	s.disconnects = append(s.disconnects, userID)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"message": "User disconnected"})
}

func (s *Server) listChannels(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.listChannels())
}

func (s *Server) createChannel(c *gin.Context) {
	var req models.CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"msg": err.Error()}}})
		return
	}
	ch, err := s.store.createChannel(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (s *Server) channelMessages(c *gin.Context) {
	channelID := c.Param("channel_id")
	s.mu.Lock()
	s.historyRequests[channelID]++
	delay := s.historyDelay[channelID]
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	msgs, err := s.store.channelMessages(channelID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// HistoryRequests reports how many times channelID's history was fetched.
func (s *Server) HistoryRequests(channelID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyRequests[channelID]
}

// DelayHistory makes history responses for channelID arrive late.
func (s *Server) DelayHistory(channelID string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historyDelay[channelID] = d
}

// SeedMessage stores msg as if it had been sent earlier.
func (s *Server) SeedMessage(msg models.Message) {
	if msg.MessageType == "" {
		msg.MessageType = models.MessageTypeText
	}
	s.store.saveMessage(msg)
}

// Disconnects lists the user ids that called the disconnect endpoint.
func (s *Server) Disconnects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.disconnects...)
}

// IsOnline reports the stored presence flag of userID.
func (s *Server) IsOnline(userID string) bool {
	u, ok := s.store.user(userID)
	return ok && u.IsOnline
}
