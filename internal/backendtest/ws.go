package backendtest

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-client/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleWS(c *gin.Context) {
	userID := c.Param("user_id")

	s.mu.Lock()
	reject := s.rejectSockets
	s.mu.Unlock()
	if reject {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "sockets unavailable"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	p := s.hub.Add(userID, conn)
	s.mu.Lock()
	s.connects = append(s.connects, time.Now())
	s.mu.Unlock()

	defer func() {
		s.hub.Remove(p)
		s.store.setOffline(userID)
		conn.Close()
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("backendtest: websocket read user_id=%s: %v", userID, err)
			}
			return
		}
		s.handleFrame(userID, data)
	}
}

func (s *Server) handleFrame(userID string, data []byte) {
	var frame ReceivedFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Printf("backendtest: bad frame user_id=%s: %v", userID, err)
		return
	}
	frame.UserID = userID
	s.mu.Lock()
	s.frames = append(s.frames, frame)
	s.mu.Unlock()

	switch frame.Type {
	case models.FrameMessage:
		sender := frame.SenderUsername
		if sender == "" {
			sender = "Unknown"
		}
		msg := models.Message{
			ID:             uuid.NewString(),
			Text:           frame.Text,
			SenderID:       userID,
			SenderUsername: sender,
			ChannelID:      frame.ChannelID,
			Timestamp:      models.NewTimestamp(time.Now().UTC()),
			MessageType:    models.MessageTypeText,
		}
		s.store.saveMessage(msg)
		s.hub.Broadcast(models.InboundFrame{Type: models.FrameNewMessage, Message: &msg}, userID)
		_ = s.hub.SendTo(userID, models.InboundFrame{Type: models.FrameMessageSent, MessageID: msg.ID})
	case models.FrameTyping:
		username := frame.Username
		if username == "" {
			username = "Unknown"
		}
		s.hub.Broadcast(models.InboundFrame{
			Type:      models.FrameUserTyping,
			UserID:    userID,
			Username:  username,
			ChannelID: frame.ChannelID,
		}, userID)
	}
}

// Push writes an arbitrary frame to userID's socket.
func (s *Server) Push(userID string, frame any) error {
	return s.hub.SendTo(userID, frame)
}

// PushRaw writes raw bytes to userID's socket.
func (s *Server) PushRaw(userID string, data []byte) error {
	s.hub.mu.RLock()
	p := s.hub.peers[userID]
	s.hub.mu.RUnlock()
	if p == nil {
		return errNotConnected
	}
	return p.write(data)
}

// Connected reports whether userID currently holds a socket.
func (s *Server) Connected(userID string) bool {
	return s.hub.Connected(userID)
}

// DropConnections closes every socket from the server side.
func (s *Server) DropConnections() int {
	return s.hub.CloseAll()
}

// RejectSockets makes subsequent websocket handshakes fail with 503.
func (s *Server) RejectSockets(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectSockets = reject
}

// Connects reports how many websocket handshakes succeeded.
func (s *Server) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connects)
}

// ConnectTimes returns when each websocket handshake succeeded.
func (s *Server) ConnectTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.connects...)
}

// Frames returns every frame read from clients, in arrival order.
func (s *Server) Frames() []ReceivedFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ReceivedFrame(nil), s.frames...)
}

// FramesOfType filters Frames by type.
func (s *Server) FramesOfType(frameType string) []ReceivedFrame {
	var out []ReceivedFrame
	for _, f := range s.Frames() {
		if f.Type == frameType {
			out = append(out, f)
		}
	}
	return out
}
