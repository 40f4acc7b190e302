package backendtest

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

type peer struct {
	userID string
	conn   *websocket.Conn
	mu     sync.Mutex
}

func (p *peer) write(payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub maintains the live websocket of every connected user.
type Hub struct {
	peers map[string]*peer
	mu    sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{peers: make(map[string]*peer)}
}

// Add registers conn for userID, closing any previous socket of that user.
func (h *Hub) Add(userID string, conn *websocket.Conn) *peer {
	p := &peer{userID: userID, conn: conn}
	h.mu.Lock()
	old := h.peers[userID]
	h.peers[userID] = p
	h.mu.Unlock()
	if old != nil {
		old.conn.Close()
	}
	return p
}

// Remove drops p if it is still the registered socket of its user.
func (h *Hub) Remove(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.peers[p.userID]; ok && cur == p {
		delete(h.peers, p.userID)
	}
}

func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.peers[userID]
	return ok
}

// SendTo writes event to a single user.
func (h *Hub) SendTo(userID string, event any) error {
	h.mu.RLock()
	p := h.peers[userID]
	h.mu.RUnlock()
	if p == nil {
		return errNotConnected
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.write(payload)
}

// Broadcast sends event to every connected user except excludeUserID.
func (h *Hub) Broadcast(event any, excludeUserID string) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("backendtest: marshal broadcast: %v", err)
		return
	}

	h.mu.RLock()
	peers := make([]*peer, 0, len(h.peers))
	for id, p := range h.peers {
		if id != excludeUserID {
			peers = append(peers, p)
		}
	}
	h.mu.RUnlock()

	for _, p := range peers {
		if err := p.write(payload); err != nil {
			log.Printf("backendtest: websocket write error user_id=%s: %v", p.userID, err)
			p.conn.Close()
			h.Remove(p)
		}
	}
}

// CloseAll closes every socket from the server side.
func (h *Hub) CloseAll() int {
	h.mu.Lock()
	peers := h.peers
	h.peers = make(map[string]*peer)
	h.mu.Unlock()
	for _, p := range peers {
		p.conn.Close()
	}
	return len(peers)
}
