package ws

import "time"

// ConnInfo identifies one dialed socket.
type ConnInfo struct {
	ConnID      string
	UserID      string
	URL         string
	ConnectedAt time.Time
}
