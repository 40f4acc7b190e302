package models

// Channel is a chat room known to the client.
type Channel struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   Timestamp `json:"created_at"`
	IsPrivate   bool      `json:"is_private"`
	MemberCount int       `json:"member_count"`
}

// CreateChannelRequest is the body of POST /api/channels.
type CreateChannelRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
}
