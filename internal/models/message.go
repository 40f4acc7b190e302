package models

// MessageTypeText is the only message type the backend produces.
const MessageTypeText = "text"

// Message represents a chat message.
type Message struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	SenderID       string    `json:"sender_id"`
	SenderUsername string    `json:"sender_username"`
	ChannelID      string    `json:"channel_id"`
	Timestamp      Timestamp `json:"timestamp"`
	MessageType    string    `json:"message_type,omitempty"`
}

// Frame types exchanged over the realtime socket.
const (
	// Client -> Server
	FrameMessage = "message"
	FrameTyping  = "typing"

	// Server -> Client
	FrameNewMessage  = "new_message"
	FrameUserTyping  = "user_typing"
	FrameMessageSent = "message_sent"
)

// OutboundMessage carries a chat message from the client.
type OutboundMessage struct {
	Type           string `json:"type"`
	Text           string `json:"text"`
	ChannelID      string `json:"channel_id"`
	SenderUsername string `json:"sender_username"`
}

// OutboundTyping announces that the local user started typing.
type OutboundTyping struct {
	Type      string `json:"type"`
	ChannelID string `json:"channel_id"`
	Username  string `json:"username"`
}

// InboundFrame is any frame pushed by the server. Only the fields relevant to
// Type are populated.
type InboundFrame struct {
	Type      string   `json:"type"`
	Message   *Message `json:"message,omitempty"`
	ChannelID string   `json:"channel_id,omitempty"`
	Username  string   `json:"username,omitempty"`
	UserID    string   `json:"user_id,omitempty"`
	MessageID string   `json:"message_id,omitempty"`
}
