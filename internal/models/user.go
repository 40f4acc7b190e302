package models

// User is the identity the backend assigns to a connected username.
type User struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	IsOnline bool      `json:"is_online"`
	LastSeen Timestamp `json:"last_seen"`
}

// ConnectUserRequest registers a username with the backend.
type ConnectUserRequest struct {
	Username string `json:"username"`
}
