package session

import (
	"errors"

	"chat-client/internal/api"
)

var (
	ErrInvalidUsername    = errors.New("username is required")
	ErrInvalidChannelName = errors.New("channel name is required")
	ErrAlreadyConnected   = errors.New("session already connected")
	ErrNotConnected       = errors.New("session not connected")
	// ErrConnectRejected wraps the backend's refusal of a username; the
	// backend's own message is available through *api.StatusError.
	ErrConnectRejected = errors.New("connect rejected")
	ErrNetworkFailure  = api.ErrNetworkFailure
)
