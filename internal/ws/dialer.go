package ws

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 65536
	sendBuffer     = 256
)

// Handlers receive socket events. Every callback runs on the connection's
// reader goroutine, except OnClose which may also run on the writer goroutine
// or the goroutine calling Close.
type Handlers struct {
	OnMessage func(data []byte)
	OnError   func(err error)
	OnClose   func(err error)
}

// Dialer opens realtime connections to the chat backend.
type Dialer struct {
	base   *url.URL
	dialer *websocket.Dialer
}

// NewDialer derives the websocket root from the backend's HTTP base URL
// (http becomes ws, https becomes wss).
func NewDialer(apiBaseURL string, handshakeTimeout time.Duration) (*Dialer, error) {
	base, err := url.Parse(strings.TrimSuffix(apiBaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	switch base.Scheme {
	case "http", "ws":
		base.Scheme = "ws"
	case "https", "wss":
		base.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported api url scheme %q", base.Scheme)
	}
	if handshakeTimeout <= 0 {
		handshakeTimeout = 10 * time.Second
	}
	return &Dialer{
		base: base,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}, nil
}

// URL returns the socket address of userID.
func (d *Dialer) URL(userID string) string {
	u := *d.base
	u.RawPath = u.EscapedPath() + "/ws/" + url.PathEscape(userID)
	u.Path = u.Path + "/ws/" + userID
	return u.String()
}

// Dial performs the handshake. The returned Conn delivers nothing until
// Start is called.
func (d *Dialer) Dial(ctx context.Context, userID string, handlers Handlers) (*Conn, error) {
	target := d.URL(userID)
	ctx, span := otel.Tracer("chat-client/ws").Start(ctx, "ws.dial", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("ws.url", target), attribute.String("user.id", userID))

	conn, resp, err := d.dialer.DialContext(ctx, target, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial")
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", target, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		URL:         target,
		ConnectedAt: time.Now(),
	}
	span.SetAttributes(attribute.String("ws.conn_id", info.ConnID))
	return newConn(conn, info, handlers), nil
}
