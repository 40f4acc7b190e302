package ws

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-client/internal/api"
	"chat-client/internal/backendtest"
	"chat-client/internal/models"
)

type recorder struct {
	mu       sync.Mutex
	messages [][]byte
	closes   int
	closeErr error
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnMessage: func(data []byte) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.messages = append(r.messages, data)
		},
		OnClose: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.closes++
			r.closeErr = err
		},
	}
}

func (r *recorder) messageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func (r *recorder) closeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

func connectUser(t *testing.T, srv *backendtest.Server, name string) models.User {
	t.Helper()
	user, err := api.NewClient(srv.URL, nil).ConnectUser(context.Background(), name)
	require.NoError(t, err)
	return user
}

func TestNewDialerSchemes(t *testing.T) {
	d, err := NewDialer("http://localhost:8000/", 0)
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8000/ws/u1", d.URL("u1"))

	d, err = NewDialer("https://chat.example.com/base", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "wss://chat.example.com/base/ws/a%20b", d.URL("a b"))

	_, err = NewDialer("ftp://example.com", 0)
	require.Error(t, err)
}

func TestDialSendAndReceive(t *testing.T) {
	srv := backendtest.New(t)
	alice := connectUser(t, srv, "alice")
	d, err := NewDialer(srv.URL, time.Second)
	require.NoError(t, err)

	rec := &recorder{}
	conn, err := d.Dial(context.Background(), alice.ID, rec.handlers())
	require.NoError(t, err)
	conn.Start()
	t.Cleanup(func() { _ = conn.Close() })

	assert.Equal(t, alice.ID, conn.Info().UserID)
	assert.NotEmpty(t, conn.Info().ConnID)

	require.NoError(t, conn.Send(models.OutboundTyping{Type: models.FrameTyping, ChannelID: "general", Username: "alice"}))
	require.Eventually(t, func() bool { return len(srv.FramesOfType(models.FrameTyping)) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool { return srv.Connected(alice.ID) }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, srv.Push(alice.ID, models.InboundFrame{Type: models.FrameUserTyping, ChannelID: "general", Username: "bob"}))
	require.Eventually(t, func() bool { return rec.messageCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestServerCloseFiresOnCloseOnce(t *testing.T) {
	srv := backendtest.New(t)
	alice := connectUser(t, srv, "alice")
	d, err := NewDialer(srv.URL, time.Second)
	require.NoError(t, err)

	rec := &recorder{}
	conn, err := d.Dial(context.Background(), alice.ID, rec.handlers())
	require.NoError(t, err)
	conn.Start()

	require.Eventually(t, func() bool { return srv.Connected(alice.ID) }, 2*time.Second, 10*time.Millisecond)
	srv.DropConnections()

	require.Eventually(t, func() bool { return rec.closeCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	_ = conn.Close()
	assert.Equal(t, 1, rec.closeCount())

	select {
	case <-conn.Done():
	default:
		t.Fatal("expected Done to be closed")
	}
	assert.ErrorIs(t, conn.Send(models.OutboundTyping{Type: models.FrameTyping}), ErrClosed)
}

func TestLocalCloseReportsNilError(t *testing.T) {
	srv := backendtest.New(t)
	alice := connectUser(t, srv, "alice")
	d, err := NewDialer(srv.URL, time.Second)
	require.NoError(t, err)

	rec := &recorder{}
	conn, err := d.Dial(context.Background(), alice.ID, rec.handlers())
	require.NoError(t, err)
	conn.Start()

	require.NoError(t, conn.Close())
	assert.Equal(t, 1, rec.closeCount())
	assert.NoError(t, rec.closeErr)
}

func TestDialRejected(t *testing.T) {
	srv := backendtest.New(t)
	srv.RejectSockets(true)
	d, err := NewDialer(srv.URL, time.Second)
	require.NoError(t, err)

	_, err = d.Dial(context.Background(), "u1", Handlers{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
