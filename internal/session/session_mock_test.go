package session_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-client/internal/api"
	"chat-client/internal/backendtest"
	"chat-client/internal/mocks"
	"chat-client/internal/models"
	"chat-client/internal/session"
	"chat-client/internal/telemetry"
	"chat-client/internal/ws"
)

var _ session.Backend = (*mocks.BackendMock)(nil)

func newMockSession(t *testing.T, backend session.Backend, opts session.Options) (*session.Session, *backendtest.Server) {
	t.Helper()
	srv := backendtest.New(t)
	dialer, err := ws.NewDialer(srv.URL, time.Second)
	require.NoError(t, err)
	return session.New(backend, dialer, opts), srv
}

func TestConnectDegradesOnRosterAndHistoryFailures(t *testing.T) {
	backend := new(mocks.BackendMock)
	backend.On("ConnectUser", mock.Anything, "alice").Return(models.User{ID: "u1", Username: "alice", IsOnline: true}, nil)
	backend.On("ListChannels", mock.Anything).Return(nil, errors.New("boom"))
	backend.On("ListMessages", mock.Anything, "general").Return(nil, &api.StatusError{Status: http.StatusNotFound, Detail: "Channel not found"})
	backend.On("DisconnectUser", mock.Anything, "u1").Return(nil)
	s, _ := newMockSession(t, backend, testOptions())

	user, err := s.Connect(context.Background(), "alice")

	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, session.StateConnected, s.State())
	assert.NotNil(t, s.Channels())
	assert.Empty(t, s.Channels())
	assert.Empty(t, s.Messages())

	s.Disconnect(context.Background())
	backend.AssertExpectations(t)
}

func TestConnectDoesNotCallBackendForBlankUsername(t *testing.T) {
	backend := new(mocks.BackendMock)
	s, _ := newMockSession(t, backend, testOptions())

	_, err := s.Connect(context.Background(), "\t")

	assert.ErrorIs(t, err, session.ErrInvalidUsername)
	backend.AssertNotCalled(t, "ConnectUser", mock.Anything, mock.Anything)
}

func TestConnectNetworkErrorIsNotRejection(t *testing.T) {
	backend := new(mocks.BackendMock)
	backend.On("ConnectUser", mock.Anything, "alice").Return(nil, api.ErrNetworkFailure)
	s, srv := newMockSession(t, backend, testOptions())

	_, err := s.Connect(context.Background(), "alice")

	assert.ErrorIs(t, err, session.ErrNetworkFailure)
	assert.NotErrorIs(t, err, session.ErrConnectRejected)
	assert.Equal(t, session.StateDisconnected, s.State())
	assert.Zero(t, srv.Connects())
	backend.AssertNotCalled(t, "ListChannels", mock.Anything)
}

func TestDisconnectResetsStateWhenBackendFails(t *testing.T) {
	backend := new(mocks.BackendMock)
	backend.On("ConnectUser", mock.Anything, "alice").Return(models.User{ID: "u1", Username: "alice"}, nil)
	backend.On("ListChannels", mock.Anything).Return([]models.Channel{{ID: "general", Name: "General"}}, nil)
	backend.On("ListMessages", mock.Anything, "general").Return([]models.Message{}, nil)
	backend.On("DisconnectUser", mock.Anything, "u1").Return(api.ErrNetworkFailure).Once()
	s, srv := newMockSession(t, backend, testOptions())
	_, err := s.Connect(context.Background(), "alice")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.Connected("u1") }, waitFor, tick)

	s.Disconnect(context.Background())

	assert.Equal(t, session.StateDisconnected, s.State())
	assert.Empty(t, s.Channels())
	require.Eventually(t, func() bool { return !srv.Connected("u1") }, waitFor, tick)
	backend.AssertExpectations(t)
}

func TestLoadHistoryFailureYieldsEmpty(t *testing.T) {
	backend := new(mocks.BackendMock)
	backend.On("ListMessages", mock.Anything, "tech").Return(nil, errors.New("timeout"))
	s, _ := newMockSession(t, backend, testOptions())

	msgs := s.LoadHistory(context.Background(), "tech")

	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
	assert.Empty(t, s.ChannelMessages("tech"))
}

func TestLoadHistoryForInactiveChannelIsStored(t *testing.T) {
	backend := new(mocks.BackendMock)
	backend.On("ListMessages", mock.Anything, "music").Return([]models.Message{{ID: "m1", Text: "la", ChannelID: "music"}}, nil)
	s, _ := newMockSession(t, backend, testOptions())

	msgs := s.LoadHistory(context.Background(), "music")

	require.Len(t, msgs, 1)
	require.Len(t, s.ChannelMessages("music"), 1)
	assert.Empty(t, s.Messages())
}

func TestCreateChannelPassesRequest(t *testing.T) {
	backend := new(mocks.BackendMock)
	req := models.CreateChannelRequest{Name: "ops", Description: "on call", IsPrivate: true}
	backend.On("CreateChannel", mock.Anything, req).Return(models.Channel{ID: "ops", Name: "ops", IsPrivate: true}, nil)
	s, _ := newMockSession(t, backend, testOptions())

	ch, err := s.CreateChannel(context.Background(), " ops ", " on call ", true)

	require.NoError(t, err)
	assert.Equal(t, "ops", ch.ID)
	assert.Len(t, s.Channels(), 1)
	backend.AssertExpectations(t)
}

func TestSessionActionsAreAudited(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	publisher.ExpectAudit("audit.session", "session.connect", "success")
	publisher.ExpectAudit("audit.session", "channel.create", "rejected")
	publisher.ExpectAudit("audit.session", "session.disconnect", "success")

	backend := new(mocks.BackendMock)
	backend.On("ConnectUser", mock.Anything, "alice").Return(models.User{ID: "u1", Username: "alice"}, nil)
	backend.On("ListChannels", mock.Anything).Return([]models.Channel{}, nil)
	backend.On("ListMessages", mock.Anything, "general").Return([]models.Message{}, nil)
	backend.On("CreateChannel", mock.Anything, mock.Anything).Return(nil, &api.StatusError{Status: http.StatusBadRequest, Detail: "Channel already exists"})
	backend.On("DisconnectUser", mock.Anything, "u1").Return(nil)

	opts := testOptions()
	opts.Audit = telemetry.NewAuditEmitter(publisher, "audit.session", "chat-client", "test")
	s, _ := newMockSession(t, backend, opts)

	_, err := s.Connect(context.Background(), "alice")
	require.NoError(t, err)
	_, err = s.CreateChannel(context.Background(), "general", "", false)
	require.ErrorIs(t, err, api.ErrRejected)
	s.Disconnect(context.Background())

	publisher.AssertExpectations(t)
	assert.Equal(t, []string{"session.connect/success", "channel.create/rejected", "session.disconnect/success"}, publisher.AuditTrail())
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLog(t *testing.T) *lockedBuffer {
	t.Helper()
	out := &lockedBuffer{}
	log.SetOutput(out)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return out
}

func TestDisconnectDuringConnectReleasesUser(t *testing.T) {
	logs := captureLog(t)
	var s *session.Session
	backend := new(mocks.BackendMock)
	backend.On("ConnectUser", mock.Anything, "alice").
		Run(func(mock.Arguments) { s.Disconnect(context.Background()) }).
		Return(models.User{ID: "u1", Username: "alice"}, nil)
	backend.On("DisconnectUser", mock.Anything, "u1").Return(api.ErrNetworkFailure).Once()
	s, srv := newMockSession(t, backend, testOptions())

	_, err := s.Connect(context.Background(), "alice")

	assert.ErrorIs(t, err, session.ErrNotConnected)
	assert.Equal(t, session.StateDisconnected, s.State())
	_, ok := s.User()
	assert.False(t, ok)
	assert.Zero(t, srv.Connects())
	backend.AssertExpectations(t)
	assert.Contains(t, logs.String(), "disconnect notify failed user_id=u1")
}

// historyGate answers the first history request for a channel only after
// release is closed, with content older than any later request.
type historyGate struct {
	*mocks.BackendMock
	entered chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func (g *historyGate) ListMessages(ctx context.Context, channelID string) ([]models.Message, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()

	if n == 1 {
		close(g.entered)
		<-g.release
		return []models.Message{{ID: "old", Text: "old", ChannelID: channelID}}, nil
	}
	return []models.Message{{ID: "old", Text: "old", ChannelID: channelID}, {ID: "new", Text: "new", ChannelID: channelID}}, nil
}

func TestOlderPrefetchDoesNotOverwriteNewerHistory(t *testing.T) {
	gate := &historyGate{
		BackendMock: new(mocks.BackendMock),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	s, _ := newMockSession(t, gate, testOptions())
	require.Equal(t, session.DefaultChannel, s.ActiveChannel())

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.LoadHistory(context.Background(), "random")
	}()
	<-gate.entered

	require.True(t, s.SwitchChannel(context.Background(), "random"))
	require.Len(t, s.ChannelMessages("random"), 2)

	close(gate.release)
	<-done

	msgs := s.ChannelMessages("random")
	require.Len(t, msgs, 2)
	assert.Equal(t, "new", msgs[1].ID)
}
