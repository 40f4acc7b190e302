package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-client/internal/backendtest"
	"chat-client/internal/models"
)

func TestConnectUserSuccess(t *testing.T) {
	srv := backendtest.New(t)
	client := NewClient(srv.URL+"/", nil)

	user, err := client.ConnectUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, user.IsOnline)
	assert.Equal(t, srv.URL, client.BaseURL())
}

func TestConnectUserTakenSurfacesDetail(t *testing.T) {
	srv := backendtest.New(t)
	client := NewClient(srv.URL, nil)

	_, err := client.ConnectUser(context.Background(), "alice")
	require.NoError(t, err)

	_, err = client.ConnectUser(context.Background(), "alice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejected))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.Status)
	assert.Equal(t, "Username already taken", statusErr.Detail)
	assert.Equal(t, "Username already taken", err.Error())
}

func TestListChannelsReturnsSeededChannels(t *testing.T) {
	srv := backendtest.New(t)
	client := NewClient(srv.URL, nil)

	channels, err := client.ListChannels(context.Background())
	require.NoError(t, err)

	ids := make([]string, 0, len(channels))
	for _, ch := range channels {
		ids = append(ids, ch.ID)
	}
	assert.Equal(t, []string{"general", "random", "tech", "music"}, ids)
}

func TestCreateChannelAndDuplicate(t *testing.T) {
	srv := backendtest.New(t)
	client := NewClient(srv.URL, nil)
	ctx := context.Background()

	ch, err := client.CreateChannel(ctx, models.CreateChannelRequest{Name: "Go Lang", Description: "gophers", IsPrivate: true})
	require.NoError(t, err)
	assert.Equal(t, "go-lang", ch.ID)
	assert.Equal(t, "Go Lang", ch.Name)
	assert.True(t, ch.IsPrivate)

	_, err = client.CreateChannel(ctx, models.CreateChannelRequest{Name: "go lang"})
	require.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, "Channel already exists", err.Error())
}

func TestListMessagesUnknownChannel(t *testing.T) {
	srv := backendtest.New(t)
	client := NewClient(srv.URL, nil)

	_, err := client.ListMessages(context.Background(), "nope")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Status)
	assert.Equal(t, "Channel not found", statusErr.Detail)
}

func TestListMessagesEmptyIsNotNil(t *testing.T) {
	srv := backendtest.New(t)
	client := NewClient(srv.URL, nil)

	msgs, err := client.ListMessages(context.Background(), "general")
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
	assert.Equal(t, 1, srv.HistoryRequests("general"))
}

func TestDisconnectUserMarksOffline(t *testing.T) {
	srv := backendtest.New(t)
	client := NewClient(srv.URL, nil)
	ctx := context.Background()

	user, err := client.ConnectUser(ctx, "bob")
	require.NoError(t, err)
	require.True(t, srv.IsOnline(user.ID))

	require.NoError(t, client.DisconnectUser(ctx, user.ID))
	assert.False(t, srv.IsOnline(user.ID))
	assert.Equal(t, []string{user.ID}, srv.Disconnects())
}

func TestHealth(t *testing.T) {
	srv := backendtest.New(t)
	require.NoError(t, NewClient(srv.URL, nil).Health(context.Background()))
}

func TestTransportFailureIsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, nil).ListChannels(context.Background())
	require.ErrorIs(t, err, ErrNetworkFailure)
	assert.False(t, errors.Is(err, ErrRejected))
}

func TestServerErrorIsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, nil).Health(context.Background())
	require.ErrorIs(t, err, ErrNetworkFailure)
	assert.Equal(t, "boom", err.Error())
}

func TestValidationDetailListIsKeptRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":[{"msg":"field required"}]}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).ConnectUser(context.Background(), "x")
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "field required")
}

func TestUndecodableBodyIsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).ListChannels(context.Background())
	require.ErrorIs(t, err, ErrNetworkFailure)
}

func TestRequestCarriesRequestID(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-Id")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).ListChannels(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}
