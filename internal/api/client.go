package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chat-client/internal/models"
	"chat-client/internal/observability"
)

var (
	// ErrRejected marks a 4xx answer; the backend's detail is in *StatusError.
	ErrRejected = errors.New("request rejected")
	// ErrNetworkFailure marks transport errors, 5xx answers and undecodable bodies.
	ErrNetworkFailure = errors.New("network failure")
)

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	return e.Detail
}

func (e *StatusError) Unwrap() error {
	if e.Status >= 400 && e.Status < 500 {
		return ErrRejected
	}
	return ErrNetworkFailure
}

// Client wraps the chat backend REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs the wrapper. A nil httpClient uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: httpClient}
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ConnectUser registers username and returns the identity assigned to it.
func (c *Client) ConnectUser(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := c.do(ctx, http.MethodPost, "/api/users/connect", "/api/users/connect", models.ConnectUserRequest{Username: username}, &user)
	return user, err
}

// DisconnectUser tells the backend the user is leaving.
func (c *Client) DisconnectUser(ctx context.Context, userID string) error {
	path := "/api/users/" + url.PathEscape(userID) + "/disconnect"
	return c.do(ctx, http.MethodPost, "/api/users/:id/disconnect", path, nil, nil)
}

// ListChannels returns every channel visible to the client.
func (c *Client) ListChannels(ctx context.Context) ([]models.Channel, error) {
	var channels []models.Channel
	if err := c.do(ctx, http.MethodGet, "/api/channels", "/api/channels", nil, &channels); err != nil {
		return nil, err
	}
	if channels == nil {
		channels = []models.Channel{}
	}
	return channels, nil
}

// CreateChannel creates a channel and returns it as stored by the backend.
func (c *Client) CreateChannel(ctx context.Context, req models.CreateChannelRequest) (models.Channel, error) {
	var channel models.Channel
	err := c.do(ctx, http.MethodPost, "/api/channels", "/api/channels", req, &channel)
	return channel, err
}

// ListMessages returns the recent history of a channel, oldest first.
func (c *Client) ListMessages(ctx context.Context, channelID string) ([]models.Message, error) {
	path := "/api/channels/" + url.PathEscape(channelID) + "/messages"
	var msgs []models.Message
	if err := c.do(ctx, http.MethodGet, "/api/channels/:id/messages", path, nil, &msgs); err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

// Health probes GET /api/health.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", "/api/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, route, path string, body, out any) error {
	ctx, span := otel.Tracer("chat-client/api").Start(ctx, method+" "+route, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", route, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", route, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	traceID := ""
	if sc := span.SpanContext(); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	for key, value := range observability.BuildHeaders(requestID, traceID) {
		req.Header.Set(key, value)
	}
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("http.route", route),
		attribute.String("request.id", requestID),
	)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.ObserveBackendRequest(method, route, 0, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return fmt.Errorf("%s %s: %w: %w", method, path, ErrNetworkFailure, err)
	}
	defer resp.Body.Close()
	observability.ObserveBackendRequest(method, route, resp.StatusCode, time.Since(start))
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Status: resp.StatusCode, Detail: readDetail(resp)}
		span.SetStatus(codes.Error, statusErr.Detail)
		return statusErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		span.RecordError(err)
		return fmt.Errorf("decode %s response: %w: %w", route, ErrNetworkFailure, err)
	}
	return nil
}

// readDetail extracts the {"detail": ...} message of an error body. Validation
// errors carry a list instead of a string; those are returned as raw JSON.
func readDetail(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && len(body.Detail) > 0 && string(body.Detail) != "null" {
		var text string
		if err := json.Unmarshal(body.Detail, &text); err == nil && text != "" {
			return text
		}
		return string(body.Detail)
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
