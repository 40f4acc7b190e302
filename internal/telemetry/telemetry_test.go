package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	routingKey string
	event      any
	err        error
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, event any) error {
	p.routingKey = routingKey
	p.event = event
	return p.err
}

func TestAuditEmitterPublishesEnvelope(t *testing.T) {
	pub := &recordingPublisher{}
	emitter := NewAuditEmitter(pub, "audit.chat_client", "chat-client", "test")

	emitter.Emit(context.Background(), "u1", "connect", "ok", "")

	require.Equal(t, "audit.chat_client", pub.routingKey)
	env, ok := pub.event.(AuditEnvelope)
	require.True(t, ok)
	assert.Equal(t, "audit_log", env.EventType)
	assert.Equal(t, "chat-client", env.Service)
	assert.Equal(t, "test", env.Environment)
	assert.Equal(t, "u1", env.UserID)
	assert.Equal(t, AuditPayload{Action: "connect", Outcome: "ok"}, env.Payload)
	assert.NotEmpty(t, env.OccurredAt)
}

func TestAuditEmitterSwallowsPublishErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	emitter := NewAuditEmitter(pub, "audit.chat_client", "chat-client", "test")

	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "", "disconnect", "error", "broker down")
	})
}

func TestNilAuditEmitterIsNoop(t *testing.T) {
	var emitter *AuditEmitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "u1", "connect", "ok", "")
	})
}

func TestSetupTracingNoopWithoutEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "chat-client", "  ")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetupTracingAcceptsURLEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "chat-client", "http://192.0.2.1:4317/")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// the exporter never connected; shutdown with a cancelled context must not hang
	_ = shutdown(ctx)
}
