package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-client/internal/rabbitmq"
	"chat-client/internal/telemetry"
)

var _ rabbitmq.Publisher = (*PublisherMock)(nil)

// PublisherMock stands in for the AMQP event publisher.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// ExpectAudit expects one audit envelope with the given action and outcome
// on routingKey.
func (m *PublisherMock) ExpectAudit(routingKey, action, outcome string) *mock.Call {
	return m.On("Publish", mock.Anything, routingKey, mock.MatchedBy(func(env telemetry.AuditEnvelope) bool {
		return env.EventType == "audit_log" && env.Payload.Action == action && env.Payload.Outcome == outcome
	})).Return(nil).Once()
}

// AuditTrail lists "action/outcome" for every audit envelope published so far,
// in order.
func (m *PublisherMock) AuditTrail() []string {
	var trail []string
	for _, call := range m.Calls {
		if call.Method != "Publish" {
			continue
		}
		if env, ok := call.Arguments.Get(2).(telemetry.AuditEnvelope); ok {
			trail = append(trail, env.Payload.Action+"/"+env.Payload.Outcome)
		}
	}
	return trail
}
