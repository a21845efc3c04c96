package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"club-chat-service/internal/mocks"
)

func TestEmitPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "audit.chat", "club-chat-service", "test")

	userID := int64(7)
	publisher.On("Publish", mock.Anything, "audit.chat", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(AuditEnvelope)
		if !ok {
			return false
		}
		return envelope.SchemaVersion == 1 &&
			envelope.EventType == "audit_log" &&
			envelope.Service == "club-chat-service" &&
			envelope.RequestID == "req-1" &&
			envelope.UserID != nil && *envelope.UserID == 7 &&
			envelope.Payload.Level == "INFO" &&
			envelope.Payload.Text == "something happened"
	})).Return(nil).Once()

	emitter.Emit(context.Background(), "INFO", "something happened", "req-1", &userID)
	publisher.AssertExpectations(t)
}

func TestEmitSwallowsPublishError(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "audit.chat", "club-chat-service", "test")

	publisher.On("Publish", mock.Anything, "audit.chat", mock.Anything).Return(assert.AnError).Once()

	// Must not panic or propagate.
	emitter.Emit(context.Background(), "ERROR", "boom", "req-2", nil)
	publisher.AssertExpectations(t)
}

func TestEmitNilEmitterIsNoop(t *testing.T) {
	var emitter *AuditEmitter
	emitter.Emit(context.Background(), "INFO", "ignored", "req-3", nil)
}
