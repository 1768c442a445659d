package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"dm-service/internal/mocks"
	"dm-service/internal/telemetry"
)

func TestEmitBuildsEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "audit.dm", "dm-service", "test")

	userID := "42"
	publisher.On("Publish", mock.Anything, "audit.dm", mock.MatchedBy(func(e telemetry.AuditEnvelope) bool {
		return e.SchemaVersion == 1 &&
			e.EventType == "audit_log" &&
			e.Service == "dm-service" &&
			e.Environment == "test" &&
			e.RequestID == "req-1" &&
			e.UserID != nil && *e.UserID == "42" &&
			e.Payload.Level == "info" &&
			e.Payload.Text == "message 7 sent to user 2"
	})).Return(nil).Once()

	emitter.Emit(context.Background(), "info", "message 7 sent to user 2", "req-1", &userID)

	publisher.AssertExpectations(t)
}

func TestEmitPublishErrorIsSwallowed(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "audit.dm", "dm-service", "test")

	publisher.On("Publish", mock.Anything, "audit.dm", mock.Anything).Return(assert.AnError).Once()

	emitter.Emit(context.Background(), "warn", "something", "", nil)

	publisher.AssertExpectations(t)
}

func TestEmitNilEmitterIsNoop(t *testing.T) {
	var emitter *telemetry.AuditEmitter
	emitter.Emit(context.Background(), "info", "ignored", "", nil)
}
