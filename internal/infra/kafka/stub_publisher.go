package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/SKB-CADDep/authentication-service/internal/core/domain"
	"github.com/SKB-CADDep/authentication-service/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no
// brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, username string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("username", username),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishIdentityCreated logs auth.identity.created events.
func (p *StubPublisher) PublishIdentityCreated(_ context.Context, event domain.IdentityCreatedEvent) error {
	payload := map[string]any{
		"username":   event.Username,
		"email":      event.Email,
		"groups":     event.Groups,
		"created_at": event.CreatedAt,
		"metadata":   event.Metadata,
	}
	p.logEvent("auth.identity.created", event.Username, event.CreatedAt, payload)
	return nil
}

// PublishIdentitySynced logs auth.identity.synced events.
func (p *StubPublisher) PublishIdentitySynced(_ context.Context, event domain.IdentitySyncedEvent) error {
	payload := map[string]any{
		"username":  event.Username,
		"groups":    event.Groups,
		"synced_at": event.SyncedAt,
		"metadata":  event.Metadata,
	}
	p.logEvent("auth.identity.synced", event.Username, event.SyncedAt, payload)
	return nil
}

// PublishLoginSucceeded logs auth.login.succeeded events.
func (p *StubPublisher) PublishLoginSucceeded(_ context.Context, event domain.LoginSucceededEvent) error {
	payload := map[string]any{
		"username":   event.Username,
		"ip":         event.IP,
		"user_agent": event.UserAgent,
		"logged_at":  event.LoggedAt,
		"metadata":   event.Metadata,
	}
	p.logEvent("auth.login.succeeded", event.Username, event.LoggedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
