package port

import (
	"context"

	"github.com/SKB-CADDep/authentication-service/internal/core/domain"
)

// EventPublisher publishes authentication events to the message bus.
type EventPublisher interface {
	PublishIdentityCreated(ctx context.Context, event domain.IdentityCreatedEvent) error
	PublishIdentitySynced(ctx context.Context, event domain.IdentitySyncedEvent) error
	PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error
}
