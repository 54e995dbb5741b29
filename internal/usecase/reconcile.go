package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SKB-CADDep/authentication-service/internal/core/domain"
	"github.com/SKB-CADDep/authentication-service/internal/core/port"
)

// ErrStoreUnavailable indicates the identity persistence layer is unreachable
// or failing. It is kept distinct from other failures because it usually
// points at infrastructure misconfiguration rather than bad input.
var ErrStoreUnavailable = errors.New("identity store unavailable")

// ReconcilerService maps directory profiles onto local identity records.
type ReconcilerService struct {
	identities port.IdentityRepository
	events     port.EventPublisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewReconcilerService constructs a ReconcilerService instance.
func NewReconcilerService(identities port.IdentityRepository, events port.EventPublisher, logger *zap.Logger) *ReconcilerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcilerService{
		identities: identities,
		events:     events,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the reconciler clock (primarily for testing).
func (s *ReconcilerService) WithClock(now func() time.Time) *ReconcilerService {
	if now != nil {
		s.now = now
	}
	return s
}

// Upsert creates or refreshes the local identity for the supplied profile.
// Repeated calls with the same profile never create duplicate identities;
// the login and sync timestamps advance on every call. Administrator-owned
// flags survive the sync untouched.
func (s *ReconcilerService) Upsert(ctx context.Context, profile domain.DirectoryProfile) (*domain.LocalIdentity, error) {
	if profile.Username == "" {
		return nil, fmt.Errorf("profile username is required")
	}

	at := s.now().UTC()

	identity, err := s.identities.Upsert(ctx, profile, at)
	if err != nil {
		s.logger.Error("identity upsert failed",
			zap.String("username", profile.Username),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	created := identity.FirstSeen.Equal(identity.LastLogin)
	if created {
		s.logger.Info("created local identity", zap.String("username", identity.Username))
	} else {
		s.logger.Info("synced local identity", zap.String("username", identity.Username))
	}

	s.publishSyncEvent(ctx, identity, created, at)

	return identity, nil
}

// publishSyncEvent emits identity lifecycle events best-effort; event bus
// failures never fail a login.
func (s *ReconcilerService) publishSyncEvent(ctx context.Context, identity *domain.LocalIdentity, created bool, at time.Time) {
	if s.events == nil {
		return
	}

	var err error
	if created {
		err = s.events.PublishIdentityCreated(ctx, domain.IdentityCreatedEvent{
			EventID:   uuid.NewString(),
			Username:  identity.Username,
			Email:     identity.Email,
			Groups:    identity.Groups,
			CreatedAt: at,
		})
	} else {
		err = s.events.PublishIdentitySynced(ctx, domain.IdentitySyncedEvent{
			EventID:  uuid.NewString(),
			Username: identity.Username,
			Groups:   identity.Groups,
			SyncedAt: at,
		})
	}

	if err != nil {
		s.logger.Warn("publish identity event failed",
			zap.String("username", identity.Username),
			zap.Error(err),
		)
	}
}
