package port

import (
	"context"
	"time"

	"github.com/SKB-CADDep/authentication-service/internal/core/domain"
)

// IdentityRepository exposes persistence behavior for local identities.
type IdentityRepository interface {
	GetByUsername(ctx context.Context, username string) (*domain.LocalIdentity, error)
	// Upsert atomically creates the identity on first sight or overwrites the
	// directory mirror fields of an existing one, advancing last_login and
	// last_directory_sync to the supplied time. Status flags are preserved.
	Upsert(ctx context.Context, profile domain.DirectoryProfile, at time.Time) (*domain.LocalIdentity, error)
}
