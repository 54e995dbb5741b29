package port

import (
	"context"

	"github.com/SKB-CADDep/authentication-service/internal/core/domain"
)

// DirectoryClient verifies credentials against the external directory and
// resolves the authenticated user's profile. Any failure, including directory
// outages, must surface as an error: the gateway never treats an unreachable
// directory as a successful authentication.
type DirectoryClient interface {
	Authenticate(ctx context.Context, username, password string) (*domain.DirectoryProfile, error)
}
