package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SKB-CADDep/authentication-service/internal/core/domain"
	"github.com/SKB-CADDep/authentication-service/internal/core/port"
	"github.com/SKB-CADDep/authentication-service/internal/infra/security"
	"github.com/SKB-CADDep/authentication-service/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the directory rejected the credentials
	// or the profile could not be resolved. The two cases are merged on
	// purpose so callers cannot enumerate usernames.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrIdentityBlocked indicates the directory credential was fine but the
	// local identity has been deactivated by an administrator.
	ErrIdentityBlocked = errors.New("identity is blocked")
	// ErrInvalidAccessToken indicates access token verification failed.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrInvalidRefreshToken indicates the presented token is not a valid,
	// unexpired refresh-kind token.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrIdentityNotFound indicates a known-valid subject has no identity
	// record. Tokens are only issued after an upsert, so this is an
	// internal-consistency anomaly rather than user error.
	ErrIdentityNotFound = errors.New("identity not found")
)

// AuthService composes the directory client, the identity reconciler, and
// the token engine into the login, validate, refresh, and who-am-i
// operations. The operations are independent; there is no shared session
// state between requests.
type AuthService struct {
	directory  port.DirectoryClient
	reconciler *ReconcilerService
	identities port.IdentityRepository
	tokens     *security.TokenEngine
	events     port.EventPublisher
	logger     *zap.Logger
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	directory port.DirectoryClient,
	reconciler *ReconcilerService,
	identities port.IdentityRepository,
	tokens *security.TokenEngine,
	events port.EventPublisher,
	logger *zap.Logger,
) (*AuthService, error) {
	if directory == nil {
		return nil, fmt.Errorf("directory client is required")
	}
	if reconciler == nil {
		return nil, fmt.Errorf("reconciler is required")
	}
	if identities == nil {
		return nil, fmt.Errorf("identity repository is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token engine is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuthService{
		directory:  directory,
		reconciler: reconciler,
		identities: identities,
		tokens:     tokens,
		events:     events,
		logger:     logger,
	}, nil
}

// LoginInput carries the credentials and request metadata for a login.
type LoginInput struct {
	Username  string
	Password  string
	IP        string
	UserAgent string
}

// TokenPair is an access/refresh token pair issued by login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// ValidationResult is the structured outcome of a token validation.
type ValidationResult struct {
	Valid    bool
	Username string
	Message  string
}

// Login authenticates the credentials against the directory, reconciles the
// local identity, and issues a token pair. A deactivated identity yields
// ErrIdentityBlocked with no tokens issued.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*TokenPair, *domain.LocalIdentity, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, nil, ErrInvalidCredentials
	}

	profile, err := s.directory.Authenticate(ctx, username, input.Password)
	if err != nil {
		// Bad credentials, missing profile, and directory outages all
		// collapse to the same failure: fail closed, leak nothing.
		s.logger.Warn("directory authentication failed",
			zap.String("username", username),
			zap.Error(err),
		)
		return nil, nil, ErrInvalidCredentials
	}

	identity, err := s.reconciler.Upsert(ctx, *profile)
	if err != nil {
		return nil, nil, err
	}

	if !identity.IsActive {
		s.logger.Warn("login blocked for inactive identity", zap.String("username", identity.Username))
		return nil, nil, ErrIdentityBlocked
	}

	pair, err := s.issuePair(identity.Username, identity.Email)
	if err != nil {
		return nil, nil, err
	}

	s.publishLogin(ctx, identity.Username, input)

	s.logger.Info("user logged in", zap.String("username", identity.Username))

	return pair, identity, nil
}

// ValidateToken reports whether the presented token is a valid access token.
// It is a pure, stateless check for trusting services: it never touches the
// identity store and never returns an error.
func (s *AuthService) ValidateToken(_ context.Context, token string) ValidationResult {
	claims, err := s.tokens.VerifyAccess(token)
	if err != nil {
		return ValidationResult{
			Valid:   false,
			Message: "invalid or expired token",
		}
	}

	return ValidationResult{
		Valid:    true,
		Username: claims.Username(),
	}
}

// Refresh exchanges a valid refresh token for a brand-new access/refresh
// pair bound to the same subject. The previous refresh token is not tracked
// server-side; rotation limits the blast radius of a leak to one renewal
// cycle. Active status is not re-checked and the directory is not contacted.
func (s *AuthService) Refresh(_ context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	return s.issuePair(claims.Username(), nil)
}

// WhoAmI resolves a valid access token to the corresponding local identity.
func (s *AuthService) WhoAmI(ctx context.Context, accessToken string) (*domain.LocalIdentity, error) {
	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, ErrInvalidAccessToken
	}

	return s.GetIdentity(ctx, claims.Username())
}

// GetIdentity looks up a local identity by username.
func (s *AuthService) GetIdentity(ctx context.Context, username string) (*domain.LocalIdentity, error) {
	identity, err := s.identities.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("lookup identity: %w", err)
	}

	return identity, nil
}

// ParseAccessToken verifies the access token and returns its claims. Used by
// the transport middleware guarding protected routes.
func (s *AuthService) ParseAccessToken(token string) (*security.TokenClaims, error) {
	claims, err := s.tokens.VerifyAccess(token)
	if err != nil {
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}

// AccessTokenTTL reports the configured access token lifetime in seconds.
func (s *AuthService) AccessTokenTTL() int {
	return int(s.tokens.AccessTokenTTL() / time.Second)
}

func (s *AuthService) issuePair(subject string, email *string) (*TokenPair, error) {
	access, err := s.tokens.IssueAccess(subject, email)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := s.tokens.IssueRefresh(subject)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.AccessTokenTTL(),
	}, nil
}

func (s *AuthService) publishLogin(ctx context.Context, username string, input LoginInput) {
	if s.events == nil {
		return
	}

	event := domain.LoginSucceededEvent{
		EventID:  uuid.NewString(),
		Username: username,
		LoggedAt: time.Now().UTC(),
	}
	if input.IP != "" {
		ip := input.IP
		event.IP = &ip
	}
	if input.UserAgent != "" {
		ua := input.UserAgent
		event.UserAgent = &ua
	}

	if err := s.events.PublishLoginSucceeded(ctx, event); err != nil {
		s.logger.Warn("publish login event failed",
			zap.String("username", username),
			zap.Error(err),
		)
	}
}
