package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/SKB-CADDep/authentication-service/internal/infra/config"
)

// ErrInvalidToken covers every verification failure: malformed input, bad
// signature, expiry, and kind mismatch. Callers never learn which, so the
// verifier cannot be used as an oracle.
var ErrInvalidToken = errors.New("security: invalid token")

// TokenKind discriminates access tokens from refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenClaims is the claim set carried by both token kinds. Email is only
// populated on access tokens.
type TokenClaims struct {
	Email *string   `json:"email,omitempty"`
	Kind  TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// Username returns the subject the token was issued for.
func (c *TokenClaims) Username() string {
	return c.RegisteredClaims.Subject
}

// TokenEngine issues and verifies HMAC-signed JWTs. Issue and Verify are pure
// computations over the configured secret and may run concurrently without
// locking.
type TokenEngine struct {
	secret     []byte
	method     *jwt.SigningMethodHMAC
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenEngine constructs a TokenEngine from JWT settings.
func NewTokenEngine(cfg config.JWTSettings) (*TokenEngine, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, fmt.Errorf("token engine: signing secret is required")
	}

	var method *jwt.SigningMethodHMAC
	switch cfg.Algorithm {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("token engine: unsupported algorithm %q", cfg.Algorithm)
	}

	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = 30 * time.Minute
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}

	return &TokenEngine{
		secret:     []byte(secret),
		method:     method,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// WithClock overrides the engine clock (primarily for testing).
func (e *TokenEngine) WithClock(now func() time.Time) *TokenEngine {
	if now != nil {
		e.now = now
	}
	return e
}

// AccessTokenTTL reports the configured access token lifetime.
func (e *TokenEngine) AccessTokenTTL() time.Duration {
	return e.accessTTL
}

// IssueAccess signs a short-lived access token for the subject. The email
// claim is included when present so trusting services can avoid an identity
// lookup.
func (e *TokenEngine) IssueAccess(subject string, email *string) (string, error) {
	return e.issue(subject, email, TokenKindAccess, e.accessTTL)
}

// IssueRefresh signs a renewable refresh token for the subject.
func (e *TokenEngine) IssueRefresh(subject string) (string, error) {
	return e.issue(subject, nil, TokenKindRefresh, e.refreshTTL)
}

func (e *TokenEngine) issue(subject string, email *string, kind TokenKind, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("token engine: subject is required")
	}

	now := e.now().UTC()
	claims := TokenClaims{
		Email: email,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(e.method, claims).SignedString(e.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}

	return signed, nil
}

// Verify checks signature integrity and expiry and returns the claims. Every
// failure collapses to ErrInvalidToken.
func (e *TokenEngine) Verify(token string) (*TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != e.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return e.secret, nil
	},
		jwt.WithValidMethods([]string{e.method.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || parsed == nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// VerifyAccess verifies the token and additionally requires the access kind.
func (e *TokenEngine) VerifyAccess(token string) (*TokenClaims, error) {
	return e.verifyKind(token, TokenKindAccess)
}

// VerifyRefresh verifies the token and additionally requires the refresh
// kind, so a leaked access token cannot be exchanged for a new pair.
func (e *TokenEngine) VerifyRefresh(token string) (*TokenClaims, error) {
	return e.verifyKind(token, TokenKindRefresh)
}

func (e *TokenEngine) verifyKind(token string, kind TokenKind) (*TokenClaims, error) {
	claims, err := e.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
