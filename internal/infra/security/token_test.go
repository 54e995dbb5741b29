package security

import (
	"errors"
	"testing"
	"time"

	"github.com/SKB-CADDep/authentication-service/internal/infra/config"
)

func newTestEngine(t *testing.T, secret string) *TokenEngine {
	t.Helper()

	engine, err := NewTokenEngine(config.JWTSettings{
		Secret:          secret,
		Algorithm:       "HS256",
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 168 * time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to create token engine: %v", err)
	}

	return engine
}

func TestNewTokenEngineRequiresSecret(t *testing.T) {
	_, err := NewTokenEngine(config.JWTSettings{Secret: "   "})
	if err == nil {
		t.Fatal("expected error for blank secret")
	}
}

func TestNewTokenEngineRejectsUnknownAlgorithm(t *testing.T) {
	_, err := NewTokenEngine(config.JWTSettings{Secret: "secret", Algorithm: "RS256"})
	if err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	engine := newTestEngine(t, "test-secret")

	email := "jdoe@example.com"
	token, err := engine.IssueAccess("jdoe", &email)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}

	claims, err := engine.VerifyAccess(token)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}

	if claims.Username() != "jdoe" {
		t.Fatalf("expected subject jdoe, got %q", claims.Username())
	}
	if claims.Kind != TokenKindAccess {
		t.Fatalf("expected access kind, got %q", claims.Kind)
	}
	if claims.Email == nil || *claims.Email != email {
		t.Fatalf("expected email claim %q, got %v", email, claims.Email)
	}
}

func TestRefreshTokenCarriesNoEmail(t *testing.T) {
	engine := newTestEngine(t, "test-secret")

	token, err := engine.IssueRefresh("jdoe")
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}

	claims, err := engine.VerifyRefresh(token)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}

	if claims.Email != nil {
		t.Fatalf("expected no email claim, got %q", *claims.Email)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	engine := newTestEngine(t, "secret-one")
	other := newTestEngine(t, "secret-two")

	token, err := engine.IssueAccess("jdoe", nil)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}

	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	engine := newTestEngine(t, "test-secret")

	past := time.Now().Add(-2 * time.Hour)
	engine.WithClock(func() time.Time { return past })

	token, err := engine.IssueAccess("jdoe", nil)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}

	engine.WithClock(time.Now)

	if _, err := engine.VerifyAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyKindSeparation(t *testing.T) {
	engine := newTestEngine(t, "test-secret")

	access, err := engine.IssueAccess("jdoe", nil)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	refresh, err := engine.IssueRefresh("jdoe")
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}

	if _, err := engine.VerifyRefresh(access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected access token to fail refresh verification, got %v", err)
	}
	if _, err := engine.VerifyAccess(refresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected refresh token to fail access verification, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	engine := newTestEngine(t, "test-secret")

	for _, token := range []string{"", "   ", "not-a-token", "a.b.c"} {
		if _, err := engine.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", token, err)
		}
	}
}

func TestIssueRequiresSubject(t *testing.T) {
	engine := newTestEngine(t, "test-secret")

	if _, err := engine.IssueAccess("", nil); err == nil {
		t.Fatal("expected error for empty subject")
	}
}
