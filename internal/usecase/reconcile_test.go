package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/SKB-CADDep/authentication-service/internal/core/domain"
)

func TestUpsertCreatesIdentityOnFirstSight(t *testing.T) {
	repo := newTestIdentityRepo()
	events := &capturingPublisher{}
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	service := NewReconcilerService(repo, events, zap.NewNop()).
		WithClock(func() time.Time { return at })

	identity, err := service.Upsert(context.Background(), testProfile("jdoe"))
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	if !identity.IsActive {
		t.Fatal("new identity must start active")
	}
	if identity.IsPrivileged {
		t.Fatal("new identity must start unprivileged")
	}
	if !identity.FirstSeen.Equal(at) || !identity.LastLogin.Equal(at) || !identity.LastDirectorySync.Equal(at) {
		t.Fatalf("expected all timestamps set to %v, got %+v", at, identity)
	}

	if len(events.created) != 1 {
		t.Fatalf("expected one created event, got %d", len(events.created))
	}
	if len(events.synced) != 0 {
		t.Fatalf("expected no synced event, got %d", len(events.synced))
	}
}

func TestUpsertIsIdempotentAndAdvancesTimestamps(t *testing.T) {
	repo := newTestIdentityRepo()
	events := &capturingPublisher{}

	first := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	second := first.Add(2 * time.Hour)

	clock := first
	service := NewReconcilerService(repo, events, zap.NewNop()).
		WithClock(func() time.Time { return clock })

	if _, err := service.Upsert(context.Background(), testProfile("jdoe")); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	clock = second
	identity, err := service.Upsert(context.Background(), testProfile("jdoe"))
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	if len(repo.identities) != 1 {
		t.Fatalf("expected a single identity record, got %d", len(repo.identities))
	}
	if !identity.FirstSeen.Equal(first) {
		t.Fatalf("first_seen must not move, got %v", identity.FirstSeen)
	}
	if !identity.LastLogin.Equal(second) || !identity.LastDirectorySync.Equal(second) {
		t.Fatalf("expected login and sync timestamps to advance to %v", second)
	}

	if len(events.created) != 1 || len(events.synced) != 1 {
		t.Fatalf("expected one created and one synced event, got %d/%d", len(events.created), len(events.synced))
	}
}

func TestUpsertPreservesAdminFlags(t *testing.T) {
	repo := newTestIdentityRepo()

	seeded := domain.NewLocalIdentity(testProfile("jdoe"), time.Now().Add(-48*time.Hour).UTC())
	seeded.IsActive = false
	seeded.IsPrivileged = true
	repo.identities["jdoe"] = seeded

	service := NewReconcilerService(repo, nil, zap.NewNop())

	profile := testProfile("jdoe")
	profile.Groups = []string{"CN=Other,DC=example,DC=local"}

	identity, err := service.Upsert(context.Background(), profile)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	if identity.IsActive {
		t.Fatal("sync must not reactivate a blocked identity")
	}
	if !identity.IsPrivileged {
		t.Fatal("sync must not drop the privileged flag")
	}
	if len(identity.Groups) != 1 || identity.Groups[0] != "CN=Other,DC=example,DC=local" {
		t.Fatalf("expected groups to be overwritten, got %v", identity.Groups)
	}
}

func TestUpsertWrapsStoreFailures(t *testing.T) {
	repo := newTestIdentityRepo()
	repo.err = errors.New("connection reset")

	service := NewReconcilerService(repo, nil, zap.NewNop())

	_, err := service.Upsert(context.Background(), testProfile("jdoe"))
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestUpsertRequiresUsername(t *testing.T) {
	service := NewReconcilerService(newTestIdentityRepo(), nil, zap.NewNop())

	if _, err := service.Upsert(context.Background(), domain.DirectoryProfile{}); err == nil {
		t.Fatal("expected error for profile without username")
	}
}
