package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"
)

func newTestRepo(t *testing.T) (*RateLimitRepository, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	repo := NewRateLimitRepository(client, SlidingWindowConfig{
		KeyPrefix: "auth:rate-limit",
		TTL:       2 * time.Minute,
	})

	return repo, server
}

func TestRateLimitRepositoryRecordAndCount(t *testing.T) {
	repo, server := newTestRepo(t)
	ctx := context.Background()

	now := time.Now()
	window := time.Minute

	for i := 0; i < 3; i++ {
		if err := repo.RecordAttempt(ctx, "login:10.0.0.7", now.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("RecordAttempt returned error: %v", err)
		}
	}

	count, err := repo.CountAttempts(ctx, "login:10.0.0.7", window, now.Add(5*time.Second))
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 attempts, got %d", count)
	}

	remaining := server.TTL("auth:rate-limit:login:10.0.0.7")
	if remaining <= 0 || remaining > 2*time.Minute {
		t.Fatalf("expected ttl within (0, 2m], got %v", remaining)
	}
}

func TestRateLimitRepositoryTrimWindowDropsOldAttempts(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	now := time.Now()
	window := time.Minute

	if err := repo.RecordAttempt(ctx, "login:10.0.0.7", now.Add(-2*window)); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}
	if err := repo.RecordAttempt(ctx, "login:10.0.0.7", now); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}

	if err := repo.TrimWindow(ctx, "login:10.0.0.7", window, now); err != nil {
		t.Fatalf("TrimWindow returned error: %v", err)
	}

	count, err := repo.CountAttempts(ctx, "login:10.0.0.7", window, now)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 attempt after trim, got %d", count)
	}
}

func TestRateLimitRepositoryOldestAttempt(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	now := time.Now()
	window := time.Minute
	oldest := now.Add(-30 * time.Second)

	if _, found, err := repo.OldestAttempt(ctx, "login:10.0.0.7", window, now); err != nil {
		t.Fatalf("OldestAttempt returned error: %v", err)
	} else if found {
		t.Fatal("expected no attempts yet")
	}

	if err := repo.RecordAttempt(ctx, "login:10.0.0.7", oldest); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}
	if err := repo.RecordAttempt(ctx, "login:10.0.0.7", now); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}

	got, found, err := repo.OldestAttempt(ctx, "login:10.0.0.7", window, now)
	if err != nil {
		t.Fatalf("OldestAttempt returned error: %v", err)
	}
	if !found {
		t.Fatal("expected an attempt inside the window")
	}
	if !got.Equal(oldest) {
		t.Fatalf("expected oldest %v, got %v", oldest, got)
	}
}

func TestRateLimitRepositoryRejectsNonPositiveWindow(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.CountAttempts(ctx, "login:10.0.0.7", 0, time.Now()); err == nil {
		t.Fatal("expected error for zero window")
	}
	if err := repo.TrimWindow(ctx, "login:10.0.0.7", -time.Second, time.Now()); err == nil {
		t.Fatal("expected error for negative window")
	}
}
