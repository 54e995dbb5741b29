package domain

import "time"

// IdentityCreatedEvent is emitted when a first login creates a local identity.
type IdentityCreatedEvent struct {
	EventID   string
	Username  string
	Email     *string
	Groups    []string
	CreatedAt time.Time
	Metadata  map[string]any
}

// IdentitySyncedEvent is emitted when a login refreshes an existing identity
// from the directory.
type IdentitySyncedEvent struct {
	EventID  string
	Username string
	Groups   []string
	SyncedAt time.Time
	Metadata map[string]any
}

// LoginSucceededEvent is emitted after a token pair has been issued.
type LoginSucceededEvent struct {
	EventID   string
	Username  string
	IP        *string
	UserAgent *string
	LoggedAt  time.Time
	Metadata  map[string]any
}
