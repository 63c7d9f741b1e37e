package state

import (
	"context"
	"time"
)

// Snapshot is a point-in-time view of the sync client, published once per
// loop pass and served read-only to the status API.
type Snapshot struct {
	SessionState   string            `json:"sessionState"`
	Seed           string            `json:"seed,omitempty"`
	Slot           string            `json:"slot"`
	ItemsApplied   int               `json:"itemsApplied"`
	ItemsTotal     int               `json:"itemsTotal"`
	ChecksReported int               `json:"checksReported"`
	ChecksTotal    int               `json:"checksTotal"`
	DeathLink      DeathLinkSnapshot `json:"deathLink"`
	Prints         []string          `json:"prints,omitempty"`
	FatalError     string            `json:"fatalError,omitempty"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// DeathLinkSnapshot is the death link coordinator's portion of a Snapshot.
type DeathLinkSnapshot struct {
	Enabled   bool      `json:"enabled"`
	State     string    `json:"state,omitempty"`
	Amnesty   int       `json:"amnesty"`
	LastCause string    `json:"lastCause,omitempty"`
	Cooldown  time.Time `json:"cooldown,omitempty"`
}

// StateManager provides shared access to the client snapshot.
// Implementations must be thread-safe.
type StateManager interface {
	// Get returns a copy of the current snapshot.
	Get(ctx context.Context) (*Snapshot, error)
	// Set sets the current snapshot.
	Set(ctx context.Context, snapshot *Snapshot) error
}
