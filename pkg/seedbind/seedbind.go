package seedbind

import (
	"context"
	"fmt"

	"github.com/cbodonnell/emberlink/pkg/adapter"
	"github.com/cbodonnell/emberlink/pkg/log"
)

// SeedConflictError means two seed sources disagree. Continuing with
// mismatched seeds would corrupt the save, so this is fatal.
type SeedConflictError struct {
	SourceA string
	SeedA   string
	SourceB string
	SeedB   string
}

func (e *SeedConflictError) Error() string {
	return fmt.Sprintf("seed conflict: %s has seed %q but %s has seed %q", e.SourceA, e.SeedA, e.SourceB, e.SeedB)
}

// IsSeedConflict checks if the error is a SeedConflictError
func IsSeedConflict(err error) bool {
	_, ok := err.(*SeedConflictError)
	return ok
}

// Binder ties a save file to the seed it was started under. A fresh save
// binds to the session seed on first contact; a bound save refuses to run
// under any other seed.
type Binder struct {
	gameAdapter adapter.GameAdapter
	configSeed  string
}

// NewBinderOptions contains options for creating a new Binder.
type NewBinderOptions struct {
	GameAdapter adapter.GameAdapter
	ConfigSeed  string
}

func NewBinder(opts NewBinderOptions) *Binder {
	return &Binder{
		gameAdapter: opts.GameAdapter,
		configSeed:  opts.ConfigSeed,
	}
}

// Check verifies that the server seed, the configured seed, and the loaded
// save's bound seed all agree, binding the save when it is still fresh.
// serverSeed may be empty before the handshake completes; binding only
// happens once it is known. Returns the effective seed.
func (b *Binder) Check(ctx context.Context, serverSeed string) (string, error) {
	if b.configSeed != "" && serverSeed != "" && b.configSeed != serverSeed {
		return "", &SeedConflictError{
			SourceA: "the server",
			SeedA:   serverSeed,
			SourceB: "the local config",
			SeedB:   b.configSeed,
		}
	}

	effective := serverSeed
	if effective == "" {
		effective = b.configSeed
	}

	saveSeed, loaded, err := b.gameAdapter.CurrentSaveSeed(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read save seed: %v", err)
	}
	if !loaded {
		return effective, nil
	}

	if saveSeed != "" && effective != "" && saveSeed != effective {
		source := "the server"
		if serverSeed == "" {
			source = "the local config"
		}
		return "", &SeedConflictError{
			SourceA: source,
			SeedA:   effective,
			SourceB: "the loaded save",
			SeedB:   saveSeed,
		}
	}

	if saveSeed == "" && serverSeed != "" {
		if err := b.gameAdapter.BindSaveSeed(ctx, serverSeed); err != nil {
			return "", fmt.Errorf("failed to bind save seed: %v", err)
		}
		log.Info("Bound save to seed %s", serverSeed)
	}

	return effective, nil
}
