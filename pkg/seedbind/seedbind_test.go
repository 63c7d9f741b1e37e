package seedbind

import (
	"context"
	"testing"

	"github.com/cbodonnell/emberlink/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinder_BindsFreshSave(t *testing.T) {
	ctx := context.Background()
	gameAdapter := adapter.NewInMemoryAdapter()
	gameAdapter.LoadSave("")

	b := NewBinder(NewBinderOptions{
		GameAdapter: gameAdapter,
		ConfigSeed:  "seed-a",
	})

	effective, err := b.Check(ctx, "seed-a")
	require.NoError(t, err)
	assert.Equal(t, "seed-a", effective)

	saveSeed, loaded, err := gameAdapter.CurrentSaveSeed(ctx)
	require.NoError(t, err)
	require.True(t, loaded)
	assert.Equal(t, "seed-a", saveSeed)
}

func TestBinder_DoesNotBindBeforeHandshake(t *testing.T) {
	ctx := context.Background()
	gameAdapter := adapter.NewInMemoryAdapter()
	gameAdapter.LoadSave("")

	b := NewBinder(NewBinderOptions{
		GameAdapter: gameAdapter,
		ConfigSeed:  "seed-a",
	})

	// Offline: the server seed is unknown, so the save stays unbound.
	effective, err := b.Check(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "seed-a", effective)

	saveSeed, loaded, err := gameAdapter.CurrentSaveSeed(ctx)
	require.NoError(t, err)
	require.True(t, loaded)
	assert.Empty(t, saveSeed)
}

func TestBinder_MatchingBoundSaveIsAccepted(t *testing.T) {
	ctx := context.Background()
	gameAdapter := adapter.NewInMemoryAdapter()
	gameAdapter.LoadSave("seed-a")

	b := NewBinder(NewBinderOptions{
		GameAdapter: gameAdapter,
		ConfigSeed:  "seed-a",
	})

	effective, err := b.Check(ctx, "seed-a")
	require.NoError(t, err)
	assert.Equal(t, "seed-a", effective)
}

func TestBinder_ConflictingSeedsAreFatal(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		configSeed string
		serverSeed string
		saveSeed   string
		saveLoaded bool
	}{
		{
			name:       "server and config disagree",
			configSeed: "seed-a",
			serverSeed: "seed-b",
		},
		{
			name:       "save bound to another seed",
			configSeed: "seed-a",
			serverSeed: "seed-a",
			saveSeed:   "seed-b",
			saveLoaded: true,
		},
		{
			name:       "offline save bound to another seed",
			configSeed: "seed-a",
			saveSeed:   "seed-b",
			saveLoaded: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gameAdapter := adapter.NewInMemoryAdapter()
			if tt.saveLoaded {
				gameAdapter.LoadSave(tt.saveSeed)
			}

			b := NewBinder(NewBinderOptions{
				GameAdapter: gameAdapter,
				ConfigSeed:  tt.configSeed,
			})

			_, err := b.Check(ctx, tt.serverSeed)
			require.Error(t, err)
			assert.True(t, IsSeedConflict(err))
		})
	}
}

func TestBinder_NoSaveLoadedIsNotAConflict(t *testing.T) {
	ctx := context.Background()
	gameAdapter := adapter.NewInMemoryAdapter()

	b := NewBinder(NewBinderOptions{
		GameAdapter: gameAdapter,
		ConfigSeed:  "seed-a",
	})

	effective, err := b.Check(ctx, "seed-a")
	require.NoError(t, err)
	assert.Equal(t, "seed-a", effective)
}
