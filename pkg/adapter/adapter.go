package adapter

import "context"

// ItemInstance is one concrete item in the player's inventory.
type ItemInstance struct {
	ID         string
	TemplateID string
}

// GameAdapter is the capability set the synchronization loop consumes to
// observe and mutate the running game. Implementations hook the game engine;
// the core treats them as an external, possibly failing resource. Read
// operations are consistent-at-a-point-in-time snapshots, not transactional,
// so callers must re-validate before applying writes.
type GameAdapter interface {
	// ReadInventory returns a snapshot of the player's current inventory.
	ReadInventory(ctx context.Context) ([]ItemInstance, error)

	// GrantItem synthesizes a concrete in-game item from the given template
	// and places it in the player's inventory.
	GrantItem(ctx context.Context, templateID string) (ItemInstance, error)

	// RemoveItem removes the given instance from the player's inventory.
	// It returns false if the instance was not present.
	RemoveItem(ctx context.Context, instanceID string) (bool, error)

	// CurrentSaveSeed returns the seed recorded in the currently loaded
	// save file. loaded is false when no save is loaded (main menu); an
	// empty seed with loaded true means the save has no binding yet.
	CurrentSaveSeed(ctx context.Context) (seed string, loaded bool, err error)

	// BindSaveSeed records the seed alongside the currently loaded save
	// file. The binding is permanent for the save's lifetime.
	BindSaveSeed(ctx context.Context, seed string) error

	// ApplyDeath kills the player.
	ApplyDeath(ctx context.Context) error

	// GoalReached reports whether the game's goal condition has been met.
	GoalReached(ctx context.Context) (bool, error)
}
