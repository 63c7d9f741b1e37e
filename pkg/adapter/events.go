package adapter

// Game events are delivered through an inbound queue drained once per loop
// tick rather than through nested callbacks, so ordering stays auditable.

// PlayerDeathEvent is emitted when the local player dies.
type PlayerDeathEvent struct {
	// RecoveredBloodstain is true when the player died after reclaiming
	// their bloodstain, which some death link modes treat as forgiven.
	RecoveredBloodstain bool

	// Cause is an optional human-readable description of the death.
	Cause string
}

// ShopItem is one item visible in an open shop menu.
type ShopItem struct {
	TemplateID string
	LocationID int64
}

// ShopOpenedEvent is emitted when a shop menu becomes visible, carrying the
// locations of the items it currently offers.
type ShopOpenedEvent struct {
	ShopID string
	Items  []ShopItem
}

// SaveLoadedEvent is emitted when the player loads into a save file.
type SaveLoadedEvent struct{}

// SaveUnloadedEvent is emitted when the player returns to the main menu.
type SaveUnloadedEvent struct{}
