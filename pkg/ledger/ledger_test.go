package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/cbodonnell/emberlink/pkg/adapter"
	"github.com/cbodonnell/emberlink/pkg/clock"
	"github.com/cbodonnell/emberlink/pkg/gamedata"
	"github.com/cbodonnell/emberlink/pkg/protocol"
	"github.com/cbodonnell/emberlink/pkg/repositories"
	"github.com/cbodonnell/emberlink/pkg/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGameData(t *testing.T) *gamedata.Table {
	t.Helper()
	table, err := gamedata.Parse([]byte(`{
		"templates": [
			{"id": "ring_of_favor", "name": "Ring of Favor"},
			{"id": "estus_shard", "name": "Estus Shard"},
			{"id": "shop_blessing_1", "name": "Blessing +1", "resolvesTo": "shop_blessing_2"},
			{"id": "shop_blessing_2", "name": "Blessing +2"},
			{"id": "ap_foreign_2001", "name": "Foreign Item", "placeholder": true, "locationId": 2001},
			{"id": "ap_local_2002", "name": "Local Stand-in", "placeholder": true, "locationId": 2002, "realTemplateId": "estus_shard"}
		],
		"locations": [
			{"checkId": 2001, "name": "Shop Slot 1", "region": "settlement", "shop": true},
			{"checkId": 2002, "name": "Shop Slot 2", "region": "settlement", "shop": true}
		]
	}`))
	require.NoError(t, err)
	return table
}

func newTestLedger(t *testing.T) (*Ledger, *adapter.InMemoryAdapter, repositories.Repository, *clock.VirtualClock) {
	t.Helper()
	repository := repositories.NewInMemoryRepository()
	gameAdapter := adapter.NewInMemoryAdapter()
	virtualClock := clock.NewVirtualClock(time.Unix(1700000000, 0))
	checks := tracker.NewTracker(tracker.NewTrackerOptions{
		Repository: repository,
		Clock:      virtualClock,
	})
	l := NewLedger(NewLedgerOptions{
		Repository:  repository,
		GameData:    testGameData(t),
		GameAdapter: gameAdapter,
		Checks:      checks,
		Clock:       virtualClock,
	})
	return l, gameAdapter, repository, virtualClock
}

func TestLedger_ReceiveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l, _, repository, _ := newTestLedger(t)

	items := []protocol.RemoteItem{
		{Index: 7, TemplateID: "ring_of_favor", LocationID: 101, Player: "friend"},
	}
	require.NoError(t, l.Receive(ctx, items))
	require.NoError(t, l.Receive(ctx, items))

	applied, total, err := repository.CountLedgerEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
	assert.Equal(t, 1, total)
}

func TestLedger_ReconcilePassAppliesOnePerPass(t *testing.T) {
	ctx := context.Background()
	l, gameAdapter, repository, virtualClock := newTestLedger(t)
	gameAdapter.RegisterTemplate("ring_of_favor")
	gameAdapter.RegisterTemplate("estus_shard")

	require.NoError(t, l.Receive(ctx, []protocol.RemoteItem{
		{Index: 1, TemplateID: "ring_of_favor", Player: "friend"},
		{Index: 2, TemplateID: "estus_shard", Player: "friend"},
	}))

	require.NoError(t, l.ReconcilePass(ctx))
	inventory, err := gameAdapter.ReadInventory(ctx)
	require.NoError(t, err)
	assert.Len(t, inventory, 1)

	// The second entry waits until the grant interval has elapsed.
	require.NoError(t, l.ReconcilePass(ctx))
	inventory, err = gameAdapter.ReadInventory(ctx)
	require.NoError(t, err)
	assert.Len(t, inventory, 1)

	virtualClock.Advance(time.Second)
	require.NoError(t, l.ReconcilePass(ctx))
	inventory, err = gameAdapter.ReadInventory(ctx)
	require.NoError(t, err)
	assert.Len(t, inventory, 2)

	applied, total, err := repository.CountLedgerEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Equal(t, 2, total)

	entry, err := repository.GetLedgerEntry(ctx, 1)
	require.NoError(t, err)
	assert.True(t, entry.Applied)
	assert.NotEmpty(t, entry.InstanceID)
}

func TestLedger_ReconcilePassRetriesFailedSynthesis(t *testing.T) {
	ctx := context.Background()
	l, gameAdapter, repository, virtualClock := newTestLedger(t)

	require.NoError(t, l.Receive(ctx, []protocol.RemoteItem{
		{Index: 1, TemplateID: "ring_of_favor", Player: "friend"},
	}))

	// Synthesis fails while the template is not grantable. The entry must
	// stay pending rather than being marked applied.
	require.NoError(t, l.ReconcilePass(ctx))
	applied, total, err := repository.CountLedgerEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
	assert.Equal(t, 1, total)

	gameAdapter.RegisterTemplate("ring_of_favor")
	virtualClock.Advance(time.Second)
	require.NoError(t, l.ReconcilePass(ctx))

	applied, _, err = repository.CountLedgerEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	inventory, err := gameAdapter.ReadInventory(ctx)
	require.NoError(t, err)
	require.Len(t, inventory, 1)
	assert.Equal(t, "ring_of_favor", inventory[0].TemplateID)
}

func TestLedger_ReconcilePassResolvesUpgradedVariants(t *testing.T) {
	ctx := context.Background()
	l, gameAdapter, _, _ := newTestLedger(t)
	gameAdapter.RegisterTemplate("shop_blessing_2")

	require.NoError(t, l.Receive(ctx, []protocol.RemoteItem{
		{Index: 1, TemplateID: "shop_blessing_1", Player: "friend"},
	}))
	require.NoError(t, l.ReconcilePass(ctx))

	inventory, err := gameAdapter.ReadInventory(ctx)
	require.NoError(t, err)
	require.Len(t, inventory, 1)
	assert.Equal(t, "shop_blessing_2", inventory[0].TemplateID)
}

func TestLedger_SweepInventoryRecordsCheckAndRemovesForeignPlaceholder(t *testing.T) {
	ctx := context.Background()
	l, gameAdapter, repository, _ := newTestLedger(t)

	gameAdapter.AddInventoryItem("ap_foreign_2001")
	require.NoError(t, l.SweepInventory(ctx))

	inventory, err := gameAdapter.ReadInventory(ctx)
	require.NoError(t, err)
	assert.Empty(t, inventory)

	check, err := repository.GetCheck(ctx, 2001)
	require.NoError(t, err)
	assert.False(t, check.Reported)
	assert.False(t, check.Converted)
}

func TestLedger_SweepInventoryConvertsLocalPlaceholderOnce(t *testing.T) {
	ctx := context.Background()
	l, gameAdapter, repository, _ := newTestLedger(t)
	gameAdapter.RegisterTemplate("estus_shard")

	gameAdapter.AddInventoryItem("ap_local_2002")
	require.NoError(t, l.SweepInventory(ctx))

	inventory, err := gameAdapter.ReadInventory(ctx)
	require.NoError(t, err)
	require.Len(t, inventory, 1)
	assert.Equal(t, "estus_shard", inventory[0].TemplateID)

	check, err := repository.GetCheck(ctx, 2002)
	require.NoError(t, err)
	assert.True(t, check.Converted)

	// Picking up the same placeholder again must not grant a second item.
	gameAdapter.AddInventoryItem("ap_local_2002")
	require.NoError(t, l.SweepInventory(ctx))

	inventory, err = gameAdapter.ReadInventory(ctx)
	require.NoError(t, err)
	require.Len(t, inventory, 1)
	assert.Equal(t, "estus_shard", inventory[0].TemplateID)
}

func TestLedger_SweepInventoryLeavesPlaceholderOnConversionFailure(t *testing.T) {
	ctx := context.Background()
	l, gameAdapter, repository, _ := newTestLedger(t)

	// estus_shard is not grantable, so the conversion fails. The
	// placeholder must survive the sweep for a later retry.
	gameAdapter.AddInventoryItem("ap_local_2002")
	require.NoError(t, l.SweepInventory(ctx))

	inventory, err := gameAdapter.ReadInventory(ctx)
	require.NoError(t, err)
	require.Len(t, inventory, 1)
	assert.Equal(t, "ap_local_2002", inventory[0].TemplateID)

	check, err := repository.GetCheck(ctx, 2002)
	require.NoError(t, err)
	assert.False(t, check.Converted)

	gameAdapter.RegisterTemplate("estus_shard")
	require.NoError(t, l.SweepInventory(ctx))

	inventory, err = gameAdapter.ReadInventory(ctx)
	require.NoError(t, err)
	require.Len(t, inventory, 1)
	assert.Equal(t, "estus_shard", inventory[0].TemplateID)
}
