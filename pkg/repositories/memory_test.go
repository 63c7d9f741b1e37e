package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepository_LedgerEntries(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryRepository()

	require.NoError(t, r.InsertLedgerEntry(ctx, &LedgerEntry{RemoteIndex: 2, TemplateID: "estus_shard"}))
	require.NoError(t, r.InsertLedgerEntry(ctx, &LedgerEntry{RemoteIndex: 1, TemplateID: "ring_of_favor"}))

	// Re-inserting an existing index never overwrites.
	require.NoError(t, r.InsertLedgerEntry(ctx, &LedgerEntry{RemoteIndex: 1, TemplateID: "something_else"}))
	entry, err := r.GetLedgerEntry(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "ring_of_favor", entry.TemplateID)

	unapplied, err := r.ListUnappliedLedgerEntries(ctx)
	require.NoError(t, err)
	require.Len(t, unapplied, 2)
	assert.Equal(t, int64(1), unapplied[0].RemoteIndex)
	assert.Equal(t, int64(2), unapplied[1].RemoteIndex)

	require.NoError(t, r.MarkLedgerApplied(ctx, 1, "instance-1", 1700000000000))
	entry, err = r.GetLedgerEntry(ctx, 1)
	require.NoError(t, err)
	assert.True(t, entry.Applied)
	assert.Equal(t, "instance-1", entry.InstanceID)

	unapplied, err = r.ListUnappliedLedgerEntries(ctx)
	require.NoError(t, err)
	require.Len(t, unapplied, 1)
	assert.Equal(t, int64(2), unapplied[0].RemoteIndex)

	applied, total, err := r.CountLedgerEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, 2, total)

	_, err = r.GetLedgerEntry(ctx, 99)
	assert.True(t, IsNotFound(err))
}

func TestInMemoryRepository_Checks(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryRepository()

	require.NoError(t, r.InsertCheck(ctx, &CheckRecord{CheckID: 101, QueuedAt: 1}))
	require.NoError(t, r.InsertCheck(ctx, &CheckRecord{CheckID: 102, QueuedAt: 2}))
	require.NoError(t, r.InsertCheck(ctx, &CheckRecord{CheckID: 101, QueuedAt: 99}))

	check, err := r.GetCheck(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(1), check.QueuedAt)

	unreported, err := r.ListUnreportedChecks(ctx)
	require.NoError(t, err)
	require.Len(t, unreported, 2)
	assert.Equal(t, int64(101), unreported[0].CheckID)

	require.NoError(t, r.MarkChecksReported(ctx, []int64{101, 102}))
	unreported, err = r.ListUnreportedChecks(ctx)
	require.NoError(t, err)
	assert.Empty(t, unreported)

	reported, total, err := r.CountChecks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, reported)
	assert.Equal(t, 2, total)
}

func TestInMemoryRepository_ConvertedFlag(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryRepository()

	require.NoError(t, r.InsertCheck(ctx, &CheckRecord{CheckID: 101, QueuedAt: 1}))

	require.NoError(t, r.MarkCheckConverted(ctx, 101))
	check, err := r.GetCheck(ctx, 101)
	require.NoError(t, err)
	assert.True(t, check.Converted)

	require.NoError(t, r.ClearCheckConverted(ctx, 101))
	check, err = r.GetCheck(ctx, 101)
	require.NoError(t, err)
	assert.False(t, check.Converted)

	// Marking an unknown check is a no-op.
	assert.NoError(t, r.MarkCheckConverted(ctx, 999))
}
