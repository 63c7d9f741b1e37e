package repositories

import "context"

// Repository is the durable store shared by the item ledger and the location
// tracker. One database exists per seed, alongside the config artifact.
type Repository interface {
	Close(ctx context.Context) error

	// InsertLedgerEntry records a remote item index. It is a no-op if the
	// index is already present, applied or not.
	InsertLedgerEntry(ctx context.Context, entry *LedgerEntry) error
	// GetLedgerEntry returns the entry for a remote index, or ErrNotFound.
	GetLedgerEntry(ctx context.Context, remoteIndex int64) (*LedgerEntry, error)
	// MarkLedgerApplied marks an entry applied with its synthesized
	// instance id. Marking an already-applied entry is a no-op.
	MarkLedgerApplied(ctx context.Context, remoteIndex int64, instanceID string, appliedAt int64) error
	// ListUnappliedLedgerEntries returns unapplied entries ordered by
	// remote index.
	ListUnappliedLedgerEntries(ctx context.Context) ([]*LedgerEntry, error)
	// CountLedgerEntries returns the number of applied and total entries.
	CountLedgerEntries(ctx context.Context) (applied int, total int, err error)

	// InsertCheck records a location check in the unsent queue. It is a
	// no-op if the check is already present.
	InsertCheck(ctx context.Context, check *CheckRecord) error
	// GetCheck returns the record for a check id, or ErrNotFound.
	GetCheck(ctx context.Context, checkID int64) (*CheckRecord, error)
	// MarkChecksReported marks the given checks as reported.
	MarkChecksReported(ctx context.Context, checkIDs []int64) error
	// MarkCheckConverted marks a check's placeholder as converted.
	MarkCheckConverted(ctx context.Context, checkID int64) error
	// ClearCheckConverted reverts MarkCheckConverted after a failed grant.
	ClearCheckConverted(ctx context.Context, checkID int64) error
	// ListUnreportedChecks returns unreported checks in the order they
	// were queued.
	ListUnreportedChecks(ctx context.Context) ([]*CheckRecord, error)
	// CountChecks returns the number of reported and total checks.
	CountChecks(ctx context.Context) (reported int, total int, err error)
}
