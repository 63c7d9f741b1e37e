package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(ctx context.Context, path string, migrations string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	dir, err := os.ReadDir(migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %v", err)
	}

	for _, entry := range dir {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		migrationPath := filepath.Join(migrations, entry.Name())
		migration, err := os.ReadFile(migrationPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %v", migrationPath, err)
		}

		if _, err := db.ExecContext(ctx, string(migration)); err != nil {
			return nil, fmt.Errorf("failed to execute migration %s: %v", migrationPath, err)
		}
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) InsertLedgerEntry(ctx context.Context, entry *LedgerEntry) error {
	q := `
	INSERT OR IGNORE INTO ledger_entries (remote_index, template_id, player)
	VALUES (?, ?, ?);
	`
	_, err := r.db.ExecContext(ctx, q, entry.RemoteIndex, entry.TemplateID, entry.Player)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) GetLedgerEntry(ctx context.Context, remoteIndex int64) (*LedgerEntry, error) {
	q := `
	SELECT remote_index, template_id, player, applied, COALESCE(instance_id, ''), COALESCE(applied_at, 0)
	FROM ledger_entries WHERE remote_index = ?;
	`
	entry := &LedgerEntry{}
	if err := r.db.QueryRowContext(ctx, q, remoteIndex).Scan(
		&entry.RemoteIndex, &entry.TemplateID, &entry.Player,
		&entry.Applied, &entry.InstanceID, &entry.AppliedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan ledger entry: %v", err)
	}

	return entry, nil
}

func (r *SQLiteRepository) MarkLedgerApplied(ctx context.Context, remoteIndex int64, instanceID string, appliedAt int64) error {
	q := `
	UPDATE ledger_entries SET applied = 1, instance_id = ?, applied_at = ?
	WHERE remote_index = ? AND applied = 0;
	`
	_, err := r.db.ExecContext(ctx, q, instanceID, appliedAt, remoteIndex)
	if err != nil {
		return fmt.Errorf("failed to mark ledger entry applied: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) ListUnappliedLedgerEntries(ctx context.Context) ([]*LedgerEntry, error) {
	q := `
	SELECT remote_index, template_id, player
	FROM ledger_entries WHERE applied = 0 ORDER BY remote_index;
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query unapplied ledger entries: %v", err)
	}
	defer rows.Close()

	var entries []*LedgerEntry
	for rows.Next() {
		entry := &LedgerEntry{}
		if err := rows.Scan(&entry.RemoteIndex, &entry.TemplateID, &entry.Player); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %v", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (r *SQLiteRepository) CountLedgerEntries(ctx context.Context) (int, int, error) {
	q := `
	SELECT COALESCE(SUM(applied), 0), COUNT(*) FROM ledger_entries;
	`
	var applied, total int
	if err := r.db.QueryRowContext(ctx, q).Scan(&applied, &total); err != nil {
		return 0, 0, fmt.Errorf("failed to count ledger entries: %v", err)
	}

	return applied, total, nil
}

func (r *SQLiteRepository) InsertCheck(ctx context.Context, check *CheckRecord) error {
	q := `
	INSERT OR IGNORE INTO location_checks (check_id, queued_at)
	VALUES (?, ?);
	`
	_, err := r.db.ExecContext(ctx, q, check.CheckID, check.QueuedAt)
	if err != nil {
		return fmt.Errorf("failed to insert location check: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) GetCheck(ctx context.Context, checkID int64) (*CheckRecord, error) {
	q := `
	SELECT check_id, reported, converted, queued_at
	FROM location_checks WHERE check_id = ?;
	`
	check := &CheckRecord{}
	if err := r.db.QueryRowContext(ctx, q, checkID).Scan(
		&check.CheckID, &check.Reported, &check.Converted, &check.QueuedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan location check: %v", err)
	}

	return check, nil
}

func (r *SQLiteRepository) MarkChecksReported(ctx context.Context, checkIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	q := `
	UPDATE location_checks SET reported = 1 WHERE check_id = ?;
	`
	for _, id := range checkIDs {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("failed to mark check %d reported: %v", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) MarkCheckConverted(ctx context.Context, checkID int64) error {
	q := `
	UPDATE location_checks SET converted = 1 WHERE check_id = ?;
	`
	if _, err := r.db.ExecContext(ctx, q, checkID); err != nil {
		return fmt.Errorf("failed to mark check converted: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) ClearCheckConverted(ctx context.Context, checkID int64) error {
	q := `
	UPDATE location_checks SET converted = 0 WHERE check_id = ?;
	`
	if _, err := r.db.ExecContext(ctx, q, checkID); err != nil {
		return fmt.Errorf("failed to clear check converted: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) ListUnreportedChecks(ctx context.Context) ([]*CheckRecord, error) {
	q := `
	SELECT check_id, reported, converted, queued_at
	FROM location_checks WHERE reported = 0 ORDER BY queued_at, check_id;
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query unreported checks: %v", err)
	}
	defer rows.Close()

	var checks []*CheckRecord
	for rows.Next() {
		check := &CheckRecord{}
		if err := rows.Scan(&check.CheckID, &check.Reported, &check.Converted, &check.QueuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan location check: %v", err)
		}
		checks = append(checks, check)
	}

	return checks, rows.Err()
}

func (r *SQLiteRepository) CountChecks(ctx context.Context) (int, int, error) {
	q := `
	SELECT COALESCE(SUM(reported), 0), COUNT(*) FROM location_checks;
	`
	var reported, total int
	if err := r.db.QueryRowContext(ctx, q).Scan(&reported, &total); err != nil {
		return 0, 0, fmt.Errorf("failed to count location checks: %v", err)
	}

	return reported, total, nil
}
