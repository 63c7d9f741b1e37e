package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/cbodonnell/emberlink/pkg/adapter"
	"github.com/cbodonnell/emberlink/pkg/clock"
	"github.com/cbodonnell/emberlink/pkg/gamedata"
	"github.com/cbodonnell/emberlink/pkg/log"
	"github.com/cbodonnell/emberlink/pkg/protocol"
	"github.com/cbodonnell/emberlink/pkg/repositories"
)

// CheckRecorder records location checks discovered during inventory sweeps.
type CheckRecorder interface {
	Record(ctx context.Context, checkID int64) error
}

// grantInterval paces item grants so the game is never asked to pop more
// than one item per second.
const grantInterval = 1 * time.Second

// Ledger is the authoritative record of which remote item indices have been
// received and applied. It converts remote grants into real in-game items
// exactly once, and sweeps randomizer placeholders out of the inventory.
type Ledger struct {
	repository  repositories.Repository
	gameData    *gamedata.Table
	gameAdapter adapter.GameAdapter
	checks      CheckRecorder
	clock       clock.Clock
	lastGrantAt time.Time
}

// NewLedgerOptions contains options for creating a new Ledger.
type NewLedgerOptions struct {
	Repository  repositories.Repository
	GameData    *gamedata.Table
	GameAdapter adapter.GameAdapter
	Checks      CheckRecorder
	Clock       clock.Clock
}

func NewLedger(opts NewLedgerOptions) *Ledger {
	return &Ledger{
		repository:  opts.Repository,
		gameData:    opts.GameData,
		gameAdapter: opts.GameAdapter,
		checks:      opts.Checks,
		clock:       opts.Clock,
	}
}

// Receive records remote items for later application. Items whose remote
// index is already known are silently ignored, which makes server
// retransmission and duplicate delivery harmless.
func (l *Ledger) Receive(ctx context.Context, items []protocol.RemoteItem) error {
	for _, item := range items {
		entry := &repositories.LedgerEntry{
			RemoteIndex: item.Index,
			TemplateID:  item.TemplateID,
			Player:      item.Player,
		}
		if err := l.repository.InsertLedgerEntry(ctx, entry); err != nil {
			return fmt.Errorf("failed to record remote item %d: %v", item.Index, err)
		}
	}
	return nil
}

// ReconcilePass applies at most one pending ledger entry: it synthesizes the
// entry's item through the adapter and marks the entry applied with the
// synthesized instance id. A failed synthesis leaves the entry unapplied so
// the next pass retries it; no placeholder is ever left behind because the
// entry is only marked applied after the adapter hands back a real instance.
func (l *Ledger) ReconcilePass(ctx context.Context) error {
	now := l.clock.Now()
	if !l.lastGrantAt.IsZero() && now.Sub(l.lastGrantAt) < grantInterval {
		return nil
	}

	entries, err := l.repository.ListUnappliedLedgerEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list unapplied ledger entries: %v", err)
	}
	if len(entries) == 0 {
		return nil
	}

	// Entries are applied in remote index order, one per pass.
	entry := entries[0]
	final, err := l.gameData.ResolveFinal(entry.TemplateID)
	if err != nil {
		log.Error("Cannot resolve template for remote index %d: %v", entry.RemoteIndex, err)
		return nil
	}

	instance, err := l.gameAdapter.GrantItem(ctx, final.ID)
	if err != nil {
		log.Error("Failed to synthesize item for remote index %d (template %s): %v", entry.RemoteIndex, final.ID, err)
		return nil
	}

	if err := l.repository.MarkLedgerApplied(ctx, entry.RemoteIndex, instance.ID, now.UnixMilli()); err != nil {
		return fmt.Errorf("failed to mark ledger entry %d applied: %v", entry.RemoteIndex, err)
	}
	l.lastGrantAt = now
	log.Info("Granted %s (remote index %d) as instance %s", final.Name, entry.RemoteIndex, instance.ID)

	return nil
}

// SweepInventory removes randomizer placeholders from the player's
// inventory. Every placeholder encodes the location it was found at, which
// is recorded as a check. Placeholders standing in for local items are
// converted to their real item first; removal and grant form one logical
// operation whose progress is recoverable from the durable check record.
func (l *Ledger) SweepInventory(ctx context.Context) error {
	inventory, err := l.gameAdapter.ReadInventory(ctx)
	if err != nil {
		return fmt.Errorf("failed to read inventory: %v", err)
	}

	for _, instance := range inventory {
		template, ok := l.gameData.Template(instance.TemplateID)
		if !ok || !template.Placeholder {
			continue
		}

		log.Info("Inventory contains placeholder %s (location %d)", template.ID, template.LocationID)
		if template.LocationID != 0 {
			if err := l.checks.Record(ctx, template.LocationID); err != nil {
				return fmt.Errorf("failed to record check %d: %v", template.LocationID, err)
			}
		}

		if template.RealTemplateID != "" {
			converted, err := l.convertPlaceholder(ctx, template)
			if err != nil {
				log.Error("Failed to convert placeholder %s: %v", template.ID, err)
				// Leave the placeholder in place so the next sweep
				// retries the conversion.
				continue
			}
			if !converted {
				log.Debug("Placeholder %s already converted", template.ID)
			}
		}

		if _, err := l.gameAdapter.RemoveItem(ctx, instance.ID); err != nil {
			return fmt.Errorf("failed to remove placeholder %s: %v", instance.ID, err)
		}
	}

	return nil
}

// convertPlaceholder grants the real local item behind a shop placeholder
// exactly once. The converted flag is written before the grant: a crash in
// between can lose one instance but can never duplicate one.
func (l *Ledger) convertPlaceholder(ctx context.Context, template gamedata.Template) (bool, error) {
	record, err := l.repository.GetCheck(ctx, template.LocationID)
	if err != nil {
		return false, fmt.Errorf("failed to load check %d: %v", template.LocationID, err)
	}
	if record.Converted {
		return false, nil
	}

	final, err := l.gameData.ResolveFinal(template.RealTemplateID)
	if err != nil {
		return false, err
	}

	if err := l.repository.MarkCheckConverted(ctx, template.LocationID); err != nil {
		return false, fmt.Errorf("failed to mark check %d converted: %v", template.LocationID, err)
	}

	if _, err := l.gameAdapter.GrantItem(ctx, final.ID); err != nil {
		if clearErr := l.repository.ClearCheckConverted(ctx, template.LocationID); clearErr != nil {
			log.Error("Failed to revert converted flag for check %d: %v", template.LocationID, clearErr)
		}
		return false, err
	}

	log.Info("Converted placeholder at location %d to %s", template.LocationID, final.ID)
	return true, nil
}

// Counts returns the number of applied and total ledger entries.
func (l *Ledger) Counts(ctx context.Context) (applied int, total int, err error) {
	return l.repository.CountLedgerEntries(ctx)
}
