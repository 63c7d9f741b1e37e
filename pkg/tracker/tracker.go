package tracker

import (
	"context"
	"fmt"

	"github.com/cbodonnell/emberlink/pkg/clock"
	"github.com/cbodonnell/emberlink/pkg/log"
	"github.com/cbodonnell/emberlink/pkg/protocol"
	"github.com/cbodonnell/emberlink/pkg/repositories"
)

// SendFunc delivers one message to the server.
type SendFunc func(msg *protocol.Message) error

// Tracker records local location checks and reports them to the server.
// Unreported checks are persisted, so they survive reconnects and restarts,
// and are replayed in the order they were recorded. Reporting is
// at-least-once: the server deduplicates by check id.
type Tracker struct {
	repository repositories.Repository
	clock      clock.Clock
}

// NewTrackerOptions contains options for creating a new Tracker.
type NewTrackerOptions struct {
	Repository repositories.Repository
	Clock      clock.Clock
}

func NewTracker(opts NewTrackerOptions) *Tracker {
	return &Tracker{
		repository: opts.Repository,
		clock:      opts.Clock,
	}
}

// Record adds a check to the unsent queue. Recording a check that is already
// queued or reported is a no-op.
func (t *Tracker) Record(ctx context.Context, checkID int64) error {
	check := &repositories.CheckRecord{
		CheckID:  checkID,
		QueuedAt: t.clock.Now().UnixMilli(),
	}
	if err := t.repository.InsertCheck(ctx, check); err != nil {
		return fmt.Errorf("failed to queue check %d: %v", checkID, err)
	}
	return nil
}

// Flush sends every unreported check, oldest first, and marks them reported
// once the send is accepted. Callers flush on every tick while connected, so
// newly recorded checks go out immediately and the whole backlog replays
// after a reconnect.
func (t *Tracker) Flush(ctx context.Context, send SendFunc) error {
	unreported, err := t.repository.ListUnreportedChecks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list unreported checks: %v", err)
	}
	if len(unreported) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(unreported))
	for _, check := range unreported {
		ids = append(ids, check.CheckID)
	}

	msg, err := protocol.NewMessage(protocol.MessageTypeLocationChecks, &protocol.LocationChecks{IDs: ids})
	if err != nil {
		return fmt.Errorf("failed to build location checks message: %v", err)
	}
	if err := send(msg); err != nil {
		return fmt.Errorf("failed to send location checks: %v", err)
	}

	if err := t.repository.MarkChecksReported(ctx, ids); err != nil {
		return fmt.Errorf("failed to mark checks reported: %v", err)
	}
	log.Info("Reported %d location checks", len(ids))

	return nil
}

// Counts returns the number of reported and total checks.
func (t *Tracker) Counts(ctx context.Context) (reported int, total int, err error) {
	return t.repository.CountChecks(ctx)
}
