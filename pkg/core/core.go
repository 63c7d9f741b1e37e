package core

import (
	"context"
	"fmt"
	"time"

	"github.com/cbodonnell/emberlink/pkg/adapter"
	"github.com/cbodonnell/emberlink/pkg/clock"
	"github.com/cbodonnell/emberlink/pkg/deathlink"
	"github.com/cbodonnell/emberlink/pkg/hints"
	"github.com/cbodonnell/emberlink/pkg/ledger"
	"github.com/cbodonnell/emberlink/pkg/log"
	"github.com/cbodonnell/emberlink/pkg/protocol"
	"github.com/cbodonnell/emberlink/pkg/queue"
	"github.com/cbodonnell/emberlink/pkg/seedbind"
	"github.com/cbodonnell/emberlink/pkg/session"
	"github.com/cbodonnell/emberlink/pkg/state"
	"github.com/cbodonnell/emberlink/pkg/tracker"
)

const (
	// loadGracePeriod delays item grants and inventory sweeps after a save
	// loads, while the game is still streaming the world in.
	loadGracePeriod = 10 * time.Second

	// maxPrints bounds the informational message buffer in the snapshot.
	maxPrints = 32
)

// Manager owns the sync loop. Every component is driven from a single
// goroutine: the loop drains queues, advances each component one step, and
// publishes a snapshot, once per tick.
type Manager struct {
	session        *session.Manager
	ledger         *ledger.Ledger
	tracker        *tracker.Tracker
	deathLink      *deathlink.Coordinator
	hints          *hints.Emitter
	seedBinder     *seedbind.Binder
	gameAdapter    adapter.GameAdapter
	gameEventQueue queue.Queue
	stateManager   state.StateManager
	clock          clock.Clock
	slot           string
	loopInterval   time.Duration

	saveLoaded bool
	graceUntil time.Time
	sentGoal   bool
	prints     []string
	fatalErr   error
}

// NewManagerOptions contains options for creating a new Manager.
type NewManagerOptions struct {
	Session        *session.Manager
	Ledger         *ledger.Ledger
	Tracker        *tracker.Tracker
	DeathLink      *deathlink.Coordinator
	Hints          *hints.Emitter
	SeedBinder     *seedbind.Binder
	GameAdapter    adapter.GameAdapter
	GameEventQueue queue.Queue
	StateManager   state.StateManager
	Clock          clock.Clock
	Slot           string
	LoopInterval   time.Duration
}

func NewManager(opts NewManagerOptions) *Manager {
	return &Manager{
		session:        opts.Session,
		ledger:         opts.Ledger,
		tracker:        opts.Tracker,
		deathLink:      opts.DeathLink,
		hints:          opts.Hints,
		seedBinder:     opts.SeedBinder,
		gameAdapter:    opts.GameAdapter,
		gameEventQueue: opts.GameEventQueue,
		stateManager:   opts.StateManager,
		clock:          opts.Clock,
		slot:           opts.Slot,
		loopInterval:   opts.LoopInterval,
	}
}

// Start connects the session and runs the sync loop until the context is
// canceled.
func (m *Manager) Start(ctx context.Context) error {
	m.session.Connect()

	ticker := time.NewTicker(m.loopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.session.Close()
			return nil
		case <-ticker.C:
			if err := m.syncTick(ctx); err != nil {
				log.Error("Failed to run sync tick: %v", err)
			}
		}
	}
}

// FatalErr returns the error that stopped syncing, if any.
func (m *Manager) FatalErr() error {
	return m.fatalErr
}

// syncTick runs one iteration of the sync loop.
func (m *Manager) syncTick(ctx context.Context) error {
	if m.fatalErr != nil {
		return m.publishSnapshot(ctx)
	}

	m.session.Update(ctx)
	m.processTransitions()
	m.processServerMessages(ctx)
	m.processGameEvents(ctx)

	if err := m.checkSeed(ctx); err != nil {
		m.fatal(err)
		return m.publishSnapshot(ctx)
	}

	if m.saveLoaded && !m.clock.Now().Before(m.graceUntil) {
		if err := m.ledger.ReconcilePass(ctx); err != nil {
			log.Error("Failed to reconcile ledger: %v", err)
		}
		if err := m.ledger.SweepInventory(ctx); err != nil {
			log.Error("Failed to sweep inventory: %v", err)
		}
		m.checkGoal(ctx)
	}

	if m.session.State() == session.StateConnected {
		if err := m.tracker.Flush(ctx, m.session.Send); err != nil {
			log.Error("Failed to flush location checks: %v", err)
		}
	}

	return m.publishSnapshot(ctx)
}

// processTransitions drains and logs session state changes. Completing a
// handshake rearms the goal announcement so the server relearns our status
// after every reconnect.
func (m *Manager) processTransitions() {
	for _, transition := range m.session.Transitions() {
		log.Info("Session %s -> %s: %s", transition.From, transition.To, transition.Reason)
		if transition.To != session.StateConnected {
			continue
		}
		m.sentGoal = false
		m.hints.ResetForSeed(m.session.Seed())
		if slotData := m.session.SlotData(); slotData != nil {
			if slotData.DeathLink && !m.deathLink.Enabled() {
				log.Warn("Server slot has death link enabled but the local config does not")
			}
		}
	}
}

// processServerMessages drains messages received from the server.
func (m *Manager) processServerMessages(ctx context.Context) {
	for _, msg := range m.session.Messages() {
		switch msg.Type {
		case protocol.MessageTypeReceivedItems:
			var received protocol.ReceivedItems
			if err := protocol.DecodePayload(msg, &received); err != nil {
				log.Error("Failed to decode received items: %v", err)
				continue
			}
			if err := m.ledger.Receive(ctx, received.Items); err != nil {
				log.Error("Failed to record received items: %v", err)
			}
		case protocol.MessageTypeBounce:
			var bounce protocol.Bounce
			if err := protocol.DecodePayload(msg, &bounce); err != nil {
				log.Error("Failed to decode bounce: %v", err)
				continue
			}
			if !hasTag(bounce.Tags, protocol.DeathLinkTag) {
				continue
			}
			if err := m.deathLink.HandleRemote(ctx, bounce.Data); err != nil {
				log.Error("Failed to apply death link: %v", err)
			}
		case protocol.MessageTypePrintJSON:
			var print protocol.PrintJSON
			if err := protocol.DecodePayload(msg, &print); err != nil {
				log.Error("Failed to decode print: %v", err)
				continue
			}
			m.appendPrint(print.Text)
		default:
			log.Debug("Ignoring message type %s", msg.Type)
		}
	}
}

// processGameEvents drains events emitted by the game adapter.
func (m *Manager) processGameEvents(ctx context.Context) {
	pendingEvents, err := m.gameEventQueue.ReadAllMessages()
	if err != nil {
		log.Error("Failed to read game events: %v", err)
		return
	}
	for _, item := range pendingEvents {
		switch event := item.(type) {
		case adapter.PlayerDeathEvent:
			msg, err := m.deathLink.HandleLocalDeath(event)
			if err != nil {
				log.Error("Failed to handle local death: %v", err)
				continue
			}
			if msg != nil {
				if err := m.session.Send(msg); err != nil {
					log.Error("Failed to send death link: %v", err)
				}
			}
		case adapter.ShopOpenedEvent:
			msg, err := m.hints.HandleShopOpened(event)
			if err != nil {
				log.Error("Failed to handle shop opening: %v", err)
				continue
			}
			if msg != nil {
				if err := m.session.Send(msg); err != nil {
					log.Error("Failed to send hint request: %v", err)
				}
			}
		case adapter.SaveLoadedEvent:
			m.saveLoaded = true
			m.graceUntil = m.clock.Now().Add(loadGracePeriod)
			log.Info("Save loaded, grants resume in %s", loadGracePeriod)
		case adapter.SaveUnloadedEvent:
			m.saveLoaded = false
			log.Info("Save unloaded, sync paused")
		default:
			log.Warn("Unknown game event type: %T", event)
		}
	}
}

// checkSeed verifies seed lineage while a save is loaded. A conflict is
// fatal: granting items from the wrong seed would corrupt the save.
func (m *Manager) checkSeed(ctx context.Context) error {
	if !m.saveLoaded {
		return nil
	}
	effective, err := m.seedBinder.Check(ctx, m.session.Seed())
	if err != nil {
		return err
	}
	if effective != "" {
		m.hints.ResetForSeed(effective)
	}
	return nil
}

// checkGoal announces goal completion. The status is resent after every
// reconnect, but at most once per connection.
func (m *Manager) checkGoal(ctx context.Context) {
	if m.sentGoal {
		return
	}
	reached, err := m.gameAdapter.GoalReached(ctx)
	if err != nil {
		log.Error("Failed to check goal: %v", err)
		return
	}
	if !reached {
		return
	}
	msg, err := protocol.NewMessage(protocol.MessageTypeStatusUpdate, protocol.StatusUpdate{
		Status: protocol.StatusGoal,
	})
	if err != nil {
		log.Error("Failed to build status update: %v", err)
		return
	}
	if err := m.session.Send(msg); err != nil {
		log.Error("Failed to send status update: %v", err)
		return
	}
	log.Info("Goal reached, status sent")
	m.sentGoal = true
}

func (m *Manager) fatal(err error) {
	log.Error("Fatal sync error: %v", err)
	m.fatalErr = err
	m.session.Fault(err)
}

func (m *Manager) appendPrint(text string) {
	m.prints = append(m.prints, text)
	if len(m.prints) > maxPrints {
		m.prints = m.prints[len(m.prints)-maxPrints:]
	}
}

func (m *Manager) publishSnapshot(ctx context.Context) error {
	applied, itemsTotal, err := m.ledger.Counts(ctx)
	if err != nil {
		return fmt.Errorf("failed to count ledger entries: %v", err)
	}
	reported, checksTotal, err := m.tracker.Counts(ctx)
	if err != nil {
		return fmt.Errorf("failed to count checks: %v", err)
	}

	snapshot := &state.Snapshot{
		SessionState:   m.session.State().String(),
		Seed:           m.session.Seed(),
		Slot:           m.slot,
		ItemsApplied:   applied,
		ItemsTotal:     itemsTotal,
		ChecksReported: reported,
		ChecksTotal:    checksTotal,
		DeathLink: state.DeathLinkSnapshot{
			Enabled:   m.deathLink.Enabled(),
			State:     m.deathLink.State().String(),
			Amnesty:   m.deathLink.Amnesty(),
			LastCause: m.deathLink.LastCause(),
			Cooldown:  m.deathLink.CooldownUntil(),
		},
		Prints:    append([]string(nil), m.prints...),
		UpdatedAt: m.clock.Now(),
	}
	if m.fatalErr != nil {
		snapshot.FatalError = m.fatalErr.Error()
	}

	return m.stateManager.Set(ctx, snapshot)
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
