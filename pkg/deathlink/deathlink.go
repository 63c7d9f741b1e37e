package deathlink

import (
	"context"
	"time"

	"github.com/cbodonnell/emberlink/pkg/adapter"
	"github.com/cbodonnell/emberlink/pkg/clock"
	"github.com/cbodonnell/emberlink/pkg/config"
	"github.com/cbodonnell/emberlink/pkg/log"
	"github.com/cbodonnell/emberlink/pkg/protocol"
)

// State is the coordinator's current posture.
type State int

const (
	// StateIdle means the full amnesty allowance is available.
	StateIdle State = iota
	// StateArmed means some amnesty has been consumed.
	StateArmed
	// StateCooldown means a signal was recently sent or received and the
	// coordinator is quiescent.
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// cooldownWindow is the quiescent period after any send or receive during
// which signals are neither sent nor applied. It breaks death cascades
// between linked players.
const cooldownWindow = 30 * time.Second

// Coordinator exchanges death events with linked players. Amnesty and mode
// are read once at session start and never change for the session.
type Coordinator struct {
	slot        string
	enabled     bool
	mode        string
	amnestyMax  int
	gameAdapter adapter.GameAdapter
	clock       clock.Clock

	amnesty       int
	cooldownUntil time.Time
	lastCause     string
}

// NewCoordinatorOptions contains options for creating a new Coordinator.
type NewCoordinatorOptions struct {
	Slot        string
	Config      config.DeathLinkConfig
	GameAdapter adapter.GameAdapter
	Clock       clock.Clock
}

func NewCoordinator(opts NewCoordinatorOptions) *Coordinator {
	mode := opts.Config.Mode
	if mode == "" {
		mode = config.DeathLinkModeAny
	}
	return &Coordinator{
		slot:        opts.Slot,
		enabled:     opts.Config.Enabled,
		mode:        mode,
		amnestyMax:  opts.Config.Amnesty,
		gameAdapter: opts.GameAdapter,
		clock:       opts.Clock,
		amnesty:     opts.Config.Amnesty,
	}
}

// Enabled reports whether the coordinator participates in the link.
func (c *Coordinator) Enabled() bool {
	return c.enabled
}

// State returns the coordinator's current state.
func (c *Coordinator) State() State {
	if c.inCooldown() {
		return StateCooldown
	}
	if c.amnesty < c.amnestyMax {
		return StateArmed
	}
	return StateIdle
}

// Amnesty returns the number of qualifying deaths remaining before a signal
// is sent.
func (c *Coordinator) Amnesty() int {
	return c.amnesty
}

// CooldownUntil returns when the current cooldown ends, or the zero time.
func (c *Coordinator) CooldownUntil() time.Time {
	return c.cooldownUntil
}

// LastCause returns a description of the last signal sent or received.
func (c *Coordinator) LastCause() string {
	return c.lastCause
}

// HandleLocalDeath processes a local player death. It returns the Bounce
// message to send when the death exhausts the amnesty allowance, or nil.
// Deaths during cooldown are ignored entirely: they are almost always the
// echo of a signal this coordinator just applied.
func (c *Coordinator) HandleLocalDeath(event adapter.PlayerDeathEvent) (*protocol.Message, error) {
	if !c.enabled {
		return nil, nil
	}
	if c.mode == config.DeathLinkModeUnrecovered && event.RecoveredBloodstain {
		return nil, nil
	}
	if c.inCooldown() {
		log.Debug("Ignoring local death during death link cooldown")
		return nil, nil
	}

	c.amnesty--
	if c.amnesty > 0 {
		log.Info("Death forgiven, %d remaining before a death link is sent", c.amnesty)
		return nil, nil
	}

	c.amnesty = c.amnestyMax
	now := c.clock.Now()
	c.cooldownUntil = now.Add(cooldownWindow)
	c.lastCause = "local death"

	cause := event.Cause
	if cause == "" {
		cause = c.slot + " died"
	}
	msg, err := protocol.NewDeathLinkBounce(protocol.DeathLinkData{
		Source: c.slot,
		Time:   now.UnixMilli(),
		Cause:  cause,
	})
	if err != nil {
		return nil, err
	}
	log.Info("Sending death link: %s", cause)

	return msg, nil
}

// HandleRemote applies a death link signal received from the server.
// Signals originating from the local slot never loop back, signals during
// cooldown are dropped, and signals stamped before the cooldown of the last
// signal ended are dropped as stale replays, such as a backlog the server
// delivers after a reconnect.
func (c *Coordinator) HandleRemote(ctx context.Context, data protocol.DeathLinkData) error {
	if !c.enabled {
		return nil
	}
	if data.Source == c.slot {
		log.Debug("Ignoring death link originating from this slot")
		return nil
	}
	if c.inCooldown() {
		log.Debug("Ignoring death link from %s during cooldown", data.Source)
		return nil
	}
	if !c.cooldownUntil.IsZero() && time.UnixMilli(data.Time).Before(c.cooldownUntil) {
		log.Debug("Ignoring stale death link from %s", data.Source)
		return nil
	}

	if err := c.gameAdapter.ApplyDeath(ctx); err != nil {
		return err
	}

	c.cooldownUntil = c.clock.Now().Add(cooldownWindow)
	c.lastCause = "killed by " + data.Source
	if data.Cause != "" {
		c.lastCause = data.Cause
	}
	log.Info("Applied death link from %s", data.Source)

	return nil
}

func (c *Coordinator) inCooldown() bool {
	return c.clock.Now().Before(c.cooldownUntil)
}
