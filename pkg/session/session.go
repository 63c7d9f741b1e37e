package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cbodonnell/emberlink/pkg/clock"
	"github.com/cbodonnell/emberlink/pkg/log"
	"github.com/cbodonnell/emberlink/pkg/protocol"
	"github.com/cbodonnell/emberlink/pkg/queue"
)

// State is the session's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Transition records one state change. The synchronization loop drains
// transitions each tick so dependent components can flush queued work.
type Transition struct {
	From   State
	To     State
	Reason string
	At     time.Time
}

const (
	defaultBackoffBase = 1 * time.Second
	defaultBackoffMax  = 60 * time.Second

	// handshakeTimeout bounds the wait for RoomInfo and Connected after
	// the transport opens.
	handshakeTimeout = 15 * time.Second

	// maxConsecutiveMalformed is how many undecodable messages in a row
	// are tolerated before the connection is torn down.
	maxConsecutiveMalformed = 5

	inboundQueueSize = 1024
)

// Manager owns the connection to the multiworld server. It is the sole
// network gateway: every other component sends and receives through it. All
// state changes happen inside Update, which the synchronization loop calls
// once per tick; nothing here blocks.
type Manager struct {
	serverURL        string
	slot             string
	password         string
	tags             []string
	clock            clock.Clock
	transportFactory TransportFactory

	state       State
	transitions []Transition
	inbox       []*protocol.Message
	outbound    []*protocol.Message

	transport     Transport
	messageQueue  queue.Queue
	transportErrs chan error
	dialResult    chan error
	dialCancel    context.CancelFunc

	handshake         bool
	handshakeDeadline time.Time

	backoff    *backoff
	nextDialAt time.Time

	pendingRoomInfo *protocol.RoomInfo
	roomInfo        *protocol.RoomInfo
	connectedMsg    *protocol.Connected
	faultErr        error
	malformed       int
}

// NewManagerOptions contains options for creating a new session Manager.
type NewManagerOptions struct {
	ServerURL string
	Slot      string
	Password  string
	Tags      []string
	Clock     clock.Clock
	// TransportFactory defaults to NewWSTransport.
	TransportFactory TransportFactory
}

// NewManager creates a new session manager in the Disconnected state.
func NewManager(opts NewManagerOptions) *Manager {
	factory := opts.TransportFactory
	if factory == nil {
		factory = NewWSTransport
	}
	c := opts.Clock
	if c == nil {
		c = clock.NewRealClock()
	}
	return &Manager{
		serverURL:        opts.ServerURL,
		slot:             opts.Slot,
		password:         opts.Password,
		tags:             opts.Tags,
		clock:            c,
		transportFactory: factory,
		state:            StateDisconnected,
		backoff:          newBackoff(defaultBackoffBase, defaultBackoffMax),
	}
}

// Connect starts a connection attempt. Any pending attempt is cancelled
// outright; only one attempt is ever in flight.
func (m *Manager) Connect() {
	m.cancelAttempt()
	m.faultErr = nil
	m.roomInfo = nil
	m.connectedMsg = nil
	m.backoff.reset()
	m.transition(StateConnecting, "connect requested")
	m.startAttempt()
}

// UpdateURL changes the server URL and reconnects. This is the only
// reconfiguration the user can perform interactively, offered after the
// session enters Faulted from a connection error.
func (m *Manager) UpdateURL(url string) {
	m.serverURL = url
	m.Connect()
}

// Update drives the state machine: dial results, transport errors, inbound
// messages, and timer deadlines. It never blocks.
func (m *Manager) Update(_ context.Context) {
	now := m.clock.Now()

	if m.dialResult != nil {
		select {
		case err := <-m.dialResult:
			m.dialResult = nil
			if err != nil {
				m.handleNetworkError(err)
			} else {
				m.handshake = true
				m.handshakeDeadline = now.Add(handshakeTimeout)
			}
		default:
		}
	}

	if m.transportErrs != nil {
		select {
		case err := <-m.transportErrs:
			m.handleNetworkError(err)
		default:
		}
	}

	if m.messageQueue != nil {
		items, err := m.messageQueue.ReadAllMessages()
		if err != nil {
			log.Error("Failed to read session messages: %v", err)
		}
		for _, item := range items {
			m.handleInbound(item)
		}
	}

	if m.handshake && now.After(m.handshakeDeadline) {
		m.handleNetworkError(&NetworkError{Err: fmt.Errorf("timed out waiting for server handshake")})
	}

	if m.state == StateReconnecting && m.transport == nil && !now.Before(m.nextDialAt) {
		m.startAttempt()
	}
}

// Send delivers a message to the server. While not connected the message is
// queued, never dropped, and flushed in order on the next connection. A
// failed write while connected also queues the message for the reconnect
// flush, but returns the error: the server has not accepted the message, so
// callers must not record it as delivered.
func (m *Manager) Send(msg *protocol.Message) error {
	if m.state == StateConnected && m.transport != nil {
		if err := m.transport.SendMessage(msg); err != nil {
			m.outbound = append(m.outbound, msg)
			m.handleNetworkError(err)
			return err
		}
		return nil
	}

	m.outbound = append(m.outbound, msg)
	return nil
}

// Fault transitions the session to Faulted with the given fatal error,
// closing any open connection. Used for errors detected outside the session
// itself, such as a seed conflict.
func (m *Manager) Fault(err error) {
	m.fault(err)
}

// State returns the current connection state.
func (m *Manager) State() State {
	return m.state
}

// Handshaking reports whether the transport is open and the session is
// waiting for the server handshake to complete.
func (m *Manager) Handshaking() bool {
	return m.handshake
}

// Err returns the fatal error when the session is Faulted.
func (m *Manager) Err() error {
	return m.faultErr
}

// Seed returns the seed name from the last completed handshake, or empty if
// no handshake has ever completed. A RoomInfo from a handshake that was
// later refused never surfaces here: acting on a seed the server did not let
// us connect to would be wrong, most visibly in save binding.
func (m *Manager) Seed() string {
	if m.roomInfo == nil {
		return ""
	}
	return m.roomInfo.SeedName
}

// SlotData returns the per-slot options from the completed handshake, or
// nil if not connected yet.
func (m *Manager) SlotData() *protocol.SlotData {
	if m.connectedMsg == nil {
		return nil
	}
	return &m.connectedMsg.SlotData
}

// Transitions drains and returns the state transitions since the last call.
func (m *Manager) Transitions() []Transition {
	transitions := m.transitions
	m.transitions = nil
	return transitions
}

// Messages drains and returns the post-handshake server messages received
// since the last call.
func (m *Manager) Messages() []*protocol.Message {
	inbox := m.inbox
	m.inbox = nil
	return inbox
}

// QueuedMessageCount returns the number of outbound messages waiting for a
// connection.
func (m *Manager) QueuedMessageCount() int {
	return len(m.outbound)
}

// Close tears down the session.
func (m *Manager) Close() {
	m.cancelAttempt()
	if m.state != StateDisconnected {
		m.transition(StateDisconnected, "session closed")
	}
}

func (m *Manager) startAttempt() {
	m.messageQueue = queue.NewInMemoryQueue(inboundQueueSize)
	m.transportErrs = make(chan error, 1)
	m.transport = m.transportFactory(m.messageQueue, m.transportErrs)
	m.dialResult = make(chan error, 1)
	m.handshake = false
	m.malformed = 0

	ctx, cancel := context.WithCancel(context.Background())
	m.dialCancel = cancel

	transport := m.transport
	url := m.serverURL
	result := m.dialResult
	go func() {
		result <- transport.Dial(ctx, url)
	}()
}

func (m *Manager) cancelAttempt() {
	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}
	if m.transport != nil {
		if err := m.transport.Close(); err != nil {
			log.Debug("Failed to close transport: %v", err)
		}
		m.transport = nil
	}
	m.dialResult = nil
	m.transportErrs = nil
	m.messageQueue = nil
	m.handshake = false
	m.pendingRoomInfo = nil
}

func (m *Manager) handleNetworkError(err error) {
	m.cancelAttempt()

	switch m.state {
	case StateConnecting:
		// A failed initial attempt needs user attention, typically a
		// corrected server URL.
		m.fault(err)
	case StateConnected, StateReconnecting:
		delay := m.backoff.next()
		m.nextDialAt = m.clock.Now().Add(delay)
		if m.state != StateReconnecting {
			m.transition(StateReconnecting, err.Error())
		}
		log.Warn("Connection lost: %v (retrying in %s)", err, delay)
	}
}

func (m *Manager) fault(err error) {
	m.cancelAttempt()
	m.faultErr = err
	m.transition(StateFaulted, err.Error())
}

func (m *Manager) handleInbound(item interface{}) {
	switch v := item.(type) {
	case error:
		m.malformed++
		log.Warn("Discarding malformed message: %v", v)
		if m.malformed >= maxConsecutiveMalformed {
			m.handleNetworkError(&NetworkError{Err: fmt.Errorf("received %d consecutive malformed messages", m.malformed)})
		}
	case *protocol.Message:
		m.malformed = 0
		m.handleMessage(v)
	default:
		log.Error("Unexpected item in session message queue: %T", item)
	}
}

func (m *Manager) handleMessage(msg *protocol.Message) {
	if m.handshake {
		m.handleHandshakeMessage(msg)
		return
	}

	if m.state != StateConnected {
		log.Warn("Discarding %s message received while %s", msg.Type, m.state)
		return
	}

	switch msg.Type {
	case protocol.MessageTypeRoomInfo,
		protocol.MessageTypeConnected,
		protocol.MessageTypeConnectionRefused:
		log.Warn("Discarding unexpected %s message while connected", msg.Type)
	default:
		m.inbox = append(m.inbox, msg)
	}
}

func (m *Manager) handleHandshakeMessage(msg *protocol.Message) {
	switch msg.Type {
	case protocol.MessageTypeRoomInfo:
		roomInfo := &protocol.RoomInfo{}
		if err := protocol.DecodePayload(msg, roomInfo); err != nil {
			m.handleInbound(err)
			return
		}
		// The version must check out before anything else the server
		// says is trusted.
		if roomInfo.Version != protocol.Version {
			m.fault(&VersionMismatchError{
				Expected: protocol.Version,
				Actual:   roomInfo.Version,
			})
			return
		}
		m.pendingRoomInfo = roomInfo

		connect, err := protocol.NewMessage(protocol.MessageTypeConnect, &protocol.Connect{
			Slot:     m.slot,
			Password: m.password,
			Version:  protocol.Version,
			Tags:     m.tags,
		})
		if err != nil {
			m.fault(err)
			return
		}
		if err := m.transport.SendMessage(connect); err != nil {
			m.handleNetworkError(err)
		}
	case protocol.MessageTypeConnected:
		if m.pendingRoomInfo == nil {
			m.handleNetworkError(&NetworkError{Err: fmt.Errorf("server sent Connected before RoomInfo")})
			return
		}
		connected := &protocol.Connected{}
		if err := protocol.DecodePayload(msg, connected); err != nil {
			m.handleInbound(err)
			return
		}
		m.roomInfo = m.pendingRoomInfo
		m.pendingRoomInfo = nil
		m.connectedMsg = connected
		m.handshake = false
		m.backoff.reset()
		m.transition(StateConnected, "handshake complete")
		m.flushOutbound()
	case protocol.MessageTypeConnectionRefused:
		refused := &protocol.ConnectionRefused{}
		if err := protocol.DecodePayload(msg, refused); err != nil {
			m.handleInbound(err)
			return
		}
		m.fault(refusalError(refused))
	default:
		log.Warn("Discarding unexpected %s message during handshake", msg.Type)
	}
}

func (m *Manager) flushOutbound() {
	for len(m.outbound) > 0 {
		msg := m.outbound[0]
		if err := m.transport.SendMessage(msg); err != nil {
			m.handleNetworkError(err)
			return
		}
		m.outbound = m.outbound[1:]
	}
}

func (m *Manager) transition(to State, reason string) {
	from := m.state
	m.state = to
	m.transitions = append(m.transitions, Transition{
		From:   from,
		To:     to,
		Reason: reason,
		At:     m.clock.Now(),
	})
	log.Info("Session state %s -> %s (%s)", from, to, reason)
}

func refusalError(refused *protocol.ConnectionRefused) error {
	for _, reason := range refused.Errors {
		if reason == protocol.RefusalIncompatibleVersion {
			return &VersionMismatchError{
				Expected: protocol.Version,
				Actual:   "unknown (server refused the connection)",
			}
		}
	}
	return &AuthError{Reason: strings.Join(refused.Errors, ", ")}
}
