package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/cbodonnell/emberlink/pkg/log"
	"github.com/cbodonnell/emberlink/pkg/protocol"
	"github.com/cbodonnell/emberlink/pkg/queue"
	"github.com/gorilla/websocket"
)

// Transport is one connection attempt's link to the server. Inbound messages
// are delivered to the queue the transport was created with; read failures
// are delivered to its error channel.
type Transport interface {
	// Dial opens the connection and starts reading. It blocks until the
	// connection is open or fails.
	Dial(ctx context.Context, url string) error
	// SendMessage writes a message to the open connection.
	SendMessage(msg *protocol.Message) error
	// Close closes the connection.
	Close() error
}

// TransportFactory creates a fresh Transport for one connection attempt.
type TransportFactory func(messageQueue queue.Queue, errChan chan<- error) Transport

// WSTransport is a Transport over a WebSocket connection.
type WSTransport struct {
	messageQueue queue.Queue
	errChan      chan<- error
	conn         *websocket.Conn
	writeLock    sync.Mutex
}

// NewWSTransport creates a new WebSocket transport.
func NewWSTransport(messageQueue queue.Queue, errChan chan<- error) Transport {
	return &WSTransport{
		messageQueue: messageQueue,
		errChan:      errChan,
	}
}

// Dial establishes a connection to the WebSocket server.
func (t *WSTransport) Dial(ctx context.Context, url string) error {
	log.Info("Connecting to WebSocket server at %s", url)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return &NetworkError{Err: fmt.Errorf("failed to connect to server: %v", err)}
	}
	t.conn = conn

	go t.readMessages()

	return nil
}

// readMessages reads incoming messages until the connection fails or closes.
func (t *WSTransport) readMessages() {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("Error reading WebSocket message: %v", err)
			}
			select {
			case t.errChan <- &NetworkError{Err: err}:
			default:
			}
			return
		}

		msg, err := protocol.DeserializeMessage(data)
		if err != nil {
			// Deliver the malformed message error through the queue so
			// the session can count consecutive failures in order.
			if qErr := t.messageQueue.Enqueue(err); qErr != nil {
				log.Error("Failed to enqueue malformed message error: %v", qErr)
			}
			continue
		}
		log.Trace("Received message of type %s", msg.Type)

		if err := t.messageQueue.Enqueue(msg); err != nil {
			log.Error("Failed to enqueue message: %v", err)
		}
	}
}

// SendMessage sends a message to the WebSocket server.
func (t *WSTransport) SendMessage(msg *protocol.Message) error {
	b, err := protocol.SerializeMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}

	t.writeLock.Lock()
	defer t.writeLock.Unlock()
	if t.conn == nil {
		return &NetworkError{Err: fmt.Errorf("connection is not open")}
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return &NetworkError{Err: fmt.Errorf("failed to write message: %v", err)}
	}

	return nil
}

// Close closes the WebSocket connection.
func (t *WSTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
