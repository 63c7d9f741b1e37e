package protocol

import (
	"encoding/json"
	"fmt"
)

// NewMessage builds a Message of the given type around a marshaled payload.
func NewMessage(msgType string, payload interface{}) (*Message, error) {
	if payload == nil {
		return &Message{Type: msgType}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %v", msgType, err)
	}
	return &Message{Type: msgType, Payload: b}, nil
}

// NewDeathLinkBounce builds a death link Bounce message.
func NewDeathLinkBounce(data DeathLinkData) (*Message, error) {
	return NewMessage(MessageTypeBounce, &Bounce{
		Tags: []string{DeathLinkTag},
		Data: data,
	})
}

func SerializeMessage(m *Message) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize message: %v", err)
	}
	return b, nil
}

func DeserializeMessage(data []byte) (*Message, error) {
	message := &Message{}
	if err := json.Unmarshal(data, message); err != nil {
		return nil, &MalformedMessageError{Err: err}
	}
	if message.Type == "" {
		return nil, &MalformedMessageError{Err: fmt.Errorf("message has no type")}
	}
	return message, nil
}

// DecodePayload unmarshals a message payload into out.
func DecodePayload(m *Message, out interface{}) error {
	if err := json.Unmarshal(m.Payload, out); err != nil {
		return &MalformedMessageError{Err: fmt.Errorf("bad %s payload: %v", m.Type, err)}
	}
	return nil
}

// MalformedMessageError is returned when a message cannot be decoded. The
// message is discarded; the connection is only torn down if these repeat.
type MalformedMessageError struct {
	Err error
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed message: %v", e.Err)
}

func IsMalformedMessage(err error) bool {
	_, ok := err.(*MalformedMessageError)
	return ok
}
