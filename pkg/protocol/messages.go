package protocol

import "encoding/json"

// Version is the protocol version this client implements. The server
// advertises its own version in RoomInfo and the two must match exactly
// before any other message is trusted.
const Version = "0.6"

const (
	// MessageBufferSize represents the maximum size of a message
	MessageBufferSize = 4096
)

// Message types
const (
	MessageTypeRoomInfo          = "RoomInfo"
	MessageTypeConnect           = "Connect"
	MessageTypeConnected         = "Connected"
	MessageTypeConnectionRefused = "ConnectionRefused"
	MessageTypeReceivedItems     = "ReceivedItems"
	MessageTypeLocationChecks    = "LocationChecks"
	MessageTypeBounce            = "Bounce"
	MessageTypeCreateHints       = "CreateHints"
	MessageTypeStatusUpdate      = "StatusUpdate"
	MessageTypePrintJSON         = "PrintJSON"
)

// Refusal reasons carried by ConnectionRefused.
const (
	RefusalInvalidSlot         = "InvalidSlot"
	RefusalInvalidPassword     = "InvalidPassword"
	RefusalIncompatibleVersion = "IncompatibleVersion"
)

// Message represents a generic message for serialization/deserialization
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RoomInfo is the first message the server sends after the transport opens.
type RoomInfo struct {
	Version  string `json:"version"`
	SeedName string `json:"seedName"`
}

// Connect is the client's authentication request.
type Connect struct {
	Slot     string   `json:"slot"`
	Password string   `json:"password,omitempty"`
	Version  string   `json:"version"`
	Tags     []string `json:"tags,omitempty"`
}

// Connected is the server's answer to a successful Connect.
type Connected struct {
	Slot     string   `json:"slot"`
	Team     int      `json:"team"`
	SlotData SlotData `json:"slotData"`
}

// SlotData carries per-slot options chosen at seed generation time.
type SlotData struct {
	DeathLink bool   `json:"deathLink"`
	Goal      string `json:"goal,omitempty"`
}

// ConnectionRefused is the server's answer to a failed Connect.
type ConnectionRefused struct {
	Errors []string `json:"errors"`
}

// RemoteItem is one item granted by the server. The remote index is unique
// and monotonically assigned for the whole multiworld session.
type RemoteItem struct {
	Index      int64  `json:"index"`
	TemplateID string `json:"item"`
	LocationID int64  `json:"location"`
	Player     string `json:"player"`
}

// ReceivedItems delivers one or more remote items to the client. The server
// may retransmit items the client has already seen.
type ReceivedItems struct {
	Items []RemoteItem `json:"items"`
}

// LocationChecks reports checked locations to the server.
type LocationChecks struct {
	IDs []int64 `json:"ids"`
}

// Bounce is a broadcast message. The only payload this client produces or
// consumes is the death link exchange.
type Bounce struct {
	Tags []string      `json:"tags,omitempty"`
	Data DeathLinkData `json:"data"`
}

// DeathLinkTag marks a Bounce as a death link exchange.
const DeathLinkTag = "DeathLink"

// DeathLinkData is the payload of a death link Bounce.
type DeathLinkData struct {
	Source string `json:"source"`
	Time   int64  `json:"time"`
	Cause  string `json:"cause,omitempty"`
}

// CreateHints asks the server to reveal the items at the given locations.
type CreateHints struct {
	LocationIDs []int64 `json:"locations"`
}

// StatusUpdate reports the client's completion status.
type StatusUpdate struct {
	Status string `json:"status"`
}

// Client statuses.
const (
	StatusPlaying = "playing"
	StatusGoal    = "goal"
)

// PrintJSON is an informational message for the player.
type PrintJSON struct {
	Text string `json:"text"`
}
