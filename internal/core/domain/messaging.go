package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutboxMessage is a pending event awaiting publication. It is created in
// the same database transaction as the ledger mutation it describes and
// deleted only after a confirmed publish.
type OutboxMessage struct {
	MessageID     uuid.UUID `json:"messageID"` // Row id; becomes the broker message id
	EventID       uuid.UUID `json:"eventID"`
	CorrelationID uuid.UUID `json:"correlationID"`
	CausationID   uuid.UUID `json:"causationID"`
	EventType     EventType `json:"eventType"`
	Payload       []byte    `json:"payload"` // Serialized event body
	CreatedAt     time.Time `json:"createdAt"`
	TryCount      int       `json:"tryCount"`
}

// Handler markers recorded on InboxRecord rows. HandlerNone means the
// message was seen and logged only; a specific role name means that role
// completed its side effect.
const (
	HandlerNone      = "None"
	HandlerAntiFraud = "AntiFraud"
)

// InboxRecord marks a broker message as processed, keyed by message id.
// Deduplication is per consumer role, via the Handler marker.
type InboxRecord struct {
	MessageID   uuid.UUID `json:"messageID"`
	EventType   string    `json:"eventType"`
	ProcessedAt time.Time `json:"processedAt"`
	Handler     string    `json:"handler"`
}

// DeadLetter records a malformed or unverifiable inbound message.
// Append-only; a duplicate message id is logged, never re-inserted.
type DeadLetter struct {
	MessageID  uuid.UUID `json:"messageID"`
	ReceivedAt time.Time `json:"receivedAt"`
	Handler    string    `json:"handler"`
	Payload    string    `json:"payload"`
	EventType  *string   `json:"eventType"` // nil when the type header was unreadable
	Error      string    `json:"error"`
}
