package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType tags every domain event published by the service.
// The set is closed: routing is a static lookup, not runtime type inspection.
type EventType string

const (
	AccountOpened     EventType = "AccountOpened"
	MoneyCredited     EventType = "MoneyCredited"
	MoneyDebited      EventType = "MoneyDebited"
	TransferCompleted EventType = "TransferCompleted"
	InterestAccrued   EventType = "InterestAccrued"
	ClientBlocked     EventType = "ClientBlocked"
	ClientUnblocked   EventType = "ClientUnblocked"
)

// routingKeys maps each event type to its broker routing key.
var routingKeys = map[EventType]string{
	AccountOpened:     "account.opened",
	MoneyCredited:     "money.credited",
	MoneyDebited:      "money.debited",
	TransferCompleted: "transfer.completed",
	InterestAccrued:   "interest.accrued",
	ClientBlocked:     "client.blocked",
	ClientUnblocked:   "client.unblocked",
}

// RoutingKey returns the broker routing key for the event type, or an
// empty string for an unknown type.
func (t EventType) RoutingKey() string {
	return routingKeys[t]
}

// IsClientEvent reports whether the event type carries a clientId field
// (block/unblock events consumed by the anti-fraud role).
func (t EventType) IsClientEvent() bool {
	return t == ClientBlocked || t == ClientUnblocked
}

// EventVersion is the envelope schema version stamped on every event.
const EventVersion = "v1"

// SupportedMajorVersion is the highest envelope major version consumers accept.
const SupportedMajorVersion = 1

// ParseMajorVersion extracts the major component from a version string
// such as "v1" or "v1.2".
func ParseMajorVersion(version string) (int, error) {
	v := strings.TrimPrefix(version, "v")
	if i := strings.IndexByte(v, '.'); i >= 0 {
		v = v[:i]
	}
	major, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("malformed event version %q: %w", version, err)
	}
	return major, nil
}

// EventMeta carries the tracing identifiers and schema version of an event.
type EventMeta struct {
	CausationID   uuid.UUID `json:"causationId"`
	CorrelationID uuid.UUID `json:"correlationId"`
	Version       string    `json:"version"`
	Source        string    `json:"source"`
}

// EventEnvelope is the common part of every published event body.
type EventEnvelope struct {
	EventID    uuid.UUID `json:"eventId"`
	OccurredAt time.Time `json:"occurredAt"`
	Meta       EventMeta `json:"meta"`
}

// NewEnvelope builds an envelope with a fresh event id. The event's own id
// doubles as the causation id unless the caller links it to a prior event.
func NewEnvelope(correlationID uuid.UUID, source string) EventEnvelope {
	eventID := uuid.New()
	return EventEnvelope{
		EventID:    eventID,
		OccurredAt: time.Now().UTC(),
		Meta: EventMeta{
			CausationID:   eventID,
			CorrelationID: correlationID,
			Version:       EventVersion,
			Source:        source,
		},
	}
}

// AccountOpenedEvent is published when a new account is created.
type AccountOpenedEvent struct {
	EventEnvelope
	AccountID   int64       `json:"accountId"`
	OwnerID     uuid.UUID   `json:"ownerId"`
	AccountType AccountType `json:"accountType"`
	Currency    Currency    `json:"currency"`
}

// MoneyCreditedEvent is published when funds are deposited to an account.
type MoneyCreditedEvent struct {
	EventEnvelope
	AccountID int64           `json:"accountId"`
	OwnerID   uuid.UUID       `json:"ownerId"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  Currency        `json:"currency"`
}

// MoneyDebitedEvent is published when funds are withdrawn from an account.
type MoneyDebitedEvent struct {
	EventEnvelope
	AccountID int64           `json:"accountId"`
	OwnerID   uuid.UUID       `json:"ownerId"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  Currency        `json:"currency"`
}

// TransferCompletedEvent is published once per transfer, referencing both
// accounts. DebitedAmount is the exact amount taken from the source;
// CreditedAmount is the converted amount applied to the destination.
type TransferCompletedEvent struct {
	EventEnvelope
	SourceAccountID      int64           `json:"sourceAccountId"`
	DestinationAccountID int64           `json:"destinationAccountId"`
	DebitedAmount        decimal.Decimal `json:"debitedAmount"`
	DebitedCurrency      Currency        `json:"debitedCurrency"`
	CreditedAmount       decimal.Decimal `json:"creditedAmount"`
	CreditedCurrency     Currency        `json:"creditedCurrency"`
}

// InterestAccruedEvent is published for each account the accrual batch touches.
type InterestAccruedEvent struct {
	EventEnvelope
	AccountID int64           `json:"accountId"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  Currency        `json:"currency"`
}

// ClientBlockedEvent marks an owner as blocked for balance-reducing operations.
type ClientBlockedEvent struct {
	EventEnvelope
	ClientID uuid.UUID `json:"clientId"`
}

// ClientUnblockedEvent lifts a prior block.
type ClientUnblockedEvent struct {
	EventEnvelope
	ClientID uuid.UUID `json:"clientId"`
}
