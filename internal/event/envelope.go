package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType discriminator for inbound operations and outbound ledger events.
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeDeposit
	EventTypeWithdrawal
	EventTypeBuy
	EventTypeSell
	EventTypeDepositInKind
	EventTypePrice
	EventTypeWatchStarted
	EventTypeWatchStopped
	EventTypeEODSummary
)

var eventTypeNames = map[EventType]string{
	EventTypeDeposit:       "deposit",
	EventTypeWithdrawal:    "withdraw",
	EventTypeBuy:           "buy",
	EventTypeSell:          "sell",
	EventTypeDepositInKind: "deposit_in_kind",
	EventTypePrice:         "price",
	EventTypeWatchStarted:  "watch_started",
	EventTypeWatchStopped:  "watch_stopped",
	EventTypeEODSummary:    "eod_summary",
}

// String is the subject token used on NATS.
func (et EventType) String() string {
	if s, ok := eventTypeNames[et]; ok {
		return s
	}
	return "unknown"
}

// ParseEventType is the inverse of String.
func ParseEventType(s string) (EventType, error) {
	for et, name := range eventTypeNames {
		if name == s {
			return et, nil
		}
	}
	return EventTypeUnknown, fmt.Errorf("unknown event type %q", s)
}

func (et EventType) MarshalText() ([]byte, error) {
	return []byte(et.String()), nil
}

func (et *EventType) UnmarshalText(b []byte) error {
	parsed, err := ParseEventType(string(b))
	if err != nil {
		return err
	}
	*et = parsed
	return nil
}

// Event is the interface all inbound operations implement.
type Event interface {
	// IdempotencyKey returns the stable dedup key (the external id)
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// OwnerName returns the owner the operation targets ("" for prices)
	OwnerName() string

	// EventTimestamp returns the operation time in epoch millis
	EventTimestamp() int64
}

// EventEnvelope wraps every outbound ledger event published after commit.
type EventEnvelope struct {
	// Unique per emitted envelope
	EventID string `json:"event_id"`

	EventType EventType `json:"event_type"`

	// External id of the operation that produced the event, if any
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	OwnerID int64  `json:"owner_id,omitempty"`
	Owner   string `json:"owner,omitempty"`
	Symbol  string `json:"symbol,omitempty"`

	// Operation time in epoch millis (NOT wall-clock)
	Timestamp int64 `json:"timestamp"`

	// Wall-clock commit time
	RecordedAt time.Time `json:"recorded_at"`

	// JSON-encoded event-specific data
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope builds an envelope with a fresh event id and the JSON encoding
// of payload.
func NewEnvelope(et EventType, idempotencyKey string, timestamp int64, payload interface{}) (*EventEnvelope, error) {
	env := &EventEnvelope{
		EventID:        uuid.NewString(),
		EventType:      et,
		IdempotencyKey: idempotencyKey,
		Timestamp:      timestamp,
		RecordedAt:     time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", et, err)
		}
		env.Payload = raw
	}
	return env, nil
}

// WithOwner sets the owner fields and returns env.
func (env *EventEnvelope) WithOwner(id int64, name string) *EventEnvelope {
	env.OwnerID = id
	env.Owner = name
	return env
}

// WithSymbol sets the symbol field and returns env.
func (env *EventEnvelope) WithSymbol(ticker string) *EventEnvelope {
	env.Symbol = ticker
	return env
}
