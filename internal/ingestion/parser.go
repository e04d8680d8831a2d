package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"

	"PortfolioLedger/internal/event"
	"PortfolioLedger/internal/ledger"
)

// SubjectPrefix is the inbound subject namespace; the last token names the
// operation, e.g. portfolio.ops.buy.
const SubjectPrefix = "portfolio.ops"

// EventTypeFromSubject extracts the operation token from an inbound subject.
func EventTypeFromSubject(subject string) string {
	rest, ok := strings.CutPrefix(subject, SubjectPrefix+".")
	if !ok {
		return ""
	}
	if i := strings.IndexByte(rest, '.'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// ParseRawEvent converts a RawEvent (JSON bytes + event type string) into a
// typed event.Event. Malformed payloads are ErrInvalidInput so the dispatcher
// acks them instead of redelivering forever.
func ParseRawEvent(raw RawEvent, eventType string) (event.Event, error) {
	et, err := event.ParseEventType(eventType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrInvalidInput, err)
	}

	switch et {
	case event.EventTypeDeposit:
		return decode(raw.Data, &event.CashDeposit{}, requireOwner)
	case event.EventTypeWithdrawal:
		return decode(raw.Data, &event.CashWithdrawal{}, requireOwner)
	case event.EventTypeBuy:
		return decode(raw.Data, &event.TradeFill{TradeSide: event.SideBuy}, requireOwner)
	case event.EventTypeSell:
		return decode(raw.Data, &event.TradeFill{TradeSide: event.SideSell}, requireOwner)
	case event.EventTypeDepositInKind:
		return decode(raw.Data, &event.InKindDeposit{}, requireOwner)
	case event.EventTypePrice:
		return decode(raw.Data, &event.PriceObservation{}, requireSymbol)
	default:
		return nil, fmt.Errorf("%w: event type %s is not accepted inbound", ledger.ErrInvalidInput, et)
	}
}

// decode unmarshals the snake_case payload into evt and runs check on it.
func decode(data []byte, evt event.Event, check func(event.Event) error) (event.Event, error) {
	if err := json.Unmarshal(data, evt); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ledger.ErrInvalidInput, evt.EventType(), err)
	}
	if err := check(evt); err != nil {
		return nil, err
	}
	return evt, nil
}

func requireOwner(evt event.Event) error {
	if strings.TrimSpace(evt.OwnerName()) == "" {
		return fmt.Errorf("%w: %s: owner is required", ledger.ErrInvalidInput, evt.EventType())
	}
	return nil
}

func requireSymbol(evt event.Event) error {
	p, ok := evt.(*event.PriceObservation)
	if !ok {
		return nil
	}
	if _, err := ledger.NormalizeTicker(p.Symbol); err != nil {
		return fmt.Errorf("price: %w", err)
	}
	return nil
}
