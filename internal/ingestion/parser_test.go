package ingestion_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"PortfolioLedger/internal/event"
	"PortfolioLedger/internal/ingestion"
	"PortfolioLedger/internal/ledger"
)

func rawFromJSON(t *testing.T, subject string, v interface{}) ingestion.RawEvent {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawEvent{
		Subject:   subject,
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func TestEventTypeFromSubject(t *testing.T) {
	tests := []struct {
		subject string
		want    string
	}{
		{"portfolio.ops.buy", "buy"},
		{"portfolio.ops.deposit_in_kind", "deposit_in_kind"},
		{"portfolio.ops.price.AAPL", "price"},
		{"portfolio.other.buy", ""},
		{"portfolio.ops", ""},
	}
	for _, tt := range tests {
		if got := ingestion.EventTypeFromSubject(tt.subject); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.subject, got, tt.want)
		}
	}
}

func TestParseDeposit(t *testing.T) {
	payload := map[string]interface{}{
		"external_id": "dep-1",
		"owner":       "alice",
		"timestamp":   int64(1704186000000),
		"amount":      "1000.50",
		"fees":        2.5,
	}

	evt, err := ingestion.ParseRawEvent(rawFromJSON(t, "portfolio.ops.deposit", payload), "deposit")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	d, ok := evt.(*event.CashDeposit)
	if !ok {
		t.Fatalf("expected *event.CashDeposit, got %T", evt)
	}
	if d.ExternalID != "dep-1" {
		t.Errorf("external_id: got %s, want dep-1", d.ExternalID)
	}
	if !d.Amount.Equal(decimal.RequireFromString("1000.50")) {
		t.Errorf("amount: got %s, want 1000.50", d.Amount)
	}
	if !d.Fees.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("fees: got %s, want 2.5 (numbers are accepted)", d.Fees)
	}
	if d.EventTimestamp() != 1704186000000 {
		t.Errorf("timestamp: got %d", d.EventTimestamp())
	}
	if d.EventType() != event.EventTypeDeposit {
		t.Errorf("event type: got %v, want deposit", d.EventType())
	}
}

func TestParseTrade_SideFromType(t *testing.T) {
	payload := map[string]interface{}{
		"external_id":  "t-1",
		"owner":        "alice",
		"timestamp":    int64(1704186000000),
		"symbol":       "aapl",
		"display_name": "Apple Inc.",
		"quantity":     "10",
		"price":        "185.25",
		"fees":         "1",
	}

	for _, tt := range []struct {
		op   string
		side event.Side
		want event.EventType
	}{
		{"buy", event.SideBuy, event.EventTypeBuy},
		{"sell", event.SideSell, event.EventTypeSell},
	} {
		evt, err := ingestion.ParseRawEvent(rawFromJSON(t, "portfolio.ops."+tt.op, payload), tt.op)
		if err != nil {
			t.Fatalf("%s: parse failed: %v", tt.op, err)
		}
		tf, ok := evt.(*event.TradeFill)
		if !ok {
			t.Fatalf("%s: expected *event.TradeFill, got %T", tt.op, evt)
		}
		if tf.TradeSide != tt.side {
			t.Errorf("%s: side got %d, want %d", tt.op, tf.TradeSide, tt.side)
		}
		if tf.EventType() != tt.want {
			t.Errorf("%s: event type got %v, want %v", tt.op, tf.EventType(), tt.want)
		}
		req := tf.Request()
		if req.Symbol != "aapl" || req.DisplayName != "Apple Inc." {
			t.Errorf("%s: request symbol got %q/%q", tt.op, req.Symbol, req.DisplayName)
		}
		if !req.Price.Equal(decimal.RequireFromString("185.25")) {
			t.Errorf("%s: price got %s", tt.op, req.Price)
		}
	}
}

func TestParseDepositInKind(t *testing.T) {
	payload := map[string]interface{}{
		"external_id": "ik-1",
		"owner":       "alice",
		"timestamp":   int64(1704186000000),
		"symbol":      "MSFT",
		"quantity":    "3",
		"cost_basis":  "300",
	}

	evt, err := ingestion.ParseRawEvent(rawFromJSON(t, "portfolio.ops.deposit_in_kind", payload), "deposit_in_kind")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	ik, ok := evt.(*event.InKindDeposit)
	if !ok {
		t.Fatalf("expected *event.InKindDeposit, got %T", evt)
	}
	if req := ik.Request(); !req.Price.Equal(decimal.NewFromInt(300)) {
		t.Errorf("cost basis should map to price, got %s", req.Price)
	}
	if !ik.Fees.IsZero() {
		t.Errorf("absent fees should be zero, got %s", ik.Fees)
	}
}

func TestParsePrice(t *testing.T) {
	payload := map[string]interface{}{
		"symbol":         "AAPL",
		"timestamp":      int64(1704214800000),
		"open":           "184",
		"high":           "186",
		"low":            "183.5",
		"close":          "185.1",
		"adjusted_close": "185.1",
		"volume":         int64(5_000_000),
	}

	evt, err := ingestion.ParseRawEvent(rawFromJSON(t, "portfolio.ops.price", payload), "price")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	p, ok := evt.(*event.PriceObservation)
	if !ok {
		t.Fatalf("expected *event.PriceObservation, got %T", evt)
	}
	if !p.Close.Equal(decimal.RequireFromString("185.1")) {
		t.Errorf("close: got %s", p.Close)
	}
	if p.Volume != 5_000_000 {
		t.Errorf("volume: got %d", p.Volume)
	}
	if p.IdempotencyKey() != "AAPL@1704214800000" {
		t.Errorf("idempotency key: got %s", p.IdempotencyKey())
	}
}

func TestParseRejections_AreInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		op   string
		data string
	}{
		{"unknown type", "transfer", `{}`},
		{"outbound-only type", "eod_summary", `{}`},
		{"invalid json", "deposit", `{invalid json`},
		{"bad decimal", "deposit", `{"owner":"alice","amount":"ten"}`},
		{"missing owner", "buy", `{"external_id":"x","symbol":"AAPL"}`},
		{"blank symbol", "price", `{"symbol":"  ","timestamp":1}`},
	}

	for _, tt := range tests {
		raw := ingestion.RawEvent{Data: []byte(tt.data)}
		evt, err := ingestion.ParseRawEvent(raw, tt.op)
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		if !errors.Is(err, ledger.ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", tt.name, err)
		}
		if evt != nil {
			t.Errorf("%s: expected nil event, got %T", tt.name, evt)
		}
	}
}
