package ledger_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"PortfolioLedger/internal/ledger"
)

// ============================================================================
// Test: Owner & Currency
// ============================================================================

func TestOwner_Path(t *testing.T) {
	o := ledger.Owner{ID: 7, Name: "alice", Currency: ledger.CurrencyUSD}
	if got := o.Path(); got != "owner:7:alice" {
		t.Errorf("got %q, want %q", got, "owner:7:alice")
	}
}

func TestParseCurrency(t *testing.T) {
	for _, in := range []string{"USD", "usd", " cad "} {
		if _, err := ledger.ParseCurrency(in); err != nil {
			t.Errorf("ParseCurrency(%q): unexpected error %v", in, err)
		}
	}
	if _, err := ledger.ParseCurrency("EUR"); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("EUR should be invalid input, got %v", err)
	}
}

// ============================================================================
// Test: Symbols
// ============================================================================

func TestNormalizeTicker(t *testing.T) {
	got, err := ledger.NormalizeTicker("  brk.b ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "BRK.B" {
		t.Errorf("got %q, want BRK.B", got)
	}

	for _, bad := range []string{"", "   ", "A B"} {
		if _, err := ledger.NormalizeTicker(bad); !errors.Is(err, ledger.ErrInvalidInput) {
			t.Errorf("NormalizeTicker(%q) should be invalid input, got %v", bad, err)
		}
	}
}

func TestOHLCV_NegativeVolume(t *testing.T) {
	bar := ledger.OHLCV{Volume: -1}
	if err := bar.Validate(); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("negative volume should be invalid input, got %v", err)
	}
	bar.Volume = 0
	if err := bar.Validate(); err != nil {
		t.Errorf("zero volume should be valid, got %v", err)
	}
}

// ============================================================================
// Test: Request validation
// ============================================================================

func TestTradeRequest_ValidateNormalizesSymbol(t *testing.T) {
	req := ledger.TradeRequest{
		ExternalID: "b1",
		Timestamp:  1,
		Symbol:     "aapl",
		Quantity:   decimal.NewFromInt(1),
		Price:      decimal.Zero,
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Symbol != "AAPL" {
		t.Errorf("symbol not normalized: %q", req.Symbol)
	}
}

func TestTradeRequest_ValidateRejects(t *testing.T) {
	base := ledger.TradeRequest{
		ExternalID: "b1",
		Timestamp:  1,
		Symbol:     "AAPL",
		Quantity:   decimal.NewFromInt(1),
		Price:      decimal.NewFromInt(1),
	}

	zeroQty := base
	zeroQty.Quantity = decimal.Zero
	negPrice := base
	negPrice.Price = decimal.NewFromInt(-1)
	negFees := base
	negFees.Fees = decimal.NewFromInt(-1)
	noID := base
	noID.ExternalID = ""

	for name, req := range map[string]ledger.TradeRequest{
		"zero quantity":  zeroQty,
		"negative price": negPrice,
		"negative fees":  negFees,
		"no external id": noID,
	} {
		if err := req.Validate(); !errors.Is(err, ledger.ErrInvalidInput) {
			t.Errorf("%s: want invalid input, got %v", name, err)
		}
	}
}

func TestCashRequest_Validate(t *testing.T) {
	ok := ledger.CashRequest{ExternalID: "d1", Timestamp: 1, Amount: decimal.NewFromInt(5)}
	if err := ok.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	neg := ok
	neg.Amount = decimal.NewFromInt(-5)
	if err := neg.Validate(); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("negative amount: want invalid input, got %v", err)
	}
}

func TestCashRequest_ValidateDeposit(t *testing.T) {
	req := ledger.CashRequest{ExternalID: "d1", Timestamp: 1, Amount: decimal.NewFromInt(1), Fees: decimal.NewFromInt(5)}
	if err := req.Validate(); err != nil {
		t.Errorf("withdrawal rules allow fees above amount: %v", err)
	}
	if err := req.ValidateDeposit(); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("fees above amount: want invalid input, got %v", err)
	}

	req.Fees = decimal.NewFromInt(1)
	if err := req.ValidateDeposit(); err != nil {
		t.Errorf("fees equal to amount: %v", err)
	}

	req.Amount = decimal.Zero
	if err := req.ValidateDeposit(); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("zero amount: want invalid input, got %v", err)
	}
}

// ============================================================================
// Test: Enums
// ============================================================================

func TestMovementAndTransactionTypes(t *testing.T) {
	if err := ledger.MovementDeposit.Validate(); err != nil {
		t.Errorf("DEPOSIT: %v", err)
	}
	if err := ledger.MovementType("REFUND").Validate(); err == nil {
		t.Error("REFUND should be rejected")
	}
	if err := ledger.TransactionDepositInKind.Validate(); err != nil {
		t.Errorf("DEPOSIT_IN_KIND: %v", err)
	}
	if err := ledger.TransactionType("SHORT").Validate(); err == nil {
		t.Error("SHORT should be rejected")
	}
}

// ============================================================================
// Test: Snapshots
// ============================================================================

func TestPositionSnapshot_Derived(t *testing.T) {
	var nilSnap *ledger.PositionSnapshot
	if nilSnap.IsOpen() {
		t.Error("nil snapshot is not open")
	}

	p := &ledger.PositionSnapshot{
		Size:         decimal.NewFromInt(4),
		AveragePrice: decimal.NewFromInt(10),
		MarketPrice:  decimal.NewFromInt(12),
	}
	if !p.IsOpen() {
		t.Error("positive size should be open")
	}
	if !p.UnrealizedPnL().Equal(decimal.NewFromInt(8)) {
		t.Errorf("unrealized pnl: got %s, want 8", p.UnrealizedPnL())
	}

	p.Size = decimal.Zero
	if p.IsOpen() {
		t.Error("zero size is a liquidated position")
	}
}

// ============================================================================
// Test: Error kinds
// ============================================================================

func TestKindLabel(t *testing.T) {
	wrapped := fmt.Errorf("buy: %w", fmt.Errorf("%w: cash 1", ledger.ErrInsufficientFunds))
	if ledger.Kind(wrapped) != ledger.ErrInsufficientFunds {
		t.Errorf("Kind should unwrap to insufficient funds")
	}
	if got := ledger.KindLabel(wrapped); got != "insufficient_funds" {
		t.Errorf("got %q", got)
	}
	if got := ledger.KindLabel(errors.New("boom")); got != "internal" {
		t.Errorf("got %q, want internal", got)
	}
}
