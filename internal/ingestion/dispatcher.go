package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"PortfolioLedger/internal/core"
	"PortfolioLedger/internal/event"
	"PortfolioLedger/internal/ledger"
	"PortfolioLedger/internal/observability"
)

// Message outcomes, also the values of the outcome metric label.
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeRetry     = "retry"
)

// Dispatcher applies inbound operations to the engine. Domain rejections
// are acked and logged, since redelivery would fail the same way;
// infrastructure errors are nak'ed for redelivery.
type Dispatcher struct {
	engine  *core.Engine
	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewDispatcher(engine *core.Engine, metrics *observability.Metrics, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		engine:  engine,
		metrics: metrics,
		log:     logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Run drains in until ctx is cancelled or in is closed.
func (d *Dispatcher) Run(ctx context.Context, in <-chan RawEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-in:
			if !ok {
				return nil
			}
			if d.metrics != nil {
				d.metrics.ChannelSize.WithLabelValues("ingest").Set(float64(len(in)))
			}
			d.Handle(ctx, raw)
		}
	}
}

// Handle processes one message, acks or naks it and returns the outcome.
func (d *Dispatcher) Handle(ctx context.Context, raw RawEvent) string {
	op := EventTypeFromSubject(raw.Subject)
	err := d.apply(ctx, raw, op)

	outcome := OutcomeApplied
	switch {
	case err == nil:
		raw.Ack()
	case errors.Is(err, ledger.ErrDuplicateOperation):
		outcome = OutcomeDuplicate
		raw.Ack()
		d.log.Debug().Str("subject", raw.Subject).Err(err).Msg("duplicate operation acked")
	case ledger.Kind(err) != nil:
		outcome = OutcomeRejected
		raw.Ack()
		d.log.Warn().Str("subject", raw.Subject).Str("reason", ledger.KindLabel(err)).Err(err).Msg("operation rejected")
	default:
		outcome = OutcomeRetry
		raw.Nak()
		d.log.Error().Str("subject", raw.Subject).Err(err).Msg("operation failed, requesting redelivery")
	}

	if d.metrics != nil {
		d.metrics.IngestMessages.WithLabelValues(op, outcome).Inc()
	}
	return outcome
}

func (d *Dispatcher) apply(ctx context.Context, raw RawEvent, op string) error {
	evt, err := ParseRawEvent(raw, op)
	if err != nil {
		return err
	}

	if p, ok := evt.(*event.PriceObservation); ok {
		_, err := d.engine.RecordPrice(ctx, p.Symbol, p.Timestamp, p.OHLCV)
		return err
	}

	owner, err := d.engine.Reader().Owner(ctx, evt.OwnerName())
	if err != nil {
		return err
	}

	switch e := evt.(type) {
	case *event.CashDeposit:
		_, err = d.engine.Deposit(ctx, owner, e.Request())
	case *event.CashWithdrawal:
		_, err = d.engine.Withdraw(ctx, owner, e.Request())
	case *event.TradeFill:
		if e.TradeSide == event.SideSell {
			_, err = d.engine.Sell(ctx, owner, e.Request())
		} else {
			_, err = d.engine.Buy(ctx, owner, e.Request())
		}
	case *event.InKindDeposit:
		_, err = d.engine.DepositInKind(ctx, owner, e.Request())
	default:
		err = fmt.Errorf("%w: unhandled event %T", ledger.ErrInvalidInput, evt)
	}
	return err
}
