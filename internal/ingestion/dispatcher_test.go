package ingestion_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PortfolioLedger/internal/core"
	"PortfolioLedger/internal/event"
	"PortfolioLedger/internal/ingestion"
	"PortfolioLedger/internal/ledger"
	"PortfolioLedger/internal/observability"
	storetest "PortfolioLedger/internal/testutil"
)

type ackRecorder struct {
	acks, naks int
}

func (r *ackRecorder) raw(subject, data string) ingestion.RawEvent {
	return ingestion.RawEvent{
		Subject:   subject,
		Data:      []byte(data),
		Timestamp: time.Now(),
		AckFunc:   func() { r.acks++ },
		NakFunc:   func() { r.naks++ },
	}
}

func newDispatcher(t *testing.T) (*ingestion.Dispatcher, *core.Engine, *observability.Metrics) {
	t.Helper()
	store := storetest.SetupSQLiteStore(t)
	metrics := observability.NewMetricsWith(prometheus.NewRegistry())
	engine := core.NewEngine(store, core.Config{
		Location: time.UTC,
		Metrics:  metrics,
		Logger:   zerolog.Nop(),
	})
	_, err := engine.CreateOwner(context.Background(), "alice", ledger.CurrencyUSD)
	require.NoError(t, err)
	return ingestion.NewDispatcher(engine, metrics, zerolog.Nop()), engine, metrics
}

func TestDispatcher_AppliesAndAcks(t *testing.T) {
	d, engine, metrics := newDispatcher(t)
	ctx := context.Background()
	rec := &ackRecorder{}

	outcome := d.Handle(ctx, rec.raw("portfolio.ops.deposit",
		`{"external_id":"d1","owner":"alice","timestamp":1704186000000,"amount":"1000","fees":"0"}`))
	assert.Equal(t, ingestion.OutcomeApplied, outcome)

	outcome = d.Handle(ctx, rec.raw("portfolio.ops.buy",
		`{"external_id":"b1","owner":"alice","timestamp":1704189600000,"symbol":"AAPL","quantity":"2","price":"100","fees":"1"}`))
	assert.Equal(t, ingestion.OutcomeApplied, outcome)

	outcome = d.Handle(ctx, rec.raw("portfolio.ops.price",
		`{"symbol":"AAPL","timestamp":1704214800000,"open":"100","high":"110","low":"99","close":"105","adjusted_close":"105","volume":10}`))
	assert.Equal(t, ingestion.OutcomeApplied, outcome)

	assert.Equal(t, 3, rec.acks)
	assert.Equal(t, 0, rec.naks)

	account, err := engine.Account(ctx, "alice")
	require.NoError(t, err)
	cash, err := account.CurrentCash(ctx, 0)
	require.NoError(t, err)
	assert.True(t, cash.Equal(decimal.NewFromInt(799)), "cash: %s", cash)

	pos, err := account.CurrentPosition(ctx, "AAPL", 0)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.True(t, pos.MarketPrice.Equal(decimal.NewFromInt(105)))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.IngestMessages.WithLabelValues("buy", ingestion.OutcomeApplied)))
}

func TestDispatcher_DomainRejectionsAreAcked(t *testing.T) {
	d, _, metrics := newDispatcher(t)
	ctx := context.Background()
	rec := &ackRecorder{}

	deposit := `{"external_id":"d1","owner":"alice","timestamp":1704186000000,"amount":"10"}`
	require.Equal(t, ingestion.OutcomeApplied, d.Handle(ctx, rec.raw("portfolio.ops.deposit", deposit)))

	assert.Equal(t, ingestion.OutcomeDuplicate, d.Handle(ctx, rec.raw("portfolio.ops.deposit", deposit)))
	assert.Equal(t, ingestion.OutcomeRejected, d.Handle(ctx, rec.raw("portfolio.ops.withdraw",
		`{"external_id":"w1","owner":"alice","timestamp":1704189600000,"amount":"50"}`)), "insufficient funds")
	assert.Equal(t, ingestion.OutcomeRejected, d.Handle(ctx, rec.raw("portfolio.ops.deposit",
		`{"external_id":"d2","owner":"nobody","timestamp":1704189600000,"amount":"10"}`)), "unknown owner")
	assert.Equal(t, ingestion.OutcomeRejected, d.Handle(ctx, rec.raw("portfolio.ops.sell",
		`{"external_id":"s1","owner":"alice","timestamp":1704189600000,"symbol":"AAPL","quantity":"1","price":"1"}`)), "no position")
	assert.Equal(t, ingestion.OutcomeRejected, d.Handle(ctx, rec.raw("portfolio.ops.deposit", `{garbage`)))
	assert.Equal(t, ingestion.OutcomeRejected, d.Handle(ctx, rec.raw("portfolio.ops.unknown", `{}`)))

	assert.Equal(t, 7, rec.acks)
	assert.Equal(t, 0, rec.naks)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.IngestMessages.WithLabelValues("deposit", ingestion.OutcomeDuplicate)))
}

func TestDispatcher_InfrastructureErrorsAreNaked(t *testing.T) {
	d, _, _ := newDispatcher(t)
	rec := &ackRecorder{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := d.Handle(ctx, rec.raw("portfolio.ops.deposit",
		`{"external_id":"d1","owner":"alice","timestamp":1704186000000,"amount":"10"}`))
	assert.Equal(t, ingestion.OutcomeRetry, outcome)
	assert.Equal(t, 0, rec.acks)
	assert.Equal(t, 1, rec.naks)
}

func TestDispatcher_RunDrainsChannel(t *testing.T) {
	d, engine, _ := newDispatcher(t)
	rec := &ackRecorder{}

	in := make(chan ingestion.RawEvent, 2)
	in <- rec.raw("portfolio.ops.deposit", `{"external_id":"d1","owner":"alice","timestamp":1704186000000,"amount":"10"}`)
	in <- rec.raw("portfolio.ops.deposit", `{"external_id":"d2","owner":"alice","timestamp":1704189600000,"amount":"5"}`)
	close(in)

	require.NoError(t, d.Run(context.Background(), in))

	account, err := engine.Account(context.Background(), "alice")
	require.NoError(t, err)
	cash, err := account.CurrentCash(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, cash.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, 2, rec.acks)
}

// --- Publisher ---

type fakeStream struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	fail     bool
}

func (f *fakeStream) Publish(_ context.Context, subject string, payload []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("nats unavailable")
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, payload)
	return &jetstream.PubAck{Stream: ingestion.LedgerEventsStream}, nil
}

func TestPublisher_Subject(t *testing.T) {
	env, err := event.NewEnvelope(event.EventTypeBuy, "b1", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "portfolio.ledger.events.buy.42", ingestion.Subject(env.WithOwner(42, "alice")))

	price, err := event.NewEnvelope(event.EventTypePrice, "", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "portfolio.ledger.events.price.global", ingestion.Subject(price))
}

func TestPublisher_ForwardsEnvelopes(t *testing.T) {
	stream := &fakeStream{}
	metrics := observability.NewMetricsWith(prometheus.NewRegistry())
	in := make(chan *event.EventEnvelope, 4)
	pub := ingestion.NewOutboundPublisher(stream, in, metrics, zerolog.Nop())

	env, err := event.NewEnvelope(event.EventTypeDeposit, "d1", 1704186000000, map[string]string{"amount": "10"})
	require.NoError(t, err)
	in <- env.WithOwner(7, "alice")
	close(in)

	require.NoError(t, pub.Run(context.Background()))

	require.Len(t, stream.subjects, 1)
	assert.Equal(t, "portfolio.ledger.events.deposit.7", stream.subjects[0])

	var decoded event.EventEnvelope
	require.NoError(t, json.Unmarshal(stream.payloads[0], &decoded))
	assert.Equal(t, env.EventID, decoded.EventID)
	assert.Equal(t, event.EventTypeDeposit, decoded.EventType)
	assert.Equal(t, "alice", decoded.Owner)
	assert.JSONEq(t, `{"amount":"10"}`, string(decoded.Payload))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PublishedEvents.WithLabelValues("deposit")))
}

func TestPublisher_FailuresAreCountedNotFatal(t *testing.T) {
	stream := &fakeStream{fail: true}
	metrics := observability.NewMetricsWith(prometheus.NewRegistry())
	in := make(chan *event.EventEnvelope, 1)
	pub := ingestion.NewOutboundPublisher(stream, in, metrics, zerolog.Nop())

	env, err := event.NewEnvelope(event.EventTypeWithdrawal, "w1", 1, nil)
	require.NoError(t, err)
	in <- env
	close(in)

	require.NoError(t, pub.Run(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PublishErrors))
}
