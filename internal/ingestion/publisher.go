package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"PortfolioLedger/internal/event"
	"PortfolioLedger/internal/observability"
)

const (
	// LedgerEventsStream holds committed ledger events for downstream consumers.
	LedgerEventsStream = "PORTFOLIO_LEDGER_EVENTS"
	// LedgerEventsPrefix is followed by {event_type}.{owner_id}.
	LedgerEventsPrefix = "portfolio.ledger.events"
)

// StreamPublisher is the subset of jetstream.JetStream the publisher needs.
type StreamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// OutboundPublisher publishes committed ledger events to NATS. The engine
// only enqueues envelopes after commit, so everything seen here is durable.
type OutboundPublisher struct {
	js        StreamPublisher
	inputChan <-chan *event.EventEnvelope
	metrics   *observability.Metrics
	log       zerolog.Logger
}

func NewOutboundPublisher(js StreamPublisher, inputChan <-chan *event.EventEnvelope, metrics *observability.Metrics, logger zerolog.Logger) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
		metrics:   metrics,
		log:       logger.With().Str("component", "publisher").Logger(),
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case env, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, env); err != nil {
				// Non-fatal: the ledger tables remain the source of truth
				op.log.Warn().Err(err).Str("event_id", env.EventID).Str("event_type", env.EventType.String()).Msg("outbound publish failed")
				if op.metrics != nil {
					op.metrics.PublishErrors.Inc()
				}
				continue
			}
			if op.metrics != nil {
				op.metrics.PublishedEvents.WithLabelValues(env.EventType.String()).Inc()
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, env *event.EventEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// Event id doubles as the JetStream dedup id
	_, err = op.js.Publish(ctx, Subject(env), data, jetstream.WithMsgID(env.EventID))
	return err
}

// Subject builds portfolio.ledger.events.{event_type}.{owner_id}; events
// without an owner (prices) use "global".
func Subject(env *event.EventEnvelope) string {
	owner := "global"
	if env.OwnerID != 0 {
		owner = strconv.FormatInt(env.OwnerID, 10)
	}
	return fmt.Sprintf("%s.%s.%s", LedgerEventsPrefix, env.EventType, owner)
}

// EnsureOutboundStream creates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       LedgerEventsStream,
		Subjects:   []string{LedgerEventsPrefix + ".>"},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     72 * time.Hour,
		Duplicates: 2 * time.Minute,
		Replicas:   1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	return nil
}
