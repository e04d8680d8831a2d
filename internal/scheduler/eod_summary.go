package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"PortfolioLedger/internal/core"
	"PortfolioLedger/internal/event"
)

// EODSummaryJob publishes every owner's end-of-day valuation for the
// previous calendar day as an eod_summary ledger event.
type EODSummaryJob struct {
	engine *core.Engine
	log    zerolog.Logger
}

func NewEODSummaryJob(engine *core.Engine, log zerolog.Logger) *EODSummaryJob {
	return &EODSummaryJob{
		engine: engine,
		log:    log.With().Str("job", "eod_summary").Logger(),
	}
}

func (j *EODSummaryJob) Name() string {
	return "eod_summary"
}

// Run summarizes yesterday in the ledger's time zone.
func (j *EODSummaryJob) Run(ctx context.Context) error {
	_, err := j.RunFor(ctx, j.engine.Reader().Today().AddDate(0, 0, -1))
	return err
}

// RunFor publishes one summary per owner for day and returns how many were
// handed to the publisher. A failing owner does not stop the others.
func (j *EODSummaryJob) RunFor(ctx context.Context, day time.Time) (int, error) {
	reader := j.engine.Reader()
	owners, err := reader.Owners(ctx)
	if err != nil {
		return 0, fmt.Errorf("list owners: %w", err)
	}

	var (
		published int
		errs      []error
	)
	for _, owner := range owners {
		summary, err := reader.GetEODSummary(ctx, owner, day)
		if err != nil {
			errs = append(errs, fmt.Errorf("summary %s: %w", owner.Name, err))
			continue
		}

		key := fmt.Sprintf("eod:%s:%s", owner.Name, summary.Day)
		env, err := event.NewEnvelope(event.EventTypeEODSummary, key, summary.AsOf, summary)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if j.engine.Publish(env.WithOwner(owner.ID, owner.Name)) {
			published++
		}
	}

	j.log.Info().
		Str("day", day.Format(time.DateOnly)).
		Int("owners", len(owners)).
		Int("published", published).
		Msg("end-of-day summaries published")
	return published, errors.Join(errs...)
}
