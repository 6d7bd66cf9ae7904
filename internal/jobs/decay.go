package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// DecayStore is the slice of the repository the sweeper needs.
type DecayStore interface {
	ExpiredEvents(ctx context.Context, cutoff time.Time, limit int) ([]model.PointEvent, error)
	CompensateExpired(ctx context.Context, originals []model.PointEvent, at time.Time) ([]string, error)
	RecomputeLedger(ctx context.Context, ledgerID string) (model.Ledger, error)
}

// DecaySweeper expires stale events on a rolling window. Each batch commits
// on its own, so an interrupted sweep leaves nothing half-applied: events
// not yet compensated are simply found again by the next run.
type DecaySweeper struct {
	store     DecayStore
	batchSize int
	now       func() time.Time
	log       logger.Logger
}

// DecayOption applies a configuration option to the DecaySweeper.
type DecayOption func(*DecaySweeper)

// WithDecayBatchSize bounds how many events one batch compensates.
func WithDecayBatchSize(n int) DecayOption {
	return func(d *DecaySweeper) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

// WithDecayClock overrides the time source (tests).
func WithDecayClock(now func() time.Time) DecayOption {
	return func(d *DecaySweeper) {
		if now != nil {
			d.now = now
		}
	}
}

// WithDecayLogger sets a custom logger.
func WithDecayLogger(log logger.Logger) DecayOption {
	return func(d *DecaySweeper) {
		if log != nil {
			d.log = log
		}
	}
}

// NewDecaySweeper creates a sweeper over the given store.
func NewDecaySweeper(store DecayStore, opts ...DecayOption) *DecaySweeper {
	d := &DecaySweeper{
		store:     store,
		batchSize: 500,
		now:       time.Now,
		log:       logger.Get().Named("decay"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Sweep drains all currently expired events in bounded batches, then
// recomputes every touched ledger from scratch. Running it again with no
// new expirations is a no-op.
func (d *DecaySweeper) Sweep(ctx context.Context) error {
	cutoff := d.now().UTC()
	touched := make(map[string]struct{})
	batches := 0

	for {
		batch, err := d.store.ExpiredEvents(ctx, cutoff, d.batchSize)
		if err != nil {
			return fmt.Errorf("fetch expired batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		ledgerIDs, err := d.store.CompensateExpired(ctx, batch, cutoff)
		if err != nil {
			// Committed batches stay committed; the rest is re-discovered
			// on the next run because originals keep expired = 0.
			return fmt.Errorf("compensate batch: %w", err)
		}
		metrics.RecordDecayCompensations(len(batch))
		batches++
		for _, id := range ledgerIDs {
			touched[id] = struct{}{}
		}
	}

	if len(touched) == 0 {
		d.log.Debug(ctx, "nothing to decay")
		return nil
	}

	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		led, err := d.store.RecomputeLedger(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("recompute ledger %s: %w", id, err))
			continue
		}
		metrics.RecordLedgerRecomputed()
		d.log.Debug(ctx, "ledger recomputed",
			logger.String("ledger", led.ID),
			logger.Int64("points", led.TotalPoints),
			logger.String("tier", led.Tier),
		)
	}

	d.log.Info(ctx, "decay sweep finished",
		logger.Int("batches", batches),
		logger.Int("ledgers", len(ids)),
		logger.Int("failures", len(errs)),
	)
	return errors.Join(errs...)
}
