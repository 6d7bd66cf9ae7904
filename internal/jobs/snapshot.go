package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// SnapshotStore is the slice of the repository the recorder needs.
type SnapshotStore interface {
	Races(ctx context.Context) ([]model.Race, error)
	RaceLedgers(ctx context.Context, raceID string, limit, offset int) ([]model.Ledger, error)
	UpsertSnapshot(ctx context.Context, snap model.PointSnapshot) error
}

// SnapshotRecorder persists one dated (points, tier, rank) row per ledger
// per run. Ranks are dense and 1-based in descending point order; re-running
// on the same date overwrites instead of duplicating.
type SnapshotRecorder struct {
	store    SnapshotStore
	pageSize int
	now      func() time.Time
	log      logger.Logger
}

// SnapshotOption applies a configuration option to the SnapshotRecorder.
type SnapshotOption func(*SnapshotRecorder)

// WithSnapshotPageSize bounds ledgers fetched per store round-trip.
func WithSnapshotPageSize(n int) SnapshotOption {
	return func(s *SnapshotRecorder) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithSnapshotClock overrides the time source (tests).
func WithSnapshotClock(now func() time.Time) SnapshotOption {
	return func(s *SnapshotRecorder) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSnapshotLogger sets a custom logger.
func WithSnapshotLogger(log logger.Logger) SnapshotOption {
	return func(s *SnapshotRecorder) {
		if log != nil {
			s.log = log
		}
	}
}

// NewSnapshotRecorder creates a recorder over the given store.
func NewSnapshotRecorder(store SnapshotStore, opts ...SnapshotOption) *SnapshotRecorder {
	s := &SnapshotRecorder{
		store:    store,
		pageSize: 200,
		now:      time.Now,
		log:      logger.Get().Named("snapshot"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record snapshots every ledger of every race for today's UTC date. A
// failing race is logged and skipped; the others still get their rows.
func (s *SnapshotRecorder) Record(ctx context.Context) error {
	date := model.SnapshotDate(s.now())

	races, err := s.store.Races(ctx)
	if err != nil {
		return fmt.Errorf("list races: %w", err)
	}

	written := 0
	var errs []error
	for _, race := range races {
		n, err := s.recordRace(ctx, race.ID, date)
		written += n
		if err != nil {
			errs = append(errs, fmt.Errorf("race %s: %w", race.ID, err))
			s.log.Error(ctx, "snapshot race failed", logger.String("race", race.ID), logger.Error(err))
		}
	}

	metrics.RecordSnapshotsWritten(written)
	s.log.Info(ctx, "snapshot run finished",
		logger.String("date", date),
		logger.Int("races", len(races)),
		logger.Int("snapshots", written),
	)
	return errors.Join(errs...)
}

func (s *SnapshotRecorder) recordRace(ctx context.Context, raceID, date string) (int, error) {
	rank := 0
	offset := 0
	written := 0
	for {
		page, err := s.store.RaceLedgers(ctx, raceID, s.pageSize, offset)
		if err != nil {
			return written, fmt.Errorf("page ledgers at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			return written, nil
		}
		for _, led := range page {
			rank++
			snap := model.PointSnapshot{
				LedgerID: led.ID,
				Date:     date,
				Points:   led.TotalPoints,
				Tier:     led.Tier,
				Rank:     rank,
			}
			if err := s.store.UpsertSnapshot(ctx, snap); err != nil {
				return written, fmt.Errorf("upsert ledger %s: %w", led.ID, err)
			}
			written++
		}
		if len(page) < s.pageSize {
			return written, nil
		}
		offset += s.pageSize
	}
}
