package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/tally/internal/domain/ballot"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// BallotStore is the slice of the repository the tabulator needs.
type BallotStore interface {
	DueBallotRaces(ctx context.Context, cutoff time.Time) ([]model.Race, error)
	Ballots(ctx context.Context, raceID string) ([]model.Ballot, error)
	MarkBallotProcessed(ctx context.Context, raceID string) (bool, error)
}

// Recorder realizes tabulated awards as regular point events.
type Recorder interface {
	RecordPointEvent(ctx context.Context, target model.EntityRef, raceID string, action model.Action, points int64, sourceUserID, sourceContentID string) error
}

// BallotTabulator settles ballot races whose voting window has closed.
// Awards land as BALLOT events through the recorder, and a race is marked
// processed only after every award was recorded, so a crashed run retries
// from scratch rather than settling twice.
type BallotTabulator struct {
	store    BallotStore
	recorder Recorder
	tab      *ballot.Tabulator
	now      func() time.Time
	log      logger.Logger
}

// BallotJobOption applies a configuration option to the BallotTabulator.
type BallotJobOption func(*BallotTabulator)

// WithBallotClock overrides the time source (tests).
func WithBallotClock(now func() time.Time) BallotJobOption {
	return func(b *BallotTabulator) {
		if now != nil {
			b.now = now
		}
	}
}

// WithBallotLogger sets a custom logger.
func WithBallotLogger(log logger.Logger) BallotJobOption {
	return func(b *BallotTabulator) {
		if log != nil {
			b.log = log
		}
	}
}

// WithTabulator swaps the weight table used to score rankings.
func WithTabulator(tab *ballot.Tabulator) BallotJobOption {
	return func(b *BallotTabulator) {
		if tab != nil {
			b.tab = tab
		}
	}
}

// NewBallotTabulator creates a tabulator over the given store and recorder.
func NewBallotTabulator(store BallotStore, recorder Recorder, opts ...BallotJobOption) *BallotTabulator {
	b := &BallotTabulator{
		store:    store,
		recorder: recorder,
		tab:      ballot.New(),
		now:      time.Now,
		log:      logger.Get().Named("ballot"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Tabulate settles every due race independently. A race that fails stays
// unprocessed and is retried on the next run; the others still settle.
func (b *BallotTabulator) Tabulate(ctx context.Context) error {
	cutoff := b.now().UTC()

	races, err := b.store.DueBallotRaces(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list due races: %w", err)
	}
	if len(races) == 0 {
		b.log.Debug(ctx, "no ballot races due")
		return nil
	}

	var errs []error
	for _, race := range races {
		if err := b.settle(ctx, race); err != nil {
			errs = append(errs, fmt.Errorf("race %s: %w", race.ID, err))
			b.log.Error(ctx, "ballot race failed", logger.String("race", race.ID), logger.Error(err))
		}
	}
	return errors.Join(errs...)
}

func (b *BallotTabulator) settle(ctx context.Context, race model.Race) error {
	ballots, err := b.store.Ballots(ctx, race.ID)
	if err != nil {
		return fmt.Errorf("load ballots: %w", err)
	}

	awards := b.tab.Tabulate(ballots)
	for _, award := range awards {
		err := b.recorder.RecordPointEvent(ctx, award.Entity, race.ID, model.ActionBallot, award.Points, "", "")
		if err != nil {
			return fmt.Errorf("award %s/%s: %w", award.Entity.Kind, award.Entity.ID, err)
		}
	}

	marked, err := b.store.MarkBallotProcessed(ctx, race.ID)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	if !marked {
		// Another run won the race between DueBallotRaces and here.
		b.log.Warn(ctx, "race already settled concurrently", logger.String("race", race.ID))
		return nil
	}

	metrics.RecordBallotRaceProcessed()
	metrics.RecordBallotAwards(len(awards))
	b.log.Info(ctx, "ballot race settled",
		logger.String("race", race.ID),
		logger.Int("ballots", len(ballots)),
		logger.Int("awards", len(awards)),
	)
	return nil
}
