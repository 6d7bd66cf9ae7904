// Package repository defines the durable points store interface and errors.
package repository

import (
	"context"
	"time"

	"github.com/okian/tally/internal/domain/model"
)

// Store provides durable access to ledgers, point events, snapshots, races,
// competitors, ballots and content tags. All write paths that touch a
// ledger and its events do so inside a single transaction so a half-applied
// state is never observable.
type Store interface {
	// Ledger returns one ledger by id. Returns ErrNotFound if missing.
	Ledger(ctx context.Context, id string) (model.Ledger, error)

	// FindLedger returns the ledger for (entity, race).
	// Returns ErrNotFound if the entity has never scored in the race.
	FindLedger(ctx context.Context, entity model.EntityRef, raceID string) (model.Ledger, error)

	// ApplyEvent atomically appends ev to the (entity, race) ledger,
	// creating the ledger if needed, adds ev.Points to the running total
	// and re-derives the tier. Returns the updated ledger.
	ApplyEvent(ctx context.Context, entity model.EntityRef, raceID string, ev model.PointEvent) (model.Ledger, error)

	// RecomputeLedger rewrites the ledger total as the exact sum of its
	// non-expired events and re-derives the tier.
	RecomputeLedger(ctx context.Context, ledgerID string) (model.Ledger, error)

	// LedgersByEntity returns every ledger the entity holds across races.
	LedgersByEntity(ctx context.Context, entity model.EntityRef) ([]model.Ledger, error)

	// RaceLedgers returns one page of a race's ledgers ordered by total
	// points descending, ledger id ascending.
	RaceLedgers(ctx context.Context, raceID string, limit, offset int) ([]model.Ledger, error)

	// LedgerCount returns the number of ledgers tracked.
	LedgerCount(ctx context.Context) (int, error)

	// ExpiredEvents returns up to limit events with an expiry before
	// cutoff, not yet flagged expired and not DECAY compensations.
	ExpiredEvents(ctx context.Context, cutoff time.Time, limit int) ([]model.PointEvent, error)

	// CompensateExpired atomically writes one non-expiring DECAY event per
	// original, carrying the negated points, and flags the originals
	// expired. Returns the distinct ledger ids touched.
	CompensateExpired(ctx context.Context, originals []model.PointEvent, at time.Time) ([]string, error)

	// EventHistory returns one page of a ledger's events within the time
	// window, newest first.
	EventHistory(ctx context.Context, ledgerID string, since, until time.Time, limit, offset int) ([]model.PointEvent, error)

	// UpsertSnapshot writes the snapshot, overwriting any existing row for
	// the same (ledger, date).
	UpsertSnapshot(ctx context.Context, snap model.PointSnapshot) error

	// SnapshotSeries returns one page of a ledger's snapshots with dates in
	// [sinceDate, untilDate], oldest first.
	SnapshotSeries(ctx context.Context, ledgerID, sinceDate, untilDate string, limit, offset int) ([]model.PointSnapshot, error)

	// CreateRace registers a race. Returns ErrAlreadyExists on id reuse.
	CreateRace(ctx context.Context, race model.Race) error

	// Race returns one race by id. Returns ErrNotFound if missing.
	Race(ctx context.Context, id string) (model.Race, error)

	// Races returns all races ordered by id.
	Races(ctx context.Context) ([]model.Race, error)

	// DueBallotRaces returns ballot races whose closing time has passed and
	// whose ballots have not been tabulated yet.
	DueBallotRaces(ctx context.Context, cutoff time.Time) ([]model.Race, error)

	// MarkBallotProcessed flips the processed flag exactly once. Returns
	// false when the race was already processed (or unknown).
	MarkBallotProcessed(ctx context.Context, raceID string) (bool, error)

	// AddCompetitor registers an entity as a competitor in a race.
	AddCompetitor(ctx context.Context, raceID string, entity model.EntityRef) error

	// IsCompetitor reports whether the entity competes in the race.
	IsCompetitor(ctx context.Context, raceID string, entity model.EntityRef) (bool, error)

	// SubmitBallot stores one voter's ranking for a ballot race.
	SubmitBallot(ctx context.Context, b model.Ballot) error

	// Ballots returns all ballots submitted for a race.
	Ballots(ctx context.Context, raceID string) ([]model.Ballot, error)

	// TagContent associates content with a race for engagement fan-out.
	TagContent(ctx context.Context, contentID, raceID string) error

	// ContentRaces returns the races a piece of content is tagged for.
	ContentRaces(ctx context.Context, contentID string) ([]string, error)

	// SetContentParty marks content as belonging to a party.
	SetContentParty(ctx context.Context, contentID, partyID string) error

	// ContentParty returns the owning party id, or ErrNotFound when the
	// content is not party-owned.
	ContentParty(ctx context.Context, contentID string) (string, error)

	// Close releases the underlying database handle.
	Close() error
}
