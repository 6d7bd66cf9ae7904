// Package service provides the core points engine that implements the
// dependencies required by the HTTP API and drives the scheduled jobs.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/tally/internal/adapters/notify"
	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/ballot"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/jobs"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// Standing is one leaderboard row: a ledger plus its 1-based rank.
type Standing struct {
	Rank   int          `json:"rank"`
	Ledger model.Ledger `json:"ledger"`
}

// TargetResult reports the outcome of one engagement fan-out target.
type TargetResult struct {
	Entity model.EntityRef
	RaceID string
	Ledger *model.Ledger
	Err    error
}

// Service implements the points engine: the recorder used by engagement
// features and ballot settlement, the read queries behind the HTTP API,
// and the lifecycle of the decay, snapshot and ballot jobs.
type Service struct {
	mu sync.RWMutex

	// Core components
	store repository.Store
	sink  notify.Sink

	// Configuration
	decayWindow      time.Duration
	actionPoints     map[string]int64
	ballotWeights    []int64
	decayInterval    time.Duration
	snapshotInterval time.Duration
	ballotInterval   time.Duration
	decayBatchSize   int
	snapshotPageSize int
	maxPageLimit     int
	defaultRaceID    string
	partyRaceID      string
	now              func() time.Time

	// Jobs
	sweeper     *jobs.DecaySweeper
	snapshotter *jobs.SnapshotRecorder
	tabulator   *jobs.BallotTabulator
	runners     []*jobs.Runner

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSink sets the real-time fan-out sink for score changes.
func WithSink(sink notify.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDecayWindow sets how long an event counts before it decays.
func WithDecayWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.decayWindow = d
		}
	}
}

// WithActionPoints replaces the action-to-points table.
func WithActionPoints(points map[string]int64) Option {
	return func(s *Service) {
		if len(points) > 0 {
			s.actionPoints = points
		}
	}
}

// WithBallotWeights sets the points for 1st, 2nd, 3rd ranked choices.
func WithBallotWeights(weights []int64) Option {
	return func(s *Service) {
		if len(weights) > 0 {
			s.ballotWeights = weights
		}
	}
}

// WithJobIntervals sets how often the decay, snapshot and ballot jobs run.
func WithJobIntervals(decay, snapshot, ballot time.Duration) Option {
	return func(s *Service) {
		if decay > 0 {
			s.decayInterval = decay
		}
		if snapshot > 0 {
			s.snapshotInterval = snapshot
		}
		if ballot > 0 {
			s.ballotInterval = ballot
		}
	}
}

// WithDecayBatchSize bounds events compensated per sweep transaction.
func WithDecayBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.decayBatchSize = n
		}
	}
}

// WithSnapshotPageSize bounds ledgers ranked per snapshot round-trip.
func WithSnapshotPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.snapshotPageSize = n
		}
	}
}

// WithMaxPageLimit caps leaderboard and history page sizes.
func WithMaxPageLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPageLimit = n
		}
	}
}

// WithDefaultRaces sets the race receiving untagged engagement and the
// race party-owned content additionally scores into.
func WithDefaultRaces(defaultRaceID, partyRaceID string) Option {
	return func(s *Service) {
		if defaultRaceID != "" {
			s.defaultRaceID = defaultRaceID
		}
		if partyRaceID != "" {
			s.partyRaceID = partyRaceID
		}
	}
}

// New constructs a Service over the given store with default configuration.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:            store,
		decayWindow:      30 * 24 * time.Hour,
		actionPoints:     model.DefaultActionPoints(),
		ballotWeights:    []int64{8, 5, 3},
		decayInterval:    time.Hour,
		snapshotInterval: 24 * time.Hour,
		ballotInterval:   10 * time.Minute,
		decayBatchSize:   500,
		snapshotPageSize: 200,
		maxPageLimit:     100,
		defaultRaceID:    "global",
		partyRaceID:      "global-parties",
		now:              time.Now,
		logger:           logger.Get().Named("service"),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.sweeper = jobs.NewDecaySweeper(s.store,
		jobs.WithDecayBatchSize(s.decayBatchSize),
		jobs.WithDecayClock(s.now),
	)
	s.snapshotter = jobs.NewSnapshotRecorder(s.store,
		jobs.WithSnapshotPageSize(s.snapshotPageSize),
		jobs.WithSnapshotClock(s.now),
	)
	s.tabulator = jobs.NewBallotTabulator(s.store, recorderFunc(s.recordForBallot),
		jobs.WithBallotClock(s.now),
		jobs.WithTabulator(ballot.New(ballot.WithWeights(s.ballotWeights))),
	)

	return s
}

// recorderFunc adapts a method to the jobs.Recorder interface.
type recorderFunc func(ctx context.Context, target model.EntityRef, raceID string, action model.Action, points int64, sourceUserID, sourceContentID string) error

func (f recorderFunc) RecordPointEvent(ctx context.Context, target model.EntityRef, raceID string, action model.Action, points int64, sourceUserID, sourceContentID string) error {
	return f(ctx, target, raceID, action, points, sourceUserID, sourceContentID)
}

func (s *Service) recordForBallot(ctx context.Context, target model.EntityRef, raceID string, action model.Action, points int64, sourceUserID, sourceContentID string) error {
	_, err := s.RecordPointEvent(ctx, target, raceID, action, points, sourceUserID, sourceContentID)
	return err
}

// Start launches the scheduled jobs. Calling Start twice is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting points engine")

	s.runners = []*jobs.Runner{
		jobs.NewRunner("decay", s.decayInterval, s.sweeper.Sweep),
		jobs.NewRunner("snapshot", s.snapshotInterval, s.snapshotter.Record),
		jobs.NewRunner("ballot", s.ballotInterval, s.tabulator.Tabulate),
	}
	for _, r := range s.runners {
		r.Start(ctx)
	}

	s.started = true
	s.logger.Info(ctx, "points engine started",
		logger.Duration("decayInterval", s.decayInterval),
		logger.Duration("snapshotInterval", s.snapshotInterval),
		logger.Duration("ballotInterval", s.ballotInterval),
	)
	return nil
}

// Stop halts the scheduled jobs. In-flight runs finish their transactions.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping points engine")
	for _, r := range s.runners {
		r.Stop()
	}
	s.runners = nil
	s.started = false
	s.logger.Info(context.Background(), "points engine stopped")
}

// RecordPointEvent validates and records one point event against the
// (target, race) ledger. Self-actions and non-competitors are dropped
// silently so engagement callers need no special handling. Returns the
// updated ledger, or nil when the event was dropped.
func (s *Service) RecordPointEvent(ctx context.Context, target model.EntityRef, raceID string, action model.Action, points int64, sourceUserID, sourceContentID string) (*model.Ledger, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: kind=%q id=%q", ErrInvalidTarget, target.Kind, target.ID)
	}
	if raceID == "" {
		return nil, fmt.Errorf("%w: empty race id", ErrInvalidTarget)
	}
	if !s.knownAction(action) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	if target.Kind == model.EntityUser && sourceUserID != "" && sourceUserID == target.ID {
		metrics.RecordEventSkipped("self_action")
		s.logger.Debug(ctx, "self-action dropped",
			logger.String("user", target.ID),
			logger.String("action", string(action)),
		)
		return nil, nil
	}

	ok, err := s.store.IsCompetitor(ctx, raceID, target)
	if err != nil {
		return nil, fmt.Errorf("check competitor: %w", err)
	}
	if !ok {
		metrics.RecordEventSkipped("not_competitor")
		s.logger.Debug(ctx, "non-competitor dropped",
			logger.String("kind", string(target.Kind)),
			logger.String("id", target.ID),
			logger.String("race", raceID),
		)
		return nil, nil
	}

	ev := model.PointEvent{
		Action:          action,
		Points:          points,
		SourceUserID:    sourceUserID,
		SourceContentID: sourceContentID,
	}
	if action != model.ActionDecay {
		expires := s.now().UTC().Add(s.decayWindow)
		ev.ExpiresAt = &expires
	}

	led, err := s.store.ApplyEvent(ctx, target, raceID, ev)
	if err != nil {
		return nil, fmt.Errorf("apply event: %w", err)
	}
	metrics.RecordEventRecorded()

	s.publishChange(ctx, raceID, target, led)
	return &led, nil
}

func (s *Service) knownAction(action model.Action) bool {
	if action == model.ActionDecay || action == model.ActionBallot {
		return true
	}
	_, ok := s.actionPoints[string(action)]
	return ok
}

// publishChange is best effort: a sink failure is logged and counted but
// never fails the recording that already committed.
func (s *Service) publishChange(ctx context.Context, raceID string, target model.EntityRef, led model.Ledger) {
	if s.sink == nil {
		return
	}
	change := model.ScoreChange{
		RaceID: raceID,
		Entity: target,
		Points: led.TotalPoints,
		Tier:   led.Tier,
	}
	if err := s.sink.PublishScoreChange(ctx, change); err != nil {
		metrics.RecordPublishFailure()
		s.logger.Warn(ctx, "score change publish failed",
			logger.String("race", raceID),
			logger.Error(err),
		)
	}
}

// RecordReelEngagement fans one engagement action out to every target it
// scores for: the creator in each race the content is tagged for (or the
// default race when untagged), plus the owning party's global-party
// ledger when the content is party-owned. Per-target failures are
// reported in the results, never aborting the other targets.
func (s *Service) RecordReelEngagement(ctx context.Context, contentID, creatorUserID, actorUserID string, action model.Action) ([]TargetResult, error) {
	if contentID == "" || creatorUserID == "" {
		return nil, fmt.Errorf("%w: content and creator are required", ErrInvalidTarget)
	}
	points, ok := s.actionPoints[string(action)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	raceIDs, err := s.store.ContentRaces(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("content races: %w", err)
	}
	if len(raceIDs) == 0 {
		raceIDs = []string{s.defaultRaceID}
	}

	creator := model.EntityRef{Kind: model.EntityUser, ID: creatorUserID}
	var results []TargetResult
	for _, raceID := range raceIDs {
		results = append(results, s.fanOut(ctx, creator, raceID, action, points, actorUserID, contentID))
	}

	partyID, err := s.store.ContentParty(ctx, contentID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		// Not party-owned.
	case err != nil:
		return results, fmt.Errorf("content party: %w", err)
	default:
		party := model.EntityRef{Kind: model.EntityParty, ID: partyID}
		results = append(results, s.fanOut(ctx, party, s.partyRaceID, action, points, actorUserID, contentID))
	}

	return results, nil
}

func (s *Service) fanOut(ctx context.Context, target model.EntityRef, raceID string, action model.Action, points int64, actorUserID, contentID string) TargetResult {
	led, err := s.RecordPointEvent(ctx, target, raceID, action, points, actorUserID, contentID)
	switch {
	case err != nil:
		metrics.RecordFanoutTarget("error")
	case led == nil:
		metrics.RecordFanoutTarget("skipped")
	default:
		metrics.RecordFanoutTarget("recorded")
	}
	return TargetResult{Entity: target, RaceID: raceID, Ledger: led, Err: err}
}

// Summary returns every ledger the entity holds across races.
func (s *Service) Summary(ctx context.Context, entity model.EntityRef) ([]model.Ledger, error) {
	if !entity.Valid() {
		return nil, fmt.Errorf("%w: kind=%q id=%q", ErrInvalidTarget, entity.Kind, entity.ID)
	}
	leds, err := s.store.LedgersByEntity(ctx, entity)
	if err != nil {
		return nil, fmt.Errorf("ledgers by entity: %w", err)
	}
	return leds, nil
}

// Leaderboard returns one page of a race's standings, ranked 1-based from
// the top of the race.
func (s *Service) Leaderboard(ctx context.Context, raceID string, limit, offset int) ([]Standing, error) {
	limit = s.clampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	leds, err := s.store.RaceLedgers(ctx, raceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("race ledgers: %w", err)
	}

	standings := make([]Standing, len(leds))
	for i, led := range leds {
		standings[i] = Standing{Rank: offset + i + 1, Ledger: led}
	}
	return standings, nil
}

// EventHistory returns one page of a ledger's events within the time
// window, newest first. Zero times mean an unbounded window.
func (s *Service) EventHistory(ctx context.Context, ledgerID string, since, until time.Time, limit, offset int) ([]model.PointEvent, error) {
	limit = s.clampLimit(limit)
	if offset < 0 {
		offset = 0
	}
	if until.IsZero() {
		until = s.now().UTC()
	}
	events, err := s.store.EventHistory(ctx, ledgerID, since, until, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("event history: %w", err)
	}
	return events, nil
}

// SnapshotSeries returns one page of a ledger's daily snapshots within the
// time window, oldest first. Zero times mean an unbounded window.
func (s *Service) SnapshotSeries(ctx context.Context, ledgerID string, since, until time.Time, limit, offset int) ([]model.PointSnapshot, error) {
	limit = s.clampLimit(limit)
	if offset < 0 {
		offset = 0
	}
	if until.IsZero() {
		until = s.now().UTC()
	}
	sinceDate := ""
	if !since.IsZero() {
		sinceDate = model.SnapshotDate(since)
	}
	snaps, err := s.store.SnapshotSeries(ctx, ledgerID, sinceDate, model.SnapshotDate(until), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("snapshot series: %w", err)
	}
	return snaps, nil
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 || limit > s.maxPageLimit {
		return s.maxPageLimit
	}
	return limit
}

// CreateRace registers a race in the registry.
func (s *Service) CreateRace(ctx context.Context, race model.Race) error {
	if race.ID == "" {
		return fmt.Errorf("%w: empty race id", ErrInvalidTarget)
	}
	if race.WinCondition != model.WinByPoints && race.WinCondition != model.WinByBallot {
		return fmt.Errorf("%w: win condition %q", ErrInvalidTarget, race.WinCondition)
	}
	if race.CreatedAt.IsZero() {
		race.CreatedAt = s.now().UTC()
	}
	if err := s.store.CreateRace(ctx, race); err != nil {
		return fmt.Errorf("create race: %w", err)
	}
	return nil
}

// Race returns one race by id.
func (s *Service) Race(ctx context.Context, id string) (model.Race, error) {
	race, err := s.store.Race(ctx, id)
	if err != nil {
		return model.Race{}, fmt.Errorf("race %s: %w", id, err)
	}
	return race, nil
}

// AddCompetitor registers an entity as a competitor in a race.
func (s *Service) AddCompetitor(ctx context.Context, raceID string, entity model.EntityRef) error {
	if !entity.Valid() {
		return fmt.Errorf("%w: kind=%q id=%q", ErrInvalidTarget, entity.Kind, entity.ID)
	}
	if err := s.store.AddCompetitor(ctx, raceID, entity); err != nil {
		return fmt.Errorf("add competitor: %w", err)
	}
	return nil
}

// SubmitBallot stores one voter's ranking for a ballot race that is still
// open for voting.
func (s *Service) SubmitBallot(ctx context.Context, b model.Ballot) error {
	if b.VoterID == "" {
		return fmt.Errorf("%w: empty voter id", ErrInvalidTarget)
	}
	if len(b.Ranking) == 0 {
		return ErrEmptyRanking
	}
	for _, ref := range b.Ranking {
		if !ref.Valid() {
			return fmt.Errorf("%w: kind=%q id=%q", ErrInvalidTarget, ref.Kind, ref.ID)
		}
	}

	race, err := s.store.Race(ctx, b.RaceID)
	if err != nil {
		return fmt.Errorf("race %s: %w", b.RaceID, err)
	}
	if race.WinCondition != model.WinByBallot {
		return fmt.Errorf("%w: race %s", ErrNotBallotRace, race.ID)
	}
	if race.BallotProcessed {
		return fmt.Errorf("%w: race %s already tabulated", ErrVotingClosed, race.ID)
	}
	if race.BallotClosesAt != nil && !race.BallotClosesAt.After(s.now().UTC()) {
		return fmt.Errorf("%w: race %s closed at %s", ErrVotingClosed, race.ID, race.BallotClosesAt.Format(time.RFC3339))
	}

	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now().UTC()
	}
	if err := s.store.SubmitBallot(ctx, b); err != nil {
		return fmt.Errorf("submit ballot: %w", err)
	}
	return nil
}

// TagContent associates content with a race for engagement fan-out.
func (s *Service) TagContent(ctx context.Context, contentID, raceID string) error {
	if contentID == "" || raceID == "" {
		return fmt.Errorf("%w: content and race are required", ErrInvalidTarget)
	}
	if err := s.store.TagContent(ctx, contentID, raceID); err != nil {
		return fmt.Errorf("tag content: %w", err)
	}
	return nil
}

// SetContentParty marks content as belonging to a party.
func (s *Service) SetContentParty(ctx context.Context, contentID, partyID string) error {
	if contentID == "" || partyID == "" {
		return fmt.Errorf("%w: content and party are required", ErrInvalidTarget)
	}
	if err := s.store.SetContentParty(ctx, contentID, partyID); err != nil {
		return fmt.Errorf("set content party: %w", err)
	}
	return nil
}

// SweepNow runs one decay sweep immediately, outside the schedule.
func (s *Service) SweepNow(ctx context.Context) error {
	return s.sweeper.Sweep(ctx)
}

// SnapshotNow records one snapshot pass immediately, outside the schedule.
func (s *Service) SnapshotNow(ctx context.Context) error {
	return s.snapshotter.Record(ctx)
}

// TabulateNow settles due ballot races immediately, outside the schedule.
func (s *Service) TabulateNow(ctx context.Context) error {
	return s.tabulator.Tabulate(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":         s.started,
		"decayWindowDays": int(s.decayWindow.Hours() / 24),
		"defaultRace":     s.defaultRaceID,
		"partyRace":       s.partyRaceID,
	}

	if count, err := s.store.LedgerCount(ctx); err == nil {
		stats["totalLedgers"] = count
		metrics.UpdateLedgerCount(count)
	}
	if races, err := s.store.Races(ctx); err == nil {
		stats["totalRaces"] = len(races)
	}

	return stats
}
