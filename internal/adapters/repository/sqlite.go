package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/okian/tally/internal/adapters/repository/migrations"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/tier"
)

// SQLiteStore persists points state in SQLite via database/sql.
type SQLiteStore struct {
	sqlDB *sql.DB

	busyTimeout  time.Duration
	maxOpenConns int
}

// compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

// Open opens a SQLite points store at path and applies embedded migrations.
// Use ":memory:" for an in-process store (tests).
func Open(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("open store: %w", ErrInvalidEntity)
	}

	s := &SQLiteStore{
		busyTimeout:  5 * time.Second,
		maxOpenConns: 0,
	}
	for _, opt := range opts {
		opt(s)
	}

	dsn := path + "?_pragma=journal_mode(WAL)" +
		fmt.Sprintf("&_pragma=busy_timeout(%d)", s.busyTimeout.Milliseconds()) +
		"&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// In-memory databases exist per connection; pin the pool to one.
	if strings.Contains(path, ":memory:") {
		sqlDB.SetMaxOpenConns(1)
	} else if s.maxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(s.maxOpenConns)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	s.sqlDB = sqlDB
	return s, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

const ledgerColumns = "id, entity_kind, entity_id, race_id, total_points, tier, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLedger(row rowScanner) (model.Ledger, error) {
	var led model.Ledger
	var createdAt int64
	err := row.Scan(
		&led.ID,
		&led.Entity.Kind,
		&led.Entity.ID,
		&led.RaceID,
		&led.TotalPoints,
		&led.Tier,
		&createdAt,
	)
	if err != nil {
		return model.Ledger{}, err
	}
	led.CreatedAt = fromMillis(createdAt)
	return led, nil
}

// Ledger returns one ledger by id.
func (s *SQLiteStore) Ledger(ctx context.Context, id string) (model.Ledger, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+ledgerColumns+" FROM ledgers WHERE id = ?", id)
	led, err := scanLedger(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Ledger{}, ErrNotFound
		}
		return model.Ledger{}, fmt.Errorf("get ledger: %w", err)
	}
	return led, nil
}

// FindLedger returns the ledger for (entity, race).
func (s *SQLiteStore) FindLedger(ctx context.Context, entity model.EntityRef, raceID string) (model.Ledger, error) {
	if !entity.Valid() {
		return model.Ledger{}, ErrInvalidEntity
	}
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+ledgerColumns+" FROM ledgers WHERE entity_kind = ? AND entity_id = ? AND race_id = ?",
		string(entity.Kind), entity.ID, raceID)
	led, err := scanLedger(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Ledger{}, ErrNotFound
		}
		return model.Ledger{}, fmt.Errorf("find ledger: %w", err)
	}
	return led, nil
}

// ApplyEvent appends one event and updates the paired ledger in a single
// transaction. Both commit together or neither does.
func (s *SQLiteStore) ApplyEvent(ctx context.Context, entity model.EntityRef, raceID string, ev model.PointEvent) (model.Ledger, error) {
	if !entity.Valid() || raceID == "" {
		return model.Ledger{}, ErrInvalidEntity
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return model.Ledger{}, fmt.Errorf("begin apply event: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	row := tx.QueryRowContext(ctx,
		"SELECT "+ledgerColumns+" FROM ledgers WHERE entity_kind = ? AND entity_id = ? AND race_id = ?",
		string(entity.Kind), entity.ID, raceID)
	led, err := scanLedger(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		led = model.Ledger{
			ID:        uuid.NewString(),
			Entity:    entity,
			RaceID:    raceID,
			Tier:      string(tier.ForPoints(0)),
			CreatedAt: createdAt,
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO ledgers ("+ledgerColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
			led.ID, string(entity.Kind), entity.ID, raceID, int64(0), led.Tier, toMillis(createdAt),
		); err != nil {
			return model.Ledger{}, fmt.Errorf("create ledger: %w", err)
		}
	case err != nil:
		return model.Ledger{}, fmt.Errorf("load ledger: %w", err)
	}

	eventID := ev.ID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	var expiresAt any
	if ev.ExpiresAt != nil {
		expiresAt = toMillis(*ev.ExpiresAt)
	}
	var sourceUser, sourceContent any
	if ev.SourceUserID != "" {
		sourceUser = ev.SourceUserID
	}
	if ev.SourceContentID != "" {
		sourceContent = ev.SourceContentID
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO point_events
		   (id, ledger_id, action, points, source_user_id, source_content_id, expires_at, expired, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		eventID, led.ID, string(ev.Action), ev.Points, sourceUser, sourceContent, expiresAt, toMillis(createdAt),
	); err != nil {
		if isUniqueViolation(err) {
			return model.Ledger{}, ErrAlreadyExists
		}
		return model.Ledger{}, fmt.Errorf("insert event: %w", err)
	}

	led.TotalPoints += ev.Points
	led.Tier = string(tier.ForPoints(led.TotalPoints))
	if _, err := tx.ExecContext(ctx,
		"UPDATE ledgers SET total_points = ?, tier = ? WHERE id = ?",
		led.TotalPoints, led.Tier, led.ID,
	); err != nil {
		return model.Ledger{}, fmt.Errorf("update ledger: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Ledger{}, fmt.Errorf("commit apply event: %w", err)
	}
	return led, nil
}

// RecomputeLedger rewrites the total from the event log, the correctness
// anchor after decay sweeps.
func (s *SQLiteStore) RecomputeLedger(ctx context.Context, ledgerID string) (model.Ledger, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return model.Ledger{}, fmt.Errorf("begin recompute: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, "SELECT "+ledgerColumns+" FROM ledgers WHERE id = ?", ledgerID)
	led, err := scanLedger(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Ledger{}, ErrNotFound
		}
		return model.Ledger{}, fmt.Errorf("load ledger: %w", err)
	}

	var total int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(points), 0) FROM point_events WHERE ledger_id = ? AND expired = 0",
		ledgerID,
	).Scan(&total); err != nil {
		return model.Ledger{}, fmt.Errorf("sum events: %w", err)
	}

	led.TotalPoints = total
	led.Tier = string(tier.ForPoints(total))
	if _, err := tx.ExecContext(ctx,
		"UPDATE ledgers SET total_points = ?, tier = ? WHERE id = ?",
		led.TotalPoints, led.Tier, led.ID,
	); err != nil {
		return model.Ledger{}, fmt.Errorf("update ledger: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Ledger{}, fmt.Errorf("commit recompute: %w", err)
	}
	return led, nil
}

// LedgersByEntity returns every ledger an entity holds, ordered by race id.
func (s *SQLiteStore) LedgersByEntity(ctx context.Context, entity model.EntityRef) ([]model.Ledger, error) {
	if !entity.Valid() {
		return nil, ErrInvalidEntity
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+ledgerColumns+" FROM ledgers WHERE entity_kind = ? AND entity_id = ? ORDER BY race_id ASC",
		string(entity.Kind), entity.ID)
	if err != nil {
		return nil, fmt.Errorf("list entity ledgers: %w", err)
	}
	defer rows.Close()
	return collectLedgers(rows)
}

// RaceLedgers returns one page of a race's ledgers ranked by points.
func (s *SQLiteStore) RaceLedgers(ctx context.Context, raceID string, limit, offset int) ([]model.Ledger, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+ledgerColumns+" FROM ledgers WHERE race_id = ? ORDER BY total_points DESC, id ASC LIMIT ? OFFSET ?",
		raceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list race ledgers: %w", err)
	}
	defer rows.Close()
	return collectLedgers(rows)
}

func collectLedgers(rows *sql.Rows) ([]model.Ledger, error) {
	var out []model.Ledger
	for rows.Next() {
		led, err := scanLedger(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger: %w", err)
		}
		out = append(out, led)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledgers: %w", err)
	}
	return out, nil
}

// LedgerCount returns the number of ledgers tracked.
func (s *SQLiteStore) LedgerCount(ctx context.Context) (int, error) {
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, "SELECT COUNT(1) FROM ledgers").Scan(&n); err != nil {
		return 0, fmt.Errorf("count ledgers: %w", err)
	}
	return n, nil
}

const eventColumns = "id, ledger_id, action, points, source_user_id, source_content_id, expires_at, expired, created_at"

func scanEvent(row rowScanner) (model.PointEvent, error) {
	var ev model.PointEvent
	var sourceUser, sourceContent sql.NullString
	var expiresAt sql.NullInt64
	var expired int
	var createdAt int64
	err := row.Scan(
		&ev.ID,
		&ev.LedgerID,
		&ev.Action,
		&ev.Points,
		&sourceUser,
		&sourceContent,
		&expiresAt,
		&expired,
		&createdAt,
	)
	if err != nil {
		return model.PointEvent{}, err
	}
	ev.SourceUserID = sourceUser.String
	ev.SourceContentID = sourceContent.String
	if expiresAt.Valid {
		t := fromMillis(expiresAt.Int64)
		ev.ExpiresAt = &t
	}
	ev.Expired = expired != 0
	ev.CreatedAt = fromMillis(createdAt)
	return ev, nil
}

// ExpiredEvents finds events past their expiry that still count toward
// totals. DECAY compensations are excluded by construction.
func (s *SQLiteStore) ExpiredEvents(ctx context.Context, cutoff time.Time, limit int) ([]model.PointEvent, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+eventColumns+` FROM point_events
		  WHERE expired = 0 AND action != ? AND expires_at IS NOT NULL AND expires_at < ?
		  ORDER BY expires_at ASC, id ASC LIMIT ?`,
		string(model.ActionDecay), toMillis(cutoff), limit)
	if err != nil {
		return nil, fmt.Errorf("list expired events: %w", err)
	}
	defer rows.Close()

	var out []model.PointEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// CompensateExpired writes the DECAY mirror of each original and flags the
// originals expired, all in one transaction.
func (s *SQLiteStore) CompensateExpired(ctx context.Context, originals []model.PointEvent, at time.Time) ([]string, error) {
	if len(originals) == 0 {
		return nil, nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin compensate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	touched := make(map[string]struct{}, len(originals))
	for _, orig := range originals {
		// Decay events never expire; a second decay pass over them is
		// impossible by construction.
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO point_events
			   (id, ledger_id, action, points, source_user_id, source_content_id, expires_at, expired, created_at)
			 VALUES (?, ?, ?, ?, NULL, NULL, NULL, 0, ?)`,
			uuid.NewString(), orig.LedgerID, string(model.ActionDecay), -orig.Points, toMillis(at),
		); err != nil {
			return nil, fmt.Errorf("insert decay event: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE point_events SET expired = 1 WHERE id = ?", orig.ID,
		); err != nil {
			return nil, fmt.Errorf("flag expired: %w", err)
		}
		touched[orig.LedgerID] = struct{}{}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit compensate: %w", err)
	}

	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	return ids, nil
}

// EventHistory returns one page of a ledger's events, newest first.
func (s *SQLiteStore) EventHistory(ctx context.Context, ledgerID string, since, until time.Time, limit, offset int) ([]model.PointEvent, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+eventColumns+` FROM point_events
		  WHERE ledger_id = ? AND created_at >= ? AND created_at <= ?
		  ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		ledgerID, toMillis(since), toMillis(until), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list event history: %w", err)
	}
	defer rows.Close()

	var out []model.PointEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// UpsertSnapshot writes or overwrites the (ledger, date) snapshot.
func (s *SQLiteStore) UpsertSnapshot(ctx context.Context, snap model.PointSnapshot) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO point_snapshots (ledger_id, snap_date, points, tier, rank)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (ledger_id, snap_date)
		 DO UPDATE SET points = excluded.points, tier = excluded.tier, rank = excluded.rank`,
		snap.LedgerID, snap.Date, snap.Points, snap.Tier, snap.Rank)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// SnapshotSeries returns snapshots in [sinceDate, untilDate], oldest first.
func (s *SQLiteStore) SnapshotSeries(ctx context.Context, ledgerID, sinceDate, untilDate string, limit, offset int) ([]model.PointSnapshot, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT ledger_id, snap_date, points, tier, rank FROM point_snapshots
		  WHERE ledger_id = ? AND snap_date >= ? AND snap_date <= ?
		  ORDER BY snap_date ASC LIMIT ? OFFSET ?`,
		ledgerID, sinceDate, untilDate, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.PointSnapshot
	for rows.Next() {
		var snap model.PointSnapshot
		if err := rows.Scan(&snap.LedgerID, &snap.Date, &snap.Points, &snap.Tier, &snap.Rank); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

const raceColumns = "id, name, win_condition, ballot_closes_at, ballot_processed, created_at"

func scanRace(row rowScanner) (model.Race, error) {
	var race model.Race
	var closesAt sql.NullInt64
	var processed int
	var createdAt int64
	err := row.Scan(&race.ID, &race.Name, &race.WinCondition, &closesAt, &processed, &createdAt)
	if err != nil {
		return model.Race{}, err
	}
	if closesAt.Valid {
		t := fromMillis(closesAt.Int64)
		race.BallotClosesAt = &t
	}
	race.BallotProcessed = processed != 0
	race.CreatedAt = fromMillis(createdAt)
	return race, nil
}

// CreateRace registers one race.
func (s *SQLiteStore) CreateRace(ctx context.Context, race model.Race) error {
	if race.ID == "" {
		return ErrInvalidEntity
	}
	createdAt := race.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var closesAt any
	if race.BallotClosesAt != nil {
		closesAt = toMillis(*race.BallotClosesAt)
	}
	processed := 0
	if race.BallotProcessed {
		processed = 1
	}
	_, err := s.sqlDB.ExecContext(ctx,
		"INSERT INTO races ("+raceColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		race.ID, race.Name, string(race.WinCondition), closesAt, processed, toMillis(createdAt))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create race: %w", err)
	}
	return nil
}

// Race returns one race by id.
func (s *SQLiteStore) Race(ctx context.Context, id string) (model.Race, error) {
	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+raceColumns+" FROM races WHERE id = ?", id)
	race, err := scanRace(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Race{}, ErrNotFound
		}
		return model.Race{}, fmt.Errorf("get race: %w", err)
	}
	return race, nil
}

// Races returns all races ordered by id.
func (s *SQLiteStore) Races(ctx context.Context) ([]model.Race, error) {
	rows, err := s.sqlDB.QueryContext(ctx, "SELECT "+raceColumns+" FROM races ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("list races: %w", err)
	}
	defer rows.Close()

	var out []model.Race
	for rows.Next() {
		race, err := scanRace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan race: %w", err)
		}
		out = append(out, race)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate races: %w", err)
	}
	return out, nil
}

// DueBallotRaces returns closed, untabulated ballot races.
func (s *SQLiteStore) DueBallotRaces(ctx context.Context, cutoff time.Time) ([]model.Race, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+raceColumns+` FROM races
		  WHERE win_condition = ? AND ballot_processed = 0
		    AND ballot_closes_at IS NOT NULL AND ballot_closes_at < ?
		  ORDER BY id ASC`,
		string(model.WinByBallot), toMillis(cutoff))
	if err != nil {
		return nil, fmt.Errorf("list due ballot races: %w", err)
	}
	defer rows.Close()

	var out []model.Race
	for rows.Next() {
		race, err := scanRace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan race: %w", err)
		}
		out = append(out, race)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate races: %w", err)
	}
	return out, nil
}

// MarkBallotProcessed flips the flag exactly once; the guarded UPDATE is
// what makes tabulation at-most-once.
func (s *SQLiteStore) MarkBallotProcessed(ctx context.Context, raceID string) (bool, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		"UPDATE races SET ballot_processed = 1 WHERE id = ? AND ballot_processed = 0", raceID)
	if err != nil {
		return false, fmt.Errorf("mark ballot processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark ballot processed: %w", err)
	}
	return n == 1, nil
}

// AddCompetitor registers an entity in a race. Re-adding is a no-op.
func (s *SQLiteStore) AddCompetitor(ctx context.Context, raceID string, entity model.EntityRef) error {
	if !entity.Valid() || raceID == "" {
		return ErrInvalidEntity
	}
	_, err := s.sqlDB.ExecContext(ctx,
		"INSERT OR IGNORE INTO competitors (race_id, entity_kind, entity_id) VALUES (?, ?, ?)",
		raceID, string(entity.Kind), entity.ID)
	if err != nil {
		return fmt.Errorf("add competitor: %w", err)
	}
	return nil
}

// IsCompetitor reports whether the entity competes in the race.
func (s *SQLiteStore) IsCompetitor(ctx context.Context, raceID string, entity model.EntityRef) (bool, error) {
	if !entity.Valid() {
		return false, nil
	}
	var n int
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM competitors WHERE race_id = ? AND entity_kind = ? AND entity_id = ?",
		raceID, string(entity.Kind), entity.ID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check competitor: %w", err)
	}
	return n > 0, nil
}

// SubmitBallot stores one ranking as a JSON-encoded candidate list.
func (s *SQLiteStore) SubmitBallot(ctx context.Context, b model.Ballot) error {
	if b.RaceID == "" || b.VoterID == "" {
		return ErrInvalidEntity
	}
	id := b.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := b.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	ranking, err := json.Marshal(b.Ranking)
	if err != nil {
		return fmt.Errorf("encode ranking: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		"INSERT INTO ballots (id, race_id, voter_id, ranking, created_at) VALUES (?, ?, ?, ?, ?)",
		id, b.RaceID, b.VoterID, string(ranking), toMillis(createdAt))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("submit ballot: %w", err)
	}
	return nil
}

// Ballots returns all ballots for a race.
func (s *SQLiteStore) Ballots(ctx context.Context, raceID string) ([]model.Ballot, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT id, race_id, voter_id, ranking, created_at FROM ballots WHERE race_id = ? ORDER BY created_at ASC, id ASC",
		raceID)
	if err != nil {
		return nil, fmt.Errorf("list ballots: %w", err)
	}
	defer rows.Close()

	var out []model.Ballot
	for rows.Next() {
		var b model.Ballot
		var ranking string
		var createdAt int64
		if err := rows.Scan(&b.ID, &b.RaceID, &b.VoterID, &ranking, &createdAt); err != nil {
			return nil, fmt.Errorf("scan ballot: %w", err)
		}
		if err := json.Unmarshal([]byte(ranking), &b.Ranking); err != nil {
			return nil, fmt.Errorf("decode ranking: %w", err)
		}
		b.CreatedAt = fromMillis(createdAt)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ballots: %w", err)
	}
	return out, nil
}

// TagContent associates content with a race. Duplicate tags are no-ops.
func (s *SQLiteStore) TagContent(ctx context.Context, contentID, raceID string) error {
	if contentID == "" || raceID == "" {
		return ErrInvalidEntity
	}
	_, err := s.sqlDB.ExecContext(ctx,
		"INSERT OR IGNORE INTO content_tags (content_id, race_id) VALUES (?, ?)", contentID, raceID)
	if err != nil {
		return fmt.Errorf("tag content: %w", err)
	}
	return nil
}

// ContentRaces returns the races a piece of content is tagged for.
func (s *SQLiteStore) ContentRaces(ctx context.Context, contentID string) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT race_id FROM content_tags WHERE content_id = ? ORDER BY race_id ASC", contentID)
	if err != nil {
		return nil, fmt.Errorf("list content races: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var raceID string
		if err := rows.Scan(&raceID); err != nil {
			return nil, fmt.Errorf("scan content race: %w", err)
		}
		out = append(out, raceID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content races: %w", err)
	}
	return out, nil
}

// SetContentParty marks content as belonging to a party.
func (s *SQLiteStore) SetContentParty(ctx context.Context, contentID, partyID string) error {
	if contentID == "" || partyID == "" {
		return ErrInvalidEntity
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO content_parties (content_id, party_id) VALUES (?, ?)
		 ON CONFLICT (content_id) DO UPDATE SET party_id = excluded.party_id`,
		contentID, partyID)
	if err != nil {
		return fmt.Errorf("set content party: %w", err)
	}
	return nil
}

// ContentParty returns the owning party id.
func (s *SQLiteStore) ContentParty(ctx context.Context, contentID string) (string, error) {
	var partyID string
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT party_id FROM content_parties WHERE content_id = ?", contentID).Scan(&partyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get content party: %w", err)
	}
	return partyID, nil
}
