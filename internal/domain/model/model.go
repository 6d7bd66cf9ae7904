// Package model contains domain models passed between layers.
package model

import "time"

// EntityKind discriminates who owns a ledger. A ledger always belongs to
// exactly one user or one party, never both.
type EntityKind string

// Supported entity kinds.
const (
	EntityUser  EntityKind = "user"
	EntityParty EntityKind = "party"
)

// EntityRef identifies one user or party.
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
}

// Equal reports whether two refs point at the same entity.
func (e EntityRef) Equal(other EntityRef) bool {
	return e.Kind == other.Kind && e.ID == other.ID
}

// Valid reports whether the ref names a known kind and a non-empty id.
func (e EntityRef) Valid() bool {
	if e.ID == "" {
		return false
	}
	return e.Kind == EntityUser || e.Kind == EntityParty
}

// Action tags a point event with the engagement that produced it.
// The set is closed; ActionDecay is synthetic and only ever written by the
// decay sweeper.
type Action string

// Action catalogue.
const (
	ActionLike        Action = "LIKE"
	ActionComment     Action = "COMMENT"
	ActionShare       Action = "SHARE"
	ActionFollow      Action = "FOLLOW"
	ActionReelWatch   Action = "REEL_WATCH"
	ActionReview5Star Action = "REVIEW_5_STAR"
	ActionBallot      Action = "BALLOT"
	ActionDecay       Action = "DECAY"
)

// KnownAction reports whether a is part of the closed catalogue.
func KnownAction(a Action) bool {
	switch a {
	case ActionLike, ActionComment, ActionShare, ActionFollow,
		ActionReelWatch, ActionReview5Star, ActionBallot, ActionDecay:
		return true
	}
	return false
}

// DefaultActionPoints is the built-in action -> point delta table. The
// config layer may override individual entries; the recorder treats the
// merged table as opaque.
func DefaultActionPoints() map[string]int64 {
	return map[string]int64{
		string(ActionLike):        1,
		string(ActionComment):     2,
		string(ActionShare):       3,
		string(ActionFollow):      5,
		string(ActionReelWatch):   1,
		string(ActionReview5Star): 10,
	}
}

// Ledger is the running point total for one entity in one race. The total
// is a cached projection over the ledger's non-expired events.
type Ledger struct {
	ID          string    `json:"id"`
	Entity      EntityRef `json:"entity"`
	RaceID      string    `json:"race_id"`
	TotalPoints int64     `json:"total_points"`
	Tier        string    `json:"tier"`
	CreatedAt   time.Time `json:"created_at"`
}

// PointEvent is a single point-affecting occurrence recorded against a
// ledger. Events are append-only; only the Expired flag is ever flipped,
// and only by the decay sweeper.
type PointEvent struct {
	ID              string     `json:"id"`
	LedgerID        string     `json:"ledger_id"`
	Action          Action     `json:"action"`
	Points          int64      `json:"points"`
	SourceUserID    string     `json:"source_user_id,omitempty"`
	SourceContentID string     `json:"source_content_id,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	Expired         bool       `json:"expired"`
	CreatedAt       time.Time  `json:"created_at"`
}

// PointSnapshot is a dated point-in-time record of a ledger's points, tier
// and rank within its race, keyed uniquely by (ledger, date).
type PointSnapshot struct {
	LedgerID string `json:"ledger_id"`
	Date     string `json:"date"` // UTC calendar date, YYYY-MM-DD
	Points   int64  `json:"points"`
	Tier     string `json:"tier"`
	Rank     int    `json:"rank"`
}

// SnapshotDate formats t as the UTC calendar date used to key snapshots.
func SnapshotDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// WinCondition selects how a race is decided.
type WinCondition string

// Win conditions.
const (
	WinByPoints WinCondition = "points"
	WinByBallot WinCondition = "ballot"
)

// Race groups competitors under one contest. Ballot races carry a closing
// time and a processed flag that guarantees at-most-once tabulation.
type Race struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	WinCondition    WinCondition `json:"win_condition"`
	BallotClosesAt  *time.Time   `json:"ballot_closes_at,omitempty"`
	BallotProcessed bool         `json:"ballot_processed"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Ballot is one voter's ordered candidate list for a ballot race. Position
// 0 is the first choice.
type Ballot struct {
	ID        string      `json:"id"`
	RaceID    string      `json:"race_id"`
	VoterID   string      `json:"voter_id"`
	Ranking   []EntityRef `json:"ranking"`
	CreatedAt time.Time   `json:"created_at"`
}

// ScoreChange is the payload published to the real-time sink after a
// successful recording.
type ScoreChange struct {
	RaceID string    `json:"race_id"`
	Entity EntityRef `json:"entity"`
	Points int64     `json:"points"`
	Tier   string    `json:"tier"`
}
