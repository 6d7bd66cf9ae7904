// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults and Load(ctx) to layer
//   file and environment overrides on top.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"github.com/okian/tally/internal/domain/model"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file. ":memory:" keeps state in-process.
	DBPath string `koanf:"db_path"`

	// DecayWindowDays is the rolling window after which non-decay events
	// expire and are compensated.
	DecayWindowDays int `koanf:"decay_window_days"`

	// Job intervals, in minutes. Snapshots default to once a day.
	DecayIntervalMinutes    int `koanf:"decay_interval_minutes"`
	SnapshotIntervalMinutes int `koanf:"snapshot_interval_minutes"`
	BallotIntervalMinutes   int `koanf:"ballot_interval_minutes"`

	// DecayBatchSize bounds how many expired events one sweep transaction
	// compensates at a time.
	DecayBatchSize int `koanf:"decay_batch_size"`

	// SnapshotPageSize bounds how many ledgers the snapshot job ranks per
	// store round-trip.
	SnapshotPageSize int `koanf:"snapshot_page_size"`

	// MaxLeaderboardLimit caps leaderboard and history page sizes.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// ActionPoints maps action tags to point deltas. Entries here override
	// the built-in table; unknown actions are rejected by the recorder.
	ActionPoints map[string]int64 `koanf:"action_points"`

	// BallotWeights are the strictly decreasing points for 1st, 2nd, 3rd
	// ranked choices.
	BallotWeights []int64 `koanf:"ballot_weights"`

	// DefaultRaceID receives engagement for untagged content.
	DefaultRaceID string `koanf:"default_race_id"`

	// PartyRaceID is the global race that party-owned content additionally
	// scores into.
	PartyRaceID string `koanf:"party_race_id"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		Addr:                    ":9080",
		DBPath:                  "tally.db",
		DecayWindowDays:         30,
		DecayIntervalMinutes:    60,
		SnapshotIntervalMinutes: 24 * 60,
		BallotIntervalMinutes:   10,
		DecayBatchSize:          500,
		SnapshotPageSize:        200,
		MaxLeaderboardLimit:     100,
		ActionPoints:            model.DefaultActionPoints(),
		BallotWeights:           []int64{8, 5, 3},
		DefaultRaceID:           "global",
		PartyRaceID:             "global-parties",
	}
}
