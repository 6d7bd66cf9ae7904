package config

import (
	"context"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if TALLY_CONFIG is set
//  3. env (prefix TALLY_)
func Load(ctx context.Context) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := New()

	k := koanf.New(".")

	if path := os.Getenv("TALLY_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, Wrap("config.load_file", err)
		}
	}

	// Environment variables: TALLY_ADDR, TALLY_DB_PATH, ...
	// Map env keys like TALLY_DECAY_BATCH_SIZE -> decay_batch_size (flat
	// keys, underscores preserved to match koanf tags on the struct).
	envProvider := env.Provider("TALLY_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "tally_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, Wrap("config.load_env", err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, Wrap("config.unmarshal", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	switch {
	case cfg.Addr == "":
		return NewKind("config.validate", ErrMissingAddr)
	case cfg.DBPath == "":
		return NewKind("config.validate", ErrMissingDBPath)
	case cfg.DecayWindowDays <= 0:
		return NewKind("config.validate", ErrInvalidWindow)
	case cfg.DecayBatchSize <= 0 || cfg.SnapshotPageSize <= 0:
		return NewKind("config.validate", ErrInvalidBatch)
	case cfg.DefaultRaceID == "" || cfg.PartyRaceID == "":
		return NewKind("config.validate", ErrMissingRace)
	}
	for i, w := range cfg.BallotWeights {
		if w <= 0 || (i > 0 && w >= cfg.BallotWeights[i-1]) {
			return NewKind("config.validate", ErrInvalidWeights)
		}
	}
	return nil
}
