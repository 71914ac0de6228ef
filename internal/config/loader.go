package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "GAMESTR_"
	envConfig    = "GAMESTR_CONFIG"
	listSep      = ","
	scoreKindMax = 65535
)

// listKeys are split on commas when they come from the environment.
var listKeys = map[string]bool{
	"score_authors":  true,
	"publish_relays": true,
	"share_tags":     true,
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if GAMESTR_CONFIG is set
//  3. env (prefix GAMESTR_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// GAMESTR_PUBLISH_RELAYS=wss://a,wss://b -> publish_relays: [wss://a wss://b]
	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(envPrefix))
		if key == "config" {
			return "", nil
		}
		if listKeys[key] {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	// Lists replace their defaults instead of being merged element-wise.
	cfg := *base
	if k.Exists("score_authors") {
		cfg.ScoreAuthors = nil
	}
	if k.Exists("publish_relays") {
		cfg.PublishRelays = nil
	}
	if k.Exists("share_tags") {
		cfg.ShareTags = nil
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants the service relies on.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.GameID == "":
		return fmt.Errorf("%w: game_id must not be empty", ErrInvalidConfig)
	case c.ScoreKind <= 0 || c.ScoreKind > scoreKindMax:
		return fmt.Errorf("%w: score_kind %d out of range", ErrInvalidConfig, c.ScoreKind)
	case len(c.PublishRelays) == 0:
		return fmt.Errorf("%w: at least one publish relay is required", ErrInvalidConfig)
	case c.PublishTimeoutMS <= 0 || c.ScoreTimeoutMS <= 0 || c.ProfileTimeoutMS <= 0:
		return fmt.Errorf("%w: relay timeouts must be positive", ErrInvalidConfig)
	case c.LeaderboardLimit <= 0:
		return fmt.Errorf("%w: leaderboard_limit must be positive", ErrInvalidConfig)
	case c.MaxLeaderboardLimit <= 0:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	case c.RefreshWorkers <= 0 || c.RefreshQueueSize <= 0:
		return fmt.Errorf("%w: refresh_workers and refresh_queue_size must be positive", ErrInvalidConfig)
	}

	relays := append([]string{c.ScoreRelay, c.ProfileRelay}, c.PublishRelays...)
	for _, r := range relays {
		if err := validRelayURL(r); err != nil {
			return err
		}
	}
	return nil
}

func validRelayURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: relay %q: %w", ErrInvalidConfig, raw, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: relay %q must use ws or wss", ErrInvalidConfig, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: relay %q has no host", ErrInvalidConfig, raw)
	}
	return nil
}

func splitList(v string) []string {
	out := []string{}
	for _, p := range strings.Split(v, listSep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
