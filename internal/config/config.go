// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New(ctx) returns a Config populated with defaults.
//   - Load(ctx) layers an optional YAML file and GAMESTR_* env vars on top.
//   - Durations are configured in milliseconds and read through accessors.
package config

import (
	"context"
	"runtime"
	"time"
)

// Default identities and endpoints used by the SatSnake deployment.
const (
	DefaultGameID        = "satsnake"
	DefaultScoreKind     = 30762
	DefaultSignerURL     = "https://satsnake-worker.whitepaperinteractive.workers.dev/submit-score"
	DefaultScoreAuthor   = "277813f913fae89093c5cb443c671c0612144c636a43f08abcde2ef2f43d4978"
	DefaultPicture       = "assets/logo.png"
	DefaultShareTemplate = "I just scored {score} on SatSnake 🐍\n\nPlay now at SatSnake.WhitepaperInteractive.com\n\n#SatSnake #Gamestr"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogJSON switches the log handler to JSON lines.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ServiceName is reported to the trace exporter.
	ServiceName string `koanf:"service_name"`

	// GameID is matched case-insensitively against the "game" tag and used as the "d" tag filter.
	GameID string `koanf:"game_id"`

	// ScoreKind is the event kind of score announcements.
	ScoreKind int `koanf:"score_kind"`

	// ScoreAuthors restricts score events to these signer keys.
	ScoreAuthors []string `koanf:"score_authors"`

	// ScoreRelay is queried for score events; ProfileRelay for kind-0 metadata.
	ScoreRelay   string `koanf:"score_relay"`
	ProfileRelay string `koanf:"profile_relay"`

	// PublishRelays receive every signed event.
	PublishRelays []string `koanf:"publish_relays"`

	// Per-endpoint bounds, in milliseconds.
	PublishTimeoutMS int `koanf:"publish_timeout_ms"`
	ScoreTimeoutMS   int `koanf:"score_timeout_ms"`
	ProfileTimeoutMS int `koanf:"profile_timeout_ms"`

	// LeaderboardLimit is the "limit" sent in the score filter.
	LeaderboardLimit int `koanf:"leaderboard_limit"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// DefaultPicture is shown for guests and profiles without a picture.
	DefaultPicture string `koanf:"default_picture"`

	// SignerURL is the remote signing endpoint for score events.
	SignerURL       string `koanf:"signer_url"`
	SignerTimeoutMS int    `koanf:"signer_timeout_ms"`

	// SecretKey (hex or nsec) enables the local signer used for sharing.
	SecretKey string `koanf:"secret_key"`

	// ShareTags are attached as "t" tags to shared posts.
	ShareTags []string `koanf:"share_tags"`

	// ShareTemplate builds the default share text; {score} is replaced.
	ShareTemplate string `koanf:"share_template"`

	// VerifySignatures checks schnorr signatures before publishing.
	VerifySignatures bool `koanf:"verify_signatures"`

	// Refresh pipeline.
	RefreshQueueSize  int `koanf:"refresh_queue_size"`
	RefreshWorkers    int `koanf:"refresh_workers"`
	RefreshIntervalMS int `koanf:"refresh_interval_ms"`

	// OTelEndpoint enables tracing when set, e.g. http://localhost:4318.
	OTelEndpoint string `koanf:"otel_endpoint"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	workers := runtime.NumCPU()
	if workers > 4 {
		workers = 4
	}
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		ServiceName:         "gamestr",
		GameID:              DefaultGameID,
		ScoreKind:           DefaultScoreKind,
		ScoreAuthors:        []string{DefaultScoreAuthor},
		ScoreRelay:          "wss://relay.damus.io",
		ProfileRelay:        "wss://relay.damus.io",
		PublishRelays:       []string{"wss://relay.damus.io", "wss://nos.lol", "wss://relay.primal.net"},
		PublishTimeoutMS:    3000,
		ScoreTimeoutMS:      3000,
		ProfileTimeoutMS:    3000,
		LeaderboardLimit:    50,
		MaxLeaderboardLimit: 100,
		DefaultPicture:      DefaultPicture,
		SignerURL:           DefaultSignerURL,
		SignerTimeoutMS:     10000,
		ShareTags:           []string{"SatSnake", "Gamestr"},
		ShareTemplate:       DefaultShareTemplate,
		RefreshQueueSize:    16,
		RefreshWorkers:      workers,
		RefreshIntervalMS:   60000,
	}
}

// PublishTimeout is the per-relay acknowledgement bound.
func (c *Config) PublishTimeout() time.Duration { return ms(c.PublishTimeoutMS) }

// ScoreTimeout bounds the score collection.
func (c *Config) ScoreTimeout() time.Duration { return ms(c.ScoreTimeoutMS) }

// ProfileTimeout bounds the profile collection.
func (c *Config) ProfileTimeout() time.Duration { return ms(c.ProfileTimeoutMS) }

// SignerTimeout bounds a remote signing request.
func (c *Config) SignerTimeout() time.Duration { return ms(c.SignerTimeoutMS) }

// RefreshInterval is the period of background rebuilds; zero disables them.
func (c *Config) RefreshInterval() time.Duration { return ms(c.RefreshIntervalMS) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
