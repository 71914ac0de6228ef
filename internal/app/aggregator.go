package app

import (
	"context"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/gamestr/internal/domain/dedupe"
	"github.com/okian/gamestr/internal/domain/leaderboard"
	"github.com/okian/gamestr/internal/domain/model"
	"github.com/okian/gamestr/pkg/logger"
	"github.com/okian/gamestr/pkg/metrics"
	"github.com/okian/gamestr/pkg/telemetry"
)

// Collector gathers the stored events matching a filter from one relay.
type Collector interface {
	Collect(ctx context.Context, url string, filter nostr.Filter, timeout time.Duration) ([]nostr.Event, bool)
}

// Aggregator turns score announcements and profile metadata into a ranked board.
type Aggregator struct {
	collector      Collector
	gameID         string
	scoreEndpoint  string
	scoreTimeout   time.Duration
	profileTimeout time.Duration
	defaultPicture string
	now            func() time.Time
	log            logger.Logger
}

// AggregatorConfig holds the fixed inputs of an Aggregator.
type AggregatorConfig struct {
	GameID         string
	ScoreEndpoint  string
	ScoreTimeout   time.Duration
	ProfileTimeout time.Duration
	DefaultPicture string
}

// NewAggregator returns an Aggregator reading through c.
func NewAggregator(c Collector, cfg AggregatorConfig) *Aggregator {
	return &Aggregator{
		collector:      c,
		gameID:         cfg.GameID,
		scoreEndpoint:  cfg.ScoreEndpoint,
		scoreTimeout:   cfg.ScoreTimeout,
		profileTimeout: cfg.ProfileTimeout,
		defaultPicture: cfg.DefaultPicture,
		now:            time.Now,
		log:            logger.Named("aggregator"),
	}
}

// BuildLeaderboard collects score events matching scoreFilter, enriches
// them with kind-0 profiles from profileEndpoint and ranks them. It never
// fails: relays that time out or drop yield whatever arrived, and missing
// profiles fall back to guest-style display.
func (a *Aggregator) BuildLeaderboard(ctx context.Context, scoreFilter nostr.Filter, profileEndpoint string) model.Board {
	ctx, span := telemetry.Tracer().Start(ctx, "leaderboard.build")
	defer span.End()
	start := time.Now()

	events, complete := a.collector.Collect(ctx, a.scoreEndpoint, scoreFilter, a.scoreTimeout)
	if !complete {
		a.log.Warn(ctx, "score collection incomplete",
			logger.String("relay", a.scoreEndpoint), logger.Int("events", len(events)))
	}
	records := leaderboard.ExtractScores(uniqueEvents(ctx, events), a.gameID)

	identities := leaderboard.Identities(records)
	profiles := map[string]model.ProfileRecord{}
	if len(identities) > 0 {
		profiles = a.resolveProfiles(ctx, identities, profileEndpoint)
	}

	board := leaderboard.Render(records, profiles, a.defaultPicture, a.now())

	elapsed := time.Since(start)
	metrics.RecordLeaderboardBuild(string(board.Status), len(board.Entries), float64(elapsed.Milliseconds()))
	span.SetAttributes(
		attribute.Int("events", len(events)),
		attribute.Int("entries", len(board.Entries)),
		attribute.Int("identities", len(identities)),
		attribute.Int("profiles", len(profiles)),
		attribute.Bool("complete", complete),
	)
	a.log.Info(ctx, "leaderboard built",
		logger.String("status", string(board.Status)),
		logger.Int("entries", len(board.Entries)),
		logger.Int("profiles", len(profiles)),
		logger.Duration("took", elapsed))
	return board
}

func (a *Aggregator) resolveProfiles(ctx context.Context, identities []string, endpoint string) map[string]model.ProfileRecord {
	filter := nostr.Filter{
		Kinds:   []int{nostr.KindProfileMetadata},
		Authors: identities,
	}
	events, complete := a.collector.Collect(ctx, endpoint, filter, a.profileTimeout)
	if !complete {
		a.log.Warn(ctx, "profile collection incomplete",
			logger.String("relay", endpoint), logger.Int("events", len(events)))
	}

	idx := leaderboard.IndexProfiles(events, identities, a.defaultPicture)
	metrics.RecordProfileResolution("resolved", len(idx.Profiles))
	metrics.RecordProfileResolution("malformed", idx.Malformed)
	metrics.RecordProfileResolution("unresolved", len(identities)-len(idx.Profiles))
	if idx.Malformed > 0 {
		a.log.Debug(ctx, "skipped malformed profiles", logger.Int("count", idx.Malformed))
	}
	return idx.Profiles
}

// uniqueEvents drops repeated event ids; the first arrival wins.
func uniqueEvents(ctx context.Context, events []nostr.Event) []nostr.Event {
	seen := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
	out := make([]nostr.Event, 0, len(events))
	for i := range events {
		if events[i].ID != "" && seen.SeenAndRecord(ctx, events[i].ID) {
			metrics.RecordDuplicateEvent()
			continue
		}
		out = append(out, events[i])
	}
	return out
}
