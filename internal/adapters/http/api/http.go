// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/gamestr/internal/adapters/relay"
	"github.com/okian/gamestr/internal/app"
	"github.com/okian/gamestr/internal/domain/model"
	"github.com/okian/gamestr/internal/domain/types"
	"github.com/okian/gamestr/pkg/logger"
)

const maxBodyBytes = 64 << 10

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	LeaderboardDependencies
	RankDependencies
	ProfileDependencies
	ScoreDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	scoresHandler      *ScoresHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	profileHandler     *ProfileHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		scoresHandler:      NewScoresHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		rankHandler:        NewRankHandler(deps),
		profileHandler:     NewProfileHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/scores", MetricsMiddleware(s.scoresHandler.HandlePostScore, "scores"))
	mux.HandleFunc("/share", MetricsMiddleware(s.scoresHandler.HandlePostShare, "share"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/leaderboard/refresh", MetricsMiddleware(s.leaderboardHandler.HandleRefresh, "leaderboard_refresh"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("/profile/", MetricsMiddleware(s.profileHandler.HandleGetProfile, "profile"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError classifies err and writes the error body. Server-side failures
// are logged; client errors are not.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Named("api").Warn(ctx, "request failed",
			logger.String("code", code), logger.Int("status", status), logger.Error(err))
	}
	writeJSON(w, status, types.ErrorResponse{Error: code, Message: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func toEntry(e model.RankedEntry) types.Entry {
	return types.Entry{
		Rank:        e.Rank,
		EventID:     e.EventID,
		Identity:    e.Identity,
		DisplayName: e.DisplayName,
		PictureURL:  e.PictureURL,
		Score:       e.Score,
		Verified:    e.Verified,
	}
}

func toLeaderboard(b model.Board) types.Leaderboard {
	out := types.Leaderboard{
		Status:  string(b.Status),
		Total:   len(b.Entries),
		Entries: make([]types.Entry, len(b.Entries)),
	}
	for i, e := range b.Entries {
		out.Entries[i] = toEntry(e)
	}
	if !b.BuiltAt.IsZero() {
		builtAt := b.BuiltAt.UTC()
		out.BuiltAt = &builtAt
	}
	if b.Status == model.StatusEmpty {
		out.Message = model.EmptyMessage
	}
	return out
}

func toPublishResponse(sub app.Submission) types.PublishResponse {
	out := types.PublishResponse{
		EventID:  sub.Event.ID,
		Accepted: sub.Result.Accepted(),
		Relays:   make([]types.RelayOutcome, len(sub.Result.Outcomes)),
	}
	for i, o := range sub.Result.Outcomes {
		out.Relays[i] = toRelayOutcome(o)
	}
	return out
}

func toRelayOutcome(o relay.Outcome) types.RelayOutcome {
	ro := types.RelayOutcome{
		Relay:     o.URL,
		Accepted:  o.Accepted,
		Reason:    o.Reason,
		LatencyMS: o.Latency.Milliseconds(),
	}
	if o.Err != nil {
		ro.Error = o.Label()
	}
	return ro
}
