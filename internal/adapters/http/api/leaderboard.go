package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/gamestr/internal/adapters/repository"
	"github.com/okian/gamestr/internal/domain/model"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, limit int) (model.Board, error)
	Refresh(ctx context.Context) model.Board
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetLeaderboard handles GET /leaderboard?limit=N requests. Without
// limit the whole board is returned.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	n := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		n, err = strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(r.Context(), w, NewKind(op, ErrBadRequest))
			return
		}
		if n > h.maxLimit {
			writeError(r.Context(), w, WrapKind(op, repository.ErrInvalidLimit, fmt.Errorf("limit must not exceed %d", h.maxLimit)))
			return
		}
	}

	board, err := h.deps.Leaderboard(r.Context(), n)
	if err != nil {
		writeError(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toLeaderboard(board))
}

// HandleRefresh handles POST /leaderboard/refresh by rebuilding the board
// before answering.
func (h *LeaderboardHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, toLeaderboard(h.deps.Refresh(r.Context())))
}
