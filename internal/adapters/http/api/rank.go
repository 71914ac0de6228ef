package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/gamestr/internal/domain/model"
)

// RankDependencies defines the interface for rank operations.
type RankDependencies interface {
	Rank(ctx context.Context, key string) (model.RankedEntry, error)
}

// RankHandler handles rank requests.
type RankHandler struct {
	deps RankDependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// HandleGetRank handles GET /rank/{identity} requests. The key may also be
// a score event id.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	key, ok := pathParam(r.URL.Path, "/rank/")
	if !ok {
		writeError(r.Context(), w, NewKind(op, ErrBadRequest))
		return
	}
	entry, err := h.deps.Rank(r.Context(), key)
	if err != nil {
		writeError(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toEntry(entry))
}

// pathParam returns the single path segment after prefix.
func pathParam(path, prefix string) (string, bool) {
	v := strings.TrimPrefix(path, prefix)
	if v == "" || strings.Contains(v, "/") {
		return "", false
	}
	return v, true
}
