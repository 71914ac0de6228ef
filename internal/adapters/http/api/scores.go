package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/gamestr/internal/adapters/signer"
	"github.com/okian/gamestr/internal/app"
	"github.com/okian/gamestr/internal/domain/model"
	"github.com/okian/gamestr/internal/domain/types"
)

const maxPlayerNameLen = 64

// ScoreDependencies defines the interface for publishing scores.
type ScoreDependencies interface {
	SubmitScore(ctx context.Context, player model.Player, score int) (app.Submission, error)
	ShareScore(ctx context.Context, score int, text string) (app.Submission, error)
}

// ScoresHandler handles score submission and sharing.
type ScoresHandler struct {
	deps ScoreDependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoreDependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// HandlePostScore handles POST /scores. A request without a player name is
// submitted under a random guest name.
func (h *ScoresHandler) HandlePostScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_score"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req types.SubmitScoreRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(r.Context(), w, WrapKind(op, ErrBadRequest, err))
		return
	}
	player, err := playerFrom(req)
	if err != nil {
		writeError(r.Context(), w, WrapKind(op, ErrBadRequest, err))
		return
	}

	sub, err := h.deps.SubmitScore(r.Context(), player, req.Score)
	if err != nil {
		writeError(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, toPublishResponse(sub))
}

// HandlePostShare handles POST /share.
func (h *ScoresHandler) HandlePostShare(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_share"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req types.ShareScoreRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(r.Context(), w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Score < 0 {
		writeError(r.Context(), w, WrapKind(op, ErrBadRequest, app.ErrInvalidScore))
		return
	}

	sub, err := h.deps.ShareScore(r.Context(), req.Score, req.Text)
	if err != nil {
		writeError(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toPublishResponse(sub))
}

func playerFrom(req types.SubmitScoreRequest) (model.Player, error) {
	if req.Score < 0 {
		return model.Player{}, app.ErrInvalidScore
	}

	name := strings.TrimSpace(req.PlayerName)
	if len(name) > maxPlayerNameLen {
		return model.Player{}, errors.New("player_name is too long")
	}

	var identity string
	if pk := strings.TrimSpace(req.PlayerPubkey); pk != "" && pk != model.GuestIdentity {
		decoded, err := signer.DecodePublicKey(pk)
		if err != nil {
			return model.Player{}, err
		}
		identity = decoded
	}

	if name == "" {
		guest, err := model.NewGuestPlayer()
		if err != nil {
			return model.Player{}, err
		}
		name = guest.Name
	}
	return model.Player{Name: name, Identity: identity}, nil
}
