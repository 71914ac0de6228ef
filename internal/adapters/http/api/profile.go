package api

import (
	"context"
	"net/http"

	"github.com/okian/gamestr/internal/adapters/signer"
	"github.com/okian/gamestr/internal/domain/model"
	"github.com/okian/gamestr/internal/domain/types"
)

// ProfileDependencies defines the interface for profile lookups.
type ProfileDependencies interface {
	Profile(ctx context.Context, identity string) (model.ProfileRecord, bool)
}

// ProfileHandler handles profile requests.
type ProfileHandler struct {
	deps ProfileDependencies
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(deps ProfileDependencies) *ProfileHandler {
	return &ProfileHandler{deps: deps}
}

// HandleGetProfile handles GET /profile/{identity}; identity is hex or npub.
func (h *ProfileHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_profile"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	identity, ok := pathParam(r.URL.Path, "/profile/")
	if !ok {
		writeError(r.Context(), w, NewKind(op, ErrBadRequest))
		return
	}
	if _, err := signer.DecodePublicKey(identity); err != nil {
		writeError(r.Context(), w, WrapKind(op, ErrBadRequest, err))
		return
	}

	p, found := h.deps.Profile(r.Context(), identity)
	if !found {
		writeError(r.Context(), w, NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, types.Profile{
		Identity:    p.Identity,
		DisplayName: p.DisplayName,
		PictureURL:  p.PictureURL,
	})
}
