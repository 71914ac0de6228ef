package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/gamestr/internal/adapters/relay"
	"github.com/okian/gamestr/internal/adapters/repository"
	"github.com/okian/gamestr/internal/adapters/signer"
	"github.com/okian/gamestr/internal/app"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("not found")
)

// Error is an API failure tagged with the handler operation that produced it.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Kind != nil && e.Kind != e.Err:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil && e.Err != e.Kind {
		out = append(out, e.Err)
	}
	return out
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// Wrap tags err with op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// WrapKind tags err with op and classifies it as kind.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// classify maps an error to its HTTP status and response code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, "limit_exceeded"
	case errors.Is(err, ErrBadRequest), errors.Is(err, app.ErrInvalidScore):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, app.ErrIdentityRequired):
		return http.StatusConflict, "identity_required"
	case errors.Is(err, app.ErrDuplicateEvent):
		return http.StatusConflict, "duplicate_event"
	case errors.Is(err, signer.ErrSigningFailed),
		errors.Is(err, relay.ErrUnsigned),
		errors.Is(err, relay.ErrInvalidSignature):
		return http.StatusBadGateway, "signing_failed"
	case errors.Is(err, relay.ErrAllEndpointsRejected):
		return http.StatusBadGateway, "publish_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
