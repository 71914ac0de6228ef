package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/gamestr/internal/adapters/http/api"
	"github.com/okian/gamestr/internal/adapters/relay"
	"github.com/okian/gamestr/internal/adapters/repository"
	"github.com/okian/gamestr/internal/adapters/signer"
	"github.com/okian/gamestr/internal/app"
	"github.com/okian/gamestr/internal/domain/model"
	"github.com/okian/gamestr/internal/domain/types"
	"github.com/okian/gamestr/internal/testutil"
)

type mockDeps struct {
	board      model.Board
	boardErr   error
	refreshed  int
	rank       model.RankedEntry
	rankErr    error
	profile    model.ProfileRecord
	hasProfile bool
	submitErr  error
	shareErr   error
	players    []model.Player
	shared     []string
	limits     []int
}

func (m *mockDeps) Leaderboard(_ context.Context, limit int) (model.Board, error) {
	m.limits = append(m.limits, limit)
	if m.boardErr != nil {
		return model.Board{}, m.boardErr
	}
	b := m.board
	if limit > 0 && limit < len(b.Entries) {
		b.Entries = b.Entries[:limit]
	}
	return b, nil
}

func (m *mockDeps) Refresh(context.Context) model.Board {
	m.refreshed++
	return m.board
}

func (m *mockDeps) Rank(_ context.Context, _ string) (model.RankedEntry, error) {
	return m.rank, m.rankErr
}

func (m *mockDeps) Profile(_ context.Context, _ string) (model.ProfileRecord, bool) {
	return m.profile, m.hasProfile
}

func submission() app.Submission {
	return app.Submission{
		Event: nostr.Event{ID: "ev1"},
		Result: relay.Result{EventID: "ev1", Outcomes: []relay.Outcome{
			{URL: "wss://a", Accepted: true, Latency: 12 * time.Millisecond},
			{URL: "wss://b", Reason: "blocked", Err: relay.ErrRejected},
		}},
	}
}

func (m *mockDeps) SubmitScore(_ context.Context, p model.Player, _ int) (app.Submission, error) {
	m.players = append(m.players, p)
	if m.submitErr != nil {
		return app.Submission{}, m.submitErr
	}
	return submission(), nil
}

func (m *mockDeps) ShareScore(_ context.Context, _ int, text string) (app.Submission, error) {
	m.shared = append(m.shared, text)
	if m.shareErr != nil {
		return app.Submission{}, m.shareErr
	}
	return submission(), nil
}

type mockStats struct{}

func (mockStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "boardEntries": 2}
}

func readyBoard() model.Board {
	return model.Board{
		Status:  model.StatusReady,
		BuiltAt: time.Unix(1700000000, 0),
		Entries: []model.RankedEntry{
			{Rank: 1, EventID: "e1", Identity: "abc", DisplayName: "alice", Score: 300, Verified: true},
			{Rank: 2, EventID: "e2", DisplayName: "Guest", Score: 20},
			{Rank: 3, EventID: "e3", DisplayName: "Swift Fox", Score: 10},
		},
	}
}

func newMux(deps *mockDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, mockStats{}, 100).Register(context.Background(), mux)
	return mux
}

func do(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func errorCode(w *httptest.ResponseRecorder) string {
	var e types.ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	return e.Error
}

func TestLeaderboardRoutes(t *testing.T) {
	Convey("Given a server over a ready board", t, func() {
		deps := &mockDeps{board: readyBoard()}
		mux := newMux(deps)

		Convey("When the whole board is requested", func() {
			w := do(mux, http.MethodGet, "/leaderboard", "")

			Convey("Then every entry is returned in rank order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var lb types.Leaderboard
				So(json.Unmarshal(w.Body.Bytes(), &lb), ShouldBeNil)
				So(lb.Status, ShouldEqual, "ready")
				So(lb.Total, ShouldEqual, 3)
				So(lb.Entries[0].DisplayName, ShouldEqual, "alice")
				So(lb.BuiltAt, ShouldNotBeNil)
				So(deps.limits, ShouldResemble, []int{0})
			})
		})

		Convey("When a limit is given", func() {
			w := do(mux, http.MethodGet, "/leaderboard?limit=2", "")
			var lb types.Leaderboard
			So(json.Unmarshal(w.Body.Bytes(), &lb), ShouldBeNil)
			So(lb.Entries, ShouldHaveLength, 2)
		})

		Convey("When the limit is invalid or too large", func() {
			So(do(mux, http.MethodGet, "/leaderboard?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/leaderboard?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			w := do(mux, http.MethodGet, "/leaderboard?limit=101", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "limit_exceeded")
		})

		Convey("When a refresh is posted", func() {
			w := do(mux, http.MethodPost, "/leaderboard/refresh", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.refreshed, ShouldEqual, 1)
		})

		Convey("When the wrong method is used", func() {
			So(do(mux, http.MethodPost, "/leaderboard", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/leaderboard/refresh", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given an empty board", t, func() {
		deps := &mockDeps{board: model.Board{Status: model.StatusEmpty, Entries: []model.RankedEntry{}, BuiltAt: time.Now()}}
		w := do(newMux(deps), http.MethodGet, "/leaderboard", "")

		Convey("Then the empty-state marker and message are returned", func() {
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"entries":[]`)
			var lb types.Leaderboard
			So(json.Unmarshal(w.Body.Bytes(), &lb), ShouldBeNil)
			So(lb.Status, ShouldEqual, "empty")
			So(lb.Message, ShouldEqual, model.EmptyMessage)
		})
	})

	Convey("Given a loading board", t, func() {
		deps := &mockDeps{board: model.LoadingBoard()}
		w := do(newMux(deps), http.MethodGet, "/leaderboard", "")

		Convey("Then no build time is reported", func() {
			So(w.Body.String(), ShouldContainSubstring, `"status":"loading"`)
			So(w.Body.String(), ShouldNotContainSubstring, "built_at")
		})
	})
}

func TestRankAndProfileRoutes(t *testing.T) {
	Convey("Given a server", t, func() {
		deps := &mockDeps{rank: readyBoard().Entries[0]}
		mux := newMux(deps)

		Convey("When an existing rank is requested", func() {
			w := do(mux, http.MethodGet, "/rank/abc", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var e types.Entry
			So(json.Unmarshal(w.Body.Bytes(), &e), ShouldBeNil)
			So(e.Rank, ShouldEqual, 1)
			So(e.Verified, ShouldBeTrue)
		})

		Convey("When the identity is not ranked", func() {
			deps.rankErr = repository.ErrNotFound
			w := do(mux, http.MethodGet, "/rank/nobody", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(errorCode(w), ShouldEqual, "not_found")
		})

		Convey("When the rank path is malformed", func() {
			So(do(mux, http.MethodGet, "/rank/a/b", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a known profile is requested", func() {
			kp := testutil.NewKeypair(t)
			deps.profile = model.ProfileRecord{Identity: kp.Public, DisplayName: "sat", PictureURL: "p.png"}
			deps.hasProfile = true
			w := do(mux, http.MethodGet, "/profile/"+kp.Public, "")

			So(w.Code, ShouldEqual, http.StatusOK)
			var p types.Profile
			So(json.Unmarshal(w.Body.Bytes(), &p), ShouldBeNil)
			So(p.DisplayName, ShouldEqual, "sat")
		})

		Convey("When the profile is unknown", func() {
			w := do(mux, http.MethodGet, "/profile/"+testutil.NewKeypair(t).Public, "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the profile identity is not a key", func() {
			w := do(mux, http.MethodGet, "/profile/not-a-key", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestScoreRoutes(t *testing.T) {
	Convey("Given a server", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("When a named score is posted", func() {
			w := do(mux, http.MethodPost, "/scores", `{"player_name":"Swift Fox 3","score":120}`)

			Convey("Then it is accepted with per-relay outcomes", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				var resp types.PublishResponse
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.EventID, ShouldEqual, "ev1")
				So(resp.Accepted, ShouldEqual, 1)
				So(resp.Relays, ShouldHaveLength, 2)
				So(resp.Relays[1].Error, ShouldEqual, relay.OutcomeRejected)
				So(resp.Relays[1].Reason, ShouldEqual, "blocked")
				So(deps.players[0].Name, ShouldEqual, "Swift Fox 3")
				So(deps.players[0].Identity, ShouldBeEmpty)
			})
		})

		Convey("When no name is posted", func() {
			w := do(mux, http.MethodPost, "/scores", `{"score":5}`)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(deps.players[0].Name, ShouldNotBeEmpty)
		})

		Convey("When a player key is posted", func() {
			kp := testutil.NewKeypair(t)
			w := do(mux, http.MethodPost, "/scores", `{"player_name":"a","player_pubkey":"`+kp.Public+`","score":5}`)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(deps.players[0].Identity, ShouldEqual, kp.Public)
		})

		Convey("When the body is invalid", func() {
			So(do(mux, http.MethodPost, "/scores", `{`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/scores", `{"score":-3}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/scores", `{"score":1,"player_pubkey":"zz"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/scores", `{"score":1,"extra":true}`).Code, ShouldEqual, http.StatusBadRequest)
			So(deps.players, ShouldBeEmpty)
		})

		Convey("When signing fails", func() {
			deps.submitErr = signer.ErrSigningFailed
			w := do(mux, http.MethodPost, "/scores", `{"score":1}`)
			So(w.Code, ShouldEqual, http.StatusBadGateway)
			So(errorCode(w), ShouldEqual, "signing_failed")
		})

		Convey("When every relay rejects", func() {
			deps.submitErr = relay.ErrAllEndpointsRejected
			w := do(mux, http.MethodPost, "/scores", `{"score":1}`)
			So(w.Code, ShouldEqual, http.StatusBadGateway)
			So(errorCode(w), ShouldEqual, "publish_failed")
		})

		Convey("When a share is posted", func() {
			w := do(mux, http.MethodPost, "/share", `{"score":77,"text":"gg"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.shared, ShouldResemble, []string{"gg"})
		})

		Convey("When sharing has no key", func() {
			deps.shareErr = app.ErrIdentityRequired
			w := do(mux, http.MethodPost, "/share", `{"score":77}`)
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(errorCode(w), ShouldEqual, "identity_required")
		})

		Convey("When an unexpected error happens", func() {
			deps.shareErr = errors.New("boom")
			So(do(mux, http.MethodPost, "/share", `{"score":1}`).Code, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("When GET is used", func() {
			So(do(mux, http.MethodGet, "/scores", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestOperationalRoutes(t *testing.T) {
	Convey("Given a server", t, func() {
		mux := newMux(&mockDeps{})

		Convey("Then /healthz serves prometheus metrics", func() {
			_ = do(mux, http.MethodGet, "/stats", "")
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "gamestr_leaderboard_http_requests_total")
		})

		Convey("Then /stats returns the provider's statistics", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var stats map[string]interface{}
			So(json.Unmarshal(w.Body.Bytes(), &stats), ShouldBeNil)
			So(stats["started"], ShouldEqual, true)
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Given op-tagged errors", t, func() {
		cause := errors.New("eof")
		err := api.WrapKind("api.post_score", api.ErrBadRequest, cause)

		Convey("Then both kind and cause are matched", func() {
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.post_score: bad request: eof")
		})

		Convey("Then Wrap keeps nil nil", func() {
			So(api.Wrap("op", nil), ShouldBeNil)
			So(api.NewKind("op", api.ErrNotFound).Error(), ShouldEqual, "op: not found")
		})
	})
}
