package signer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/gamestr/internal/domain/model"
	"github.com/okian/gamestr/internal/testutil"
)

func signingServer(t *testing.T, handler func(w http.ResponseWriter, req ScoreRequest)) (*httptest.Server, *[]ScoreRequest) {
	t.Helper()
	var seen []ScoreRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ScoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		seen = append(seen, req)
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestRemoteSignerSignScore(t *testing.T) {
	Convey("Given a remote signing endpoint", t, func() {
		kp := testutil.NewKeypair(t)
		ctx := context.Background()

		Convey("When it replies with a bare signed event", func() {
			srv, seen := signingServer(t, func(w http.ResponseWriter, req ScoreRequest) {
				ev := kp.ScoreEvent(t, 30762, "satsnake", "150", req.PlayerPubkey, req.PlayerName+" scored 150")
				_ = json.NewEncoder(w).Encode(ev)
			})
			s := NewRemoteSigner(srv.URL)
			player := model.Player{Name: "Swift Fox 7", Identity: kp.Public}

			ev, err := s.SignScore(ctx, NewScoreRequest(player, 150))

			Convey("Then the event is returned as signed", func() {
				So(err, ShouldBeNil)
				So(ev.Sig, ShouldNotBeEmpty)
				ok, verr := ev.CheckSignature()
				So(verr, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(*seen, ShouldHaveLength, 1)
				So((*seen)[0].PlayerPubkey, ShouldEqual, kp.Public)
				So((*seen)[0].Score, ShouldEqual, 150)
			})
		})

		Convey("When it wraps the event", func() {
			srv, _ := signingServer(t, func(w http.ResponseWriter, req ScoreRequest) {
				ev := kp.ScoreEvent(t, 30762, "satsnake", "20", "", "guest scored 20")
				_ = json.NewEncoder(w).Encode(map[string]any{"event": ev})
			})
			ev, err := NewRemoteSigner(srv.URL).SignScore(ctx, NewScoreRequest(model.Player{Name: "guest"}, 20))

			Convey("Then the inner event is used", func() {
				So(err, ShouldBeNil)
				So(ev.Content, ShouldEqual, "guest scored 20")
			})
		})

		Convey("When it answers with an error body", func() {
			srv, _ := signingServer(t, func(w http.ResponseWriter, _ ScoreRequest) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(`{"error":"key unavailable"}`))
			})
			_, err := NewRemoteSigner(srv.URL).SignScore(ctx, NewScoreRequest(model.Player{Name: "a"}, 1))

			Convey("Then signing fails with the message", func() {
				So(errors.Is(err, ErrSigningFailed), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "key unavailable")
			})
		})

		Convey("When it returns an unsigned event", func() {
			srv, _ := signingServer(t, func(w http.ResponseWriter, _ ScoreRequest) {
				_ = json.NewEncoder(w).Encode(nostr.Event{Kind: 30762, Content: "x", Tags: nostr.Tags{}})
			})
			_, err := NewRemoteSigner(srv.URL).SignScore(ctx, NewScoreRequest(model.Player{Name: "a"}, 1))

			Convey("Then signing fails", func() {
				So(errors.Is(err, ErrSigningFailed), ShouldBeTrue)
			})
		})

		Convey("When it is slower than the client timeout", func() {
			srv, _ := signingServer(t, func(w http.ResponseWriter, _ ScoreRequest) {
				time.Sleep(300 * time.Millisecond)
			})
			s := NewRemoteSigner(srv.URL, WithHTTPClient(NewHTTPClient(50*time.Millisecond)))
			_, err := s.SignScore(ctx, NewScoreRequest(model.Player{Name: "a"}, 1))

			Convey("Then signing fails", func() {
				So(errors.Is(err, ErrSigningFailed), ShouldBeTrue)
			})
		})
	})
}

func TestNewScoreRequest(t *testing.T) {
	Convey("Given a player without identity", t, func() {
		req := NewScoreRequest(model.Player{Name: "Bold Otter 3"}, 42)

		Convey("Then the guest placeholder is sent", func() {
			So(req.PlayerPubkey, ShouldEqual, model.GuestIdentity)
			So(req.PlayerName, ShouldEqual, "Bold Otter 3")
			So(req.Score, ShouldEqual, 42)
		})
	})
}
