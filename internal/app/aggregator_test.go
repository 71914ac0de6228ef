package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/gamestr/internal/adapters/relay"
	"github.com/okian/gamestr/internal/domain/model"
	"github.com/okian/gamestr/internal/testutil"
)

// stubCollector answers score and profile filters from fixed event lists.
type stubCollector struct {
	mu       sync.Mutex
	scores   []nostr.Event
	profiles []nostr.Event
	complete bool
	filters  []nostr.Filter
	urls     []string
}

func (c *stubCollector) Collect(_ context.Context, url string, f nostr.Filter, _ time.Duration) ([]nostr.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = append(c.filters, f)
	c.urls = append(c.urls, url)
	for _, k := range f.Kinds {
		if k == nostr.KindProfileMetadata {
			return append([]nostr.Event{}, c.profiles...), c.complete
		}
	}
	return append([]nostr.Event{}, c.scores...), c.complete
}

func (c *stubCollector) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.filters)
}

func rawScore(id, game, score, player, content string) nostr.Event {
	tags := nostr.Tags{{"d", game}, {"game", game}}
	if score != "" {
		tags = append(tags, nostr.Tag{"score", score})
	}
	if player != "" {
		tags = append(tags, nostr.Tag{"p", player})
	}
	return nostr.Event{ID: id, Kind: 30762, Tags: tags, Content: content, CreatedAt: nostr.Now()}
}

func newTestAggregator(c Collector) *Aggregator {
	a := NewAggregator(c, AggregatorConfig{
		GameID:         "satsnake",
		ScoreEndpoint:  "wss://scores",
		ScoreTimeout:   time.Second,
		ProfileTimeout: time.Second,
		DefaultPicture: "assets/logo.png",
	})
	a.now = func() time.Time { return time.Unix(1700000000, 0) }
	return a
}

func TestBuildLeaderboard(t *testing.T) {
	Convey("Given an aggregator over a stub collector", t, func() {
		ctx := context.Background()
		c := &stubCollector{complete: true}
		a := newTestAggregator(c)
		filter := nostr.Filter{Kinds: []int{30762}}

		Convey("When scores from several games arrive", func() {
			c.scores = []nostr.Event{
				rawScore("e1", "satsnake", "50", "abc", "Swift Fox scored 50"),
				rawScore("e2", "other", "999", "", "x scored 999"),
				rawScore("e3", "SatSnake", "10", "", "Calm Owl 4 scored 10 on SatSnake"),
			}
			board := a.BuildLeaderboard(ctx, filter, "wss://profiles")

			Convey("Then only this game's scores are ranked in descending order", func() {
				So(board.Status, ShouldEqual, model.StatusReady)
				So(board.Entries, ShouldHaveLength, 2)
				So(board.Entries[0].Score, ShouldEqual, 50)
				So(board.Entries[1].Score, ShouldEqual, 10)
				So(board.Entries[0].Rank, ShouldEqual, 1)
				So(board.Entries[1].Rank, ShouldEqual, 2)
			})

			Convey("Then the guest entry uses the name from its content", func() {
				So(board.Entries[1].Verified, ShouldBeFalse)
				So(board.Entries[1].DisplayName, ShouldEqual, "Calm Owl 4")
				So(board.Entries[1].PictureURL, ShouldEqual, "assets/logo.png")
			})

			Convey("Then profiles are requested only for identified players", func() {
				So(c.calls(), ShouldEqual, 2)
				So(c.filters[1].Authors, ShouldResemble, []string{"abc"})
				So(c.urls[1], ShouldEqual, "wss://profiles")
			})
		})

		Convey("When a score has no p tag and no parsable name", func() {
			c.scores = []nostr.Event{rawScore("e1", "satsnake", "7", "", "new high score")}
			board := a.BuildLeaderboard(ctx, filter, "wss://profiles")

			Convey("Then it renders as an unverified Guest without a profile lookup", func() {
				So(board.Entries, ShouldHaveLength, 1)
				So(board.Entries[0].DisplayName, ShouldEqual, "Guest")
				So(board.Entries[0].Verified, ShouldBeFalse)
				So(c.calls(), ShouldEqual, 1)
			})
		})

		Convey("When the same event arrives twice", func() {
			ev := rawScore("dup", "satsnake", "30", "", "A scored 30")
			c.scores = []nostr.Event{ev, ev}
			board := a.BuildLeaderboard(ctx, filter, "wss://profiles")

			Convey("Then it is ranked once", func() {
				So(board.Entries, ShouldHaveLength, 1)
			})
		})

		Convey("When no score matches", func() {
			c.scores = []nostr.Event{rawScore("e2", "other", "999", "", "")}
			board := a.BuildLeaderboard(ctx, filter, "wss://profiles")

			Convey("Then the board is the empty state, not loading", func() {
				So(board.Status, ShouldEqual, model.StatusEmpty)
				So(board.Entries, ShouldNotBeNil)
				So(board.Entries, ShouldBeEmpty)
				So(board.BuiltAt, ShouldEqual, time.Unix(1700000000, 0))
			})
		})

		Convey("When the score relay times out with partial data", func() {
			c.complete = false
			c.scores = []nostr.Event{rawScore("e1", "satsnake", "5", "", "Z scored 5")}
			board := a.BuildLeaderboard(ctx, filter, "wss://profiles")

			Convey("Then the partial data is still ranked", func() {
				So(board.Entries, ShouldHaveLength, 1)
				So(board.Status, ShouldEqual, model.StatusReady)
			})
		})
	})
}

func TestBuildLeaderboardAgainstRelays(t *testing.T) {
	Convey("Given score and profile relays", t, func() {
		ctx := context.Background()
		signerKey := testutil.NewKeypair(t)
		alice := testutil.NewKeypair(t)
		bob := testutil.NewKeypair(t)

		scores := testutil.NewFakeRelay(testutil.WithStoredEvents(
			signerKey.ScoreEvent(t, 30762, "satsnake", "120", alice.Public, "Alice scored 120"),
			signerKey.ScoreEvent(t, 30762, "satsnake", "300", bob.Public, "Bob scored 300"),
			signerKey.ScoreEvent(t, 30762, "satsnake", "80", "", "Lucky Koi 12 scored 80"),
		))
		defer scores.Close()

		profiles := testutil.NewFakeRelay(testutil.WithStoredEvents(
			alice.ProfileEvent(t, `{"name":"alice","picture":"https://img/alice.png"}`),
			bob.ProfileEvent(t, `{not json`),
		))
		defer profiles.Close()

		a := NewAggregator(relay.NewCollector(), AggregatorConfig{
			GameID:         "satsnake",
			ScoreEndpoint:  scores.URL,
			ScoreTimeout:   2 * time.Second,
			ProfileTimeout: 2 * time.Second,
			DefaultPicture: "assets/logo.png",
		})
		filter := nostr.Filter{
			Kinds:   []int{30762},
			Authors: []string{signerKey.Public},
			Tags:    nostr.TagMap{"d": []string{"satsnake"}},
			Limit:   50,
		}

		board := a.BuildLeaderboard(ctx, filter, profiles.URL)

		Convey("Then entries are ranked and enriched", func() {
			So(board.Entries, ShouldHaveLength, 3)
			So(board.Entries[0].Score, ShouldEqual, 300)
			So(board.Entries[1].Score, ShouldEqual, 120)
			So(board.Entries[2].Score, ShouldEqual, 80)

			So(board.Entries[1].DisplayName, ShouldEqual, "alice")
			So(board.Entries[1].PictureURL, ShouldEqual, "https://img/alice.png")
			So(board.Entries[1].Verified, ShouldBeTrue)
		})

		Convey("Then a malformed profile degrades only its own entry", func() {
			So(board.Entries[0].Verified, ShouldBeFalse)
			So(board.Entries[0].DisplayName, ShouldEqual, "Bob")
			So(board.Entries[2].DisplayName, ShouldEqual, "Lucky Koi 12")
		})

		Convey("Then the profile relay was asked for both players", func() {
			reqs := profiles.Requests()
			So(reqs, ShouldHaveLength, 1)
			So(reqs[0].Authors, ShouldHaveLength, 2)
		})
	})
}

func TestBuildLeaderboardWithSilentProfileRelay(t *testing.T) {
	Convey("Given a profile relay that never ends its stream", t, func() {
		signerKey := testutil.NewKeypair(t)
		alice := testutil.NewKeypair(t)

		scores := testutil.NewFakeRelay(testutil.WithStoredEvents(
			signerKey.ScoreEvent(t, 30762, "satsnake", "42", alice.Public, "Alice scored 42"),
		))
		defer scores.Close()
		profiles := testutil.NewFakeRelay(testutil.WithoutEOSE())
		defer profiles.Close()

		a := NewAggregator(relay.NewCollector(), AggregatorConfig{
			GameID:         "satsnake",
			ScoreEndpoint:  scores.URL,
			ScoreTimeout:   2 * time.Second,
			ProfileTimeout: 150 * time.Millisecond,
			DefaultPicture: "assets/logo.png",
		})

		start := time.Now()
		board := a.BuildLeaderboard(context.Background(), nostr.Filter{Kinds: []int{30762}}, profiles.URL)

		Convey("Then the build finishes after the profile timeout with a fallback name", func() {
			So(time.Since(start), ShouldBeLessThan, 2*time.Second)
			So(board.Entries, ShouldHaveLength, 1)
			So(board.Entries[0].DisplayName, ShouldEqual, "Alice")
			So(board.Entries[0].Verified, ShouldBeFalse)
		})
	})
}
