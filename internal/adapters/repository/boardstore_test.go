package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/gamestr/internal/adapters/repository"
	"github.com/okian/gamestr/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func board(at time.Time, entries ...model.RankedEntry) model.Board {
	status := model.StatusReady
	if len(entries) == 0 {
		status = model.StatusEmpty
	}
	return model.Board{Status: status, Entries: entries, BuiltAt: at}
}

func TestBoardStore(t *testing.T) {
	Convey("Given a new board store", t, func() {
		ctx := context.Background()
		s := repository.NewBoardStore()

		Convey("Then it serves a loading board", func() {
			b := s.Board(ctx)
			So(b.Status, ShouldEqual, model.StatusLoading)
			So(b.Entries, ShouldNotBeNil)
			So(s.Count(ctx), ShouldEqual, 0)
		})

		Convey("When a ranked board is published", func() {
			now := time.Now()
			So(s.Publish(ctx, board(now,
				model.RankedEntry{Rank: 1, EventID: "e1", Identity: "alice", Score: 50},
				model.RankedEntry{Rank: 2, EventID: "e2", Score: 30},
				model.RankedEntry{Rank: 3, EventID: "e3", Identity: "alice", Score: 10},
			)), ShouldBeTrue)

			Convey("Then rank lookups return the best entry per identity", func() {
				e, err := s.Rank(ctx, "alice")
				So(err, ShouldBeNil)
				So(e.Rank, ShouldEqual, 1)
				So(e.Score, ShouldEqual, 50)
			})

			Convey("Then guests are found by event id", func() {
				e, err := s.Rank(ctx, "e2")
				So(err, ShouldBeNil)
				So(e.Rank, ShouldEqual, 2)
			})

			Convey("Then unknown keys are not found", func() {
				_, err := s.Rank(ctx, "bob")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("Then TopN is clamped to the board size", func() {
				top, err := s.TopN(ctx, 2)
				So(err, ShouldBeNil)
				So(top, ShouldHaveLength, 2)
				all, err := s.TopN(ctx, 100)
				So(err, ShouldBeNil)
				So(all, ShouldHaveLength, 3)
			})

			Convey("Then an invalid limit is rejected", func() {
				_, err := s.TopN(ctx, 0)
				So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
			})

			Convey("Then an older board does not replace it", func() {
				So(s.Publish(ctx, board(now.Add(-time.Minute))), ShouldBeFalse)
				So(s.Count(ctx), ShouldEqual, 3)
			})

			Convey("Then a newer empty board replaces it", func() {
				So(s.Publish(ctx, board(now.Add(time.Minute))), ShouldBeTrue)
				So(s.Board(ctx).Status, ShouldEqual, model.StatusEmpty)
				So(s.Board(ctx).Entries, ShouldNotBeNil)
			})
		})

		Convey("When a board without a timestamp is published", func() {
			fixed := time.Unix(1700000000, 0)
			s := repository.NewBoardStore(repository.WithClock(func() time.Time { return fixed }))
			s.Publish(ctx, model.Board{Status: model.StatusEmpty})

			Convey("Then it is stamped by the store clock", func() {
				So(s.Board(ctx).BuiltAt, ShouldEqual, fixed)
				So(s.Board(ctx).Entries, ShouldNotBeNil)
			})
		})

		Convey("When readers and writers race", func() {
			var wg sync.WaitGroup
			for i := 0; i < 4; i++ {
				wg.Add(2)
				go func(i int) {
					defer wg.Done()
					s.Publish(ctx, board(time.Now(), model.RankedEntry{Rank: 1, EventID: "x", Score: i}))
				}(i)
				go func() {
					defer wg.Done()
					_ = s.Board(ctx)
					_, _ = s.TopN(ctx, 10)
				}()
			}
			wg.Wait()
			So(s.Count(ctx), ShouldEqual, 1)
		})
	})
}
