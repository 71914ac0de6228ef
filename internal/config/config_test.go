package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/gamestr/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should carry the SatSnake defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.GameID, convey.ShouldEqual, "satsnake")
			convey.So(cfg.ScoreKind, convey.ShouldEqual, 30762)
			convey.So(cfg.ScoreAuthors, convey.ShouldResemble, []string{config.DefaultScoreAuthor})
			convey.So(cfg.PublishRelays, convey.ShouldHaveLength, 3)
			convey.So(cfg.LeaderboardLimit, convey.ShouldEqual, 50)
			convey.So(cfg.DefaultPicture, convey.ShouldEqual, "assets/logo.png")
			convey.So(cfg.ShareTags, convey.ShouldResemble, []string{"SatSnake", "Gamestr"})
		})

		convey.Convey("Then the timeouts default to three seconds", func() {
			convey.So(cfg.PublishTimeout(), convey.ShouldEqual, 3*time.Second)
			convey.So(cfg.ScoreTimeout(), convey.ShouldEqual, 3*time.Second)
			convey.So(cfg.ProfileTimeout(), convey.ShouldEqual, 3*time.Second)
		})

		convey.Convey("Then the defaults validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
