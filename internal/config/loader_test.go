package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/gamestr/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.ScoreRelay, convey.ShouldEqual, "wss://relay.damus.io")
				convey.So(cfg.RefreshQueueSize, convey.ShouldEqual, 16)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("GAMESTR_ADDR", ":8080")
			_ = os.Setenv("GAMESTR_PUBLISH_RELAYS", "wss://a.example, wss://b.example,,")
			_ = os.Setenv("GAMESTR_PUBLISH_TIMEOUT_MS", "1500")
			_ = os.Setenv("GAMESTR_VERIFY_SIGNATURES", "true")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.PublishRelays, convey.ShouldResemble, []string{"wss://a.example", "wss://b.example"})
				convey.So(cfg.PublishTimeoutMS, convey.ShouldEqual, 1500)
				convey.So(cfg.VerifySignatures, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
game_id: "tetris"
score_relay: "ws://localhost:7777"
publish_relays:
  - "ws://localhost:7777"
leaderboard_limit: 10
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("GAMESTR_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.GameID, convey.ShouldEqual, "tetris")
				convey.So(cfg.PublishRelays, convey.ShouldResemble, []string{"ws://localhost:7777"})
				convey.So(cfg.LeaderboardLimit, convey.ShouldEqual, 10)
				convey.So(cfg.ProfileRelay, convey.ShouldEqual, "wss://relay.damus.io")
			})
		})

		convey.Convey("When both file and environment variables are set", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
leaderboard_limit: 10
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("GAMESTR_CONFIG", tmpFile)
			_ = os.Setenv("GAMESTR_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.LeaderboardLimit, convey.ShouldEqual, 10)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("GAMESTR_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("GAMESTR_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("GAMESTR_SCORE_TIMEOUT_MS", "soon")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}

func TestConfigValidation(t *testing.T) {
	convey.Convey("Given config validation", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		cases := map[string]string{
			"GAMESTR_ADDR":               "",
			"GAMESTR_PUBLISH_RELAYS":     "",
			"GAMESTR_SCORE_RELAY":        "https://relay.damus.io",
			"GAMESTR_PROFILE_TIMEOUT_MS": "0",
			"GAMESTR_SCORE_KIND":         "-1",
			"GAMESTR_REFRESH_WORKERS":    "0",
		}
		for key, value := range cases {
			convey.Convey("When "+key+" is "+value, func() {
				_ = os.Setenv(key, value)
				defer clearConfigEnvVars()

				cfg, err := config.Load(ctx)

				convey.Convey("Then it should return a validation error", func() {
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
					convey.So(cfg, convey.ShouldBeNil)
				})
			})
		}

		convey.Convey("When addr is empty the message names it", func() {
			_ = os.Setenv("GAMESTR_ADDR", "")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)
			convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
		})
	})
}

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				if key := kv[:i]; len(key) > len("GAMESTR_") && key[:len("GAMESTR_")] == "GAMESTR_" {
					_ = os.Unsetenv(key)
				}
				break
			}
		}
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "gamestr-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
