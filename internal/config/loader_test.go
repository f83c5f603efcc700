package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/loftrank/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("LOFT_ADDR", ":8080")
			_ = os.Setenv("LOFT_STORE_DRIVER", "sqlite")
			_ = os.Setenv("LOFT_WEEK_SLOTS", "8")
			_ = os.Setenv("LOFT_QUEUE_SIZE", "64")
			_ = os.Setenv("LOFT_FALLBACK_REFERENCE_SCALE", "2.5")
			_ = os.Setenv("LOFT_CACHE_STANDINGS", "true")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreSQLite)
				convey.So(cfg.WeekSlots, convey.ShouldEqual, 8)
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.FallbackReferenceScale, convey.ShouldEqual, 2.5)
				convey.So(cfg.CacheStandings, convey.ShouldBeTrue)
				convey.So(cfg.CoefficientPlaces, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			tmpFile := createTempConfigFile(`
# season scoring
addr: ":9090"
week_slots: 5
season_week_slots:
  "2019": 3
  "2020": 7
worker_count: 4
redis_addr: "localhost:6379"
coefficient_places: 6
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("LOFT_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.SeasonWeekSlots, convey.ShouldResemble, map[string]int{"2019": 3, "2020": 7})
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "localhost:6379")
				convey.So(cfg.CoefficientPlaces, convey.ShouldEqual, 6)
			})

			convey.Convey("And environment variables override file values", func() {
				_ = os.Setenv("LOFT_ADDR", ":8080")
				_ = os.Setenv("LOFT_WORKER_COUNT", "32")

				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 32)
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "localhost:6379")
			})
		})
	})
}

func TestConfigLoaderEdgeCases(t *testing.T) {
	convey.Convey("Given config loader edge cases", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("LOFT_CONFIG", "/nonexistent/loftrank.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the YAML file empties addr", func() {
			tmpFile := createTempConfigFile(`
addr: ""
worker_count: 24
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("LOFT_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return validation error for empty addr", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the store driver is unknown", func() {
			_ = os.Setenv("LOFT_STORE_DRIVER", "mongo")

			_, err := config.Load(ctx)

			convey.Convey("Then it is rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a number cannot be parsed", func() {
			_ = os.Setenv("LOFT_WEEK_SLOTS", "five")

			_, err := config.Load(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"LOFT_CONFIG",
		"LOFT_ADDR",
		"LOFT_STORE_DRIVER",
		"LOFT_WEEK_SLOTS",
		"LOFT_QUEUE_SIZE",
		"LOFT_WORKER_COUNT",
		"LOFT_FALLBACK_REFERENCE_SCALE",
		"LOFT_CACHE_STANDINGS",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "loftrank-config-*.yaml")
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
