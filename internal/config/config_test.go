package config_test

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/scout/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Storage, convey.ShouldEqual, config.StorageSQLite)
			convey.So(cfg.TopK, convey.ShouldEqual, 20)
			convey.So(cfg.FingerprintPrefix, convey.ShouldEqual, 200)
			convey.So(cfg.NeutralScore, convey.ShouldEqual, 50)
			convey.So(cfg.DiscoverySchedule, convey.ShouldEqual, "@every 10m")
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.MetricsEnabled, convey.ShouldBeTrue)
			convey.So(cfg.MetricsRefreshInterval, convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New(context.Background())

		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = " " }},
			{"zero top_k", func(c *config.Config) { c.TopK = 0 }},
			{"zero prefix", func(c *config.Config) { c.FingerprintPrefix = 0 }},
			{"negative learning rate", func(c *config.Config) { c.LearningRate = -1 }},
			{"zero temperature", func(c *config.Config) { c.Temperature = 0 }},
			{"neutral at 100", func(c *config.Config) { c.NeutralScore = 100 }},
			{"min display above range", func(c *config.Config) { c.MinDisplayScore = 101 }},
			{"zero metrics refresh", func(c *config.Config) { c.MetricsRefreshInterval = 0 }},
			{"unknown storage", func(c *config.Config) { c.Storage = "mongo" }},
			{"postgres without url", func(c *config.Config) { c.Storage = config.StoragePostgres }},
			{"sqlite without path", func(c *config.Config) { c.SQLitePath = "" }},
			{"discovery without feed", func(c *config.Config) { c.AutoDiscovery = true }},
			{"bad schedule", func(c *config.Config) {
				c.AutoDiscovery = true
				c.FeedPath = "feed.yaml"
				c.DiscoverySchedule = "every now and then"
			}},
		}

		for _, tc := range cases {
			convey.Convey("When "+tc.name, func() {
				tc.mutate(cfg)
				err := cfg.Validate()

				convey.Convey("Then it should be rejected as invalid", func() {
					convey.So(err, convey.ShouldNotBeNil)
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}
	})
}
