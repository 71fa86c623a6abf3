package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/scout/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars(t)

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.TopK, convey.ShouldEqual, 20)
				convey.So(cfg.LearningRate, convey.ShouldEqual, 1.0)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			t.Setenv("SCOUT_ADDR", ":8080")
			t.Setenv("SCOUT_TOP_K", "10")
			t.Setenv("SCOUT_STORAGE", "memory")
			t.Setenv("SCOUT_LEARNING_RATE", "0.5")
			t.Setenv("SCOUT_AUTO_DISCOVERY", "true")
			t.Setenv("SCOUT_FEED_PATH", "/tmp/feed.yaml")

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.TopK, convey.ShouldEqual, 10)
				convey.So(cfg.Storage, convey.ShouldEqual, config.StorageMemory)
				convey.So(cfg.LearningRate, convey.ShouldEqual, 0.5)
				convey.So(cfg.AutoDiscovery, convey.ShouldBeTrue)
				convey.So(cfg.FeedPath, convey.ShouldEqual, "/tmp/feed.yaml")
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := writeConfigFile(t, `
addr: ":9090"
storage: memory
top_k: 15
neutral_score: 40
discovery_schedule: "*/5 * * * *"
`)
			cfg, err := config.Load(ctx, path)

			convey.Convey("Then it should load from the file and keep other defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.TopK, convey.ShouldEqual, 15)
				convey.So(cfg.NeutralScore, convey.ShouldEqual, 40)
				convey.So(cfg.DiscoverySchedule, convey.ShouldEqual, "*/5 * * * *")
				convey.So(cfg.FingerprintPrefix, convey.ShouldEqual, 200)
			})
		})

		convey.Convey("When the file path comes from SCOUT_CONFIG and env overrides it", func() {
			path := writeConfigFile(t, `
addr: ":9090"
top_k: 15
`)
			t.Setenv("SCOUT_CONFIG", path)
			t.Setenv("SCOUT_TOP_K", "30")

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then environment variables should win over the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.TopK, convey.ShouldEqual, 30)
			})
		})

		convey.Convey("When loading an invalid YAML file", func() {
			path := writeConfigFile(t, `invalid: yaml: content: [`)
			cfg, err := config.Load(ctx, path)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading a non-existent file", func() {
			cfg, err := config.Load(ctx, "/non/existent/file.yaml")

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When env sets an empty addr", func() {
			t.Setenv("SCOUT_ADDR", "")
			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
			})
		})

		convey.Convey("When metrics settings come from the environment", func() {
			t.Setenv("SCOUT_METRICS_ENABLED", "false")
			t.Setenv("SCOUT_METRICS_REFRESH_INTERVAL", "30s")
			cfg, err := config.Load(ctx, "")

			convey.Convey("Then the duration and switch are decoded", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MetricsEnabled, convey.ShouldBeFalse)
				convey.So(cfg.MetricsRefreshInterval, convey.ShouldEqual, 30*time.Second)
			})
		})

		convey.Convey("When env holds a non-numeric value for a numeric key", func() {
			t.Setenv("SCOUT_TOP_K", "plenty")
			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func clearConfigEnvVars(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				key := kv[:i]
				if len(key) > len(config.EnvPrefix) && key[:len(config.EnvPrefix)] == config.EnvPrefix {
					t.Setenv(key, "")
					_ = os.Unsetenv(key)
				}
				break
			}
		}
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scout.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
