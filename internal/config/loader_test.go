package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jasonherngwang/peoples-court/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.IndexBackend, convey.ShouldEqual, "memory")
				convey.So(cfg.EmbedDim, convey.ShouldEqual, 256)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("COURT_ADDR", ":8080")
			_ = os.Setenv("COURT_EMBED_DIM", "128")
			_ = os.Setenv("COURT_RETRIEVAL_POOL_SIZE", "40")
			_ = os.Setenv("COURT_RRF_C", "30")
			_ = os.Setenv("COURT_CLASSIFIER_RAW_SCORES", "true")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.EmbedDim, convey.ShouldEqual, 128)
				convey.So(cfg.PoolSize, convey.ShouldEqual, 40)
				convey.So(cfg.RRFC, convey.ShouldEqual, 30)
				convey.So(cfg.ClassifierRawScores, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with a YAML file and env overrides", func() {
			tmpFile := createTempConfigFile(t, `
# corpus settings
addr: ":9090"
ingest_min_score: 100  # stricter floor
embed_dim: 512
index_backend: postgres
database_url: postgres://court@localhost/court
`)
			_ = os.Setenv("COURT_CONFIG", tmpFile)
			_ = os.Setenv("COURT_ADDR", ":7070")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then env wins over file and file wins over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.IngestMinScore, convey.ShouldEqual, 100)
				convey.So(cfg.EmbedDim, convey.ShouldEqual, 512)
				convey.So(cfg.IndexBackend, convey.ShouldEqual, "postgres")
				convey.So(cfg.CommentsPerSubmission, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When loading an explicit file path", func() {
			clearConfigEnvVars()
			tmpFile := createTempConfigFile(t, "retrieval_k: 5\n")

			cfg, err := config.LoadFile(ctx, tmpFile)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.DefaultK, convey.ShouldEqual, 5)
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(t, `invalid: yaml: content: [`)
			_ = os.Setenv("COURT_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("COURT_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("COURT_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("COURT_EMBED_DIM", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"COURT_CONFIG",
		"COURT_ADDR",
		"COURT_EMBED_DIM",
		"COURT_RETRIEVAL_POOL_SIZE",
		"COURT_RRF_C",
		"COURT_CLASSIFIER_RAW_SCORES",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "court.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
