package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/DenizUgur/solarpaper/internal/catalog"
	"github.com/DenizUgur/solarpaper/internal/fetch"
	"github.com/DenizUgur/solarpaper/internal/orbit"
	"github.com/DenizUgur/solarpaper/internal/publish"
)

var logger *slog.Logger

var rootCmd = &cobra.Command{
	Use:   "solarpaper",
	Short: "Build solar-system trajectory snapshots",
	Long: `solarpaper collects trajectories of planets, moons, spacecraft, comets
and asteroids and packs them into a compact binary snapshot.

Remote bodies are fetched from JPL Horizons, small bodies are propagated
locally from SBDB orbital elements.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: loadLogLevel(),
		}))
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(updateCmd, inspectCmd, categoriesCmd)
}

// buildConfig holds the environment-driven settings of a build.
type buildConfig struct {
	CacheDir      string
	ParamsFile    string
	PhysicalFile  string
	ErrorDir      string
	RemoteWorkers int
	LocalWorkers  int
	HorizonsRate  float64
	CatalogTTL    time.Duration
	HTTPAddr      string
	PushURL       string
}

func loadLogLevel() slog.Level {
	var level slog.Level
	if v := os.Getenv("SOLARPAPER_LOG_LEVEL"); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			fmt.Fprintf(os.Stderr, "invalid SOLARPAPER_LOG_LEVEL %q, using info\n", v)
			return slog.LevelInfo
		}
	}
	return level
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "solarpaper")
	}
	return filepath.Join(os.TempDir(), "solarpaper")
}

func loadBuildConfig(logger *slog.Logger) buildConfig {
	cfg := buildConfig{
		CacheDir:      defaultCacheDir(),
		RemoteWorkers: fetch.DefaultRemoteWorkers,
		LocalWorkers:  fetch.DefaultLocalWorkers,
		HorizonsRate:  2,
		CatalogTTL:    catalog.DefaultTTL,
	}

	if v := os.Getenv("SOLARPAPER_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	cfg.ParamsFile = os.Getenv("SOLARPAPER_PARAMS_FILE")
	cfg.PhysicalFile = os.Getenv("SOLARPAPER_PHYSICAL_FILE")
	cfg.ErrorDir = os.Getenv("SOLARPAPER_ERROR_DIR")
	cfg.HTTPAddr = os.Getenv("SOLARPAPER_HTTP_ADDR")
	cfg.PushURL = os.Getenv("SOLARPAPER_PUSHGATEWAY_URL")

	if v := os.Getenv("SOLARPAPER_REMOTE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SOLARPAPER_REMOTE_WORKERS value, using default", "value", v, "default", cfg.RemoteWorkers)
		} else {
			cfg.RemoteWorkers = n
		}
	}

	if v := os.Getenv("SOLARPAPER_LOCAL_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SOLARPAPER_LOCAL_WORKERS value, using default", "value", v, "default", cfg.LocalWorkers)
		} else {
			cfg.LocalWorkers = n
		}
	}

	if v := os.Getenv("SOLARPAPER_HORIZONS_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			logger.Warn("invalid SOLARPAPER_HORIZONS_RATE value, using default", "value", v, "default", cfg.HorizonsRate)
		} else {
			cfg.HorizonsRate = f
		}
	}

	if v := os.Getenv("SOLARPAPER_CATALOG_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			logger.Warn("invalid SOLARPAPER_CATALOG_TTL value, using default", "value", v, "default", cfg.CatalogTTL.String())
		} else {
			cfg.CatalogTTL = d
		}
	}

	return cfg
}

func loadPublishConfig(logger *slog.Logger) publish.Config {
	cfg := publish.Config{
		Endpoint:  os.Getenv("SOLARPAPER_PUBLISH_ENDPOINT"),
		Bucket:    os.Getenv("SOLARPAPER_PUBLISH_BUCKET"),
		Prefix:    os.Getenv("SOLARPAPER_PUBLISH_PREFIX"),
		AccessKey: os.Getenv("SOLARPAPER_PUBLISH_ACCESS_KEY"),
		SecretKey: os.Getenv("SOLARPAPER_PUBLISH_SECRET_KEY"),
		Region:    os.Getenv("SOLARPAPER_PUBLISH_REGION"),
	}

	if v := os.Getenv("SOLARPAPER_PUBLISH_SSL"); v != "" {
		ssl, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid SOLARPAPER_PUBLISH_SSL value, defaulting to false", "value", v)
		} else {
			cfg.UseSSL = ssl
		}
	}

	if cfg.Enabled() {
		logger.Info("publish config", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket, "prefix", cfg.Prefix)
	}
	return cfg
}

// selectCategories resolves the --categories and --exclude-indexes flags.
// Without names every category is selected, in discriminant order.
func selectCategories(names []string, exclude []int) ([]orbit.Category, error) {
	var cats []orbit.Category
	if len(names) == 0 {
		cats = orbit.Categories()
	} else {
		for _, n := range names {
			n = strings.TrimSpace(n)
			if n == "" {
				continue
			}
			c, err := orbit.Parse(n)
			if err != nil {
				return nil, err
			}
			cats = append(cats, c)
		}
	}

	drop := make(map[orbit.Category]bool, len(exclude))
	for _, i := range exclude {
		c, err := orbit.FromIndex(i)
		if err != nil {
			return nil, fmt.Errorf("--exclude-indexes: %w", err)
		}
		drop[c] = true
	}
	out := cats[:0]
	for _, c := range cats {
		if !drop[c] {
			out = append(out, c)
		}
	}
	return out, nil
}
