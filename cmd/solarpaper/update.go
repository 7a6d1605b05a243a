package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/DenizUgur/solarpaper/internal/api"
	"github.com/DenizUgur/solarpaper/internal/catalog"
	"github.com/DenizUgur/solarpaper/internal/fetch"
	"github.com/DenizUgur/solarpaper/internal/horizons"
	"github.com/DenizUgur/solarpaper/internal/metrics"
	"github.com/DenizUgur/solarpaper/internal/params"
	"github.com/DenizUgur/solarpaper/internal/publish"
	"github.com/DenizUgur/solarpaper/internal/ratio"
	"github.com/DenizUgur/solarpaper/internal/sbdb"
	"github.com/DenizUgur/solarpaper/internal/snapshot"
)

const requestTimeout = 2 * time.Minute

var updateFlags struct {
	invalidate bool
	cachePath  string
	configPath string
	categories []string
	exclude    []int
	serve      bool
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fetch trajectories and write a new snapshot",
	Long: `Fetch or compute the trajectory of every object in the selected
categories and write <cache>/orbits.sso.gz.

Examples:
  solarpaper update
  solarpaper update --categories sun_and_planets,jovian_satellites
  solarpaper update --exclude-indexes 8,9,10 --invalidate-cache`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

func init() {
	f := updateCmd.Flags()
	f.BoolVar(&updateFlags.invalidate, "invalidate-cache", false, "rebuild the object catalog")
	f.StringVar(&updateFlags.cachePath, "cache-path", "", "cache and output directory (default $SOLARPAPER_CACHE_DIR)")
	f.StringVar(&updateFlags.configPath, "config", "", "YAML object parameters (default $SOLARPAPER_PARAMS_FILE)")
	f.StringSliceVar(&updateFlags.categories, "categories", nil, "categories to include, in processing order")
	f.IntSliceVar(&updateFlags.exclude, "exclude-indexes", nil, "category indexes to leave out")
	f.BoolVar(&updateFlags.serve, "serve", false, "keep the status server running after the build")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	cfg := loadBuildConfig(logger)
	if updateFlags.cachePath != "" {
		cfg.CacheDir = updateFlags.cachePath
	}
	if updateFlags.configPath != "" {
		cfg.ParamsFile = updateFlags.configPath
	}

	cats, err := selectCategories(updateFlags.categories, updateFlags.exclude)
	if err != nil {
		return err
	}

	now := time.Now()
	pcfg := params.DefaultConfig(now)
	if cfg.ParamsFile != "" {
		if pcfg, err = params.Load(cfg.ParamsFile, now); err != nil {
			return err
		}
	}
	resolver, err := params.NewResolver(pcfg)
	if err != nil {
		return err
	}

	physical := ratio.DefaultPhysical()
	if cfg.PhysicalFile != "" {
		if physical, err = ratio.LoadPhysical(cfg.PhysicalFile); err != nil {
			return err
		}
	}

	logger.Info("build config",
		"cache_dir", cfg.CacheDir,
		"params_file", cfg.ParamsFile,
		"remote_workers", cfg.RemoteWorkers,
		"local_workers", cfg.LocalWorkers,
		"horizons_rate", cfg.HorizonsRate,
		"valid_until", resolver.ValidUntil().Format(time.RFC3339),
	)

	hz := horizons.NewClient(horizons.Config{RateLimit: cfg.HorizonsRate, Timeout: requestTimeout}, logger)
	sb := sbdb.NewClient("", cfg.HorizonsRate, requestTimeout, logger)
	loader := catalog.NewLoader(catalog.NewCache(cfg.CacheDir, cfg.CatalogTTL), hz, sb, resolver, logger)
	orch := fetch.New(fetch.Config{
		RemoteWorkers: cfg.RemoteWorkers,
		LocalWorkers:  cfg.LocalWorkers,
		ErrorDir:      cfg.ErrorDir,
	}, hz, resolver, logger)

	var pub snapshot.Publisher
	if pubCfg := loadPublishConfig(logger); pubCfg.Enabled() {
		u, err := publish.NewUploader(pubCfg, logger)
		if err != nil {
			return err
		}
		pub = u
	}

	builder := snapshot.NewBuilder(snapshot.Config{Dir: cfg.CacheDir, ValidUntil: resolver.ValidUntil()},
		loader, orch, ratio.NewNormalizer(physical), pub, logger)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *api.Server
	if cfg.HTTPAddr != "" {
		srv = api.NewServer(cfg.HTTPAddr, logger, builder)
		go func() {
			logger.Info("starting status server", "addr", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server listen error", "error", err)
			}
		}()
	}

	sum, runErr := builder.Run(ctx, cats, updateFlags.invalidate)
	if runErr == nil {
		printSummary(cmd.OutOrStdout(), sum)
	}

	if cfg.PushURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := metrics.Push(pushCtx, cfg.PushURL, "solarpaper"); err != nil {
			logger.Warn("metrics push failed", "error", err)
		}
		cancel()
	}

	if srv != nil {
		if updateFlags.serve && runErr == nil {
			logger.Info("build finished, serving until interrupted")
			<-ctx.Done()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}
	return runErr
}

func printSummary(w io.Writer, sum snapshot.Summary) {
	fmt.Fprintf(w, "snapshot   %s (%s)\n", sum.Path, humanize.Bytes(uint64(sum.Bytes)))
	fmt.Fprintf(w, "run        %s\n", sum.RunID)
	fmt.Fprintf(w, "valid to   %s\n", sum.ValidUntil.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "requested  %d\n", sum.Requested)
	fmt.Fprintf(w, "skipped    %d\n", sum.Skipped)
	fmt.Fprintf(w, "produced   %d\n", sum.Produced)
	fmt.Fprintf(w, "omitted    %d\n", sum.Omitted)
	fmt.Fprintf(w, "failed     %d\n", len(sum.Failed))
	for _, f := range sum.Failed {
		fmt.Fprintf(w, "  %-8s %-22s %v\n", f.ID, f.Category, f.Err)
	}
	if sum.Published {
		fmt.Fprintln(w, "published  yes")
	}
}
