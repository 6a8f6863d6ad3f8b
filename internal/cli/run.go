package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"feedsky/internal/bluesky"
	"feedsky/internal/cache"
	"feedsky/internal/config"
	"feedsky/internal/database"
	"feedsky/internal/feed"
	"feedsky/internal/imaging"
	"feedsky/internal/opengraph"
	"feedsky/internal/ratelimiter"
	"feedsky/internal/scheduler"

	"github.com/spf13/cobra"
)

const memcachedTimeout = time.Second

var (
	runDryRun bool
	runOnce   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch feeds and publish new entries",
	Long:  "Runs a single pass, or keeps running on SCHEDULE until interrupted.",
	RunE:  runAction,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "log records instead of posting them")
	runCmd.Flags().BoolVar(&runOnce, "once", false, "run a single pass even if SCHEDULE is set")
	rootCmd.AddCommand(runCmd)
}

func runAction(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if runDryRun {
		cfg.DryRun = true
	}
	if runOnce {
		cfg.Schedule = ""
	}

	log := newLogger(os.Stdout, cfg.SlogLevel())

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	runner := newRunner(ctx, cfg, db, log)

	if cfg.Schedule == "" {
		summary, runErr := runner.Run(ctx)
		if runErr != nil {
			return fmt.Errorf("run: %w", runErr)
		}

		log.InfoContext(ctx, "Single run is done",
			"processed", summary.Processed,
			"posted", summary.Posted,
			"dryRun", cfg.DryRun)

		return nil
	}

	return runScheduled(ctx, runner, cfg.Schedule, log)
}

func newRunner(
	ctx context.Context,
	cfg config.Config,
	db *database.Database,
	log *slog.Logger,
) *scheduler.Runner {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var credCache bluesky.CredentialCache

	switch {
	case cfg.MemcachedAddr != "":
		credCache = cache.NewMemcache(cfg.MemcachedAddr, memcachedTimeout, log)
		log.InfoContext(ctx, "Session cache is enabled",
			"backend", "memcached",
			"memcachedAddr", cfg.MemcachedAddr)
	case cfg.Schedule != "":
		credCache = cache.NewMemory(cache.DefaultMemoryEntries)
		log.InfoContext(ctx, "Session cache is enabled",
			"backend", "memory")
	}

	client := bluesky.NewClient(cfg.Host, httpClient, log)
	sessions := bluesky.NewSessionManager(client, credCache, cfg.Handle, cfg.AppPassword, log)
	publisher := bluesky.NewPublisher(
		client,
		opengraph.NewEnricher(httpClient, log),
		imaging.NewAdapter(httpClient, log),
		bluesky.PublisherOptions{Langs: cfg.PostLanguages, DryRun: cfg.DryRun},
		log,
	)

	selector := feed.NewSelector(
		feed.NewFetcher(httpClient, log),
		db,
		cfg.MaxAge(),
		cfg.PostLimit,
		log,
	)

	return scheduler.NewRunner(
		cfg.Feeds,
		selector,
		sessions,
		publisher,
		ratelimiter.New(cfg.PublishInterval, log),
		log,
	)
}

func runScheduled(
	ctx context.Context,
	runner *scheduler.Runner,
	spec string,
	log *slog.Logger,
) error {
	sched := scheduler.New(ctx, runner, spec, log)

	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	log.InfoContext(ctx, "Scheduler is started",
		"spec", spec,
		"timezone", scheduler.Timezone)

	<-ctx.Done()

	log.InfoContext(ctx, "Stopping scheduler",
		"reason", context.Cause(ctx))
	sched.Stop()

	return nil
}
