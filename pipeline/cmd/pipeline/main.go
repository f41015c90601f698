package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/malbeclabs/electionlake/pipeline/pkg/config"
	"github.com/malbeclabs/electionlake/pipeline/pkg/consolidate"
	"github.com/malbeclabs/electionlake/pipeline/pkg/dimension"
	"github.com/malbeclabs/electionlake/pipeline/pkg/discovery"
	"github.com/malbeclabs/electionlake/pipeline/pkg/loader"
	"github.com/malbeclabs/electionlake/pipeline/pkg/metrics"
	"github.com/malbeclabs/electionlake/pipeline/pkg/opsserver"
	"github.com/malbeclabs/electionlake/pipeline/pkg/runner"
	"github.com/malbeclabs/electionlake/utils/pkg/logger"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	logFormatFlag := flag.String("log-format", "text", "log format: text or json")
	envFileFlag := flag.String("env-file", ".env", "optional dotenv file loaded before reading the environment")

	flag.String("data-dir", "", "directory or s3://bucket/prefix holding the extracts (or set DATA_DIR env var)")
	chunkSizeFlag := flag.Int("chunk-size", 0, "rows per chunk (or set CHUNK_SIZE env var)")
	flag.String("db-connection", "", "postgres, mysql or sqlite3 (or set DB_CONNECTION env var)")
	flag.String("fact-sink", "", "relational or clickhouse (or set FACT_SINK env var)")
	flag.String("metrics-addr", "", "address of the metrics and status server, \"off\" to disable (or set METRICS_ADDR env var)")
	migrateFlag := flag.Bool("migrate", false, "apply pending migrations before the run")

	flag.Parse()

	format, err := logger.ParseFormat(*logFormatFlag)
	if err != nil {
		return err
	}
	log := logger.NewWithOptions(logger.Options{Verbose: *verboseFlag, Format: format})

	if err := config.LoadDotEnv(*envFileFlag); err != nil {
		return err
	}
	// Flags given on the command line win over the environment.
	for name, env := range map[string]string{
		"data-dir":      "DATA_DIR",
		"db-connection": "DB_CONNECTION",
		"fact-sink":     "FACT_SINK",
		"metrics-addr":  "METRICS_ADDR",
	} {
		if flag.CommandLine.Changed(name) {
			v, _ := flag.CommandLine.GetString(name)
			os.Setenv(env, v)
		}
	}
	if flag.CommandLine.Changed("chunk-size") {
		os.Setenv("CHUNK_SIZE", fmt.Sprint(*chunkSizeFlag))
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log.Info("pipeline: starting", append(cfg.Redacted(), "version", version, "commit", commit)...)
	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Release: version}); err != nil {
			return fmt.Errorf("failed to init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	backend, err := openBackend(ctx, log, cfg, *migrateFlag)
	if err != nil {
		return err
	}
	defer backend.close()

	runID := runner.NewRunID()
	resolver, err := dimension.NewResolver(dimension.ResolverConfig{
		Logger: log,
		Store:  backend.dimensions,
	})
	if err != nil {
		return fmt.Errorf("failed to create resolver: %w", err)
	}
	ldr, err := loader.New(loader.Config{
		Logger: log,
		Facts:  backend.facts,
		Status: backend.status,
		RunID:  runID,
	})
	if err != nil {
		return fmt.Errorf("failed to create loader: %w", err)
	}
	engine, err := consolidate.NewEngine(consolidate.EngineConfig{
		Logger:   log,
		Resolver: resolver,
		Loader:   ldr,
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	source, err := discovery.New(ctx, log, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}

	r, err := runner.New(runner.Config{
		Logger:  log,
		RunID:   runID,
		Source:  source,
		Engine:  engine,
		Files:   ldr,
		Extract: cfg.Extract,
		OnFileError: func(_ context.Context, file discovery.File, err error) {
			if cfg.SentryDSN == "" {
				return
			}
			sentry.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("run_id", runID)
				scope.SetTag("file", file.Path)
				sentry.CaptureException(err)
			})
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stopOps := context.WithCancel(gctx)
	defer stopOps()

	if cfg.MetricsAddr != "off" {
		ops, err := opsserver.New(opsserver.Config{
			Logger:      log,
			ListenAddr:  cfg.MetricsAddr,
			VersionInfo: opsserver.VersionInfo{Version: version, Commit: commit, Date: date},
			Progress:    r,
			Ping:        backend.ping,
		})
		if err != nil {
			return fmt.Errorf("failed to create ops server: %w", err)
		}
		g.Go(func() error { return ops.Run(runCtx) })
	}

	var report *runner.RunReport
	g.Go(func() error {
		// The ops server lives as long as the run.
		defer stopOps()
		var err error
		report, err = r.Run(gctx)
		return err
	})

	err = g.Wait()
	if report != nil {
		log.Info("pipeline: finished",
			"run_id", runID,
			"files", len(report.Files),
			"failed_files", report.Failed(),
			"lines", report.Lines(),
			"facts", report.FactsLoaded(),
			"cache", resolver.Cache().Stats(),
		)
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		log.Info("pipeline: interrupted", "run_id", runID)
		return nil
	}
	return err
}
