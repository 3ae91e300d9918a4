// Command volley runs the arrow/minion skirmish and records every tick.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/volleyworks/volley/internal/api"
	"github.com/volleyworks/volley/internal/config"
	"github.com/volleyworks/volley/internal/influx"
	"github.com/volleyworks/volley/internal/logging"
	"github.com/volleyworks/volley/internal/monitor"
	intOtel "github.com/volleyworks/volley/internal/otel"
	"github.com/volleyworks/volley/internal/sim"
	"github.com/volleyworks/volley/internal/storage"
	"github.com/volleyworks/volley/internal/terrain"
	"github.com/volleyworks/volley/internal/worker"
)

// BuildDate can be set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "volley:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("volley", pflag.ContinueOnError)
	if err := config.BindFlags(fs); err != nil {
		return err
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	// A missing config file leaves the defaults and flags in effect.
	if err := config.Load(config.GetString("configDir")); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	logFile, err := os.Create(logging.LogFilePath(logsDir, "volley", start))
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer logFile.Close()

	otelCfg := config.GetOTelConfig()
	var otelWriter io.Writer
	if otelCfg.Enabled {
		otelFile, err := os.Create(logging.LogFilePath(logsDir, "volley.otel", start))
		if err != nil {
			return fmt.Errorf("failed to create otel log file: %w", err)
		}
		defer otelFile.Close()
		otelWriter = otelFile
	}
	provider, err := intOtel.New(ctx, intOtel.FromConfig(otelCfg, otelWriter))
	if err != nil {
		return fmt.Errorf("failed to initialize OTel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(sctx); err != nil {
			fmt.Fprintln(os.Stderr, "volley: otel shutdown:", err)
		}
	}()

	var gelfWriter io.Writer
	var gelfErr error
	if config.GetBool("graylog.enabled") {
		w, err := logging.NewGELFWriter(config.GetString("graylog.address"), "volley")
		if err != nil {
			gelfErr = err
		} else {
			defer w.Close()
			gelfWriter = w
		}
	}

	var current atomic.Pointer[sim.World]
	slogManager := logging.NewSlogManager()
	slogManager.Setup(logging.Options{
		File:     io.MultiWriter(os.Stdout, logFile),
		Level:    config.GetString("logLevel"),
		Provider: provider.LoggerProvider(),
		GELF:     gelfWriter,
		Tick: func() uint64 {
			if w := current.Load(); w != nil {
				return w.Tick()
			}
			return 0
		},
	})
	logger := slogManager.Logger()
	slog.SetDefault(logger)
	defer func() {
		if err := slogManager.Flush(context.Background()); err != nil {
			fmt.Fprintln(os.Stderr, "volley: flushing logs:", err)
		}
	}()
	logger.Info("volley starting", "version", Version, "buildDate", BuildDate, "otel", provider.Enabled())
	if gelfErr != nil {
		logger.Warn("Graylog disabled", "error", gelfErr)
	}

	backend, err := storage.NewBackend(config.GetStorageConfig(), logger)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("Error closing storage", "error", err)
		}
	}()

	metrics, closeMetrics := connectInflux(ctx, logFile, logsDir, logger)
	defer closeMetrics()

	tcfg, err := config.Terrain()
	if err != nil {
		return err
	}
	surface, err := sim.BuildSurface(tcfg)
	if err != nil {
		return fmt.Errorf("failed to build terrain: %w", err)
	}

	simCfg := config.Sim()
	scenario := config.Scenario()
	runID := uuid.NewString()
	world, err := sim.NewWorld(sim.Config{Sim: simCfg, Archer: config.Archer()}, sim.Dependencies{
		Terrain: terrain.NewBatch(surface, simCfg.BigBatchSize, simCfg.Workers),
		Backend: backend,
		Metrics: metrics,
		Session: runID,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	current.Store(world)

	count := sim.Populate(world.Minions(), scenario, surface)
	session := sim.NewSession(runID, scenario, simCfg, count)
	if err := backend.StartSession(session); err != nil {
		world.Close()
		return fmt.Errorf("failed to start session: %w", err)
	}
	logger.Info("Session started",
		"name", session.Name,
		"run", session.RunID,
		"minions", count,
		"ticks", simCfg.Ticks,
		"storage", config.GetString("storage.type"),
		"terrain", tcfg.Type)

	monCfg := config.GetMonitorConfig()
	monitorService := monitor.NewService(monitor.Dependencies{
		World:      world,
		Storage:    world.Worker(),
		Logger:     logger,
		StatusFile: filepath.Join(logsDir, "status.json"),
		Interval:   monCfg.Interval,
		Addr:       monCfg.Addr,
	})
	if err := monitorService.Start(); err != nil {
		logger.Warn("Status monitor not started", "error", err)
	}

	totals, runErr := world.Run(ctx, simCfg.Ticks)
	monitorService.Stop()
	// Drain recording before the session is closed.
	world.Close()

	if err := backend.EndSession(); err != nil {
		logger.Error("Error ending session", "error", err)
	}
	if exp, ok := backend.(storage.Exportable); ok && exp.ExportedFilePath() != "" {
		path := exp.ExportedFilePath()
		logger.Info("Recording written", "path", path)
		uploadRecording(ctx, path, api.Metadata{
			SessionName: session.Name,
			Ticks:       totals.Ticks,
			Duration:    time.Duration(float64(totals.Ticks) * float64(simCfg.DT) * float64(time.Second)),
		}, logger)
	}

	logger.Info("Session ended",
		"ticks", totals.Ticks,
		"skipped", totals.Skipped,
		"attacks", totals.Attacks,
		"rangeExpired", totals.RangeExpired,
		"hitTarget", totals.HitTarget,
		"hitGround", totals.HitGround,
		"spawned", totals.Spawned,
		"minionsKilled", totals.MinionsKilled,
		"duration", time.Since(start))

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// connectInflux returns the tick metrics sink, or nil when InfluxDB is
// disabled or unreachable without a backup file.
func connectInflux(ctx context.Context, logFile io.Writer, logsDir string, logger *slog.Logger) (worker.TickWriter, func()) {
	cfg := config.GetInfluxConfig()
	if !cfg.Enabled {
		return nil, func() {}
	}

	zl := zerolog.New(logFile).With().Timestamp().Str("component", "influx").Logger()
	m := influx.NewManager(cfg, zl, filepath.Join(logsDir, "influx_backup.lp.gz"))
	if err := m.Connect(ctx); err != nil {
		logger.Warn("InfluxDB unavailable, tick metrics disabled", "error", err)
		return nil, func() {}
	}
	logger.Info("InfluxDB tick metrics enabled", "connected", m.IsValid)
	return m, func() {
		if err := m.Close(); err != nil {
			logger.Error("Error closing InfluxDB", "error", err)
		}
	}
}

// uploadRecording sends the recording to the replay server when uploads are
// enabled. Failures are logged; the recording stays on disk.
func uploadRecording(ctx context.Context, path string, meta api.Metadata, logger *slog.Logger) {
	cfg := config.GetUploadConfig()
	if !cfg.Enabled {
		return
	}
	meta.Tag = cfg.Tag

	// The run context may already be cancelled by the signal that ended it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()

	client := api.New(cfg.ServerURL, cfg.APIKey)
	if err := client.Healthcheck(ctx); err != nil {
		logger.Error("Replay server unavailable, recording not uploaded", "error", err, "path", path)
		return
	}
	if err := client.Upload(ctx, path, meta); err != nil {
		logger.Error("Error uploading recording", "error", err, "path", path)
		return
	}
	logger.Info("Recording uploaded", "server", cfg.ServerURL, "path", path)
}
