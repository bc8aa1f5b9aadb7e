// Package cli holds the start-up and shutdown plumbing shared by the
// budgetwise commands.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"budgetwise/internal/backend"
	"budgetwise/internal/config"
	"budgetwise/internal/log"
)

// Role selects which configuration checks a command needs.
type Role int

const (
	RoleServer Role = iota
	RoleWorker
)

// Bootstrap loads .env and the environment, builds the process logger and
// validates the configuration for role. It exits when the configuration is
// unusable.
func Bootstrap(role Role) (*config.Config, *log.Logger) {
	config.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Failed to load configuration", log.FieldError, err)
		os.Exit(1)
	}

	logger := SetupLogger(cfg)
	validate := cfg.Validate
	if role == RoleWorker {
		validate = cfg.ValidateWorker
	}
	if err := validate(); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldError, err,
			"error_type", log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg, logger
}

// SetupLogger builds the logger described by cfg and installs it as the
// slog default.
func SetupLogger(cfg *config.Config) *log.Logger {
	lc := log.DefaultConfig()
	lc.Level = log.ParseLevel(cfg.LogLevel)
	if cfg.LogFormat == string(log.FormatJSON) {
		lc.Format = log.FormatJSON
	}
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// OpenStore opens the configured store or exits.
func OpenStore(ctx context.Context, cfg *config.Config, logger *log.Logger) *backend.Opened {
	opts, err := backend.OptionsFrom(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.Open(ctx, opts, logger)
	if err != nil {
		logger.Error("Failed to open store",
			log.FieldError, err,
			"backend", opts.Type.String(),
			"error_type", log.ErrorTypeDatabase)
		os.Exit(1)
	}
	return res
}

// GracefulShutdown cancels the returned context on a termination signal or when
// parent ends, then runs cleanup with a context bounded by timeout. done is
// closed once cleanup has returned.
func GracefulShutdown(parent context.Context, logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached", log.FieldOperation, log.OpShutdown)
			return
		}
		logger.Info("Shutdown complete", log.FieldOperation, log.OpShutdown)
	}()

	return ctx, done
}
