package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/horockey/akv"
	"github.com/horockey/akv/internal/config"
	"github.com/horockey/akv/internal/controller/http_controller"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:           "akvd",
		Short:         "Serves an in-memory KV store persisted in background",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("validating config: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to TOML config, defaults are used if omitted")

	cmd.AddCommand(newCheckConfigCmd())

	return cmd
}

func newCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config <path>",
		Short: "Validates config file and exits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("validating config: %w", err)
			}
			cmd.Println("config is valid")
			return nil
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	lvl, _ := zerolog.ParseLevel(cfg.Log.Level)

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}).
		Level(lvl).
		With().
		Timestamp().
		Str("scope", "akvd").
		Logger()
}

func newBackend(cfg *config.Config, logger zerolog.Logger) (akv.Backend, error) {
	logger = logger.With().Str("subscope", cfg.Store.Backend+"_backend").Logger()

	switch cfg.Store.Backend {
	case config.BackendFile:
		return akv.NewFileBackend(cfg.Store.Dir, logger, akv.WithSync(cfg.Store.Sync))
	case config.BackendBadger:
		return akv.NewBadgerBackend(cfg.Store.Dir, logger)
	case config.BackendBolt:
		if err := os.MkdirAll(cfg.Store.Dir, 0o755); err != nil { //nolint: mnd
			return nil, fmt.Errorf("creating dir: %w", err)
		}
		return akv.NewBoltBackend(filepath.Join(cfg.Store.Dir, "akv.db"), logger)
	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Store.Backend)
	}
}

func run(ctx context.Context, cfg *config.Config) (resErr error) {
	logger := newLogger(cfg)

	backend, err := newBackend(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating backend: %w", err)
	}

	st, err := akv.OpenWithBackend(
		backend,
		akv.WithLogger(logger.With().Str("subscope", "store").Logger()),
		akv.WithFlushInterval(cfg.Store.FlushInterval),
		akv.WithQueueSize(cfg.Store.QueueSize),
		akv.WithShutdownTimeout(cfg.Store.ShutdownTimeout),
	)
	if err != nil {
		_ = backend.Close()
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			resErr = errors.Join(resErr, fmt.Errorf("closing store: %w", err))
		}
	}()

	ctrl := http_controller.New(
		cfg.HTTP.Listen,
		cfg.HTTP.APIKey,
		st,
		logger.With().Str("subscope", "http_controller").Logger(),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(st.Metrics()...)
	reg.MustRegister(ctrl.Metrics()...)
	ctrl.Mount("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("running http controller: %w", err)
	}

	logger.Info().Msg("shutting down")

	return nil
}
