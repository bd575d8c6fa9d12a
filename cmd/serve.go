package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jayapriya2010/aquaponics-server/internal/api"
	"github.com/jayapriya2010/aquaponics-server/internal/clock"
	"github.com/jayapriya2010/aquaponics-server/internal/config"
	"github.com/jayapriya2010/aquaponics-server/internal/store"
)

var (
	listenAddr    string
	storageDriver string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the aquaponics-server daemon (default command)",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().StringVar(&storageDriver, "storage-driver", "", "storage driver (overrides config)")
	rootCmd.AddCommand(serveCmd)

	// Make serve the default command.
	rootCmd.RunE = runServe
}

func runServe(cmd *cobra.Command, args []string) error {
	setupLogging(logFormat)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	// Apply flag overrides.
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if storageDriver != "" {
		cfg.Storage.Driver = storageDriver
	}
	if cfg.LogFormat != "" && !rootCmd.PersistentFlags().Changed("log-format") {
		setupLogging(cfg.LogFormat)
	}

	slog.Info("starting aquaponics-server",
		"listen_addr", cfg.ListenAddr,
		"storage_driver", cfg.Storage.Driver,
		"buffer_capacity", cfg.Buffer.Capacity,
	)

	// Open the durable backend. The postgres adapter does not dial here, so
	// an unreachable database never prevents startup; readings go to the
	// buffer until the connection maintainer reports the store live.
	var durable store.Durable
	switch cfg.Storage.Driver {
	case "sqlite":
		durable, err = store.NewSQLiteStore(cfg.DSN())
	case "postgres":
		durable, err = store.NewPostgresStore(cfg.DSN(), slog.Default())
	case "memory":
		// Buffer-only operation.
	}
	if err != nil {
		return err
	}

	buffer := store.NewBuffer(cfg.Buffer.Capacity)
	readings := store.NewReadingStore(durable, buffer, clock.System(), slog.Default())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	hub := api.NewHub()
	srv := api.NewServer(readings, hub, slog.Default(), cfg.CORSOrigin)
	srv.SetVersion(Version)
	srv.SetStorageDriver(cfg.Storage.Driver)

	slog.Info("aquaponics-server ready", "addr", cfg.ListenAddr)

	g, gctx := errgroup.WithContext(ctx)
	if durable != nil {
		g.Go(func() error { return durable.Run(gctx) })
	}
	g.Go(func() error { return srv.ListenAndServe(gctx, cfg.ListenAddr) })

	waitErr := g.Wait()
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		slog.Error("aquaponics-server exited with error", "error", waitErr)
	}

	// Always run graceful cleanup, even on error.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	if durable != nil {
		_ = durable.Close()
	}

	slog.Info("aquaponics-server shutdown complete")
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return waitErr
	}
	return nil
}

func setupLogging(format string) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	if format == "text" {
		handler = tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelInfo})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
