// Package main runs the holder analysis HTTP service.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"solana-holder-scan/internal/app"
	"solana-holder-scan/internal/config"
	"solana-holder-scan/internal/observability"
)

var cfgPath string

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("failed to load .env file")
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "holder-scan-server",
		Short:         "Streams holder analysis of Solana token mints over HTTP",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServer,
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgPath, "config", "", "optional YAML config file")
	flags.String("addr", "", "listen address (default :$PORT or :5000)")
	flags.String("log-level", "info", "log level")
	flags.String("log-format", "json", "log format: json or console")
	flags.String("postgres-dsn", "", "PostgreSQL DSN for the excluded-address list")
	return cmd
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgPath, cmd.Flags())
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}
	logger := observability.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build service")
		return err
	}
	defer a.Close()

	for _, name := range a.Cluster.PoolNames() {
		p, _ := a.Cluster.Pool(name)
		for _, endpoint := range p.Endpoints() {
			logger.Info().Str("pool", name).Str("endpoint", observability.MaskURL(endpoint)).Msg("rpc endpoint configured")
		}
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.Server().Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// no WriteTimeout: analysis streams are long-lived
		IdleTimeout: 120 * time.Second,
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("HTTP server error")
			return err
		}
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal, draining sessions")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown timed out")
		return srv.Close()
	}

	logger.Info().Msg("shutdown complete")
	return nil
}
