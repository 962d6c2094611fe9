package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poimap-server/handlers"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		if err := a.bootstrap(ctx); err != nil {
			return err
		}
		if err := a.points.SyncIndex(ctx); err != nil {
			logger.Warn("failed to build geo index", zap.Error(err))
		}

		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		routerCfg := handlers.RouterConfig{
			Store:          a.store,
			Auth:           a.auth,
			Users:          a.users,
			Points:         a.points,
			Categories:     a.categories,
			Admin:          a.admin,
			Registry:       registry,
			AllowedOrigins: cfg.AllowedOrigins,
			Logger:         logger,
		}
		if a.bus != nil {
			routerCfg.Events = a.bus
		}

		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handlers.NewRouter(routerCfg),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("environment", cfg.Environment))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
