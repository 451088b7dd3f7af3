package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eduquery/eduquery/internal/api"
	"github.com/eduquery/eduquery/internal/render"
	"github.com/eduquery/eduquery/internal/workspace"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web page",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, client, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		if !cfg.Log.Development {
			gin.SetMode(gin.ReleaseMode)
		}

		store := workspace.NewStore(client, workspace.Options{
			IdleTTL:      cfg.Session.IdleTTL,
			DismissAfter: cfg.Notify.DismissAfter,
			Buffer:       cfg.Notify.Buffer,
		}, logger)
		defer store.Close()

		ctx, stop := context.WithCancel(context.Background())
		defer stop()
		go store.Run(ctx)

		router, err := api.SetupRouter(store, render.NewRenderer(render.DefaultStyle), api.RouterConfig{
			AllowOrigins: cfg.Server.AllowOrigins,
			CookieName:   cfg.Session.CookieName,
			SessionTTL:   cfg.Session.IdleTTL,
			Upload:       cfg.Upload,
			Page: api.PageConfig{
				Title:       cfg.UI.Title,
				Placeholder: cfg.UI.Placeholder,
			},
		}, logger)
		if err != nil {
			return err
		}

		// Create HTTP server. Writes may wait for a whole backend round trip.
		srv := &http.Server{
			Addr:         cfg.Address(),
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: cfg.Backend.Timeout + 30*time.Second,
			IdleTimeout:  120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("Starting EduQuery server",
				zap.String("address", cfg.Address()),
				zap.String("api_url", client.BaseURL()),
			)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		// Wait for interrupt signal
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case err := <-errCh:
			logger.Error("Failed to start server", zap.Error(err))
			return err
		}

		logger.Info("Shutting down server...")

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", zap.Error(err))
			return err
		}

		logger.Info("Server exited")
		return nil
	},
}
