package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/editgroups/editgroups/internal/handlers"
	"github.com/editgroups/editgroups/internal/middleware"
	"github.com/editgroups/editgroups/internal/services"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only JSON API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		httpServer := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
			Handler:           newRouter(db, logger, cfg.CORSAllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errChan := make(chan error, 1)
		go func() {
			logger.Infof("Starting HTTP server on port %d", cfg.HTTPPort)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
			close(errChan)
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case err := <-errChan:
			return fmt.Errorf("HTTP server error: %w", err)
		case <-sigChan:
		}

		logger.Info("Received shutdown signal, shutting down HTTP server...")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutting down HTTP server: %w", err)
		}
		logger.Info("Shutdown complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// newRouter mounts the health and API routes behind the request id,
// logging and CORS middleware.
func newRouter(db *gorm.DB, logger logrus.FieldLogger, origins []string) http.Handler {
	httpHandler := handlers.NewHTTPHandler(db, logger)
	apiHandler := handlers.NewAPIHandler(services.NewBatchService(db), services.NewToolService(db), logger)

	mux := http.NewServeMux()
	httpHandler.SetupRoutes(mux)
	apiHandler.SetupRoutes(mux)

	cors := middleware.NewCORSMiddleware(origins...)
	return middleware.RequestIDMiddleware(middleware.LoggingMiddleware(logger)(cors.Wrap(mux)))
}
