// fakeclinicd serves an in-memory fake of the scheduling backend REST API for
// local development and integration testing.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/harborview-health/clinic-scheduling/internal/config"
	"github.com/harborview-health/clinic-scheduling/internal/fakeclinic"
	"github.com/harborview-health/clinic-scheduling/pkg/logging"
)

func main() {
	// .env is optional; real config comes from the environment
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting fakeclinicd", "env", cfg.Env, "addr", cfg.FakeClinicAddr)

	handler := fakeclinic.NewHandler(logger)

	srv := &http.Server{
		Addr:         cfg.FakeClinicAddr,
		Handler:      handler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down fakeclinicd")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
