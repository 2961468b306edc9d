package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Clark-Hu/seances/internal/app"
	"github.com/Clark-Hu/seances/internal/config"
	httpserver "github.com/Clark-Hu/seances/internal/http"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := log.New(os.Stdout, "[seances] ", log.LstdFlags|log.Lshortfile)

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Printf("close: %v", err)
		}
	}()

	server := httpserver.New(cfg, a.HTTPDeps(), logger)
	logger.Printf("listening on :%s (%d venues, live ratings %t)", cfg.Port, len(cfg.Venues), cfg.EnableLiveLetterboxd)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			log.Printf("server error: %v", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("graceful shutdown error: %v", err)
	}
}
