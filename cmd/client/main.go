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

	"github.com/zhouzirui/careerchat/client/internal/config"
	"github.com/zhouzirui/careerchat/client/internal/handler"
	"github.com/zhouzirui/careerchat/client/internal/service/backend"
	"github.com/zhouzirui/careerchat/client/internal/service/conversation"
	"github.com/zhouzirui/careerchat/client/internal/service/lookup"
	"github.com/zhouzirui/careerchat/client/internal/service/notify"
	"github.com/zhouzirui/careerchat/client/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	backendClient := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.RequestTimeout)
	lookupSvc := lookup.NewService(backendClient, cfg.Backend.SearchTopK)
	store := conversation.NewService()
	hub := notify.NewHub()
	sessionSvc := session.NewService(store, lookupSvc, backendClient, hub)

	log.Printf("using job-search backend at %s", cfg.Backend.BaseURL)

	router := handler.NewRouter(sessionSvc, hub)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("CareerChat client gateway listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
