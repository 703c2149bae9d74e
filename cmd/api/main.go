package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/modforge/internal/config"
	"github.com/jwebster45206/modforge/internal/handlers"
	"github.com/jwebster45206/modforge/internal/logger"
	"github.com/jwebster45206/modforge/internal/middleware"
	"github.com/jwebster45206/modforge/internal/services/events"
	"github.com/jwebster45206/modforge/internal/services/queue"
	"github.com/jwebster45206/modforge/internal/storage"
	"github.com/jwebster45206/modforge/pkg/rules"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting modforge API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"auto_fix_default", cfg.AutoFixDefault)

	rs, err := rules.LoadFile(cfg.RulesFile)
	if err != nil {
		log.Error("Failed to load rules", "error", err, "path", cfg.RulesFile)
		os.Exit(1)
	}

	store, err := storage.NewRedisStorage(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create storage", "error", err)
		os.Exit(1)
	}
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := store.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	queueClient, err := queue.NewClient(context.Background(), cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	requestQueue := queue.NewRequestQueue(queueClient)
	broadcaster := events.NewBroadcaster(queueClient.GetRedisClient(), log)

	mux := http.NewServeMux()

	mux.Handle("/health", handlers.NewHealthHandler(store, log))

	sessionHandler := handlers.NewSessionHandler(store, requestQueue, broadcaster, rs, cfg.AutoFixDefault, log)
	mux.Handle("/v1/sessions", sessionHandler)
	mux.Handle("/v1/sessions/", sessionHandler)

	mux.Handle("/v1/requests/", handlers.NewRequestHandler(requestQueue, log))

	documentHandler := handlers.NewDocumentHandler(rs, log)
	mux.Handle("/v1/validate", documentHandler)
	mux.Handle("/v1/reconcile", documentHandler)

	mux.Handle("/v1/events/", handlers.NewEventsHandler(queueClient.GetRedisClient(), log))

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(log, mux),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: the event stream stays open
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := queueClient.Close(); err != nil {
		log.Error("Error closing queue client", "error", err)
	}
	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
