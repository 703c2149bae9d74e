package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/modforge/internal/config"
	"github.com/jwebster45206/modforge/internal/forge"
	"github.com/jwebster45206/modforge/internal/logger"
	"github.com/jwebster45206/modforge/internal/services"
	"github.com/jwebster45206/modforge/internal/services/queue"
	"github.com/jwebster45206/modforge/internal/storage"
	"github.com/jwebster45206/modforge/internal/worker"
	"github.com/jwebster45206/modforge/pkg/rules"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.RequireProviderKeys(); err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting modforge worker",
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"image_provider", cfg.ImageProvider,
		"model_name", cfg.ModelName,
		"request_timeout", cfg.RequestTimeout)

	rs, err := rules.LoadFile(cfg.RulesFile)
	if err != nil {
		log.Error("Failed to load rules", "error", err, "path", cfg.RulesFile)
		os.Exit(1)
	}

	queueClient, err := queue.NewClient(context.Background(), cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing queue client", "error", err)
		}
	}()
	requestQueue := queue.NewRequestQueue(queueClient)
	log.Info("Queue service initialized successfully")

	store, err := storage.NewRedisStorage(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage connection", "error", err)
		}
	}()
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := store.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage service initialized successfully")

	llm, images, err := services.NewFromConfig(cfg, log)
	if err != nil {
		log.Error("Failed to create model providers", "error", err)
		os.Exit(1)
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer initCancel()
	if err := llm.InitModel(initCtx, cfg.ModelName); err != nil {
		log.Error("Failed to initialize LLM model", "error", err, "model", cfg.ModelName)
		os.Exit(1)
	}
	log.Info("LLM service initialized successfully", "model", cfg.ModelName)

	f := forge.New(llm, images, rs, cfg.RequestTimeout, log)
	f.SetImageConcurrency(cfg.ImageConcurrency)
	processor := worker.NewProcessor(store, f, log)

	// Locks and events share the queue's connection pool.
	w := worker.New(requestQueue, processor, queueClient.GetRedisClient(), log, os.Getenv("WORKER_ID"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Start(); err != nil {
			log.Error("Worker error", "error", err)
		}
	}()

	log.Info("Worker started, waiting for requests...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Worker shutdown signal received")

	w.Stop()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Warn("Worker did not stop in time")
	}

	log.Info("Worker exited")
}
