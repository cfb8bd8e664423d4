package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"migra/pkg/config"
	"migra/pkg/importer"
	"migra/pkg/logger"
	"migra/pkg/schema"
	"migra/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Import.QueueURL == "" {
		log.Fatalf("MIGRA_IMPORT_QUEUE_URL is required to run a worker")
	}

	if _, err := logger.Setup(cfg.Log); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	archives, err := storage.Open(cfg.Storage)
	if err != nil {
		slog.Error("failed to open upload storage", "kind", cfg.Storage.Kind, "error", err)
		os.Exit(1)
	}

	store, err := importer.OpenStore(cfg.Import.Driver, cfg.Import.DSN)
	if err != nil {
		slog.Error("failed to open import database", "driver", cfg.Import.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("import database connected", "driver", store.Dialect())

	queue, err := importer.DialQueue(cfg.Import.QueueURL, cfg.Import.Queue, cfg.Import.Prefetch, slog.Default())
	if err != nil {
		slog.Error("failed to connect to import queue", "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	consumer := importer.NewConsumer(archives, store, schema.DefaultCatalog(), slog.Default())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("worker started", "queue", cfg.Import.Queue, "prefetch", cfg.Import.Prefetch)
	if err := queue.Consume(ctx, consumer.Handler()); err != nil {
		slog.Error("worker stopped with error", "error", err)
		return
	}
	slog.Info("worker stopped")
}
