package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"migra/pkg/cache"
	"migra/pkg/config"
	"migra/pkg/importer"
	"migra/pkg/logger"
	"migra/pkg/schema"
	"migra/pkg/server"
	"migra/pkg/storage"
	"migra/pkg/tenant"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "migra-server",
	Short:   "Migration wizard API server",
	Long:    `Serves the migration wizard: archive upload, analysis, target selection, column mapping and import.`,
	Version: version,
	Run:     runServer,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func runServer(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if _, err := logger.Setup(cfg.Log); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	slog.Info("migra server starting...", "version", version, "env", cfg.Env)

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				slog.Warn("close failed", "error", err)
			}
		}
	}()

	var tenants tenant.Repository
	if cfg.Tenant.PostgresDSN != "" {
		pg, err := tenant.NewPostgres(cfg.Tenant.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect to tenant database", "error", err)
			os.Exit(1)
		}
		closers = append(closers, pg)
		tenants = pg
		slog.Info("tenant repository initialized", "kind", "postgres")
	} else {
		var seed []*tenant.Tenant
		if id := cfg.Wizard.ActiveTenantID; id != "" {
			seed = append(seed, &tenant.Tenant{ID: id, Name: id, CurrencySymbol: tenant.DefaultCurrencySymbol})
		}
		tenants = tenant.NewMemoryRepository(seed...)
		slog.Warn("TENANT_PG_DSN not set, companies are kept in memory")
	}

	archives, err := storage.Open(cfg.Storage)
	if err != nil {
		slog.Error("failed to open upload storage", "kind", cfg.Storage.Kind, "error", err)
		os.Exit(1)
	}
	slog.Info("upload storage initialized", "kind", cfg.Storage.Kind)

	var executor importer.Executor
	if cfg.Import.QueueURL != "" {
		queue, err := importer.DialQueue(cfg.Import.QueueURL, cfg.Import.Queue, cfg.Import.Prefetch, slog.Default())
		if err != nil {
			slog.Error("failed to connect to import queue", "error", err)
			os.Exit(1)
		}
		closers = append(closers, queue)
		executor = importer.NewQueueExecutor(queue, slog.Default())
		slog.Info("imports are queued", "queue", cfg.Import.Queue)
	} else {
		store, err := importer.OpenStore(cfg.Import.Driver, cfg.Import.DSN)
		if err != nil {
			slog.Error("failed to open import database", "driver", cfg.Import.Driver, "error", err)
			os.Exit(1)
		}
		closers = append(closers, store)
		executor = importer.NewSQLExecutor(store, slog.Default())
		slog.Info("imports run inline", "driver", store.Dialect())
	}

	handler := server.NewHandler(server.Options{
		Catalog:         schema.DefaultCatalog(),
		Tenants:         tenants,
		Importer:        executor,
		Archives:        archives,
		Cache:           cache.New(cfg.Analysis.CacheEntries, cfg.Analysis.CacheTTL),
		StrictSniffing:  cfg.Analysis.StrictSniffing,
		MaxArchiveBytes: cfg.Analysis.MaxArchiveBytes,
		ActiveTenantID:  cfg.Wizard.ActiveTenantID,
		SessionTTL:      cfg.Wizard.SessionTTL,
		Logger:          slog.Default(),
	})
	srv := server.NewServer(cfg.Port, handler.Routes(), slog.Default())

	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("server run failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	slog.Info("server stopped")
}
