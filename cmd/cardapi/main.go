// cardapi serves the card lookup API from a JSON catalog or PostgreSQL, for
// development against a local catalog.
//
// Usage:
//
//	cardapi -catalog cards.json [-watch]
//	cardapi -dsn postgres://... [-import cards.json]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"card-scanner/internal/catalog"
	"card-scanner/internal/config"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to config.toml")
	source := flag.String("catalog", "", "JSON catalog file (overrides config)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides config)")
	listen := flag.String("listen", "", "listen address (overrides config)")
	watch := flag.Bool("watch", false, "reload the JSON catalog when it changes")
	importPath := flag.String("import", "", "upsert a JSON catalog into PostgreSQL before serving")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *source != "" {
		cfg.Catalog.Source = *source
	}
	if *dsn != "" {
		cfg.Catalog.DSN = *dsn
	}
	if *listen != "" {
		cfg.Catalog.Listen = *listen
	}
	if *watch {
		cfg.Catalog.Watch = true
	}

	logger := cfg.Log.Logger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := openStore(ctx, cfg.Catalog, *importPath, logger)
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              cfg.Catalog.Listen,
		Handler:           catalog.NewServer(store, logger).Router(cfg.Catalog.Prefix),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("catalog api listening", "addr", cfg.Catalog.Listen, "prefix", cfg.Catalog.Prefix)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}

// openStore selects PostgreSQL when a DSN is configured and the JSON file
// otherwise. The returned cleanup closes the store and any watcher.
func openStore(ctx context.Context, cfg config.Catalog, importPath string, logger *slog.Logger) (catalog.Store, func(), error) {
	if cfg.DSN != "" {
		pg, err := catalog.OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		if importPath != "" {
			cards, err := catalog.LoadFile(importPath)
			if err != nil {
				pg.Close()
				return nil, nil, err
			}
			if err := pg.Upsert(ctx, cards); err != nil {
				pg.Close()
				return nil, nil, err
			}
			logger.Info("imported catalog", "path", importPath, "cards", len(cards))
		}
		return pg, func() { pg.Close() }, nil
	}

	if cfg.Source == "" {
		return nil, nil, errors.New("no catalog: set -catalog or -dsn")
	}
	if importPath != "" {
		return nil, nil, errors.New("-import requires -dsn")
	}
	cards, err := catalog.LoadFile(cfg.Source)
	if err != nil {
		return nil, nil, err
	}
	mem := catalog.NewMemoryStore(cards...)
	logger.Info("loaded catalog", "path", cfg.Source, "cards", mem.Len())

	if !cfg.Watch {
		return mem, func() {}, nil
	}
	reloader, err := catalog.NewReloader(cfg.Source, mem, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to watch catalog: %w", err)
	}
	reloader.OnReload(func(n int, err error) {
		if err == nil {
			logger.Info("catalog reloaded", "cards", n)
		}
	})
	reloader.Start()
	return mem, func() { reloader.Stop() }, nil
}
