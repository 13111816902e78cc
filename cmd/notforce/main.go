package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/johnwards/notforce/internal/api"
	"github.com/johnwards/notforce/internal/api/admin"
	"github.com/johnwards/notforce/internal/api/bulkv1"
	"github.com/johnwards/notforce/internal/api/bulkv2"
	"github.com/johnwards/notforce/internal/api/rest"
	"github.com/johnwards/notforce/internal/api/search"
	"github.com/johnwards/notforce/internal/bulk"
	"github.com/johnwards/notforce/internal/config"
	"github.com/johnwards/notforce/internal/database"
	"github.com/johnwards/notforce/internal/idgen"
	"github.com/johnwards/notforce/internal/seed"
	"github.com/johnwards/notforce/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	s := store.New(db)
	schemas := seed.Registry()
	ids := idgen.New()
	processor := &bulk.Processor{Records: s.Records, Schemas: schemas, IDs: ids}

	mux := http.NewServeMux()

	// Platform API routes
	rest.RegisterRoutes(mux, s, schemas, ids)
	bulkv2.RegisterRoutes(mux, s, ids, processor)
	bulkv1.RegisterRoutes(mux, s, schemas, ids, processor)
	search.RegisterRoutes(mux, s, schemas)

	// Admin API
	admin.RegisterRoutes(mux, s, schemas)

	// Catch-all: return 404 in the platform error format.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		api.WriteError(w, http.StatusNotFound, api.NewError(api.CodeNotFound,
			fmt.Sprintf("No route found for %s %s", r.Method, r.URL.Path),
		))
	})

	handler := api.Chain(mux,
		api.Recovery(),
		api.RequestID(),
		api.Auth(cfg.AuthToken),
		api.Logging(),
	)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		slog.Info("shutting down server")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting notforce server", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}

	return nil
}
