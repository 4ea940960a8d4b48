package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/atlekbai/query_compiler/internal/config"
	"github.com/atlekbai/query_compiler/internal/grammar"
	"github.com/atlekbai/query_compiler/internal/handler"
	"github.com/atlekbai/query_compiler/internal/middleware"
	"github.com/atlekbai/query_compiler/internal/query"
	"github.com/atlekbai/query_compiler/internal/schema"
	"github.com/atlekbai/query_compiler/internal/store"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve GET /api/{model} over the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logrus.SetLevel(cfg.Level())

	db, err := store.Open(ctx, cfg.Driver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	registry := schema.NewRegistry()
	if err := registry.Load(ctx, db, cfg.Schemas); err != nil {
		return err
	}
	logrus.WithField("models", registry.ModelCount()).Info("schema registry loaded")

	validator, err := grammar.NewValidator()
	if err != nil {
		return err
	}

	compiler := query.NewCompiler(query.WithOperatorStrategy(cfg.Strategy()))
	h := handler.New(registry, store.New(db, compiler), validator)


	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: newHTTPHandler(h),
	}

	go func() {
		<-ctx.Done()
		logrus.Info("shutting down...")
		srv.Shutdown(context.Background())
	}()

	logrus.WithFields(logrus.Fields{
		"addr":     cfg.Addr(),
		"driver":   cfg.Driver,
		"strategy": cfg.Strategy().String(),
	}).Info("listening")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newHTTPHandler wraps the whole router, so requests matching no route are
// logged and recovered too.
func newHTTPHandler(h *handler.Handler) http.Handler {
	router := mux.NewRouter()
	h.Register(router)
	return middleware.Recovery(middleware.Logging(router))
}
