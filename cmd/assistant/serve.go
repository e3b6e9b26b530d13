package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"gwi.com/docs-assistant/internal/api"
	"gwi.com/docs-assistant/internal/core"
	"gwi.com/docs-assistant/internal/logging"
	"gwi.com/docs-assistant/internal/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP question-answering service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ValidateServer(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	log := logging.New(cfg.LogLevel, os.Stderr)
	if !cfg.AuthEnabled() {
		log.Warn().Msg("JWT_SECRET is not set, API routes are unauthenticated")
	}

	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbStore.Close()

	llmService, err := core.NewLLMService(ctx, cfg.GeminiAPIKey, log)
	if err != nil {
		return err
	}
	defer llmService.Close()

	ragService, err := core.NewRAGService(ctx, dbStore, llmService, log)
	if err != nil {
		return err
	}
	qaService := core.NewQAService(dbStore, ragService, llmService, cfg.HistoryTurns, log)

	apiHandler := api.NewAPIHandler(qaService, cfg.JWTSecret, log)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      api.NewRouter(apiHandler, cfg.ImagesDir, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not listen on %s: %w", srv.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server exited")
	return nil
}
