package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"gwi.com/docs-assistant/internal/core"
	"gwi.com/docs-assistant/internal/docparser"
	"gwi.com/docs-assistant/internal/logging"
	"gwi.com/docs-assistant/internal/store"
)

func newIngestCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Parse the documentation file, embed its paragraphs and replace the stored chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ValidateServer(); err != nil {
				return err
			}
			if file == "" {
				file = cfg.DocumentPath
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			log := logging.New(cfg.LogLevel, os.Stderr)

			if err := os.MkdirAll(cfg.ImagesDir, 0o755); err != nil {
				return fmt.Errorf("failed to create images dir: %w", err)
			}
			elements, err := docparser.ParseFile(file, cfg.ImagesDir)
			if err != nil {
				return err
			}
			log.Info().Str("file", file).Int("elements", len(elements)).Msg("Document parsed")

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

			n, err := dbStore.IngestElements(ctx, elements, llmService.GetEmbedding)
			if err != nil {
				return fmt.Errorf("data ingestion failed: %w", err)
			}
			log.Info().Int("chunks", n).Msg("Data ingestion complete")
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the .docx file (defaults to DOCUMENT_PATH)")
	return cmd
}
