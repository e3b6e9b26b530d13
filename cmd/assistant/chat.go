package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"gwi.com/docs-assistant/internal/client"
	"gwi.com/docs-assistant/internal/logging"
	"gwi.com/docs-assistant/internal/transcript"
	"gwi.com/docs-assistant/internal/tui"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the terminal chat against a running assistant service",
		RunE: func(cmd *cobra.Command, args []string) error {
			// The screen belongs to the TUI, so logs go to a file.
			log, closer, err := logging.NewFile(cfg.LogLevel, cfg.LogFile)
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			defer closer.Close()

			opts := []client.Option{client.WithTimeout(cfg.RequestTimeout)}
			if cfg.AssistantToken != "" {
				opts = append(opts, client.WithToken(cfg.AssistantToken))
			}
			backend := client.New(cfg.AssistantURL, opts...)

			notifier := tui.NewNotifier()
			store := transcript.NewStore(backend,
				transcript.WithLogger(log),
				transcript.WithOnChange(notifier.Notify),
			)

			log.Info().Str("url", cfg.AssistantURL).Msg("Chat session started")
			p := tea.NewProgram(tui.New(cmd.Context(), store, notifier), tea.WithAltScreen())
			_, runErr := p.Run()

			// Drop unanswered asks but let history deletes reach the service.
			store.Close()
			log.Info().Msg("Chat session ended")
			return runErr
		},
	}
}
