package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gwi.com/docs-assistant/internal/config"
)

var cfg *config.Config

func main() {
	rootCmd := &cobra.Command{
		Use:   "assistant",
		Short: "Documentation assistant: answers questions about an ingested Word document",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			return err
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCmd(), newIngestCmd(), newChatCmd(), newTokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
