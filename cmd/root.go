// Package cmd wires the CLI: ingest, ask, chat, serve, reindex and
// version subcommands, with interactive chat as the default action.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cssci-tools/jonathan/internal/config"
	"github.com/cssci-tools/jonathan/internal/log"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "jonathan",
		Short: "Jonathan - CSSci course assistant",
		Long: `Jonathan answers questions about CSSci course documents.

It retrieves relevant passages from indexed assignment briefs, manuals
and rubrics, and grounds every answer in them. Running jonathan without
a subcommand starts an interactive chat.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, args)
		},
	}

	root.AddCommand(
		newIngestCmd(),
		newAskCmd(),
		newChatCmd(),
		newServeCmd(),
		newReindexCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute is the entry point called from main.
func Execute() error {
	// Best-effort .env load; a missing file is fine.
	_ = godotenv.Load()

	return NewRootCmd().Execute()
}

// loadConfig loads and validates the configuration shared by all
// subcommands.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. DEBUG in the environment lowers
// the level; logs go to stderr so stdout stays clean for answers.
func newLogger() log.Logger {
	cfg := log.Config{}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	return log.NewWithWriter(os.Stderr, cfg)
}
