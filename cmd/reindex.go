package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newReindexCmd() *cobra.Command {
	var yes bool
	var processedDir string

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Wipe the vector index and rebuild it from processed documents",
		Long: `Reindex truncates the chunks table and rebuilds it from the processed
JSON snapshots. This is an administrative operation for schema or
chunking changes; normal semester switching never needs it, queries
filter by metadata instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex(yes, processedDir)
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	cmd.Flags().StringVar(&processedDir, "processed-dir", "", "directory with processed JSON snapshots (default: from config)")
	return cmd
}

func runReindex(yes bool, processedDir string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	if processedDir == "" {
		processedDir = cfg.ProcessedDir
	}

	count, err := rt.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting indexed chunks: %w", err)
	}

	if !yes {
		fmt.Printf("This deletes all %d indexed chunks and rebuilds from %s. Continue? [y/N] ", count, processedDir)
		var answer string
		if _, err := fmt.Scanln(&answer); err != nil || (answer != "y" && answer != "Y") {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := rt.store.Truncate(ctx); err != nil {
		return fmt.Errorf("truncating index: %w", err)
	}

	result, err := rt.pipeline.Reindex(ctx, processedDir)
	if err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}

	fmt.Printf("Reindexed %d documents (%d chunks) in %s\n", result.FilesAdded, result.ChunksAdded, result.Duration.Round(timeRound))
	if result.FilesFailed > 0 {
		fmt.Printf("Failed %d documents (see log)\n", result.FilesFailed)
	}
	return nil
}
