package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cssci-tools/jonathan/internal/ingest"
)

// timeRound keeps printed durations readable.
const timeRound = 10 * time.Millisecond

func newIngestCmd() *cobra.Command {
	var (
		processedDir   string
		accessibleBase string
	)

	cmd := &cobra.Command{
		Use:   "ingest <raw-dir>",
		Short: "Index course documents from a raw directory",
		Long: `Ingest walks the raw directory, extracts text from every supported
file, writes processed JSON snapshots, and indexes the chunks.

The expected layout is raw/<course_code>/<document_type>/.../<file>;
semester and assignment directories anywhere in the path classify the
document.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(args[0], processedDir, accessibleBase)
		},
	}

	cmd.Flags().StringVar(&processedDir, "processed-dir", "", "directory for processed JSON snapshots (default: from config)")
	cmd.Flags().StringVar(&accessibleBase, "accessible-base", "", "base URL prefixed to document paths for student-facing links")
	return cmd
}

func runIngest(rawDir, processedDir, accessibleBase string) error {
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

	pipeline := rt.pipeline
	if accessibleBase != "" {
		pipeline, err = ingest.New(ingest.Config{
			Chunker:        rt.chunker,
			Index:          rt.store,
			Logger:         logger,
			AccessibleBase: accessibleBase,
		})
		if err != nil {
			return err
		}
	}

	result, err := pipeline.Run(ctx, rawDir, processedDir)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", rawDir, err)
	}

	fmt.Printf("Ingested %d files (%d chunks) in %s\n", result.FilesAdded, result.ChunksAdded, result.Duration.Round(timeRound))
	if result.FilesSkipped > 0 {
		fmt.Printf("Skipped %d unsupported files\n", result.FilesSkipped)
	}
	if result.FilesFailed > 0 {
		fmt.Printf("Failed %d files (see log)\n", result.FilesFailed)
	}
	return nil
}
