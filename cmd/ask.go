package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var showContext bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(strings.Join(args, " "), showContext)
		},
	}

	cmd.Flags().BoolVar(&showContext, "context", false, "print the retrieved source passages after the answer")
	return cmd
}

func runAsk(question string, showContext bool) error {
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

	reply, err := rt.assistant.Respond(ctx, question, nil,
		func(_ context.Context, fragment string) error {
			fmt.Print(fragment)
			return nil
		})
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}
	fmt.Println()

	if showContext {
		printContext(os.Stdout, reply.Context)
	}
	return nil
}
