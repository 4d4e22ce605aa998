package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cssci-tools/jonathan/internal/assistant"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive question and answer session",
		RunE:  runChat,
	}
}

func runChat(_ *cobra.Command, _ []string) error {
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

	fmt.Println("Jonathan - CSSci course assistant")
	fmt.Println("Ask about assignments, manuals and rubrics. /context shows sources, /clear resets, /exit quits.")
	fmt.Println()

	var history []assistant.Turn
	var lastContext []assistant.ContextRecord

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/exit", "/quit":
			return nil
		case "/clear":
			history = nil
			lastContext = nil
			fmt.Println("Conversation cleared.")
			continue
		case "/context":
			if len(lastContext) == 0 {
				fmt.Println("No retrieved context yet.")
			} else {
				printContext(os.Stdout, lastContext)
			}
			continue
		}

		reply, err := rt.assistant.Respond(ctx, line, history,
			func(_ context.Context, fragment string) error {
				fmt.Print(fragment)
				return nil
			})
		fmt.Println()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("answering question", "error", err)
			fmt.Println("Sorry, something went wrong. Please try again.")
			continue
		}

		history = append(history,
			assistant.Turn{Role: assistant.RoleUser, Content: line},
			assistant.Turn{Role: assistant.RoleAssistant, Content: reply.Answer},
		)
		lastContext = reply.Context
	}
}

// printContext lists the retrieved passages with their source paths.
func printContext(w io.Writer, records []assistant.ContextRecord) {
	fmt.Fprintln(w, "\nSources:")
	for i, r := range records {
		fmt.Fprintf(w, "  [%d] %s\n", i+1, sourceLabel(r))
		text := r.Text
		if len(text) > 200 {
			text = text[:200] + "..."
		}
		fmt.Fprintf(w, "      %s\n", text)
	}
}

func sourceLabel(r assistant.ContextRecord) string {
	if r.AccessiblePath != "" {
		return r.AccessiblePath
	}
	if doc := r.Metadata["source_document"]; doc != "" {
		return doc
	}
	return "unknown source"
}
