// Package assistant implements the retrieval-and-generation
// orchestrator: per question it infers a metadata filter, retrieves
// grounding context from the vector index, assembles the persona
// prompt, and streams the generated answer back to the caller.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cssci-tools/jonathan/internal/chunker"
	"github.com/cssci-tools/jonathan/internal/index"
	"github.com/cssci-tools/jonathan/internal/queryfilter"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultTopK is the number of context chunks retrieved per question.
const DefaultTopK = 3

// apologyMessage is what the user sees when retrieval or generation
// fails; the assistant always answers with a string, never a stack
// trace.
const apologyMessage = "I'm sorry, I couldn't answer that right now. Please try again in a moment."

// Sentinel errors for orchestration failures.
var (
	// ErrRetrieval indicates the context retrieval step failed.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrGeneration indicates the generation backend failed.
	ErrGeneration = errors.New("generation failed")
)

// Turn is one conversation turn. The conversation is owned by the
// calling session layer and passed in on every call; the assistant
// reads it and never mutates it.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ContextRecord is one retrieved grounding chunk, returned alongside
// the answer for citation and display.
type ContextRecord struct {
	Text           string            `json:"text"`
	Metadata       map[string]string `json:"metadata"`
	AccessiblePath string            `json:"accessible_path,omitempty"`
}

// Reply is the complete result of one conversation turn.
type Reply struct {
	Answer  string          `json:"answer"`
	Context []ContextRecord `json:"context"`
}

// StreamFunc receives incremental answer fragments.
type StreamFunc = func(ctx context.Context, fragment string) error

// Retriever is the slice of the vector index the assistant needs.
type Retriever interface {
	Query(ctx context.Context, text string, k int, filter *queryfilter.Filter) ([]index.Result, error)
}

// Generator is the generation collaborator boundary.
type Generator interface {
	GenerateStream(ctx context.Context, system, prompt string, cb StreamFunc) (string, error)
}

// Config carries the assistant's dependencies.
type Config struct {
	Retriever Retriever
	Generator Generator
	Logger    *slog.Logger
	TopK      int // context chunks per question; 0 means DefaultTopK
}

func (cfg Config) validate() error {
	if cfg.Retriever == nil {
		return errors.New("retriever is required")
	}
	if cfg.Generator == nil {
		return errors.New("generator is required")
	}
	return nil
}

// Assistant orchestrates one conversation turn at a time. It is
// stateless; conversation history lives with the caller.
type Assistant struct {
	retriever Retriever
	generator Generator
	logger    *slog.Logger
	topK      int
}

// New creates an Assistant.
func New(cfg Config) (*Assistant, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Assistant{
		retriever: cfg.Retriever,
		generator: cfg.Generator,
		logger:    logger,
		topK:      topK,
	}, nil
}

// Respond runs one full turn: retrieve grounding context for the query,
// then stream the generated answer through cb. history holds the prior
// turns only; the caller appends both the question and the returned
// answer after the stream is fully drained.
//
// Errors propagate to the caller. Retrieval always completes before
// generation starts. Cancellation is cooperative: stop consuming (or
// cancel ctx) and no further fragments arrive, though in-flight backend
// work may still run to completion on the provider side.
func (a *Assistant) Respond(ctx context.Context, query string, history []Turn, cb StreamFunc) (*Reply, error) {
	records, err := a.retrieve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}

	prompt := buildPrompt(query, history, records)

	answer, err := a.generator.GenerateStream(ctx, systemPrompt, prompt, cb)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	return &Reply{Answer: answer, Context: records}, nil
}

// Answer is the batch convenience entry point: it drains the stream
// and converts any failure into a user-visible apology, so the caller
// always gets a string.
func (a *Assistant) Answer(ctx context.Context, query string, history []Turn) string {
	reply, err := a.Respond(ctx, query, history, nil)
	if err != nil {
		a.logger.Error("answering question", "error", err)
		return apologyMessage
	}
	return reply.Answer
}

// retrieve infers the metadata filter and queries the vector index.
func (a *Assistant) retrieve(ctx context.Context, query string) ([]ContextRecord, error) {
	filter := queryfilter.Infer(query)
	if filter != nil {
		a.logger.Debug("inferred metadata filter", "equalities", len(filter.Any))
	}

	results, err := a.retriever.Query(ctx, query, a.topK, filter)
	if err != nil {
		return nil, err
	}

	records := make([]ContextRecord, 0, len(results))
	for _, r := range results {
		records = append(records, ContextRecord{
			Text:           r.Text,
			Metadata:       r.Metadata,
			AccessiblePath: r.Metadata[chunker.MetaAccessiblePath],
		})
	}
	return records, nil
}

// joinContext concatenates the retrieved chunk texts for the prompt.
func joinContext(records []ContextRecord) string {
	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Text
	}
	return strings.Join(texts, "\n---\n")
}
