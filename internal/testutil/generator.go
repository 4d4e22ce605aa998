package testutil

import (
	"context"
	"strings"
	"sync"
)

// GeneratorCall records a single call to MockGenerator.
type GeneratorCall struct {
	System   string
	Prompt   string
	Response string
}

type generatorRule struct {
	pattern  string
	response string
}

// MockGenerator provides scripted generation responses for testing. It
// matches the prompt against registered patterns (substring,
// case-insensitive, first match wins) and streams the matching response
// word by word.
//
// Safe for concurrent use.
type MockGenerator struct {
	mu       sync.Mutex
	rules    []generatorRule
	fallback string
	err      error
	calls    []GeneratorCall
}

// NewMockGenerator creates a mock generator that returns fallback when
// no pattern matches.
func NewMockGenerator(fallback string) *MockGenerator {
	return &MockGenerator{fallback: fallback}
}

// AddResponse registers a pattern-response pair.
func (m *MockGenerator) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, generatorRule{pattern: strings.ToLower(pattern), response: response})
}

// FailWith makes every subsequent call return err.
func (m *MockGenerator) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns a copy of all recorded calls.
func (m *MockGenerator) Calls() []GeneratorCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GeneratorCall(nil), m.calls...)
}

// GenerateStream implements the generation boundary. The response is
// streamed one word at a time so consumers exercise real multi-fragment
// behavior.
func (m *MockGenerator) GenerateStream(ctx context.Context, system, prompt string, cb func(ctx context.Context, fragment string) error) (string, error) {
	m.mu.Lock()
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return "", err
	}
	response := m.fallback
	lower := strings.ToLower(prompt)
	for _, rule := range m.rules {
		if strings.Contains(lower, rule.pattern) {
			response = rule.response
			break
		}
	}
	m.calls = append(m.calls, GeneratorCall{System: system, Prompt: prompt, Response: response})
	m.mu.Unlock()

	if cb != nil {
		words := strings.SplitAfter(response, " ")
		for _, w := range words {
			if err := cb(ctx, w); err != nil {
				return "", err
			}
		}
	}
	return response, nil
}
