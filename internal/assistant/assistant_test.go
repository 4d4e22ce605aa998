package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cssci-tools/jonathan/internal/index"
	"github.com/cssci-tools/jonathan/internal/queryfilter"
)

type fakeRetriever struct {
	results    []index.Result
	err        error
	lastText   string
	lastK      int
	lastFilter *queryfilter.Filter
	calls      int
}

func (f *fakeRetriever) Query(_ context.Context, text string, k int, filter *queryfilter.Filter) ([]index.Result, error) {
	f.calls++
	f.lastText = text
	f.lastK = k
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeGenerator struct {
	answer     string
	fragments  []string
	err        error
	lastSystem string
	lastPrompt string
	calls      int
}

func (f *fakeGenerator) GenerateStream(ctx context.Context, system, prompt string, cb StreamFunc) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	for _, frag := range f.fragments {
		if cb != nil {
			if err := cb(ctx, frag); err != nil {
				return "", err
			}
		}
	}
	if f.answer != "" {
		return f.answer, nil
	}
	return strings.Join(f.fragments, ""), nil
}

func newTestAssistant(t *testing.T, r Retriever, g Generator) *Assistant {
	t.Helper()
	a, err := New(Config{Retriever: r, Generator: g})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config{Generator: &fakeGenerator{}}); err == nil {
		t.Error("expected error without retriever")
	}
	if _, err := New(Config{Retriever: &fakeRetriever{}}); err == nil {
		t.Error("expected error without generator")
	}
}

func TestRespondRetrievesBeforeGenerating(t *testing.T) {
	retriever := &fakeRetriever{results: []index.Result{
		{ID: "c1", Text: "Submit the CME report by Friday.", Metadata: map[string]string{
			"semester": "4", "accessible_path": "docs/sem4/cme.pdf",
		}},
	}}
	generator := &fakeGenerator{fragments: []string{"By ", "Friday."}}
	a := newTestAssistant(t, retriever, generator)

	var got []string
	reply, err := a.Respond(context.Background(), "When is the CME report due?", nil,
		func(_ context.Context, fragment string) error {
			got = append(got, fragment)
			return nil
		})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if retriever.calls != 1 || generator.calls != 1 {
		t.Fatalf("calls = %d retriever, %d generator, want 1 each", retriever.calls, generator.calls)
	}
	if reply.Answer != "By Friday." {
		t.Errorf("Answer = %q, want %q", reply.Answer, "By Friday.")
	}
	if strings.Join(got, "") != "By Friday." {
		t.Errorf("streamed fragments = %q", strings.Join(got, ""))
	}
	if len(reply.Context) != 1 {
		t.Fatalf("Context has %d records, want 1", len(reply.Context))
	}
	if reply.Context[0].AccessiblePath != "docs/sem4/cme.pdf" {
		t.Errorf("AccessiblePath = %q", reply.Context[0].AccessiblePath)
	}
	if retriever.lastK != DefaultTopK {
		t.Errorf("k = %d, want %d", retriever.lastK, DefaultTopK)
	}
	if !strings.Contains(generator.lastPrompt, "Submit the CME report by Friday.") {
		t.Errorf("prompt missing retrieved context: %q", generator.lastPrompt)
	}
}

func TestRespondInfersFilterFromQuery(t *testing.T) {
	retriever := &fakeRetriever{}
	a := newTestAssistant(t, retriever, &fakeGenerator{answer: "ok"})

	if _, err := a.Respond(context.Background(), "What is the individual CME assignment in semester 4?", nil, nil); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if retriever.lastFilter == nil {
		t.Fatal("expected an inferred filter for a classifiable query")
	}
	want := queryfilter.Equality{Field: queryfilter.FieldFilterKey, Value: "4_individual_CME"}
	found := false
	for _, eq := range retriever.lastFilter.Any {
		if eq == want {
			found = true
		}
	}
	if !found {
		t.Errorf("filter %+v missing %+v", retriever.lastFilter.Any, want)
	}
}

func TestRespondBypassQueryGetsNilFilter(t *testing.T) {
	retriever := &fakeRetriever{}
	a := newTestAssistant(t, retriever, &fakeGenerator{answer: "ok"})

	if _, err := a.Respond(context.Background(), "Can you tell me about internships in semester 4?", nil, nil); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if retriever.lastFilter != nil {
		t.Errorf("expected nil filter for bypass query, got %+v", retriever.lastFilter)
	}
}

func TestRespondIncludesHistoryInPrompt(t *testing.T) {
	generator := &fakeGenerator{answer: "ok"}
	a := newTestAssistant(t, &fakeRetriever{}, generator)

	history := []Turn{
		{Role: RoleUser, Content: "What is the DSP?"},
		{Role: RoleAssistant, Content: "The Data Science Project."},
	}
	if _, err := a.Respond(context.Background(), "When is it due?", history, nil); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	for _, want := range []string{"user: What is the DSP?", "assistant: The Data Science Project.", "Question: When is it due?"} {
		if !strings.Contains(generator.lastPrompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, generator.lastPrompt)
		}
	}
	if len(history) != 2 {
		t.Errorf("history mutated, len = %d", len(history))
	}
}

func TestRespondLabelsTerminalSemesterContext(t *testing.T) {
	generator := &fakeGenerator{answer: "ok"}
	retriever := &fakeRetriever{results: []index.Result{
		{ID: "c1", Text: "Capstone deliverables.", Metadata: map[string]string{"semester": "6"}},
	}}
	a := newTestAssistant(t, retriever, generator)

	if _, err := a.Respond(context.Background(), "What do I hand in for the capstone?", nil, nil); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !strings.Contains(generator.lastPrompt, "capstone") {
		t.Errorf("prompt missing capstone scope note:\n%s", generator.lastPrompt)
	}

	generator2 := &fakeGenerator{answer: "ok"}
	retriever2 := &fakeRetriever{results: []index.Result{
		{ID: "c2", Text: "Regular work.", Metadata: map[string]string{"semester": "3"}},
	}}
	a2 := newTestAssistant(t, retriever2, generator2)
	if _, err := a2.Respond(context.Background(), "What do I hand in?", nil, nil); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if strings.Contains(generator2.lastPrompt, capstoneScopeNote) {
		t.Errorf("unexpected capstone note for semester 3 context")
	}
}

func TestRespondPropagatesErrors(t *testing.T) {
	retrieverErr := errors.New("pool closed")
	a := newTestAssistant(t, &fakeRetriever{err: retrieverErr}, &fakeGenerator{answer: "ok"})
	if _, err := a.Respond(context.Background(), "q", nil, nil); !errors.Is(err, ErrRetrieval) {
		t.Errorf("err = %v, want ErrRetrieval", err)
	}

	genErr := errors.New("backend down")
	a2 := newTestAssistant(t, &fakeRetriever{}, &fakeGenerator{err: genErr})
	if _, err := a2.Respond(context.Background(), "q", nil, nil); !errors.Is(err, ErrGeneration) {
		t.Errorf("err = %v, want ErrGeneration", err)
	}
}

func TestAnswerConvertsFailuresToApology(t *testing.T) {
	a := newTestAssistant(t, &fakeRetriever{err: errors.New("down")}, &fakeGenerator{answer: "ok"})
	if got := a.Answer(context.Background(), "q", nil); got != apologyMessage {
		t.Errorf("Answer = %q, want apology", got)
	}

	a2 := newTestAssistant(t, &fakeRetriever{}, &fakeGenerator{answer: "fine"})
	if got := a2.Answer(context.Background(), "q", nil); got != "fine" {
		t.Errorf("Answer = %q, want %q", got, "fine")
	}
}

func TestRespondEmptyContextStillAnswers(t *testing.T) {
	generator := &fakeGenerator{answer: "ok"}
	a := newTestAssistant(t, &fakeRetriever{}, generator)

	reply, err := a.Respond(context.Background(), "something obscure", nil, nil)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if len(reply.Context) != 0 {
		t.Errorf("Context = %d records, want 0", len(reply.Context))
	}
	if !strings.Contains(generator.lastPrompt, "No course documents matched") {
		t.Errorf("prompt missing empty-context marker:\n%s", generator.lastPrompt)
	}
}
