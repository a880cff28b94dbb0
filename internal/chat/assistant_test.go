package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/camilo-ai/camilo/internal/knowledge"
	"github.com/camilo-ai/camilo/internal/prompt"
	"github.com/camilo-ai/camilo/internal/retrieval"
)

func TestStripReferences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no brackets", "plain answer", "plain answer"},
		{"single marker", "I worked at Acme [1] back then.", "I worked at Acme  back then."},
		{"multiple markers", "[1] one [2] two [3]", " one  two "},
		{"surrounding whitespace preserved", "foo [1] bar [2]", "foo  bar "},
		{"non-greedy", "a [x] b [y] c", "a  b  c"},
		{"empty brackets", "a [] b", "a  b"},
		{"unclosed bracket left alone", "a [b c", "a [b c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := StripReferences(tt.in); got != tt.want {
				t.Errorf("StripReferences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	// Idempotence on already-clean text.
	clean := StripReferences("I worked at Acme [1].")
	if StripReferences(clean) != clean {
		t.Error("StripReferences not idempotent")
	}
}

// fakeRetriever returns a canned context.
type fakeRetriever struct {
	context *retrieval.Context
	err     error
}

func (f *fakeRetriever) Fuse(context.Context, []retrieval.Message) (*retrieval.Context, error) {
	return f.context, f.err
}

// fakeCompleter records prompts and returns canned text.
type fakeCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// fakeRunner records loop invocations.
type fakeRunner struct {
	reply string
	runs  int
}

func (f *fakeRunner) Run(_ context.Context, _, _ string) (string, error) {
	f.runs++
	return f.reply, nil
}

type fakeLister struct{ names []string }

func (f *fakeLister) Names() []string { return f.names }

// fakeExchanges records saved exchanges.
type fakeExchanges struct {
	questions []string
	answers   []string
	err       error
}

func (f *fakeExchanges) SaveExchange(_ context.Context, question, answer string) error {
	f.questions = append(f.questions, question)
	f.answers = append(f.answers, answer)
	return f.err
}

func segmentContext() *retrieval.Context {
	return &retrieval.Context{
		Segments: []knowledge.Segment{
			{ID: 50, URL: "https://blog.example/2020/03/acme", Content: "I worked at Acme.", Similarity: 0.9},
		},
	}
}

func newTestAssistant(t *testing.T, cfg Config) *Assistant {
	t.Helper()
	if cfg.Persona == "" {
		cfg.Persona = "You are a clone."
	}
	if cfg.PersonaName == "" {
		cfg.PersonaName = "Shubh"
	}
	cfg.Logger = slog.New(slog.DiscardHandler)
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestRespond_NoContextAbortsBeforeGeneration(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{reply: "should never run"}
	a := newTestAssistant(t, Config{
		Retriever: &fakeRetriever{context: &retrieval.Context{}},
		Completer: completer,
	})

	_, err := a.Respond(context.Background(), "s1", []retrieval.Message{{Content: "hi"}})
	if !errors.Is(err, prompt.ErrNoContext) {
		t.Fatalf("Respond() error = %v, want ErrNoContext", err)
	}
	if len(completer.prompts) != 0 {
		t.Error("generation was invoked despite missing context")
	}
}

func TestRespond_StripsMarkersAndBuildsLinkData(t *testing.T) {
	t.Parallel()

	a := newTestAssistant(t, Config{
		Retriever: &fakeRetriever{context: segmentContext()},
		Completer: &fakeCompleter{reply: "I worked at Acme [1] in 2020."},
	})

	got, err := a.Respond(context.Background(), "s1", []retrieval.Message{{Content: "Where did you work?"}})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if got.Text != "I worked at Acme  in 2020." {
		t.Errorf("Respond() text = %q", got.Text)
	}
	if got.LinkData[50] != "https://blog.example/2020/03/acme" {
		t.Errorf("Respond() linkData = %v", got.LinkData)
	}
}

func TestRespond_SavesExchangeBestEffort(t *testing.T) {
	t.Parallel()

	exchanges := &fakeExchanges{err: errors.New("db down")}
	a := newTestAssistant(t, Config{
		Retriever: &fakeRetriever{context: segmentContext()},
		Completer: &fakeCompleter{reply: "answer"},
		Exchanges: exchanges,
	})

	got, err := a.Respond(context.Background(), "s1", []retrieval.Message{
		{Content: "question"},
	})
	if err != nil {
		t.Fatalf("Respond() error = %v, save failure must not fail the reply", err)
	}
	if got.Text != "answer" {
		t.Errorf("Respond() text = %q", got.Text)
	}
	if len(exchanges.questions) != 1 || exchanges.questions[0] != "question" {
		t.Errorf("saved questions = %v", exchanges.questions)
	}
}

func TestRespond_UsesLoopWhenToolsAvailable(t *testing.T) {
	t.Parallel()

	loop := &fakeRunner{reply: "tool-assisted answer"}
	completer := &fakeCompleter{reply: "plain answer"}
	a := newTestAssistant(t, Config{
		Retriever: &fakeRetriever{context: segmentContext()},
		Completer: completer,
		Loop:      loop,
		Tools:     &fakeLister{names: []string{"get_calendar"}},
	})

	got, err := a.Respond(context.Background(), "s1", []retrieval.Message{{Content: "q"}})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if got.Text != "tool-assisted answer" {
		t.Errorf("Respond() text = %q", got.Text)
	}
	if loop.runs != 1 {
		t.Errorf("loop runs = %d, want 1", loop.runs)
	}
	if len(completer.prompts) != 0 {
		t.Error("completer was used despite available tools")
	}
}

func TestRespond_FallsBackToCompleterWithoutTools(t *testing.T) {
	t.Parallel()

	loop := &fakeRunner{reply: "unused"}
	completer := &fakeCompleter{reply: "plain answer"}
	a := newTestAssistant(t, Config{
		Retriever: &fakeRetriever{context: segmentContext()},
		Completer: completer,
		Loop:      loop,
		Tools:     &fakeLister{},
	})

	got, err := a.Respond(context.Background(), "s1", []retrieval.Message{{Content: "q"}})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if got.Text != "plain answer" || loop.runs != 0 {
		t.Errorf("Respond() = %q, loop runs = %d", got.Text, loop.runs)
	}
}

// fusionEmbedder and fusionSearcher wire a real retrieval engine for
// the end-to-end scenario.
type fusionEmbedder struct{}

func (fusionEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type fusionSearcher struct{ segments []knowledge.Segment }

func (f fusionSearcher) SearchSegments(context.Context, pgvector.Vector, float64, int32) ([]knowledge.Segment, error) {
	return f.segments, nil
}

func (f fusionSearcher) SearchQuestions(context.Context, pgvector.Vector, float64, int32) ([]knowledge.Question, error) {
	return nil, nil
}

func (f fusionSearcher) SearchConversations(context.Context, pgvector.Vector, float64, int32) ([]knowledge.Conversation, error) {
	return nil, nil
}

func TestRespond_EndToEnd(t *testing.T) {
	t.Parallel()

	engine, err := retrieval.NewEngine(retrieval.Config{
		Embedder: fusionEmbedder{},
		Searcher: fusionSearcher{segments: []knowledge.Segment{
			{ID: 50, URL: "https://blog.example/2020/03/acme", Content: "I worked at Acme.", Similarity: 0.9},
		}},
		Logger:        slog.New(slog.DiscardHandler),
		ShadowBanLow:  195,
		ShadowBanHigh: 221,
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	completer := &fakeCompleter{reply: "I was at Acme [1] back in 2020."}
	a := newTestAssistant(t, Config{
		Retriever: engine,
		Completer: completer,
		Now: func() time.Time {
			return time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
		},
	})

	got, err := a.Respond(context.Background(), "s1", []retrieval.Message{
		{Content: "I like hiking"},
		{Content: "Nice!", FromAssistant: true},
		{Content: "Where did you work in 2020?"},
	})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	// Generation invoked exactly once, with the dated segment block and
	// without any tool-availability section.
	if len(completer.prompts) != 1 {
		t.Fatalf("generation invoked %d times, want 1", len(completer.prompts))
	}
	built := completer.prompts[0]
	if !strings.Contains(built, "[March 2020]:") {
		t.Errorf("prompt missing dated block:\n%s", built)
	}
	if strings.Contains(built, "tools available") {
		t.Errorf("prompt advertises tools without a tool backend:\n%s", built)
	}

	if got.Text != "I was at Acme  back in 2020." {
		t.Errorf("Respond() text = %q", got.Text)
	}
	if got.LinkData[50] != "https://blog.example/2020/03/acme" {
		t.Errorf("Respond() linkData = %v", got.LinkData)
	}
}
