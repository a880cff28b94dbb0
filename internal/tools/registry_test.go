package tools

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/camilo-ai/camilo/internal/llm"
)

func testSchema(name string) llm.ToolSchema {
	return llm.ToolSchema{
		Name:        name,
		Description: "test tool",
		Parameters:  map[string]any{"type": "object"},
	}
}

func TestRegistry_RegisterAndDispatch(t *testing.T) {
	t.Parallel()

	r := NewRegistry(slog.New(slog.DiscardHandler))
	err := r.Register(testSchema("get_calendar"), func(_ context.Context, args map[string]any) (string, error) {
		return "3 events on " + args["date"].(string), nil
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := r.Dispatch(context.Background(), "get_calendar", map[string]any{"date": "2026-09-01"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if got != "3 events on 2026-09-01" {
		t.Errorf("Dispatch() = %q", got)
	}
}

func TestRegistry_DispatchUnknownToolFailsClosed(t *testing.T) {
	t.Parallel()

	r := NewRegistry(slog.New(slog.DiscardHandler))
	_, err := r.Dispatch(context.Background(), "nope", nil)
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("Dispatch() error = %v, want ErrUnknownTool", err)
	}
}

func TestRegistry_RegisterValidation(t *testing.T) {
	t.Parallel()

	r := NewRegistry(slog.New(slog.DiscardHandler))
	noop := func(context.Context, map[string]any) (string, error) { return "", nil }

	if err := r.Register(testSchema(""), noop); err == nil {
		t.Error("Register() with empty name expected error")
	}
	if err := r.Register(testSchema("x"), nil); err == nil {
		t.Error("Register() with nil invoker expected error")
	}
	if err := r.Register(testSchema("x"), noop); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(testSchema("x"), noop); err == nil {
		t.Error("Register() duplicate name expected error")
	}
}

func TestRegistry_SchemasAndNames(t *testing.T) {
	t.Parallel()

	r := NewRegistry(slog.New(slog.DiscardHandler))
	noop := func(context.Context, map[string]any) (string, error) { return "", nil }
	for _, name := range []string{"a", "b", "c"} {
		if err := r.Register(testSchema(name), noop); err != nil {
			t.Fatalf("Register(%q) error = %v", name, err)
		}
	}

	names := r.Names()
	if len(names) != 3 || names[0] != "a" || names[1] != "b" || names[2] != "c" {
		t.Errorf("Names() = %v, want [a b c]", names)
	}
	if len(r.Schemas()) != 3 {
		t.Errorf("Schemas() len = %d, want 3", len(r.Schemas()))
	}
}

func TestSchemaToMap(t *testing.T) {
	t.Parallel()

	if got := schemaToMap(nil); got["type"] != "object" {
		t.Errorf("schemaToMap(nil) = %v", got)
	}

	in := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"date": {Type: "string"},
		},
	}
	got := schemaToMap(in)
	if got["type"] != "object" {
		t.Errorf("schemaToMap() type = %v", got["type"])
	}
	if _, ok := got["properties"]; !ok {
		t.Error("schemaToMap() dropped properties")
	}
}
