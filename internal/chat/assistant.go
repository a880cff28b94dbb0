// Package chat orchestrates one assistant reply end to end: context
// retrieval, prompt assembly, generation (with or without tools), reply
// cleanup, and the exchange log.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/camilo-ai/camilo/internal/prompt"
	"github.com/camilo-ai/camilo/internal/retrieval"
)

// Retriever fuses recent messages into a ranked context set.
type Retriever interface {
	Fuse(ctx context.Context, messages []retrieval.Message) (*retrieval.Context, error)
}

// Completer generates a reply from a single prompt, no tools.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Runner drives the tool-augmented generation loop.
type Runner interface {
	Run(ctx context.Context, sessionID, prompt string) (string, error)
}

// ExchangeSaver records served question/answer pairs.
type ExchangeSaver interface {
	SaveExchange(ctx context.Context, question, answer string) error
}

// ToolLister reports the names of the available tools.
type ToolLister interface {
	Names() []string
}

// Reply is the assistant's answer plus the source links behind it.
type Reply struct {
	Text string
	// LinkData maps retrieved segment ids to their source URLs so the
	// caller can render attribution.
	LinkData map[int64]string
}

// Config holds construction parameters for Assistant.
type Config struct {
	Retriever Retriever
	Completer Completer
	Logger    *slog.Logger

	// Loop and Tools enable the tool-calling path. When Tools reports
	// no names the assistant falls back to Completer.
	Loop  Runner
	Tools ToolLister

	// Exchanges, when set, records every served reply. Failures are
	// logged, never surfaced.
	Exchanges ExchangeSaver

	// Persona is the system instruction block; PersonaName labels the
	// assistant's side of transcripts.
	Persona     string
	PersonaName string
	SafeMode    bool

	// HistoryWindow is how many trailing messages appear in the prompt's
	// conversation history. Zero means the default of 4, matching the
	// retrieval window.
	HistoryWindow int

	// Now overrides the clock for prompt assembly. Nil means time.Now.
	Now func() time.Time
}

func (c *Config) validate() error {
	if c.Retriever == nil {
		return fmt.Errorf("retriever is required")
	}
	if c.Completer == nil {
		return fmt.Errorf("completer is required")
	}
	if c.Persona == "" {
		return fmt.Errorf("persona is required")
	}
	return nil
}

// Assistant produces persona replies. Safe for concurrent use.
type Assistant struct {
	cfg    Config
	logger *slog.Logger
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
	if cfg.HistoryWindow == 0 {
		cfg.HistoryWindow = 4
	}
	return &Assistant{cfg: cfg, logger: logger}, nil
}

// Respond produces one reply for the given message sequence. The last
// message is the current question. Retrieval, assembly, or generation
// failures abort the request; a missing context surfaces as
// prompt.ErrNoContext before any generation call is made.
func (a *Assistant) Respond(ctx context.Context, sessionID string, messages []retrieval.Message) (*Reply, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	fused, err := a.cfg.Retriever.Fuse(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	window := messages
	if len(window) > a.cfg.HistoryWindow {
		window = window[len(window)-a.cfg.HistoryWindow:]
	}

	var toolNames []string
	if a.cfg.Loop != nil && a.cfg.Tools != nil {
		toolNames = a.cfg.Tools.Names()
	}

	var now time.Time
	if a.cfg.Now != nil {
		now = a.cfg.Now()
	}

	assembled, err := prompt.Build(prompt.Input{
		Persona:     a.cfg.Persona,
		PersonaName: a.cfg.PersonaName,
		Messages:    window,
		Context:     fused,
		SafeMode:    a.cfg.SafeMode,
		ToolNames:   toolNames,
		Now:         now,
	})
	if err != nil {
		return nil, err
	}

	var raw string
	if len(toolNames) > 0 {
		raw, err = a.cfg.Loop.Run(ctx, sessionID, assembled)
	} else {
		raw, err = a.cfg.Completer.Complete(ctx, assembled)
	}
	if err != nil {
		return nil, err
	}

	reply := &Reply{
		Text:     StripReferences(raw),
		LinkData: make(map[int64]string, len(fused.Segments)),
	}
	for _, seg := range fused.Segments {
		reply.LinkData[seg.ID] = seg.URL
	}

	a.saveExchange(ctx, messages, reply.Text)
	return reply, nil
}

// saveExchange logs the served exchange best-effort.
func (a *Assistant) saveExchange(ctx context.Context, messages []retrieval.Message, answer string) {
	if a.cfg.Exchanges == nil {
		return
	}
	question := lastUserMessage(messages)
	if question == "" {
		return
	}
	if err := a.cfg.Exchanges.SaveExchange(ctx, question, answer); err != nil {
		a.logger.Error("saving exchange failed", "error", err)
	}
}

func lastUserMessage(messages []retrieval.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if !messages[i].FromAssistant {
			return messages[i].Content
		}
	}
	return ""
}
