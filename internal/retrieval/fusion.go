// Package retrieval turns a short window of recent chat messages into a
// ranked, deduplicated, policy-filtered context set for prompt assembly.
//
// The engine embeds each message in the window, fuses the vectors into a
// single weighted-average query embedding biased toward recent messages,
// queries the three knowledge collections in parallel, merges and ranks
// the candidates, and applies the segment suppression policy before
// cutting to the overall top results.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	"github.com/camilo-ai/camilo/internal/knowledge"
)

// Message is one chat message as supplied by the caller.
type Message struct {
	Content       string
	FromAssistant bool
}

// Context is the fused retrieval output, partitioned by kind. Any list
// may be empty; the prompt layer decides what an empty list means.
type Context struct {
	Segments      []knowledge.Segment
	Questions     []knowledge.Question
	Conversations []knowledge.Conversation
}

// Total returns the number of candidates across all kinds.
func (c *Context) Total() int {
	return len(c.Segments) + len(c.Questions) + len(c.Conversations)
}

// Embedder produces a query vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher provides similarity search over the three knowledge collections.
type Searcher interface {
	SearchSegments(ctx context.Context, embedding pgvector.Vector, threshold float64, limit int32) ([]knowledge.Segment, error)
	SearchQuestions(ctx context.Context, embedding pgvector.Vector, threshold float64, limit int32) ([]knowledge.Question, error)
	SearchConversations(ctx context.Context, embedding pgvector.Vector, threshold float64, limit int32) ([]knowledge.Conversation, error)
}

// Config holds engine parameters. Zero values are replaced with the
// documented defaults at construction.
type Config struct {
	Embedder Embedder
	Searcher Searcher
	Logger   *slog.Logger

	// Threshold is the minimum cosine similarity a candidate must reach.
	Threshold float64
	// HistoryWindow is how many trailing messages participate in
	// retrieval. Zero means the default window.
	HistoryWindow int
	// PerKindLimit caps how many candidates each collection query returns.
	PerKindLimit int32
	// TotalLimit caps the fused output across all kinds combined.
	TotalLimit int
	// ShadowBanLow and ShadowBanHigh bound the suppressed segment id
	// range, inclusive. Applied to segments only.
	ShadowBanLow  int64
	ShadowBanHigh int64
}

// Engine fuses multi-message retrieval into one ranked context set.
type Engine struct {
	embedder Embedder
	searcher Searcher
	logger   *slog.Logger

	threshold     float64
	window        int
	perKindLimit  int32
	totalLimit    int
	shadowBanLow  int64
	shadowBanHigh int64
}

// NewEngine creates a fusion engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if cfg.Searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.02
	}
	if cfg.PerKindLimit == 0 {
		cfg.PerKindLimit = 5
	}
	if cfg.TotalLimit == 0 {
		cfg.TotalLimit = 5
	}
	if cfg.HistoryWindow == 0 {
		cfg.HistoryWindow = historyWindow
	}
	return &Engine{
		embedder:      cfg.Embedder,
		searcher:      cfg.Searcher,
		logger:        logger,
		threshold:     cfg.Threshold,
		window:        cfg.HistoryWindow,
		perKindLimit:  cfg.PerKindLimit,
		totalLimit:    cfg.TotalLimit,
		shadowBanLow:  cfg.ShadowBanLow,
		shadowBanHigh: cfg.ShadowBanHigh,
	}, nil
}

// candidate is one merged retrieval result awaiting ranking.
type candidate struct {
	kind         knowledge.Kind
	similarity   float64
	segment      knowledge.Segment
	question     knowledge.Question
	conversation knowledge.Conversation
}

// Fuse runs the full retrieval pipeline for the given message sequence.
// The most recent message is expected to come from the user; if it does
// not, the violation is logged and retrieval proceeds best-effort.
func (e *Engine) Fuse(ctx context.Context, messages []Message) (*Context, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}
	if messages[len(messages)-1].FromAssistant {
		e.logger.Error("last message is from the assistant, proceeding anyway")
	}

	window := messages
	if len(window) > e.window {
		window = window[len(window)-e.window:]
	}

	combined, err := e.combinedEmbedding(ctx, window)
	if err != nil {
		return nil, err
	}
	vec := pgvector.NewVector(combined)

	var (
		segments      []knowledge.Segment
		questions     []knowledge.Question
		conversations []knowledge.Conversation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		segments, err = e.searcher.SearchSegments(gctx, vec, e.threshold, e.perKindLimit)
		return err
	})
	g.Go(func() error {
		var err error
		questions, err = e.searcher.SearchQuestions(gctx, vec, e.threshold, e.perKindLimit)
		return err
	})
	g.Go(func() error {
		var err error
		conversations, err = e.searcher.SearchConversations(gctx, vec, e.threshold, e.perKindLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]candidate, 0, len(segments)+len(questions)+len(conversations))
	for _, s := range segments {
		if e.shadowBanned(s.ID) {
			continue
		}
		merged = append(merged, candidate{kind: knowledge.KindSegment, similarity: s.Similarity, segment: s})
	}
	for _, q := range questions {
		merged = append(merged, candidate{kind: knowledge.KindQuestion, similarity: q.Similarity, question: q})
	}
	for _, c := range conversations {
		merged = append(merged, candidate{kind: knowledge.KindConversation, similarity: c.Similarity, conversation: c})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].similarity > merged[j].similarity
	})
	if len(merged) > e.totalLimit {
		merged = merged[:e.totalLimit]
	}

	out := &Context{}
	for _, c := range merged {
		switch c.kind {
		case knowledge.KindSegment:
			out.Segments = append(out.Segments, c.segment)
		case knowledge.KindQuestion:
			out.Questions = append(out.Questions, c.question)
		case knowledge.KindConversation:
			out.Conversations = append(out.Conversations, c.conversation)
		}
	}

	e.logger.Debug("context fused",
		"segments", len(out.Segments),
		"questions", len(out.Questions),
		"conversations", len(out.Conversations))
	return out, nil
}

// combinedEmbedding embeds every message in the window concurrently and
// averages the vectors element-wise with position weights, normalized by
// total weight. Recency dominates: the last message has weight 1.0 and
// earlier messages decay per Weight.
func (e *Engine) combinedEmbedding(ctx context.Context, window []Message) ([]float32, error) {
	vectors := make([][]float32, len(window))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range window {
		g.Go(func() error {
			vec, err := e.embedder.Embed(gctx, m.Content)
			if err != nil {
				return err
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := len(vectors[len(vectors)-1])
	combined := make([]float64, dim)
	var totalWeight float64
	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vec), dim)
		}
		// Position from the end: the last message is k=0.
		k := len(vectors) - 1 - i
		w := Weight(k)
		if w == 0 {
			continue
		}
		totalWeight += w
		for d, v := range vec {
			combined[d] += w * float64(v)
		}
	}

	result := make([]float32, dim)
	for d := range combined {
		result[d] = float32(combined[d] / totalWeight)
	}
	return result, nil
}

// shadowBanned reports whether a segment id falls in the suppressed
// range. The range is an opaque configured policy value; a zero range
// (low=high=0) disables suppression.
func (e *Engine) shadowBanned(id int64) bool {
	if e.shadowBanLow == 0 && e.shadowBanHigh == 0 {
		return false
	}
	return id >= e.shadowBanLow && id <= e.shadowBanHigh
}
