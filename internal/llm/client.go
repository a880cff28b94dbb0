// Package llm wraps the Google GenAI SDK behind the two capabilities the
// pipeline needs: text embedding and (optionally tool-calling) generation.
//
// The client is safe for concurrent use and holds the single process-wide
// connection to the backend.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"
)

var (
	// ErrEmbedding indicates an embedding backend failure. Fatal, no retry.
	ErrEmbedding = errors.New("embedding failed")

	// ErrGeneration indicates a generation backend failure. Fatal, no retry:
	// the cost and latency of generation calls make blind retry undesirable.
	ErrGeneration = errors.New("generation failed")
)

const (
	// embedTimeout bounds a single embedding call.
	embedTimeout = 30 * time.Second

	// generateTimeout bounds a single generation call.
	generateTimeout = 120 * time.Second
)

// Config holds construction parameters for Client.
type Config struct {
	APIKey        string
	Model         string // generation model, e.g. "gemini-2.5-flash"
	EmbedderModel string // e.g. "gemini-embedding-001"
	// Dimension truncates embedder output (Matryoshka representation);
	// must match the pgvector column dimensionality.
	Dimension int32
	Logger    *slog.Logger
}

// Client talks to the GenAI backend. Safe for concurrent use.
type Client struct {
	client    *genai.Client
	model     string
	embedder  string
	dimension int32
	logger    *slog.Logger
}

// NewClient creates a Client for the Gemini API backend.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if cfg.EmbedderModel == "" {
		return nil, fmt.Errorf("embedder model is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Client{
		client:    client,
		model:     cfg.Model,
		embedder:  cfg.EmbedderModel,
		dimension: cfg.Dimension,
		logger:    logger,
	}, nil
}

// Embed generates a fixed-dimensionality vector for the given text.
// Errors wrap ErrEmbedding and are not retried here; the caller may
// re-invoke the whole pipeline.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	var cfg *genai.EmbedContentConfig
	if c.dimension > 0 {
		dim := c.dimension
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}

	resp, err := c.client.Models.EmbedContent(ctx, c.embedder,
		genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", ErrEmbedding)
	}

	return resp.Embeddings[0].Values, nil
}

// Complete runs a single prompt through the generation backend with no
// tool schema and returns the text of the response.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrGeneration)
	}
	return text, nil
}

// Generate sends the accumulated message list plus the declared tool
// schemas to the backend and decodes the response into ordered content
// blocks. The block order is exactly the order the backend emitted.
func (c *Client) Generate(ctx context.Context, messages []Message, tools []ToolSchema) (*Turn, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		contents = append(contents, encodeMessage(m))
	}

	var cfg *genai.GenerateContentConfig
	if len(tools) > 0 {
		cfg = &genai.GenerateContentConfig{Tools: encodeTools(tools)}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: response has no candidates", ErrGeneration)
	}

	return decodeTurn(resp.Candidates[0].Content), nil
}

// encodeMessage converts a Message to the SDK content type.
func encodeMessage(m Message) *genai.Content {
	parts := make([]*genai.Part, 0, len(m.Blocks))
	for _, b := range m.Blocks {
		switch {
		case b.Call != nil:
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{Name: b.Call.Name, Args: b.Call.Args},
			})
		case b.Result != nil:
			response := map[string]any{"output": b.Result.Content}
			if b.Result.IsError {
				response = map[string]any{"error": b.Result.Content}
			}
			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{Name: b.Result.Name, Response: response},
			})
		default:
			parts = append(parts, &genai.Part{Text: b.Text})
		}
	}
	return &genai.Content{Role: m.Role, Parts: parts}
}

// encodeTools converts tool schemas to function declarations.
func encodeTools(tools []ToolSchema) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.Parameters,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// decodeTurn converts SDK response parts into content blocks, preserving
// emission order. Parts that are neither text nor function calls are
// dropped.
func decodeTurn(content *genai.Content) *Turn {
	turn := &Turn{}
	for _, part := range content.Parts {
		switch {
		case part.FunctionCall != nil:
			turn.Blocks = append(turn.Blocks, Block{
				Call: &ToolCall{Name: part.FunctionCall.Name, Args: part.FunctionCall.Args},
			})
		case part.Text != "":
			turn.Blocks = append(turn.Blocks, Block{Text: part.Text})
		}
	}
	return turn
}
