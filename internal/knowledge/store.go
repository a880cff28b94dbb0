package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ErrStore indicates a retrieval database failure. Fatal: the pipeline
// cannot produce a grounded reply without its source material.
var ErrStore = errors.New("knowledge store query failed")

// Store provides similarity search over the persona's source collections
// using pgvector cosine distance. Safe for concurrent use.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// SearchSegments returns blog segments whose cosine similarity to the
// query vector meets the threshold, most similar first.
func (s *Store) SearchSegments(ctx context.Context, embedding pgvector.Vector, threshold float64, limit int32) ([]Segment, error) {
	query := `
		SELECT id, url, title, content,
		       1 - (embedding <=> $1) AS similarity
		FROM blog_segments
		WHERE 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, embedding, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: searching segments: %v", ErrStore, err)
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		var seg Segment
		if err := rows.Scan(&seg.ID, &seg.URL, &seg.Title, &seg.Content, &seg.Similarity); err != nil {
			return nil, fmt.Errorf("%w: scanning segment: %v", ErrStore, err)
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating segments: %v", ErrStore, err)
	}

	s.logger.Debug("segment search complete", "found", len(segments), "threshold", threshold)
	return segments, nil
}

// SearchQuestions returns curated question/answer pairs whose cosine
// similarity to the query vector meets the threshold, most similar first.
func (s *Store) SearchQuestions(ctx context.Context, embedding pgvector.Vector, threshold float64, limit int32) ([]Question, error) {
	query := `
		SELECT id, question, answer,
		       1 - (embedding <=> $1) AS similarity
		FROM questions
		WHERE 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, embedding, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: searching questions: %v", ErrStore, err)
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.Question, &q.Answer, &q.Similarity); err != nil {
			return nil, fmt.Errorf("%w: scanning question: %v", ErrStore, err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating questions: %v", ErrStore, err)
	}

	s.logger.Debug("question search complete", "found", len(questions), "threshold", threshold)
	return questions, nil
}

// SearchConversations returns past conversation transcripts whose cosine
// similarity to the query vector meets the threshold, most similar first.
// Turns are stored as JSONB and decoded by pgx directly into the struct.
func (s *Store) SearchConversations(ctx context.Context, embedding pgvector.Vector, threshold float64, limit int32) ([]Conversation, error) {
	query := `
		SELECT id, turns,
		       1 - (embedding <=> $1) AS similarity
		FROM conversations
		WHERE 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, embedding, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: searching conversations: %v", ErrStore, err)
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Turns, &c.Similarity); err != nil {
			return nil, fmt.Errorf("%w: scanning conversation: %v", ErrStore, err)
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating conversations: %v", ErrStore, err)
	}

	s.logger.Debug("conversation search complete", "found", len(conversations), "threshold", threshold)
	return conversations, nil
}

// SaveExchange records a served question/answer pair. Called after the
// reply is finalized; failures here must not fail the reply, so callers
// log and continue.
func (s *Store) SaveExchange(ctx context.Context, question, answer string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages_received (question, answer) VALUES ($1, $2)`,
		question, answer)
	if err != nil {
		return fmt.Errorf("%w: saving exchange: %v", ErrStore, err)
	}
	return nil
}

// AddSegment inserts a blog segment with its embedding. Used by ingestion
// tooling and tests.
func (s *Store) AddSegment(ctx context.Context, url, title, content string, embedding pgvector.Vector) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO blog_segments (url, title, content, embedding)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		url, title, content, embedding).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: adding segment: %v", ErrStore, err)
	}
	return id, nil
}

// AddQuestion inserts a curated question/answer pair with its embedding.
func (s *Store) AddQuestion(ctx context.Context, question, answer string, embedding pgvector.Vector) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO questions (question, answer, embedding)
		 VALUES ($1, $2, $3) RETURNING id`,
		question, answer, embedding).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: adding question: %v", ErrStore, err)
	}
	return id, nil
}

// AddConversation inserts a conversation transcript with its embedding.
func (s *Store) AddConversation(ctx context.Context, turns []ConversationTurn, embedding pgvector.Vector) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (turns, embedding)
		 VALUES ($1, $2) RETURNING id`,
		turns, embedding).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: adding conversation: %v", ErrStore, err)
	}
	return id, nil
}
