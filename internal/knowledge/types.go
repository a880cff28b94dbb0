// Package knowledge stores and retrieves the persona's source material:
// blog segments, curated question/answer pairs, and past conversation
// transcripts, each embedded for similarity search.
package knowledge

// Kind identifies which collection a retrieved item came from.
type Kind string

const (
	KindSegment      Kind = "segment"
	KindQuestion     Kind = "question"
	KindConversation Kind = "conversation"
)

// Segment is a paragraph-sized excerpt of a blog article.
type Segment struct {
	ID         int64
	URL        string
	Title      string
	Content    string
	Similarity float64
}

// Question is a curated question/answer pair.
type Question struct {
	ID         int64
	Question   string
	Answer     string
	Similarity float64
}

// ConversationTurn is one utterance inside a stored transcript.
type ConversationTurn struct {
	Speaker string `json:"speaker"`
	Content string `json:"content"`
}

// Conversation is a past conversation transcript.
type Conversation struct {
	ID         int64
	Turns      []ConversationTurn
	Similarity float64
}
