// Package prompt renders the fused retrieval context, chat history,
// persona rules, and mode flags into a single generation prompt.
//
// Assembly is a pure function of its inputs. Sections follow a fixed
// order and a section is omitted entirely, header included, when its
// input is empty. The blog-context section is the exception: it must be
// non-empty, because the persona only answers when grounded.
package prompt

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/camilo-ai/camilo/internal/knowledge"
	"github.com/camilo-ai/camilo/internal/retrieval"
)

// ErrNoContext indicates the fused context holds zero blog segments.
// Fatal: no generation call is made, the caller surfaces a
// cannot-answer condition instead of letting the backend improvise.
var ErrNoContext = errors.New("no relevant context found")

// sectionBreak separates prompt sections.
const sectionBreak = "&&&"

// urlDatePattern matches the /YYYY/MM/ fragment blog URLs carry.
var urlDatePattern = regexp.MustCompile(`/(\d{4})/(\d{2})/`)

// Input carries everything the assembler needs for one prompt.
type Input struct {
	// Persona is the static system instruction block.
	Persona string
	// PersonaName labels the assistant's side of transcripts.
	PersonaName string
	// Messages is the recent message window, most recent last. The last
	// message must be from the user; it is rendered as the current
	// question, never inside the history section.
	Messages []retrieval.Message
	// Context is the fused retrieval output.
	Context *retrieval.Context
	// SafeMode restricts answers to professional topics.
	SafeMode bool
	// ToolNames lists the callable tools, empty when the backend has none.
	ToolNames []string
	// Now supplies the current date. Zero means time.Now.
	Now time.Time
}

// Build assembles the generation prompt. Returns ErrNoContext when the
// fused context has no blog segments.
func Build(in Input) (string, error) {
	if in.Context == nil || len(in.Context.Segments) == 0 {
		return "", ErrNoContext
	}
	if in.PersonaName == "" {
		in.PersonaName = "Assistant"
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	history, question := splitCurrentQuestion(in.Messages)

	var b strings.Builder
	b.WriteString(in.Persona)
	b.WriteString("\n\n")

	b.WriteString(sectionBreak)
	b.WriteString("\nToday's date: ")
	b.WriteString(now.Format("January 2, 2006"))
	b.WriteString("\n\n")

	b.WriteString(sectionBreak)
	b.WriteString("\nContext from the blog:\n")
	b.WriteString(formatSegments(in.Context.Segments))
	b.WriteString("\n\n")

	if len(in.Context.Questions) > 0 {
		b.WriteString(sectionBreak)
		b.WriteString("\nSimilar Questions and Answers. If a question is very close to the current question, replicate the answer very closely as relevant:\n")
		b.WriteString(formatQuestions(in.Context.Questions))
		b.WriteString("\n\n")
	}

	if len(history) > 0 {
		b.WriteString(sectionBreak)
		b.WriteString("\nHere is the conversation history so far:\n")
		b.WriteString(formatHistory(history, in.PersonaName))
		b.WriteString("\n\n")
	}

	if len(in.Context.Conversations) > 0 {
		b.WriteString(sectionBreak)
		fmt.Fprintf(&b, "\nWe found a similar conversation that the real %s has had that might be relevant. If the content is similar follow this conversation history very closely. Especially focus on how %s asks the user questions to clarify the situation before responding:\n",
			in.PersonaName, in.PersonaName)
		b.WriteString(formatConversations(in.Context.Conversations, in.PersonaName))
		b.WriteString("\n\n")
	}

	if in.SafeMode {
		b.WriteString(sectionBreak)
		b.WriteString("\nKeep the conversation strictly professional: stick to work, projects, and career topics. Do not go into depth on personal life, relationships, or dating, even if the context covers them.\n\n")
	}

	if len(in.ToolNames) > 0 {
		b.WriteString(sectionBreak)
		b.WriteString("\nYou have the following tools available: ")
		b.WriteString(strings.Join(in.ToolNames, ", "))
		b.WriteString(". Use them eagerly whenever they would improve your answer, but do not call a tool you do not need.\n\n")
	}

	b.WriteString(sectionBreak)
	fmt.Fprintf(&b, "\nCurrent question that you are answering: %q", question)

	return b.String(), nil
}

// splitCurrentQuestion pops the trailing user message off the window.
// When the window ends with an assistant message the contract upstream
// was violated; the whole window stays in the history section and the
// question is empty, matching the best-effort behavior there.
func splitCurrentQuestion(messages []retrieval.Message) ([]retrieval.Message, string) {
	if len(messages) == 0 {
		return nil, ""
	}
	last := messages[len(messages)-1]
	if last.FromAssistant {
		return messages, ""
	}
	return messages[:len(messages)-1], last.Content
}

// DateFromURL derives a human-readable month/year from the /YYYY/MM/
// path fragment of a blog URL, "Date unknown" when absent or invalid.
func DateFromURL(url string) string {
	m := urlDatePattern.FindStringSubmatch(url)
	if m == nil {
		return "Date unknown"
	}
	t, err := time.Parse("2006/01", m[1]+"/"+m[2])
	if err != nil {
		return "Date unknown"
	}
	return t.Format("January 2006")
}

func formatSegments(segments []knowledge.Segment) string {
	blocks := make([]string, 0, len(segments))
	for _, s := range segments {
		blocks = append(blocks, fmt.Sprintf("[%s]:\n%s", DateFromURL(s.URL), s.Content))
	}
	return strings.Join(blocks, "\n\n")
}

func formatQuestions(questions []knowledge.Question) string {
	blocks := make([]string, 0, len(questions))
	for i, q := range questions {
		blocks = append(blocks, fmt.Sprintf("[Similar Q&A %d]:\nQuestion: %s\nAnswer: %s",
			i+1, q.Question, q.Answer))
	}
	return strings.Join(blocks, "\n\n")
}

func formatHistory(history []retrieval.Message, personaName string) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		speaker := "User"
		if m.FromAssistant {
			speaker = personaName
		}
		lines = append(lines, fmt.Sprintf("%s: %s", speaker, m.Content))
	}
	return strings.Join(lines, "\n")
}

func formatConversations(conversations []knowledge.Conversation, personaName string) string {
	blocks := make([]string, 0, len(conversations))
	for i, conv := range conversations {
		turns := make([]string, 0, len(conv.Turns))
		for _, turn := range conv.Turns {
			speaker := turn.Speaker
			if speaker == "" {
				speaker = personaName
			}
			turns = append(turns, fmt.Sprintf("    %s:\n    %q", speaker, turn.Content))
		}
		blocks = append(blocks, fmt.Sprintf("[Similar Conversation %d]:\n%s",
			i+1, strings.Join(turns, "\n\n")))
	}
	return strings.Join(blocks, "\n\n")
}
