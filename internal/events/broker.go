// Package events carries out-of-band status updates from the generation
// loop to interested subscribers (the SSE endpoint, the CLI).
//
// Delivery is best-effort: publishing never blocks the generation loop,
// and a slow subscriber drops events rather than stalling a reply.
package events

import (
	"log/slog"
	"sync"
)

// Event type names on the wire.
const (
	TypeText        = "claude_text"
	TypeToolCall    = "tool_call"
	TypeToolSuccess = "tool_success"
	TypeToolError   = "tool_error"
)

// Event is one status update emitted during generation.
type Event struct {
	Type      string         `json:"type"`
	SessionID string         `json:"sessionId"`
	Content   string         `json:"content,omitempty"`
	ToolName  string         `json:"toolName,omitempty"`
	ToolArgs  map[string]any `json:"toolArgs,omitempty"`
	Result    string         `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// subscriberBuffer bounds each subscriber channel.
const subscriberBuffer = 64

// Broker fans events out to per-session subscribers. Safe for
// concurrent use.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan Event
	nextID int
	logger *slog.Logger
}

// NewBroker creates an event broker.
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		subs:   make(map[string]map[int]chan Event),
		logger: logger,
	}
}

// Subscribe registers interest in one session's events. The returned
// cancel function must be called to release the subscription; the
// channel is closed by cancel.
func (b *Broker) Subscribe(sessionID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	id := b.nextID
	b.nextID++

	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[int]chan Event)
	}
	b.subs[sessionID][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sessionSubs, ok := b.subs[sessionID]; ok {
			if _, ok := sessionSubs[id]; ok {
				delete(sessionSubs, id)
				close(ch)
			}
			if len(sessionSubs) == 0 {
				delete(b.subs, sessionID)
			}
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of its session.
// Never blocks: a full subscriber buffer drops the event.
func (b *Broker) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[event.SessionID] {
		select {
		case ch <- event:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				"session_id", event.SessionID, "type", event.Type)
		}
	}
}
