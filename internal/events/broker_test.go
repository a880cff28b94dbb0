package events

import (
	"log/slog"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBroker_PublishReachesSessionSubscribers(t *testing.T) {
	t.Parallel()

	b := NewBroker(slog.New(slog.DiscardHandler))
	ch, cancel := b.Subscribe("s1")
	defer cancel()

	b.Publish(Event{Type: TypeText, SessionID: "s1", Content: "hello"})

	got := <-ch
	if got.Type != TypeText || got.Content != "hello" {
		t.Errorf("received %+v, want claude_text/hello", got)
	}
}

func TestBroker_SessionIsolation(t *testing.T) {
	t.Parallel()

	b := NewBroker(slog.New(slog.DiscardHandler))
	ch1, cancel1 := b.Subscribe("s1")
	defer cancel1()
	ch2, cancel2 := b.Subscribe("s2")
	defer cancel2()

	b.Publish(Event{Type: TypeToolCall, SessionID: "s1", ToolName: "get_calendar"})

	if got := <-ch1; got.ToolName != "get_calendar" {
		t.Errorf("s1 received %+v", got)
	}
	select {
	case got := <-ch2:
		t.Errorf("s2 received %+v, want nothing", got)
	default:
	}
}

func TestBroker_PublishNeverBlocks(t *testing.T) {
	t.Parallel()

	b := NewBroker(slog.New(slog.DiscardHandler))
	_, cancel := b.Subscribe("s1")
	defer cancel()

	// Overfill the subscriber buffer; Publish must drop, not block.
	for i := 0; i < subscriberBuffer*2; i++ {
		b.Publish(Event{Type: TypeText, SessionID: "s1", Content: "x"})
	}
}

func TestBroker_CancelClosesChannel(t *testing.T) {
	t.Parallel()

	b := NewBroker(slog.New(slog.DiscardHandler))
	ch, cancel := b.Subscribe("s1")
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}

	// Cancel is idempotent and publishing after cancel is a no-op.
	cancel()
	b.Publish(Event{Type: TypeText, SessionID: "s1"})
}
