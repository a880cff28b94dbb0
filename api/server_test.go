package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camilo-ai/camilo/internal/chat"
	"github.com/camilo-ai/camilo/internal/events"
	"github.com/camilo-ai/camilo/internal/knowledge"
	"github.com/camilo-ai/camilo/internal/log"
	"github.com/camilo-ai/camilo/internal/retrieval"
)

// stubRetriever returns a canned context.
type stubRetriever struct {
	context *retrieval.Context
	err     error
}

func (s *stubRetriever) Fuse(context.Context, []retrieval.Message) (*retrieval.Context, error) {
	return s.context, s.err
}

// stubCompleter returns canned text.
type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) Complete(context.Context, string) (string, error) {
	return s.reply, s.err
}

func newTestServer(t *testing.T, retriever chat.Retriever, completer chat.Completer) *Server {
	t.Helper()
	assistant, err := chat.New(chat.Config{
		Retriever:   retriever,
		Completer:   completer,
		Persona:     "You are a clone.",
		PersonaName: "Shubh",
		Logger:      log.NewNop(),
	})
	require.NoError(t, err)

	return NewServer(ServerConfig{
		Assistant: assistant,
		Broker:    events.NewBroker(log.NewNop()),
		Logger:    log.NewNop(),
	})
}

func groundedContext() *retrieval.Context {
	return &retrieval.Context{
		Segments: []knowledge.Segment{
			{ID: 50, URL: "https://blog.example/2020/03/post", Content: "I worked at Acme.", Similarity: 0.9},
		},
	}
}

func TestServer_HealthEndpoints(t *testing.T) {
	srv := newTestServer(t, &stubRetriever{context: groundedContext()}, &stubCompleter{})
	handler := srv.Handler()

	t.Run("GET /health returns 200", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", w.Body.String())
	})

	t.Run("GET /ready returns 503 when pool is nil", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestMessage_Success(t *testing.T) {
	srv := newTestServer(t,
		&stubRetriever{context: groundedContext()},
		&stubCompleter{reply: "I worked at Acme [1] in 2020."})
	handler := srv.Handler()

	body := `{"sessionId":"s1","messages":[{"content":"Where did you work?","isFromAssistant":false}]}`
	req := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Reply     string            `json:"reply"`
		LinkData  map[string]string `json:"linkData"`
		SessionID string            `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "I worked at Acme  in 2020.", resp.Reply)
	assert.Equal(t, "https://blog.example/2020/03/post", resp.LinkData["50"])
	assert.Equal(t, "s1", resp.SessionID)
}

func TestMessage_GeneratesSessionID(t *testing.T) {
	srv := newTestServer(t,
		&stubRetriever{context: groundedContext()},
		&stubCompleter{reply: "hello"})
	handler := srv.Handler()

	body := `{"messages":[{"content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
}

func TestMessage_NoContextIs422(t *testing.T) {
	srv := newTestServer(t,
		&stubRetriever{context: &retrieval.Context{}},
		&stubCompleter{reply: "unused"})
	handler := srv.Handler()

	body := `{"sessionId":"s1","messages":[{"content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "no_context", resp.Error)
}

func TestMessage_BadRequests(t *testing.T) {
	srv := newTestServer(t, &stubRetriever{context: groundedContext()}, &stubCompleter{})
	handler := srv.Handler()

	t.Run("malformed JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader("{not json"))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty messages", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader(`{"messages":[]}`))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestEvents_RequiresSession(t *testing.T) {
	srv := newTestServer(t, &stubRetriever{context: groundedContext()}, &stubCompleter{})
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvents_StreamsPublishedEvents(t *testing.T) {
	broker := events.NewBroker(log.NewNop())
	assistant, err := chat.New(chat.Config{
		Retriever: &stubRetriever{context: groundedContext()},
		Completer: &stubCompleter{reply: "x"},
		Persona:   "p",
		Logger:    log.NewNop(),
	})
	require.NoError(t, err)

	srv := NewServer(ServerConfig{Assistant: assistant, Broker: broker, Logger: log.NewNop()})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events?session=s1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Give the subscription a moment to register, then publish.
	time.Sleep(100 * time.Millisecond)
	broker.Publish(events.Event{Type: events.TypeText, SessionID: "s1", Content: "hello"})

	reader := bufio.NewReader(resp.Body)
	eventLine, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: claude_text\n", eventLine)

	dataLine, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dataLine, "data: "))

	var event events.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(dataLine), "data: ")), &event))
	assert.Equal(t, "hello", event.Content)
}

func TestCORS_Preflight(t *testing.T) {
	assistant, err := chat.New(chat.Config{
		Retriever: &stubRetriever{context: groundedContext()},
		Completer: &stubCompleter{reply: "x"},
		Persona:   "p",
		Logger:    log.NewNop(),
	})
	require.NoError(t, err)

	srv := NewServer(ServerConfig{
		Assistant:   assistant,
		Broker:      events.NewBroker(log.NewNop()),
		Logger:      log.NewNop(),
		CORSOrigins: []string{"http://localhost:3000"},
	})
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/message", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	// Unknown origin gets no CORS headers.
	req = httptest.NewRequest(http.MethodOptions, "/message", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
