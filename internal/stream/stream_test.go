package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqua777/go-docqa/internal/llmlayer"
	"github.com/aqua777/go-docqa/internal/rag"
)

type stubBackend struct {
	kind      llmlayer.Kind
	answer    string
	err       error
	available bool
}

func (s *stubBackend) Kind() llmlayer.Kind    { return s.kind }
func (s *stubBackend) IsAvailable() bool      { return s.available }
func (s *stubBackend) Status() map[string]any { return map[string]any{"available": s.available} }
func (s *stubBackend) Generate(context.Context, string, int, float64) (string, error) {
	return s.answer, s.err
}

func newTestServer(t *testing.T, hub *Hub) (*httptest.Server, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws/client/:client_id", func(c *gin.Context) {
		hub.HandleConnection(c, c.Param("client_id"))
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	return server, wsURL
}

func dial(t *testing.T, wsURL, clientID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws/client/"+clientID, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestPingReceivesPong(t *testing.T) {
	backend := &stubBackend{kind: llmlayer.KindOpenAI, available: true}
	hub := New(llmlayer.New([]llmlayer.Backend{backend}, false, nil), nil)
	_, wsURL := newTestServer(t, hub)

	conn := dial(t, wsURL, "client-1")
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))

	var resp map[string]string
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "pong", resp["type"])
}

func TestStreamAnswerEmitsStartChunksAndEnd(t *testing.T) {
	backend := &stubBackend{kind: llmlayer.KindOpenAI, answer: "blue is the color", available: true}
	hub := New(llmlayer.New([]llmlayer.Backend{backend}, false, nil), nil)
	_, wsURL := newTestServer(t, hub)

	conn := dial(t, wsURL, "client-2")
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":           "stream_answer",
		"question":       "what color is it",
		"context_chunks": []string{"the widget is blue"},
	}))

	var start map[string]any
	require.NoError(t, conn.ReadJSON(&start))
	assert.Equal(t, "answer_stream_start", start["type"])

	var lastChunk map[string]any
	for i := 0; i < 5; i++ {
		var chunk map[string]any
		require.NoError(t, conn.ReadJSON(&chunk))
		if chunk["type"] == "answer_stream_end" {
			lastChunk = chunk
			break
		}
		assert.Equal(t, "answer_stream_chunk", chunk["type"])
		assert.Equal(t, false, chunk["is_complete"])
		lastChunk = chunk
	}
	assert.Equal(t, "answer_stream_end", lastChunk["type"])
	assert.Equal(t, "blue is the color", lastChunk["content"])
	assert.Equal(t, "openai", lastChunk["llm_used"])
}

func TestStreamAnswerEmitsErrorOnGenerationFailure(t *testing.T) {
	backend := &stubBackend{kind: llmlayer.KindOpenAI, available: false}
	hub := New(llmlayer.New([]llmlayer.Backend{backend}, false, nil), nil)
	_, wsURL := newTestServer(t, hub)

	conn := dial(t, wsURL, "client-3")
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "stream_answer", "question": "anything"}))

	var start map[string]any
	require.NoError(t, conn.ReadJSON(&start))
	assert.Equal(t, "answer_stream_start", start["type"])

	var errMsg map[string]any
	require.NoError(t, conn.ReadJSON(&errMsg))
	assert.Equal(t, "answer_stream_error", errMsg["type"])
}

func TestProgressSinkRelaysDocumentProgress(t *testing.T) {
	backend := &stubBackend{kind: llmlayer.KindOpenAI, available: true}
	hub := New(llmlayer.New([]llmlayer.Backend{backend}, false, nil), nil)
	_, wsURL := newTestServer(t, hub)

	conn := dial(t, wsURL, "client-4")
	time.Sleep(20 * time.Millisecond)

	sink := hub.ProgressSink("client-4")
	sink.Publish(context.Background(), rag.ProgressEvent{DocumentID: "doc-1", Step: "chunking", Percent: 40, Message: "chunking text"})

	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "document_progress", msg["type"])
	assert.Equal(t, "doc-1", msg["document_id"])
	assert.Equal(t, "chunking", msg["stage"])
	assert.Equal(t, float64(40), msg["progress"])
}

func TestProgressSinkDropsWhenClientNotRegistered(t *testing.T) {
	backend := &stubBackend{kind: llmlayer.KindOpenAI, available: true}
	hub := New(llmlayer.New([]llmlayer.Backend{backend}, false, nil), nil)

	sink := hub.ProgressSink("absent-client")
	assert.NotPanics(t, func() {
		sink.Publish(context.Background(), rag.ProgressEvent{DocumentID: "doc-1", Step: "chunking", Percent: 40})
	})
}

func TestReregisteringClientReplacesPriorTransport(t *testing.T) {
	backend := &stubBackend{kind: llmlayer.KindOpenAI, available: true}
	hub := New(llmlayer.New([]llmlayer.Backend{backend}, false, nil), nil)
	_, wsURL := newTestServer(t, hub)

	first := dial(t, wsURL, "client-5")
	time.Sleep(20 * time.Millisecond)
	second := dial(t, wsURL, "client-5")
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, second.WriteJSON(map[string]string{"type": "ping"}))
	var resp map[string]string
	require.NoError(t, second.ReadJSON(&resp))
	assert.Equal(t, "pong", resp["type"])

	_ = first.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	_, _, err := first.ReadMessage()
	assert.Error(t, err)
}
