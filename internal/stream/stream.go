// Package stream implements the progress/stream transport component
// (C9): a per-client WebSocket channel that relays ingest progress
// events and simulates token-by-token answer streaming, grounded on
// original_source/backend/app/routers/websocket.py's ConnectionManager
// and stream_answer_generation, adapted to the
// semaj90-mau5law/go-chat-service HandleWebSocket upgrade/register/
// read-loop shape for gorilla/websocket + gin.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/aqua777/go-docqa/internal/llmlayer"
	"github.com/aqua777/go-docqa/internal/rag"
	"github.com/aqua777/go-docqa/prompts"
)

// frameDelay is the pause between simulated token-stream frames when
// the backing LLM backend has no true token streaming.
const frameDelay = 50 * time.Millisecond

const (
	streamMaxTokens   = 512
	streamTemperature = 0.3
)

// conversationTurn is one prior question/answer pair a client may
// attach to a stream_answer request for short conversational context.
type conversationTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type incomingMessage struct {
	Type                string             `json:"type"`
	Question            string             `json:"question"`
	ContextChunks       []string           `json:"context_chunks"`
	ConversationContext []conversationTurn `json:"conversation_context"`
}

// client is one registered WebSocket transport. gorilla/websocket
// connections are not safe for concurrent writers, so every outgoing
// frame goes through writeMu.
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) sendJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub tracks one registered transport per client_id and dispatches
// incoming ping/stream_answer messages.
type Hub struct {
	upgrader websocket.Upgrader
	llm      *llmlayer.Layer

	mu      sync.RWMutex
	clients map[string]*client

	logger *slog.Logger
}

// New builds a Hub. The LLM layer is used only for stream_answer's
// simulated token streaming; ingest progress flows through ProgressSink
// instead.
func New(llm *llmlayer.Layer, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		llm:     llm,
		clients: make(map[string]*client),
		logger:  logger,
	}
}

// HandleConnection upgrades the request, registers it under clientID
// (replacing any prior transport for the same id), and runs the read
// loop until disconnect or a fatal read error, then deregisters.
func (h *Hub) HandleConnection(c *gin.Context, clientID string) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "client_id", clientID, "err", err)
		return
	}
	defer conn.Close()

	newClient := &client{conn: conn}
	h.register(clientID, newClient)
	h.logger.Info("stream client connected", "client_id", clientID)

	ctx := c.Request.Context()
	for {
		var msg incomingMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		h.dispatch(ctx, clientID, newClient, msg)
	}

	h.deregister(clientID, newClient)
	h.logger.Info("stream client disconnected", "client_id", clientID)
}

// register replaces any existing transport for clientID, closing the
// prior connection so at most one transport is live per client.
func (h *Hub) register(clientID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if prior, ok := h.clients[clientID]; ok {
		_ = prior.conn.Close()
	}
	h.clients[clientID] = c
}

// deregister removes clientID's entry only if it still points at this
// connection, so a stale read-loop goroutine from a replaced
// connection cannot clobber a newer registration.
func (h *Hub) deregister(clientID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[clientID] == c {
		delete(h.clients, clientID)
	}
}

func (h *Hub) dispatch(ctx context.Context, clientID string, c *client, msg incomingMessage) {
	switch msg.Type {
	case "ping":
		if err := c.sendJSON(map[string]string{"type": "pong"}); err != nil {
			h.logger.Warn("failed to send pong", "client_id", clientID, "err", err)
		}
	case "stream_answer":
		h.streamAnswer(ctx, c, msg)
	default:
		h.logger.Warn("unrecognized stream message type", "client_id", clientID, "type", msg.Type)
	}
}

// streamAnswer generates one answer over the client-supplied context
// chunks and simulated-streams it back as cumulative frames, since the
// LLM layer's Generate call has no true token-streaming API.
func (h *Hub) streamAnswer(ctx context.Context, c *client, msg incomingMessage) {
	_ = c.sendJSON(map[string]any{"type": "answer_stream_start", "timestamp": nowRFC3339()})

	question := buildConversationalQuestion(msg.Question, msg.ConversationContext)
	contextStr := strings.Join(msg.ContextChunks, "\n\n")
	prompt := prompts.DocQAPrompt.Format(map[string]string{
		"context_str": contextStr,
		"query_str":   question,
	})

	answer, kind, err := h.llm.Generate(ctx, prompt, streamMaxTokens, streamTemperature)
	if err != nil {
		_ = c.sendJSON(map[string]any{"type": "answer_stream_error", "error": err.Error()})
		return
	}

	words := strings.Fields(answer)
	var b strings.Builder
	for _, word := range words {
		b.WriteString(word)
		b.WriteString(" ")
		_ = c.sendJSON(map[string]any{
			"type":        "answer_stream_chunk",
			"content":     b.String(),
			"is_complete": false,
		})
		time.Sleep(frameDelay)
	}

	_ = c.sendJSON(map[string]any{
		"type":        "answer_stream_end",
		"content":     strings.TrimSpace(b.String()),
		"is_complete": true,
		"llm_used":    string(kind),
		"timestamp":   nowRFC3339(),
	})
}

// buildConversationalQuestion prepends up to the last 3 prior
// question/answer pairs as a "Previous conversation" preamble, matching
// stream_answer_generation's context_prompt construction.
func buildConversationalQuestion(question string, turns []conversationTurn) string {
	if len(turns) == 0 {
		return question
	}
	if len(turns) > 3 {
		turns = turns[len(turns)-3:]
	}
	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	for i, turn := range turns {
		fmt.Fprintf(&b, "Q%d: %s\n", i+1, turn.Question)
		fmt.Fprintf(&b, "A%d: %s\n\n", i+1, turn.Answer)
	}
	b.WriteString("Current question:\n")
	b.WriteString(question)
	return b.String()
}

// ProgressSink returns a rag.ProgressSink bound to one client_id, used
// by the upload handler to relay one document's ingest progress to
// whichever transport is currently registered for that client. Events
// are dropped silently when no transport is registered, matching the
// source's "if client_id in active_connections" guard.
func (h *Hub) ProgressSink(clientID string) rag.ProgressSink {
	return clientSink{hub: h, clientID: clientID}
}

type clientSink struct {
	hub      *Hub
	clientID string
}

func (s clientSink) Publish(_ context.Context, event rag.ProgressEvent) {
	s.hub.mu.RLock()
	c, ok := s.hub.clients[s.clientID]
	s.hub.mu.RUnlock()
	if !ok {
		return
	}

	details := event.Message
	if event.Err != nil {
		details = event.Err.Error()
	}
	payload := map[string]any{
		"type":        "document_progress",
		"document_id": event.DocumentID,
		"stage":       event.Step,
		"progress":    event.Percent,
		"details":     details,
		"timestamp":   nowRFC3339(),
	}
	if err := c.sendJSON(payload); err != nil {
		s.hub.logger.Warn("failed to relay progress event", "client_id", s.clientID, "err", err)
	}
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
