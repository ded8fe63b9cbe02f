package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqua777/go-docqa/embedding"
	"github.com/aqua777/go-docqa/internal/analytics"
	"github.com/aqua777/go-docqa/internal/chunker"
	"github.com/aqua777/go-docqa/internal/db"
	"github.com/aqua777/go-docqa/internal/domain"
	"github.com/aqua777/go-docqa/internal/embedder"
	"github.com/aqua777/go-docqa/internal/extractor"
	"github.com/aqua777/go-docqa/internal/llmlayer"
	"github.com/aqua777/go-docqa/internal/query"
	"github.com/aqua777/go-docqa/internal/rag"
	"github.com/aqua777/go-docqa/internal/stream"
	"github.com/aqua777/go-docqa/internal/vectorstore"
	"github.com/aqua777/go-docqa/internal/workerpool"
)

type stubBackend struct {
	kind      llmlayer.Kind
	answer    string
	available bool
}

func (s *stubBackend) Kind() llmlayer.Kind    { return s.kind }
func (s *stubBackend) IsAvailable() bool      { return s.available }
func (s *stubBackend) Status() map[string]any { return map[string]any{"available": s.available} }
func (s *stubBackend) Generate(context.Context, string, int, float64) (string, error) {
	return s.answer, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *db.DB, *rag.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dataDir := t.TempDir()
	uploadDir := filepath.Join(dataDir, "uploads")
	require.NoError(t, os.MkdirAll(uploadDir, 0o755))

	ext := extractor.New(filepath.Join(dataDir, "processed"), nil)
	ch, err := chunker.New(200, 20)
	require.NoError(t, err)
	vec := []float64{1, 0, 0, 0}
	mockModel := &embedding.MockEmbeddingModel{Embedding: vec}
	emb := embedder.New(mockModel, embedder.BackendLocal, len(vec), nil)
	store := vectorstore.New(dataDir, "cpu", "mock-embedding-model", false)
	orchestrator := rag.New(ext, ch, emb, store, nil)

	database, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	backend := &stubBackend{kind: llmlayer.KindOpenAI, answer: "the answer is blue", available: true}
	layer := llmlayer.New([]llmlayer.Backend{backend}, false, nil)

	queryPipe := query.New(orchestrator, layer, database, nil)
	reporter := analytics.New(database)
	hub := stream.New(layer, nil)
	pool := workerpool.New(2)
	t.Cleanup(pool.Close)

	srv := New(uploadDir, database, orchestrator, queryPipe, reporter, layer, hub, pool, nil)
	server := httptest.NewServer(srv.Router())
	t.Cleanup(server.Close)
	return server, database, orchestrator
}

func TestHealthReturnsOK(t *testing.T) {
	server, _, _ := newTestServer(t)
	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	server, _, _ := newTestServer(t)

	body, contentType := multipartFile(t, "note.exe", []byte("binary"))
	resp, err := http.Post(server.URL+"/api/v1/documents/upload", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadIngestsSupportedFile(t *testing.T) {
	server, database, _ := newTestServer(t)

	body, contentType := multipartFile(t, "note.txt", []byte("the sky is blue and vast"))
	resp, err := http.Post(server.URL+"/api/v1/documents/upload", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	assert.Equal(t, true, parsed["success"])
	assert.Equal(t, "indexed", parsed["status"])

	docID, _ := parsed["document_id"].(string)
	require.NotEmpty(t, docID)

	doc, err := database.GetDocument(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIndexed, doc.Status)
}

func TestGetDocumentMissingReturns404(t *testing.T) {
	server, _, _ := newTestServer(t)
	resp, err := http.Get(server.URL + "/api/v1/documents/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAskQuestionValidatesShortQuestion(t *testing.T) {
	server, _, _ := newTestServer(t)

	payload, _ := json.Marshal(map[string]any{"question": "hi"})
	resp, err := http.Post(server.URL+"/api/v1/query/ask", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAskQuestionReturnsAnswerAfterIngest(t *testing.T) {
	server, database, orchestrator := newTestServer(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "sky.txt")
	require.NoError(t, os.WriteFile(path, []byte("the sky is blue during the day"), 0o644))
	require.NoError(t, database.InsertDocument(ctx, domain.Document{
		ID: "doc-1", Filename: "sky.txt", FilePath: path, FileType: ".txt",
		Status: domain.StatusUploaded, DocumentID: "doc-1",
	}))
	_, err := orchestrator.Ingest(ctx, path, "doc-1", nil)
	require.NoError(t, err)

	payload, _ := json.Marshal(map[string]any{"question": "what color is the sky?"})
	resp, err := http.Post(server.URL+"/api/v1/query/ask", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var answer query.Answer
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&answer))
	assert.True(t, answer.Success)
	assert.Equal(t, "the answer is blue", answer.Answer)
}

func TestAnalyticsStatsReflectsHistory(t *testing.T) {
	server, database, _ := newTestServer(t)
	answer := "some answer"
	llm := "openai"
	_, err := database.InsertQueryRecord(context.Background(), domain.QueryRecord{
		Question: "q1", Answer: &answer, SourcesCount: 1, ResponseTime: 1.2, LLMUsed: &llm, Success: true,
	})
	require.NoError(t, err)

	resp, err := http.Get(server.URL + "/api/v1/analytics/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats analytics.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.TotalQueries)
	assert.Equal(t, 1, stats.SuccessfulQueries)
}

func TestSearchDocumentsNeverFailsStatusOnEmptyQuery(t *testing.T) {
	server, _, _ := newTestServer(t)
	form := "query="
	resp, err := http.Post(server.URL+"/api/v1/documents/search", "application/x-www-form-urlencoded", bytes.NewBufferString(form))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	assert.Equal(t, false, parsed["success"])
}

func TestSwitchPrimaryLLMRejectsUnknownKind(t *testing.T) {
	server, _, _ := newTestServer(t)
	payload, _ := json.Marshal(map[string]string{"kind": "not-a-real-backend"})
	resp, err := http.Post(server.URL+"/api/v1/system/llm/primary", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func multipartFile(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}
