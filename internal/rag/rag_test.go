package rag

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqua777/go-docqa/embedding"
	"github.com/aqua777/go-docqa/internal/apperr"
	"github.com/aqua777/go-docqa/internal/chunker"
	"github.com/aqua777/go-docqa/internal/embedder"
	"github.com/aqua777/go-docqa/internal/extractor"
	"github.com/aqua777/go-docqa/internal/vectorstore"
)

type collectingSink struct {
	events []ProgressEvent
}

func (c *collectingSink) Publish(_ context.Context, e ProgressEvent) {
	c.events = append(c.events, e)
}

func newTestOrchestrator(t *testing.T, vec []float64) (*Orchestrator, string) {
	t.Helper()
	dataDir := t.TempDir()

	ext := extractor.New(filepath.Join(dataDir, "processed"), nil)
	ch, err := chunker.New(50, 10)
	require.NoError(t, err)
	mockModel := &embedding.MockEmbeddingModel{Embedding: vec}
	emb := embedder.New(mockModel, embedder.BackendLocal, len(vec), nil)
	store := vectorstore.New(dataDir, "cpu", "mock-embedding-model", false)

	return New(ext, ch, emb, store, nil), dataDir
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestAddsChunksToStore(t *testing.T) {
	o, _ := newTestOrchestrator(t, []float64{0.1, 0.2, 0.3})
	path := writeTempFile(t, "doc.txt", "This is a reasonably long piece of text that should split into more than one chunk once the chunk size is small enough to force it.")

	result, err := o.Ingest(context.Background(), path, "doc-1", map[string]any{"source": "upload"})
	require.NoError(t, err)
	assert.Greater(t, result.ChunksCreated, 1)
	assert.Equal(t, result.ChunksCreated, o.store.Size())
}

func TestIngestEmptyFileFailsWithNoExtractableText(t *testing.T) {
	o, _ := newTestOrchestrator(t, []float64{0.1, 0.2, 0.3})
	path := writeTempFile(t, "empty.txt", "")

	_, err := o.Ingest(context.Background(), path, "doc-empty", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.NoExtractableText, apperr.KindOf(err))
}

func TestIngestWithProgressEmitsExpectedSteps(t *testing.T) {
	o, _ := newTestOrchestrator(t, []float64{0.1, 0.2, 0.3})
	path := writeTempFile(t, "doc.txt", "Short text.")
	sink := &collectingSink{}

	_, err := o.IngestWithProgress(context.Background(), path, "doc-2", nil, sink)
	require.NoError(t, err)

	var steps []string
	for _, e := range sink.events {
		steps = append(steps, e.Step)
	}
	assert.Equal(t, []string{"extracting", "extracting_done", "chunking", "chunking_done", "embedding", "indexing", "complete"}, steps)
	assert.Equal(t, 100, sink.events[len(sink.events)-1].Percent)
}

func TestIngestWithProgressEmitsErrorEventOnFailure(t *testing.T) {
	o, _ := newTestOrchestrator(t, []float64{0.1, 0.2, 0.3})
	path := writeTempFile(t, "empty.txt", "")
	sink := &collectingSink{}

	_, err := o.IngestWithProgress(context.Background(), path, "doc-3", nil, sink)
	require.Error(t, err)
	require.NotEmpty(t, sink.events)
	last := sink.events[len(sink.events)-1]
	assert.Equal(t, "error", last.Step)
	assert.Equal(t, 0, last.Percent)
}

func TestIngestRollsBackStoreSizeOnEmbedFailure(t *testing.T) {
	dataDir := t.TempDir()
	ext := extractor.New(filepath.Join(dataDir, "processed"), nil)
	ch, err := chunker.New(50, 10)
	require.NoError(t, err)

	failing := &embedding.MockEmbeddingModel{Err: assertError{"embedding backend down"}}
	emb := embedder.New(failing, embedder.BackendLocal, 3, nil)
	store := vectorstore.New(dataDir, "cpu", "mock-embedding-model", false)
	o := New(ext, ch, emb, store, nil)

	path := writeTempFile(t, "doc.txt", "This text will fail to embed because the mock model always errors out.")
	preSize := store.Size()

	_, err = o.Ingest(context.Background(), path, "doc-4", nil)
	require.Error(t, err)
	assert.Equal(t, preSize, store.Size())
}

func TestSearchReturnsTopMatch(t *testing.T) {
	o, _ := newTestOrchestrator(t, []float64{1, 0, 0})
	path := writeTempFile(t, "doc.txt", "A short document about cats and dogs.")
	_, err := o.Ingest(context.Background(), path, "doc-5", nil)
	require.NoError(t, err)

	results, err := o.Search(context.Background(), "cats", 5, 0.0, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }
