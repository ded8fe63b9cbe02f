package vectorstore

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/aqua777/go-docqa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeEmbed(vectors [][]float64) embedFunc {
	i := 0
	return func(texts []string) ([][]float64, error) {
		out := vectors[i : i+len(texts)]
		i += len(texts)
		return out, nil
	}
}

func TestAddAndSearch(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "cpu", "test-model", false)

	chunks := []domain.Chunk{
		{ChunkID: "d1_chunk_0", DocumentID: "d1", Text: "python web development"},
		{ChunkID: "d2_chunk_0", DocumentID: "d2", Text: "go concurrency patterns"},
	}
	n, err := s.Add(chunks, fakeEmbed([][]float64{{1, 0, 0}, {0, 1, 0}}))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stats := s.Stats()
	assert.Equal(t, 2, stats.N)
	assert.Equal(t, 3, stats.D)

	results := s.Search([]float64{1, 0, 0}, 5, 0.0, nil)
	require.NotEmpty(t, results)
	assert.Equal(t, "d1", results[0].Chunk.DocumentID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestSearchDocumentFilter(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "cpu", "test-model", false)
	chunks := []domain.Chunk{
		{ChunkID: "d1_chunk_0", DocumentID: "d1", Text: "a"},
		{ChunkID: "d2_chunk_0", DocumentID: "d2", Text: "b"},
	}
	_, err := s.Add(chunks, fakeEmbed([][]float64{{1, 0}, {1, 0}}))
	require.NoError(t, err)

	results := s.Search([]float64{1, 0}, 10, 0.0, map[string]bool{"d2": true})
	require.Len(t, results, 1)
	assert.Equal(t, "d2", results[0].Chunk.DocumentID)
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "cpu", "test-model", false)
	chunks := []domain.Chunk{{ChunkID: "d1_chunk_0", DocumentID: "d1", Text: "a"}}
	_, err := s.Add(chunks, fakeEmbed([][]float64{{3, 4}}))
	require.NoError(t, err)

	reloaded := New(dir, "cpu", "test-model", false)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, s.Stats(), reloaded.Stats())

	results := reloaded.Search([]float64{1, 0}, 5, 0.0, nil)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.6, results[0].Score, 1e-6)
}

func TestUnitNormInvariant(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "cpu", "m", false)
	_, err := s.Add([]domain.Chunk{{ChunkID: "c", DocumentID: "d"}}, fakeEmbed([][]float64{{3, 4, 0}}))
	require.NoError(t, err)

	var norm float64
	for _, x := range s.v[0] {
		norm += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestClear(t *testing.T) {
	dir := filepath.Join(t.TempDir())
	s := New(dir, "cpu", "m", false)
	_, err := s.Add([]domain.Chunk{{ChunkID: "c", DocumentID: "d"}}, fakeEmbed([][]float64{{1}}))
	require.NoError(t, err)
	require.NoError(t, s.Clear())
	assert.Equal(t, 0, s.Stats().N)
}

func TestHybridSearchRewardsLexicalMatch(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "cpu", "m", true)
	chunks := []domain.Chunk{
		{ChunkID: "d1_chunk_0", DocumentID: "d1", Text: "the quarterly revenue report covers fiscal year budgets"},
		{ChunkID: "d2_chunk_0", DocumentID: "d2", Text: "a short unrelated note about gardening"},
	}
	// Identical, orthogonal-free vectors so cosine alone can't separate them.
	_, err := s.Add(chunks, fakeEmbed([][]float64{{1, 1}, {1, 1}}))
	require.NoError(t, err)

	results := s.SearchText([]float64{1, 1}, "quarterly revenue fiscal budgets", 2, 0.0, nil)
	require.Len(t, results, 2)
	assert.Equal(t, "d1", results[0].Chunk.DocumentID)
}

func TestNonHybridSearchIgnoresQueryText(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "cpu", "m", false)
	chunks := []domain.Chunk{
		{ChunkID: "d1_chunk_0", DocumentID: "d1", Text: "python web development"},
		{ChunkID: "d2_chunk_0", DocumentID: "d2", Text: "go concurrency patterns"},
	}
	_, err := s.Add(chunks, fakeEmbed([][]float64{{1, 0, 0}, {0, 1, 0}}))
	require.NoError(t, err)

	results := s.SearchText([]float64{1, 0, 0}, "go concurrency patterns", 5, 0.0, nil)
	require.NotEmpty(t, results)
	assert.Equal(t, "d1", results[0].Chunk.DocumentID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}
