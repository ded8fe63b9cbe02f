package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkShortTextSingleChunk(t *testing.T) {
	c, err := New(DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)

	chunks := c.Chunk("doc1", "A. B. C. D.", map[string]any{"filename": "a.txt"})
	require.Len(t, chunks, 1)
	assert.Equal(t, "doc1_chunk_0", chunks[0].ChunkID)
	assert.Equal(t, "A. B. C. D.", chunks[0].Text)
	assert.Equal(t, "a.txt", chunks[0].Metadata["filename"])
}

func TestChunkEmptyTextYieldsNoChunks(t *testing.T) {
	c, err := New(DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)
	assert.Empty(t, c.Chunk("doc1", "   \n  ", nil))
}

func TestChunkLongTextRespectsChunkSize(t *testing.T) {
	c, err := New(100, 20)
	require.NoError(t, err)

	text := strings.Repeat("word ", 200)
	chunks := c.Chunk("doc1", text, nil)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), 100)
	}
}

func TestChunkOverlapSharesContext(t *testing.T) {
	c, err := New(30, 10)
	require.NoError(t, err)

	text := strings.Repeat("ab ", 30)
	chunks := c.Chunk("doc1", text, nil)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), 30)
	}

	tail := strings.TrimSpace(chunks[0].Text)
	tail = tail[len(tail)-2:]
	assert.Contains(t, chunks[1].Text, tail)
}

func TestMergeWithOverlapNeverExceedsChunkSize(t *testing.T) {
	atoms := []string{"aaa", "bbb", "ccc", "ddd", "eee", "fff", "ggg"}
	windows := mergeWithOverlap(atoms, 20, 6)

	require.Equal(t, []string{"aaabbbcccdddeeefff", "eeefffggg"}, windows)
	for _, w := range windows {
		assert.LessOrEqual(t, len(w), 20)
	}
	assert.True(t, strings.HasPrefix(windows[1], "eeefff"))
}

func TestMergeWithOverlapNoOverlapWhenZero(t *testing.T) {
	atoms := []string{"aaaaaaaaaa", "bbbbbbbbbb", "cccccccccc"}
	windows := mergeWithOverlap(atoms, 15, 0)
	assert.Equal(t, []string{"aaaaaaaaaa", "bbbbbbbbbb", "cccccccccc"}, windows)
}

func TestNewRejectsInvalidParams(t *testing.T) {
	_, err := New(10, 10)
	assert.Error(t, err)
}
