package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingModel returns a fixed vector per distinct text and counts how
// many times the underlying embedding call actually ran, so tests can
// assert the cache short-circuited repeats.
type countingModel struct {
	calls int
}

func (m *countingModel) GetTextEmbedding(ctx context.Context, text string) ([]float64, error) {
	m.calls++
	return []float64{float64(len(text)), 1, 2}, nil
}

func (m *countingModel) GetQueryEmbedding(ctx context.Context, query string) ([]float64, error) {
	m.calls++
	return []float64{float64(len(query)), 1, 2}, nil
}

type memCache struct {
	data map[string][]float64
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]float64)} }

func (c *memCache) Get(ctx context.Context, hash string) ([]float64, bool) {
	v, ok := c.data[hash]
	return v, ok
}

func (c *memCache) Put(ctx context.Context, hash string, vector []float64) error {
	c.data[hash] = vector
	return nil
}

func TestEmbedWithoutCacheCallsModelEveryTime(t *testing.T) {
	model := &countingModel{}
	e := New(model, BackendLocal, 0, nil)

	_, err := e.Embed(context.Background(), []string{"a", "a", "b"}, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, model.calls)
}

func TestEmbedWithCacheSkipsRepeatedText(t *testing.T) {
	model := &countingModel{}
	e := New(model, BackendLocal, 0, nil)
	e.SetCache(newMemCache())

	vectors, err := e.Embed(context.Background(), []string{"repeat me", "repeat me", "other"}, 10)
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, 2, model.calls)
	assert.Equal(t, vectors[0], vectors[1])
}

func TestEmbedCacheReusedAcrossCalls(t *testing.T) {
	model := &countingModel{}
	e := New(model, BackendLocal, 0, nil)
	cache := newMemCache()
	e.SetCache(cache)

	_, err := e.Embed(context.Background(), []string{"same text"}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, model.calls)

	_, err = e.Embed(context.Background(), []string{"same text"}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, model.calls, "second embed should hit the cache")
}

func TestContentHashStableAndDistinct(t *testing.T) {
	a := ContentHash("hello world")
	b := ContentHash("hello world")
	c := ContentHash("something else")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}
