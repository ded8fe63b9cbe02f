// Package embedder implements the embedder component (C3): mapping a
// batch of strings to a matrix of un-normalized embedding vectors,
// wrapping the reference embedding package's provider clients behind
// the dim()/content-hash contract the vector store needs.
package embedder

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/aqua777/go-docqa/embedding"
)

// Backend tags which provider an Embedder wraps.
type Backend string

const (
	BackendLocal  Backend = "local"  // Ollama, CPU/GPU local inference
	BackendOpenAI Backend = "openai" // hosted OpenAI-compatible embeddings
)

// Cache is an optional write-through store for previously computed
// chunk embeddings, consulted by Embed before calling the wrapped
// model and populated on every miss. internal/vectorstore's
// chromem-go-backed EmbeddingCache satisfies this.
type Cache interface {
	Get(ctx context.Context, hash string) ([]float64, bool)
	Put(ctx context.Context, hash string, vector []float64) error
}

// Embedder wraps an embedding.EmbeddingModel with the dimension and
// content-hashing operations the vector store and query pipeline need.
type Embedder struct {
	model   embedding.EmbeddingModel
	backend Backend
	dim     int
	logger  *slog.Logger
	cache   Cache
}

// New wraps model without calling it. A dim of 0 means the dimension is
// not yet known; it is then taken from the first embedding produced.
func New(model embedding.EmbeddingModel, backend Backend, dim int, logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{model: model, backend: backend, dim: dim, logger: logger}
}

// SetCache attaches a content-hash embedding cache. Passing nil
// disables caching.
func (e *Embedder) SetCache(c Cache) {
	e.cache = c
}

// Dim returns the embedder's fixed output dimension.
func (e *Embedder) Dim() int { return e.dim }

// Backend reports which provider this Embedder wraps.
func (e *Embedder) Backend() Backend { return e.backend }

// Embed maps a batch of strings to a matrix of shape (n, D), processed
// in groups of batchSize. Vectors are returned un-normalized; the
// vector store is responsible for L2-normalizing before indexing.
func (e *Embedder) Embed(ctx context.Context, texts []string, batchSize int) ([][]float64, error) {
	if batchSize <= 0 {
		batchSize = 10
	}
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		for _, t := range texts[start:end] {
			hash := ContentHash(t)
			if e.cache != nil {
				if cached, ok := e.cache.Get(ctx, hash); ok {
					if e.dim == 0 {
						e.dim = len(cached)
					}
					out = append(out, cached)
					continue
				}
			}

			v, err := e.model.GetTextEmbedding(ctx, t)
			if err != nil {
				return nil, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
			}
			if e.dim == 0 {
				e.dim = len(v)
			}
			if e.cache != nil {
				if err := e.cache.Put(ctx, hash, v); err != nil {
					e.logger.Warn("embedding cache write failed", "err", err)
				}
			}
			out = append(out, v)
		}
	}
	return out, nil
}

// EmbedQuery embeds a single query string, applying the "query: "
// asymmetric-encoder prefix convention before embedding. The prefix is
// never applied to indexed chunk text.
func (e *Embedder) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	v, err := e.model.GetQueryEmbedding(ctx, "query: "+query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if e.dim == 0 {
		e.dim = len(v)
	}
	return v, nil
}

// ContentHash returns a deterministic 16-hex-character identifier for
// text, used for deduping chunks and for the query similarity hash.
func ContentHash(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}
