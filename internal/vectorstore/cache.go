package vectorstore

import (
	"context"
	"path/filepath"

	"github.com/philippgille/chromem-go"
)

// EmbeddingCache persists previously computed chunk embeddings keyed
// by content hash, so re-ingesting an unchanged document, or two
// documents sharing boilerplate text, skips the embedding call for the
// repeated chunks. Grounded on rag/store/chromem/store.go's chromem.DB
// wiring, repurposed here as a pure key/value cache rather than the
// primary similarity index, matching the optional per-document
// embedding cache named in §6.2.
type EmbeddingCache struct {
	collection *chromem.Collection
}

// NewEmbeddingCache opens (or creates) a persistent chromem-go database
// under <dataDir>/embeddings.
func NewEmbeddingCache(dataDir string) (*EmbeddingCache, error) {
	db, err := chromem.NewPersistentDB(filepath.Join(dataDir, "embeddings"), false)
	if err != nil {
		return nil, err
	}
	collection, err := db.GetOrCreateCollection("chunk_embeddings", nil, nil)
	if err != nil {
		return nil, err
	}
	return &EmbeddingCache{collection: collection}, nil
}

// Get returns the cached embedding for hash, and whether it was found.
func (c *EmbeddingCache) Get(ctx context.Context, hash string) ([]float64, bool) {
	doc, err := c.collection.GetByID(ctx, hash)
	if err != nil || len(doc.Embedding) == 0 {
		return nil, false
	}
	out := make([]float64, len(doc.Embedding))
	for i, v := range doc.Embedding {
		out[i] = float64(v)
	}
	return out, true
}

// Put stores vector under hash for future reuse.
func (c *EmbeddingCache) Put(ctx context.Context, hash string, vector []float64) error {
	vector32 := make([]float32, len(vector))
	for i, v := range vector {
		vector32[i] = float32(v)
	}
	return c.collection.AddDocuments(ctx, []chromem.Document{{ID: hash, Embedding: vector32}}, 1)
}
