// Package vectorstore implements the vector store component (C4): a
// persistent brute-force inner-product index over unit-norm vectors,
// with a chunk-metadata sidecar and single-writer/many-reader locking,
// grounded on the reference rag/store package's RWMutex-guarded cosine
// search, generalized to add document-filtered sub-index search and
// on-disk persistence of both the vector matrix and the metadata.
package vectorstore

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/aqua777/go-docqa/embedding"
	"github.com/aqua777/go-docqa/internal/apperr"
	"github.com/aqua777/go-docqa/internal/domain"
)

// hybridVectorWeight and hybridLexicalWeight blend the normalized
// cosine score against a BM25 lexical score when hybrid search is
// enabled, grounded on original_source's "dense score plus lexical
// boost" retrieval note (§4.3a).
const (
	hybridVectorWeight  = 0.7
	hybridLexicalWeight = 0.3
)

const (
	DefaultAskThreshold    = 0.3
	DefaultSearchThreshold = 0.2
)

// Stats describes the store's current shape for the /system/capabilities
// and C4.stats() surfaces.
type Stats struct {
	N       int    `json:"n"`
	D       int    `json:"d"`
	Backend string `json:"backend"` // "cpu" or "gpu"
	Model   string `json:"model"`
}

// Store is a singleton, process-wide vector index. V holds N unit-norm
// rows of dimension D; M holds the parallel chunk metadata, with
// M[i].VectorIndex == i.
type Store struct {
	mu sync.RWMutex

	indexPath   string
	sidecarPath string

	v       [][]float64 // V, row-major
	m       []domain.Chunk
	dim     int
	backend string
	model   string
	hybrid  bool
}

// embedFunc embeds a batch of chunk texts into un-normalized vectors.
type embedFunc func(texts []string) ([][]float64, error)

// New constructs an empty store backed by the given on-disk paths.
// hybrid enables the optional BM25 lexical re-rank blended into
// SearchText calls that carry query text, toggled by RAG_HYBRID_SEARCH.
func New(dataDir, backend, model string, hybrid bool) *Store {
	return &Store{
		indexPath:   filepath.Join(dataDir, "vector_store", "faiss_index"),
		sidecarPath: filepath.Join(dataDir, "vector_store", "chunks.json"),
		backend:     backend,
		model:       model,
		hybrid:      hybrid,
	}
}

// Load reads persisted state from disk, if present. A fresh store
// (first run) is not an error.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := os.ReadFile(s.sidecarPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperr.Wrap(apperr.Transient, "read chunk sidecar", err)
	}
	var chunks []domain.Chunk
	if err := json.Unmarshal(meta, &chunks); err != nil {
		return apperr.Wrap(apperr.IndexInvariantViolation, "corrupt chunk sidecar", err)
	}

	vecBytes, err := os.ReadFile(s.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperr.Wrap(apperr.Transient, "read vector index", err)
	}
	v, dim, err := decodeMatrix(vecBytes)
	if err != nil {
		return apperr.Wrap(apperr.IndexInvariantViolation, "corrupt vector index", err)
	}
	if len(v) != len(chunks) {
		return apperr.New(apperr.IndexInvariantViolation, fmt.Sprintf("vector/metadata length mismatch: %d vs %d", len(v), len(chunks)))
	}

	s.v = v
	s.m = chunks
	s.dim = dim
	return nil
}

// Add embeds chunks' text via embed, L2-normalizes each row, appends to
// V and M, and persists both files. On any failure the in-memory state
// is rolled back to its pre-call size, per the add() atomicity
// invariant; the operation either fully succeeds or has no effect.
func (s *Store) Add(chunks []domain.Chunk, embed embedFunc) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := embed(texts)
	if err != nil {
		return 0, apperr.Wrap(apperr.Transient, "embed chunks", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	preN := len(s.v)
	preM := len(s.m)

	for i, v := range vectors {
		normalized := normalize(v)
		if s.dim == 0 {
			s.dim = len(normalized)
		}
		if len(normalized) != s.dim {
			s.v = s.v[:preN]
			s.m = s.m[:preM]
			return 0, apperr.New(apperr.IndexInvariantViolation, "embedding dimension mismatch")
		}
		chunks[i].VectorIndex = preN + i
		s.v = append(s.v, normalized)
		s.m = append(s.m, chunks[i])
	}

	if err := s.persistLocked(); err != nil {
		s.v = s.v[:preN]
		s.m = s.m[:preM]
		return 0, apperr.Wrap(apperr.IndexInvariantViolation, "persist after add", err)
	}

	return len(vectors), nil
}

// Search L2-normalizes the already-embedded queryVector and returns
// the top_k entries scoring at or above scoreThreshold, sorted
// by descending score. When documentIDs is non-empty, only chunks whose
// document_id is in the set are considered.
func (s *Store) Search(queryVector []float64, topK int, scoreThreshold float64, documentIDs map[string]bool) []domain.SearchResult {
	return s.SearchText(queryVector, "", topK, scoreThreshold, documentIDs)
}

// SearchText is Search with the raw query text additionally available,
// used to blend in the BM25 lexical score when hybrid search is
// enabled. queryText may be empty, which disables the lexical term
// regardless of the hybrid flag.
func (s *Store) SearchText(queryVector []float64, queryText string, topK int, scoreThreshold float64, documentIDs map[string]bool) []domain.SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := normalize(queryVector)

	var candidates []scoredCandidate
	for i, row := range s.v {
		if documentIDs != nil && !documentIDs[s.m[i].DocumentID] {
			continue
		}
		score := dot(q, row)
		if score >= scoreThreshold {
			candidates = append(candidates, scoredCandidate{idx: i, score: score})
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	if s.hybrid && queryText != "" && topK > 0 && len(candidates) > 0 {
		rerankWindow := 4 * topK
		if rerankWindow > len(candidates) {
			rerankWindow = len(candidates)
		}
		window := candidates[:rerankWindow]
		s.applyLexicalBlend(window, queryText)
		sort.Slice(window, func(i, j int) bool { return window[i].score > window[j].score })
	}

	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}

	out := make([]domain.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, domain.SearchResult{Chunk: s.m[c.idx], Score: c.score})
	}
	return out
}

// scoredCandidate pairs a row index in V/M with its current score,
// mutated in place as Search's scoring passes run.
type scoredCandidate struct {
	idx   int
	score float64
}

// applyLexicalBlend fits a BM25 model over the candidate set's chunk
// text and re-weights each candidate's score as a
// hybridVectorWeight/hybridLexicalWeight mix of the cosine score and
// the min-max normalized BM25 score, mutating candidates in place.
func (s *Store) applyLexicalBlend(candidates []scoredCandidate, queryText string) {
	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = s.m[c.idx].Text
	}
	bm := embedding.NewBM25()
	bm.Fit(docs)

	lexical := make([]float64, len(candidates))
	maxLex := 0.0
	for i, text := range docs {
		lexical[i] = bm.Score(queryText, text)
		if lexical[i] > maxLex {
			maxLex = lexical[i]
		}
	}
	if maxLex == 0 {
		return
	}
	for i := range candidates {
		normalizedLex := lexical[i] / maxLex
		candidates[i].score = hybridVectorWeight*candidates[i].score + hybridLexicalWeight*normalizedLex
	}
}

// Clear replaces V and M with empty structures and persists.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prevV, prevM := s.v, s.m
	s.v = nil
	s.m = nil
	if err := s.persistLocked(); err != nil {
		s.v, s.m = prevV, prevM
		return apperr.Wrap(apperr.IndexInvariantViolation, "persist after clear", err)
	}
	return nil
}

// Stats reports the store's shape and backend flavor.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{N: len(s.v), D: s.dim, Backend: s.backend, Model: s.model}
}

// Size returns the current row count, used by the orchestrator to
// record a rollback point before a multi-batch ingest.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.v)
}

// Truncate rolls V and M back to n rows, used to discard partial
// ingest additions after a mid-ingest failure.
func (s *Store) Truncate(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.v) {
		return nil
	}
	s.v = s.v[:n]
	s.m = s.m[:n]
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.indexPath), 0o755); err != nil {
		return err
	}
	metaBytes, err := json.Marshal(s.m)
	if err != nil {
		return err
	}
	vecBytes := encodeMatrix(s.v, s.dim)

	if err := os.WriteFile(s.sidecarPath+".tmp", metaBytes, 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(s.indexPath+".tmp", vecBytes, 0o644); err != nil {
		os.Remove(s.sidecarPath + ".tmp")
		return err
	}
	if err := os.Rename(s.sidecarPath+".tmp", s.sidecarPath); err != nil {
		return err
	}
	if err := os.Rename(s.indexPath+".tmp", s.indexPath); err != nil {
		return err
	}
	return nil
}

func normalize(v []float64) []float64 {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func dot(a, b []float64) float64 {
	var sum float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
