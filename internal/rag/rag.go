// Package rag implements the RAG orchestrator component (C5): the
// extract -> chunk -> embed -> index ingest pipeline and the raw
// vector search beneath the query pipeline, grounded on the reference
// rag/engine.go's Retrieve/Synthesize composition shape but built
// against this module's own domain types and vector store instead of
// the source's generic Node/NodeWithScore model.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aqua777/go-docqa/internal/apperr"
	"github.com/aqua777/go-docqa/internal/chunker"
	"github.com/aqua777/go-docqa/internal/domain"
	"github.com/aqua777/go-docqa/internal/embedder"
	"github.com/aqua777/go-docqa/internal/extractor"
	"github.com/aqua777/go-docqa/internal/vectorstore"
)

// progressBatchSize is how many chunks are embedded per progress tick
// during ingest_with_progress's embedding phase.
const progressBatchSize = 10

// ProgressEvent is one step/percent/message update emitted during a
// progress-tracked ingest. The stream transport (C9) relays these to
// the uploading client as they occur.
type ProgressEvent struct {
	DocumentID string
	Step       string
	Percent    int
	Message    string
	Err        error
}

// ProgressSink receives ProgressEvents as an ingest advances. The
// stream hub's per-connection broadcaster satisfies this interface;
// tests can supply a slice-collecting stub.
type ProgressSink interface {
	Publish(ctx context.Context, event ProgressEvent)
}

// NoopSink discards every event, used for the synchronous, non-tracked
// ingest path.
type NoopSink struct{}

func (NoopSink) Publish(context.Context, ProgressEvent) {}

// IngestResult summarizes one completed ingest.
type IngestResult struct {
	DocumentID    string
	CharCount     int
	ChunksCreated int
	ProcessedPath string
}

// Orchestrator wires the extractor, chunker, embedder, and vector
// store into the ingest and search operations.
type Orchestrator struct {
	extractor *extractor.Extractor
	chunker   *chunker.Chunker
	embedder  *embedder.Embedder
	store     *vectorstore.Store
	logger    *slog.Logger
}

// New builds an Orchestrator from its already-constructed components.
func New(ext *extractor.Extractor, ch *chunker.Chunker, emb *embedder.Embedder, store *vectorstore.Store, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{extractor: ext, chunker: ch, embedder: emb, store: store, logger: logger}
}

// Ingest runs the synchronous extract -> chunk -> embed -> index
// pipeline for one document. Empty extracted text fails with
// NoExtractableText without mutating the vector store.
func (o *Orchestrator) Ingest(ctx context.Context, path, documentID string, metadata map[string]any) (IngestResult, error) {
	return o.ingest(ctx, path, documentID, metadata, NoopSink{})
}

// IngestWithProgress runs the same pipeline, publishing ProgressEvents
// to sink at each stage transition: extracting(10), extracting_done(30),
// chunking(40), chunking_done(50), embedding(60->90, interpolated per
// batch of progressBatchSize chunks), indexing(95), complete(100). A
// failure at any stage publishes a single error(0) event.
func (o *Orchestrator) IngestWithProgress(ctx context.Context, path, documentID string, metadata map[string]any, sink ProgressSink) (IngestResult, error) {
	result, err := o.ingest(ctx, path, documentID, metadata, sink)
	if err != nil {
		sink.Publish(ctx, ProgressEvent{DocumentID: documentID, Step: "error", Percent: 0, Message: err.Error(), Err: err})
		return result, err
	}
	return result, nil
}

func (o *Orchestrator) ingest(ctx context.Context, path, documentID string, metadata map[string]any, sink ProgressSink) (IngestResult, error) {
	sink.Publish(ctx, ProgressEvent{DocumentID: documentID, Step: "extracting", Percent: 10})

	extracted, err := o.extractor.Extract(path)
	if err != nil {
		return IngestResult{}, err
	}
	if strings.TrimSpace(extracted.Text) == "" || extracted.Text == extractor.EmptyTextPlaceholder {
		return IngestResult{}, apperr.New(apperr.NoExtractableText, "no extractable text in "+path)
	}
	sink.Publish(ctx, ProgressEvent{DocumentID: documentID, Step: "extracting_done", Percent: 30})

	sink.Publish(ctx, ProgressEvent{DocumentID: documentID, Step: "chunking", Percent: 40})
	merged := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		merged[k] = v
	}
	merged["document_id"] = documentID
	chunks := o.chunker.Chunk(documentID, extracted.Text, merged)
	if len(chunks) == 0 {
		return IngestResult{}, apperr.New(apperr.NoExtractableText, "chunking produced no chunks for "+path)
	}
	sink.Publish(ctx, ProgressEvent{DocumentID: documentID, Step: "chunking_done", Percent: 50})

	preSize := o.store.Size()
	added, err := o.addInBatches(ctx, documentID, chunks, sink)
	if err != nil {
		if rerr := o.store.Truncate(preSize); rerr != nil {
			o.logger.Error("rollback truncate after failed ingest failed", "document_id", documentID, "err", rerr)
		}
		return IngestResult{}, err
	}

	sink.Publish(ctx, ProgressEvent{DocumentID: documentID, Step: "indexing", Percent: 95})
	sink.Publish(ctx, ProgressEvent{DocumentID: documentID, Step: "complete", Percent: 100})

	return IngestResult{
		DocumentID:    documentID,
		CharCount:     extracted.CharCount,
		ChunksCreated: added,
		ProcessedPath: extracted.ProcessedPath,
	}, nil
}

// addInBatches embeds and indexes chunks progressBatchSize at a time,
// publishing an interpolated 60->90% progress tick per batch so a long
// document's embedding phase is not reported as one silent jump.
func (o *Orchestrator) addInBatches(ctx context.Context, documentID string, chunks []domain.Chunk, sink ProgressSink) (int, error) {
	total := 0
	batchCount := (len(chunks) + progressBatchSize - 1) / progressBatchSize
	for i := 0; i < len(chunks); i += progressBatchSize {
		end := i + progressBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]

		n, err := o.store.Add(batch, func(texts []string) ([][]float64, error) {
			return o.embedder.Embed(ctx, texts, progressBatchSize)
		})
		if err != nil {
			return total, err
		}
		total += n

		batchNum := i/progressBatchSize + 1
		percent := 60
		if batchCount > 0 {
			percent = 60 + (30*batchNum)/batchCount
		}
		sink.Publish(ctx, ProgressEvent{
			DocumentID: documentID,
			Step:       "embedding",
			Percent:    percent,
			Message:    fmt.Sprintf("embedded %d/%d chunks", i+len(batch), len(chunks)),
		})
	}
	return total, nil
}

// Search embeds query and returns the top_k chunks scoring at or above
// scoreThreshold, optionally restricted to documentIDs.
func (o *Orchestrator) Search(ctx context.Context, query string, topK int, scoreThreshold float64, documentIDs map[string]bool) ([]domain.SearchResult, error) {
	queryVector, err := o.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, "embed query", err)
	}
	return o.store.SearchText(queryVector, query, topK, scoreThreshold, documentIDs), nil
}

// Stats reports the current vector store's size and backend/model tags,
// surfaced by the system capabilities endpoint.
func (o *Orchestrator) Stats() vectorstore.Stats {
	return o.store.Stats()
}

// ClearIndex empties the vector store, used by the admin
// reset-vector-store operation before documents are re-ingested from
// their original files.
func (o *Orchestrator) ClearIndex() error {
	return o.store.Clear()
}
