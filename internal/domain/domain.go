// Package domain holds the tagged record types shared by the ingestion,
// retrieval, and persistence layers, replacing the duck-typed chunk
// dictionaries of the source implementation with explicit fields.
package domain

import "time"

// Chunk is a contiguous text window produced by the chunker and indexed
// by the vector store.
type Chunk struct {
	ChunkID     string         `json:"chunk_id"`
	DocumentID  string         `json:"document_id"`
	ChunkIndex  int            `json:"chunk_index"`
	Text        string         `json:"text"`
	Metadata    map[string]any `json:"metadata"`
	VectorIndex int            `json:"vector_index"`
}

// DocumentStatus enumerates the lifecycle states of an uploaded document.
type DocumentStatus string

const (
	StatusUploaded  DocumentStatus = "uploaded"
	StatusProcessed DocumentStatus = "processed"
	StatusIndexed   DocumentStatus = "indexed"
	StatusFailed    DocumentStatus = "failed"
)

// Document is the relational record for an uploaded file.
type Document struct {
	ID            string         `json:"id"`
	Filename      string         `json:"filename"`
	FilePath      string         `json:"file_path"`
	FileType      string         `json:"file_type"`
	ProcessedPath string         `json:"processed_path"`
	Status        DocumentStatus `json:"status"`
	CharCount     int            `json:"char_count"`
	ChunksCreated int            `json:"chunks_created"`
	DocumentID    string         `json:"document_id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// QueryRecord is a persisted record of one ask/search invocation.
type QueryRecord struct {
	ID                 int64     `json:"id"`
	Question           string    `json:"question"`
	Answer             *string   `json:"answer"`
	SourcesCount       int       `json:"sources_count"`
	ResponseTime       float64   `json:"response_time"`
	LLMUsed            *string   `json:"llm_used"`
	ContextChunksCount int       `json:"context_chunks_count"`
	Success            bool      `json:"success"`
	SimilarityHash     string    `json:"similarity_hash"`
	CreatedAt          time.Time `json:"created_at"`
}

// AnalyticsCounters is the singleton running-aggregate row.
type AnalyticsCounters struct {
	TotalQueries    int       `json:"total_queries"`
	TotalDocuments  int       `json:"total_documents"`
	AvgResponseTime float64   `json:"avg_response_time"`
	LastUpdated     time.Time `json:"last_updated"`
}

// SearchResult pairs a chunk with its similarity score.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Source is a formatted, de-duplicated citation attached to an answer.
type Source struct {
	DocumentName string  `json:"document_name"`
	Similarity   float64 `json:"similarity"`
	TextPreview  string  `json:"text_preview"`
}
