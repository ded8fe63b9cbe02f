// Package db implements the persistence component (C10): three
// relational tables (documents, query_history, analytics_stats) over a
// pure-Go SQLite driver, grounded on 54b3r-tfai-go/internal/store's
// single-writer-conn SQLiteStore shape.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/aqua777/go-docqa/internal/apperr"
	"github.com/aqua777/go-docqa/internal/domain"
)

const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    id             TEXT PRIMARY KEY,
    filename       TEXT NOT NULL,
    file_path      TEXT NOT NULL,
    file_type      TEXT NOT NULL,
    processed_path TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT 'uploaded',
    char_count     INTEGER NOT NULL DEFAULT 0,
    chunks_created INTEGER NOT NULL DEFAULT 0,
    document_id    TEXT NOT NULL,
    created_at     INTEGER NOT NULL,
    updated_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS query_history (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    question             TEXT NOT NULL,
    answer               TEXT,
    sources_count        INTEGER NOT NULL DEFAULT 0,
    response_time        REAL NOT NULL DEFAULT 0,
    llm_used             TEXT,
    context_chunks_count INTEGER NOT NULL DEFAULT 0,
    success              INTEGER NOT NULL DEFAULT 0,
    similarity_hash      TEXT NOT NULL DEFAULT '',
    created_at           INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_query_history_similarity_hash ON query_history (similarity_hash);
CREATE INDEX IF NOT EXISTS idx_query_history_created_at ON query_history (created_at);

CREATE TABLE IF NOT EXISTS analytics_stats (
    id                INTEGER PRIMARY KEY CHECK (id = 1),
    total_queries     INTEGER NOT NULL DEFAULT 0,
    total_documents   INTEGER NOT NULL DEFAULT 0,
    avg_response_time REAL NOT NULL DEFAULT 0,
    last_updated      INTEGER NOT NULL
);
`

const seedAnalyticsRow = `INSERT OR IGNORE INTO analytics_stats (id, total_queries, total_documents, avg_response_time, last_updated) VALUES (1, 0, 0, 0, ?)`

// DB is the shared relational connection pool over documents,
// query_history, and analytics_stats.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database at path and idempotently
// creates the schema, seeding the analytics_stats singleton row if
// absent. A single writer connection avoids SQLITE_BUSY under
// concurrent writes, matching the reference store's policy.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("db: create directory for %s: %w", path, err)
		}
	}
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	if path == ":memory:" {
		dsn = path
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)

	d := &DB{conn: conn}
	if err := d.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) migrate() error {
	if _, err := d.conn.Exec(ddl); err != nil {
		return apperr.Wrap(apperr.Transient, "migrate schema", err)
	}
	if _, err := d.conn.Exec(seedAnalyticsRow, time.Now().Unix()); err != nil {
		return apperr.Wrap(apperr.Transient, "seed analytics row", err)
	}
	return nil
}

// Close releases the connection pool.
func (d *DB) Close() error {
	return d.conn.Close()
}

// InsertDocument creates the relational row for a newly uploaded file.
func (d *DB) InsertDocument(ctx context.Context, doc domain.Document) error {
	const q = `INSERT INTO documents (id, filename, file_path, file_type, processed_path, status, char_count, chunks_created, document_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := d.conn.ExecContext(ctx, q, doc.ID, doc.Filename, doc.FilePath, doc.FileType, doc.ProcessedPath,
		string(doc.Status), doc.CharCount, doc.ChunksCreated, doc.DocumentID, doc.CreatedAt.Unix(), doc.UpdatedAt.Unix())
	if err != nil {
		return apperr.Wrap(apperr.Transient, "insert document", err)
	}
	return nil
}

// UpdateDocumentStatus transitions a document's status and ingest
// results after a completed (or failed) ingest.
func (d *DB) UpdateDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus, charCount, chunksCreated int, processedPath string) error {
	const q = `UPDATE documents SET status = ?, char_count = ?, chunks_created = ?, processed_path = ?, updated_at = ? WHERE id = ?`
	res, err := d.conn.ExecContext(ctx, q, string(status), charCount, chunksCreated, processedPath, time.Now().Unix(), id)
	if err != nil {
		return apperr.Wrap(apperr.Transient, "update document status", err)
	}
	return checkRowsAffected(res, id)
}

// GetDocument returns one document by id.
func (d *DB) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	const q = `SELECT id, filename, file_path, file_type, processed_path, status, char_count, chunks_created, document_id, created_at, updated_at
FROM documents WHERE id = ?`
	row := d.conn.QueryRowContext(ctx, q, id)
	return scanDocument(row)
}

// ListDocuments returns documents newest-first, paginated.
func (d *DB) ListDocuments(ctx context.Context, limit, offset int) ([]domain.Document, error) {
	const q = `SELECT id, filename, file_path, file_type, processed_path, status, char_count, chunks_created, document_id, created_at, updated_at
FROM documents ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := d.conn.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, "list documents", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document's relational row only. It removes
// no files and leaves the document's chunks in the vector store.
func (d *DB) DeleteDocument(ctx context.Context, id string) error {
	res, err := d.conn.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return apperr.Wrap(apperr.Transient, "delete document", err)
	}
	return checkRowsAffected(res, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var doc domain.Document
	var status string
	var createdAt, updatedAt int64
	err := row.Scan(&doc.ID, &doc.Filename, &doc.FilePath, &doc.FileType, &doc.ProcessedPath, &status,
		&doc.CharCount, &doc.ChunksCreated, &doc.DocumentID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return domain.Document{}, apperr.New(apperr.NotFound, "document not found")
	}
	if err != nil {
		return domain.Document{}, apperr.Wrap(apperr.Transient, "scan document", err)
	}
	doc.Status = domain.DocumentStatus(status)
	doc.CreatedAt = time.Unix(createdAt, 0).UTC()
	doc.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return doc, nil
}

// InsertQueryRecord persists one ask/search invocation, including
// failures, per the query pipeline's "always persist" contract.
func (d *DB) InsertQueryRecord(ctx context.Context, rec domain.QueryRecord) (int64, error) {
	const q = `INSERT INTO query_history (question, answer, sources_count, response_time, llm_used, context_chunks_count, success, similarity_hash, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := d.conn.ExecContext(ctx, q, rec.Question, rec.Answer, rec.SourcesCount, rec.ResponseTime, rec.LLMUsed,
		rec.ContextChunksCount, boolToInt(rec.Success), rec.SimilarityHash, rec.CreatedAt.Unix())
	if err != nil {
		return 0, apperr.Wrap(apperr.Transient, "insert query record", err)
	}
	return res.LastInsertId()
}

// ListQueryHistory returns query records newest-first, paginated.
func (d *DB) ListQueryHistory(ctx context.Context, limit, offset int) ([]domain.QueryRecord, error) {
	const q = `SELECT id, question, answer, sources_count, response_time, llm_used, context_chunks_count, success, similarity_hash, created_at
FROM query_history ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := d.conn.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, "list query history", err)
	}
	defer rows.Close()

	var records []domain.QueryRecord
	for rows.Next() {
		rec, err := scanQueryRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// AllQueryRecords returns every persisted query record, used by the
// analytics aggregations (§4.8), which scan the full history in memory
// rather than pushing per-report SQL.
func (d *DB) AllQueryRecords(ctx context.Context) ([]domain.QueryRecord, error) {
	const q = `SELECT id, question, answer, sources_count, response_time, llm_used, context_chunks_count, success, similarity_hash, created_at
FROM query_history ORDER BY created_at ASC`
	rows, err := d.conn.QueryContext(ctx, q)
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, "scan query history", err)
	}
	defer rows.Close()

	var records []domain.QueryRecord
	for rows.Next() {
		rec, err := scanQueryRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanQueryRecord(row rowScanner) (domain.QueryRecord, error) {
	var rec domain.QueryRecord
	var answer, llmUsed sql.NullString
	var success int
	var createdAt int64
	err := row.Scan(&rec.ID, &rec.Question, &answer, &rec.SourcesCount, &rec.ResponseTime, &llmUsed,
		&rec.ContextChunksCount, &success, &rec.SimilarityHash, &createdAt)
	if err != nil {
		return domain.QueryRecord{}, apperr.Wrap(apperr.Transient, "scan query record", err)
	}
	if answer.Valid {
		rec.Answer = &answer.String
	}
	if llmUsed.Valid {
		rec.LLMUsed = &llmUsed.String
	}
	rec.Success = success != 0
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	return rec, nil
}

// CountDocuments returns the total number of document rows, used to
// seed AnalyticsCounters.total_documents.
func (d *DB) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, apperr.Wrap(apperr.Transient, "count documents", err)
	}
	return n, nil
}

// GetAnalyticsCounters reads the singleton analytics_stats row.
func (d *DB) GetAnalyticsCounters(ctx context.Context) (domain.AnalyticsCounters, error) {
	const q = `SELECT total_queries, total_documents, avg_response_time, last_updated FROM analytics_stats WHERE id = 1`
	var counters domain.AnalyticsCounters
	var lastUpdated int64
	if err := d.conn.QueryRowContext(ctx, q).Scan(&counters.TotalQueries, &counters.TotalDocuments, &counters.AvgResponseTime, &lastUpdated); err != nil {
		return domain.AnalyticsCounters{}, apperr.Wrap(apperr.Transient, "read analytics counters", err)
	}
	counters.LastUpdated = time.Unix(lastUpdated, 0).UTC()
	return counters, nil
}

// UpsertAnalyticsCounters overwrites the singleton analytics_stats row,
// used both for the running-average update after each query and to
// refresh totals after an analytics read (§4.8's "overwritten with the
// live totals" policy).
func (d *DB) UpsertAnalyticsCounters(ctx context.Context, counters domain.AnalyticsCounters) error {
	const q = `UPDATE analytics_stats SET total_queries = ?, total_documents = ?, avg_response_time = ?, last_updated = ? WHERE id = 1`
	_, err := d.conn.ExecContext(ctx, q, counters.TotalQueries, counters.TotalDocuments, counters.AvgResponseTime, time.Now().Unix())
	if err != nil {
		return apperr.Wrap(apperr.Transient, "upsert analytics counters", err)
	}
	return nil
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.Transient, "rows affected", err)
	}
	if n == 0 {
		return apperr.New(apperr.NotFound, "no row for id "+id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
