// Package httpapi implements the HTTP surface component (A3): a
// gin-gonic/gin router exposing document, query, analytics, and system
// endpoints under /api/v1 plus the per-client WebSocket route, grounded
// on semaj90-mau5law/go-chat-service/main.go's router setup (route
// groups, manual CORS middleware, gin.H response idiom) and on the
// endpoint contracts of original_source/backend/app/routers'
// document.py, query.py, analytics.py, and websocket.py.
package httpapi

import (
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aqua777/go-docqa/internal/analytics"
	"github.com/aqua777/go-docqa/internal/apperr"
	"github.com/aqua777/go-docqa/internal/db"
	"github.com/aqua777/go-docqa/internal/domain"
	"github.com/aqua777/go-docqa/internal/llmlayer"
	"github.com/aqua777/go-docqa/internal/query"
	"github.com/aqua777/go-docqa/internal/rag"
	"github.com/aqua777/go-docqa/internal/stream"
	"github.com/aqua777/go-docqa/internal/workerpool"
)

// maxUploadSize is the hard cap enforced on incoming uploads before any
// extraction is attempted, distinct from the extractor's own internal
// safety cap.
const maxUploadSize = 20 * 1024 * 1024 // 20 MiB

var allowedUploadExt = map[string]bool{
	".pdf":  true,
	".docx": true,
	".txt":  true,
	".html": true,
	".md":   true,
}

const defaultListLimit = 20
const maxListLimit = 200

// Server wires the already-constructed domain components into a gin
// router. It holds no business logic of its own beyond request
// parsing, validation-error mapping, and response shaping.
type Server struct {
	uploadDir string

	db        *db.DB
	rag       *rag.Orchestrator
	queryPipe *query.Pipeline
	reporter  *analytics.Reporter
	llm       *llmlayer.Layer
	hub       *stream.Hub
	pool      *workerpool.Pool

	logger *slog.Logger
}

// New builds a Server from its already-constructed dependencies.
// uploadDir is where incoming files are saved before extraction.
func New(uploadDir string, database *db.DB, orchestrator *rag.Orchestrator, queryPipe *query.Pipeline, reporter *analytics.Reporter, llm *llmlayer.Layer, hub *stream.Hub, pool *workerpool.Pool, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		uploadDir: uploadDir,
		db:        database,
		rag:       orchestrator,
		queryPipe: queryPipe,
		reporter:  reporter,
		llm:       llm,
		hub:       hub,
		pool:      pool,
		logger:    logger,
	}
}

// Router builds the gin.Engine exposing every endpoint. gin.Logger and
// gin.Recovery are always installed; CORS is a permissive manual
// middleware matching the reference service's shape since this API has
// no notion of per-tenant origins.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	r.GET("/health", s.health)
	r.GET("/ws/client/:client_id", func(c *gin.Context) {
		s.hub.HandleConnection(c, c.Param("client_id"))
	})

	api := r.Group("/api/v1")
	{
		docs := api.Group("/documents")
		docs.POST("/upload", s.uploadDocument)
		docs.POST("/search", s.searchDocuments)
		docs.POST("/reset-vector-store", s.resetVectorStore)
		docs.GET("", s.listDocuments)
		docs.GET("/:id", s.getDocument)
		docs.DELETE("/:id", s.deleteDocument)
		docs.GET("/:id/content", s.documentContent)
		docs.GET("/:id/preview", s.documentPreview)
		docs.GET("/:id/download", s.documentDownload)

		q := api.Group("/query")
		q.POST("/ask", s.askQuestion)
		q.POST("/search", s.searchQuery)
		q.GET("/history", s.queryHistory)

		an := api.Group("/analytics")
		an.GET("/stats", s.analyticsStats)
		an.GET("/popular-questions", s.popularQuestions)
		an.GET("/query-trends", s.queryTrends)
		an.GET("/llm-usage", s.llmUsage)

		sys := api.Group("/system")
		sys.GET("/capabilities", s.systemCapabilities)
		sys.POST("/llm/primary", s.switchPrimaryLLM)
	}

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeError maps an apperr-tagged error to its prescribed HTTP status;
// errors with no Kind default to 500.
func writeError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(apperr.KindOf(err))
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseLimitOffset(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// --- documents ---

func (s *Server) uploadDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if fileHeader.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds the maximum allowed size"})
		return
	}
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedUploadExt[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type: " + ext})
		return
	}

	documentID := uuid.NewString()
	storedName := documentID + "_" + fileHeader.Filename
	destPath := filepath.Join(s.uploadDir, storedName)
	if err := c.SaveUploadedFile(fileHeader, destPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save upload"})
		return
	}

	ctx := c.Request.Context()
	doc := domain.Document{
		ID:         documentID,
		Filename:   fileHeader.Filename,
		FilePath:   destPath,
		FileType:   ext,
		Status:     domain.StatusUploaded,
		DocumentID: documentID,
	}
	if err := s.db.InsertDocument(ctx, doc); err != nil {
		_ = os.Remove(destPath)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record document"})
		return
	}

	var sink rag.ProgressSink = rag.NoopSink{}
	if clientID := c.PostForm("client_id"); clientID != "" {
		sink = s.hub.ProgressSink(clientID)
	}

	result, err := workerpool.Submit(s.pool, func() (rag.IngestResult, error) {
		return s.rag.IngestWithProgress(ctx, destPath, documentID, nil, sink)
	})
	if err != nil {
		_ = s.db.UpdateDocumentStatus(ctx, documentID, domain.StatusFailed, 0, 0, "")
		_ = os.Remove(destPath)
		writeError(c, err)
		return
	}

	if err := s.db.UpdateDocumentStatus(ctx, documentID, domain.StatusIndexed, result.CharCount, result.ChunksCreated, result.ProcessedPath); err != nil {
		s.logger.Error("failed to record ingest result", "document_id", documentID, "err", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"document_id":    documentID,
		"filename":       fileHeader.Filename,
		"status":         string(domain.StatusIndexed),
		"char_count":     result.CharCount,
		"chunks_created": result.ChunksCreated,
	})
}

func (s *Server) listDocuments(c *gin.Context) {
	limit, offset := parseLimitOffset(c)
	ctx := c.Request.Context()

	docs, err := s.db.ListDocuments(ctx, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	total, err := s.db.CountDocuments(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "total": total, "limit": limit, "offset": offset})
}

func (s *Server) getDocument(c *gin.Context) {
	doc, err := s.db.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// deleteDocument removes the on-disk file and processed-text cache and
// the relational row. It intentionally does not prune the document's
// chunks from the vector store: the original implementation this is
// grounded on never did either, and retrofitting per-document vector
// removal into a brute-force, append-only store is a larger change
// than this endpoint's contract calls for. reset-vector-store is the
// supported way to fully rebuild the index.
func (s *Server) deleteDocument(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	doc, err := s.db.GetDocument(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	if doc.FilePath != "" {
		_ = os.Remove(doc.FilePath)
	}
	if doc.ProcessedPath != "" {
		_ = os.Remove(doc.ProcessedPath)
	}
	if err := s.db.DeleteDocument(ctx, id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "document_id": id})
}

func (s *Server) documentContent(c *gin.Context) {
	ctx := c.Request.Context()
	doc, err := s.db.GetDocument(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	path := doc.ProcessedPath
	if path == "" || !fileExists(path) {
		path = doc.FilePath
	}
	if !fileExists(path) {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found on server"})
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read file"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"document_id": doc.ID,
		"filename":    doc.Filename,
		"content":     string(content),
		"char_count":  len(content),
		"file_type":   doc.FileType,
	})
}

// documentPreview serves PDFs and images inline and attempts a plain
// text inline render for everything else, falling back to a forced
// download when the file cannot be read as UTF-8 text.
func (s *Server) documentPreview(c *gin.Context) {
	ctx := c.Request.Context()
	doc, err := s.db.GetDocument(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !fileExists(doc.FilePath) {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found on server"})
		return
	}

	mimeType := mime.TypeByExtension(filepath.Ext(doc.Filename))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	if strings.HasPrefix(mimeType, "image/") || mimeType == "application/pdf" {
		c.Header("Content-Disposition", "inline; filename=\""+doc.Filename+"\"")
		c.File(doc.FilePath)
		return
	}

	path := doc.ProcessedPath
	if path == "" || !fileExists(path) {
		path = doc.FilePath
	}
	content, err := os.ReadFile(path)
	if err == nil && strings.ToValidUTF8(string(content), "") == string(content) {
		c.Header("Content-Disposition", "inline; filename=\""+doc.Filename+"\"")
		c.Data(http.StatusOK, "text/plain; charset=utf-8", content)
		return
	}

	c.FileAttachment(doc.FilePath, doc.Filename)
}

func (s *Server) documentDownload(c *gin.Context) {
	doc, err := s.db.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !fileExists(doc.FilePath) {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found on server"})
		return
	}
	c.Header("Content-Type", "application/octet-stream")
	c.FileAttachment(doc.FilePath, doc.Filename)
}

// searchDocuments mirrors the original handler's "never raise, always
// 200 with a success flag" contract for this particular endpoint.
func (s *Server) searchDocuments(c *gin.Context) {
	q := strings.TrimSpace(c.PostForm("query"))
	if q == "" {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "query is required"})
		return
	}
	topK := clampInt(atoiDefault(c.DefaultPostForm("top_k", "5"), 5), 1, 20)
	threshold := clampFloat(atofDefault(c.DefaultPostForm("score_threshold", "0.3"), 0.3), 0, 1)

	results, err := workerpool.Submit(s.pool, func() ([]domain.SearchResult, error) {
		return s.rag.Search(c.Request.Context(), q, topK, threshold, nil)
	})
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "results": results})
}

// resetVectorStore clears the index and reprocesses every recorded
// document from its saved file, returning the document_ids that
// reprocessed successfully.
func (s *Server) resetVectorStore(c *gin.Context) {
	ctx := c.Request.Context()
	if err := s.rag.ClearIndex(); err != nil {
		writeError(c, err)
		return
	}

	var docs []domain.Document
	for offset := 0; ; offset += maxListLimit {
		page, err := s.db.ListDocuments(ctx, maxListLimit, offset)
		if err != nil {
			writeError(c, err)
			return
		}
		docs = append(docs, page...)
		if len(page) < maxListLimit {
			break
		}
	}

	reprocessed := make([]string, 0, len(docs))
	for _, doc := range docs {
		if !fileExists(doc.FilePath) {
			continue
		}
		result, ierr := workerpool.Submit(s.pool, func() (rag.IngestResult, error) {
			return s.rag.Ingest(ctx, doc.FilePath, doc.DocumentID, nil)
		})
		if ierr != nil {
			s.logger.Warn("reset-vector-store failed to reprocess document", "document_id", doc.DocumentID, "err", ierr)
			continue
		}
		_ = s.db.UpdateDocumentStatus(ctx, doc.ID, domain.StatusIndexed, result.CharCount, result.ChunksCreated, result.ProcessedPath)
		reprocessed = append(reprocessed, doc.DocumentID)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "reprocessed": reprocessed})
}

// --- query ---

type askRequest struct {
	Question       string   `json:"question" binding:"required"`
	TopK           int      `json:"top_k"`
	ScoreThreshold float64  `json:"score_threshold"`
	MaxTokens      int      `json:"max_tokens"`
	Temperature    float64  `json:"temperature"`
	DocumentIDs    []string `json:"document_ids"`
}

func (r askRequest) toParams() query.Params {
	p := query.Params{
		Question:       r.Question,
		TopK:           r.TopK,
		ScoreThreshold: r.ScoreThreshold,
		MaxTokens:      r.MaxTokens,
		Temperature:    r.Temperature,
	}
	if p.TopK == 0 {
		p.TopK = 5
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = 512
	}
	if len(r.DocumentIDs) > 0 {
		p.DocumentIDs = make(map[string]bool, len(r.DocumentIDs))
		for _, id := range r.DocumentIDs {
			p.DocumentIDs[id] = true
		}
	}
	return p
}

func (s *Server) askQuestion(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params := req.toParams()
	if err := query.Validate(params); err != nil {
		writeError(c, err)
		return
	}

	answer, err := workerpool.Submit(s.pool, func() (query.Answer, error) {
		return s.queryPipe.Ask(c.Request.Context(), params)
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

func (s *Server) searchQuery(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params := req.toParams()
	if err := query.Validate(params); err != nil {
		writeError(c, err)
		return
	}

	results, err := workerpool.Submit(s.pool, func() ([]domain.SearchResult, error) {
		return s.queryPipe.Search(c.Request.Context(), params)
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) queryHistory(c *gin.Context) {
	limit, offset := parseLimitOffset(c)
	records, err := s.db.ListQueryHistory(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": records, "limit": limit, "offset": offset})
}

// --- analytics ---

func (s *Server) analyticsStats(c *gin.Context) {
	stats, err := s.reporter.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) popularQuestions(c *gin.Context) {
	limit := atoiDefault(c.DefaultQuery("limit", "10"), 10)
	minFreq := atoiDefault(c.DefaultQuery("min_frequency", "2"), 2)
	result, err := s.reporter.PopularQuestions(c.Request.Context(), limit, minFreq)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) queryTrends(c *gin.Context) {
	days := atoiDefault(c.DefaultQuery("days", "7"), 7)
	trends, err := s.reporter.Trends(c.Request.Context(), days)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trends": trends})
}

func (s *Server) llmUsage(c *gin.Context) {
	usage, err := s.reporter.LLMUsageStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

// --- system ---

func (s *Server) systemCapabilities(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"vector_store": s.rag.Stats(),
		"llm_primary":  string(s.llm.Primary()),
		"llm_backends": s.llm.Status(),
	})
}

type switchPrimaryRequest struct {
	Kind string `json:"kind" binding:"required"`
}

func (s *Server) switchPrimaryLLM(c *gin.Context) {
	var req switchPrimaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.llm.SwitchPrimary(llmlayer.Kind(req.Kind)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "primary": req.Kind})
}

// --- helpers ---

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func atoiDefault(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func atofDefault(s string, fallback float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return f
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
