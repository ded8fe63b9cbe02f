// Package query implements the query pipeline component (C7): ask()
// composes retrieval, Document enrichment, context-budget prompt
// assembly, and LLM generation into one answer; search() stops after
// retrieval. ask() persists a QueryRecord and rolls the running
// AnalyticsCounters average forward; search() persists nothing. Grounded on
// original_source/backend/app/routers/query.py's ask_question handler.
package query

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aqua777/go-docqa/internal/apperr"
	"github.com/aqua777/go-docqa/internal/db"
	"github.com/aqua777/go-docqa/internal/domain"
	"github.com/aqua777/go-docqa/internal/llmlayer"
	"github.com/aqua777/go-docqa/internal/rag"
	"github.com/aqua777/go-docqa/prompts"
)

const (
	minQuestionLen  = 3
	maxQuestionLen  = 1000
	minTopK         = 1
	maxTopK         = 20
	maxContextChars = 3500
	maxSources      = 3
	sourcePreviewN  = 200

	noResultsAnswer = "I couldn't find any relevant information in the uploaded documents to answer your question. Please try rephrasing your question or upload more relevant documents."
	failureAnswer   = "I apologize, but I encountered an error while processing your question. Please try again."
)

// Params bounds one ask()/search() invocation, matching the request
// defaults original_source's QueryRequest validates.
type Params struct {
	Question       string
	TopK           int
	ScoreThreshold float64
	MaxTokens      int
	Temperature    float64
	DocumentIDs    map[string]bool
}

// Answer is the response to an ask() call.
type Answer struct {
	Success            bool            `json:"success"`
	Answer             string          `json:"answer"`
	Sources            []domain.Source `json:"sources"`
	LLMUsed            string          `json:"llm_used"`
	ResponseTime       float64         `json:"response_time"`
	ContextChunksCount int             `json:"context_chunks_count"`
	Error              string          `json:"error,omitempty"`
}

// Pipeline wires the RAG orchestrator's search, the LLM layer, and
// persistence into the ask/search operations.
type Pipeline struct {
	rag    *rag.Orchestrator
	llm    *llmlayer.Layer
	store  *db.DB
	logger *slog.Logger
}

// New builds a query pipeline over an already-wired orchestrator, LLM
// layer, and relational store.
func New(r *rag.Orchestrator, llm *llmlayer.Layer, store *db.DB, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{rag: r, llm: llm, store: store, logger: logger}
}

// Validate applies the bounds ask() and search() share: question
// length, top_k range, and threshold range.
func Validate(p Params) error {
	n := utf8.RuneCountInString(strings.TrimSpace(p.Question))
	if n < minQuestionLen || n > maxQuestionLen {
		return apperr.New(apperr.Validation, fmt.Sprintf("question must be between %d and %d characters", minQuestionLen, maxQuestionLen))
	}
	if p.TopK < minTopK || p.TopK > maxTopK {
		return apperr.New(apperr.Validation, fmt.Sprintf("top_k must be between %d and %d", minTopK, maxTopK))
	}
	if p.ScoreThreshold < 0 || p.ScoreThreshold > 1 {
		return apperr.New(apperr.Validation, "score_threshold must be between 0 and 1")
	}
	return nil
}

// Search performs retrieval only, with no LLM call and no persistence.
func (p *Pipeline) Search(ctx context.Context, params Params) ([]domain.SearchResult, error) {
	if err := Validate(params); err != nil {
		return nil, err
	}
	return p.rag.Search(ctx, params.Question, params.TopK, params.ScoreThreshold, params.DocumentIDs)
}

// Ask runs the full eight-step pipeline: validate, retrieve, enrich,
// budget the context, prompt, generate, format sources, and persist.
// Errors encountered after retrieval still produce a persisted,
// success=false QueryRecord with a fixed apology answer rather than
// propagating to the caller, matching the "always persist" contract.
func (p *Pipeline) Ask(ctx context.Context, params Params) (Answer, error) {
	start := time.Now()
	if err := Validate(params); err != nil {
		return Answer{}, err
	}

	results, err := p.rag.Search(ctx, params.Question, params.TopK, params.ScoreThreshold, params.DocumentIDs)
	if err != nil {
		return Answer{}, err
	}

	if len(results) == 0 {
		answer := Answer{
			Success:            true,
			Answer:             noResultsAnswer,
			Sources:            nil,
			LLMUsed:            string(llmlayer.KindNone),
			ResponseTime:       time.Since(start).Seconds(),
			ContextChunksCount: 0,
		}
		p.persist(ctx, params.Question, answer)
		return answer, nil
	}

	enriched := p.enrich(ctx, results)
	contextStr, includedSources := buildContext(enriched)

	prompt := prompts.DocQAPrompt.Format(map[string]string{
		"context_str": contextStr,
		"query_str":   params.Question,
	})

	generated, kind, genErr := p.llm.Generate(ctx, prompt, params.MaxTokens, params.Temperature)
	if genErr != nil {
		p.logger.Error("answer generation failed", "err", genErr)
		answer := Answer{
			Success:            false,
			Answer:             failureAnswer,
			Sources:            nil,
			ResponseTime:       time.Since(start).Seconds(),
			ContextChunksCount: 0,
			Error:              genErr.Error(),
		}
		p.persist(ctx, params.Question, answer)
		return answer, nil
	}

	answer := Answer{
		Success:            true,
		Answer:             generated,
		Sources:            formatSources(includedSources),
		LLMUsed:            string(kind),
		ResponseTime:       time.Since(start).Seconds(),
		ContextChunksCount: len(enriched),
	}
	p.persist(ctx, params.Question, answer)
	return answer, nil
}

type enrichedResult struct {
	domain.SearchResult
	sourceName string
}

// enrich looks up each chunk's owning Document to recover its filename,
// falling back to a synthetic "Document <id>" name when the row is
// absent (e.g. deleted after indexing).
func (p *Pipeline) enrich(ctx context.Context, results []domain.SearchResult) []enrichedResult {
	names := make(map[string]string, len(results))
	out := make([]enrichedResult, 0, len(results))
	for _, r := range results {
		docID := r.Chunk.DocumentID
		name, ok := names[docID]
		if !ok {
			if doc, err := p.store.GetDocument(ctx, docID); err == nil {
				name = doc.Filename
			} else {
				name = fmt.Sprintf("Document %s", docID)
			}
			names[docID] = name
		}
		out = append(out, enrichedResult{SearchResult: r, sourceName: name})
	}
	return out
}

// buildContext sorts by descending similarity and concatenates whole
// chunks, formatted as "[Source i: name]\ntext", until the soft
// character budget is reached. It returns the assembled context string
// and the ordered slice of chunks actually included.
func buildContext(results []enrichedResult) (string, []enrichedResult) {
	sorted := make([]enrichedResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	var b strings.Builder
	included := make([]enrichedResult, 0, len(sorted))
	for i, r := range sorted {
		block := fmt.Sprintf("[Source %d: %s]\n%s", i+1, r.sourceName, r.Chunk.Text)
		if b.Len() > 0 && b.Len()+len("\n\n")+len(block) > maxContextChars {
			break
		}
		if b.Len() == 0 && len(block) > maxContextChars {
			b.WriteString(block)
			included = append(included, r)
			break
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(block)
		included = append(included, r)
	}
	return b.String(), included
}

// formatSources produces up to maxSources de-duplicated citations,
// rounding similarity to three decimals and truncating the preview.
func formatSources(results []enrichedResult) []domain.Source {
	seen := make(map[string]bool, len(results))
	sources := make([]domain.Source, 0, maxSources)
	for _, r := range results {
		if seen[r.sourceName] {
			continue
		}
		seen[r.sourceName] = true
		sources = append(sources, domain.Source{
			DocumentName: r.sourceName,
			Similarity:   roundTo3(r.Score),
			TextPreview:  truncateRunes(r.Chunk.Text, sourcePreviewN),
		})
		if len(sources) == maxSources {
			break
		}
	}
	return sources
}

func roundTo3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// NormalizeQuestion lowercases, trims, and strips ?.,  so that
// near-duplicate phrasings hash identically for popular-question
// grouping.
func NormalizeQuestion(question string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	normalized = strings.NewReplacer("?", "", ".", "", ",", "").Replace(normalized)
	return normalized
}

// QuestionHash returns the MD5 hex digest of the normalized question.
func QuestionHash(question string) string {
	sum := md5.Sum([]byte(NormalizeQuestion(question)))
	return hex.EncodeToString(sum[:])
}

// persist writes the QueryRecord and rolls AnalyticsCounters forward.
// Persistence failures are logged, not returned, matching the
// source's best-effort save_query_to_history.
func (p *Pipeline) persist(ctx context.Context, question string, answer Answer) {
	var answerPtr, llmPtr *string
	if answer.Success {
		a := answer.Answer
		answerPtr = &a
	}
	if answer.LLMUsed != "" {
		l := answer.LLMUsed
		llmPtr = &l
	}

	rec := domain.QueryRecord{
		Question:           question,
		Answer:             answerPtr,
		SourcesCount:       len(answer.Sources),
		ResponseTime:       answer.ResponseTime,
		LLMUsed:            llmPtr,
		ContextChunksCount: answer.ContextChunksCount,
		Success:            answer.Success,
		SimilarityHash:     QuestionHash(question),
		CreatedAt:          time.Now().UTC(),
	}
	if _, err := p.store.InsertQueryRecord(ctx, rec); err != nil {
		p.logger.Error("failed to persist query record", "err", err)
		return
	}

	counters, err := p.store.GetAnalyticsCounters(ctx)
	if err != nil {
		p.logger.Error("failed to read analytics counters", "err", err)
		return
	}
	counters.TotalQueries++
	total := counters.AvgResponseTime*float64(counters.TotalQueries-1) + answer.ResponseTime
	counters.AvgResponseTime = total / float64(counters.TotalQueries)
	if err := p.store.UpsertAnalyticsCounters(ctx, counters); err != nil {
		p.logger.Error("failed to update analytics counters", "err", err)
	}
}
