// Package analytics implements the analytics component (C8): four
// read-only aggregations over persisted QueryRecords, grounded on
// original_source/backend/app/routers/analytics.py's four endpoint
// handlers but computed in memory over internal/db.AllQueryRecords
// rather than pushed down as SQL, since this module keeps its
// persistence layer to plain parameterized statements (§4.10 names no
// aggregate-query requirement beyond "reads-only").
package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/aqua777/go-docqa/internal/db"
)

const (
	defaultPopularLimit = 10
	maxPopularLimit     = 50
	defaultMinFrequency = 2
)

// Reporter computes the analytics views over the persisted query
// history and document count.
type Reporter struct {
	store *db.DB
}

// New builds a Reporter over the shared relational store.
func New(store *db.DB) *Reporter {
	return &Reporter{store: store}
}

// Stats is the comprehensive usage snapshot returned by GET
// /analytics/stats.
type Stats struct {
	TotalQueries      int       `json:"total_queries"`
	TotalDocuments    int       `json:"total_documents"`
	AvgResponseTime   float64   `json:"avg_response_time"`
	SuccessfulQueries int       `json:"successful_queries"`
	FailedQueries     int       `json:"failed_queries"`
	TopLLMUsed        string    `json:"top_llm_used"`
	LastUpdated       time.Time `json:"last_updated"`
}

// Stats computes total/success/failure counts and the live average
// response time, then overwrites the analytics_stats row with them
// before returning, matching the original's "update stats table with
// real-time data" step.
func (r *Reporter) Stats(ctx context.Context) (Stats, error) {
	records, err := r.store.AllQueryRecords(ctx)
	if err != nil {
		return Stats{}, err
	}
	totalDocuments, err := r.store.CountDocuments(ctx)
	if err != nil {
		return Stats{}, err
	}

	var successful int
	var totalResponseTime float64
	llmCounts := make(map[string]int)
	for _, rec := range records {
		if rec.Success {
			successful++
		}
		totalResponseTime += rec.ResponseTime
		if rec.LLMUsed != nil && *rec.LLMUsed != "" {
			llmCounts[*rec.LLMUsed]++
		}
	}

	avg := 0.0
	if len(records) > 0 {
		avg = totalResponseTime / float64(len(records))
	}

	counters, err := r.store.GetAnalyticsCounters(ctx)
	if err != nil {
		return Stats{}, err
	}
	counters.TotalQueries = len(records)
	counters.TotalDocuments = totalDocuments
	counters.AvgResponseTime = avg
	if err := r.store.UpsertAnalyticsCounters(ctx, counters); err != nil {
		return Stats{}, err
	}
	refreshed, err := r.store.GetAnalyticsCounters(ctx)
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		TotalQueries:      len(records),
		TotalDocuments:    totalDocuments,
		AvgResponseTime:   avg,
		SuccessfulQueries: successful,
		FailedQueries:     len(records) - successful,
		TopLLMUsed:        topByCountThenLex(llmCounts),
		LastUpdated:       refreshed.LastUpdated,
	}, nil
}

// PopularQuestion summarizes one group of near-duplicate questions.
type PopularQuestion struct {
	Question        string    `json:"question"`
	Frequency       int       `json:"frequency"`
	AvgResponseTime float64   `json:"avg_response_time"`
	SuccessRate     float64   `json:"success_rate"`
	LastAsked       time.Time `json:"last_asked"`
}

// PopularQuestionsResult pairs the ranked groups with the distinct hash
// count.
type PopularQuestionsResult struct {
	Questions            []PopularQuestion `json:"questions"`
	TotalUniqueQuestions int               `json:"total_unique_questions"`
}

// PopularQuestions groups records by SimilarityHash, keeping groups
// whose frequency meets minFrequency (default 2), ordered by
// descending frequency and capped at limit (default 10, max 50).
func (r *Reporter) PopularQuestions(ctx context.Context, limit, minFrequency int) (PopularQuestionsResult, error) {
	if limit <= 0 {
		limit = defaultPopularLimit
	}
	if limit > maxPopularLimit {
		limit = maxPopularLimit
	}
	if minFrequency <= 0 {
		minFrequency = defaultMinFrequency
	}

	records, err := r.store.AllQueryRecords(ctx)
	if err != nil {
		return PopularQuestionsResult{}, err
	}

	type group struct {
		question        string
		frequency       int
		totalResponse   float64
		successfulCount int
		lastAsked       time.Time
	}
	groups := make(map[string]*group)
	order := make([]string, 0)
	for _, rec := range records {
		if rec.SimilarityHash == "" {
			continue
		}
		g, ok := groups[rec.SimilarityHash]
		if !ok {
			g = &group{question: rec.Question}
			groups[rec.SimilarityHash] = g
			order = append(order, rec.SimilarityHash)
		}
		g.frequency++
		g.totalResponse += rec.ResponseTime
		if rec.Success {
			g.successfulCount++
		}
		if rec.CreatedAt.After(g.lastAsked) {
			g.lastAsked = rec.CreatedAt
		}
	}

	qualifying := make([]*group, 0, len(order))
	for _, hash := range order {
		g := groups[hash]
		if g.frequency >= minFrequency {
			qualifying = append(qualifying, g)
		}
	}
	sort.SliceStable(qualifying, func(i, j int) bool { return qualifying[i].frequency > qualifying[j].frequency })
	if len(qualifying) > limit {
		qualifying = qualifying[:limit]
	}

	out := make([]PopularQuestion, 0, len(qualifying))
	for _, g := range qualifying {
		successRate := 0.0
		if g.frequency > 0 {
			successRate = float64(g.successfulCount) / float64(g.frequency) * 100
		}
		out = append(out, PopularQuestion{
			Question:        g.question,
			Frequency:       g.frequency,
			AvgResponseTime: g.totalResponse / float64(g.frequency),
			SuccessRate:     successRate,
			LastAsked:       g.lastAsked,
		})
	}

	return PopularQuestionsResult{Questions: out, TotalUniqueQuestions: len(groups)}, nil
}

// DayTrend is one UTC calendar date's aggregate.
type DayTrend struct {
	Date              string  `json:"date"`
	TotalQueries      int     `json:"total_queries"`
	SuccessfulQueries int     `json:"successful_queries"`
	SuccessRate       float64 `json:"success_rate"`
	AvgResponseTime   float64 `json:"avg_response_time"`
}

// Trends buckets records by UTC calendar date over the last days days
// (1-365 expected to already be validated by the caller) and emits one
// DayTrend per date that has at least one record.
func (r *Reporter) Trends(ctx context.Context, days int) ([]DayTrend, error) {
	if days <= 0 {
		days = 7
	}
	if days > 365 {
		days = 365
	}

	records, err := r.store.AllQueryRecords(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	type bucket struct {
		total, successful int
		totalResponse     float64
	}
	buckets := make(map[string]*bucket)
	for _, rec := range records {
		ts := rec.CreatedAt.UTC()
		if ts.Before(cutoff) {
			continue
		}
		key := ts.Format("2006-01-02")
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.total++
		if rec.Success {
			b.successful++
		}
		b.totalResponse += rec.ResponseTime
	}

	dates := make([]string, 0, len(buckets))
	for k := range buckets {
		dates = append(dates, k)
	}
	sort.Strings(dates)

	trends := make([]DayTrend, 0, len(dates))
	for _, date := range dates {
		b := buckets[date]
		successRate := 0.0
		avg := 0.0
		if b.total > 0 {
			successRate = roundTo2(float64(b.successful) / float64(b.total) * 100)
			avg = roundTo2(b.totalResponse / float64(b.total))
		}
		trends = append(trends, DayTrend{
			Date:              date,
			TotalQueries:      b.total,
			SuccessfulQueries: b.successful,
			SuccessRate:       successRate,
			AvgResponseTime:   avg,
		})
	}
	return trends, nil
}

// LLMUsage is the per-backend invocation count.
type LLMUsage struct {
	Counts      map[string]int `json:"counts"`
	TopLLM      string         `json:"top_llm"`
	TopLLMCount int            `json:"top_llm_count"`
}

// LLMUsageStats counts records by non-null LLMUsed and reports the
// backend with the highest count. Counts is a map and carries no order.
func (r *Reporter) LLMUsageStats(ctx context.Context) (LLMUsage, error) {
	records, err := r.store.AllQueryRecords(ctx)
	if err != nil {
		return LLMUsage{}, err
	}

	counts := make(map[string]int)
	for _, rec := range records {
		if rec.LLMUsed != nil && *rec.LLMUsed != "" {
			counts[*rec.LLMUsed]++
		}
	}

	top, topCount := topWithCount(counts)
	return LLMUsage{Counts: counts, TopLLM: top, TopLLMCount: topCount}, nil
}

func topByCountThenLex(counts map[string]int) string {
	top, _ := topWithCount(counts)
	return top
}

func topWithCount(counts map[string]int) (string, int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best := ""
	bestCount := 0
	for _, k := range keys {
		if counts[k] > bestCount {
			best = k
			bestCount = counts[k]
		}
	}
	return best, bestCount
}

func roundTo2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
