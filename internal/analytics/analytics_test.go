package analytics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqua777/go-docqa/internal/db"
	"github.com/aqua777/go-docqa/internal/domain"
)

func openTestReporter(t *testing.T) (*Reporter, *db.DB) {
	t.Helper()
	database, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return New(database), database
}

func strPtr(s string) *string { return &s }

func insertRecord(t *testing.T, database *db.DB, question string, success bool, responseTime float64, llmUsed string, hash string, createdAt time.Time) {
	t.Helper()
	var llm *string
	if llmUsed != "" {
		llm = strPtr(llmUsed)
	}
	var answer *string
	if success {
		answer = strPtr("some answer")
	}
	_, err := database.InsertQueryRecord(context.Background(), domain.QueryRecord{
		Question: question, Answer: answer, SourcesCount: 1, ResponseTime: responseTime,
		LLMUsed: llm, ContextChunksCount: 1, Success: success, SimilarityHash: hash, CreatedAt: createdAt,
	})
	require.NoError(t, err)
}

func TestStatsComputesCountsAndAverage(t *testing.T) {
	reporter, database := openTestReporter(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insertRecord(t, database, "q1", true, 1.0, "openai", "hash1", now)
	insertRecord(t, database, "q2", true, 2.0, "openai", "hash2", now)
	insertRecord(t, database, "q3", false, 0.5, "", "hash3", now)

	stats, err := reporter.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalQueries)
	assert.Equal(t, 2, stats.SuccessfulQueries)
	assert.Equal(t, 1, stats.FailedQueries)
	assert.InDelta(t, (1.0+2.0+0.5)/3, stats.AvgResponseTime, 0.0001)
	assert.Equal(t, "openai", stats.TopLLMUsed)
}

func TestStatsHandlesEmptyHistory(t *testing.T) {
	reporter, _ := openTestReporter(t)
	stats, err := reporter.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalQueries)
	assert.Zero(t, stats.AvgResponseTime)
	assert.Empty(t, stats.TopLLMUsed)
}

func TestPopularQuestionsFiltersByMinFrequency(t *testing.T) {
	reporter, database := openTestReporter(t)
	now := time.Now().UTC()

	insertRecord(t, database, "what color is it", true, 1.0, "openai", "hashA", now)
	insertRecord(t, database, "what color is it?", true, 1.5, "openai", "hashA", now.Add(time.Minute))
	insertRecord(t, database, "how much does it cost", true, 2.0, "openai", "hashB", now)

	result, err := reporter.PopularQuestions(context.Background(), 10, 2)
	require.NoError(t, err)
	require.Len(t, result.Questions, 1)
	assert.Equal(t, 2, result.Questions[0].Frequency)
	assert.Equal(t, 2, result.TotalUniqueQuestions)
	assert.Equal(t, 100.0, result.Questions[0].SuccessRate)
}

func TestPopularQuestionsOrdersByDescendingFrequency(t *testing.T) {
	reporter, database := openTestReporter(t)
	now := time.Now().UTC()

	for i := 0; i < 2; i++ {
		insertRecord(t, database, "question b", true, 1.0, "openai", "hashB", now)
	}
	for i := 0; i < 4; i++ {
		insertRecord(t, database, "question a", true, 1.0, "openai", "hashA", now)
	}

	result, err := reporter.PopularQuestions(context.Background(), 10, 2)
	require.NoError(t, err)
	require.Len(t, result.Questions, 2)
	assert.Equal(t, 4, result.Questions[0].Frequency)
	assert.Equal(t, 2, result.Questions[1].Frequency)
}

func TestPopularQuestionsClampsLimitToMax(t *testing.T) {
	reporter, database := openTestReporter(t)
	now := time.Now().UTC()
	for i := 0; i < maxPopularLimit+1; i++ {
		hash := fmt.Sprintf("hash%d", i)
		insertRecord(t, database, "question "+hash, true, 1.0, "openai", hash, now)
		insertRecord(t, database, "question "+hash, true, 1.0, "openai", hash, now)
	}

	result, err := reporter.PopularQuestions(context.Background(), 1000, 2)
	require.NoError(t, err)
	assert.NotNil(t, result.Questions)
	assert.Len(t, result.Questions, maxPopularLimit)
}

func TestTrendsBucketsByUTCDate(t *testing.T) {
	reporter, database := openTestReporter(t)
	today := time.Now().UTC().Truncate(24 * time.Hour)
	yesterday := today.Add(-24 * time.Hour)

	insertRecord(t, database, "q1", true, 1.0, "openai", "h1", today.Add(2*time.Hour))
	insertRecord(t, database, "q2", false, 2.0, "openai", "h2", today.Add(3*time.Hour))
	insertRecord(t, database, "q3", true, 1.0, "openai", "h3", yesterday.Add(2*time.Hour))

	trends, err := reporter.Trends(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, trends, 2)

	last := trends[len(trends)-1]
	assert.Equal(t, today.Format("2006-01-02"), last.Date)
	assert.Equal(t, 2, last.TotalQueries)
	assert.Equal(t, 1, last.SuccessfulQueries)
	assert.InDelta(t, 50.0, last.SuccessRate, 0.01)
}

func TestTrendsExcludesRecordsOutsideWindow(t *testing.T) {
	reporter, database := openTestReporter(t)
	old := time.Now().UTC().AddDate(0, 0, -30)
	insertRecord(t, database, "old question", true, 1.0, "openai", "hOld", old)

	trends, err := reporter.Trends(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, trends)
}

func TestLLMUsageStatsCountsByBackend(t *testing.T) {
	reporter, database := openTestReporter(t)
	now := time.Now().UTC()

	insertRecord(t, database, "q1", true, 1.0, "openai", "h1", now)
	insertRecord(t, database, "q2", true, 1.0, "openai", "h2", now)
	insertRecord(t, database, "q3", true, 1.0, "local", "h3", now)
	insertRecord(t, database, "q4", false, 1.0, "", "h4", now)

	usage, err := reporter.LLMUsageStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, usage.Counts["openai"])
	assert.Equal(t, 1, usage.Counts["local"])
	assert.Equal(t, "openai", usage.TopLLM)
	assert.Equal(t, 2, usage.TopLLMCount)
}

func TestLLMUsageStatsEmptyHistory(t *testing.T) {
	reporter, _ := openTestReporter(t)
	usage, err := reporter.LLMUsageStats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, usage.TopLLM)
	assert.Equal(t, 0, usage.TopLLMCount)
}
