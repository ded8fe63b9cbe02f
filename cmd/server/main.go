// Command server is the process entrypoint: it loads configuration,
// wires every internal component together, and serves the HTTP and
// WebSocket surface until an interrupt signal requests a graceful
// shutdown. Most wiring logic lives in internal/...; main stays a thin
// composition root, matching the reference pack's own thin-main idiom.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aqua777/go-docqa/embedding"
	"github.com/aqua777/go-docqa/internal/analytics"
	"github.com/aqua777/go-docqa/internal/chunker"
	"github.com/aqua777/go-docqa/internal/config"
	"github.com/aqua777/go-docqa/internal/db"
	"github.com/aqua777/go-docqa/internal/embedder"
	"github.com/aqua777/go-docqa/internal/extractor"
	"github.com/aqua777/go-docqa/internal/httpapi"
	"github.com/aqua777/go-docqa/internal/llmlayer"
	"github.com/aqua777/go-docqa/internal/logging"
	"github.com/aqua777/go-docqa/internal/query"
	"github.com/aqua777/go-docqa/internal/rag"
	"github.com/aqua777/go-docqa/internal/stream"
	"github.com/aqua777/go-docqa/internal/vectorstore"
	"github.com/aqua777/go-docqa/internal/workerpool"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.Logging.Format, cfg.Logging.Level)

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	uploadDir := filepath.Join(cfg.Storage.DataDir, "uploads")
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	database, err := db.Open(filepath.Join(cfg.Storage.DataDir, "document_qa.db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	ext := extractor.New(filepath.Join(cfg.Storage.DataDir, "processed"), logger)
	ch, err := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("build chunker: %w", err)
	}
	emb := buildEmbedder(cfg, logger)
	if cfg.RAG.EmbeddingCache {
		cache, err := vectorstore.NewEmbeddingCache(cfg.Storage.DataDir)
		if err != nil {
			logger.Warn("failed to open embedding cache, continuing without it", "err", err)
		} else {
			emb.SetCache(cache)
		}
	}
	store := vectorstore.New(cfg.Storage.DataDir, embedderBackendTag(cfg), cfg.Embedding.Model, cfg.RAG.HybridSearch)
	if err := store.Load(); err != nil {
		logger.Warn("failed to load existing vector store, starting empty", "err", err)
	}

	orchestrator := rag.New(ext, ch, emb, store, logger)

	llmLayer := llmlayer.New(buildLLMBackends(cfg), cfg.LLM.PreferLocal, logger)
	defer func() {
		if err := llmLayer.Cleanup(context.Background()); err != nil {
			logger.Warn("llm layer cleanup failed", "err", err)
		}
	}()

	queryPipe := query.New(orchestrator, llmLayer, database, logger)
	reporter := analytics.New(database)
	hub := stream.New(llmLayer, logger)
	pool := workerpool.New(cfg.RAG.WorkerPoolSize)
	defer pool.Close()

	server := httpapi.New(uploadDir, database, orchestrator, queryPipe, reporter, llmLayer, hub, pool, logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// buildEmbedder selects the configured embedding backend by provider
// name. Any provider value other than "openai", "azure_openai",
// "cohere", or "huggingface" selects the local Ollama client; provider
// credentials are not checked here.
func buildEmbedder(cfg *config.Config, logger *slog.Logger) *embedder.Embedder {
	switch cfg.Embedding.Provider {
	case "openai":
		model := embedding.NewOpenAIEmbedding("", cfg.Embedding.Model)
		return embedder.New(model, embedder.BackendOpenAI, 0, logger)
	case "azure_openai":
		model := embedding.NewAzureOpenAIEmbeddingWithConfig(cfg.Embedding.AzureEndpoint, cfg.Embedding.AzureAPIKey, cfg.Embedding.AzureDeployment)
		return embedder.New(model, embedder.BackendOpenAI, 0, logger)
	case "cohere":
		model := embedding.NewCohereEmbedding(
			embedding.WithCohereEmbeddingAPIKey(cfg.Embedding.CohereAPIKey),
			embedding.WithCohereEmbeddingModel(cfg.Embedding.Model),
		)
		return embedder.New(model, embedder.BackendOpenAI, 0, logger)
	case "huggingface":
		model := embedding.NewHuggingFaceEmbedding(
			embedding.WithHuggingFaceAPIKey(cfg.Embedding.HuggingFaceAPIKey),
		)
		return embedder.New(model, embedder.BackendOpenAI, 0, logger)
	default:
		model := embedding.NewOllamaEmbedding(
			embedding.WithOllamaEmbeddingBaseURL(cfg.Embedding.OllamaURL),
			embedding.WithOllamaEmbeddingModel(cfg.Embedding.Model),
		)
		return embedder.New(model, embedder.BackendLocal, 0, logger)
	}
}

func embedderBackendTag(cfg *config.Config) string {
	if cfg.Embedding.UseGPU {
		return "gpu"
	}
	return "cpu"
}

// buildLLMBackends constructs one Backend per provider with credentials
// configured, in priority order. PreferLocal reorders this list inside
// llmlayer.New, not here.
func buildLLMBackends(cfg *config.Config) []llmlayer.Backend {
	backends := []llmlayer.Backend{
		llmlayer.NewLocalBackend(cfg.LLM.OllamaURL, cfg.LLM.OllamaModel),
	}
	if cfg.LLM.OpenAIAPIKey != "" {
		backends = append(backends, llmlayer.NewOpenAIBackend(cfg.LLM.OpenAIAPIKey, cfg.LLM.OpenAIModel))
	}
	if cfg.LLM.GroqAPIKey != "" {
		backends = append(backends, llmlayer.NewGroqBackend(cfg.LLM.GroqAPIKey, cfg.LLM.GroqModel))
	}
	if cfg.LLM.AnthropicAPIKey != "" {
		backends = append(backends, llmlayer.NewAnthropicBackend(cfg.LLM.AnthropicAPIKey, cfg.LLM.AnthropicModel))
	}
	if cfg.LLM.AzureOpenAIAPIKey != "" && cfg.LLM.AzureOpenAIEndpoint != "" {
		backends = append(backends, llmlayer.NewAzureOpenAIBackend(cfg.LLM.AzureOpenAIEndpoint, cfg.LLM.AzureOpenAIAPIKey, cfg.LLM.AzureOpenAIDeployment, cfg.LLM.AzureOpenAIAPIVersion))
	}
	if cfg.LLM.CohereAPIKey != "" {
		backends = append(backends, llmlayer.NewCohereBackend(cfg.LLM.CohereAPIKey, cfg.LLM.CohereModel))
	}
	if cfg.LLM.DeepSeekAPIKey != "" {
		backends = append(backends, llmlayer.NewDeepSeekBackend(cfg.LLM.DeepSeekAPIKey, cfg.LLM.DeepSeekModel))
	}
	if cfg.LLM.MistralAPIKey != "" {
		backends = append(backends, llmlayer.NewMistralBackend(cfg.LLM.MistralAPIKey, cfg.LLM.MistralModel))
	}
	if cfg.LLM.AWSCredentialsSet {
		backends = append(backends, llmlayer.NewBedrockBackend(cfg.LLM.AWSRegion, cfg.LLM.BedrockModel, true))
	}
	return backends
}
