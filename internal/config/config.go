// Package config loads this service's configuration with a layered
// precedence: built-in defaults -> .env file (github.com/joho/godotenv)
// -> process environment, grounded on original_source/backend/app/
// config.py's os.getenv(..., default)-over-dotenv shape and on the
// reference pack's layered struct-of-structs config pattern.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string
	Format string
}

// StorageConfig holds on-disk and database location settings.
type StorageConfig struct {
	DataDir     string
	DatabaseURL string
	PopplerPath string
}

// RAGConfig holds chunking, retrieval, and hybrid-search defaults.
type RAGConfig struct {
	ChunkSize       int
	ChunkOverlap    int
	TopK            int
	AskThreshold    float64
	SearchThreshold float64
	HybridSearch    bool
	MaxContextChars int
	WorkerPoolSize  int
	EmbeddingCache  bool
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	Provider  string // "openai", "azure_openai", "cohere", "huggingface"; anything else is local
	Model     string
	UseGPU    bool
	OllamaURL string

	AzureEndpoint   string
	AzureAPIKey     string
	AzureDeployment string

	CohereAPIKey string

	HuggingFaceAPIKey string
	HuggingFaceURL    string
}

// LLMConfig configures the LLM layer's candidate backends and their
// selection policy. Absence of every hosted API key and local model
// leaves the layer with zero available backends (LLMUnavailable).
type LLMConfig struct {
	PreferLocal bool
	OllamaURL   string
	OllamaModel string

	OpenAIAPIKey string
	OpenAIModel  string

	GroqAPIKey string
	GroqModel  string

	AnthropicAPIKey string
	AnthropicModel  string

	AzureOpenAIEndpoint   string
	AzureOpenAIAPIKey     string
	AzureOpenAIDeployment string
	AzureOpenAIAPIVersion string

	CohereAPIKey string
	CohereModel  string

	DeepSeekAPIKey string
	DeepSeekModel  string

	MistralAPIKey string
	MistralModel  string

	AWSRegion         string
	BedrockModel      string
	AWSCredentialsSet bool
}

// Config is the fully-resolved configuration for one process.
type Config struct {
	Environment string // "development" or "production"
	Server      ServerConfig
	Logging     LoggingConfig
	Storage     StorageConfig
	RAG         RAGConfig
	Embedding   EmbeddingConfig
	LLM         LLMConfig
}

// Load resolves configuration from defaults, an optional .env file at
// envPath (missing file is not an error, matching godotenv's typical
// development use), and the process environment, which always wins.
func Load(envPath string) (*Config, error) {
	if envPath == "" {
		envPath = ".env"
	}
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Environment: getString("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Addr: getString("SERVER_ADDR", ":8080"),
		},
		Logging: LoggingConfig{
			Level:  getString("LOG_LEVEL", "info"),
			Format: getString("LOG_FORMAT", "json"),
		},
		Storage: StorageConfig{
			DataDir:     getString("DATA_DIR", "./data"),
			DatabaseURL: getString("DATABASE_URL", "sqlite://./data/document_qa.db"),
			PopplerPath: getString("POPPLER_PATH", "/usr/bin"),
		},
		RAG: RAGConfig{
			ChunkSize:       getInt("RAG_CHUNK_SIZE", 1000),
			ChunkOverlap:    getInt("RAG_CHUNK_OVERLAP", 200),
			TopK:            getInt("RAG_TOP_K", 5),
			AskThreshold:    getFloat("RAG_ASK_THRESHOLD", 0.3),
			SearchThreshold: getFloat("RAG_SEARCH_THRESHOLD", 0.2),
			HybridSearch:    getBool("RAG_HYBRID_SEARCH", false),
			MaxContextChars: getInt("RAG_MAX_CONTEXT_CHARS", 3500),
			WorkerPoolSize:  getInt("WORKER_POOL_SIZE", 0),
			EmbeddingCache:  getBool("EMBEDDING_CACHE_ENABLED", true),
		},
		Embedding: EmbeddingConfig{
			Provider:  getString("EMBEDDING_PROVIDER", "local"),
			Model:     getString("EMBEDDING_MODEL", "nomic-embed-text"),
			UseGPU:    getBool("USE_GPU", false),
			OllamaURL: getString("OLLAMA_BASE_URL", ""),

			AzureEndpoint:   getString("AZURE_OPENAI_EMBEDDING_ENDPOINT", ""),
			AzureAPIKey:     getString("AZURE_OPENAI_API_KEY", ""),
			AzureDeployment: getString("AZURE_OPENAI_EMBEDDING_DEPLOYMENT", ""),

			CohereAPIKey: getString("COHERE_API_KEY", ""),

			HuggingFaceAPIKey: getString("HUGGINGFACE_API_KEY", ""),
			HuggingFaceURL:    getString("HUGGINGFACE_URL", ""),
		},
		LLM: LLMConfig{
			PreferLocal: getBool("LLM_PREFER_LOCAL", false),
			OllamaURL:   getString("OLLAMA_BASE_URL", ""),
			OllamaModel: getString("OLLAMA_MODEL", "llama3"),

			OpenAIAPIKey: getString("OPENAI_API_KEY", ""),
			OpenAIModel:  getString("OPENAI_MODEL", "gpt-4o-mini"),

			GroqAPIKey: getString("GROQ_API_KEY", ""),
			GroqModel:  getString("GROQ_MODEL", ""),

			AnthropicAPIKey: getString("ANTHROPIC_API_KEY", ""),
			AnthropicModel:  getString("ANTHROPIC_MODEL", ""),

			AzureOpenAIEndpoint:   getString("AZURE_OPENAI_ENDPOINT", ""),
			AzureOpenAIAPIKey:     getString("AZURE_OPENAI_API_KEY", ""),
			AzureOpenAIDeployment: getString("AZURE_OPENAI_DEPLOYMENT", ""),
			AzureOpenAIAPIVersion: getString("AZURE_OPENAI_API_VERSION", "2024-02-01"),

			CohereAPIKey: getString("COHERE_API_KEY", ""),
			CohereModel:  getString("COHERE_MODEL", ""),

			DeepSeekAPIKey: getString("DEEPSEEK_API_KEY", ""),
			DeepSeekModel:  getString("DEEPSEEK_MODEL", ""),

			MistralAPIKey: getString("MISTRAL_API_KEY", ""),
			MistralModel:  getString("MISTRAL_MODEL", ""),

			AWSRegion:         getString("AWS_REGION", "us-east-1"),
			BedrockModel:      getString("BEDROCK_MODEL_ID", ""),
			AWSCredentialsSet: getString("AWS_ACCESS_KEY_ID", "") != "" || getString("AWS_ROLE_ARN", "") != "",
		},
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	v := strings.ToLower(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v == "true" || v == "1" || v == "yes"
}
