package llmlayer

import (
	"context"
	"net/http"
	"time"

	"github.com/aqua777/go-docqa/llm"
)

// localMaxTokensCap matches the source's clamping policy for the local
// backend. A repetition penalty of 1.1 is part of that same policy but
// has no equivalent option on the wrapped Ollama client, so it is not
// wired; see DESIGN.md.
const localMaxTokensCap = 512

var localStopSequences = []string{"\n###", "\n##", "\n\n", "Question:", "User:", "###", "##"}

// localBackend wraps an Ollama client, rebuilding per-call generation
// options so max_tokens and temperature are honored per request rather
// than fixed at construction, then running the post-processing passes
// Design Note 6 calls for.
type localBackend struct {
	baseURL    string
	model      string
	httpClient *http.Client
	available  bool
}

// NewLocalBackend probes baseURL+"/api/tags" to determine availability
// at construction; Ollama-backed local inference is the idiomatic Go
// stand-in for the source's GGUF/transformers loader, since no
// llama.cpp or transformers binding exists in this module's dependency
// surface.
func NewLocalBackend(baseURL, model string) Backend {
	if baseURL == "" {
		baseURL = llm.OllamaDefaultURL
	}
	client := &http.Client{Timeout: 2 * time.Second}
	available := false
	if resp, err := client.Get(baseURL + "/api/tags"); err == nil {
		resp.Body.Close()
		available = resp.StatusCode == http.StatusOK
	}
	return &localBackend{baseURL: baseURL, model: model, httpClient: http.DefaultClient, available: available}
}

func (l *localBackend) Kind() Kind { return KindLocal }

func (l *localBackend) IsAvailable() bool { return l.available }

func (l *localBackend) Status() map[string]any {
	return map[string]any{"model": l.model, "available": l.available, "base_url": l.baseURL}
}

func (l *localBackend) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	if maxTokens <= 0 || maxTokens > localMaxTokensCap {
		maxTokens = localMaxTokensCap
	}
	if temperature < 0 {
		temperature = 0
	}
	if temperature > 1 {
		temperature = 1
	}

	client := llm.NewOllamaLLM(
		llm.WithOllamaBaseURL(l.baseURL),
		llm.WithOllamaModel(l.model),
		llm.WithOllamaHTTPClient(l.httpClient),
		llm.WithOllamaNumPredict(maxTokens),
		llm.WithOllamaTemperature(float32(temperature)),
		llm.WithOllamaStop(localStopSequences),
	)

	raw, err := client.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return postProcess(raw, prompt), nil
}

// NewOpenAIBackend wraps the hosted OpenAI-compatible client; it is
// available whenever an API key is configured.
func NewOpenAIBackend(apiKey, model string) Backend {
	client := llm.NewOpenAILLM("", model, apiKey)
	return &chatBackend{kind: KindOpenAI, client: client, available: apiKey != "", modelName: model}
}

// NewGroqBackend wraps the Groq client (OpenAI-compatible wire
// protocol, distinct base URL and auth). The 60s timeout-to-fixed-
// string policy is applied by Layer.invoke, not here.
func NewGroqBackend(apiKey, model string) Backend {
	opts := []llm.GroqOption{llm.WithGroqAPIKey(apiKey)}
	if model != "" {
		opts = append(opts, llm.WithGroqModel(model))
	}
	client := llm.NewGroqLLM(opts...)
	return &chatBackend{kind: KindGroq, client: client, available: apiKey != "", modelName: model}
}

// The following optional hosted backends extend the primary Local/
// OpenAI/Groq trio per SPEC_FULL.md §4.6a; each participates in the
// same fallback chain, gated on its own API key being configured.

func NewAnthropicBackend(apiKey, model string) Backend {
	opts := []llm.AnthropicOption{llm.WithAnthropicAPIKey(apiKey)}
	if model != "" {
		opts = append(opts, llm.WithAnthropicModel(model))
	}
	client := llm.NewAnthropicLLM(opts...)
	return &chatBackend{kind: KindAnthropic, client: client, available: apiKey != "", modelName: model}
}

func NewAzureOpenAIBackend(endpoint, apiKey, deployment, apiVersion string) Backend {
	client := llm.NewAzureOpenAILLMWithConfig(endpoint, apiKey, deployment, apiVersion)
	return &chatBackend{kind: KindAzureOpenAI, client: client, available: apiKey != "" && endpoint != "", modelName: deployment}
}

func NewCohereBackend(apiKey, model string) Backend {
	opts := []llm.CohereOption{llm.WithCohereAPIKey(apiKey)}
	if model != "" {
		opts = append(opts, llm.WithCohereModel(model))
	}
	client := llm.NewCohereLLM(opts...)
	return &chatBackend{kind: KindCohere, client: client, available: apiKey != "", modelName: model}
}

func NewDeepSeekBackend(apiKey, model string) Backend {
	opts := []llm.DeepSeekOption{llm.WithDeepSeekAPIKey(apiKey)}
	if model != "" {
		opts = append(opts, llm.WithDeepSeekModel(model))
	}
	client := llm.NewDeepSeekLLM(opts...)
	return &chatBackend{kind: KindDeepSeek, client: client, available: apiKey != "", modelName: model}
}

func NewMistralBackend(apiKey, model string) Backend {
	opts := []llm.MistralOption{llm.WithMistralAPIKey(apiKey)}
	if model != "" {
		opts = append(opts, llm.WithMistralModel(model))
	}
	client := llm.NewMistralLLM(opts...)
	return &chatBackend{kind: KindMistral, client: client, available: apiKey != "", modelName: model}
}

// NewBedrockBackend wraps the AWS Bedrock client; availability is
// gated on AWS credentials being resolvable, which the caller
// determines (e.g. AWS_ACCESS_KEY_ID or an attached role) before
// constructing it.
func NewBedrockBackend(region, model string, credentialsConfigured bool) Backend {
	opts := []llm.BedrockOption{llm.WithBedrockRegion(region)}
	if model != "" {
		opts = append(opts, llm.WithBedrockModel(model))
	}
	client := llm.NewBedrockLLM(opts...)
	return &chatBackend{kind: KindBedrock, client: client, available: credentialsConfigured, modelName: model}
}
