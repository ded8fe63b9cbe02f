package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// GroqAPIURL is the default Groq API endpoint (OpenAI-compatible).
	GroqAPIURL = "https://api.groq.com/openai/v1"
	// DefaultGroqModel is the default model to use.
	DefaultGroqModel = "llama-3.3-70b-versatile"
)

// Groq model constants.
const (
	GroqLlama31_8B     = "llama-3.1-8b-instant"
	GroqLlama33_70B    = "llama-3.3-70b-versatile"
	GroqLlama31_70B    = "llama-3.1-70b-versatile"
	GroqLlama4Scout17B = "meta-llama/llama-4-scout-17b-16e-instruct"
	GroqLlama4Maverick = "meta-llama/llama-4-maverick-17b-128e-instruct"
	GroqMixtral8x7B    = "mixtral-8x7b-32768"
	GroqGemma2_9B      = "gemma2-9b-it"
)

// groqModelContextWindows maps model names to their context window sizes,
// consulted by GroqModelContextSize.
var groqModelContextWindows = map[string]int{
	GroqLlama31_8B:     128000,
	GroqLlama33_70B:    128000,
	GroqLlama31_70B:    128000,
	GroqLlama4Scout17B: 131072,
	GroqLlama4Maverick: 131072,
	GroqMixtral8x7B:    32768,
	GroqGemma2_9B:      8192,
}

// GroqLLM implements the LLM interface for Groq's API.
// Groq provides ultra-fast inference using their LPU (Language Processing Unit).
type GroqLLM struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// GroqOption configures a GroqLLM.
type GroqOption func(*GroqLLM)

// WithGroqAPIKey sets the API key.
func WithGroqAPIKey(apiKey string) GroqOption {
	return func(g *GroqLLM) {
		config := openai.DefaultConfig(apiKey)
		config.BaseURL = GroqAPIURL
		g.client = openai.NewClientWithConfig(config)
	}
}

// WithGroqModel sets the model.
func WithGroqModel(model string) GroqOption {
	return func(g *GroqLLM) {
		g.model = model
	}
}

// WithGroqBaseURL sets a custom base URL.
func WithGroqBaseURL(baseURL string) GroqOption {
	return func(g *GroqLLM) {
		apiKey := os.Getenv("GROQ_API_KEY")
		config := openai.DefaultConfig(apiKey)
		config.BaseURL = baseURL
		g.client = openai.NewClientWithConfig(config)
	}
}

// WithGroqClient sets a custom OpenAI client (for testing).
func WithGroqClient(client *openai.Client) GroqOption {
	return func(g *GroqLLM) {
		g.client = client
	}
}

// NewGroqLLM creates a new Groq LLM client.
func NewGroqLLM(opts ...GroqOption) *GroqLLM {
	apiKey := os.Getenv("GROQ_API_KEY")

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = GroqAPIURL

	g := &GroqLLM{
		client: openai.NewClientWithConfig(config),
		model:  DefaultGroqModel,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Complete generates a completion for a given prompt.
func (g *GroqLLM) Complete(ctx context.Context, prompt string) (string, error) {
	g.logger.Info("Complete called", "model", g.model, "prompt_len", len(prompt))

	resp, err := g.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: g.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)

	if err != nil {
		g.logger.Error("Complete failed", "error", err)
		return "", fmt.Errorf("groq completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("groq returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// Chat generates a response for a list of chat messages.
func (g *GroqLLM) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	g.logger.Info("Chat called", "model", g.model, "message_count", len(messages))

	openaiMessages := convertToOpenAIMessages(messages)

	resp, err := g.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:    g.model,
			Messages: openaiMessages,
		},
	)

	if err != nil {
		g.logger.Error("Chat failed", "error", err)
		return "", fmt.Errorf("groq chat failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("groq returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// Stream generates a streaming completion for a given prompt.
func (g *GroqLLM) Stream(ctx context.Context, prompt string) (<-chan string, error) {
	g.logger.Info("Stream called", "model", g.model, "prompt_len", len(prompt))

	stream, err := g.client.CreateChatCompletionStream(
		ctx,
		openai.ChatCompletionRequest{
			Model: g.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Stream: true,
		},
	)

	if err != nil {
		g.logger.Error("Stream failed", "error", err)
		return nil, fmt.Errorf("groq stream failed: %w", err)
	}

	tokenChan := make(chan string)

	go func() {
		defer close(tokenChan)
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if err == io.EOF {
				return
			}
			if err != nil {
				g.logger.Error("Stream receive error", "error", err)
				return
			}

			if len(response.Choices) > 0 {
				delta := response.Choices[0].Delta.Content
				if delta != "" {
					select {
					case tokenChan <- delta:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return tokenChan, nil
}

// GroqModelContextSize returns the context window size for a model.
func GroqModelContextSize(model string) int {
	if cw, ok := groqModelContextWindows[model]; ok {
		return cw
	}
	return 8192 // default
}

// Ensure GroqLLM implements LLM.
var _ LLM = (*GroqLLM)(nil)
