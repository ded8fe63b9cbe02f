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
	// DeepSeekAPIURL is the default DeepSeek API endpoint (OpenAI-compatible).
	DeepSeekAPIURL = "https://api.deepseek.com/v1"
	// DefaultDeepSeekModel is the default model to use.
	DefaultDeepSeekModel = "deepseek-chat"
)

// DeepSeek model constants.
const (
	// Chat models
	DeepSeekChat     = "deepseek-chat"
	DeepSeekReasoner = "deepseek-reasoner"

	// Coder models
	DeepSeekCoder = "deepseek-coder"
)

// deepseekModelContextWindows maps model names to their context window sizes.
var deepseekModelContextWindows = map[string]int{
	DeepSeekChat:     64000,
	DeepSeekReasoner: 64000,
	DeepSeekCoder:    128000,
}

// DeepSeekLLM implements the LLM interface for DeepSeek's API.
// DeepSeek provides high-performance AI models with an OpenAI-compatible API.
type DeepSeekLLM struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// DeepSeekOption configures a DeepSeekLLM.
type DeepSeekOption func(*DeepSeekLLM)

// WithDeepSeekAPIKey sets the API key.
func WithDeepSeekAPIKey(apiKey string) DeepSeekOption {
	return func(d *DeepSeekLLM) {
		config := openai.DefaultConfig(apiKey)
		config.BaseURL = DeepSeekAPIURL
		d.client = openai.NewClientWithConfig(config)
	}
}

// WithDeepSeekModel sets the model.
func WithDeepSeekModel(model string) DeepSeekOption {
	return func(d *DeepSeekLLM) {
		d.model = model
	}
}

// WithDeepSeekBaseURL sets a custom base URL.
func WithDeepSeekBaseURL(baseURL string) DeepSeekOption {
	return func(d *DeepSeekLLM) {
		apiKey := os.Getenv("DEEPSEEK_API_KEY")
		config := openai.DefaultConfig(apiKey)
		config.BaseURL = baseURL
		d.client = openai.NewClientWithConfig(config)
	}
}

// WithDeepSeekClient sets a custom OpenAI client (for testing).
func WithDeepSeekClient(client *openai.Client) DeepSeekOption {
	return func(d *DeepSeekLLM) {
		d.client = client
	}
}

// NewDeepSeekLLM creates a new DeepSeek LLM client.
func NewDeepSeekLLM(opts ...DeepSeekOption) *DeepSeekLLM {
	apiKey := os.Getenv("DEEPSEEK_API_KEY")

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = DeepSeekAPIURL

	d := &DeepSeekLLM{
		client: openai.NewClientWithConfig(config),
		model:  DefaultDeepSeekModel,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Complete generates a completion for a given prompt.
func (d *DeepSeekLLM) Complete(ctx context.Context, prompt string) (string, error) {
	d.logger.Info("Complete called", "model", d.model, "prompt_len", len(prompt))

	resp, err := d.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: d.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)

	if err != nil {
		d.logger.Error("Complete failed", "error", err)
		return "", fmt.Errorf("deepseek completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("deepseek returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// Chat generates a response for a list of chat messages.
func (d *DeepSeekLLM) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	d.logger.Info("Chat called", "model", d.model, "message_count", len(messages))

	openaiMessages := convertToOpenAIMessages(messages)

	resp, err := d.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:    d.model,
			Messages: openaiMessages,
		},
	)

	if err != nil {
		d.logger.Error("Chat failed", "error", err)
		return "", fmt.Errorf("deepseek chat failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("deepseek returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// Stream generates a streaming completion for a given prompt.
func (d *DeepSeekLLM) Stream(ctx context.Context, prompt string) (<-chan string, error) {
	d.logger.Info("Stream called", "model", d.model, "prompt_len", len(prompt))

	stream, err := d.client.CreateChatCompletionStream(
		ctx,
		openai.ChatCompletionRequest{
			Model: d.model,
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
		d.logger.Error("Stream failed", "error", err)
		return nil, fmt.Errorf("deepseek stream failed: %w", err)
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
				d.logger.Error("Stream receive error", "error", err)
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

// DeepSeekModelContextSize returns the context window size for a model.
func DeepSeekModelContextSize(model string) int {
	if cw, ok := deepseekModelContextWindows[model]; ok {
		return cw
	}
	return 64000 // default
}

// Ensure DeepSeekLLM implements LLM.
var _ LLM = (*DeepSeekLLM)(nil)
