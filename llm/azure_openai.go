package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// AzureOpenAILLM implements the LLM interface for Azure OpenAI models.
// It uses the same underlying client as OpenAI but with Azure-specific configuration.
type AzureOpenAILLM struct {
	client     *openai.Client
	model      string // This is the deployment name in Azure
	logger     *slog.Logger
	apiVersion string
}

// AzureOpenAIOption configures an AzureOpenAILLM.
type AzureOpenAIOption func(*AzureOpenAILLM)

// WithAzureDeployment sets the deployment name (model).
func WithAzureDeployment(deployment string) AzureOpenAIOption {
	return func(a *AzureOpenAILLM) {
		a.model = deployment
	}
}

// WithAzureAPIVersion sets the API version.
func WithAzureAPIVersion(version string) AzureOpenAIOption {
	return func(a *AzureOpenAILLM) {
		a.apiVersion = version
	}
}

// NewAzureOpenAILLM creates a new Azure OpenAI LLM client.
// It requires the Azure endpoint and API key, which can be provided via
// environment variables AZURE_OPENAI_ENDPOINT and AZURE_OPENAI_API_KEY.
func NewAzureOpenAILLM(opts ...AzureOpenAIOption) *AzureOpenAILLM {
	endpoint := os.Getenv("AZURE_OPENAI_ENDPOINT")
	apiKey := os.Getenv("AZURE_OPENAI_API_KEY")
	deployment := os.Getenv("AZURE_OPENAI_DEPLOYMENT")

	a := &AzureOpenAILLM{
		model:      deployment,
		apiVersion: "2024-02-15-preview",
		logger:     slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}

	for _, opt := range opts {
		opt(a)
	}

	// Create Azure OpenAI config
	config := openai.DefaultAzureConfig(apiKey, endpoint)
	config.APIVersion = a.apiVersion

	a.client = openai.NewClientWithConfig(config)

	return a
}

// NewAzureOpenAILLMWithConfig creates a new Azure OpenAI LLM client with explicit configuration.
func NewAzureOpenAILLMWithConfig(endpoint, apiKey, deployment, apiVersion string) *AzureOpenAILLM {
	if apiVersion == "" {
		apiVersion = "2024-02-15-preview"
	}

	config := openai.DefaultAzureConfig(apiKey, endpoint)
	config.APIVersion = apiVersion

	return &AzureOpenAILLM{
		client:     openai.NewClientWithConfig(config),
		model:      deployment,
		apiVersion: apiVersion,
		logger:     slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}
}

// Complete generates a completion for a given prompt.
func (a *AzureOpenAILLM) Complete(ctx context.Context, prompt string) (string, error) {
	a.logger.Info("Complete called", "deployment", a.model, "prompt_len", len(prompt))

	resp, err := a.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: a.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)

	if err != nil {
		a.logger.Error("Complete failed", "error", err)
		return "", fmt.Errorf("azure openai completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("azure openai returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// Chat generates a response for a list of chat messages.
func (a *AzureOpenAILLM) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	a.logger.Info("Chat called", "deployment", a.model, "message_count", len(messages))

	openaiMessages := convertToOpenAIMessages(messages)

	resp, err := a.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:    a.model,
			Messages: openaiMessages,
		},
	)

	if err != nil {
		a.logger.Error("Chat failed", "error", err)
		return "", fmt.Errorf("azure openai chat failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("azure openai returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// Stream generates a streaming completion for a given prompt.
func (a *AzureOpenAILLM) Stream(ctx context.Context, prompt string) (<-chan string, error) {
	a.logger.Info("Stream called", "deployment", a.model, "prompt_len", len(prompt))

	stream, err := a.client.CreateChatCompletionStream(
		ctx,
		openai.ChatCompletionRequest{
			Model: a.model,
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
		a.logger.Error("Stream failed", "error", err)
		return nil, fmt.Errorf("azure openai stream failed: %w", err)
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
				a.logger.Error("Stream receive error", "error", err)
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

// Ensure AzureOpenAILLM implements LLM.
var _ LLM = (*AzureOpenAILLM)(nil)
