package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
)

const (
	// CohereAPIURL is the default Cohere API endpoint.
	CohereAPIURL = "https://api.cohere.ai/v1"
)

// Cohere model constants.
const (
	CohereCommand      = "command"
	CohereCommandLight = "command-light"
	CohereCommandR     = "command-r"
	CohereCommandRPlus = "command-r-plus"
	CohereCommandR7B   = "command-r7b-12-2024"
)

// CohereLLM implements the LLM interface for Cohere models.
type CohereLLM struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature *float32
	httpClient  *http.Client
	logger      *slog.Logger
}

// CohereOption configures a CohereLLM.
type CohereOption func(*CohereLLM)

// WithCohereAPIKey sets the API key.
func WithCohereAPIKey(apiKey string) CohereOption {
	return func(c *CohereLLM) {
		c.apiKey = apiKey
	}
}

// WithCohereBaseURL sets the base URL.
func WithCohereBaseURL(baseURL string) CohereOption {
	return func(c *CohereLLM) {
		c.baseURL = baseURL
	}
}

// WithCohereModel sets the model.
func WithCohereModel(model string) CohereOption {
	return func(c *CohereLLM) {
		c.model = model
	}
}

// WithCohereMaxTokens sets the max tokens.
func WithCohereMaxTokens(maxTokens int) CohereOption {
	return func(c *CohereLLM) {
		c.maxTokens = maxTokens
	}
}

// WithCohereTemperature sets the temperature.
func WithCohereTemperature(temp float32) CohereOption {
	return func(c *CohereLLM) {
		c.temperature = &temp
	}
}

// WithCohereHTTPClient sets a custom HTTP client.
func WithCohereHTTPClient(client *http.Client) CohereOption {
	return func(c *CohereLLM) {
		c.httpClient = client
	}
}

// NewCohereLLM creates a new Cohere LLM client.
func NewCohereLLM(opts ...CohereOption) *CohereLLM {
	c := &CohereLLM{
		apiKey:     os.Getenv("COHERE_API_KEY"),
		baseURL:    CohereAPIURL,
		model:      CohereCommandRPlus,
		maxTokens:  4096,
		httpClient: http.DefaultClient,
		logger:     slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// cohereGenerateRequest represents a request to the Cohere generate API.
type cohereGenerateRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
}

// cohereChatRequest represents a request to the Cohere chat API.
type cohereChatRequest struct {
	Model       string              `json:"model"`
	Message     string              `json:"message"`
	ChatHistory []cohereChatMessage `json:"chat_history,omitempty"`
	Preamble    string              `json:"preamble,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature *float32            `json:"temperature,omitempty"`
}

// cohereChatMessage represents a message in the Cohere chat API format.
type cohereChatMessage struct {
	Role    string `json:"role"` // USER, CHATBOT, SYSTEM
	Message string `json:"message"`
}

// cohereGenerateResponse represents a response from the Cohere generate API.
type cohereGenerateResponse struct {
	ID          string `json:"id"`
	Generations []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"generations"`
	Prompt string `json:"prompt"`
}

// cohereChatResponse represents a response from the Cohere chat API.
type cohereChatResponse struct {
	ResponseID   string              `json:"response_id"`
	Text         string              `json:"text"`
	GenerationID string              `json:"generation_id"`
	ChatHistory  []cohereChatMessage `json:"chat_history,omitempty"`
	FinishReason string              `json:"finish_reason"`
	Meta         struct {
		Tokens struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"tokens"`
	} `json:"meta"`
}

// Complete generates a completion for a given prompt.
func (c *CohereLLM) Complete(ctx context.Context, prompt string) (string, error) {
	c.logger.Info("Complete called", "model", c.model, "prompt_len", len(prompt))

	reqBody := cohereGenerateRequest{
		Model:       c.model,
		Prompt:      prompt,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	resp, err := c.doGenerateRequest(ctx, reqBody)
	if err != nil {
		return "", err
	}

	if len(resp.Generations) == 0 {
		return "", fmt.Errorf("cohere returned no generations")
	}

	return resp.Generations[0].Text, nil
}

// Chat generates a response for a list of chat messages.
func (c *CohereLLM) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	c.logger.Info("Chat called", "model", c.model, "message_count", len(messages))

	chatHistory, currentMessage, preamble := c.convertMessages(messages)

	reqBody := cohereChatRequest{
		Model:       c.model,
		Message:     currentMessage,
		ChatHistory: chatHistory,
		Preamble:    preamble,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	resp, err := c.doChatRequest(ctx, reqBody)
	if err != nil {
		return "", err
	}

	return resp.Text, nil
}

// Stream generates a streaming completion for a given prompt. Cohere's
// streaming endpoint uses SSE chunks; this wraps the non-streaming call
// and emits the full response as a single token.
func (c *CohereLLM) Stream(ctx context.Context, prompt string) (<-chan string, error) {
	c.logger.Info("Stream called", "model", c.model, "prompt_len", len(prompt))

	tokenChan := make(chan string, 1)

	go func() {
		defer close(tokenChan)
		resp, err := c.Complete(ctx, prompt)
		if err != nil {
			c.logger.Error("Stream error", "error", err)
			return
		}
		select {
		case tokenChan <- resp:
		case <-ctx.Done():
		}
	}()

	return tokenChan, nil
}

// convertMessages converts ChatMessage slice to Cohere's chat_history +
// current-message + preamble shape.
func (c *CohereLLM) convertMessages(messages []ChatMessage) ([]cohereChatMessage, string, string) {
	var chatHistory []cohereChatMessage
	var currentMessage string
	var preamble string

	for i, msg := range messages {
		switch msg.Role {
		case MessageRoleSystem:
			preamble = msg.Content
		case MessageRoleUser:
			if i == len(messages)-1 {
				currentMessage = msg.Content
			} else {
				chatHistory = append(chatHistory, cohereChatMessage{
					Role:    "USER",
					Message: msg.Content,
				})
			}
		case MessageRoleAssistant:
			chatHistory = append(chatHistory, cohereChatMessage{
				Role:    "CHATBOT",
				Message: msg.Content,
			})
		}
	}

	if currentMessage == "" && len(messages) > 0 {
		currentMessage = messages[len(messages)-1].Content
	}

	return chatHistory, currentMessage, preamble
}

// doGenerateRequest performs a generate request to the Cohere API.
func (c *CohereLLM) doGenerateRequest(ctx context.Context, body cohereGenerateRequest) (*cohereGenerateResponse, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/generate", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cohere API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result cohereGenerateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &result, nil
}

// doChatRequest performs a chat request to the Cohere API.
func (c *CohereLLM) doChatRequest(ctx context.Context, body cohereChatRequest) (*cohereChatResponse, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cohere API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result cohereChatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &result, nil
}

// Ensure CohereLLM implements LLM.
var _ LLM = (*CohereLLM)(nil)
