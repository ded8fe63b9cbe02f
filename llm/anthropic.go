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
	// AnthropicAPIURL is the default Anthropic API endpoint.
	AnthropicAPIURL = "https://api.anthropic.com/v1"
	// AnthropicAPIVersion is the API version header value.
	AnthropicAPIVersion = "2023-06-01"
)

// Anthropic model constants.
const (
	Claude3Opus    = "claude-3-opus-20240229"
	Claude3Sonnet  = "claude-3-sonnet-20240229"
	Claude3Haiku   = "claude-3-haiku-20240307"
	Claude35Sonnet = "claude-3-5-sonnet-20241022"
	Claude35Haiku  = "claude-3-5-haiku-20241022"
)

// AnthropicLLM implements the LLM interface for Anthropic Claude models.
type AnthropicLLM struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
	logger     *slog.Logger
}

// AnthropicOption configures an AnthropicLLM.
type AnthropicOption func(*AnthropicLLM)

// WithAnthropicAPIKey sets the API key.
func WithAnthropicAPIKey(apiKey string) AnthropicOption {
	return func(a *AnthropicLLM) {
		a.apiKey = apiKey
	}
}

// WithAnthropicBaseURL sets the base URL.
func WithAnthropicBaseURL(baseURL string) AnthropicOption {
	return func(a *AnthropicLLM) {
		a.baseURL = baseURL
	}
}

// WithAnthropicModel sets the model.
func WithAnthropicModel(model string) AnthropicOption {
	return func(a *AnthropicLLM) {
		a.model = model
	}
}

// WithAnthropicMaxTokens sets the max tokens.
func WithAnthropicMaxTokens(maxTokens int) AnthropicOption {
	return func(a *AnthropicLLM) {
		a.maxTokens = maxTokens
	}
}

// WithAnthropicHTTPClient sets a custom HTTP client.
func WithAnthropicHTTPClient(client *http.Client) AnthropicOption {
	return func(a *AnthropicLLM) {
		a.httpClient = client
	}
}

// NewAnthropicLLM creates a new Anthropic LLM client.
func NewAnthropicLLM(opts ...AnthropicOption) *AnthropicLLM {
	a := &AnthropicLLM{
		apiKey:     os.Getenv("ANTHROPIC_API_KEY"),
		baseURL:    AnthropicAPIURL,
		model:      Claude35Sonnet,
		maxTokens:  4096,
		httpClient: http.DefaultClient,
		logger:     slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// anthropicMessage represents a message in the Anthropic API format.
type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

// anthropicContent represents content in the Anthropic API format.
type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// anthropicRequest represents a request to the Anthropic API.
type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Stream    bool               `json:"stream,omitempty"`
}

// anthropicResponse represents a response from the Anthropic API.
type anthropicResponse struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"`
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
	Model   string             `json:"model"`
}

// anthropicStreamEvent represents a streaming event from the Anthropic API.
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"delta,omitempty"`
}

// anthropicError represents an error from the Anthropic API.
type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Complete generates a completion for a given prompt.
func (a *AnthropicLLM) Complete(ctx context.Context, prompt string) (string, error) {
	messages := []ChatMessage{NewUserMessage(prompt)}
	return a.Chat(ctx, messages)
}

// Chat generates a response for a list of chat messages.
func (a *AnthropicLLM) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	a.logger.Info("Chat called", "model", a.model, "message_count", len(messages))

	anthropicMessages, systemPrompt := a.convertMessages(messages)

	reqBody := anthropicRequest{
		Model:     a.model,
		Messages:  anthropicMessages,
		MaxTokens: a.maxTokens,
		System:    systemPrompt,
	}

	resp, err := a.doRequest(ctx, "/messages", reqBody)
	if err != nil {
		return "", err
	}

	var text string
	for _, content := range resp.Content {
		if content.Type == "text" {
			text += content.Text
		}
	}

	return text, nil
}

// Stream generates a streaming completion for a given prompt.
func (a *AnthropicLLM) Stream(ctx context.Context, prompt string) (<-chan string, error) {
	a.logger.Info("Stream called", "model", a.model, "prompt_len", len(prompt))

	messages := []anthropicMessage{
		{
			Role:    "user",
			Content: []anthropicContent{{Type: "text", Text: prompt}},
		},
	}

	reqBody := anthropicRequest{
		Model:     a.model,
		Messages:  messages,
		MaxTokens: a.maxTokens,
		Stream:    true,
	}

	return a.doStreamRequest(ctx, "/messages", reqBody)
}

// convertMessages converts ChatMessage slice to Anthropic format, pulling
// the system-role message out since Anthropic takes it as a separate field.
func (a *AnthropicLLM) convertMessages(messages []ChatMessage) ([]anthropicMessage, string) {
	var anthropicMessages []anthropicMessage
	var systemPrompt string

	for _, msg := range messages {
		if msg.Role == MessageRoleSystem {
			systemPrompt = msg.Content
			continue
		}

		role := "user"
		if msg.Role == MessageRoleAssistant {
			role = "assistant"
		}

		anthropicMessages = append(anthropicMessages, anthropicMessage{
			Role:    role,
			Content: []anthropicContent{{Type: "text", Text: msg.Content}},
		})
	}

	return anthropicMessages, systemPrompt
}

// doRequest performs an HTTP request to the Anthropic API.
func (a *AnthropicLLM) doRequest(ctx context.Context, path string, body interface{}) (*anthropicResponse, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", AnthropicAPIVersion)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error anthropicError `json:"error"`
		}
		json.Unmarshal(respBody, &apiErr)
		return nil, fmt.Errorf("anthropic API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
	}

	var result anthropicResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &result, nil
}

// doStreamRequest performs a streaming HTTP request to the Anthropic API.
func (a *AnthropicLLM) doStreamRequest(ctx context.Context, path string, body interface{}) (<-chan string, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", AnthropicAPIVersion)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		var apiErr struct {
			Error anthropicError `json:"error"`
		}
		json.Unmarshal(respBody, &apiErr)
		return nil, fmt.Errorf("anthropic API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
	}

	tokenChan := make(chan string)

	go func() {
		defer close(tokenChan)
		defer resp.Body.Close()

		decoder := json.NewDecoder(resp.Body)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			var line string
			if _, err := fmt.Fscanln(resp.Body, &line); err != nil {
				if err == io.EOF {
					return
				}
				continue
			}

			if len(line) > 6 && line[:6] == "data: " {
				data := line[6:]
				if data == "[DONE]" {
					return
				}

				var event anthropicStreamEvent
				if err := json.Unmarshal([]byte(data), &event); err != nil {
					continue
				}

				if event.Type == "content_block_delta" && event.Delta != nil && event.Delta.Text != "" {
					select {
					case tokenChan <- event.Delta.Text:
					case <-ctx.Done():
						return
					}
				}
			}
		}
		_ = decoder
	}()

	return tokenChan, nil
}

// Ensure AnthropicLLM implements LLM.
var _ LLM = (*AnthropicLLM)(nil)
