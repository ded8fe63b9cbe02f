// Package llmlayer implements the LLM layer component (C6): an
// abstract generate(prompt, max_tokens, temperature) contract over
// several interchangeable backends, with ordered primary/fallback
// selection, health gating, and a terminal LLMUnavailable when every
// candidate fails. It wraps the reference llm package's per-provider
// clients (Local/Ollama, OpenAI, Groq, and the optional Anthropic,
// Azure OpenAI, Cohere, DeepSeek, Mistral, and Bedrock clients) behind
// a single Backend interface, matching the source's tagged-variant
// pattern (Design Note 3).
package llmlayer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aqua777/go-docqa/internal/apperr"
	"github.com/aqua777/go-docqa/llm"
)

// Kind tags a concrete backend.
type Kind string

const (
	KindLocal        Kind = "local"
	KindOpenAI       Kind = "openai"
	KindGroq         Kind = "groq"
	KindAnthropic    Kind = "anthropic"
	KindAzureOpenAI  Kind = "azure_openai"
	KindCohere       Kind = "cohere"
	KindDeepSeek     Kind = "deepseek"
	KindMistral      Kind = "mistral"
	KindBedrock      Kind = "bedrock"
	KindNone         Kind = "none"
)

// hostedTimeout bounds every hosted (network) backend call. On timeout
// the backend returns a fixed user-visible string rather than an error,
// so the layer's fallback is not triggered (TimeoutSoft, not Transient).
const hostedTimeout = 60 * time.Second

const timeoutMessage = "The request timed out. Please try again."

// errorLikeSubstrings flags answers that look like a failure even
// though the backend call itself returned no Go error.
var errorLikeSubstrings = []string{"encountered an error", "couldn't generate"}

// Backend is one concrete language-model implementation.
type Backend interface {
	Kind() Kind
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
	IsAvailable() bool
	Status() map[string]any
}

// Layer holds the ordered primary/fallback chain and dispatches
// generate requests across it.
type Layer struct {
	backends []Backend
	logger   *slog.Logger
}

// New orders candidates per the prefer_local rule (hosted-before-local
// by default, local-first when preferLocal is set) and drops any
// candidate that self-reports unavailable at construction time.
func New(candidates []Backend, preferLocal bool, logger *slog.Logger) *Layer {
	if logger == nil {
		logger = slog.Default()
	}

	var local, hosted []Backend
	for _, b := range candidates {
		if !b.IsAvailable() {
			continue
		}
		if b.Kind() == KindLocal {
			local = append(local, b)
		} else {
			hosted = append(hosted, b)
		}
	}

	var ordered []Backend
	if preferLocal {
		ordered = append(ordered, local...)
		ordered = append(ordered, hosted...)
	} else {
		ordered = append(ordered, hosted...)
		ordered = append(ordered, local...)
	}

	return &Layer{backends: ordered, logger: logger}
}

// Generate tries each available backend in priority order, applying a
// 60s wall timeout to hosted calls; it returns the first non-error-like
// answer along with the backend kind that produced it, or a terminal
// LLMUnavailable if the chain is exhausted.
func (l *Layer) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, Kind, error) {
	if len(l.backends) == 0 {
		return "", KindNone, apperr.New(apperr.LLMUnavailable, "no LLM backend is available")
	}

	for _, b := range l.backends {
		answer, err := l.invoke(ctx, b, prompt, maxTokens, temperature)
		if err != nil {
			l.logger.Warn("llm backend failed, trying fallback", "backend", b.Kind(), "err", err)
			continue
		}
		if isErrorLike(answer) {
			l.logger.Warn("llm backend produced an error-like answer, trying fallback", "backend", b.Kind())
			continue
		}
		return answer, b.Kind(), nil
	}

	return "", KindNone, apperr.New(apperr.LLMUnavailable, "all configured LLM backends failed")
}

// invoke applies the hosted-call timeout policy: hosted backends get a
// bounded context and a fixed timeout string instead of an error;
// the local backend runs without that timeout.
func (l *Layer) invoke(ctx context.Context, b Backend, prompt string, maxTokens int, temperature float64) (string, error) {
	if b.Kind() == KindLocal {
		return b.Generate(ctx, prompt, maxTokens, temperature)
	}

	callCtx, cancel := context.WithTimeout(ctx, hostedTimeout)
	defer cancel()

	answer, err := b.Generate(callCtx, prompt, maxTokens, temperature)
	if err != nil && callCtx.Err() == context.DeadlineExceeded {
		return timeoutMessage, nil
	}
	return answer, err
}

// SwitchPrimary moves the named backend kind to the front of the chain,
// the administrative override the layer exposes.
func (l *Layer) SwitchPrimary(kind Kind) error {
	for i, b := range l.backends {
		if b.Kind() == kind {
			l.backends = append([]Backend{b}, append(l.backends[:i:i], l.backends[i+1:]...)...)
			return nil
		}
	}
	return apperr.New(apperr.Validation, fmt.Sprintf("backend %q is not available", kind))
}

// Primary returns the kind currently first in priority order, or
// KindNone if no backend is available.
func (l *Layer) Primary() Kind {
	if len(l.backends) == 0 {
		return KindNone
	}
	return l.backends[0].Kind()
}

// Status reports every configured backend's self-reported health, for
// the /system/capabilities surface.
func (l *Layer) Status() map[Kind]map[string]any {
	out := make(map[Kind]map[string]any, len(l.backends))
	for _, b := range l.backends {
		out[b.Kind()] = b.Status()
	}
	return out
}

// Cleanup calls Cleanup(ctx) on every backend that implements it and
// returns the first error. None of this package's backends implement
// it, so for them it does nothing.
func (l *Layer) Cleanup(ctx context.Context) error {
	for _, b := range l.backends {
		if c, ok := b.(interface{ Cleanup(context.Context) error }); ok {
			if err := c.Cleanup(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func isErrorLike(answer string) bool {
	lower := strings.ToLower(answer)
	for _, s := range errorLikeSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// chatBackend adapts the reference llm.LLM interface (Complete/Chat/
// Stream) to this package's Generate/IsAvailable/Status contract.
type chatBackend struct {
	kind        Kind
	client      llm.LLM
	available   bool
	modelName   string
	extraStatus map[string]any
}

func (c *chatBackend) Kind() Kind { return c.kind }

func (c *chatBackend) IsAvailable() bool { return c.available }

func (c *chatBackend) Status() map[string]any {
	status := map[string]any{"model": c.modelName, "available": c.available}
	for k, v := range c.extraStatus {
		status[k] = v
	}
	return status
}

func (c *chatBackend) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	messages := []llm.ChatMessage{
		{Role: "system", Content: "You are a helpful assistant that answers questions accurately based on provided context. If you don't know the answer, say so clearly."},
		{Role: "user", Content: prompt},
	}
	return c.client.Chat(ctx, messages)
}
