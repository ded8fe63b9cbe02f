package llmlayer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	kind      Kind
	available bool
	answer    string
	err       error
}

func (s *stubBackend) Kind() Kind          { return s.kind }
func (s *stubBackend) IsAvailable() bool   { return s.available }
func (s *stubBackend) Status() map[string]any { return map[string]any{"available": s.available} }
func (s *stubBackend) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	return s.answer, s.err
}

func TestLayerOrdersHostedBeforeLocalByDefault(t *testing.T) {
	local := &stubBackend{kind: KindLocal, available: true, answer: "local answer"}
	hosted := &stubBackend{kind: KindOpenAI, available: true, answer: "hosted answer"}
	l := New([]Backend{local, hosted}, false, nil)
	assert.Equal(t, KindOpenAI, l.Primary())
}

func TestLayerPrefersLocalWhenConfigured(t *testing.T) {
	local := &stubBackend{kind: KindLocal, available: true, answer: "local answer"}
	hosted := &stubBackend{kind: KindOpenAI, available: true, answer: "hosted answer"}
	l := New([]Backend{local, hosted}, true, nil)
	assert.Equal(t, KindLocal, l.Primary())
}

func TestLayerSkipsUnavailableBackends(t *testing.T) {
	hosted := &stubBackend{kind: KindOpenAI, available: false}
	local := &stubBackend{kind: KindLocal, available: true, answer: "ok"}
	l := New([]Backend{hosted, local}, false, nil)
	assert.Equal(t, KindLocal, l.Primary())
}

func TestLayerFallsBackOnErrorLikeAnswer(t *testing.T) {
	primary := &stubBackend{kind: KindOpenAI, available: true, answer: "I encountered an error processing this"}
	fallback := &stubBackend{kind: KindGroq, available: true, answer: "a real answer"}
	l := New([]Backend{primary, fallback}, false, nil)

	answer, used, err := l.Generate(context.Background(), "prompt", 100, 0.3)
	require.NoError(t, err)
	assert.Equal(t, "a real answer", answer)
	assert.Equal(t, KindGroq, used)
}

func TestLayerUnavailableWhenAllFail(t *testing.T) {
	l := New(nil, false, nil)
	_, _, err := l.Generate(context.Background(), "prompt", 100, 0.3)
	assert.Error(t, err)
}

func TestSwitchPrimary(t *testing.T) {
	a := &stubBackend{kind: KindOpenAI, available: true, answer: "a"}
	b := &stubBackend{kind: KindGroq, available: true, answer: "b"}
	l := New([]Backend{a, b}, false, nil)
	require.NoError(t, l.SwitchPrimary(KindGroq))
	assert.Equal(t, KindGroq, l.Primary())
}
