package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocQAPromptFormatsContextAndQuestion(t *testing.T) {
	out := DocQAPrompt.Format(map[string]string{
		"context_str": "[Source 1: manual.pdf]\nThe widget ships in blue.",
		"query_str":   "What color does the widget ship in?",
	})

	assert.True(t, strings.HasPrefix(out, "Based on the following context information"))
	assert.Contains(t, out, "CONTEXT:\n[Source 1: manual.pdf]\nThe widget ships in blue.")
	assert.Contains(t, out, "QUESTION: What color does the widget ship in?")
	assert.True(t, strings.HasSuffix(out, "ANSWER:"))
}

func TestDocQAPromptExposesTemplateVars(t *testing.T) {
	vars := DocQAPrompt.GetTemplateVars()
	assert.ElementsMatch(t, []string{"context_str", "query_str"}, vars)
}
