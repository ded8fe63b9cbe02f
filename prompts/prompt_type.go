// Package prompts provides prompt templates and utilities for LLM interactions.
package prompts

// PromptType represents the type/category of a prompt.
type PromptType string

const (
	// PromptTypeQuestionAnswer tags the document Q&A prompt the query
	// pipeline formats with {context_str, query_str}.
	PromptTypeQuestionAnswer PromptType = "text_qa"

	// PromptTypeSimpleInput tags a single-variable passthrough prompt.
	PromptTypeSimpleInput PromptType = "simple_input"

	// PromptTypeCustom is the default type for ad hoc templates.
	PromptTypeCustom PromptType = "custom"
)

// String returns the string representation of the prompt type.
func (pt PromptType) String() string {
	return string(pt)
}
