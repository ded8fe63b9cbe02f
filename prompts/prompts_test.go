package prompts

import (
	"testing"

	"github.com/aqua777/go-docqa/llm"
	"github.com/stretchr/testify/assert"
)

func TestGetTemplateVars(t *testing.T) {
	tests := []struct {
		template string
		expected []string
	}{
		{"Hello {name}!", []string{"name"}},
		{"Hello {name}, you are {age} years old.", []string{"name", "age"}},
		{"{a} {b} {a}", []string{"a", "b"}}, // duplicates removed
		{"No variables here", []string{}},
		{"{query_str}\n{context_str}", []string{"query_str", "context_str"}},
	}

	for _, tt := range tests {
		vars := GetTemplateVars(tt.template)
		assert.Equal(t, tt.expected, vars)
	}
}

func TestFormatString(t *testing.T) {
	template := "Hello {name}, you are {age} years old."
	vars := map[string]string{
		"name": "Alice",
		"age":  "30",
	}

	result := FormatString(template, vars)
	assert.Equal(t, "Hello Alice, you are 30 years old.", result)
}

func TestPromptTemplate(t *testing.T) {
	template := "Query: {query_str}\nContext: {context_str}"
	pt := NewPromptTemplate(template, PromptTypeQuestionAnswer)

	assert.Equal(t, template, pt.GetTemplate())
	assert.Equal(t, PromptTypeQuestionAnswer, pt.GetPromptType())
	assert.ElementsMatch(t, []string{"query_str", "context_str"}, pt.GetTemplateVars())
}

func TestPromptTemplateFormat(t *testing.T) {
	template := "Query: {query_str}\nContext: {context_str}"
	pt := NewPromptTemplate(template, PromptTypeQuestionAnswer)

	result := pt.Format(map[string]string{
		"query_str":   "What is AI?",
		"context_str": "AI is artificial intelligence.",
	})

	assert.Equal(t, "Query: What is AI?\nContext: AI is artificial intelligence.", result)
}

func TestPromptTemplatePartialFormat(t *testing.T) {
	template := "Query: {query_str}\nContext: {context_str}"
	pt := NewPromptTemplate(template, PromptTypeQuestionAnswer)

	// Partial format with context
	partial := pt.PartialFormat(map[string]string{
		"context_str": "AI is artificial intelligence.",
	})

	// Now format with just query
	result := partial.Format(map[string]string{
		"query_str": "What is AI?",
	})

	assert.Equal(t, "Query: What is AI?\nContext: AI is artificial intelligence.", result)
}

func TestPromptTemplateFormatMessages(t *testing.T) {
	template := "What is {topic}?"
	pt := NewPromptTemplate(template, PromptTypeSimpleInput)

	messages := pt.FormatMessages(map[string]string{"topic": "AI"})

	assert.Len(t, messages, 1)
	assert.Equal(t, llm.MessageRoleUser, messages[0].Role)
	assert.Equal(t, "What is AI?", messages[0].Content)
}

func TestChatPromptTemplate(t *testing.T) {
	messages := []llm.ChatMessage{
		llm.NewSystemMessage("You are a helpful assistant."),
		llm.NewUserMessage("Query: {query_str}"),
	}
	cpt := NewChatPromptTemplate(messages, PromptTypeQuestionAnswer)

	assert.Equal(t, PromptTypeQuestionAnswer, cpt.GetPromptType())
	assert.ElementsMatch(t, []string{"query_str"}, cpt.GetTemplateVars())
}

func TestChatPromptTemplateFormatMessages(t *testing.T) {
	messages := []llm.ChatMessage{
		llm.NewSystemMessage("You are a {role}."),
		llm.NewUserMessage("Query: {query_str}"),
	}
	cpt := NewChatPromptTemplate(messages, PromptTypeQuestionAnswer)

	formatted := cpt.FormatMessages(map[string]string{
		"role":      "helpful assistant",
		"query_str": "What is AI?",
	})

	assert.Len(t, formatted, 2)
	assert.Equal(t, llm.MessageRoleSystem, formatted[0].Role)
	assert.Equal(t, "You are a helpful assistant.", formatted[0].Content)
	assert.Equal(t, llm.MessageRoleUser, formatted[1].Role)
	assert.Equal(t, "Query: What is AI?", formatted[1].Content)
}

func TestChatPromptTemplatePartialFormat(t *testing.T) {
	messages := []llm.ChatMessage{
		llm.NewSystemMessage("You are a {role}."),
		llm.NewUserMessage("Query: {query_str}"),
	}
	cpt := NewChatPromptTemplate(messages, PromptTypeQuestionAnswer)

	// Partial format with role
	partial := cpt.PartialFormat(map[string]string{"role": "helpful assistant"})

	// Now format with just query
	formatted := partial.FormatMessages(map[string]string{"query_str": "What is AI?"})

	assert.Equal(t, "You are a helpful assistant.", formatted[0].Content)
	assert.Equal(t, "Query: What is AI?", formatted[1].Content)
}

func TestPromptType(t *testing.T) {
	assert.Equal(t, "text_qa", PromptTypeQuestionAnswer.String())
	assert.Equal(t, "simple_input", PromptTypeSimpleInput.String())
	assert.Equal(t, "custom", PromptTypeCustom.String())
}

func TestPromptTemplateMetadata(t *testing.T) {
	metadata := map[string]interface{}{
		"version": "1.0",
		"author":  "test",
	}
	pt := NewPromptTemplateWithMetadata("Hello {name}", PromptTypeCustom, metadata)

	assert.Equal(t, "1.0", pt.GetMetadata()["version"])
	assert.Equal(t, "test", pt.GetMetadata()["author"])
}
