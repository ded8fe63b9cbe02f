package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageRoles(t *testing.T) {
	assert.Equal(t, MessageRole("system"), MessageRoleSystem)
	assert.Equal(t, MessageRole("user"), MessageRoleUser)
	assert.Equal(t, MessageRole("assistant"), MessageRoleAssistant)
}

func TestNewChatMessage(t *testing.T) {
	msg := NewChatMessage(MessageRoleUser, "Hello")
	assert.Equal(t, MessageRoleUser, msg.Role)
	assert.Equal(t, "Hello", msg.Content)
}

func TestNewSystemMessage(t *testing.T) {
	msg := NewSystemMessage("You are a helpful assistant")
	assert.Equal(t, MessageRoleSystem, msg.Role)
	assert.Equal(t, "You are a helpful assistant", msg.Content)
}

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("What is 2+2?")
	assert.Equal(t, MessageRoleUser, msg.Role)
	assert.Equal(t, "What is 2+2?", msg.Content)
}

func TestNewAssistantMessage(t *testing.T) {
	msg := NewAssistantMessage("The answer is 4")
	assert.Equal(t, MessageRoleAssistant, msg.Role)
	assert.Equal(t, "The answer is 4", msg.Content)
}
