package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackList_KnownModelTriesTierMembers(t *testing.T) {
	list := fallbackList("openai/gpt-3.5-turbo", 3)
	assert.Equal(t, []string{
		"openai/gpt-3.5-turbo",
		"anthropic/claude-3-sonnet",
		"google/gemini-pro",
	}, list)
}

func TestFallbackList_UnknownModelFallsBackOnlyToItself(t *testing.T) {
	list := fallbackList("some-vendor/custom-model", 3)
	assert.Equal(t, []string{"some-vendor/custom-model"}, list)
}

func TestFallbackList_CappedAtMaxAttempts(t *testing.T) {
	list := fallbackList("openai/gpt-4-turbo", 2)
	assert.Len(t, list, 2)
	assert.Equal(t, "openai/gpt-4-turbo", list[0])
}

func TestFallbackList_MaxAttemptsBelowOneStillReturnsOriginal(t *testing.T) {
	list := fallbackList("openai/gpt-4-turbo", 0)
	assert.Equal(t, []string{"openai/gpt-4-turbo"}, list)
}
