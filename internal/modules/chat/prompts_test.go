package chat

import (
	"testing"
	"time"

	"github.com/docverse/core/internal/modules/ai"
	"github.com/docverse/core/internal/modules/retrieval"
	"github.com/stretchr/testify/assert"
)

func TestBuildAnswerPromptWithContext(t *testing.T) {
	result := &retrieval.Result{
		Items: []retrieval.Item{
			{Title: "Handbook", Content: "Vacation policy is 25 days."},
			{Title: "", Content: "Untitled excerpt."},
		},
	}
	prompt := buildAnswerPrompt(result, "How many vacation days?")

	assert.Contains(t, prompt, "[1] Handbook")
	assert.Contains(t, prompt, "Vacation policy is 25 days.")
	assert.Contains(t, prompt, "[2] Untitled document")
	assert.Contains(t, prompt, "Question: How many vacation days?")
}

func TestBuildAnswerPromptWithoutContext(t *testing.T) {
	prompt := buildAnswerPrompt(&retrieval.Result{}, "anything?")
	assert.Contains(t, prompt, "no relevant excerpts")
	assert.Contains(t, prompt, "Question: anything?")
}

func TestBuildSystemPromptCarriesDate(t *testing.T) {
	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	assert.Contains(t, buildSystemPrompt(now), "2026-02-14")
}

func TestFallbackAnswerPerKind(t *testing.T) {
	kinds := []ai.ErrorKind{
		ai.ErrorKindAuth,
		ai.ErrorKindQuota,
		ai.ErrorKindTimeout,
		ai.ErrorKindProvider,
		ai.ErrorKindCancelled,
	}
	seen := map[string]bool{}
	for _, kind := range kinds {
		text := fallbackAnswer(kind)
		assert.NotEmpty(t, text, "kind=%s", kind)
		seen[text] = true
	}
	// Auth, quota and timeout each get a distinct explanation.
	assert.GreaterOrEqual(t, len(seen), 4)
}
