package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalysisMentionsSchemaFields(t *testing.T) {
	prompt := Analysis()
	for _, field := range []string{"detected", "message", "targetAreas", "postureNotes", "routine", "estimatedBodyFat"} {
		assert.Contains(t, prompt, field)
	}
}

func TestFutureProgress(t *testing.T) {
	prompt := FutureProgress([]string{" shoulders", "core ", ""})
	assert.Contains(t, prompt, "improve these areas: shoulders, core.")
	assert.Contains(t, prompt, "EXACTLY the same")
}

func TestFutureProgress_NoAreas(t *testing.T) {
	assert.Contains(t, FutureProgress(nil), "improve these areas: overall physique.")
}
