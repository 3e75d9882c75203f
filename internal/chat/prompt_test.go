package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystemPrompt_NoAnalysis(t *testing.T) {
	assert.Equal(t, persona, SystemPrompt(nil))
	assert.Equal(t, persona, SystemPrompt(map[string]any{"unrelated": true}))
}

func TestSystemPrompt_LifeAreas(t *testing.T) {
	areas := map[string]any{}
	for _, name := range []string{"love", "career", "health", "wealth"} {
		areas[name] = map[string]any{"summary": name + " summary"}
	}
	areas["travel"] = map[string]any{"summary": "ignored"}

	p := SystemPrompt(map[string]any{"lifeAreas": areas})

	assert.Contains(t, p, "Love: love summary")
	assert.Contains(t, p, "Wealth: wealth summary")
	assert.NotContains(t, p, "ignored")
	assert.Less(t, strings.Index(p, "Love:"), strings.Index(p, "Career:"))
}

func TestSystemPrompt_SkipsMalformedValues(t *testing.T) {
	p := SystemPrompt(map[string]any{
		"personality": map[string]any{"summary": 12, "traits": []any{"kind", 3, ""}},
		"lifeAreas":   map[string]any{"love": "not an object"},
	})
	assert.Contains(t, p, "Key traits: kind")
	assert.NotContains(t, p, "Personality:")
	assert.NotContains(t, p, "Love:")
}
