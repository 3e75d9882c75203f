package palm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aurapalm/aura/internal/llm"
)

const systemPrompt = `You are an experienced palmist and astrologer writing a personal palm reading.
Write warmly and specifically, in second person, without disclaimers.
Respond with a single JSON object and nothing else. The object must contain every key of this schema, with the same nesting; the values describe what to write:
%s`

// BuildMessages assembles the completion request for one reading.
func BuildMessages(questionnaire map[string]any, imageURL string) ([]llm.Message, error) {
	schema, err := json.MarshalIndent(Template, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling template: %w", err)
	}
	answers, err := json.MarshalIndent(questionnaire, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling questionnaire: %w", err)
	}

	var user strings.Builder
	user.WriteString("Here are my answers to the palm questionnaire:\n")
	user.Write(answers)
	if imageURL != "" {
		user.WriteString("\n\nA photo of my palm is available at: ")
		user.WriteString(imageURL)
	}
	user.WriteString("\n\nPlease write my reading.")

	return []llm.Message{
		{Role: llm.RoleSystem, Content: fmt.Sprintf(systemPrompt, schema)},
		{Role: llm.RoleUser, Content: user.String()},
	}, nil
}
