package chat

import (
	"fmt"
	"strings"
)

const persona = `You are Aura, a warm and insightful palmistry and astrology guide.
Answer the user's questions about their palm reading, relationships, career and wellbeing.
Keep replies under 200 words, speak directly to the user, and never claim certainty about the future.`

var lifeAreaOrder = []string{"love", "career", "health", "wealth"}

const maxLifeAreas = 4

// SystemPrompt returns the persona, extended with what is known from the
// user's completed palm reading when there is one.
func SystemPrompt(analysis map[string]any) string {
	if analysis == nil {
		return persona
	}

	var ctx []string
	if personality, ok := analysis["personality"].(map[string]any); ok {
		if summary, ok := personality["summary"].(string); ok && summary != "" {
			ctx = append(ctx, "Personality: "+summary)
		}
		if traits := stringList(personality["traits"]); len(traits) > 0 {
			ctx = append(ctx, "Key traits: "+strings.Join(traits, ", "))
		}
	}

	if areas, ok := analysis["lifeAreas"].(map[string]any); ok {
		added := 0
		for _, name := range lifeAreaOrder {
			if added == maxLifeAreas {
				break
			}
			area, ok := areas[name].(map[string]any)
			if !ok {
				continue
			}
			if summary, ok := area["summary"].(string); ok && summary != "" {
				ctx = append(ctx, fmt.Sprintf("%s: %s", strings.ToUpper(name[:1])+name[1:], summary))
				added++
			}
		}
	}

	if len(ctx) == 0 {
		return persona
	}
	return persona + "\n\nWhat you know from this user's palm reading:\n- " + strings.Join(ctx, "\n- ")
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
