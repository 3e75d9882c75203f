package palm

// TemplateVersion is stamped into every assembled reading.
const TemplateVersion = "2024-06"

func lifeArea(name string) map[string]any {
	return map[string]any{
		"summary":    "two or three sentences on the user's " + name,
		"prediction": "what the coming year holds for " + name,
		"advice":     "one concrete piece of advice about " + name,
	}
}

func palmLine(name string) map[string]any {
	return map[string]any{
		"description": "how the " + name + " looks in this palm",
		"meaning":     "what the " + name + " says about the user",
	}
}

// Template is the shape every generated reading must have. Only key presence
// is checked; leaf values describe the expected content and are sent to the
// model as the output schema.
var Template = map[string]any{
	"personality": map[string]any{
		"summary":    "a paragraph describing the user's character",
		"traits":     []string{"short trait"},
		"strengths":  []string{"short strength"},
		"challenges": []string{"short challenge"},
	},
	"lifeAreas": map[string]any{
		"love":   lifeArea("love life"),
		"career": lifeArea("career"),
		"health": lifeArea("health"),
		"wealth": lifeArea("finances"),
	},
	"palmLines": map[string]any{
		"heartLine": palmLine("heart line"),
		"headLine":  palmLine("head line"),
		"lifeLine":  palmLine("life line"),
		"fateLine":  palmLine("fate line"),
	},
	"luckyElements": map[string]any{
		"numbers": []int{7},
		"colors":  []string{"colour name"},
		"days":    []string{"weekday"},
	},
	"overallReading": "a closing paragraph tying the reading together",
}
