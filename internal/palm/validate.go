package palm

import "sort"

// MissingFields returns the dotted path of every template key absent from
// data, in a stable order. A missing branch is reported once by its own path;
// a branch present with a non-object value reports each of its children.
func MissingFields(template, data map[string]any) []string {
	var missing []string
	collectMissing(template, data, "", &missing)
	return missing
}

func collectMissing(template, data map[string]any, prefix string, out *[]string) {
	keys := make([]string, 0, len(template))
	for k := range template {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}

		value, ok := data[k]
		if !ok {
			*out = append(*out, path)
			continue
		}

		sub, isBranch := template[k].(map[string]any)
		if !isBranch {
			continue
		}
		child, _ := value.(map[string]any)
		collectMissing(sub, child, path, out)
	}
}
