package models

import "strings"

// normalizeEntity lowercases and trims an entity name for overlap matching.
func normalizeEntity(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// splitCombination splits a combination drug name on "+" so each component
// can be matched independently. Returns nil for an empty name.
func splitCombination(name string) []string {
	if strings.TrimSpace(name) == "" {
		return nil
	}
	parts := strings.Split(name, "+")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if n := normalizeEntity(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}
