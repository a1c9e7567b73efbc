// Package actions merges and filters the two action-candidate sources: the
// engine's own suggestion facility and its template generator (objects x
// verb templates). Result lists are ordered and bounded; nothing here ever
// reorders what the engine produced.
package actions

import (
	"log/slog"
	"strings"

	"gruebox/internal/engine"
)

// fallbackActions is returned when the engine's suggestion facility fails.
// An agent must always have something safe to try.
var fallbackActions = []string{"look", "inventory", "wait"}

// Valid returns the engine-suggested actions for the current state, or the
// fixed fallback list on engine failure. It never returns an error.
func Valid(eng engine.Engine, logger *slog.Logger) []string {
	acts, err := eng.ValidActions()
	if err != nil {
		logger.Warn("valid actions unavailable, using fallback", "error", err)
		return append([]string(nil), fallbackActions...)
	}
	return acts
}

// Template returns the engine's template-generated candidates, filtered by
// keywords when any are given.
func Template(eng engine.Engine, keywords []string) ([]string, error) {
	acts, err := eng.TemplateActions()
	if err != nil {
		return nil, err
	}
	return FilterKeywords(acts, keywords), nil
}

// FilterKeywords retains entries whose lowercased text contains at least
// one lowercased keyword, preserving the original relative order. An empty
// keyword list keeps everything.
func FilterKeywords(list, keywords []string) []string {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lowered = append(lowered, kw)
		}
	}
	if len(lowered) == 0 {
		return list
	}

	out := make([]string, 0, len(list))
	for _, entry := range list {
		text := strings.ToLower(entry)
		for _, kw := range lowered {
			if strings.Contains(text, kw) {
				out = append(out, entry)
				break
			}
		}
	}
	return out
}

// Truncate bounds an already-ordered list by simple prefix truncation.
// maxCount <= 0 means unlimited.
func Truncate(list []string, maxCount int) []string {
	if maxCount <= 0 || len(list) <= maxCount {
		return list
	}
	return list[:maxCount]
}

// Advanced composes exactly one candidate source per call, template-based
// when useTemplates is set, otherwise the direct suggestions, then applies the
// keyword filter, and truncates to maxCount.
func Advanced(eng engine.Engine, useTemplates bool, keywords []string, maxCount int, logger *slog.Logger) ([]string, error) {
	var list []string
	if useTemplates {
		var err error
		list, err = Template(eng, keywords)
		if err != nil {
			return nil, err
		}
	} else {
		list = FilterKeywords(Valid(eng, logger), keywords)
	}
	return Truncate(list, maxCount), nil
}
