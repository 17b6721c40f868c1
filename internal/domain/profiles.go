package domain

import "path/filepath"

// IsProfileDisabled checks if a profile name matches any of the disabled patterns.
// Patterns support:
//   - Exact match: "claude" matches only "claude"
//   - Wildcard (*): "local-*" matches "local-small", "local-large", etc.
//   - Exclusion (!): "!local-large" re-enables a profile that would otherwise be disabled
//
// Exclusion patterns are always evaluated last, regardless of their position in the list.
func IsProfileDisabled(name string, patterns []string) bool {
	disabled := false

	for _, pattern := range patterns {
		if len(pattern) == 0 || pattern[0] == '!' {
			continue
		}
		if matchPattern(pattern, name) {
			disabled = true
		}
	}

	for _, pattern := range patterns {
		if len(pattern) == 0 || pattern[0] != '!' {
			continue
		}
		if matchPattern(pattern[1:], name) {
			disabled = false
		}
	}

	return disabled
}

// matchPattern checks if a name matches a pattern using filepath.Match semantics.
func matchPattern(pattern, name string) bool {
	matched, err := filepath.Match(pattern, name)
	if err != nil {
		// Treat malformed patterns as non-matching
		return false
	}
	return matched
}
