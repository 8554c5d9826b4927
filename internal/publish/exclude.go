package publish

import (
	"path"
	"strings"
)

// ExcludeMatcher matches slash-separated relative paths against glob patterns.
// A pattern without "/" matches any single path segment; a pattern with "/"
// matches the whole path. "**" matches any number of segments.
type ExcludeMatcher struct {
	patterns []string
}

// NewExcludeMatcher creates a matcher for patterns.
func NewExcludeMatcher(patterns []string) *ExcludeMatcher {
	cleaned := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSuffix(strings.TrimSpace(p), "/")
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return &ExcludeMatcher{patterns: cleaned}
}

// Match reports whether relPath is excluded.
func (m *ExcludeMatcher) Match(relPath string) bool {
	for _, pat := range m.patterns {
		if matchPattern(pat, relPath) {
			return true
		}
	}
	return false
}

func matchPattern(pattern, relPath string) bool {
	if strings.Contains(pattern, "**") {
		return matchDoublestar(pattern, relPath)
	}
	if strings.Contains(pattern, "/") {
		matched, _ := path.Match(pattern, relPath)
		return matched
	}
	for _, part := range strings.Split(relPath, "/") {
		if matched, _ := path.Match(pattern, part); matched {
			return true
		}
	}
	return false
}

func matchDoublestar(pattern, relPath string) bool {
	parts := strings.SplitN(pattern, "**", 2)
	prefix := strings.TrimSuffix(parts[0], "/")
	suffix := strings.TrimPrefix(parts[1], "/")

	if prefix != "" {
		if relPath == prefix {
			return suffix == ""
		}
		if !strings.HasPrefix(relPath, prefix+"/") {
			return false
		}
		relPath = strings.TrimPrefix(relPath, prefix+"/")
	}
	if suffix == "" {
		return true
	}

	segments := strings.Split(relPath, "/")
	for i := range segments {
		if matched, _ := path.Match(suffix, strings.Join(segments[i:], "/")); matched {
			return true
		}
	}
	return false
}
