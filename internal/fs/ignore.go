package fs

import "path/filepath"

// ScratchPatterns match files a directory watcher should never treat as
// data: temp files from atomic writes and common editor leftovers.
var ScratchPatterns = []string{TempPattern, "*.swp", "*~", ".#*"}

// NameMatcher matches file base names against glob patterns.
type NameMatcher struct {
	patterns []string
}

// NewNameMatcher builds a matcher. Malformed patterns are dropped.
func NewNameMatcher(patterns ...string) *NameMatcher {
	m := &NameMatcher{}
	for _, p := range patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			continue
		}
		m.patterns = append(m.patterns, p)
	}
	return m
}

// Match reports whether the base name of path matches any pattern.
func (m *NameMatcher) Match(path string) bool {
	name := filepath.Base(path)
	for _, p := range m.patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}
