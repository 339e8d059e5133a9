package fs

import (
	"path/filepath"
	"testing"
)

func TestNewNameMatcher_DropsBadPatterns(t *testing.T) {
	m := NewNameMatcher("*.swp", "[unclosed", "*~")
	if len(m.patterns) != 2 {
		t.Fatalf("len(patterns) = %d, want 2", len(m.patterns))
	}
	if m.Match("[unclosed") {
		t.Error("malformed pattern matched")
	}
}

func TestNameMatcher_Match(t *testing.T) {
	scratch := NewNameMatcher(ScratchPatterns...)

	tests := []struct {
		name string
		m    *NameMatcher
		path string
		want bool
	}{
		{"temp file from atomic write", scratch, ".tmp-123456", true},
		{"temp file with directory", scratch, filepath.Join("state", ".tmp-99"), true},
		{"vim swap file", scratch, "reorder-or-buy-again.state.swp", true},
		{"emacs lock file", scratch, ".#reorder-or-buy-again.state", true},
		{"backup tilde file", scratch, "reorder-or-buy-again.state~", true},
		{"data file is kept", scratch, "reorder-or-buy-again.state", false},
		{"data file with directory", scratch, filepath.Join("state", "reorder-or-buy-again.state"), false},
		{"no patterns", NewNameMatcher(), "anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.m.Match(tt.path); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
