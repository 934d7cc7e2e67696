package watch

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher matches project relative paths against ignore glob patterns (`**` supported).
type Matcher struct {
	patterns []string
}

// NewMatcher validates the patterns and returns a matcher.
func NewMatcher(patterns []string) (*Matcher, error) {
	ps := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid ignore pattern %q", p)
		}
		ps = append(ps, p)
	}

	return &Matcher{patterns: ps}, nil
}

// Match returns true if the path, or any trailing part of it, matches a pattern.
// `node_modules/**` ignores `web/node_modules/react/index.js` and `*.pyc`
// ignores `pkg/mod.pyc`.
func (m *Matcher) Match(path string) bool {
	path = strings.TrimPrefix(filepath.ToSlash(filepath.Clean(path)), "./")
	if path == "." || path == "" {
		return false
	}

	parts := strings.Split(path, "/")
	for i := range parts {
		suffix := strings.Join(parts[i:], "/")
		for _, p := range m.patterns {
			if ok, _ := doublestar.Match(p, suffix); ok {
				return true
			}
		}
	}

	return false
}
