package watcher

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
)

// Matcher decides whether a root-relative path is ignored.
//
// Patterns are globs with '/' as the separator. A pattern without '/' matches
// any single path segment, so "*.tmp" and "node_modules" apply at any depth.
// A path is ignored when it or any of its ancestors matches.
type Matcher struct {
	patterns []string
	segment  []glob.Glob
	full     []glob.Glob
}

// NewMatcher compiles patterns. Blank patterns are skipped.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, raw := range patterns {
		p := strings.TrimSpace(filepath.ToSlash(raw))
		p = strings.TrimPrefix(p, "./")
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fserrors.ValidationError(fmt.Sprintf("invalid ignore pattern %q", raw), err).
				WithDetail("pattern", raw)
		}
		if strings.Contains(p, "/") {
			m.full = append(m.full, g)
		} else {
			m.segment = append(m.segment, g)
		}
		m.patterns = append(m.patterns, raw)
	}
	return m, nil
}

// Patterns returns the accepted patterns as given.
func (m *Matcher) Patterns() []string {
	out := make([]string, len(m.patterns))
	copy(out, m.patterns)
	return out
}

// Match reports whether rel (relative to the root, any separator) is ignored.
func (m *Matcher) Match(rel string) bool {
	if m == nil || (len(m.segment) == 0 && len(m.full) == 0) {
		return false
	}
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return false
	}

	segments := strings.Split(rel, "/")
	for i, seg := range segments {
		for _, g := range m.segment {
			if g.Match(seg) {
				return true
			}
		}
		if len(m.full) > 0 {
			prefix := strings.Join(segments[:i+1], "/")
			for _, g := range m.full {
				if g.Match(prefix) {
					return true
				}
			}
		}
	}
	return false
}

// merge combines two matchers into one.
func merge(a, b *Matcher) *Matcher {
	out := &Matcher{}
	for _, m := range []*Matcher{a, b} {
		if m == nil {
			continue
		}
		out.patterns = append(out.patterns, m.patterns...)
		out.segment = append(out.segment, m.segment...)
		out.full = append(out.full, m.full...)
	}
	return out
}
