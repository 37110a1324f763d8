package gitignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Matcher holds compiled exclusion rules. It is safe for concurrent use.
type Matcher struct {
	mu    sync.RWMutex
	rules []rule
}

type rule struct {
	source   string
	regex    *regexp.Regexp
	negated  bool
	dirOnly  bool
	anchored bool
}

// New returns an empty Matcher that ignores nothing.
func New() *Matcher {
	return &Matcher{}
}

// Compile returns a Matcher holding the given patterns in order.
func Compile(patterns ...string) *Matcher {
	m := New()
	m.AddPatterns(patterns...)
	return m
}

// AddPatterns appends patterns in order. Later patterns take precedence.
func (m *Matcher) AddPatterns(patterns ...string) {
	for _, p := range patterns {
		m.AddPattern(p)
	}
}

// AddPattern appends one pattern. Blank lines and comments are ignored.
func (m *Matcher) AddPattern(pattern string) {
	r, ok := parseRule(pattern)
	if !ok {
		return
	}
	m.mu.Lock()
	m.rules = append(m.rules, r)
	m.mu.Unlock()
}

// AddFromFile appends every pattern line of an ignore file.
func (m *Matcher) AddFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open ignore file: %w", err)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m.AddPattern(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read ignore file %s: %w", path, err)
	}
	return nil
}

// Len reports the number of compiled rules.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}

// Patterns returns the source text of every rule in order.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.rules))
	for i, r := range m.rules {
		out[i] = r.source
	}
	return out
}

// Match reports whether the slash- or OS-separated relative path is
// excluded. The last matching rule wins. A nil Matcher matches nothing.
func (m *Matcher) Match(path string, isDir bool) bool {
	if m == nil {
		return false
	}
	path = strings.TrimPrefix(filepath.ToSlash(path), "./")
	if path == "" || path == "." {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	excluded := false
	for _, r := range m.rules {
		if r.matches(path, isDir) {
			excluded = !r.negated
		}
	}
	return excluded
}

func parseRule(line string) (rule, bool) {
	escapedSpace := strings.HasSuffix(line, `\ `)
	pattern := strings.TrimSpace(line)
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return rule{}, false
	}

	r := rule{source: pattern}
	switch {
	case strings.HasPrefix(pattern, `\#`), strings.HasPrefix(pattern, `\!`):
		pattern = pattern[1:]
	case strings.HasPrefix(pattern, "!"):
		r.negated = true
		pattern = pattern[1:]
	}
	if escapedSpace && strings.HasSuffix(pattern, `\`) {
		pattern = strings.TrimSuffix(pattern, `\`) + " "
	}

	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		r.anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	}
	// "org/acme" is rooted; "**/acme" and "*/acme" float.
	if strings.Contains(pattern, "/") && !strings.HasPrefix(pattern, "*") {
		r.anchored = true
	}
	if pattern == "" {
		return rule{}, false
	}

	r.regex = regexp.MustCompile("^" + toRegex(pattern) + "$")
	return r, true
}

func (r rule) matches(path string, isDir bool) bool {
	parts := strings.Split(path, "/")

	if r.anchored {
		if r.regex.MatchString(path) {
			return !r.dirOnly || isDir
		}
		if r.dirOnly {
			for i := 1; i < len(parts); i++ {
				if r.regex.MatchString(strings.Join(parts[:i], "/")) {
					return true
				}
			}
		}
		return false
	}

	if r.dirOnly {
		for i, part := range parts {
			if r.regex.MatchString(part) {
				return i < len(parts)-1 || isDir
			}
		}
		return false
	}

	if r.regex.MatchString(path) {
		return true
	}
	for _, part := range parts {
		if r.regex.MatchString(part) {
			return true
		}
	}
	return false
}

// toRegex translates glob syntax into an unanchored regular expression.
func toRegex(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					b.WriteString("(?:.*/)?")
					i += 3
					continue
				}
				if i == 0 || pattern[i-1] == '/' {
					b.WriteString(".*")
					i += 2
					continue
				}
			}
			b.WriteString("[^/]*")
			i++
		case '?':
			b.WriteString("[^/]")
			i++
		case '[':
			end := strings.IndexByte(pattern[i+1:], ']')
			if end <= 0 {
				b.WriteString(`\[`)
				i++
				continue
			}
			class := pattern[i : i+end+2]
			if strings.HasPrefix(class, "[!") {
				class = "[^" + class[2:]
			}
			b.WriteString(class)
			i += end + 2
		case '\\':
			if i+1 < len(pattern) {
				b.WriteString(regexp.QuoteMeta(pattern[i+1 : i+2]))
				i += 2
				continue
			}
			b.WriteString(`\\`)
			i++
		default:
			b.WriteString(regexp.QuoteMeta(pattern[i : i+1]))
			i++
		}
	}
	return b.String()
}
