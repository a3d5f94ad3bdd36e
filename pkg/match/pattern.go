// Package match selects object keys for staging using doublestar globs.
//
// Patterns are matched against slash-separated keys. Listing is narrowed to
// the literal prefix before the first glob metacharacter so a pattern like
// "raw/2026/**/*.csv" only lists under "raw/2026/".
package match

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrInvalidPattern indicates a glob that doublestar cannot compile.
var ErrInvalidPattern = errors.New("invalid pattern")

// Pattern is a validated glob with its derived listing prefix.
type Pattern struct {
	raw    string
	prefix string
	hidden bool
}

// Compile validates a pattern. When includeHidden is false, keys with any
// dot-prefixed segment never match.
func Compile(pattern string, includeHidden bool) (*Pattern, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}
	return &Pattern{raw: pattern, prefix: DerivePrefix(pattern), hidden: includeHidden}, nil
}

// String returns the pattern as given.
func (p *Pattern) String() string { return p.raw }

// Prefix is the literal listing prefix.
func (p *Pattern) Prefix() string { return p.prefix }

// Match reports whether key is selected.
func (p *Pattern) Match(key string) bool {
	if !p.hidden && IsHidden(key) {
		return false
	}
	ok, err := doublestar.Match(p.raw, key)
	return err == nil && ok
}

// DerivePrefix returns the longest literal directory prefix of pattern.
//
//	"data/**/*.csv"    -> "data/"
//	"data/file?.csv"   -> "data/"
//	"**/*.json"        -> ""
//	"data/exact.csv"   -> "data/exact.csv"
//	"data/file\*.csv"  -> "data/file*.csv"
func DerivePrefix(pattern string) string {
	i := firstMeta(pattern)
	if i == -1 {
		return unescape(pattern)
	}
	head := pattern[:i]
	slash := strings.LastIndex(head, "/")
	if slash == -1 {
		return ""
	}
	return unescape(head[:slash+1])
}

// IsGlobPattern reports whether pattern has an unescaped metacharacter.
func IsGlobPattern(pattern string) bool {
	return firstMeta(pattern) != -1
}

// IsHidden reports whether any segment of key starts with a dot.
func IsHidden(key string) bool {
	for _, seg := range strings.Split(key, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

func firstMeta(pattern string) int {
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			if i+1 < len(pattern) && isMeta(pattern[i+1]) {
				i++
			}
		case '*', '?', '[', '{':
			return i
		}
	}
	return -1
}

func isMeta(c byte) bool {
	return strings.IndexByte(`*?[]{}\`, c) >= 0
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && isMeta(s[i+1]) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
