// Package wordlist holds the default domain and local-part lists.
// Each list is a newline-separated text file; blank lines and lines
// starting with # are ignored.
package wordlist

import (
	_ "embed"
	"strings"
)

var (
	//go:embed disposable.txt
	rawDisposable string
	//go:embed free.txt
	rawFree string
	//go:embed roles.txt
	rawRoles string
)

// Disposable returns the default disposable-domain list.
func Disposable() []string { return parse(rawDisposable) }

// FreeProviders returns the default consumer webmail domain list.
func FreeProviders() []string { return parse(rawFree) }

// RolePrefixes returns the default role-account local parts.
func RolePrefixes() []string { return parse(rawRoles) }

// Set is a case-insensitive string set.
type Set map[string]struct{}

// NewSet builds a Set from items, lower-casing and trimming each.
func NewSet(items []string) Set {
	s := make(Set, len(items))
	for _, it := range items {
		it = strings.ToLower(strings.TrimSpace(it))
		if it != "" {
			s[it] = struct{}{}
		}
	}
	return s
}

// Has reports whether v is in the set, ignoring case.
func (s Set) Has(v string) bool {
	_, ok := s[strings.ToLower(v)]
	return ok
}

func parse(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			out = append(out, strings.ToLower(line))
		}
	}
	return out
}
