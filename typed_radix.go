package fsolver

import (
	"sort"
	"strings"

	radix "github.com/armon/go-radix"
)

// Thin wrapper around a radix tree of package names. Just enough surface
// for the suggestion walks; lookups the Universe's own map already answers
// are not duplicated here.
type pkgTrie struct {
	t *radix.Tree
}

func newPkgTrie() pkgTrie {
	return pkgTrie{t: radix.New()}
}

// Insert adds a package name. Returns whether it was already present.
func (t pkgTrie) Insert(name string) bool {
	_, had := t.t.Insert(name, struct{}{})
	return had
}

// WalkPrefix visits every package name sharing the given prefix.
func (t pkgTrie) WalkPrefix(prefix string, fn func(name string)) {
	t.t.WalkPrefix(prefix, func(s string, _ interface{}) bool {
		fn(s)
		return false
	})
}

// suggestions returns up to max known package names that share a leading
// prefix with the unknown name, longest prefixes first. Used to decorate
// unknown-package failures.
func (t pkgTrie) suggestions(name string, max int) []string {
	seen := make(map[string]struct{})
	var out []string

	for l := len(name); l > 0 && len(out) < max; l-- {
		var batch []string
		t.WalkPrefix(name[:l], func(s string) {
			if s == name {
				return
			}
			if _, dup := seen[s]; !dup {
				seen[s] = struct{}{}
				batch = append(batch, s)
			}
		})
		sort.Strings(batch)
		out = append(out, batch...)
	}

	if len(out) > max {
		out = out[:max]
	}
	return out
}

// caseFoldSuggest falls back to a case-insensitive scan when prefix walks
// turn up nothing.
func (t pkgTrie) caseFoldSuggest(name string) []string {
	var out []string
	lower := strings.ToLower(name)
	t.WalkPrefix("", func(s string) {
		if strings.ToLower(s) == lower && s != name {
			out = append(out, s)
		}
	})
	sort.Strings(out)
	return out
}
