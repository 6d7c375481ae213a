package fsolver

import "sort"

// Solution is a successful resolution: exactly one version chosen for the
// root and every transitively required package, such that every chosen
// package's formula holds against the whole selection.
type Solution struct {
	sel Selection
	att int
}

// Selection returns a copy of the chosen package versions.
func (s Solution) Selection() Selection {
	out := make(Selection, len(s.sel))
	for name, v := range s.sel {
		out[name] = v
	}
	return out
}

// Version returns the chosen version for a package, if one was selected.
func (s Solution) Version(name string) (Version, bool) {
	v, ok := s.sel[name]
	return v, ok
}

// Packages returns the selected package names, sorted.
func (s Solution) Packages() []string {
	names := make([]string, 0, len(s.sel))
	for name := range s.sel {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Attempts returns the number of backtracking attempts the solver made
// before finding this solution.
func (s Solution) Attempts() int {
	return s.att
}

// ResolvedGraph derives the dependency edges realized by a solution: for
// each selected package, the selected packages its formula was satisfied
// through. OR picks the branch that actually holds (left first); NOT
// contributes no edges.
func ResolvedGraph(u *Universe, sol Solution) map[string][]string {
	graph := make(map[string][]string, len(sol.sel))
	for name, v := range sol.sel {
		f, ok := u.Depends(name, v)
		if !ok {
			continue
		}
		seen := make(map[string]struct{})
		var edges []string
		collectEdges(f, sol.sel, seen, &edges)
		sort.Strings(edges)
		graph[name] = edges
	}
	return graph
}

func collectEdges(f Formula, sel Selection, seen map[string]struct{}, out *[]string) {
	switch tf := f.(type) {
	case nil:
	case refFormula:
		if _, dup := seen[tf.name]; dup {
			return
		}
		if tf.Evaluate(sel) {
			seen[tf.name] = struct{}{}
			*out = append(*out, tf.name)
		}
	case andFormula:
		collectEdges(tf.l, sel, seen, out)
		collectEdges(tf.r, sel, seen, out)
	case orFormula:
		if tf.l.Evaluate(sel) {
			collectEdges(tf.l, sel, seen, out)
		} else {
			collectEdges(tf.r, sel, seen, out)
		}
	case notFormula:
		// Prohibitions create no edges.
	}
}
