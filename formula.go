package fsolver

import (
	"fmt"
	"strings"
)

// Selection maps each resolved package name to the single version chosen
// for it.
type Selection map[string]Version

// A Formula is a boolean expression over dependency package references and
// version constraints. Formulas are immutable once parsed; the set of
// concrete shapes is closed (package leaf, and, or, not) and evaluation is
// handled by exhaustive type switching rather than open polymorphism.
type Formula interface {
	fmt.Stringer
	// Evaluate reports whether the formula holds against a full or partial
	// Selection. An unselected package falsifies the leaf that names it.
	Evaluate(Selection) bool
	// MatchesCandidate evaluates the formula against one proposed (name,
	// version) candidate in isolation: a package leaf holds iff it names the
	// candidate and all its constraint terms admit the candidate's version.
	MatchesCandidate(name string, v Version) bool
	_formula()
}

func (refFormula) _formula() {}
func (andFormula) _formula() {}
func (orFormula) _formula() {}
func (notFormula) _formula() {}

// refFormula is a package leaf: a dependency name plus zero or more
// constraint terms, all of which must hold.
type refFormula struct {
	name  string
	terms []Constraint
}

func (f refFormula) constraint() Constraint {
	if len(f.terms) == 0 {
		return any
	}
	c := f.terms[0]
	for _, t := range f.terms[1:] {
		c = c.Intersect(t)
	}
	return c
}

func (f refFormula) String() string {
	if len(f.terms) == 0 {
		return fmt.Sprintf("%q", f.name)
	}
	var parts []string
	for _, t := range f.terms {
		parts = append(parts, t.String())
	}
	return fmt.Sprintf("%q {%s}", f.name, strings.Join(parts, " & "))
}

func (f refFormula) Evaluate(sel Selection) bool {
	v, ok := sel[f.name]
	if !ok {
		return false
	}
	for _, t := range f.terms {
		if !t.Matches(v) {
			return false
		}
	}
	return true
}

func (f refFormula) MatchesCandidate(name string, v Version) bool {
	if f.name != name {
		return false
	}
	for _, t := range f.terms {
		if !t.Matches(v) {
			return false
		}
	}
	return true
}

type andFormula struct {
	l, r Formula
}

func (f andFormula) String() string {
	return fmt.Sprintf("%s & %s", wrapBelowAnd(f.l), wrapBelowAnd(f.r))
}

func (f andFormula) Evaluate(sel Selection) bool {
	return f.l.Evaluate(sel) && f.r.Evaluate(sel)
}

func (f andFormula) MatchesCandidate(name string, v Version) bool {
	return f.l.MatchesCandidate(name, v) && f.r.MatchesCandidate(name, v)
}

type orFormula struct {
	l, r Formula
}

func (f orFormula) String() string {
	return fmt.Sprintf("%s | %s", f.l, f.r)
}

func (f orFormula) Evaluate(sel Selection) bool {
	return f.l.Evaluate(sel) || f.r.Evaluate(sel)
}

func (f orFormula) MatchesCandidate(name string, v Version) bool {
	return f.l.MatchesCandidate(name, v) || f.r.MatchesCandidate(name, v)
}

type notFormula struct {
	f Formula
}

func (f notFormula) String() string {
	if sub, ok := f.f.(refFormula); ok {
		return fmt.Sprintf("! %s", sub)
	}
	return fmt.Sprintf("! (%s)", f.f)
}

func (f notFormula) Evaluate(sel Selection) bool {
	return !f.f.Evaluate(sel)
}

func (f notFormula) MatchesCandidate(name string, v Version) bool {
	return !f.f.MatchesCandidate(name, v)
}

// wrapBelowAnd parenthesizes operands that bind more loosely than &.
func wrapBelowAnd(f Formula) string {
	if _, ok := f.(orFormula); ok {
		return fmt.Sprintf("(%s)", f)
	}
	return f.String()
}
