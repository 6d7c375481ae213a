package fsolver

import (
	"fmt"
	"strings"
)

var (
	none = noneConstraint{}
	any  = anyConstraint{}
)

// A Constraint provides structured limitations on the versions that are
// admissible for a given package. The set of implementations is closed; the
// solver relies on exhaustive knowledge of the concrete types.
type Constraint interface {
	fmt.Stringer
	// Matches indicates if the provided Version is allowed by the Constraint.
	Matches(Version) bool
	// Intersect computes the intersection of the Constraint with the provided
	// Constraint.
	Intersect(Constraint) Constraint
	_private()
}

func (cmpConstraint) _private() {}
func (notCmpConstraint) _private() {}
func (andConstraint) _private() {}
func (anyConstraint) _private() {}
func (noneConstraint) _private() {}

type relOp uint8

const (
	opEq relOp = iota
	opNeq
	opLt
	opLeq
	opGt
	opGeq
)

var relOpNames = [...]string{
	opEq:  "=",
	opNeq: "!=",
	opLt:  "<",
	opLeq: "<=",
	opGt:  ">",
	opGeq: ">=",
}

func (o relOp) String() string {
	return relOpNames[o]
}

func parseRelOp(tok string) (relOp, bool) {
	for op, name := range relOpNames {
		if tok == name {
			return relOp(op), true
		}
	}
	return 0, false
}

func (o relOp) eval(cmp int) bool {
	switch o {
	case opEq:
		return cmp == 0
	case opNeq:
		return cmp != 0
	case opLt:
		return cmp < 0
	case opLeq:
		return cmp <= 0
	case opGt:
		return cmp > 0
	case opGeq:
		return cmp >= 0
	}
	return false
}

// NewConstraint constructs a comparator Constraint from an operator token
// (one of = != < <= > >=) and a version string.
func NewConstraint(op, version string) (Constraint, error) {
	ro, ok := parseRelOp(op)
	if !ok {
		return nil, fmt.Errorf("unknown comparator %q", op)
	}
	v, err := ParseVersion(version)
	if err != nil {
		return nil, err
	}
	return cmpConstraint{op: ro, v: v}, nil
}

// Any returns a constraint that will match any version.
func Any() Constraint {
	return any
}

// IsAny indicates if the provided constraint is the wildcard "Any" constraint.
func IsAny(c Constraint) bool {
	_, ok := c.(anyConstraint)
	return ok
}

// cmpConstraint is a single comparator applied against a bound version.
type cmpConstraint struct {
	op relOp
	v  Version
}

func (c cmpConstraint) String() string {
	return fmt.Sprintf("%s %q", c.op, c.v)
}

func (c cmpConstraint) Matches(v Version) bool {
	return c.op.eval(v.Compare(c.v))
}

func (c cmpConstraint) Intersect(c2 Constraint) Constraint {
	return intersect(c, c2)
}

// notCmpConstraint negates a single comparator, as written inside a
// constraint block: ! (< "2.5.0").
type notCmpConstraint struct {
	c cmpConstraint
}

func (c notCmpConstraint) String() string {
	return fmt.Sprintf("! (%s)", c.c)
}

func (c notCmpConstraint) Matches(v Version) bool {
	return !c.c.Matches(v)
}

func (c notCmpConstraint) Intersect(c2 Constraint) Constraint {
	return intersect(c, c2)
}

// andConstraint is the intersection of its members. The solver accumulates
// one of these per package as dependers pile up.
type andConstraint []Constraint

func (c andConstraint) String() string {
	var parts []string
	for _, sub := range c {
		parts = append(parts, sub.String())
	}
	return strings.Join(parts, " & ")
}

func (c andConstraint) Matches(v Version) bool {
	for _, sub := range c {
		if !sub.Matches(v) {
			return false
		}
	}
	return true
}

func (c andConstraint) Intersect(c2 Constraint) Constraint {
	return intersect(c, c2)
}

// anyConstraint is an unbounded constraint - it matches all versions.
type anyConstraint struct{}

func (anyConstraint) String() string {
	return "*"
}

func (anyConstraint) Matches(Version) bool {
	return true
}

func (anyConstraint) Intersect(c Constraint) Constraint {
	return c
}

// noneConstraint is the empty set - it matches no versions.
type noneConstraint struct{}

func (noneConstraint) String() string {
	return ""
}

func (noneConstraint) Matches(Version) bool {
	return false
}

func (noneConstraint) Intersect(Constraint) Constraint {
	return none
}

// intersect combines two constraints into their conjunction. Exact interval
// algebra is unnecessary here: the universe is finite, so emptiness checks
// are done by scanning a package's available versions instead.
func intersect(a, b Constraint) Constraint {
	switch b.(type) {
	case anyConstraint:
		return a
	case noneConstraint:
		return none
	}

	var out andConstraint
	for _, c := range []Constraint{a, b} {
		if sub, ok := c.(andConstraint); ok {
			out = append(out, sub...)
		} else {
			out = append(out, c)
		}
	}
	return out
}
