package fsolver

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// errRetracted records a candidate struck from its queue by backtracking
// itself rather than by a satisfiability check, so the failure lists behind
// noVersionError never carry a nil entry.
var errRetracted = errors.New("retracted in favor of the next candidate")

// CancelledError reports a cooperative abort: the caller's context fired at
// a choice point and the search unwound cleanly.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("resolution cancelled: %v", e.Err)
}

func (e *CancelledError) Unwrap() error {
	return e.Err
}

// ConflictError is the terminal failure of a resolution: every candidate
// for Name was exhausted with no backtracking alternatives left. Partial
// holds the selection as it stood at the deepest point of failure, for
// diagnostics. Resolution failure is data, never a fault - callers may
// retry with different roots or constraints.
type ConflictError struct {
	Name    string
	Partial Selection
	Cause   error
}

func (e *ConflictError) Error() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "no solution: no viable candidate for %q", e.Name)
	if len(e.Partial) > 0 {
		var parts []string
		for name, v := range e.Partial {
			parts = append(parts, fmt.Sprintf("%s %s", name, v))
		}
		fmt.Fprintf(&buf, " (selected so far: %s)", strings.Join(parts, ", "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&buf, "\n%v", e.Cause)
	}
	return buf.String()
}

func (e *ConflictError) Unwrap() error {
	return e.Cause
}

// UnknownPackageError marks a formula reference to a name absent from the
// universe. During solving it behaves as "no candidate satisfies", not as a
// crash.
type UnknownPackageError struct {
	Name        string
	Suggestions []string
}

func (e *UnknownPackageError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("unknown package %q", e.Name)
	}
	return fmt.Sprintf("unknown package %q (did you mean %s?)", e.Name, strings.Join(e.Suggestions, ", "))
}

// missingPackageFailure indicates a candidate that requires a package no
// version of which exists in the universe.
type missingPackageFailure struct {
	goal    dependency
	unknown *UnknownPackageError
}

func (e *missingPackageFailure) Error() string {
	return fmt.Sprintf("could not introduce %s: %v", e.goal.depender, e.unknown)
}

func (e *missingPackageFailure) Unwrap() error {
	return e.unknown
}

// noVersionError aggregates the per-candidate failures that exhausted a
// package's queue.
type noVersionError struct {
	name  string
	fails []failedCandidate
}

func (e *noVersionError) Error() string {
	if len(e.fails) == 0 {
		return fmt.Sprintf("no versions could be found for package %q", e.name)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "could not find any candidate for %s that met constraints:", e.name)
	for _, f := range e.fails {
		fmt.Fprintf(&buf, "\n\t%s: %s", f.c, f.f)
	}
	return buf.String()
}

// versionNotAllowedFailure indicates a candidate rejected by the
// accumulated constraints of the packages already depending on it.
type versionNotAllowedFailure struct {
	goal       atom
	failparent []dependency
	c          Constraint
}

func (e *versionNotAllowedFailure) Error() string {
	if len(e.failparent) == 1 {
		return fmt.Sprintf(
			"could not introduce %s, as it is not allowed by constraint %s from %s",
			e.goal, e.failparent[0].dep.constraint, e.failparent[0].depender,
		)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "could not introduce %s, as it is not allowed by constraints from:\n", e.goal)
	for _, f := range e.failparent {
		fmt.Fprintf(&buf, "\t%s from %s\n", f.dep.constraint, f.depender)
	}
	return buf.String()
}

// disjointConstraintFailure indicates a candidate whose requirement on a
// dependency leaves that dependency with no admissible version at all once
// intersected with the constraints from other selected packages.
type disjointConstraintFailure struct {
	goal      dependency
	failsib   []dependency
	nofailsib []dependency
}

func (e *disjointConstraintFailure) Error() string {
	if len(e.failsib) == 1 {
		return fmt.Sprintf(
			"could not introduce %s, as its requirement %s on %q has no candidate in common with constraint %s from %s",
			e.goal.depender, e.goal.dep.constraint, e.goal.dep.name,
			e.failsib[0].dep.constraint, e.failsib[0].depender,
		)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf,
		"could not introduce %s, as no version of %q satisfies its requirement %s together with:\n",
		e.goal.depender, e.goal.dep.name, e.goal.dep.constraint,
	)
	for _, s := range append(e.failsib, e.nofailsib...) {
		fmt.Fprintf(&buf, "\t%s from %s\n", s.dep.constraint, s.depender)
	}
	return buf.String()
}

// constraintNotAllowedFailure indicates a candidate whose requirement does
// not admit the already-selected version of the target package.
type constraintNotAllowedFailure struct {
	goal dependency
	v    Version
}

func (e *constraintNotAllowedFailure) Error() string {
	return fmt.Sprintf(
		"could not introduce %s, as its requirement %s on %q does not allow the currently selected version %s",
		e.goal.depender, e.goal.dep.constraint, e.goal.dep.name, e.v,
	)
}

// prohibitionFailure indicates a candidate struck out by a NOT recorded
// from another selected package's formula.
type prohibitionFailure struct {
	goal atom
	pro  prohibition
}

func (e *prohibitionFailure) Error() string {
	if IsAny(e.pro.constraint) {
		return fmt.Sprintf("could not introduce %s: %s forbids selecting %q", e.goal, e.pro.depender, e.goal.name)
	}
	return fmt.Sprintf("could not introduce %s: %s forbids versions of %q matching %s",
		e.goal, e.pro.depender, e.goal.name, e.pro.constraint)
}

// selfProhibitionFailure indicates a candidate whose own NOT forbids the
// very package and version being introduced.
type selfProhibitionFailure struct {
	goal atom
	av   avoidance
}

func (e *selfProhibitionFailure) Error() string {
	if IsAny(e.av.constraint) {
		return fmt.Sprintf("could not introduce %s: its own formula forbids selecting %q", e.goal, e.av.name)
	}
	return fmt.Sprintf("could not introduce %s: its own formula forbids versions of %q matching %s",
		e.goal, e.av.name, e.av.constraint)
}

// avoidedSelectionFailure indicates a candidate whose own NOT clashes with
// a package that is already selected.
type avoidedSelectionFailure struct {
	goal     atom
	av       avoidance
	selected atom
}

func (e *avoidedSelectionFailure) Error() string {
	if IsAny(e.av.constraint) {
		return fmt.Sprintf("could not introduce %s: it forbids selecting %q, which is already selected at %s",
			e.goal, e.av.name, e.selected.version)
	}
	return fmt.Sprintf("could not introduce %s: it forbids %q matching %s, but %s is already selected",
		e.goal, e.av.name, e.av.constraint, e.selected.version)
}
