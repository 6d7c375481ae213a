package fsolver

// The solver does not walk Formula trees directly. Each package version's
// formula is lowered once, at universe build time, into an ordered list of
// clauses: the disjuncts of its disjunctive normal form, left-to-right. A
// clause is one way of satisfying the formula - a set of required packages
// (with the conjunction of their constraint terms) plus a set of
// prohibitions contributed by NOT.
//
// Trying clauses in order realizes "attempt the left OR branch fully before
// the right" as plain queue advancement in the backtracker.
type clause struct {
	deps   []workingDep
	avoids []avoidance
}

// workingDep is a single positive requirement: name plus the accumulated
// constraint on it within one clause.
type workingDep struct {
	name       string
	constraint Constraint
}

// avoidance is a negative literal: the named package must not be selected
// with a version matching the constraint. An Any constraint means the
// package must not appear in the final selection at all.
type avoidance struct {
	name       string
	constraint Constraint
}

// toClauses lowers f into DNF. neg tracks an odd number of enclosing NOTs
// (negation-normal-form rewriting done on the fly). A nil formula means no
// dependencies: a single empty clause.
func toClauses(f Formula, neg bool) []clause {
	if f == nil {
		return []clause{{}}
	}

	switch tf := f.(type) {
	case refFormula:
		if neg {
			return []clause{{avoids: []avoidance{{name: tf.name, constraint: tf.constraint()}}}}
		}
		return []clause{{deps: []workingDep{{name: tf.name, constraint: tf.constraint()}}}}
	case andFormula:
		if neg {
			// !(a & b) == !a | !b
			return append(toClauses(tf.l, true), toClauses(tf.r, true)...)
		}
		return crossClauses(toClauses(tf.l, false), toClauses(tf.r, false))
	case orFormula:
		if neg {
			// !(a | b) == !a & !b
			return crossClauses(toClauses(tf.l, true), toClauses(tf.r, true))
		}
		return append(toClauses(tf.l, false), toClauses(tf.r, false)...)
	case notFormula:
		return toClauses(tf.f, !neg)
	}
	panic("unreachable - closed formula type set")
}

// crossClauses computes the order-preserving cartesian product of two
// disjunct lists, merging each pair into one clause.
func crossClauses(ls, rs []clause) []clause {
	out := make([]clause, 0, len(ls)*len(rs))
	for _, l := range ls {
		for _, r := range rs {
			out = append(out, mergeClauses(l, r))
		}
	}
	return out
}

// mergeClauses conjoins two clauses. Positive requirements on the same
// package are folded together by constraint intersection.
func mergeClauses(a, b clause) clause {
	var m clause
	m.deps = append(m.deps, a.deps...)

outer:
	for _, d := range b.deps {
		for i, have := range m.deps {
			if have.name == d.name {
				m.deps[i].constraint = have.constraint.Intersect(d.constraint)
				continue outer
			}
		}
		m.deps = append(m.deps, d)
	}

	m.avoids = append(m.avoids, a.avoids...)
	m.avoids = append(m.avoids, b.avoids...)
	return m
}
