package fsolver

import (
	"container/heap"
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// SolveParameters holds the caller's inputs for one resolution run.
type SolveParameters struct {
	// Root names the package to resolve. It must exist in the universe.
	Root string
	// RootConstraint optionally restricts which versions of Root may be
	// chosen. Nil means any.
	RootConstraint Constraint
	// Logger receives solve tracing. Nil silences it.
	Logger *logrus.Logger
}

// A Solver runs a single backtracking resolution. It is single-use: the
// search state is consumed by Solve.
type Solver interface {
	Solve(context.Context) (Solution, error)
}

// NewSolver prepares a Solver for the given universe and parameters. The
// universe is only read; several solvers may share one concurrently.
func NewSolver(u *Universe, params SolveParameters) (Solver, error) {
	if params.Root == "" {
		return nil, fmt.Errorf("no root package provided")
	}

	l := params.Logger
	if l == nil {
		l = logrus.New()
		l.SetOutput(io.Discard)
	}

	rc := params.RootConstraint
	if rc == nil {
		rc = any
	}

	return &solver{
		u:     u,
		l:     l,
		root:  params.Root,
		rootC: rc,
	}, nil
}

// Resolve is the convenience entry point: it prepares a solver and runs it.
// On success the returned Solution assigns exactly one version to every
// transitively required package; on failure the error is a *ConflictError
// (or a *CancelledError if ctx fired).
func Resolve(ctx context.Context, u *Universe, root string, rootConstraint Constraint) (Solution, error) {
	s, err := NewSolver(u, SolveParameters{Root: root, RootConstraint: rootConstraint})
	if err != nil {
		return Solution{}, err
	}
	return s.Solve(ctx)
}

// solver is a backtracking-style constraint solver over package versions
// and formula clauses.
type solver struct {
	u     *Universe
	l     *logrus.Logger
	root  string
	rootC Constraint

	sel      *selection
	unsel    *unselected
	vqs      []*versionQueue
	attempts int

	// discovery assigns each package the order in which a dependency on it
	// first appeared; the unselected queue resolves packages in that order,
	// root first.
	discovery map[string]int
	seq       int

	// deepest remembers the most advanced point of failure for the Conflict
	// report.
	deepest struct {
		depth   int
		name    string
		partial Selection
		cause   error
	}
}

func (s *solver) Solve(ctx context.Context) (Solution, error) {
	if !s.u.HasPackage(s.root) {
		return Solution{}, &ConflictError{
			Name:    s.root,
			Partial: Selection{},
			Cause: &UnknownPackageError{
				Name:        s.root,
				Suggestions: s.u.suggestAlternatives(s.root),
			},
		}
	}

	s.sel = newSelection()
	s.unsel = &unselected{cmp: s.unselectedComparator}
	s.discovery = map[string]int{s.root: 0}
	s.seq = 1

	// The root request is seeded as a dependency from a synthetic atom so
	// that constraint accumulation and failure reporting treat it like any
	// other depender.
	s.sel.deps[s.root] = []dependency{{
		depender: atom{name: "(request)"},
		dep:      workingDep{name: s.root, constraint: s.rootC},
	}}
	heap.Init(s.unsel)
	heap.Push(s.unsel, s.root)

	return s.solve(ctx)
}

func (s *solver) solve(ctx context.Context) (Solution, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Solution{}, &CancelledError{Err: err}
		}

		name, has := s.nextUnselected()
		if !has {
			// No more packages to select - we're done.
			break
		}

		if s.l.Level >= logrus.DebugLevel {
			s.l.WithFields(logrus.Fields{
				"attempts": s.attempts,
				"name":     name,
				"selcount": len(s.sel.atoms),
			}).Debug("Beginning step in solve loop")
		}

		q, err := s.createVersionQueue(name)
		if err != nil {
			// Failure somewhere down the line; try backtracking.
			s.noteFailure(name, err)
			ok, cerr := s.backtrack(ctx)
			if cerr != nil {
				return Solution{}, cerr
			}
			if ok {
				continue
			}
			return Solution{}, s.conflict()
		}

		cur, ok := q.current()
		if !ok {
			panic("canary - queue is empty, but flow indicates success")
		}

		if s.l.Level >= logrus.InfoLevel {
			s.l.WithFields(logrus.Fields{
				"name":    q.name,
				"version": cur.version,
				"clause":  cur.clause,
			}).Info("Accepted candidate")
		}

		s.selectAtom(atom{name: q.name, version: cur.version, clause: cur.clause})
		s.vqs = append(s.vqs, q)
	}

	sel := s.sel.snapshot()
	if err := s.verify(sel); err != nil {
		// Should be unreachable given the per-step checks, but a wrong
		// solution must never escape as success.
		return Solution{}, &ConflictError{Name: s.root, Partial: sel, Cause: err}
	}
	return Solution{sel: sel, att: s.attempts}, nil
}

// createVersionQueue builds the candidate queue for a package and walks it
// to the first satisfiable candidate.
func (s *solver) createVersionQueue(name string) (*versionQueue, error) {
	if !s.u.HasPackage(name) {
		if deps := s.sel.getDependenciesOn(name); len(deps) > 0 {
			s.fail(deps[0].depender.name)
		}
		err := &UnknownPackageError{Name: name, Suggestions: s.u.suggestAlternatives(name)}
		if s.l.Level >= logrus.WarnLevel {
			s.l.WithField("name", name).Warn("Package does not exist in the universe")
		}
		return nil, err
	}

	q := newVersionQueue(name, s.u, s.sel.getConstraint(name))

	if s.l.Level >= logrus.DebugLevel {
		s.l.WithFields(logrus.Fields{
			"name":  name,
			"queue": q,
		}).Debug("Created versionQueue")
	}

	return q, s.findValidVersion(q)
}

// findValidVersion walks through a versionQueue until it finds a candidate
// that satisfies the constraints held in the current state of the solver.
func (s *solver) findValidVersion(q *versionQueue) error {
	faillen := len(q.fails)

	for {
		cur, ok := q.current()
		if !ok {
			break
		}

		err := s.checkAtom(atom{name: q.name, version: cur.version, clause: cur.clause})
		if err == nil {
			if s.l.Level >= logrus.DebugLevel {
				s.l.WithFields(logrus.Fields{
					"name":    q.name,
					"version": cur.version,
					"clause":  cur.clause,
				}).Debug("Found acceptable candidate, returning out")
			}
			return nil
		}

		q.advance(err)
		if q.isExhausted() {
			if s.l.Level >= logrus.InfoLevel {
				s.l.WithField("name", q.name).Info("Candidate queue was completely exhausted, marking package as failed")
			}
			break
		}
	}

	if deps := s.sel.getDependenciesOn(q.name); len(deps) > 0 {
		s.fail(deps[0].depender.name)
	}

	// Compound error of all the new failures encountered during this
	// attempt to find a valid candidate.
	return &noVersionError{
		name:  q.name,
		fails: q.fails[faillen:],
	}
}

// backtrack works backwards from the current failed state to find the next
// choice point with an untried candidate. The bool result reports whether
// one was found; the error is non-nil only on cancellation.
func (s *solver) backtrack(ctx context.Context) (bool, error) {
	if len(s.vqs) == 0 {
		// Nothing to backtrack to.
		return false, nil
	}

	if s.l.Level >= logrus.DebugLevel {
		s.l.WithFields(logrus.Fields{
			"selcount":   len(s.sel.atoms),
			"queuecount": len(s.vqs),
			"attempts":   s.attempts,
		}).Debug("Beginning backtracking")
	}

	for {
		if err := ctx.Err(); err != nil {
			return false, &CancelledError{Err: err}
		}

		for {
			if len(s.vqs) == 0 {
				// No more queues, nowhere further to backtrack.
				return false, nil
			}
			if s.vqs[len(s.vqs)-1].failed {
				break
			}

			if s.l.Level >= logrus.InfoLevel {
				s.l.WithFields(logrus.Fields{
					"name":      s.vqs[len(s.vqs)-1].name,
					"wasfailed": false,
				}).Info("Backtracking popped off package")
			}
			// GC-friendly pop of the pointer elem.
			s.vqs, s.vqs[len(s.vqs)-1] = s.vqs[:len(s.vqs)-1], nil
			s.unselectLast()
		}

		// Grab the last versionQueue off the list of queues.
		q := s.vqs[len(s.vqs)-1]

		if s.l.Level >= logrus.DebugLevel {
			s.l.WithField("name", q.name).Debug("Trying failed queue with next candidate")
		}

		s.unselectLast()

		// Advance the queue past the current candidate, which we know is bad.
		q.advance(errRetracted)
		if !q.isExhausted() {
			// Search for another acceptable candidate in this queue.
			if s.findValidVersion(q) == nil {
				cur, _ := q.current()

				if s.l.Level >= logrus.InfoLevel {
					s.l.WithFields(logrus.Fields{
						"name":    q.name,
						"version": cur.version,
						"clause":  cur.clause,
					}).Info("Backtracking found valid candidate, attempting next solution")
				}

				// Found one! Put it back on the selected queue and stop
				// backtracking.
				s.selectAtom(atom{name: q.name, version: cur.version, clause: cur.clause})
				break
			}
		}

		if s.l.Level >= logrus.InfoLevel {
			s.l.WithFields(logrus.Fields{
				"name":      q.name,
				"wasfailed": true,
			}).Info("Backtracking popped off package")
		}
		s.vqs, s.vqs[len(s.vqs)-1] = s.vqs[:len(s.vqs)-1], nil
	}

	// Backtracking was successful if the loop ended before running out of
	// queues.
	if len(s.vqs) == 0 {
		return false, nil
	}
	s.attempts++
	return true, nil
}

func (s *solver) nextUnselected() (string, bool) {
	if len(s.unsel.sl) > 0 {
		return s.unsel.sl[0], true
	}
	return "", false
}

func (s *solver) unselectedComparator(i, j int) bool {
	iname, jname := s.unsel.sl[i], s.unsel.sl[j]
	if iname == jname {
		return false
	}
	return s.discovery[iname] < s.discovery[jname]
}

// fail marks the queue of the given package as failed so backtracking will
// revisit it.
func (s *solver) fail(name string) {
	// Never mark the synthetic root request.
	if name == "(request)" {
		return
	}

	for _, vq := range s.vqs {
		if vq.name == name {
			// Just the first (oldest) one; the backtracker necessarily
			// traverses through any later ones.
			vq.failed = true
			return
		}
	}
}

// clauseOf returns the lowered clause the atom satisfies its formula
// through.
func (s *solver) clauseOf(a atom) clause {
	for _, pv := range s.u.versionsOf(a.name) {
		if pv.version.eq(a.version) {
			return pv.clauses[a.clause]
		}
	}
	panic(fmt.Sprintf("canary - no clauses for %s", a))
}

// selectAtom commits a candidate: the package leaves the unselected queue,
// and the requirements and prohibitions of its clause come into force.
func (s *solver) selectAtom(a atom) {
	s.unsel.remove(a.name)
	s.sel.atoms = append(s.sel.atoms, a)

	cl := s.clauseOf(a)
	for _, dep := range cl.deps {
		siblings := append(s.sel.getDependenciesOn(dep.name), dependency{depender: a, dep: dep})
		s.sel.deps[dep.name] = siblings

		// Add to the unselected queue if this is the first dependency on it -
		// otherwise it's already in there, or has been selected.
		if len(siblings) == 1 {
			if _, exists := s.discovery[dep.name]; !exists {
				s.discovery[dep.name] = s.seq
				s.seq++
			}
			if _, already := s.sel.selected(dep.name); !already {
				heap.Push(s.unsel, dep.name)
			}
		}
	}

	for _, av := range cl.avoids {
		s.sel.avoids[av.name] = append(s.sel.avoids[av.name], prohibition{
			depender:   a,
			name:       av.name,
			constraint: av.constraint,
		})
	}
}

// unselectLast reverses the most recent selectAtom.
func (s *solver) unselectLast() {
	var a atom
	a, s.sel.atoms = s.sel.atoms[len(s.sel.atoms)-1], s.sel.atoms[:len(s.sel.atoms)-1]
	heap.Push(s.unsel, a.name)

	cl := s.clauseOf(a)
	for _, dep := range cl.deps {
		siblings := s.sel.getDependenciesOn(dep.name)
		siblings = siblings[:len(siblings)-1]
		s.sel.deps[dep.name] = siblings

		// If no siblings remain, the package has no reason to be resolved
		// anymore.
		if len(siblings) == 0 {
			if s.l.Level >= logrus.DebugLevel {
				s.l.WithFields(logrus.Fields{
					"name":  dep.name,
					"pname": a.name,
					"pver":  a.version,
				}).Debug("Removing package from unselected queue; last parent atom was unselected")
			}
			s.unsel.remove(dep.name)
		}
	}

	for _, av := range cl.avoids {
		pros := s.sel.avoids[av.name]
		s.sel.avoids[av.name] = pros[:len(pros)-1]
	}
}

// noteFailure records a failure for the Conflict report, keeping the one
// that occurred with the most packages committed.
func (s *solver) noteFailure(name string, err error) {
	depth := len(s.sel.atoms)
	if depth >= s.deepest.depth {
		s.deepest.depth = depth
		s.deepest.name = name
		s.deepest.partial = s.sel.snapshot()
		s.deepest.cause = err
	}
}

func (s *solver) conflict() *ConflictError {
	return &ConflictError{
		Name:    s.deepest.name,
		Partial: s.deepest.partial,
		Cause:   s.deepest.cause,
	}
}

// verify replays every chosen package's formula against the complete
// Selection. This is the post-selection consistency check that backs the
// prohibition handling: NOT can never cause a package to be chosen, so
// violations must be caught against the final state.
func (s *solver) verify(sel Selection) error {
	for _, a := range s.sel.atoms {
		f, ok := s.u.Depends(a.name, a.version)
		if !ok {
			return fmt.Errorf("selected atom %s vanished from universe", a)
		}
		if f != nil && !f.Evaluate(sel) {
			return fmt.Errorf("formula of %s does not hold against the final selection", a)
		}
	}
	return nil
}

// traceInfo logs a satisfiability failure at debug level.
func (s *solver) traceInfo(err error) {
	if s.l.Level >= logrus.DebugLevel {
		s.l.WithField("reason", err.Error()).Debug("Satisfiability check failed")
	}
}
