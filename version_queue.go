package fsolver

import (
	"fmt"
	"strings"
)

// candidate is one untried possibility for a package: a version paired with
// the index of the formula clause to satisfy it through. Candidates are
// ordered newest version first; within a version, clauses run left to
// right, so the left branch of an OR is always exhausted before the right.
type candidate struct {
	version Version
	clause  int
}

func (c candidate) String() string {
	if c.clause == 0 {
		return c.version.String()
	}
	return fmt.Sprintf("%s#%d", c.version, c.clause)
}

type failedCandidate struct {
	c candidate
	f error
}

// versionQueue walks the remaining candidates for one package. Unlike a
// remote-backed queue there is no lazy loading: the universe is in memory,
// so the full candidate list is built at creation.
type versionQueue struct {
	name   string
	pi     []candidate
	fails  []failedCandidate
	failed bool
}

// newVersionQueue enumerates the candidates for name admitted by the
// constraint accumulated from every selected package that references it.
func newVersionQueue(name string, u *Universe, accumulated Constraint) *versionQueue {
	vq := &versionQueue{name: name}
	for _, pv := range u.versionsOf(name) {
		if !accumulated.Matches(pv.version) {
			continue
		}
		for i := range pv.clauses {
			vq.pi = append(vq.pi, candidate{version: pv.version, clause: i})
		}
	}
	return vq
}

func (vq *versionQueue) current() (candidate, bool) {
	if len(vq.pi) > 0 {
		return vq.pi[0], true
	}
	return candidate{}, false
}

// advance moves the queue to the next candidate, recording the failure that
// eliminated the current one.
func (vq *versionQueue) advance(fail error) {
	if len(vq.pi) == 0 {
		return
	}

	vq.fails = append(vq.fails, failedCandidate{c: vq.pi[0], f: fail})
	vq.pi = vq.pi[1:]

	// The next candidate hasn't failed yet, even though the queue as a whole
	// was marked during backtracking.
	vq.failed = false
}

func (vq *versionQueue) isExhausted() bool {
	return len(vq.pi) == 0
}

func (vq *versionQueue) String() string {
	var vs []string
	for _, c := range vq.pi {
		vs = append(vs, c.String())
	}
	return fmt.Sprintf("[%s]", strings.Join(vs, ", "))
}
