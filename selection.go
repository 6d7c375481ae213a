package fsolver

import "fmt"

// atom is one concrete candidate: a package at a version, satisfying its
// formula through the clause at the given index.
type atom struct {
	name    string
	version Version
	clause  int
}

var nilAtom = atom{}

func (a atom) String() string {
	return fmt.Sprintf("%s@%s", a.name, a.version)
}

// dependency pairs a positive requirement with the selected atom that
// introduced it.
type dependency struct {
	depender atom
	dep      workingDep
}

// prohibition pairs a negative literal with the selected atom that
// introduced it.
type prohibition struct {
	depender   atom
	name       string
	constraint Constraint
}

// selection is the solver's partial solution: the stack of chosen atoms
// plus, per package name, the requirements and prohibitions contributed by
// the atoms currently selected.
type selection struct {
	atoms  []atom
	deps   map[string][]dependency
	avoids map[string][]prohibition
}

func newSelection() *selection {
	return &selection{
		deps:   make(map[string][]dependency),
		avoids: make(map[string][]prohibition),
	}
}

func (s *selection) getDependenciesOn(name string) []dependency {
	return s.deps[name]
}

func (s *selection) getProhibitionsOn(name string) []prohibition {
	return s.avoids[name]
}

// getConstraint returns the intersection of all constraints from currently
// selected packages that depend on name.
func (s *selection) getConstraint(name string) Constraint {
	deps := s.deps[name]
	if len(deps) == 0 {
		return any
	}

	c := deps[0].dep.constraint
	for _, d := range deps[1:] {
		c = c.Intersect(d.dep.constraint)
	}
	return c
}

func (s *selection) selected(name string) (atom, bool) {
	for _, a := range s.atoms {
		if a.name == name {
			return a, true
		}
	}
	return nilAtom, false
}

// snapshot copies the current choices into a caller-owned Selection.
func (s *selection) snapshot() Selection {
	sel := make(Selection, len(s.atoms))
	for _, a := range s.atoms {
		sel[a.name] = a.version
	}
	return sel
}

// unselected is the priority queue of packages awaiting a version choice,
// ordered by discovery: the root first, then packages in the order a
// dependency on them was first introduced.
type unselected struct {
	sl  []string
	cmp func(i, j int) bool
}

func (u unselected) Len() int {
	return len(u.sl)
}

func (u unselected) Less(i, j int) bool {
	return u.cmp(i, j)
}

func (u unselected) Swap(i, j int) {
	u.sl[i], u.sl[j] = u.sl[j], u.sl[i]
}

func (u *unselected) Push(x interface{}) {
	u.sl = append(u.sl, x.(string))
}

func (u *unselected) Pop() (v interface{}) {
	v, u.sl = u.sl[len(u.sl)-1], u.sl[:len(u.sl)-1]
	return v
}

// remove takes a specific package name out of the queue, wherever it is.
func (u *unselected) remove(name string) {
	for k, v := range u.sl {
		if v == name {
			if k == len(u.sl)-1 {
				u.sl = u.sl[:len(u.sl)-1]
			} else {
				u.sl = append(u.sl[:k], u.sl[k+1:]...)
			}
			return
		}
	}
}
