package fsolver

// checkAtom determines whether introducing a candidate atom keeps every
// requirement in the current partial solution satisfiable. A nil return
// means the atom may be selected.
func (s *solver) checkAtom(a atom) error {
	if a.name == "" {
		// This can't happen unless there's a logical bug somewhere, in which
		// case blowing up is preferable.
		panic("canary - checking empty atom")
	}

	if err := s.checkAtomAllowable(a); err != nil {
		return err
	}
	if err := s.checkAtomProhibited(a); err != nil {
		return err
	}

	cl := s.clauseOf(a)
	for _, dep := range cl.deps {
		if err := s.checkDepExists(a, dep); err != nil {
			return err
		}
		if err := s.checkDepsConstraintsAllowable(a, dep); err != nil {
			return err
		}
		if err := s.checkDepsDisallowsSelected(a, dep); err != nil {
			return err
		}
	}

	for _, av := range cl.avoids {
		if err := s.checkAvoidsSelected(a, av); err != nil {
			return err
		}
	}

	return nil
}

// checkAtomAllowable ensures the atom's version is admitted by the
// intersection of constraints from everything currently depending on it.
func (s *solver) checkAtomAllowable(a atom) error {
	constraint := s.sel.getConstraint(a.name)
	if constraint.Matches(a.version) {
		return nil
	}

	deps := s.sel.getDependenciesOn(a.name)
	var failparent []dependency
	for _, dep := range deps {
		if !dep.dep.constraint.Matches(a.version) {
			s.fail(dep.depender.name)
			failparent = append(failparent, dep)
		}
	}

	err := &versionNotAllowedFailure{
		goal:       a,
		failparent: failparent,
		c:          constraint,
	}
	s.traceInfo(err)
	return err
}

// checkAtomProhibited ensures no NOT recorded by a selected package forbids
// this atom.
func (s *solver) checkAtomProhibited(a atom) error {
	for _, pro := range s.sel.getProhibitionsOn(a.name) {
		if pro.constraint.Matches(a.version) {
			s.fail(pro.depender.name)
			err := &prohibitionFailure{goal: a, pro: pro}
			s.traceInfo(err)
			return err
		}
	}
	return nil
}

// checkDepExists rejects atoms that require a package entirely absent from
// the universe. Absence is a satisfiability failure of this atom, never a
// crash.
func (s *solver) checkDepExists(a atom, dep workingDep) error {
	if s.u.HasPackage(dep.name) {
		return nil
	}

	err := &missingPackageFailure{
		goal: dependency{depender: a, dep: dep},
		unknown: &UnknownPackageError{
			Name:        dep.name,
			Suggestions: s.u.suggestAlternatives(dep.name),
		},
	}
	s.traceInfo(err)
	return err
}

// checkDepsConstraintsAllowable checks that a requirement the atom
// introduces leaves at least one admissible version for the target package
// once intersected with the constraints already in force.
func (s *solver) checkDepsConstraintsAllowable(a atom, dep workingDep) error {
	combined := s.sel.getConstraint(dep.name).Intersect(dep.constraint)
	if s.u.anyVersionMatches(dep.name, combined) {
		return nil
	}

	// No admissible versions - visit all siblings and identify the
	// disagreement(s).
	var failsib []dependency
	var nofailsib []dependency
	for _, sibling := range s.sel.getDependenciesOn(dep.name) {
		if !s.u.anyVersionMatches(dep.name, sibling.dep.constraint.Intersect(dep.constraint)) {
			s.fail(sibling.depender.name)
			failsib = append(failsib, sibling)
		} else {
			nofailsib = append(nofailsib, sibling)
		}
	}

	err := &disjointConstraintFailure{
		goal:      dependency{depender: a, dep: dep},
		failsib:   failsib,
		nofailsib: nofailsib,
	}
	s.traceInfo(err)
	return err
}

// checkDepsDisallowsSelected ensures a requirement the atom introduces is
// compatible with the version of the target package already selected, if
// any.
func (s *solver) checkDepsDisallowsSelected(a atom, dep workingDep) error {
	selected, exists := s.sel.selected(dep.name)
	if !exists || dep.constraint.Matches(selected.version) {
		return nil
	}

	s.fail(dep.name)
	err := &constraintNotAllowedFailure{
		goal: dependency{depender: a, dep: dep},
		v:    selected.version,
	}
	s.traceInfo(err)
	return err
}

// checkAvoidsSelected ensures a NOT in the atom's clause doesn't clash with
// a package that's already selected, or with the atom itself - a candidate
// whose own formula forbids its package at this version can never be part
// of a solution, and must be rejected here so the queue advances rather
// than surfacing the violation after the search completes.
func (s *solver) checkAvoidsSelected(a atom, av avoidance) error {
	if av.name == a.name && av.constraint.Matches(a.version) {
		err := &selfProhibitionFailure{goal: a, av: av}
		s.traceInfo(err)
		return err
	}

	selected, exists := s.sel.selected(av.name)
	if !exists || !av.constraint.Matches(selected.version) {
		return nil
	}

	s.fail(av.name)
	err := &avoidedSelectionFailure{goal: a, av: av, selected: selected}
	s.traceInfo(err)
	return err
}
