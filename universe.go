package fsolver

import (
	"fmt"
	"sort"
)

// packageVersion is one available version of a package, carrying the
// dependency formula it was declared with and that formula's lowered
// clauses.
type packageVersion struct {
	version Version
	depends Formula
	clauses []clause
}

// Universe is the full known set of packages: each name maps to its
// available versions, newest first, each with its own dependency formula.
// A Universe is built once and treated as read-only afterwards; it is safe
// to share across concurrent resolutions.
type Universe struct {
	pkgs  map[string][]packageVersion
	names pkgTrie
}

// PackageDecl is one (name, version, formula text) triple for universe
// construction. An empty Depends means the version has no dependencies.
type PackageDecl struct {
	Name    string
	Version string
	Depends string
}

// NewUniverse returns an empty Universe.
func NewUniverse() *Universe {
	return &Universe{
		pkgs:  make(map[string][]packageVersion),
		names: newPkgTrie(),
	}
}

// LoadUniverse builds a Universe from metadata declarations. The caller
// owns discovery of the declarations; this performs no I/O. Any malformed
// version or formula fails the whole load with an error naming the
// offending declaration.
func LoadUniverse(decls []PackageDecl) (*Universe, error) {
	u := NewUniverse()
	for _, d := range decls {
		var f Formula
		if d.Depends != "" {
			var err error
			f, err = ParseFormula(d.Depends)
			if err != nil {
				return nil, fmt.Errorf("package %s %s: %v", d.Name, d.Version, err)
			}
		}
		if err := u.AddPackage(d.Name, d.Version, f); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// AddPackage registers one version of a package with its dependency
// formula (nil for none). Duplicate versions of one package are rejected.
func (u *Universe) AddPackage(name, version string, depends Formula) error {
	if name == "" {
		return fmt.Errorf("empty package name")
	}
	v, err := ParseVersion(version)
	if err != nil {
		return err
	}

	pvs := u.pkgs[name]
	for _, pv := range pvs {
		if pv.version.eq(v) {
			return fmt.Errorf("duplicate version %s for package %s", version, name)
		}
	}

	pvs = append(pvs, packageVersion{
		version: v,
		depends: depends,
		clauses: toClauses(depends, false),
	})
	sort.SliceStable(pvs, func(i, j int) bool {
		return pvs[i].version.Compare(pvs[j].version) > 0
	})

	u.pkgs[name] = pvs
	u.names.Insert(name)
	return nil
}

// HasPackage reports whether any version of name is known.
func (u *Universe) HasPackage(name string) bool {
	_, has := u.pkgs[name]
	return has
}

// Packages returns all known package names, sorted.
func (u *Universe) Packages() []string {
	names := make([]string, 0, len(u.pkgs))
	for n := range u.pkgs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ListVersions returns the available versions of name, newest first.
func (u *Universe) ListVersions(name string) []Version {
	pvs := u.pkgs[name]
	vl := make([]Version, len(pvs))
	for i, pv := range pvs {
		vl[i] = pv.version
	}
	return vl
}

// Depends returns the dependency formula of one package version. A nil
// formula with ok == true means the version exists and has no dependencies.
func (u *Universe) Depends(name string, v Version) (Formula, bool) {
	for _, pv := range u.pkgs[name] {
		if pv.version.eq(v) {
			return pv.depends, true
		}
	}
	return nil, false
}

func (u *Universe) versionsOf(name string) []packageVersion {
	return u.pkgs[name]
}

// anyVersionMatches reports whether at least one available version of name
// is admitted by c. Exact constraint-intersection emptiness reduces to this
// scan because the universe is finite.
func (u *Universe) anyVersionMatches(name string, c Constraint) bool {
	for _, pv := range u.pkgs[name] {
		if c.Matches(pv.version) {
			return true
		}
	}
	return false
}

// suggestAlternatives names known packages that look like the unknown one.
func (u *Universe) suggestAlternatives(name string) []string {
	if s := u.names.caseFoldSuggest(name); len(s) > 0 {
		return s
	}
	return u.names.suggestions(name, 3)
}
