// Package repo discovers package metadata on disk and builds the in-memory
// universe the solver consumes. A repository is a directory tree containing
// opam.json files, each declaring one package version and its dependency
// formula as text.
package repo

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"github.com/opamgo/fsolver"
)

// MetadataName is the file name every package version's metadata lives
// under.
const MetadataName = "opam.json"

type metadataFile struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Depends string `json:"depends,omitempty"`
}

// Problem records a metadata file that could not be loaded. A bad file
// fails only itself; the rest of the repository still loads.
type Problem struct {
	Path string
	Err  error
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %v", p.Path, p.Err)
}

// Load walks dir for metadata files and builds a Universe from the valid
// ones. Per-file parse failures come back as Problems; the error return is
// reserved for walk-level failures (unreadable root and the like).
func Load(dir string) (*fsolver.Universe, []Problem, error) {
	decls, problems, err := Scan(dir)
	if err != nil {
		return nil, nil, err
	}

	u, buildProblems := build(decls)
	return u, append(problems, buildProblems...), nil
}

// Scan walks dir and decodes every metadata file into declarations, without
// parsing versions or formulas.
func Scan(dir string) ([]fsolver.PackageDecl, []Problem, error) {
	var decls []fsolver.PackageDecl
	var problems []Problem

	err := godirwalk.Walk(dir, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() || de.Name() != MetadataName {
				return nil
			}

			data, err := os.ReadFile(path)
			if err != nil {
				problems = append(problems, Problem{Path: path, Err: err})
				return nil
			}

			var mf metadataFile
			if err := json.Unmarshal(data, &mf); err != nil {
				problems = append(problems, Problem{Path: path, Err: errors.Wrap(err, "decoding metadata")})
				return nil
			}
			if mf.Name == "" || mf.Version == "" {
				problems = append(problems, Problem{Path: path, Err: errors.New("metadata missing name or version")})
				return nil
			}

			decls = append(decls, fsolver.PackageDecl{
				Name:    mf.Name,
				Version: mf.Version,
				Depends: mf.Depends,
			})
			return nil
		},
		Unsorted: false,
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "walking repository %s", dir)
	}

	sort.SliceStable(decls, func(i, j int) bool {
		if decls[i].Name != decls[j].Name {
			return decls[i].Name < decls[j].Name
		}
		return decls[i].Version < decls[j].Version
	})
	return decls, problems, nil
}

// LoadWithCache is Load backed by a persistent metadata cache: a fresh
// cache entry for dir skips the walk entirely, and a successful walk
// refreshes the entry.
func LoadWithCache(dir string, c *Cache, maxAge time.Duration) (*fsolver.Universe, []Problem, error) {
	if c != nil {
		if decls, ok, err := c.LoadRepo(dir, maxAge); err == nil && ok {
			u, problems := build(decls)
			return u, problems, nil
		}
	}

	decls, problems, err := Scan(dir)
	if err != nil {
		return nil, nil, err
	}
	if c != nil {
		if err := c.StoreRepo(dir, decls, time.Now()); err != nil {
			problems = append(problems, Problem{Path: dir, Err: errors.Wrap(err, "refreshing metadata cache")})
		}
	}

	u, buildProblems := build(decls)
	return u, append(problems, buildProblems...), nil
}

// build turns declarations into a Universe, isolating bad declarations as
// Problems instead of failing the batch.
func build(decls []fsolver.PackageDecl) (*fsolver.Universe, []Problem) {
	u := fsolver.NewUniverse()
	var problems []Problem

	for _, d := range decls {
		var f fsolver.Formula
		if d.Depends != "" {
			var err error
			f, err = fsolver.ParseFormula(d.Depends)
			if err != nil {
				problems = append(problems, Problem{
					Path: fmt.Sprintf("%s %s", d.Name, d.Version),
					Err:  errors.Wrap(err, "parsing depends formula"),
				})
				continue
			}
		}
		if err := u.AddPackage(d.Name, d.Version, f); err != nil {
			problems = append(problems, Problem{
				Path: fmt.Sprintf("%s %s", d.Name, d.Version),
				Err:  err,
			})
		}
	}
	return u, problems
}
