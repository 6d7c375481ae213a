package repo

import (
	"os"

	toml "github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/opamgo/fsolver"
)

// RequestName is the conventional file name for a solve request manifest.
const RequestName = "solve.toml"

// A Request is a declared resolution to run: which package to solve for,
// an optional constraint on its version, and where the repository lives.
//
//	root = "A"
//	constraint = '= "3.0.0"'
//	repository = "./packages"
type Request struct {
	Root       string
	Constraint fsolver.Constraint
	Repository string
}

type rawRequest struct {
	Root       string `toml:"root"`
	Constraint string `toml:"constraint"`
	Repository string `toml:"repository"`
}

// ReadRequest loads and validates a request manifest.
func ReadRequest(path string) (*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading request %s", path)
	}
	return parseRequest(data, path)
}

func parseRequest(data []byte, path string) (*Request, error) {
	var raw rawRequest
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "parsing request %s", path)
	}

	if raw.Root == "" {
		return nil, errors.Errorf("request %s does not name a root package", path)
	}

	req := &Request{
		Root:       raw.Root,
		Repository: raw.Repository,
	}
	if raw.Constraint != "" {
		c, err := fsolver.ParseConstraints(raw.Constraint)
		if err != nil {
			return nil, errors.Wrapf(err, "request %s has a bad root constraint", path)
		}
		req.Constraint = c
	}
	return req, nil
}
