package fsolver

import (
	"fmt"
	"sort"
	"strconv"
)

// Version is an immutable, totally-ordered package version. Ordering is by
// dot-separated segments, with additional segment boundaries wherever a run
// of digits meets a run of non-digits ("1.0rc2" has segments 1, 0, "rc", 2).
type Version struct {
	raw  string
	segs []segment
}

// A segment is either numeric or textual. At any given position, a numeric
// segment orders above a textual one, and a textual one above a missing one
// (the sentinel used to pad the shorter of two versions).
type segment struct {
	num     uint64
	str     string
	numeric bool
}

const (
	rankMissing = iota
	rankText
	rankNumeric
)

func (s segment) rank() int {
	if s.numeric {
		return rankNumeric
	}
	return rankText
}

func (s segment) String() string {
	if s.numeric {
		return strconv.FormatUint(s.num, 10)
	}
	return s.str
}

// ParseVersion parses text into a Version. The empty string, and any string
// with an empty dot-separated component, is malformed.
func ParseVersion(text string) (Version, error) {
	if text == "" {
		return Version{}, &MalformedVersionError{Input: text, Prob: "empty version string"}
	}

	var segs []segment
	start := 0
	flush := func(end int) error {
		if start == end {
			return &MalformedVersionError{Input: text, Prob: "empty version segment"}
		}
		segs = append(segs, splitRuns(text[start:end])...)
		return nil
	}

	for i := 0; i < len(text); i++ {
		if text[i] == '.' {
			if err := flush(i); err != nil {
				return Version{}, err
			}
			start = i + 1
		}
	}
	if err := flush(len(text)); err != nil {
		return Version{}, err
	}

	return Version{raw: text, segs: segs}, nil
}

// splitRuns breaks a dot-free chunk at each digit/non-digit boundary.
func splitRuns(chunk string) []segment {
	var segs []segment
	start := 0
	for i := 1; i <= len(chunk); i++ {
		if i == len(chunk) || isDigit(chunk[i]) != isDigit(chunk[start]) {
			run := chunk[start:i]
			if isDigit(run[0]) {
				n, err := strconv.ParseUint(run, 10, 64)
				if err != nil {
					// Digit run too long for uint64; order it textually rather
					// than failing the whole parse.
					segs = append(segs, segment{str: run})
				} else {
					segs = append(segs, segment{num: n, numeric: true})
				}
			} else {
				segs = append(segs, segment{str: run})
			}
			start = i
		}
	}
	return segs
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func (v Version) String() string {
	return v.raw
}

// Compare returns -1, 0 or 1 as v orders before, the same as, or after o.
// Comparison is segment-wise; when one version runs out of segments it is
// padded with the minimal sentinel, so "1.0" orders before "1.0.0".
func (v Version) Compare(o Version) int {
	max := len(v.segs)
	if len(o.segs) > max {
		max = len(o.segs)
	}

	for i := 0; i < max; i++ {
		ar, br := rankMissing, rankMissing
		var a, b segment
		if i < len(v.segs) {
			a = v.segs[i]
			ar = a.rank()
		}
		if i < len(o.segs) {
			b = o.segs[i]
			br = b.rank()
		}

		if ar != br {
			if ar < br {
				return -1
			}
			return 1
		}

		switch ar {
		case rankNumeric:
			if a.num != b.num {
				if a.num < b.num {
					return -1
				}
				return 1
			}
		case rankText:
			if a.str != b.str {
				if a.str < b.str {
					return -1
				}
				return 1
			}
		}
	}
	return 0
}

func (v Version) eq(o Version) bool {
	return v.Compare(o) == 0
}

// sortForUpgrade orders versions newest-first, which is the order the solver
// walks candidates in.
func sortForUpgrade(vl []Version) {
	sort.SliceStable(vl, func(i, j int) bool {
		return vl[i].Compare(vl[j]) > 0
	})
}

// MalformedVersionError is returned by ParseVersion for input that cannot be
// segmented. It is fatal only to the single parse call that produced it.
type MalformedVersionError struct {
	Input string
	Prob  string
}

func (e *MalformedVersionError) Error() string {
	return fmt.Sprintf("malformed version %q: %s", e.Input, e.Prob)
}
