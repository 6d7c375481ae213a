package fsolver

import (
	"reflect"
	"testing"
)

func mkv(t *testing.T, s string) Version {
	t.Helper()
	v, err := ParseVersion(s)
	if err != nil {
		t.Fatalf("ParseVersion(%q) errored: %v", s, err)
	}
	return v
}

func TestParseVersionMalformed(t *testing.T) {
	bad := []string{"", ".", "1.", ".1", "1..0"}
	for _, in := range bad {
		_, err := ParseVersion(in)
		if err == nil {
			t.Errorf("ParseVersion(%q) should have errored", in)
			continue
		}
		if _, is := err.(*MalformedVersionError); !is {
			t.Errorf("ParseVersion(%q) returned %T, wanted *MalformedVersionError", in, err)
		}
	}
}

func TestVersionCompare(t *testing.T) {
	table := []struct {
		l, r string
		exp  int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", -1},
		{"1.0.1", "1.0.0", 1},
		{"2.0.0", "10.0.0", -1},
		{"1.0", "1.0.0", -1},   // shorter pads with the minimal sentinel
		{"1.0.a", "1.0", 1},    // textual beats missing
		{"1.0.0", "1.0.a", 1},  // numeric beats textual
		{"1.0a", "1.0", 1},     // run boundary creates a trailing segment
		{"1.0rc1", "1.0rc2", -1},
		{"1.alpha", "1.beta", -1},
		{"3.17.2", "3.9.9", 1},
	}

	for _, tc := range table {
		got := mkv(t, tc.l).Compare(mkv(t, tc.r))
		if got != tc.exp {
			t.Errorf("Compare(%q, %q) = %d, wanted %d", tc.l, tc.r, got, tc.exp)
		}
		// Antisymmetry comes for free with the table.
		if rev := mkv(t, tc.r).Compare(mkv(t, tc.l)); rev != -tc.exp {
			t.Errorf("Compare(%q, %q) = %d, wanted %d", tc.r, tc.l, rev, -tc.exp)
		}
	}
}

func TestVersionTotalOrder(t *testing.T) {
	// Every pair must order exactly one way, and ordering must be
	// transitive across the whole set.
	raw := []string{"0.1", "1.0", "1.0.0", "1.0.a", "1.0a", "1.0rc1", "1.0rc2", "2.0.0", "2.5.0", "3.0.0", "10.0"}
	vs := make([]Version, len(raw))
	for i, s := range raw {
		vs[i] = mkv(t, s)
	}

	for i, a := range vs {
		for j, b := range vs {
			ab, ba := a.Compare(b), b.Compare(a)
			if ab != -ba {
				t.Errorf("Compare(%q, %q) = %d but Compare(%q, %q) = %d", raw[i], raw[j], ab, raw[j], raw[i], ba)
			}
			if i == j && ab != 0 {
				t.Errorf("Compare(%q, %q) = %d, wanted 0", raw[i], raw[j], ab)
			}
			for k, c := range vs {
				if a.Compare(b) < 0 && b.Compare(c) < 0 && a.Compare(c) >= 0 {
					t.Errorf("transitivity violated: %q < %q < %q but Compare(%q, %q) = %d",
						raw[i], raw[j], raw[k], raw[i], raw[k], a.Compare(c))
				}
			}
		}
	}
}

func TestSortForUpgrade(t *testing.T) {
	vs := []Version{
		mkv(t, "1.0.0"),
		mkv(t, "3.0.0"),
		mkv(t, "2.0.0"),
		mkv(t, "2.5.0"),
	}
	sortForUpgrade(vs)

	var got []string
	for _, v := range vs {
		got = append(got, v.String())
	}
	exp := []string{"3.0.0", "2.5.0", "2.0.0", "1.0.0"}
	if !reflect.DeepEqual(got, exp) {
		t.Errorf("sortForUpgrade yielded %v, wanted %v", got, exp)
	}
}
