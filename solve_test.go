package fsolver

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

// dsp declares one package version for a fixture universe. id is
// "name version"; depends is raw formula text ("" for none).
func dsp(id, depends string) PackageDecl {
	var name, version string
	for i := 0; i < len(id); i++ {
		if id[i] == ' ' {
			name, version = id[:i], id[i+1:]
			break
		}
	}
	return PackageDecl{Name: name, Version: version, Depends: depends}
}

func mku(t *testing.T, decls ...PackageDecl) *Universe {
	t.Helper()
	u, err := LoadUniverse(decls)
	if err != nil {
		t.Fatalf("LoadUniverse errored: %v", err)
	}
	return u
}

// solveFixture describes one end-to-end resolution scenario: a universe,
// a root request, and either the expected selection or the package named
// by the expected conflict.
type solveFixture struct {
	n        string
	ds       []PackageDecl
	root     string
	rootC    string
	sol      map[string]string
	conflict string
	attempts int
}

var solveFixtures = []solveFixture{
	{
		n:    "no dependencies",
		ds:   []PackageDecl{dsp("A 1.0.0", "")},
		root: "A",
		sol:  map[string]string{"A": "1.0.0"},
	},
	{
		n: "newest versions win",
		ds: []PackageDecl{
			dsp("A 2.0.0", `"B"`),
			dsp("A 1.0.0", ""),
			dsp("B 2.0.0", ""),
			dsp("B 1.0.0", ""),
		},
		root: "A",
		sol:  map[string]string{"A": "2.0.0", "B": "2.0.0"},
	},
	{
		n: "shared dependency with overlapping constraints",
		ds: []PackageDecl{
			dsp("R 1.0.0", `"a" & "b"`),
			dsp("a 1.0.0", `"s" {>= "2.0.0" & < "4.0.0"}`),
			dsp("b 1.0.0", `"s" {>= "3.0.0" & < "5.0.0"}`),
			dsp("s 5.0.0", ""),
			dsp("s 4.0.0", ""),
			dsp("s 3.6.9", ""),
			dsp("s 3.0.0", ""),
			dsp("s 2.0.0", ""),
		},
		root: "R",
		sol:  map[string]string{"R": "1.0.0", "a": "1.0.0", "b": "1.0.0", "s": "3.6.9"},
	},
	{
		n: "or takes the left branch when both work",
		ds: []PackageDecl{
			dsp("A 1.0.0", `"B" | "C"`),
			dsp("B 1.0.0", ""),
			dsp("C 1.0.0", ""),
		},
		root: "A",
		sol:  map[string]string{"A": "1.0.0", "B": "1.0.0"},
	},
	{
		n: "or falls back to the right branch",
		ds: []PackageDecl{
			dsp("A 1.0.0", `"B" {>= "2.0.0"} | "C"`),
			dsp("B 1.0.0", ""),
			dsp("C 1.0.0", ""),
		},
		root:     "A",
		sol:      map[string]string{"A": "1.0.0", "C": "1.0.0"},
		attempts: 1,
	},
	{
		n: "constrained root resolves through first disjunct",
		ds: []PackageDecl{
			dsp("A 3.0.0", `"B" {>= "2.0.0"} & "C" {>= "1.5.0"} | "D" {>= "2.0.0"} & "E" {= "1.0.0"}`),
			dsp("B 2.0.0", ""),
			dsp("B 1.0.0", `"E" {= "1.0.0"}`),
			dsp("C 1.5.0", ""),
			dsp("C 1.0.0", ""),
			dsp("D 2.0.0", ""),
			dsp("E 1.0.0", ""),
		},
		root:  "A",
		rootC: `= "3.0.0"`,
		sol:   map[string]string{"A": "3.0.0", "B": "2.0.0", "C": "1.5.0"},
	},
	{
		n: "unsatisfiable bound conflicts",
		ds: []PackageDecl{
			dsp("A 1.0.0", `"B" {> "1.0.0"} & "C"`),
			dsp("B 1.0.0", `"E" {= "1.0.0"}`),
			dsp("C 1.0.0", ""),
			dsp("E 1.0.0", ""),
		},
		root:     "A",
		rootC:    `= "1.0.0"`,
		conflict: "B",
	},
	{
		n: "prohibition forces the other branch",
		ds: []PackageDecl{
			dsp("A 1.0.0", `"B" & ! "C"`),
			dsp("B 2.0.0", `"C" | "D"`),
			dsp("C 1.0.0", ""),
			dsp("D 1.0.0", ""),
		},
		root:     "A",
		sol:      map[string]string{"A": "1.0.0", "B": "2.0.0", "D": "1.0.0"},
		attempts: 1,
	},
	{
		n: "candidate avoiding a selected package is skipped",
		ds: []PackageDecl{
			dsp("A 1.0.0", `"C" & "B"`),
			dsp("B 2.0.0", `! "C"`),
			dsp("B 1.0.0", ""),
			dsp("C 1.0.0", ""),
		},
		root: "A",
		sol:  map[string]string{"A": "1.0.0", "B": "1.0.0", "C": "1.0.0"},
	},
	{
		n: "candidate forbidding itself falls back to an older version",
		ds: []PackageDecl{
			dsp("B 2.0.0", `! "B"`),
			dsp("B 1.0.0", ""),
		},
		root: "B",
		sol:  map[string]string{"B": "1.0.0"},
	},
	{
		n: "self prohibition with a version bound",
		ds: []PackageDecl{
			dsp("A 1.0.0", `"B"`),
			dsp("B 3.0.0", `! "B" {>= "2.0.0"}`),
			dsp("B 1.0.0", ""),
		},
		root: "A",
		sol:  map[string]string{"A": "1.0.0", "B": "1.0.0"},
	},
	{
		n: "dependency cycle terminates",
		ds: []PackageDecl{
			dsp("A 2.0.0", `"B" {= "2.0.0"}`),
			dsp("B 2.0.0", `"A"`),
		},
		root: "A",
		sol:  map[string]string{"A": "2.0.0", "B": "2.0.0"},
	},
	{
		n: "cycle resolved by backtracking to an older root",
		ds: []PackageDecl{
			dsp("A 2.0.0", `"B" {= "2.0.0"}`),
			dsp("A 1.0.0", `"B" {= "1.0.0"}`),
			dsp("B 1.0.0", `"A" {= "1.0.0"}`),
		},
		root:     "A",
		sol:      map[string]string{"A": "1.0.0", "B": "1.0.0"},
		attempts: 1,
	},
	{
		n: "formula referencing an unknown package conflicts",
		ds: []PackageDecl{
			dsp("A 1.0.0", `"Zed"`),
		},
		root:     "A",
		conflict: "Zed",
	},
}

func TestSolveFixtures(t *testing.T) {
	for _, fix := range solveFixtures {
		t.Run(fix.n, func(t *testing.T) {
			u := mku(t, fix.ds...)
			var rc Constraint
			if fix.rootC != "" {
				var err error
				rc, err = ParseConstraints(fix.rootC)
				if err != nil {
					t.Fatalf("bad root constraint %q: %v", fix.rootC, err)
				}
			}

			sol, err := Resolve(context.Background(), u, fix.root, rc)

			if fix.conflict != "" {
				var ce *ConflictError
				if !errors.As(err, &ce) {
					t.Fatalf("Resolve returned (%v, %v), wanted a *ConflictError", sol.Selection(), err)
				}
				if ce.Name != fix.conflict {
					t.Fatalf("conflict names %q, wanted %q\nerror was: %v", ce.Name, fix.conflict, ce)
				}
				return
			}

			if err != nil {
				t.Fatalf("Resolve errored: %v", err)
			}

			exp := make(Selection, len(fix.sol))
			for name, v := range fix.sol {
				exp[name] = mkv(t, v)
			}
			if got := sol.Selection(); !reflect.DeepEqual(got, exp) {
				t.Errorf("Resolve selected %v, wanted %v", got, exp)
			}
			if sol.Attempts() != fix.attempts {
				t.Errorf("Resolve took %d backtracking attempts, wanted %d", sol.Attempts(), fix.attempts)
			}
		})
	}
}

func TestSolveDeterministic(t *testing.T) {
	// The same universe and request must yield the same selection on
	// every run; newest-first and left-branch-first leave no room for map
	// iteration order to show through.
	fix := solveFixtures[2] // shared dependency fixture
	u := mku(t, fix.ds...)

	first, err := Resolve(context.Background(), u, fix.root, nil)
	if err != nil {
		t.Fatalf("Resolve errored: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := Resolve(context.Background(), u, fix.root, nil)
		if err != nil {
			t.Fatalf("Resolve errored on run %d: %v", i, err)
		}
		if !reflect.DeepEqual(first.Selection(), again.Selection()) {
			t.Fatalf("run %d diverged: %v vs %v", i, again.Selection(), first.Selection())
		}
	}
}

func TestSolveUnknownRoot(t *testing.T) {
	u := mku(t, dsp("Quux 1.0.0", ""))

	_, err := Resolve(context.Background(), u, "Quu", nil)
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("Resolve returned %v, wanted a *ConflictError", err)
	}
	var ue *UnknownPackageError
	if !errors.As(ce.Cause, &ue) {
		t.Fatalf("conflict cause is %T, wanted *UnknownPackageError", ce.Cause)
	}
	if ue.Name != "Quu" {
		t.Errorf("unknown package named %q, wanted %q", ue.Name, "Quu")
	}
	found := false
	for _, s := range ue.Suggestions {
		if s == "Quux" {
			found = true
		}
	}
	if !found {
		t.Errorf("suggestions %v do not include %q", ue.Suggestions, "Quux")
	}
}

func TestSolveCancellation(t *testing.T) {
	u := mku(t,
		dsp("A 1.0.0", `"B"`),
		dsp("B 1.0.0", ""),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Resolve(ctx, u, "A", nil)
	var ce *CancelledError
	if !errors.As(err, &ce) {
		t.Fatalf("Resolve returned %v, wanted a *CancelledError", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cancellation error %v does not unwrap to context.Canceled", err)
	}
}

func TestSolveSharedUniverse(t *testing.T) {
	// A universe is read-only after construction, so concurrent resolutions
	// against it must not interfere.
	fix := solveFixtures[5] // constrained root fixture
	u := mku(t, fix.ds...)
	rc, err := ParseConstraints(fix.rootC)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			sol, err := Resolve(context.Background(), u, fix.root, rc)
			if err == nil {
				if v, _ := sol.Version("B"); v.String() != "2.0.0" {
					err = errors.New("wrong version selected for B: " + v.String())
				}
			}
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Error(err)
		}
	}
}

func TestConflictPartialSelection(t *testing.T) {
	u := mku(t,
		dsp("A 1.0.0", `"B" {> "1.0.0"}`),
		dsp("B 1.0.0", ""),
	)

	_, err := Resolve(context.Background(), u, "A", nil)
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("Resolve returned %v, wanted a *ConflictError", err)
	}
	if v, ok := ce.Partial["A"]; !ok || v.String() != "1.0.0" {
		t.Errorf("partial selection %v does not pin A at 1.0.0", ce.Partial)
	}
	if ce.Cause == nil {
		t.Error("conflict carries no cause")
	}
}

func TestResolvedGraph(t *testing.T) {
	fix := solveFixtures[5] // constrained root fixture
	u := mku(t, fix.ds...)
	rc, err := ParseConstraints(fix.rootC)
	if err != nil {
		t.Fatal(err)
	}
	sol, err := Resolve(context.Background(), u, fix.root, rc)
	if err != nil {
		t.Fatalf("Resolve errored: %v", err)
	}

	graph := ResolvedGraph(u, sol)
	if got := graph["A"]; !reflect.DeepEqual(got, []string{"B", "C"}) {
		t.Errorf("edges of A = %v, wanted [B C]", got)
	}
	if got := graph["B"]; len(got) != 0 {
		t.Errorf("edges of B = %v, wanted none", got)
	}
	if _, has := graph["D"]; has {
		t.Error("graph includes D, which was never selected")
	}
}

func TestSolutionAccessors(t *testing.T) {
	u := mku(t,
		dsp("A 1.0.0", `"B"`),
		dsp("B 1.0.0", ""),
	)
	sol, err := Resolve(context.Background(), u, "A", nil)
	if err != nil {
		t.Fatalf("Resolve errored: %v", err)
	}

	if got := sol.Packages(); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("Packages() = %v, wanted [A B]", got)
	}
	if _, ok := sol.Version("C"); ok {
		t.Error("Version(C) reported a selection for an unselected package")
	}

	// The returned Selection is a copy; callers may scribble on it.
	mut := sol.Selection()
	mut["A"] = mkv(t, "9.9.9")
	if v, _ := sol.Version("A"); v.String() != "1.0.0" {
		t.Error("mutating a returned Selection leaked into the Solution")
	}
}
