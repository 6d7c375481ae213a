package fsolver

import (
	"reflect"
	"testing"
)

func mkf(t *testing.T, text string) Formula {
	t.Helper()
	f, err := ParseFormula(text)
	if err != nil {
		t.Fatalf("ParseFormula(%q) errored: %v", text, err)
	}
	return f
}

func TestParseFormulaStructure(t *testing.T) {
	table := []struct {
		in  string
		exp Formula
	}{
		{`"A"`, refFormula{name: "A"}},
		{
			`"A" {>= "1.0.0"}`,
			refFormula{name: "A", terms: []Constraint{cmpConstraint{op: opGeq, v: mkv(t, "1.0.0")}}},
		},
		{
			`"A" {>= "1.0.0" & < "2.0.0"}`,
			refFormula{name: "A", terms: []Constraint{
				cmpConstraint{op: opGeq, v: mkv(t, "1.0.0")},
				cmpConstraint{op: opLt, v: mkv(t, "2.0.0")},
			}},
		},
		{
			`"A" {! (< "2.5.0")}`,
			refFormula{name: "A", terms: []Constraint{
				notCmpConstraint{c: cmpConstraint{op: opLt, v: mkv(t, "2.5.0")}},
			}},
		},
		{
			// A bare version string is an exact bound.
			`"A" {"1.0"}`,
			refFormula{name: "A", terms: []Constraint{cmpConstraint{op: opEq, v: mkv(t, "1.0")}}},
		},
		{
			// & binds tighter than |.
			`"A" | "B" & "C"`,
			orFormula{
				l: refFormula{name: "A"},
				r: andFormula{l: refFormula{name: "B"}, r: refFormula{name: "C"}},
			},
		},
		{
			`("A" | "B") & "C"`,
			andFormula{
				l: orFormula{l: refFormula{name: "A"}, r: refFormula{name: "B"}},
				r: refFormula{name: "C"},
			},
		},
		{`! "C"`, notFormula{f: refFormula{name: "C"}}},
		{
			`! ("A" & "B")`,
			notFormula{f: andFormula{l: refFormula{name: "A"}, r: refFormula{name: "B"}}},
		},
		{
			// Double negation inside a constraint block cancels out.
			`"A" {! (! (< "2.0"))}`,
			refFormula{name: "A", terms: []Constraint{cmpConstraint{op: opLt, v: mkv(t, "2.0")}}},
		},
	}

	for _, tc := range table {
		got, err := ParseFormula(tc.in)
		if err != nil {
			t.Errorf("ParseFormula(%q) errored: %v", tc.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tc.exp) {
			t.Errorf("ParseFormula(%q) yielded %#v, wanted %#v", tc.in, got, tc.exp)
		}
	}
}

func TestParseFormulaRoundTrip(t *testing.T) {
	// Serializing a parsed formula and parsing the result must reproduce
	// the same tree.
	inputs := []string{
		`"A"`,
		`"A" {>= "1.0.0"}`,
		`"B" {>= "2.0.0"} & "C" {>= "1.5.0"} | "D" {>= "2.0.0"} & "E" {= "1.0.0"}`,
		`("A" | "B") & "C"`,
		`! "C"`,
		`! ("A" | "B")`,
		`"D" {>= "1.0.0" & ! (< "2.5.0")}`,
		`"X" {"1.0"}`,
		`! ! "A"`,
		`"A" & ! "B" & ("C" | "D" {<= "0.9"})`,
	}

	for _, in := range inputs {
		f := mkf(t, in)
		again, err := ParseFormula(f.String())
		if err != nil {
			t.Errorf("reparsing %q (from %q) errored: %v", f, in, err)
			continue
		}
		if !reflect.DeepEqual(f, again) {
			t.Errorf("round trip of %q drifted: %q yielded %#v", in, f, again)
		}
	}
}

func TestParseFormulaErrors(t *testing.T) {
	table := []struct {
		in  string
		pos int
	}{
		{``, 0},
		{`"A`, 0},            // unterminated string
		{`""`, 0},            // empty package name
		{`"A" &`, 5},         // dangling connective
		{`"A" | | "B"`, 6},   // doubled connective
		{`("A" | "B"`, 10},   // unclosed group
		{`"A" "B"`, 4},       // adjacent atoms without a connective
		{`"A" {}`, 5},        // empty constraint block
		{`"A" {~ "1.0"}`, 5}, // unknown comparator
		{`"A" {>= "2.0.0"`, 15},
		{`"A" {>= }`, 8}, // comparator without a version
	}

	for _, tc := range table {
		_, err := ParseFormula(tc.in)
		if err == nil {
			t.Errorf("ParseFormula(%q) should have errored", tc.in)
			continue
		}
		se, is := err.(*SyntaxError)
		if !is {
			t.Errorf("ParseFormula(%q) returned %T, wanted *SyntaxError", tc.in, err)
			continue
		}
		if se.Pos != tc.pos {
			t.Errorf("ParseFormula(%q) errored at offset %d, wanted %d: %v", tc.in, se.Pos, tc.pos, err)
		}
	}
}
