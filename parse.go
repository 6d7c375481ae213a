package fsolver

import (
	"fmt"
)

// SyntaxError reports formula text that violates the grammar. Pos is the
// byte offset of the offending token; Expected describes what the parser
// would have accepted there.
type SyntaxError struct {
	Pos      int
	Expected string
	got      string
}

func (e *SyntaxError) Error() string {
	if e.got == "" {
		return fmt.Sprintf("syntax error at offset %d: expected %s", e.Pos, e.Expected)
	}
	return fmt.Sprintf("syntax error at offset %d: expected %s, found %s", e.Pos, e.Expected, e.got)
}

type tokenKind uint8

const (
	tkEOF tokenKind = iota
	tkString
	tkOp
	tkAmp
	tkPipe
	tkBang
	tkLParen
	tkRParen
	tkLBrace
	tkRBrace
)

type token struct {
	kind tokenKind
	val  string
	pos  int
}

func (t token) describe() string {
	switch t.kind {
	case tkEOF:
		return "end of input"
	case tkString:
		return fmt.Sprintf("%q", t.val)
	default:
		return fmt.Sprintf("%q", t.val)
	}
}

func lexFormula(text string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '"':
			start := i
			i++
			for i < len(text) && text[i] != '"' {
				i++
			}
			if i == len(text) {
				return nil, &SyntaxError{Pos: start, Expected: `closing '"'`, got: "end of input"}
			}
			toks = append(toks, token{kind: tkString, val: text[start+1 : i], pos: start})
			i++
		case c == '&':
			toks = append(toks, token{kind: tkAmp, val: "&", pos: i})
			i++
		case c == '|':
			toks = append(toks, token{kind: tkPipe, val: "|", pos: i})
			i++
		case c == '(':
			toks = append(toks, token{kind: tkLParen, val: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tkRParen, val: ")", pos: i})
			i++
		case c == '{':
			toks = append(toks, token{kind: tkLBrace, val: "{", pos: i})
			i++
		case c == '}':
			toks = append(toks, token{kind: tkRBrace, val: "}", pos: i})
			i++
		case c == '!':
			// "!=" is a comparator; a lone "!" is negation.
			if i+1 < len(text) && text[i+1] == '=' {
				toks = append(toks, token{kind: tkOp, val: "!=", pos: i})
				i += 2
			} else {
				toks = append(toks, token{kind: tkBang, val: "!", pos: i})
				i++
			}
		case c == '<' || c == '>':
			if i+1 < len(text) && text[i+1] == '=' {
				toks = append(toks, token{kind: tkOp, val: text[i : i+2], pos: i})
				i += 2
			} else {
				toks = append(toks, token{kind: tkOp, val: text[i : i+1], pos: i})
				i++
			}
		case c == '=':
			toks = append(toks, token{kind: tkOp, val: "=", pos: i})
			i++
		default:
			return nil, &SyntaxError{Pos: i, Expected: "formula token", got: fmt.Sprintf("%q", string(c))}
		}
	}
	toks = append(toks, token{kind: tkEOF, pos: len(text)})
	return toks, nil
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token {
	return p.toks[p.i]
}

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tkEOF {
		p.i++
	}
	return t
}

func (p *parser) errExpected(what string) error {
	t := p.peek()
	return &SyntaxError{Pos: t.pos, Expected: what, got: t.describe()}
}

// ParseFormula converts raw dependency formula text into a Formula tree.
// Parsing is pure: unknown package names are syntactically valid, and no
// universe lookups happen here.
func ParseFormula(text string) (Formula, error) {
	toks, err := lexFormula(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tkEOF {
		return nil, &SyntaxError{Pos: 0, Expected: "non-empty formula"}
	}

	f, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tkEOF {
		return nil, p.errExpected(`"&", "|" or end of input`)
	}
	return f, nil
}

// ParseConstraints parses a bare constraint list ("&"-joined, each an
// optionally negated comparator plus version string) without surrounding
// braces. It serves root constraints supplied alongside a resolve request.
func ParseConstraints(text string) (Constraint, error) {
	toks, err := lexFormula(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	terms, err := p.parseConstraintList()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tkEOF {
		return nil, p.errExpected(`"&" or end of input`)
	}
	c := terms[0]
	for _, t := range terms[1:] {
		c = c.Intersect(t)
	}
	return c, nil
}

// formula := term (("&" | "|") term)*, with "&" binding tighter than "|".
func (p *parser) parseOr() (Formula, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tkPipe {
		p.next()
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = orFormula{l: l, r: r}
	}
	return l, nil
}

func (p *parser) parseAnd() (Formula, error) {
	l, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tkAmp {
		p.next()
		r, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		l = andFormula{l: l, r: r}
	}
	return l, nil
}

// term := "!" term | "(" formula ")" | atom
func (p *parser) parseTerm() (Formula, error) {
	switch p.peek().kind {
	case tkBang:
		p.next()
		inner, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return notFormula{f: inner}, nil
	case tkLParen:
		p.next()
		f, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tkRParen {
			return nil, p.errExpected(`closing ')'`)
		}
		p.next()
		return f, nil
	case tkString:
		return p.parseAtom()
	default:
		return nil, p.errExpected(`package name, "(" or "!"`)
	}
}

// atom := STRING constraints?
func (p *parser) parseAtom() (Formula, error) {
	nameTok := p.next()
	if nameTok.val == "" {
		return nil, &SyntaxError{Pos: nameTok.pos, Expected: "non-empty package name"}
	}

	ref := refFormula{name: nameTok.val}
	if p.peek().kind != tkLBrace {
		return ref, nil
	}
	p.next()

	terms, err := p.parseConstraintList()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tkRBrace {
		return nil, p.errExpected(`"&" or closing '}'`)
	}
	p.next()

	ref.terms = terms
	return ref, nil
}

// constraints := constraint ("&" constraint)*
func (p *parser) parseConstraintList() ([]Constraint, error) {
	var terms []Constraint
	for {
		c, err := p.parseConstraintTerm()
		if err != nil {
			return nil, err
		}
		terms = append(terms, c)
		if p.peek().kind != tkAmp {
			return terms, nil
		}
		p.next()
	}
}

// constraint := "!"? COMPARATOR STRING | STRING, with parentheses allowed
// around a nested term (the fixtures write ! (< "2.5.0")).
func (p *parser) parseConstraintTerm() (Constraint, error) {
	switch p.peek().kind {
	case tkBang:
		p.next()
		inner, err := p.parseConstraintTerm()
		if err != nil {
			return nil, err
		}
		switch c := inner.(type) {
		case cmpConstraint:
			return notCmpConstraint{c: c}, nil
		case notCmpConstraint:
			return c.c, nil
		default:
			return nil, p.errExpected("comparator after negation")
		}
	case tkLParen:
		p.next()
		c, err := p.parseConstraintTerm()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tkRParen {
			return nil, p.errExpected(`closing ')'`)
		}
		p.next()
		return c, nil
	case tkOp:
		opTok := p.next()
		verTok := p.peek()
		if verTok.kind != tkString {
			return nil, p.errExpected("version string")
		}
		p.next()
		v, err := ParseVersion(verTok.val)
		if err != nil {
			return nil, err
		}
		op, _ := parseRelOp(opTok.val)
		return cmpConstraint{op: op, v: v}, nil
	case tkString:
		// A bare quoted string inside a constraint block is accepted as an
		// exact-version bound.
		verTok := p.next()
		v, err := ParseVersion(verTok.val)
		if err != nil {
			return nil, err
		}
		return cmpConstraint{op: opEq, v: v}, nil
	default:
		return nil, p.errExpected("comparator or version string")
	}
}
