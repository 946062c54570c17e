package packaging

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidMarker is returned when an environment marker cannot be parsed.
var ErrInvalidMarker = errors.New("invalid marker")

// markerVariables maps accepted marker variable spellings (including the
// legacy dotted forms) to their canonical names.
var markerVariables = map[string]string{
	"implementation_version":         "implementation_version",
	"platform_python_implementation": "platform_python_implementation",
	"implementation_name":            "implementation_name",
	"python_full_version":            "python_full_version",
	"platform_release":               "platform_release",
	"platform_version":               "platform_version",
	"platform_machine":               "platform_machine",
	"platform_system":                "platform_system",
	"python_version":                 "python_version",
	"sys_platform":                   "sys_platform",
	"os_name":                        "os_name",
	"extra":                          "extra",
	"os.name":                        "os_name",
	"sys.platform":                   "sys_platform",
	"platform.version":               "platform_version",
	"platform.machine":               "platform_machine",
	"platform.python_implementation": "platform_python_implementation",
	"python_implementation":          "platform_python_implementation",
}

// MarkerValue is one operand of a marker comparison: either a variable
// (e.g. python_version) or a quoted literal.
type MarkerValue struct {
	Variable bool
	Value    string
}

func (v MarkerValue) String() string {
	if v.Variable {
		return v.Value
	}
	return `"` + v.Value + `"`
}

// MarkerComparison is a single "lhs op rhs" clause.
type MarkerComparison struct {
	Lhs MarkerValue
	Op  string
	Rhs MarkerValue
}

func (c MarkerComparison) String() string {
	return c.Lhs.String() + " " + c.Op + " " + c.Rhs.String()
}

// markerNode is a comparison, a boolean operator ("and"/"or") or a
// parenthesized group. Groups keep the flat left-to-right shape of the
// source; no precedence is applied since markers are only inspected, never
// evaluated, by this package.
type markerNode interface{ isMarkerNode() }

type markerGroup []markerNode

type markerBoolOp string

func (MarkerComparison) isMarkerNode() {}
func (markerGroup) isMarkerNode()      {}
func (markerBoolOp) isMarkerNode()     {}

// Marker is a parsed PEP 508 environment marker.
type Marker struct {
	root markerGroup
}

// ParseMarker parses an environment marker expression such as
// `python_version >= "3.8" and extra == "test"`.
func ParseMarker(s string) (*Marker, error) {
	p := &markerParser{src: s}
	p.next()
	root, err := p.parseGroup()
	if err != nil {
		return nil, err
	}
	if p.err != nil {
		return nil, p.err
	}
	if p.tok.kind != tokEOF {
		return nil, p.errorf("unexpected %q", p.tok.text)
	}
	return &Marker{root: root}, nil
}

// Comparisons returns every comparison in the marker in source order,
// descending into parenthesized groups.
func (m *Marker) Comparisons() []MarkerComparison {
	var out []MarkerComparison
	var walk func(markerGroup)
	walk = func(g markerGroup) {
		for _, n := range g {
			switch n := n.(type) {
			case MarkerComparison:
				out = append(out, n)
			case markerGroup:
				walk(n)
			}
		}
	}
	walk(m.root)
	return out
}

// String renders the marker in canonical form: double-quoted literals,
// single spaces, parentheses only around nested groups.
func (m *Marker) String() string {
	return formatMarker(m.root, true)
}

func formatMarker(n markerNode, first bool) string {
	switch n := n.(type) {
	case markerGroup:
		if len(n) == 1 {
			if _, isOp := n[0].(markerBoolOp); !isOp {
				return formatMarker(n[0], true)
			}
		}
		parts := make([]string, 0, len(n))
		for _, item := range n {
			parts = append(parts, formatMarker(item, false))
		}
		if first {
			return strings.Join(parts, " ")
		}
		return "(" + strings.Join(parts, " ") + ")"
	case MarkerComparison:
		return n.String()
	case markerBoolOp:
		return string(n)
	}
	return ""
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLParen
	tokRParen
	tokString
	tokVariable
	tokOp
	tokBoolOp
)

type token struct {
	kind tokenKind
	text string
}

type markerParser struct {
	src string
	pos int
	tok token
	err error
}

func (p *markerParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s in %q", ErrInvalidMarker, fmt.Sprintf(format, args...), p.src)
}

// next advances to the following token. Lexing errors are recorded in p.err
// and surface as an EOF token.
func (p *markerParser) next() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
	if p.pos >= len(p.src) {
		p.tok = token{kind: tokEOF}
		return
	}
	rest := p.src[p.pos:]
	switch c := rest[0]; {
	case c == '(':
		p.pos++
		p.tok = token{tokLParen, "("}
	case c == ')':
		p.pos++
		p.tok = token{tokRParen, ")"}
	case c == '\'' || c == '"':
		end := strings.IndexByte(rest[1:], c)
		if end < 0 {
			p.err = p.errorf("unterminated string")
			p.tok = token{kind: tokEOF}
			return
		}
		p.tok = token{tokString, rest[1 : end+1]}
		p.pos += end + 2
	default:
		for _, op := range []string{"===", "==", "!=", "~=", "<=", ">=", "<", ">"} {
			if strings.HasPrefix(rest, op) {
				p.pos += len(op)
				p.tok = token{tokOp, op}
				return
			}
		}
		word := readWord(rest)
		if word == "" {
			p.err = p.errorf("unexpected character %q", rest[0])
			p.tok = token{kind: tokEOF}
			return
		}
		p.pos += len(word)
		switch word {
		case "and", "or":
			p.tok = token{tokBoolOp, word}
		case "in":
			p.tok = token{tokOp, "in"}
		case "not":
			save := p.pos
			p.next()
			if p.tok.kind == tokOp && p.tok.text == "in" {
				p.tok = token{tokOp, "not in"}
				return
			}
			p.pos = save
			p.err = p.errorf("expected 'in' after 'not'")
			p.tok = token{kind: tokEOF}
		default:
			canonical, ok := markerVariables[word]
			if !ok {
				p.err = p.errorf("unknown variable %q", word)
				p.tok = token{kind: tokEOF}
				return
			}
			p.tok = token{tokVariable, canonical}
		}
	}
}

func readWord(s string) string {
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '_' || c == '.' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') {
			i++
			continue
		}
		break
	}
	return s[:i]
}

func (p *markerParser) parseGroup() (markerGroup, error) {
	first, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	group := markerGroup{first}
	for p.tok.kind == tokBoolOp {
		op := markerBoolOp(p.tok.text)
		p.next()
		right, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		group = append(group, op, right)
	}
	return group, nil
}

func (p *markerParser) parseAtom() (markerNode, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.tok.kind == tokLParen {
		p.next()
		group, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, p.errorf("expected ')'")
		}
		p.next()
		return group, nil
	}

	lhs, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokOp {
		if p.err != nil {
			return nil, p.err
		}
		return nil, p.errorf("expected comparison operator after %s", lhs)
	}
	op := p.tok.text
	p.next()
	rhs, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return MarkerComparison{Lhs: lhs, Op: op, Rhs: rhs}, nil
}

func (p *markerParser) parseValue() (MarkerValue, error) {
	if p.err != nil {
		return MarkerValue{}, p.err
	}
	var v MarkerValue
	switch p.tok.kind {
	case tokVariable:
		v = MarkerValue{Variable: true, Value: p.tok.text}
	case tokString:
		v = MarkerValue{Value: p.tok.text}
	default:
		return v, p.errorf("expected variable or quoted string")
	}
	p.next()
	return v, nil
}
