package pds3

import (
	"strings"

	"github.com/pdssp/pdscrawler/pkgerr"
)

// rawObject is the generic parse-tree node shared by every catalog
// grammar: a kind name (the value following "OBJECT ="), its own
// keyword/value properties, and any nested sub-objects in source order.
type rawObject struct {
	Kind     string
	Props    map[string]Value
	Order    []string
	Children []*rawObject
	Line     int
}

func newRawObject(kind string, line int) *rawObject {
	return &rawObject{Kind: kind, Props: map[string]Value{}, Line: line}
}

func (o *rawObject) setProp(key string, v Value) {
	if existing, ok := o.Props[key]; ok {
		if existing.Kind == KindList {
			existing.List = append(existing.List, v)
			o.Props[key] = existing
			return
		}
		o.Props[key] = listValue([]Value{existing, v})
		return
	}
	o.Props[key] = v
	o.Order = append(o.Order, key)
}

// childrenOf returns every direct child sub-object whose Kind matches
// one of the given names (case-insensitive, checked against aliases too
// via the caller).
func (o *rawObject) childrenOf(kinds ...string) []*rawObject {
	set := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		set[strings.ToUpper(k)] = true
	}
	var out []*rawObject
	for _, c := range o.Children {
		if set[strings.ToUpper(c.Kind)] {
			out = append(out, c)
		}
	}
	return out
}

// parsedFile is the result of a full pass over one PDS3 catalog file:
// header keywords plus every root-level OBJECT block. Most catalog kinds
// carry exactly one root object, but Personnel and Reference files hold
// one or many independent records back to back.
type parsedFile struct {
	File   string
	Header map[string]Value
	Roots  []*rawObject
}

// parseFile tokenizes src and builds the generic object tree. It does
// not validate per-kind structure -- that's the job of each variant's
// build function.
func parseFile(filename, src string) (*parsedFile, error) {
	p := &treeParser{lx: newLexer(src), file: filename}
	p.advance()
	return p.parseFile()
}

type treeParser struct {
	lx   *lexer
	file string
	cur  token
}

func (p *treeParser) advance() {
	p.cur = p.lx.next()
}

func (p *treeParser) errf(msg string) error {
	return &pkgerr.ParseError{File: p.file, Line: p.cur.line, Col: p.cur.col, Token: p.cur.text, Msg: msg}
}

func (p *treeParser) parseFile() (*parsedFile, error) {
	header := map[string]Value{}
	var roots []*rawObject

	for p.cur.kind != tokEOF {
		if p.cur.kind != tokIdent {
			return nil, p.errf("expected keyword or OBJECT")
		}
		keyword := strings.ToUpper(p.cur.text)
		if keyword == "OBJECT" {
			obj, err := p.parseObject()
			if err != nil {
				return nil, err
			}
			roots = append(roots, obj)
			continue
		}
		if keyword == "END_OBJECT" {
			return nil, p.errf("unexpected END_OBJECT outside of an OBJECT block")
		}
		if keyword == "END" {
			// A bare "END" statement (no "=") terminates the file.
			p.advance()
			if p.cur.kind == tokEquals {
				return nil, p.errf("unexpected END_OBJECT outside of an OBJECT block")
			}
			break
		}
		key, val, err := p.parseProperty()
		if err != nil {
			return nil, err
		}
		header[key] = val
	}
	if len(roots) == 0 {
		return nil, &pkgerr.ParseError{File: p.file, Msg: "no root OBJECT block found"}
	}
	return &parsedFile{File: p.file, Header: header, Roots: roots}, nil
}

// parseObject parses "OBJECT = KIND" ... "END_OBJECT = KIND", recursing
// into nested OBJECT blocks and collecting properties in between.
func (p *treeParser) parseObject() (*rawObject, error) {
	startLine := p.cur.line
	p.advance() // consume "OBJECT"
	if p.cur.kind != tokEquals {
		return nil, p.errf("expected '=' after OBJECT")
	}
	p.advance()
	if p.cur.kind != tokIdent {
		return nil, p.errf("expected object kind name after OBJECT =")
	}
	kind := p.cur.text
	p.advance()

	obj := newRawObject(kind, startLine)

	for {
		if p.cur.kind == tokEOF {
			return nil, &pkgerr.ParseError{File: p.file, Line: startLine, Msg: "unclosed OBJECT block for " + kind}
		}
		if p.cur.kind != tokIdent {
			return nil, p.errf("expected keyword, OBJECT, or END_OBJECT")
		}
		upper := strings.ToUpper(p.cur.text)
		if upper == "OBJECT" {
			child, err := p.parseObject()
			if err != nil {
				return nil, err
			}
			obj.Children = append(obj.Children, child)
			continue
		}
		if upper == "END_OBJECT" {
			p.advance()
			if p.cur.kind == tokEquals {
				p.advance()
				if p.cur.kind == tokIdent {
					if !strings.EqualFold(p.cur.text, kind) {
						return nil, p.errf("END_OBJECT = " + p.cur.text + " does not match OBJECT = " + kind)
					}
					p.advance()
				}
			}
			return obj, nil
		}
		key, val, err := p.parseProperty()
		if err != nil {
			return nil, err
		}
		obj.setProp(key, val)
	}
}

// parseProperty parses one "KEYWORD = VALUE" pair, where VALUE is a
// quoted string, a date, a number, a bareword, or a parenthesized /
// braced multi-value list.
func (p *treeParser) parseProperty() (string, Value, error) {
	key := strings.ToUpper(p.cur.text)
	p.advance()
	if p.cur.kind != tokEquals {
		return "", Value{}, p.errf("expected '=' after keyword " + key)
	}
	p.advance()
	val, err := p.parseValue()
	if err != nil {
		return "", Value{}, err
	}
	return key, val, nil
}

func (p *treeParser) parseValue() (Value, error) {
	switch p.cur.kind {
	case tokLParen:
		return p.parseList(tokLParen, tokRParen)
	case tokLBrace:
		return p.parseList(tokLBrace, tokRBrace)
	case tokString:
		// A quoted value is always a literal string -- it never gets
		// reinterpreted as a date or number the way a bareword does.
		v := stringValue(p.cur.text)
		p.advance()
		return v, nil
	case tokIdent:
		v := scalarValue(p.cur.text)
		p.advance()
		return v, nil
	default:
		return Value{}, p.errf("expected a value")
	}
}

func (p *treeParser) parseList(open, close tokenKind) (Value, error) {
	p.advance() // consume opening bracket
	var items []Value
	for p.cur.kind != close {
		if p.cur.kind == tokEOF {
			return Value{}, p.errf("unclosed list")
		}
		if p.cur.kind == tokComma {
			p.advance()
			continue
		}
		v, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		items = append(items, v)
	}
	p.advance() // consume closing bracket
	return listValue(items), nil
}

// scalarValue classifies a raw token text as an explicit-unknown
// sentinel, a date, a number, or a plain string, in that priority order.
func scalarValue(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if isUnknownToken(strings.ToUpper(trimmed)) {
		return Unknown
	}
	if looksLikeDate(trimmed) {
		if t, ok := parseDate(trimmed); ok {
			return dateValue(t)
		}
	}
	if n, ok := parseNumber(trimmed); ok {
		return numberValue(n)
	}
	return stringValue(raw)
}
