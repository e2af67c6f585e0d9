// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Package sexp is a tagged-list wire codec for serial.Node: every
// composite value is a parenthesized list whose first element names
// the variant ("tuple", "list", "set", "dictionary", "reference",
// "dereference", "unicode", "boolean", "class", "enum", "external",
// "bytes", "None", "instance"), mirroring the original library's sexp tag
// vocabulary. Only Int and Float are ever written as bare, untagged
// literals; every other atom is tagged so the grammar needs no
// lookahead beyond one token to disambiguate.
package sexp

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/pragmaticcoders/goserial/serial"
)

const (
	tagNone       = "None"
	tagBoolean    = "boolean"
	tagUnicode    = "unicode"
	tagBytes      = "bytes"
	tagTuple      = "tuple"
	tagList       = "list"
	tagSet        = "set"
	tagDictionary = "dictionary"
	tagClass      = "class"
	tagEnum       = "enum"
	tagExternal   = "external"
	tagReference  = "reference"
	tagDereference = "dereference"
	tagInstance   = "instance"
)

// Emit renders n as s-expression text.
func Emit(n serial.Node) ([]byte, error) {
	var b strings.Builder
	if err := writeNode(&b, n); err != nil {
		return nil, &serial.CodecError{Codec: "sexp", Err: err}
	}
	return []byte(b.String()), nil
}

// Parse decodes s-expression text back into a Node.
func Parse(data []byte) (serial.Node, error) {
	toks, err := tokenize(string(data))
	if err != nil {
		return serial.Node{}, &serial.CodecError{Codec: "sexp", Err: err}
	}
	p := &parser{toks: toks}
	e, err := p.parseElem()
	if err != nil {
		return serial.Node{}, &serial.CodecError{Codec: "sexp", Err: err}
	}
	n, err := nodeFromElem(e)
	if err != nil {
		return serial.Node{}, &serial.CodecError{Codec: "sexp", Err: err}
	}
	return n, nil
}

func writeNode(b *strings.Builder, n serial.Node) error {
	switch n.Kind {
	case serial.KindNull:
		fmt.Fprintf(b, "(%s)", tagNone)
		return nil
	case serial.KindBool:
		if n.Bool {
			fmt.Fprintf(b, "(%s true)", tagBoolean)
		} else {
			fmt.Fprintf(b, "(%s false)", tagBoolean)
		}
		return nil
	case serial.KindInt:
		if n.Int == nil {
			b.WriteString("0")
			return nil
		}
		b.WriteString(n.Int.String())
		return nil
	case serial.KindFloat:
		s := strconv.FormatFloat(n.Float, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0" // keep an integral float from parsing back as Int
		}
		b.WriteString(s)
		return nil
	case serial.KindText:
		fmt.Fprintf(b, "(%s %s)", tagUnicode, quoteString(n.Text))
		return nil
	case serial.KindBytes:
		fmt.Fprintf(b, "(%s %s)", tagBytes, quoteString(string(n.Bytes)))
		return nil
	case serial.KindTuple:
		return writeList(b, tagTuple, n.Children)
	case serial.KindList:
		return writeList(b, tagList, n.Children)
	case serial.KindSet:
		return writeList(b, tagSet, n.Children)
	case serial.KindDict:
		return writeDict(b, n.Dict)
	case serial.KindTypeRef:
		fmt.Fprintf(b, "(%s %s)", tagClass, quoteString(n.TypeName))
		return nil
	case serial.KindEnumRef:
		fmt.Fprintf(b, "(%s %s %s)", tagEnum, quoteString(n.TypeName), quoteString(n.EnumMember))
		return nil
	case serial.KindExternal:
		fmt.Fprintf(b, "(%s (%s %s %s))", tagExternal, tagTuple,
			quoteString(n.External.TypeName), quoteString(n.External.StableID))
		return nil
	case serial.KindInstance:
		return writeInstance(b, n)
	case serial.KindReference:
		fmt.Fprintf(b, "(%s %d ", tagReference, n.RefID)
		if err := writeNode(b, *n.Inner); err != nil {
			return err
		}
		b.WriteByte(')')
		return nil
	case serial.KindDereference:
		fmt.Fprintf(b, "(%s %d)", tagDereference, n.RefID)
		return nil
	default:
		return fmt.Errorf("wire/sexp: unknown node kind %v", n.Kind)
	}
}

func writeList(b *strings.Builder, tag string, children []serial.Node) error {
	b.WriteByte('(')
	b.WriteString(tag)
	for _, c := range children {
		b.WriteByte(' ')
		if err := writeNode(b, c); err != nil {
			return err
		}
	}
	b.WriteByte(')')
	return nil
}

func writeDict(b *strings.Builder, entries []serial.DictEntry) error {
	b.WriteByte('(')
	b.WriteString(tagDictionary)
	for _, e := range entries {
		b.WriteString(" (")
		if err := writeNode(b, e.Key); err != nil {
			return err
		}
		b.WriteByte(' ')
		if err := writeNode(b, e.Value); err != nil {
			return err
		}
		b.WriteByte(')')
	}
	b.WriteByte(')')
	return nil
}

func writeInstance(b *strings.Builder, n serial.Node) error {
	body := serial.Dict()
	if n.Body != nil {
		body = *n.Body
	}
	fmt.Fprintf(b, "(%s %s ", tagInstance, quoteString(n.TypeName))
	if err := writeNode(b, body); err != nil {
		return err
	}
	fmt.Fprintf(b, " %d)", n.Version)
	return nil
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// --- tokenizer ---

type tokenKind byte

const (
	tokLParen tokenKind = iota
	tokRParen
	tokString
	tokSymbol
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(src string) ([]token, error) {
	var toks []token
	i, n := 0, len(src)
	for i < n {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen})
			i++
		case c == '"':
			start := i
			i++
			var b strings.Builder
			closed := false
			for i < n {
				ch := src[i]
				if ch == '\\' && i+1 < n {
					next := src[i+1]
					if next == '"' || next == '\\' {
						b.WriteByte(next)
						i += 2
						continue
					}
				}
				if ch == '"' {
					i++
					closed = true
					break
				}
				b.WriteByte(ch)
				i++
			}
			if !closed {
				return nil, fmt.Errorf("wire/sexp: unterminated string starting at byte %d", start)
			}
			toks = append(toks, token{kind: tokString, text: b.String()})
		default:
			start := i
			for i < n && !isBreak(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokSymbol, text: src[start:i]})
		}
	}
	return toks, nil
}

func isBreak(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '(' || c == ')'
}

// --- parser: tokens -> generic elem tree ---

type elemKind byte

const (
	elemList elemKind = iota
	elemString
	elemSymbol
)

type elem struct {
	kind elemKind
	text string
	list []elem
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) parseElem() (elem, error) {
	if p.pos >= len(p.toks) {
		return elem{}, fmt.Errorf("wire/sexp: unexpected end of input")
	}
	tok := p.toks[p.pos]
	switch tok.kind {
	case tokString:
		p.pos++
		return elem{kind: elemString, text: tok.text}, nil
	case tokSymbol:
		p.pos++
		return elem{kind: elemSymbol, text: tok.text}, nil
	case tokLParen:
		p.pos++
		var items []elem
		for {
			if p.pos >= len(p.toks) {
				return elem{}, fmt.Errorf("wire/sexp: unterminated list")
			}
			if p.toks[p.pos].kind == tokRParen {
				p.pos++
				break
			}
			child, err := p.parseElem()
			if err != nil {
				return elem{}, err
			}
			items = append(items, child)
		}
		return elem{kind: elemList, list: items}, nil
	default:
		return elem{}, fmt.Errorf("wire/sexp: unexpected ')'")
	}
}

// --- elem tree -> Node ---

func nodeFromElem(e elem) (serial.Node, error) {
	switch e.kind {
	case elemString:
		return serial.Node{}, fmt.Errorf("wire/sexp: unexpected bare string %q", e.text)
	case elemSymbol:
		return numberElem(e.text)
	case elemList:
		return listElemToNode(e.list)
	default:
		return serial.Node{}, fmt.Errorf("wire/sexp: unrecognized element")
	}
}

func numberElem(text string) (serial.Node, error) {
	if strings.ContainsAny(text, ".eE") {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return serial.Node{}, fmt.Errorf("wire/sexp: malformed number %q", text)
		}
		return serial.Float(f), nil
	}
	bi, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return serial.Node{}, fmt.Errorf("wire/sexp: malformed number %q", text)
	}
	return serial.BigInt(bi), nil
}

func listElemToNode(items []elem) (serial.Node, error) {
	if len(items) == 0 {
		return serial.Node{}, fmt.Errorf("wire/sexp: empty list has no tag")
	}
	head := items[0]
	if head.kind != elemSymbol {
		return serial.Node{}, fmt.Errorf("wire/sexp: list head must be a tag symbol")
	}
	rest := items[1:]
	switch head.text {
	case tagNone:
		return serial.Null(), nil
	case tagBoolean:
		if len(rest) != 1 {
			return serial.Node{}, fmt.Errorf("wire/sexp: malformed %s", tagBoolean)
		}
		return serial.Bool(rest[0].text == "true"), nil
	case tagUnicode:
		if len(rest) != 1 || rest[0].kind != elemString {
			return serial.Node{}, fmt.Errorf("wire/sexp: malformed %s", tagUnicode)
		}
		return serial.Text(rest[0].text), nil
	case tagBytes:
		if len(rest) != 1 || rest[0].kind != elemString {
			return serial.Node{}, fmt.Errorf("wire/sexp: malformed %s", tagBytes)
		}
		return serial.Bytes([]byte(rest[0].text)), nil
	case tagTuple:
		children, err := nodesFrom(rest)
		return serial.Tuple(children...), err
	case tagList:
		children, err := nodesFrom(rest)
		return serial.List(children...), err
	case tagSet:
		children, err := nodesFrom(rest)
		return serial.Set(children...), err
	case tagDictionary:
		return dictFrom(rest)
	case tagClass:
		if len(rest) != 1 || rest[0].kind != elemString {
			return serial.Node{}, fmt.Errorf("wire/sexp: malformed %s", tagClass)
		}
		return serial.TypeRef(rest[0].text), nil
	case tagEnum:
		if len(rest) != 2 || rest[0].kind != elemString || rest[1].kind != elemString {
			return serial.Node{}, fmt.Errorf("wire/sexp: malformed %s", tagEnum)
		}
		return serial.EnumRef(rest[0].text, rest[1].text), nil
	case tagExternal:
		if len(rest) != 1 || rest[0].kind != elemList {
			return serial.Node{}, fmt.Errorf("wire/sexp: malformed %s", tagExternal)
		}
		pair := rest[0].list
		if len(pair) != 3 || pair[0].kind != elemSymbol || pair[0].text != tagTuple ||
			pair[1].kind != elemString || pair[2].kind != elemString {
			return serial.Node{}, fmt.Errorf("wire/sexp: malformed %s payload", tagExternal)
		}
		return serial.ExternalRef(pair[1].text, pair[2].text), nil
	case tagReference:
		if len(rest) != 2 {
			return serial.Node{}, fmt.Errorf("wire/sexp: malformed %s", tagReference)
		}
		refID, err := refIDOf(rest[0])
		if err != nil {
			return serial.Node{}, err
		}
		inner, err := nodeFromElem(rest[1])
		if err != nil {
			return serial.Node{}, err
		}
		return serial.Reference(refID, inner), nil
	case tagDereference:
		if len(rest) != 1 {
			return serial.Node{}, fmt.Errorf("wire/sexp: malformed %s", tagDereference)
		}
		refID, err := refIDOf(rest[0])
		if err != nil {
			return serial.Node{}, err
		}
		return serial.Dereference(refID), nil
	case tagInstance:
		if len(rest) != 3 || rest[0].kind != elemString {
			return serial.Node{}, fmt.Errorf("wire/sexp: malformed %s", tagInstance)
		}
		body, err := nodeFromElem(rest[1])
		if err != nil {
			return serial.Node{}, err
		}
		version, err := refIDOf(rest[2])
		if err != nil {
			return serial.Node{}, err
		}
		return serial.Instance(rest[0].text, body, version), nil
	default:
		return serial.Node{}, fmt.Errorf("wire/sexp: unrecognized tag %q", head.text)
	}
}

func refIDOf(e elem) (int, error) {
	if e.kind != elemSymbol {
		return 0, fmt.Errorf("wire/sexp: expected integer token")
	}
	v, err := strconv.Atoi(e.text)
	if err != nil {
		return 0, fmt.Errorf("wire/sexp: expected integer, got %q", e.text)
	}
	return v, nil
}

func nodesFrom(items []elem) ([]serial.Node, error) {
	out := make([]serial.Node, 0, len(items))
	for _, it := range items {
		n, err := nodeFromElem(it)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func dictFrom(items []elem) (serial.Node, error) {
	entries := make([]serial.DictEntry, 0, len(items))
	for _, it := range items {
		if it.kind != elemList || len(it.list) != 2 {
			return serial.Node{}, fmt.Errorf("wire/sexp: malformed %s entry", tagDictionary)
		}
		key, err := nodeFromElem(it.list[0])
		if err != nil {
			return serial.Node{}, err
		}
		value, err := nodeFromElem(it.list[1])
		if err != nil {
			return serial.Node{}, err
		}
		entries = append(entries, serial.DictEntry{Key: key, Value: value})
	}
	return serial.Dict(entries...), nil
}
