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

// Package json is a text wire codec for serial.Node. Containers use
// plain JSON arrays/objects where JSON can express them directly;
// every other variant is tagged with a leading ".word" marker, the
// same convention the original library's JSON codec uses (".ref",
// ".deref", ".type", ".bytes", ".tuple", ".set", ".ext", ".enum").
package json

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/pragmaticcoders/goserial/serial"
)

const (
	tagRef      = ".ref"
	tagDeref    = ".deref"
	tagType     = ".type"
	tagVersion  = ".version"
	tagBytes    = ".bytes"
	tagTuple    = ".tuple"
	tagSet      = ".set"
	tagExternal = ".ext"
	tagEnum     = ".enum"
	tagDict     = ".dict"
	tagTypeInst = ".type_instance"
)

// Emit renders n as JSON text. Object and array member order always
// matches n's own order: the encoder writes bytes directly rather
// than going through encoding/json.Marshal on a map, since Go's
// encoder sorts map keys and would silently break the dict-order
// guarantee the tree carries.
func Emit(n serial.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeNode(&buf, n); err != nil {
		return nil, &serial.CodecError{Codec: "json", Err: err}
	}
	return buf.Bytes(), nil
}

// Parse decodes JSON text back into a Node.
func Parse(data []byte) (serial.Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	n, err := parseValue(dec)
	if err != nil {
		return serial.Node{}, &serial.CodecError{Codec: "json", Err: err}
	}
	return n, nil
}

func writeNode(buf *bytes.Buffer, n serial.Node) error {
	switch n.Kind {
	case serial.KindNull:
		buf.WriteString("null")
		return nil
	case serial.KindBool:
		if n.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case serial.KindInt:
		if n.Int == nil {
			buf.WriteString("0")
			return nil
		}
		buf.WriteString(n.Int.String())
		return nil
	case serial.KindFloat:
		raw, err := json.Marshal(n.Float)
		if err != nil {
			return err
		}
		buf.Write(raw)
		if !bytes.ContainsAny(raw, ".eE") {
			buf.WriteString(".0") // keep an integral float from parsing back as Int
		}
		return nil
	case serial.KindText:
		return writeJSONString(buf, n.Text)
	case serial.KindBytes:
		return writeTagged(buf, tagBytes, func() error {
			return writeJSONString(buf, base64.StdEncoding.EncodeToString(n.Bytes))
		})
	case serial.KindTuple:
		return writeTupleLike(buf, tagTuple, n.Children)
	case serial.KindSet:
		return writeTupleLike(buf, tagSet, n.Children)
	case serial.KindList:
		return writeArray(buf, n.Children)
	case serial.KindDict:
		return writeDict(buf, n.Dict)
	case serial.KindTypeRef:
		return writeTagged(buf, tagType, func() error { return writeJSONString(buf, n.TypeName) })
	case serial.KindEnumRef:
		return writeTagged(buf, tagEnum, func() error {
			return writeJSONString(buf, n.TypeName+"."+n.EnumMember)
		})
	case serial.KindExternal:
		buf.WriteByte('[')
		mustWriteString(buf, tagExternal)
		buf.WriteByte(',')
		if err := writeJSONString(buf, n.External.TypeName); err != nil {
			return err
		}
		buf.WriteByte(',')
		if err := writeJSONString(buf, n.External.StableID); err != nil {
			return err
		}
		buf.WriteByte(']')
		return nil
	case serial.KindInstance:
		return writeInstance(buf, n)
	case serial.KindReference:
		buf.WriteByte('[')
		mustWriteString(buf, tagRef)
		fmt.Fprintf(buf, ",%d,", n.RefID)
		if err := writeNode(buf, *n.Inner); err != nil {
			return err
		}
		buf.WriteByte(']')
		return nil
	case serial.KindDereference:
		fmt.Fprintf(buf, "[%s,%d]", jsonQuote(tagDeref), n.RefID)
		return nil
	default:
		return fmt.Errorf("wire/json: unknown node kind %v", n.Kind)
	}
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(raw)
	return nil
}

func jsonQuote(s string) string {
	raw, _ := json.Marshal(s)
	return string(raw)
}

func mustWriteString(buf *bytes.Buffer, s string) {
	buf.WriteString(jsonQuote(s))
}

func writeTagged(buf *bytes.Buffer, tag string, writeValue func() error) error {
	buf.WriteByte('[')
	mustWriteString(buf, tag)
	buf.WriteByte(',')
	if err := writeValue(); err != nil {
		return err
	}
	buf.WriteByte(']')
	return nil
}

func writeTupleLike(buf *bytes.Buffer, tag string, children []serial.Node) error {
	buf.WriteByte('[')
	mustWriteString(buf, tag)
	for _, c := range children {
		buf.WriteByte(',')
		if err := writeNode(buf, c); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeArray(buf *bytes.Buffer, children []serial.Node) error {
	buf.WriteByte('[')
	for i, c := range children {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeNode(buf, c); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

// dictAllTextKeys reports whether every key in entries is a Text
// node, the only shape a JSON object's string-keyed members can
// represent directly.
func dictAllTextKeys(entries []serial.DictEntry) bool {
	for _, e := range entries {
		if e.Key.Kind != serial.KindText {
			return false
		}
	}
	return true
}

func writeDict(buf *bytes.Buffer, entries []serial.DictEntry) error {
	if !dictAllTextKeys(entries) {
		return writeDictFallback(buf, entries)
	}
	buf.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONString(buf, e.Key.Text); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeNode(buf, e.Value); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// writeDictFallback handles a dict keyed by something other than
// text, a shape the original library's dicts never produce (Python
// object keys serialize through __reduce__, which this tree always
// routes through Text/Instance), but the Node model permits. Encoded
// as an array of [key, value] pairs under its own tag rather than
// silently coercing the key to a string and losing information.
func writeDictFallback(buf *bytes.Buffer, entries []serial.DictEntry) error {
	buf.WriteByte('[')
	mustWriteString(buf, tagDict)
	for _, e := range entries {
		buf.WriteByte(',')
		buf.WriteByte('[')
		if err := writeNode(buf, e.Key); err != nil {
			return err
		}
		buf.WriteByte(',')
		if err := writeNode(buf, e.Value); err != nil {
			return err
		}
		buf.WriteByte(']')
	}
	buf.WriteByte(']')
	return nil
}

func writeInstance(buf *bytes.Buffer, n serial.Node) error {
	body := serial.Dict()
	if n.Body != nil {
		body = *n.Body
	}
	if body.Kind != serial.KindDict || !dictAllTextKeys(body.Dict) {
		return writeInstanceFallback(buf, n, body)
	}
	buf.WriteByte('{')
	mustWriteString(buf, tagType)
	buf.WriteByte(':')
	if err := writeJSONString(buf, n.TypeName); err != nil {
		return err
	}
	if n.Version != 0 {
		buf.WriteByte(',')
		mustWriteString(buf, tagVersion)
		fmt.Fprintf(buf, ":%d", n.Version)
	}
	for _, e := range body.Dict {
		buf.WriteByte(',')
		if err := writeJSONString(buf, e.Key.Text); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeNode(buf, e.Value); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// writeInstanceFallback covers a restorator whose Snapshot does not
// produce a plain string-keyed dict (e.g. a list- or tuple-bodied
// snapshot). The type-merge-into-object shorthand above can't express
// that, so the body is carried as a nested, fully-tagged value.
func writeInstanceFallback(buf *bytes.Buffer, n serial.Node, body serial.Node) error {
	buf.WriteByte('[')
	mustWriteString(buf, tagTypeInst)
	buf.WriteByte(',')
	if err := writeJSONString(buf, n.TypeName); err != nil {
		return err
	}
	if n.Version != 0 {
		fmt.Fprintf(buf, ",%d", n.Version)
	} else {
		buf.WriteString(",0")
	}
	buf.WriteByte(',')
	if err := writeNode(buf, body); err != nil {
		return err
	}
	buf.WriteByte(']')
	return nil
}

func parseValue(dec *json.Decoder) (serial.Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return serial.Node{}, err
	}
	return tokenToNode(dec, tok)
}

func tokenToNode(dec *json.Decoder, tok json.Token) (serial.Node, error) {
	switch t := tok.(type) {
	case nil:
		return serial.Null(), nil
	case bool:
		return serial.Bool(t), nil
	case string:
		return serial.Text(t), nil
	case json.Number:
		return numberNode(t)
	case json.Delim:
		switch t {
		case '[':
			return parseArray(dec)
		case '{':
			return parseObject(dec)
		}
	}
	return serial.Node{}, fmt.Errorf("wire/json: unexpected token %v", tok)
}

func numberNode(n json.Number) (serial.Node, error) {
	text := n.String()
	if strings.ContainsAny(text, ".eE") {
		f, err := n.Float64()
		if err != nil {
			return serial.Node{}, err
		}
		return serial.Float(f), nil
	}
	bi, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return serial.Node{}, fmt.Errorf("wire/json: malformed integer literal %q", text)
	}
	return serial.BigInt(bi), nil
}

func parseArray(dec *json.Decoder) (serial.Node, error) {
	var children []serial.Node
	for dec.More() {
		child, err := parseValue(dec)
		if err != nil {
			return serial.Node{}, err
		}
		children = append(children, child)
	}
	if _, err := dec.Token(); err != nil { // closing ']'
		return serial.Node{}, err
	}
	return arrayToNode(children)
}

func arrayToNode(children []serial.Node) (serial.Node, error) {
	if len(children) == 0 || children[0].Kind != serial.KindText {
		return serial.List(children...), nil
	}
	switch children[0].Text {
	case tagTuple:
		return serial.Tuple(children[1:]...), nil
	case tagSet:
		return serial.Set(children[1:]...), nil
	case tagBytes:
		if len(children) != 2 || children[1].Kind != serial.KindText {
			return serial.Node{}, fmt.Errorf("wire/json: malformed %s", tagBytes)
		}
		raw, err := base64.StdEncoding.DecodeString(children[1].Text)
		if err != nil {
			return serial.Node{}, err
		}
		return serial.Bytes(raw), nil
	case tagType:
		if len(children) != 2 || children[1].Kind != serial.KindText {
			return serial.Node{}, fmt.Errorf("wire/json: malformed %s", tagType)
		}
		return serial.TypeRef(children[1].Text), nil
	case tagEnum:
		if len(children) != 2 || children[1].Kind != serial.KindText {
			return serial.Node{}, fmt.Errorf("wire/json: malformed %s", tagEnum)
		}
		idx := strings.LastIndex(children[1].Text, ".")
		if idx < 0 {
			return serial.Node{}, fmt.Errorf("wire/json: malformed %s value %q", tagEnum, children[1].Text)
		}
		return serial.EnumRef(children[1].Text[:idx], children[1].Text[idx+1:]), nil
	case tagExternal:
		if len(children) != 3 || children[1].Kind != serial.KindText || children[2].Kind != serial.KindText {
			return serial.Node{}, fmt.Errorf("wire/json: malformed %s", tagExternal)
		}
		return serial.ExternalRef(children[1].Text, children[2].Text), nil
	case tagRef:
		if len(children) != 3 {
			return serial.Node{}, fmt.Errorf("wire/json: malformed %s", tagRef)
		}
		refID, err := refIDOf(children[1])
		if err != nil {
			return serial.Node{}, err
		}
		return serial.Reference(refID, children[2]), nil
	case tagDeref:
		if len(children) != 2 {
			return serial.Node{}, fmt.Errorf("wire/json: malformed %s", tagDeref)
		}
		refID, err := refIDOf(children[1])
		if err != nil {
			return serial.Node{}, err
		}
		return serial.Dereference(refID), nil
	case tagDict:
		entries := make([]serial.DictEntry, 0, len(children)-1)
		for _, pair := range children[1:] {
			if pair.Kind != serial.KindList || len(pair.Children) != 2 {
				return serial.Node{}, fmt.Errorf("wire/json: malformed %s entry", tagDict)
			}
			entries = append(entries, serial.DictEntry{Key: pair.Children[0], Value: pair.Children[1]})
		}
		return serial.Dict(entries...), nil
	case tagTypeInst:
		if len(children) != 4 || children[1].Kind != serial.KindText {
			return serial.Node{}, fmt.Errorf("wire/json: malformed %s", tagTypeInst)
		}
		version, err := refIDOf(children[2])
		if err != nil {
			return serial.Node{}, err
		}
		return serial.Instance(children[1].Text, children[3], version), nil
	default:
		return serial.List(children...), nil
	}
}

func refIDOf(n serial.Node) (int, error) {
	if n.Kind != serial.KindInt || n.Int == nil {
		return 0, fmt.Errorf("wire/json: expected integer, got %s", n.Kind)
	}
	return int(n.Int.Int64()), nil
}

func parseObject(dec *json.Decoder) (serial.Node, error) {
	var entries []serial.DictEntry
	typeName := ""
	hasType := false
	version := 0
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return serial.Node{}, err
		}
		key, _ := keyTok.(string)
		val, err := parseValue(dec)
		if err != nil {
			return serial.Node{}, err
		}
		switch key {
		case tagType:
			hasType = true
			typeName = val.Text
		case tagVersion:
			if val.Kind == serial.KindInt && val.Int != nil {
				version = int(val.Int.Int64())
			}
		default:
			entries = append(entries, serial.DictEntry{Key: serial.Text(key), Value: val})
		}
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return serial.Node{}, err
	}
	if hasType {
		return serial.Instance(typeName, serial.Dict(entries...), version), nil
	}
	return serial.Dict(entries...), nil
}
