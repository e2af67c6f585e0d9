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

// Package msgpack is a binary wire codec for serial.Node built on
// github.com/vmihailenco/msgpack/v5. Scalars use msgpack's own native
// types directly (nil, bool, int, float, string, bin); every
// composite reuses the sibling wire/sexp package's tag vocabulary,
// re-encoded as a msgpack array whose first element is the tag
// string instead of an s-expression list head. Dict bodies are
// carried as an array of [key, value] pairs rather than a native
// msgpack map, the same way wire/sexp avoids a map so pair order
// always survives the round trip.
package msgpack

import (
	"bytes"
	"fmt"
	"math"
	"math/big"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pragmaticcoders/goserial/serial"
)

const (
	tagBigInt      = "bigint"
	tagTuple       = "tuple"
	tagList        = "list"
	tagSet         = "set"
	tagDictionary  = "dictionary"
	tagClass       = "class"
	tagEnum        = "enum"
	tagExternal    = "external"
	tagReference   = "reference"
	tagDereference = "dereference"
	tagInstance    = "instance"
)

// Emit renders n as msgpack binary.
func Emit(n serial.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := writeNode(enc, n); err != nil {
		return nil, &serial.CodecError{Codec: "msgpack", Err: err}
	}
	return buf.Bytes(), nil
}

// Parse decodes msgpack binary back into a Node.
func Parse(data []byte) (serial.Node, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	n, err := decodeNode(dec)
	if err != nil {
		return serial.Node{}, &serial.CodecError{Codec: "msgpack", Err: err}
	}
	return n, nil
}

func writeNode(enc *msgpack.Encoder, n serial.Node) error {
	switch n.Kind {
	case serial.KindNull:
		return enc.EncodeNil()
	case serial.KindBool:
		return enc.EncodeBool(n.Bool)
	case serial.KindInt:
		if n.Int == nil {
			return enc.EncodeInt64(0)
		}
		if n.Int.IsInt64() {
			return enc.EncodeInt64(n.Int.Int64())
		}
		return writeTagged(enc, tagBigInt, 1, func() error { return enc.EncodeString(n.Int.String()) })
	case serial.KindFloat:
		return enc.EncodeFloat64(n.Float)
	case serial.KindBytes:
		return enc.EncodeBytes(n.Bytes)
	case serial.KindText:
		return enc.EncodeString(n.Text)
	case serial.KindTuple:
		return writeChildren(enc, tagTuple, n.Children)
	case serial.KindList:
		return writeChildren(enc, tagList, n.Children)
	case serial.KindSet:
		return writeChildren(enc, tagSet, n.Children)
	case serial.KindDict:
		return writeDict(enc, n.Dict)
	case serial.KindTypeRef:
		return writeTagged(enc, tagClass, 1, func() error { return enc.EncodeString(n.TypeName) })
	case serial.KindEnumRef:
		return writeTagged(enc, tagEnum, 2, func() error {
			if err := enc.EncodeString(n.TypeName); err != nil {
				return err
			}
			return enc.EncodeString(n.EnumMember)
		})
	case serial.KindExternal:
		return writeTagged(enc, tagExternal, 2, func() error {
			if err := enc.EncodeString(n.External.TypeName); err != nil {
				return err
			}
			return enc.EncodeString(n.External.StableID)
		})
	case serial.KindInstance:
		body := serial.Dict()
		if n.Body != nil {
			body = *n.Body
		}
		return writeTagged(enc, tagInstance, 3, func() error {
			if err := enc.EncodeString(n.TypeName); err != nil {
				return err
			}
			if err := writeNode(enc, body); err != nil {
				return err
			}
			return enc.EncodeInt64(int64(n.Version))
		})
	case serial.KindReference:
		return writeTagged(enc, tagReference, 2, func() error {
			if err := enc.EncodeInt64(int64(n.RefID)); err != nil {
				return err
			}
			return writeNode(enc, *n.Inner)
		})
	case serial.KindDereference:
		return writeTagged(enc, tagDereference, 1, func() error {
			return enc.EncodeInt64(int64(n.RefID))
		})
	default:
		return fmt.Errorf("wire/msgpack: unknown node kind %v", n.Kind)
	}
}

func writeTagged(enc *msgpack.Encoder, tag string, payloadLen int, writePayload func() error) error {
	if err := enc.EncodeArrayLen(payloadLen + 1); err != nil {
		return err
	}
	if err := enc.EncodeString(tag); err != nil {
		return err
	}
	return writePayload()
}

func writeChildren(enc *msgpack.Encoder, tag string, children []serial.Node) error {
	if err := enc.EncodeArrayLen(len(children) + 1); err != nil {
		return err
	}
	if err := enc.EncodeString(tag); err != nil {
		return err
	}
	for _, c := range children {
		if err := writeNode(enc, c); err != nil {
			return err
		}
	}
	return nil
}

func writeDict(enc *msgpack.Encoder, entries []serial.DictEntry) error {
	if err := enc.EncodeArrayLen(len(entries) + 1); err != nil {
		return err
	}
	if err := enc.EncodeString(tagDictionary); err != nil {
		return err
	}
	for _, e := range entries {
		if err := enc.EncodeArrayLen(2); err != nil {
			return err
		}
		if err := writeNode(enc, e.Key); err != nil {
			return err
		}
		if err := writeNode(enc, e.Value); err != nil {
			return err
		}
	}
	return nil
}

// isArrayCode reports whether c is the leading format byte of a
// msgpack array (fixarray 0x90-0x9f, array16 0xdc, array32 0xdd); this
// is msgpack wire-format grammar, not library-specific behavior.
func isArrayCode(c byte) bool {
	if c >= 0x90 && c <= 0x9f {
		return true
	}
	return c == 0xdc || c == 0xdd
}

func decodeNode(dec *msgpack.Decoder) (serial.Node, error) {
	code, err := dec.PeekCode()
	if err != nil {
		return serial.Node{}, err
	}
	if !isArrayCode(code) {
		v, err := dec.DecodeInterface()
		if err != nil {
			return serial.Node{}, err
		}
		return nodeFromScalar(v)
	}

	n, err := dec.DecodeArrayLen()
	if err != nil {
		return serial.Node{}, err
	}
	if n == 0 {
		return serial.Node{}, fmt.Errorf("wire/msgpack: empty array has no tag")
	}
	tag, err := dec.DecodeString()
	if err != nil {
		return serial.Node{}, fmt.Errorf("wire/msgpack: array head must be a tag string: %w", err)
	}
	rest := n - 1
	return decodeTagged(dec, tag, rest)
}

func decodeTagged(dec *msgpack.Decoder, tag string, rest int) (serial.Node, error) {
	switch tag {
	case tagBigInt:
		if rest != 1 {
			return serial.Node{}, fmt.Errorf("wire/msgpack: malformed %s", tagBigInt)
		}
		text, err := dec.DecodeString()
		if err != nil {
			return serial.Node{}, err
		}
		bi, ok := new(big.Int).SetString(text, 10)
		if !ok {
			return serial.Node{}, fmt.Errorf("wire/msgpack: malformed %s payload %q", tagBigInt, text)
		}
		return serial.BigInt(bi), nil
	case tagTuple, tagList, tagSet:
		children := make([]serial.Node, 0, rest)
		for i := 0; i < rest; i++ {
			c, err := decodeNode(dec)
			if err != nil {
				return serial.Node{}, err
			}
			children = append(children, c)
		}
		switch tag {
		case tagTuple:
			return serial.Tuple(children...), nil
		case tagList:
			return serial.List(children...), nil
		default:
			return serial.Set(children...), nil
		}
	case tagDictionary:
		entries := make([]serial.DictEntry, 0, rest)
		for i := 0; i < rest; i++ {
			pairLen, err := dec.DecodeArrayLen()
			if err != nil {
				return serial.Node{}, err
			}
			if pairLen != 2 {
				return serial.Node{}, fmt.Errorf("wire/msgpack: malformed %s entry", tagDictionary)
			}
			key, err := decodeNode(dec)
			if err != nil {
				return serial.Node{}, err
			}
			value, err := decodeNode(dec)
			if err != nil {
				return serial.Node{}, err
			}
			entries = append(entries, serial.DictEntry{Key: key, Value: value})
		}
		return serial.Dict(entries...), nil
	case tagClass:
		if rest != 1 {
			return serial.Node{}, fmt.Errorf("wire/msgpack: malformed %s", tagClass)
		}
		name, err := dec.DecodeString()
		if err != nil {
			return serial.Node{}, err
		}
		return serial.TypeRef(name), nil
	case tagEnum:
		if rest != 2 {
			return serial.Node{}, fmt.Errorf("wire/msgpack: malformed %s", tagEnum)
		}
		typeName, err := dec.DecodeString()
		if err != nil {
			return serial.Node{}, err
		}
		member, err := dec.DecodeString()
		if err != nil {
			return serial.Node{}, err
		}
		return serial.EnumRef(typeName, member), nil
	case tagExternal:
		if rest != 2 {
			return serial.Node{}, fmt.Errorf("wire/msgpack: malformed %s", tagExternal)
		}
		typeName, err := dec.DecodeString()
		if err != nil {
			return serial.Node{}, err
		}
		stableID, err := dec.DecodeString()
		if err != nil {
			return serial.Node{}, err
		}
		return serial.ExternalRef(typeName, stableID), nil
	case tagInstance:
		if rest != 3 {
			return serial.Node{}, fmt.Errorf("wire/msgpack: malformed %s", tagInstance)
		}
		typeName, err := dec.DecodeString()
		if err != nil {
			return serial.Node{}, err
		}
		body, err := decodeNode(dec)
		if err != nil {
			return serial.Node{}, err
		}
		version, err := dec.DecodeInt64()
		if err != nil {
			return serial.Node{}, err
		}
		return serial.Instance(typeName, body, int(version)), nil
	case tagReference:
		if rest != 2 {
			return serial.Node{}, fmt.Errorf("wire/msgpack: malformed %s", tagReference)
		}
		refID, err := dec.DecodeInt64()
		if err != nil {
			return serial.Node{}, err
		}
		inner, err := decodeNode(dec)
		if err != nil {
			return serial.Node{}, err
		}
		return serial.Reference(int(refID), inner), nil
	case tagDereference:
		if rest != 1 {
			return serial.Node{}, fmt.Errorf("wire/msgpack: malformed %s", tagDereference)
		}
		refID, err := dec.DecodeInt64()
		if err != nil {
			return serial.Node{}, err
		}
		return serial.Dereference(int(refID)), nil
	default:
		return serial.Node{}, fmt.Errorf("wire/msgpack: unrecognized tag %q", tag)
	}
}

func nodeFromScalar(v any) (serial.Node, error) {
	switch t := v.(type) {
	case nil:
		return serial.Null(), nil
	case bool:
		return serial.Bool(t), nil
	case float32:
		return serial.Float(float64(t)), nil
	case float64:
		return serial.Float(t), nil
	case string:
		return serial.Text(t), nil
	case []byte:
		return serial.Bytes(t), nil
	default:
		return nodeFromNumeric(v)
	}
}

// nodeFromNumeric covers every integer type the decoder's generic
// DecodeInterface may hand back for a msgpack int-family value
// (the concrete Go type chosen depends on the value's magnitude).
func nodeFromNumeric(v any) (serial.Node, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return serial.Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u <= math.MaxInt64 {
			return serial.Int(int64(u)), nil
		}
		return serial.BigInt(new(big.Int).SetUint64(u)), nil
	default:
		return serial.Node{}, fmt.Errorf("wire/msgpack: unsupported scalar type %T", v)
	}
}
