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

// Package serial implements a polymorphic object-graph serialization
// engine: a reversible conversion between live Go values (including
// cyclic graphs built from pointers, slices, and maps) and a canonical,
// format-agnostic intermediate tree. Concrete wire codecs live under
// the sibling wire/ packages and operate purely on the Node type
// defined here.
package serial

import "math/big"

// Kind tags the variant carried by a Node. Nodes are a closed tagged
// sum; callers switch on Kind rather than relying on any inheritance
// hierarchy between variants.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindBytes
	KindText
	KindTuple
	KindList
	KindSet
	KindDict
	KindTypeRef
	KindEnumRef
	KindExternal
	KindInstance
	KindReference
	KindDereference
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindBytes:
		return "Bytes"
	case KindText:
		return "Text"
	case KindTuple:
		return "Tuple"
	case KindList:
		return "List"
	case KindSet:
		return "Set"
	case KindDict:
		return "Dict"
	case KindTypeRef:
		return "TypeRef"
	case KindEnumRef:
		return "EnumRef"
	case KindExternal:
		return "External"
	case KindInstance:
		return "Instance"
	case KindReference:
		return "Reference"
	case KindDereference:
		return "Dereference"
	default:
		return "Unknown"
	}
}

// DictEntry is one (key, value) pair of a DictNode. Pairs are carried
// as an ordered slice, not a Go map, so that the source's iteration
// order survives a flatten/unflatten round trip (spec requirement:
// dict key order in the node preserves the source's iteration order).
type DictEntry struct {
	Key   Node
	Value Node
}

// External identifies a long-lived, out-of-band object by the pair
// the Externalizer indexes on.
type External struct {
	TypeName string
	StableID string
}

// Node is one tagged-sum value of the intermediate tree. Only the
// field(s) relevant to Kind are meaningful; the rest are zero.
type Node struct {
	Kind Kind

	Bool bool
	Int  *big.Int
	Float float64
	Bytes []byte
	Text  string

	// Tuple, List, Set share the ordered-children representation;
	// Set additionally permits the decoder to not rely on order.
	Children []Node

	Dict []DictEntry

	// TypeRef, EnumRef, Instance, External carry a canonical type name.
	TypeName string

	// EnumRef also carries the member name.
	EnumMember string

	External External

	// Instance body (typically a Dict node, but any node the type's
	// Recover accepts).
	Body *Node

	// Instance carries an optional target schema version; zero means
	// "native version, no tag".
	Version int

	// Reference / Dereference.
	RefID int
	Inner *Node
}

// Atom constructors. None of these participate in reference tracking.

func Null() Node { return Node{Kind: KindNull} }

func Bool(v bool) Node { return Node{Kind: KindBool, Bool: v} }

func Int(v int64) Node { return Node{Kind: KindInt, Int: big.NewInt(v)} }

func BigInt(v *big.Int) Node { return Node{Kind: KindInt, Int: v} }

func Float(v float64) Node { return Node{Kind: KindFloat, Float: v} }

func Bytes(v []byte) Node { return Node{Kind: KindBytes, Bytes: v} }

func Text(v string) Node { return Node{Kind: KindText, Text: v} }

func TypeRef(name string) Node { return Node{Kind: KindTypeRef, TypeName: name} }

func EnumRef(typeName, member string) Node {
	return Node{Kind: KindEnumRef, TypeName: typeName, EnumMember: member}
}

func ExternalRef(typeName, stableID string) Node {
	return Node{Kind: KindExternal, External: External{TypeName: typeName, StableID: stableID}}
}

// Container constructors.

func Tuple(children ...Node) Node { return Node{Kind: KindTuple, Children: children} }

func List(children ...Node) Node { return Node{Kind: KindList, Children: children} }

func Set(children ...Node) Node { return Node{Kind: KindSet, Children: children} }

func Dict(entries ...DictEntry) Node { return Node{Kind: KindDict, Dict: entries} }

// Instance wraps a type's snapshot body. version is 0 when the
// snapshot is in the type's own native version (no tag emitted).
func Instance(typeName string, body Node, version int) Node {
	b := body
	return Node{Kind: KindInstance, TypeName: typeName, Body: &b, Version: version}
}

// Reference declares a shared or cyclic object under ref id. inner is
// the declared node's body, emitted at the point of first occurrence.
func Reference(refID int, inner Node) Node {
	n := inner
	return Node{Kind: KindReference, RefID: refID, Inner: &n}
}

// Dereference is a back-edge to a previously declared Reference.
func Dereference(refID int) Node { return Node{Kind: KindDereference, RefID: refID} }

// IsAtom reports whether n can never be wrapped in a Reference: the
// scalar variants, TypeRef, EnumRef, External and the empty Tuple.
// Non-empty Tuple, List, Set, Dict, Instance, Reference and
// Dereference are not atoms.
func (n Node) IsAtom() bool {
	switch n.Kind {
	case KindNull, KindBool, KindInt, KindFloat, KindBytes, KindText,
		KindTypeRef, KindEnumRef, KindExternal:
		return true
	case KindTuple:
		return len(n.Children) == 0
	default:
		return false
	}
}

// Unwrap strips a leading Reference wrapper, returning the inner node
// and the ref id (0 if n was not a Reference).
func Unwrap(n Node) (Node, int) {
	if n.Kind == KindReference {
		return *n.Inner, n.RefID
	}
	return n, 0
}
