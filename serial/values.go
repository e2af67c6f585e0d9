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

package serial

import (
	"fmt"
	"reflect"
)

// TupleValue is the Go stand-in for the tree's immutable TupleNode:
// an ordered, fixed sequence. An empty TupleValue is never wrapped in
// a Reference (it is the atom singleton the spec calls out).
type TupleValue []any

// SetValue is the Go stand-in for the tree's SetNode: an unordered
// bag. Emission order is implementation-defined; decoders must not
// depend on it.
type SetValue []any

// ListValue is the Go stand-in for the tree's ListNode: an ordered,
// mutable sequence. The Unserializer always hands back a *ListValue
// (not ListValue) because List is always-referenceable and a shared
// or self-referential list must keep one stable identity across every
// Dereference that points at it — a bare slice header copy would not.
type ListValue []any

// KV is one entry of an OrderedMap.
type KV struct {
	Key   any
	Value any
}

// OrderedMap is the Go stand-in for the tree's DictNode when callers
// need to guarantee the pair order a plain Go map cannot: Go maps
// carry no retrievable insertion order, so a restorator's Snapshot
// that needs deterministic field ordering (formatable bodies, in
// particular) returns an OrderedMap instead of map[string]any. Like
// ListValue and SetValue, the Unserializer hands back a *OrderedMap
// and *SetValue so shared/cyclic dicts and sets keep one identity.
type OrderedMap []KV

// Get returns the value for key and whether it was present.
func (m OrderedMap) Get(key any) (any, bool) {
	for _, kv := range m {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// TypeValue wraps a reflect.Type so it can be flattened as a TypeRef
// node (the tree's representation of "a type, serialized as a value").
type TypeValue struct {
	Type reflect.Type
}

// EnumValue is the Go stand-in for the tree's EnumRef: a named member
// of a registered enum type.
type EnumValue struct {
	TypeName string
	Member   string
}

// Enumerator lets a Go value name its own canonical enum type and
// member instead of going through Registry.RegisterEnum. Most callers
// use RegisterEnum; Enumerator is for enum-like types that already
// carry this information (e.g. generated protocol stubs).
type Enumerator interface {
	EnumTypeName() string
	EnumMemberName() string
}

// EnumDescriptor is a registered enum type's name table, mapping
// between member names and underlying values in both directions.
type EnumDescriptor struct {
	TypeName  string
	ValueToName map[any]string
	NameToValue map[string]any
}

// RegisterEnum declares t as an enum type with the given canonical
// name and member table. Subsequent flattening of a value of type t
// looks up its EnumDescriptor to emit an EnumRef; decoding an EnumRef
// for typeName looks the member back up to a concrete value.
func (reg *Registry) RegisterEnum(t reflect.Type, typeName string, members map[string]any) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	desc := EnumDescriptor{
		TypeName:    typeName,
		ValueToName: make(map[any]string, len(members)),
		NameToValue: make(map[string]any, len(members)),
	}
	for name, value := range members {
		desc.ValueToName[value] = name
		desc.NameToValue[name] = value
	}
	if reg.enumsByType == nil {
		reg.enumsByType = make(map[reflect.Type]EnumDescriptor)
		reg.enumsByName = make(map[string]EnumDescriptor)
	}
	reg.enumsByType[t] = desc
	reg.enumsByName[typeName] = desc
}

func (reg *Registry) lookupEnumByType(t reflect.Type) (EnumDescriptor, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	d, ok := reg.enumsByType[t]
	return d, ok
}

func (reg *Registry) lookupEnumByName(name string) (EnumDescriptor, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	d, ok := reg.enumsByName[name]
	return d, ok
}

// CanonicalName derives the "<module path>.<qualified name>" form the
// spec requires for types, using the Go package path and type name in
// place of a Python module path and qualified name. Types with no
// package path (builtins, unnamed types) fall back to t.String().
func CanonicalName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	if pkg := t.PkgPath(); pkg != "" {
		return pkg + "." + t.Name()
	}
	return t.String()
}

// CanonicalFuncName derives a canonical name for a function value,
// used by freeze mode to encode callables as their name instead of a
// structural snapshot. Go cannot recover a closure's declared name at
// runtime beyond runtime.FuncForPC, which is what this wraps.
func CanonicalFuncName(fn any) string {
	return funcName(fn)
}

func structFieldError(typeName, field string) error {
	return fmt.Errorf("serial: %s: %w", typeName, &UnknownFieldError{TypeName: typeName, FieldName: field})
}
