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
	"math/big"
	"reflect"
)

// Field declares one entry of a FieldSchema: a struct field plus its
// serialized name and default value.
type Field struct {
	// Name is the Go struct field name.
	Name string
	// SerializedName overrides Name in the emitted snapshot. Empty
	// means "same as Name".
	SerializedName string
	// Default is the field's declared default. A field whose current
	// value equals Default is omitted from the snapshot. HasDefault
	// false means "no declared default" (the field is omitted only
	// when its current value is also the zero value).
	Default    any
	HasDefault bool
}

func (f Field) serializedName() string {
	if f.SerializedName != "" {
		return f.SerializedName
	}
	return f.Name
}

// FieldSchema is a declarative alternative to hand-written
// Snapshot/Recover: a fixed, ordered field list shared by every
// instance of a type, with per-field default-omission semantics.
// Child types build their own FieldSchema by copying the parent's
// Fields and appending or replacing entries, matching "child types
// inherit parent fields; a redeclaration replaces the parent's
// default".
type FieldSchema struct {
	Fields []Field
}

// Snapshot builds the OrderedMap body for instance (a struct value,
// addressable or not) according to the schema: a field is omitted
// when its current value equals its declared default, or when it has
// no declared default and its current value is the zero value. A
// field holding the zero value where the default is non-zero is NOT
// omitted — the spec calls this out explicitly so that an explicit
// zero/None is distinguishable from "same as default".
func (fs FieldSchema) Snapshot(instance reflect.Value) (OrderedMap, error) {
	instance = reflect.Indirect(instance)
	out := make(OrderedMap, 0, len(fs.Fields))
	for _, f := range fs.Fields {
		fv := instance.FieldByName(f.Name)
		if !fv.IsValid() {
			return nil, &UnknownFieldError{TypeName: instance.Type().Name(), FieldName: f.Name}
		}
		value := fv.Interface()

		switch {
		case f.HasDefault:
			if equalValues(value, f.Default) {
				continue
			}
		default:
			if isZeroValue(fv) {
				continue
			}
		}
		out = append(out, KV{Key: f.serializedName(), Value: value})
	}
	return out, nil
}

// Recover populates instance's fields from body (an OrderedMap, as
// produced by Snapshot, or any type convertible to one via
// AsOrderedMap). Fields omitted from body fall back to their declared
// default; fields with no declared default are left at the zero
// value. Unknown keys in body fail with UnknownFieldError.
func (fs FieldSchema) Recover(instance reflect.Value, body any) error {
	instance = reflect.Indirect(instance)
	om, err := AsOrderedMap(body)
	if err != nil {
		return err
	}

	present := make(map[string]any, len(om))
	for _, kv := range om {
		key, _ := kv.Key.(string)
		present[key] = kv.Value
	}

	byName := make(map[string]Field, len(fs.Fields))
	for _, f := range fs.Fields {
		byName[f.serializedName()] = f
	}
	for key := range present {
		if _, ok := byName[key]; !ok {
			return &UnknownFieldError{TypeName: instance.Type().Name(), FieldName: key}
		}
	}

	for _, f := range fs.Fields {
		fv := instance.FieldByName(f.Name)
		if !fv.IsValid() || !fv.CanSet() {
			continue
		}
		if value, ok := present[f.serializedName()]; ok {
			if err := setFieldValue(fv, value); err != nil {
				return err
			}
			continue
		}
		if f.HasDefault {
			if err := setFieldValue(fv, f.Default); err != nil {
				return err
			}
		}
	}
	return nil
}

// AsOrderedMap coerces a decoded body back to an OrderedMap,
// accepting the pointer form the Unserializer actually returns for
// Dict nodes as well as a bare value.
func AsOrderedMap(body any) (OrderedMap, error) {
	switch v := body.(type) {
	case OrderedMap:
		return v, nil
	case *OrderedMap:
		if v == nil {
			return nil, nil
		}
		return *v, nil
	default:
		return nil, &UnknownFieldError{TypeName: "formatable", FieldName: "<non-dict body>"}
	}
}

func isZeroValue(v reflect.Value) bool {
	return v.IsZero()
}

func equalValues(a, b any) bool {
	av := reflect.ValueOf(a)
	bv := reflect.ValueOf(b)
	if !av.IsValid() || !bv.IsValid() {
		return !av.IsValid() && !bv.IsValid()
	}
	if av.Type() != bv.Type() {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func setFieldValue(fv reflect.Value, value any) error {
	if value == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	vv := reflect.ValueOf(value)

	// decode always hands back an Int node as *big.Int (the tree's
	// arbitrary-precision representation); narrow it to whatever
	// integer kind the destination field actually declares.
	if vv.Type() == bigIntPtrType {
		bi := value.(*big.Int)
		switch fv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			fv.SetInt(bi.Int64())
			return nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			fv.SetUint(bi.Uint64())
			return nil
		case reflect.Float32, reflect.Float64:
			f, _ := new(big.Float).SetInt(bi).Float64()
			fv.SetFloat(f)
			return nil
		}
	}

	if vv.Type().AssignableTo(fv.Type()) {
		fv.Set(vv)
		return nil
	}
	if vv.Type().ConvertibleTo(fv.Type()) {
		fv.Set(vv.Convert(fv.Type()))
		return nil
	}
	return &UnknownFieldError{TypeName: fv.Type().Name(), FieldName: "<type mismatch>"}
}
