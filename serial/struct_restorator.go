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

import "reflect"

// StructRestorator is the everyday Restorator implementation: a
// FieldSchema bound to one pointer-to-struct Go type. Most callers
// should build one of these with NewStructRestorator rather than
// hand-writing Snapshot/Prepare/Recover.
type StructRestorator struct {
	typeName      string
	goType        reflect.Type
	schema        FieldSchema
	referenceable bool
	immutable     bool
	restoredFn    func(reflect.Value) error
	nativeVersion int
	versionAdapter VersionAdapter
}

// StructOption configures a StructRestorator at construction time.
type StructOption func(*StructRestorator)

// WithReferenceable overrides the default (true): referenceable=false
// means an instance is never shared on decode — every occurrence
// re-materializes as a distinct copy.
func WithReferenceable(v bool) StructOption {
	return func(r *StructRestorator) { r.referenceable = v }
}

// WithImmutable marks instances as immutable: Prepare/Recover may be
// fused, and the flattener fails with CyclicImmutableError if such an
// instance is found in a cycle.
func WithImmutable(v bool) StructOption {
	return func(r *StructRestorator) { r.immutable = v }
}

// WithRestoredHook registers a post-pass hook invoked once per decode,
// after every instance reachable from this one has finished Recover.
func WithRestoredHook(fn func(reflect.Value) error) StructOption {
	return func(r *StructRestorator) { r.restoredFn = fn }
}

// WithVersion declares this type's native schema version and its
// upgrade/downgrade step table, making the restorator a
// VersionedRestorator.
func WithVersion(native int, adapter VersionAdapter) StructOption {
	return func(r *StructRestorator) {
		r.nativeVersion = native
		r.versionAdapter = adapter
	}
}

// NewStructRestorator builds a Restorator for the pointer type of
// sample (typically passed as (*MyType)(nil)) using schema to drive
// snapshot/recover. typeName is the canonical serialization key.
func NewStructRestorator(typeName string, sample any, schema FieldSchema, opts ...StructOption) *StructRestorator {
	t := reflect.TypeOf(sample)
	if t.Kind() != reflect.Ptr {
		t = reflect.PtrTo(t)
	}
	r := &StructRestorator{
		typeName:      typeName,
		goType:        t,
		schema:        schema,
		referenceable: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *StructRestorator) TypeName() string      { return r.typeName }
func (r *StructRestorator) GoType() reflect.Type  { return r.goType }

func (r *StructRestorator) Snapshot(instance reflect.Value) (any, error) {
	return r.schema.Snapshot(instance)
}

func (r *StructRestorator) Prepare() reflect.Value {
	return reflect.New(r.goType.Elem())
}

func (r *StructRestorator) Recover(skeleton reflect.Value, body any) error {
	return r.schema.Recover(skeleton, body)
}

func (r *StructRestorator) Referenceable() bool { return r.referenceable }
func (r *StructRestorator) Immutable() bool     { return r.immutable }

func (r *StructRestorator) Restored(instance reflect.Value) error {
	if r.restoredFn == nil {
		return nil
	}
	return r.restoredFn(instance)
}

func (r *StructRestorator) NativeVersion() int { return r.nativeVersion }

func (r *StructRestorator) VersionAdapter() VersionAdapter {
	if r.versionAdapter == nil {
		return NoVersionAdapter{}
	}
	return r.versionAdapter
}
