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
	"math/big"
	"reflect"
	"sort"
)

var (
	byteSliceType   = reflect.TypeOf([]byte(nil))
	tupleValueType  = reflect.TypeOf(TupleValue(nil))
	setValueType    = reflect.TypeOf(SetValue(nil))
	orderedMapType  = reflect.TypeOf(OrderedMap(nil))
	typeValueType   = reflect.TypeOf(TypeValue{})
	enumValueType   = reflect.TypeOf(EnumValue{})
	bigIntPtrType   = reflect.TypeOf((*big.Int)(nil))
	enumeratorType  = reflect.TypeOf((*Enumerator)(nil)).Elem()
)

type flattenMode int

const (
	modeConvert flattenMode = iota
	modeFreeze
)

// VersionedRestorator is implemented by a Restorator whose instances
// carry a schema version and a declared upgrade/downgrade chain. Only
// types that need cross-version adaptation implement it.
type VersionedRestorator interface {
	Restorator
	NativeVersion() int
	VersionAdapter() VersionAdapter
}

// Option configures a Serializer or Unserializer.
type Option func(*config)

type config struct {
	registry            *Registry
	externalizer        *Externalizer
	sourceVersion       int
	targetVersion       int
	sortKeys            bool
	referenceableAtoms  bool
	strictUnknown       bool
}

func newConfig(opts ...Option) *config {
	c := &config{
		registry:      DefaultRegistry(),
		externalizer:  NewExternalizer(),
		strictUnknown: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithRegistry overrides the type registry consulted during
// flatten/unflatten. Default: the process-wide DefaultRegistry().
func WithRegistry(r *Registry) Option { return func(c *config) { c.registry = r } }

// WithExternalizer overrides the externalizer consulted before
// structurally serializing an instance. Default: an empty one.
func WithExternalizer(e *Externalizer) Option { return func(c *config) { c.externalizer = e } }

// WithSourceVersion declares the schema version instances are
// currently at. Default: each type's own NativeVersion().
func WithSourceVersion(v int) Option { return func(c *config) { c.sourceVersion = v } }

// WithTargetVersion declares the schema version to adapt to on
// flatten, or to expect on unflatten. Default: on flatten, the source
// version (no adaptation); on unflatten, each type's own
// NativeVersion(), so a tagged Instance from another version is
// adapted to it.
func WithTargetVersion(v int) Option { return func(c *config) { c.targetVersion = v } }

// WithSortKeys requests canonical (sorted) dict key ordering. When
// set, every Dict node produced by Convert/Freeze has its entries
// reordered by a canonical string form of the key before the Node is
// returned, so every wire codec downstream inherits the same order
// without needing its own flag. Default: false (preserve the source's
// own order — see SPEC_FULL.md's Open Question decision).
func WithSortKeys(v bool) Option { return func(c *config) { c.sortKeys = v } }

// WithReferenceableAtoms allows a pointer to a scalar (bool, numeric,
// string, []byte) to participate in reference tracking like any other
// pointer, instead of being transparently dereferenced. Default: false.
func WithReferenceableAtoms(v bool) Option { return func(c *config) { c.referenceableAtoms = v } }

// WithStrictUnknown controls decode behavior for an Instance whose
// type_name has no registered restorator. true (default) surfaces
// UnknownTypeError; false decodes to an UnknownInstance record.
func WithStrictUnknown(v bool) Option { return func(c *config) { c.strictUnknown = v } }

// Serializer is the flattener core: it walks a Go value and produces
// a single Node. Not safe for concurrent use; distinct Serializer
// instances may run concurrently.
type Serializer struct {
	cfg *config
}

// NewSerializer constructs a Serializer. With no options it uses the
// default registry, an empty externalizer, and convert-mode defaults.
func NewSerializer(opts ...Option) *Serializer {
	return &Serializer{cfg: newConfig(opts...)}
}

// Convert flattens v into its intermediate-tree representation,
// preserving type identity (Instance nodes) and callable references
// are rejected — freeze is the only mode that accepts them.
func (s *Serializer) Convert(v any) (Node, error) {
	return s.run(v, modeConvert)
}

// Freeze is a one-way flattening variant: Instance wrappers are
// elided (only the body is emitted) and functions/methods are
// encoded as Text holding their canonical name.
func (s *Serializer) Freeze(v any) (Node, error) {
	return s.run(v, modeFreeze)
}

func (s *Serializer) run(v any, mode flattenMode) (Node, error) {
	rv := reflect.ValueOf(v)

	d := &discovery{
		counts:   make(map[uintptr]int),
		cycled:   make(map[uintptr]bool),
		visiting: make(map[uintptr]bool),
	}
	if err := d.walk(s.cfg, rv); err != nil {
		return Node{}, err
	}

	e := &emitter{
		cfg:     s.cfg,
		mode:    mode,
		counts:  d.counts,
		cycled:  d.cycled,
		refIDs:  make(map[uintptr]int),
		emitted: make(map[uintptr]bool),
		nextRef: 1,
	}
	n, err := e.emit(rv)
	if err != nil {
		return Node{}, err
	}
	if s.cfg.sortKeys {
		n = sortDictKeys(n)
	}
	return n, nil
}

// sortDictKeys recurses through n and reorders every Dict's entries by
// a canonical string form of the key, the same comparison emitMap uses
// for a plain (unordered) Go map. Applied at flatten time so every
// downstream codec inherits the canonical order from the tree itself,
// instead of each codec needing its own sort_keys flag.
func sortDictKeys(n Node) Node {
	switch n.Kind {
	case KindDict:
		entries := make([]DictEntry, len(n.Dict))
		copy(entries, n.Dict)
		for i := range entries {
			entries[i].Key = sortDictKeys(entries[i].Key)
			entries[i].Value = sortDictKeys(entries[i].Value)
		}
		sort.Slice(entries, func(i, j int) bool {
			return dictKeyString(entries[i].Key) < dictKeyString(entries[j].Key)
		})
		n.Dict = entries
		return n
	case KindTuple, KindList, KindSet:
		children := make([]Node, len(n.Children))
		for i, c := range n.Children {
			children[i] = sortDictKeys(c)
		}
		n.Children = children
		return n
	case KindInstance:
		if n.Body != nil {
			body := sortDictKeys(*n.Body)
			n.Body = &body
		}
		return n
	case KindReference:
		if n.Inner != nil {
			inner := sortDictKeys(*n.Inner)
			n.Inner = &inner
		}
		return n
	default:
		return n
	}
}

func dictKeyString(n Node) string {
	switch n.Kind {
	case KindText:
		return n.Text
	case KindInt:
		if n.Int != nil {
			return n.Int.String()
		}
		return "0"
	default:
		return fmt.Sprint(n)
	}
}

// --- reference discovery (pass 1) ---

type discovery struct {
	counts   map[uintptr]int
	cycled   map[uintptr]bool
	visiting map[uintptr]bool
}

func (d *discovery) walk(cfg *config, rv reflect.Value) error {
	if !rv.IsValid() {
		return nil
	}
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		return d.walk(cfg, rv.Elem())
	}

	// Only a Ptr/Slice/Map worth tracking gets its address bookkept;
	// a bare struct (e.g. the KV pairs backing an OrderedMap) still
	// needs its fields walked so a pointer reachable only through one
	// is not invisible to cycle/sharing detection, it just carries no
	// identity of its own to track.
	if isReferenceableKind(cfg, rv) {
		addr := rv.Pointer()
		if addr == 0 {
			return nil
		}
		if d.visiting[addr] {
			d.cycled[addr] = true
			return nil
		}
		d.counts[addr]++
		if d.counts[addr] > 1 {
			return nil
		}
		d.visiting[addr] = true
		defer delete(d.visiting, addr)
	} else if rv.Kind() == reflect.Ptr {
		// Non-trackable pointer (nil, or a scalar pointee with
		// referenceableAtoms off): nothing beneath it can carry
		// independent identity either.
		return nil
	}

	switch rv.Kind() {
	case reflect.Ptr:
		elem := rv.Elem()
		if elem.Kind() == reflect.Struct {
			r, ok := cfg.registry.LookupGoType(rv.Type())
			if !ok {
				return nil
			}
			snap, err := r.Snapshot(rv)
			if err != nil {
				return nil
			}
			return d.walk(cfg, reflect.ValueOf(snap))
		}
		return d.walk(cfg, elem)
	case reflect.Slice:
		for i := 0; i < rv.Len(); i++ {
			if err := d.walk(cfg, rv.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			if err := d.walk(cfg, iter.Key()); err != nil {
				return err
			}
			if err := d.walk(cfg, iter.Value()); err != nil {
				return err
			}
		}
	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			f := rv.Field(i)
			if !f.CanInterface() {
				continue
			}
			if err := d.walk(cfg, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// isReferenceableKind decides whether rv's identity should be tracked
// for sharing/cycle purposes: pointers to structs (instances) or to
// containers, and the three slice-backed/map-backed container kinds.
// []byte is excluded (it flattens to the Bytes atom). A pointer to a
// scalar is only tracked when referenceableAtoms is enabled.
func isReferenceableKind(cfg *config, rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return false
		}
		elem := rv.Elem()
		if elem.Type() == byteSliceType {
			return cfg.referenceableAtoms
		}
		switch elem.Kind() {
		case reflect.Struct, reflect.Slice, reflect.Map:
			return true
		default:
			return cfg.referenceableAtoms
		}
	case reflect.Slice:
		if rv.Type() == byteSliceType {
			return false
		}
		if rv.Type() == tupleValueType && rv.Len() == 0 {
			return false
		}
		return true
	case reflect.Map:
		return true
	default:
		return false
	}
}

// --- emission (pass 2) ---

type emitter struct {
	cfg     *config
	mode    flattenMode
	counts  map[uintptr]int
	cycled  map[uintptr]bool
	refIDs  map[uintptr]int
	emitted map[uintptr]bool
	nextRef int
}

func (e *emitter) emit(rv reflect.Value) (Node, error) {
	if !rv.IsValid() {
		return Null(), nil
	}
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return Null(), nil
		}
		return e.emit(rv.Elem())
	}

	switch rv.Type() {
	case bigIntPtrType:
		if rv.IsNil() {
			return Null(), nil
		}
		return BigInt(new(big.Int).Set(rv.Interface().(*big.Int))), nil
	case typeValueType:
		tv := rv.Interface().(TypeValue)
		return TypeRef(CanonicalName(tv.Type)), nil
	case enumValueType:
		ev := rv.Interface().(EnumValue)
		return EnumRef(ev.TypeName, ev.Member), nil
	case orderedMapType:
		return e.emitMap(rv)
	}

	if rv.Type().Implements(enumeratorType) {
		en := rv.Interface().(Enumerator)
		return EnumRef(en.EnumTypeName(), en.EnumMemberName()), nil
	}
	if desc, ok := e.cfg.registry.lookupEnumByType(rv.Type()); ok {
		if name, ok := desc.ValueToName[rv.Interface()]; ok {
			return EnumRef(desc.TypeName, name), nil
		}
	}

	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return BigInt(new(big.Int).SetUint64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.String:
		return Text(rv.String()), nil
	case reflect.Func:
		if e.mode != modeFreeze {
			return Node{}, &UnserializableTypeError{Type: rv.Type()}
		}
		if tag, ok := e.cfg.registry.lookupFreezeTag(rv.Interface()); ok {
			return Text(tag), nil
		}
		return Text(funcName(rv.Interface())), nil
	case reflect.Slice:
		return e.emitSlice(rv)
	case reflect.Map:
		return e.emitMap(rv)
	case reflect.Ptr:
		return e.emitPtr(rv)
	default:
		return Node{}, &UnserializableTypeError{Type: rv.Type()}
	}
}

func (e *emitter) emitSlice(rv reflect.Value) (Node, error) {
	if rv.Type() == byteSliceType {
		if rv.IsNil() {
			return Bytes(nil), nil
		}
		out := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(out), rv)
		return Bytes(out), nil
	}

	kind := KindList
	switch rv.Type() {
	case tupleValueType:
		kind = KindTuple
	case setValueType:
		kind = KindSet
	}

	build := func() (Node, error) {
		children := make([]Node, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			n, err := e.emit(rv.Index(i))
			if err != nil {
				return Node{}, err
			}
			children[i] = n
		}
		return Node{Kind: kind, Children: children}, nil
	}

	if rv.Type() == tupleValueType && rv.Len() == 0 {
		return Node{Kind: KindTuple}, nil
	}
	return e.wrapReferenceable(rv, "", false, build)
}

func (e *emitter) emitMap(rv reflect.Value) (Node, error) {
	if rv.Type() == orderedMapType {
		build := func() (Node, error) {
			om := rv.Interface().(OrderedMap)
			entries := make([]DictEntry, len(om))
			for i, kv := range om {
				k, err := e.emit(reflect.ValueOf(kv.Key))
				if err != nil {
					return Node{}, err
				}
				v, err := e.emit(reflect.ValueOf(kv.Value))
				if err != nil {
					return Node{}, err
				}
				entries[i] = DictEntry{Key: k, Value: v}
			}
			return Dict(entries...), nil
		}
		return e.wrapReferenceable(rv, "", false, build)
	}

	build := func() (Node, error) {
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		entries := make([]DictEntry, len(keys))
		for i, k := range keys {
			kn, err := e.emit(k)
			if err != nil {
				return Node{}, err
			}
			vn, err := e.emit(rv.MapIndex(k))
			if err != nil {
				return Node{}, err
			}
			entries[i] = DictEntry{Key: kn, Value: vn}
		}
		return Dict(entries...), nil
	}
	return e.wrapReferenceable(rv, "", false, build)
}

func (e *emitter) emitPtr(rv reflect.Value) (Node, error) {
	if rv.IsNil() {
		return Null(), nil
	}

	if typeName, stableID, ok := e.cfg.externalizer.Identify(rv.Interface()); ok {
		if e.mode == modeFreeze {
			return Text(fmt.Sprintf("%s#%s", typeName, stableID)), nil
		}
		return ExternalRef(typeName, stableID), nil
	}

	elem := rv.Elem()
	if elem.Kind() != reflect.Struct {
		return e.wrapReferenceable(rv, "", false, func() (Node, error) { return e.emit(elem) })
	}

	r, ok := e.cfg.registry.LookupGoType(rv.Type())
	if !ok {
		return Node{}, &UnserializableTypeError{Type: rv.Type()}
	}

	referenceable := true
	if ra, ok := r.(ReferenceabilityAware); ok {
		referenceable = ra.Referenceable()
	}
	immutable := false
	if ia, ok := r.(ImmutabilityAware); ok {
		immutable = ia.Immutable()
	}

	addr := rv.Pointer()
	if immutable && e.cycled[addr] {
		return Node{}, &CyclicImmutableError{TypeName: r.TypeName()}
	}

	build := func() (Node, error) {
		snap, err := r.Snapshot(rv)
		if err != nil {
			return Node{}, err
		}
		body, err := e.emit(reflect.ValueOf(snap))
		if err != nil {
			return Node{}, err
		}

		version := 0
		if vr, ok := r.(VersionedRestorator); ok {
			from := e.cfg.sourceVersion
			if from == 0 {
				from = vr.NativeVersion()
			}
			to := e.cfg.targetVersion
			if to == 0 {
				to = from
			}
			if to != from {
				adapted, _, err := Adapt(vr.VersionAdapter(), body, from, to)
				if err != nil {
					return Node{}, err
				}
				body = adapted
				version = to
			}
		}

		if e.mode == modeFreeze {
			return body, nil
		}
		return Instance(r.TypeName(), body, version), nil
	}

	return e.wrapReferenceable(rv, "", !referenceable, build)
}

// wrapReferenceable runs build() and, if rv's address was found
// shared or cyclic during discovery, wraps the result in a
// Reference/Dereference pair. forceUnshared disables wrapping even
// for a shared address (used for restorators with Referenceable() ==
// false), except when the address genuinely cycles, where wrapping is
// still applied as the only way to terminate recursion.
func (e *emitter) wrapReferenceable(rv reflect.Value, _ string, forceUnshared bool, build func() (Node, error)) (Node, error) {
	addr := rv.Pointer()
	if addr == 0 {
		return build()
	}

	cycled := e.cycled[addr]
	shared := e.counts[addr] > 1
	wrap := cycled || (shared && !forceUnshared)

	if !wrap {
		return build()
	}
	if e.emitted[addr] {
		return Dereference(e.refIDs[addr]), nil
	}
	id := e.nextRef
	e.nextRef++
	e.refIDs[addr] = id
	e.emitted[addr] = true

	inner, err := build()
	if err != nil {
		return Node{}, err
	}
	return Reference(id, inner), nil
}
