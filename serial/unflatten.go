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
)

// UnknownInstance is what an Instance node decodes to under
// WithStrictUnknown(false) when its type_name has no registered
// restorator: the body is still fully decoded, just not recovered
// into a concrete Go type.
type UnknownInstance struct {
	TypeName string
	Body     any
}

// Unserializer is the unflattener core: it consumes a Node and
// reconstructs a Go value, including cyclic topology. Not safe for
// concurrent use; distinct instances may run concurrently.
type Unserializer struct {
	cfg *config
}

// NewUnserializer constructs an Unserializer with the given options.
func NewUnserializer(opts ...Option) *Unserializer {
	return &Unserializer{cfg: newConfig(opts...)}
}

// Convert reconstructs a value from n.
func (u *Unserializer) Convert(n Node) (any, error) {
	d := &decodeState{
		cfg:      u.cfg,
		refs:     make(map[int]any),
		declared: make(map[int]bool),
	}
	v, err := d.decode(n, 0)
	if err != nil {
		return nil, err
	}
	for _, fx := range d.fixups {
		val, ok := d.refs[fx.refID]
		if !ok {
			return nil, &UnknownReferenceError{RefID: fx.refID}
		}
		*fx.target = val
	}
	// Every prepared instance was queued exactly once, at the point
	// its own Recover completed; firing them in that order satisfies
	// the "after its own recover, after every reachable instance's
	// recover" ordering guarantee as long as nested instances finish
	// recovering before their containing instance does, which the
	// recursive decode of Body already guarantees.
	for _, entry := range d.postPass {
		if err := entry.restorator.Restored(entry.skeleton); err != nil {
			return nil, err
		}
	}
	return v, nil
}

type fixup struct {
	target *any
	refID  int
}

type postPassEntry struct {
	restorator PostRestorer
	skeleton   reflect.Value
}

type decodeState struct {
	cfg      *config
	refs     map[int]any
	declared map[int]bool
	fixups   []fixup
	postPass []postPassEntry
}

// decodeInto decodes n into *slot. If n is a Dereference whose target
// has not been registered yet (a genuine forward reference, which the
// default wire codecs never produce but a permissive one might), the
// write is deferred to a fix-up applied once the whole tree has been
// walked.
func (d *decodeState) decodeInto(n Node, slot *any) error {
	if n.Kind == KindDereference {
		if v, ok := d.refs[n.RefID]; ok {
			*slot = v
			return nil
		}
		d.fixups = append(d.fixups, fixup{target: slot, refID: n.RefID})
		return nil
	}
	v, err := d.decode(n, 0)
	if err != nil {
		return err
	}
	*slot = v
	return nil
}

// decode reconstructs n. declaringRef is non-zero when n is the
// direct child of a Reference(declaringRef, n) wrapper; container and
// instance kinds register their (possibly still-empty) skeleton under
// that id before recursing into children, which is what makes cyclic
// topology resolvable.
func (d *decodeState) decode(n Node, declaringRef int) (any, error) {
	switch n.Kind {
	case KindNull:
		return nil, nil
	case KindBool:
		return n.Bool, nil
	case KindInt:
		if n.Int == nil {
			return new(big.Int), nil
		}
		return new(big.Int).Set(n.Int), nil
	case KindFloat:
		return n.Float, nil
	case KindBytes:
		return append([]byte(nil), n.Bytes...), nil
	case KindText:
		return n.Text, nil
	case KindTypeRef:
		return d.decodeTypeRef(n)
	case KindEnumRef:
		return d.decodeEnumRef(n)
	case KindExternal:
		return d.cfg.externalizer.Lookup(n.External.TypeName, n.External.StableID)
	case KindReference:
		return d.decodeReference(n)
	case KindDereference:
		if v, ok := d.refs[n.RefID]; ok {
			return v, nil
		}
		return nil, &UnknownReferenceError{RefID: n.RefID}
	case KindTuple:
		return d.decodeTuple(n, declaringRef)
	case KindList:
		return d.decodeList(n, declaringRef)
	case KindSet:
		return d.decodeSet(n, declaringRef)
	case KindDict:
		return d.decodeDict(n, declaringRef)
	case KindInstance:
		return d.decodeInstance(n, declaringRef)
	default:
		return nil, &CodecError{Codec: "serial", Err: fmt.Errorf("unhandled node kind %s", n.Kind)}
	}
}

func (d *decodeState) decodeReference(n Node) (any, error) {
	if d.declared[n.RefID] {
		return nil, &DuplicateReferenceError{RefID: n.RefID}
	}
	d.declared[n.RefID] = true
	return d.decode(*n.Inner, n.RefID)
}

func (d *decodeState) decodeTypeRef(n Node) (any, error) {
	if r, err := d.cfg.registry.Lookup(n.TypeName); err == nil {
		return TypeValue{Type: r.GoType()}, nil
	}
	return TypeValue{}, nil
}

func (d *decodeState) decodeEnumRef(n Node) (any, error) {
	if desc, ok := d.cfg.registry.lookupEnumByName(n.TypeName); ok {
		if v, ok := desc.NameToValue[n.EnumMember]; ok {
			return v, nil
		}
	}
	return EnumValue{TypeName: n.TypeName, Member: n.EnumMember}, nil
}

func (d *decodeState) decodeTuple(n Node, declaringRef int) (any, error) {
	raw := make([]any, len(n.Children))
	for i, c := range n.Children {
		if err := d.decodeInto(c, &raw[i]); err != nil {
			return nil, err
		}
	}
	result := TupleValue(raw)
	if declaringRef != 0 {
		d.refs[declaringRef] = result
	}
	return result, nil
}

func (d *decodeState) decodeList(n Node, declaringRef int) (any, error) {
	lv := new(ListValue)
	if declaringRef != 0 {
		d.refs[declaringRef] = lv
	}
	*lv = make(ListValue, len(n.Children))
	for i, c := range n.Children {
		if err := d.decodeInto(c, &(*lv)[i]); err != nil {
			return nil, err
		}
	}
	return lv, nil
}

func (d *decodeState) decodeSet(n Node, declaringRef int) (any, error) {
	sv := new(SetValue)
	if declaringRef != 0 {
		d.refs[declaringRef] = sv
	}
	*sv = make(SetValue, len(n.Children))
	for i, c := range n.Children {
		if err := d.decodeInto(c, &(*sv)[i]); err != nil {
			return nil, err
		}
	}
	return sv, nil
}

func (d *decodeState) decodeDict(n Node, declaringRef int) (any, error) {
	om := new(OrderedMap)
	if declaringRef != 0 {
		d.refs[declaringRef] = om
	}
	*om = make(OrderedMap, len(n.Dict))
	for i, e := range n.Dict {
		var k, v any
		if err := d.decodeInto(e.Key, &k); err != nil {
			return nil, err
		}
		if err := d.decodeInto(e.Value, &v); err != nil {
			return nil, err
		}
		(*om)[i] = KV{Key: k, Value: v}
	}
	return om, nil
}

func (d *decodeState) decodeInstance(n Node, declaringRef int) (any, error) {
	r, err := d.cfg.registry.Lookup(n.TypeName)
	if err != nil {
		if d.cfg.strictUnknown {
			return nil, err
		}
		body, berr := d.decode(*n.Body, 0)
		if berr != nil {
			return nil, berr
		}
		result := UnknownInstance{TypeName: n.TypeName, Body: body}
		if declaringRef != 0 {
			d.refs[declaringRef] = result
		}
		return result, nil
	}

	skeleton := r.Prepare()
	if declaringRef != 0 {
		d.refs[declaringRef] = skeleton.Interface()
	}

	body, err := d.decodeVersioned(r, n)
	if err != nil {
		return nil, err
	}

	if err := r.Recover(skeleton, body); err != nil {
		return nil, err
	}

	if pr, ok := r.(PostRestorer); ok {
		d.postPass = append(d.postPass, postPassEntry{restorator: pr, skeleton: skeleton})
	}

	return skeleton.Interface(), nil
}

// decodeVersioned decodes n's body and, for a VersionedRestorator,
// adapts it from the version the wire tag (or the configured source
// version) declares to the version the Unserializer was configured to
// expect, applying Adapt on the body's Node form before the final
// generic decode. This mirrors the flattener's symmetric adaptation
// on the way out.
func (d *decodeState) decodeVersioned(r Restorator, n Node) (any, error) {
	vr, ok := r.(VersionedRestorator)
	if !ok {
		return d.decode(*n.Body, 0)
	}

	from := n.Version
	if from == 0 {
		from = d.cfg.sourceVersion
	}
	if from == 0 {
		from = vr.NativeVersion()
	}
	to := d.cfg.targetVersion
	if to == 0 {
		to = vr.NativeVersion()
	}
	if from == to {
		return d.decode(*n.Body, 0)
	}

	adapted, _, err := Adapt(vr.VersionAdapter(), *n.Body, from, to)
	if err != nil {
		return nil, err
	}
	return d.decode(adapted, 0)
}
