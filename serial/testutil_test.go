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

// Point is a plain two-field instance used by the basic round-trip
// tests.
type Point struct {
	X int
	Y int
}

// LinkedNode lets a single type form a self-cycle (Next pointing back
// to an ancestor, including itself).
type LinkedNode struct {
	Value int
	Next  *LinkedNode
}

// PingNode and PongNode form a two-instance mutual cycle.
type PingNode struct {
	Name    string
	Partner *PongNode
}

type PongNode struct {
	Name    string
	Partner *PingNode
}

// Singleton is registered non-referenceable: every occurrence decodes
// to a distinct copy even when the same Go object fed two fields.
type Singleton struct {
	Name string
}

// Frozen is registered immutable: it must never be asked to
// participate in a reference cycle.
type Frozen struct {
	Value int
	Self  *Frozen
}

// Color is a small enum registered via RegisterEnum rather than the
// Enumerator interface.
type Color int

const (
	ColorRed Color = iota
	ColorGreen
	ColorBlue
)

// Account is registered as a VersionedRestorator: its native version
// is 2, and its Balance field is stored in cents at v2 but in whole
// currency units at v1.
type Account struct {
	Owner   string
	Balance int
}

func newTestRegistry() *Registry {
	reg := NewRegistry()

	must(reg.Register(NewStructRestorator("testpkg.Point", (*Point)(nil), FieldSchema{
		Fields: []Field{{Name: "X"}, {Name: "Y"}},
	})))

	must(reg.Register(NewStructRestorator("testpkg.LinkedNode", (*LinkedNode)(nil), FieldSchema{
		Fields: []Field{{Name: "Value"}, {Name: "Next"}},
	})))

	must(reg.Register(NewStructRestorator("testpkg.PingNode", (*PingNode)(nil), FieldSchema{
		Fields: []Field{{Name: "Name"}, {Name: "Partner"}},
	})))
	must(reg.Register(NewStructRestorator("testpkg.PongNode", (*PongNode)(nil), FieldSchema{
		Fields: []Field{{Name: "Name"}, {Name: "Partner"}},
	})))

	must(reg.Register(NewStructRestorator("testpkg.Singleton", (*Singleton)(nil), FieldSchema{
		Fields: []Field{{Name: "Name"}},
	}, WithReferenceable(false))))

	must(reg.Register(NewStructRestorator("testpkg.Frozen", (*Frozen)(nil), FieldSchema{
		Fields: []Field{{Name: "Value"}, {Name: "Self"}},
	}, WithImmutable(true))))

	reg.RegisterEnum(reflect.TypeOf(ColorRed), "testpkg.Color", map[string]any{
		"RED":   ColorRed,
		"GREEN": ColorGreen,
		"BLUE":  ColorBlue,
	})

	must(reg.Register(NewStructRestorator("testpkg.Account", (*Account)(nil), FieldSchema{
		Fields: []Field{{Name: "Owner"}, {Name: "Balance"}},
	}, WithVersion(2, accountAdapter{}))))

	return reg
}

// accountAdapter rescales Balance between whole-unit (v1) and cent
// (v2) representations.
type accountAdapter struct{}

func (accountAdapter) Upgrades() map[int]VersionStep {
	return map[int]VersionStep{
		2: rescaleBalance(100),
	}
}

func (accountAdapter) Downgrades() map[int]VersionStep {
	return map[int]VersionStep{
		1: rescaleBalance(1.0 / 100),
	}
}

func rescaleBalance(factor float64) VersionStep {
	return func(n Node) (Node, error) {
		out := make([]DictEntry, len(n.Dict))
		copy(out, n.Dict)
		for i, e := range out {
			if e.Key.Kind == KindText && e.Key.Text == "Balance" && e.Value.Kind == KindInt {
				scaled := float64(e.Value.Int.Int64()) * factor
				out[i] = DictEntry{Key: e.Key, Value: Int(int64(scaled))}
			}
		}
		return Dict(out...), nil
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
