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
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	r := NewStructRestorator("testpkg.Point", (*Point)(nil), FieldSchema{
		Fields: []Field{{Name: "X"}, {Name: "Y"}},
	})

	require.NoError(t, reg.Register(r))

	got, err := reg.Lookup("testpkg.Point")
	require.NoError(t, err)
	require.Same(t, r, got)

	byType, ok := reg.LookupGoType(r.GoType())
	require.True(t, ok)
	require.Same(t, r, byType)
}

func TestRegistryReRegisterIdenticalIsNoop(t *testing.T) {
	reg := NewRegistry()
	r := NewStructRestorator("testpkg.Point", (*Point)(nil), FieldSchema{
		Fields: []Field{{Name: "X"}, {Name: "Y"}},
	})

	require.NoError(t, reg.Register(r))
	require.NoError(t, reg.Register(r))
}

func TestRegistryConflictingNameFails(t *testing.T) {
	reg := NewRegistry()
	a := NewStructRestorator("testpkg.Shape", (*Point)(nil), FieldSchema{})
	b := NewStructRestorator("testpkg.Shape", (*LinkedNode)(nil), FieldSchema{})

	require.NoError(t, reg.Register(a))
	err := reg.Register(b)
	require.Error(t, err)
	var dup *DuplicateTypeError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, "testpkg.Shape", dup.TypeName)
}

func TestRegistryUnknownTypeLookupFails(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Lookup("nope")
	require.Error(t, err)
	var unk *UnknownTypeError
	require.ErrorAs(t, err, &unk)
}

func TestRegistryEnumRoundTrip(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterEnum(reflect.TypeOf(ColorRed), "testpkg.Color", map[string]any{
		"RED": ColorRed, "GREEN": ColorGreen, "BLUE": ColorBlue,
	})

	desc, ok := reg.lookupEnumByType(reflect.TypeOf(ColorRed))
	require.True(t, ok)
	require.Equal(t, "GREEN", desc.ValueToName[ColorGreen])

	desc2, ok := reg.lookupEnumByName("testpkg.Color")
	require.True(t, ok)
	require.Equal(t, ColorBlue, desc2.NameToValue["BLUE"])
}

func TestDefaultRegistrySingleton(t *testing.T) {
	require.Same(t, DefaultRegistry(), DefaultRegistry())
}
