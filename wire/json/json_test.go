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

package json

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pragmaticcoders/goserial/serial"
)

func roundTrip(t *testing.T, n serial.Node) serial.Node {
	t.Helper()
	raw, err := Emit(n)
	require.NoError(t, err)
	got, err := Parse(raw)
	require.NoError(t, err)
	return got
}

func TestEmitScalarAtoms(t *testing.T) {
	raw, err := Emit(serial.Null())
	require.NoError(t, err)
	require.Equal(t, "null", string(raw))

	raw, err = Emit(serial.Bool(true))
	require.NoError(t, err)
	require.Equal(t, "true", string(raw))

	raw, err = Emit(serial.Int(42))
	require.NoError(t, err)
	require.Equal(t, "42", string(raw))

	raw, err = Emit(serial.Text("hi"))
	require.NoError(t, err)
	require.Equal(t, `"hi"`, string(raw))
}

func TestRoundTripHugeInt(t *testing.T) {
	huge, ok := new(big.Int).SetString("4722366482869645213696", 10)
	require.True(t, ok)

	got := roundTrip(t, serial.BigInt(huge))
	require.Equal(t, serial.KindInt, got.Kind)
	require.Equal(t, 0, huge.Cmp(got.Int))
}

func TestRoundTripFloat(t *testing.T) {
	got := roundTrip(t, serial.Float(3.5))
	require.Equal(t, serial.KindFloat, got.Kind)
	require.Equal(t, 3.5, got.Float)
}

func TestRoundTripBytes(t *testing.T) {
	got := roundTrip(t, serial.Bytes([]byte{0, 1, 2, 255}))
	require.Equal(t, serial.KindBytes, got.Kind)
	require.Equal(t, []byte{0, 1, 2, 255}, got.Bytes)
}

func TestEmitBytesUsesTaggedArray(t *testing.T) {
	raw, err := Emit(serial.Bytes([]byte("ab")))
	require.NoError(t, err)
	require.Equal(t, `[".bytes","YWI="]`, string(raw))
}

func TestRoundTripEmptyTuple(t *testing.T) {
	raw, err := Emit(serial.Tuple())
	require.NoError(t, err)
	require.Equal(t, `[".tuple"]`, string(raw))

	got := roundTrip(t, serial.Tuple())
	require.Equal(t, serial.KindTuple, got.Kind)
	require.Len(t, got.Children, 0)
}

func TestRoundTripTuple(t *testing.T) {
	got := roundTrip(t, serial.Tuple(serial.Int(1), serial.Text("x")))
	require.Equal(t, serial.KindTuple, got.Kind)
	require.Len(t, got.Children, 2)
	require.Equal(t, "x", got.Children[1].Text)
}

func TestRoundTripList(t *testing.T) {
	raw, err := Emit(serial.List(serial.Int(1), serial.Int(2)))
	require.NoError(t, err)
	require.Equal(t, `[1,2]`, string(raw))

	got := roundTrip(t, serial.List(serial.Int(1), serial.Int(2)))
	require.Equal(t, serial.KindList, got.Kind)
	require.Len(t, got.Children, 2)
}

func TestRoundTripSet(t *testing.T) {
	got := roundTrip(t, serial.Set(serial.Int(1), serial.Int(2)))
	require.Equal(t, serial.KindSet, got.Kind)
	require.Len(t, got.Children, 2)
}

func TestRoundTripDictPreservesOrder(t *testing.T) {
	n := serial.Dict(
		serial.DictEntry{Key: serial.Text("z"), Value: serial.Int(1)},
		serial.DictEntry{Key: serial.Text("a"), Value: serial.Int(2)},
	)
	raw, err := Emit(n)
	require.NoError(t, err)
	require.Equal(t, `{"z":1,"a":2}`, string(raw))

	got := roundTrip(t, n)
	require.Equal(t, serial.KindDict, got.Kind)
	require.Len(t, got.Dict, 2)
	require.Equal(t, "z", got.Dict[0].Key.Text)
	require.Equal(t, "a", got.Dict[1].Key.Text)
}

func TestRoundTripDictNonTextKeyUsesFallback(t *testing.T) {
	n := serial.Dict(serial.DictEntry{Key: serial.Int(1), Value: serial.Text("v")})
	got := roundTrip(t, n)
	require.Equal(t, serial.KindDict, got.Kind)
	require.Len(t, got.Dict, 1)
	require.Equal(t, serial.KindInt, got.Dict[0].Key.Kind)
	require.Equal(t, "v", got.Dict[0].Value.Text)
}

func TestRoundTripTypeRef(t *testing.T) {
	got := roundTrip(t, serial.TypeRef("pkg.Widget"))
	require.Equal(t, serial.KindTypeRef, got.Kind)
	require.Equal(t, "pkg.Widget", got.TypeName)
}

func TestRoundTripEnumRef(t *testing.T) {
	raw, err := Emit(serial.EnumRef("pkg.Color", "RED"))
	require.NoError(t, err)
	require.Equal(t, `[".enum","pkg.Color.RED"]`, string(raw))

	got := roundTrip(t, serial.EnumRef("pkg.Color", "RED"))
	require.Equal(t, serial.KindEnumRef, got.Kind)
	require.Equal(t, "pkg.Color", got.TypeName)
	require.Equal(t, "RED", got.EnumMember)
}

func TestRoundTripExternal(t *testing.T) {
	got := roundTrip(t, serial.ExternalRef("pkg.Conn", "17"))
	require.Equal(t, serial.KindExternal, got.Kind)
	require.Equal(t, "pkg.Conn", got.External.TypeName)
	require.Equal(t, "17", got.External.StableID)
}

func TestRoundTripInstanceMergesTypeIntoObject(t *testing.T) {
	body := serial.Dict(serial.DictEntry{Key: serial.Text("Name"), Value: serial.Text("a")})
	n := serial.Instance("pkg.Widget", body, 0)

	raw, err := Emit(n)
	require.NoError(t, err)
	require.Equal(t, `{".type":"pkg.Widget","Name":"a"}`, string(raw))

	got := roundTrip(t, n)
	require.Equal(t, serial.KindInstance, got.Kind)
	require.Equal(t, "pkg.Widget", got.TypeName)
	require.Equal(t, 0, got.Version)
	require.Equal(t, "a", got.Body.Dict[0].Value.Text)
}

func TestRoundTripInstanceWithVersion(t *testing.T) {
	body := serial.Dict(serial.DictEntry{Key: serial.Text("Balance"), Value: serial.Int(100)})
	n := serial.Instance("pkg.Account", body, 2)

	got := roundTrip(t, n)
	require.Equal(t, 2, got.Version)
	require.Equal(t, "pkg.Account", got.TypeName)
}

func TestRoundTripInstanceNonDictBodyUsesFallback(t *testing.T) {
	n := serial.Instance("pkg.Pair", serial.Tuple(serial.Int(1), serial.Int(2)), 0)
	got := roundTrip(t, n)
	require.Equal(t, serial.KindInstance, got.Kind)
	require.Equal(t, "pkg.Pair", got.TypeName)
	require.Equal(t, serial.KindTuple, got.Body.Kind)
}

func TestRoundTripReference(t *testing.T) {
	n := serial.Reference(3, serial.List(serial.Int(1)))
	raw, err := Emit(n)
	require.NoError(t, err)
	require.Equal(t, `[".ref",3,[1]]`, string(raw))

	got := roundTrip(t, n)
	require.Equal(t, serial.KindReference, got.Kind)
	require.Equal(t, 3, got.RefID)
	require.Equal(t, serial.KindList, got.Inner.Kind)
}

func TestRoundTripDereference(t *testing.T) {
	raw, err := Emit(serial.Dereference(9))
	require.NoError(t, err)
	require.Equal(t, `[".deref",9]`, string(raw))

	got := roundTrip(t, serial.Dereference(9))
	require.Equal(t, serial.KindDereference, got.Kind)
	require.Equal(t, 9, got.RefID)
}

func TestParseRejectsMalformedBytesTag(t *testing.T) {
	_, err := Parse([]byte(`[".bytes"]`))
	require.Error(t, err)
}

func TestParseRejectsMalformedEnumTag(t *testing.T) {
	_, err := Parse([]byte(`[".enum","nodot"]`))
	require.Error(t, err)
}

func TestRoundTripNestedGraph(t *testing.T) {
	inner := serial.Instance("pkg.Node", serial.Dict(
		serial.DictEntry{Key: serial.Text("Value"), Value: serial.Int(1)},
		serial.DictEntry{Key: serial.Text("Next"), Value: serial.Dereference(1)},
	), 0)
	n := serial.Reference(1, inner)

	got := roundTrip(t, n)
	require.Equal(t, serial.KindReference, got.Kind)
	require.Equal(t, 1, got.RefID)
	require.Equal(t, serial.KindInstance, got.Inner.Kind)
	nextEntry := got.Inner.Body.Dict[1]
	require.Equal(t, "Next", nextEntry.Key.Text)
	require.Equal(t, serial.KindDereference, nextEntry.Value.Kind)
	require.Equal(t, 1, nextEntry.Value.RefID)
}
