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

type widget struct {
	Name    string
	Retries int
	Timeout float64
}

var widgetSchema = FieldSchema{
	Fields: []Field{
		{Name: "Name"},
		{Name: "Retries", Default: 3, HasDefault: true},
		{Name: "Timeout", Default: 5.0, HasDefault: true},
	},
}

func TestFieldSchemaOmitsFieldsEqualToDefault(t *testing.T) {
	w := widget{Name: "", Retries: 3, Timeout: 5.0}
	body, err := widgetSchema.Snapshot(reflect.ValueOf(w))
	require.NoError(t, err)
	require.Len(t, body, 0)
}

func TestFieldSchemaKeepsZeroValueDifferentFromNonZeroDefault(t *testing.T) {
	w := widget{Name: "", Retries: 0, Timeout: 5.0}
	body, err := widgetSchema.Snapshot(reflect.ValueOf(w))
	require.NoError(t, err)

	value, ok := body.Get("Retries")
	require.True(t, ok)
	require.Equal(t, 0, value)
}

func TestFieldSchemaOmitsNoDefaultZeroValue(t *testing.T) {
	w := widget{Name: "", Retries: 3, Timeout: 5.0}
	body, err := widgetSchema.Snapshot(reflect.ValueOf(w))
	require.NoError(t, err)
	_, ok := body.Get("Name")
	require.False(t, ok)
}

func TestFieldSchemaKeepsNonDefaultValues(t *testing.T) {
	w := widget{Name: "retry-queue", Retries: 10, Timeout: 1.5}
	body, err := widgetSchema.Snapshot(reflect.ValueOf(w))
	require.NoError(t, err)
	require.Len(t, body, 3)
}

func TestFieldSchemaRecoverFillsDeclaredDefaults(t *testing.T) {
	body := OrderedMap{{Key: "Name", Value: "custom"}}

	var w widget
	require.NoError(t, widgetSchema.Recover(reflect.ValueOf(&w).Elem(), body))

	require.Equal(t, "custom", w.Name)
	require.Equal(t, 3, w.Retries)
	require.Equal(t, 5.0, w.Timeout)
}

func TestFieldSchemaRecoverRejectsUnknownKey(t *testing.T) {
	body := OrderedMap{{Key: "Bogus", Value: 1}}

	var w widget
	err := widgetSchema.Recover(reflect.ValueOf(&w).Elem(), body)
	require.Error(t, err)
	var unk *UnknownFieldError
	require.ErrorAs(t, err, &unk)
}

func TestFieldSchemaRoundTrip(t *testing.T) {
	w := widget{Name: "x", Retries: 0, Timeout: 5.0}

	snap, err := widgetSchema.Snapshot(reflect.ValueOf(w))
	require.NoError(t, err)

	var out widget
	require.NoError(t, widgetSchema.Recover(reflect.ValueOf(&out).Elem(), snap))
	require.Equal(t, w, out)
}
