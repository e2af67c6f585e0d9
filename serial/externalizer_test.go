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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExternalizerAddLookupIdentify(t *testing.T) {
	ext := NewExternalizer()
	obj := &Singleton{Name: "conn-pool"}

	ext.Add("testpkg.Singleton", "pool-1", obj)

	got, err := ext.Lookup("testpkg.Singleton", "pool-1")
	require.NoError(t, err)
	require.Same(t, obj, got)

	typeName, stableID, ok := ext.Identify(obj)
	require.True(t, ok)
	require.Equal(t, "testpkg.Singleton", typeName)
	require.Equal(t, "pool-1", stableID)
}

func TestExternalizerUnknownLookupFails(t *testing.T) {
	ext := NewExternalizer()
	_, err := ext.Lookup("testpkg.Singleton", "missing")
	require.Error(t, err)
	var unk *UnknownExternalError
	require.ErrorAs(t, err, &unk)
}

func TestExternalizerUnregisteredIdentifyFails(t *testing.T) {
	ext := NewExternalizer()
	_, _, ok := ext.Identify(&Singleton{Name: "nobody-added-me"})
	require.False(t, ok)
}
