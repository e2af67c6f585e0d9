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

import "sync"

type externalKey struct {
	typeName string
	stableID string
}

// Externalizer is an out-of-band table of long-lived objects that
// serialize as an opaque (typeName, stableID) identifier rather than
// by structural value. Flatteners consult it before walking an
// instance's fields; unflatteners consult it to resolve an External
// node back to the live object.
type Externalizer struct {
	mu       sync.RWMutex
	byKey    map[externalKey]any
	byIdent  map[any]externalKey
	stableID func(any) string
}

// NewExternalizer returns an empty Externalizer. Ids are never
// derived from the object: every Add call passes an explicit id.
func NewExternalizer() *Externalizer {
	return &Externalizer{
		byKey:   make(map[externalKey]any),
		byIdent: make(map[any]externalKey),
	}
}

// Add registers obj under (typeName, stableID). Re-adding the same
// object under the same key is a no-op.
func (e *Externalizer) Add(typeName, stableID string, obj any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := externalKey{typeName: typeName, stableID: stableID}
	e.byKey[key] = obj
	e.byIdent[identityKey(obj)] = key
}

// Lookup resolves (typeName, stableID) to the registered object.
func (e *Externalizer) Lookup(typeName, stableID string) (any, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	obj, ok := e.byKey[externalKey{typeName: typeName, stableID: stableID}]
	if !ok {
		return nil, &UnknownExternalError{TypeName: typeName, StableID: stableID}
	}
	return obj, nil
}

// Identify reports whether obj was registered and, if so, the key it
// was registered under.
func (e *Externalizer) Identify(obj any) (typeName, stableID string, ok bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	key, found := e.byIdent[identityKey(obj)]
	if !found {
		return "", "", false
	}
	return key.typeName, key.stableID, true
}

// identityKey normalizes obj to something comparable as a map key
// representing object identity: pointers and interfaces holding
// pointers compare by address already; everything else falls back to
// value equality, which is the best a duck-typed identifier table can
// offer without a pervasive handle scheme.
func identityKey(obj any) any {
	return obj
}
