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
	"errors"
	"fmt"
	"reflect"
)

// Sentinel error kinds. Callers should compare with errors.Is, not by
// inspecting message text; every error type below except
// AdapterFailureError and CodecError unwraps to one of these and
// carries the offending value so the chain still carries detail.
// AdapterFailureError and CodecError unwrap to the error they wrap.
var (
	ErrUnserializableType = errors.New("serial: type not supported for serialization")
	ErrDuplicateType      = errors.New("serial: canonical type name already registered")
	ErrUnknownType        = errors.New("serial: no restorator registered for type")
	ErrUnknownExternal    = errors.New("serial: external id not found")
	ErrUnknownReference   = errors.New("serial: dereference has no matching reference")
	ErrDuplicateReference = errors.New("serial: ref id declared twice")
	ErrCyclicImmutable    = errors.New("serial: cycle through an immutable or non-referenceable type")
	ErrUnknownField       = errors.New("serial: undeclared field")
	ErrCompatUnavailable  = errors.New("serial: requested codec or feature is not built in")
)

// UnserializableTypeError names the concrete Go type that defeated flattening.
type UnserializableTypeError struct {
	Type reflect.Type
}

func (e *UnserializableTypeError) Error() string {
	return fmt.Sprintf("serial: type %v not supported for serialization", e.Type)
}

func (e *UnserializableTypeError) Unwrap() error { return ErrUnserializableType }

// DuplicateTypeError names the canonical type name that collided.
type DuplicateTypeError struct {
	TypeName string
}

func (e *DuplicateTypeError) Error() string {
	return fmt.Sprintf("serial: type %q already has a different restorator registered", e.TypeName)
}

func (e *DuplicateTypeError) Unwrap() error { return ErrDuplicateType }

// UnknownTypeError names the type that decoding could not resolve.
type UnknownTypeError struct {
	TypeName string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("serial: type %q is not registered", e.TypeName)
}

func (e *UnknownTypeError) Unwrap() error { return ErrUnknownType }

// UnknownExternalError names the external identifier that had no match.
type UnknownExternalError struct {
	TypeName string
	StableID string
}

func (e *UnknownExternalError) Error() string {
	return fmt.Sprintf("serial: external (%q, %q) not found in externalizer", e.TypeName, e.StableID)
}

func (e *UnknownExternalError) Unwrap() error { return ErrUnknownExternal }

// UnknownReferenceError names the orphaned ref id.
type UnknownReferenceError struct {
	RefID int
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("serial: dereference to ref %d has no declaring reference", e.RefID)
}

func (e *UnknownReferenceError) Unwrap() error { return ErrUnknownReference }

// DuplicateReferenceError names the ref id declared more than once.
type DuplicateReferenceError struct {
	RefID int
}

func (e *DuplicateReferenceError) Error() string {
	return fmt.Sprintf("serial: ref %d declared more than once", e.RefID)
}

func (e *DuplicateReferenceError) Unwrap() error { return ErrDuplicateReference }

// CyclicImmutableError names the type that cannot safely participate in a cycle.
type CyclicImmutableError struct {
	TypeName string
}

func (e *CyclicImmutableError) Error() string {
	return fmt.Sprintf("serial: %q is immutable or non-referenceable and cannot appear in a cycle", e.TypeName)
}

func (e *CyclicImmutableError) Unwrap() error { return ErrCyclicImmutable }

// UnknownFieldError names the undeclared field name a formatable
// constructor was given.
type UnknownFieldError struct {
	TypeName  string
	FieldName string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("serial: %q has no declared field %q", e.TypeName, e.FieldName)
}

func (e *UnknownFieldError) Unwrap() error { return ErrUnknownField }

// AdapterFailureError wraps an error returned by a version-adaption
// step. A step that panics is not recovered.
type AdapterFailureError struct {
	Version int
	Err     error
}

func (e *AdapterFailureError) Error() string {
	return fmt.Sprintf("serial: version adapter step to version %d failed: %v", e.Version, e.Err)
}

func (e *AdapterFailureError) Unwrap() error { return e.Err }

// CodecError wraps a malformed-input failure from a wire codec.
type CodecError struct {
	Codec string
	Err   error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("serial: %s codec: %v", e.Codec, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }
