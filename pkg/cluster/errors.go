// Copyright 2025 Philipp Hossner
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cluster

import (
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"syncwarden/pkg/resource"
)

// ErrNotFound is returned by Target.Get when the identity does not exist.
var ErrNotFound = errors.New("resource not found")

// ErrorClass tells the applier how to react to a failed call.
type ErrorClass int

const (
	// ClassTransient errors (timeouts, network failures, server overload) are retried with backoff.
	ClassTransient ErrorClass = iota
	// ClassConflict errors mean the version token was stale; the identity is re-read before retrying.
	ClassConflict
	// ClassPermanent errors (malformed spec, authorization denial) fail the action immediately.
	ClassPermanent
)

// String returns the class name used in summaries and metric labels.
func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassConflict:
		return "conflict"
	case ClassPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// MarshalText encodes the class by name.
func (c ErrorClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// TransientError wraps a failure that may succeed when retried.
type TransientError struct {
	Op  string
	ID  resource.Identity
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error during %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// ConflictError reports a version-token mismatch with a concurrent writer.
type ConflictError struct {
	Op  string
	ID  resource.Identity
	Err error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict during %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// PermanentError wraps a failure that retrying cannot fix.
type PermanentError struct {
	Op  string
	ID  resource.Identity
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent error during %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Classify wraps err in the typed error matching its class. Errors that are
// already typed are returned unchanged; nil stays nil.
//
// Kubernetes API errors are mapped as follows:
//   - Conflict, AlreadyExists, NotFound: ConflictError (the observed state is stale)
//   - Forbidden, Unauthorized, Invalid, BadRequest, MethodNotSupported: PermanentError
//   - anything else, including context deadlines: TransientError
func Classify(op string, id resource.Identity, err error) error {
	if err == nil {
		return nil
	}

	var (
		transient *TransientError
		conflict  *ConflictError
		permanent *PermanentError
	)
	if errors.As(err, &transient) || errors.As(err, &conflict) || errors.As(err, &permanent) {
		return err
	}

	switch {
	case apierrors.IsConflict(err), apierrors.IsAlreadyExists(err), apierrors.IsNotFound(err), errors.Is(err, ErrNotFound):
		return &ConflictError{Op: op, ID: id, Err: err}
	case apierrors.IsForbidden(err), apierrors.IsUnauthorized(err), apierrors.IsInvalid(err),
		apierrors.IsBadRequest(err), apierrors.IsMethodNotSupported(err), errors.Is(err, resource.ErrUnsupportedKind):
		return &PermanentError{Op: op, ID: id, Err: err}
	default:
		return &TransientError{Op: op, ID: id, Err: err}
	}
}

// ClassOf returns the class of err. Untyped errors count as transient.
func ClassOf(err error) ErrorClass {
	var (
		conflict  *ConflictError
		permanent *PermanentError
	)
	switch {
	case errors.As(err, &permanent):
		return ClassPermanent
	case errors.As(err, &conflict):
		return ClassConflict
	default:
		return ClassTransient
	}
}

// IsTransient reports whether err should be retried with backoff.
func IsTransient(err error) bool {
	return err != nil && ClassOf(err) == ClassTransient
}

// IsConflict reports whether err is a version conflict.
func IsConflict(err error) bool {
	return err != nil && ClassOf(err) == ClassConflict
}

// IsPermanent reports whether err must not be retried.
func IsPermanent(err error) bool {
	return err != nil && ClassOf(err) == ClassPermanent
}
