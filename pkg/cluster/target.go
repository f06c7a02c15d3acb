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

// Package cluster implements the external system the reconciler converges.
//
// A Target lists, reads and mutates resources by Identity. Implementations
// must honour the version token passed to Update so that concurrent writers
// are detected, and must only list objects labelled as managed by the
// controller. Errors are returned classified (see Classify) so the applier can
// decide between retry, re-read and failure.
package cluster

import (
	"context"
	"fmt"
	"time"

	"syncwarden/pkg/resource"
)

// Target is the live system resources are applied to.
type Target interface {
	// List returns the managed objects of one kind, in any namespace.
	List(ctx context.Context, kind resource.Kind) ([]resource.State, error)

	// Get returns one object, or an error matching ErrNotFound.
	Get(ctx context.Context, id resource.Identity) (resource.State, error)

	// Create creates the object declared by spec.
	Create(ctx context.Context, spec resource.Spec) (resource.State, error)

	// Update replaces the object declared by spec. version is the token last
	// observed; a mismatch yields a ConflictError.
	Update(ctx context.Context, spec resource.Spec, version string) (resource.State, error)

	// Delete removes the observed object. Deleting an object that no longer
	// exists succeeds.
	Delete(ctx context.Context, state resource.State) error
}

// ListAll lists every supported kind and returns the states sorted by identity.
// Each List call gets its own timeout when perKind is positive.
func ListAll(ctx context.Context, t Target, perKind time.Duration) ([]resource.State, error) {
	var all []resource.State
	for _, kind := range resource.Kinds() {
		listCtx, cancel := ctx, context.CancelFunc(func() {})
		if perKind > 0 {
			listCtx, cancel = context.WithTimeout(ctx, perKind)
		}
		states, err := t.List(listCtx, kind)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", kind, err)
		}
		all = append(all, states...)
	}
	resource.SortStates(all)
	return all, nil
}
