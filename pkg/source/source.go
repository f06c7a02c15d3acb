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

// Package source reads the declared desired state.
//
// A Source is read-only to the reconciler: it is fetched once per pass and may
// push change notifications between passes so that edits are applied without
// waiting for the next interval tick.
package source

import (
	"context"
	"fmt"

	"syncwarden/pkg/resource"
)

// Source provides desired-state snapshots.
type Source interface {
	// Fetch reads every declared resource. The returned slice is in source
	// order (file path, then document index); duplicates are passed through
	// for the diff engine to report.
	Fetch(ctx context.Context) ([]resource.Spec, error)

	// Watch calls notify after the declared state changed. It blocks until
	// ctx is cancelled. Sources that cannot push return nil immediately
	// after ctx is done.
	Watch(ctx context.Context, notify func()) error

	// Reference describes where the snapshot is read from, e.g. "dir:/etc/manifests".
	Reference() string
}

// LoadError reports a manifest that could not be turned into a Spec.
type LoadError struct {
	Path     string
	Document int
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s (document %d): %v", e.Path, e.Document, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Static is a Source over a fixed set of specs.
type Static struct {
	Specs []resource.Spec
	Ref   string
}

// Fetch implements Source.
func (s *Static) Fetch(ctx context.Context) ([]resource.Spec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]resource.Spec, len(s.Specs))
	copy(out, s.Specs)
	return out, nil
}

// Watch implements Source. Static sources never change.
func (s *Static) Watch(ctx context.Context, _ func()) error {
	<-ctx.Done()
	return nil
}

// Reference implements Source.
func (s *Static) Reference() string {
	if s.Ref == "" {
		return "static"
	}
	return s.Ref
}
