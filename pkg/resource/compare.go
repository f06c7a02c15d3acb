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

package resource

import (
	"reflect"
	"sort"
)

// Matches reports whether every declared field is present in observed with a
// matching value.
//
// Matching is subset-based: maps may carry extra observed keys (server-side
// defaults), lists must have the same length and match element-wise, and
// numbers compare by value so that int64 from the API server equals float64
// from a decoded manifest.
func Matches(declared, observed map[string]interface{}) bool {
	return len(DifferingFields(declared, observed)) == 0
}

// DifferingFields returns the sorted top-level declared field names whose
// observed value does not match.
func DifferingFields(declared, observed map[string]interface{}) []string {
	var diff []string
	for key, want := range declared {
		got, ok := observed[key]
		if !ok {
			if isEmpty(want) {
				continue
			}
			diff = append(diff, key)
			continue
		}
		if !valueMatches(want, got) {
			diff = append(diff, key)
		}
	}
	sort.Strings(diff)
	return diff
}

func valueMatches(want, got interface{}) bool {
	switch w := want.(type) {
	case map[string]interface{}:
		g, ok := got.(map[string]interface{})
		if !ok {
			return len(w) == 0 && got == nil
		}
		for k, wv := range w {
			gv, exists := g[k]
			if !exists {
				if isEmpty(wv) {
					continue
				}
				return false
			}
			if !valueMatches(wv, gv) {
				return false
			}
		}
		return true

	case []interface{}:
		g, ok := got.([]interface{})
		if !ok {
			return len(w) == 0 && got == nil
		}
		if len(w) != len(g) {
			return false
		}
		for i := range w {
			if !valueMatches(w[i], g[i]) {
				return false
			}
		}
		return true
	}

	if wn, ok := toFloat(want); ok {
		gn, ok := toFloat(got)
		return ok && wn == gn
	}

	return reflect.DeepEqual(want, got)
}

// isEmpty treats nil, empty maps and empty lists as absent. The API server
// drops them on write, so declaring one must not count as drift.
func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case map[string]interface{}:
		return len(t) == 0
	case []interface{}:
		return len(t) == 0
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
