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

package introspection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"k8s.io/client-go/util/jsonpath"
)

// ExtractField narrows data to a kubectl-style JSONPath expression such as
// {.last_summary.failures[*].id}. An empty expression returns data unchanged.
//
// data is round-tripped through JSON first, so struct values are addressed
// by their JSON field names.
func ExtractField(data any, expr string) (any, error) {
	if expr == "" {
		return data, nil
	}

	j := jsonpath.New("field").AllowMissingKeys(true)
	if err := j.Parse(expr); err != nil {
		return nil, fmt.Errorf("invalid jsonpath expression %q: %w", expr, err)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("failed to unmarshal data: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := j.Execute(buf, generic); err != nil {
		return nil, fmt.Errorf("failed to execute jsonpath: %w", err)
	}

	// jsonpath prints text; objects and arrays come back as JSON.
	var result any
	if buf.Len() > 0 {
		if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
			result = buf.String()
		}
	}
	return result, nil
}

// ParseFieldQuery returns the "field" query parameter.
func ParseFieldQuery(r *http.Request) string {
	return r.URL.Query().Get("field")
}
