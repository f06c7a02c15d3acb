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
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"syncwarden/pkg/resource"
)

// strategy holds the per-kind apply behaviour of the Kubernetes target.
type strategy struct {
	// preserve lists field paths the server assigns and refuses to change.
	// They are copied from the live object on update unless declared.
	preserve [][]string

	// ready reports whether an observed object is serving.
	ready func(obj *unstructured.Unstructured) bool
}

func alwaysReady(*unstructured.Unstructured) bool { return true }

var strategies = map[resource.Kind]strategy{
	resource.KindNamespace: {
		ready: func(obj *unstructured.Unstructured) bool {
			phase, found, _ := unstructured.NestedString(obj.Object, "status", "phase")
			return !found || phase == "Active"
		},
	},
	resource.KindConfigMap:      {ready: alwaysReady},
	resource.KindSecret:         {ready: alwaysReady},
	resource.KindServiceAccount: {ready: alwaysReady},
	resource.KindService: {
		preserve: [][]string{
			{"spec", "clusterIP"},
			{"spec", "clusterIPs"},
		},
		ready: alwaysReady,
	},
	resource.KindDeployment: {
		ready: deploymentReady,
	},
}

func strategyFor(kind resource.Kind) strategy {
	if s, ok := strategies[kind]; ok {
		return s
	}
	return strategy{ready: alwaysReady}
}

// deploymentReady compares available replicas with the desired count (default 1).
func deploymentReady(obj *unstructured.Unstructured) bool {
	want, found, err := unstructured.NestedFieldNoCopy(obj.Object, "spec", "replicas")
	desired := int64(1)
	if found && err == nil {
		desired = toInt64(want)
	}
	if desired == 0 {
		return true
	}

	available, found, err := unstructured.NestedFieldNoCopy(obj.Object, "status", "availableReplicas")
	if !found || err != nil {
		return false
	}
	return toInt64(available) >= desired
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
