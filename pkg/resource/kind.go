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
	"encoding/base64"
	"fmt"
	"sort"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Kind is the closed set of resource kinds the controller knows how to manage.
//
// Kinds are not dispatched dynamically on the manifest's "kind" string. A manifest
// whose kind is not listed here is rejected with ErrUnsupportedKind when it is
// loaded, before any reconciliation pass sees it.
type Kind string

const (
	KindNamespace      Kind = "Namespace"
	KindConfigMap      Kind = "ConfigMap"
	KindSecret         Kind = "Secret"
	KindServiceAccount Kind = "ServiceAccount"
	KindService        Kind = "Service"
	KindDeployment     Kind = "Deployment"
)

// ErrUnsupportedKind is returned by ParseKind for kinds outside the closed set.
var ErrUnsupportedKind = fmt.Errorf("unsupported resource kind")

// KindInfo describes how a kind is addressed and applied.
type KindInfo struct {
	Kind Kind

	// APIVersion is written into created objects.
	APIVersion string

	// Resource is the REST resource used by the dynamic client.
	Resource schema.GroupVersionResource

	// Namespaced is false for cluster-scoped kinds.
	Namespaced bool

	// Priority orders creates (ascending) and deletes (descending).
	// Containers such as namespaces must exist before their contents.
	Priority int

	// normalize rewrites declared fields into the shape the server reports.
	normalize func(fields map[string]interface{}) map[string]interface{}
}

var kinds = map[Kind]KindInfo{
	KindNamespace: {
		Kind:       KindNamespace,
		APIVersion: "v1",
		Resource:   corev1.SchemeGroupVersion.WithResource("namespaces"),
		Namespaced: false,
		Priority:   10,
	},
	KindServiceAccount: {
		Kind:       KindServiceAccount,
		APIVersion: "v1",
		Resource:   corev1.SchemeGroupVersion.WithResource("serviceaccounts"),
		Namespaced: true,
		Priority:   20,
	},
	KindConfigMap: {
		Kind:       KindConfigMap,
		APIVersion: "v1",
		Resource:   corev1.SchemeGroupVersion.WithResource("configmaps"),
		Namespaced: true,
		Priority:   20,
	},
	KindSecret: {
		Kind:       KindSecret,
		APIVersion: "v1",
		Resource:   corev1.SchemeGroupVersion.WithResource("secrets"),
		Namespaced: true,
		Priority:   20,
		normalize:  normalizeSecret,
	},
	KindService: {
		Kind:       KindService,
		APIVersion: "v1",
		Resource:   corev1.SchemeGroupVersion.WithResource("services"),
		Namespaced: true,
		Priority:   30,
	},
	KindDeployment: {
		Kind:       KindDeployment,
		APIVersion: "apps/v1",
		Resource:   appsv1.SchemeGroupVersion.WithResource("deployments"),
		Namespaced: true,
		Priority:   40,
	},
}

// ParseKind maps a manifest kind string onto the closed Kind set.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := kinds[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
	}
	return k, nil
}

// Info returns the descriptor of a kind. It panics on kinds that did not
// come from ParseKind or the Kind constants.
func (k Kind) Info() KindInfo {
	info, ok := kinds[k]
	if !ok {
		panic(fmt.Sprintf("resource: unknown kind %q", string(k)))
	}
	return info
}

// Priority is a shortcut for k.Info().Priority.
func (k Kind) Priority() int {
	return k.Info().Priority
}

// String returns the kind name.
func (k Kind) String() string {
	return string(k)
}

// Normalize applies the kind's field normalisation. The input is not modified.
func (k Kind) Normalize(fields map[string]interface{}) map[string]interface{} {
	info := k.Info()
	if info.normalize == nil {
		return fields
	}
	return info.normalize(fields)
}

// Kinds returns every supported kind in priority order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := kinds[out[i]].Priority, kinds[out[j]].Priority
		if pi != pj {
			return pi < pj
		}
		return out[i] < out[j]
	})
	return out
}

// normalizeSecret folds stringData into base64-encoded data, which is the only
// form the API server reports back.
func normalizeSecret(fields map[string]interface{}) map[string]interface{} {
	stringData, ok := fields["stringData"].(map[string]interface{})
	if !ok {
		return fields
	}

	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if k != "stringData" {
			out[k] = v
		}
	}

	data := map[string]interface{}{}
	if existing, ok := out["data"].(map[string]interface{}); ok {
		for k, v := range existing {
			data[k] = v
		}
	}
	for k, v := range stringData {
		data[k] = base64.StdEncoding.EncodeToString([]byte(fmt.Sprint(v)))
	}
	out["data"] = data

	return out
}
