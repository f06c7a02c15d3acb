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
	"context"
	"fmt"
	"log/slog"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"syncwarden/pkg/resource"
)

// Config contains configuration options for connecting to a cluster.
type Config struct {
	// Kubeconfig path for out-of-cluster configuration.
	// If empty, uses in-cluster configuration.
	Kubeconfig string

	// Timeout bounds each API request. Zero means no client-side timeout.
	Timeout time.Duration
}

// ClientError represents errors that occur while building the Kubernetes client.
type ClientError struct {
	Operation string
	Err       error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("k8s client error during %s: %v", e.Operation, e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// Kubernetes is a Target backed by the dynamic client.
//
// Objects are handled as unstructured maps so that no kind-specific typed
// client is needed; the per-kind differences live in the strategies table.
type Kubernetes struct {
	client dynamic.Interface
	logger *slog.Logger
}

// NewKubernetes wraps an existing dynamic client. This is the constructor used
// by tests with a fake client.
func NewKubernetes(client dynamic.Interface, logger *slog.Logger) *Kubernetes {
	if logger == nil {
		logger = slog.Default()
	}
	return &Kubernetes{client: client, logger: logger}
}

// NewKubernetesFromConfig builds a dynamic client from a kubeconfig file, or
// from the in-cluster service account when cfg.Kubeconfig is empty.
//
// Example:
//
//	// In-cluster
//	target, err := cluster.NewKubernetesFromConfig(cluster.Config{}, logger)
//
//	// Out-of-cluster
//	target, err := cluster.NewKubernetesFromConfig(cluster.Config{
//	    Kubeconfig: "/path/to/kubeconfig",
//	}, logger)
func NewKubernetesFromConfig(cfg Config, logger *slog.Logger) (*Kubernetes, error) {
	var restConfig *rest.Config
	var err error

	if cfg.Kubeconfig != "" {
		restConfig, err = clientcmd.BuildConfigFromFlags("", cfg.Kubeconfig)
		if err != nil {
			return nil, &ClientError{Operation: "build kubeconfig", Err: err}
		}
	} else {
		restConfig, err = rest.InClusterConfig()
		if err != nil {
			return nil, &ClientError{Operation: "get in-cluster config", Err: err}
		}
	}

	restConfig.Timeout = cfg.Timeout

	client, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, &ClientError{Operation: "create dynamic client", Err: err}
	}

	return NewKubernetes(client, logger), nil
}

// managedSelector restricts List to objects the controller owns.
var managedSelector = labels.SelectorFromSet(labels.Set{resource.ManagedByLabel: resource.ManagedByValue}).String()

func (k *Kubernetes) resourceFor(id resource.Identity) dynamic.ResourceInterface {
	info := id.Kind.Info()
	if info.Namespaced {
		return k.client.Resource(info.Resource).Namespace(id.Namespace)
	}
	return k.client.Resource(info.Resource)
}

// List implements Target.
func (k *Kubernetes) List(ctx context.Context, kind resource.Kind) ([]resource.State, error) {
	info := kind.Info()

	var ri dynamic.ResourceInterface = k.client.Resource(info.Resource)
	if info.Namespaced {
		ri = k.client.Resource(info.Resource).Namespace(metav1.NamespaceAll)
	}

	list, err := ri.List(ctx, metav1.ListOptions{LabelSelector: managedSelector})
	if err != nil {
		return nil, Classify("list", resource.Identity{Kind: kind}, err)
	}

	states := make([]resource.State, 0, len(list.Items))
	for i := range list.Items {
		states = append(states, stateFromObject(kind, &list.Items[i]))
	}
	resource.SortStates(states)
	return states, nil
}

// Get implements Target.
func (k *Kubernetes) Get(ctx context.Context, id resource.Identity) (resource.State, error) {
	obj, err := k.resourceFor(id).Get(ctx, id.Name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return resource.State{}, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return resource.State{}, Classify("get", id, err)
	}
	return stateFromObject(id.Kind, obj), nil
}

// Create implements Target.
func (k *Kubernetes) Create(ctx context.Context, spec resource.Spec) (resource.State, error) {
	obj := objectFromSpec(spec)

	created, err := k.resourceFor(spec.ID).Create(ctx, obj, metav1.CreateOptions{})
	if err != nil {
		return resource.State{}, Classify("create", spec.ID, err)
	}

	k.logger.Debug("Created object", "id", spec.ID.String(), "version", created.GetResourceVersion())
	return stateFromObject(spec.ID.Kind, created), nil
}

// Update implements Target.
//
// Kinds with server-assigned immutable fields (see strategyFor) read the live
// object first and carry those fields over, so the replace does not clear them.
func (k *Kubernetes) Update(ctx context.Context, spec resource.Spec, version string) (resource.State, error) {
	obj := objectFromSpec(spec)
	obj.SetResourceVersion(version)

	ri := k.resourceFor(spec.ID)

	if strategy := strategyFor(spec.ID.Kind); len(strategy.preserve) > 0 {
		live, err := ri.Get(ctx, spec.ID.Name, metav1.GetOptions{})
		if err != nil {
			return resource.State{}, Classify("update", spec.ID, err)
		}
		for _, path := range strategy.preserve {
			if value, found, _ := unstructured.NestedFieldNoCopy(live.Object, path...); found {
				if _, declared, _ := unstructured.NestedFieldNoCopy(obj.Object, path...); !declared {
					_ = unstructured.SetNestedField(obj.Object, runtimeCopy(value), path...)
				}
			}
		}
	}

	updated, err := ri.Update(ctx, obj, metav1.UpdateOptions{})
	if err != nil {
		return resource.State{}, Classify("update", spec.ID, err)
	}

	k.logger.Debug("Updated object",
		"id", spec.ID.String(),
		"from_version", version,
		"to_version", updated.GetResourceVersion())
	return stateFromObject(spec.ID.Kind, updated), nil
}

// Delete implements Target. The observed version is sent as a precondition.
func (k *Kubernetes) Delete(ctx context.Context, state resource.State) error {
	opts := metav1.DeleteOptions{}
	if state.Version != "" {
		version := state.Version
		opts.Preconditions = &metav1.Preconditions{ResourceVersion: &version}
	}

	err := k.resourceFor(state.ID).Delete(ctx, state.ID.Name, opts)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil
		}
		return Classify("delete", state.ID, err)
	}

	k.logger.Debug("Deleted object", "id", state.ID.String())
	return nil
}

// objectFromSpec renders a spec as the object submitted to the API server.
func objectFromSpec(spec resource.Spec) *unstructured.Unstructured {
	info := spec.ID.Kind.Info()

	obj := &unstructured.Unstructured{Object: map[string]interface{}{}}
	for key, value := range spec.Fields {
		obj.Object[key] = runtimeCopy(value)
	}
	obj.SetAPIVersion(info.APIVersion)
	obj.SetKind(string(info.Kind))
	obj.SetName(spec.ID.Name)
	if info.Namespaced {
		obj.SetNamespace(spec.ID.Namespace)
	}

	objLabels := make(map[string]string, len(spec.Labels)+1)
	for key, value := range spec.Labels {
		objLabels[key] = value
	}
	objLabels[resource.ManagedByLabel] = resource.ManagedByValue
	obj.SetLabels(objLabels)

	annotations := make(map[string]string, len(spec.Annotations)+1)
	for key, value := range spec.Annotations {
		annotations[key] = value
	}
	if spec.Generation != "" {
		annotations[resource.GenerationAnnotation] = spec.Generation
	}
	obj.SetAnnotations(annotations)

	return obj
}

// stateFromObject extracts the observed state of an object read from the API server.
func stateFromObject(kind resource.Kind, obj *unstructured.Unstructured) resource.State {
	fields := make(map[string]interface{}, len(obj.Object))
	for key, value := range obj.Object {
		switch key {
		case "apiVersion", "kind", "metadata", "status":
			continue
		}
		fields[key] = value
	}

	return resource.State{
		ID: resource.Identity{
			Kind:      kind,
			Namespace: obj.GetNamespace(),
			Name:      obj.GetName(),
		},
		Fields:  resource.DeepCopyFields(fields),
		Labels:  obj.GetLabels(),
		Version: obj.GetResourceVersion(),
		Ready:   strategyFor(kind).ready(obj),
	}
}

// runtimeCopy deep-copies a decoded value into the shapes the unstructured
// helpers accept: plain ints become int64.
func runtimeCopy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = runtimeCopy(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = runtimeCopy(t[i])
		}
		return out
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}
