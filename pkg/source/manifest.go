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

package source

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
	"sigs.k8s.io/yaml"

	"syncwarden/pkg/resource"
)

// DefaultNamespace is used for namespaced manifests that omit metadata.namespace.
const DefaultNamespace = "default"

// ParseManifests decodes a multi-document YAML stream into specs.
//
// Empty documents are skipped. origin is recorded on every spec and used in
// errors. defaultNamespace applies to namespaced kinds without a namespace.
func ParseManifests(data []byte, origin, defaultNamespace string) ([]resource.Spec, error) {
	if defaultNamespace == "" {
		defaultNamespace = DefaultNamespace
	}

	reader := utilyaml.NewYAMLReader(bufio.NewReader(bytes.NewReader(data)))

	var specs []resource.Spec
	for index := 0; ; index++ {
		doc, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &LoadError{Path: origin, Document: index, Err: err}
		}
		if len(bytes.TrimSpace(doc)) == 0 {
			continue
		}

		var manifest map[string]interface{}
		if err := yaml.Unmarshal(doc, &manifest); err != nil {
			return nil, &LoadError{Path: origin, Document: index, Err: err}
		}
		if len(manifest) == 0 {
			continue
		}

		spec, err := specFromManifest(manifest, defaultNamespace)
		if err != nil {
			return nil, &LoadError{Path: origin, Document: index, Err: err}
		}
		spec.Origin = origin
		specs = append(specs, spec)
	}

	return specs, nil
}

func specFromManifest(manifest map[string]interface{}, defaultNamespace string) (resource.Spec, error) {
	kindName, _ := manifest["kind"].(string)
	if kindName == "" {
		return resource.Spec{}, fmt.Errorf("missing kind")
	}
	kind, err := resource.ParseKind(kindName)
	if err != nil {
		return resource.Spec{}, err
	}
	info := kind.Info()

	if apiVersion, ok := manifest["apiVersion"].(string); ok && apiVersion != info.APIVersion {
		return resource.Spec{}, fmt.Errorf("%s must use apiVersion %s, got %s", kind, info.APIVersion, apiVersion)
	}

	metadata, _ := manifest["metadata"].(map[string]interface{})
	name, _ := metadata["name"].(string)
	if name == "" {
		return resource.Spec{}, fmt.Errorf("%s without metadata.name", kind)
	}

	namespace, _ := metadata["namespace"].(string)
	switch {
	case info.Namespaced && namespace == "":
		namespace = defaultNamespace
	case !info.Namespaced && namespace != "":
		return resource.Spec{}, fmt.Errorf("%s %s is cluster-scoped but declares namespace %s", kind, name, namespace)
	}

	labels, err := stringMap(metadata["labels"])
	if err != nil {
		return resource.Spec{}, fmt.Errorf("metadata.labels: %w", err)
	}
	annotations, err := stringMap(metadata["annotations"])
	if err != nil {
		return resource.Spec{}, fmt.Errorf("metadata.annotations: %w", err)
	}

	fields := make(map[string]interface{}, len(manifest))
	for key, value := range manifest {
		switch key {
		case "apiVersion", "kind", "metadata", "status":
			continue
		}
		fields[key] = value
	}

	generation, err := generationOf(manifest)
	if err != nil {
		return resource.Spec{}, err
	}

	return resource.Spec{
		ID:          resource.Identity{Kind: kind, Namespace: namespace, Name: name},
		Fields:      kind.Normalize(fields),
		Labels:      labels,
		Annotations: annotations,
		Generation:  generation,
	}, nil
}

// generationOf hashes the canonical JSON encoding of a manifest. encoding/json
// sorts map keys, so the hash does not depend on the key order in the file.
func generationOf(manifest map[string]interface{}) (string, error) {
	canonical, err := json.Marshal(manifest)
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:8]), nil
}

func stringMap(v interface{}) (map[string]string, error) {
	if v == nil {
		return nil, nil
	}
	raw, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a map, got %T", v)
	}
	out := make(map[string]string, len(raw))
	for key, value := range raw {
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("value of %s must be a string, got %T", key, value)
		}
		out[key] = s
	}
	return out, nil
}
