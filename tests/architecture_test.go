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

package tests

import (
	"testing"

	"github.com/arch-go/arch-go/api"
	"github.com/arch-go/arch-go/api/configuration"
)

// TestArchitecture validates that the codebase follows the defined architectural constraints.
//
// The rules live in arch-go.yml in the project root. Among others:
//   - resource and diff stay free of I/O backends
//   - the reconciler and the alert evaluator do not import each other
//   - core, metrics and events never reach into the controller
func TestArchitecture(t *testing.T) {
	moduleInfo := configuration.Load("syncwarden")

	config, err := configuration.LoadConfig("../arch-go.yml")
	if err != nil {
		t.Fatalf("Failed to load arch-go.yml configuration: %v", err)
	}

	result := api.CheckArchitecture(moduleInfo, *config)

	if !result.Pass {
		t.Errorf("Architecture validation failed!\n")

		// Print detailed violation information for dependencies rules
		if result.DependenciesRuleResult != nil && !result.DependenciesRuleResult.Passes {
			t.Errorf("Dependencies rule violations:")
			for _, ruleResult := range result.DependenciesRuleResult.Results {
				if !ruleResult.Passes {
					t.Errorf("\n  Rule: %s", ruleResult.Description)
					for _, verification := range ruleResult.Verifications {
						if !verification.Passes {
							t.Errorf("    Package: %s", verification.Package)
							for _, detail := range verification.Details {
								t.Errorf("      - %s", detail)
							}
						}
					}
				}
			}
		}

		t.Fatal("Architecture validation failed. See violations above.")
	}

	t.Logf("Architecture validation passed!")
	t.Logf("Duration: %v", result.Duration)
}
