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

// Command syncwarden keeps a Kubernetes cluster in sync with a directory of
// manifests and raises alerts from Prometheus counters.
package main

import (
	"fmt"
	"os"

	_ "github.com/KimMachineGun/automemlimit"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "syncwarden",
		Short: "Declarative cluster sync with counter-based alerting",
		Long: `syncwarden reconciles Kubernetes resources against manifests in a
directory and evaluates alert rules over Prometheus counters.

Configuration is resolved in this order:
1. Command-line flags (highest priority)
2. Environment variables (SYNCWARDEN_*)
3. The configuration file (--config)
4. Default values (lowest priority)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.bindPersistent(root)
	root.AddCommand(newRunCmd(opts), newPlanCmd(opts), newValidateCmd(opts))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
