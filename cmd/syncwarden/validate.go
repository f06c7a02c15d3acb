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

package main

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"syncwarden/pkg/alerting"
	"syncwarden/pkg/controller"
	"syncwarden/pkg/core/config"
	"syncwarden/pkg/diff"
	"syncwarden/pkg/resource"
	"syncwarden/pkg/source"
)

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration, alert rules and manifests offline",
		Long: `Check the configuration file, the alert rules and every manifest in the
source directory without contacting the cluster or Prometheus.

Example usage:
  syncwarden validate --config config.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return validate(cmd, cfg, cmd.OutOrStdout())
		},
	}
}

func validate(cmd *cobra.Command, cfg *config.Config, w io.Writer) error {
	rules := controller.AlertRules(&cfg.Alerting)
	if err := alerting.ValidateRules(rules); err != nil {
		return fmt.Errorf("invalid alert rules: %w", err)
	}

	dir := source.NewDirectory(source.DirectoryConfig{
		Path:             cfg.Source.Path,
		Subdir:           cfg.Source.Subdir,
		DefaultNamespace: cfg.Source.DefaultNamespace,
	}, newLogger(cfg))

	specs, err := dir.Fetch(cmd.Context())
	if err != nil {
		return fmt.Errorf("invalid manifests: %w", err)
	}

	// Against an empty cluster every declaration becomes a create, which
	// surfaces duplicate declarations as warnings.
	plan := diff.Compute(specs, nil, diff.Policy{})

	renderKinds(w, specs)
	fmt.Fprintf(w, "%d alert rules OK\n", len(rules))

	if len(plan.Warnings) > 0 {
		for _, warning := range plan.Warnings {
			fmt.Fprintf(w, "warning: %s\n", warning)
		}
		return errors.New("manifests contain duplicate declarations")
	}
	return nil
}

func renderKinds(w io.Writer, specs []resource.Spec) {
	counts := map[resource.Kind]int{}
	for _, spec := range specs {
		counts[spec.ID.Kind]++
	}
	kinds := make([]resource.Kind, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i].Priority() < kinds[j].Priority() })

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Kind", "Manifests"})
	for _, kind := range kinds {
		t.AppendRow(table.Row{string(kind), counts[kind]})
	}
	t.AppendFooter(table.Row{"Total", len(specs)})
	t.Render()
}
