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
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"syncwarden/pkg/controller"
	"syncwarden/pkg/diff"
)

func newPlanCmd(opts *options) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the actions the next sync pass would apply",
		Long: `Fetch the desired and observed state and print the resulting plan
without applying it.

Example usage:
  syncwarden plan --config config.yaml
  syncwarden plan --config config.yaml -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			// Plan output goes to stdout; keep logs out of it.
			cfg.Logging.Level = "ERROR"
			logger := newLogger(cfg)

			ctrl, err := controller.New(cmd.Context(), cfg, logger, controller.Dependencies{})
			if err != nil {
				return err
			}
			defer func() { _ = ctrl.Close() }()

			plan, err := ctrl.Plan(cmd.Context())
			if err != nil {
				return err
			}
			return writePlan(cmd.OutOrStdout(), plan, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table or json")
	return cmd
}

func writePlan(w io.Writer, plan *diff.Plan, output string) error {
	switch output {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(plan)
	case "table":
		renderPlan(w, plan)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}

func renderPlan(w io.Writer, plan *diff.Plan) {
	if plan.IsEmpty() {
		fmt.Fprintln(w, "No changes. The cluster matches the desired state.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Action", "Resource", "Fields"})

	for _, action := range plan.Actions {
		t.AppendRow(table.Row{actionColor(action.Type).Sprint(action.Type.String()), action.ID.String(), strings.Join(action.Fields, ", ")})
	}
	for _, drift := range plan.Drift {
		t.AppendRow(table.Row{text.FgYellow.Sprint("drift"), drift.ID.String(), strings.Join(drift.Fields, ", ")})
	}

	s := plan.Summary()
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d to create, %d to update, %d to delete, %d drifted",
		s.Creates, s.Updates, s.Deletes, s.Drifted), ""})
	t.Render()

	for _, warning := range plan.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
}

func actionColor(t diff.ActionType) text.Colors {
	switch t {
	case diff.ActionCreate:
		return text.Colors{text.FgGreen}
	case diff.ActionDelete:
		return text.Colors{text.FgRed}
	default:
		return text.Colors{text.FgCyan}
	}
}
