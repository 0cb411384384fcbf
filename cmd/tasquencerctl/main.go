// Copyright (c) 2026 tasquencer authors.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Command tasquencerctl is an operator CLI for inspecting and driving a
// tasquencer engine instance: workflow state, audit trace, and migration
// (§4's supplemented operator surface).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tasquencer/tasquencer"
	"github.com/tasquencer/tasquencer/store/sqlstore"
)

var dbPath string

func main() {
	root := &cobra.Command{
		Use:   "tasquencerctl",
		Short: "Inspect and drive a tasquencer workflow store",
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "tasquencer.db", "path to the sqlite store")

	root.AddCommand(newInspectCmd())
	root.AddCommand(newTraceCmd())
	root.AddCommand(newStateCmd())
	root.AddCommand(newMigrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openRegistry() (*tasquencer.Registry, error) {
	store, err := sqlstore.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return tasquencer.NewRegistry(store), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <workflowId>",
		Short: "Print a workflow's current state, task states, and condition markings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry()
			if err != nil {
				return err
			}
			workflowID := tasquencer.WorkflowID(args[0])
			snap, err := reg.GetWorkflowStateAtTime(cmd.Context(), workflowID, time.Now())
			if err != nil {
				return err
			}
			return printJSON(snap)
		},
	}
}

func newTraceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trace <traceId>",
		Short: "Print every audit span recorded for a trace, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry()
			if err != nil {
				return err
			}
			spans, err := reg.Trace(cmd.Context(), tasquencer.TraceID(args[0]))
			if err != nil {
				return err
			}
			return printJSON(spans)
		},
	}
}

func newStateCmd() *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "state <workflowId>",
		Short: "Reconstruct a workflow's state as of a point in time (RFC3339, default now)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry()
			if err != nil {
				return err
			}
			at := time.Now()
			if asOf != "" {
				at, err = time.Parse(time.RFC3339, asOf)
				if err != nil {
					return fmt.Errorf("parse --as-of: %w", err)
				}
			}
			snap, err := reg.GetWorkflowStateAtTime(cmd.Context(), tasquencer.WorkflowID(args[0]), at)
			if err != nil {
				return err
			}
			return printJSON(snap)
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "RFC3339 timestamp to reconstruct state at")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <workflowId> <targetVersion>",
		Short: "Fast-forward a root workflow to targetVersion",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry()
			if err != nil {
				return err
			}
			newID, err := reg.Migrate(context.Background(), tasquencer.WorkflowID(args[0]), args[1])
			if err != nil {
				return err
			}
			fmt.Println(string(newID))
			return nil
		},
	}
}
