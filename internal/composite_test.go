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

package internal

import (
	"context"
	"testing"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/require"

	"github.com/tasquencer/tasquencer/store/memstore"
)

// S3 — canceling a root workflow cascades through its composite task's
// child workflow, and a child's terminal state can itself complete the
// parent's composite task via DefaultPolicy before the parent's own
// cancellation sweep reaches it.
func TestCompositeCascadeCancel(t *testing.T) {
	child := NewBuilder("triageWorkflow", "v1")
	child.Condition("start", ConditionStart)
	child.Condition("afterTriage", ConditionIntermediate)
	child.Condition("end", ConditionEnd)
	atomic(child, "triage")
	atomic(child, "assignDoctor")
	child.Arc("start", "triage").Arc("triage", "afterTriage")
	child.Arc("afterTriage", "assignDoctor").Arc("assignDoctor", "end")
	childDef, err := child.Build()
	require.NoError(t, err)

	parent := NewBuilder("caseIntake", "v1")
	parent.Condition("start", ConditionStart)
	parent.Condition("afterDiagnostics", ConditionIntermediate)
	parent.Condition("end", ConditionEnd)
	parent.Task("diagnostics", TaskComposite,
		WithComposite("triageWorkflow", "v1"),
		WithActivities(Activities{
			OnEnabled: func(ec *ExecutionContext, h *TaskHandle) error {
				_, err := h.InitializeChildWorkflow("", nil)
				return err
			},
		}),
	)
	atomic(parent, "done")
	parent.Arc("start", "diagnostics").Arc("diagnostics", "afterDiagnostics")
	parent.Arc("afterDiagnostics", "done").Arc("done", "end")
	parentDef, err := parent.Build()
	require.NoError(t, err)

	store := memstore.New()
	reg := NewRegistry(store, WithClock(clock.NewMock()))
	require.NoError(t, reg.RegisterDefinition(childDef))
	require.NoError(t, reg.RegisterDefinition(parentDef))

	ctx := context.Background()
	parentID, err := reg.InitializeRootWorkflow(ctx, "caseIntake", "v1", nil, "", "")
	require.NoError(t, err)

	children := childWorkflows(t, reg, parentID)
	require.Len(t, children, 1)
	childID := children[0].ID

	childTriage := getLatestTask(t, reg, childID, "triage")
	require.Equal(t, TaskEnabled, childTriage.State)

	require.NoError(t, reg.CancelRootWorkflow(ctx, parentID, nil))

	parentWF := getWorkflow(t, reg, parentID)
	require.Equal(t, WorkflowCanceled, parentWF.State)

	childWF := getWorkflow(t, reg, childID)
	require.Equal(t, WorkflowCanceled, childWF.State)

	triageAfter := getLatestTask(t, reg, childID, "triage")
	require.Equal(t, TaskCanceled, triageAfter.State)
	triageItems := getWorkItems(t, reg, triageAfter.ParentRef())
	require.Len(t, triageItems, 1)
	require.Equal(t, WorkItemCanceled, triageItems[0].State)

	// DefaultPolicy sees the child's lone generation finalized (by
	// cancellation) and completes the composite task before the parent's
	// own cancellation sweep ever reaches it.
	diagnosticsAfter := getLatestTask(t, reg, parentID, "diagnostics")
	require.Equal(t, TaskCompleted, diagnosticsAfter.State)

	// "done" was enabled by that completion's propagation and then
	// canceled by the same cascade pass that cancels the parent workflow.
	doneAfter := getLatestTask(t, reg, parentID, "done")
	require.Equal(t, TaskCanceled, doneAfter.State)
}

func childWorkflows(t *testing.T, reg *Registry, workflowID WorkflowID) []*WorkflowRow {
	t.Helper()
	var rows []*WorkflowRow
	err := reg.store.Tx(context.Background(), func(tx Tx) error {
		r, err := tx.ChildWorkflowsOfWorkflow(workflowID)
		rows = r
		return err
	})
	require.NoError(t, err)
	return rows
}
