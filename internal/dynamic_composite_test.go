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

func singleTaskChildDef(workflowName, taskName string) *Definition {
	b := NewBuilder(workflowName, "v1")
	b.Condition("start", ConditionStart)
	b.Condition("end", ConditionEnd)
	atomic(b, taskName)
	b.Arc("start", taskName).Arc(taskName, "end")
	def, err := b.Build()
	if err != nil {
		panic(err) // test fixture, never expected to be malformed
	}
	return def
}

// S4 — a dynamic composite task's custom policy overrides the default
// fail-on-any-child-failure rule: here the parent completes once both
// candidates finalize, even though one of them failed.
func TestDynamicCompositeCustomPolicyCompletesDespiteFailure(t *testing.T) {
	workflowADef := singleTaskChildDef("workflowA", "taskA")
	workflowBDef := singleTaskChildDef("workflowB", "taskB")

	completeWhenAllFinalized := func(ec *ExecutionContext, h *TaskHandle, stats ChildStats) (PolicyDecision, error) {
		if stats.Completed+stats.Failed+stats.Canceled >= stats.Total {
			return PolicyComplete, nil
		}
		return PolicyContinue, nil
	}

	parent := NewBuilder("budgetDynamic", "v1")
	parent.Condition("start", ConditionStart)
	parent.Condition("afterSpawn", ConditionIntermediate)
	parent.Condition("end", ConditionEnd)
	parent.Task("spawnBoth", TaskDynamicComposite,
		WithDynamicComposite(
			DynamicCandidate{Name: "A", ChildWorkflowName: "workflowA", ChildVersionName: "v1"},
			DynamicCandidate{Name: "B", ChildWorkflowName: "workflowB", ChildVersionName: "v1"},
		),
		WithPolicy(completeWhenAllFinalized),
		WithActivities(Activities{
			OnEnabled: func(ec *ExecutionContext, h *TaskHandle) error {
				if _, err := h.InitializeChildWorkflow("A", nil); err != nil {
					return err
				}
				_, err := h.InitializeChildWorkflow("B", nil)
				return err
			},
		}),
	)
	atomic(parent, "closeOut")
	parent.Arc("start", "spawnBoth").Arc("spawnBoth", "afterSpawn")
	parent.Arc("afterSpawn", "closeOut").Arc("closeOut", "end")
	parentDef, err := parent.Build()
	require.NoError(t, err)

	store := memstore.New()
	reg := NewRegistry(store, WithClock(clock.NewMock()))
	require.NoError(t, reg.RegisterDefinition(workflowADef))
	require.NoError(t, reg.RegisterDefinition(workflowBDef))
	require.NoError(t, reg.RegisterDefinition(parentDef))

	ctx := context.Background()
	parentID, err := reg.InitializeRootWorkflow(ctx, "budgetDynamic", "v1", nil, "", "")
	require.NoError(t, err)

	kids := childWorkflows(t, reg, parentID)
	require.Len(t, kids, 2)
	var childA, childB *WorkflowRow
	for _, k := range kids {
		switch k.Name {
		case "workflowA":
			childA = k
		case "workflowB":
			childB = k
		}
	}
	require.NotNil(t, childA)
	require.NotNil(t, childB)

	// Fail workflowA's sole work item; the composite should not fail yet,
	// since workflowB hasn't finalized.
	taskA := getLatestTask(t, reg, childA.ID, "taskA")
	itemsA := getWorkItems(t, reg, taskA.ParentRef())
	require.Len(t, itemsA, 1)
	require.NoError(t, reg.StartWorkItem(ctx, itemsA[0].ID, nil))
	require.NoError(t, reg.FailWorkItem(ctx, itemsA[0].ID, nil))

	require.Equal(t, WorkflowFailed, getWorkflow(t, reg, childA.ID).State)
	require.Equal(t, TaskStarted, getLatestTask(t, reg, parentID, "spawnBoth").State)

	// Complete workflowB normally; now both candidates are finalized and
	// the custom policy completes the composite task.
	driveTaskToCompletion(t, reg, childB.ID, "taskB")
	require.Equal(t, WorkflowCompleted, getWorkflow(t, reg, childB.ID).State)

	require.Equal(t, TaskCompleted, getLatestTask(t, reg, parentID, "spawnBoth").State)

	driveTaskToCompletion(t, reg, parentID, "closeOut")
	require.Equal(t, WorkflowCompleted, getWorkflow(t, reg, parentID).State)
}
