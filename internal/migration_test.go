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

// migratableAtomic is like atomic() but its OnEnabled checks ec.Mode()
// before spawning a work item, the shape a real activity uses to avoid
// doing real work while a migration hop is replaying old outcomes (§4.5
// step c, engine.go's runActivity contract).
func migratableAtomic(b *Builder, name string, opts ...TaskOption) *Builder {
	act := Activities{
		OnEnabled: func(ec *ExecutionContext, h *TaskHandle) error {
			if ec.Mode() == ModeFastForward {
				return nil
			}
			_, err := h.InitializeWorkItem()
			return err
		},
	}
	opts = append([]TaskOption{WithActivities(act), WithWorkItem(WorkItemActions{})}, opts...)
	return b.Task(name, TaskAtomic, opts...)
}

// S6 — a fast-forward migration hop replays a completed task's outcome,
// re-initializes a task mid-flight under "continue", and leaves a task
// the new net hasn't reached yet with no row at all.
func TestMigrationFastForwardAndContinue(t *testing.T) {
	v1 := NewBuilder("provisioning", "v1")
	v1.Condition("start", ConditionStart)
	v1.Condition("afterA", ConditionIntermediate)
	v1.Condition("end", ConditionEnd)
	atomic(v1, "A")
	atomic(v1, "B")
	v1.Arc("start", "A").Arc("A", "afterA")
	v1.Arc("afterA", "B").Arc("B", "end")
	v1Def, err := v1.Build()
	require.NoError(t, err)

	v2 := NewBuilder("provisioning", "v2")
	v2.Condition("start", ConditionStart)
	v2.Condition("afterA", ConditionIntermediate)
	v2.Condition("afterB", ConditionIntermediate)
	v2.Condition("end", ConditionEnd)
	migratableAtomic(v2, "A")
	migratableAtomic(v2, "B")
	migratableAtomic(v2, "C")
	v2.Arc("start", "A").Arc("A", "afterA")
	v2.Arc("afterA", "B").Arc("B", "afterB")
	v2.Arc("afterB", "C").Arc("C", "end")
	v2Def, err := v2.Build()
	require.NoError(t, err)

	store := memstore.New()
	reg := NewRegistry(store, WithClock(clock.NewMock()))
	require.NoError(t, reg.RegisterDefinition(v1Def))
	require.NoError(t, reg.RegisterDefinition(v2Def))
	reg.RegisterMigration("provisioning", &Migration{
		FromVersion: "v1",
		ToVersion:   "v2",
		TaskMigrators: map[string]TaskMigratorFunc{
			migrationKey("provisioning", "A"): func(ec *ExecutionContext, old *OldTaskView, newTask *TaskHandle) (MigrationDecision, error) {
				return MigrateFastForward, nil
			},
			migrationKey("provisioning", "B"): func(ec *ExecutionContext, old *OldTaskView, newTask *TaskHandle) (MigrationDecision, error) {
				return MigrateContinue, nil
			},
			migrationKey("provisioning", "C"): func(ec *ExecutionContext, old *OldTaskView, newTask *TaskHandle) (MigrationDecision, error) {
				return MigrateContinue, nil
			},
		},
	})

	ctx := context.Background()
	oldID, err := reg.InitializeRootWorkflow(ctx, "provisioning", "v1", nil, "", "")
	require.NoError(t, err)

	driveTaskToCompletion(t, reg, oldID, "A")

	newID, err := reg.Migrate(ctx, oldID, "v2")
	require.NoError(t, err)

	oldWF := getWorkflow(t, reg, oldID)
	require.Equal(t, WorkflowCanceled, oldWF.State)

	newWF := getWorkflow(t, reg, newID)
	require.Equal(t, WorkflowID(oldID), newWF.MigrationFromWorkflowID)

	require.Equal(t, TaskCompleted, getLatestTask(t, reg, newID, "A").State)
	require.Equal(t, TaskEnabled, getLatestTask(t, reg, newID, "B").State)
	require.Nil(t, getLatestTaskOrNil(t, reg, newID, "C"), "C hasn't been reached by fast-forward propagation yet")

	driveTaskToCompletion(t, reg, newID, "B")
	require.Equal(t, TaskEnabled, getLatestTask(t, reg, newID, "C").State)

	driveTaskToCompletion(t, reg, newID, "C")
	require.Equal(t, WorkflowCompleted, getWorkflow(t, reg, newID).State)
}
