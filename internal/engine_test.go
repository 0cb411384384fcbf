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

// autoWorkItem wires an atomic task to spawn exactly one work item the
// moment it becomes enabled, the shape every scenario test below drives
// through StartWorkItem/CompleteWorkItem.
func autoWorkItem() Activities {
	return Activities{
		OnEnabled: func(ec *ExecutionContext, h *TaskHandle) error {
			_, err := h.InitializeWorkItem()
			return err
		},
	}
}

func atomic(b *Builder, name string, opts ...TaskOption) *Builder {
	opts = append([]TaskOption{WithActivities(autoWorkItem()), WithWorkItem(WorkItemActions{})}, opts...)
	return b.Task(name, TaskAtomic, opts...)
}

func newTestRegistry(t *testing.T) (*Registry, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	reg := NewRegistry(store, WithClock(clock.NewMock()))
	return reg, store
}

// driveTaskToCompletion drives workflowID's named atomic task's sole work item
// from initialized through completed, triggering the split and
// downstream propagation.
func driveTaskToCompletion(t *testing.T, reg *Registry, workflowID WorkflowID, taskName string) {
	t.Helper()
	ctx := context.Background()
	task := getLatestTask(t, reg, workflowID, taskName)
	require.Equal(t, TaskEnabled, task.State)
	items := getWorkItems(t, reg, ParentRef{WorkflowID: workflowID, TaskName: taskName, TaskGeneration: task.Generation})
	require.Len(t, items, 1)
	require.NoError(t, reg.StartWorkItem(ctx, items[0].ID, nil))
	require.NoError(t, reg.CompleteWorkItem(ctx, items[0].ID, nil))
}

func getLatestTask(t *testing.T, reg *Registry, workflowID WorkflowID, name string) *TaskRow {
	t.Helper()
	row := getLatestTaskOrNil(t, reg, workflowID, name)
	require.NotNil(t, row, "task %q not found", name)
	return row
}

// getLatestTaskOrNil returns nil for a task whose join has never fired —
// newGeneration only runs once a task's join is satisfied (task.go), so an
// xor-split's unchosen branch never gets a row at all, not a disabled one.
func getLatestTaskOrNil(t *testing.T, reg *Registry, workflowID WorkflowID, name string) *TaskRow {
	t.Helper()
	var row *TaskRow
	err := reg.store.Tx(context.Background(), func(tx Tx) error {
		r, err := tx.TaskByNameGeneration(workflowID, name, 0)
		row = r
		return err
	})
	require.NoError(t, err)
	return row
}

func getWorkItems(t *testing.T, reg *Registry, parent ParentRef) []*WorkItemRow {
	t.Helper()
	var rows []*WorkItemRow
	err := reg.store.Tx(context.Background(), func(tx Tx) error {
		r, err := tx.WorkItemsByTaskGeneration(parent)
		rows = r
		return err
	})
	require.NoError(t, err)
	return rows
}

func getWorkflow(t *testing.T, reg *Registry, id WorkflowID) *WorkflowRow {
	t.Helper()
	var row *WorkflowRow
	err := reg.store.Tx(context.Background(), func(tx Tx) error {
		r, err := tx.GetWorkflow(id)
		row = r
		return err
	})
	require.NoError(t, err)
	return row
}

func getCondition(t *testing.T, reg *Registry, id WorkflowID, name string) *ConditionRow {
	t.Helper()
	var row *ConditionRow
	err := reg.store.Tx(context.Background(), func(tx Tx) error {
		r, err := tx.ConditionByName(id, name)
		row = r
		return err
	})
	require.NoError(t, err)
	return row
}

// S1 — AND-split/AND-join checkout.
func TestCheckoutANDSplitANDJoin(t *testing.T) {
	b := NewBuilder("checkout", "v1")
	b.Condition("start", ConditionStart)
	b.Condition("afterScan", ConditionIntermediate)
	b.Condition("afterPayPack", ConditionIntermediate)
	b.Condition("afterPayReceipt", ConditionIntermediate)
	b.Condition("afterPack", ConditionIntermediate)
	b.Condition("afterReceipt", ConditionIntermediate)
	b.Condition("end", ConditionEnd)

	atomic(b, "scan_goods")
	atomic(b, "pay", WithSplit(SplitAnd))
	atomic(b, "pack_goods")
	atomic(b, "issue_receipt")
	atomic(b, "check_goods", WithJoin(JoinAnd))

	b.Arc("start", "scan_goods").Arc("scan_goods", "afterScan")
	b.Arc("afterScan", "pay")
	b.Arc("pay", "afterPayPack")
	b.Arc("pay", "afterPayReceipt")
	b.Arc("afterPayPack", "pack_goods").Arc("pack_goods", "afterPack")
	b.Arc("afterPayReceipt", "issue_receipt").Arc("issue_receipt", "afterReceipt")
	b.Arc("afterPack", "check_goods").Arc("afterReceipt", "check_goods")
	b.Arc("check_goods", "end")

	def, err := b.Build()
	require.NoError(t, err)

	reg, _ := newTestRegistry(t)
	require.NoError(t, reg.RegisterDefinition(def))

	ctx := context.Background()
	id, err := reg.InitializeRootWorkflow(ctx, "checkout", "v1", nil, "", "")
	require.NoError(t, err)

	driveTaskToCompletion(t, reg, id, "scan_goods")
	driveTaskToCompletion(t, reg, id, "pay")
	driveTaskToCompletion(t, reg, id, "pack_goods")
	driveTaskToCompletion(t, reg, id, "issue_receipt")
	driveTaskToCompletion(t, reg, id, "check_goods")

	wf := getWorkflow(t, reg, id)
	require.Equal(t, WorkflowCompleted, wf.State)
	for _, name := range []string{"scan_goods", "pay", "pack_goods", "issue_receipt", "check_goods"} {
		row := getLatestTask(t, reg, id, name)
		require.Equal(t, TaskCompleted, row.State, "task %q", name)
	}
	end := getCondition(t, reg, id, "end")
	require.Equal(t, 1, end.Marking)
}

// S2 — XOR-join loop produces two distinct generations for the
// downstream task.
func TestXorJoinLoopGeneratesNewGeneration(t *testing.T) {
	b := NewBuilder("loopy", "v1")
	b.Condition("start", ConditionStart)
	b.Condition("afterA", ConditionIntermediate)
	b.Condition("postAB", ConditionIntermediate)
	b.Condition("afterC", ConditionIntermediate)
	b.Condition("end", ConditionEnd)

	atomic(b, "a", WithSplit(SplitAnd))
	atomic(b, "b")
	atomic(b, "c", WithJoin(JoinXor))
	atomic(b, "d")

	b.Arc("start", "a")
	b.Arc("a", "afterA")
	b.Arc("a", "postAB")
	b.Arc("afterA", "b")
	b.Arc("b", "postAB")
	b.Arc("postAB", "c")
	b.Arc("c", "afterC")
	b.Arc("afterC", "d")
	b.Arc("d", "end")

	def, err := b.Build()
	require.NoError(t, err)

	reg, _ := newTestRegistry(t)
	require.NoError(t, reg.RegisterDefinition(def))

	ctx := context.Background()
	id, err := reg.InitializeRootWorkflow(ctx, "loopy", "v1", nil, "", "")
	require.NoError(t, err)

	driveTaskToCompletion(t, reg, id, "a")
	firstC := getLatestTask(t, reg, id, "c")
	require.Equal(t, 1, firstC.Generation)

	// c's first generation must finalize before b's completion can push a
	// second token into postAB and re-enable c — tryEnableTask leaves an
	// already-active generation alone (engine.go's "already active; nothing
	// to do" guard).
	driveTaskToCompletion(t, reg, id, "c")

	driveTaskToCompletion(t, reg, id, "b")
	secondC := getLatestTask(t, reg, id, "c")
	require.Equal(t, 2, secondC.Generation)
	require.NotEqual(t, firstC.ID, secondC.ID)
}

// S5 — XOR-split route callback chooses exactly one output.
func TestBudgetRoutingXorSplit(t *testing.T) {
	// amount is captured by route's closure rather than threaded through
	// context, since the split evaluates inside CompleteWorkItem's own
	// transaction, not the ctx InitializeRootWorkflow was called with.
	build := func(amount int) *Definition {
		route := func(ec *ExecutionContext, h *TaskHandle) (string, error) {
			if amount < 50000 {
				return "directorApproval", nil
			}
			return "executiveApproval", nil
		}

		b := NewBuilder("budget", "v1")
		b.Condition("start", ConditionStart)
		b.Condition("afterDirector", ConditionIntermediate)
		b.Condition("afterExecutive", ConditionIntermediate)
		b.Condition("end", ConditionEnd)

		atomic(b, "developBudget", WithSplit(SplitXor), WithRoute(route))
		atomic(b, "directorApproval")
		atomic(b, "executiveApproval")

		b.Arc("start", "developBudget")
		b.Arc("developBudget", "afterDirector")
		b.Arc("developBudget", "afterExecutive")
		b.Arc("afterDirector", "directorApproval")
		b.Arc("afterExecutive", "executiveApproval")
		b.Arc("directorApproval", "end")
		b.Arc("executiveApproval", "end")
		def, err := b.Build()
		require.NoError(t, err)
		return def
	}

	run := func(t *testing.T, amount int, wantChosen, wantUnchosen string) {
		reg, _ := newTestRegistry(t)
		require.NoError(t, reg.RegisterDefinition(build(amount)))
		ctx := context.Background()
		id, err := reg.InitializeRootWorkflow(ctx, "budget", "v1", nil, "", "")
		require.NoError(t, err)

		driveTaskToCompletion(t, reg, id, "developBudget")

		chosen := getLatestTask(t, reg, id, wantChosen)
		require.Equal(t, TaskEnabled, chosen.State)
		require.Nil(t, getLatestTaskOrNil(t, reg, id, wantUnchosen),
			"xor split must never enable %q", wantUnchosen)
	}

	t.Run("under threshold routes to director", func(t *testing.T) {
		run(t, 30000, "directorApproval", "executiveApproval")
	})
	t.Run("over threshold routes to executive", func(t *testing.T) {
		run(t, 75000, "executiveApproval", "directorApproval")
	})
}
