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
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/require"

	"github.com/tasquencer/tasquencer/store/memstore"
)

// property 8 — a reconstructed snapshot at time t must match what the
// store actually held at t, both for plain linear progress and once a
// snapshot checkpoint exists to bound replay.
func TestGetWorkflowStateAtTimeMatchesLiveProgress(t *testing.T) {
	b := NewBuilder("onboarding", "v1")
	b.Condition("start", ConditionStart)
	b.Condition("afterVerify", ConditionIntermediate)
	b.Condition("end", ConditionEnd)
	atomic(b, "verify")
	atomic(b, "activate")
	b.Arc("start", "verify").Arc("verify", "afterVerify")
	b.Arc("afterVerify", "activate").Arc("activate", "end")
	def, err := b.Build()
	require.NoError(t, err)

	mock := clock.NewMock()
	store := memstore.New()
	reg := NewRegistry(store, WithClock(mock))
	require.NoError(t, reg.RegisterDefinition(def))

	ctx := context.Background()
	id, err := reg.InitializeRootWorkflow(ctx, "onboarding", "v1", nil, "", "")
	require.NoError(t, err)
	tInit := mock.Now()

	mock.Add(time.Minute)
	driveTaskToCompletion(t, reg, id, "verify")
	tVerify := mock.Now()

	mock.Add(time.Minute)
	driveTaskToCompletion(t, reg, id, "activate")
	tActivate := mock.Now()

	// At init, the net has only enabled its first task; the workflow row
	// itself hasn't recorded a Workflow.start span yet.
	before, err := reg.GetWorkflowStateAtTime(ctx, id, tInit)
	require.NoError(t, err)
	require.Equal(t, WorkflowInitialized, before.State)
	require.Equal(t, TaskEnabled, before.Tasks["verify"])
	_, activateSeen := before.Tasks["activate"]
	require.False(t, activateSeen, "activate must not appear before its join is ever satisfied")

	// Completing verify starts the workflow and, in the same instant,
	// enables activate via propagation — both land at tVerify.
	atVerify, err := reg.GetWorkflowStateAtTime(ctx, id, tVerify)
	require.NoError(t, err)
	require.Equal(t, WorkflowStarted, atVerify.State)
	require.Equal(t, TaskCompleted, atVerify.Tasks["verify"])
	require.Equal(t, TaskEnabled, atVerify.Tasks["activate"])

	atActivate, err := reg.GetWorkflowStateAtTime(ctx, id, tActivate)
	require.NoError(t, err)
	require.Equal(t, TaskCompleted, atActivate.Tasks["verify"])
	require.Equal(t, TaskCompleted, atActivate.Tasks["activate"])
	require.Equal(t, WorkflowCompleted, atActivate.State)

	live := getWorkflow(t, reg, id)
	require.Equal(t, live.State, atActivate.State, "reconstructed final state must match the live store row")
}

// A snapshot taken mid-flight must let reconstruction skip replaying spans
// before it, while still distinguishing states either side of it.
func TestGetWorkflowStateAtTimeUsesSnapshotCheckpoint(t *testing.T) {
	b := NewBuilder("provisioning2", "v1")
	b.Condition("start", ConditionStart)
	b.Condition("afterA", ConditionIntermediate)
	b.Condition("end", ConditionEnd)
	atomic(b, "a")
	atomic(b, "b")
	b.Arc("start", "a").Arc("a", "afterA")
	b.Arc("afterA", "b").Arc("b", "end")
	def, err := b.Build()
	require.NoError(t, err)

	mock := clock.NewMock()
	store := memstore.New()
	reg := NewRegistry(store, WithClock(mock))
	require.NoError(t, reg.RegisterDefinition(def))

	ctx := context.Background()
	id, err := reg.InitializeRootWorkflow(ctx, "provisioning2", "v1", nil, "", "")
	require.NoError(t, err)

	mock.Add(time.Minute)
	driveTaskToCompletion(t, reg, id, "a")

	require.NoError(t, reg.SnapshotWorkflow(ctx, id))
	snapshotAt := mock.Now()

	mock.Add(time.Minute)
	driveTaskToCompletion(t, reg, id, "b")

	snap, err := reg.GetWorkflowStateAtTime(ctx, id, mock.Now())
	require.NoError(t, err)
	require.Equal(t, TaskCompleted, snap.Tasks["a"])
	require.Equal(t, TaskCompleted, snap.Tasks["b"])
	require.Equal(t, WorkflowCompleted, snap.State)

	// A read at the snapshot timestamp must reflect b as merely enabled
	// (what the snapshot itself recorded), never its later completion.
	atSnapshot, err := reg.GetWorkflowStateAtTime(ctx, id, snapshotAt)
	require.NoError(t, err)
	require.Equal(t, TaskCompleted, atSnapshot.Tasks["a"])
	require.Equal(t, TaskEnabled, atSnapshot.Tasks["b"])
}

// property 8's other half — reconstruction must never leak another
// workflow's state even when both share one traceID (a composite task's
// parent and child always do).
func TestGetWorkflowStateAtTimeDoesNotLeakAcrossSharedTrace(t *testing.T) {
	child := NewBuilder("leafWorkflow", "v1")
	child.Condition("start", ConditionStart)
	child.Condition("end", ConditionEnd)
	atomic(child, "work")
	child.Arc("start", "work").Arc("work", "end")
	childDef, err := child.Build()
	require.NoError(t, err)

	parent := NewBuilder("hostWorkflow", "v1")
	parent.Condition("start", ConditionStart)
	parent.Condition("afterDelegate", ConditionIntermediate)
	parent.Condition("end", ConditionEnd)
	parent.Task("delegate", TaskComposite,
		WithComposite("leafWorkflow", "v1"),
		WithActivities(Activities{
			OnEnabled: func(ec *ExecutionContext, h *TaskHandle) error {
				_, err := h.InitializeChildWorkflow("", nil)
				return err
			},
		}),
	)
	atomic(parent, "finish")
	parent.Arc("start", "delegate").Arc("delegate", "afterDelegate")
	parent.Arc("afterDelegate", "finish").Arc("finish", "end")
	parentDef, err := parent.Build()
	require.NoError(t, err)

	mock := clock.NewMock()
	store := memstore.New()
	reg := NewRegistry(store, WithClock(mock))
	require.NoError(t, reg.RegisterDefinition(childDef))
	require.NoError(t, reg.RegisterDefinition(parentDef))

	ctx := context.Background()
	parentID, err := reg.InitializeRootWorkflow(ctx, "hostWorkflow", "v1", nil, "", "")
	require.NoError(t, err)

	kids := childWorkflows(t, reg, parentID)
	require.Len(t, kids, 1)
	childID := kids[0].ID
	require.Equal(t, getWorkflow(t, reg, parentID).TraceID, getWorkflow(t, reg, childID).TraceID,
		"composite child must inherit the parent's traceID")

	mock.Add(time.Minute)
	driveTaskToCompletion(t, reg, childID, "work")

	snap, err := reg.GetWorkflowStateAtTime(ctx, childID, mock.Now())
	require.NoError(t, err)
	require.Equal(t, TaskCompleted, snap.Tasks["work"])
	_, sawDelegate := snap.Tasks["delegate"]
	require.False(t, sawDelegate, "child's snapshot must never contain the parent's own task names")
	_, sawFinish := snap.Tasks["finish"]
	require.False(t, sawFinish)

	parentSnap, err := reg.GetWorkflowStateAtTime(ctx, parentID, mock.Now())
	require.NoError(t, err)
	_, sawWork := parentSnap.Tasks["work"]
	require.False(t, sawWork, "parent's snapshot must never contain the child's own task names")
}

func TestTraceReturnsSpansOrderedAcrossWholeTree(t *testing.T) {
	b := NewBuilder("simpleTrace", "v1")
	b.Condition("start", ConditionStart)
	b.Condition("end", ConditionEnd)
	atomic(b, "only")
	b.Arc("start", "only").Arc("only", "end")
	def, err := b.Build()
	require.NoError(t, err)

	mock := clock.NewMock()
	store := memstore.New()
	reg := NewRegistry(store, WithClock(mock))
	require.NoError(t, reg.RegisterDefinition(def))

	ctx := context.Background()
	id, err := reg.InitializeRootWorkflow(ctx, "simpleTrace", "v1", nil, "", "")
	require.NoError(t, err)
	mock.Add(time.Minute)
	driveTaskToCompletion(t, reg, id, "only")

	wf := getWorkflow(t, reg, id)
	spans, err := reg.Trace(ctx, wf.TraceID)
	require.NoError(t, err)
	require.NotEmpty(t, spans)
	for i := 1; i < len(spans); i++ {
		require.False(t, spans[i].StartedAt.Before(spans[i-1].StartedAt), "Trace must return spans oldest first")
	}
}
