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

package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tasquencer/tasquencer/internal"
)

func TestTxRollsBackOnError(t *testing.T) {
	s := New()
	id := internal.WorkflowID("wf-1")

	err := s.Tx(context.Background(), func(tx internal.Tx) error {
		return tx.InsertWorkflow(&internal.WorkflowRow{ID: id, Name: "checkout"})
	})
	require.NoError(t, err)

	sentinel := require.AnError
	err = s.Tx(context.Background(), func(tx internal.Tx) error {
		if patchErr := tx.PatchWorkflow(id, internal.WorkflowPatch{State: internal.WorkflowCompleted}); patchErr != nil {
			return patchErr
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	row := getWorkflow(t, s, id)
	require.Equal(t, internal.WorkflowState(""), row.State, "failed transaction must not mutate committed state")
}

func TestTxCommitsIndependentSnapshots(t *testing.T) {
	s := New()
	id := internal.WorkflowID("wf-2")
	require.NoError(t, s.Tx(context.Background(), func(tx internal.Tx) error {
		return tx.InsertWorkflow(&internal.WorkflowRow{ID: id, Name: "checkout", State: internal.WorkflowInitialized})
	}))

	// A row returned from one transaction must be a copy: mutating it must
	// not leak into the store's committed state or a later transaction.
	row := getWorkflow(t, s, id)
	row.State = internal.WorkflowCompleted

	again := getWorkflow(t, s, id)
	require.Equal(t, internal.WorkflowInitialized, again.State)
}

func TestChildWorkflowsExactMatchVsOfWorkflow(t *testing.T) {
	s := New()
	parentID := internal.WorkflowID("parent")
	child1 := internal.WorkflowID("child-1")
	child2 := internal.WorkflowID("child-2")

	err := s.Tx(context.Background(), func(tx internal.Tx) error {
		require.NoError(t, tx.InsertWorkflow(&internal.WorkflowRow{ID: parentID, Name: "caseIntake"}))
		require.NoError(t, tx.InsertWorkflow(&internal.WorkflowRow{
			ID:   child1,
			Name: "triageWorkflow",
			Parent: &internal.ParentRef{
				WorkflowID: parentID, TaskName: "diagnostics", TaskGeneration: 1,
			},
		}))
		// A second composite task (or a second generation of the same one)
		// spawning its own child — ChildWorkflowsOfWorkflow must see both,
		// ChildWorkflows(parentRef) must see only the matching generation.
		require.NoError(t, tx.InsertWorkflow(&internal.WorkflowRow{
			ID:   child2,
			Name: "triageWorkflow",
			Parent: &internal.ParentRef{
				WorkflowID: parentID, TaskName: "diagnostics", TaskGeneration: 2,
			},
		}))
		return nil
	})
	require.NoError(t, err)

	gen1 := childWorkflows(t, s, internal.ParentRef{WorkflowID: parentID, TaskName: "diagnostics", TaskGeneration: 1})
	require.Len(t, gen1, 1)
	require.Equal(t, child1, gen1[0].ID)

	all := childWorkflowsOfWorkflow(t, s, parentID)
	require.Len(t, all, 2)

	// A zero-value ParentRef (no task name/generation) must match nothing:
	// ChildWorkflows does exact struct equality, not a workflowID prefix
	// match — ChildWorkflowsOfWorkflow exists precisely because of this.
	none := childWorkflows(t, s, internal.ParentRef{WorkflowID: parentID})
	require.Empty(t, none)
}

func TestTaskByNameGenerationLatest(t *testing.T) {
	s := New()
	wfID := internal.WorkflowID("wf-3")

	err := s.Tx(context.Background(), func(tx internal.Tx) error {
		for gen := 1; gen <= 3; gen++ {
			if insertErr := tx.InsertTask(&internal.TaskRow{
				ID: internal.TaskID("t-" + string(rune('0'+gen))), WorkflowID: wfID,
				Name: "c", Generation: gen, State: internal.TaskEnabled,
			}); insertErr != nil {
				return insertErr
			}
		}
		return nil
	})
	require.NoError(t, err)

	latest := getTaskByNameGeneration(t, s, wfID, "c", 0)
	require.Equal(t, 3, latest.Generation)

	exact := getTaskByNameGeneration(t, s, wfID, "c", 2)
	require.Equal(t, 2, exact.Generation)

	missing := getTaskByNameGeneration(t, s, wfID, "does-not-exist", 0)
	require.Nil(t, missing)
}

func TestDueScheduledJobsOrderingAndLimit(t *testing.T) {
	s := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	parent := internal.ParentRef{WorkflowID: "wf-4", TaskName: "reminder", TaskGeneration: 1}

	err := s.Tx(context.Background(), func(tx internal.Tx) error {
		for i, offset := range []int{3, 1, 2} {
			if insertErr := tx.InsertScheduledJob(&internal.ScheduledJobRow{
				ID:     internal.ScheduledJobID("job-" + string(rune('0'+i))),
				Parent: parent,
				RunAt:  base.Add(time.Duration(offset) * time.Hour),
			}); insertErr != nil {
				return insertErr
			}
		}
		return nil
	})
	require.NoError(t, err)

	due := dueScheduledJobs(t, s, base.Add(24*time.Hour), 2)
	require.Len(t, due, 2)
	require.True(t, due[0].RunAt.Before(due[1].RunAt))

	// Jobs due only after "at" must not be returned — only the 1-hour-offset
	// job has RunAt at or before base+90m.
	notYetDue := dueScheduledJobs(t, s, base.Add(90*time.Minute), 10)
	require.Len(t, notYetDue, 1)
}

func TestLatestSnapshotBeforeAsOf(t *testing.T) {
	s := New()
	wfID := internal.WorkflowID("wf-5")
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	err := s.Tx(context.Background(), func(tx internal.Tx) error {
		if insertErr := tx.InsertSnapshot(&internal.AuditSnapshotRow{WorkflowID: wfID, AsOf: t0}); insertErr != nil {
			return insertErr
		}
		return tx.InsertSnapshot(&internal.AuditSnapshotRow{WorkflowID: wfID, AsOf: t0.Add(time.Hour)})
	})
	require.NoError(t, err)

	var got *internal.AuditSnapshotRow
	err = s.Tx(context.Background(), func(tx internal.Tx) error {
		r, snapErr := tx.LatestSnapshot(wfID, t0.Add(30*time.Minute))
		got = r
		return snapErr
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.AsOf.Equal(t0), "must pick the latest snapshot at or before asOf, not the later one")
}

func getWorkflow(t *testing.T, s *Store, id internal.WorkflowID) *internal.WorkflowRow {
	t.Helper()
	var row *internal.WorkflowRow
	err := s.Tx(context.Background(), func(tx internal.Tx) error {
		r, err := tx.GetWorkflow(id)
		row = r
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, row)
	return row
}

func childWorkflows(t *testing.T, s *Store, parent internal.ParentRef) []*internal.WorkflowRow {
	t.Helper()
	var rows []*internal.WorkflowRow
	err := s.Tx(context.Background(), func(tx internal.Tx) error {
		r, err := tx.ChildWorkflows(parent)
		rows = r
		return err
	})
	require.NoError(t, err)
	return rows
}

func childWorkflowsOfWorkflow(t *testing.T, s *Store, workflowID internal.WorkflowID) []*internal.WorkflowRow {
	t.Helper()
	var rows []*internal.WorkflowRow
	err := s.Tx(context.Background(), func(tx internal.Tx) error {
		r, err := tx.ChildWorkflowsOfWorkflow(workflowID)
		rows = r
		return err
	})
	require.NoError(t, err)
	return rows
}

func getTaskByNameGeneration(t *testing.T, s *Store, workflowID internal.WorkflowID, name string, generation int) *internal.TaskRow {
	t.Helper()
	var row *internal.TaskRow
	err := s.Tx(context.Background(), func(tx internal.Tx) error {
		r, err := tx.TaskByNameGeneration(workflowID, name, generation)
		row = r
		return err
	})
	require.NoError(t, err)
	return row
}

func dueScheduledJobs(t *testing.T, s *Store, at time.Time, limit int) []*internal.ScheduledJobRow {
	t.Helper()
	var rows []*internal.ScheduledJobRow
	err := s.Tx(context.Background(), func(tx internal.Tx) error {
		r, err := tx.DueScheduledJobs(at, limit)
		rows = r
		return err
	})
	require.NoError(t, err)
	return rows
}
