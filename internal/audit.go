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
	"sort"
	"time"
)

// WorkflowSnapshot is the reconstructed state of one workflow as of a
// point in time: the marking of every condition and the state of every
// task's current-as-of-that-time generation (§4.6, testable property
// "time-travel consistency").
type WorkflowSnapshot struct {
	WorkflowID WorkflowID
	AsOf       time.Time
	State      WorkflowState
	Conditions map[string]int
	Tasks      map[string]TaskState
}

// GetWorkflowStateAtTime folds the audit span history for workflowID up
// to asOf into a WorkflowSnapshot, starting from the most recent
// AuditSnapshotRow at or before asOf when one exists, to bound replay
// cost on long-running workflows.
func (r *Registry) GetWorkflowStateAtTime(ctx context.Context, workflowID WorkflowID, asOf time.Time) (*WorkflowSnapshot, error) {
	var snap *WorkflowSnapshot
	err := r.store.Tx(ctx, func(tx Tx) error {
		row, err := tx.GetWorkflow(workflowID)
		if err != nil {
			return err
		}
		if row == nil {
			return NewNotFoundError(CodeWorkflowNotFound, "workflow %s not found", workflowID)
		}

		base, err := tx.LatestSnapshot(workflowID, asOf)
		if err != nil {
			return err
		}
		result := &WorkflowSnapshot{
			WorkflowID: workflowID,
			AsOf:       asOf,
			Conditions: map[string]int{},
			Tasks:      map[string]TaskState{},
		}
		replayFrom := time.Time{}
		if base != nil {
			result.State = base.State
			for k, v := range base.Conditions {
				result.Conditions[k] = v
			}
			for k, v := range base.Tasks {
				result.Tasks[k] = v
			}
			replayFrom = base.AsOf
		} else {
			result.State = WorkflowInitialized
		}

		spans, err := tx.SpansByTraceWorkflow(row.TraceID, workflowID)
		if err != nil {
			return err
		}
		sort.Slice(spans, func(i, j int) bool { return spans[i].StartedAt.Before(spans[j].StartedAt) })

		for _, span := range spans {
			if span.WorkflowID != workflowID {
				continue // trace holds ancestor/descendant spans too; filter to this workflow only
			}
			if span.StartedAt.Before(replayFrom) || span.StartedAt.After(asOf) {
				continue
			}
			applySpan(result, span)
		}
		snap = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// applySpan folds one audit span's recorded transition into acc. Only
// mutation spans move state; everything else (queries, span nesting
// markers) is a no-op here.
func applySpan(acc *WorkflowSnapshot, span *AuditSpanRow) {
	switch span.ResourceType {
	case "workflow":
		switch span.Operation {
		case "Workflow.start":
			acc.State = WorkflowStarted
		case "Workflow.complete":
			acc.State = WorkflowCompleted
		case "Workflow.fail":
			acc.State = WorkflowFailed
		case "Workflow.cancel":
			acc.State = WorkflowCanceled
		}
	case "condition":
		if newMarking, ok := span.Attributes["newMarking"]; ok {
			// memstore hands back the int span.pushSpan was called with;
			// sqlstore round-trips attributes through JSON
			// (attributesJSON), which decodes every number as float64 —
			// accept both (snapshotModel.toRow converts the float64 form
			// the same way).
			switch m := newMarking.(type) {
			case int:
				acc.Conditions[span.ResourceName] = m
			case float64:
				acc.Conditions[span.ResourceName] = int(m)
			}
		}
	case "task":
		switch span.Operation {
		case "Task.enable":
			acc.Tasks[span.ResourceName] = TaskEnabled
		case "Task.start":
			acc.Tasks[span.ResourceName] = TaskStarted
		case "Task.complete":
			acc.Tasks[span.ResourceName] = TaskCompleted
		case "Task.fail":
			acc.Tasks[span.ResourceName] = TaskFailed
		case "Task.cancel":
			acc.Tasks[span.ResourceName] = TaskCanceled
		case "Task.disable":
			acc.Tasks[span.ResourceName] = TaskDisabled
		}
	}
}

// SnapshotWorkflow writes an AuditSnapshotRow capturing workflowID's
// current state, so later time-travel reads need not replay the whole
// span history from the beginning. Hosts typically call this
// periodically (e.g. from a scheduled job) for long-lived workflows.
func (r *Registry) SnapshotWorkflow(ctx context.Context, workflowID WorkflowID) error {
	return r.store.Tx(ctx, func(tx Tx) error {
		row, err := tx.GetWorkflow(workflowID)
		if err != nil {
			return err
		}
		if row == nil {
			return NewNotFoundError(CodeWorkflowNotFound, "workflow %s not found", workflowID)
		}
		conditions, err := tx.AllConditions(workflowID)
		if err != nil {
			return err
		}
		condMap := make(map[string]int, len(conditions))
		for _, c := range conditions {
			condMap[c.Name] = c.Marking
		}
		tasks, err := tx.AllTasks(workflowID)
		if err != nil {
			return err
		}
		taskMap := make(map[string]TaskState, len(tasks))
		for _, t := range latestGenerations(tasks) {
			taskMap[t.Name] = t.State
		}
		return tx.InsertSnapshot(&AuditSnapshotRow{
			WorkflowID: workflowID,
			AsOf:       r.clock.Now(),
			State:      row.State,
			Conditions: condMap,
			Tasks:      taskMap,
		})
	})
}

// Trace returns every audit span recorded for traceID, across the whole
// workflow tree that shares it, ordered oldest first. This is the raw
// feed behind tasquencerctl's "trace" subcommand.
func (r *Registry) Trace(ctx context.Context, traceID TraceID) ([]*AuditSpanRow, error) {
	var spans []*AuditSpanRow
	err := r.store.Tx(ctx, func(tx Tx) error {
		s, err := tx.SpansByTrace(traceID)
		if err != nil {
			return err
		}
		spans = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].StartedAt.Before(spans[j].StartedAt) })
	return spans, nil
}
