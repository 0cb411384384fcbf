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

// Package memstore is an in-memory internal.Store, useful for tests and
// single-process hosts that don't need durability. It serializes every
// transaction behind one mutex and operates on a deep copy of its state,
// swapping the copy back in only once the transaction function returns
// nil — cheap snapshot isolation without a real storage engine.
//
// Every exported operation on Tx works against plain Go maps; no
// third-party library fits "lock a map" better than sync.Mutex, so this
// package is this engine's one deliberate stdlib-only component (see
// DESIGN.md).
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tasquencer/tasquencer/internal"
)

// Store is an in-memory internal.Store.
type Store struct {
	mu    sync.Mutex
	state *state
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{state: newState()}
}

type state struct {
	workflows     map[internal.WorkflowID]*internal.WorkflowRow
	tasks         map[internal.TaskID]*internal.TaskRow
	conditions    map[internal.ConditionID]*internal.ConditionRow
	workItems     map[internal.WorkItemID]*internal.WorkItemRow
	scheduledJobs map[internal.ScheduledJobID]*internal.ScheduledJobRow
	auditSpans    []*internal.AuditSpanRow
	snapshots     []*internal.AuditSnapshotRow
}

func newState() *state {
	return &state{
		workflows:     make(map[internal.WorkflowID]*internal.WorkflowRow),
		tasks:         make(map[internal.TaskID]*internal.TaskRow),
		conditions:    make(map[internal.ConditionID]*internal.ConditionRow),
		workItems:     make(map[internal.WorkItemID]*internal.WorkItemRow),
		scheduledJobs: make(map[internal.ScheduledJobID]*internal.ScheduledJobRow),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.workflows {
		row := *v
		c.workflows[k] = &row
	}
	for k, v := range s.tasks {
		row := *v
		c.tasks[k] = &row
	}
	for k, v := range s.conditions {
		row := *v
		c.conditions[k] = &row
	}
	for k, v := range s.workItems {
		row := *v
		c.workItems[k] = &row
	}
	for k, v := range s.scheduledJobs {
		row := *v
		c.scheduledJobs[k] = &row
	}
	c.auditSpans = append(c.auditSpans, s.auditSpans...)
	c.snapshots = append(c.snapshots, s.snapshots...)
	return c
}

// Tx implements internal.Store.Tx: fn runs against a private clone of the
// current state; a nil return commits the clone back, a non-nil return
// discards it.
func (s *Store) Tx(ctx context.Context, fn func(tx internal.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	tx := &memTx{s: working}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = working
	return nil
}

type memTx struct {
	s *state
}

func cloneWorkflow(r *internal.WorkflowRow) *internal.WorkflowRow {
	c := *r
	return &c
}

func cloneTask(r *internal.TaskRow) *internal.TaskRow {
	c := *r
	return &c
}

func cloneCondition(r *internal.ConditionRow) *internal.ConditionRow {
	c := *r
	return &c
}

func cloneWorkItem(r *internal.WorkItemRow) *internal.WorkItemRow {
	c := *r
	return &c
}

func cloneScheduledJob(r *internal.ScheduledJobRow) *internal.ScheduledJobRow {
	c := *r
	return &c
}

// --- workflows ---

func (t *memTx) InsertWorkflow(row *internal.WorkflowRow) error {
	t.s.workflows[row.ID] = cloneWorkflow(row)
	return nil
}

func (t *memTx) GetWorkflow(id internal.WorkflowID) (*internal.WorkflowRow, error) {
	row, ok := t.s.workflows[id]
	if !ok {
		return nil, nil
	}
	return cloneWorkflow(row), nil
}

func (t *memTx) PatchWorkflow(id internal.WorkflowID, patch internal.WorkflowPatch) error {
	row, ok := t.s.workflows[id]
	if !ok {
		return internal.NewNotFoundError(internal.CodeWorkflowNotFound, "workflow %s not found", id)
	}
	row.State = patch.State
	row.ExecutionMode = patch.ExecutionMode
	row.FinalizedAt = patch.FinalizedAt
	return nil
}

func (t *memTx) WorkflowsByName(name string) ([]*internal.WorkflowRow, error) {
	var out []*internal.WorkflowRow
	for _, row := range t.s.workflows {
		if row.Name == name {
			out = append(out, cloneWorkflow(row))
		}
	}
	sortWorkflowsByCreatedAt(out)
	return out, nil
}

func (t *memTx) WorkflowsByVersionName(versionName, name string) ([]*internal.WorkflowRow, error) {
	var out []*internal.WorkflowRow
	for _, row := range t.s.workflows {
		if row.Name == name && row.VersionName == versionName {
			out = append(out, cloneWorkflow(row))
		}
	}
	sortWorkflowsByCreatedAt(out)
	return out, nil
}

func (t *memTx) ChildWorkflows(parent internal.ParentRef) ([]*internal.WorkflowRow, error) {
	var out []*internal.WorkflowRow
	for _, row := range t.s.workflows {
		if row.Parent != nil && *row.Parent == parent {
			out = append(out, cloneWorkflow(row))
		}
	}
	sortWorkflowsByCreatedAt(out)
	return out, nil
}

func (t *memTx) ChildWorkflowsOfWorkflow(workflowID internal.WorkflowID) ([]*internal.WorkflowRow, error) {
	var out []*internal.WorkflowRow
	for _, row := range t.s.workflows {
		if row.Parent != nil && row.Parent.WorkflowID == workflowID {
			out = append(out, cloneWorkflow(row))
		}
	}
	sortWorkflowsByCreatedAt(out)
	return out, nil
}

func sortWorkflowsByCreatedAt(rows []*internal.WorkflowRow) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
}

// --- tasks ---

func (t *memTx) InsertTask(row *internal.TaskRow) error {
	t.s.tasks[row.ID] = cloneTask(row)
	return nil
}

func (t *memTx) GetTask(id internal.TaskID) (*internal.TaskRow, error) {
	row, ok := t.s.tasks[id]
	if !ok {
		return nil, nil
	}
	return cloneTask(row), nil
}

func (t *memTx) PatchTask(id internal.TaskID, patch internal.TaskPatch) error {
	row, ok := t.s.tasks[id]
	if !ok {
		return internal.NewNotFoundError(internal.CodeTaskNotFound, "task %s not found", id)
	}
	row.State = patch.State
	return nil
}

func (t *memTx) TasksByState(workflowID internal.WorkflowID, state internal.TaskState) ([]*internal.TaskRow, error) {
	var out []*internal.TaskRow
	for _, row := range t.s.tasks {
		if row.WorkflowID == workflowID && row.State == state {
			out = append(out, cloneTask(row))
		}
	}
	sortTasksByGeneration(out)
	return out, nil
}

// TaskByNameGeneration returns the row matching (workflowID, name,
// generation), or, when generation <= 0, the highest-generation row for
// that name.
func (t *memTx) TaskByNameGeneration(workflowID internal.WorkflowID, name string, generation int) (*internal.TaskRow, error) {
	var best *internal.TaskRow
	for _, row := range t.s.tasks {
		if row.WorkflowID != workflowID || row.Name != name {
			continue
		}
		if generation > 0 {
			if row.Generation == generation {
				return cloneTask(row), nil
			}
			continue
		}
		if best == nil || row.Generation > best.Generation {
			best = row
		}
	}
	if best == nil {
		return nil, nil
	}
	return cloneTask(best), nil
}

func (t *memTx) AllTasks(workflowID internal.WorkflowID) ([]*internal.TaskRow, error) {
	var out []*internal.TaskRow
	for _, row := range t.s.tasks {
		if row.WorkflowID == workflowID {
			out = append(out, cloneTask(row))
		}
	}
	sortTasksByGeneration(out)
	return out, nil
}

func sortTasksByGeneration(rows []*internal.TaskRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].Generation < rows[j].Generation
	})
}

// --- conditions ---

func (t *memTx) InsertCondition(row *internal.ConditionRow) error {
	t.s.conditions[row.ID] = cloneCondition(row)
	return nil
}

func (t *memTx) GetCondition(id internal.ConditionID) (*internal.ConditionRow, error) {
	row, ok := t.s.conditions[id]
	if !ok {
		return nil, nil
	}
	return cloneCondition(row), nil
}

func (t *memTx) PatchCondition(id internal.ConditionID, patch internal.ConditionPatch) error {
	row, ok := t.s.conditions[id]
	if !ok {
		return internal.NewNotFoundError(internal.CodeConditionNotFound, "condition %s not found", id)
	}
	row.Marking = patch.Marking
	return nil
}

func (t *memTx) ConditionByName(workflowID internal.WorkflowID, name string) (*internal.ConditionRow, error) {
	for _, row := range t.s.conditions {
		if row.WorkflowID == workflowID && row.Name == name {
			return cloneCondition(row), nil
		}
	}
	return nil, nil
}

func (t *memTx) AllConditions(workflowID internal.WorkflowID) ([]*internal.ConditionRow, error) {
	var out []*internal.ConditionRow
	for _, row := range t.s.conditions {
		if row.WorkflowID == workflowID {
			out = append(out, cloneCondition(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- work items ---

func (t *memTx) InsertWorkItem(row *internal.WorkItemRow) error {
	t.s.workItems[row.ID] = cloneWorkItem(row)
	return nil
}

func (t *memTx) GetWorkItem(id internal.WorkItemID) (*internal.WorkItemRow, error) {
	row, ok := t.s.workItems[id]
	if !ok {
		return nil, nil
	}
	return cloneWorkItem(row), nil
}

func (t *memTx) PatchWorkItem(id internal.WorkItemID, patch internal.WorkItemPatch) error {
	row, ok := t.s.workItems[id]
	if !ok {
		return internal.NewNotFoundError(internal.CodeWorkItemNotFound, "work item %s not found", id)
	}
	row.State = patch.State
	row.Payload = patch.Payload
	row.FinalizedAt = patch.FinalizedAt
	return nil
}

func (t *memTx) WorkItemsByTaskGeneration(parent internal.ParentRef) ([]*internal.WorkItemRow, error) {
	var out []*internal.WorkItemRow
	for _, row := range t.s.workItems {
		if row.Parent == parent {
			out = append(out, cloneWorkItem(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- scheduled jobs ---

func (t *memTx) InsertScheduledJob(row *internal.ScheduledJobRow) error {
	t.s.scheduledJobs[row.ID] = cloneScheduledJob(row)
	return nil
}

func (t *memTx) CancelScheduledJob(id internal.ScheduledJobID) error {
	row, ok := t.s.scheduledJobs[id]
	if !ok {
		return internal.NewNotFoundError(internal.CodeTaskNotFound, "scheduled job %s not found", id)
	}
	row.Canceled = true
	return nil
}

func (t *memTx) CancelScheduledJobsForGeneration(parent internal.ParentRef) error {
	for _, row := range t.s.scheduledJobs {
		if row.Parent == parent && !row.Canceled && row.DispatchedAt == nil {
			row.Canceled = true
		}
	}
	return nil
}

func (t *memTx) DueScheduledJobs(at time.Time, limit int) ([]*internal.ScheduledJobRow, error) {
	var out []*internal.ScheduledJobRow
	for _, row := range t.s.scheduledJobs {
		if row.Canceled || row.DispatchedAt != nil {
			continue
		}
		if row.RunAt.After(at) {
			continue
		}
		out = append(out, cloneScheduledJob(row))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunAt.Before(out[j].RunAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *memTx) MarkScheduledJobDispatched(id internal.ScheduledJobID, at time.Time) error {
	row, ok := t.s.scheduledJobs[id]
	if !ok {
		return internal.NewNotFoundError(internal.CodeTaskNotFound, "scheduled job %s not found", id)
	}
	dispatchedAt := at
	row.DispatchedAt = &dispatchedAt
	return nil
}

// --- audit ---

func (t *memTx) InsertAuditSpan(row *internal.AuditSpanRow) error {
	c := *row
	t.s.auditSpans = append(t.s.auditSpans, &c)
	return nil
}

func (t *memTx) SpansByTrace(traceID internal.TraceID) ([]*internal.AuditSpanRow, error) {
	var out []*internal.AuditSpanRow
	for _, span := range t.s.auditSpans {
		if span.TraceID == traceID {
			c := *span
			out = append(out, &c)
		}
	}
	return out, nil
}

func (t *memTx) SpansByTraceWorkflow(traceID internal.TraceID, workflowID internal.WorkflowID) ([]*internal.AuditSpanRow, error) {
	var out []*internal.AuditSpanRow
	for _, span := range t.s.auditSpans {
		if span.TraceID == traceID && span.WorkflowID == workflowID {
			c := *span
			out = append(out, &c)
		}
	}
	return out, nil
}

func (t *memTx) InsertSnapshot(row *internal.AuditSnapshotRow) error {
	c := *row
	t.s.snapshots = append(t.s.snapshots, &c)
	return nil
}

func (t *memTx) LatestSnapshot(workflowID internal.WorkflowID, at time.Time) (*internal.AuditSnapshotRow, error) {
	var best *internal.AuditSnapshotRow
	for _, snap := range t.s.snapshots {
		if snap.WorkflowID != workflowID || snap.AsOf.After(at) {
			continue
		}
		if best == nil || snap.AsOf.After(best.AsOf) {
			best = snap
		}
	}
	if best == nil {
		return nil, nil
	}
	c := *best
	return &c, nil
}

var _ internal.Store = (*Store)(nil)
var _ internal.Tx = (*memTx)(nil)
