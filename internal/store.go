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
	"time"
)

// Store is the abstract transactional persistence contract from §6.1. A
// concrete store (store/memstore, store/sqlstore) need only implement this
// interface; the engine never assumes anything about how rows are laid out
// physically, only the indexes it declares here.
type Store interface {
	// Tx runs fn in a serializable, snapshot-isolated transaction. A
	// non-nil return rolls the transaction back; nothing fn wrote,
	// including scheduled jobs, becomes visible.
	Tx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx scopes all reads/writes to one in-flight transaction.
type Tx interface {
	InsertWorkflow(*WorkflowRow) error
	GetWorkflow(id WorkflowID) (*WorkflowRow, error)
	PatchWorkflow(id WorkflowID, patch WorkflowPatch) error
	WorkflowsByName(name string) ([]*WorkflowRow, error)
	WorkflowsByVersionName(versionName, name string) ([]*WorkflowRow, error)
	ChildWorkflows(parent ParentRef) ([]*WorkflowRow, error)
	// ChildWorkflowsOfWorkflow returns every child workflow spawned by any
	// composite/dynamic-composite task generation within workflowID,
	// regardless of which task or generation spawned it. Used by cascade
	// cancellation, which must reach every descendant, not just one task
	// generation's children.
	ChildWorkflowsOfWorkflow(workflowID WorkflowID) ([]*WorkflowRow, error)

	InsertTask(*TaskRow) error
	GetTask(id TaskID) (*TaskRow, error)
	PatchTask(id TaskID, patch TaskPatch) error
	TasksByState(workflowID WorkflowID, state TaskState) ([]*TaskRow, error)
	// TaskByNameGeneration looks up one generation. generation <= 0 means
	// "the latest generation for this name", backed by the
	// workflowId+name+generation-descending index.
	TaskByNameGeneration(workflowID WorkflowID, name string, generation int) (*TaskRow, error)
	AllTasks(workflowID WorkflowID) ([]*TaskRow, error)

	InsertCondition(*ConditionRow) error
	GetCondition(id ConditionID) (*ConditionRow, error)
	PatchCondition(id ConditionID, patch ConditionPatch) error
	ConditionByName(workflowID WorkflowID, name string) (*ConditionRow, error)
	AllConditions(workflowID WorkflowID) ([]*ConditionRow, error)

	InsertWorkItem(*WorkItemRow) error
	GetWorkItem(id WorkItemID) (*WorkItemRow, error)
	PatchWorkItem(id WorkItemID, patch WorkItemPatch) error
	WorkItemsByTaskGeneration(parent ParentRef) ([]*WorkItemRow, error)

	InsertScheduledJob(*ScheduledJobRow) error
	CancelScheduledJob(id ScheduledJobID) error
	CancelScheduledJobsForGeneration(parent ParentRef) error
	DueScheduledJobs(at time.Time, limit int) ([]*ScheduledJobRow, error)
	MarkScheduledJobDispatched(id ScheduledJobID, at time.Time) error

	InsertAuditSpan(*AuditSpanRow) error
	SpansByTrace(traceID TraceID) ([]*AuditSpanRow, error)
	SpansByTraceWorkflow(traceID TraceID, workflowID WorkflowID) ([]*AuditSpanRow, error)

	InsertSnapshot(*AuditSnapshotRow) error
	LatestSnapshot(workflowID WorkflowID, at time.Time) (*AuditSnapshotRow, error)
}

// Patch types carry partial updates; nil fields mean "leave unchanged" is
// not needed here since every field is always set by the caller (the
// engine always knows the full new value), so these are plain structs
// rather than pointer-field patches.

type WorkflowPatch struct {
	State         WorkflowState
	ExecutionMode ExecutionMode
	FinalizedAt   *time.Time
}

type TaskPatch struct {
	State TaskState
}

type ConditionPatch struct {
	Marking int
}

type WorkItemPatch struct {
	State       WorkItemState
	Payload     []byte
	FinalizedAt *time.Time
}
