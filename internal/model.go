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

import "time"

// WorkflowState is the lifecycle of one running Workflow row.
type WorkflowState string

const (
	WorkflowInitialized WorkflowState = "initialized"
	WorkflowStarted     WorkflowState = "started"
	WorkflowCompleted   WorkflowState = "completed"
	WorkflowFailed      WorkflowState = "failed"
	WorkflowCanceled    WorkflowState = "canceled"
)

func (s WorkflowState) Finalized() bool {
	switch s {
	case WorkflowCompleted, WorkflowFailed, WorkflowCanceled:
		return true
	default:
		return false
	}
}

// ExecutionMode distinguishes ordinary execution from migration replay.
type ExecutionMode string

const (
	ModeNormal      ExecutionMode = "normal"
	ModeFastForward ExecutionMode = "fastForward"
)

// TaskState is the lifecycle of one Task generation row.
type TaskState string

const (
	TaskDisabled  TaskState = "disabled"
	TaskEnabled   TaskState = "enabled"
	TaskStarted   TaskState = "started"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCanceled  TaskState = "canceled"
)

func (s TaskState) Finalized() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCanceled:
		return true
	default:
		return false
	}
}

// TaskKind is fixed by the definition and never changes across generations.
type TaskKind string

const (
	TaskAtomic           TaskKind = "atomic"
	TaskComposite        TaskKind = "composite"
	TaskDynamicComposite TaskKind = "dynamic-composite"
	TaskDummy            TaskKind = "dummy"
)

// ConditionKind classifies a place in the net.
type ConditionKind string

const (
	ConditionStart        ConditionKind = "start"
	ConditionEnd          ConditionKind = "end"
	ConditionIntermediate ConditionKind = "intermediate"
)

// JoinType is the rule a task uses to consume input tokens.
type JoinType string

const (
	JoinAnd JoinType = "and"
	JoinXor JoinType = "xor"
	JoinOr  JoinType = "or"
)

// SplitType is the rule a task uses to produce output tokens.
type SplitType string

const (
	SplitAnd SplitType = "and"
	SplitXor SplitType = "xor"
)

// WorkItemState is the lifecycle of one WorkItem row.
type WorkItemState string

const (
	WorkItemInitialized WorkItemState = "initialized"
	WorkItemStarted     WorkItemState = "started"
	WorkItemCompleted   WorkItemState = "completed"
	WorkItemFailed      WorkItemState = "failed"
	WorkItemCanceled    WorkItemState = "canceled"
)

func (s WorkItemState) Finalized() bool {
	switch s {
	case WorkItemCompleted, WorkItemFailed, WorkItemCanceled:
		return true
	default:
		return false
	}
}

// ParentRef locates a task generation: either the owner of a WorkItem, or
// the location of a composite task's child Workflow.
type ParentRef struct {
	WorkflowID     WorkflowID
	TaskName       string
	TaskGeneration int
}

// WorkflowRow is the persisted representation of one running instance.
type WorkflowRow struct {
	ID                      WorkflowID
	Name                    string
	VersionName             string
	Parent                  *ParentRef
	State                   WorkflowState
	ExecutionMode           ExecutionMode
	MigrationFromWorkflowID WorkflowID
	TraceID                 TraceID
	CreatedAt               time.Time
	FinalizedAt             *time.Time
}

func (w *WorkflowRow) IsRoot() bool { return w.Parent == nil }

// TaskRow is one generation of one logical task.
type TaskRow struct {
	ID         TaskID
	WorkflowID WorkflowID
	Name       string
	Generation int
	Kind       TaskKind
	State      TaskState
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ConditionRow is one Petri-net place.
type ConditionRow struct {
	ID         ConditionID
	WorkflowID WorkflowID
	Name       string
	Kind       ConditionKind
	Marking    int
}

// WorkItemRow is one execution unit of an atomic task generation.
type WorkItemRow struct {
	ID          WorkItemID
	Parent      ParentRef
	State       WorkItemState
	Payload     []byte
	CreatedAt   time.Time
	FinalizedAt *time.Time
}

// ScheduledJobRow is a deferred transaction tied to a task generation.
type ScheduledJobRow struct {
	ID         ScheduledJobID
	Parent     ParentRef
	RunAt      time.Time
	Kind       string
	Payload    []byte
	Canceled   bool
	DispatchedAt *time.Time
}

// AuditSpanRow is one immutable state-transition record.
type AuditSpanRow struct {
	TraceID        TraceID
	SpanID         AuditSpanID
	ParentSpanID   AuditSpanID
	OperationType  string
	Operation      string
	ResourceType   string
	ResourceID     string
	ResourceName   string
	WorkflowID     WorkflowID
	TaskGeneration *int
	StartedAt      time.Time
	EndedAt        time.Time
	Attributes     map[string]any
}

// AuditSnapshotRow bounds replay cost for time-travel reconstruction.
type AuditSnapshotRow struct {
	WorkflowID WorkflowID
	AsOf       time.Time
	State      WorkflowState
	Conditions map[string]int
	Tasks      map[string]TaskState
}
