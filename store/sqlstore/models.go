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

package sqlstore

import (
	"time"

	"github.com/tasquencer/tasquencer/internal"
)

// The gorm model types below mirror internal's row structs field for
// field; they exist only because the internal types carry no gorm tags
// and attaching tags to internal.* would leak a storage concern into the
// engine's own package. Conversion happens at the Tx boundary.

type workflowModel struct {
	ID                      string `gorm:"primaryKey"`
	Name                    string `gorm:"index"`
	VersionName             string
	ParentWorkflowID        *string
	ParentTaskName          *string
	ParentTaskGeneration    *int
	State                   string `gorm:"index"`
	ExecutionMode           string
	MigrationFromWorkflowID string
	TraceID                 string `gorm:"index"`
	CreatedAt               time.Time
	FinalizedAt             *time.Time
}

func (workflowModel) TableName() string { return "workflows" }

func toWorkflowModel(r *internal.WorkflowRow) *workflowModel {
	m := &workflowModel{
		ID:                      string(r.ID),
		Name:                    r.Name,
		VersionName:             r.VersionName,
		State:                   string(r.State),
		ExecutionMode:           string(r.ExecutionMode),
		MigrationFromWorkflowID: string(r.MigrationFromWorkflowID),
		TraceID:                 string(r.TraceID),
		CreatedAt:               r.CreatedAt,
		FinalizedAt:             r.FinalizedAt,
	}
	if r.Parent != nil {
		wid := string(r.Parent.WorkflowID)
		name := r.Parent.TaskName
		gen := r.Parent.TaskGeneration
		m.ParentWorkflowID = &wid
		m.ParentTaskName = &name
		m.ParentTaskGeneration = &gen
	}
	return m
}

func (m *workflowModel) toRow() *internal.WorkflowRow {
	row := &internal.WorkflowRow{
		ID:                      internal.WorkflowID(m.ID),
		Name:                    m.Name,
		VersionName:             m.VersionName,
		State:                   internal.WorkflowState(m.State),
		ExecutionMode:           internal.ExecutionMode(m.ExecutionMode),
		MigrationFromWorkflowID: internal.WorkflowID(m.MigrationFromWorkflowID),
		TraceID:                 internal.TraceID(m.TraceID),
		CreatedAt:               m.CreatedAt,
		FinalizedAt:             m.FinalizedAt,
	}
	if m.ParentWorkflowID != nil {
		row.Parent = &internal.ParentRef{
			WorkflowID:     internal.WorkflowID(*m.ParentWorkflowID),
			TaskName:       *m.ParentTaskName,
			TaskGeneration: *m.ParentTaskGeneration,
		}
	}
	return row
}

type taskModel struct {
	ID         string `gorm:"primaryKey"`
	WorkflowID string `gorm:"index:idx_task_wf_name_gen"`
	Name       string `gorm:"index:idx_task_wf_name_gen"`
	Generation int    `gorm:"index:idx_task_wf_name_gen"`
	Kind       string
	State      string `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (taskModel) TableName() string { return "tasks" }

func toTaskModel(r *internal.TaskRow) *taskModel {
	return &taskModel{
		ID:         string(r.ID),
		WorkflowID: string(r.WorkflowID),
		Name:       r.Name,
		Generation: r.Generation,
		Kind:       string(r.Kind),
		State:      string(r.State),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (m *taskModel) toRow() *internal.TaskRow {
	return &internal.TaskRow{
		ID:         internal.TaskID(m.ID),
		WorkflowID: internal.WorkflowID(m.WorkflowID),
		Name:       m.Name,
		Generation: m.Generation,
		Kind:       internal.TaskKind(m.Kind),
		State:      internal.TaskState(m.State),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

type conditionModel struct {
	ID         string `gorm:"primaryKey"`
	WorkflowID string `gorm:"index:idx_cond_wf_name"`
	Name       string `gorm:"index:idx_cond_wf_name"`
	Kind       string
	Marking    int
}

func (conditionModel) TableName() string { return "conditions" }

func toConditionModel(r *internal.ConditionRow) *conditionModel {
	return &conditionModel{
		ID:         string(r.ID),
		WorkflowID: string(r.WorkflowID),
		Name:       r.Name,
		Kind:       string(r.Kind),
		Marking:    r.Marking,
	}
}

func (m *conditionModel) toRow() *internal.ConditionRow {
	return &internal.ConditionRow{
		ID:         internal.ConditionID(m.ID),
		WorkflowID: internal.WorkflowID(m.WorkflowID),
		Name:       m.Name,
		Kind:       internal.ConditionKind(m.Kind),
		Marking:    m.Marking,
	}
}

type workItemModel struct {
	ID             string `gorm:"primaryKey"`
	WorkflowID     string `gorm:"index:idx_wi_parent"`
	TaskName       string `gorm:"index:idx_wi_parent"`
	TaskGeneration int    `gorm:"index:idx_wi_parent"`
	State          string `gorm:"index"`
	Payload        []byte
	CreatedAt      time.Time
	FinalizedAt    *time.Time
}

func (workItemModel) TableName() string { return "work_items" }

func toWorkItemModel(r *internal.WorkItemRow) *workItemModel {
	return &workItemModel{
		ID:             string(r.ID),
		WorkflowID:     string(r.Parent.WorkflowID),
		TaskName:       r.Parent.TaskName,
		TaskGeneration: r.Parent.TaskGeneration,
		State:          string(r.State),
		Payload:        r.Payload,
		CreatedAt:      r.CreatedAt,
		FinalizedAt:    r.FinalizedAt,
	}
}

func (m *workItemModel) toRow() *internal.WorkItemRow {
	return &internal.WorkItemRow{
		ID: internal.WorkItemID(m.ID),
		Parent: internal.ParentRef{
			WorkflowID:     internal.WorkflowID(m.WorkflowID),
			TaskName:       m.TaskName,
			TaskGeneration: m.TaskGeneration,
		},
		State:       internal.WorkItemState(m.State),
		Payload:     m.Payload,
		CreatedAt:   m.CreatedAt,
		FinalizedAt: m.FinalizedAt,
	}
}

type scheduledJobModel struct {
	ID             string `gorm:"primaryKey"`
	WorkflowID     string `gorm:"index:idx_sj_parent"`
	TaskName       string `gorm:"index:idx_sj_parent"`
	TaskGeneration int    `gorm:"index:idx_sj_parent"`
	RunAt          time.Time `gorm:"index"`
	Kind           string
	Payload        []byte
	Canceled       bool
	DispatchedAt   *time.Time
}

func (scheduledJobModel) TableName() string { return "scheduled_jobs" }

func toScheduledJobModel(r *internal.ScheduledJobRow) *scheduledJobModel {
	return &scheduledJobModel{
		ID:             string(r.ID),
		WorkflowID:     string(r.Parent.WorkflowID),
		TaskName:       r.Parent.TaskName,
		TaskGeneration: r.Parent.TaskGeneration,
		RunAt:          r.RunAt,
		Kind:           r.Kind,
		Payload:        r.Payload,
		Canceled:       r.Canceled,
		DispatchedAt:   r.DispatchedAt,
	}
}

func (m *scheduledJobModel) toRow() *internal.ScheduledJobRow {
	return &internal.ScheduledJobRow{
		ID: internal.ScheduledJobID(m.ID),
		Parent: internal.ParentRef{
			WorkflowID:     internal.WorkflowID(m.WorkflowID),
			TaskName:       m.TaskName,
			TaskGeneration: m.TaskGeneration,
		},
		RunAt:        m.RunAt,
		Kind:         m.Kind,
		Payload:      m.Payload,
		Canceled:     m.Canceled,
		DispatchedAt: m.DispatchedAt,
	}
}

type auditSpanModel struct {
	SpanID         string `gorm:"primaryKey"`
	TraceID        string `gorm:"index:idx_span_trace_wf"`
	ParentSpanID   string
	OperationType  string
	Operation      string
	ResourceType   string
	ResourceID     string
	ResourceName   string
	WorkflowID     string `gorm:"index:idx_span_trace_wf"`
	TaskGeneration *int
	StartedAt      time.Time
	EndedAt        time.Time
	Attributes     attributesJSON
}

func (auditSpanModel) TableName() string { return "audit_spans" }

func toAuditSpanModel(r *internal.AuditSpanRow) *auditSpanModel {
	return &auditSpanModel{
		SpanID:         string(r.SpanID),
		TraceID:        string(r.TraceID),
		ParentSpanID:   string(r.ParentSpanID),
		OperationType:  r.OperationType,
		Operation:      r.Operation,
		ResourceType:   r.ResourceType,
		ResourceID:     r.ResourceID,
		ResourceName:   r.ResourceName,
		WorkflowID:     string(r.WorkflowID),
		TaskGeneration: r.TaskGeneration,
		StartedAt:      r.StartedAt,
		EndedAt:        r.EndedAt,
		Attributes:     attributesJSON(r.Attributes),
	}
}

func (m *auditSpanModel) toRow() *internal.AuditSpanRow {
	return &internal.AuditSpanRow{
		TraceID:        internal.TraceID(m.TraceID),
		SpanID:         internal.AuditSpanID(m.SpanID),
		ParentSpanID:   internal.AuditSpanID(m.ParentSpanID),
		OperationType:  m.OperationType,
		Operation:      m.Operation,
		ResourceType:   m.ResourceType,
		ResourceID:     m.ResourceID,
		ResourceName:   m.ResourceName,
		WorkflowID:     internal.WorkflowID(m.WorkflowID),
		TaskGeneration: m.TaskGeneration,
		StartedAt:      m.StartedAt,
		EndedAt:        m.EndedAt,
		Attributes:     map[string]any(m.Attributes),
	}
}

type snapshotModel struct {
	ID         uint `gorm:"primaryKey;autoIncrement"`
	WorkflowID string `gorm:"index:idx_snap_wf_asof"`
	AsOf       time.Time `gorm:"index:idx_snap_wf_asof"`
	State      string
	Conditions attributesJSON
	Tasks      attributesJSON
}

func (snapshotModel) TableName() string { return "audit_snapshots" }

func toSnapshotModel(r *internal.AuditSnapshotRow) *snapshotModel {
	conds := make(map[string]any, len(r.Conditions))
	for k, v := range r.Conditions {
		conds[k] = v
	}
	tasks := make(map[string]any, len(r.Tasks))
	for k, v := range r.Tasks {
		tasks[k] = string(v)
	}
	return &snapshotModel{
		WorkflowID: string(r.WorkflowID),
		AsOf:       r.AsOf,
		State:      string(r.State),
		Conditions: attributesJSON(conds),
		Tasks:      attributesJSON(tasks),
	}
}

func (m *snapshotModel) toRow() *internal.AuditSnapshotRow {
	conds := make(map[string]int, len(m.Conditions))
	for k, v := range m.Conditions {
		if f, ok := v.(float64); ok {
			conds[k] = int(f)
		}
	}
	tasks := make(map[string]internal.TaskState, len(m.Tasks))
	for k, v := range m.Tasks {
		if s, ok := v.(string); ok {
			tasks[k] = internal.TaskState(s)
		}
	}
	return &internal.AuditSnapshotRow{
		WorkflowID: internal.WorkflowID(m.WorkflowID),
		AsOf:       m.AsOf,
		State:      internal.WorkflowState(m.State),
		Conditions: conds,
		Tasks:      tasks,
	}
}
