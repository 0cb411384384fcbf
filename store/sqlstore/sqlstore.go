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

// Package sqlstore is a durable internal.Store backed by gorm and
// glebarez/sqlite (a cgo-free sqlite driver), for hosts that need a
// workflow's state to survive a process restart.
package sqlstore

import (
	"context"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/tasquencer/tasquencer/internal"
)

// Store is a gorm-backed internal.Store.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if necessary) a sqlite database at dsn and
// migrates its schema. dsn follows glebarez/sqlite's conventions, e.g.
// "file:tasquencer.db?cache=shared" or ":memory:" for ephemeral use.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&workflowModel{},
		&taskModel{},
		&conditionModel{},
		&workItemModel{},
		&scheduledJobModel{},
		&auditSpanModel{},
		&snapshotModel{},
	); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Tx(ctx context.Context, fn func(tx internal.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&sqlTx{db: gtx})
	})
}

type sqlTx struct {
	db *gorm.DB
}

// --- workflows ---

func (t *sqlTx) InsertWorkflow(row *internal.WorkflowRow) error {
	return t.db.Create(toWorkflowModel(row)).Error
}

func (t *sqlTx) GetWorkflow(id internal.WorkflowID) (*internal.WorkflowRow, error) {
	var m workflowModel
	err := t.db.Where("id = ?", string(id)).Take(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.toRow(), nil
}

func (t *sqlTx) PatchWorkflow(id internal.WorkflowID, patch internal.WorkflowPatch) error {
	updates := map[string]any{
		"state":          string(patch.State),
		"execution_mode": string(patch.ExecutionMode),
		"finalized_at":   patch.FinalizedAt,
	}
	return t.db.Model(&workflowModel{}).Where("id = ?", string(id)).Updates(updates).Error
}

func (t *sqlTx) WorkflowsByName(name string) ([]*internal.WorkflowRow, error) {
	var ms []workflowModel
	if err := t.db.Where("name = ?", name).Order("created_at").Find(&ms).Error; err != nil {
		return nil, err
	}
	return workflowRows(ms), nil
}

func (t *sqlTx) WorkflowsByVersionName(versionName, name string) ([]*internal.WorkflowRow, error) {
	var ms []workflowModel
	if err := t.db.Where("version_name = ? AND name = ?", versionName, name).Order("created_at").Find(&ms).Error; err != nil {
		return nil, err
	}
	return workflowRows(ms), nil
}

func (t *sqlTx) ChildWorkflows(parent internal.ParentRef) ([]*internal.WorkflowRow, error) {
	var ms []workflowModel
	err := t.db.Where(
		"parent_workflow_id = ? AND parent_task_name = ? AND parent_task_generation = ?",
		string(parent.WorkflowID), parent.TaskName, parent.TaskGeneration,
	).Order("created_at").Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return workflowRows(ms), nil
}

func (t *sqlTx) ChildWorkflowsOfWorkflow(workflowID internal.WorkflowID) ([]*internal.WorkflowRow, error) {
	var ms []workflowModel
	err := t.db.Where("parent_workflow_id = ?", string(workflowID)).
		Order("created_at").Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return workflowRows(ms), nil
}

func workflowRows(ms []workflowModel) []*internal.WorkflowRow {
	out := make([]*internal.WorkflowRow, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].toRow())
	}
	return out
}

// --- tasks ---

func (t *sqlTx) InsertTask(row *internal.TaskRow) error {
	return t.db.Create(toTaskModel(row)).Error
}

func (t *sqlTx) GetTask(id internal.TaskID) (*internal.TaskRow, error) {
	var m taskModel
	err := t.db.Where("id = ?", string(id)).Take(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.toRow(), nil
}

func (t *sqlTx) PatchTask(id internal.TaskID, patch internal.TaskPatch) error {
	return t.db.Model(&taskModel{}).Where("id = ?", string(id)).
		Update("state", string(patch.State)).Error
}

func (t *sqlTx) TasksByState(workflowID internal.WorkflowID, state internal.TaskState) ([]*internal.TaskRow, error) {
	var ms []taskModel
	err := t.db.Where("workflow_id = ? AND state = ?", string(workflowID), string(state)).
		Order("name, generation").Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return taskRows(ms), nil
}

func (t *sqlTx) TaskByNameGeneration(workflowID internal.WorkflowID, name string, generation int) (*internal.TaskRow, error) {
	q := t.db.Where("workflow_id = ? AND name = ?", string(workflowID), name)
	if generation > 0 {
		q = q.Where("generation = ?", generation)
	} else {
		q = q.Order("generation DESC")
	}
	var m taskModel
	err := q.Take(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.toRow(), nil
}

func (t *sqlTx) AllTasks(workflowID internal.WorkflowID) ([]*internal.TaskRow, error) {
	var ms []taskModel
	if err := t.db.Where("workflow_id = ?", string(workflowID)).Order("name, generation").Find(&ms).Error; err != nil {
		return nil, err
	}
	return taskRows(ms), nil
}

func taskRows(ms []taskModel) []*internal.TaskRow {
	out := make([]*internal.TaskRow, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].toRow())
	}
	return out
}

// --- conditions ---

func (t *sqlTx) InsertCondition(row *internal.ConditionRow) error {
	return t.db.Create(toConditionModel(row)).Error
}

func (t *sqlTx) GetCondition(id internal.ConditionID) (*internal.ConditionRow, error) {
	var m conditionModel
	err := t.db.Where("id = ?", string(id)).Take(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.toRow(), nil
}

func (t *sqlTx) PatchCondition(id internal.ConditionID, patch internal.ConditionPatch) error {
	return t.db.Model(&conditionModel{}).Where("id = ?", string(id)).
		Update("marking", patch.Marking).Error
}

func (t *sqlTx) ConditionByName(workflowID internal.WorkflowID, name string) (*internal.ConditionRow, error) {
	var m conditionModel
	err := t.db.Where("workflow_id = ? AND name = ?", string(workflowID), name).Take(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.toRow(), nil
}

func (t *sqlTx) AllConditions(workflowID internal.WorkflowID) ([]*internal.ConditionRow, error) {
	var ms []conditionModel
	if err := t.db.Where("workflow_id = ?", string(workflowID)).Order("name").Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*internal.ConditionRow, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].toRow())
	}
	return out, nil
}

// --- work items ---

func (t *sqlTx) InsertWorkItem(row *internal.WorkItemRow) error {
	return t.db.Create(toWorkItemModel(row)).Error
}

func (t *sqlTx) GetWorkItem(id internal.WorkItemID) (*internal.WorkItemRow, error) {
	var m workItemModel
	err := t.db.Where("id = ?", string(id)).Take(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.toRow(), nil
}

func (t *sqlTx) PatchWorkItem(id internal.WorkItemID, patch internal.WorkItemPatch) error {
	updates := map[string]any{
		"state":        string(patch.State),
		"payload":      patch.Payload,
		"finalized_at": patch.FinalizedAt,
	}
	return t.db.Model(&workItemModel{}).Where("id = ?", string(id)).Updates(updates).Error
}

func (t *sqlTx) WorkItemsByTaskGeneration(parent internal.ParentRef) ([]*internal.WorkItemRow, error) {
	var ms []workItemModel
	err := t.db.Where(
		"workflow_id = ? AND task_name = ? AND task_generation = ?",
		string(parent.WorkflowID), parent.TaskName, parent.TaskGeneration,
	).Order("created_at").Find(&ms).Error
	if err != nil {
		return nil, err
	}
	out := make([]*internal.WorkItemRow, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].toRow())
	}
	return out, nil
}

// --- scheduled jobs ---

func (t *sqlTx) InsertScheduledJob(row *internal.ScheduledJobRow) error {
	return t.db.Create(toScheduledJobModel(row)).Error
}

func (t *sqlTx) CancelScheduledJob(id internal.ScheduledJobID) error {
	return t.db.Model(&scheduledJobModel{}).Where("id = ?", string(id)).
		Update("canceled", true).Error
}

func (t *sqlTx) CancelScheduledJobsForGeneration(parent internal.ParentRef) error {
	return t.db.Model(&scheduledJobModel{}).Where(
		"workflow_id = ? AND task_name = ? AND task_generation = ? AND canceled = ? AND dispatched_at IS NULL",
		string(parent.WorkflowID), parent.TaskName, parent.TaskGeneration, false,
	).Update("canceled", true).Error
}

func (t *sqlTx) DueScheduledJobs(at time.Time, limit int) ([]*internal.ScheduledJobRow, error) {
	q := t.db.Where("canceled = ? AND dispatched_at IS NULL AND run_at <= ?", false, at).Order("run_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var ms []scheduledJobModel
	if err := q.Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*internal.ScheduledJobRow, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].toRow())
	}
	return out, nil
}

func (t *sqlTx) MarkScheduledJobDispatched(id internal.ScheduledJobID, at time.Time) error {
	return t.db.Model(&scheduledJobModel{}).Where("id = ?", string(id)).
		Update("dispatched_at", at).Error
}

// --- audit ---

func (t *sqlTx) InsertAuditSpan(row *internal.AuditSpanRow) error {
	return t.db.Create(toAuditSpanModel(row)).Error
}

func (t *sqlTx) SpansByTrace(traceID internal.TraceID) ([]*internal.AuditSpanRow, error) {
	var ms []auditSpanModel
	if err := t.db.Where("trace_id = ?", string(traceID)).Order("started_at").Find(&ms).Error; err != nil {
		return nil, err
	}
	return spanRows(ms), nil
}

func (t *sqlTx) SpansByTraceWorkflow(traceID internal.TraceID, workflowID internal.WorkflowID) ([]*internal.AuditSpanRow, error) {
	var ms []auditSpanModel
	err := t.db.Where("trace_id = ? AND workflow_id = ?", string(traceID), string(workflowID)).
		Order("started_at").Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return spanRows(ms), nil
}

func spanRows(ms []auditSpanModel) []*internal.AuditSpanRow {
	out := make([]*internal.AuditSpanRow, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].toRow())
	}
	return out
}

func (t *sqlTx) InsertSnapshot(row *internal.AuditSnapshotRow) error {
	return t.db.Create(toSnapshotModel(row)).Error
}

func (t *sqlTx) LatestSnapshot(workflowID internal.WorkflowID, at time.Time) (*internal.AuditSnapshotRow, error) {
	var m snapshotModel
	err := t.db.Where("workflow_id = ? AND as_of <= ?", string(workflowID), at).
		Order("as_of DESC").Take(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.toRow(), nil
}

var _ internal.Store = (*Store)(nil)
var _ internal.Tx = (*sqlTx)(nil)
