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

import "context"

// This file is the public API facade (§6.2): one method per host-callable
// mutation/query, each opening exactly one store transaction.

// InitializeRootWorkflow starts a brand new root workflow instance.
func (r *Registry) InitializeRootWorkflow(ctx context.Context, workflowName, versionName string, payload []byte, mode ExecutionMode, migrationFromWorkflowID WorkflowID) (WorkflowID, error) {
	if mode == "" {
		mode = ModeNormal
	}
	def, err := r.definition(workflowName, versionName)
	if err != nil {
		return "", err
	}
	var id WorkflowID
	err = r.runTx(ctx, "initializeRootWorkflow", "", mode, func(ec *ExecutionContext) error {
		wf, err := initializeWorkflowCore(ec, def, nil, payload, migrationFromWorkflowID)
		if err != nil {
			return err
		}
		id = wf.ID()
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// initializeWorkflowCore is shared by InitializeRootWorkflow and
// InitializeChildWorkflow (via TaskHandle.InitializeChildWorkflow). A root
// workflow's traceID is its own id; a child inherits the ec's current
// traceID so parent and descendants share one trace (§3).
func initializeWorkflowCore(ec *ExecutionContext, def *Definition, parent *ParentRef, payload []byte, migrationFrom WorkflowID) (*WorkflowHandle, error) {
	validator := def.InitPayloadValidator
	validatedPayload, err := validate(validator, payload)
	if err != nil {
		return nil, err
	}

	id := ec.ids.NewWorkflowID()
	traceID := ec.traceID
	if parent == nil && traceID == "" {
		traceID = TraceID(id)
		ec.traceID = traceID
	}

	row := &WorkflowRow{
		ID:                      id,
		Name:                    def.Name,
		VersionName:             def.VersionName,
		Parent:                  parent,
		State:                   WorkflowInitialized,
		ExecutionMode:           ec.mode,
		MigrationFromWorkflowID: migrationFrom,
		TraceID:                 traceID,
		CreatedAt:               ec.Now(),
	}

	attrs := map[string]any{"name": def.Name, "versionName": def.VersionName}
	if migrationFrom != "" {
		attrs["migrationFromWorkflowId"] = string(migrationFrom)
	}
	_, pop, err := ec.pushSpan("mutation", "Workflow.initialize", "workflow", string(id), def.Name, id, nil, attrs)
	if err != nil {
		return nil, err
	}
	if err := ec.tx.InsertWorkflow(row); err != nil {
		pop()
		return nil, err
	}
	pop()

	for _, cd := range def.Conditions {
		if _, err := initCondition(ec, id, cd); err != nil {
			return nil, err
		}
	}

	wf := &WorkflowHandle{ec: ec, row: row}
	_ = validatedPayload // payload is opaque to the engine beyond validation

	startCond, err := loadCondition(ec, id, "start")
	if err != nil {
		return nil, err
	}
	if err := startCond.Increment(1); err != nil {
		return nil, err
	}
	if err := propagate(ec, wf, def, []string{"start"}); err != nil {
		return nil, err
	}
	return wf, nil
}

// markWorkflowStarted transitions a workflow to started on its first work
// item or child-workflow start, and propagates that same transition to the
// owning composite/dynamic-composite task one level up, if any (§4.4).
func markWorkflowStarted(ec *ExecutionContext, workflowID WorkflowID) error {
	wf, err := loadWorkflow(ec, workflowID)
	if err != nil {
		return err
	}
	wasInitialized := wf.State() == WorkflowInitialized
	if err := wf.MarkStarted(); err != nil {
		return err
	}
	if !wasInitialized || wf.Row().Parent == nil {
		return nil
	}
	parent := *wf.Row().Parent
	parentWF, def, err := loadEnv(ec, parent.WorkflowID)
	if err != nil {
		return err
	}
	td, ok := def.Task(parent.TaskName)
	if !ok {
		return nil
	}
	parentTask, err := loadTaskGeneration(ec, parent.WorkflowID, parent.TaskName, parent.TaskGeneration, td)
	if err != nil {
		return err
	}
	if parentTask.State() == TaskEnabled {
		if err := parentTask.Start(); err != nil {
			return err
		}
	}
	return markWorkflowStarted(ec, parentWF.ID())
}

// InitializeWorkItem is the host-facing equivalent of
// TaskHandle.InitializeWorkItem, used to seed a work item for an already
// enabled task from outside an activity callback (e.g. operator tooling).
func (r *Registry) InitializeWorkItem(ctx context.Context, parentWorkflowID WorkflowID, parentTaskName string) (WorkItemID, error) {
	var id WorkItemID
	err := r.runTx(ctx, "initializeWorkItem", "", ModeNormal, func(ec *ExecutionContext) error {
		wf, err := loadWorkflow(ec, parentWorkflowID)
		if err != nil {
			return err
		}
		ec.traceID = wf.Row().TraceID
		def, err := ec.reg.definition(wf.Row().Name, wf.Row().VersionName)
		if err != nil {
			return err
		}
		td, ok := def.Task(parentTaskName)
		if !ok {
			return NewNotFoundError(CodeTaskNotFound, "task %q not found in definition %s/%s", parentTaskName, def.Name, def.VersionName)
		}
		h, err := loadLatestTask(ec, parentWorkflowID, parentTaskName, td)
		if err != nil {
			return err
		}
		wid, err := h.InitializeWorkItem()
		if err != nil {
			return err
		}
		id = wid
		return nil
	})
	return id, err
}

// InitializeWorkflow is the host-facing equivalent of
// TaskHandle.InitializeChildWorkflow.
func (r *Registry) InitializeWorkflow(ctx context.Context, parentWorkflowID WorkflowID, parentTaskName, candidateName string, payload []byte) (WorkflowID, error) {
	var id WorkflowID
	err := r.runTx(ctx, "initializeWorkflow", "", ModeNormal, func(ec *ExecutionContext) error {
		wf, err := loadWorkflow(ec, parentWorkflowID)
		if err != nil {
			return err
		}
		ec.traceID = wf.Row().TraceID
		def, err := ec.reg.definition(wf.Row().Name, wf.Row().VersionName)
		if err != nil {
			return err
		}
		td, ok := def.Task(parentTaskName)
		if !ok {
			return NewNotFoundError(CodeTaskNotFound, "task %q not found in definition %s/%s", parentTaskName, def.Name, def.VersionName)
		}
		h, err := loadLatestTask(ec, parentWorkflowID, parentTaskName, td)
		if err != nil {
			return err
		}
		cid, err := h.InitializeChildWorkflow(candidateName, payload)
		if err != nil {
			return err
		}
		id = cid
		return nil
	})
	return id, err
}

func loadEnv(ec *ExecutionContext, workflowID WorkflowID) (*WorkflowHandle, *Definition, error) {
	wf, err := loadWorkflow(ec, workflowID)
	if err != nil {
		return nil, nil, err
	}
	def, err := ec.reg.definition(wf.Row().Name, wf.Row().VersionName)
	if err != nil {
		return nil, nil, err
	}
	return wf, def, nil
}

func (r *Registry) withWorkItem(ctx context.Context, operation string, workItemID WorkItemID, fn func(ec *ExecutionContext, wf *WorkflowHandle, def *Definition, wih *WorkItemHandle, h *TaskHandle) error) error {
	return r.runTx(ctx, operation, "", ModeNormal, func(ec *ExecutionContext) error {
		wih, err := loadWorkItem(ec, workItemID)
		if err != nil {
			return err
		}
		wf, def, err := loadEnv(ec, wih.Parent().WorkflowID)
		if err != nil {
			return err
		}
		ec.traceID = wf.Row().TraceID
		td, ok := def.Task(wih.Parent().TaskName)
		if !ok {
			return NewNotFoundError(CodeTaskNotFound, "task %q not found in definition %s/%s", wih.Parent().TaskName, def.Name, def.VersionName)
		}
		h, err := loadTaskGeneration(ec, wf.ID(), wih.Parent().TaskName, wih.Parent().TaskGeneration, td)
		if err != nil {
			return err
		}
		return fn(ec, wf, def, wih, h)
	})
}

// StartWorkItem transitions a work item initialized->started, validating
// payload and running the start handler.
func (r *Registry) StartWorkItem(ctx context.Context, workItemID WorkItemID, payload []byte) error {
	return r.withWorkItem(ctx, "startWorkItem", workItemID, func(ec *ExecutionContext, wf *WorkflowHandle, def *Definition, wih *WorkItemHandle, h *TaskHandle) error {
		validated, err := validate(h.def.WorkItem.StartValidator, payload)
		if err != nil {
			return err
		}
		if err := wih.Start(validated); err != nil {
			return err
		}
		if h.State() == TaskEnabled {
			if err := h.Start(); err != nil {
				return err
			}
		}
		if err := markWorkflowStarted(ec, wf.ID()); err != nil {
			return err
		}
		if h.def.WorkItem.StartHandler != nil {
			if err := h.def.WorkItem.StartHandler(ec, wih, validated); err != nil {
				return err
			}
		}
		if err := runActivity(ec, h.def.Activities.OnStarted, h); err != nil {
			return err
		}
		return nil
	})
}

// CompleteWorkItem transitions a work item started->completed and checks
// the owning task's multi-instance completion rule.
func (r *Registry) CompleteWorkItem(ctx context.Context, workItemID WorkItemID, payload []byte) error {
	return r.withWorkItem(ctx, "completeWorkItem", workItemID, func(ec *ExecutionContext, wf *WorkflowHandle, def *Definition, wih *WorkItemHandle, h *TaskHandle) error {
		validated, err := validate(h.def.WorkItem.CompleteValidator, payload)
		if err != nil {
			return err
		}
		if err := wih.Complete(validated); err != nil {
			return err
		}
		if h.def.WorkItem.CompleteHandler != nil {
			if err := h.def.WorkItem.CompleteHandler(ec, wih, validated); err != nil {
				return err
			}
		}
		return checkAtomicTaskCompletion(ec, wf, def, h)
	})
}

// FailWorkItem transitions a work item to failed and cascades the failure
// to its task and workflow (§4.2).
func (r *Registry) FailWorkItem(ctx context.Context, workItemID WorkItemID, payload []byte) error {
	return r.withWorkItem(ctx, "failWorkItem", workItemID, func(ec *ExecutionContext, wf *WorkflowHandle, def *Definition, wih *WorkItemHandle, h *TaskHandle) error {
		if err := wih.Fail(payload); err != nil {
			return err
		}
		return failTask(ec, wf, def, h)
	})
}

// CancelWorkItem transitions a work item to canceled, silently, and
// checks whether its task can now finalize.
func (r *Registry) CancelWorkItem(ctx context.Context, workItemID WorkItemID) error {
	return r.withWorkItem(ctx, "cancelWorkItem", workItemID, func(ec *ExecutionContext, wf *WorkflowHandle, def *Definition, wih *WorkItemHandle, h *TaskHandle) error {
		if err := wih.Cancel(); err != nil {
			return err
		}
		return checkAtomicTaskCompletion(ec, wf, def, h)
	})
}

// ResetWorkItem allows retry flows to send a started work item back to
// initialized, only while its task is still enabled or started.
func (r *Registry) ResetWorkItem(ctx context.Context, workItemID WorkItemID) error {
	return r.withWorkItem(ctx, "resetWorkItem", workItemID, func(ec *ExecutionContext, wf *WorkflowHandle, def *Definition, wih *WorkItemHandle, h *TaskHandle) error {
		if h.State() != TaskEnabled && h.State() != TaskStarted {
			return NewInvalidStateError(CodeInvalidTaskState, "task %q is %s, cannot reset a work item", h.Name(), h.State())
		}
		return wih.Reset()
	})
}

// CancelRootWorkflow cascades cancellation through an entire workflow
// tree (§4.4/§5). Only root workflows may be canceled directly.
func (r *Registry) CancelRootWorkflow(ctx context.Context, workflowID WorkflowID, _ []byte) error {
	return r.runTx(ctx, "cancelRootWorkflow", "", ModeNormal, func(ec *ExecutionContext) error {
		wf, def, err := loadEnv(ec, workflowID)
		if err != nil {
			return err
		}
		if !wf.Row().IsRoot() {
			return NewInvalidStateError(CodeInvalidWorkflowState, "workflow %s is not a root workflow", workflowID)
		}
		ec.traceID = wf.Row().TraceID
		return cascadeCancelWorkflow(ec, wf, def, WorkflowCanceled)
	})
}
