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

// This file holds the initializer methods TaskHandle exposes to an
// OnEnabled callback: workItem.initialize() and workflow.initialize()
// from §4.1/§4.2. They are the only way user activities create new rows,
// and both refuse to run once their owning task generation is no longer
// current (the stale-generation guard used by migration, §4.5).

func (h *TaskHandle) assertCurrentGeneration() error {
	latest, err := h.ec.tx.TaskByNameGeneration(h.row.WorkflowID, h.row.Name, 0)
	if err != nil {
		return err
	}
	if latest == nil || latest.Generation != h.row.Generation {
		return NewNotFoundError(CodeTaskNotFound, "task %q generation %d is stale (current generation %d)", h.row.Name, h.row.Generation, generationOrZero(latest))
	}
	return nil
}

func generationOrZero(row *TaskRow) int {
	if row == nil {
		return 0
	}
	return row.Generation
}

// InitializeWorkItem creates one WorkItem bound to this task generation.
// Atomic tasks may call this more than once from OnEnabled to fan out
// multiple instances.
func (h *TaskHandle) InitializeWorkItem() (WorkItemID, error) {
	if h.def.Kind != TaskAtomic {
		return "", NewInvalidStateError(CodeInvalidTaskState, "task %q is not atomic, cannot initialize a work item", h.Name())
	}
	if err := h.assertState(TaskEnabled); err != nil {
		return "", err
	}
	if err := h.assertCurrentGeneration(); err != nil {
		return "", err
	}
	wih, err := initWorkItem(h.ec, h.ParentRef())
	if err != nil {
		return "", err
	}
	return wih.row.ID, nil
}

// InitializeChildWorkflow creates the child workflow of a composite task
// (candidateName must be "") or one named candidate of a dynamic
// composite task, and runs it through to its first fixpoint in the same
// transaction, sharing this transaction's trace and execution mode.
func (h *TaskHandle) InitializeChildWorkflow(candidateName string, payload []byte) (WorkflowID, error) {
	if err := h.assertState(TaskEnabled); err != nil {
		return "", err
	}
	if err := h.assertCurrentGeneration(); err != nil {
		return "", err
	}

	var childWorkflowName, childVersionName string
	switch h.def.Kind {
	case TaskComposite:
		if candidateName != "" {
			return "", NewStructuralError(CodeUnreachableNode, "task %q is a plain composite task, candidateName must be empty", h.Name())
		}
		childWorkflowName = h.def.Composite.ChildWorkflowName
		childVersionName = h.def.Composite.ChildVersionName
	case TaskDynamicComposite:
		found := false
		for _, c := range h.def.DynamicComposite.Candidates {
			if c.Name == candidateName {
				childWorkflowName, childVersionName = c.ChildWorkflowName, c.ChildVersionName
				found = true
				break
			}
		}
		if !found {
			return "", NewStructuralError(CodeUnreachableNode, "task %q has no dynamic composite candidate %q", h.Name(), candidateName)
		}
	default:
		return "", NewInvalidStateError(CodeInvalidTaskState, "task %q is not a (dynamic) composite task", h.Name())
	}

	childDef, err := h.ec.reg.definition(childWorkflowName, childVersionName)
	if err != nil {
		return "", err
	}
	validated, err := validate(h.def.InitializeValidator, payload)
	if err != nil {
		return "", err
	}
	parent := h.ParentRef()
	child, err := initializeWorkflowCore(h.ec, childDef, &parent, validated, "")
	if err != nil {
		return "", err
	}
	return child.ID(), nil
}
