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

// WorkflowHandle wraps one WorkflowRow and enforces §4.4's state machine.
type WorkflowHandle struct {
	ec  *ExecutionContext
	row *WorkflowRow
}

func loadWorkflow(ec *ExecutionContext, id WorkflowID) (*WorkflowHandle, error) {
	row, err := ec.tx.GetWorkflow(id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, NewNotFoundError(CodeWorkflowNotFound, "workflow %s not found", id)
	}
	return &WorkflowHandle{ec: ec, row: row}, nil
}

func (w *WorkflowHandle) Row() *WorkflowRow    { return w.row }
func (w *WorkflowHandle) State() WorkflowState { return w.row.State }
func (w *WorkflowHandle) ID() WorkflowID       { return w.row.ID }

func (w *WorkflowHandle) transition(newState WorkflowState, operation string, finalize bool) error {
	_, pop, err := w.ec.pushSpan("mutation", operation, "workflow", string(w.row.ID), w.row.Name, w.row.ID, nil, map[string]any{
		"fromState": string(w.row.State),
		"toState":   string(newState),
	})
	if err != nil {
		return err
	}
	defer pop()
	w.row.State = newState
	patch := WorkflowPatch{State: newState, ExecutionMode: w.row.ExecutionMode}
	if finalize {
		now := w.ec.Now()
		w.row.FinalizedAt = &now
		patch.FinalizedAt = &now
		w.ec.metrics.WorkflowFinalized(w.row.Name, string(newState))
	}
	return w.ec.tx.PatchWorkflow(w.row.ID, patch)
}

func (w *WorkflowHandle) MarkStarted() error {
	if w.row.State != WorkflowInitialized {
		return nil
	}
	return w.transition(WorkflowStarted, "Workflow.start", false)
}

func (w *WorkflowHandle) MarkCompleted() error {
	if w.row.State.Finalized() {
		return NewInvalidStateError(CodeInvalidWorkflowState, "workflow %s already finalized as %s", w.row.ID, w.row.State)
	}
	return w.transition(WorkflowCompleted, "Workflow.complete", true)
}

func (w *WorkflowHandle) MarkFailed() error {
	if w.row.State.Finalized() {
		return nil
	}
	return w.transition(WorkflowFailed, "Workflow.fail", true)
}

func (w *WorkflowHandle) MarkCanceled() error {
	if w.row.State.Finalized() {
		return nil
	}
	return w.transition(WorkflowCanceled, "Workflow.cancel", true)
}

func (w *WorkflowHandle) SwitchToNormalMode() error {
	if w.row.ExecutionMode == ModeNormal {
		return nil
	}
	w.row.ExecutionMode = ModeNormal
	return w.ec.tx.PatchWorkflow(w.row.ID, WorkflowPatch{State: w.row.State, ExecutionMode: ModeNormal})
}
