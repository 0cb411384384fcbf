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

// WorkItemHandle wraps one WorkItemRow and enforces the work-item state
// machine from §4.3. Finalized work items are immutable: every transition
// method rejects a finalized row with InvalidWorkItemState.
type WorkItemHandle struct {
	ec  *ExecutionContext
	row *WorkItemRow
}

func loadWorkItem(ec *ExecutionContext, id WorkItemID) (*WorkItemHandle, error) {
	row, err := ec.tx.GetWorkItem(id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, NewNotFoundError(CodeWorkItemNotFound, "work item %s not found", id)
	}
	return &WorkItemHandle{ec: ec, row: row}, nil
}

func initWorkItem(ec *ExecutionContext, parent ParentRef) (*WorkItemHandle, error) {
	row := &WorkItemRow{
		ID:        ec.ids.NewWorkItemID(),
		Parent:    parent,
		State:     WorkItemInitialized,
		CreatedAt: ec.Now(),
	}
	gen := parent.TaskGeneration
	_, pop, err := ec.pushSpan("mutation", "WorkItem.initialize", "workItem", string(row.ID), "", parent.WorkflowID, &gen, nil)
	if err != nil {
		return nil, err
	}
	defer pop()
	if err := ec.tx.InsertWorkItem(row); err != nil {
		return nil, err
	}
	return &WorkItemHandle{ec: ec, row: row}, nil
}

func (w *WorkItemHandle) Row() *WorkItemRow     { return w.row }
func (w *WorkItemHandle) State() WorkItemState  { return w.row.State }
func (w *WorkItemHandle) Parent() ParentRef     { return w.row.Parent }
func (w *WorkItemHandle) Payload() []byte       { return w.row.Payload }

func (w *WorkItemHandle) assertState(allowed ...WorkItemState) error {
	for _, s := range allowed {
		if w.row.State == s {
			return nil
		}
	}
	return NewInvalidStateError(CodeInvalidWorkItemState, "work item %s is %s, expected one of %v", w.row.ID, w.row.State, allowed)
}

func (w *WorkItemHandle) transition(newState WorkItemState, operation string, payload []byte, finalize bool) error {
	gen := w.row.Parent.TaskGeneration
	_, pop, err := w.ec.pushSpan("mutation", operation, "workItem", string(w.row.ID), "", w.row.Parent.WorkflowID, &gen, map[string]any{
		"fromState": string(w.row.State),
		"toState":   string(newState),
	})
	if err != nil {
		return err
	}
	defer pop()
	w.row.State = newState
	if payload != nil {
		w.row.Payload = payload
	}
	patch := WorkItemPatch{State: newState, Payload: w.row.Payload}
	if finalize {
		now := w.ec.Now()
		w.row.FinalizedAt = &now
		patch.FinalizedAt = &now
	}
	return w.ec.tx.PatchWorkItem(w.row.ID, patch)
}

func (w *WorkItemHandle) Start(payload []byte) error {
	if err := w.assertState(WorkItemInitialized); err != nil {
		return err
	}
	return w.transition(WorkItemStarted, "WorkItem.start", payload, false)
}

func (w *WorkItemHandle) Complete(payload []byte) error {
	if err := w.assertState(WorkItemStarted); err != nil {
		return err
	}
	return w.transition(WorkItemCompleted, "WorkItem.complete", payload, true)
}

func (w *WorkItemHandle) Fail(payload []byte) error {
	if err := w.assertState(WorkItemInitialized, WorkItemStarted); err != nil {
		return err
	}
	return w.transition(WorkItemFailed, "WorkItem.fail", payload, true)
}

func (w *WorkItemHandle) Cancel() error {
	if err := w.assertState(WorkItemInitialized, WorkItemStarted); err != nil {
		return err
	}
	return w.transition(WorkItemCanceled, "WorkItem.cancel", nil, true)
}

// Reset is allowed only while the owning task is still enabled or started;
// the engine checks that precondition before calling this.
func (w *WorkItemHandle) Reset() error {
	if err := w.assertState(WorkItemStarted); err != nil {
		return err
	}
	return w.transition(WorkItemInitialized, "WorkItem.reset", nil, false)
}
