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

// TaskHandle wraps one TaskRow (one generation) together with its
// definition, and enforces the state flow
// disabled->enabled->started->{completed|failed|canceled} (§3).
type TaskHandle struct {
	ec  *ExecutionContext
	row *TaskRow
	def *TaskDef
}

func loadLatestTask(ec *ExecutionContext, workflowID WorkflowID, name string, def *TaskDef) (*TaskHandle, error) {
	row, err := ec.tx.TaskByNameGeneration(workflowID, name, 0)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, NewNotFoundError(CodeTaskNotFound, "task %q not found in workflow %s", name, workflowID)
	}
	return &TaskHandle{ec: ec, row: row, def: def}, nil
}

func loadTaskGeneration(ec *ExecutionContext, workflowID WorkflowID, name string, generation int, def *TaskDef) (*TaskHandle, error) {
	row, err := ec.tx.TaskByNameGeneration(workflowID, name, generation)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, NewNotFoundError(CodeTaskNotFound, "task %q generation %d not found in workflow %s", name, generation, workflowID)
	}
	return &TaskHandle{ec: ec, row: row, def: def}, nil
}

// newGeneration creates generation N+1 for (workflowID, name) in the
// disabled state, per the generation-monotonicity invariant: strictly
// increasing, no gaps, at most one non-finalized row at a time.
func newGeneration(ec *ExecutionContext, workflowID WorkflowID, def *TaskDef) (*TaskHandle, error) {
	prev, err := ec.tx.TaskByNameGeneration(workflowID, def.Name, 0)
	if err != nil {
		return nil, err
	}
	gen := 1
	if prev != nil {
		gen = prev.Generation + 1
	}
	row := &TaskRow{
		ID:         ec.ids.NewTaskID(),
		WorkflowID: workflowID,
		Name:       def.Name,
		Generation: gen,
		Kind:       def.Kind,
		State:      TaskDisabled,
		CreatedAt:  ec.Now(),
		UpdatedAt:  ec.Now(),
	}
	if err := ec.tx.InsertTask(row); err != nil {
		return nil, err
	}
	return &TaskHandle{ec: ec, row: row, def: def}, nil
}

func (t *TaskHandle) Row() *TaskRow      { return t.row }
func (t *TaskHandle) Def() *TaskDef      { return t.def }
func (t *TaskHandle) Name() string       { return t.row.Name }
func (t *TaskHandle) Generation() int    { return t.row.Generation }
func (t *TaskHandle) State() TaskState   { return t.row.State }
func (t *TaskHandle) ParentRef() ParentRef {
	return ParentRef{WorkflowID: t.row.WorkflowID, TaskName: t.row.Name, TaskGeneration: t.row.Generation}
}

func (t *TaskHandle) assertState(allowed ...TaskState) error {
	for _, s := range allowed {
		if t.row.State == s {
			return nil
		}
	}
	return NewInvalidStateError(CodeInvalidTaskState, "task %q generation %d is %s, expected one of %v", t.row.Name, t.row.Generation, t.row.State, allowed)
}

// transition moves the task to newState, writing the audit span that
// records it. attrs carries the join/split decision metadata from §4.6.
func (t *TaskHandle) transition(newState TaskState, operation string, attrs map[string]any) error {
	gen := t.row.Generation
	_, pop, err := t.ec.pushSpan("mutation", operation, "task", string(t.row.ID), t.row.Name, t.row.WorkflowID, &gen, attrs)
	if err != nil {
		return err
	}
	defer pop()
	t.row.State = newState
	t.row.UpdatedAt = t.ec.Now()
	if err := t.ec.tx.PatchTask(t.row.ID, TaskPatch{State: newState}); err != nil {
		return err
	}
	t.ec.metrics.TaskFired(t.row.Name, string(newState))
	return nil
}

func (t *TaskHandle) Enable(attrs map[string]any) error {
	if err := t.assertState(TaskDisabled); err != nil {
		return err
	}
	return t.transition(TaskEnabled, "Task.enable", attrs)
}

func (t *TaskHandle) Start() error {
	if err := t.assertState(TaskEnabled); err != nil {
		return err
	}
	return t.transition(TaskStarted, "Task.start", nil)
}

func (t *TaskHandle) Complete(attrs map[string]any) error {
	if err := t.assertState(TaskEnabled, TaskStarted); err != nil {
		return err
	}
	return t.transition(TaskCompleted, "Task.complete", attrs)
}

func (t *TaskHandle) Fail() error {
	if t.row.State.Finalized() {
		return NewInvalidStateError(CodeInvalidTaskState, "task %q generation %d already finalized as %s", t.row.Name, t.row.Generation, t.row.State)
	}
	return t.transition(TaskFailed, "Task.fail", nil)
}

func (t *TaskHandle) Cancel() error {
	if t.row.State.Finalized() {
		return nil
	}
	return t.transition(TaskCanceled, "Task.cancel", nil)
}

func (t *TaskHandle) Disable() error {
	if err := t.assertState(TaskDisabled, TaskEnabled); err != nil {
		return err
	}
	return t.transition(TaskDisabled, "Task.disable", nil)
}
