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

import "sort"

// This file is the firing engine (§4.2): given a trigger event that just
// occurred in a transaction, it propagates marking and task-state changes
// to fixpoint within that same transaction. Every facade operation that
// places tokens (initializing a workflow, completing a task) ends by calling
// propagate (directly or via a work item/task transition helper below) so
// that it cannot return with the net left in a state some condition's join
// could still resolve.

// propagate drains a worklist of condition names whose marking just
// changed, enabling whatever tasks that makes joinable, completing dummy
// tasks inline, and feeding their output conditions back into the
// worklist, until nothing more can fire. Tasks that become enabled in the
// same round are processed in ascending name order (§4.2, §5).
func propagate(ec *ExecutionContext, wf *WorkflowHandle, def *Definition, seed []string) error {
	queue := append([]string{}, seed...)
	for len(queue) > 0 {
		cur := queue
		queue = nil

		candidates := map[string]bool{}
		for _, cond := range cur {
			for _, taskName := range def.TasksFedBy(cond) {
				candidates[taskName] = true
			}
		}
		names := make([]string, 0, len(candidates))
		for n := range candidates {
			names = append(names, n)
		}
		sort.Strings(names)

		for _, name := range names {
			td, _ := def.Task(name)
			enabled, outputs, err := tryEnableTask(ec, wf, def, td)
			if err != nil {
				return err
			}
			if !enabled {
				continue
			}
			queue = append(queue, outputs...)
		}
	}
	return maybeFinalizeWorkflow(ec, wf, def)
}

// tryEnableTask attempts to enable one task given the current marking of
// its input conditions, per the join rule in its definition. It returns
// the output condition names touched if the task was a dummy task and
// therefore fired straight through to completion.
func tryEnableTask(ec *ExecutionContext, wf *WorkflowHandle, def *Definition, td *TaskDef) (bool, []string, error) {
	latest, err := ec.tx.TaskByNameGeneration(wf.ID(), td.Name, 0)
	if err != nil {
		return false, nil, err
	}
	if latest != nil && !latest.State.Finalized() && latest.State != TaskDisabled {
		return false, nil, nil // already active; nothing to do
	}

	inputs := def.InputsOf(td.Name)
	consume, ready, err := evaluateJoin(ec, wf, def, td, inputs)
	if err != nil {
		return false, nil, err
	}
	if !ready {
		return false, nil, nil
	}

	task, err := newGeneration(ec, wf.ID(), td)
	if err != nil {
		return false, nil, err
	}
	attrs := map[string]any{
		"joinType":        string(td.Join),
		"joinSatisfied":   true,
		"inputConditions": inputs,
	}
	if err := task.Enable(attrs); err != nil {
		return false, nil, err
	}
	for _, cond := range consume {
		ch, err := loadCondition(ec, wf.ID(), cond)
		if err != nil {
			return false, nil, err
		}
		if err := ch.Decrement(1); err != nil {
			return false, nil, err
		}
	}

	h := &TaskHandle{ec: ec, row: task.row, def: td}
	if err := runActivity(ec, td.Activities.OnEnabled, h); err != nil {
		return false, nil, err
	}

	if td.Kind == TaskDummy {
		outputs, err := completeTask(ec, wf, def, h, nil)
		if err != nil {
			return false, nil, err
		}
		return true, outputs, nil
	}
	return true, nil, nil
}

// evaluateJoin decides whether td's join is satisfied given the current
// marking, and which input conditions it would consume a token from.
func evaluateJoin(ec *ExecutionContext, wf *WorkflowHandle, def *Definition, td *TaskDef, inputs []string) ([]string, bool, error) {
	marking := make(map[string]int, len(inputs))
	for _, name := range inputs {
		ch, err := loadCondition(ec, wf.ID(), name)
		if err != nil {
			return nil, false, err
		}
		marking[name] = ch.Marking()
	}

	switch td.Join {
	case JoinAnd:
		for _, name := range inputs {
			if marking[name] < 1 {
				return nil, false, nil
			}
		}
		return append([]string{}, inputs...), true, nil

	case JoinXor:
		var satisfied []string
		for _, name := range inputs {
			if marking[name] >= 1 {
				satisfied = append(satisfied, name)
			}
		}
		switch len(satisfied) {
		case 0:
			return nil, false, nil
		case 1:
			return satisfied, true, nil
		default:
			return nil, false, NewPolicyError(CodeXorJoinAmbiguous, "task %q xor join satisfied by multiple inputs at once: %v", td.Name, satisfied)
		}

	case JoinOr:
		var satisfied []string
		for _, name := range inputs {
			if marking[name] >= 1 {
				satisfied = append(satisfied, name)
			}
		}
		if len(satisfied) == 0 {
			return nil, false, nil
		}
		for _, name := range inputs {
			if marking[name] >= 1 {
				continue
			}
			stillReachable, err := conditionStillReachable(ec, wf, def, name)
			if err != nil {
				return nil, false, err
			}
			if stillReachable {
				return nil, false, nil // wait: another branch could still deliver here
			}
		}
		return satisfied, true, nil

	default:
		return nil, false, NewStructuralError(CodeUnreachableNode, "task %q has unknown join type %q", td.Name, td.Join)
	}
}

// conditionStillReachable reports whether some non-finalized upstream task
// could still deposit a token on cond. It checks only the tasks that feed
// cond directly (their own predecessors are not walked), using a plain,
// non-mutating visited set, per the spec's explicit note that the
// source's mutate-during-iteration set algorithm is a bug to avoid (§9).
func conditionStillReachable(ec *ExecutionContext, wf *WorkflowHandle, def *Definition, cond string) (bool, error) {
	visitedTasks := map[string]bool{}
	var walk func(c string) (bool, error)
	walk = func(c string) (bool, error) {
		for _, taskName := range feederTasksOf(def, c) {
			if visitedTasks[taskName] {
				continue
			}
			visitedTasks[taskName] = true
			row, err := ec.tx.TaskByNameGeneration(wf.ID(), taskName, 0)
			if err != nil {
				return false, err
			}
			if row == nil {
				// never entered: still structurally able to fire eventually
				// unless every one of its own inputs is permanently starved;
				// conservatively treat as reachable.
				return true, nil
			}
			if !row.State.Finalized() {
				return true, nil
			}
			// this generation is done; it cannot deposit here again unless
			// a loop re-enables it, which would show up as a fresh,
			// non-finalized generation we'd see on the next evaluation.
		}
		return false, nil
	}
	return walk(cond)
}

func feederTasksOf(def *Definition, condName string) []string {
	var out []string
	for _, a := range def.TaskToCond {
		if a.To == condName {
			out = append(out, a.From)
		}
	}
	return out
}

// completeTask runs the split for a task that just completed, placing
// tokens on its output conditions, and returns the condition names touched
// so propagate can continue the fixpoint. extraAttrs, when non-nil, are merged
// into the Task.complete audit span (e.g. work-item outcome metadata).
func completeTask(ec *ExecutionContext, wf *WorkflowHandle, def *Definition, h *TaskHandle, extraAttrs map[string]any) ([]string, error) {
	outputs := def.OutputsOf(h.Name())
	var chosen []string

	switch h.def.Split {
	case SplitAnd:
		chosen = outputs
	case SplitXor:
		if len(outputs) <= 1 {
			chosen = outputs
			break
		}
		if h.def.Route == nil {
			return nil, NewStructuralError(CodeMissingRouteCallback, "task %q has xor split but no route callback", h.Name())
		}
		choice, err := h.def.Route(ec, h)
		if err != nil {
			return nil, err
		}
		if choice == "" {
			return nil, NewPolicyError(CodePolicyRouteEmpty, "task %q route callback chose no output", h.Name())
		}
		chosen = []string{choice}
	default:
		return nil, NewStructuralError(CodeUnreachableNode, "task %q has unknown split type %q", h.Name(), h.def.Split)
	}

	attrs := map[string]any{
		"splitType":        string(h.def.Split),
		"outputConditions": chosen,
	}
	for k, v := range extraAttrs {
		attrs[k] = v
	}
	if err := h.Complete(attrs); err != nil {
		return nil, err
	}
	if err := runActivity(ec, h.def.Activities.OnCompleted, h); err != nil {
		return nil, err
	}
	for _, cond := range chosen {
		ch, err := loadCondition(ec, wf.ID(), cond)
		if err != nil {
			return nil, err
		}
		if err := ch.Increment(1); err != nil {
			return nil, err
		}
	}
	return chosen, nil
}

// maybeFinalizeWorkflow completes the workflow once "end" holds a token,
// per §4.4.
func maybeFinalizeWorkflow(ec *ExecutionContext, wf *WorkflowHandle, def *Definition) error {
	if wf.State().Finalized() {
		return nil
	}
	end, err := ec.tx.ConditionByName(wf.ID(), "end")
	if err != nil {
		return err
	}
	if end == nil || end.Marking < 1 {
		return nil
	}
	if err := wf.MarkCompleted(); err != nil {
		return err
	}
	return onWorkflowFinalized(ec, wf)
}

// failTask fails an atomic task after a work item failure, cancels its
// non-finalized sibling work items and scheduled jobs, and cascades the
// failure to the owning workflow (§4.2's failure cascade; atomic tasks
// carry no continue-policy of their own).
func failTask(ec *ExecutionContext, wf *WorkflowHandle, def *Definition, h *TaskHandle) error {
	items, err := ec.tx.WorkItemsByTaskGeneration(h.ParentRef())
	if err != nil {
		return err
	}
	for _, it := range items {
		if it.State.Finalized() {
			continue
		}
		wih := &WorkItemHandle{ec: ec, row: it}
		if err := wih.Cancel(); err != nil {
			return err
		}
	}
	if err := ec.tx.CancelScheduledJobsForGeneration(h.ParentRef()); err != nil {
		return err
	}
	if err := h.Fail(); err != nil {
		return err
	}
	if err := runActivity(ec, h.def.Activities.OnFailed, h); err != nil {
		return err
	}
	return cascadeCancelWorkflow(ec, wf, def, WorkflowFailed)
}

// cascadeCancelWorkflow walks the workflow tree depth-first, finalizing
// every non-finalized descendant workflow and task, per §4.4/§5.
func cascadeCancelWorkflow(ec *ExecutionContext, wf *WorkflowHandle, def *Definition, finalState WorkflowState) error {
	if wf.State().Finalized() {
		return nil
	}

	children, err := ec.tx.ChildWorkflowsOfWorkflow(wf.ID())
	if err != nil {
		return err
	}
	for _, child := range children {
		if child.State.Finalized() {
			continue
		}
		childDef, derr := ec.reg.definition(child.Name, child.VersionName)
		if derr != nil {
			return derr
		}
		childHandle := &WorkflowHandle{ec: ec, row: child}
		if err := cascadeCancelWorkflow(ec, childHandle, childDef, WorkflowCanceled); err != nil {
			return err
		}
	}

	tasks, err := ec.tx.AllTasks(wf.ID())
	if err != nil {
		return err
	}
	latestPerName := latestGenerations(tasks)
	names := make([]string, 0, len(latestPerName))
	for n := range latestPerName {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, name := range names {
		row := latestPerName[name]
		if row.State.Finalized() {
			continue
		}
		td, ok := def.Task(name)
		if !ok {
			continue
		}
		h := &TaskHandle{ec: ec, row: row, def: td}
		if td.Kind == TaskAtomic {
			items, err := ec.tx.WorkItemsByTaskGeneration(h.ParentRef())
			if err != nil {
				return err
			}
			for _, it := range items {
				if it.State.Finalized() {
					continue
				}
				wih := &WorkItemHandle{ec: ec, row: it}
				if err := wih.Cancel(); err != nil {
					return err
				}
			}
		}
		if err := ec.tx.CancelScheduledJobsForGeneration(h.ParentRef()); err != nil {
			return err
		}
		if err := h.Cancel(); err != nil {
			return err
		}
		if err := runActivity(ec, td.Activities.OnCanceled, h); err != nil {
			return err
		}
	}

	switch finalState {
	case WorkflowFailed:
		if err := wf.MarkFailed(); err != nil {
			return err
		}
	default:
		if err := wf.MarkCanceled(); err != nil {
			return err
		}
	}
	return onWorkflowFinalized(ec, wf)
}

func latestGenerations(rows []*TaskRow) map[string]*TaskRow {
	out := map[string]*TaskRow{}
	for _, r := range rows {
		cur, ok := out[r.Name]
		if !ok || r.Generation > cur.Generation {
			out[r.Name] = r
		}
	}
	return out
}

// onWorkflowFinalized notifies the parent composite/dynamic-composite
// task, if any, that one of its children just finalized, and applies its
// policy (§4.1).
func onWorkflowFinalized(ec *ExecutionContext, wf *WorkflowHandle) error {
	if wf.Row().Parent == nil {
		return nil
	}
	parentRef := *wf.Row().Parent
	parentWF, err := loadWorkflow(ec, parentRef.WorkflowID)
	if err != nil {
		return err
	}
	if parentWF.State().Finalized() {
		return nil
	}
	parentDef, err := ec.reg.definition(parentWF.Row().Name, parentWF.Row().VersionName)
	if err != nil {
		return err
	}
	td, ok := parentDef.Task(parentRef.TaskName)
	if !ok {
		return NewNotFoundError(CodeTaskNotFound, "parent task %q not found in definition %s/%s", parentRef.TaskName, parentDef.Name, parentDef.VersionName)
	}
	parentTask, err := loadTaskGeneration(ec, parentRef.WorkflowID, parentRef.TaskName, parentRef.TaskGeneration, td)
	if err != nil {
		return err
	}
	if parentTask.State().Finalized() {
		return nil
	}

	children, err := ec.tx.ChildWorkflows(parentRef)
	if err != nil {
		return err
	}
	stats := ChildStats{Total: len(children)}
	for _, c := range children {
		switch c.State {
		case WorkflowCompleted:
			stats.Completed++
		case WorkflowFailed:
			stats.Failed++
		case WorkflowCanceled:
			stats.Canceled++
		}
	}

	policy := td.Policy
	if policy == nil {
		policy = DefaultPolicy
	}
	decision, err := policy(ec, parentTask, stats)
	if err != nil {
		return err
	}
	switch decision {
	case PolicyComplete:
		outputs, err := completeTask(ec, parentWF, parentDef, parentTask, map[string]any{"childStats": stats})
		if err != nil {
			return err
		}
		return propagate(ec, parentWF, parentDef, outputs)
	case PolicyFail:
		return failCompositeTask(ec, parentWF, parentDef, parentTask)
	default:
		return nil
	}
}

// failCompositeTask mirrors failTask for a composite/dynamic-composite
// task: cancel remaining non-finalized children, fail the task, cascade.
func failCompositeTask(ec *ExecutionContext, wf *WorkflowHandle, def *Definition, h *TaskHandle) error {
	children, err := ec.tx.ChildWorkflows(h.ParentRef())
	if err != nil {
		return err
	}
	for _, c := range children {
		if c.State.Finalized() {
			continue
		}
		childDef, derr := ec.reg.definition(c.Name, c.VersionName)
		if derr != nil {
			return derr
		}
		childHandle := &WorkflowHandle{ec: ec, row: c}
		if err := cascadeCancelWorkflow(ec, childHandle, childDef, WorkflowCanceled); err != nil {
			return err
		}
	}
	if err := ec.tx.CancelScheduledJobsForGeneration(h.ParentRef()); err != nil {
		return err
	}
	if err := h.Fail(); err != nil {
		return err
	}
	if err := runActivity(ec, h.def.Activities.OnFailed, h); err != nil {
		return err
	}
	return cascadeCancelWorkflow(ec, wf, def, WorkflowFailed)
}

// checkAtomicTaskCompletion applies the multi-instance completion rule
// from §4.2: complete once at least one work item is completed and none
// remain initialized/started.
func checkAtomicTaskCompletion(ec *ExecutionContext, wf *WorkflowHandle, def *Definition, h *TaskHandle) error {
	items, err := ec.tx.WorkItemsByTaskGeneration(h.ParentRef())
	if err != nil {
		return err
	}
	anyCompleted := false
	for _, it := range items {
		switch it.State {
		case WorkItemInitialized, WorkItemStarted:
			return nil // still in flight
		case WorkItemCompleted:
			anyCompleted = true
		}
	}
	if !anyCompleted {
		return nil
	}
	outputs, err := completeTask(ec, wf, def, h, nil)
	if err != nil {
		return err
	}
	return propagate(ec, wf, def, outputs)
}

// runActivity invokes an optional lifecycle callback, skipping nil hooks.
// Callbacks that must no-op under migration replay check ec.Mode()
// themselves (§4.5 step c); the engine does not suppress the call.
func runActivity(ec *ExecutionContext, fn func(*ExecutionContext, *TaskHandle) error, h *TaskHandle) error {
	if fn == nil {
		return nil
	}
	return fn(ec, h)
}
