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

// PolicyDecision is returned by a (dynamic) composite task's policy
// callback after a child workflow finalizes.
type PolicyDecision string

const (
	PolicyContinue PolicyDecision = "continue"
	PolicyComplete PolicyDecision = "complete"
	PolicyFail     PolicyDecision = "fail"
)

// ChildStats summarizes the finalized/total child workflows of a
// (dynamic) composite task, passed to its policy callback.
type ChildStats struct {
	Total     int
	Completed int
	Failed    int
	Canceled  int
}

// Activities are the optional lifecycle callbacks for one task. The engine
// runs every callback in fastForward mode too; a callback that must not act
// during migration replay checks ec.Mode() itself (§4.5 step c).
type Activities struct {
	OnEnabled   func(ec *ExecutionContext, h *TaskHandle) error
	OnStarted   func(ec *ExecutionContext, h *TaskHandle) error
	OnCompleted func(ec *ExecutionContext, h *TaskHandle) error
	OnFailed    func(ec *ExecutionContext, h *TaskHandle) error
	OnCanceled  func(ec *ExecutionContext, h *TaskHandle) error
}

// RouteFunc names the single output condition an xor-split task sends its
// token to. An empty choice raises PolicyRouteEmpty.
type RouteFunc func(ec *ExecutionContext, h *TaskHandle) (choice string, err error)

// PolicyFunc decides what a (dynamic) composite task does after one of its
// children finalizes.
type PolicyFunc func(ec *ExecutionContext, h *TaskHandle, stats ChildStats) (PolicyDecision, error)

// DefaultPolicy implements §4.1's default: complete when all children are
// finalized and none failed, fail immediately on any child failure. A
// canceled child counts as finalized/resolved here, same as completed —
// it still contributes to the Total a composite task is waiting to see.
func DefaultPolicy(_ *ExecutionContext, _ *TaskHandle, stats ChildStats) (PolicyDecision, error) {
	if stats.Failed > 0 {
		return PolicyFail, nil
	}
	if stats.Completed+stats.Failed+stats.Canceled >= stats.Total {
		return PolicyComplete, nil
	}
	return PolicyContinue, nil
}

// WorkItemActions is the action triple for an atomic task's work items.
type WorkItemActions struct {
	StartValidator    Validator
	CompleteValidator Validator
	StartHandler      func(ec *ExecutionContext, h *WorkItemHandle, payload []byte) error
	CompleteHandler   func(ec *ExecutionContext, h *WorkItemHandle, payload []byte) error
}

// CompositeDef references a composite task's single child definition.
type CompositeDef struct {
	ChildWorkflowName string
	ChildVersionName  string
}

// DynamicCandidate is one named child type a dynamic-composite task may
// instantiate; Name is the selector exposed as
// workflow.initialize.<Name>() on the enable handle.
type DynamicCandidate struct {
	Name              string
	ChildWorkflowName string
	ChildVersionName  string
}

// DynamicCompositeDef references the ordered set of candidate children.
type DynamicCompositeDef struct {
	Candidates []DynamicCandidate
}

// ConditionDef declares one place.
type ConditionDef struct {
	Name string
	Kind ConditionKind
}

// TaskDef declares one task template within a Definition.
type TaskDef struct {
	Name             string
	Kind             TaskKind
	Join             JoinType
	Split            SplitType
	Activities       Activities
	Route            RouteFunc
	WorkItem         *WorkItemActions
	Composite        *CompositeDef
	DynamicComposite *DynamicCompositeDef
	Policy           PolicyFunc

	InitializeValidator Validator // for composite/dynamic-composite child initialization payload
	CancelValidator     Validator
}

// ArcDef is one directed flow arc, condition<->task.
type ArcDef struct {
	From string
	To   string
}

// Definition is the declarative schema for one workflow version, built by
// Builder and validated before use.
type Definition struct {
	Name         string
	VersionName  string
	Conditions   []ConditionDef
	Tasks        []TaskDef
	CondToTask   []ArcDef
	TaskToCond   []ArcDef
	InitPayloadValidator   Validator
	CancelPayloadValidator Validator

	conditionsByName map[string]*ConditionDef
	tasksByName       map[string]*TaskDef
	inputsOf          map[string][]string // task -> input condition names
	outputsOf         map[string][]string // task -> output condition names
	tasksFedBy        map[string][]string // condition -> task names that consume it
}

func (d *Definition) Condition(name string) (*ConditionDef, bool) {
	c, ok := d.conditionsByName[name]
	return c, ok
}

func (d *Definition) Task(name string) (*TaskDef, bool) {
	t, ok := d.tasksByName[name]
	return t, ok
}

func (d *Definition) InputsOf(taskName string) []string  { return d.inputsOf[taskName] }
func (d *Definition) OutputsOf(taskName string) []string { return d.outputsOf[taskName] }
func (d *Definition) TasksFedBy(condName string) []string { return d.tasksFedBy[condName] }

func (d *Definition) index() {
	d.conditionsByName = make(map[string]*ConditionDef, len(d.Conditions))
	for i := range d.Conditions {
		c := &d.Conditions[i]
		d.conditionsByName[c.Name] = c
	}
	d.tasksByName = make(map[string]*TaskDef, len(d.Tasks))
	for i := range d.Tasks {
		t := &d.Tasks[i]
		d.tasksByName[t.Name] = t
	}
	d.inputsOf = make(map[string][]string)
	d.outputsOf = make(map[string][]string)
	d.tasksFedBy = make(map[string][]string)
	for _, a := range d.CondToTask {
		d.inputsOf[a.To] = append(d.inputsOf[a.To], a.From)
		d.tasksFedBy[a.From] = append(d.tasksFedBy[a.From], a.To)
	}
	for _, a := range d.TaskToCond {
		d.outputsOf[a.From] = append(d.outputsOf[a.From], a.To)
	}
}
