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

// Builder is a fluent, depth-independent constructor for a Definition. Every
// method returns the same concrete *Builder regardless of how many calls
// precede it, so there is no type-level nesting depth to hit, unlike the
// generic fluent builders this engine's teacher tradition otherwise favors.
type Builder struct {
	def  *Definition
	errs []error
}

func NewBuilder(name, versionName string) *Builder {
	return &Builder{def: &Definition{Name: name, VersionName: versionName}}
}

func (b *Builder) fail(err error) *Builder {
	b.errs = append(b.errs, err)
	return b
}

// Condition declares one place of the given kind. kind is stored as
// passed; the engine finds the start and end places by their names.
func (b *Builder) Condition(name string, kind ConditionKind) *Builder {
	for _, c := range b.def.Conditions {
		if c.Name == name {
			return b.fail(NewStructuralError(CodeDuplicateName, "duplicate condition %q", name))
		}
	}
	b.def.Conditions = append(b.def.Conditions, ConditionDef{Name: name, Kind: kind})
	return b
}

// TaskOption configures a task registered via Task.
type TaskOption func(*TaskDef)

func WithJoin(j JoinType) TaskOption     { return func(t *TaskDef) { t.Join = j } }
func WithSplit(s SplitType) TaskOption   { return func(t *TaskDef) { t.Split = s } }
func WithRoute(r RouteFunc) TaskOption   { return func(t *TaskDef) { t.Route = r } }
func WithActivities(a Activities) TaskOption {
	return func(t *TaskDef) { t.Activities = a }
}
func WithPolicy(p PolicyFunc) TaskOption { return func(t *TaskDef) { t.Policy = p } }
func WithWorkItem(a WorkItemActions) TaskOption {
	return func(t *TaskDef) { t.WorkItem = &a }
}
func WithComposite(childName, childVersion string) TaskOption {
	return func(t *TaskDef) { t.Composite = &CompositeDef{ChildWorkflowName: childName, ChildVersionName: childVersion} }
}
func WithDynamicComposite(candidates ...DynamicCandidate) TaskOption {
	return func(t *TaskDef) { t.DynamicComposite = &DynamicCompositeDef{Candidates: candidates} }
}
func WithInitializeValidator(v Validator) TaskOption {
	return func(t *TaskDef) { t.InitializeValidator = v }
}
func WithCancelValidator(v Validator) TaskOption {
	return func(t *TaskDef) { t.CancelValidator = v }
}

// Task declares one task template. Join defaults to "and", split defaults
// to "and", matching §4.1.
func (b *Builder) Task(name string, kind TaskKind, opts ...TaskOption) *Builder {
	for _, t := range b.def.Tasks {
		if t.Name == name {
			return b.fail(NewStructuralError(CodeDuplicateName, "duplicate task %q", name))
		}
	}
	td := TaskDef{Name: name, Kind: kind, Join: JoinAnd, Split: SplitAnd}
	for _, opt := range opts {
		opt(&td)
	}
	b.def.Tasks = append(b.def.Tasks, td)
	return b
}

// Arc declares a flow arc. Exactly one of from/to must be a condition name
// and the other a task name; direction is inferred from which side was
// already declared as a condition.
func (b *Builder) Arc(from, to string) *Builder {
	_, fromIsCond := b.findCondition(from)
	_, toIsCond := b.findCondition(to)
	switch {
	case fromIsCond && !toIsCond:
		b.def.CondToTask = append(b.def.CondToTask, ArcDef{From: from, To: to})
	case !fromIsCond && toIsCond:
		b.def.TaskToCond = append(b.def.TaskToCond, ArcDef{From: from, To: to})
	default:
		return b.fail(NewStructuralError(CodeUnknownArcTarget, "arc %s->%s must connect a condition and a task", from, to))
	}
	return b
}

func (b *Builder) findCondition(name string) (ConditionDef, bool) {
	for _, c := range b.def.Conditions {
		if c.Name == name {
			return c, true
		}
	}
	return ConditionDef{}, false
}

func (b *Builder) findTask(name string) (TaskDef, bool) {
	for _, t := range b.def.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return TaskDef{}, false
}

// WithInitPayloadValidator sets the validator for initializeRootWorkflow's
// payload.
func (b *Builder) WithInitPayloadValidator(v Validator) *Builder {
	b.def.InitPayloadValidator = v
	return b
}

func (b *Builder) WithCancelPayloadValidator(v Validator) *Builder {
	b.def.CancelPayloadValidator = v
	return b
}

// Build validates every structural invariant from §4.1 and returns the
// finished, indexed Definition.
func (b *Builder) Build() (*Definition, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	d := b.def
	d.index()

	if _, ok := d.Condition("start"); !ok {
		return nil, NewStructuralError(CodeUnreachableNode, "definition %s/%s has no start condition", d.Name, d.VersionName)
	}
	if _, ok := d.Condition("end"); !ok {
		return nil, NewStructuralError(CodeUnreachableNode, "definition %s/%s has no end condition", d.Name, d.VersionName)
	}

	for _, a := range d.CondToTask {
		if _, ok := d.Condition(a.From); !ok {
			return nil, NewStructuralError(CodeUnknownArcTarget, "arc references unknown condition %q", a.From)
		}
		if _, ok := d.Task(a.To); !ok {
			return nil, NewStructuralError(CodeUnknownArcTarget, "arc references unknown task %q", a.To)
		}
	}
	for _, a := range d.TaskToCond {
		if _, ok := d.Task(a.From); !ok {
			return nil, NewStructuralError(CodeUnknownArcTarget, "arc references unknown task %q", a.From)
		}
		if _, ok := d.Condition(a.To); !ok {
			return nil, NewStructuralError(CodeUnknownArcTarget, "arc references unknown condition %q", a.To)
		}
	}

	for _, t := range d.Tasks {
		if t.Split == SplitXor && len(d.OutputsOf(t.Name)) > 1 && t.Route == nil {
			return nil, NewStructuralError(CodeMissingRouteCallback, "task %q has xor split with multiple outputs but no route callback", t.Name)
		}
		switch t.Kind {
		case TaskComposite:
			if t.Composite == nil {
				return nil, NewStructuralError(CodeUnreachableNode, "composite task %q missing child definition reference", t.Name)
			}
		case TaskDynamicComposite:
			if t.DynamicComposite == nil || len(t.DynamicComposite.Candidates) == 0 {
				return nil, NewStructuralError(CodeUnreachableNode, "dynamic composite task %q has no candidates", t.Name)
			}
		case TaskAtomic:
			if t.WorkItem == nil {
				return nil, NewStructuralError(CodeUnreachableNode, "atomic task %q missing work item actions", t.Name)
			}
		}
	}

	if err := b.checkReachability(d); err != nil {
		return nil, err
	}

	return d, nil
}

// checkReachability verifies every condition and task is reachable from
// "start", and "end" is reachable from every task.
func (b *Builder) checkReachability(d *Definition) error {
	reachableFromStart := map[string]bool{"start": true}
	queue := []string{"start"}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, t := range d.TasksFedBy(n) {
			if !reachableFromStart[t] {
				reachableFromStart[t] = true
				queue = append(queue, t)
			}
		}
		for _, c := range d.OutputsOf(n) {
			if !reachableFromStart[c] {
				reachableFromStart[c] = true
				queue = append(queue, c)
			}
		}
	}
	for _, c := range d.Conditions {
		if !reachableFromStart[c.Name] {
			return NewStructuralError(CodeUnreachableNode, "condition %q is unreachable from start", c.Name)
		}
	}
	for _, t := range d.Tasks {
		if !reachableFromStart[t.Name] {
			return NewStructuralError(CodeUnreachableNode, "task %q is unreachable from start", t.Name)
		}
		canReachEnd, err := b.canReach(d, t.Name, "end")
		if err != nil {
			return err
		}
		if !canReachEnd {
			return NewStructuralError(CodeUnreachableNode, "end is unreachable from task %q", t.Name)
		}
	}
	return nil
}

func (b *Builder) canReach(d *Definition, from, target string) (bool, error) {
	visited := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n == target {
			return true, nil
		}
		for _, c := range d.OutputsOf(n) {
			if !visited[c] {
				visited[c] = true
				queue = append(queue, c)
			}
		}
		for _, t := range d.TasksFedBy(n) {
			if !visited[t] {
				visited[t] = true
				queue = append(queue, t)
			}
		}
	}
	return false, nil
}
