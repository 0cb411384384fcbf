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

// ConditionHandle wraps one persisted ConditionRow with the marking
// invariant (§3): marking is never allowed to go negative.
type ConditionHandle struct {
	ec  *ExecutionContext
	row *ConditionRow
}

func loadCondition(ec *ExecutionContext, workflowID WorkflowID, name string) (*ConditionHandle, error) {
	row, err := ec.tx.ConditionByName(workflowID, name)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, NewNotFoundError(CodeConditionNotFound, "condition %q not found in workflow %s", name, workflowID)
	}
	return &ConditionHandle{ec: ec, row: row}, nil
}

func initCondition(ec *ExecutionContext, workflowID WorkflowID, def ConditionDef) (*ConditionHandle, error) {
	row := &ConditionRow{
		ID:         ec.ids.NewConditionID(),
		WorkflowID: workflowID,
		Name:       def.Name,
		Kind:       def.Kind,
		Marking:    0,
	}
	if err := ec.tx.InsertCondition(row); err != nil {
		return nil, err
	}
	return &ConditionHandle{ec: ec, row: row}, nil
}

func (c *ConditionHandle) Row() *ConditionRow { return c.row }
func (c *ConditionHandle) Marking() int       { return c.row.Marking }

// Increment adds delta (>0) tokens and writes an audit span. It never
// returns a negative marking; callers never decrement below availability
// because evaluateJoin only consumes tokens it already observed present.
func (c *ConditionHandle) Increment(delta int) error {
	return c.adjust(delta)
}

// Decrement removes delta (>0) tokens. Decrementing below zero is a defect
// per §3 and returns AndJoinUnsatisfied rather than corrupting state.
func (c *ConditionHandle) Decrement(delta int) error {
	if c.row.Marking-delta < 0 {
		return NewPolicyError(CodeAndJoinUnsatisfied, "condition %q would go negative (marking=%d, delta=%d)", c.row.Name, c.row.Marking, delta)
	}
	return c.adjust(-delta)
}

func (c *ConditionHandle) adjust(delta int) error {
	old := c.row.Marking
	newMarking := old + delta
	_, pop, err := c.ec.pushSpan("mutation", "Condition.adjustMarking", "condition", string(c.row.ID), c.row.Name, c.row.WorkflowID, nil, map[string]any{
		"oldMarking": old,
		"newMarking": newMarking,
		"delta":      delta,
	})
	if err != nil {
		return err
	}
	defer pop()
	c.row.Marking = newMarking
	return c.ec.tx.PatchCondition(c.row.ID, ConditionPatch{Marking: newMarking})
}
