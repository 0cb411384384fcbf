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

// Migrate fast-forwards rootWorkflowID into targetVersion, one adjacent
// hop at a time, per §4.5's migration runner algorithm. It returns the id
// of the final hop's new root workflow.
func (r *Registry) Migrate(ctx context.Context, rootWorkflowID WorkflowID, targetVersion string) (WorkflowID, error) {
	var currentID = rootWorkflowID
	var workflowName string

	err := r.store.Tx(ctx, func(tx Tx) error {
		row, err := tx.GetWorkflow(rootWorkflowID)
		if err != nil {
			return err
		}
		if row == nil {
			return NewNotFoundError(CodeWorkflowNotFound, "workflow %s not found", rootWorkflowID)
		}
		if !row.IsRoot() {
			return NewInvalidStateError(CodeInvalidWorkflowState, "workflow %s is not a root workflow, cannot migrate", rootWorkflowID)
		}
		workflowName = row.Name
		return nil
	})
	if err != nil {
		return "", err
	}

	vm := r.versionManager(workflowName)
	var currentVersion string
	if err := r.store.Tx(ctx, func(tx Tx) error {
		row, err := tx.GetWorkflow(currentID)
		if err != nil {
			return err
		}
		currentVersion = row.VersionName
		return nil
	}); err != nil {
		return "", err
	}

	hops, err := vm.chain(currentVersion, targetVersion)
	if err != nil {
		return "", err
	}

	for _, hop := range hops {
		nextID, err := r.migrateOneHop(ctx, currentID, hop)
		if err != nil {
			return "", err
		}
		currentID = nextID
		r.metrics.MigrationHop(workflowName, hop.ToVersion)
	}
	return currentID, nil
}

func (r *Registry) migrateOneHop(ctx context.Context, oldWorkflowID WorkflowID, hop *Migration) (WorkflowID, error) {
	oldDef, newDef, oldRow, err := r.loadHopDefinitions(ctx, oldWorkflowID, hop)
	if err != nil {
		return "", err
	}

	var newWorkflowID WorkflowID
	err = r.runTx(ctx, "migrate", "", ModeFastForward, func(ec *ExecutionContext) error {
		oldWF, oldDefLoaded, err := loadEnv(ec, oldWorkflowID)
		if err != nil {
			return err
		}
		ec.traceID = oldWF.Row().TraceID
		if err := cascadeCancelWorkflowForMigration(ec, oldWF, oldDefLoaded); err != nil {
			return err
		}

		ec.traceID = ""
		newWF, err := initializeWorkflowCore(ec, newDef, nil, nil, oldWorkflowID)
		if err != nil {
			return err
		}

		if hop.Initializer != nil {
			if err := hop.Initializer(ec, oldRow, newWF.Row()); err != nil {
				return NewMigrationError(CodeMigrationHalted, err, "migration initializer failed for %s->%s", hop.FromVersion, hop.ToVersion)
			}
		}

		if err := runTaskMigrators(ec, oldWF.ID(), oldDef, newWF, newDef, hop); err != nil {
			return err
		}

		if hop.Finalizer != nil {
			if err := hop.Finalizer(ec, oldRow, newWF.Row()); err != nil {
				return NewMigrationError(CodeMigrationHalted, err, "migration finalizer failed for %s->%s", hop.FromVersion, hop.ToVersion)
			}
		}

		newWorkflowID = newWF.ID()
		return nil
	})
	if err != nil {
		return "", err
	}
	return newWorkflowID, nil
}

func (r *Registry) loadHopDefinitions(ctx context.Context, oldWorkflowID WorkflowID, hop *Migration) (oldDef, newDef *Definition, oldRow *WorkflowRow, err error) {
	txErr := r.store.Tx(ctx, func(tx Tx) error {
		row, e := tx.GetWorkflow(oldWorkflowID)
		if e != nil {
			return e
		}
		if row == nil {
			return NewNotFoundError(CodeWorkflowNotFound, "workflow %s not found", oldWorkflowID)
		}
		oldRow = row
		return nil
	})
	if txErr != nil {
		return nil, nil, nil, txErr
	}
	oldDef, err = r.definition(oldRow.Name, hop.FromVersion)
	if err != nil {
		return nil, nil, nil, err
	}
	newDef, err = r.definition(oldRow.Name, hop.ToVersion)
	if err != nil {
		return nil, nil, nil, err
	}
	return oldDef, newDef, oldRow, nil
}

// cascadeCancelWorkflowForMigration cancels the source workflow (§4.5 step
// a), reusing the ordinary cascade walk; the cancel spans it writes are the
// same as for any cancellation and record no migration-specific reason.
// ec's mode is already ModeFastForward for the whole hop, so any
// OnCanceled activity that checks ec.Mode() before doing real work (as
// activities are expected to, per the engine's no-suppression contract)
// sees the replay and no-ops on its own.
func cascadeCancelWorkflowForMigration(ec *ExecutionContext, wf *WorkflowHandle, def *Definition) error {
	if wf.State().Finalized() {
		return nil
	}
	return cascadeCancelWorkflow(ec, wf, def, WorkflowCanceled)
}

// runTaskMigrators walks the new definition's tasks in the order they were
// declared (Builder does not check that this order is topological) and
// calls the registered migrator for each task that has one. Once a
// migrator returns "continue", the new workflow drops out of fastForward
// mode for good (§4.5).
func runTaskMigrators(ec *ExecutionContext, oldWorkflowID WorkflowID, oldDef *Definition, newWF *WorkflowHandle, newDef *Definition, hop *Migration) error {
	for i := range newDef.Tasks {
		td := &newDef.Tasks[i]
		key := migrationKey(newDef.Name, td.Name)
		migrator, ok := hop.TaskMigrators[key]
		if !ok {
			continue
		}
		if ec.mode != ModeFastForward {
			continue // a prior task already switched this workflow to normal mode
		}

		oldTaskRow, err := ec.tx.TaskByNameGeneration(oldWorkflowID, td.Name, 0)
		if err != nil {
			return err
		}
		oldView := &OldTaskView{}
		if oldTaskRow != nil {
			oldView.Row = oldTaskRow
			oldParent := ParentRef{WorkflowID: oldWorkflowID, TaskName: td.Name, TaskGeneration: oldTaskRow.Generation}
			items, err := ec.tx.WorkItemsByTaskGeneration(oldParent)
			if err != nil {
				return err
			}
			oldView.WorkItems = items
			children, err := ec.tx.ChildWorkflows(oldParent)
			if err != nil {
				return err
			}
			oldView.Children = children
		}

		newTaskRow, err := ec.tx.TaskByNameGeneration(newWF.ID(), td.Name, 0)
		if err != nil {
			return err
		}
		if newTaskRow == nil || newTaskRow.State != TaskEnabled {
			// This task hasn't been reached by fast-forward propagation yet
			// (its inputs aren't satisfied in the new net); nothing to
			// migrate until it is. Skip it silently; it will be handled
			// normally once its join is satisfied post-migration.
			continue
		}
		newTask := &TaskHandle{ec: ec, row: newTaskRow, def: td}

		decision, err := migrator(ec, oldView, newTask)
		if err != nil {
			return NewMigrationError(CodeMigrationHalted, err, "task migrator failed for %q", td.Name)
		}

		switch decision {
		case MigrateFastForward:
			if oldView.Row == nil || oldView.Row.State != TaskCompleted {
				return NewMigrationError(CodeMigrationHalted, nil, "task %q fast-forwarded but old generation is not completed", td.Name)
			}
			outputs, err := completeTask(ec, newWF, newDef, newTask, map[string]any{"migratedFrom": string(oldWorkflowID)})
			if err != nil {
				return err
			}
			if err := propagate(ec, newWF, newDef, outputs); err != nil {
				return err
			}
		case MigrateContinue:
			if err := newWF.SwitchToNormalMode(); err != nil {
				return err
			}
			ec.mode = ModeNormal
			if err := runActivity(ec, td.Activities.OnEnabled, newTask); err != nil {
				return err
			}
		}
	}
	return nil
}
