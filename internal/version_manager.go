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

import "fmt"

// MigrationDecision is what a task migrator returns for one task during a
// fast-forward migration hop (§4.5).
type MigrationDecision string

const (
	MigrateFastForward MigrationDecision = "fastForward"
	MigrateContinue    MigrationDecision = "continue"
)

// OldTaskView is the read-only handle a task migrator is given onto the
// corresponding task in the workflow being migrated away from.
type OldTaskView struct {
	Row       *TaskRow
	WorkItems []*WorkItemRow
	Children  []*WorkflowRow
}

// TaskMigratorFunc decides, for one task in the new definition that has a
// counterpart in the old one, whether to fast-forward (replay the old
// outcome) or continue (re-initialize normally from here on).
type TaskMigratorFunc func(ec *ExecutionContext, old *OldTaskView, newTask *TaskHandle) (MigrationDecision, error)

// Migration is the directed upgrade path between two adjacent versions of
// one workflow name.
type Migration struct {
	FromVersion string
	ToVersion   string
	Initializer func(ec *ExecutionContext, oldWorkflow *WorkflowRow, newWorkflow *WorkflowRow) error
	Finalizer   func(ec *ExecutionContext, oldWorkflow *WorkflowRow, result *WorkflowRow) error
	// TaskMigrators is keyed by "<workflowName>/<taskName>" per §4.5.
	TaskMigrators map[string]TaskMigratorFunc
}

func migrationKey(workflowName, taskName string) string {
	return fmt.Sprintf("%s/%s", workflowName, taskName)
}

type versionEntry struct {
	versionName string
	def         *Definition
}

// VersionManager holds one workflow name's ordered version history and the
// migrations between adjacent versions.
type VersionManager struct {
	name       string
	versions   []versionEntry
	migrations map[[2]string]*Migration
}

func newVersionManager(name string) *VersionManager {
	return &VersionManager{name: name, migrations: make(map[[2]string]*Migration)}
}

func (vm *VersionManager) addVersion(def *Definition) error {
	for _, v := range vm.versions {
		if v.versionName == def.VersionName {
			return NewStructuralError(CodeDuplicateName, "workflow %q already has version %q registered", vm.name, def.VersionName)
		}
	}
	vm.versions = append(vm.versions, versionEntry{versionName: def.VersionName, def: def})
	return nil
}

func (vm *VersionManager) definition(versionName string) (*Definition, error) {
	for _, v := range vm.versions {
		if v.versionName == versionName {
			return v.def, nil
		}
	}
	return nil, NewNotFoundError(CodeWorkflowNotFound, "workflow %q has no version %q registered", vm.name, versionName)
}

func (vm *VersionManager) addMigration(m *Migration) {
	vm.migrations[[2]string{m.FromVersion, m.ToVersion}] = m
}

// chain returns the ordered list of migrations to apply to walk from
// fromVersion to toVersion via adjacent hops, in version-registration
// order. Returns MigrationChainNotFound if no such path exists.
func (vm *VersionManager) chain(fromVersion, toVersion string) ([]*Migration, error) {
	if fromVersion == toVersion {
		return nil, nil
	}
	fromIdx, toIdx := -1, -1
	for i, v := range vm.versions {
		if v.versionName == fromVersion {
			fromIdx = i
		}
		if v.versionName == toVersion {
			toIdx = i
		}
	}
	if fromIdx == -1 || toIdx == -1 || toIdx < fromIdx {
		return nil, NewMigrationError(CodeMigrationChainNotFound, nil, "no migration chain from %q to %q for workflow %q", fromVersion, toVersion, vm.name)
	}
	var hops []*Migration
	for i := fromIdx; i < toIdx; i++ {
		key := [2]string{vm.versions[i].versionName, vm.versions[i+1].versionName}
		m, ok := vm.migrations[key]
		if !ok {
			return nil, NewMigrationError(CodeMigrationChainNotFound, nil, "no migration registered from %q to %q for workflow %q", key[0], key[1], vm.name)
		}
		hops = append(hops, m)
	}
	return hops, nil
}
