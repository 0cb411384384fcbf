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

// Package tasquencer is the public surface of the workflow execution
// engine. Everything here is a thin re-export of internal types: Go
// forbids external packages from importing anything under internal/, so
// this file is the seam a host actually programs against.
package tasquencer

import (
	govalidator "github.com/go-playground/validator/v10"

	"github.com/tasquencer/tasquencer/internal"
)

type (
	WorkflowID     = internal.WorkflowID
	TaskID         = internal.TaskID
	ConditionID    = internal.ConditionID
	WorkItemID     = internal.WorkItemID
	ScheduledJobID = internal.ScheduledJobID
	AuditSpanID    = internal.AuditSpanID
	TraceID        = internal.TraceID

	WorkflowState = internal.WorkflowState
	TaskState     = internal.TaskState
	WorkItemState = internal.WorkItemState
	ConditionKind = internal.ConditionKind
	TaskKind      = internal.TaskKind
	JoinType      = internal.JoinType
	SplitType     = internal.SplitType
	ExecutionMode = internal.ExecutionMode

	ParentRef         = internal.ParentRef
	WorkflowRow       = internal.WorkflowRow
	TaskRow           = internal.TaskRow
	ConditionRow      = internal.ConditionRow
	WorkItemRow       = internal.WorkItemRow
	ScheduledJobRow   = internal.ScheduledJobRow
	AuditSpanRow      = internal.AuditSpanRow
	AuditSnapshotRow  = internal.AuditSnapshotRow
	WorkflowSnapshot  = internal.WorkflowSnapshot

	Definition   = internal.Definition
	Builder      = internal.Builder
	TaskOption   = internal.TaskOption
	Activities   = internal.Activities
	ChildStats   = internal.ChildStats
	PolicyDecision = internal.PolicyDecision
	RouteFunc    = internal.RouteFunc
	PolicyFunc   = internal.PolicyFunc

	Validator     = internal.Validator
	ValidatorFunc = internal.ValidatorFunc

	TaskHandle     = internal.TaskHandle
	WorkItemHandle = internal.WorkItemHandle
	ExecutionContext = internal.ExecutionContext

	Migration        = internal.Migration
	OldTaskView      = internal.OldTaskView
	TaskMigratorFunc = internal.TaskMigratorFunc
	MigrationDecision = internal.MigrationDecision

	Store = internal.Store
	Tx    = internal.Tx

	Code        = internal.Code
	EngineError = internal.EngineError

	Registry = internal.Registry
	Option   = internal.Option

	IDGenerator    = internal.IDGenerator
	UUIDGenerator  = internal.UUIDGenerator
)

const (
	WorkflowInitialized = internal.WorkflowInitialized
	WorkflowStarted     = internal.WorkflowStarted
	WorkflowCompleted   = internal.WorkflowCompleted
	WorkflowFailed      = internal.WorkflowFailed
	WorkflowCanceled    = internal.WorkflowCanceled

	TaskDisabled  = internal.TaskDisabled
	TaskEnabled   = internal.TaskEnabled
	TaskStarted   = internal.TaskStarted
	TaskCompleted = internal.TaskCompleted
	TaskFailed    = internal.TaskFailed
	TaskCanceled  = internal.TaskCanceled

	TaskAtomic           = internal.TaskAtomic
	TaskComposite        = internal.TaskComposite
	TaskDynamicComposite = internal.TaskDynamicComposite
	TaskDummy            = internal.TaskDummy

	JoinAnd = internal.JoinAnd
	JoinXor = internal.JoinXor
	JoinOr  = internal.JoinOr

	SplitAnd = internal.SplitAnd
	SplitXor = internal.SplitXor

	ModeNormal      = internal.ModeNormal
	ModeFastForward = internal.ModeFastForward

	PolicyContinue = internal.PolicyContinue
	PolicyComplete = internal.PolicyComplete
	PolicyFail     = internal.PolicyFail

	MigrateFastForward = internal.MigrateFastForward
	MigrateContinue    = internal.MigrateContinue
)

// Error codes, re-exported for callers that switch on Code.
const (
	CodeUnreachableNode        = internal.CodeUnreachableNode
	CodeUnknownArcTarget       = internal.CodeUnknownArcTarget
	CodeMissingRouteCallback   = internal.CodeMissingRouteCallback
	CodeDuplicateName          = internal.CodeDuplicateName
	CodeWorkflowNotFound       = internal.CodeWorkflowNotFound
	CodeTaskNotFound           = internal.CodeTaskNotFound
	CodeWorkItemNotFound       = internal.CodeWorkItemNotFound
	CodeConditionNotFound      = internal.CodeConditionNotFound
	CodeInvalidWorkItemState   = internal.CodeInvalidWorkItemState
	CodeInvalidWorkflowState   = internal.CodeInvalidWorkflowState
	CodeInvalidTaskState       = internal.CodeInvalidTaskState
	CodePayloadValidationError = internal.CodePayloadValidationError
	CodePolicyRouteEmpty       = internal.CodePolicyRouteEmpty
	CodeXorJoinAmbiguous       = internal.CodeXorJoinAmbiguous
	CodeAndJoinUnsatisfied     = internal.CodeAndJoinUnsatisfied
	CodeMigrationChainNotFound = internal.CodeMigrationChainNotFound
	CodeMigrationHalted        = internal.CodeMigrationHalted
)

var (
	NewBuilder = internal.NewBuilder
	NewRegistry = internal.NewRegistry
	NewUUIDGenerator = internal.NewUUIDGenerator

	WithIDGenerator = internal.WithIDGenerator
	WithClock       = internal.WithClock
	WithLogger      = internal.WithLogger
	WithTracer      = internal.WithTracer
	WithMetrics     = internal.WithMetrics

	WithJoin             = internal.WithJoin
	WithSplit            = internal.WithSplit
	WithRoute            = internal.WithRoute
	WithActivities       = internal.WithActivities
	WithPolicy           = internal.WithPolicy
	WithWorkItem         = internal.WithWorkItem
	WithComposite        = internal.WithComposite
	WithDynamicComposite = internal.WithDynamicComposite
	WithInitializeValidator = internal.WithInitializeValidator
	WithCancelValidator     = internal.WithCancelValidator

	DefaultPolicy = internal.DefaultPolicy

	IsCode = internal.IsCode

	NoopValidator = internal.NoopValidator
)

// StructValidator builds a Validator that JSON-decodes a payload into T
// and runs go-playground/validator struct tags over it. It wraps
// internal.StructValidator directly (rather than aliasing it) since Go
// cannot alias a generic function without losing its type parameter.
func StructValidator[T any](v *govalidator.Validate) Validator {
	return internal.StructValidator[T](v)
}

// Every other public operation (InitializeRootWorkflow, StartWorkItem,
// CompleteWorkItem, CancelRootWorkflow, Migrate, GetWorkflowStateAtTime,
// Trace, RegisterDefinition, RegisterMigration, ...) is a method on
// *Registry, reachable directly through the Registry alias above without
// a forwarding function here.
