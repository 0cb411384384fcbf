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

import "github.com/google/uuid"

// Typed identifiers, one per entity family in the data model. Keeping them
// distinct types (rather than bare strings) stops a WorkflowID from being
// passed where a TaskID is expected at compile time.
type (
	WorkflowID     string
	TaskID         string
	ConditionID    string
	WorkItemID     string
	ScheduledJobID string
	AuditSpanID    string
	TraceID        string
)

// IDGenerator produces new identifiers. Definitions and engines take one
// explicitly (never a package-level default) so that replay/migration code
// can swap in a deterministic generator under test.
type IDGenerator interface {
	NewWorkflowID() WorkflowID
	NewTaskID() TaskID
	NewConditionID() ConditionID
	NewWorkItemID() WorkItemID
	NewScheduledJobID() ScheduledJobID
	NewAuditSpanID() AuditSpanID
}

// UUIDGenerator is the default IDGenerator, backed by google/uuid v4s.
type UUIDGenerator struct{}

func NewUUIDGenerator() UUIDGenerator { return UUIDGenerator{} }

func (UUIDGenerator) NewWorkflowID() WorkflowID         { return WorkflowID(uuid.NewString()) }
func (UUIDGenerator) NewTaskID() TaskID                 { return TaskID(uuid.NewString()) }
func (UUIDGenerator) NewConditionID() ConditionID       { return ConditionID(uuid.NewString()) }
func (UUIDGenerator) NewWorkItemID() WorkItemID         { return WorkItemID(uuid.NewString()) }
func (UUIDGenerator) NewScheduledJobID() ScheduledJobID { return ScheduledJobID(uuid.NewString()) }
func (UUIDGenerator) NewAuditSpanID() AuditSpanID       { return AuditSpanID(uuid.NewString()) }
