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

import (
	"context"
	"time"

	"github.com/facebookgo/clock"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tasquencer/tasquencer/metrics"
)

// ExecutionContext scopes one serialized mutation transaction (§2.2). It is
// created once per public API call and threaded through every net-element
// method and activity callback; nothing on it survives past the
// transaction it was built for.
type ExecutionContext struct {
	goCtx   context.Context
	tx      Tx
	ids     IDGenerator
	clock   clock.Clock
	logger  *zap.Logger
	tracer  trace.Tracer
	metrics *metrics.Recorder

	mode    ExecutionMode
	traceID TraceID

	spanStack []AuditSpanID
	scheduled []*ScheduledJobRow

	reg *Registry
}

func newExecutionContext(goCtx context.Context, tx Tx, reg *Registry, traceID TraceID, mode ExecutionMode) *ExecutionContext {
	return &ExecutionContext{
		goCtx:   goCtx,
		tx:      tx,
		ids:     reg.ids,
		clock:   reg.clock,
		logger:  reg.logger,
		tracer:  reg.tracer,
		metrics: reg.metrics,
		mode:    mode,
		traceID: traceID,
		reg:     reg,
	}
}

func (ec *ExecutionContext) Context() context.Context { return ec.goCtx }
func (ec *ExecutionContext) Mode() ExecutionMode       { return ec.mode }
func (ec *ExecutionContext) TraceID() TraceID          { return ec.traceID }
func (ec *ExecutionContext) Now() time.Time            { return ec.clock.Now() }
func (ec *ExecutionContext) Logger() *zap.Logger        { return ec.logger }
func (ec *ExecutionContext) Tx() Tx                    { return ec.tx }

// RegisterScheduled enqueues a deferred transaction tied to a task
// generation (§3 ScheduledJob). It is written to the store within the same
// transaction and released to a host-run dispatcher (worker.Dispatcher)
// only once that transaction commits.
func (ec *ExecutionContext) RegisterScheduled(parent ParentRef, runAt time.Time, kind string, payload []byte) (ScheduledJobID, error) {
	row := &ScheduledJobRow{
		ID:      ec.ids.NewScheduledJobID(),
		Parent:  parent,
		RunAt:   runAt,
		Kind:    kind,
		Payload: payload,
	}
	if err := ec.tx.InsertScheduledJob(row); err != nil {
		return "", err
	}
	ec.scheduled = append(ec.scheduled, row)
	return row.ID, nil
}

// pushSpan starts a span and makes it the current parent for nested spans
// started later in the same transaction; the returned pop func must be called (usually
// via defer) once the operation it records has finished.
func (ec *ExecutionContext) pushSpan(operationType, operation, resourceType, resourceID, resourceName string, workflowID WorkflowID, taskGeneration *int, attrs map[string]any) (*AuditSpanRow, func(), error) {
	var parent AuditSpanID
	if len(ec.spanStack) > 0 {
		parent = ec.spanStack[len(ec.spanStack)-1]
	}
	span := &AuditSpanRow{
		TraceID:        ec.traceID,
		SpanID:         ec.ids.NewAuditSpanID(),
		ParentSpanID:   parent,
		OperationType:  operationType,
		Operation:      operation,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		ResourceName:   resourceName,
		WorkflowID:     workflowID,
		TaskGeneration: taskGeneration,
		StartedAt:      ec.Now(),
		Attributes:     attrs,
	}
	_, otelSpan := ec.tracer.Start(ec.goCtx, operation)
	ec.spanStack = append(ec.spanStack, span.SpanID)
	return span, func() {
		span.EndedAt = ec.Now()
		ec.spanStack = ec.spanStack[:len(ec.spanStack)-1]
		otelSpan.End()
		if err := ec.tx.InsertAuditSpan(span); err != nil {
			ec.logger.Warn("failed to persist audit span", zap.Error(err), zap.String("operation", operation))
		}
	}, nil
}
