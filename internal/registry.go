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
	"sync"

	"github.com/facebookgo/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tasquencer/tasquencer/metrics"
)

// Registry is the engine's public entry point: a registry of named
// workflow versions and their migrations (§4.5's Version Manager), plus
// the public API facade (§6.2) that dispatches every mutation and query
// through it. A Registry is an ordinary value, not a singleton; it holds no
// mutable net-element state itself, only immutable definitions and the
// collaborators (store, clock, logger) every transaction needs.
type Registry struct {
	store   Store
	ids     IDGenerator
	clock   clock.Clock
	logger  *zap.Logger
	tracer  trace.Tracer
	metrics *metrics.Recorder

	mu  sync.RWMutex
	vms map[string]*VersionManager
}

// Option configures a Registry at construction time.
type Option func(*Registry)

func WithIDGenerator(g IDGenerator) Option { return func(r *Registry) { r.ids = g } }
func WithClock(c clock.Clock) Option       { return func(r *Registry) { r.clock = c } }
func WithLogger(l *zap.Logger) Option      { return func(r *Registry) { r.logger = l } }
func WithTracer(t trace.Tracer) Option     { return func(r *Registry) { r.tracer = t } }
func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry builds a Registry over store, defaulting every collaborator
// (uuid ids, real clock, nop logger, global tracer, nil/no-op metrics)
// unless overridden by an Option.
func NewRegistry(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		ids:    NewUUIDGenerator(),
		clock:  clock.New(),
		logger: zap.NewNop(),
		tracer: otel.Tracer("github.com/tasquencer/tasquencer"),
		vms:    make(map[string]*VersionManager),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) versionManager(name string) *VersionManager {
	r.mu.RLock()
	vm, ok := r.vms[name]
	r.mu.RUnlock()
	if ok {
		return vm
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if vm, ok := r.vms[name]; ok {
		return vm
	}
	vm = newVersionManager(name)
	r.vms[name] = vm
	return vm
}

// RegisterDefinition adds one built, validated Definition as a version of
// its workflow name.
func (r *Registry) RegisterDefinition(def *Definition) error {
	if def == nil {
		return NewStructuralError(CodeDuplicateName, "nil definition")
	}
	return r.versionManager(def.Name).addVersion(def)
}

// RegisterMigration adds the upgrade path between two adjacent versions
// of workflowName.
func (r *Registry) RegisterMigration(workflowName string, m *Migration) {
	r.versionManager(workflowName).addMigration(m)
}

func (r *Registry) definition(name, versionName string) (*Definition, error) {
	r.mu.RLock()
	vm, ok := r.vms[name]
	r.mu.RUnlock()
	if !ok {
		return nil, NewNotFoundError(CodeWorkflowNotFound, "no definitions registered for workflow %q", name)
	}
	return vm.definition(versionName)
}

// runTx wraps the store's Tx with a fresh ExecutionContext and standard
// metrics/logging bookkeeping, as every public API method does.
func (r *Registry) runTx(ctx context.Context, operation string, traceID TraceID, mode ExecutionMode, fn func(ec *ExecutionContext) error) error {
	start := r.clock.Now()
	err := r.store.Tx(ctx, func(tx Tx) error {
		ec := newExecutionContext(ctx, tx, r, traceID, mode)
		return fn(ec)
	})
	r.metrics.ObserveLatency(r.clock.Now().Sub(start).Seconds())
	if err != nil {
		code := "unknown"
		if ee, ok := err.(*EngineError); ok {
			code = string(ee.Code())
		}
		r.metrics.TxFailed(operation, code)
		r.logger.Warn("transaction rolled back", zap.String("operation", operation), zap.Error(err))
		return err
	}
	r.metrics.TxCommitted(operation)
	return nil
}
