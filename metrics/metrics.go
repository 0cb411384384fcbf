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

// Package metrics defines the engine's Prometheus instrumentation, wired
// the way kubernaut and openchoreo register client_golang collectors: one
// struct of pre-created collectors, registered once against a Registerer
// and threaded through by reference rather than touched via globals.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder is the set of collectors the engine updates as it runs
// transactions, fires tasks, and migrates workflows. A nil *Recorder is
// valid and every method on it is a no-op, so instrumentation is opt-in.
type Recorder struct {
	Transactions      *prometheus.CounterVec
	TransactionErrors *prometheus.CounterVec
	TaskFirings       *prometheus.CounterVec
	WorkflowsFinalized *prometheus.CounterVec
	MigrationHops     *prometheus.CounterVec
	TransactionLatency prometheus.Histogram
}

// New builds a Recorder and registers its collectors against reg. Passing
// prometheus.NewRegistry() keeps tests isolated from the global registry.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tasquencer",
			Name:      "transactions_total",
			Help:      "Committed engine transactions by operation.",
		}, []string{"operation"}),
		TransactionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tasquencer",
			Name:      "transaction_errors_total",
			Help:      "Rolled-back engine transactions by operation and error code.",
		}, []string{"operation", "code"}),
		TaskFirings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tasquencer",
			Name:      "task_firings_total",
			Help:      "Task state transitions by task name and new state.",
		}, []string{"task", "state"}),
		WorkflowsFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tasquencer",
			Name:      "workflows_finalized_total",
			Help:      "Workflows reaching a terminal state, by definition name and state.",
		}, []string{"name", "state"}),
		MigrationHops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tasquencer",
			Name:      "migration_hops_total",
			Help:      "Completed migration hops by workflow name and target version.",
		}, []string{"name", "target_version"}),
		TransactionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tasquencer",
			Name:      "transaction_latency_seconds",
			Help:      "Wall-clock latency of engine transactions, committed or rolled back.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(r.Transactions, r.TransactionErrors, r.TaskFirings, r.WorkflowsFinalized, r.MigrationHops, r.TransactionLatency)
	}
	return r
}

func (r *Recorder) txCommitted(operation string) {
	if r == nil {
		return
	}
	r.Transactions.WithLabelValues(operation).Inc()
}

func (r *Recorder) txFailed(operation, code string) {
	if r == nil {
		return
	}
	r.TransactionErrors.WithLabelValues(operation, code).Inc()
}

// TxCommitted records one successfully committed transaction.
func (r *Recorder) TxCommitted(operation string) { r.txCommitted(operation) }

// TxFailed records one rolled-back transaction with its error code.
func (r *Recorder) TxFailed(operation, code string) { r.txFailed(operation, code) }

// TaskFired records one task reaching a new state.
func (r *Recorder) TaskFired(task, state string) {
	if r == nil {
		return
	}
	r.TaskFirings.WithLabelValues(task, state).Inc()
}

// WorkflowFinalized records one workflow reaching a terminal state.
func (r *Recorder) WorkflowFinalized(name, state string) {
	if r == nil {
		return
	}
	r.WorkflowsFinalized.WithLabelValues(name, state).Inc()
}

// MigrationHop records one completed migration hop.
func (r *Recorder) MigrationHop(name, targetVersion string) {
	if r == nil {
		return
	}
	r.MigrationHops.WithLabelValues(name, targetVersion).Inc()
}

// ObserveLatency records a transaction's wall-clock duration in seconds.
func (r *Recorder) ObserveLatency(seconds float64) {
	if r == nil {
		return
	}
	r.TransactionLatency.Observe(seconds)
}
