package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	globalMetrics *Metrics
	metricsMu     sync.RWMutex
)

// SetGlobalMetrics installs m as the process-wide recorder.
func SetGlobalMetrics(m *Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GlobalMetrics returns the installed recorder. The result may be nil; all
// Metrics methods are nil-safe.
func GlobalMetrics() *Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}

// Metrics records vault instruments. A nil *Metrics records nothing.
type Metrics struct {
	agentExecutions metric.Int64Counter
	agentDuration   metric.Float64Histogram

	llmDuration metric.Float64Histogram
	llmErrors   metric.Int64Counter

	retrievalDuration metric.Float64Histogram
	retrievalPassages metric.Int64Histogram
	retrievalErrors   metric.Int64Counter

	workflowRuns     metric.Int64Counter
	workflowDuration metric.Float64Histogram

	httpRequests metric.Int64Counter
	httpDuration metric.Float64Histogram
}

// NewMetrics creates every instrument on meter, prefixing names with
// namespace.
func NewMetrics(meter metric.Meter, namespace string) (*Metrics, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	name := func(s string) string { return namespace + "_" + s }

	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.agentExecutions, "agent_executions_total", "Agent executions by agent, status and confidence"},
		{&m.llmErrors, "llm_errors_total", "Failed language model calls"},
		{&m.retrievalErrors, "retrieval_errors_total", "Failed retrieval searches"},
		{&m.workflowRuns, "workflow_runs_total", "Workflow runs by workflow and final status"},
		{&m.httpRequests, "http_requests_total", "HTTP requests by route and status"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(name(c.name), metric.WithDescription(c.desc)); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", c.name, err)
		}
	}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&m.agentDuration, "agent_execution_duration_seconds", "Agent execution duration in seconds"},
		{&m.llmDuration, "llm_request_duration_seconds", "Language model request duration in seconds"},
		{&m.retrievalDuration, "retrieval_search_duration_seconds", "Retrieval search duration in seconds"},
		{&m.workflowDuration, "workflow_duration_seconds", "Workflow run duration in seconds"},
		{&m.httpDuration, "http_request_duration_seconds", "HTTP request duration in seconds"},
	}
	for _, h := range histograms {
		if *h.dst, err = meter.Float64Histogram(name(h.name), metric.WithDescription(h.desc), metric.WithUnit("s")); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", h.name, err)
		}
	}

	if m.retrievalPassages, err = meter.Int64Histogram(name("retrieval_passages"),
		metric.WithDescription("Passages returned per retrieval search")); err != nil {
		return nil, fmt.Errorf("failed to create retrieval_passages: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordAgentExecution(ctx context.Context, agent, status, confidence string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrAgentName, agent),
		attribute.String(AttrAgentStatus, status),
		attribute.String(AttrConfidence, confidence),
	)
	m.agentExecutions.Add(ctx, 1, attrs)
	m.agentDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(AttrAgentName, agent)))
}

func (m *Metrics) RecordLLMCall(ctx context.Context, provider, model string, d time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrLLMProvider, provider),
		attribute.String(AttrLLMModel, model),
	)
	m.llmDuration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		m.llmErrors.Add(ctx, 1, attrs)
	}
}

func (m *Metrics) RecordRetrieval(ctx context.Context, d time.Duration, passages int, err error) {
	if m == nil {
		return
	}
	m.retrievalDuration.Record(ctx, d.Seconds())
	if err != nil {
		m.retrievalErrors.Add(ctx, 1)
		return
	}
	m.retrievalPassages.Record(ctx, int64(passages))
}

func (m *Metrics) RecordWorkflow(ctx context.Context, workflow, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.workflowRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrWorkflowName, workflow),
		attribute.String("workflow.status", status),
	))
	m.workflowDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(AttrWorkflowName, workflow)))
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPRoute, route),
		attribute.Int(AttrHTTPStatus, status),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDuration.Record(ctx, d.Seconds(), attrs)
}
