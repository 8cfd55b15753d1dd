// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package metrics wires Prometheus instrumentation into the protocol
// engine and transports. Set also defines TaskStatusTotal; package tasks
// does not increment it. Grounded on
// ruaan-deysel-unraid-management-agent's pattern of injecting a
// prometheus.Registerer into a component rather than relying on the
// default global registry, since every Protocol instance keeps its own
// independent state.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Set is the full collection of gauges and counters a Protocol instance
// and its transports report against.
type Set struct {
	OutstandingRequests prometheus.Gauge
	ActiveSessions prometheus.Gauge
	ActiveSSEStreams prometheus.Gauge
	RequestsTotal *prometheus.CounterVec
	RequestErrorsTotal *prometheus.CounterVec
	TaskStatusTotal *prometheus.CounterVec
}

// New builds a Set and registers every metric against reg. Pass a fresh
// prometheus.NewRegistry() per Protocol instance to keep metrics scoped,
// or the process-wide prometheus.DefaultRegisterer to expose them on a
// shared /metrics endpoint.
func New(reg prometheus.Registerer) *Set {
	s := &Set{
 OutstandingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
 Name: "mcpcore_outstanding_requests",
 Help: "Outbound requests awaiting a response.",
 }),
 ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
 Name: "mcpcore_active_sessions",
 Help: "Streamable HTTP sessions currently tracked.",
 }),
 ActiveSSEStreams: prometheus.NewGauge(prometheus.GaugeOpts{
 Name: "mcpcore_active_sse_streams",
 Help: "Open server-sent-event streams across all sessions.",
 }),
 RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
 Name: "mcpcore_requests_total",
 Help: "Inbound requests processed, by method.",
 }, []string{"method"}),
 RequestErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
 Name: "mcpcore_request_errors_total",
 Help: "Inbound requests that resulted in an error response, by method and code.",
 }, []string{"method", "code"}),
 TaskStatusTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
 Name: "mcpcore_task_status_total",
 Help: "Task status transitions, by resulting status.",
 }, []string{"status"}),
	}
	reg.MustRegister(
 s.OutstandingRequests,
 s.ActiveSessions,
 s.ActiveSSEStreams,
 s.RequestsTotal,
 s.RequestErrorsTotal,
 s.TaskStatusTotal,
	)
	return s
}
