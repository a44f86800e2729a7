// Package monitor defines the observability collaborators the pipeline emits
// to: named operations with start/complete lifecycle and named metrics, plus
// an optional audit log for document access. The pipeline functions with all
// of them absent.
package monitor

import (
	"time"

	"github.com/rs/zerolog"
)

type MetricKind string

const (
	Counter   MetricKind = "counter"
	Gauge     MetricKind = "gauge"
	Histogram MetricKind = "histogram"
	Timer     MetricKind = "timer"
)

type OperationHandle struct {
	Name    string
	Labels  map[string]string
	Started time.Time
}

type Monitor interface {
	StartOperation(name string, labels map[string]string) OperationHandle
	CompleteOperation(handle OperationHandle, success bool, err error)
	RecordMetric(name string, value float64, kind MetricKind, labels map[string]string)
}

// Noop is the default collaborator: all emission disappears.
type Noop struct{}

func (Noop) StartOperation(name string, labels map[string]string) OperationHandle {
	return OperationHandle{Name: name, Labels: labels, Started: time.Now()}
}
func (Noop) CompleteOperation(OperationHandle, bool, error)            {}
func (Noop) RecordMetric(string, float64, MetricKind, map[string]string) {}

// OrNoop lets call sites stay unconditional.
func OrNoop(m Monitor) Monitor {
	if m == nil {
		return Noop{}
	}
	return m
}

// AuditLogger records document access for deployments that need it; absent
// by default.
type AuditLogger interface {
	LogDocumentAccess(documentRef, actor, outcome string)
}

type zerologAudit struct {
	log zerolog.Logger
}

func NewZerologAudit(log zerolog.Logger) AuditLogger {
	return &zerologAudit{log: log}
}

func (a *zerologAudit) LogDocumentAccess(documentRef, actor, outcome string) {
	a.log.Info().
		Str("event", "document_access").
		Str("document", documentRef).
		Str("actor", actor).
		Str("outcome", outcome).
		Msg("document accessed")
}
