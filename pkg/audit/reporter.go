// Package audit carries detected policy violations from the local
// enforcement agent to the governance authority for compliance
// persistence.
//
// Reporting is best-effort by design: the guarded business operation's
// outcome depends only on the local decision, never on the success of
// audit delivery. AsyncReporter makes that decoupling explicit at the
// type level, and SQLiteSpool provides a durable local buffer for an
// external governance client to drain.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// Violation is the audit record of a single failed blocking constraint.
// It is plain data, decoupled from the evaluation engine's types so
// reports can be serialized and shipped independently.
type Violation struct {
	PolicyID       string `json:"policy_id"`
	PolicyName     string `json:"policy_name"`
	ConstraintType string `json:"constraint_type"`
	Message        string `json:"message"`
	Enforcement    string `json:"enforcement"`
	Severity       string `json:"severity"`
}

// ViolationReport aggregates all violations detected in one evaluation.
// The agent submits at most one report per evaluate call.
type ViolationReport struct {
	// ID uniquely identifies the report.
	ID string `json:"id"`

	// Operation is the guarded business operation that was evaluated.
	Operation string `json:"operation"`

	// ObjectType and Namespace locate the governed object.
	ObjectType string `json:"object_type"`
	Namespace  string `json:"namespace"`

	// PrincipalID identifies the acting principal.
	PrincipalID string `json:"principal_id"`

	// CorrelationID threads the evaluation through remote audit trails.
	CorrelationID string `json:"correlation_id"`

	// Violations are the blocking failures, in evaluation order.
	Violations []Violation `json:"violations"`

	// OccurredAt is when the evaluation ran.
	OccurredAt time.Time `json:"occurred_at"`
}

// Reporter delivers violation reports for audit and compliance
// persistence. Implementations must tolerate concurrent calls from
// many evaluation threads.
type Reporter interface {
	Report(ctx context.Context, report *ViolationReport) error
}

// LogReporter is a Reporter that writes reports to the structured log.
// It is the default when no governance client or spool is configured.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a log-backed reporter.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{logger: logger.With("component", "audit.log_reporter")}
}

// Report logs the violation report.
func (r *LogReporter) Report(ctx context.Context, report *ViolationReport) error {
	r.logger.Warn("policy violations detected",
		"report_id", report.ID,
		"operation", report.Operation,
		"object_type", report.ObjectType,
		"namespace", report.Namespace,
		"principal", report.PrincipalID,
		"correlation_id", report.CorrelationID,
		"violation_count", len(report.Violations),
	)
	return nil
}
