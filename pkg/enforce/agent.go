package enforce

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"meridian-hq/aegis/pkg/audit"
	"meridian-hq/aegis/pkg/policy/store"
)

// Metrics receives evaluation telemetry from the agent. It is
// implemented by telemetry/metrics.Collector; a nil Metrics disables
// recording.
type Metrics interface {
	// RecordEvaluation records one evaluate call with its outcome
	// ("pass" or "blocked") and latency.
	RecordEvaluation(outcome string, duration time.Duration)

	// RecordViolation records one blocking constraint failure.
	RecordViolation(policyID, enforcement string)

	// RecordWarning records one non-blocking constraint failure.
	RecordWarning(policyID string)
}

// Evaluation outcomes reported to Metrics.
const (
	OutcomePass    = "pass"
	OutcomeBlocked = "blocked"
)

// Agent is the local policy enforcement engine. It evaluates cached
// governance policies against guarded business operations on the
// caller's thread; every call is a stateless transaction over the
// shared policy store.
type Agent struct {
	config      *Config
	store       *store.Store
	constraints *ConstraintRegistry
	reporter    audit.Reporter
	metrics     Metrics
	logger      *slog.Logger
	clock       func() time.Time
}

// New creates an enforcement agent.
//
// reporter and metrics may be nil, disabling violation reporting and
// telemetry respectively. The constraint registry starts with the
// built-in vocabulary; use Constraints().Register to extend it.
func New(config *Config, st *store.Store, reporter audit.Reporter, metrics Metrics, logger *slog.Logger) (*Agent, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config cannot be nil", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("%w: policy store cannot be nil", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Agent{
		config:      config,
		store:       st,
		constraints: NewConstraintRegistry(),
		reporter:    reporter,
		metrics:     metrics,
		logger:      logger.With("component", "enforce.agent", "service", config.Service),
		clock:       time.Now,
	}, nil
}

// Constraints returns the agent's constraint registry so callers can
// register additional constraint types at startup.
func (a *Agent) Constraints() *ConstraintRegistry {
	return a.constraints
}

// CachedPolicyCount returns the number of live cached policies, for
// operational and health dashboards.
func (a *Agent) CachedPolicyCount() int {
	return a.store.Size()
}

// Evaluate runs all applicable policies against the operation and
// returns the enforcement decision. It is fully synchronous, never
// returns an error, and never panics on malformed context data: all
// decision-relevant failures resolve into the Result. The caller
// decides whether to abort based on Result.Blocked().
func (a *Agent) Evaluate(ctx context.Context, operation string, evalCtx *EvaluationContext, principal Principal) *Result {
	start := a.clock()

	if evalCtx == nil {
		evalCtx = &EvaluationContext{}
	}

	correlationID := evalCtx.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	// Query already applied the object-type and namespace dimensions;
	// filter the remaining service dimension against our own name.
	candidates := a.store.Query(evalCtx.ObjectType, evalCtx.Namespace)
	policies := candidates[:0:0]
	for _, p := range candidates {
		if p.Scope.MatchesService(a.config.Service) {
			policies = append(policies, p)
		}
	}

	// Fast path: nothing applies, so no constraint evaluation and no
	// reporter call.
	if len(policies) == 0 {
		result := &Result{
			Passed:        true,
			CorrelationID: correlationID,
			Duration:      a.clock().Sub(start),
		}
		a.recordMetrics(result)
		return result
	}

	var violations []Violation
	var warnings []Warning

	for _, p := range policies {
		if !conditionsApply(p.Conditions, evalCtx) {
			continue
		}

		ok, constraintType, message := a.constraints.evaluate(p, evalCtx, principal, a.config.StrictConstraints)
		if ok {
			continue
		}

		if p.Enforcement.Blocking() {
			violations = append(violations, Violation{
				PolicyID:       p.ID,
				PolicyName:     p.Name,
				ConstraintType: constraintType,
				Message:        message,
				Enforcement:    p.Enforcement,
				Severity:       p.Severity,
			})
		} else {
			warnings = append(warnings, Warning{
				PolicyID:       p.ID,
				PolicyName:     p.Name,
				ConstraintType: constraintType,
				Message:        message,
			})
		}
	}

	result := &Result{
		Passed:            len(violations) == 0,
		Violations:        violations,
		Warnings:          warnings,
		CorrelationID:     correlationID,
		Duration:          a.clock().Sub(start),
		PoliciesEvaluated: len(policies),
	}

	if len(violations) > 0 {
		a.report(ctx, operation, evalCtx, principal, result)
		a.logger.Warn("operation blocked by policy",
			"operation", operation,
			"object_type", evalCtx.ObjectType,
			"namespace", evalCtx.Namespace,
			"correlation_id", correlationID,
			"violations", len(violations),
		)
	}

	a.recordMetrics(result)
	return result
}

// report submits the full violation set to the reporter, exactly once
// per evaluation. Reporter failures are logged and never propagate to
// the caller: the local decision stands on its own.
func (a *Agent) report(ctx context.Context, operation string, evalCtx *EvaluationContext, principal Principal, result *Result) {
	if a.reporter == nil {
		return
	}

	report := &audit.ViolationReport{
		ID:            uuid.New().String(),
		Operation:     operation,
		ObjectType:    evalCtx.ObjectType,
		Namespace:     evalCtx.Namespace,
		PrincipalID:   principal.ID,
		CorrelationID: result.CorrelationID,
		Violations:    make([]audit.Violation, len(result.Violations)),
		OccurredAt:    a.clock(),
	}
	for i, v := range result.Violations {
		report.Violations[i] = audit.Violation{
			PolicyID:       v.PolicyID,
			PolicyName:     v.PolicyName,
			ConstraintType: v.ConstraintType,
			Message:        v.Message,
			Enforcement:    string(v.Enforcement),
			Severity:       string(v.Severity),
		}
	}

	if err := a.reporter.Report(ctx, report); err != nil {
		a.logger.Error("failed to report violations",
			"report_id", report.ID,
			"correlation_id", report.CorrelationID,
			"error", err,
		)
	}
}

func (a *Agent) recordMetrics(result *Result) {
	if a.metrics == nil {
		return
	}

	outcome := OutcomePass
	if result.Blocked() {
		outcome = OutcomeBlocked
	}
	a.metrics.RecordEvaluation(outcome, result.Duration)

	for _, v := range result.Violations {
		a.metrics.RecordViolation(v.PolicyID, string(v.Enforcement))
	}
	for _, w := range result.Warnings {
		a.metrics.RecordWarning(w.PolicyID)
	}
}
