package enforce

import (
	"fmt"
	"time"

	"meridian-hq/aegis/pkg/policy"
)

// Violation is a failed constraint whose policy enforcement level is
// blocking (BLOCK or QUARANTINE).
type Violation struct {
	// PolicyID and PolicyName identify the violated policy.
	PolicyID   string
	PolicyName string

	// ConstraintType names the first failing constraint.
	ConstraintType string

	// Message is the failure message carried by the constraint.
	Message string

	// Enforcement is the policy's enforcement level (BLOCK or QUARANTINE).
	Enforcement policy.EnforcementLevel

	// Severity is the policy's informational violation classification.
	Severity policy.Severity
}

// String renders the violation for surfacing at an API boundary.
func (v Violation) String() string {
	return fmt.Sprintf("%s [%s]: %s", v.PolicyName, v.ConstraintType, v.Message)
}

// Warning is a failed constraint whose policy enforcement level is
// non-blocking (LOG or WARN). Warnings never change the operation's
// success status.
type Warning struct {
	PolicyID       string
	PolicyName     string
	ConstraintType string
	Message        string
}

// Result is the outcome of one evaluate call.
type Result struct {
	// Passed is true exactly when Violations is empty. Warnings never
	// affect Passed.
	Passed bool

	// Violations are blocking failures in policy priority order.
	Violations []Violation

	// Warnings are non-blocking failures in policy priority order.
	Warnings []Warning

	// CorrelationID threads this evaluation through audit reporting.
	CorrelationID string

	// Duration is how long the evaluation took.
	Duration time.Duration

	// PoliciesEvaluated is the number of applicable policies considered.
	PoliciesEvaluated int
}

// Blocked reports whether the guarded operation must abort.
func (r *Result) Blocked() bool {
	return !r.Passed
}

// ViolationMessages returns the aggregated violation messages for
// surfacing to the caller of the guarded operation.
func (r *Result) ViolationMessages() []string {
	if len(r.Violations) == 0 {
		return nil
	}
	msgs := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		msgs[i] = v.String()
	}
	return msgs
}
