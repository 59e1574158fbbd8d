package enforce

import (
	"fmt"
	"strings"
	"sync"

	"meridian-hq/aegis/pkg/policy"
)

// Built-in constraint types.
const (
	// ConstraintRequireGovernance passes only for governed actors.
	ConstraintRequireGovernance = "REQUIRE_GOVERNANCE"

	// ConstraintRequireGovernedActor is an alias for
	// ConstraintRequireGovernance used by newer policy revisions.
	ConstraintRequireGovernedActor = "REQUIRE_GOVERNED_ACTOR"

	// ConstraintRequireAuditCorrelation passes only when a correlation
	// identifier was already attached to the execution context.
	ConstraintRequireAuditCorrelation = "REQUIRE_AUDIT_CORRELATION"

	// ConstraintRequireOwner passes only when the "owner" field is
	// present and non-blank.
	ConstraintRequireOwner = "REQUIRE_OWNER"

	// ConstraintRequireDescription passes only when the "description"
	// field is present and non-blank.
	ConstraintRequireDescription = "REQUIRE_DESCRIPTION"

	// ConstraintLimitValue passes when the named numeric field is
	// absent, non-numeric, or does not exceed the "maxValue" parameter.
	ConstraintLimitValue = "LIMIT_VALUE"

	// ConstraintInNamespaces passes when the context namespace equals
	// one of the "namespaces" parameter entries or is a sub-path of one.
	ConstraintInNamespaces = "IN_NAMESPACES"

	// ConstraintExecutionLimit always passes locally. Rate limiting is
	// enforced by the governance authority out-of-band; the local
	// evaluation of this type is advisory only.
	ConstraintExecutionLimit = "EXECUTION_LIMIT"
)

// ConstraintFunc evaluates one constraint against the operation context
// and acting principal. It returns whether the constraint is satisfied
// and, on failure, a default message used when the constraint itself
// carries none. Evaluators must never panic on malformed data.
type ConstraintFunc func(c policy.Constraint, evalCtx *EvaluationContext, principal Principal) (ok bool, message string)

// ConstraintRegistry maps constraint-type identifiers to evaluators.
// New constraint types can be registered at startup without touching
// the orchestrator; registration after evaluation has begun is safe
// but should be unnecessary.
type ConstraintRegistry struct {
	mu         sync.RWMutex
	evaluators map[string]ConstraintFunc
}

// NewConstraintRegistry creates a registry pre-populated with the
// built-in constraint vocabulary.
func NewConstraintRegistry() *ConstraintRegistry {
	r := &ConstraintRegistry{
		evaluators: make(map[string]ConstraintFunc),
	}

	r.Register(ConstraintRequireGovernance, requireGovernedActor)
	r.Register(ConstraintRequireGovernedActor, requireGovernedActor)
	r.Register(ConstraintRequireAuditCorrelation, requireAuditCorrelation)
	r.Register(ConstraintRequireOwner, requireField("owner"))
	r.Register(ConstraintRequireDescription, requireField("description"))
	r.Register(ConstraintLimitValue, limitValue)
	r.Register(ConstraintInNamespaces, inNamespaces)
	r.Register(ConstraintExecutionLimit, executionLimit)

	return r
}

// Register adds or replaces the evaluator for a constraint type.
func (r *ConstraintRegistry) Register(constraintType string, fn ConstraintFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluators[constraintType] = fn
}

// Lookup returns the evaluator for a constraint type.
func (r *ConstraintRegistry) Lookup(constraintType string) (ConstraintFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.evaluators[constraintType]
	return fn, ok
}

// Types returns the registered constraint type identifiers.
func (r *ConstraintRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.evaluators))
	for t := range r.evaluators {
		types = append(types, t)
	}
	return types
}

// evaluate runs a policy's constraints in order and stops at the first
// failure. It returns ok=true when every constraint passed; otherwise
// the failing constraint's type and message. Unknown constraint types
// pass unless strict mode is enabled.
func (r *ConstraintRegistry) evaluate(p *policy.Policy, evalCtx *EvaluationContext, principal Principal, strict bool) (ok bool, constraintType, message string) {
	for _, c := range p.Constraints {
		fn, known := r.Lookup(c.Type)
		if !known {
			if strict {
				return false, c.Type, fmt.Sprintf("unknown constraint type %q", c.Type)
			}
			continue
		}

		passed, defaultMsg := fn(c, evalCtx, principal)
		if !passed {
			msg := c.Message
			if msg == "" {
				msg = defaultMsg
			}
			return false, c.Type, msg
		}
	}
	return true, "", ""
}

func requireGovernedActor(c policy.Constraint, evalCtx *EvaluationContext, principal Principal) (bool, string) {
	if principal.GovernedActor {
		return true, ""
	}
	return false, "principal is not a governed actor"
}

func requireAuditCorrelation(c policy.Constraint, evalCtx *EvaluationContext, principal Principal) (bool, string) {
	if evalCtx.CorrelationID != "" {
		return true, ""
	}
	return false, "no audit correlation identifier in execution context"
}

// requireField builds an evaluator that demands a present, non-blank
// field. The "field" parameter overrides the default field name.
func requireField(defaultField string) ConstraintFunc {
	return func(c policy.Constraint, evalCtx *EvaluationContext, principal Principal) (bool, string) {
		field := c.Param("field")
		if field == "" {
			field = defaultField
		}
		v, present := evalCtx.Field(field)
		if present && strings.TrimSpace(stringify(v)) != "" {
			return true, ""
		}
		return false, fmt.Sprintf("required field %q is missing or blank", field)
	}
}

func limitValue(c policy.Constraint, evalCtx *EvaluationContext, principal Principal) (bool, string) {
	field := c.Param("field")
	max, maxOK := toFloat64(c.Param("maxValue"))
	if field == "" || !maxOK {
		// Unusable parameters cannot be enforced; degrade open.
		return true, ""
	}

	v, present := evalCtx.Field(field)
	if !present {
		return true, ""
	}
	actual, numeric := toFloat64(v)
	if !numeric {
		return true, ""
	}

	if actual <= max {
		return true, ""
	}
	return false, fmt.Sprintf("field %q value %v exceeds limit %v", field, v, c.Param("maxValue"))
}

func inNamespaces(c policy.Constraint, evalCtx *EvaluationContext, principal Principal) (bool, string) {
	allowed := c.Param("namespaces")
	if allowed == "" {
		return true, ""
	}

	for _, entry := range strings.Split(allowed, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if evalCtx.Namespace == entry || strings.HasPrefix(evalCtx.Namespace, entry+"/") {
			return true, ""
		}
	}
	return false, fmt.Sprintf("namespace %q is not in the allowed set", evalCtx.Namespace)
}

// executionLimit always passes: the governance authority enforces
// execution rate limits out-of-band, and local evaluation of this
// constraint type is advisory only.
func executionLimit(c policy.Constraint, evalCtx *EvaluationContext, principal Principal) (bool, string) {
	return true, ""
}
