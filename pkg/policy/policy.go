package policy

import (
	"fmt"
	"time"
)

// Wildcard is the literal scope value that matches any service or
// object type, equivalent to leaving the scope dimension empty.
const Wildcard = "*"

// EnforcementLevel determines what happens when a policy's constraints fail.
type EnforcementLevel string

const (
	// EnforcementLog records the failure but never affects the operation.
	EnforcementLog EnforcementLevel = "LOG"

	// EnforcementWarn surfaces the failure as a warning; the operation proceeds.
	EnforcementWarn EnforcementLevel = "WARN"

	// EnforcementBlock aborts the guarded operation.
	EnforcementBlock EnforcementLevel = "BLOCK"

	// EnforcementQuarantine aborts the operation and marks the subject
	// for out-of-band review by the governance authority.
	EnforcementQuarantine EnforcementLevel = "QUARANTINE"
)

// Blocking reports whether a constraint failure at this level must
// abort the guarded operation.
func (l EnforcementLevel) Blocking() bool {
	return l == EnforcementBlock || l == EnforcementQuarantine
}

// Valid reports whether the level is one of the known enforcement levels.
func (l EnforcementLevel) Valid() bool {
	switch l {
	case EnforcementLog, EnforcementWarn, EnforcementBlock, EnforcementQuarantine:
		return true
	}
	return false
}

// Severity classifies a violation for audit and reporting purposes.
// It is informational and independent of the enforcement level.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether the severity is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// Operator identifies a condition comparison operator.
type Operator string

const (
	OperatorEquals      Operator = "EQUALS"
	OperatorNotEquals   Operator = "NOT_EQUALS"
	OperatorContains    Operator = "CONTAINS"
	OperatorMatches     Operator = "MATCHES"
	OperatorIn          Operator = "IN"
	OperatorNotIn       Operator = "NOT_IN"
	OperatorExists      Operator = "EXISTS"
	OperatorNotExists   Operator = "NOT_EXISTS"
	OperatorGreaterThan Operator = "GREATER_THAN"
	OperatorLessThan    Operator = "LESS_THAN"
)

// Condition is a single trigger condition. All of a policy's conditions
// must hold for the policy to apply to an operation.
type Condition struct {
	// Field is a dotted path into the evaluation context fields
	// (e.g. "metadata.classification").
	Field string `yaml:"field"`

	// Operator is the comparison to perform.
	Operator Operator `yaml:"operator"`

	// Value is the expected value the field is compared against.
	Value interface{} `yaml:"value,omitempty"`
}

// Constraint is a substantive rule checked once a policy applies.
// Constraints are evaluated in order and the first failure stops
// evaluation of the policy.
type Constraint struct {
	// Type names the constraint evaluator (e.g. "REQUIRE_OWNER").
	Type string `yaml:"type"`

	// Parameters carries evaluator-specific settings, such as
	// "field" and "maxValue" for LIMIT_VALUE.
	Parameters map[string]string `yaml:"parameters,omitempty"`

	// Message is the violation message reported on failure.
	Message string `yaml:"message,omitempty"`
}

// Param returns the named parameter, or "" if absent.
func (c Constraint) Param(name string) string {
	return c.Parameters[name]
}

// Policy is a versioned governance rule distributed to enforcement
// agents. A policy is immutable once cached; updates arrive as whole
// replacement policies under the same ID.
type Policy struct {
	// ID uniquely identifies the policy across the platform.
	ID string `yaml:"id"`

	// Name is the human-readable policy name.
	Name string `yaml:"name"`

	// Description explains the policy's intent.
	Description string `yaml:"description,omitempty"`

	// Version increases monotonically per policy ID.
	Version int `yaml:"version"`

	// Enabled gates the policy; disabled policies are never evaluated.
	Enabled bool `yaml:"enabled"`

	// Scope restricts which services, object types and namespaces the
	// policy applies to. Empty dimensions apply universally.
	Scope Scope `yaml:"scope,omitempty"`

	// Conditions must all hold for the policy to apply. An empty list
	// means the policy always applies within its scope.
	Conditions []Condition `yaml:"conditions,omitempty"`

	// Constraints are the substantive rules, evaluated in order.
	Constraints []Constraint `yaml:"constraints,omitempty"`

	// Enforcement determines whether failures block or only warn.
	Enforcement EnforcementLevel `yaml:"enforcement"`

	// Severity classifies violations produced by this policy.
	Severity Severity `yaml:"severity,omitempty"`

	// Priority orders evaluation; lower values evaluate first.
	Priority int `yaml:"priority,omitempty"`

	// CachedAt is the local receipt timestamp. It is cache bookkeeping
	// only and not part of policy identity.
	CachedAt time.Time `yaml:"-"`
}

// Clone returns a copy of the policy that shares no mutable state with
// the receiver: the scope, condition and constraint slices and the
// constraint parameter maps are all copied. Condition values are
// treated as immutable and shared.
func (p *Policy) Clone() *Policy {
	cloned := *p
	cloned.Scope = Scope{
		Services:          append([]string(nil), p.Scope.Services...),
		ObjectTypes:       append([]string(nil), p.Scope.ObjectTypes...),
		NamespacePatterns: append([]string(nil), p.Scope.NamespacePatterns...),
	}
	cloned.Conditions = append([]Condition(nil), p.Conditions...)
	if p.Constraints != nil {
		cloned.Constraints = make([]Constraint, len(p.Constraints))
		for i, c := range p.Constraints {
			copied := c
			if c.Parameters != nil {
				copied.Parameters = make(map[string]string, len(c.Parameters))
				for k, v := range c.Parameters {
					copied.Parameters[k] = v
				}
			}
			cloned.Constraints[i] = copied
		}
	}
	return &cloned
}

// Validate checks the policy for structural problems. It is called on
// ingestion so that a malformed policy is rejected before it can reach
// the evaluation hot path.
func (p *Policy) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: policy id is empty", ErrInvalidPolicy)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: policy %q has no name", ErrInvalidPolicy, p.ID)
	}
	if !p.Enforcement.Valid() {
		return fmt.Errorf("%w: policy %q has unknown enforcement level %q", ErrInvalidPolicy, p.ID, p.Enforcement)
	}
	if p.Severity != "" && !p.Severity.Valid() {
		return fmt.Errorf("%w: policy %q has unknown severity %q", ErrInvalidPolicy, p.ID, p.Severity)
	}
	for i, c := range p.Constraints {
		if c.Type == "" {
			return fmt.Errorf("%w: policy %q constraint %d has no type", ErrInvalidPolicy, p.ID, i)
		}
	}
	for i, c := range p.Conditions {
		if c.Field == "" && c.Operator != OperatorExists && c.Operator != OperatorNotExists {
			return fmt.Errorf("%w: policy %q condition %d has no field", ErrInvalidPolicy, p.ID, i)
		}
	}
	return nil
}
