package enforce

import (
	"strings"
	"testing"

	"meridian-hq/aegis/pkg/policy"
)

func TestBuiltinConstraints(t *testing.T) {
	registry := NewConstraintRegistry()

	tests := []struct {
		name       string
		constraint policy.Constraint
		evalCtx    *EvaluationContext
		principal  Principal
		wantOK     bool
	}{
		{
			name:       "require governance passes for governed actor",
			constraint: policy.Constraint{Type: ConstraintRequireGovernance},
			evalCtx:    &EvaluationContext{},
			principal:  Principal{ID: "svc", GovernedActor: true},
			wantOK:     true,
		},
		{
			name:       "require governance fails for ungoverned actor",
			constraint: policy.Constraint{Type: ConstraintRequireGovernance},
			evalCtx:    &EvaluationContext{},
			principal:  Principal{ID: "svc"},
			wantOK:     false,
		},
		{
			name:       "require governed actor alias",
			constraint: policy.Constraint{Type: ConstraintRequireGovernedActor},
			evalCtx:    &EvaluationContext{},
			principal:  Principal{GovernedActor: true},
			wantOK:     true,
		},
		{
			name:       "audit correlation present",
			constraint: policy.Constraint{Type: ConstraintRequireAuditCorrelation},
			evalCtx:    &EvaluationContext{CorrelationID: "corr-1"},
			wantOK:     true,
		},
		{
			name:       "audit correlation absent",
			constraint: policy.Constraint{Type: ConstraintRequireAuditCorrelation},
			evalCtx:    &EvaluationContext{},
			wantOK:     false,
		},
		{
			name:       "require owner present",
			constraint: policy.Constraint{Type: ConstraintRequireOwner},
			evalCtx:    &EvaluationContext{Fields: map[string]interface{}{"owner": "alice"}},
			wantOK:     true,
		},
		{
			name:       "require owner missing",
			constraint: policy.Constraint{Type: ConstraintRequireOwner},
			evalCtx:    &EvaluationContext{Fields: map[string]interface{}{}},
			wantOK:     false,
		},
		{
			name:       "require owner blank",
			constraint: policy.Constraint{Type: ConstraintRequireOwner},
			evalCtx:    &EvaluationContext{Fields: map[string]interface{}{"owner": "   "}},
			wantOK:     false,
		},
		{
			name:       "require description present",
			constraint: policy.Constraint{Type: ConstraintRequireDescription},
			evalCtx:    &EvaluationContext{Fields: map[string]interface{}{"description": "a capsule"}},
			wantOK:     true,
		},
		{
			name: "require field override",
			constraint: policy.Constraint{
				Type:       ConstraintRequireOwner,
				Parameters: map[string]string{"field": "steward"},
			},
			evalCtx: &EvaluationContext{Fields: map[string]interface{}{"steward": "bob"}},
			wantOK:  true,
		},
		{
			name: "limit value within limit",
			constraint: policy.Constraint{
				Type:       ConstraintLimitValue,
				Parameters: map[string]string{"field": "amount", "maxValue": "100"},
			},
			evalCtx: &EvaluationContext{Fields: map[string]interface{}{"amount": 100}},
			wantOK:  true,
		},
		{
			name: "limit value exceeded",
			constraint: policy.Constraint{
				Type:       ConstraintLimitValue,
				Parameters: map[string]string{"field": "amount", "maxValue": "100"},
			},
			evalCtx: &EvaluationContext{Fields: map[string]interface{}{"amount": 150}},
			wantOK:  false,
		},
		{
			name: "limit value absent field passes",
			constraint: policy.Constraint{
				Type:       ConstraintLimitValue,
				Parameters: map[string]string{"field": "amount", "maxValue": "100"},
			},
			evalCtx: &EvaluationContext{},
			wantOK:  true,
		},
		{
			name: "limit value non-numeric field passes",
			constraint: policy.Constraint{
				Type:       ConstraintLimitValue,
				Parameters: map[string]string{"field": "amount", "maxValue": "100"},
			},
			evalCtx: &EvaluationContext{Fields: map[string]interface{}{"amount": "plenty"}},
			wantOK:  true,
		},
		{
			name: "limit value unusable max passes",
			constraint: policy.Constraint{
				Type:       ConstraintLimitValue,
				Parameters: map[string]string{"field": "amount", "maxValue": "many"},
			},
			evalCtx: &EvaluationContext{Fields: map[string]interface{}{"amount": 150}},
			wantOK:  true,
		},
		{
			name: "in namespaces exact",
			constraint: policy.Constraint{
				Type:       ConstraintInNamespaces,
				Parameters: map[string]string{"namespaces": "finance, ops"},
			},
			evalCtx: &EvaluationContext{Namespace: "finance"},
			wantOK:  true,
		},
		{
			name: "in namespaces sub-path",
			constraint: policy.Constraint{
				Type:       ConstraintInNamespaces,
				Parameters: map[string]string{"namespaces": "finance"},
			},
			evalCtx: &EvaluationContext{Namespace: "finance/trading"},
			wantOK:  true,
		},
		{
			name: "in namespaces prefix is not sub-path",
			constraint: policy.Constraint{
				Type:       ConstraintInNamespaces,
				Parameters: map[string]string{"namespaces": "finance"},
			},
			evalCtx: &EvaluationContext{Namespace: "finance-ops"},
			wantOK:  false,
		},
		{
			name: "in namespaces rejected",
			constraint: policy.Constraint{
				Type:       ConstraintInNamespaces,
				Parameters: map[string]string{"namespaces": "finance"},
			},
			evalCtx: &EvaluationContext{Namespace: "ops"},
			wantOK:  false,
		},
		{
			name:       "execution limit always passes",
			constraint: policy.Constraint{Type: ConstraintExecutionLimit, Parameters: map[string]string{"maxPerHour": "1"}},
			evalCtx:    &EvaluationContext{},
			wantOK:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, ok := registry.Lookup(tt.constraint.Type)
			if !ok {
				t.Fatalf("Lookup(%q) missing builtin", tt.constraint.Type)
			}
			got, msg := fn(tt.constraint, tt.evalCtx, tt.principal)
			if got != tt.wantOK {
				t.Errorf("constraint %s = %v, want %v", tt.constraint.Type, got, tt.wantOK)
			}
			if !got && msg == "" {
				t.Errorf("constraint %s failed without a default message", tt.constraint.Type)
			}
		})
	}
}

func TestRegistryEvaluateShortCircuits(t *testing.T) {
	registry := NewConstraintRegistry()

	calls := 0
	registry.Register("ALWAYS_FAIL", func(c policy.Constraint, evalCtx *EvaluationContext, principal Principal) (bool, string) {
		calls++
		return false, "nope"
	})

	p := &policy.Policy{
		ID:          "p",
		Name:        "p",
		Enforcement: policy.EnforcementBlock,
		Constraints: []policy.Constraint{
			{Type: "ALWAYS_FAIL", Message: "custom message"},
			{Type: "ALWAYS_FAIL"},
		},
	}

	ok, constraintType, message := registry.evaluate(p, &EvaluationContext{}, Principal{}, false)
	if ok {
		t.Fatal("evaluate() = ok for failing policy")
	}
	if constraintType != "ALWAYS_FAIL" {
		t.Errorf("constraintType = %q, want ALWAYS_FAIL", constraintType)
	}
	if message != "custom message" {
		t.Errorf("message = %q, want the constraint's own message", message)
	}
	if calls != 1 {
		t.Errorf("evaluator called %d times, want 1 (short-circuit)", calls)
	}
}

func TestRegistryUnknownConstraint(t *testing.T) {
	registry := NewConstraintRegistry()
	p := &policy.Policy{
		ID:          "p",
		Name:        "p",
		Enforcement: policy.EnforcementBlock,
		Constraints: []policy.Constraint{{Type: "NOT_A_THING"}},
	}

	if ok, _, _ := registry.evaluate(p, &EvaluationContext{}, Principal{}, false); !ok {
		t.Error("unknown constraint failed outside strict mode")
	}

	ok, constraintType, message := registry.evaluate(p, &EvaluationContext{}, Principal{}, true)
	if ok {
		t.Fatal("unknown constraint passed in strict mode")
	}
	if constraintType != "NOT_A_THING" {
		t.Errorf("constraintType = %q, want NOT_A_THING", constraintType)
	}
	if !strings.Contains(message, "unknown constraint") {
		t.Errorf("message = %q, want unknown-constraint message", message)
	}
}

func TestRegistryTypes(t *testing.T) {
	registry := NewConstraintRegistry()
	types := registry.Types()

	want := map[string]bool{
		ConstraintRequireGovernance:       false,
		ConstraintRequireGovernedActor:    false,
		ConstraintRequireAuditCorrelation: false,
		ConstraintRequireOwner:            false,
		ConstraintRequireDescription:      false,
		ConstraintLimitValue:              false,
		ConstraintInNamespaces:            false,
		ConstraintExecutionLimit:          false,
	}
	for _, typ := range types {
		if _, ok := want[typ]; ok {
			want[typ] = true
		}
	}
	for typ, seen := range want {
		if !seen {
			t.Errorf("Types() missing builtin %q", typ)
		}
	}
}
