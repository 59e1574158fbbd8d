package enforce

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"meridian-hq/aegis/pkg/policy"
)

// conditionsApply reports whether all of a policy's trigger conditions
// hold for the evaluation context. An empty condition list always
// applies. Condition evaluation never fails: malformed or missing data
// resolves to the documented per-operator fallback.
func conditionsApply(conditions []policy.Condition, evalCtx *EvaluationContext) bool {
	for _, cond := range conditions {
		if !conditionHolds(cond, evalCtx) {
			return false
		}
	}
	return true
}

// conditionHolds evaluates a single condition against the context.
func conditionHolds(cond policy.Condition, evalCtx *EvaluationContext) bool {
	actual, present := evalCtx.Field(cond.Field)

	switch cond.Operator {
	case policy.OperatorEquals:
		return present && valuesEqual(actual, cond.Value)

	case policy.OperatorNotEquals:
		return !present || !valuesEqual(actual, cond.Value)

	case policy.OperatorContains:
		return present && strings.Contains(stringify(actual), stringify(cond.Value))

	case policy.OperatorMatches:
		return present && fullMatch(stringify(actual), stringify(cond.Value))

	case policy.OperatorIn:
		return present && collectionContains(cond.Value, actual)

	case policy.OperatorNotIn:
		return !present || !collectionContains(cond.Value, actual)

	case policy.OperatorExists:
		return present

	case policy.OperatorNotExists:
		return !present

	case policy.OperatorGreaterThan:
		return compareNumeric(actual, cond.Value) > 0

	case policy.OperatorLessThan:
		return compareNumeric(actual, cond.Value) < 0

	default:
		// Unrecognized operators are treated as satisfied so that a
		// policy authored against a newer operator vocabulary degrades
		// to its constraints instead of silently never applying.
		return true
	}
}

// valuesEqual compares two values, trying numeric equality first so
// that int and float64 renditions of the same number compare equal.
func valuesEqual(actual, expected interface{}) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}

	actualNum, aok := toFloat64(actual)
	expectedNum, eok := toFloat64(expected)
	if aok && eok {
		return actualNum == expectedNum
	}

	if reflect.DeepEqual(actual, expected) {
		return true
	}
	return stringify(actual) == stringify(expected)
}

// fullMatch matches s against pattern as a full-string regular
// expression. An invalid pattern matches nothing.
func fullMatch(s, pattern string) bool {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

// collectionContains reports whether collection is a slice or array
// containing elem. A non-collection value contains nothing.
func collectionContains(collection, elem interface{}) bool {
	v := reflect.ValueOf(collection)
	if !v.IsValid() || (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) {
		return false
	}
	for i := 0; i < v.Len(); i++ {
		if valuesEqual(v.Index(i).Interface(), elem) {
			return true
		}
	}
	return false
}

// compareNumeric compares two values numerically, returning -1, 0 or 1.
// Operands that cannot be coerced to a number compare as equal, so a
// strict GREATER_THAN or LESS_THAN condition is never satisfied by
// non-numeric data. This mirrors the behavior of the governance
// authority's own evaluator and is kept for compatibility.
func compareNumeric(actual, expected interface{}) int {
	a, aok := toFloat64(actual)
	b, bok := toFloat64(expected)
	if !aok || !bok {
		return 0
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// toFloat64 coerces numeric types and numeric strings to float64.
func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// stringify renders a value for substring and pattern comparisons.
func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(v)
	}
}
