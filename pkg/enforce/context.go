package enforce

import "strings"

// Principal identifies the actor performing the guarded operation.
type Principal struct {
	// ID is the principal identifier as extracted by the caller's
	// identity layer.
	ID string

	// GovernedActor marks principals subject to governance oversight
	// requirements (checked by REQUIRE_GOVERNED_ACTOR constraints).
	GovernedActor bool
}

// EvaluationContext describes the operation being guarded: what kind
// of object it touches, in which namespace, and the operation's field
// data.
type EvaluationContext struct {
	// ObjectType is the governed object type (e.g. "CAPSULE").
	ObjectType string

	// Namespace is the namespace the operation targets.
	Namespace string

	// Fields is the operation's data, a possibly nested key/value
	// structure addressed by dotted paths in conditions and constraints.
	Fields map[string]interface{}

	// CorrelationID is the correlation identifier already attached to
	// the surrounding execution context, if any. When empty the agent
	// generates one for the evaluation.
	CorrelationID string
}

// Field resolves a dotted path ("a.b.c") through nested maps and
// returns the terminal value. ok is false if any segment is missing,
// non-traversable, or resolves to nil; a partial or malformed context
// yields "absent", never an error.
func (c *EvaluationContext) Field(path string) (interface{}, bool) {
	if c == nil || path == "" {
		return nil, false
	}

	var current interface{} = c.Fields
	for _, segment := range strings.Split(path, ".") {
		switch m := current.(type) {
		case map[string]interface{}:
			v, ok := m[segment]
			if !ok {
				return nil, false
			}
			current = v
		case map[string]string:
			v, ok := m[segment]
			if !ok {
				return nil, false
			}
			current = v
		default:
			return nil, false
		}
	}

	if current == nil {
		return nil, false
	}
	return current, true
}
