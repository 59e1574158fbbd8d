package policy

import "regexp"

// Scope restricts a policy to combinations of consuming service,
// object type, and namespace. Each dimension is matched independently
// and all three must hold.
type Scope struct {
	// Services lists the consuming services the policy applies to.
	// Empty, or containing Wildcard, applies to every service.
	Services []string `yaml:"services,omitempty"`

	// ObjectTypes lists the governed object types the policy applies
	// to, with the same empty/wildcard semantics as Services.
	ObjectTypes []string `yaml:"objectTypes,omitempty"`

	// NamespacePatterns lists full-string regular expressions matched
	// against the operation namespace. Empty applies to every namespace.
	NamespacePatterns []string `yaml:"namespacePatterns,omitempty"`
}

// Matches reports whether the scope covers the given service, object
// type, and namespace.
func (s Scope) Matches(service, objectType, namespace string) bool {
	return s.MatchesService(service) &&
		s.MatchesObjectType(objectType) &&
		s.MatchesNamespace(namespace)
}

// MatchesService reports whether the service dimension covers service.
func (s Scope) MatchesService(service string) bool {
	return matchDimension(s.Services, service)
}

// MatchesObjectType reports whether the object-type dimension covers objectType.
func (s Scope) MatchesObjectType(objectType string) bool {
	return matchDimension(s.ObjectTypes, objectType)
}

// MatchesNamespace reports whether any namespace pattern matches
// namespace as a full-string regular expression. An empty pattern list
// matches every namespace. A pattern that fails to compile matches
// nothing rather than failing the evaluation.
//
// Callers matching repeatedly against the same scope should compile
// once with CompileNamespaces instead.
func (s Scope) MatchesNamespace(namespace string) bool {
	return s.CompileNamespaces().Matches(namespace)
}

// NamespaceMatcher holds a scope's namespace patterns in compiled form
// so queries on the evaluation hot path do not recompile them.
type NamespaceMatcher struct {
	universal bool
	patterns  []*regexp.Regexp
}

// CompileNamespaces compiles the scope's namespace patterns. Patterns
// that fail to compile are dropped and match nothing, mirroring
// MatchesNamespace.
func (s Scope) CompileNamespaces() NamespaceMatcher {
	if len(s.NamespacePatterns) == 0 {
		return NamespaceMatcher{universal: true}
	}
	m := NamespaceMatcher{}
	for _, pattern := range s.NamespacePatterns {
		re, err := regexp.Compile("^(?:" + pattern + ")$")
		if err != nil {
			continue
		}
		m.patterns = append(m.patterns, re)
	}
	return m
}

// Matches reports whether the compiled patterns cover namespace.
func (m NamespaceMatcher) Matches(namespace string) bool {
	if m.universal {
		return true
	}
	for _, re := range m.patterns {
		if re.MatchString(namespace) {
			return true
		}
	}
	return false
}

func matchDimension(values []string, v string) bool {
	if len(values) == 0 {
		return true
	}
	for _, candidate := range values {
		if candidate == v || candidate == Wildcard {
			return true
		}
	}
	return false
}
