// Package policy defines the data model for governance policies
// distributed to enforcement agents: scopes, trigger conditions,
// constraints, enforcement levels, and violation severities.
//
// Policies are authored centrally by the governance authority and are
// immutable once received; everything in this package is plain data
// plus pure matching helpers.
package policy
