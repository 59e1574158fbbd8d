// Package enforce implements the local policy enforcement agent: the
// evaluation engine that runs distributed governance policies inline
// with guarded business operations, without a network round trip.
//
// The Agent pulls applicable policies from the policy store, gates each
// one on its trigger conditions, evaluates its constraints through an
// extensible registry, and splits failures into blocking violations and
// non-blocking warnings according to each policy's enforcement level.
// Violations are handed to an audit reporter; the caller only ever sees
// a well-typed Result, never an error from malformed policy or context
// data.
package enforce
