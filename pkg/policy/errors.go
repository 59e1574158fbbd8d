package policy

import "errors"

// ErrInvalidPolicy indicates a structurally malformed policy that must
// not be cached or evaluated.
var ErrInvalidPolicy = errors.New("invalid policy")
