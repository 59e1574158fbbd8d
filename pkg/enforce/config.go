package enforce

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig indicates invalid agent configuration.
var ErrInvalidConfig = errors.New("invalid agent configuration")

// Config contains configuration for the enforcement agent.
type Config struct {
	// Service is this consuming service's own name, used for the
	// service dimension of scope matching. Required.
	Service string

	// StrictConstraints makes unknown constraint types fail instead of
	// pass. Default: false, trading strict correctness for availability
	// unless the operator opts in.
	StrictConstraints bool
}

// Validate validates the agent configuration.
func (c *Config) Validate() error {
	if c.Service == "" {
		return fmt.Errorf("%w: service name is required", ErrInvalidConfig)
	}
	return nil
}
