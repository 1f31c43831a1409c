package auth

import (
	"fmt"

	"github.com/dilshad08/virtual-classroom/pkg/types"
)

// Policy implements interfaces.Authorizer. One evaluation step before
// each gated operation instead of role checks scattered per endpoint.
type Policy struct{}

// NewPolicy returns the role policy.
func NewPolicy() Policy {
	return Policy{}
}

// Require returns types.ErrForbidden unless role is one of required.
// An empty required list allows every authenticated caller.
func (Policy) Require(role types.Role, required ...types.Role) error {
	if len(required) == 0 {
		return nil
	}
	for _, r := range required {
		if role == r {
			return nil
		}
	}
	return fmt.Errorf("role %s is not allowed: %w", role, types.ErrForbidden)
}
