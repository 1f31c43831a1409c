package interfaces

import (
	"context"

	"github.com/dilshad08/virtual-classroom/pkg/types"
)

// IdentityProvider turns request credentials into a verified identity.
type IdentityProvider interface {
	// Register creates an account. Duplicate emails fail with
	// types.ErrConflict.
	Register(ctx context.Context, email, password, name string, role types.Role) (*types.User, error)

	// Login verifies credentials and returns a signed access token.
	Login(ctx context.Context, email, password string) (string, error)

	// Verify validates a token and returns the identity it carries, or
	// types.ErrUnauthenticated.
	Verify(token string) (types.Identity, error)
}

// Authorizer is the single policy-evaluation step taken before each
// gated operation.
type Authorizer interface {
	// Require returns types.ErrForbidden unless role is one of
	// required. An empty required list allows everyone.
	Require(role types.Role, required ...types.Role) error
}
