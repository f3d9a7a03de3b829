// Package verifier implements the external organization-verification
// capability the registry consults during minting. The registry holds an
// optional Verifier; absence is equivalent to a negative answer.
package verifier

import (
	"context"

	"github.com/openrelief/supply-registry/internal/domain"
)

// Verifier answers whether an identity is an approved organization
type Verifier interface {
	// IsVerified checks the identity against the verification registry
	IsVerified(ctx context.Context, identity domain.Identity) (bool, error)
}
