package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/openrelief/supply-registry/internal/domain"
)

// AllowlistData represents the structure of the allowlist.json file:
// a flat list of approved organization identities.
type AllowlistData []string

// allowlistVerifier answers verification from a static JSON file
type allowlistVerifier struct {
	identities map[domain.Identity]bool
}

// LoadAllowlist loads a static allowlist verifier from a JSON file
func LoadAllowlist(filePath string) (Verifier, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec,G304 // This should be a trusted file
	if err != nil {
		return nil, fmt.Errorf("failed to read allowlist file: %w", err)
	}

	var allowlistData AllowlistData
	if err := json.Unmarshal(data, &allowlistData); err != nil {
		return nil, fmt.Errorf("failed to parse allowlist JSON: %w", err)
	}

	v := &allowlistVerifier{
		identities: make(map[domain.Identity]bool),
	}
	for _, identity := range allowlistData {
		v.identities[domain.Identity(strings.ToLower(identity))] = true
	}

	return v, nil
}

// IsVerified checks the identity against the static allowlist
func (v *allowlistVerifier) IsVerified(ctx context.Context, identity domain.Identity) (bool, error) {
	return v.identities[domain.Identity(strings.ToLower(identity.String()))], nil
}
