package schema

import (
	"github.com/openrelief/supply-registry/internal/domain"
)

// RegistryStateID is the fixed primary key of the singleton state row
const RegistryStateID = 1

// RegistryState represents the registry_state table - the process-wide
// singleton record holding the admin identity, the pause switch, and the
// configured verification-capability reference. Exactly one row exists,
// created at initialization; the admin identity is immutable thereafter.
type RegistryState struct {
	// ID is always RegistryStateID
	ID int16 `gorm:"column:id;primaryKey"`
	// Admin is the registry administrator, set once at initialization
	Admin domain.Identity `gorm:"column:admin;not null;type:text"`
	// Paused blocks all non-admin mutating operations while true
	Paused bool `gorm:"column:paused;not null;default:false"`
	// VerifierEndpoint is the configured organization-verification capability
	// reference; nil means no capability is configured and minting fails
	VerifierEndpoint *string `gorm:"column:verifier_endpoint;type:text"`
	// UpdatedAt is the logical-clock value of the last admin mutation
	UpdatedAt uint64 `gorm:"column:updated_at;not null"`
}

// TableName specifies the table name for the RegistryState model
func (RegistryState) TableName() string {
	return "registry_state"
}
