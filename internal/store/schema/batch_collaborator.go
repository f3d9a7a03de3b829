package schema

import (
	"gorm.io/datatypes"

	"github.com/openrelief/supply-registry/internal/domain"
)

// BatchCollaborator represents the batch_collaborators table - delegated
// permission records per batch. Append-only (no removal operation) and
// unbounded; entries are informational delegation records and do not gate
// any registry operation.
type BatchCollaborator struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// BatchID references the batch the delegation applies to
	BatchID uint64 `gorm:"column:batch_id;not null;index:idx_batch_collaborators_batch"`
	// Collaborator is the delegated identity
	Collaborator domain.Identity `gorm:"column:collaborator;not null;type:text"`
	// Role is a free-text role name
	Role string `gorm:"column:role;not null;type:text"`
	// Permissions is an ordered list of short permission strings, stored as JSON
	Permissions datatypes.JSON `gorm:"column:permissions;type:jsonb"`
	// AddedAt is the logical-clock value at append
	AddedAt uint64 `gorm:"column:added_at;not null"`
}

// TableName specifies the table name for the BatchCollaborator model
func (BatchCollaborator) TableName() string {
	return "batch_collaborators"
}
