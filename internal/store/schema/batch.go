package schema

import (
	"github.com/openrelief/supply-registry/internal/domain"
)

// Batch represents the batches table - the identity and ownership record for
// supply batches. A row exists if and only if the batch has been minted and
// not yet burned; burn deletes the row and every associated record, and the
// identifier is never reused.
type Batch struct {
	// ID is the sequential batch identifier, assigned at mint starting from 1
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Owner is the single current owning identity
	Owner domain.Identity `gorm:"column:owner;not null;type:text;index:idx_batches_owner"`
	// CreatedAt is the logical-clock value at mint
	CreatedAt uint64 `gorm:"column:created_at;not null"`

	// Associations
	Metadata      *BatchMetadata      `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"`
	Versions      []BatchVersion      `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"`
	Status        *BatchStatus        `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"`
	Licenses      []BatchLicense      `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"`
	Collaborators []BatchCollaborator `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Batch model
func (Batch) TableName() string {
	return "batches"
}
