package schema

import (
	"github.com/openrelief/supply-registry/internal/domain"
)

// BatchStatus represents the batch_status table - exactly one row per
// existing batch, overwritten by every mutating operation as its final side
// effect. Serves as a cross-cutting audit trail of "last action taken".
type BatchStatus struct {
	// BatchID references the batch (primary key, one record per batch)
	BatchID uint64 `gorm:"column:batch_id;primaryKey"`
	// Label is the short lifecycle label of the last mutation
	Label domain.StatusLabel `gorm:"column:label;not null;type:text"`
	// UpdatedAt is the logical-clock value of the last mutation
	UpdatedAt uint64 `gorm:"column:updated_at;not null"`
}

// TableName specifies the table name for the BatchStatus model
func (BatchStatus) TableName() string {
	return "batch_status"
}
