package schema

import (
	"github.com/openrelief/supply-registry/internal/domain"
)

// BatchLicense represents the batch_licenses table - time-bound usage grants
// per batch. The list is unbounded and carries no dedup: granting twice to
// the same licensee appends two rows. Revocation deletes matching rows
// outright; the Active flag is written true on grant and never toggled.
type BatchLicense struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// BatchID references the licensed batch
	BatchID uint64 `gorm:"column:batch_id;not null;index:idx_batch_licenses_batch"`
	// Licensee is the identity the grant was issued to
	Licensee domain.Identity `gorm:"column:licensee;not null;type:text;index:idx_batch_licenses_licensee"`
	// Expiry is the logical-clock value at which the grant lapses (inclusive)
	Expiry uint64 `gorm:"column:expiry;not null;index:idx_batch_licenses_expiry"`
	// Terms is free text describing the grant
	Terms string `gorm:"column:terms;not null;type:text"`
	// Active is recorded on grant; revocation removes the row instead of clearing it
	Active bool `gorm:"column:active;not null;default:true"`
}

// TableName specifies the table name for the BatchLicense model
func (BatchLicense) TableName() string {
	return "batch_licenses"
}
