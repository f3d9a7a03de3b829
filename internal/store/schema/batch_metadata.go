package schema

import (
	"gorm.io/datatypes"
)

// BatchMetadata represents the batch_metadata table - the per-batch
// descriptive record. Exists if and only if the batch exists.
type BatchMetadata struct {
	// BatchID references the owning batch (primary key, one record per batch)
	BatchID uint64 `gorm:"column:batch_id;primaryKey"`
	// URI points to the off-ledger batch manifest (1-256 chars)
	URI string `gorm:"column:uri;not null;type:text"`
	// SupplyType is a free-text classification of the shipment contents
	SupplyType string `gorm:"column:supply_type;not null;type:text"`
	// Quantity is the positive unit count of the batch
	Quantity uint64 `gorm:"column:quantity;not null"`
	// Expiration is the optional logical-clock value after which the goods expire
	Expiration *uint64 `gorm:"column:expiration"`
	// Description is free text, at most 500 chars
	Description string `gorm:"column:description;not null;type:text"`
	// Tags is an ordered list of at most 10 short strings, stored as JSON
	Tags datatypes.JSON `gorm:"column:tags;type:jsonb"`
	// Locked forbids ownership transfer while true; metadata edits stay allowed
	Locked bool `gorm:"column:locked;not null;default:false"`
}

// TableName specifies the table name for the BatchMetadata model
func (BatchMetadata) TableName() string {
	return "batch_metadata"
}
