package schema

// BatchVersion represents the batch_versions table - the bounded append-only
// log of metadata revisions. At most 5 entries per batch; a full history
// rejects further appends rather than evicting. Version numbers are
// caller-supplied and carry no ordering or uniqueness constraint.
type BatchVersion struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// BatchID references the batch this revision belongs to
	BatchID uint64 `gorm:"column:batch_id;not null;index:idx_batch_versions_batch"`
	// Version is the caller-supplied positive revision number
	Version uint64 `gorm:"column:version;not null"`
	// URI is the revised manifest URI
	URI string `gorm:"column:uri;not null;type:text"`
	// Notes is free text describing the revision
	Notes string `gorm:"column:notes;not null;type:text"`
	// Timestamp is the logical-clock value at append
	Timestamp uint64 `gorm:"column:timestamp;not null"`
}

// TableName specifies the table name for the BatchVersion model
func (BatchVersion) TableName() string {
	return "batch_versions"
}
