package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openrelief/supply-registry/internal/domain"
	"github.com/openrelief/supply-registry/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// AutoMigrate creates or updates the registry tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&schema.Batch{},
		&schema.BatchMetadata{},
		&schema.BatchVersion{},
		&schema.BatchStatus{},
		&schema.BatchLicense{},
		&schema.BatchCollaborator{},
		&schema.RegistryState{},
	)
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero values fall back to defaults: MaxOpenConns 20,
// MaxIdleConns 5, ConnMaxLifetime 5m, ConnMaxIdleTime 10m.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// stringsJSON marshals a string list into a JSON column value.
// nil marshals as an empty list so reads always see a list.
func stringsJSON(values []string) (datatypes.JSON, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal string list: %w", err)
	}
	return datatypes.JSON(data), nil
}

// lockBatchOwned fetches the batch row with a row-level lock and verifies
// the expected owner. Returns domain.ErrNotFound or domain.ErrNotOwner.
func lockBatchOwned(tx *gorm.DB, batchID uint64, owner domain.Identity) (*schema.Batch, error) {
	var batch schema.Batch
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", batchID).
		First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	if batch.Owner != owner {
		return nil, domain.ErrNotOwner
	}

	return &batch, nil
}

// setStatus overwrites the batch status record. Every mutating operation
// calls this as its final step inside the same transaction, keeping the
// "status is updated last, always" invariant in one place.
func setStatus(tx *gorm.DB, batchID uint64, label domain.StatusLabel, now uint64) error {
	status := schema.BatchStatus{
		BatchID:   batchID,
		Label:     label,
		UpdatedAt: now,
	}
	if err := tx.Save(&status).Error; err != nil {
		return fmt.Errorf("failed to update batch status: %w", err)
	}
	return nil
}

// EnsureState creates the singleton registry state if absent and returns
// the current state. An existing admin identity is never overwritten.
func (s *pgStore) EnsureState(ctx context.Context, admin domain.Identity, now uint64) (*schema.RegistryState, error) {
	state := schema.RegistryState{
		ID:        schema.RegistryStateID,
		Admin:     admin,
		Paused:    false,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&state).Error
	if err != nil {
		return nil, fmt.Errorf("failed to ensure registry state: %w", err)
	}

	return s.GetState(ctx)
}

// GetState retrieves the singleton registry state
func (s *pgStore) GetState(ctx context.Context) (*schema.RegistryState, error) {
	var state schema.RegistryState
	err := s.db.WithContext(ctx).Where("id = ?", schema.RegistryStateID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get registry state: %w", err)
	}
	return &state, nil
}

// SetPaused flips the registry-wide pause switch
func (s *pgStore) SetPaused(ctx context.Context, paused bool, now uint64) error {
	err := s.db.WithContext(ctx).Model(&schema.RegistryState{}).
		Where("id = ?", schema.RegistryStateID).
		Updates(map[string]interface{}{"paused": paused, "updated_at": now}).Error
	if err != nil {
		return fmt.Errorf("failed to set paused: %w", err)
	}
	return nil
}

// SetVerifierEndpoint stores the verification-capability reference
func (s *pgStore) SetVerifierEndpoint(ctx context.Context, endpoint *string, now uint64) error {
	err := s.db.WithContext(ctx).Model(&schema.RegistryState{}).
		Where("id = ?", schema.RegistryStateID).
		Updates(map[string]interface{}{"verifier_endpoint": endpoint, "updated_at": now}).Error
	if err != nil {
		return fmt.Errorf("failed to set verifier endpoint: %w", err)
	}
	return nil
}

// MintBatch creates a new batch with metadata and initial status in a single
// transaction and returns the sequential identifier
func (s *pgStore) MintBatch(ctx context.Context, input MintBatchInput) (uint64, error) {
	var batchID uint64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Create the batch; the database sequence allocates the next
		// identifier and never reuses one, even after burn
		batch := schema.Batch{
			Owner:     input.Recipient,
			CreatedAt: input.Now,
		}
		if err := tx.Create(&batch).Error; err != nil {
			return fmt.Errorf("failed to create batch: %w", err)
		}
		batchID = batch.ID

		// 2. Create the metadata record, unlocked
		tags, err := stringsJSON(input.Tags)
		if err != nil {
			return err
		}
		metadata := schema.BatchMetadata{
			BatchID:     batch.ID,
			URI:         input.URI,
			SupplyType:  input.SupplyType,
			Quantity:    input.Quantity,
			Expiration:  input.Expiration,
			Description: input.Description,
			Tags:        tags,
			Locked:      false,
		}
		if err := tx.Create(&metadata).Error; err != nil {
			return fmt.Errorf("failed to create batch metadata: %w", err)
		}

		// 3. Record the initial status
		return setStatus(tx, batch.ID, domain.StatusMinted, input.Now)
	})
	if err != nil {
		return 0, err
	}

	return batchID, nil
}

// TransferBatch moves ownership to the recipient. The asserted sender must
// match the recorded owner, and the batch must not be locked.
func (s *pgStore) TransferBatch(ctx context.Context, input TransferBatchInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Verify the batch exists and the asserted sender owns it
		batch, err := lockBatchOwned(tx, input.BatchID, input.Sender)
		if err != nil {
			return err
		}

		// 2. Verify the batch is not locked against transfer
		var metadata schema.BatchMetadata
		if err := tx.Where("batch_id = ?", input.BatchID).First(&metadata).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("failed to get batch metadata: %w", err)
		}
		if metadata.Locked {
			return domain.ErrTokenLocked
		}

		// 3. Update ownership
		batch.Owner = input.Recipient
		if err := tx.Save(batch).Error; err != nil {
			return fmt.Errorf("failed to update batch owner: %w", err)
		}

		// 4. Record the status
		return setStatus(tx, input.BatchID, domain.StatusTransferred, input.Now)
	})
}

// BurnBatch removes the batch and every associated record atomically.
// No status record survives burn.
func (s *pgStore) BurnBatch(ctx context.Context, input BurnBatchInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Verify the batch exists and the caller owns it
		batch, err := lockBatchOwned(tx, input.BatchID, input.Caller)
		if err != nil {
			return err
		}

		// 2. Remove every associated record
		for _, model := range []interface{}{
			&schema.BatchMetadata{},
			&schema.BatchVersion{},
			&schema.BatchStatus{},
			&schema.BatchLicense{},
			&schema.BatchCollaborator{},
		} {
			if err := tx.Where("batch_id = ?", input.BatchID).Delete(model).Error; err != nil {
				return fmt.Errorf("failed to delete batch records: %w", err)
			}
		}

		// 3. Remove the identity record itself
		if err := tx.Delete(batch).Error; err != nil {
			return fmt.Errorf("failed to delete batch: %w", err)
		}

		return nil
	})
}

// UpdateBatchMetadata replaces the uri and description fields only; quantity,
// expiration, tags and the lock flag are untouched
func (s *pgStore) UpdateBatchMetadata(ctx context.Context, input UpdateBatchMetadataInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Verify the batch exists and the caller owns it
		if _, err := lockBatchOwned(tx, input.BatchID, input.Caller); err != nil {
			return err
		}

		// 2. Replace uri and description
		err := tx.Model(&schema.BatchMetadata{}).
			Where("batch_id = ?", input.BatchID).
			Updates(map[string]interface{}{
				"uri":         input.URI,
				"description": input.Description,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to update batch metadata: %w", err)
		}

		// 3. Record the status
		return setStatus(tx, input.BatchID, domain.StatusMetadataUpdated, input.Now)
	})
}

// AppendBatchVersion appends a revision entry, rejecting once the history
// holds the maximum number of entries
func (s *pgStore) AppendBatchVersion(ctx context.Context, input AppendBatchVersionInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Verify the batch exists and the caller owns it
		if _, err := lockBatchOwned(tx, input.BatchID, input.Caller); err != nil {
			return err
		}

		// 2. Enforce the history cap: full means rejected, never evicted
		var count int64
		err := tx.Model(&schema.BatchVersion{}).
			Where("batch_id = ?", input.BatchID).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("failed to count versions: %w", err)
		}
		if count >= domain.MaxVersionEntries {
			return domain.ErrHistoryFull
		}

		// 3. Append the entry. Duplicate version numbers are permitted.
		version := schema.BatchVersion{
			BatchID:   input.BatchID,
			Version:   input.Version,
			URI:       input.URI,
			Notes:     input.Notes,
			Timestamp: input.Now,
		}
		if err := tx.Create(&version).Error; err != nil {
			return fmt.Errorf("failed to create version entry: %w", err)
		}

		// 4. Record the status
		return setStatus(tx, input.BatchID, domain.StatusVersionAdded, input.Now)
	})
}

// GrantBatchLicense appends a grant unconditionally: no cap and no dedup
// against existing licensees
func (s *pgStore) GrantBatchLicense(ctx context.Context, input GrantBatchLicenseInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Verify the batch exists and the caller owns it
		if _, err := lockBatchOwned(tx, input.BatchID, input.Caller); err != nil {
			return err
		}

		// 2. Append the grant
		license := schema.BatchLicense{
			BatchID:  input.BatchID,
			Licensee: input.Licensee,
			Expiry:   input.Expiry,
			Terms:    input.Terms,
			Active:   true,
		}
		if err := tx.Create(&license).Error; err != nil {
			return fmt.Errorf("failed to create license: %w", err)
		}

		// 3. Record the status
		return setStatus(tx, input.BatchID, domain.StatusLicenseGranted, input.Now)
	})
}

// RevokeBatchLicense removes every grant whose licensee matches, rather than
// deactivating them
func (s *pgStore) RevokeBatchLicense(ctx context.Context, input RevokeBatchLicenseInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Verify the batch exists and the caller owns it
		if _, err := lockBatchOwned(tx, input.BatchID, input.Caller); err != nil {
			return err
		}

		// 2. Delete matching grants
		err := tx.Where("batch_id = ? AND licensee = ?", input.BatchID, input.Licensee).
			Delete(&schema.BatchLicense{}).Error
		if err != nil {
			return fmt.Errorf("failed to delete licenses: %w", err)
		}

		// 3. Record the status
		return setStatus(tx, input.BatchID, domain.StatusLicenseRevoked, input.Now)
	})
}

// AddBatchCollaborator appends a delegation record unconditionally
func (s *pgStore) AddBatchCollaborator(ctx context.Context, input AddBatchCollaboratorInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Verify the batch exists and the caller owns it
		if _, err := lockBatchOwned(tx, input.BatchID, input.Caller); err != nil {
			return err
		}

		// 2. Append the delegation record
		permissions, err := stringsJSON(input.Permissions)
		if err != nil {
			return err
		}
		collaborator := schema.BatchCollaborator{
			BatchID:      input.BatchID,
			Collaborator: input.Collaborator,
			Role:         input.Role,
			Permissions:  permissions,
			AddedAt:      input.Now,
		}
		if err := tx.Create(&collaborator).Error; err != nil {
			return fmt.Errorf("failed to create collaborator: %w", err)
		}

		// 3. Record the status
		return setStatus(tx, input.BatchID, domain.StatusCollaboratorAdded, input.Now)
	})
}

// SetBatchLock sets or clears the transfer lock. Locking an already-locked
// batch fails with TokenLocked; unlocking an already-unlocked batch fails
// with InvalidStatus.
func (s *pgStore) SetBatchLock(ctx context.Context, input SetBatchLockInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Verify the batch exists and the caller owns it
		if _, err := lockBatchOwned(tx, input.BatchID, input.Caller); err != nil {
			return err
		}

		// 2. Verify the lock transition
		var metadata schema.BatchMetadata
		if err := tx.Where("batch_id = ?", input.BatchID).First(&metadata).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("failed to get batch metadata: %w", err)
		}
		if input.Locked && metadata.Locked {
			return domain.ErrTokenLocked
		}
		if !input.Locked && !metadata.Locked {
			return domain.ErrInvalidStatus
		}

		// 3. Flip the lock
		err := tx.Model(&schema.BatchMetadata{}).
			Where("batch_id = ?", input.BatchID).
			Update("locked", input.Locked).Error
		if err != nil {
			return fmt.Errorf("failed to update lock: %w", err)
		}

		// 4. Record the status
		label := domain.StatusLocked
		if !input.Locked {
			label = domain.StatusUnlocked
		}
		return setStatus(tx, input.BatchID, label, input.Now)
	})
}

// GetBatch retrieves the identity/ownership record
func (s *pgStore) GetBatch(ctx context.Context, batchID uint64) (*schema.Batch, error) {
	var batch schema.Batch
	err := s.db.WithContext(ctx).Where("id = ?", batchID).First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return &batch, nil
}

// GetBatchMetadata retrieves the metadata record
func (s *pgStore) GetBatchMetadata(ctx context.Context, batchID uint64) (*schema.BatchMetadata, error) {
	var metadata schema.BatchMetadata
	err := s.db.WithContext(ctx).Where("batch_id = ?", batchID).First(&metadata).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get batch metadata: %w", err)
	}
	return &metadata, nil
}

// ListBatchVersions retrieves the version history in append order
func (s *pgStore) ListBatchVersions(ctx context.Context, batchID uint64) ([]schema.BatchVersion, error) {
	var versions []schema.BatchVersion
	err := s.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("id ASC").
		Find(&versions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return versions, nil
}

// GetBatchStatus retrieves the current status record
func (s *pgStore) GetBatchStatus(ctx context.Context, batchID uint64) (*schema.BatchStatus, error) {
	var status schema.BatchStatus
	err := s.db.WithContext(ctx).Where("batch_id = ?", batchID).First(&status).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get batch status: %w", err)
	}
	return &status, nil
}

// ListBatchLicenses retrieves the license list in grant order
func (s *pgStore) ListBatchLicenses(ctx context.Context, batchID uint64) ([]schema.BatchLicense, error) {
	var licenses []schema.BatchLicense
	err := s.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("id ASC").
		Find(&licenses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list licenses: %w", err)
	}
	return licenses, nil
}

// ListBatchCollaborators retrieves the collaborator list in append order
func (s *pgStore) ListBatchCollaborators(ctx context.Context, batchID uint64) ([]schema.BatchCollaborator, error) {
	var collaborators []schema.BatchCollaborator
	err := s.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("id ASC").
		Find(&collaborators).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list collaborators: %w", err)
	}
	return collaborators, nil
}

// ListExpiredLicenses retrieves licenses whose expiry lies strictly before
// now, for the expiry sweeper
func (s *pgStore) ListExpiredLicenses(ctx context.Context, now uint64, limit int) ([]schema.BatchLicense, error) {
	var licenses []schema.BatchLicense
	err := s.db.WithContext(ctx).
		Where("expiry < ?", now).
		Order("id ASC").
		Limit(limit).
		Find(&licenses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired licenses: %w", err)
	}
	return licenses, nil
}
