package store

import (
	"context"
	"sync"

	"github.com/openrelief/supply-registry/internal/domain"
	"github.com/openrelief/supply-registry/internal/store/schema"
)

// memoryStore is a complete in-memory Store. A single mutex serializes every
// call, mirroring the host ledger's one-call-at-a-time execution model; a
// failed operation leaves no partial state behind because each mutation
// validates every precondition before touching the maps.
//
// Used by unit tests and embedded/demo runs.
type memoryStore struct {
	mu sync.Mutex

	nextBatchID   uint64
	nextEntryID   uint64
	batches       map[uint64]*schema.Batch
	metadata      map[uint64]*schema.BatchMetadata
	versions      map[uint64][]schema.BatchVersion
	status        map[uint64]*schema.BatchStatus
	licenses      map[uint64][]schema.BatchLicense
	collaborators map[uint64][]schema.BatchCollaborator
	state         *schema.RegistryState
}

// NewMemoryStore creates a new in-memory store instance
func NewMemoryStore() Store {
	return &memoryStore{
		nextBatchID:   1,
		nextEntryID:   1,
		batches:       make(map[uint64]*schema.Batch),
		metadata:      make(map[uint64]*schema.BatchMetadata),
		versions:      make(map[uint64][]schema.BatchVersion),
		status:        make(map[uint64]*schema.BatchStatus),
		licenses:      make(map[uint64][]schema.BatchLicense),
		collaborators: make(map[uint64][]schema.BatchCollaborator),
	}
}

// entryID allocates the next synthetic row ID for list entries
func (s *memoryStore) entryID() uint64 {
	id := s.nextEntryID
	s.nextEntryID++
	return id
}

// batchOwned verifies the batch exists and the expected owner holds it
func (s *memoryStore) batchOwned(batchID uint64, owner domain.Identity) (*schema.Batch, error) {
	batch, ok := s.batches[batchID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if batch.Owner != owner {
		return nil, domain.ErrNotOwner
	}
	return batch, nil
}

// setStatus overwrites the status record; the final step of every mutation
func (s *memoryStore) setStatus(batchID uint64, label domain.StatusLabel, now uint64) {
	s.status[batchID] = &schema.BatchStatus{
		BatchID:   batchID,
		Label:     label,
		UpdatedAt: now,
	}
}

func (s *memoryStore) EnsureState(ctx context.Context, admin domain.Identity, now uint64) (*schema.RegistryState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		s.state = &schema.RegistryState{
			ID:        schema.RegistryStateID,
			Admin:     admin,
			Paused:    false,
			UpdatedAt: now,
		}
	}

	state := *s.state
	return &state, nil
}

func (s *memoryStore) GetState(ctx context.Context) (*schema.RegistryState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return nil, nil
	}
	state := *s.state
	return &state, nil
}

func (s *memoryStore) SetPaused(ctx context.Context, paused bool, now uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != nil {
		s.state.Paused = paused
		s.state.UpdatedAt = now
	}
	return nil
}

func (s *memoryStore) SetVerifierEndpoint(ctx context.Context, endpoint *string, now uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != nil {
		s.state.VerifierEndpoint = endpoint
		s.state.UpdatedAt = now
	}
	return nil
}

func (s *memoryStore) MintBatch(ctx context.Context, input MintBatchInput) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Identifiers are strictly increasing and never reused, even after burn
	batchID := s.nextBatchID
	s.nextBatchID++

	tags, err := stringsJSON(input.Tags)
	if err != nil {
		return 0, err
	}

	s.batches[batchID] = &schema.Batch{
		ID:        batchID,
		Owner:     input.Recipient,
		CreatedAt: input.Now,
	}
	s.metadata[batchID] = &schema.BatchMetadata{
		BatchID:     batchID,
		URI:         input.URI,
		SupplyType:  input.SupplyType,
		Quantity:    input.Quantity,
		Expiration:  input.Expiration,
		Description: input.Description,
		Tags:        tags,
		Locked:      false,
	}
	s.setStatus(batchID, domain.StatusMinted, input.Now)

	return batchID, nil
}

func (s *memoryStore) TransferBatch(ctx context.Context, input TransferBatchInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, err := s.batchOwned(input.BatchID, input.Sender)
	if err != nil {
		return err
	}

	metadata, ok := s.metadata[input.BatchID]
	if !ok {
		return domain.ErrNotFound
	}
	if metadata.Locked {
		return domain.ErrTokenLocked
	}

	batch.Owner = input.Recipient
	s.setStatus(input.BatchID, domain.StatusTransferred, input.Now)
	return nil
}

func (s *memoryStore) BurnBatch(ctx context.Context, input BurnBatchInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.batchOwned(input.BatchID, input.Caller); err != nil {
		return err
	}

	delete(s.batches, input.BatchID)
	delete(s.metadata, input.BatchID)
	delete(s.versions, input.BatchID)
	delete(s.status, input.BatchID)
	delete(s.licenses, input.BatchID)
	delete(s.collaborators, input.BatchID)
	return nil
}

func (s *memoryStore) UpdateBatchMetadata(ctx context.Context, input UpdateBatchMetadataInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.batchOwned(input.BatchID, input.Caller); err != nil {
		return err
	}

	metadata := s.metadata[input.BatchID]
	metadata.URI = input.URI
	metadata.Description = input.Description

	s.setStatus(input.BatchID, domain.StatusMetadataUpdated, input.Now)
	return nil
}

func (s *memoryStore) AppendBatchVersion(ctx context.Context, input AppendBatchVersionInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.batchOwned(input.BatchID, input.Caller); err != nil {
		return err
	}

	if len(s.versions[input.BatchID]) >= domain.MaxVersionEntries {
		return domain.ErrHistoryFull
	}

	s.versions[input.BatchID] = append(s.versions[input.BatchID], schema.BatchVersion{
		ID:        s.entryID(),
		BatchID:   input.BatchID,
		Version:   input.Version,
		URI:       input.URI,
		Notes:     input.Notes,
		Timestamp: input.Now,
	})

	s.setStatus(input.BatchID, domain.StatusVersionAdded, input.Now)
	return nil
}

func (s *memoryStore) GrantBatchLicense(ctx context.Context, input GrantBatchLicenseInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.batchOwned(input.BatchID, input.Caller); err != nil {
		return err
	}

	s.licenses[input.BatchID] = append(s.licenses[input.BatchID], schema.BatchLicense{
		ID:       s.entryID(),
		BatchID:  input.BatchID,
		Licensee: input.Licensee,
		Expiry:   input.Expiry,
		Terms:    input.Terms,
		Active:   true,
	})

	s.setStatus(input.BatchID, domain.StatusLicenseGranted, input.Now)
	return nil
}

func (s *memoryStore) RevokeBatchLicense(ctx context.Context, input RevokeBatchLicenseInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.batchOwned(input.BatchID, input.Caller); err != nil {
		return err
	}

	// Removal, not deactivation: matching rows vanish outright
	kept := s.licenses[input.BatchID][:0]
	for _, license := range s.licenses[input.BatchID] {
		if license.Licensee != input.Licensee {
			kept = append(kept, license)
		}
	}
	s.licenses[input.BatchID] = kept

	s.setStatus(input.BatchID, domain.StatusLicenseRevoked, input.Now)
	return nil
}

func (s *memoryStore) AddBatchCollaborator(ctx context.Context, input AddBatchCollaboratorInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.batchOwned(input.BatchID, input.Caller); err != nil {
		return err
	}

	permissions, err := stringsJSON(input.Permissions)
	if err != nil {
		return err
	}

	s.collaborators[input.BatchID] = append(s.collaborators[input.BatchID], schema.BatchCollaborator{
		ID:           s.entryID(),
		BatchID:      input.BatchID,
		Collaborator: input.Collaborator,
		Role:         input.Role,
		Permissions:  permissions,
		AddedAt:      input.Now,
	})

	s.setStatus(input.BatchID, domain.StatusCollaboratorAdded, input.Now)
	return nil
}

func (s *memoryStore) SetBatchLock(ctx context.Context, input SetBatchLockInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.batchOwned(input.BatchID, input.Caller); err != nil {
		return err
	}

	metadata := s.metadata[input.BatchID]
	if input.Locked && metadata.Locked {
		return domain.ErrTokenLocked
	}
	if !input.Locked && !metadata.Locked {
		return domain.ErrInvalidStatus
	}
	metadata.Locked = input.Locked

	label := domain.StatusLocked
	if !input.Locked {
		label = domain.StatusUnlocked
	}
	s.setStatus(input.BatchID, label, input.Now)
	return nil
}

func (s *memoryStore) GetBatch(ctx context.Context, batchID uint64) (*schema.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ok := s.batches[batchID]
	if !ok {
		return nil, nil
	}
	copied := *batch
	return &copied, nil
}

func (s *memoryStore) GetBatchMetadata(ctx context.Context, batchID uint64) (*schema.BatchMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metadata, ok := s.metadata[batchID]
	if !ok {
		return nil, nil
	}
	copied := *metadata
	return &copied, nil
}

func (s *memoryStore) ListBatchVersions(ctx context.Context, batchID uint64) ([]schema.BatchVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions := make([]schema.BatchVersion, len(s.versions[batchID]))
	copy(versions, s.versions[batchID])
	return versions, nil
}

func (s *memoryStore) GetBatchStatus(ctx context.Context, batchID uint64) (*schema.BatchStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, ok := s.status[batchID]
	if !ok {
		return nil, nil
	}
	copied := *status
	return &copied, nil
}

func (s *memoryStore) ListBatchLicenses(ctx context.Context, batchID uint64) ([]schema.BatchLicense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	licenses := make([]schema.BatchLicense, len(s.licenses[batchID]))
	copy(licenses, s.licenses[batchID])
	return licenses, nil
}

func (s *memoryStore) ListBatchCollaborators(ctx context.Context, batchID uint64) ([]schema.BatchCollaborator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	collaborators := make([]schema.BatchCollaborator, len(s.collaborators[batchID]))
	copy(collaborators, s.collaborators[batchID])
	return collaborators, nil
}

func (s *memoryStore) ListExpiredLicenses(ctx context.Context, now uint64, limit int) ([]schema.BatchLicense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []schema.BatchLicense
	for _, batchLicenses := range s.licenses {
		for _, license := range batchLicenses {
			if license.Expiry < now {
				expired = append(expired, license)
				if limit > 0 && len(expired) >= limit {
					return expired, nil
				}
			}
		}
	}
	return expired, nil
}
