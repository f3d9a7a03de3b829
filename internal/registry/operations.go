package registry

import (
	"context"

	"github.com/openrelief/supply-registry/internal/domain"
	"github.com/openrelief/supply-registry/internal/store"
)

// MintInput holds the parameters of a mint operation
type MintInput struct {
	Recipient   domain.Identity
	URI         string
	SupplyType  string
	Quantity    uint64
	Expiration  *uint64
	Description string
	Tags        []string
}

// Mint creates a new batch owned by the recipient and returns its sequential
// identifier. The caller must pass external organization verification; an
// unconfigured capability is equivalent to a negative answer. Precondition
// checks run in a fixed order so the first violated one determines the error.
func (r *Registry) Mint(ctx context.Context, caller domain.Identity, input MintInput) (uint64, error) {
	// 1. Gate: pause switch, then caller verification
	if err := r.requireUnpaused(ctx); err != nil {
		return 0, err
	}
	v := r.currentVerifier()
	if v == nil {
		return 0, domain.ErrNotVerified
	}
	verified, err := v.IsVerified(ctx, caller)
	if err != nil {
		return 0, err
	}
	if !verified {
		return 0, domain.ErrNotVerified
	}

	// 2. Validate metadata fields
	if !domain.ValidURI(input.URI) {
		return 0, domain.ErrInvalidUri
	}
	if input.Quantity == 0 {
		return 0, domain.ErrInvalidQuantity
	}
	if !domain.ValidDescription(input.Description) {
		return 0, domain.ErrInvalidMetadata
	}
	if !domain.ValidTags(input.Tags) {
		return 0, domain.ErrTooManyTags
	}

	// 3. Commit
	now := r.clock.Now()
	batchID, err := r.store.MintBatch(ctx, store.MintBatchInput{
		Recipient:   input.Recipient,
		URI:         input.URI,
		SupplyType:  input.SupplyType,
		Quantity:    input.Quantity,
		Expiration:  input.Expiration,
		Description: input.Description,
		Tags:        input.Tags,
		Now:         now,
	})
	if err != nil {
		return 0, err
	}

	r.publish(ctx, &domain.RegistryEvent{
		BatchID:   batchID,
		Action:    domain.EventMinted,
		Actor:     caller,
		Subject:   &input.Recipient,
		Timestamp: now,
	})

	return batchID, nil
}

// Transfer moves batch ownership to the recipient. The sender is the asserted
// current owner, not necessarily the caller, so a delegate can initiate a
// transfer as long as it names the correct sender.
func (r *Registry) Transfer(ctx context.Context, caller domain.Identity, batchID uint64, sender, recipient domain.Identity) error {
	if err := r.requireUnpaused(ctx); err != nil {
		return err
	}
	if !recipient.Valid() {
		return domain.ErrInvalidRecipient
	}

	now := r.clock.Now()
	err := r.store.TransferBatch(ctx, store.TransferBatchInput{
		BatchID:   batchID,
		Sender:    sender,
		Recipient: recipient,
		Now:       now,
	})
	if err != nil {
		return err
	}

	r.publish(ctx, &domain.RegistryEvent{
		BatchID:   batchID,
		Action:    domain.EventTransferred,
		Actor:     caller,
		Subject:   &recipient,
		Timestamp: now,
	})

	return nil
}

// Burn permanently destroys the batch and every associated record. The
// identifier is never reused.
func (r *Registry) Burn(ctx context.Context, caller domain.Identity, batchID uint64) error {
	if err := r.requireUnpaused(ctx); err != nil {
		return err
	}

	now := r.clock.Now()
	err := r.store.BurnBatch(ctx, store.BurnBatchInput{
		BatchID: batchID,
		Caller:  caller,
	})
	if err != nil {
		return err
	}

	r.publish(ctx, &domain.RegistryEvent{
		BatchID:   batchID,
		Action:    domain.EventBurned,
		Actor:     caller,
		Timestamp: now,
	})

	return nil
}

// UpdateMetadata replaces the metadata uri and description. Quantity,
// expiration, tags and the lock flag are untouched; edits stay allowed while
// the batch is locked.
func (r *Registry) UpdateMetadata(ctx context.Context, caller domain.Identity, batchID uint64, uri, description string) error {
	if err := r.requireUnpaused(ctx); err != nil {
		return err
	}
	if !domain.ValidURI(uri) {
		return domain.ErrInvalidUri
	}
	if !domain.ValidDescription(description) {
		return domain.ErrInvalidMetadata
	}

	now := r.clock.Now()
	err := r.store.UpdateBatchMetadata(ctx, store.UpdateBatchMetadataInput{
		BatchID:     batchID,
		Caller:      caller,
		URI:         uri,
		Description: description,
		Now:         now,
	})
	if err != nil {
		return err
	}

	r.publish(ctx, &domain.RegistryEvent{
		BatchID:   batchID,
		Action:    domain.EventMetadataUpdated,
		Actor:     caller,
		Timestamp: now,
	})

	return nil
}

// AddVersion appends a revision to the bounded history. Version numbers are
// caller-supplied: no contiguity and no uniqueness is enforced.
func (r *Registry) AddVersion(ctx context.Context, caller domain.Identity, batchID, version uint64, uri, notes string) error {
	if err := r.requireUnpaused(ctx); err != nil {
		return err
	}
	if version == 0 {
		return domain.ErrInvalidVersion
	}
	if !domain.ValidURI(uri) {
		return domain.ErrInvalidUri
	}

	now := r.clock.Now()
	err := r.store.AppendBatchVersion(ctx, store.AppendBatchVersionInput{
		BatchID: batchID,
		Caller:  caller,
		Version: version,
		URI:     uri,
		Notes:   notes,
		Now:     now,
	})
	if err != nil {
		return err
	}

	r.publish(ctx, &domain.RegistryEvent{
		BatchID:   batchID,
		Action:    domain.EventVersionAdded,
		Actor:     caller,
		Timestamp: now,
	})

	return nil
}

// GrantLicense appends a time-bound grant expiring at now + duration. No cap
// and no dedup against existing grants for the same licensee.
func (r *Registry) GrantLicense(ctx context.Context, caller domain.Identity, batchID uint64, licensee domain.Identity, duration uint64, terms string) error {
	if err := r.requireUnpaused(ctx); err != nil {
		return err
	}
	if duration == 0 {
		return domain.ErrInvalidDuration
	}

	now := r.clock.Now()
	err := r.store.GrantBatchLicense(ctx, store.GrantBatchLicenseInput{
		BatchID:  batchID,
		Caller:   caller,
		Licensee: licensee,
		Expiry:   now + duration,
		Terms:    terms,
		Now:      now,
	})
	if err != nil {
		return err
	}

	r.publish(ctx, &domain.RegistryEvent{
		BatchID:   batchID,
		Action:    domain.EventLicenseGranted,
		Actor:     caller,
		Subject:   &licensee,
		Timestamp: now,
	})

	return nil
}

// RevokeLicense removes every grant whose licensee matches
func (r *Registry) RevokeLicense(ctx context.Context, caller domain.Identity, batchID uint64, licensee domain.Identity) error {
	if err := r.requireUnpaused(ctx); err != nil {
		return err
	}

	now := r.clock.Now()
	err := r.store.RevokeBatchLicense(ctx, store.RevokeBatchLicenseInput{
		BatchID:  batchID,
		Caller:   caller,
		Licensee: licensee,
		Now:      now,
	})
	if err != nil {
		return err
	}

	r.publish(ctx, &domain.RegistryEvent{
		BatchID:   batchID,
		Action:    domain.EventLicenseRevoked,
		Actor:     caller,
		Subject:   &licensee,
		Timestamp: now,
	})

	return nil
}

// AddCollaborator appends a delegation record. Collaborator entries are
// informational and do not gate any registry operation.
func (r *Registry) AddCollaborator(ctx context.Context, caller domain.Identity, batchID uint64, collaborator domain.Identity, role string, permissions []string) error {
	if err := r.requireUnpaused(ctx); err != nil {
		return err
	}

	now := r.clock.Now()
	err := r.store.AddBatchCollaborator(ctx, store.AddBatchCollaboratorInput{
		BatchID:      batchID,
		Caller:       caller,
		Collaborator: collaborator,
		Role:         role,
		Permissions:  permissions,
		Now:          now,
	})
	if err != nil {
		return err
	}

	r.publish(ctx, &domain.RegistryEvent{
		BatchID:   batchID,
		Action:    domain.EventCollaboratorAdded,
		Actor:     caller,
		Subject:   &collaborator,
		Timestamp: now,
	})

	return nil
}

// Lock forbids ownership transfer for the batch. Fails with TokenLocked if
// already locked. Other owner-gated operations remain available while locked.
func (r *Registry) Lock(ctx context.Context, caller domain.Identity, batchID uint64) error {
	return r.setLock(ctx, caller, batchID, true)
}

// Unlock re-enables ownership transfer. Fails with InvalidStatus if the batch
// is not locked.
func (r *Registry) Unlock(ctx context.Context, caller domain.Identity, batchID uint64) error {
	return r.setLock(ctx, caller, batchID, false)
}

func (r *Registry) setLock(ctx context.Context, caller domain.Identity, batchID uint64, locked bool) error {
	if err := r.requireUnpaused(ctx); err != nil {
		return err
	}

	now := r.clock.Now()
	err := r.store.SetBatchLock(ctx, store.SetBatchLockInput{
		BatchID: batchID,
		Caller:  caller,
		Locked:  locked,
		Now:     now,
	})
	if err != nil {
		return err
	}

	action := domain.EventLocked
	if !locked {
		action = domain.EventUnlocked
	}
	r.publish(ctx, &domain.RegistryEvent{
		BatchID:   batchID,
		Action:    action,
		Actor:     caller,
		Timestamp: now,
	})

	return nil
}

// Pause blocks all non-admin mutating operations. Admin only.
func (r *Registry) Pause(ctx context.Context, caller domain.Identity) error {
	return r.setPaused(ctx, caller, true)
}

// Unpause re-enables mutating operations. Admin only.
func (r *Registry) Unpause(ctx context.Context, caller domain.Identity) error {
	return r.setPaused(ctx, caller, false)
}

func (r *Registry) setPaused(ctx context.Context, caller domain.Identity, paused bool) error {
	if err := r.requireAdmin(ctx, caller); err != nil {
		return err
	}

	now := r.clock.Now()
	if err := r.store.SetPaused(ctx, paused, now); err != nil {
		return err
	}

	action := domain.EventPaused
	if !paused {
		action = domain.EventUnpaused
	}
	r.publish(ctx, &domain.RegistryEvent{
		Action:    action,
		Actor:     caller,
		Timestamp: now,
	})

	return nil
}

// SetVerificationCapability reconfigures the external verification endpoint.
// Admin only. A nil endpoint clears the capability, which makes every
// subsequent mint fail verification until one is configured again.
func (r *Registry) SetVerificationCapability(ctx context.Context, caller domain.Identity, endpoint *string) error {
	if err := r.requireAdmin(ctx, caller); err != nil {
		return err
	}

	if err := r.store.SetVerifierEndpoint(ctx, endpoint, r.clock.Now()); err != nil {
		return err
	}

	r.verifierMu.Lock()
	defer r.verifierMu.Unlock()
	if endpoint == nil || r.verifierFactory == nil {
		r.verifier = nil
		return nil
	}
	r.verifier = r.verifierFactory(*endpoint)

	return nil
}
