package store

import (
	"context"

	"github.com/openrelief/supply-registry/internal/domain"
	"github.com/openrelief/supply-registry/internal/store/schema"
)

// MintBatchInput holds everything needed to create a batch with its
// metadata and initial status in one transaction
type MintBatchInput struct {
	Recipient   domain.Identity
	URI         string
	SupplyType  string
	Quantity    uint64
	Expiration  *uint64
	Description string
	Tags        []string
	Now         uint64
}

// TransferBatchInput holds the parameters of an ownership transfer.
// Sender is the asserted current owner, not necessarily the caller.
type TransferBatchInput struct {
	BatchID   uint64
	Sender    domain.Identity
	Recipient domain.Identity
	Now       uint64
}

// BurnBatchInput holds the parameters of a burn
type BurnBatchInput struct {
	BatchID uint64
	Caller  domain.Identity
}

// UpdateBatchMetadataInput replaces the uri and description fields only
type UpdateBatchMetadataInput struct {
	BatchID     uint64
	Caller      domain.Identity
	URI         string
	Description string
	Now         uint64
}

// AppendBatchVersionInput appends one revision to the bounded history
type AppendBatchVersionInput struct {
	BatchID uint64
	Caller  domain.Identity
	Version uint64
	URI     string
	Notes   string
	Now     uint64
}

// GrantBatchLicenseInput appends one license grant
type GrantBatchLicenseInput struct {
	BatchID  uint64
	Caller   domain.Identity
	Licensee domain.Identity
	Expiry   uint64
	Terms    string
	Now      uint64
}

// RevokeBatchLicenseInput removes every grant matching the licensee
type RevokeBatchLicenseInput struct {
	BatchID  uint64
	Caller   domain.Identity
	Licensee domain.Identity
	Now      uint64
}

// AddBatchCollaboratorInput appends one delegation record
type AddBatchCollaboratorInput struct {
	BatchID      uint64
	Caller       domain.Identity
	Collaborator domain.Identity
	Role         string
	Permissions  []string
	Now          uint64
}

// SetBatchLockInput flips the transfer lock
type SetBatchLockInput struct {
	BatchID uint64
	Caller  domain.Identity
	Locked  bool
	Now     uint64
}

// Store defines the persistence interface over the six per-batch tables and
// the singleton registry state. Every mutating operation is atomic: either
// all of its effects commit, including the final status overwrite, or none
// do, and the specific domain error is returned. Ownership, existence, lock
// and capacity preconditions are re-checked inside the transaction.
//
// Read operations return (nil, nil) when the batch is unknown so callers can
// surface an explicit "not found" instead of an error.
type Store interface {
	// EnsureState creates the singleton registry state with the given admin
	// if it does not exist yet, and returns the current state. An existing
	// state is returned unchanged: the admin identity is immutable.
	EnsureState(ctx context.Context, admin domain.Identity, now uint64) (*schema.RegistryState, error)
	// GetState retrieves the singleton registry state (nil if uninitialized)
	GetState(ctx context.Context) (*schema.RegistryState, error)
	// SetPaused flips the registry-wide pause switch
	SetPaused(ctx context.Context, paused bool, now uint64) error
	// SetVerifierEndpoint stores the verification-capability reference
	// (nil clears it)
	SetVerifierEndpoint(ctx context.Context, endpoint *string, now uint64) error

	// MintBatch allocates the next sequential identifier and creates the
	// ownership, metadata and status records. Returns the new identifier.
	MintBatch(ctx context.Context, input MintBatchInput) (uint64, error)
	// TransferBatch moves ownership to the recipient
	TransferBatch(ctx context.Context, input TransferBatchInput) error
	// BurnBatch removes every record associated with the batch
	BurnBatch(ctx context.Context, input BurnBatchInput) error
	// UpdateBatchMetadata replaces the metadata uri and description
	UpdateBatchMetadata(ctx context.Context, input UpdateBatchMetadataInput) error
	// AppendBatchVersion appends a revision, rejecting once the history is full
	AppendBatchVersion(ctx context.Context, input AppendBatchVersionInput) error
	// GrantBatchLicense appends a license grant
	GrantBatchLicense(ctx context.Context, input GrantBatchLicenseInput) error
	// RevokeBatchLicense removes every grant whose licensee matches
	RevokeBatchLicense(ctx context.Context, input RevokeBatchLicenseInput) error
	// AddBatchCollaborator appends a delegation record
	AddBatchCollaborator(ctx context.Context, input AddBatchCollaboratorInput) error
	// SetBatchLock sets or clears the transfer lock
	SetBatchLock(ctx context.Context, input SetBatchLockInput) error

	// GetBatch retrieves the identity/ownership record
	GetBatch(ctx context.Context, batchID uint64) (*schema.Batch, error)
	// GetBatchMetadata retrieves the metadata record
	GetBatchMetadata(ctx context.Context, batchID uint64) (*schema.BatchMetadata, error)
	// ListBatchVersions retrieves the version history in append order
	ListBatchVersions(ctx context.Context, batchID uint64) ([]schema.BatchVersion, error)
	// GetBatchStatus retrieves the current status record
	GetBatchStatus(ctx context.Context, batchID uint64) (*schema.BatchStatus, error)
	// ListBatchLicenses retrieves the license list in grant order
	ListBatchLicenses(ctx context.Context, batchID uint64) ([]schema.BatchLicense, error)
	// ListBatchCollaborators retrieves the collaborator list in append order
	ListBatchCollaborators(ctx context.Context, batchID uint64) ([]schema.BatchCollaborator, error)
	// ListExpiredLicenses retrieves licenses whose expiry lies strictly
	// before now, for the expiry sweeper
	ListExpiredLicenses(ctx context.Context, now uint64, limit int) ([]schema.BatchLicense, error)
}
