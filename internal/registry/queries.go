package registry

import (
	"context"

	"github.com/openrelief/supply-registry/internal/domain"
	"github.com/openrelief/supply-registry/internal/store/schema"
)

// Read-only queries bypass the pause gate entirely. Lookups on an unknown
// batch return (nil, nil) so callers can surface an explicit "not found".

// Owner retrieves the identity/ownership record
func (r *Registry) Owner(ctx context.Context, batchID uint64) (*schema.Batch, error) {
	return r.store.GetBatch(ctx, batchID)
}

// Metadata retrieves the full metadata record
func (r *Registry) Metadata(ctx context.Context, batchID uint64) (*schema.BatchMetadata, error) {
	return r.store.GetBatchMetadata(ctx, batchID)
}

// Versions retrieves the version history in append order
func (r *Registry) Versions(ctx context.Context, batchID uint64) ([]schema.BatchVersion, error) {
	return r.store.ListBatchVersions(ctx, batchID)
}

// Status retrieves the current status record
func (r *Registry) Status(ctx context.Context, batchID uint64) (*schema.BatchStatus, error) {
	return r.store.GetBatchStatus(ctx, batchID)
}

// Licenses retrieves the license list in grant order
func (r *Registry) Licenses(ctx context.Context, batchID uint64) ([]schema.BatchLicense, error) {
	return r.store.ListBatchLicenses(ctx, batchID)
}

// Collaborators retrieves the collaborator list in append order
func (r *Registry) Collaborators(ctx context.Context, batchID uint64) ([]schema.BatchCollaborator, error) {
	return r.store.ListBatchCollaborators(ctx, batchID)
}

// IsLicenseActive reports whether some remaining grant names the licensee,
// is flagged active, and has not lapsed (expiry at or after the current
// clock value).
func (r *Registry) IsLicenseActive(ctx context.Context, batchID uint64, licensee domain.Identity) (bool, error) {
	licenses, err := r.store.ListBatchLicenses(ctx, batchID)
	if err != nil {
		return false, err
	}

	now := r.clock.Now()
	for _, license := range licenses {
		if license.Licensee == licensee && license.Active && license.Expiry >= now {
			return true, nil
		}
	}
	return false, nil
}

// State retrieves the registry-wide state: admin identity, pause flag and
// the configured verification endpoint. Nil if uninitialized.
func (r *Registry) State(ctx context.Context) (*schema.RegistryState, error) {
	return r.store.GetState(ctx)
}
