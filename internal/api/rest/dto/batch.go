// Package dto defines the REST wire representations of registry records.
package dto

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/openrelief/supply-registry/internal/store/schema"
)

// MintRequest is the body of POST /api/v1/batches
type MintRequest struct {
	Recipient   string   `json:"recipient" binding:"required"`
	URI         string   `json:"uri"`
	SupplyType  string   `json:"supply_type"`
	Quantity    uint64   `json:"quantity"`
	Expiration  *uint64  `json:"expiration,omitempty"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// TransferRequest is the body of POST /api/v1/batches/:id/transfer.
// Sender is the asserted current owner, not necessarily the caller.
type TransferRequest struct {
	Sender    string `json:"sender" binding:"required"`
	Recipient string `json:"recipient" binding:"required"`
}

// UpdateMetadataRequest is the body of PUT /api/v1/batches/:id/metadata
type UpdateMetadataRequest struct {
	URI         string `json:"uri"`
	Description string `json:"description"`
}

// AddVersionRequest is the body of POST /api/v1/batches/:id/versions
type AddVersionRequest struct {
	Version uint64 `json:"version"`
	URI     string `json:"uri"`
	Notes   string `json:"notes"`
}

// GrantLicenseRequest is the body of POST /api/v1/batches/:id/licenses
type GrantLicenseRequest struct {
	Licensee string `json:"licensee" binding:"required"`
	Duration uint64 `json:"duration"`
	Terms    string `json:"terms"`
}

// RevokeLicenseRequest is the body of DELETE /api/v1/batches/:id/licenses
type RevokeLicenseRequest struct {
	Licensee string `json:"licensee" binding:"required"`
}

// AddCollaboratorRequest is the body of POST /api/v1/batches/:id/collaborators
type AddCollaboratorRequest struct {
	Collaborator string   `json:"collaborator" binding:"required"`
	Role         string   `json:"role"`
	Permissions  []string `json:"permissions"`
}

// SetVerificationRequest is the body of PUT /api/v1/registry/verification.
// A null endpoint clears the configured capability.
type SetVerificationRequest struct {
	Endpoint *string `json:"endpoint"`
}

// MintResponse carries the identifier of a freshly minted batch
type MintResponse struct {
	BatchID uint64 `json:"batch_id"`
}

// BatchResponse is the identity/ownership record
type BatchResponse struct {
	ID        uint64 `json:"id"`
	Owner     string `json:"owner"`
	CreatedAt uint64 `json:"created_at"`
}

// MetadataResponse is the full metadata record
type MetadataResponse struct {
	BatchID     uint64   `json:"batch_id"`
	URI         string   `json:"uri"`
	SupplyType  string   `json:"supply_type"`
	Quantity    uint64   `json:"quantity"`
	Expiration  *uint64  `json:"expiration,omitempty"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Locked      bool     `json:"locked"`
}

// VersionResponse is one entry of the version history
type VersionResponse struct {
	Version   uint64 `json:"version"`
	URI       string `json:"uri"`
	Notes     string `json:"notes"`
	Timestamp uint64 `json:"timestamp"`
}

// StatusResponse is the current lifecycle status record
type StatusResponse struct {
	BatchID   uint64 `json:"batch_id"`
	Label     string `json:"label"`
	UpdatedAt uint64 `json:"updated_at"`
}

// LicenseResponse is one license grant
type LicenseResponse struct {
	Licensee string `json:"licensee"`
	Expiry   uint64 `json:"expiry"`
	Terms    string `json:"terms"`
	Active   bool   `json:"active"`
}

// LicenseActiveResponse answers the license activity query
type LicenseActiveResponse struct {
	Active bool `json:"active"`
}

// CollaboratorResponse is one delegation record
type CollaboratorResponse struct {
	Collaborator string   `json:"collaborator"`
	Role         string   `json:"role"`
	Permissions  []string `json:"permissions"`
	AddedAt      uint64   `json:"added_at"`
}

// StateResponse is the registry-wide state record
type StateResponse struct {
	Admin            string  `json:"admin"`
	Paused           bool    `json:"paused"`
	VerifierEndpoint *string `json:"verifier_endpoint,omitempty"`
}

// stringsFromJSON decodes a JSON column into a string list.
// Malformed or empty columns decode as an empty list.
func stringsFromJSON(data datatypes.JSON) []string {
	var values []string
	if len(data) > 0 {
		_ = json.Unmarshal(data, &values)
	}
	if values == nil {
		values = []string{}
	}
	return values
}

// FromBatch maps an ownership record to its response
func FromBatch(batch *schema.Batch) BatchResponse {
	return BatchResponse{
		ID:        batch.ID,
		Owner:     batch.Owner.String(),
		CreatedAt: batch.CreatedAt,
	}
}

// FromMetadata maps a metadata record to its response
func FromMetadata(metadata *schema.BatchMetadata) MetadataResponse {
	return MetadataResponse{
		BatchID:     metadata.BatchID,
		URI:         metadata.URI,
		SupplyType:  metadata.SupplyType,
		Quantity:    metadata.Quantity,
		Expiration:  metadata.Expiration,
		Description: metadata.Description,
		Tags:        stringsFromJSON(metadata.Tags),
		Locked:      metadata.Locked,
	}
}

// FromVersions maps the version history to its response
func FromVersions(versions []schema.BatchVersion) []VersionResponse {
	out := make([]VersionResponse, 0, len(versions))
	for _, v := range versions {
		out = append(out, VersionResponse{
			Version:   v.Version,
			URI:       v.URI,
			Notes:     v.Notes,
			Timestamp: v.Timestamp,
		})
	}
	return out
}

// FromStatus maps a status record to its response
func FromStatus(status *schema.BatchStatus) StatusResponse {
	return StatusResponse{
		BatchID:   status.BatchID,
		Label:     status.Label.String(),
		UpdatedAt: status.UpdatedAt,
	}
}

// FromLicenses maps the license list to its response
func FromLicenses(licenses []schema.BatchLicense) []LicenseResponse {
	out := make([]LicenseResponse, 0, len(licenses))
	for _, l := range licenses {
		out = append(out, LicenseResponse{
			Licensee: l.Licensee.String(),
			Expiry:   l.Expiry,
			Terms:    l.Terms,
			Active:   l.Active,
		})
	}
	return out
}

// FromCollaborators maps the collaborator list to its response
func FromCollaborators(collaborators []schema.BatchCollaborator) []CollaboratorResponse {
	out := make([]CollaboratorResponse, 0, len(collaborators))
	for _, c := range collaborators {
		out = append(out, CollaboratorResponse{
			Collaborator: c.Collaborator.String(),
			Role:         c.Role,
			Permissions:  stringsFromJSON(c.Permissions),
			AddedAt:      c.AddedAt,
		})
	}
	return out
}

// FromState maps the registry state to its response
func FromState(state *schema.RegistryState) StateResponse {
	return StateResponse{
		Admin:            state.Admin.String(),
		Paused:           state.Paused,
		VerifierEndpoint: state.VerifierEndpoint,
	}
}
