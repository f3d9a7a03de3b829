package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openrelief/supply-registry/internal/api/middleware"
	"github.com/openrelief/supply-registry/internal/api/rest/dto"
	"github.com/openrelief/supply-registry/internal/domain"
	"github.com/openrelief/supply-registry/internal/registry"
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// Mint creates a new supply batch
	// POST /api/v1/batches
	Mint(c *gin.Context)

	// Transfer moves batch ownership to a new identity
	// POST /api/v1/batches/:id/transfer
	Transfer(c *gin.Context)

	// Burn permanently destroys a batch and every associated record
	// DELETE /api/v1/batches/:id
	Burn(c *gin.Context)

	// UpdateMetadata replaces the metadata uri and description
	// PUT /api/v1/batches/:id/metadata
	UpdateMetadata(c *gin.Context)

	// AddVersion appends a revision to the bounded version history
	// POST /api/v1/batches/:id/versions
	AddVersion(c *gin.Context)

	// GrantLicense appends a time-bound usage grant
	// POST /api/v1/batches/:id/licenses
	GrantLicense(c *gin.Context)

	// RevokeLicense removes every grant matching the licensee
	// DELETE /api/v1/batches/:id/licenses
	RevokeLicense(c *gin.Context)

	// AddCollaborator appends a delegation record
	// POST /api/v1/batches/:id/collaborators
	AddCollaborator(c *gin.Context)

	// Lock forbids ownership transfer for the batch
	// POST /api/v1/batches/:id/lock
	Lock(c *gin.Context)

	// Unlock re-enables ownership transfer
	// POST /api/v1/batches/:id/unlock
	Unlock(c *gin.Context)

	// Pause blocks all non-admin mutating operations (admin only)
	// POST /api/v1/registry/pause
	Pause(c *gin.Context)

	// Unpause re-enables mutating operations (admin only)
	// POST /api/v1/registry/unpause
	Unpause(c *gin.Context)

	// SetVerification reconfigures the verification capability (admin only)
	// PUT /api/v1/registry/verification
	SetVerification(c *gin.Context)

	// GetBatch retrieves the identity/ownership record
	// GET /api/v1/batches/:id
	GetBatch(c *gin.Context)

	// GetMetadata retrieves the full metadata record
	// GET /api/v1/batches/:id/metadata
	GetMetadata(c *gin.Context)

	// ListVersions retrieves the version history in append order
	// GET /api/v1/batches/:id/versions
	ListVersions(c *gin.Context)

	// GetStatus retrieves the current status record
	// GET /api/v1/batches/:id/status
	GetStatus(c *gin.Context)

	// ListLicenses retrieves the license list in grant order
	// GET /api/v1/batches/:id/licenses
	ListLicenses(c *gin.Context)

	// IsLicenseActive answers whether a licensee currently holds an active grant
	// GET /api/v1/batches/:id/licenses/active?licensee=<identity>
	IsLicenseActive(c *gin.Context)

	// ListCollaborators retrieves the collaborator list in append order
	// GET /api/v1/batches/:id/collaborators
	ListCollaborators(c *gin.Context)

	// GetState retrieves the registry-wide state
	// GET /api/v1/registry
	GetState(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface over the registry service
type handler struct {
	registry *registry.Registry
}

// NewHandler creates a new REST API handler
func NewHandler(r *registry.Registry) Handler {
	return &handler{registry: r}
}

// parseBatchID parses the :id path parameter
func parseBatchID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondBadRequest(c, "Invalid batch ID")
		return 0, false
	}
	return id, true
}

// caller resolves the authenticated caller identity
func caller(c *gin.Context) (domain.Identity, bool) {
	identity, err := middleware.CallerIdentity(c)
	if err != nil {
		respondDomainError(c, err)
		return "", false
	}
	return identity, true
}

func (h *handler) Mint(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	var req dto.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	batchID, err := h.registry.Mint(c.Request.Context(), identity, registry.MintInput{
		Recipient:   domain.Identity(req.Recipient),
		URI:         req.URI,
		SupplyType:  req.SupplyType,
		Quantity:    req.Quantity,
		Expiration:  req.Expiration,
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.MintResponse{BatchID: batchID})
}

func (h *handler) Transfer(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	err := h.registry.Transfer(c.Request.Context(), identity, batchID,
		domain.Identity(req.Sender), domain.Identity(req.Recipient))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) Burn(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}

	if err := h.registry.Burn(c.Request.Context(), identity, batchID); err != nil {
		respondDomainError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) UpdateMetadata(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}

	var req dto.UpdateMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	err := h.registry.UpdateMetadata(c.Request.Context(), identity, batchID, req.URI, req.Description)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) AddVersion(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}

	var req dto.AddVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	err := h.registry.AddVersion(c.Request.Context(), identity, batchID, req.Version, req.URI, req.Notes)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) GrantLicense(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}

	var req dto.GrantLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	err := h.registry.GrantLicense(c.Request.Context(), identity, batchID,
		domain.Identity(req.Licensee), req.Duration, req.Terms)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) RevokeLicense(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}

	var req dto.RevokeLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	err := h.registry.RevokeLicense(c.Request.Context(), identity, batchID, domain.Identity(req.Licensee))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) AddCollaborator(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}

	var req dto.AddCollaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	err := h.registry.AddCollaborator(c.Request.Context(), identity, batchID,
		domain.Identity(req.Collaborator), req.Role, req.Permissions)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) Lock(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}

	if err := h.registry.Lock(c.Request.Context(), identity, batchID); err != nil {
		respondDomainError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) Unlock(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}

	if err := h.registry.Unlock(c.Request.Context(), identity, batchID); err != nil {
		respondDomainError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) Pause(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	if err := h.registry.Pause(c.Request.Context(), identity); err != nil {
		respondDomainError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) Unpause(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	if err := h.registry.Unpause(c.Request.Context(), identity); err != nil {
		respondDomainError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) SetVerification(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	var req dto.SetVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	err := h.registry.SetVerificationCapability(c.Request.Context(), identity, req.Endpoint)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) GetBatch(c *gin.Context) {
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}

	batch, err := h.registry.Owner(c.Request.Context(), batchID)
	if err != nil {
		respondInternalError(c, err, "Failed to get batch")
		return
	}
	if batch == nil {
		respondNotFound(c, "Batch not found")
		return
	}

	c.JSON(http.StatusOK, dto.FromBatch(batch))
}

func (h *handler) GetMetadata(c *gin.Context) {
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}

	metadata, err := h.registry.Metadata(c.Request.Context(), batchID)
	if err != nil {
		respondInternalError(c, err, "Failed to get batch metadata")
		return
	}
	if metadata == nil {
		respondNotFound(c, "Batch not found")
		return
	}

	c.JSON(http.StatusOK, dto.FromMetadata(metadata))
}

func (h *handler) ListVersions(c *gin.Context) {
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}

	versions, err := h.registry.Versions(c.Request.Context(), batchID)
	if err != nil {
		respondInternalError(c, err, "Failed to list versions")
		return
	}

	c.JSON(http.StatusOK, dto.FromVersions(versions))
}

func (h *handler) GetStatus(c *gin.Context) {
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}

	status, err := h.registry.Status(c.Request.Context(), batchID)
	if err != nil {
		respondInternalError(c, err, "Failed to get batch status")
		return
	}
	if status == nil {
		respondNotFound(c, "Batch not found")
		return
	}

	c.JSON(http.StatusOK, dto.FromStatus(status))
}

func (h *handler) ListLicenses(c *gin.Context) {
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}

	licenses, err := h.registry.Licenses(c.Request.Context(), batchID)
	if err != nil {
		respondInternalError(c, err, "Failed to list licenses")
		return
	}

	c.JSON(http.StatusOK, dto.FromLicenses(licenses))
}

func (h *handler) IsLicenseActive(c *gin.Context) {
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}

	licensee := c.Query("licensee")
	if licensee == "" {
		respondBadRequest(c, "Licensee is required")
		return
	}

	active, err := h.registry.IsLicenseActive(c.Request.Context(), batchID, domain.Identity(licensee))
	if err != nil {
		respondInternalError(c, err, "Failed to check license")
		return
	}

	c.JSON(http.StatusOK, dto.LicenseActiveResponse{Active: active})
}

func (h *handler) ListCollaborators(c *gin.Context) {
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}

	collaborators, err := h.registry.Collaborators(c.Request.Context(), batchID)
	if err != nil {
		respondInternalError(c, err, "Failed to list collaborators")
		return
	}

	c.JSON(http.StatusOK, dto.FromCollaborators(collaborators))
}

func (h *handler) GetState(c *gin.Context) {
	state, err := h.registry.State(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "Failed to get registry state")
		return
	}
	if state == nil {
		respondNotFound(c, "Registry not initialized")
		return
	}

	c.JSON(http.StatusOK, dto.FromState(state))
}

func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
