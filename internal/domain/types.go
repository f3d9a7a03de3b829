package domain

// Identity represents an authenticated ledger identity (organization or
// individual account) as provided by the host platform
type Identity string

// NullIdentity is the designated null/burn identity. It can never own or
// receive a batch.
const NullIdentity Identity = "0x0000000000000000000000000000000000000000"

// String returns the string representation of the Identity
func (i Identity) String() string {
	return string(i)
}

// Valid checks if an identity can own or receive a batch
func (i Identity) Valid() bool {
	return i != "" && i != NullIdentity
}

// Bounds on batch metadata fields
const (
	// MaxURILength is the upper bound on metadata and version URIs
	MaxURILength = 256
	// MaxDescriptionLength is the upper bound on the free-text description
	MaxDescriptionLength = 500
	// MaxTags is the maximum number of tags a batch may carry
	MaxTags = 10
	// MaxVersionEntries is the hard cap on the per-batch version history.
	// Appends beyond the cap are rejected, never evicted.
	MaxVersionEntries = 5
)

// StatusLabel is the lifecycle label recorded by every mutating operation
type StatusLabel string

const (
	StatusMinted            StatusLabel = "minted"
	StatusTransferred       StatusLabel = "transferred"
	StatusMetadataUpdated   StatusLabel = "metadata-updated"
	StatusVersionAdded      StatusLabel = "version-added"
	StatusLicenseGranted    StatusLabel = "license-granted"
	StatusLicenseRevoked    StatusLabel = "license-revoked"
	StatusCollaboratorAdded StatusLabel = "collaborator-added"
	StatusLocked            StatusLabel = "locked"
	StatusUnlocked          StatusLabel = "unlocked"
)

// String returns the string representation of the StatusLabel
func (s StatusLabel) String() string {
	return string(s)
}

// ValidURI checks a metadata or version URI against the length bounds
func ValidURI(uri string) bool {
	return len(uri) >= 1 && len(uri) <= MaxURILength
}

// ValidDescription checks a free-text description against the length bound
func ValidDescription(description string) bool {
	return len(description) <= MaxDescriptionLength
}

// ValidTags checks a tag list against the count bound
func ValidTags(tags []string) bool {
	return len(tags) <= MaxTags
}
