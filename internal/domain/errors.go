package domain

import "errors"

var (
	// ErrNotOwner is returned when the recorded owner does not match the asserted sender or caller
	ErrNotOwner = errors.New("not batch owner")

	// ErrNotFound is returned when a batch does not exist (or was burned)
	ErrNotFound = errors.New("batch not found")

	// ErrInvalidUri is returned when a metadata or version URI is empty or exceeds the length bound
	ErrInvalidUri = errors.New("invalid uri")

	// ErrInvalidMetadata is returned when a metadata field violates its bound
	ErrInvalidMetadata = errors.New("invalid metadata")

	// ErrNotAuthorized is returned when the caller identity cannot be established
	ErrNotAuthorized = errors.New("not authorized")

	// ErrInvalidQuantity is returned when a batch quantity is not positive
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrTokenLocked is returned when a transfer is attempted on a locked batch, or lock is applied twice
	ErrTokenLocked = errors.New("batch locked")

	// ErrInvalidRecipient is returned when the transfer recipient is the null/burn identity
	ErrInvalidRecipient = errors.New("invalid recipient")

	// ErrTooManyTags is returned when the tag list exceeds the cap
	ErrTooManyTags = errors.New("too many tags")

	// ErrNotVerified is returned when the caller fails organization verification,
	// or no verification capability is configured
	ErrNotVerified = errors.New("caller not verified")

	// ErrInvalidVersion is returned when a version number is not positive
	ErrInvalidVersion = errors.New("invalid version")

	// ErrHistoryFull is returned when the version history already holds the maximum number of entries
	ErrHistoryFull = errors.New("version history full")

	// ErrInvalidStatus is returned when an operation does not apply to the batch's current state,
	// such as unlocking an already-unlocked batch
	ErrInvalidStatus = errors.New("invalid status")

	// ErrPaused is returned when a non-admin mutating operation is attempted while the registry is paused
	ErrPaused = errors.New("registry paused")

	// ErrNotAdmin is returned when an admin operation is attempted by a non-admin caller
	ErrNotAdmin = errors.New("caller is not admin")

	// ErrInvalidDuration is returned when a license duration is not positive
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrLicenseExpired is returned when an operation requires an unexpired license
	ErrLicenseExpired = errors.New("license expired")
)
