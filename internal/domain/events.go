package domain

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventAction is the kind of registry mutation an event describes. Actions
// mirror the status labels recorded by the corresponding operation, plus
// "burned" (burn leaves no status record behind) and "license-expired"
// (emitted by the sweeper, not by a mutation).
type EventAction string

const (
	EventMinted            EventAction = "minted"
	EventTransferred       EventAction = "transferred"
	EventBurned            EventAction = "burned"
	EventMetadataUpdated   EventAction = "metadata-updated"
	EventVersionAdded      EventAction = "version-added"
	EventLicenseGranted    EventAction = "license-granted"
	EventLicenseRevoked    EventAction = "license-revoked"
	EventLicenseExpired    EventAction = "license-expired"
	EventCollaboratorAdded EventAction = "collaborator-added"
	EventLocked            EventAction = "locked"
	EventUnlocked          EventAction = "unlocked"
	EventPaused            EventAction = "paused"
	EventUnpaused          EventAction = "unpaused"
)

// RegistryEvent is the normalized event published to the message broker
// after a mutation commits. Consumed by the external audit module.
type RegistryEvent struct {
	// ID is a ULID assigned at publication time
	ID string `json:"id"`
	// BatchID is the batch the event relates to (0 for registry-wide events)
	BatchID uint64 `json:"batch_id"`
	// Action identifies the mutation
	Action EventAction `json:"action"`
	// Actor is the identity that authored the mutation
	Actor Identity `json:"actor"`
	// Subject is the counterparty identity where one exists
	// (transfer recipient, licensee, collaborator)
	Subject *Identity `json:"subject,omitempty"`
	// Timestamp is the logical-clock value at which the mutation committed
	Timestamp uint64 `json:"timestamp"`
}

// NewEventID generates a new ULID for a registry event
func NewEventID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String()
}

// Subject builds the broker subject for an event.
// Format: registry.batch.<action>, e.g. registry.batch.minted
func (e *RegistryEvent) BrokerSubject() string {
	return fmt.Sprintf("registry.batch.%s", e.Action)
}
