// Package messaging defines the broker-facing interfaces of the registry.
// Events are published after a mutation commits; publication failures are
// logged and never fail the mutation itself.
package messaging

import (
	"context"

	"github.com/openrelief/supply-registry/internal/domain"
)

// Publisher defines the interface for publishing registry events to the
// message broker
type Publisher interface {
	// PublishEvent publishes a registry event to the message broker
	PublishEvent(ctx context.Context, event *domain.RegistryEvent) error
	// Close closes the connection
	Close()
}

// NopPublisher discards every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishEvent(ctx context.Context, event *domain.RegistryEvent) error {
	return nil
}

func (NopPublisher) Close() {}
