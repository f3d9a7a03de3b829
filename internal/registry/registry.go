// Package registry implements the supply batch registry core: the pause and
// admin gate, per-operation validation, atomic persistence through the store,
// and best-effort event publication after commit.
package registry

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/openrelief/supply-registry/internal/adapter"
	"github.com/openrelief/supply-registry/internal/domain"
	"github.com/openrelief/supply-registry/internal/logger"
	"github.com/openrelief/supply-registry/internal/messaging"
	"github.com/openrelief/supply-registry/internal/store"
	"github.com/openrelief/supply-registry/internal/verifier"
)

// VerifierFactory builds a verification-capability client for an endpoint.
// Invoked when the admin swaps the configured capability at runtime.
type VerifierFactory func(endpoint string) verifier.Verifier

// Registry is the core service. All mutating operations pass through the
// pause/admin gate first, then validate inputs, then commit through the
// store, then publish an event. Publication failures never fail a mutation.
type Registry struct {
	store     store.Store
	clock     adapter.Clock
	publisher messaging.Publisher

	verifierMu      sync.RWMutex
	verifier        verifier.Verifier
	verifierFactory VerifierFactory
}

// Option configures a Registry
type Option func(*Registry)

// WithVerifier sets the initial verification capability
func WithVerifier(v verifier.Verifier) Option {
	return func(r *Registry) { r.verifier = v }
}

// WithVerifierFactory sets the factory used when the admin reconfigures the
// verification endpoint at runtime
func WithVerifierFactory(f VerifierFactory) Option {
	return func(r *Registry) { r.verifierFactory = f }
}

// New creates a registry service over the given store, clock and publisher
func New(s store.Store, clock adapter.Clock, publisher messaging.Publisher, opts ...Option) *Registry {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	r := &Registry{
		store:     s,
		clock:     clock,
		publisher: publisher,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize creates the singleton registry state with the given admin if it
// does not exist yet. An existing admin identity is never overwritten. If a
// verification endpoint was persisted earlier and a factory is configured,
// the capability is restored from it.
func (r *Registry) Initialize(ctx context.Context, admin domain.Identity) error {
	state, err := r.store.EnsureState(ctx, admin, r.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to initialize registry state: %w", err)
	}

	if state.VerifierEndpoint != nil && r.verifierFactory != nil {
		r.verifierMu.Lock()
		r.verifier = r.verifierFactory(*state.VerifierEndpoint)
		r.verifierMu.Unlock()
	}

	return nil
}

// requireUnpaused fails with Paused while the registry-wide switch is set.
// An uninitialized registry counts as unpaused.
func (r *Registry) requireUnpaused(ctx context.Context) error {
	state, err := r.store.GetState(ctx)
	if err != nil {
		return fmt.Errorf("failed to get registry state: %w", err)
	}
	if state != nil && state.Paused {
		return domain.ErrPaused
	}
	return nil
}

// requireAdmin fails with NotAdmin unless the caller is the registry admin
func (r *Registry) requireAdmin(ctx context.Context, caller domain.Identity) error {
	state, err := r.store.GetState(ctx)
	if err != nil {
		return fmt.Errorf("failed to get registry state: %w", err)
	}
	if state == nil || state.Admin != caller {
		return domain.ErrNotAdmin
	}
	return nil
}

// currentVerifier returns the configured verification capability, nil if none
func (r *Registry) currentVerifier() verifier.Verifier {
	r.verifierMu.RLock()
	defer r.verifierMu.RUnlock()
	return r.verifier
}

// publish sends a registry event to the broker. Best effort: the mutation has
// already committed, so a publish failure is logged and swallowed.
func (r *Registry) publish(ctx context.Context, event *domain.RegistryEvent) {
	event.ID = domain.NewEventID()
	if err := r.publisher.PublishEvent(ctx, event); err != nil {
		logger.ErrorCtx(ctx, err,
			zap.String("action", string(event.Action)),
			zap.Uint64("batch_id", event.BatchID))
	}
}
