package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrelief/supply-registry/internal/adapter"
	"github.com/openrelief/supply-registry/internal/domain"
	"github.com/openrelief/supply-registry/internal/logger"
	"github.com/openrelief/supply-registry/internal/store"
	"github.com/openrelief/supply-registry/internal/verifier"
)

const (
	admin = domain.Identity("org-admin")
	orgA  = domain.Identity("org-alpha")
	orgB  = domain.Identity("org-beta")
	orgC  = domain.Identity("org-gamma")
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: true}); err != nil {
		panic(err)
	}
	m.Run()
}

// fakeVerifier approves a fixed set of identities
type fakeVerifier struct {
	approved map[domain.Identity]bool
	err      error
}

func (v *fakeVerifier) IsVerified(ctx context.Context, identity domain.Identity) (bool, error) {
	if v.err != nil {
		return false, v.err
	}
	return v.approved[identity], nil
}

// capturePublisher records every published event
type capturePublisher struct {
	mu     sync.Mutex
	events []domain.RegistryEvent
}

func (p *capturePublisher) PublishEvent(ctx context.Context, event *domain.RegistryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return nil
}

func (p *capturePublisher) Close() {}

func (p *capturePublisher) actions() []domain.EventAction {
	p.mu.Lock()
	defer p.mu.Unlock()
	actions := make([]domain.EventAction, 0, len(p.events))
	for _, e := range p.events {
		actions = append(actions, e.Action)
	}
	return actions
}

type fixture struct {
	registry  *Registry
	publisher *capturePublisher
	clock     *adapter.LogicalClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	publisher := &capturePublisher{}
	clock := adapter.NewLogicalClock(0)

	defaults := []Option{
		WithVerifier(&fakeVerifier{approved: map[domain.Identity]bool{
			admin: true, orgA: true, orgB: true,
		}}),
	}
	r := New(store.NewMemoryStore(), clock, publisher, append(defaults, opts...)...)
	require.NoError(t, r.Initialize(context.Background(), admin))

	return &fixture{registry: r, publisher: publisher, clock: clock}
}

func mintBatch(t *testing.T, f *fixture, recipient domain.Identity) uint64 {
	t.Helper()
	id, err := f.registry.Mint(context.Background(), recipient, MintInput{
		Recipient:  recipient,
		URI:        "ipfs://manifest",
		SupplyType: "medical",
		Quantity:   10,
	})
	require.NoError(t, err)
	return id
}

func TestMint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.registry.Mint(ctx, orgA, MintInput{
		Recipient:   orgA,
		URI:         "ipfs://manifest-1",
		SupplyType:  "medical",
		Quantity:    100,
		Description: "field hospital resupply",
		Tags:        []string{"medical", "urgent"},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	owner, err := f.registry.Owner(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, orgA, owner.Owner)

	status, err := f.registry.Status(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, domain.StatusMinted, status.Label)

	second, err := f.registry.Mint(ctx, orgA, MintInput{
		Recipient:  orgB,
		URI:        "ipfs://manifest-2",
		SupplyType: "food",
		Quantity:   5,
	})
	require.NoError(t, err)
	assert.Equal(t, id+1, second)

	assert.Equal(t, []domain.EventAction{domain.EventMinted, domain.EventMinted}, f.publisher.actions())
}

func TestMintValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	longDescription := make([]byte, domain.MaxDescriptionLength+1)
	for i := range longDescription {
		longDescription[i] = 'x'
	}
	manyTags := make([]string, domain.MaxTags+1)
	longURI := make([]byte, domain.MaxURILength+1)
	for i := range longURI {
		longURI[i] = 'u'
	}

	tests := []struct {
		name    string
		caller  domain.Identity
		input   MintInput
		wantErr error
	}{
		{
			name:    "unverified caller",
			caller:  orgC,
			input:   MintInput{Recipient: orgC, URI: "ipfs://m", Quantity: 1},
			wantErr: domain.ErrNotVerified,
		},
		{
			name:    "empty uri",
			caller:  orgA,
			input:   MintInput{Recipient: orgA, URI: "", Quantity: 1},
			wantErr: domain.ErrInvalidUri,
		},
		{
			name:    "oversized uri",
			caller:  orgA,
			input:   MintInput{Recipient: orgA, URI: string(longURI), Quantity: 1},
			wantErr: domain.ErrInvalidUri,
		},
		{
			name:    "zero quantity",
			caller:  orgA,
			input:   MintInput{Recipient: orgA, URI: "ipfs://m", Quantity: 0},
			wantErr: domain.ErrInvalidQuantity,
		},
		{
			name:    "oversized description",
			caller:  orgA,
			input:   MintInput{Recipient: orgA, URI: "ipfs://m", Quantity: 1, Description: string(longDescription)},
			wantErr: domain.ErrInvalidMetadata,
		},
		{
			name:    "too many tags",
			caller:  orgA,
			input:   MintInput{Recipient: orgA, URI: "ipfs://m", Quantity: 1, Tags: manyTags},
			wantErr: domain.ErrTooManyTags,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.registry.Mint(ctx, tc.caller, tc.input)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	// Verification precedes field validation: an unverified caller with an
	// invalid uri is reported as NotVerified
	_, err := f.registry.Mint(ctx, orgC, MintInput{Recipient: orgC, URI: "", Quantity: 0})
	assert.ErrorIs(t, err, domain.ErrNotVerified)
}

func TestMintWithoutCapability(t *testing.T) {
	publisher := &capturePublisher{}
	r := New(store.NewMemoryStore(), adapter.NewLogicalClock(0), publisher)
	require.NoError(t, r.Initialize(context.Background(), admin))

	// No capability configured means verification fails
	_, err := r.Mint(context.Background(), orgA, MintInput{
		Recipient: orgA, URI: "ipfs://m", Quantity: 1,
	})
	assert.ErrorIs(t, err, domain.ErrNotVerified)
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := mintBatch(t, f, orgA)

	require.NoError(t, f.registry.Transfer(ctx, orgA, id, orgA, orgB))

	owner, err := f.registry.Owner(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, orgB, owner.Owner)

	status, err := f.registry.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTransferred, status.Label)
}

func TestTransferDelegatedSender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := mintBatch(t, f, orgA)

	// A caller that does not hold the batch can initiate the transfer as
	// long as it asserts the correct sender
	require.NoError(t, f.registry.Transfer(ctx, orgC, id, orgA, orgB))

	owner, err := f.registry.Owner(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, orgB, owner.Owner)

	// A wrong asserted sender fails regardless of the caller
	err = f.registry.Transfer(ctx, orgB, id, orgA, orgC)
	assert.ErrorIs(t, err, domain.ErrNotOwner)
}

func TestTransferNullRecipient(t *testing.T) {
	f := newFixture(t)
	id := mintBatch(t, f, orgA)

	err := f.registry.Transfer(context.Background(), orgA, id, orgA, domain.NullIdentity)
	assert.ErrorIs(t, err, domain.ErrInvalidRecipient)
}

func TestTransferUnknownBatch(t *testing.T) {
	f := newFixture(t)

	err := f.registry.Transfer(context.Background(), orgA, 999, orgA, orgB)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLockBlocksTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := mintBatch(t, f, orgA)

	require.NoError(t, f.registry.Transfer(ctx, orgA, id, orgA, orgB))
	require.NoError(t, f.registry.Lock(ctx, orgB, id))

	err := f.registry.Transfer(ctx, orgB, id, orgB, orgA)
	assert.ErrorIs(t, err, domain.ErrTokenLocked)

	owner, err := f.registry.Owner(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, orgB, owner.Owner)

	// Metadata edits stay allowed while locked
	require.NoError(t, f.registry.UpdateMetadata(ctx, orgB, id, "ipfs://revised", "rerouted"))

	// Unlock restores transferability
	require.NoError(t, f.registry.Unlock(ctx, orgB, id))
	require.NoError(t, f.registry.Transfer(ctx, orgB, id, orgB, orgA))
}

func TestLockTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := mintBatch(t, f, orgA)

	require.NoError(t, f.registry.Lock(ctx, orgA, id))
	assert.ErrorIs(t, f.registry.Lock(ctx, orgA, id), domain.ErrTokenLocked)

	require.NoError(t, f.registry.Unlock(ctx, orgA, id))
	assert.ErrorIs(t, f.registry.Unlock(ctx, orgA, id), domain.ErrInvalidStatus)
}

func TestBurn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := mintBatch(t, f, orgA)

	require.NoError(t, f.registry.GrantLicense(ctx, orgA, id, orgB, 100, "distribution"))
	require.NoError(t, f.registry.AddCollaborator(ctx, orgA, id, orgC, "logistics", []string{"read"}))
	require.NoError(t, f.registry.AddVersion(ctx, orgA, id, 1, "ipfs://rev-1", "initial revision"))

	assert.ErrorIs(t, f.registry.Burn(ctx, orgB, id), domain.ErrNotOwner)
	require.NoError(t, f.registry.Burn(ctx, orgA, id))

	owner, err := f.registry.Owner(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, owner)

	metadata, err := f.registry.Metadata(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, metadata)

	status, err := f.registry.Status(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, status)

	versions, err := f.registry.Versions(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, versions)

	licenses, err := f.registry.Licenses(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, licenses)

	collaborators, err := f.registry.Collaborators(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, collaborators)

	// The identifier is never reused
	next := mintBatch(t, f, orgA)
	assert.Greater(t, next, id)
}

func TestUpdateMetadataValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := mintBatch(t, f, orgA)

	assert.ErrorIs(t, f.registry.UpdateMetadata(ctx, orgA, id, "", "d"), domain.ErrInvalidUri)

	longDescription := make([]byte, domain.MaxDescriptionLength+1)
	assert.ErrorIs(t, f.registry.UpdateMetadata(ctx, orgA, id, "ipfs://m", string(longDescription)), domain.ErrInvalidMetadata)

	assert.ErrorIs(t, f.registry.UpdateMetadata(ctx, orgB, id, "ipfs://m", "d"), domain.ErrNotOwner)
}

func TestAddVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := mintBatch(t, f, orgA)

	assert.ErrorIs(t, f.registry.AddVersion(ctx, orgA, id, 0, "ipfs://rev", ""), domain.ErrInvalidVersion)
	assert.ErrorIs(t, f.registry.AddVersion(ctx, orgA, id, 1, "", ""), domain.ErrInvalidUri)

	for i := uint64(1); i <= domain.MaxVersionEntries; i++ {
		require.NoError(t, f.registry.AddVersion(ctx, orgA, id, i, "ipfs://rev", ""))
	}

	err := f.registry.AddVersion(ctx, orgA, id, 6, "ipfs://rev", "")
	assert.ErrorIs(t, err, domain.ErrHistoryFull)

	versions, err := f.registry.Versions(ctx, id)
	require.NoError(t, err)
	assert.Len(t, versions, domain.MaxVersionEntries)
}

func TestLicenseLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := mintBatch(t, f, orgA)

	assert.ErrorIs(t, f.registry.GrantLicense(ctx, orgA, id, orgB, 0, "t"), domain.ErrInvalidDuration)

	require.NoError(t, f.registry.GrantLicense(ctx, orgA, id, orgB, 1000, "distribution"))
	require.NoError(t, f.registry.GrantLicense(ctx, orgA, id, orgB, 1000, "distribution"))

	licenses, err := f.registry.Licenses(ctx, id)
	require.NoError(t, err)
	assert.Len(t, licenses, 2)

	active, err := f.registry.IsLicenseActive(ctx, id, orgB)
	require.NoError(t, err)
	assert.True(t, active)

	active, err = f.registry.IsLicenseActive(ctx, id, orgC)
	require.NoError(t, err)
	assert.False(t, active)

	// Revocation removes every matching grant
	require.NoError(t, f.registry.RevokeLicense(ctx, orgA, id, orgB))

	licenses, err = f.registry.Licenses(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, licenses)

	active, err = f.registry.IsLicenseActive(ctx, id, orgB)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestLicenseExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := mintBatch(t, f, orgA)

	require.NoError(t, f.registry.GrantLicense(ctx, orgA, id, orgB, 5, "short"))

	active, err := f.registry.IsLicenseActive(ctx, id, orgB)
	require.NoError(t, err)
	assert.True(t, active)

	// Advance the clock past the expiry
	f.clock.Set(1000)

	active, err = f.registry.IsLicenseActive(ctx, id, orgB)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestCollaborators(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := mintBatch(t, f, orgA)

	require.NoError(t, f.registry.AddCollaborator(ctx, orgA, id, orgB, "logistics", []string{"read", "route"}))
	require.NoError(t, f.registry.AddCollaborator(ctx, orgA, id, orgC, "auditor", nil))
	assert.ErrorIs(t, f.registry.AddCollaborator(ctx, orgB, id, orgC, "r", nil), domain.ErrNotOwner)

	collaborators, err := f.registry.Collaborators(ctx, id)
	require.NoError(t, err)
	require.Len(t, collaborators, 2)
	assert.Equal(t, orgB, collaborators[0].Collaborator)
	assert.Equal(t, orgC, collaborators[1].Collaborator)
}

func TestPauseGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Non-admin cannot pause
	assert.ErrorIs(t, f.registry.Pause(ctx, orgA), domain.ErrNotAdmin)

	require.NoError(t, f.registry.Pause(ctx, admin))

	_, err := f.registry.Mint(ctx, orgA, MintInput{Recipient: orgA, URI: "ipfs://m", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrPaused)

	state, err := f.registry.State(ctx)
	require.NoError(t, err)
	assert.True(t, state.Paused)

	require.NoError(t, f.registry.Unpause(ctx, admin))

	_, err = f.registry.Mint(ctx, orgA, MintInput{Recipient: orgA, URI: "ipfs://m", Quantity: 1})
	require.NoError(t, err)
}

func TestPauseBlocksEveryMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := mintBatch(t, f, orgA)

	require.NoError(t, f.registry.Pause(ctx, admin))

	assert.ErrorIs(t, f.registry.Transfer(ctx, orgA, id, orgA, orgB), domain.ErrPaused)
	assert.ErrorIs(t, f.registry.Burn(ctx, orgA, id), domain.ErrPaused)
	assert.ErrorIs(t, f.registry.UpdateMetadata(ctx, orgA, id, "ipfs://m", "d"), domain.ErrPaused)
	assert.ErrorIs(t, f.registry.AddVersion(ctx, orgA, id, 1, "ipfs://m", ""), domain.ErrPaused)
	assert.ErrorIs(t, f.registry.GrantLicense(ctx, orgA, id, orgB, 10, "t"), domain.ErrPaused)
	assert.ErrorIs(t, f.registry.RevokeLicense(ctx, orgA, id, orgB), domain.ErrPaused)
	assert.ErrorIs(t, f.registry.AddCollaborator(ctx, orgA, id, orgB, "r", nil), domain.ErrPaused)
	assert.ErrorIs(t, f.registry.Lock(ctx, orgA, id), domain.ErrPaused)
	assert.ErrorIs(t, f.registry.Unlock(ctx, orgA, id), domain.ErrPaused)

	// Reads bypass the gate
	owner, err := f.registry.Owner(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, owner)
}

func TestSetVerificationCapability(t *testing.T) {
	built := make(map[string]verifier.Verifier)
	factory := func(endpoint string) verifier.Verifier {
		v := &fakeVerifier{approved: map[domain.Identity]bool{orgC: true}}
		built[endpoint] = v
		return v
	}

	f := newFixture(t, WithVerifierFactory(factory))
	ctx := context.Background()

	assert.ErrorIs(t, f.registry.SetVerificationCapability(ctx, orgA, nil), domain.ErrNotAdmin)

	// Swap to an endpoint that approves only orgC
	endpoint := "https://verify.example.org"
	require.NoError(t, f.registry.SetVerificationCapability(ctx, admin, &endpoint))
	require.Contains(t, built, endpoint)

	_, err := f.registry.Mint(ctx, orgA, MintInput{Recipient: orgA, URI: "ipfs://m", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrNotVerified)

	_, err = f.registry.Mint(ctx, orgC, MintInput{Recipient: orgC, URI: "ipfs://m", Quantity: 1})
	require.NoError(t, err)

	state, err := f.registry.State(ctx)
	require.NoError(t, err)
	require.NotNil(t, state.VerifierEndpoint)
	assert.Equal(t, endpoint, *state.VerifierEndpoint)

	// Clearing the capability makes every mint fail verification
	require.NoError(t, f.registry.SetVerificationCapability(ctx, admin, nil))
	_, err = f.registry.Mint(ctx, orgC, MintInput{Recipient: orgC, URI: "ipfs://m", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrNotVerified)
}

func TestInitializeRestoresCapability(t *testing.T) {
	s := store.NewMemoryStore()
	clock := adapter.NewLogicalClock(0)
	endpoint := "https://verify.example.org"

	first := New(s, clock, nil, WithVerifierFactory(func(string) verifier.Verifier {
		return &fakeVerifier{approved: map[domain.Identity]bool{orgA: true}}
	}))
	require.NoError(t, first.Initialize(context.Background(), admin))
	require.NoError(t, first.SetVerificationCapability(context.Background(), admin, &endpoint))

	// A fresh service over the same store picks the endpoint back up
	second := New(s, clock, nil, WithVerifierFactory(func(e string) verifier.Verifier {
		require.Equal(t, endpoint, e)
		return &fakeVerifier{approved: map[domain.Identity]bool{orgA: true}}
	}))
	require.NoError(t, second.Initialize(context.Background(), admin))

	_, err := second.Mint(context.Background(), orgA, MintInput{Recipient: orgA, URI: "ipfs://m", Quantity: 1})
	require.NoError(t, err)
}

func TestAdminIsImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Re-initializing with a different admin leaves the original in place
	require.NoError(t, f.registry.Initialize(ctx, orgA))

	state, err := f.registry.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, admin, state.Admin)

	assert.ErrorIs(t, f.registry.Pause(ctx, orgA), domain.ErrNotAdmin)
}

func TestEventPublication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := mintBatch(t, f, orgA)
	require.NoError(t, f.registry.Transfer(ctx, orgA, id, orgA, orgB))
	require.NoError(t, f.registry.GrantLicense(ctx, orgB, id, orgC, 10, "t"))
	require.NoError(t, f.registry.Burn(ctx, orgB, id))
	require.NoError(t, f.registry.Pause(ctx, admin))

	assert.Equal(t, []domain.EventAction{
		domain.EventMinted,
		domain.EventTransferred,
		domain.EventLicenseGranted,
		domain.EventBurned,
		domain.EventPaused,
	}, f.publisher.actions())

	// Every event carries an ID and the actor; failed mutations publish nothing
	for _, e := range f.publisher.events {
		assert.Len(t, e.ID, 26)
		assert.NotEmpty(t, e.Actor)
	}

	before := len(f.publisher.actions())
	_, err := f.registry.Mint(ctx, orgA, MintInput{Recipient: orgA, URI: "ipfs://m", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrPaused)
	assert.Len(t, f.publisher.actions(), before)
}
