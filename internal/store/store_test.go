package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrelief/supply-registry/internal/domain"
)

// runStoreSuite runs the behavioral suite shared by every Store
// implementation. newStore must return an empty store.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ownerA := domain.Identity("did:org:unicef")
	ownerB := domain.Identity("did:org:wfp")
	licensee := domain.Identity("did:org:redcross")

	buildMintInput := func(recipient domain.Identity) MintBatchInput {
		return MintBatchInput{
			Recipient:   recipient,
			URI:         "ipfs://QmBatchManifest",
			SupplyType:  "medical",
			Quantity:    100,
			Description: "field hospital resupply",
			Tags:        []string{"priority", "cold-chain"},
			Now:         10,
		}
	}

	mint := func(t *testing.T, s Store, recipient domain.Identity) uint64 {
		id, err := s.MintBatch(context.Background(), buildMintInput(recipient))
		require.NoError(t, err)
		return id
	}

	t.Run("mint creates ownership, metadata, and status", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id := mint(t, s, ownerA)

		batch, err := s.GetBatch(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, batch)
		assert.Equal(t, ownerA, batch.Owner)

		metadata, err := s.GetBatchMetadata(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, metadata)
		assert.Equal(t, "ipfs://QmBatchManifest", metadata.URI)
		assert.Equal(t, uint64(100), metadata.Quantity)
		assert.False(t, metadata.Locked)

		var tags []string
		require.NoError(t, json.Unmarshal(metadata.Tags, &tags))
		assert.Equal(t, []string{"priority", "cold-chain"}, tags)

		status, err := s.GetBatchStatus(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, status)
		assert.Equal(t, domain.StatusMinted, status.Label)
		assert.Equal(t, uint64(10), status.UpdatedAt)
	})

	t.Run("mint allocates strictly increasing identifiers", func(t *testing.T) {
		s := newStore(t)

		first := mint(t, s, ownerA)
		second := mint(t, s, ownerA)
		assert.Equal(t, first+1, second)
	})

	t.Run("identifiers are never reused after burn", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first := mint(t, s, ownerA)
		require.NoError(t, s.BurnBatch(ctx, BurnBatchInput{BatchID: first, Caller: ownerA}))

		second := mint(t, s, ownerA)
		assert.Greater(t, second, first)
	})

	t.Run("transfer moves ownership and records status", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id := mint(t, s, ownerA)
		err := s.TransferBatch(ctx, TransferBatchInput{BatchID: id, Sender: ownerA, Recipient: ownerB, Now: 20})
		require.NoError(t, err)

		batch, err := s.GetBatch(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, ownerB, batch.Owner)

		status, err := s.GetBatchStatus(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusTransferred, status.Label)
		assert.Equal(t, uint64(20), status.UpdatedAt)
	})

	t.Run("transfer with wrong sender fails with NotOwner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id := mint(t, s, ownerA)
		err := s.TransferBatch(ctx, TransferBatchInput{BatchID: id, Sender: ownerB, Recipient: ownerA, Now: 20})
		assert.ErrorIs(t, err, domain.ErrNotOwner)

		batch, err := s.GetBatch(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, ownerA, batch.Owner)
	})

	t.Run("transfer of unknown batch fails with NotFound", func(t *testing.T) {
		s := newStore(t)

		err := s.TransferBatch(context.Background(), TransferBatchInput{BatchID: 9999, Sender: ownerA, Recipient: ownerB, Now: 20})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("locked batch rejects transfer until unlocked", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id := mint(t, s, ownerA)
		require.NoError(t, s.SetBatchLock(ctx, SetBatchLockInput{BatchID: id, Caller: ownerA, Locked: true, Now: 20}))

		err := s.TransferBatch(ctx, TransferBatchInput{BatchID: id, Sender: ownerA, Recipient: ownerB, Now: 21})
		assert.ErrorIs(t, err, domain.ErrTokenLocked)

		batch, err := s.GetBatch(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, ownerA, batch.Owner)

		require.NoError(t, s.SetBatchLock(ctx, SetBatchLockInput{BatchID: id, Caller: ownerA, Locked: false, Now: 22}))
		require.NoError(t, s.TransferBatch(ctx, TransferBatchInput{BatchID: id, Sender: ownerA, Recipient: ownerB, Now: 23}))
	})

	t.Run("double lock and double unlock are rejected", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id := mint(t, s, ownerA)

		err := s.SetBatchLock(ctx, SetBatchLockInput{BatchID: id, Caller: ownerA, Locked: false, Now: 20})
		assert.ErrorIs(t, err, domain.ErrInvalidStatus)

		require.NoError(t, s.SetBatchLock(ctx, SetBatchLockInput{BatchID: id, Caller: ownerA, Locked: true, Now: 21}))
		err = s.SetBatchLock(ctx, SetBatchLockInput{BatchID: id, Caller: ownerA, Locked: true, Now: 22})
		assert.ErrorIs(t, err, domain.ErrTokenLocked)
	})

	t.Run("burn removes every record", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id := mint(t, s, ownerA)
		require.NoError(t, s.AppendBatchVersion(ctx, AppendBatchVersionInput{BatchID: id, Caller: ownerA, Version: 1, URI: "ipfs://v1", Now: 11}))
		require.NoError(t, s.GrantBatchLicense(ctx, GrantBatchLicenseInput{BatchID: id, Caller: ownerA, Licensee: licensee, Expiry: 100, Terms: "full use", Now: 12}))
		require.NoError(t, s.AddBatchCollaborator(ctx, AddBatchCollaboratorInput{BatchID: id, Caller: ownerA, Collaborator: ownerB, Role: "auditor", Permissions: []string{"read"}, Now: 13}))

		require.NoError(t, s.BurnBatch(ctx, BurnBatchInput{BatchID: id, Caller: ownerA}))

		batch, err := s.GetBatch(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, batch)

		metadata, err := s.GetBatchMetadata(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, metadata)

		status, err := s.GetBatchStatus(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, status)

		versions, err := s.ListBatchVersions(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, versions)

		licenses, err := s.ListBatchLicenses(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, licenses)

		collaborators, err := s.ListBatchCollaborators(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, collaborators)
	})

	t.Run("burn by non-owner fails with NotOwner", func(t *testing.T) {
		s := newStore(t)

		id := mint(t, s, ownerA)
		err := s.BurnBatch(context.Background(), BurnBatchInput{BatchID: id, Caller: ownerB})
		assert.ErrorIs(t, err, domain.ErrNotOwner)
	})

	t.Run("metadata update replaces uri and description only", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id := mint(t, s, ownerA)
		err := s.UpdateBatchMetadata(ctx, UpdateBatchMetadataInput{BatchID: id, Caller: ownerA, URI: "ipfs://QmRevised", Description: "revised", Now: 30})
		require.NoError(t, err)

		metadata, err := s.GetBatchMetadata(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "ipfs://QmRevised", metadata.URI)
		assert.Equal(t, "revised", metadata.Description)
		assert.Equal(t, uint64(100), metadata.Quantity)
		assert.Equal(t, "medical", metadata.SupplyType)

		status, err := s.GetBatchStatus(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusMetadataUpdated, status.Label)
	})

	t.Run("version history caps at five entries", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id := mint(t, s, ownerA)
		for i := uint64(1); i <= domain.MaxVersionEntries; i++ {
			err := s.AppendBatchVersion(ctx, AppendBatchVersionInput{BatchID: id, Caller: ownerA, Version: i, URI: "ipfs://v", Now: 40 + i})
			require.NoError(t, err)
		}

		err := s.AppendBatchVersion(ctx, AppendBatchVersionInput{BatchID: id, Caller: ownerA, Version: 6, URI: "ipfs://v6", Now: 50})
		assert.ErrorIs(t, err, domain.ErrHistoryFull)

		versions, err := s.ListBatchVersions(ctx, id)
		require.NoError(t, err)
		require.Len(t, versions, domain.MaxVersionEntries)
		for i, version := range versions {
			assert.Equal(t, uint64(i+1), version.Version)
		}
	})

	t.Run("duplicate version numbers are permitted", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id := mint(t, s, ownerA)
		require.NoError(t, s.AppendBatchVersion(ctx, AppendBatchVersionInput{BatchID: id, Caller: ownerA, Version: 3, URI: "ipfs://a", Now: 41}))
		require.NoError(t, s.AppendBatchVersion(ctx, AppendBatchVersionInput{BatchID: id, Caller: ownerA, Version: 3, URI: "ipfs://b", Now: 42}))

		versions, err := s.ListBatchVersions(ctx, id)
		require.NoError(t, err)
		assert.Len(t, versions, 2)
	})

	t.Run("license grants append without dedup and revoke removes all matches", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id := mint(t, s, ownerA)
		require.NoError(t, s.GrantBatchLicense(ctx, GrantBatchLicenseInput{BatchID: id, Caller: ownerA, Licensee: licensee, Expiry: 100, Terms: "distribution", Now: 60}))
		require.NoError(t, s.GrantBatchLicense(ctx, GrantBatchLicenseInput{BatchID: id, Caller: ownerA, Licensee: licensee, Expiry: 200, Terms: "storage", Now: 61}))
		require.NoError(t, s.GrantBatchLicense(ctx, GrantBatchLicenseInput{BatchID: id, Caller: ownerA, Licensee: ownerB, Expiry: 300, Terms: "transport", Now: 62}))

		licenses, err := s.ListBatchLicenses(ctx, id)
		require.NoError(t, err)
		require.Len(t, licenses, 3)
		for _, license := range licenses {
			assert.True(t, license.Active)
		}

		require.NoError(t, s.RevokeBatchLicense(ctx, RevokeBatchLicenseInput{BatchID: id, Caller: ownerA, Licensee: licensee, Now: 63}))

		licenses, err = s.ListBatchLicenses(ctx, id)
		require.NoError(t, err)
		require.Len(t, licenses, 1)
		assert.Equal(t, ownerB, licenses[0].Licensee)

		status, err := s.GetBatchStatus(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusLicenseRevoked, status.Label)
	})

	t.Run("collaborators append in order", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id := mint(t, s, ownerA)
		require.NoError(t, s.AddBatchCollaborator(ctx, AddBatchCollaboratorInput{BatchID: id, Caller: ownerA, Collaborator: ownerB, Role: "logistics", Permissions: []string{"read", "report"}, Now: 70}))
		require.NoError(t, s.AddBatchCollaborator(ctx, AddBatchCollaboratorInput{BatchID: id, Caller: ownerA, Collaborator: licensee, Role: "auditor", Permissions: nil, Now: 71}))

		collaborators, err := s.ListBatchCollaborators(ctx, id)
		require.NoError(t, err)
		require.Len(t, collaborators, 2)
		assert.Equal(t, ownerB, collaborators[0].Collaborator)
		assert.Equal(t, licensee, collaborators[1].Collaborator)

		var permissions []string
		require.NoError(t, json.Unmarshal(collaborators[0].Permissions, &permissions))
		assert.Equal(t, []string{"read", "report"}, permissions)
	})

	t.Run("registry state is created once and admin is immutable", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		state, err := s.EnsureState(ctx, ownerA, 1)
		require.NoError(t, err)
		assert.Equal(t, ownerA, state.Admin)
		assert.False(t, state.Paused)

		// A second EnsureState must not replace the admin
		state, err = s.EnsureState(ctx, ownerB, 2)
		require.NoError(t, err)
		assert.Equal(t, ownerA, state.Admin)

		require.NoError(t, s.SetPaused(ctx, true, 3))
		state, err = s.GetState(ctx)
		require.NoError(t, err)
		assert.True(t, state.Paused)

		endpoint := "https://verifier.example.org"
		require.NoError(t, s.SetVerifierEndpoint(ctx, &endpoint, 4))
		state, err = s.GetState(ctx)
		require.NoError(t, err)
		require.NotNil(t, state.VerifierEndpoint)
		assert.Equal(t, endpoint, *state.VerifierEndpoint)
	})

	t.Run("expired license listing honors the cutoff", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id := mint(t, s, ownerA)
		require.NoError(t, s.GrantBatchLicense(ctx, GrantBatchLicenseInput{BatchID: id, Caller: ownerA, Licensee: licensee, Expiry: 50, Terms: "short", Now: 10}))
		require.NoError(t, s.GrantBatchLicense(ctx, GrantBatchLicenseInput{BatchID: id, Caller: ownerA, Licensee: ownerB, Expiry: 500, Terms: "long", Now: 11}))

		expired, err := s.ListExpiredLicenses(ctx, 100, 10)
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, licensee, expired[0].Licensee)

		// Expiry is inclusive: a license expiring exactly now is not expired
		expired, err = s.ListExpiredLicenses(ctx, 50, 10)
		require.NoError(t, err)
		assert.Empty(t, expired)
	})
}
