package verifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrelief/supply-registry/internal/domain"
)

func TestLoadAllowlist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "allowlist.json")
	require.NoError(t, os.WriteFile(path, []byte(`["0xAbCd00000000000000000000000000000000eF12", "org-red-crescent"]`), 0o600))

	v, err := LoadAllowlist(path)
	require.NoError(t, err)

	ctx := context.Background()

	// Lookup is case insensitive
	ok, err := v.IsVerified(ctx, domain.Identity("0xabcd00000000000000000000000000000000ef12"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.IsVerified(ctx, domain.Identity("ORG-RED-CRESCENT"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.IsVerified(ctx, domain.Identity("org-unknown"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadAllowlistErrors(t *testing.T) {
	_, err := LoadAllowlist(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not": "a list"}`), 0o600))
	_, err = LoadAllowlist(path)
	assert.Error(t, err)
}

func TestHTTPVerifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/verify", r.URL.Path)

		var req verifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		_ = json.NewEncoder(w).Encode(verifyResponse{
			Verified: req.Identity == "org-approved",
		})
	}))
	defer server.Close()

	v := NewHTTPVerifier(server.URL, 5*time.Second, 5*time.Second)

	ok, err := v.IsVerified(context.Background(), domain.Identity("org-approved"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.IsVerified(context.Background(), domain.Identity("org-other"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHTTPVerifierRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(verifyResponse{Verified: true})
	}))
	defer server.Close()

	v := NewHTTPVerifier(server.URL, 5*time.Second, 10*time.Second)

	ok, err := v.IsVerified(context.Background(), domain.Identity("org-approved"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestHTTPVerifierClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	v := NewHTTPVerifier(server.URL, 5*time.Second, 10*time.Second)

	_, err := v.IsVerified(context.Background(), domain.Identity("org-approved"))
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
