package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/openrelief/supply-registry/internal/domain"
)

// verifyRequest is the request body for the verification endpoint
type verifyRequest struct {
	Identity string `json:"identity"`
}

// verifyResponse is the response body from the verification endpoint
type verifyResponse struct {
	Verified bool `json:"verified"`
}

// HTTPVerifier calls an external verification registry over HTTP.
// Transient failures are retried with exponential backoff; a verification
// answer, positive or negative, is never retried.
type HTTPVerifier struct {
	httpClient *http.Client
	endpoint   string
	maxElapsed time.Duration
}

// NewHTTPVerifier creates a verifier backed by the given endpoint.
// The endpoint is expected to accept POST /v1/verify with {"identity": ...}
// and answer {"verified": bool}.
func NewHTTPVerifier(endpoint string, timeout, maxElapsed time.Duration) *HTTPVerifier {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if maxElapsed == 0 {
		maxElapsed = 30 * time.Second
	}
	return &HTTPVerifier{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		maxElapsed: maxElapsed,
	}
}

// IsVerified checks the identity against the external verification registry
func (v *HTTPVerifier) IsVerified(ctx context.Context, identity domain.Identity) (bool, error) {
	requestBody, err := json.Marshal(verifyRequest{Identity: identity.String()})
	if err != nil {
		return false, fmt.Errorf("failed to marshal verify request: %w", err)
	}

	var verified bool
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint+"/v1/verify", bytes.NewReader(requestBody))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build verify request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := v.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to call verification registry: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read verify response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			var response verifyResponse
			if err := json.Unmarshal(body, &response); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to unmarshal verify response: %w", err))
			}
			verified = response.Verified
			return nil
		case resp.StatusCode >= 500:
			return fmt.Errorf("verification registry unavailable: status %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("verification registry rejected request: status %d", resp.StatusCode))
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = v.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return false, err
	}

	return verified, nil
}
