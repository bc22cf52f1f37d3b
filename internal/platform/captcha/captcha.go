// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

// Package captcha verifies reCAPTCHA v3 response tokens against the Google
// siteverify endpoint.
//
// # Behavior
//
// Verification is fail-closed. A network error, a timeout, a non-200 status,
// a malformed body, or a score below the configured threshold all count as a
// failed challenge. A user is never let through because the verifier was
// unreachable.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/acejobs/portal/internal/platform/apperr"
	"github.com/acejobs/portal/internal/platform/constants"
)

// ErrChallengeFailed is returned whenever the token cannot be positively verified.
var ErrChallengeFailed = apperr.Forbidden("CAPTCHA verification failed.").WithCode("CAPTCHA_FAILED")

// Verifier checks CAPTCHA tokens submitted by the browser.
type Verifier interface {
	Verify(ctx context.Context, token string) error
}

// verifyResponse mirrors the siteverify JSON body.
type verifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	ErrorCodes []string `json:"error-codes"`
}

// GoogleVerifier verifies tokens against the reCAPTCHA v3 siteverify API.
type GoogleVerifier struct {
	verifyURL string
	secret    string
	minScore  float64
	client    *http.Client
}

// NewGoogleVerifier builds a verifier for the given siteverify endpoint.
func NewGoogleVerifier(verifyURL, secret string, minScore float64) *GoogleVerifier {
	return &GoogleVerifier{
		verifyURL: verifyURL,
		secret:    secret,
		minScore:  minScore,
		client:    &http.Client{Timeout: constants.ExternalCallTimeout},
	}
}

// Verify submits the token to the siteverify endpoint and enforces the score
// threshold.
func (verifier *GoogleVerifier) Verify(ctx context.Context, token string) error {
	if token == "" {
		return ErrChallengeFailed
	}

	form := url.Values{}
	form.Set("secret", verifier.secret)
	form.Set("response", token)

	callCtx, cancel := context.WithTimeout(ctx, constants.ExternalCallTimeout)
	defer cancel()

	httpRequest, err := http.NewRequestWithContext(
		callCtx, http.MethodPost, verifier.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("captcha: building verify request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResponse, err := verifier.client.Do(httpRequest)
	if err != nil {
		// Unreachable verifier fails the challenge.
		return ErrChallengeFailed
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode != http.StatusOK {
		return ErrChallengeFailed
	}

	var result verifyResponse
	if err := json.NewDecoder(httpResponse.Body).Decode(&result); err != nil {
		return ErrChallengeFailed
	}

	if !result.Success || result.Score < verifier.minScore {
		return ErrChallengeFailed
	}
	return nil
}
