// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
)

// GenerateSecureToken returns a URL-safe random token of byteLength random bytes.
//
// It is used for session tokens and password-reset tokens. The output is
// base64url encoded, so the string is longer than byteLength.
func GenerateSecureToken(byteLength int) (string, error) {
	buffer := make([]byte, byteLength)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("sec: failed to generate secure token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// HashToken returns the hex-encoded SHA-256 digest of a token.
//
// Session and reset tokens are stored as digests so a leaked database copy
// cannot be replayed as a live credential.
func HashToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}

// GenerateNumericCode returns a uniformly random integer in [min, max] inclusive.
//
// It backs one-time passcode generation and uses crypto/rand rather than
// math/rand so codes cannot be predicted from prior observations.
func GenerateNumericCode(min, max int64) (int64, error) {
	if max < min {
		return 0, fmt.Errorf("sec: invalid code range [%d, %d]", min, max)
	}

	span := big.NewInt(max - min + 1)
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return 0, fmt.Errorf("sec: failed to generate numeric code: %w", err)
	}

	return min + n.Int64(), nil
}
