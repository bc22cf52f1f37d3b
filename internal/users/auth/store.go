// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

package auth

import (
	"context"
	"time"
)

// # Member Data Access

// MemberRepository defines the data access contract for member accounts.
type MemberRepository interface {

	/*
		FindByID returns the member with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *Member: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByID(context context.Context, id string) (*Member, error)

	/*
		FindByEmail returns the member with the given email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *Member: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*Member, error)

	/*
		Create persists a brand-new member account to the storage.

		Parameters:
		  - context: context.Context
		  - member: *Member

		Returns:
		  - error: Persistence failures, including unique-email conflicts
	*/
	Create(context context.Context, member *Member) error

	/*
		UpdateWhoAmI replaces the member's free-text introduction.

		Parameters:
		  - context: context.Context
		  - memberID: string
		  - whoAmI: string

		Returns:
		  - error: Persistence failures
	*/
	UpdateWhoAmI(context context.Context, memberID, whoAmI string) error

	/*
		UpdateResume records a newly stored resume for the member.

		Parameters:
		  - context: context.Context
		  - memberID: string
		  - resumeKey: string (server-generated blob key)
		  - fileName: string (original client filename, metadata only)

		Returns:
		  - error: Persistence failures
	*/
	UpdateResume(context context.Context, memberID, resumeKey, fileName string) error

	/*
		UpdatePassword replaces the member's password hash and stamps the
		time it was set.

		Parameters:
		  - context: context.Context
		  - memberID: string
		  - newHash: string
		  - setAt: time.Time

		Returns:
		  - error: Persistence failures
	*/
	UpdatePassword(context context.Context, memberID, newHash string, setAt time.Time) error

	/*
		RecordLoginFailure atomically increments the member's failed-login
		counter. When the counter reaches threshold the account is locked
		for lockFor and the counter resets.

		Parameters:
		  - context: context.Context
		  - memberID: string
		  - threshold: int
		  - lockFor: time.Duration

		Returns:
		  - *time.Time: The lockout deadline when this failure triggered one, else nil
		  - error: Persistence failures
	*/
	RecordLoginFailure(context context.Context, memberID string, threshold int, lockFor time.Duration) (*time.Time, error)

	/*
		ClearLoginFailures resets the failed-login counter after a
		successful authentication.

		Parameters:
		  - context: context.Context
		  - memberID: string

		Returns:
		  - error: Persistence failures
	*/
	ClearLoginFailures(context context.Context, memberID string) error
}

// # Session Data Access

// SessionRepository defines the data access contract for device sessions.
type SessionRepository interface {

	/*
		EvictActive revokes every unrevoked session for the member. The
		member row is locked for the duration so concurrent logins
		serialize against each other.

		Parameters:
		  - context: context.Context
		  - memberID: string
		  - at: time.Time (liveness is judged at this instant)

		Returns:
		  - []Session: The evicted sessions that were still live at `at`
		  - error: Persistence failures
	*/
	EvictActive(context context.Context, memberID string, at time.Time) ([]Session, error)

	/*
		Create installs a new session. The member row is locked and the
		insert fails with a conflict when another live session exists, so
		two logins racing past the eviction gate cannot both succeed.

		Parameters:
		  - context: context.Context
		  - session: *Session

		Returns:
		  - error: Conflict when a live session exists, or persistence failures
	*/
	Create(context context.Context, session *Session) error

	/*
		FindByTokenHash returns the session matching the given token digest,
		revoked or not. Liveness is judged by the caller.

		Parameters:
		  - context: context.Context
		  - tokenHash: string

		Returns:
		  - *Session: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByTokenHash(context context.Context, tokenHash string) (*Session, error)

	/*
		Touch slides the session's idle window forward.

		Parameters:
		  - context: context.Context
		  - sessionID: string
		  - seenAt: time.Time

		Returns:
		  - error: Persistence failures
	*/
	Touch(context context.Context, sessionID string, seenAt time.Time) error

	/*
		RevokeAllForMember terminates every live session for the member,
		optionally sparing one. Password changes pass the caller's own
		session ID; resets pass an empty string to clear every device.

		Parameters:
		  - context: context.Context
		  - memberID: string
		  - exceptSessionID: string (empty to revoke all)
		  - at: time.Time

		Returns:
		  - error: Persistence failures
	*/
	RevokeAllForMember(context context.Context, memberID, exceptSessionID string, at time.Time) error

	/*
		Revoke terminates the session at the given instant.

		Parameters:
		  - context: context.Context
		  - sessionID: string
		  - at: time.Time

		Returns:
		  - error: Persistence failures
	*/
	Revoke(context context.Context, sessionID string, at time.Time) error
}

// # Password History Data Access

// PasswordHistoryRepository defines the data access contract for retired
// password hashes.
type PasswordHistoryRepository interface {

	/*
		RecentHashes returns up to limit retired hashes for the member,
		newest first.

		Parameters:
		  - context: context.Context
		  - memberID: string
		  - limit: int

		Returns:
		  - []string: Retired bcrypt hashes
		  - error: Database retrieval failures
	*/
	RecentHashes(context context.Context, memberID string, limit int) ([]string, error)

	/*
		Append records a retired hash and prunes entries beyond the
		configured history depth.

		Parameters:
		  - context: context.Context
		  - memberID: string
		  - hash: string
		  - retiredAt: time.Time

		Returns:
		  - error: Persistence failures
	*/
	Append(context context.Context, memberID, hash string, retiredAt time.Time) error
}

// # One-Time Code Data Access

// RedeemResult describes the outcome of a one-time code redemption attempt.
type RedeemResult int

const (
	// RedeemOK means the code matched and has been consumed.
	RedeemOK RedeemResult = iota
	// RedeemNone means no challenge is outstanding for the member.
	RedeemNone
	// RedeemExpired means the challenge existed but its window has passed.
	RedeemExpired
	// RedeemMismatch means the submitted code was wrong. The challenge
	// remains outstanding.
	RedeemMismatch
)

// OtpRepository defines the data access contract for pending login codes.
type OtpRepository interface {

	/*
		Issue stores a fresh challenge for the member, replacing any
		outstanding one.

		Parameters:
		  - context: context.Context
		  - memberID: string
		  - code: string
		  - expiresAt: time.Time

		Returns:
		  - error: Storage failures
	*/
	Issue(context context.Context, memberID, code string, expiresAt time.Time) error

	/*
		Redeem atomically checks the submitted code against the outstanding
		challenge. A matching code is consumed in the same operation so it
		can never be redeemed twice.

		Parameters:
		  - context: context.Context
		  - memberID: string
		  - code: string

		Returns:
		  - RedeemResult: Outcome classification
		  - error: Storage failures
	*/
	Redeem(context context.Context, memberID, code string) (RedeemResult, error)
}

// # Reset Token Data Access

// ResetTokenRepository defines the data access contract for password reset
// tokens.
type ResetTokenRepository interface {

	/*
		Store saves a reset token digest mapped to the member, with expiry.

		Parameters:
		  - context: context.Context
		  - tokenHash: string
		  - memberID: string
		  - expiresAt: time.Time

		Returns:
		  - error: Storage failures
	*/
	Store(context context.Context, tokenHash, memberID string, expiresAt time.Time) error

	/*
		Redeem consumes the token digest in a single atomic operation and
		returns the member it was issued for.

		Parameters:
		  - context: context.Context
		  - tokenHash: string

		Returns:
		  - string: Member ID, empty when the token is unknown or expired
		  - error: Storage failures
	*/
	Redeem(context context.Context, tokenHash string) (string, error)
}
