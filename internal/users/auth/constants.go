// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

package auth

import "time"

// # Password Policy

const (
	// MinPasswordLength is the minimum accepted password length.
	MinPasswordLength = 12

	// MinPasswordAge blocks voluntary password changes until the current
	// password has been in place this long. Resets via emailed link are
	// exempt.
	MinPasswordAge = 30 * time.Minute

	// MaxPasswordAge forces a reset when the password is older than this.
	MaxPasswordAge = 90 * 24 * time.Hour

	// PasswordHistoryDepth is how many retired hashes are kept for the
	// reuse check. The current hash is always checked in addition.
	PasswordHistoryDepth = 2
)

// # Lockout Policy

const (
	// LockoutThreshold is the number of consecutive failed logins that
	// triggers a lockout.
	LockoutThreshold = 3

	// LockoutDuration is how long the account stays locked. Recovery is
	// automatic once the window passes.
	LockoutDuration = 5 * time.Minute
)

// # Session Policy

const (
	// SessionIdleTimeout expires a session that has been inactive this long.
	SessionIdleTimeout = 20 * time.Minute

	// SessionTokenLength is the byte length of the random session token.
	SessionTokenLength = 32
)

// # Two-Step Login

const (
	// OtpTTL is how long an emailed one-time code stays redeemable.
	OtpTTL = 5 * time.Minute

	// OtpMin and OtpMax bound the six-digit code range, inclusive.
	OtpMin = 100000
	OtpMax = 999999

	// LoginTicketTTL is the lifetime of the signed pending-login ticket that
	// bridges the password step and the code step. It matches the code's own
	// lifetime so neither half outlives the other.
	LoginTicketTTL = OtpTTL
)

// # Password Reset

const (
	// ResetTokenTTL is the duration a password reset link remains valid.
	ResetTokenTTL = 1 * time.Hour

	// ResetTokenLength is the byte length of the random reset token.
	ResetTokenLength = 32
)

// # Profile Constraints

const (
	// MinimumAgeYears is the youngest a member may be at registration.
	MinimumAgeYears = 18

	// WhoAmIMinLength and WhoAmIMaxLength bound the free-text introduction.
	WhoAmIMinLength = 10
	WhoAmIMaxLength = 500

	// ResumeMaxBytes caps resume uploads at 5 MiB.
	ResumeMaxBytes = 5 << 20
)

// # Client-Facing Messages

const (
	// MsgInvalidCredentials is the uniform response for a wrong email or a
	// wrong password. Account existence is never disclosed.
	MsgInvalidCredentials = "Invalid email or password."

	// MsgAccountLocked is returned while a lockout window is active.
	MsgAccountLocked = "Account is locked due to multiple failed attempts. Please try again later."

	// MsgSessionDisplaced is returned to a device whose session was revoked
	// by a newer login elsewhere.
	MsgSessionDisplaced = "You have been logged out from another device."

	// MsgPasswordExpired is returned at login when the password has aged out.
	MsgPasswordExpired = "Your password has expired and must be reset before signing in."

	// MsgResetRequested is returned for every reset request, whether or not
	// the email maps to an account.
	MsgResetRequested = "If that email is registered, a reset link has been sent."
)
