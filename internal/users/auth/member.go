// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

package auth

import (
	"regexp"
	"strings"
	"time"
)

// # Domain Entities

// Member represents a registered job seeker of the Ace Job Agency portal.
//
// NRIC holds ciphertext at rest; it is decrypted only when rendering the
// member's own profile.
type Member struct {
	ID             string     `json:"id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Gender         string     `json:"gender"`
	NRIC           string     `json:"-"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	DateOfBirth    time.Time  `json:"date_of_birth"`
	ResumeKey      string     `json:"-"`
	ResumeFileName string     `json:"resume_file_name,omitempty"`
	WhoAmI         string     `json:"who_am_i"`
	FailedLogins   int        `json:"-"`
	LockedUntil    *time.Time `json:"-"`
	PasswordSetAt  time.Time  `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsLockedOut reports whether the account is inside a lockout window at the
// given instant.
func (member *Member) IsLockedOut(now time.Time) bool {
	return member.LockedUntil != nil && now.Before(*member.LockedUntil)
}

// PasswordExpired reports whether the member's password is older than the
// maximum allowed age at the given instant.
func (member *Member) PasswordExpired(now time.Time) bool {
	return now.Sub(member.PasswordSetAt) > MaxPasswordAge
}

// PasswordTooYoung reports whether the password was set more recently than
// the minimum age, which blocks voluntary changes.
func (member *Member) PasswordTooYoung(now time.Time) bool {
	return now.Sub(member.PasswordSetAt) < MinPasswordAge
}

// Session represents one authenticated device session.
//
// At most one live session exists per member. A login attempt while another
// device holds a live session evicts that session and is itself rejected;
// the member then signs in again into the freed slot.
type Session struct {
	ID         string     `json:"id"`
	MemberID   string     `json:"member_id"`
	TokenHash  string     `json:"-"`
	IPAddress  string     `json:"ip_address"`
	UserAgent  string     `json:"user_agent"`
	CreatedAt  time.Time  `json:"created_at"`
	LastSeenAt time.Time  `json:"last_seen_at"`
	RevokedAt  *time.Time `json:"-"`
}

// IsLive reports whether the session is unrevoked and inside its idle window
// at the given instant.
func (session *Session) IsLive(now time.Time) bool {
	if session.RevokedAt != nil {
		return false
	}
	return now.Sub(session.LastSeenAt) <= SessionIdleTimeout
}

// # Field Identifiers

// Global field names for validation and identity mapping in the auth domain.
const (
	FieldFirstName       = "first_name"
	FieldLastName        = "last_name"
	FieldGender          = "gender"
	FieldNRIC            = "nric"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirm_password"
	FieldDateOfBirth     = "date_of_birth"
	FieldWhoAmI          = "who_am_i"
	FieldCaptchaToken    = "captcha_token"
	FieldOtp             = "otp"
	FieldLoginTicket     = "login_ticket"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
	FieldResetToken      = "reset_token"
	FieldResume          = "resume"
)

// # Genders

const (
	GenderMale   = "Male"
	GenderFemale = "Female"
)

// # Validation Rules

var (
	// nricPattern matches Singapore NRIC/FIN numbers.
	nricPattern = regexp.MustCompile(`^[STFG]\d{7}[A-Z]$`)

	// namePattern allows letters and single spaces between words.
	namePattern = regexp.MustCompile(`^[A-Za-z]+(?: [A-Za-z]+)*$`)

	passwordLower   = regexp.MustCompile(`[a-z]`)
	passwordUpper   = regexp.MustCompile(`[A-Z]`)
	passwordDigit   = regexp.MustCompile(`[0-9]`)
	passwordSpecial = regexp.MustCompile(`[@$!%*?&]`)
)

// NormalizeEmail canonicalizes an email address for storage and lookup.
// Email addresses are treated as case-insensitive throughout.
func NormalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// ValidNRIC reports whether value is a structurally valid NRIC/FIN.
func ValidNRIC(value string) bool {
	return nricPattern.MatchString(value)
}

// ValidName reports whether value is an acceptable first or last name.
func ValidName(value string) bool {
	return namePattern.MatchString(value)
}

// ValidGender reports whether value is one of the accepted gender options.
func ValidGender(value string) bool {
	return value == GenderMale || value == GenderFemale
}

// PasswordIssues returns a human-readable message per complexity rule the
// candidate password fails. An empty slice means the password is acceptable.
func PasswordIssues(password string) []string {
	var issues []string

	if len(password) < MinPasswordLength {
		issues = append(issues, "Password must be at least 12 characters long.")
	}
	if !passwordLower.MatchString(password) {
		issues = append(issues, "Password must contain a lowercase letter.")
	}
	if !passwordUpper.MatchString(password) {
		issues = append(issues, "Password must contain an uppercase letter.")
	}
	if !passwordDigit.MatchString(password) {
		issues = append(issues, "Password must contain a digit.")
	}
	if !passwordSpecial.MatchString(password) {
		issues = append(issues, "Password must contain a special character (@$!%*?&).")
	}

	return issues
}

// ValidResumeFileName reports whether the uploaded resume has an accepted
// extension. Comparison is case-insensitive.
func ValidResumeFileName(fileName string) bool {
	lowered := strings.ToLower(fileName)
	return strings.HasSuffix(lowered, ".pdf") || strings.HasSuffix(lowered, ".docx")
}

// Age returns the member's completed years at the given instant.
func Age(dateOfBirth, now time.Time) int {
	years := now.Year() - dateOfBirth.Year()
	anniversary := dateOfBirth.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}
