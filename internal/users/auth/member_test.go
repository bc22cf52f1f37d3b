// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPasswordIssues(t *testing.T) {
	testCases := []struct {
		name       string
		password   string
		wantIssues int
	}{
		{name: "Valid_AllClasses", password: "Str0ngPass!word?", wantIssues: 0},
		{name: "Valid_ExactMinimumLength", password: "Aa1@aaaaaaaa", wantIssues: 0},
		{name: "TooShort", password: "Aa1@aaaa", wantIssues: 1},
		{name: "MissingUppercase", password: "aa1@aaaaaaaaa", wantIssues: 1},
		{name: "MissingLowercase", password: "AA1@AAAAAAAAA", wantIssues: 1},
		{name: "MissingDigit", password: "Aa@aaaaaaaaaa", wantIssues: 1},
		{name: "MissingSpecial", password: "Aa1aaaaaaaaaa", wantIssues: 1},
		{name: "WrongSpecialCharacter", password: "Aa1#aaaaaaaaa", wantIssues: 1},
		{name: "Empty_AllRulesFail", password: "", wantIssues: 5},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			issues := PasswordIssues(testCase.password)
			assert.Len(t, issues, testCase.wantIssues)
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "jane@example.com", NormalizeEmail("Jane@Example.com"))
	assert.Equal(t, "jane@example.com", NormalizeEmail("  JANE@EXAMPLE.COM "))
	assert.Equal(t, "jane@example.com", NormalizeEmail("jane@example.com"))
}

func TestValidNRIC(t *testing.T) {
	valid := []string{"S1234567A", "T0000000Z", "F7654321B", "G9999999X"}
	for _, value := range valid {
		assert.True(t, ValidNRIC(value), "expected %q to be valid", value)
	}

	invalid := []string{"", "A1234567B", "S123456A", "S12345678A", "s1234567a", "S1234567a", "S1234 67A"}
	for _, value := range invalid {
		assert.False(t, ValidNRIC(value), "expected %q to be invalid", value)
	}
}

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("Mary"))
	assert.True(t, ValidName("Mary Jane"))
	assert.True(t, ValidName("De La Cruz"))

	assert.False(t, ValidName(""))
	assert.False(t, ValidName(" Mary"))
	assert.False(t, ValidName("Mary "))
	assert.False(t, ValidName("Mary  Jane"))
	assert.False(t, ValidName("O'Brien"))
	assert.False(t, ValidName("Anne-Marie"))
	assert.False(t, ValidName("<script>"))
}

func TestAge(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name        string
		dateOfBirth time.Time
		want        int
	}{
		{name: "BirthdayPassedThisYear", dateOfBirth: time.Date(2008, 6, 14, 0, 0, 0, 0, time.UTC), want: 18},
		{name: "BirthdayToday", dateOfBirth: time.Date(2008, 6, 15, 0, 0, 0, 0, time.UTC), want: 18},
		{name: "BirthdayTomorrow", dateOfBirth: time.Date(2008, 6, 16, 0, 0, 0, 0, time.UTC), want: 17},
		{name: "Adult", dateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), want: 36},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.want, Age(testCase.dateOfBirth, now))
		})
	}
}

func TestSession_IsLive(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	revoked := now.Add(-time.Minute)

	testCases := []struct {
		name    string
		session Session
		want    bool
	}{
		{
			name:    "Fresh",
			session: Session{LastSeenAt: now.Add(-time.Minute)},
			want:    true,
		},
		{
			name:    "JustInsideIdleWindow",
			session: Session{LastSeenAt: now.Add(-SessionIdleTimeout + time.Second)},
			want:    true,
		},
		{
			name:    "ExactlyAtIdleWindow",
			session: Session{LastSeenAt: now.Add(-SessionIdleTimeout)},
			want:    true,
		},
		{
			name:    "JustPastIdleWindow",
			session: Session{LastSeenAt: now.Add(-SessionIdleTimeout - time.Second)},
			want:    false,
		},
		{
			name:    "Revoked",
			session: Session{LastSeenAt: now, RevokedAt: &revoked},
			want:    false,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.want, testCase.session.IsLive(now))
		})
	}
}

func TestMember_PasswordAges(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	fresh := Member{PasswordSetAt: now.Add(-10 * time.Minute)}
	assert.True(t, fresh.PasswordTooYoung(now))
	assert.False(t, fresh.PasswordExpired(now))

	seasoned := Member{PasswordSetAt: now.Add(-time.Hour)}
	assert.False(t, seasoned.PasswordTooYoung(now))
	assert.False(t, seasoned.PasswordExpired(now))

	stale := Member{PasswordSetAt: now.Add(-MaxPasswordAge - time.Hour)}
	assert.False(t, stale.PasswordTooYoung(now))
	assert.True(t, stale.PasswordExpired(now))
}

func TestValidResumeFileName(t *testing.T) {
	assert.True(t, ValidResumeFileName("resume.pdf"))
	assert.True(t, ValidResumeFileName("Resume.DOCX"))
	assert.False(t, ValidResumeFileName("resume.doc"))
	assert.False(t, ValidResumeFileName("resume.pdf.exe"))
	assert.False(t, ValidResumeFileName("resume"))
}

func TestMember_IsLockedOut(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	later := now.Add(time.Minute)
	earlier := now.Add(-time.Minute)

	assert.True(t, (&Member{LockedUntil: &later}).IsLockedOut(now))
	assert.False(t, (&Member{LockedUntil: &earlier}).IsLockedOut(now))
	assert.False(t, (&Member{}).IsLockedOut(now))
}
