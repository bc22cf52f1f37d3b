// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acejobs/portal/internal/platform/apperr"
	"github.com/acejobs/portal/internal/platform/sec"
	"github.com/acejobs/portal/internal/users/audit"
)

// # In-Memory Fakes

type fakeMembers struct {
	byID map[string]*Member
	now  time.Time
}

func newFakeMembers(now time.Time) *fakeMembers {
	return &fakeMembers{byID: make(map[string]*Member), now: now}
}

func (f *fakeMembers) FindByID(_ context.Context, id string) (*Member, error) {
	if member, ok := f.byID[id]; ok {
		clone := *member
		return &clone, nil
	}
	return nil, apperr.NotFound("Member")
}

func (f *fakeMembers) FindByEmail(_ context.Context, email string) (*Member, error) {
	for _, member := range f.byID {
		if member.Email == email {
			clone := *member
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Member")
}

func (f *fakeMembers) Create(_ context.Context, member *Member) error {
	for _, existing := range f.byID {
		if existing.Email == member.Email {
			return apperr.Conflict("Resource already exists")
		}
	}
	clone := *member
	f.byID[member.ID] = &clone
	return nil
}

func (f *fakeMembers) UpdateWhoAmI(_ context.Context, memberID, whoAmI string) error {
	member, ok := f.byID[memberID]
	if !ok {
		return apperr.NotFound("Member")
	}
	member.WhoAmI = whoAmI
	return nil
}

func (f *fakeMembers) UpdateResume(_ context.Context, memberID, resumeKey, fileName string) error {
	member, ok := f.byID[memberID]
	if !ok {
		return apperr.NotFound("Member")
	}
	member.ResumeKey = resumeKey
	member.ResumeFileName = fileName
	return nil
}

func (f *fakeMembers) UpdatePassword(_ context.Context, memberID, newHash string, setAt time.Time) error {
	member, ok := f.byID[memberID]
	if !ok {
		return apperr.NotFound("Member")
	}
	member.PasswordHash = newHash
	member.PasswordSetAt = setAt
	return nil
}

func (f *fakeMembers) RecordLoginFailure(_ context.Context, memberID string, threshold int, lockFor time.Duration) (*time.Time, error) {
	member, ok := f.byID[memberID]
	if !ok {
		return nil, apperr.NotFound("Member")
	}
	member.FailedLogins++
	if member.FailedLogins >= threshold {
		deadline := f.now.Add(lockFor)
		member.LockedUntil = &deadline
		member.FailedLogins = 0
		return &deadline, nil
	}
	return nil, nil
}

func (f *fakeMembers) ClearLoginFailures(_ context.Context, memberID string) error {
	member, ok := f.byID[memberID]
	if !ok {
		return apperr.NotFound("Member")
	}
	member.FailedLogins = 0
	member.LockedUntil = nil
	return nil
}

type fakeSessions struct {
	byID map[string]*Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byID: make(map[string]*Session)}
}

func (f *fakeSessions) EvictActive(_ context.Context, memberID string, at time.Time) ([]Session, error) {
	var evicted []Session
	for _, existing := range f.byID {
		if existing.MemberID == memberID && existing.RevokedAt == nil {
			if existing.IsLive(at) {
				evicted = append(evicted, *existing)
			}
			revokedAt := at
			existing.RevokedAt = &revokedAt
		}
	}
	return evicted, nil
}

func (f *fakeSessions) Create(_ context.Context, session *Session) error {
	for _, existing := range f.byID {
		if existing.MemberID == session.MemberID && existing.RevokedAt == nil {
			if existing.IsLive(session.CreatedAt) {
				return apperr.Conflict(MsgSessionDisplaced).WithCode("SESSION_COLLISION")
			}
			revokedAt := session.CreatedAt
			existing.RevokedAt = &revokedAt
		}
	}
	clone := *session
	f.byID[session.ID] = &clone
	return nil
}

func (f *fakeSessions) FindByTokenHash(_ context.Context, tokenHash string) (*Session, error) {
	for _, session := range f.byID {
		if session.TokenHash == tokenHash {
			clone := *session
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Session")
}

func (f *fakeSessions) Touch(_ context.Context, sessionID string, seenAt time.Time) error {
	if session, ok := f.byID[sessionID]; ok && session.RevokedAt == nil {
		session.LastSeenAt = seenAt
	}
	return nil
}

func (f *fakeSessions) RevokeAllForMember(_ context.Context, memberID, exceptSessionID string, at time.Time) error {
	for _, session := range f.byID {
		if session.MemberID == memberID && session.RevokedAt == nil && session.ID != exceptSessionID {
			revokedAt := at
			session.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (f *fakeSessions) Revoke(_ context.Context, sessionID string, at time.Time) error {
	if session, ok := f.byID[sessionID]; ok && session.RevokedAt == nil {
		revokedAt := at
		session.RevokedAt = &revokedAt
	}
	return nil
}

func (f *fakeSessions) liveCount(memberID string) int {
	count := 0
	for _, session := range f.byID {
		if session.MemberID == memberID && session.RevokedAt == nil {
			count++
		}
	}
	return count
}

type historyEntry struct {
	hash      string
	retiredAt time.Time
}

type fakeHistory struct {
	byMember map[string][]historyEntry
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{byMember: make(map[string][]historyEntry)}
}

func (f *fakeHistory) RecentHashes(_ context.Context, memberID string, limit int) ([]string, error) {
	entries := f.byMember[memberID]
	hashes := make([]string, 0, limit)
	for i := len(entries) - 1; i >= 0 && len(hashes) < limit; i-- {
		hashes = append(hashes, entries[i].hash)
	}
	return hashes, nil
}

func (f *fakeHistory) Append(_ context.Context, memberID, hash string, retiredAt time.Time) error {
	f.byMember[memberID] = append(f.byMember[memberID], historyEntry{hash: hash, retiredAt: retiredAt})
	return nil
}

type otpEntry struct {
	code      string
	expiresAt time.Time
}

type fakeOtps struct {
	byMember map[string]otpEntry
	now      func() time.Time
}

func newFakeOtps(now func() time.Time) *fakeOtps {
	return &fakeOtps{byMember: make(map[string]otpEntry), now: now}
}

func (f *fakeOtps) Issue(_ context.Context, memberID, code string, expiresAt time.Time) error {
	f.byMember[memberID] = otpEntry{code: code, expiresAt: expiresAt}
	return nil
}

func (f *fakeOtps) Redeem(_ context.Context, memberID, code string) (RedeemResult, error) {
	entry, ok := f.byMember[memberID]
	if !ok {
		return RedeemNone, nil
	}
	if f.now().After(entry.expiresAt) {
		delete(f.byMember, memberID)
		return RedeemExpired, nil
	}
	if entry.code != code {
		return RedeemMismatch, nil
	}
	delete(f.byMember, memberID)
	return RedeemOK, nil
}

type resetEntry struct {
	memberID  string
	expiresAt time.Time
}

type fakeResets struct {
	byHash map[string]resetEntry
	now    func() time.Time
}

func newFakeResets(now func() time.Time) *fakeResets {
	return &fakeResets{byHash: make(map[string]resetEntry), now: now}
}

func (f *fakeResets) Store(_ context.Context, tokenHash, memberID string, expiresAt time.Time) error {
	f.byHash[tokenHash] = resetEntry{memberID: memberID, expiresAt: expiresAt}
	return nil
}

func (f *fakeResets) Redeem(_ context.Context, tokenHash string) (string, error) {
	entry, ok := f.byHash[tokenHash]
	if !ok {
		return "", nil
	}
	delete(f.byHash, tokenHash)
	if f.now().After(entry.expiresAt) {
		return "", nil
	}
	return entry.memberID, nil
}

type fakeTickets struct{}

func (fakeTickets) IssueLoginTicket(memberID, email string, _ time.Duration) (string, error) {
	return "tkt|" + memberID + "|" + email, nil
}

func (fakeTickets) VerifyLoginTicket(ticket string) (*sec.TicketClaims, error) {
	parts := strings.Split(ticket, "|")
	if len(parts) != 3 || parts[0] != "tkt" {
		return nil, errors.New("bad ticket")
	}
	return &sec.TicketClaims{MemberID: parts[1], Email: parts[2]}, nil
}

type fakeCaptcha struct {
	fail bool
}

func (f *fakeCaptcha) Verify(_ context.Context, _ string) error {
	if f.fail {
		return apperr.Forbidden("CAPTCHA verification failed.").WithCode("CAPTCHA_FAILED")
	}
	return nil
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeMailer struct {
	sent []sentMail
	fail bool
}

func (f *fakeMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	if f.fail {
		return errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

type fakeCipher struct{}

func (fakeCipher) Encrypt(plaintext string) (string, error) { return "enc(" + plaintext + ")", nil }

func (fakeCipher) Decrypt(ciphertext string) (string, error) {
	return strings.TrimSuffix(strings.TrimPrefix(ciphertext, "enc("), ")"), nil
}

type fakeActivity struct {
	actions []string
}

func (f *fakeActivity) Record(_ string, action, _, _ string) {
	f.actions = append(f.actions, action)
}

// # Test Harness

type harness struct {
	service  *Service
	members  *fakeMembers
	sessions *fakeSessions
	history  *fakeHistory
	otps     *fakeOtps
	resets   *fakeResets
	captcha  *fakeCaptcha
	mailer   *fakeMailer
	activity *fakeActivity
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h := &harness{now: now}

	clock := func() time.Time { return h.now }

	h.members = newFakeMembers(now)
	h.sessions = newFakeSessions()
	h.history = newFakeHistory()
	h.otps = newFakeOtps(clock)
	h.resets = newFakeResets(clock)
	h.captcha = &fakeCaptcha{}
	h.mailer = &fakeMailer{}
	h.activity = &fakeActivity{}

	h.service = NewService(
		h.members,
		h.sessions,
		h.history,
		h.otps,
		h.resets,
		fakeTickets{},
		h.captcha,
		h.mailer,
		fakeCipher{},
		h.activity,
		"https://portal.test/reset-password",
	)
	h.service.clock = clock
	return h
}

// advance moves the harness clock forward. The fakes share the clock.
func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
	h.members.now = h.now
}

const testPassword = "Valid@Pass123"

// seedMember registers a member through the service so the stored state is
// exactly what production writes.
func (h *harness) seedMember(t *testing.T, email string) *Member {
	t.Helper()

	member, err := h.service.Register(context.Background(), RegisterInput{
		FirstName:   "Jane",
		LastName:    "Doe",
		Gender:      GenderFemale,
		NRIC:        "S1234567A",
		Email:       email,
		Password:    testPassword,
		DateOfBirth: time.Date(1995, 5, 20, 0, 0, 0, 0, time.UTC),
		WhoAmI:      "Experienced software tester.",
	}, RequestMeta{IPAddress: "10.0.0.1", UserAgent: "seed"})
	require.NoError(t, err)
	return member
}

// completeLogin drives both login steps and returns the session grant.
func (h *harness) completeLogin(t *testing.T, email string) *SessionGrant {
	t.Helper()

	challenge, err := h.service.Login(context.Background(), LoginInput{
		Email:        email,
		Password:     testPassword,
		CaptchaToken: "human",
	}, RequestMeta{IPAddress: "10.0.0.2", UserAgent: "device"})
	require.NoError(t, err)

	claims, err := fakeTickets{}.VerifyLoginTicket(challenge.LoginTicket)
	require.NoError(t, err)
	code := h.otps.byMember[claims.MemberID].code

	grant, err := h.service.VerifyOtp(context.Background(), VerifyOtpInput{
		LoginTicket: challenge.LoginTicket,
		Code:        code,
	}, RequestMeta{IPAddress: "10.0.0.2", UserAgent: "device"})
	require.NoError(t, err)
	return grant
}

// # Registration

func TestService_Register(t *testing.T) {
	h := newHarness(t)

	member := h.seedMember(t, "jane@example.com")

	assert.NotEmpty(t, member.ID)
	assert.Equal(t, "enc(S1234567A)", member.NRIC)
	assert.NotEqual(t, testPassword, member.PasswordHash)
	assert.True(t, sec.CheckPasswordHash(testPassword, member.PasswordHash))
	assert.Contains(t, h.activity.actions, audit.ActionAccountCreated)
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	h := newHarness(t)
	h.seedMember(t, "jane@example.com")

	_, err := h.service.Register(context.Background(), RegisterInput{
		FirstName:   "Janet",
		LastName:    "Doe",
		Gender:      GenderFemale,
		NRIC:        "S7654321B",
		Email:       "jane@example.com",
		Password:    testPassword,
		DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		WhoAmI:      "Another tester profile.",
	}, RequestMeta{})

	assert.True(t, apperr.IsCode(err, apperr.CodeConflict))
}

func TestService_EmailIsCaseInsensitive(t *testing.T) {
	h := newHarness(t)
	member := h.seedMember(t, "Jane@Example.com")

	// The stored address is canonical lowercase.
	assert.Equal(t, "jane@example.com", h.members.byID[member.ID].Email)

	// A case-variant registration is the same address.
	_, err := h.service.Register(context.Background(), RegisterInput{
		FirstName:   "Janet",
		LastName:    "Doe",
		Gender:      GenderFemale,
		NRIC:        "S7654321B",
		Email:       "JANE@example.COM",
		Password:    testPassword,
		DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		WhoAmI:      "Another tester profile.",
	}, RequestMeta{})
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict))

	// A case-variant login reaches the same account.
	grant := h.completeLogin(t, "jane@EXAMPLE.com")
	assert.Equal(t, member.ID, grant.Member.ID)
}

func TestService_Register_Underage(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.Register(context.Background(), RegisterInput{
		FirstName:   "Kid",
		LastName:    "Tester",
		Gender:      GenderMale,
		NRIC:        "T1234567C",
		Email:       "kid@example.com",
		Password:    testPassword,
		DateOfBirth: h.now.AddDate(-17, 0, 0),
		WhoAmI:      "Too young to register.",
	}, RequestMeta{})

	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
}

func TestService_Register_WeakPassword(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.Register(context.Background(), RegisterInput{
		FirstName:   "Jane",
		LastName:    "Doe",
		Gender:      GenderFemale,
		NRIC:        "S1234567A",
		Email:       "weak@example.com",
		Password:    "short",
		DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		WhoAmI:      "Profile with weak password.",
	}, RequestMeta{})

	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, apperr.CodeValidation, appError.Code)
	assert.NotEmpty(t, appError.Details)
}

// # Login Step One

func TestService_Login_HappyPath(t *testing.T) {
	h := newHarness(t)
	member := h.seedMember(t, "jane@example.com")

	challenge, err := h.service.Login(context.Background(), LoginInput{
		Email:        "jane@example.com",
		Password:     testPassword,
		CaptchaToken: "human",
	}, RequestMeta{})
	require.NoError(t, err)

	assert.NotEmpty(t, challenge.LoginTicket)
	assert.Equal(t, int(LoginTicketTTL.Seconds()), challenge.ExpiresIn)

	// A code was issued and emailed.
	entry, outstanding := h.otps.byMember[member.ID]
	require.True(t, outstanding)
	assert.Len(t, entry.code, 6)
	require.Len(t, h.mailer.sent, 1)
	assert.Equal(t, "jane@example.com", h.mailer.sent[0].To)
	assert.Contains(t, h.mailer.sent[0].Body, entry.code)

	// No session yet: step one alone never authenticates.
	assert.Zero(t, h.sessions.liveCount(member.ID))
}

func TestService_Login_MailOutageDoesNotBlockSignIn(t *testing.T) {
	h := newHarness(t)
	member := h.seedMember(t, "jane@example.com")
	h.mailer.fail = true

	challenge, err := h.service.Login(context.Background(), LoginInput{
		Email: "jane@example.com", Password: testPassword, CaptchaToken: "human",
	}, RequestMeta{})
	require.NoError(t, err)

	// The code was issued even though delivery failed.
	entry, outstanding := h.otps.byMember[member.ID]
	require.True(t, outstanding)

	grant, err := h.service.VerifyOtp(context.Background(), VerifyOtpInput{
		LoginTicket: challenge.LoginTicket, Code: entry.code,
	}, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, member.ID, grant.Member.ID)
}

func TestService_Login_CaptchaFailClosed(t *testing.T) {
	h := newHarness(t)
	h.seedMember(t, "jane@example.com")
	h.captcha.fail = true

	_, err := h.service.Login(context.Background(), LoginInput{
		Email:        "jane@example.com",
		Password:     testPassword,
		CaptchaToken: "bot",
	}, RequestMeta{})

	assert.True(t, apperr.IsCode(err, "CAPTCHA_FAILED"))
	assert.Empty(t, h.mailer.sent)
}

func TestService_Login_UniformMessageForUnknownAndWrong(t *testing.T) {
	h := newHarness(t)
	h.seedMember(t, "jane@example.com")

	_, unknownErr := h.service.Login(context.Background(), LoginInput{
		Email: "nobody@example.com", Password: testPassword, CaptchaToken: "human",
	}, RequestMeta{})

	_, wrongErr := h.service.Login(context.Background(), LoginInput{
		Email: "jane@example.com", Password: "Wrong@Pass123", CaptchaToken: "human",
	}, RequestMeta{})

	require.Error(t, unknownErr)
	require.Error(t, wrongErr)
	assert.Equal(t, MsgInvalidCredentials, apperr.As(unknownErr).Message)
	assert.Equal(t, MsgInvalidCredentials, apperr.As(wrongErr).Message)
}

func TestService_Login_LockoutAfterThreeFailures(t *testing.T) {
	h := newHarness(t)
	h.seedMember(t, "jane@example.com")

	attempt := func() error {
		_, err := h.service.Login(context.Background(), LoginInput{
			Email: "jane@example.com", Password: "Wrong@Pass123", CaptchaToken: "human",
		}, RequestMeta{})
		return err
	}

	assert.True(t, apperr.IsCode(attempt(), "INVALID_CREDENTIALS"))
	assert.True(t, apperr.IsCode(attempt(), "INVALID_CREDENTIALS"))
	// Third failure trips the lock.
	assert.True(t, apperr.IsCode(attempt(), "ACCOUNT_LOCKED"))

	// Even the correct password is rejected while locked.
	_, err := h.service.Login(context.Background(), LoginInput{
		Email: "jane@example.com", Password: testPassword, CaptchaToken: "human",
	}, RequestMeta{})
	assert.True(t, apperr.IsCode(err, "ACCOUNT_LOCKED"))
	assert.Equal(t, MsgAccountLocked, apperr.As(err).Message)

	// Lock clears by itself after the window.
	h.advance(LockoutDuration + time.Second)
	_, err = h.service.Login(context.Background(), LoginInput{
		Email: "jane@example.com", Password: testPassword, CaptchaToken: "human",
	}, RequestMeta{})
	assert.NoError(t, err)

	assert.Contains(t, h.activity.actions, audit.ActionAccountLocked)
	assert.GreaterOrEqual(t, countOf(h.activity.actions, audit.ActionLoginFailed), 3)
}

func TestService_Login_ExpiredPasswordBlocksSignIn(t *testing.T) {
	h := newHarness(t)
	member := h.seedMember(t, "jane@example.com")
	h.members.byID[member.ID].PasswordSetAt = h.now.Add(-MaxPasswordAge - 24*time.Hour)

	_, err := h.service.Login(context.Background(), LoginInput{
		Email: "jane@example.com", Password: testPassword, CaptchaToken: "human",
	}, RequestMeta{})

	assert.True(t, apperr.IsCode(err, "PASSWORD_EXPIRED"))
}

func TestService_Login_ExpiryRevealedOnlyAfterPasswordProven(t *testing.T) {
	h := newHarness(t)
	member := h.seedMember(t, "jane@example.com")
	h.members.byID[member.ID].PasswordSetAt = h.now.Add(-MaxPasswordAge - 24*time.Hour)

	// A wrong password against an expired account gets the uniform message
	// and still counts toward the lockout threshold.
	_, err := h.service.Login(context.Background(), LoginInput{
		Email: "jane@example.com", Password: "Wrong@Pass123", CaptchaToken: "human",
	}, RequestMeta{})
	assert.True(t, apperr.IsCode(err, "INVALID_CREDENTIALS"))
	assert.Contains(t, h.activity.actions, audit.ActionLoginFailed)
	assert.Equal(t, 1, h.members.byID[member.ID].FailedLogins)
}

func TestService_Login_ReissueSupersedesOldCode(t *testing.T) {
	h := newHarness(t)
	member := h.seedMember(t, "jane@example.com")

	login := func() *LoginChallenge {
		challenge, err := h.service.Login(context.Background(), LoginInput{
			Email: "jane@example.com", Password: testPassword, CaptchaToken: "human",
		}, RequestMeta{})
		require.NoError(t, err)
		return challenge
	}

	first := login()
	firstCode := h.otps.byMember[member.ID].code

	second := login()
	secondCode := h.otps.byMember[member.ID].code

	// The first code is dead if the reissue produced a different one.
	if firstCode != secondCode {
		_, err := h.service.VerifyOtp(context.Background(), VerifyOtpInput{
			LoginTicket: first.LoginTicket, Code: firstCode,
		}, RequestMeta{})
		assert.True(t, apperr.IsCode(err, "OTP_MISMATCH"))
	}

	// The superseding code works.
	grant, err := h.service.VerifyOtp(context.Background(), VerifyOtpInput{
		LoginTicket: second.LoginTicket, Code: secondCode,
	}, RequestMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, grant.SessionToken)
}

// # Login Step Two

func TestService_VerifyOtp_SingleUse(t *testing.T) {
	h := newHarness(t)
	member := h.seedMember(t, "jane@example.com")

	challenge, err := h.service.Login(context.Background(), LoginInput{
		Email: "jane@example.com", Password: testPassword, CaptchaToken: "human",
	}, RequestMeta{})
	require.NoError(t, err)
	code := h.otps.byMember[member.ID].code

	_, err = h.service.VerifyOtp(context.Background(), VerifyOtpInput{
		LoginTicket: challenge.LoginTicket, Code: code,
	}, RequestMeta{})
	require.NoError(t, err)

	// Replaying the consumed code fails.
	_, err = h.service.VerifyOtp(context.Background(), VerifyOtpInput{
		LoginTicket: challenge.LoginTicket, Code: code,
	}, RequestMeta{})
	assert.True(t, apperr.IsCode(err, "OTP_MISSING"))
}

func TestService_VerifyOtp_Expired(t *testing.T) {
	h := newHarness(t)
	member := h.seedMember(t, "jane@example.com")

	challenge, err := h.service.Login(context.Background(), LoginInput{
		Email: "jane@example.com", Password: testPassword, CaptchaToken: "human",
	}, RequestMeta{})
	require.NoError(t, err)
	code := h.otps.byMember[member.ID].code

	h.advance(OtpTTL + time.Second)

	_, err = h.service.VerifyOtp(context.Background(), VerifyOtpInput{
		LoginTicket: challenge.LoginTicket, Code: code,
	}, RequestMeta{})
	assert.True(t, apperr.IsCode(err, "OTP_EXPIRED"))
}

func TestService_VerifyOtp_WrongCodeKeepsChallenge(t *testing.T) {
	h := newHarness(t)
	member := h.seedMember(t, "jane@example.com")

	challenge, err := h.service.Login(context.Background(), LoginInput{
		Email: "jane@example.com", Password: testPassword, CaptchaToken: "human",
	}, RequestMeta{})
	require.NoError(t, err)
	code := h.otps.byMember[member.ID].code

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	_, err = h.service.VerifyOtp(context.Background(), VerifyOtpInput{
		LoginTicket: challenge.LoginTicket, Code: wrong,
	}, RequestMeta{})
	assert.True(t, apperr.IsCode(err, "OTP_MISMATCH"))

	// The real code still works after a mismatch.
	grant, err := h.service.VerifyOtp(context.Background(), VerifyOtpInput{
		LoginTicket: challenge.LoginTicket, Code: code,
	}, RequestMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, grant.SessionToken)
}

func TestService_VerifyOtp_BadTicket(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.VerifyOtp(context.Background(), VerifyOtpInput{
		LoginTicket: "garbage", Code: "123456",
	}, RequestMeta{})
	assert.True(t, apperr.IsCode(err, "TICKET_INVALID"))
}

// # Single-Device Sessions

func TestService_LoginCollision_EvictsAndRejects(t *testing.T) {
	h := newHarness(t)
	member := h.seedMember(t, "jane@example.com")

	firstGrant := h.completeLogin(t, "jane@example.com")

	// A login while the first device holds a live session evicts it and is
	// itself rejected with the distinct message.
	_, err := h.service.Login(context.Background(), LoginInput{
		Email: "jane@example.com", Password: testPassword, CaptchaToken: "human",
	}, RequestMeta{IPAddress: "10.0.0.9", UserAgent: "second-device"})
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, "SESSION_COLLISION"))
	assert.Equal(t, MsgSessionDisplaced, apperr.As(err).Message)
	assert.Zero(t, h.sessions.liveCount(member.ID))
	assert.Contains(t, h.activity.actions, audit.ActionSessionDisplaced)

	// The evicted device gets the same distinct message on its next request.
	_, err = h.service.ResolveSession(context.Background(), firstGrant.SessionToken)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, "SESSION_DISPLACED"))
	assert.Equal(t, MsgSessionDisplaced, apperr.As(err).Message)

	// With the slot freed, the next login goes through to a session.
	secondGrant := h.completeLogin(t, "jane@example.com")
	assert.Equal(t, 1, h.sessions.liveCount(member.ID))

	identity, err := h.service.ResolveSession(context.Background(), secondGrant.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, member.ID, identity.MemberID)
}

func TestService_VerifyOtp_RacingLoginCollides(t *testing.T) {
	h := newHarness(t)
	member := h.seedMember(t, "jane@example.com")

	// Two step-one logins complete before either step two runs; neither saw a
	// live session at the collision gate.
	first, err := h.service.Login(context.Background(), LoginInput{
		Email: "jane@example.com", Password: testPassword, CaptchaToken: "human",
	}, RequestMeta{})
	require.NoError(t, err)
	firstCode := h.otps.byMember[member.ID].code

	second, err := h.service.Login(context.Background(), LoginInput{
		Email: "jane@example.com", Password: testPassword, CaptchaToken: "human",
	}, RequestMeta{})
	require.NoError(t, err)
	secondCode := h.otps.byMember[member.ID].code

	_, err = h.service.VerifyOtp(context.Background(), VerifyOtpInput{
		LoginTicket: second.LoginTicket, Code: secondCode,
	}, RequestMeta{})
	require.NoError(t, err)

	// The slower login cannot end up signed in: its code was superseded, and
	// even a redeemable code would hit the live-session guard at creation.
	_, err = h.service.VerifyOtp(context.Background(), VerifyOtpInput{
		LoginTicket: first.LoginTicket, Code: firstCode,
	}, RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, 1, h.sessions.liveCount(member.ID))
}

func TestService_ResolveSession_IdleWindow(t *testing.T) {
	h := newHarness(t)
	member := h.seedMember(t, "jane@example.com")
	grant := h.completeLogin(t, "jane@example.com")

	// Just inside the window: still valid, and the window slides.
	h.advance(SessionIdleTimeout - time.Second)
	identity, err := h.service.ResolveSession(context.Background(), grant.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, member.ID, identity.MemberID)

	// The previous touch restarted the window, so the same offset works again.
	h.advance(SessionIdleTimeout - time.Second)
	_, err = h.service.ResolveSession(context.Background(), grant.SessionToken)
	require.NoError(t, err)

	// Past the window: expired.
	h.advance(SessionIdleTimeout + time.Second)
	_, err = h.service.ResolveSession(context.Background(), grant.SessionToken)
	assert.True(t, apperr.IsCode(err, "SESSION_EXPIRED"))
}

func TestService_ResolveSession_UnknownToken(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.ResolveSession(context.Background(), "no-such-token")
	assert.True(t, apperr.IsCode(err, "SESSION_INVALID"))
}

func TestService_Logout(t *testing.T) {
	h := newHarness(t)
	member := h.seedMember(t, "jane@example.com")
	grant := h.completeLogin(t, "jane@example.com")

	identity, err := h.service.ResolveSession(context.Background(), grant.SessionToken)
	require.NoError(t, err)

	require.NoError(t, h.service.Logout(context.Background(), identity, RequestMeta{}))
	assert.Zero(t, h.sessions.liveCount(member.ID))
	assert.Contains(t, h.activity.actions, audit.ActionLoggedOut)

	_, err = h.service.ResolveSession(context.Background(), grant.SessionToken)
	assert.Error(t, err)
}

// # Profile

func TestService_GetProfile_DecryptsNRIC(t *testing.T) {
	h := newHarness(t)
	member := h.seedMember(t, "jane@example.com")

	profile, err := h.service.GetProfile(context.Background(), member.ID)
	require.NoError(t, err)
	assert.Equal(t, "S1234567A", profile.NRIC)
}

func TestService_UpdateWhoAmI_Bounds(t *testing.T) {
	h := newHarness(t)
	member := h.seedMember(t, "jane@example.com")

	assert.Error(t, h.service.UpdateWhoAmI(context.Background(), member.ID, "too short"))
	assert.Error(t, h.service.UpdateWhoAmI(context.Background(), member.ID, strings.Repeat("x", WhoAmIMaxLength+1)))
	assert.NoError(t, h.service.UpdateWhoAmI(context.Background(), member.ID, "A perfectly reasonable introduction."))
}

// countOf counts occurrences of value in values.
func countOf(values []string, value string) int {
	count := 0
	for _, candidate := range values {
		if candidate == value {
			count++
		}
	}
	return count
}
