// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acejobs/portal/internal/platform/apperr"
	"github.com/acejobs/portal/internal/platform/sec"
	"github.com/acejobs/portal/internal/users/audit"
)

const newTestPassword = "Fresh@Pass456"

// resetTokenFromMail pulls the raw token out of the reset link in the last
// sent message.
func resetTokenFromMail(t *testing.T, mailer *fakeMailer) string {
	t.Helper()

	require.NotEmpty(t, mailer.sent)
	body := mailer.sent[len(mailer.sent)-1].Body
	marker := "?token="
	start := strings.Index(body, marker)
	require.GreaterOrEqual(t, start, 0)
	rest := body[start+len(marker):]
	end := strings.IndexByte(rest, '"')
	require.Greater(t, end, 0)
	return rest[:end]
}

// # Voluntary Change

func TestService_ChangePassword(t *testing.T) {
	h := newHarness(t)
	h.seedMember(t, "jane@example.com")
	grant := h.completeLogin(t, "jane@example.com")
	identity, err := h.service.ResolveSession(context.Background(), grant.SessionToken)
	require.NoError(t, err)

	h.advance(MinPasswordAge + time.Minute)

	err = h.service.ChangePassword(context.Background(), identity, ChangePasswordInput{
		CurrentPassword: testPassword,
		NewPassword:     newTestPassword,
	}, RequestMeta{})
	require.NoError(t, err)

	stored := h.members.byID[identity.MemberID]
	assert.True(t, sec.CheckPasswordHash(newTestPassword, stored.PasswordHash))
	assert.Contains(t, h.activity.actions, audit.ActionPasswordChanged)

	// The caller's own session survives the change.
	_, err = h.service.ResolveSession(context.Background(), grant.SessionToken)
	assert.NoError(t, err)
}

func TestService_ChangePassword_TooSoonAfterLastChange(t *testing.T) {
	h := newHarness(t)
	h.seedMember(t, "jane@example.com")
	grant := h.completeLogin(t, "jane@example.com")
	identity, err := h.service.ResolveSession(context.Background(), grant.SessionToken)
	require.NoError(t, err)

	// The registration set the password moments ago.
	err = h.service.ChangePassword(context.Background(), identity, ChangePasswordInput{
		CurrentPassword: testPassword,
		NewPassword:     newTestPassword,
	}, RequestMeta{})
	assert.True(t, apperr.IsCode(err, "PASSWORD_TOO_YOUNG"))
}

func TestService_ChangePassword_WrongCurrent(t *testing.T) {
	h := newHarness(t)
	h.seedMember(t, "jane@example.com")
	grant := h.completeLogin(t, "jane@example.com")
	identity, err := h.service.ResolveSession(context.Background(), grant.SessionToken)
	require.NoError(t, err)

	h.advance(MinPasswordAge + time.Minute)

	err = h.service.ChangePassword(context.Background(), identity, ChangePasswordInput{
		CurrentPassword: "Not@TheRight1",
		NewPassword:     newTestPassword,
	}, RequestMeta{})
	assert.True(t, apperr.IsCode(err, "CURRENT_PASSWORD_WRONG"))
}

func TestService_ChangePassword_RejectsReuse(t *testing.T) {
	h := newHarness(t)
	h.seedMember(t, "jane@example.com")
	grant := h.completeLogin(t, "jane@example.com")
	identity, err := h.service.ResolveSession(context.Background(), grant.SessionToken)
	require.NoError(t, err)

	h.advance(MinPasswordAge + time.Minute)

	// Same as the active password.
	err = h.service.ChangePassword(context.Background(), identity, ChangePasswordInput{
		CurrentPassword: testPassword,
		NewPassword:     testPassword,
	}, RequestMeta{})
	assert.True(t, apperr.IsCode(err, "PASSWORD_REUSED"))

	// Rotate once, then try to come back to the original.
	err = h.service.ChangePassword(context.Background(), identity, ChangePasswordInput{
		CurrentPassword: testPassword,
		NewPassword:     newTestPassword,
	}, RequestMeta{})
	require.NoError(t, err)

	h.advance(MinPasswordAge + time.Minute)

	err = h.service.ChangePassword(context.Background(), identity, ChangePasswordInput{
		CurrentPassword: newTestPassword,
		NewPassword:     testPassword,
	}, RequestMeta{})
	assert.True(t, apperr.IsCode(err, "PASSWORD_REUSED"))
}

func TestService_ChangePassword_HistoryIsAppendOnly(t *testing.T) {
	h := newHarness(t)
	member := h.seedMember(t, "jane@example.com")
	grant := h.completeLogin(t, "jane@example.com")
	identity, err := h.service.ResolveSession(context.Background(), grant.SessionToken)
	require.NoError(t, err)

	rotate := func(from, to string) {
		h.advance(MinPasswordAge + time.Minute)
		require.NoError(t, h.service.ChangePassword(context.Background(), identity, ChangePasswordInput{
			CurrentPassword: from,
			NewPassword:     to,
		}, RequestMeta{}))
	}

	rotate(testPassword, newTestPassword)
	rotate(newTestPassword, "Third@Pass789")
	rotate("Third@Pass789", "Fourth@Pass012")

	// Every retired hash stays on the ledger, beyond the consulted window.
	assert.Len(t, h.history.byMember[member.ID], 3)

	// The original password has aged out of the reuse window and is
	// acceptable again.
	rotate("Fourth@Pass012", testPassword)
	assert.Len(t, h.history.byMember[member.ID], 4)
}

// # Emailed Reset

func TestService_PasswordReset_RoundTrip(t *testing.T) {
	h := newHarness(t)
	member := h.seedMember(t, "jane@example.com")
	grant := h.completeLogin(t, "jane@example.com")

	require.NoError(t, h.service.RequestPasswordReset(
		context.Background(), "jane@example.com", RequestMeta{}))
	assert.Contains(t, h.activity.actions, audit.ActionPasswordResetAsked)

	token := resetTokenFromMail(t, h.mailer)

	err := h.service.ResetPassword(context.Background(), ResetPasswordInput{
		Token:       token,
		NewPassword: newTestPassword,
	}, RequestMeta{})
	require.NoError(t, err)

	stored := h.members.byID[member.ID]
	assert.True(t, sec.CheckPasswordHash(newTestPassword, stored.PasswordHash))
	assert.Contains(t, h.activity.actions, audit.ActionPasswordReset)

	// A reset signs out every device, including the one holding this token.
	assert.Zero(t, h.sessions.liveCount(member.ID))
	_, err = h.service.ResolveSession(context.Background(), grant.SessionToken)
	assert.Error(t, err)
}

func TestService_PasswordReset_TokenSingleUse(t *testing.T) {
	h := newHarness(t)
	h.seedMember(t, "jane@example.com")

	require.NoError(t, h.service.RequestPasswordReset(
		context.Background(), "jane@example.com", RequestMeta{}))
	token := resetTokenFromMail(t, h.mailer)

	require.NoError(t, h.service.ResetPassword(context.Background(), ResetPasswordInput{
		Token: token, NewPassword: newTestPassword,
	}, RequestMeta{}))

	err := h.service.ResetPassword(context.Background(), ResetPasswordInput{
		Token: token, NewPassword: "Another@Pass789",
	}, RequestMeta{})
	assert.True(t, apperr.IsCode(err, "RESET_TOKEN_INVALID"))
}

func TestService_PasswordReset_TokenExpires(t *testing.T) {
	h := newHarness(t)
	h.seedMember(t, "jane@example.com")

	require.NoError(t, h.service.RequestPasswordReset(
		context.Background(), "jane@example.com", RequestMeta{}))
	token := resetTokenFromMail(t, h.mailer)

	h.advance(ResetTokenTTL + time.Minute)

	err := h.service.ResetPassword(context.Background(), ResetPasswordInput{
		Token: token, NewPassword: newTestPassword,
	}, RequestMeta{})
	assert.True(t, apperr.IsCode(err, "RESET_TOKEN_INVALID"))
}

func TestService_PasswordReset_UnblocksExpiredPassword(t *testing.T) {
	h := newHarness(t)
	member := h.seedMember(t, "jane@example.com")
	h.members.byID[member.ID].PasswordSetAt = h.now.Add(-MaxPasswordAge - 24*time.Hour)

	// Sign-in is blocked by the aged password.
	_, err := h.service.Login(context.Background(), LoginInput{
		Email: "jane@example.com", Password: testPassword, CaptchaToken: "human",
	}, RequestMeta{})
	require.True(t, apperr.IsCode(err, "PASSWORD_EXPIRED"))

	require.NoError(t, h.service.RequestPasswordReset(
		context.Background(), "jane@example.com", RequestMeta{}))
	token := resetTokenFromMail(t, h.mailer)
	require.NoError(t, h.service.ResetPassword(context.Background(), ResetPasswordInput{
		Token: token, NewPassword: newTestPassword,
	}, RequestMeta{}))

	// After the reset the member signs in normally.
	_, err = h.service.Login(context.Background(), LoginInput{
		Email: "jane@example.com", Password: newTestPassword, CaptchaToken: "human",
	}, RequestMeta{})
	assert.NoError(t, err)
}

func TestService_RequestPasswordReset_UnknownEmailIsSilent(t *testing.T) {
	h := newHarness(t)
	h.seedMember(t, "jane@example.com")

	err := h.service.RequestPasswordReset(context.Background(), "nobody@example.com", RequestMeta{})
	assert.NoError(t, err)
	assert.Empty(t, h.mailer.sent)
}

func TestService_RequestPasswordReset_MailFailureIsSwallowed(t *testing.T) {
	h := newHarness(t)
	h.seedMember(t, "jane@example.com")
	h.mailer.fail = true

	err := h.service.RequestPasswordReset(context.Background(), "jane@example.com", RequestMeta{})
	assert.NoError(t, err)
}
