// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/acejobs/portal/internal/platform/apperr"
	"github.com/acejobs/portal/internal/platform/ctxutil"
	"github.com/acejobs/portal/internal/platform/mail"
	"github.com/acejobs/portal/internal/platform/sec"
	"github.com/acejobs/portal/internal/users/audit"
)

// # Password Change

// ChangePasswordInput holds the voluntary password change submission.
type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
}

/*
ChangePassword replaces the caller's password after policy checks.

Description: The current password is verified first. The minimum-age rule
applies only here, not to emailed resets. The new password must satisfy
complexity and must not match the active hash or any retired hash in the
history window. Other devices are signed out; the caller's session survives.

Parameters:
  - context: context.Context
  - identity: *sec.Identity
  - input: ChangePasswordInput
  - meta: RequestMeta

Returns:
  - error: Policy violations or persistence failures
*/
func (service *Service) ChangePassword(context context.Context, identity *sec.Identity, input ChangePasswordInput, meta RequestMeta) error {
	now := service.clock()

	member, err := service.members.FindByID(context, identity.MemberID)
	if err != nil {
		return err
	}

	if !sec.CheckPasswordHash(input.CurrentPassword, member.PasswordHash) {
		return apperr.Unauthorized("Current password is incorrect.").WithCode("CURRENT_PASSWORD_WRONG")
	}

	if member.PasswordTooYoung(now) {
		return apperr.Forbidden("Password was changed too recently. Please try again later.").
			WithCode("PASSWORD_TOO_YOUNG")
	}

	if err := service.vetNewPassword(context, member, input.NewPassword); err != nil {
		return err
	}

	if err := service.installNewPassword(context, member, input.NewPassword, identity.SessionID); err != nil {
		return err
	}

	service.activity.Record(member.ID, audit.ActionPasswordChanged, meta.IPAddress, meta.UserAgent)
	return nil
}

// # Password Reset

/*
RequestPasswordReset starts the emailed reset flow.

Description: The response to the caller is uniform whether or not the email
maps to an account, so this endpoint cannot be used to probe for registered
addresses. Delivery failures are logged and swallowed for the same reason.

Parameters:
  - context: context.Context
  - email: string
  - meta: RequestMeta

Returns:
  - error: Storage failures only
*/
func (service *Service) RequestPasswordReset(context context.Context, email string, meta RequestMeta) error {
	member, err := service.members.FindByEmail(context, NormalizeEmail(email))
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			return nil
		}
		return err
	}

	token, err := sec.GenerateSecureToken(ResetTokenLength)
	if err != nil {
		return fmt.Errorf("auth_service_reset_token_failed: %w", err)
	}

	expiresAt := service.clock().Add(ResetTokenTTL)
	if err := service.resetTokens.Store(context, sec.HashToken(token), member.ID, expiresAt); err != nil {
		return err
	}

	resetLink := service.resetURLBase + "?token=" + token
	body := mail.PasswordResetBody(resetLink, int(ResetTokenTTL.Hours()))
	if err := service.mailer.Send(context, member.Email, "Reset your password", body); err != nil {
		ctxutil.GetLogger(context).Error("reset_mail_failed",
			slog.String("member_id", member.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	service.activity.Record(member.ID, audit.ActionPasswordResetAsked, meta.IPAddress, meta.UserAgent)
	return nil
}

// ResetPasswordInput holds the emailed-link reset submission.
type ResetPasswordInput struct {
	Token       string
	NewPassword string
}

/*
ResetPassword completes the emailed reset flow.

Description: The token is consumed atomically, so a link works exactly once.
Complexity and reuse rules still apply; the minimum-age rule does not. All
sessions are revoked, including the device performing the reset.

Parameters:
  - context: context.Context
  - input: ResetPasswordInput
  - meta: RequestMeta

Returns:
  - error: Token, policy, or persistence failures
*/
func (service *Service) ResetPassword(context context.Context, input ResetPasswordInput, meta RequestMeta) error {
	memberID, err := service.resetTokens.Redeem(context, sec.HashToken(input.Token))
	if err != nil {
		return err
	}
	if memberID == "" {
		return apperr.Unauthorized("Reset link is invalid or has expired.").WithCode("RESET_TOKEN_INVALID")
	}

	member, err := service.members.FindByID(context, memberID)
	if err != nil {
		return err
	}

	if err := service.vetNewPassword(context, member, input.NewPassword); err != nil {
		return err
	}

	if err := service.installNewPassword(context, member, input.NewPassword, ""); err != nil {
		return err
	}

	service.activity.Record(member.ID, audit.ActionPasswordReset, meta.IPAddress, meta.UserAgent)
	return nil
}

// # Shared Policy Steps

// vetNewPassword enforces complexity and the reuse window (the active hash
// plus the retired history) for a candidate password.
func (service *Service) vetNewPassword(context context.Context, member *Member, candidate string) error {
	if issues := PasswordIssues(candidate); len(issues) > 0 {
		details := make([]apperr.FieldError, 0, len(issues))
		for _, issue := range issues {
			details = append(details, apperr.FieldError{Field: FieldNewPassword, Message: issue})
		}
		return apperr.ValidationError("Password does not meet the policy.", details...)
	}

	if sec.CheckPasswordHash(candidate, member.PasswordHash) {
		return apperr.Unprocessable("New password must differ from your recent passwords.").
			WithCode("PASSWORD_REUSED")
	}

	retired, err := service.history.RecentHashes(context, member.ID, PasswordHistoryDepth)
	if err != nil {
		return err
	}
	for _, hash := range retired {
		if sec.CheckPasswordHash(candidate, hash) {
			return apperr.Unprocessable("New password must differ from your recent passwords.").
				WithCode("PASSWORD_REUSED")
		}
	}
	return nil
}

// installNewPassword retires the active hash into history, stores the new
// hash, and revokes sessions. keepSessionID spares the caller's session on
// voluntary changes; empty clears every device.
func (service *Service) installNewPassword(context context.Context, member *Member, newPassword, keepSessionID string) error {
	now := service.clock()

	newHash, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	if err := service.history.Append(context, member.ID, member.PasswordHash, now); err != nil {
		return err
	}

	if err := service.members.UpdatePassword(context, member.ID, newHash, now); err != nil {
		return err
	}

	if err := service.sessions.RevokeAllForMember(context, member.ID, keepSessionID, now); err != nil {
		return err
	}
	return nil
}
