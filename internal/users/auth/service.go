// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

/*
Package auth implements the core identity and access management system for
the member portal.

It handles registration, the two-step login (password, then an emailed
one-time code), password lifecycle enforcement, and the single-device
session rule.

Architecture:

  - Service: Orchestrates business logic (Register, Login, VerifyOtp).
  - Repository: Abstracted interfaces for Postgres (members, sessions,
    history) and Redis (codes, reset tokens).
  - Security: Bcrypt hashing, AES-GCM field encryption, RSA-signed
    pending-login tickets.
*/
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/acejobs/portal/internal/platform/apperr"
	"github.com/acejobs/portal/internal/platform/ctxutil"
	"github.com/acejobs/portal/internal/platform/mail"
	"github.com/acejobs/portal/internal/platform/sec"
	"github.com/acejobs/portal/internal/users/audit"
	"github.com/acejobs/portal/pkg/uuidv7"
)

// # Contracts & Types

// TicketProvider defines the contract for pending-login ticket handling.
type TicketProvider interface {
	// IssueLoginTicket creates a signed ticket binding the member identity
	// to the outstanding one-time code.
	IssueLoginTicket(memberID, email string, timeToLive time.Duration) (string, error)

	// VerifyLoginTicket checks signature, validity window, and purpose.
	VerifyLoginTicket(ticket string) (*sec.TicketClaims, error)
}

// CaptchaVerifier checks the human-verification token from the browser.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token string) error
}

// MailSender delivers transactional email.
type MailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// FieldEncrypter protects sensitive profile fields at rest.
type FieldEncrypter interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// ActivityRecorder appends entries to the member activity trail.
type ActivityRecorder interface {
	Record(memberID, action, ipAddress, userAgent string)
}

// RequestMeta carries the client attributes recorded with audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Service implements the member authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to gate ordering,
// hashing, or session logic must be reviewed by the security team.
type Service struct {
	members     MemberRepository
	sessions    SessionRepository
	history     PasswordHistoryRepository
	otps        OtpRepository
	resetTokens ResetTokenRepository
	tickets     TicketProvider
	captcha     CaptchaVerifier
	mailer      MailSender
	cipher      FieldEncrypter
	activity    ActivityRecorder

	resetURLBase string

	// clock is swappable in tests.
	clock func() time.Time
}

// NewService constructs a new [Service] with its dependencies.
func NewService(
	members MemberRepository,
	sessions SessionRepository,
	history PasswordHistoryRepository,
	otps OtpRepository,
	resetTokens ResetTokenRepository,
	tickets TicketProvider,
	captcha CaptchaVerifier,
	mailer MailSender,
	cipher FieldEncrypter,
	activity ActivityRecorder,
	resetURLBase string,
) *Service {
	return &Service{
		members:      members,
		sessions:     sessions,
		history:      history,
		otps:         otps,
		resetTokens:  resetTokens,
		tickets:      tickets,
		captcha:      captcha,
		mailer:       mailer,
		cipher:       cipher,
		activity:     activity,
		resetURLBase: resetURLBase,
		clock:        time.Now,
	}
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new member.
type RegisterInput struct {
	FirstName   string
	LastName    string
	Gender      string
	NRIC        string
	Email       string
	Password    string
	DateOfBirth time.Time
	WhoAmI      string
}

/*
Register validates, hashes, encrypts, and persists a brand new member.

Description: The national ID is encrypted before it ever reaches storage.
Password complexity and the minimum-age rule are re-checked here so the
service stays safe even if a handler forgets a validation.

Parameters:
  - context: context.Context
  - input: RegisterInput
  - meta: RequestMeta

Returns:
  - *Member: Created entity
  - error: Validation errors, Conflict (if email exists), or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput, meta RequestMeta) (*Member, error) {
	now := service.clock()

	if issues := PasswordIssues(input.Password); len(issues) > 0 {
		details := make([]apperr.FieldError, 0, len(issues))
		for _, issue := range issues {
			details = append(details, apperr.FieldError{Field: FieldPassword, Message: issue})
		}
		return nil, apperr.ValidationError("Password does not meet the policy.", details...)
	}

	if Age(input.DateOfBirth, now) < MinimumAgeYears {
		return nil, apperr.ValidationError("You must be at least 18 years old to register.",
			apperr.FieldError{Field: FieldDateOfBirth, Message: "Minimum age is 18."})
	}

	if !ValidNRIC(input.NRIC) {
		return nil, apperr.ValidationError("NRIC format is invalid.",
			apperr.FieldError{Field: FieldNRIC, Message: "Expected format: S1234567A."})
	}

	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	encryptedNRIC, err := service.cipher.Encrypt(input.NRIC)
	if err != nil {
		return nil, fmt.Errorf("auth_service_encrypt_failed: %w", err)
	}

	member := &Member{
		ID:            uuidv7.New(),
		FirstName:     input.FirstName,
		LastName:      input.LastName,
		Gender:        input.Gender,
		NRIC:          encryptedNRIC,
		Email:         NormalizeEmail(input.Email),
		PasswordHash:  hashedPassword,
		DateOfBirth:   input.DateOfBirth,
		WhoAmI:        input.WhoAmI,
		PasswordSetAt: now,
	}

	if err := service.members.Create(context, member); err != nil {
		if apperr.IsCode(err, apperr.CodeConflict) {
			return nil, apperr.Conflict("Email is already registered.")
		}
		return nil, err
	}

	service.activity.Record(member.ID, audit.ActionAccountCreated, meta.IPAddress, meta.UserAgent)
	return member, nil
}

// # Two-Step Login Flow

// LoginInput holds the first-step credentials.
type LoginInput struct {
	Email        string
	Password     string
	CaptchaToken string
}

// LoginChallenge is the first-step result: a pending-login ticket the client
// must present together with the emailed code.
type LoginChallenge struct {
	LoginTicket string `json:"login_ticket"`
	ExpiresIn   int    `json:"expires_in"`
}

/*
Login runs the first authentication step.

Description: The gates run in a fixed order: human verification, account
lookup, lockout, the password itself, password age, then the session
collision check. Lookup and password failures share one client-facing
message so account existence is never disclosed; password expiry is only
revealed to a caller who already proved the credential. A live session elsewhere
is evicted and the attempt rejected. On success a one-time code is emailed
and a signed pending-login ticket is returned; no session exists yet.

Parameters:
  - context: context.Context
  - input: LoginInput
  - meta: RequestMeta

Returns:
  - *LoginChallenge: Ticket for the second step
  - error: Gate failures
*/
func (service *Service) Login(context context.Context, input LoginInput, meta RequestMeta) (*LoginChallenge, error) {
	now := service.clock()

	// Gate 1: human verification, fail closed.
	if err := service.captcha.Verify(context, input.CaptchaToken); err != nil {
		return nil, err
	}

	// Gate 2: account lookup. Unknown emails get the uniform message.
	member, err := service.members.FindByEmail(context, NormalizeEmail(input.Email))
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			return nil, apperr.Unauthorized(MsgInvalidCredentials).WithCode("INVALID_CREDENTIALS")
		}
		return nil, err
	}

	// Gate 3: lockout window.
	if member.IsLockedOut(now) {
		return nil, apperr.Forbidden(MsgAccountLocked).WithCode("ACCOUNT_LOCKED")
	}

	// Gate 4: the password itself.
	if !sec.CheckPasswordHash(input.Password, member.PasswordHash) {
		service.activity.Record(member.ID, audit.ActionLoginFailed, meta.IPAddress, meta.UserAgent)

		lockedUntil, failureErr := service.members.RecordLoginFailure(
			context, member.ID, LockoutThreshold, LockoutDuration)
		if failureErr != nil {
			return nil, failureErr
		}
		if lockedUntil != nil {
			service.activity.Record(member.ID, audit.ActionAccountLocked, meta.IPAddress, meta.UserAgent)
			return nil, apperr.Forbidden(MsgAccountLocked).WithCode("ACCOUNT_LOCKED")
		}
		return nil, apperr.Unauthorized(MsgInvalidCredentials).WithCode("INVALID_CREDENTIALS")
	}

	if err := service.members.ClearLoginFailures(context, member.ID); err != nil {
		return nil, err
	}

	// Gate 5: password age. Revealed only after the password itself passed;
	// the member is steered to the reset flow.
	if member.PasswordExpired(now) {
		return nil, apperr.Forbidden(MsgPasswordExpired).WithCode("PASSWORD_EXPIRED")
	}

	// Gate 6: session collision. A live session elsewhere is evicted and this
	// attempt is rejected; the member signs in again now that the slot is free.
	evicted, err := service.sessions.EvictActive(context, member.ID, now)
	if err != nil {
		return nil, err
	}
	if len(evicted) > 0 {
		for _, displaced := range evicted {
			service.activity.Record(member.ID, audit.ActionSessionDisplaced,
				displaced.IPAddress, displaced.UserAgent)
		}
		return nil, apperr.Conflict(MsgSessionDisplaced).WithCode("SESSION_COLLISION")
	}

	// Issue the one-time code. Re-issuing replaces any outstanding code.
	code, err := sec.GenerateNumericCode(OtpMin, OtpMax)
	if err != nil {
		return nil, fmt.Errorf("auth_service_code_failed: %w", err)
	}
	codeString := strconv.FormatInt(code, 10)

	if err := service.otps.Issue(context, member.ID, codeString, now.Add(OtpTTL)); err != nil {
		return nil, err
	}

	// Delivery is best effort. The code is already issued; a member who never
	// receives it simply signs in again for a fresh one.
	body := mail.LoginCodeBody(codeString, int(OtpTTL.Minutes()))
	if err := service.mailer.Send(context, member.Email, "Your verification code", body); err != nil {
		ctxutil.GetLogger(context).Error("otp_mail_failed",
			slog.String("member_id", member.ID),
			slog.String("error", err.Error()),
		)
	}

	ticket, err := service.tickets.IssueLoginTicket(member.ID, member.Email, LoginTicketTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_ticket_failed: %w", err)
	}

	return &LoginChallenge{
		LoginTicket: ticket,
		ExpiresIn:   int(LoginTicketTTL.Seconds()),
	}, nil
}

// VerifyOtpInput holds the second-step submission.
type VerifyOtpInput struct {
	LoginTicket string
	Code        string
}

// SessionGrant is the final login result: an opaque bearer token.
type SessionGrant struct {
	SessionToken string `json:"session_token"`
	Member       Member `json:"member"`
}

/*
VerifyOtp runs the second authentication step and creates the session.

Description: The submitted code is checked and consumed in one atomic
operation. Session creation re-checks for a live session under the member
row lock, so two logins racing past the collision gate cannot both sign in.

Parameters:
  - context: context.Context
  - input: VerifyOtpInput
  - meta: RequestMeta

Returns:
  - *SessionGrant: Opaque session token plus the member profile
  - error: Ticket or code failures
*/
func (service *Service) VerifyOtp(context context.Context, input VerifyOtpInput, meta RequestMeta) (*SessionGrant, error) {
	now := service.clock()

	claims, err := service.tickets.VerifyLoginTicket(input.LoginTicket)
	if err != nil {
		return nil, apperr.Unauthorized("Login session expired. Please sign in again.").WithCode("TICKET_INVALID")
	}

	outcome, err := service.otps.Redeem(context, claims.MemberID, input.Code)
	if err != nil {
		return nil, err
	}
	switch outcome {
	case RedeemNone:
		return nil, apperr.Unauthorized("No verification code is outstanding. Please sign in again.").WithCode("OTP_MISSING")
	case RedeemExpired:
		return nil, apperr.Unauthorized("The verification code has expired. Please sign in again.").WithCode("OTP_EXPIRED")
	case RedeemMismatch:
		service.activity.Record(claims.MemberID, audit.ActionLoginFailed, meta.IPAddress, meta.UserAgent)
		return nil, apperr.Unauthorized("Incorrect verification code.").WithCode("OTP_MISMATCH")
	}

	member, err := service.members.FindByID(context, claims.MemberID)
	if err != nil {
		return nil, err
	}

	token, err := sec.GenerateSecureToken(SessionTokenLength)
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_failed: %w", err)
	}

	session := &Session{
		ID:         uuidv7.New(),
		MemberID:   member.ID,
		TokenHash:  sec.HashToken(token),
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		CreatedAt:  now,
		LastSeenAt: now,
	}

	if err := service.sessions.Create(context, session); err != nil {
		return nil, err
	}

	service.activity.Record(member.ID, audit.ActionLoginSucceeded, meta.IPAddress, meta.UserAgent)

	return &SessionGrant{SessionToken: token, Member: *member}, nil
}

// # Session Resolution

/*
ResolveSession maps an opaque bearer token to an authenticated identity.

Description: This is the liveness judgment for every authenticated request.
A revoked session yields the displaced-device message; an idle-expired one is
reaped lazily here and yields a plain expiry. Resolution slides the idle
window forward.

Parameters:
  - ctx: context.Context
  - token: string

Returns:
  - *sec.Identity: Authenticated identity
  - error: apperr.Unauthorized with a reason-specific code
*/
func (service *Service) ResolveSession(ctx context.Context, token string) (*sec.Identity, error) {
	now := service.clock()

	session, err := service.sessions.FindByTokenHash(ctx, sec.HashToken(token))
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			return nil, apperr.Unauthorized("Invalid session.").WithCode("SESSION_INVALID")
		}
		return nil, err
	}

	// A revoked session means a newer login displaced this device.
	if session.RevokedAt != nil {
		return nil, apperr.Unauthorized(MsgSessionDisplaced).WithCode("SESSION_DISPLACED")
	}

	if now.Sub(session.LastSeenAt) > SessionIdleTimeout {
		// Lazy reap: mark it revoked so later token replays get a clean answer.
		_ = service.sessions.Revoke(ctx, session.ID, now)
		return nil, apperr.Unauthorized("Session expired. Please sign in again.").WithCode("SESSION_EXPIRED")
	}

	if err := service.sessions.Touch(ctx, session.ID, now); err != nil {
		return nil, err
	}

	member, err := service.members.FindByID(ctx, session.MemberID)
	if err != nil {
		return nil, err
	}

	return &sec.Identity{
		MemberID:     member.ID,
		Email:        member.Email,
		SessionID:    session.ID,
		SessionToken: token,
	}, nil
}

/*
Logout terminates the caller's session.

Parameters:
  - context: context.Context
  - identity: *sec.Identity
  - meta: RequestMeta

Returns:
  - error: Persistence failures
*/
func (service *Service) Logout(context context.Context, identity *sec.Identity, meta RequestMeta) error {
	if err := service.sessions.Revoke(context, identity.SessionID, service.clock()); err != nil {
		return err
	}
	service.activity.Record(identity.MemberID, audit.ActionLoggedOut, meta.IPAddress, meta.UserAgent)
	return nil
}

// # Profile

// Profile is the member's own view of their account, with the national ID
// decrypted for display.
type Profile struct {
	Member
	NRIC string `json:"nric"`
}

/*
GetProfile returns the caller's profile with the national ID decrypted.

Parameters:
  - context: context.Context
  - memberID: string

Returns:
  - *Profile: Hydrated profile
  - error: Retrieval or decryption failures
*/
func (service *Service) GetProfile(context context.Context, memberID string) (*Profile, error) {
	member, err := service.members.FindByID(context, memberID)
	if err != nil {
		return nil, err
	}

	plainNRIC, err := service.cipher.Decrypt(member.NRIC)
	if err != nil {
		return nil, fmt.Errorf("auth_service_decrypt_failed: %w", err)
	}

	return &Profile{Member: *member, NRIC: plainNRIC}, nil
}

/*
UpdateWhoAmI replaces the caller's free-text introduction.

Parameters:
  - context: context.Context
  - memberID: string
  - whoAmI: string

Returns:
  - error: Validation or persistence failures
*/
func (service *Service) UpdateWhoAmI(context context.Context, memberID, whoAmI string) error {
	if length := len(whoAmI); length < WhoAmIMinLength || length > WhoAmIMaxLength {
		return apperr.ValidationError("Introduction must be between 10 and 500 characters.",
			apperr.FieldError{Field: FieldWhoAmI, Message: "Length out of range."})
	}
	return service.members.UpdateWhoAmI(context, memberID, whoAmI)
}

/*
AttachResume records an already stored resume blob on the member.

Parameters:
  - context: context.Context
  - memberID: string
  - resumeKey: string
  - fileName: string

Returns:
  - error: Persistence failures
*/
func (service *Service) AttachResume(context context.Context, memberID, resumeKey, fileName string) error {
	return service.members.UpdateResume(context, memberID, resumeKey, fileName)
}
