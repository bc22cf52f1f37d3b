// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

package auth

import (
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/acejobs/portal/internal/platform/apperr"
	"github.com/acejobs/portal/internal/platform/blob"
	"github.com/acejobs/portal/internal/platform/middleware"
	requestutil "github.com/acejobs/portal/internal/platform/request"
	"github.com/acejobs/portal/internal/platform/respond"
	"github.com/acejobs/portal/internal/platform/validate"
	"github.com/acejobs/portal/pkg/uuidv7"
)

// # Definitions & Constructors

// dateOfBirthLayout is the accepted wire format for the date of birth.
const dateOfBirthLayout = "2006-01-02"

// Handler implements authentication-related HTTP endpoints.
//
// # Scope
//
// This handler manages everything related to the member lifecycle entry
// points (Registration, two-step Login, Password Reset, Profile).
type Handler struct {
	authService *Service
	blobs       blob.Store
}

// NewHandler constructs a new [Handler] with its dependencies.
func NewHandler(service *Service, blobs blob.Store) *Handler {
	return &Handler{authService: service, blobs: blobs}
}

// Routes returns a [chi.Router] configured with authentication routes.
//
// # Endpoints
//   - POST /register        : Creates a new member account.
//   - POST /login           : Step one, password plus CAPTCHA.
//   - POST /verify-otp      : Step two, emailed code, returns the session token.
//   - POST /forgot-password : Starts the emailed reset flow.
//   - POST /reset-password  : Completes the reset flow.
//   - POST /logout          : (authed) Terminates the session.
//   - POST /change-password : (authed) Voluntary password change.
//   - GET  /profile         : (authed) Own profile with decrypted NRIC.
//   - PUT  /profile/who-am-i: (authed) Updates the introduction text.
//   - POST /profile/resume  : (authed) Uploads a .pdf or .docx resume.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/verify-otp", handler.verifyOtp)
	router.Post("/forgot-password", handler.forgotPassword)
	router.Post("/reset-password", handler.resetPassword)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/logout", handler.logout)
		r.Post("/change-password", handler.changePassword)
		r.Get("/profile", handler.profile)
		r.Put("/profile/who-am-i", handler.updateWhoAmI)
		r.Post("/profile/resume", handler.uploadResume)
	})

	return router
}

// # Request Payloads

type registerRequest struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Gender          string `json:"gender"`
	NRIC            string `json:"nric"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	DateOfBirth     string `json:"date_of_birth"`
	WhoAmI          string `json:"who_am_i"`
}

type loginRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	CaptchaToken string `json:"captcha_token"`
}

type verifyOtpRequest struct {
	LoginTicket string `json:"login_ticket"`
	Otp         string `json:"otp"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"reset_token"`
	NewPassword string `json:"new_password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type whoAmIRequest struct {
	WhoAmI string `json:"who_am_i"`
}

// # Handlers

/*
Register handles the creation of a new member account.

POST /api/v1/auth/register

Description: Validates input (including the NRIC format, the gender option,
and the password confirmation), then delegates enrollment to the service.

Request:
  - Body: registerRequest

Response:
  - 201: Member: Created member profile
  - 400: ErrInvalidJSON: Bad input or validation failure
  - 409: ErrConflict: Email already registered
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldFirstName, input.FirstName).
		Custom(FieldFirstName, input.FirstName != "" && !ValidName(input.FirstName), "Only letters and spaces are allowed.").
		Required(FieldLastName, input.LastName).
		Custom(FieldLastName, input.LastName != "" && !ValidName(input.LastName), "Only letters and spaces are allowed.").
		OneOf(FieldGender, input.Gender, GenderMale, GenderFemale).
		Required(FieldNRIC, input.NRIC).
		Custom(FieldNRIC, input.NRIC != "" && !ValidNRIC(input.NRIC), "Expected format: S1234567A.").
		Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPassword, input.Password).
		Custom(FieldConfirmPassword, input.Password != input.ConfirmPassword, "Passwords do not match.").
		Required(FieldDateOfBirth, input.DateOfBirth).
		MinLen(FieldWhoAmI, input.WhoAmI, WhoAmIMinLength).
		MaxLen(FieldWhoAmI, input.WhoAmI, WhoAmIMaxLength)

	dateOfBirth, parseErr := time.Parse(dateOfBirthLayout, input.DateOfBirth)
	validator.Custom(FieldDateOfBirth, input.DateOfBirth != "" && parseErr != nil, "Expected format: YYYY-MM-DD.")
	if parseErr == nil {
		validator.MinimumAge(FieldDateOfBirth, dateOfBirth, MinimumAgeYears)
	}

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	member, err := handler.authService.Register(request.Context(), RegisterInput{
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		Gender:      input.Gender,
		NRIC:        input.NRIC,
		Email:       input.Email,
		Password:    input.Password,
		DateOfBirth: dateOfBirth,
		WhoAmI:      input.WhoAmI,
	}, metaFrom(request))

	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, member)
}

/*
Login runs the first authentication step.

POST /api/v1/auth/login

Description: Verifies the CAPTCHA token and the password, emails a one-time
code, and returns a short-lived pending-login ticket. No session exists yet.

Request:
  - Body: loginRequest (Email, Password, CaptchaToken)

Response:
  - 200: LoginChallenge: Ticket for the verification step
  - 401: ErrUnauthorized: Invalid credentials
  - 403: ErrForbidden: CAPTCHA failure, lockout, or expired password
  - 409: ErrConflict: A live session elsewhere was evicted; sign in again
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Required(FieldPassword, input.Password).
		Required(FieldCaptchaToken, input.CaptchaToken)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	challenge, err := handler.authService.Login(request.Context(), LoginInput{
		Email:        input.Email,
		Password:     input.Password,
		CaptchaToken: input.CaptchaToken,
	}, metaFrom(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, challenge)
}

/*
VerifyOtp runs the second authentication step.

POST /api/v1/auth/verify-otp

Description: Redeems the emailed code against the pending-login ticket and,
on success, installs the single live session and returns its opaque token.

Request:
  - Body: verifyOtpRequest (LoginTicket, Otp)

Response:
  - 200: SessionGrant: Session token plus member profile
  - 401: ErrUnauthorized: Bad ticket, wrong code, or expired code
*/
func (handler *Handler) verifyOtp(writer http.ResponseWriter, request *http.Request) {
	var input verifyOtpRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldLoginTicket, input.LoginTicket).
		Required(FieldOtp, input.Otp)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	grant, err := handler.authService.VerifyOtp(request.Context(), VerifyOtpInput{
		LoginTicket: input.LoginTicket,
		Code:        input.Otp,
	}, metaFrom(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, grant)
}

/*
Logout terminates the current session.

POST /api/v1/auth/logout

Response:
  - 204: No Content: Session terminated
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.Identity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.Logout(request.Context(), identity, metaFrom(request)); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
ForgotPassword starts the emailed reset flow.

POST /api/v1/auth/forgot-password

Description: Always answers with the same message so account existence
cannot be probed through this endpoint.

Response:
  - 200: message: Uniform acknowledgement
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input forgotPasswordRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.RequestPasswordReset(request.Context(), input.Email, metaFrom(request)); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{"message": MsgResetRequested})
}

/*
ResetPassword completes the emailed reset flow.

POST /api/v1/auth/reset-password

Response:
  - 204: No Content: Password replaced, all sessions revoked
  - 401: ErrUnauthorized: Unknown, expired, or already used token
  - 422: ErrUnprocessable: Password reuse
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldResetToken, input.Token).
		Required(FieldNewPassword, input.NewPassword)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err := handler.authService.ResetPassword(request.Context(), ResetPasswordInput{
		Token:       input.Token,
		NewPassword: input.NewPassword,
	}, metaFrom(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
ChangePassword performs a voluntary password change.

POST /api/v1/auth/change-password

Response:
  - 204: No Content: Password replaced, other devices signed out
  - 401: ErrUnauthorized: Wrong current password
  - 403: ErrForbidden: Minimum password age not met
  - 422: ErrUnprocessable: Password reuse
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.Identity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldCurrentPassword, input.CurrentPassword).
		Required(FieldNewPassword, input.NewPassword)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.authService.ChangePassword(request.Context(), identity, ChangePasswordInput{
		CurrentPassword: input.CurrentPassword,
		NewPassword:     input.NewPassword,
	}, metaFrom(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
Profile returns the caller's own profile with the national ID decrypted.

GET /api/v1/auth/profile
*/
func (handler *Handler) profile(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.Identity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	profile, err := handler.authService.GetProfile(request.Context(), identity.MemberID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, profile)
}

/*
UpdateWhoAmI replaces the caller's introduction text.

PUT /api/v1/auth/profile/who-am-i
*/
func (handler *Handler) updateWhoAmI(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.Identity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input whoAmIRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if err := handler.authService.UpdateWhoAmI(request.Context(), identity.MemberID, input.WhoAmI); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
UploadResume stores a .pdf or .docx resume of at most 5 MiB.

POST /api/v1/auth/profile/resume

Description: The file lands in the blob store under a server-generated key.
The client's filename is recorded as metadata only and never used as a path.
*/
func (handler *Handler) uploadResume(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.Identity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	request.Body = http.MaxBytesReader(writer, request.Body, ResumeMaxBytes)
	if err := request.ParseMultipartForm(ResumeMaxBytes); err != nil {
		respond.Error(writer, request,
			apperr.ValidationError("Resume must be a .pdf or .docx file of at most 5 MB."))
		return
	}

	file, header, err := request.FormFile(FieldResume)
	if err != nil {
		respond.Error(writer, request,
			apperr.ValidationError("Missing resume file field."))
		return
	}
	defer file.Close()

	if !ValidResumeFileName(header.Filename) || header.Size > ResumeMaxBytes {
		respond.Error(writer, request,
			apperr.ValidationError("Resume must be a .pdf or .docx file of at most 5 MB."))
		return
	}

	resumeKey := uuidv7.New() + strings.ToLower(filepath.Ext(header.Filename))
	if err := handler.blobs.Save(resumeKey, file); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.AttachResume(request.Context(), identity.MemberID, resumeKey, header.Filename); err != nil {
		// Remove the orphaned blob.
		_ = handler.blobs.Remove(resumeKey)
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{"resume_file_name": header.Filename})
}

// metaFrom extracts the client attributes recorded with audit entries.
func metaFrom(request *http.Request) RequestMeta {
	clientIP := request.RemoteAddr
	if host, _, err := net.SplitHostPort(clientIP); err == nil {
		clientIP = host
	}
	return RequestMeta{IPAddress: clientIP, UserAgent: request.UserAgent()}
}
