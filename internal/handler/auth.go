package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/caracolito/auth-service/internal/apperror"
	"github.com/caracolito/auth-service/internal/auth"
	"github.com/caracolito/auth-service/internal/model"
	"github.com/caracolito/auth-service/internal/service"
)

// minPasswordLength is enforced at the HTTP boundary on registration and
// password-reset confirmation. Existing hashes are never re-checked.
const minPasswordLength = 8

// resetRequestedMessage is the single reply for every password-reset
// request. It must stay byte-identical across the known-email, unknown-email
// and internal-failure cases so the endpoint cannot be used to enumerate
// accounts.
const resetRequestedMessage = "If the email is registered, a password reset link has been sent"

// AuthHandler exposes the authentication flows over HTTP.
type AuthHandler struct {
	svc    *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

// tokenResponse is the JSON shape of a successful authentication.
type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	IsNewUser   bool        `json:"is_new_user,omitempty"`
	User        *model.User `json:"user"`
}

func newTokenResponse(res *service.AuthResult) tokenResponse {
	return tokenResponse{
		AccessToken: res.AccessToken,
		TokenType:   res.TokenType,
		IsNewUser:   res.IsNewUser,
		User:        res.User,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return false
	}
	return true
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// HandleLogin authenticates an email/password pair.
//
// HTTP: POST /api/v1/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, apperror.ValidationFailed("email", "email and password are required"))
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(res))
}

// HandleRegisterEmail registers a new account and starts email
// verification.
//
// HTTP: POST /api/v1/auth/register/email
func (h *AuthHandler) HandleRegisterEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
		CountryID *int64 `json:"country_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if !validEmail(req.Email) {
		writeError(w, apperror.ValidationFailed("email", "a valid email address is required"))
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, apperror.ValidationFailed("password", "password must be at least 8 characters"))
		return
	}

	user, err := h.svc.RegisterEmail(r.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		CountryID: req.CountryID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Registration successful. Check your inbox to activate your account",
		"user":    user,
	})
}

// HandleVerifyEmail spends an activation token from the emailed link.
//
// HTTP: GET /api/v1/auth/verify-email/{token}
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	_, alreadyActive, err := h.svc.VerifyEmail(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	message := "Account activated"
	if alreadyActive {
		message = "Account is already active"
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

// HandlePasswordReset starts the password-reset flow.
//
// HTTP: POST /api/v1/auth/password-reset
func (h *AuthHandler) HandlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		writeError(w, apperror.ValidationFailed("email", "email is required"))
		return
	}

	h.svc.RequestPasswordReset(r.Context(), req.Email)
	writeJSON(w, http.StatusOK, map[string]string{"message": resetRequestedMessage})
}

// HandlePasswordResetConfirm spends a reset token and sets the new
// password.
//
// HTTP: POST /api/v1/auth/password-reset/confirm
func (h *AuthHandler) HandlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		writeError(w, apperror.ValidationFailed("token", "token is required"))
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		writeError(w, apperror.ValidationFailed("new_password", "password must be at least 8 characters"))
		return
	}

	if err := h.svc.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

// HandleGoogleLogin signs in with a Google ID token obtained by the
// frontend. Creates, links, or resolves the account as needed.
//
// HTTP: POST /api/v1/auth/register/google
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken string `json:"id_token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IDToken == "" {
		writeError(w, apperror.ValidationFailed("id_token", "id_token is required"))
		return
	}

	res, err := h.svc.GoogleLogin(r.Context(), req.IDToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(res))
}

// HandleGoogleCode signs in with a one-time authorization code from the
// frontend's Google consent popup.
//
// HTTP: POST /api/v1/auth/login/google-code
func (h *AuthHandler) HandleGoogleCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeError(w, apperror.ValidationFailed("code", "code is required"))
		return
	}

	res, err := h.svc.ExchangeGoogleCode(r.Context(), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(res))
}

// HandleMe returns the authenticated user's profile.
//
// HTTP: GET /api/v1/auth/me (behind RequireAuth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// Unreachable behind RequireAuth; kept for safety.
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	user, err := h.svc.Profile(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdateMe updates the authenticated user's profile. Email and user
// type are not accepted.
//
// HTTP: PUT /api/v1/auth/me (behind RequireAuth)
func (h *AuthHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
		CountryID *int64 `json:"country_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.svc.UpdateProfile(r.Context(), userID, service.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		CountryID: req.CountryID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
