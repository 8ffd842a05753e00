package http_handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/baechuer/lms-auth-service/internal/application/auth"
	"github.com/baechuer/lms-auth-service/internal/domain"
	"github.com/baechuer/lms-auth-service/internal/infrastructure/security"
	"github.com/baechuer/lms-auth-service/internal/logger"
	"github.com/baechuer/lms-auth-service/internal/transport/http/dto"
	"github.com/baechuer/lms-auth-service/internal/transport/http/middleware"
	"github.com/baechuer/lms-auth-service/internal/transport/http/response"
)

type AuthHandler struct {
	svc           *auth.Service
	refreshTTL    time.Duration
	secureCookies bool
}

func NewAuthHandler(svc *auth.Service, refreshTTL time.Duration, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		svc:           svc,
		refreshTTL:    refreshTTL,
		secureCookies: secureCookies,
	}
}

// POST /signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if err := response.DecodeJSON(w, r, &req, false); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Signup(r.Context(), req.Email, req.Password, req.DeviceID)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusAccepted, response.Envelope{Data: dto.SignupData{
		Email:     res.Email,
		ExpiresAt: res.ExpiresAt,
	}})
}

// POST /signup/verify
func (h *AuthHandler) VerifySignup(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifySignupRequest
	if err := response.DecodeJSON(w, r, &req, false); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	acct, err := h.svc.VerifySignup(r.Context(), req.Email, req.OTP)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	logger.WithCtx(r.Context()).Info().
		Str("account_id", acct.ID).
		Msg("account_created")

	response.Created(w, dto.AccountData{Account: dto.NewAccountView(acct)})
}

// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := response.DecodeJSON(w, r, &req, false); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password, req.DeviceID)
	middleware.LoginAttemptsTotal.WithLabelValues("user", resultLabel(err)).Inc()
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	h.writeSession(w, res)
}

// POST /admin/login
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.AdminLoginRequest
	if err := response.DecodeJSON(w, r, &req, false); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	res, err := h.svc.AdminLogin(r.Context(), req.Email, req.Password)
	middleware.LoginAttemptsTotal.WithLabelValues("admin", resultLabel(err)).Inc()
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	h.writeSession(w, res)
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, res auth.LoginResult) {
	security.SetRefreshToken(w, res.Tokens.RefreshToken, h.refreshTTL, h.secureCookies)
	response.OK(w, dto.LoginData{
		Account:                   dto.NewAccountView(res.Account),
		Tokens:                    dto.NewTokensView(res.Tokens),
		DeviceChangeRequestStatus: res.DeviceChangeRequestStatus,
	})
}

// POST /refresh
// The token may come in the body or in the cookie; the body wins.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if err := response.DecodeJSON(w, r, &req, true); err != nil {
		response.WriteError(w, r, err)
		return
	}

	tok := h.refreshTokenFrom(r, req.RefreshToken)
	if tok == "" {
		middleware.TokenRefreshTotal.WithLabelValues("refresh_token_invalid").Inc()
		response.WriteError(w, r, domain.ErrRefreshTokenInvalid())
		return
	}

	toks, err := h.svc.Refresh(r.Context(), tok)
	middleware.TokenRefreshTotal.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		if domain.Is(err, "refresh_token_invalid") {
			security.ClearRefreshToken(w, h.secureCookies)
		}
		response.WriteError(w, r, err)
		return
	}

	security.SetRefreshToken(w, toks.RefreshToken, h.refreshTTL, h.secureCookies)
	response.OK(w, dto.RefreshData{Tokens: dto.NewTokensView(toks)})
}

// POST /logout is idempotent.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req dto.LogoutRequest
	if err := response.DecodeJSON(w, r, &req, true); err != nil {
		response.WriteError(w, r, err)
		return
	}

	if tok := h.refreshTokenFrom(r, req.RefreshToken); tok != "" {
		if err := h.svc.Logout(r.Context(), tok); err != nil {
			logger.WithCtx(r.Context()).Warn().Err(err).Msg("logout revoke failed")
		}
	}

	security.ClearRefreshToken(w, h.secureCookies)
	response.NoContent(w)
}

func (h *AuthHandler) refreshTokenFrom(r *http.Request, body string) string {
	if body != "" {
		return body
	}
	tok, err := security.ReadRefreshToken(r)
	if err != nil {
		return ""
	}
	return tok
}

// POST /password/forgot always answers 200 for well-formed input.
func (h *AuthHandler) PasswordForgot(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordForgotRequest
	if err := response.DecodeJSON(w, r, &req, false); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	if err := h.svc.PasswordForgot(r.Context(), req.Email); err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.OK(w, dto.StatusData{Status: "ok"})
}

// POST /password/reset
func (h *AuthHandler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordResetRequest
	if err := response.DecodeJSON(w, r, &req, false); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	if err := h.svc.PasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		response.WriteError(w, r, err)
		return
	}
	security.ClearRefreshToken(w, h.secureCookies)
	response.OK(w, dto.StatusData{Status: "ok"})
}

// POST /password/change
func (h *AuthHandler) PasswordChange(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenInvalid())
		return
	}

	var req dto.PasswordChangeRequest
	if err := response.DecodeJSON(w, r, &req, false); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	if err := h.svc.PasswordChange(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		response.WriteError(w, r, err)
		return
	}

	// every session was revoked, the cookie is dead too
	security.ClearRefreshToken(w, h.secureCookies)
	response.NoContent(w)
}

// GET /me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenInvalid())
		return
	}

	acct, err := h.svc.Me(r.Context(), userID)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.OK(w, dto.AccountData{Account: dto.NewAccountView(acct)})
}

// POST /admin/admins
func (h *AuthHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	actorRole, _ := middleware.RoleFromContext(r.Context())

	var req dto.CreateAdminRequest
	if err := response.DecodeJSON(w, r, &req, false); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	acct, err := h.svc.CreateAdmin(r.Context(), actorID, actorRole, req.Email, req.Password)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.Created(w, dto.AccountData{Account: dto.NewAccountView(acct)})
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "internal_error"
}
