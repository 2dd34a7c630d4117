// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

// Package httpapi exposes the account lifecycle over JSON/HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/fokushq/fokus/internal/account"
	"github.com/fokushq/fokus/internal/auth"
)

// AuthService is the subset of *auth.Service the handlers call.
type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.RegisterResult, error)
	VerifyEmail(ctx context.Context, req auth.VerifyEmailRequest) (*auth.VerifyEmailResult, error)
	Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResult, error)
	Logout(ctx context.Context) auth.LogoutResult
	ForgotPassword(ctx context.Context, req auth.ForgotPasswordRequest) (*auth.ForgotPasswordResult, error)
	ResetPassword(ctx context.Context, req auth.ResetPasswordRequest) (*auth.ResetPasswordResult, error)
	CheckSession(ctx context.Context, token string) (*auth.CheckSessionResult, error)
	ResendVerification(ctx context.Context, email string) (*auth.ResendVerificationResult, error)
}

var _ AuthService = (*auth.Service)(nil)

// Response is the envelope of every API reply.
type Response struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	User    *account.View `json:"user,omitempty"`
	Warning string        `json:"warning,omitempty"`
}

type resendRequest struct {
	Email string `json:"email"`
}

type resetBody struct {
	Password string `json:"password"`
}

// Handler serves the /api/auth routes.
type Handler struct {
	svc     AuthService
	cookies CookieConfig
	logger  *slog.Logger
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger for request failures.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithCookieConfig overrides the session cookie settings.
func WithCookieConfig(cfg CookieConfig) HandlerOption {
	return func(h *Handler) {
		h.cookies = cfg.withDefaults()
	}
}

// NewHandler creates a Handler over svc.
func NewHandler(svc AuthService, opts ...HandlerOption) *Handler {
	h := &Handler{
		svc:     svc,
		cookies: CookieConfig{}.withDefaults(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers the handlers on a new ServeMux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/signup", h.handleSignup)
	mux.HandleFunc("POST /api/auth/verify-email", h.handleVerifyEmail)
	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", h.handleLogout)
	mux.HandleFunc("POST /api/auth/forgot-password", h.handleForgotPassword)
	mux.HandleFunc("POST /api/auth/reset-password/{token}", h.handleResetPassword)
	mux.HandleFunc("POST /api/auth/resend-verification", h.handleResendVerification)
	mux.HandleFunc("GET /api/auth/check-auth", h.handleCheckAuth)
	return mux
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setSession(w, res.Session)
	h.write(w, r, http.StatusCreated, Response{
		Success: true,
		Message: "User created successfully",
		User:    &res.Account,
		Warning: res.Notification.Warning(),
	})
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyEmailRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.VerifyEmail(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.write(w, r, http.StatusOK, Response{
		Success: true,
		Message: "Email Verified Successfully",
		User:    &res.Account,
		Warning: res.Notification.Warning(),
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.Login(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setSession(w, res.Session)
	h.write(w, r, http.StatusOK, Response{
		Success: true,
		Message: "Logged In Successfully",
		User:    &res.Account,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if h.svc.Logout(r.Context()).ClearSession {
		h.clearSession(w)
	}
	h.write(w, r, http.StatusOK, Response{Success: true, Message: "Logged out Successfully"})
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.ForgotPassword(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.write(w, r, http.StatusOK, Response{
		Success: true,
		Message: "Password reset link sent successfully",
		Warning: res.Notification.Warning(),
	})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var body resetBody
	if !h.decode(w, r, &body) {
		return
	}
	res, err := h.svc.ResetPassword(r.Context(), auth.ResetPasswordRequest{
		Token:    r.PathValue("token"),
		Password: body.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.write(w, r, http.StatusOK, Response{
		Success: true,
		Message: "Password reset successful",
		Warning: res.Notification.Warning(),
	})
}

func (h *Handler) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.ResendVerification(r.Context(), req.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.write(w, r, http.StatusOK, Response{
		Success: true,
		Message: "Verification code sent",
		Warning: res.Notification.Warning(),
	})
}

func (h *Handler) handleCheckAuth(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(h.cookies.Name)
	if err != nil || cookie.Value == "" {
		h.write(w, r, http.StatusUnauthorized, Response{Message: "Unauthorized - no token provided"})
		return
	}
	res, err := h.svc.CheckSession(r.Context(), cookie.Value)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.write(w, r, http.StatusOK, Response{Success: true, User: &res.Account})
}
