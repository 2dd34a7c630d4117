// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

package httpapi

import (
	"net/http"
	"time"

	"github.com/fokushq/fokus/internal/auth"
)

// DefaultCookieName is the session cookie name.
const DefaultCookieName = "token"

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Domain string
	Secure bool
	// Now is used to compute Max-Age. Defaults to time.Now.
	Now func() time.Time
}

func (c CookieConfig) withDefaults() CookieConfig {
	if c.Name == "" {
		c.Name = DefaultCookieName
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

func (h *Handler) setSession(w http.ResponseWriter, sess *auth.Session) {
	if sess == nil {
		return
	}
	maxAge := int(sess.ExpiresAt.Sub(h.cookies.Now()) / time.Second)
	if maxAge <= 0 {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookies.Name,
		Value:    sess.Token,
		Path:     "/",
		Domain:   h.cookies.Domain,
		Expires:  sess.ExpiresAt,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookies.Name,
		Value:    "",
		Path:     "/",
		Domain:   h.cookies.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
