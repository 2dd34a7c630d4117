// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/oops"

	"github.com/fokushq/fokus/internal/auth"
	"github.com/fokushq/fokus/pkg/errutil"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 16

// decode reads a JSON body into dst. On failure it writes a 400 and
// returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.write(w, r, http.StatusRequestEntityTooLarge, Response{Message: "Request body too large"})
			return false
		}
		h.write(w, r, http.StatusBadRequest, Response{Message: "Invalid request body"})
		return false
	}
	return true
}

// statusFor maps an error kind to its HTTP status and caller-visible message.
// An empty message means the error's own text is safe to show.
func statusFor(kind auth.Kind) (int, string) {
	switch kind {
	case auth.KindValidation:
		return http.StatusBadRequest, ""
	case auth.KindConflict:
		return http.StatusConflict, "User Already Exists"
	case auth.KindInvalidCredential:
		return http.StatusBadRequest, "Invalid Credentials"
	case auth.KindNotFound:
		return http.StatusNotFound, "User Not Found"
	case auth.KindInvalidOrExpiredToken:
		return http.StatusBadRequest, ""
	case auth.KindUnauthenticated:
		return http.StatusUnauthorized, "Unauthorized - invalid token"
	default:
		return http.StatusInternalServerError, "Server Error"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := auth.KindOf(err)
	status, msg := statusFor(kind)
	if msg == "" {
		msg = capitalize(err.Error())
	}
	if status >= http.StatusInternalServerError {
		errutil.LogError(h.logger, "request failed", oops.
			With("method", r.Method).
			With("path", r.URL.Path).
			Wrap(err))
	}
	h.write(w, r, status, Response{Message: msg})
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, status int, resp Response) {
	if err := writeJSON(w, status, resp); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write response",
			"path", r.URL.Path,
			"error", err,
		)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return oops.Code("HTTP_ENCODE_FAILED").Wrap(err)
	}
	return nil
}

func capitalize(s string) string {
	s = strings.TrimSpace(s)
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
