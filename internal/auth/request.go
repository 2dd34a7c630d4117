// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

package auth

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/samber/oops"
)

// MaxPasswordLength bounds the plaintext accepted for hashing.
const MaxPasswordLength = 256

// RegisterRequest is the input to Register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Validate checks that all fields are present and the email is well-formed.
func (r RegisterRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	r.Name = strings.TrimSpace(r.Name)
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(1, MaxPasswordLength)),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
	)
}

// VerifyEmailRequest is the input to VerifyEmail.
type VerifyEmailRequest struct {
	Code string `json:"code"`
}

// Validate checks that a code is present.
func (r VerifyEmailRequest) Validate() error {
	r.Code = strings.TrimSpace(r.Code)
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, validation.Required),
	)
}

// LoginRequest is the input to Login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks that both fields are present.
func (r LoginRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(1, MaxPasswordLength)),
	)
}

// ForgotPasswordRequest is the input to ForgotPassword.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// Validate checks that the email is present and well-formed.
func (r ForgotPasswordRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// ResetPasswordRequest is the input to ResetPassword.
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// Validate checks that both fields are present.
func (r ResetPasswordRequest) Validate() error {
	r.Token = strings.TrimSpace(r.Token)
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(1, MaxPasswordLength)),
	)
}

func validateEmail(email string) error {
	return validation.Validate(strings.TrimSpace(email), validation.Required, is.Email)
}

// validationError converts a request validation failure into the
// caller-visible AUTH_VALIDATION error.
func validationError(operation string, err error) error {
	return oops.Code(CodeValidation).
		With("operation", operation).
		Errorf("%s", err.Error())
}
