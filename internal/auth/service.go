// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/fokushq/fokus/internal/account"
	"github.com/fokushq/fokus/pkg/errutil"
)

// Default per-call bounds on collaborators.
const (
	DefaultStorageTimeout = 5 * time.Second
	DefaultNotifyTimeout  = 10 * time.Second
)

// Operation names used in logs and metrics.
const (
	OpRegister           = "register"
	OpVerifyEmail        = "verify_email"
	OpLogin              = "login"
	OpLogout             = "logout"
	OpForgotPassword     = "forgot_password"
	OpResetPassword      = "reset_password"
	OpCheckSession       = "check_session"
	OpResendVerification = "resend_verification"
)

// conflictRetries is how many times a lost optimistic-concurrency race is
// retried by operations that do not consume a token.
const conflictRetries = 3

// verificationDraws bounds how many codes are drawn before giving up on
// finding one no other account holds.
const verificationDraws = 5

// dummyPasswordHash is used when an account doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Deps are the collaborators a Service needs. All fields are required.
type Deps struct {
	Accounts account.Repository
	Hasher   *HashPool
	Tokens   *TokenIssuer
	Sessions *SessionIssuer
	Notifier Notifier
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithStorageTimeout bounds each repository call.
func WithStorageTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storageTimeout = d
		}
	}
}

// WithNotifyTimeout bounds each notifier call.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// WithResetURLBase sets the client URL reset links are built from:
// <base>/reset-password/<token>.
func WithResetURLBase(base string) Option {
	return func(s *Service) {
		s.resetURLBase = strings.TrimRight(base, "/")
	}
}

// Service drives accounts through registration, verification, login and
// password reset.
type Service struct {
	accounts account.Repository
	hasher   *HashPool
	tokens   *TokenIssuer
	sessions *SessionIssuer
	notifier Notifier

	logger         *slog.Logger
	metrics        Metrics
	now            func() time.Time
	storageTimeout time.Duration
	notifyTimeout  time.Duration
	resetURLBase   string
	conflictDelay  time.Duration
}

// NewService creates a Service.
func NewService(deps Deps, opts ...Option) (*Service, error) {
	switch {
	case deps.Accounts == nil:
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("account repository is required")
	case deps.Hasher == nil:
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("hasher is required")
	case deps.Tokens == nil:
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("token issuer is required")
	case deps.Sessions == nil:
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("session issuer is required")
	case deps.Notifier == nil:
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("notifier is required")
	}

	s := &Service{
		accounts:       deps.Accounts,
		hasher:         deps.Hasher,
		tokens:         deps.Tokens,
		sessions:       deps.Sessions,
		notifier:       deps.Notifier,
		logger:         slog.Default(),
		metrics:        noopMetrics{},
		now:            time.Now,
		storageTimeout: DefaultStorageTimeout,
		notifyTimeout:  DefaultNotifyTimeout,
		conflictDelay:  10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates an unverified account, signs the caller in and sends the
// verification code.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (result *RegisterResult, err error) {
	defer s.record(OpRegister, &err)

	if err := req.Validate(); err != nil {
		return nil, validationError(OpRegister, err)
	}

	email := account.NormalizeEmail(req.Email)
	if _, err := s.getByEmail(ctx, email); err == nil {
		return nil, oops.Code(CodeEmailTaken).With("operation", OpRegister).Errorf(msgEmailTaken)
	} else if !errors.Is(err, account.ErrNotFound) {
		return nil, s.storageFailure(OpRegister, "get account by email", err)
	}

	hash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}

	var (
		code IssuedToken
		acct *account.Account
	)
	for draw := 1; ; draw++ {
		code, err = s.issueVerification(ctx, OpRegister)
		if err != nil {
			return nil, err
		}

		acct, err = account.New(account.NewParams{
			Email:        email,
			Name:         req.Name,
			PasswordHash: hash,
			Verification: code.Pending(),
		}, s.now())
		if err != nil {
			return nil, oops.Code(CodeValidation).With("operation", OpRegister).Errorf("%s", err.Error())
		}

		err = s.save(ctx, acct)
		if err == nil {
			break
		}
		switch {
		case errors.Is(err, account.ErrVerificationTokenTaken) && draw < verificationDraws:
			continue
		case errors.Is(err, account.ErrConflict):
			return nil, oops.Code(CodeEmailTaken).With("operation", OpRegister).Errorf(msgEmailTaken)
		default:
			return nil, s.storageFailure(OpRegister, "save account", err)
		}
	}

	session, err := s.sessions.Issue(acct.ID)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "issue session").Wrap(err)
	}

	s.logger.Info("account registered", "operation", OpRegister, "account_id", acct.ID.String())

	note := s.notify(ctx, NotifyVerification, acct.ID, func(ctx context.Context) error {
		return s.notifier.SendVerification(ctx, acct.Email, code.Value)
	})

	return &RegisterResult{
		Account:      acct.View(),
		Session:      session,
		Notification: note,
	}, nil
}

// VerifyEmail marks the account holding code as verified and sends the
// welcome message. Wrong and expired codes fail identically.
func (s *Service) VerifyEmail(ctx context.Context, req VerifyEmailRequest) (result *VerifyEmailResult, err error) {
	defer s.record(OpVerifyEmail, &err)

	if err := req.Validate(); err != nil {
		return nil, validationError(OpVerifyEmail, err)
	}

	now := s.now()
	digest := DigestToken(strings.TrimSpace(req.Code))

	acct, err := s.withStorage(ctx, func(ctx context.Context) (*account.Account, error) {
		return s.accounts.GetByVerificationToken(ctx, digest, now)
	})
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, invalidCode()
		}
		return nil, s.storageFailure(OpVerifyEmail, "get account by verification token", err)
	}

	next, err := acct.VerifyEmail(digest, now)
	if err != nil {
		return nil, invalidCode()
	}

	if err := s.save(ctx, next); err != nil {
		if errors.Is(err, account.ErrConflict) {
			return nil, invalidCode()
		}
		return nil, s.storageFailure(OpVerifyEmail, "save account", err)
	}

	s.logger.Info("email verified", "operation", OpVerifyEmail, "account_id", next.ID.String())

	note := s.notify(ctx, NotifyWelcome, next.ID, func(ctx context.Context) error {
		return s.notifier.SendWelcome(ctx, next.Email, next.Name)
	})

	return &VerifyEmailResult{Account: next.View(), Notification: note}, nil
}

// Login checks the credential and issues a session. Unknown email and
// wrong password fail identically.
func (s *Service) Login(ctx context.Context, req LoginRequest) (result *LoginResult, err error) {
	defer s.record(OpLogin, &err)

	if err := req.Validate(); err != nil {
		return nil, validationError(OpLogin, err)
	}

	email := account.NormalizeEmail(req.Email)
	acct, lookupErr := s.getByEmail(ctx, email)

	// Determine which hash to verify against (real or dummy for timing attack prevention)
	var targetHash string
	switch {
	case lookupErr == nil:
		targetHash = acct.PasswordHash
	case errors.Is(lookupErr, account.ErrNotFound):
		targetHash = dummyPasswordHash
	default:
		return nil, s.storageFailure(OpLogin, "get account by email", lookupErr)
	}

	// Always verify password (constant-time operation for timing attack prevention)
	valid, verifyErr := s.hasher.Verify(ctx, req.Password, targetHash)
	if verifyErr != nil {
		if acct == nil {
			return nil, invalidCredentials()
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("account_id", acct.ID.String()).
			Wrap(verifyErr)
	}
	if acct == nil || !valid {
		return nil, invalidCredentials()
	}

	var upgraded string
	if s.hasher.NeedsUpgrade(acct.PasswordHash) {
		newHash, hashErr := s.hasher.Hash(ctx, req.Password)
		if hashErr != nil {
			errutil.LogWarn(s.logger, "best-effort password rehash failed", hashErr,
				"operation", "rehash_password",
				"account_id", acct.ID.String())
		} else {
			upgraded = newHash
		}
	}

	saved, err := s.mutate(ctx, acct, func(ctx context.Context) (*account.Account, error) {
		return s.getByID(ctx, acct.ID)
	}, func(a *account.Account) (*account.Account, error) {
		if a.PasswordHash != acct.PasswordHash {
			// Credential changed since it was verified; keep the new one.
			return a.RecordLogin(s.now(), ""), nil
		}
		return a.RecordLogin(s.now(), upgraded), nil
	})
	if err != nil {
		return nil, s.storageFailure(OpLogin, "record login", err)
	}

	session, err := s.sessions.Issue(saved.ID)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "issue session").Wrap(err)
	}

	s.logger.Info("login succeeded",
		"operation", OpLogin,
		"account_id", saved.ID.String(),
		"hash_upgraded", upgraded != "")

	return &LoginResult{Account: saved.View(), Session: session}, nil
}

// Logout tells the transport to discard the caller's session. Sessions are
// not tracked server-side, so nothing is revoked.
func (s *Service) Logout(_ context.Context) LogoutResult {
	s.metrics.RecordOperation(OpLogout, "success")
	return LogoutResult{ClearSession: true}
}

// ForgotPassword issues a reset token for the account and mails a link
// embedding it. Unknown emails fail with AUTH_NOT_FOUND.
func (s *Service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (result *ForgotPasswordResult, err error) {
	defer s.record(OpForgotPassword, &err)

	if err := req.Validate(); err != nil {
		return nil, validationError(OpForgotPassword, err)
	}

	email := account.NormalizeEmail(req.Email)
	acct, err := s.getByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, oops.Code(CodeNotFound).With("operation", OpForgotPassword).Errorf(msgNotFound)
		}
		return nil, s.storageFailure(OpForgotPassword, "get account by email", err)
	}

	token, err := s.tokens.IssueReset()
	if err != nil {
		return nil, oops.Code("AUTH_FORGOT_PASSWORD_FAILED").With("operation", "issue reset token").Wrap(err)
	}

	saved, err := s.mutate(ctx, acct, func(ctx context.Context) (*account.Account, error) {
		return s.getByID(ctx, acct.ID)
	}, func(a *account.Account) (*account.Account, error) {
		return a.RequestReset(token.Pending(), s.now())
	})
	if err != nil {
		return nil, s.storageFailure(OpForgotPassword, "save reset token", err)
	}

	s.logger.Info("password reset requested", "operation", OpForgotPassword, "account_id", saved.ID.String())

	note := s.notify(ctx, NotifyResetRequest, saved.ID, func(ctx context.Context) error {
		return s.notifier.SendResetRequest(ctx, saved.Email, s.resetURL(token.Value))
	})

	return &ForgotPasswordResult{ExpiresAt: token.ExpiresAt, Notification: note}, nil
}

// ResetPassword replaces the credential of the account holding the reset
// token. Each token succeeds at most once.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) (result *ResetPasswordResult, err error) {
	defer s.record(OpResetPassword, &err)

	if err := req.Validate(); err != nil {
		return nil, validationError(OpResetPassword, err)
	}

	now := s.now()
	digest := DigestToken(strings.TrimSpace(req.Token))

	acct, err := s.withStorage(ctx, func(ctx context.Context) (*account.Account, error) {
		return s.accounts.GetByResetToken(ctx, digest, now)
	})
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, invalidResetToken()
		}
		return nil, s.storageFailure(OpResetPassword, "get account by reset token", err)
	}

	hash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, oops.Code("AUTH_RESET_PASSWORD_FAILED").With("operation", "hash password").Wrap(err)
	}

	next, err := acct.CompleteReset(digest, hash, s.now())
	if err != nil {
		return nil, invalidResetToken()
	}

	if err := s.save(ctx, next); err != nil {
		if errors.Is(err, account.ErrConflict) {
			return nil, invalidResetToken()
		}
		return nil, s.storageFailure(OpResetPassword, "save account", err)
	}

	s.logger.Info("password reset completed", "operation", OpResetPassword, "account_id", next.ID.String())

	note := s.notify(ctx, NotifyResetSuccess, next.ID, func(ctx context.Context) error {
		return s.notifier.SendResetSuccess(ctx, next.Email)
	})

	return &ResetPasswordResult{Account: next.View(), Notification: note}, nil
}

// CheckSession resolves a session token to its account.
func (s *Service) CheckSession(ctx context.Context, token string) (result *CheckSessionResult, err error) {
	defer s.record(OpCheckSession, &err)

	id, err := s.sessions.Resolve(token)
	if err != nil {
		return nil, oops.Code(CodeSessionInvalid).With("operation", OpCheckSession).Errorf("invalid or expired session")
	}

	acct, err := s.getByID(ctx, id)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, oops.Code(CodeNotFound).With("operation", OpCheckSession).Errorf(msgNotFound)
		}
		return nil, s.storageFailure(OpCheckSession, "get account by id", err)
	}

	return &CheckSessionResult{Account: acct.View()}, nil
}

// ResendVerification replaces the outstanding verification code of an
// unverified account and sends the new one. Unknown and already verified
// emails get the same result without a message, so the response does not
// reveal whether an address is registered.
func (s *Service) ResendVerification(ctx context.Context, email string) (result *ResendVerificationResult, err error) {
	defer s.record(OpResendVerification, &err)

	if err := validateEmail(email); err != nil {
		return nil, validationError(OpResendVerification, err)
	}

	silent := &ResendVerificationResult{
		ExpiresAt:    s.now().Add(VerificationCodeExpiry),
		Notification: Notification{Kind: NotifyVerification},
	}

	acct, err := s.getByEmail(ctx, account.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			s.logger.Debug("verification resend for unknown email", "operation", OpResendVerification)
			return silent, nil
		}
		return nil, s.storageFailure(OpResendVerification, "get account by email", err)
	}
	if acct.Verified {
		s.logger.Debug("verification resend for verified account",
			"operation", OpResendVerification, "account_id", acct.ID.String())
		return silent, nil
	}

	var (
		code  IssuedToken
		saved *account.Account
	)
	id := acct.ID
	for draw := 1; ; draw++ {
		code, err = s.issueVerification(ctx, OpResendVerification)
		if err != nil {
			return nil, err
		}

		saved, err = s.mutate(ctx, acct, func(ctx context.Context) (*account.Account, error) {
			return s.getByID(ctx, id)
		}, func(a *account.Account) (*account.Account, error) {
			return a.ReissueVerification(code.Pending(), s.now())
		})
		if err == nil {
			break
		}
		switch {
		case errors.Is(err, account.ErrVerificationTokenTaken) && draw < verificationDraws:
			// Reload so the next draw applies to the stored version.
			acct = nil
			continue
		case errors.Is(err, account.ErrAlreadyVerified):
			// Verified between the lookup and the save.
			return silent, nil
		default:
			return nil, s.storageFailure(OpResendVerification, "save verification code", err)
		}
	}

	note := s.notify(ctx, NotifyVerification, saved.ID, func(ctx context.Context) error {
		return s.notifier.SendVerification(ctx, saved.Email, code.Value)
	})

	return &ResendVerificationResult{ExpiresAt: code.ExpiresAt, Notification: note}, nil
}

// issueVerification draws verification codes until one is not held by an
// account with an unexpired code. Expired holders are caught by the unique
// digest constraint at save time.
func (s *Service) issueVerification(ctx context.Context, operation string) (IssuedToken, error) {
	for draw := 0; draw < verificationDraws; draw++ {
		code, err := s.tokens.IssueVerification()
		if err != nil {
			return IssuedToken{}, oops.Code("AUTH_ISSUE_VERIFICATION_FAILED").
				With("operation", operation).
				Wrap(err)
		}

		_, err = s.withStorage(ctx, func(ctx context.Context) (*account.Account, error) {
			return s.accounts.GetByVerificationToken(ctx, code.Digest, s.now())
		})
		switch {
		case errors.Is(err, account.ErrNotFound):
			return code, nil
		case err != nil:
			return IssuedToken{}, s.storageFailure(operation, "check verification code", err)
		}
	}
	return IssuedToken{}, s.storageFailure(operation, "check verification code",
		oops.With("draws", verificationDraws).Errorf("no unused verification code found"))
}

func (s *Service) getByEmail(ctx context.Context, email string) (*account.Account, error) {
	return s.withStorage(ctx, func(ctx context.Context) (*account.Account, error) {
		return s.accounts.GetByEmail(ctx, email)
	})
}

func (s *Service) getByID(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	return s.withStorage(ctx, func(ctx context.Context) (*account.Account, error) {
		return s.accounts.GetByID(ctx, id)
	})
}

func (s *Service) withStorage(ctx context.Context, fn func(context.Context) (*account.Account, error)) (*account.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()
	return fn(ctx)
}

func (s *Service) save(ctx context.Context, acct *account.Account) error {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()
	return s.accounts.Save(ctx, acct)
}

// mutate applies change to acct and saves it. When the save loses a race
// the account is reloaded and the change reapplied.
func (s *Service) mutate(
	ctx context.Context,
	acct *account.Account,
	reload func(context.Context) (*account.Account, error),
	change func(*account.Account) (*account.Account, error),
) (*account.Account, error) {
	backoff := retry.WithMaxRetries(conflictRetries, retry.NewConstant(s.conflictDelay))

	current := acct
	var saved *account.Account
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if current == nil {
			reloaded, err := reload(ctx)
			if err != nil {
				return err
			}
			current = reloaded
		}

		next, err := change(current)
		if err != nil {
			return err
		}
		if err := s.save(ctx, next); err != nil {
			if errors.Is(err, account.ErrConflict) {
				current = nil
				return retry.RetryableError(err)
			}
			return err
		}
		saved = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// notify runs one delivery under the notify timeout. Failures are logged,
// counted and returned as a degraded Notification.
func (s *Service) notify(ctx context.Context, kind string, accountID ulid.ULID, send func(context.Context) error) Notification {
	// Delivery outlives a cancelled request; the state change is already saved.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	note := Notification{Kind: kind}
	if err := send(ctx); err != nil {
		note.Err = err
		s.metrics.RecordNotificationFailure(kind)
		errutil.LogWarn(s.logger, "best-effort notification failed", err,
			"operation", "notify_"+kind,
			"account_id", accountID.String())
	}
	return note
}

func (s *Service) storageFailure(operation, step string, err error) error {
	errutil.LogError(s.logger, "account storage failed", oops.
		With("operation", operation).
		With("step", step).
		Wrap(err))
	return oops.Code(CodeStorageFailed).With("operation", operation).Errorf(msgStorageFailure)
}

func (s *Service) resetURL(token string) string {
	return s.resetURLBase + "/reset-password/" + url.PathEscape(token)
}

func (s *Service) record(operation string, errp *error) {
	outcome := "success"
	if *errp != nil {
		outcome = KindOf(*errp).String()
	}
	s.metrics.RecordOperation(operation, outcome)
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf(msgInvalidCredentials)
}

func invalidCode() error {
	return oops.Code(CodeInvalidToken).With("token", "verification").Errorf(msgInvalidCode)
}

func invalidResetToken() error {
	return oops.Code(CodeInvalidToken).With("token", "reset").Errorf(msgInvalidResetToken)
}
