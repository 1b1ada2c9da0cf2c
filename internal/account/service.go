// Package account runs the OTP-gated signup, login and password reset
// flows. Unverified signups live only in the pending cache; a user row is
// written when the emailed code is confirmed.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"echobox/internal/apperr"
	"echobox/internal/auth"
	"echobox/internal/constants"
	"echobox/internal/db"
	"echobox/internal/models"
	"echobox/internal/pending"
)

const usernameAttempts = 5

const (
	msgOTPExpired      = "OTP expired or invalid."
	msgOTPInvalid      = "Invalid OTP."
	msgCorruptSignup   = "Invalid OTP data. Please sign up again."
	msgCorruptReset    = "Invalid OTP data. Please request a new code."
	msgEmailFailed     = "Failed to send OTP email. Please try again."
	msgInvalidLogin    = "Invalid credentials."
	msgUnverifiedLogin = "Please verify your email first. An OTP was sent to you on signup."
	msgUserNotFound    = "User not found."
)

// Mailer delivers one-time codes. email.OTPMailer is the production
// implementation.
type Mailer interface {
	SendSignupOTP(ctx context.Context, to, username, code string) error
	SendResetOTP(ctx context.Context, to, code string) error
}

type Service struct {
	users   *db.UserRepository
	pending *pending.Store
	mailer  Mailer
	tokens  *auth.JWTService
	otpTTL  time.Duration
	now     func() time.Time
}

func NewService(users *db.UserRepository, pendingStore *pending.Store, mailer Mailer, tokens *auth.JWTService, otpTTL time.Duration) *Service {
	return &Service{
		users:   users,
		pending: pendingStore,
		mailer:  mailer,
		tokens:  tokens,
		otpTTL:  otpTTL,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type SignupResult struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

type AuthResult struct {
	Token string             `json:"token"`
	User  models.UserSummary `json:"user"`
}

// Registration reports where email sits in the signup lifecycle. It returns
// nil when there is neither a user nor a live candidate.
func (s *Service) Registration(ctx context.Context, email string) (RegistrationState, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return Committed{User: user}, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, apperr.Internal(err)
	}

	candidate, err := s.pending.GetCandidate(ctx, email)
	switch {
	case err == nil:
		return Candidate{Candidate: *candidate}, nil
	case errors.Is(err, pending.ErrNotFound), errors.Is(err, pending.ErrCorrupt):
		return nil, nil
	default:
		return nil, apperr.Internal(err)
	}
}

// RequestSignup stages a candidate and emails its code. A repeated request
// for the same email overwrites the staged candidate.
func (s *Service) RequestSignup(ctx context.Context, email, password string) (*SignupResult, error) {
	email = db.NormalizeEmail(email)

	state, err := s.Registration(ctx, email)
	if err != nil {
		return nil, err
	}
	if _, ok := state.(Committed); ok {
		return nil, apperr.New(apperr.KindConflict, "Email already in use.")
	}

	username, err := s.freeUsername(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	otp, err := auth.GenerateOTP()
	if err != nil {
		return nil, apperr.Internal(err)
	}

	candidate := pending.Candidate{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		OTP:          otp,
		CreatedAt:    s.now(),
	}
	if err := s.pending.PutCandidate(ctx, candidate, s.otpTTL); err != nil {
		return nil, apperr.Internal(fmt.Errorf("staging signup: %w", err))
	}

	if err := s.mailer.SendSignupOTP(ctx, email, username, otp); err != nil {
		if delErr := s.pending.DeleteCandidate(ctx, email); delErr != nil {
			slog.Error("failed to roll back signup candidate", "component", "account", "email", email, "error", delErr)
		}
		return nil, apperr.Wrap(apperr.KindEmailDeliveryFailed, msgEmailFailed, err)
	}

	return &SignupResult{Email: email, Username: username}, nil
}

// ResendSignupOtp mails a fresh code and only then replaces the staged one,
// keeping the remaining TTL.
func (s *Service) ResendSignupOtp(ctx context.Context, email string) (string, error) {
	email = db.NormalizeEmail(email)

	candidate, err := s.loadCandidate(ctx, email)
	if err != nil {
		return "", err
	}

	otp, err := auth.GenerateOTP()
	if err != nil {
		return "", apperr.Internal(err)
	}
	if err := s.mailer.SendSignupOTP(ctx, email, candidate.Username, otp); err != nil {
		return "", apperr.Wrap(apperr.KindEmailDeliveryFailed, msgEmailFailed, err)
	}

	if err := s.pending.ReplaceCandidateOTP(ctx, candidate.Candidate, otp, s.otpTTL); err != nil {
		return "", apperr.Internal(fmt.Errorf("replacing otp: %w", err))
	}
	return email, nil
}

// VerifySignupOtp commits the candidate as a verified user and signs it in.
func (s *Service) VerifySignupOtp(ctx context.Context, email, otp string) (*AuthResult, error) {
	email = db.NormalizeEmail(email)

	candidate, err := s.loadCandidate(ctx, email)
	if err != nil {
		return nil, err
	}
	if candidate.OTP != otp {
		return nil, apperr.New(apperr.KindInvalidOtp, msgOTPInvalid)
	}

	committed, err := s.commit(ctx, candidate)
	if err != nil {
		return nil, err
	}

	if err := s.pending.DeleteCandidate(ctx, email); err != nil {
		slog.Warn("failed to delete verified candidate", "component", "account", "email", email, "error", err)
	}

	return s.signIn(committed.User)
}

// commit writes the candidate to the user store. A username taken since the
// candidate was staged is replaced with a fresh one.
func (s *Service) commit(ctx context.Context, c Candidate) (*Committed, error) {
	avatar, err := auth.RandomAvatarURL()
	if err != nil {
		return nil, apperr.Internal(err)
	}

	username := c.Username
	for attempt := 0; attempt < usernameAttempts; attempt++ {
		user, err := s.users.Create(ctx, db.CreateUserParams{
			Email:        c.Email,
			Username:     username,
			PasswordHash: c.PasswordHash,
			AvatarURL:    &avatar,
			IsVerified:   true,
		})
		switch {
		case err == nil:
			return &Committed{User: user}, nil
		case errors.Is(err, db.ErrDuplicateEmail):
			if delErr := s.pending.DeleteCandidate(ctx, c.Email); delErr != nil {
				slog.Warn("failed to delete stale candidate", "component", "account", "email", c.Email, "error", delErr)
			}
			return nil, apperr.New(apperr.KindConflict, "User already registered.")
		case errors.Is(err, db.ErrDuplicateUsername):
			username, err = auth.GenerateUsername()
			if err != nil {
				return nil, apperr.Internal(err)
			}
		default:
			return nil, apperr.Internal(fmt.Errorf("committing user: %w", err))
		}
	}

	return nil, apperr.Internal(fmt.Errorf("no free username after %d attempts", usernameAttempts))
}

func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.New(apperr.KindUnauthorized, msgInvalidLogin)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	ok, err := auth.CheckPassword(user.PasswordHash, password)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !ok {
		return nil, apperr.New(apperr.KindUnauthorized, msgInvalidLogin)
	}
	if !user.IsVerified {
		return nil, apperr.New(apperr.KindUnauthorized, msgUnverifiedLogin)
	}

	return s.signIn(user)
}

func (s *Service) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, msgUserNotFound)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return user, nil
}

// RequestPasswordReset stores a reset code and emails it. The entry stays
// written even when delivery fails.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = db.NormalizeEmail(email)

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return "", apperr.Internal(err)
	}
	if !exists {
		return "", apperr.New(apperr.KindNotFound, msgUserNotFound)
	}

	otp, err := auth.GenerateOTP()
	if err != nil {
		return "", apperr.Internal(err)
	}
	if err := s.pending.PutReset(ctx, pending.ResetRequest{Email: email, OTP: otp, CreatedAt: s.now()}, s.otpTTL); err != nil {
		return "", apperr.Internal(fmt.Errorf("staging reset: %w", err))
	}

	if err := s.mailer.SendResetOTP(ctx, email, otp); err != nil {
		return "", apperr.Wrap(apperr.KindEmailDeliveryFailed, msgEmailFailed, err)
	}
	return email, nil
}

// VerifyResetOtp only checks the code. It does not consume it.
func (s *Service) VerifyResetOtp(ctx context.Context, email, otp string) error {
	reset, err := s.pending.GetReset(ctx, email)
	switch {
	case errors.Is(err, pending.ErrNotFound):
		return apperr.New(apperr.KindExpired, msgOTPExpired)
	case errors.Is(err, pending.ErrCorrupt):
		return apperr.New(apperr.KindCorrupt, msgCorruptReset)
	case err != nil:
		return apperr.Internal(err)
	}

	if reset.OTP != otp {
		return apperr.New(apperr.KindInvalidOtp, msgOTPInvalid)
	}
	return nil
}

// ResetPassword stores a new hash. Tokens issued before the reset stay valid.
func (s *Service) ResetPassword(ctx context.Context, email, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return apperr.New(apperr.KindMismatch, "Passwords do not match.")
	}
	if len(newPassword) < constants.MinPasswordLength {
		return apperr.New(apperr.KindTooShort,
			fmt.Sprintf("Password must be at least %d characters.", constants.MinPasswordLength))
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return apperr.New(apperr.KindNotFound, msgUserNotFound)
	}
	if err != nil {
		return apperr.Internal(err)
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return apperr.Internal(err)
	}

	if err := s.pending.DeleteReset(ctx, user.Email); err != nil {
		slog.Warn("failed to delete reset entry", "component", "account", "email", user.Email, "error", err)
	}
	return nil
}

func (s *Service) loadCandidate(ctx context.Context, email string) (Candidate, error) {
	c, err := s.pending.GetCandidate(ctx, email)
	switch {
	case errors.Is(err, pending.ErrNotFound):
		return Candidate{}, apperr.New(apperr.KindExpired, msgOTPExpired)
	case errors.Is(err, pending.ErrCorrupt):
		return Candidate{}, apperr.New(apperr.KindCorrupt, msgCorruptSignup)
	case err != nil:
		return Candidate{}, apperr.Internal(err)
	}
	return Candidate{Candidate: *c}, nil
}

func (s *Service) freeUsername(ctx context.Context) (string, error) {
	for attempt := 0; attempt < usernameAttempts; attempt++ {
		username, err := auth.GenerateUsername()
		if err != nil {
			return "", err
		}
		available, err := s.users.IsUsernameAvailable(ctx, username)
		if err != nil {
			return "", err
		}
		if available {
			return username, nil
		}
	}
	return "", fmt.Errorf("no free username after %d attempts", usernameAttempts)
}

func (s *Service) signIn(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.IssueToken(user.ID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("issuing token: %w", err))
	}
	return &AuthResult{Token: token, User: user.Summary()}, nil
}
