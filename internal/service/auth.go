package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/filekeep/filekeep-go/internal/crypto"
	"github.com/filekeep/filekeep-go/internal/metrics"
	"github.com/filekeep/filekeep-go/internal/model"
	"github.com/filekeep/filekeep-go/internal/repository"
)

var (
	ErrFirstNameRequired  = errors.New("first_name is required")
	ErrLastNameRequired   = errors.New("last_name is required")
	ErrEmailRequired      = errors.New("email is required")
	ErrPasswordRequired   = errors.New("password is required")
	ErrTokenRequired      = errors.New("token is required")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email address is not verified")
	ErrUserNotFound       = errors.New("user not found")
	ErrTokenInvalid       = errors.New("invalid or expired token")
	ErrTokenAlreadyUsed   = errors.New("reset token already used or invalid")
	ErrUnauthenticated    = errors.New("could not validate credentials")
)

const (
	verifyPath = "/auth/verify"
	resetPath  = "/auth/reset-password"
)

// UserStore is the user directory the auth workflows run against.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	MarkVerified(ctx context.Context, id int64) (bool, error)
	SetResetToken(ctx context.Context, id int64, token string, expires time.Time) error
	ResetPassword(ctx context.Context, id int64, token, hashedPassword string) error
}

// Notifier delivers the links issued by the auth workflows.
type Notifier interface {
	SendVerification(ctx context.Context, to, name, link string) error
	SendPasswordReset(ctx context.Context, to, link string) error
}

// AuthOptions holds the configuration the auth workflows need.
type AuthOptions struct {
	// BaseURL is the public origin, e.g. https://files.example.com.
	BaseURL              string
	RequireVerifiedEmail bool
}

// AuthService handles authentication business logic.
type AuthService struct {
	users    UserStore
	hasher   *crypto.Hasher
	tokens   *crypto.TokenService
	notifier Notifier
	opts     AuthOptions

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserStore, hasher *crypto.Hasher, tokens *crypto.TokenService, notifier Notifier, opts AuthOptions) *AuthService {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &AuthService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		opts:     opts,
	}
}

// Register creates an unverified account and mails a verification link.
// The account is kept even if the email cannot be sent.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (resp model.RegisterResponse, err error) {
	defer func() { countAuth("register", err) }()

	if err := validateRegister(req); err != nil {
		return model.RegisterResponse{}, err
	}

	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return model.RegisterResponse{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return model.RegisterResponse{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return model.RegisterResponse{}, err
	}

	user := &model.User{
		FirstName:      strings.TrimSpace(req.FirstName),
		MiddleName:     trimOptional(req.MiddleName),
		LastName:       strings.TrimSpace(req.LastName),
		Email:          req.Email,
		HashedPassword: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return model.RegisterResponse{}, ErrEmailTaken
		}
		return model.RegisterResponse{}, fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.IssueEmailToken(user.Email)
	if err != nil {
		return model.RegisterResponse{}, err
	}

	sent := true
	if err := s.notifier.SendVerification(ctx, user.Email, user.FirstName, s.link(verifyPath, token)); err != nil {
		slog.ErrorContext(ctx, "verification email failed", "user_id", user.ID, "error", err)
		sent = false
	}

	slog.InfoContext(ctx, "user registered", "user_id", user.ID)

	return model.RegisterResponse{
		Message:   "Account created. Check your email to verify your address.",
		EmailSent: sent,
	}, nil
}

// Login checks the credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (resp model.TokenResponse, err error) {
	defer func() { countAuth("login", err) }()

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Spend the same hashing work as for a real account.
			s.hasher.Verify(password, s.dummy())
			return model.TokenResponse{}, ErrInvalidCredentials
		}
		return model.TokenResponse{}, fmt.Errorf("lookup user: %w", err)
	}

	match, err := s.hasher.Verify(password, user.HashedPassword)
	if err != nil {
		return model.TokenResponse{}, err
	}
	if !match {
		return model.TokenResponse{}, ErrInvalidCredentials
	}

	if s.opts.RequireVerifiedEmail && !user.IsVerified {
		return model.TokenResponse{}, ErrEmailNotVerified
	}

	token, err := s.tokens.IssueSession(user.Email, user.ID)
	if err != nil {
		return model.TokenResponse{}, err
	}

	return model.TokenResponse{AccessToken: token, TokenType: "bearer"}, nil
}

// VerifyEmail marks the token's user as verified. Bad tokens and unknown
// users are outcomes, not errors; only storage failures return an error.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (status model.VerifyStatus, err error) {
	defer func() {
		result := metrics.ResultOK
		if err != nil || status == model.VerifyInvalid || status == model.VerifyUserNotFound {
			result = metrics.ResultError
		}
		metrics.AuthEvents.WithLabelValues("verify", result).Inc()
	}()

	claims, err := s.tokens.Validate(token)
	// session tokens carry a user id and cannot verify an address
	if err != nil || claims.UserID != nil {
		return model.VerifyInvalid, nil
	}

	user, err := s.users.GetByEmail(ctx, claims.Email())
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.VerifyUserNotFound, nil
		}
		return model.VerifyInvalid, fmt.Errorf("lookup user: %w", err)
	}

	if user.IsVerified {
		return model.VerifyAlreadyVerified, nil
	}

	changed, err := s.users.MarkVerified(ctx, user.ID)
	if err != nil {
		return model.VerifyInvalid, fmt.Errorf("mark verified: %w", err)
	}
	if !changed {
		return model.VerifyAlreadyVerified, nil
	}

	slog.InfoContext(ctx, "email verified", "user_id", user.ID)
	return model.VerifySucceeded, nil
}

// RequestPasswordReset stores a fresh reset token on the user, replacing
// any earlier one, and mails the reset link. The token is never returned.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (resp model.PasswordResetResponse, err error) {
	defer func() { countAuth("reset_request", err) }()

	if strings.TrimSpace(email) == "" {
		return model.PasswordResetResponse{}, ErrEmailRequired
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.PasswordResetResponse{}, ErrUserNotFound
		}
		return model.PasswordResetResponse{}, fmt.Errorf("lookup user: %w", err)
	}

	token, err := s.tokens.IssueEmailToken(user.Email)
	if err != nil {
		return model.PasswordResetResponse{}, err
	}

	expires := s.tokens.Now().Add(s.tokens.TTL())
	if err := s.users.SetResetToken(ctx, user.ID, token, expires); err != nil {
		return model.PasswordResetResponse{}, fmt.Errorf("store reset token: %w", err)
	}

	sent := true
	if err := s.notifier.SendPasswordReset(ctx, user.Email, s.link(resetPath, token)); err != nil {
		slog.ErrorContext(ctx, "password reset email failed", "user_id", user.ID, "error", err)
		sent = false
	}

	return model.PasswordResetResponse{
		Message:   "Password reset email sent.",
		EmailSent: sent,
	}, nil
}

// ConfirmPasswordReset sets a new password if token is the reset token
// currently stored for its user, and clears the stored token.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, req model.ConfirmPasswordResetRequest) (err error) {
	defer func() { countAuth("reset_confirm", err) }()

	if req.Token == "" {
		return ErrTokenRequired
	}
	if req.NewPassword != req.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if err := crypto.CheckPasswordPolicy(req.NewPassword); err != nil {
		return err
	}

	claims, err := s.tokens.Validate(req.Token)
	if err != nil {
		return ErrTokenInvalid
	}

	user, err := s.users.GetByEmail(ctx, claims.Email())
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if user.PasswordResetToken == nil ||
		subtle.ConstantTimeCompare([]byte(*user.PasswordResetToken), []byte(req.Token)) != 1 {
		return ErrTokenAlreadyUsed
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return err
	}

	if err := s.users.ResetPassword(ctx, user.ID, req.Token, hash); err != nil {
		if errors.Is(err, repository.ErrResetTokenMismatch) {
			return ErrTokenAlreadyUsed
		}
		return fmt.Errorf("reset password: %w", err)
	}

	slog.InfoContext(ctx, "password reset", "user_id", user.ID)
	return nil
}

// Authenticate resolves a bearer session token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.tokens.ValidateSession(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	user, err := s.users.GetByID(ctx, *claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	return user, nil
}

func (s *AuthService) link(path, token string) string {
	return s.opts.BaseURL + path + "?token=" + url.QueryEscape(token)
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("filekeep-dummy-password")
	})
	return s.dummyHash
}

func validateRegister(req model.RegisterRequest) error {
	switch {
	case strings.TrimSpace(req.FirstName) == "":
		return ErrFirstNameRequired
	case strings.TrimSpace(req.LastName) == "":
		return ErrLastNameRequired
	case strings.TrimSpace(req.Email) == "":
		return ErrEmailRequired
	case req.Password == "":
		return ErrPasswordRequired
	case req.Password != req.ConfirmPassword:
		return ErrPasswordMismatch
	}
	return crypto.CheckPasswordPolicy(req.Password)
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func countAuth(event string, err error) {
	metrics.AuthEvents.WithLabelValues(event, metrics.Result(err)).Inc()
}
