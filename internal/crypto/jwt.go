package crypto

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken         = errors.New("invalid or expired token")
	ErrMissingSecret        = errors.New("token signing secret is not configured")
	ErrUnsupportedAlgorithm = errors.New("unsupported token signing algorithm")
)

const (
	tokenIssuer   = "filekeep"
	tokenAudience = "filekeep-api"
)

// Claims is the payload of every token the service issues. Sessions carry
// the user id; verification and reset tokens carry only the email subject.
type Claims struct {
	jwt.RegisteredClaims
	UserID *int64 `json:"id,omitempty"`
}

// Email returns the subject email address.
func (c *Claims) Email() string {
	return c.Subject
}

// TokenService issues and validates signed, time-limited tokens with one
// process-wide secret. It never touches storage.
type TokenService struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithClock replaces the wall clock used for issuing and validating tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		s.now = now
	}
}

// NewTokenService creates a TokenService signing with the named HMAC
// algorithm (HS256, HS384 or HS512).
func NewTokenService(secret, algorithm string, ttl time.Duration, opts ...TokenOption) (*TokenService, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}

	method := jwt.GetSigningMethod(algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}

	s := &TokenService{
		secret: []byte(secret),
		method: method,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// TTL returns the lifetime given to every issued token.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Now returns the service clock used for iat and exp.
func (s *TokenService) Now() time.Time {
	return s.now()
}

// IssueSession creates a session token bound to the user's email and id.
func (s *TokenService) IssueSession(email string, userID int64) (string, error) {
	return s.issue(email, &userID)
}

// IssueEmailToken creates an email-only token used for verification links
// and password resets. It is rejected by ValidateSession.
func (s *TokenService) IssueEmailToken(email string) (string, error) {
	return s.issue(email, nil)
}

func (s *TokenService) issue(email string, userID *int64) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   email,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: userID,
	}

	return jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
}

// Validate verifies the signature, expiry, issuer and audience of a token
// and returns its claims. Every failure is reported as ErrInvalidToken.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ValidateSession is Validate plus the requirement that the user id claim
// is present, which keeps email-only tokens out of authenticated routes.
func (s *TokenService) ValidateSession(tokenString string) (*Claims, error) {
	claims, err := s.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.UserID == nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
