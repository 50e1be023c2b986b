package crypto

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func newTestTokenService(t *testing.T, clock *fakeClock) *TokenService {
	t.Helper()
	svc, err := NewTokenService("test-secret", "HS256", 30*time.Minute, WithClock(clock.Now))
	require.NoError(t, err)
	return svc
}

func TestNewTokenService_Config(t *testing.T) {
	_, err := NewTokenService("", "HS256", time.Minute)
	assert.ErrorIs(t, err, ErrMissingSecret)

	_, err = NewTokenService("secret", "RS256", time.Minute)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	_, err = NewTokenService("secret", "none", time.Minute)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	svc, err := NewTokenService("secret", "HS512", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, svc.TTL())
}

func TestSessionToken_RoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	svc := newTestTokenService(t, clock)

	token, err := svc.IssueSession("ann@example.com", 42)
	require.NoError(t, err)

	claims, err := svc.ValidateSession(token)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", claims.Email())
	require.NotNil(t, claims.UserID)
	assert.Equal(t, int64(42), *claims.UserID)
}

func TestSessionToken_ExpiresAfterTTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	svc := newTestTokenService(t, clock)

	token, err := svc.IssueSession("ann@example.com", 42)
	require.NoError(t, err)

	clock.t = clock.t.Add(29 * time.Minute)
	_, err = svc.ValidateSession(token)
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * time.Minute)
	_, err = svc.ValidateSession(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNow_UsesInjectedClock(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	svc := newTestTokenService(t, clock)
	assert.Equal(t, clock.t, svc.Now())

	token, err := svc.IssueEmailToken("ann@example.com")
	require.NoError(t, err)
	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.True(t, svc.Now().Add(svc.TTL()).Equal(claims.ExpiresAt.Time))
}

func TestEmailToken_HasNoUserID(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc := newTestTokenService(t, clock)

	token, err := svc.IssueEmailToken("ann@example.com")
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", claims.Email())
	assert.Nil(t, claims.UserID)

	_, err = svc.ValidateSession(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokens_AreUniquePerIssue(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc := newTestTokenService(t, clock)

	a, err := svc.IssueEmailToken("ann@example.com")
	require.NoError(t, err)
	b, err := svc.IssueEmailToken("ann@example.com")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestValidate_Rejects(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc := newTestTokenService(t, clock)

	other, err := NewTokenService("other-secret", "HS256", time.Hour, WithClock(clock.Now))
	require.NoError(t, err)
	forged, err := other.IssueSession("ann@example.com", 1)
	require.NoError(t, err)

	hs512, err := NewTokenService("test-secret", "HS512", time.Hour, WithClock(clock.Now))
	require.NoError(t, err)
	wrongAlg, err := hs512.IssueSession("ann@example.com", 1)
	require.NoError(t, err)

	sign := func(claims Claims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		return s
	}
	base := func() jwt.RegisteredClaims {
		return jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   "ann@example.com",
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(clock.t),
		}
	}

	wrongIssuer := base()
	wrongIssuer.Issuer = "someone-else"
	wrongAudience := base()
	wrongAudience.Audience = jwt.ClaimStrings{"other-api"}
	noSubject := base()
	noSubject.Subject = ""
	noExpiry := base()
	noExpiry.ExpiresAt = nil

	cases := map[string]string{
		"garbage":        "not-a-valid-token",
		"empty":          "",
		"wrong secret":   forged,
		"wrong alg":      wrongAlg,
		"wrong issuer":   sign(Claims{RegisteredClaims: wrongIssuer}),
		"wrong audience": sign(Claims{RegisteredClaims: wrongAudience}),
		"no subject":     sign(Claims{RegisteredClaims: noSubject}),
		"no expiry":      sign(Claims{RegisteredClaims: noExpiry}),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Validate(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
