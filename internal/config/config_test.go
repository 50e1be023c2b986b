package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every key Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_DSN", "AUTO_MIGRATE", "JWT_SECRET", "JWT_ALGORITHM",
		"ACCESS_TOKEN_EXPIRE_MINUTES", "REQUIRE_VERIFIED_EMAIL", "DOMAIN", "LINK_SCHEME",
		"MAIL_HOST", "MAIL_PORT", "MAIL_USERNAME", "MAIL_PASSWORD", "MAIL_FROM", "MAIL_SSL",
		"STORAGE_BACKEND", "STORAGE_DIR", "S3_BUCKET", "S3_REGION", "S3_ENDPOINT",
		"S3_ACCESS_KEY", "S3_SECRET_KEY", "MAX_UPLOAD_MB", "AUTH_RATE_RPS", "AUTH_RATE_BURST",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "HS256", cfg.JWTAlgorithm)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.True(t, cfg.RequireVerifiedEmail)
	assert.Equal(t, "disk", cfg.Storage.Backend)
	assert.Equal(t, int64(100<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 465, cfg.Mail.Port)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL())
}

func TestLoad_MissingSecretIsFatal(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET must be set")
}

func TestLoad_DevSecretRejectedInProduction(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", devSecret)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "production")
}

func TestLoad_MailHostRequiredInProduction(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "s3cret")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAIL_HOST")

	t.Setenv("MAIL_HOST", "smtp.example.com")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_ALGORITHM", "HS512")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "5")
	t.Setenv("REQUIRE_VERIFIED_EMAIL", "false")
	t.Setenv("DOMAIN", "files.example.com")
	t.Setenv("LINK_SCHEME", "https")
	t.Setenv("STORAGE_BACKEND", "S3")
	t.Setenv("S3_BUCKET", "uploads")
	t.Setenv("MAX_UPLOAD_MB", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "HS512", cfg.JWTAlgorithm)
	assert.Equal(t, 5*time.Minute, cfg.TokenTTL)
	assert.False(t, cfg.RequireVerifiedEmail)
	assert.Equal(t, "https://files.example.com", cfg.BaseURL())
	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.Equal(t, int64(2<<20), cfg.MaxUploadBytes)
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_ALGORITHM", "RS256")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "soon")
	t.Setenv("STORAGE_BACKEND", "s3")
	t.Setenv("S3_BUCKET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_ALGORITHM")
	assert.Contains(t, err.Error(), "ACCESS_TOKEN_EXPIRE_MINUTES")
	assert.Contains(t, err.Error(), "S3_BUCKET")
}
