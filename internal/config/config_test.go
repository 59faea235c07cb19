package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, int64(3900), c.ProPrice)
	assert.Equal(t, 10, c.ProMonthlyTests)
	assert.Equal(t, 3, c.FreeSignupTests)
	assert.Equal(t, 90*time.Second, c.AITimeout)
	assert.Equal(t, "https://api.tosspayments.com/v1", c.TossBaseURL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PRO_PRICE", "4900")
	t.Setenv("AI_TIMEOUT", "30s")
	t.Setenv("BILLING_CRON_ENABLED", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example.com,https://b.example.com")
	t.Setenv("CLERK_ISSUER", "https://clerk.example.com/")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", c.Port)
	assert.Equal(t, int64(4900), c.ProPrice)
	assert.Equal(t, 30*time.Second, c.AITimeout)
	assert.True(t, c.BillingCronEnabled)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, c.CORSOrigins)
	assert.Equal(t, "https://clerk.example.com/.well-known/jwks.json", c.ClerkJWKSURL)
}

func TestLocationFallsBackToFixedOffset(t *testing.T) {
	c := Config{BillingTimezone: "Not/AZone"}
	_, offset := time.Date(2025, 1, 1, 0, 0, 0, 0, c.Location()).Zone()
	assert.Equal(t, 9*3600, offset)
}
