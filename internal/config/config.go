package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	// "json" or "text"
	LogFormat   string   `mapstructure:"log_format"`
	CORSOrigins []string `mapstructure:"cors_origins"`

	PostgresURL string `mapstructure:"postgres_url"`
	RedisURL    string `mapstructure:"redis_url"`

	TossSecretKey string `mapstructure:"toss_secret_key"`
	TossBaseURL   string `mapstructure:"toss_base_url"`

	ProPrice        int64 `mapstructure:"pro_price"`
	ProMonthlyTests int   `mapstructure:"pro_monthly_tests"`
	FreeSignupTests int   `mapstructure:"free_signup_tests"`

	GeminiAPIKey    string        `mapstructure:"gemini_api_key"`
	GeminiModelPro  string        `mapstructure:"gemini_model_pro"`
	GeminiModelFree string        `mapstructure:"gemini_model_free"`
	OpenAIAPIKey    string        `mapstructure:"openai_api_key"`
	OpenAIModel     string        `mapstructure:"openai_model"`
	AITimeout       time.Duration `mapstructure:"ai_timeout"`

	ClerkIssuer        string `mapstructure:"clerk_issuer"`
	ClerkJWKSURL       string `mapstructure:"clerk_jwks_url"`
	ClerkSecretKey     string `mapstructure:"clerk_secret_key"`
	ClerkAPIURL        string `mapstructure:"clerk_api_url"`
	ClerkWebhookSecret string `mapstructure:"clerk_webhook_secret"`

	CronSecret          string `mapstructure:"cron_secret"`
	BillingCronEnabled  bool   `mapstructure:"billing_cron_enabled"`
	BillingCronSchedule string `mapstructure:"billing_cron_schedule"`
	BillingTimezone     string `mapstructure:"billing_timezone"`

	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUsername string `mapstructure:"smtp_username"`
	SMTPPassword string `mapstructure:"smtp_password"`
	SMTPFrom     string `mapstructure:"smtp_from"`
	AppBaseURL   string `mapstructure:"app_base_url"`
}

var defaults = map[string]any{
	"port":         "8080",
	"log_level":    "info",
	"log_format":   "json",
	"cors_origins": []string{"http://localhost:3000"},

	"postgres_url": "",
	"redis_url":    "",

	"toss_secret_key": "",
	"toss_base_url":   "https://api.tosspayments.com/v1",

	"pro_price":         3900,
	"pro_monthly_tests": 10,
	"free_signup_tests": 3,

	"gemini_api_key":    "",
	"gemini_model_pro":  "gemini-2.5-pro",
	"gemini_model_free": "gemini-2.5-flash",
	"openai_api_key":    "",
	"openai_model":      "gpt-4.1-mini",
	"ai_timeout":        "90s",

	"clerk_issuer":         "",
	"clerk_jwks_url":       "",
	"clerk_secret_key":     "",
	"clerk_api_url":        "https://api.clerk.com/v1",
	"clerk_webhook_secret": "",

	"cron_secret":           "",
	"billing_cron_enabled":  false,
	"billing_cron_schedule": "0 0 * * *",
	"billing_timezone":      "Asia/Seoul",

	"smtp_host":     "",
	"smtp_port":     587,
	"smtp_username": "",
	"smtp_password": "",
	"smtp_from":     "",
	"app_base_url":  "http://localhost:3000",
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	if c.ClerkJWKSURL == "" && c.ClerkIssuer != "" {
		c.ClerkJWKSURL = strings.TrimRight(c.ClerkIssuer, "/") + "/.well-known/jwks.json"
	}
	return c, nil
}

// Location returns the billing calendar zone, falling back to a fixed KST offset.
func (c Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.BillingTimezone); err == nil {
		return loc
	}
	return time.FixedZone("KST", 9*3600)
}
