package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	// this will automatically load your .env file:
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	App    AppConfig
	Logs   LogConfig
	DB     PostgresConfig
	Redis  RedisConfig
	Stripe StripeConfig
	Auth   AuthConfig
	AI     AIConfig
	AWS    AWSConfig
}

type AppConfig struct {
	Env         string
	Port        string `validate:"required,numeric"`
	CORSOrigins []string
}

type LogConfig struct {
	Format string `validate:"oneof=json text"`
	Level  string `validate:"oneof=trace debug info warn warning error"`
}

type PostgresConfig struct {
	Username     string
	Password     string
	URL          string
	Port         string
	Name         string
	SSLMode      string `validate:"oneof=disable require verify-ca verify-full"`
	MaxOpenConns int    `validate:"min=1"`
	MaxIdleConns int    `validate:"min=0"`
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int `validate:"min=0"`
	StatusTTL time.Duration
}

type StripeConfig struct {
	SecretKey      string
	WebhookSecret  string
	PriceIDMonthly string
	PriceIDAnnual  string
	FrontendURL    string `validate:"omitempty,url"`
}

type AuthConfig struct {
	Mode        string `validate:"oneof=jwt remote"`
	SupabaseURL string `validate:"omitempty,url"`
	AnonKey     string
	JWTSecret   string
	Audience    string
	Disabled    bool
}

type AIConfig struct {
	OpenAIKey     string
	BaseURL       string `validate:"omitempty,url"`
	TextModel     string
	ImageModel    string
	ImageSize     string `validate:"oneof=256x256 512x512 1024x1024 1792x1024 1024x1792"`
	MaxInputChars int    `validate:"min=1"`
	Timeout       time.Duration
}

type AWSConfig struct {
	QueueURL           string
	ImageBucket        string
	PublicImageBaseURL string `validate:"omitempty,url"`
	ImageURLTTL        time.Duration
}

var validate = validator.New()

// LoadConfig reads the environment into a Config and validates it.
func LoadConfig() (*Config, error) {
	redisDB, err := intEnv("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	maxOpen, err := intEnv("POSTGRES_MAX_OPEN_CONNS", 10)
	if err != nil {
		return nil, err
	}
	maxIdle, err := intEnv("POSTGRES_MAX_IDLE_CONNS", 5)
	if err != nil {
		return nil, err
	}
	maxInput, err := intEnv("AI_MAX_INPUT_CHARS", 8000)
	if err != nil {
		return nil, err
	}
	statusTTL, err := durationEnv("REDIS_STATUS_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	aiTimeout, err := durationEnv("AI_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	imageTTL, err := durationEnv("IMAGE_URL_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	authDisabled, err := boolEnv("AUTH_DISABLED", false)
	if err != nil {
		return nil, err
	}

	supabaseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("SUPABASE_URL")), "/")

	cfg := &Config{
		App: AppConfig{
			Env:         strEnv("ENV", "production"),
			Port:        strEnv("PORT", "8080"),
			CORSOrigins: listEnv("CORS_ALLOW_ORIGINS", []string{"*"}),
		},
		Logs: LogConfig{
			Format: strings.ToLower(strEnv("LOG_STYLE", "json")),
			Level:  strings.ToLower(strEnv("LOG_LEVEL", "info")),
		},
		DB: PostgresConfig{
			Username:     os.Getenv("POSTGRES_USER"),
			Password:     os.Getenv("POSTGRES_PWD"),
			URL:          os.Getenv("POSTGRES_URL"),
			Port:         strEnv("POSTGRES_PORT", "5432"),
			Name:         strEnv("POSTGRES_DB", "postgres"),
			SSLMode:      strEnv("POSTGRES_SSLMODE", "require"),
			MaxOpenConns: maxOpen,
			MaxIdleConns: maxIdle,
		},
		Redis: RedisConfig{
			Addr:      os.Getenv("REDIS_ADDR"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			StatusTTL: statusTTL,
		},
		Stripe: StripeConfig{
			SecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
			PriceIDMonthly: os.Getenv("STRIPE_PRICE_ID_MONTHLY"),
			PriceIDAnnual:  os.Getenv("STRIPE_PRICE_ID_ANNUAL"),
			FrontendURL:    strings.TrimRight(os.Getenv("FRONTEND_URL"), "/"),
		},
		Auth: AuthConfig{
			Mode:        strings.ToLower(strEnv("AUTH_MODE", "jwt")),
			SupabaseURL: supabaseURL,
			AnonKey:     os.Getenv("SUPABASE_ANON_KEY"),
			JWTSecret:   os.Getenv("SUPABASE_JWT_SECRET"),
			Audience:    strEnv("SUPABASE_JWT_AUDIENCE", "authenticated"),
			Disabled:    authDisabled,
		},
		AI: AIConfig{
			OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
			BaseURL:       os.Getenv("OPENAI_BASE_URL"),
			TextModel:     strEnv("OPENAI_TEXT_MODEL", "gpt-4o-mini"),
			ImageModel:    strEnv("OPENAI_IMAGE_MODEL", "dall-e-3"),
			ImageSize:     strEnv("OPENAI_IMAGE_SIZE", "1024x1024"),
			MaxInputChars: maxInput,
			Timeout:       aiTimeout,
		},
		AWS: AWSConfig{
			QueueURL:           os.Getenv("QUEUE_URL"),
			ImageBucket:        os.Getenv("IMAGE_BUCKET"),
			PublicImageBaseURL: strings.TrimRight(os.Getenv("PUBLIC_IMAGE_BASE_URL"), "/"),
			ImageURLTTL:        imageTTL,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field formats and the rules that span several fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !c.Auth.Disabled && c.Auth.SupabaseURL == "" {
		return errors.New("invalid config: SUPABASE_URL must be set unless AUTH_DISABLED=true")
	}
	if c.Auth.Mode == "remote" && !c.Auth.Disabled && c.Auth.AnonKey == "" {
		return errors.New("invalid config: SUPABASE_ANON_KEY is required for AUTH_MODE=remote")
	}
	return nil
}

// DSN builds the lib/pq connection string.
func (p PostgresConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.Username, p.Password),
		Host:   p.URL + ":" + p.Port,
		Path:   "/" + p.Name,
	}
	q := u.Query()
	q.Set("sslmode", p.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// PriceID returns the configured processor price for a plan type.
func (s StripeConfig) PriceID(planType string) string {
	switch planType {
	case "monthly":
		return s.PriceIDMonthly
	case "annual":
		return s.PriceIDAnnual
	}
	return ""
}

// Configured reports whether the billing processor can be called.
func (s StripeConfig) Configured() bool {
	return s.SecretKey != ""
}

func strEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func listEnv(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func intEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("error converting string to int: %s: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("error parsing %s: %w", key, err)
	}
	return b, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("error parsing %s: %w", key, err)
	}
	return d, nil
}
