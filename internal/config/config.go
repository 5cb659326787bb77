package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Database struct {
	Host     string
	Port     string
	Name     string
	Username string
	Password string
	Schema   string
}

// DSN renders the pgx connection URL. Credentials are escaped, so any
// character is allowed in the password.
func (d Database) DSN() string {
	q := url.Values{}
	q.Set("sslmode", "disable")
	if d.Schema != "" {
		q.Set("search_path", d.Schema)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.Username, d.Password),
		Host:     net.JoinHostPort(d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

type Payment struct {
	Provider   string
	TossSecret string
	TossAPI    string
	Timeout    time.Duration
	SweepEvery time.Duration
	PendingTTL time.Duration
}

type Generation struct {
	Kind    string
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type Tracing struct {
	Enabled     bool
	SampleRatio float64
}

type Config struct {
	Env         string
	HTTPAddr    string
	Store       string
	Price       int64
	OrderName   string
	CORSOrigins []string
	Database    Database
	Payment     Payment
	Generation  Generation
	Tracing     Tracing
}

// Load reads configuration from the environment (and a .env file, when
// present) on top of the defaults below.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("STORE", StorePostgres)
	v.SetDefault("FORTUNE_PRICE", 1000)
	v.SetDefault("FORTUNE_ORDER_NAME", "Fortune Letter")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("BLUEPRINT_DB_HOST", "localhost")
	v.SetDefault("BLUEPRINT_DB_PORT", "5432")
	v.SetDefault("BLUEPRINT_DB_SCHEMA", "public")
	v.SetDefault("PAYMENT_PROVIDER", "mock")
	v.SetDefault("TOSS_API_BASE", "https://api.tosspayments.com")
	v.SetDefault("PROVIDER_TIMEOUT", "10s")
	v.SetDefault("PAYMENT_SWEEP_INTERVAL", "0s")
	v.SetDefault("PAYMENT_PENDING_TTL", "30m")
	v.SetDefault("GENERATOR", "openai")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("GENERATION_TIMEOUT", "60s")
	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACE_SAMPLE_RATIO", 1.0)

	cfg := &Config{
		Env:         v.GetString("APP_ENV"),
		HTTPAddr:    v.GetString("HTTP_ADDR"),
		Store:       strings.ToLower(v.GetString("STORE")),
		Price:       v.GetInt64("FORTUNE_PRICE"),
		OrderName:   v.GetString("FORTUNE_ORDER_NAME"),
		CORSOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		Database: Database{
			Host:     v.GetString("BLUEPRINT_DB_HOST"),
			Port:     v.GetString("BLUEPRINT_DB_PORT"),
			Name:     v.GetString("BLUEPRINT_DB_DATABASE"),
			Username: v.GetString("BLUEPRINT_DB_USERNAME"),
			Password: v.GetString("BLUEPRINT_DB_PASSWORD"),
			Schema:   v.GetString("BLUEPRINT_DB_SCHEMA"),
		},
		Payment: Payment{
			Provider:   strings.ToLower(v.GetString("PAYMENT_PROVIDER")),
			TossSecret: v.GetString("TOSS_SECRET_KEY"),
			TossAPI:    v.GetString("TOSS_API_BASE"),
			Timeout:    v.GetDuration("PROVIDER_TIMEOUT"),
			SweepEvery: v.GetDuration("PAYMENT_SWEEP_INTERVAL"),
			PendingTTL: v.GetDuration("PAYMENT_PENDING_TTL"),
		},
		Generation: Generation{
			Kind:    strings.ToLower(v.GetString("GENERATOR")),
			APIKey:  v.GetString("OPENAI_API_KEY"),
			Model:   v.GetString("OPENAI_MODEL"),
			BaseURL: v.GetString("OPENAI_BASE_URL"),
			Timeout: v.GetDuration("GENERATION_TIMEOUT"),
		},
		Tracing: Tracing{
			Enabled:     v.GetBool("TRACING_ENABLED"),
			SampleRatio: v.GetFloat64("TRACE_SAMPLE_RATIO"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Store {
	case StorePostgres:
		if c.Database.Name == "" || c.Database.Username == "" {
			errs = append(errs, errors.New("BLUEPRINT_DB_DATABASE and BLUEPRINT_DB_USERNAME are required for the postgres store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE %q", c.Store))
	}
	if c.Price <= 0 {
		errs = append(errs, fmt.Errorf("FORTUNE_PRICE must be positive, got %d", c.Price))
	}
	if c.Payment.Timeout <= 0 || c.Generation.Timeout <= 0 {
		errs = append(errs, errors.New("PROVIDER_TIMEOUT and GENERATION_TIMEOUT must be positive"))
	}
	if c.Payment.SweepEvery > 0 && c.Payment.PendingTTL <= 0 {
		errs = append(errs, errors.New("PAYMENT_PENDING_TTL must be positive when the sweep is enabled"))
	}
	if c.Tracing.Enabled && (c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1) {
		errs = append(errs, fmt.Errorf("TRACE_SAMPLE_RATIO must be within [0, 1], got %g", c.Tracing.SampleRatio))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
