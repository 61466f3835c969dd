package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "ratesapi/backend/libs/config"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

var defaultAllowedOrigins = []string{
	"https://nwfg.net",
	"https://www.nwfg.net",
	"http://localhost:3000",
	"https://localhost:3000",
}

// Config represents rates service configuration loaded from YAML/env.
type Config struct {
	Env  string `yaml:"env" env:"RATES_ENV"`
	HTTP struct {
		Port           string   `yaml:"port" env:"RATES_HTTP_PORT"`
		AllowedOrigins []string `yaml:"allowedOrigins" env:"RATES_ALLOWED_ORIGINS"`
		ExposeErrors   *bool    `yaml:"exposeErrors" env:"RATES_EXPOSE_ERRORS"`
		TLSCertFile    string   `yaml:"tlsCertFile" env:"RATES_TLS_CERT_FILE"`
		TLSKeyFile     string   `yaml:"tlsKeyFile" env:"RATES_TLS_KEY_FILE"`
	} `yaml:"http"`
	Database struct {
		DSN          string `yaml:"dsn" env:"RATES_POSTGRES_DSN"`
		MaxOpenConns int    `yaml:"maxOpenConns" env:"RATES_POSTGRES_MAX_CONNS"`
	} `yaml:"database"`
	JWT struct {
		Secret string `yaml:"secret" env:"RATES_JWT_SECRET"`
	} `yaml:"jwt"`
	Redis struct {
		Addr     string        `yaml:"addr" env:"RATES_REDIS_ADDR"`
		Password string        `yaml:"password" env:"RATES_REDIS_PASSWORD"`
		DB       int           `yaml:"db" env:"RATES_REDIS_DB"`
		NameTTL  time.Duration `yaml:"nameTtl" env:"RATES_REDIS_NAME_TTL"`
	} `yaml:"redis"`
	Audit struct {
		Dir string `yaml:"dir" env:"RATES_AUDIT_DIR"`
	} `yaml:"audit"`
	Discord struct {
		WebhookURL     string `yaml:"webhookUrl" env:"RATES_DISCORD_WEBHOOK_URL"`
		TimeoutSeconds int    `yaml:"timeoutSeconds" env:"RATES_DISCORD_TIMEOUT"`
	} `yaml:"discord"`
}

// Load reads configuration using the shared config loader.
func Load() (*Config, error) {
	cfg := &Config{Env: EnvDevelopment}
	cfg.HTTP.Port = "3002"
	cfg.Database.MaxOpenConns = 10
	cfg.Audit.Dir = "logs"
	cfg.Discord.TimeoutSeconds = 5
	cfg.Redis.NameTTL = 10 * time.Minute

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	switch c.Env {
	case "":
		c.Env = EnvDevelopment
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("config: unknown env %q", c.Env)
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database DSN is required")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("config: jwt secret is required")
	}
	if c.IsProduction() && (c.HTTP.TLSCertFile == "" || c.HTTP.TLSKeyFile == "") {
		return errors.New("config: tls cert and key files are required in production")
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = append([]string(nil), defaultAllowedOrigins...)
	}
	if c.Redis.NameTTL <= 0 {
		c.Redis.NameTTL = 10 * time.Minute
	}
	return nil
}

// IsProduction reports whether TLS and the tightened error policy apply.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// ExposeErrors reports whether write failures return SQL diagnostics to the caller.
// Unless set explicitly it follows the environment: on in development, off in production.
func (c *Config) ExposeErrors() bool {
	if c.HTTP.ExposeErrors != nil {
		return *c.HTTP.ExposeErrors
	}
	return !c.IsProduction()
}

// HTTPAddress ensures we always return host:port formatted string.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "3002"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// DiscordTimeout returns webhook client timeout.
func (c *Config) DiscordTimeout() time.Duration {
	if c.Discord.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Discord.TimeoutSeconds) * time.Second
}
