package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centralizes the service configuration.
type Config struct {
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL   string `env:"DATABASE_URL,required"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret            string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`

	VerificationCodeTTL time.Duration `env:"VERIFICATION_CODE_TTL" envDefault:"5m"`
	PendingLoginTTL     time.Duration `env:"PENDING_LOGIN_TTL" envDefault:"15m"`

	// CodeIssueLimit caps how many codes one account may request per window.
	CodeIssueLimit  int           `env:"CODE_ISSUE_LIMIT" envDefault:"3"`
	CodeIssueWindow time.Duration `env:"CODE_ISSUE_WINDOW" envDefault:"10m"`
	// CodeAttemptLimit caps code submissions per account; 0 disables the cap.
	CodeAttemptLimit  int           `env:"CODE_ATTEMPT_LIMIT" envDefault:"0"`
	CodeAttemptWindow time.Duration `env:"CODE_ATTEMPT_WINDOW" envDefault:"5m"`

	PhoneDefaultRegion string `env:"PHONE_DEFAULT_REGION" envDefault:"RU"`
}

// LoadConfig reads the configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
