package upkeep

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/ilyakaznacheev/cleanenv"
)

// AppConfig is the environment-backed deployment configuration. Startup must
// fail fast when the signing key is missing or too short.
type AppConfig struct {
	Server struct {
		Address      string        `env:"SERVER_ADDRESS" env-default:":8080"`
		ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" env-default:"10s"`
		WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" env-default:"10s"`
		IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
	}
	Database struct {
		Driver string `env:"DATABASE_DRIVER" env-default:"sqlite"`
		DSN    string `env:"DATABASE_DSN" env-default:"file:upkeep.db?cache=shared"`
	}
	JWT struct {
		SigningKey string `env:"JWT_SIGNING_KEY"`
		Issuer     string `env:"JWT_ISSUER"`
		Audience   string `env:"JWT_AUDIENCE"`
	}
}

// LoadConfig reads the configuration from the environment and validates it
func LoadConfig() (*AppConfig, error) {
	config := &AppConfig{}

	if err := cleanenv.ReadEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *AppConfig) Validate() error {
	if err := validation.Validate(c.JWT.SigningKey,
		validation.Required,
		validation.Length(MinSigningKeyBytes, 0),
	); err != nil {
		return validation.Errors{"JWT_SIGNING_KEY": err}
	}
	if err := validation.Validate(c.JWT.Issuer, validation.Required); err != nil {
		return validation.Errors{"JWT_ISSUER": err}
	}
	if err := validation.Validate(c.JWT.Audience, validation.Required); err != nil {
		return validation.Errors{"JWT_AUDIENCE": err}
	}
	return nil
}

func (c *AppConfig) GetSigningKey() string {
	return c.JWT.SigningKey
}

func (c *AppConfig) GetIssuer() string {
	return c.JWT.Issuer
}

// GetAudience splits the comma-separated audience list
func (c *AppConfig) GetAudience() []string {
	parts := strings.Split(c.JWT.Audience, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var _ Config = (*AppConfig)(nil)
