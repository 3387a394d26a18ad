package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/parser"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
	AuthModeJWT      = "jwt"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Corpus CorpusConfig      `yaml:"corpus"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Corpus.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// CorpusConfig holds the article corpus settings.
//
// Separator is the token bulk exports use to concatenate several articles in
// one file. ResyncSchedule is an optional cron expression (robfig/cron
// syntax, e.g. "@every 1h") for periodic full reindexing; empty disables it.
type CorpusConfig struct {
	Path           string `yaml:"path"`
	Separator      string `yaml:"separator"`
	ResyncSchedule string `yaml:"resync_schedule"`
}

// Validate validates the corpus configuration.
func (c *CorpusConfig) Validate() error {
	if c.Separator == "" {
		c.Separator = parser.DefaultSeparator
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
//   - "jwt": HS256 JWT validation; JWTSecret must be non-empty.
type AuthConfig struct {
	Mode      string `yaml:"mode"`
	Token     string `yaml:"token"`
	JWTSecret string `yaml:"jwt_secret"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken, AuthModeJWT)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	if c.Mode == AuthModeJWT && c.JWTSecret == "" {
		return fmt.Errorf("auth: mode is %q but jwt_secret is empty", AuthModeJWT)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken || c.Mode == AuthModeJWT
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Corpus: CorpusConfig{
			Path:      "./content",
			Separator: parser.DefaultSeparator,
		},
		SQLite: SQLiteConfig{
			Path: "./ansuz.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
