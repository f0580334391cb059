package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/tasklet/internal/observability"
	"github.com/florianilch/tasklet/internal/secretstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// SecretStorageType represents the storage backends supported for the account password.
type SecretStorageType string

const (
	SecretStorageTypeFile    SecretStorageType = "file"
	SecretStorageTypeEnv     SecretStorageType = "env"
	SecretStorageTypeKeyring SecretStorageType = "keyring"
)

// KeyringService is the service name under which the password is kept in the OS keyring.
const KeyringService = "tasklet"

// Default configuration values
const (
	DefaultConfigLogFormat       = LogFormatText
	DefaultConfigAPITimeout      = 30 * time.Second
	DefaultConfigGatewayHost     = "127.0.0.1"
	DefaultConfigGatewayPort     = 4100
	DefaultConfigShutdownTimeout = 5 * time.Second
	DefaultConfigAuthStorage     = SecretStorageTypeEnv
	DefaultConfigAuthEnvKey      = "TASKLET_PASSWORD"
)

// LogConfig holds optional OpenTelemetry log export settings.
type LogConfig struct {
	Exporter observability.Exporter `json:"exporter" validate:"omitempty,oneof=stdout otlp-http otlp-grpc"`
	Endpoint string                 `json:"endpoint,omitempty"`
}

// APIConfig holds the remote task service settings.
type APIConfig struct {
	BaseURL  string `json:"base_url" validate:"required,url"`
	Username string `json:"username" validate:"required"`
	// Timeout bounds every HTTP call, including token exchanges.
	Timeout time.Duration `json:"timeout"`
}

// AuthConfig describes where the account password is kept.
type AuthConfig struct {
	Storage SecretStorageType `json:"storage" validate:"required,oneof=file env keyring"`

	// Storage-specific settings (only the one matching Storage is used)
	File        string `json:"file,omitempty"`         // For file storage: path to password file
	EnvKey      string `json:"env_key,omitempty"`      // For env storage: environment variable name
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier
}

// NewSecretStore creates the password store selected by the configuration.
func (a *AuthConfig) NewSecretStore() (secretstore.Store, error) {
	switch a.Storage {
	case SecretStorageTypeFile:
		return secretstore.NewFileStore(a.File)
	case SecretStorageTypeEnv:
		return secretstore.NewEnvStore(a.EnvKey)
	case SecretStorageTypeKeyring:
		return secretstore.NewKeyringStore(KeyringService, a.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", a.Storage)
	}
}

// GatewayConfig holds the local gateway listener settings.
type GatewayConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level     `json:"log_level"`
	LogFormat LogFormat      `json:"log_format" validate:"oneof=text json"`
	Log       LogConfig      `json:"log"`
	API       APIConfig      `json:"api"`
	Auth      AuthConfig     `json:"auth"`
	Gateway   GatewayConfig  `json:"gateway"`
	Shutdown  ShutdownConfig `json:"shutdown"`
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultConfigAPITimeout
	}
	if c.Gateway.Host == "" {
		c.Gateway.Host = DefaultConfigGatewayHost
	}
	if c.Gateway.Port == 0 {
		c.Gateway.Port = DefaultConfigGatewayPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Auth.Storage == "" {
		c.Auth.Storage = DefaultConfigAuthStorage
	}

	// Dynamic defaults based on storage type
	switch c.Auth.Storage {
	case SecretStorageTypeFile:
		if c.Auth.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("auth.file required (auto-detect failed: %w)", err)
			}
			c.Auth.File = filepath.Join(configDir, "tasklet", "password")
		}
	case SecretStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			if c.API.Username != "" {
				c.Auth.KeyringUser = c.API.Username
				break
			}
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	case SecretStorageTypeEnv:
		if c.Auth.EnvKey == "" {
			c.Auth.EnvKey = DefaultConfigAuthEnvKey
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Auth.Storage {
	case SecretStorageTypeFile:
		if c.Auth.File == "" {
			return errors.New("file path required for file storage")
		}
	case SecretStorageTypeEnv:
		if c.Auth.EnvKey == "" {
			return errors.New("env_key required for env storage")
		}
	case SecretStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	return nil
}

// GatewayAddress returns the host:port the gateway listens on.
func (c *Config) GatewayAddress() string {
	return fmt.Sprintf("%s:%d", c.Gateway.Host, c.Gateway.Port)
}
