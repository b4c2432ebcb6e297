package internal

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix for all environment variables read by envconfig,
// e.g. STREAMFETCH_ACCOUNT_ID.
const EnvPrefix = "streamfetch"

// Config holds application configuration
type Config struct {
	// Account-scoped API authentication
	AccountID string `envconfig:"ACCOUNT_ID"`
	AuthEmail string `envconfig:"AUTH_EMAIL"`
	AuthKey   string `envconfig:"AUTH_KEY"`

	// Signing credential for token minting
	SigningKeyID string `envconfig:"SIGNING_KEY_ID"`
	PEM          string `envconfig:"PEM"`
	PEMFile      string `envconfig:"PEM_FILE"`

	// Endpoints
	APIBase      string `envconfig:"API_BASE" default:"https://api.cloudflare.com/client/v4"`
	UtilBase     string `envconfig:"UTIL_BASE" default:"https://util.cloudflarestream.com"`
	DeliveryHost string `envconfig:"DELIVERY_HOST" default:"videodelivery.net"`

	// Transport
	TimeoutSeconds int    `envconfig:"TIMEOUT" default:"30"`
	ProxyURL       string `envconfig:"PROXY"`

	// Logging configuration
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	EnableDebug bool   `envconfig:"DEBUG"`
	QuietMode   bool   `envconfig:"QUIET"`
	LogFile     string `envconfig:"LOG_FILE"`
}

// LoadConfig builds the configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration from environment: %w", err)
	}
	return &cfg, nil
}

// Credential resolves the signing credential, reading the PEM from
// PEMFile when the key material is not given inline. PEM wins if both
// are set.
func (c *Config) Credential() (Credential, error) {
	pem := c.PEM
	if pem == "" && c.PEMFile != "" {
		data, err := os.ReadFile(c.PEMFile)
		if err != nil {
			return Credential{}, NewValidationError("pem_file", "failed to read PEM file").
				WithSuggestion("Check file permissions and path validity").
				WithContext("file", c.PEMFile).
				WithContext("error", err.Error())
		}
		pem = strings.TrimSpace(string(data))
	}
	return Credential{KeyID: c.SigningKeyID, PEM: pem}, nil
}

// Validate checks the configuration values
func (c *Config) Validate() error {
	if c.AccountID == "" {
		return fmt.Errorf("account ID is required (STREAMFETCH_ACCOUNT_ID)")
	}

	if c.TimeoutSeconds < 1 {
		return fmt.Errorf("invalid timeout: %d (must be > 0)", c.TimeoutSeconds)
	}

	if c.APIBase == "" || !strings.HasPrefix(c.APIBase, "http") {
		return fmt.Errorf("invalid API base URL: %q", c.APIBase)
	}

	if c.DeliveryHost == "" || strings.Contains(c.DeliveryHost, "/") {
		return fmt.Errorf("delivery host must be a bare hostname, got %q", c.DeliveryHost)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %q (use debug, info, warn or error)", c.LogLevel)
	}

	return nil
}

// RequireAPIAuth checks that the account-scoped key headers can be built.
func (c *Config) RequireAPIAuth() error {
	if c.AuthEmail == "" || c.AuthKey == "" {
		return fmt.Errorf("API authentication is required (STREAMFETCH_AUTH_EMAIL, STREAMFETCH_AUTH_KEY)")
	}
	return nil
}
