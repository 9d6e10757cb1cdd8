package strategy

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
)

// Config is the per-strategy configuration supplied by the host. It is
// validated once by New and treated as read-only afterwards.
type Config struct {
	// ClientID is the OAuth client identifier.
	ClientID string

	// ClientSecret is the OAuth client secret.
	ClientSecret string

	// RedirectURI is the callback URL registered with the provider. Hosts
	// usually default it to the strategy's oauth2callback route.
	RedirectURI string

	// Scope is optional. When set, it is sent on the authorize request and
	// enables api key escalation.
	Scope string

	// State is optional and sent on the authorize and token requests when set.
	State string

	// Timeout bounds every outbound HTTP request.
	Timeout time.Duration

	// MaxRetries is the number of retries for transient failures
	// (network errors, 429 and 5xx). Zero uses the default; a negative
	// value disables retries.
	MaxRetries int

	// TLSConfig allows custom TLS configuration.
	TLSConfig *tls.Config

	// InsecureSkipVerify disables TLS certificate verification. Only meant
	// for development against providers with self-signed certificates.
	InsecureSkipVerify bool
}

// Validate checks the required keys and fills in defaults.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfiguration)
	}

	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("%w: client_id is required", ErrInvalidConfiguration)
	}

	if strings.TrimSpace(c.ClientSecret) == "" {
		return fmt.Errorf("%w: client_secret is required", ErrInvalidConfiguration)
	}

	if strings.TrimSpace(c.RedirectURI) == "" {
		return fmt.Errorf("%w: redirect_uri is required", ErrInvalidConfiguration)
	}
	if _, err := url.Parse(c.RedirectURI); err != nil {
		return fmt.Errorf("%w: redirect_uri: %v", ErrInvalidConfiguration, err)
	}

	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}

	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}

	return nil
}

func (c *Config) retries() int {
	return max(c.MaxRetries, 0)
}

// escalates reports whether api key escalation is enabled for this config.
func (c *Config) escalates() bool {
	return strings.TrimSpace(c.Scope) != ""
}
