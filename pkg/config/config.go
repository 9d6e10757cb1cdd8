// Package config loads the authbroker YAML document and turns it into a
// ready-to-serve broker.Service.
//
// Values of the form ${NAME} are expanded from the environment before the
// document is parsed, so secrets can live in the environment or a dotenv
// file instead of the config file itself.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-oauth-strategy/pkg/broker"
	"github.com/jeremyhahn/go-oauth-strategy/pkg/strategy"
)

const (
	ProviderDivvy    = "divvy"
	ProviderUltrareg = "ultrareg"
	ProviderCustom   = "custom"
)

// ErrInvalidConfig wraps every load or validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Document is the top-level config file.
type Document struct {
	Listen   string `yaml:"listen" default:":8080" validate:"required"`
	BaseURL  string `yaml:"base_url" default:"http://localhost:8080" validate:"required,url"`
	LogLevel string `yaml:"log_level" default:"info" validate:"oneof=trace debug info warn error"`

	Strategies []StrategyConfig `yaml:"strategies" validate:"required,min=1,dive"`
}

// StrategyConfig configures one hosted strategy.
type StrategyConfig struct {
	Name     string `yaml:"name" validate:"required"`
	Provider string `yaml:"provider" validate:"required,oneof=divvy ultrareg custom"`

	ClientID     string `yaml:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret" validate:"required"`

	// RedirectURI defaults to <base_url>/<name>/oauth2callback.
	RedirectURI string `yaml:"redirect_uri" validate:"omitempty,url"`
	Scope       string `yaml:"scope"`
	State       string `yaml:"state"`

	// BaseURL overrides the provider's default host.
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`

	Timeout time.Duration `yaml:"timeout" default:"30s"`

	// MaxRetries of 0 falls back to 2; use -1 to disable retries.
	MaxRetries int `yaml:"max_retries"`

	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	Endpoints Endpoints `yaml:"endpoints"`
}

// Endpoints describes a custom provider. Ignored for the built-in ones
// except JWKS, which enables id_token verification for any provider.
type Endpoints struct {
	Authorize     string `yaml:"authorize" validate:"omitempty,url"`
	Token         string `yaml:"token" validate:"omitempty,url"`
	UserInfo      string `yaml:"userinfo" validate:"omitempty,url"`
	JWKS          string `yaml:"jwks" validate:"omitempty,url"`
	APIKeyGrant   string `yaml:"api_key_grant"`
	ProfileFormat string `yaml:"profile_format" validate:"omitempty,oneof=flat claims_list"`
	UIDField      string `yaml:"uid_field"`
	NicknameClaim string `yaml:"nickname_claim"`
}

// LoadEnvFiles loads dotenv files into the process environment. Missing
// files are ignored; existing variables are never overwritten.
func LoadEnvFiles(files ...string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("%w: dotenv: %v", ErrInvalidConfig, err)
	}
	return nil
}

var envReference = regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*\}`)

// expandEnv replaces ${NAME} references with environment values. Any other
// use of $ is left untouched so secrets may contain it.
func expandEnv(data []byte) []byte {
	return envReference.ReplaceAllFunc(data, func(ref []byte) []byte {
		return []byte(os.Getenv(string(ref[2 : len(ref)-1])))
	})
}

// Load reads, expands, defaults and validates the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return Parse(data)
}

// Parse is Load for an in-memory document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(expandEnv(data), &doc); err != nil {
		return nil, fmt.Errorf("%w: yaml: %v", ErrInvalidConfig, err)
	}

	if err := defaults.Set(&doc); err != nil {
		return nil, fmt.Errorf("%w: defaults: %v", ErrInvalidConfig, err)
	}
	for i := range doc.Strategies {
		if err := defaults.Set(&doc.Strategies[i]); err != nil {
			return nil, fmt.Errorf("%w: defaults: %v", ErrInvalidConfig, err)
		}
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks field rules, custom endpoint requirements and name
// uniqueness.
func (d *Document) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateEndpoints, StrategyConfig{})

	if err := v.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	seen := make(map[string]struct{}, len(d.Strategies))
	for _, sc := range d.Strategies {
		if _, dup := seen[sc.Name]; dup {
			return fmt.Errorf("%w: duplicate strategy name %q", ErrInvalidConfig, sc.Name)
		}
		seen[sc.Name] = struct{}{}
	}
	return nil
}

func validateEndpoints(sl validator.StructLevel) {
	sc := sl.Current().Interface().(StrategyConfig)
	if sc.Provider != ProviderCustom {
		return
	}
	if sc.Endpoints.Authorize == "" {
		sl.ReportError(sc.Endpoints.Authorize, "Endpoints.Authorize", "Authorize", "required_for_custom", "")
	}
	if sc.Endpoints.Token == "" {
		sl.ReportError(sc.Endpoints.Token, "Endpoints.Token", "Token", "required_for_custom", "")
	}
	if sc.Endpoints.UserInfo == "" {
		sl.ReportError(sc.Endpoints.UserInfo, "Endpoints.UserInfo", "UserInfo", "required_for_custom", "")
	}
}

// ProviderFor resolves the provider a strategy entry targets.
func (sc StrategyConfig) ProviderFor() (strategy.Provider, error) {
	switch sc.Provider {
	case ProviderDivvy, ProviderUltrareg:
		base := strategy.Divvy(sc.BaseURL)
		if sc.Provider == ProviderUltrareg {
			base = strategy.Ultrareg(sc.BaseURL)
		}
		if sc.Endpoints.JWKS == "" {
			return base, nil
		}
		return strategy.CustomProvider(strategy.ProviderConfig{
			ProviderName:      base.Name(),
			AuthEndpoint:      base.AuthURL(),
			TokenEndpoint:     base.TokenURL(),
			UserInfoEndpoint:  base.UserInfoURL(),
			JWKSEndpoint:      sc.Endpoints.JWKS,
			APIKeyGrant:       base.APIKeyGrantType(),
			Format:            base.ProfileFormat(),
			UIDKey:            base.UIDField(),
			NicknameClaimType: base.NicknameClaim(),
		})
	case ProviderCustom:
		return strategy.CustomProvider(strategy.ProviderConfig{
			ProviderName:      sc.Name,
			AuthEndpoint:      sc.Endpoints.Authorize,
			TokenEndpoint:     sc.Endpoints.Token,
			UserInfoEndpoint:  sc.Endpoints.UserInfo,
			JWKSEndpoint:      sc.Endpoints.JWKS,
			APIKeyGrant:       sc.Endpoints.APIKeyGrant,
			Format:            strategy.ProfileFormat(sc.Endpoints.ProfileFormat),
			UIDKey:            sc.Endpoints.UIDField,
			NicknameClaimType: sc.Endpoints.NicknameClaim,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, sc.Provider)
	}
}

// CoreConfig converts the entry into the core strategy configuration.
// baseURL is the broker's public base URL used for the default redirect.
func (sc StrategyConfig) CoreConfig(baseURL string) *strategy.Config {
	redirect := sc.RedirectURI
	if redirect == "" {
		redirect = strings.TrimRight(baseURL, "/") + "/" + sc.Name + "/oauth2callback"
	}
	return &strategy.Config{
		ClientID:           sc.ClientID,
		ClientSecret:       sc.ClientSecret,
		RedirectURI:        redirect,
		Scope:              sc.Scope,
		State:              sc.State,
		Timeout:            sc.Timeout,
		MaxRetries:         sc.MaxRetries,
		InsecureSkipVerify: sc.InsecureSkipVerify,
	}
}

// Build constructs every strategy and the broker hosting them. reg may be
// nil. Strategies built before a failure are closed.
func (d *Document) Build(reg prometheus.Registerer, opts ...strategy.Option) (*broker.Service, error) {
	backends := make([]broker.Backend, 0, len(d.Strategies))
	closeAll := func() {
		for _, b := range backends {
			if s, ok := b.Strategy.(*strategy.Strategy); ok {
				_ = s.Close()
			}
		}
	}

	for _, sc := range d.Strategies {
		provider, err := sc.ProviderFor()
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("strategy %q: %w", sc.Name, err)
		}
		s, err := strategy.New(provider, sc.CoreConfig(d.BaseURL), opts...)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("strategy %q: %w", sc.Name, err)
		}
		backends = append(backends, broker.Backend{Name: sc.Name, Strategy: s})
	}

	svc, err := broker.NewService(broker.Config{Backends: backends, Registerer: reg})
	if err != nil {
		closeAll()
		return nil, err
	}
	return svc, nil
}
