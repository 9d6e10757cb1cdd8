package strategy

import (
	"fmt"
	"strings"
)

// ProfileFormat describes how a provider shapes its userinfo payload.
type ProfileFormat string

const (
	// ProfileFlat is a JSON object keyed directly by claim type URIs.
	ProfileFlat ProfileFormat = "flat"

	// ProfileClaimsList is {"Name": ..., "Claims": [{"Type": ..., "Value": ...}]}.
	ProfileClaimsList ProfileFormat = "claims_list"
)

// Provider defines the endpoints and claim layout of one identity provider.
type Provider interface {
	// Name returns the provider's identifier.
	Name() string

	// AuthURL returns the authorization endpoint URL.
	AuthURL() string

	// TokenURL returns the token endpoint URL. It also serves api key
	// escalation.
	TokenURL() string

	// UserInfoURL returns the endpoint queried with the bearer token.
	UserInfoURL() string

	// APIKeyGrantType returns the grant type URN used to exchange an api key
	// for longer lived credentials. Empty disables escalation.
	APIKeyGrantType() string

	// ProfileFormat returns the shape of the userinfo payload.
	ProfileFormat() ProfileFormat

	// UIDField returns the top-level profile key holding the user id.
	UIDField() string

	// NicknameClaim returns the claim type mapped to info.nickname.
	NicknameClaim() string

	// JWKSURL returns the key set used to verify id_tokens (optional).
	JWKSURL() string
}

// ProviderConfig holds configuration for a custom provider.
type ProviderConfig struct {
	ProviderName      string
	AuthEndpoint      string
	TokenEndpoint     string
	UserInfoEndpoint  string
	JWKSEndpoint      string
	APIKeyGrant       string
	Format            ProfileFormat
	UIDKey            string
	NicknameClaimType string
}

// customProvider implements Provider with user-supplied configuration.
type customProvider struct {
	config ProviderConfig
}

// CustomProvider creates a Provider from custom configuration. Format
// defaults to ProfileFlat, NicknameClaimType to ClaimNameIdentifier and
// UIDKey to the nickname claim.
func CustomProvider(cfg ProviderConfig) (Provider, error) {
	if strings.TrimSpace(cfg.ProviderName) == "" {
		return nil, fmt.Errorf("%w: provider name is required", ErrInvalidConfiguration)
	}
	if strings.TrimSpace(cfg.AuthEndpoint) == "" {
		return nil, fmt.Errorf("%w: authorize endpoint is required", ErrInvalidConfiguration)
	}
	if strings.TrimSpace(cfg.TokenEndpoint) == "" {
		return nil, fmt.Errorf("%w: token endpoint is required", ErrInvalidConfiguration)
	}
	if strings.TrimSpace(cfg.UserInfoEndpoint) == "" {
		return nil, fmt.Errorf("%w: userinfo endpoint is required", ErrInvalidConfiguration)
	}

	switch cfg.Format {
	case "":
		cfg.Format = ProfileFlat
	case ProfileFlat, ProfileClaimsList:
	default:
		return nil, fmt.Errorf("%w: unknown profile format %q", ErrInvalidConfiguration, cfg.Format)
	}
	if cfg.NicknameClaimType == "" {
		cfg.NicknameClaimType = ClaimNameIdentifier
	}
	if cfg.UIDKey == "" {
		cfg.UIDKey = cfg.NicknameClaimType
	}
	return &customProvider{config: cfg}, nil
}

func (p *customProvider) Name() string                 { return p.config.ProviderName }
func (p *customProvider) AuthURL() string              { return p.config.AuthEndpoint }
func (p *customProvider) TokenURL() string             { return p.config.TokenEndpoint }
func (p *customProvider) UserInfoURL() string          { return p.config.UserInfoEndpoint }
func (p *customProvider) APIKeyGrantType() string      { return p.config.APIKeyGrant }
func (p *customProvider) ProfileFormat() ProfileFormat { return p.config.Format }
func (p *customProvider) UIDField() string             { return p.config.UIDKey }
func (p *customProvider) NicknameClaim() string        { return p.config.NicknameClaimType }
func (p *customProvider) JWKSURL() string              { return p.config.JWKSEndpoint }

// Pre-configured provider implementations

const (
	divvyDefaultBaseURL    = "https://www.divvy.no"
	ultraregDefaultBaseURL = "https://ultrareg.knowit.no"
)

type divvyProvider struct {
	baseURL string
}

// Divvy returns a pre-configured Divvy provider. baseURL overrides the
// provider host (e.g. a staging environment); empty uses www.divvy.no.
func Divvy(baseURL string) Provider {
	return &divvyProvider{baseURL: trimBaseURL(baseURL, divvyDefaultBaseURL)}
}

func (p *divvyProvider) Name() string { return "divvy" }
func (p *divvyProvider) AuthURL() string {
	return p.baseURL + "/oauth/authorize"
}
func (p *divvyProvider) TokenURL() string {
	return p.baseURL + "/oauth/token"
}
func (p *divvyProvider) UserInfoURL() string {
	return p.baseURL + "/openid/userinfo"
}
func (p *divvyProvider) APIKeyGrantType() string {
	return "http://www.divvy.no/identity/granttype/api_key"
}
func (p *divvyProvider) ProfileFormat() ProfileFormat { return ProfileFlat }
func (p *divvyProvider) UIDField() string             { return ClaimNameIdentifier }
func (p *divvyProvider) NicknameClaim() string        { return ClaimNameIdentifier }
func (p *divvyProvider) JWKSURL() string              { return "" }

type ultraregProvider struct {
	baseURL string
}

// Ultrareg returns a pre-configured Ultrareg provider. baseURL overrides the
// provider host; empty uses ultrareg.knowit.no.
func Ultrareg(baseURL string) Provider {
	return &ultraregProvider{baseURL: trimBaseURL(baseURL, ultraregDefaultBaseURL)}
}

func (p *ultraregProvider) Name() string { return "ultrareg" }
func (p *ultraregProvider) AuthURL() string {
	return p.baseURL + "/oauth/authorize"
}
func (p *ultraregProvider) TokenURL() string {
	return p.baseURL + "/oauth/token"
}
func (p *ultraregProvider) UserInfoURL() string {
	return p.baseURL + "/api/identity"
}
func (p *ultraregProvider) APIKeyGrantType() string {
	return "http://ultrareg.knowit.no/identity/granttype/api_key"
}
func (p *ultraregProvider) ProfileFormat() ProfileFormat { return ProfileClaimsList }
func (p *ultraregProvider) UIDField() string             { return "Name" }
func (p *ultraregProvider) NicknameClaim() string        { return ClaimName }
func (p *ultraregProvider) JWKSURL() string              { return "" }

func trimBaseURL(baseURL, fallback string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return fallback
	}
	return baseURL
}
