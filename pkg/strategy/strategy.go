package strategy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/jeremyhahn/go-oauth-strategy/internal/log"
)

// Phase names the steps of one authentication attempt.
type Phase string

const (
	PhaseStart                 Phase = "start"
	PhaseAwaitingCallback      Phase = "awaiting_callback"
	PhaseExchangingToken       Phase = "exchanging_token"
	PhaseFetchingProfile       Phase = "fetching_profile"
	PhaseEscalatingCredentials Phase = "escalating_credentials"
	PhaseVerifyingIDToken      Phase = "verifying_id_token"
	PhaseNormalizing           Phase = "normalizing"
	PhaseDone                  Phase = "done"
)

// Option configures a Strategy.
type Option func(*Strategy)

// WithHTTPClient replaces the default outbound client. The client is used
// as-is; Config.Timeout, MaxRetries and TLS settings are not applied to it.
func WithHTTPClient(client HTTPClient) Option {
	return func(s *Strategy) {
		s.httpClient = client
	}
}

// Strategy runs the OAuth 2.0 authorization code flow against one provider.
// It is immutable after construction and safe for concurrent use.
type Strategy struct {
	provider   Provider
	config     Config
	oauthCfg   *oauth2.Config
	httpClient HTTPClient
	idTokens   *idTokenVerifier
}

// New creates a Strategy for provider. The config is copied and validated.
func New(provider Provider, config *Config, opts ...Option) (*Strategy, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: provider is required", ErrInvalidConfiguration)
	}
	if config == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrInvalidConfiguration)
	}

	cfg := *config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if provider.AuthURL() == "" || provider.TokenURL() == "" || provider.UserInfoURL() == "" {
		return nil, fmt.Errorf("%w: provider %s is missing endpoints", ErrInvalidConfiguration, provider.Name())
	}

	s := &Strategy{
		provider: provider,
		config:   cfg,
		oauthCfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   provider.AuthURL(),
				TokenURL:  provider.TokenURL(),
				AuthStyle: oauth2.AuthStyleInParams,
			},
			RedirectURL: cfg.RedirectURI,
		},
	}
	if scope := strings.TrimSpace(cfg.Scope); scope != "" {
		s.oauthCfg.Scopes = []string{scope}
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.httpClient == nil {
		s.httpClient = newDefaultHTTPClient(cfg.Timeout, cfg.TLSConfig, cfg.InsecureSkipVerify, cfg.retries())
	}

	if jwksURL := provider.JWKSURL(); jwksURL != "" {
		client, _ := s.httpClient.(*http.Client)
		s.idTokens = newIDTokenVerifier(jwksURL, cfg.ClientID, client, cfg.Timeout)
	}

	return s, nil
}

// Name returns the provider name.
func (s *Strategy) Name() string {
	return s.provider.Name()
}

// Provider returns the provider this strategy authenticates against.
func (s *Strategy) Provider() Provider {
	return s.provider
}

// AuthorizationURL builds the provider authorize URL the host redirects the
// browser to. scope and state are only included when configured.
func (s *Strategy) AuthorizationURL() string {
	return s.oauthCfg.AuthCodeURL(s.config.State)
}

// Callback completes an attempt from the query parameters of the provider's
// redirect. It returns either a normalized Result or an *AuthError.
func (s *Strategy) Callback(ctx context.Context, query url.Values) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = log.WithContext(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str("strategy", s.provider.Name())
	})

	result, err := s.callback(ctx, query)
	if err != nil {
		if authErr, ok := err.(*AuthError); ok {
			log.Warn(ctx).
				Str("phase", string(authErr.Phase)).
				Str("code", authErr.Code).
				Err(authErr.Err).
				Msg("authentication attempt failed")
		}
		return nil, err
	}

	log.Info(ctx).Str("uid", result.UID).Msg("authentication attempt succeeded")
	return result, nil
}

func (s *Strategy) callback(ctx context.Context, query url.Values) (*Result, error) {
	code := query.Get("code")
	if code == "" {
		message := query.Get("error_description")
		if message == "" {
			message = query.Get("error")
		}
		return nil, newAuthError(PhaseAwaitingCallback, CodeOAuth2Callback,
			message, queryToRaw(query), nil)
	}

	if err := ctx.Err(); err != nil {
		return nil, newAuthError(PhaseExchangingToken, CodeAccessToken,
			"request cancelled", nil, err)
	}

	tokens, err := s.exchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	profile, err := s.fetchProfile(ctx, tokens.AccessToken())
	if err != nil {
		return nil, err
	}

	credentials := Credentials(cloneMap(tokens))
	if s.shouldEscalate(tokens) {
		escalated, err := s.escalate(ctx, tokens.APIKey())
		if err != nil {
			return nil, err
		}
		credentials = mergeCredentials(credentials, escalated)
	}

	var idClaims map[string]any
	if s.idTokens != nil {
		if raw := credentials.String("id_token"); raw != "" {
			idClaims, err = s.idTokens.verify(ctx, raw)
			if err != nil {
				return nil, newAuthError(PhaseVerifyingIDToken, CodeIDToken,
					"id_token verification failed", nil, err)
			}
		}
	}

	result := normalize(s.provider, profile, credentials)
	result.IDTokenClaims = idClaims
	return result, nil
}

// shouldEscalate reports whether the api key escalation step runs: scope
// must be configured and the token response must carry an api_key.
func (s *Strategy) shouldEscalate(tokens TokenResponse) bool {
	return s.config.escalates() &&
		s.provider.APIKeyGrantType() != "" &&
		tokens.APIKey() != ""
}

func queryToRaw(query url.Values) map[string]any {
	raw := make(map[string]any, len(query))
	for key, values := range query {
		if len(values) == 1 {
			raw[key] = values[0]
			continue
		}
		raw[key] = append([]string(nil), values...)
	}
	return raw
}

func headersToRaw(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for key := range h {
		out[key] = h.Get(key)
	}
	return out
}

// Close releases resources held by the strategy.
func (s *Strategy) Close() error {
	if s.idTokens != nil {
		s.idTokens.close()
	}
	return nil
}
