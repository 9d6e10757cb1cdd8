package strategy

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jeremyhahn/go-oauth-strategy/internal/log"
)

var idTokenAlgorithms = []string{
	"RS256", "RS384", "RS512",
	"ES256", "ES384", "ES512",
	"PS256", "PS384", "PS512",
}

// idTokenVerifier checks id_token signatures against the provider's JWKS.
// The key set is fetched on first use, not at construction.
type idTokenVerifier struct {
	jwksURL  string
	audience string
	client   *http.Client
	timeout  time.Duration

	mu     sync.Mutex
	jwks   keyfunc.Keyfunc
	cancel context.CancelFunc
}

// newIDTokenVerifier fetches keys with client so the JWKS request honours
// the same TLS settings as the other provider calls. A nil client uses the
// library default.
func newIDTokenVerifier(jwksURL, audience string, client *http.Client, timeout time.Duration) *idTokenVerifier {
	return &idTokenVerifier{jwksURL: jwksURL, audience: audience, client: client, timeout: timeout}
}

func (v *idTokenVerifier) keySet() (keyfunc.Keyfunc, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.jwks != nil {
		return v.jwks, nil
	}

	// The key set refreshes in the background until Close.
	ctx, cancel := context.WithCancel(context.Background())
	jwks, err := keyfunc.NewDefaultOverrideCtx(ctx, []string{v.jwksURL}, keyfunc.Override{
		Client:      v.client,
		HTTPTimeout: v.timeout,
		RefreshErrorHandlerFunc: func(u string) func(context.Context, error) {
			return func(ctx context.Context, err error) {
				log.Warn(ctx).Err(err).Str("url", u).Msg("jwks refresh failed")
			}
		},
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to load jwks: %w", err)
	}
	v.jwks = jwks
	v.cancel = cancel
	return jwks, nil
}

// verify validates signature, expiry and audience and returns the claims.
func (v *idTokenVerifier) verify(ctx context.Context, raw string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	jwks, err := v.keySet()
	if err != nil {
		return nil, err
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, jwks.Keyfunc,
		jwt.WithValidMethods(idTokenAlgorithms),
		jwt.WithAudience(v.audience),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}

	return map[string]any(claims), nil
}

func (v *idTokenVerifier) close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		v.cancel()
	}
	v.jwks = nil
	v.cancel = nil
}
