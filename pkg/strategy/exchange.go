package strategy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 1 << 20

// upstreamResponse is what was received from a provider endpoint, kept for
// diagnostics when the body turns out to be unusable.
type upstreamResponse struct {
	status  int
	headers http.Header
	body    []byte
}

func (r *upstreamResponse) raw() map[string]any {
	if r == nil {
		return map[string]any{"response": ""}
	}
	raw := map[string]any{
		"response": string(r.body),
		"status":   r.status,
	}
	if h := headersToRaw(r.headers); h != nil {
		raw["headers"] = h
	}
	return raw
}

// exchangeCode exchanges an authorization code for tokens.
func (s *Strategy) exchangeCode(ctx context.Context, code string) (TokenResponse, error) {
	data := url.Values{}
	data.Set("code", code)
	data.Set("grant_type", "authorization_code")
	data.Set("client_id", s.config.ClientID)
	data.Set("client_secret", s.config.ClientSecret)
	data.Set("redirect_uri", s.config.RedirectURI)

	if s.config.State != "" {
		data.Set("state", s.config.State)
	}

	resp, err := s.postForm(ctx, s.oauthCfg.Endpoint.TokenURL, data, false)
	if err != nil {
		return nil, newAuthError(PhaseExchangingToken, CodeAccessToken,
			"Failed when attempting to obtain access token", resp.raw(), err)
	}

	tokens, err := decodeObject(resp.body)
	if err != nil || len(tokens) == 0 {
		return nil, newAuthError(PhaseExchangingToken, CodeAccessToken,
			"Failed when attempting to obtain access token", resp.raw(), err)
	}

	result := TokenResponse(tokens)
	if result.AccessToken() == "" {
		return nil, newAuthError(PhaseExchangingToken, CodeAccessToken,
			"Failed when attempting to obtain access token", resp.raw(), nil)
	}

	return result, nil
}

// escalate exchanges an api key for longer lived credentials using the
// provider's api key grant and HTTP Basic client authentication.
func (s *Strategy) escalate(ctx context.Context, apiKey string) (TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", s.provider.APIKeyGrantType())
	data.Set("redirect_uri", s.config.RedirectURI)
	data.Set("api_key", apiKey)

	resp, err := s.postForm(ctx, s.oauthCfg.Endpoint.TokenURL, data, true)
	if err != nil {
		return nil, newAuthError(PhaseEscalatingCredentials, CodeCredentials,
			"Could not retrieve access token based on API key", resp.raw(), err)
	}

	credentials, err := decodeObject(resp.body)
	if err != nil || len(credentials) == 0 {
		return nil, newAuthError(PhaseEscalatingCredentials, CodeCredentials,
			"Could not retrieve access token based on API key", resp.raw(), err)
	}

	return TokenResponse(credentials), nil
}

// postForm posts a form encoded body. The response is returned even when the
// error is non-nil if one was received.
func (s *Strategy) postForm(ctx context.Context, endpoint string, data url.Values, basicAuth bool) (*upstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if basicAuth {
		req.SetBasicAuth(s.config.ClientID, s.config.ClientSecret)
	}

	return s.do(req)
}

func (s *Strategy) do(req *http.Request) (*upstreamResponse, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	out := &upstreamResponse{
		status:  resp.StatusCode,
		headers: resp.Header,
		body:    body,
	}
	if err != nil {
		return out, fmt.Errorf("failed to read response: %w", err)
	}
	return out, nil
}

// decodeObject parses a JSON object into native maps and slices. Nested
// objects become map[string]any and arrays []any.
func decodeObject(body []byte) (map[string]any, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return out, nil
}
