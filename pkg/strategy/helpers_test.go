package strategy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeProvider is an httptest server standing in for an identity provider.
// Handlers are swapped per test; hit counters track which endpoints ran.
type fakeProvider struct {
	server *httptest.Server

	token    http.HandlerFunc
	userinfo http.HandlerFunc

	tokenHits    atomic.Int32
	userinfoHits atomic.Int32
}

func newFakeProvider(t *testing.T, userinfoPath string) *fakeProvider {
	t.Helper()

	fp := &fakeProvider{}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		fp.tokenHits.Add(1)
		fp.token(w, r)
	})
	mux.HandleFunc(userinfoPath, func(w http.ResponseWriter, r *http.Request) {
		fp.userinfoHits.Add(1)
		fp.userinfo(w, r)
	})
	fp.server = httptest.NewServer(mux)
	t.Cleanup(fp.server.Close)
	return fp
}

func newDivvyFake(t *testing.T) *fakeProvider {
	return newFakeProvider(t, "/openid/userinfo")
}

func testConfig() *Config {
	return &Config{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		RedirectURI:  "http://localhost:8080/auth/divvy/oauth2callback",
		MaxRetries:   -1,
	}
}

func newTestStrategy(t *testing.T, provider Provider, cfg *Config) *Strategy {
	t.Helper()

	s, err := New(provider, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func jsonHandler(v any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, v)
	}
}

func divvyProfile() map[string]any {
	return map[string]any{
		ClaimNameIdentifier: "u42",
		ClaimGivenName:      "Jane",
		ClaimSurname:        "Doe",
		ClaimEmailAddress:   "jane@x.com",
	}
}
