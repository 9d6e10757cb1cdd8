package strategy

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizationURL_RequiredOnly(t *testing.T) {
	s := newTestStrategy(t, Divvy(""), testConfig())

	u, err := url.Parse(s.AuthorizationURL())
	require.NoError(t, err)

	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "www.divvy.no", u.Host)
	assert.Equal(t, "/oauth/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "test-client", q.Get("client_id"))
	assert.Equal(t, "http://localhost:8080/auth/divvy/oauth2callback", q.Get("redirect_uri"))

	// Absent optional keys are omitted, never sent empty.
	assert.NotContains(t, q, "scope")
	assert.NotContains(t, q, "state")
	assert.NotContains(t, q, "client_secret")
}

func TestAuthorizationURL_Optionals(t *testing.T) {
	cfg := testConfig()
	cfg.Scope = "api"
	cfg.State = "xyz"
	s := newTestStrategy(t, Ultrareg(""), cfg)

	raw := s.AuthorizationURL()
	assert.True(t, strings.HasPrefix(raw, "https://ultrareg.knowit.no/oauth/authorize?"))

	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "api", q.Get("scope"))
	assert.Equal(t, "xyz", q.Get("state"))
	assert.Len(t, q, 5)
}
