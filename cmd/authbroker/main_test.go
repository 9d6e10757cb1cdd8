package main

import (
	"bytes"
	"go/format"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "authbroker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version, strings.TrimSpace(out))
}

func TestAuthorizeURL(t *testing.T) {
	path := writeConfig(t, `
base_url: https://auth.example.com
strategies:
  - name: divvy
    provider: divvy
    client_id: c1
    client_secret: s1
    scope: api
`)

	out, err := run(t, "--config", path, "--env-file", "", "authorize-url", "divvy")
	require.NoError(t, err)

	u := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(u, "https://www.divvy.no/oauth/authorize?"), u)
	assert.Contains(t, u, "client_id=c1")
	assert.Contains(t, u, "scope=api")
	assert.Contains(t, u, "redirect_uri=https%3A%2F%2Fauth.example.com%2Fdivvy%2Foauth2callback")
}

func TestAuthorizeURLUnknownStrategy(t *testing.T) {
	path := writeConfig(t, `
strategies:
  - name: divvy
    provider: divvy
    client_id: c1
    client_secret: s1
`)

	_, err := run(t, "--config", path, "--env-file", "", "authorize-url", "ultrareg")
	require.Error(t, err)
}

func TestAuthorizeURLInvalidConfig(t *testing.T) {
	path := writeConfig(t, "strategies: []\n")

	_, err := run(t, "--config", path, "--env-file", "", "authorize-url", "divvy")
	require.Error(t, err)
}

func TestSourcesAreFormatted(t *testing.T) {
	files, err := filepath.Glob("*.go")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, name := range files {
		src, err := os.ReadFile(name)
		require.NoError(t, err)

		formatted, err := format.Source(src)
		require.NoError(t, err, name)
		assert.Equal(t, string(formatted), string(src), "%s is not gofmt-formatted", name)
	}
}
