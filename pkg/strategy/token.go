package strategy

import "maps"

// TokenResponse is the parsed JSON body of a token endpoint response. The
// full map is kept because providers add fields such as api_key.
type TokenResponse map[string]any

// AccessToken returns the access_token field.
func (t TokenResponse) AccessToken() string {
	return stringValue(t["access_token"])
}

// APIKey returns the api_key field.
func (t TokenResponse) APIKey() string {
	return stringValue(t["api_key"])
}

// Credentials is the credentials section of a Result. It holds every field
// of the token response plus "token", the value usable as a bearer token.
type Credentials map[string]any

// Token returns the effective bearer token.
func (c Credentials) Token() string {
	return stringValue(c["token"])
}

// String returns the string value of key, or "" when absent.
func (c Credentials) String(key string) string {
	return stringValue(c[key])
}

// mergeCredentials overlays the escalated response on the code exchange
// response. Escalated keys win.
func mergeCredentials(base Credentials, escalated TokenResponse) Credentials {
	out := make(Credentials, len(base)+len(escalated))
	maps.Copy(out, base)
	maps.Copy(out, escalated)
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	maps.Copy(out, m)
	return out
}

// stringValue returns v when it is a non-empty string. JSON numbers and
// booleans are not treated as tokens.
func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
