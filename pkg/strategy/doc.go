// Package strategy implements OAuth 2.0 authorization code strategies for
// an authentication broker.
//
// A Strategy targets one identity provider. It builds the authorize URL the
// host redirects the browser to, and completes the attempt when the
// provider redirects back:
//
//  1. exchange the authorization code at the token endpoint
//  2. fetch the user profile from the userinfo endpoint with the bearer token
//  3. optionally exchange the returned api key for longer lived credentials
//  4. optionally verify an id_token against the provider's JWKS
//  5. map the provider's claims onto a fixed Result
//
// Every failure is reported as an *AuthError carrying a stable code
// (oauth2callback_error, access_token_error, userinfo_error,
// credentials_error, id_token_error) and the raw upstream data for
// diagnostics. Nothing is retried at that level; only transient transport
// failures (network errors, 429, 5xx) are retried with backoff.
//
// Example - Divvy:
//
//	s, err := strategy.New(strategy.Divvy(""), &strategy.Config{
//	    ClientID:     "client-id",
//	    ClientSecret: "client-secret",
//	    RedirectURI:  "https://app.example.com/auth/divvy/oauth2callback",
//	    Scope:        "api",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Redirect the browser to s.AuthorizationURL(), then on the callback:
//	result, err := s.Callback(r.Context(), r.URL.Query())
//	var authErr *strategy.AuthError
//	if errors.As(err, &authErr) {
//	    log.Printf("login failed: %s", authErr.Code)
//	    return
//	}
//
//	fmt.Printf("User: %s (%s)\n", result.Info.Name, result.Info.Email)
//
// # Providers
//
//   - Divvy(baseURL) - flat claim map, uid from the nameidentifier claim
//   - Ultrareg(baseURL) - {Name, Claims} payload, uid from Name
//   - CustomProvider(ProviderConfig) - anything else
//
// # Security Considerations
//
// TLS certificates are verified unless Config.InsecureSkipVerify is set.
// Tokens and client secrets are never logged.
package strategy
