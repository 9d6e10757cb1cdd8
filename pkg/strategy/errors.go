package strategy

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration indicates the strategy configuration is invalid.
	ErrInvalidConfiguration = errors.New("strategy: invalid configuration")

	// ErrOAuth2Callback indicates the provider did not return a usable authorization code.
	ErrOAuth2Callback = errors.New("strategy: oauth2callback_error")

	// ErrAccessToken indicates the token endpoint returned no usable access token.
	ErrAccessToken = errors.New("strategy: access_token_error")

	// ErrUserInfo indicates the userinfo endpoint returned no usable body.
	ErrUserInfo = errors.New("strategy: userinfo_error")

	// ErrCredentials indicates the api key escalation returned no usable body.
	ErrCredentials = errors.New("strategy: credentials_error")

	// ErrIDToken indicates an id_token was present but failed verification.
	ErrIDToken = errors.New("strategy: id_token_error")
)

// Error codes reported to the host. They are part of the wire contract and
// must not change.
const (
	CodeOAuth2Callback = "oauth2callback_error"
	CodeAccessToken    = "access_token_error"
	CodeUserInfo       = "userinfo_error"
	CodeCredentials    = "credentials_error"
	CodeIDToken        = "id_token_error"
)

var sentinels = map[string]error{
	CodeOAuth2Callback: ErrOAuth2Callback,
	CodeAccessToken:    ErrAccessToken,
	CodeUserInfo:       ErrUserInfo,
	CodeCredentials:    ErrCredentials,
	CodeIDToken:        ErrIDToken,
}

// AuthError is the terminal outcome of a failed authentication attempt.
// It is never retried by the strategy; the host may restart the flow.
type AuthError struct {
	// Code is the machine readable error code, one of the Code* constants.
	Code string `json:"code"`

	// Message is an optional human readable description.
	Message string `json:"message,omitempty"`

	// Raw carries diagnostics: the callback query parameters or the
	// upstream response body, status and headers.
	Raw map[string]any `json:"raw,omitempty"`

	// Phase is the step of the attempt that failed.
	Phase Phase `json:"phase"`

	// Err is the underlying cause, if any.
	Err error `json:"-"`
}

func (e *AuthError) Error() string {
	msg := e.Code
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the sentinel for Code and the underlying cause so
// errors.Is matches either.
func (e *AuthError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := sentinels[e.Code]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newAuthError(phase Phase, code, message string, raw map[string]any, cause error) *AuthError {
	return &AuthError{
		Code:    code,
		Message: message,
		Raw:     raw,
		Phase:   phase,
		Err:     cause,
	}
}
