package strategy

import (
	"strconv"
	"strings"
)

// Claim type URIs understood by the normalizer.
const (
	ClaimGivenName      = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/givenname"
	ClaimSurname        = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/surname"
	ClaimEmailAddress   = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress"
	ClaimNameIdentifier = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
	ClaimName           = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
	ClaimMobilePhone    = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/mobilephone"
)

// UnknownName is used for Info.Name when first or last name is missing.
const UnknownName = "Unknown"

// Info is the normalized user information.
type Info struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Nickname  string `json:"nickname,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Name      string `json:"name"`
}

// Result is the normalized outcome of a successful attempt.
type Result struct {
	Provider      string         `json:"provider"`
	UID           string         `json:"uid"`
	Info          Info           `json:"info"`
	Credentials   Credentials    `json:"credentials"`
	Raw           Profile        `json:"raw"`
	IDTokenClaims map[string]any `json:"id_token_claims,omitempty"`
}

// claim is a single (type, value) pair regardless of profile format.
type claim struct {
	Type  string
	Value string
}

// Normalize maps a userinfo profile and credentials onto a Result using the
// provider's claim layout. It performs no I/O. credentials is copied before
// "token" is set.
func Normalize(provider Provider, profile Profile, credentials Credentials) *Result {
	return normalize(provider, profile, credentials)
}

func normalize(provider Provider, profile Profile, credentials Credentials) *Result {
	result := &Result{
		Provider:    provider.Name(),
		Credentials: Credentials(cloneMap(credentials)),
		Raw:         profile,
	}

	for _, c := range extractClaims(provider.ProfileFormat(), profile) {
		switch c.Type {
		case ClaimGivenName:
			result.Info.FirstName = c.Value
		case ClaimSurname:
			result.Info.LastName = c.Value
		case ClaimEmailAddress:
			result.Info.Email = c.Value
		case provider.NicknameClaim():
			result.Info.Nickname = c.Value
		case ClaimMobilePhone:
			result.Info.Phone = c.Value
		}
	}

	if result.Info.FirstName != "" && result.Info.LastName != "" {
		result.Info.Name = result.Info.FirstName + " " + result.Info.LastName
	} else {
		result.Info.Name = UnknownName
	}

	result.UID = scalarString(profile[provider.UIDField()])
	if result.UID == "" {
		result.UID = result.Info.Nickname
	}

	if token := result.Credentials.String("access_token"); token != "" {
		result.Credentials["token"] = token
	}

	return result
}

// extractClaims flattens either profile format into claim pairs. Entries
// that are not scalar values are skipped.
func extractClaims(format ProfileFormat, profile Profile) []claim {
	var claims []claim

	switch format {
	case ProfileClaimsList:
		list, _ := profile["Claims"].([]any)
		for _, item := range list {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			typ := scalarString(entry["Type"])
			if typ == "" {
				continue
			}
			claims = append(claims, claim{Type: typ, Value: scalarString(entry["Value"])})
		}
	default:
		for key, value := range profile {
			if v := scalarString(value); v != "" {
				claims = append(claims, claim{Type: key, Value: v})
			}
		}
	}

	return claims
}

// scalarString renders strings, numbers and booleans; maps, slices and nil
// yield "".
func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
