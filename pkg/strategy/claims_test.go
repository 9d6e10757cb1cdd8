package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_Name(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		want    string
	}{
		{
			name:    "both parts",
			profile: Profile{ClaimGivenName: "Jane", ClaimSurname: "Doe"},
			want:    "Jane Doe",
		},
		{
			name:    "first name only",
			profile: Profile{ClaimGivenName: "Jane"},
			want:    UnknownName,
		},
		{
			name:    "last name only",
			profile: Profile{ClaimSurname: "Doe"},
			want:    UnknownName,
		},
		{
			name:    "empty first name",
			profile: Profile{ClaimGivenName: "", ClaimSurname: "Doe"},
			want:    UnknownName,
		},
		{
			name:    "no names",
			profile: Profile{ClaimEmailAddress: "jane@x.com"},
			want:    UnknownName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Normalize(Divvy(""), tt.profile, Credentials{"access_token": "AT1"})
			assert.Equal(t, tt.want, result.Info.Name)
		})
	}
}

func TestNormalize_UnknownClaimsDropped(t *testing.T) {
	profile := Profile{
		ClaimNameIdentifier: "u42",
		"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/country": "NO",
		"nested": map[string]any{"a": "b"},
		"list":   []any{"x"},
		"nil":    nil,
	}

	result := Normalize(Divvy(""), profile, Credentials{"access_token": "AT1"})

	assert.Equal(t, Info{Nickname: "u42", Name: UnknownName}, result.Info)
	assert.Equal(t, "u42", result.UID)
	assert.Equal(t, profile, result.Raw)
}

func TestNormalize_NicknameClaimIsProviderSpecific(t *testing.T) {
	profile := Profile{
		ClaimNameIdentifier: "id-1",
		ClaimName:           "jdoe",
	}

	divvy := Normalize(Divvy(""), profile, Credentials{})
	assert.Equal(t, "id-1", divvy.Info.Nickname)
	assert.Equal(t, "id-1", divvy.UID)

	custom, err := CustomProvider(ProviderConfig{
		ProviderName:      "acme",
		AuthEndpoint:      "https://idp.acme.test/authorize",
		TokenEndpoint:     "https://idp.acme.test/token",
		UserInfoEndpoint:  "https://idp.acme.test/userinfo",
		NicknameClaimType: ClaimName,
	})
	assert.NoError(t, err)

	acme := Normalize(custom, profile, Credentials{})
	assert.Equal(t, "jdoe", acme.Info.Nickname)
	assert.Equal(t, "jdoe", acme.UID)
}

func TestNormalize_ClaimsList(t *testing.T) {
	profile := Profile{
		"Name": "jdoe",
		"Claims": []any{
			map[string]any{"Type": ClaimEmailAddress, "Value": "jane@x.com"},
			map[string]any{"Type": ClaimMobilePhone, "Value": float64(4712345678)},
			map[string]any{"Value": "no type"},
			"not an object",
		},
	}

	result := Normalize(Ultrareg(""), profile, Credentials{"access_token": "AT1"})

	assert.Equal(t, "jdoe", result.UID)
	assert.Equal(t, "jane@x.com", result.Info.Email)
	assert.Equal(t, "4712345678", result.Info.Phone)
	assert.Empty(t, result.Info.Nickname)
	assert.Equal(t, UnknownName, result.Info.Name)
}

func TestNormalize_ClaimsListMissing(t *testing.T) {
	result := Normalize(Ultrareg(""), Profile{"Name": "jdoe"}, Credentials{"access_token": "AT1"})

	assert.Equal(t, "jdoe", result.UID)
	assert.Equal(t, UnknownName, result.Info.Name)
}

func TestNormalize_CredentialsToken(t *testing.T) {
	in := Credentials{"access_token": "AT1", "api_key": "k"}

	result := Normalize(Divvy(""), Profile{}, in)

	assert.Equal(t, "AT1", result.Credentials.Token())
	assert.Equal(t, "k", result.Credentials.String("api_key"))
	assert.NotContains(t, in, "token", "input credentials must not be modified")
}

func TestMergeCredentials(t *testing.T) {
	base := Credentials{"access_token": "a", "api_key": "k"}
	merged := mergeCredentials(base, TokenResponse{"access_token": "b", "expires_in": float64(60)})

	assert.Equal(t, Credentials{"access_token": "b", "api_key": "k", "expires_in": float64(60)}, merged)
	assert.Equal(t, "a", base["access_token"])
}
