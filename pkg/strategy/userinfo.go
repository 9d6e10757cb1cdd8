package strategy

import (
	"context"
	"fmt"
	"net/http"
)

// Profile is the decoded userinfo payload. Its shape depends on the
// provider's ProfileFormat.
type Profile map[string]any

// fetchProfile queries the provider's userinfo endpoint with the bearer token.
func (s *Strategy) fetchProfile(ctx context.Context, accessToken string) (Profile, error) {
	const message = "Failed when attempting to query user information"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.provider.UserInfoURL(), nil)
	if err != nil {
		return nil, newAuthError(PhaseFetchingProfile, CodeUserInfo, message, nil, err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.do(req)
	if err != nil {
		return nil, newAuthError(PhaseFetchingProfile, CodeUserInfo, message, resp.raw(), err)
	}

	if resp.status < 200 || resp.status > 299 {
		return nil, newAuthError(PhaseFetchingProfile, CodeUserInfo, message, resp.raw(),
			fmt.Errorf("unexpected status %d", resp.status))
	}

	profile, err := decodeObject(resp.body)
	if err != nil || len(profile) == 0 {
		return nil, newAuthError(PhaseFetchingProfile, CodeUserInfo, message, resp.raw(), err)
	}

	return Profile(profile), nil
}
