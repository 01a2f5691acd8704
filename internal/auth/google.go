package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleVerifier resolves a Google access token to the user's identity
// via the userinfo endpoint.
type GoogleVerifier struct {
	UserInfoURL string
	http        *http.Client
}

func NewGoogleVerifier() *GoogleVerifier {
	return &GoogleVerifier{
		UserInfoURL: googleUserInfoURL,
		http:        &http.Client{Timeout: 5 * time.Second},
	}
}

// Verify fetches the profile behind an access token. An invalid or
// expired token yields an error, never a partial identity.
func (v *GoogleVerifier) Verify(ctx context.Context, accessToken string) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.UserInfoURL, nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := v.http.Do(req)
	if err != nil {
		return Identity{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("google userinfo returned %d", resp.StatusCode)
	}
	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Identity{}, err
	}
	if info.Sub == "" {
		return Identity{}, errors.New("missing subject in userinfo")
	}
	return Identity{
		Subject:       info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          info.Name,
		AvatarURL:     info.Picture,
	}, nil
}
