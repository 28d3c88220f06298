// Package oauth talks to federated identity providers and keeps the
// short-lived state nonces of the authorization-code flow.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"jobboard/internal/auth"
	"jobboard/internal/config"
)

const (
	ProviderGoogle = "google"

	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	maxUserInfoBytes  = 1 << 20
)

var ErrUnverifiedEmail = errors.New("provider did not verify the email address")

// Provider runs the authorization-code flow for one identity provider.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Identity(ctx context.Context, code string) (auth.Identity, error)
}

type GoogleProvider struct {
	conf        *oauth2.Config
	userInfoURL string
}

func NewGoogleProvider(cfg config.OAuthProvider) *GoogleProvider {
	return newGoogleProvider(cfg, google.Endpoint, googleUserInfoURL)
}

func newGoogleProvider(cfg config.OAuthProvider, endpoint oauth2.Endpoint, userInfoURL string) *GoogleProvider {
	return &GoogleProvider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: userInfoURL,
	}
}

func (g *GoogleProvider) Name() string { return ProviderGoogle }

func (g *GoogleProvider) AuthCodeURL(state string) string {
	return g.conf.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// Identity exchanges the code and reads the account's OpenID profile.
func (g *GoogleProvider) Identity(ctx context.Context, code string) (auth.Identity, error) {
	token, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return auth.Identity{}, err
	}
	resp, err := g.conf.Client(ctx, token).Do(req)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return auth.Identity{}, fmt.Errorf("fetch userinfo: status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUserInfoBytes)).Decode(&info); err != nil {
		return auth.Identity{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Sub == "" || info.Email == "" {
		return auth.Identity{}, fmt.Errorf("userinfo is missing sub or email")
	}
	if !info.EmailVerified {
		return auth.Identity{}, ErrUnverifiedEmail
	}

	return auth.Identity{
		Provider:   ProviderGoogle,
		Subject:    info.Sub,
		Email:      info.Email,
		GivenName:  info.GivenName,
		FamilyName: info.FamilyName,
		Name:       info.Name,
		AvatarURL:  info.Picture,
	}, nil
}
