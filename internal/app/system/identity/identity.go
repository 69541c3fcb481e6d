// Package identity resolves third-party identity tokens into verified
// account details.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/globaltrotter/globaltrotter/internal/domain/apperr"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Identity is what a provider vouches for.
type Identity struct {
	ExternalID    string
	Email         string
	EmailVerified bool
	DisplayName   string
	Picture       string
}

// Verifier resolves an access token issued by an identity provider.
// Rejected tokens match apperr.ErrTokenExpiredOrInvalid; provider outages
// match apperr.ErrUpstreamUnavailable.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Google verifies Google OAuth access tokens against the userinfo endpoint
// and drives the authorization-code redirect flow.
type Google struct {
	cfg         *oauth2.Config
	userInfoURL string
}

// NewGoogle returns a Google verifier. redirectURL is the absolute callback
// URL registered with Google.
func NewGoogle(clientID, clientSecret, redirectURL string) *Google {
	return &Google{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"openid",
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
	}
}

// IsConfigured reports whether client credentials are set.
func (g *Google) IsConfigured() bool {
	return g.cfg.ClientID != "" && g.cfg.ClientSecret != ""
}

// AuthCodeURL returns the consent-screen URL for state.
func (g *Google) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for an access token.
func (g *Google) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: exchange code: %v", apperr.ErrTokenExpiredOrInvalid, err)
	}
	return tok.AccessToken, nil
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Verify implements Verifier.
func (g *Google) Verify(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, fmt.Errorf("%w: empty token", apperr.ErrTokenExpiredOrInvalid)
	}

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	resp, err := client.Get(g.userInfoURL)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: fetch user info: %v", apperr.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Identity{}, fmt.Errorf("%w: provider rejected token", apperr.ErrTokenExpiredOrInvalid)
	case resp.StatusCode != http.StatusOK:
		return Identity{}, fmt.Errorf("%w: user info status %d", apperr.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Identity{}, fmt.Errorf("%w: decode user info: %v", apperr.ErrUpstreamUnavailable, err)
	}
	if info.ID == "" || info.Email == "" {
		return Identity{}, fmt.Errorf("%w: user info missing id or email", apperr.ErrTokenExpiredOrInvalid)
	}

	return Identity{
		ExternalID:    info.ID,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		DisplayName:   info.Name,
		Picture:       info.Picture,
	}, nil
}
