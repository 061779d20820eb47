package oauth

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/paysignal/console-auth/internal/auth/domain"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type Google struct {
	cfg         *oauth2.Config
	userInfoURL string
}

func NewGoogle(clientID, clientSecret, redirectURL string) *Google {
	return &Google{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
	}
}

func (g *Google) Name() string { return domain.ProviderGoogle }

func (g *Google) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (g *Google) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return g.cfg.Exchange(ctx, code)
}

func (g *Google) FetchClaims(ctx context.Context, token *oauth2.Token) (Claims, error) {
	var info struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
	}
	if err := fetchJSON(ctx, g.cfg.Client(ctx, token), g.userInfoURL, &info); err != nil {
		return Claims{}, err
	}
	if info.Email == "" || !info.VerifiedEmail {
		return Claims{}, ErrNoVerifiedEmail
	}
	return Claims{ProviderUserID: info.ID, Email: info.Email}, nil
}
