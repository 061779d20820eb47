package oauth

import (
	"context"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/paysignal/console-auth/internal/auth/domain"
)

const (
	githubUserURL   = "https://api.github.com/user"
	githubEmailsURL = "https://api.github.com/user/emails"
)

type GitHub struct {
	cfg       *oauth2.Config
	userURL   string
	emailsURL string
}

func NewGitHub(clientID, clientSecret, redirectURL string) *GitHub {
	return &GitHub{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"user:email"},
			Endpoint:     github.Endpoint,
		},
		userURL:   githubUserURL,
		emailsURL: githubEmailsURL,
	}
}

func (g *GitHub) Name() string { return domain.ProviderGitHub }

func (g *GitHub) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state)
}

func (g *GitHub) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return g.cfg.Exchange(ctx, code)
}

func (g *GitHub) FetchClaims(ctx context.Context, token *oauth2.Token) (Claims, error) {
	client := g.cfg.Client(ctx, token)

	var info struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	}
	if err := fetchJSON(ctx, client, g.userURL, &info); err != nil {
		return Claims{}, err
	}

	// A public profile email is always verified. Otherwise fall back to
	// the emails endpoint, preferring the primary verified address.
	email := info.Email
	if email == "" {
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := fetchJSON(ctx, client, g.emailsURL, &emails); err != nil {
			return Claims{}, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				email = e.Email
				break
			}
		}
		if email == "" {
			for _, e := range emails {
				if e.Verified {
					email = e.Email
					break
				}
			}
		}
	}
	if email == "" {
		return Claims{}, ErrNoVerifiedEmail
	}

	return Claims{ProviderUserID: strconv.FormatInt(info.ID, 10), Email: email}, nil
}
