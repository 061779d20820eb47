package domain

import "time"

// Supported external identity providers.
const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

func ValidProvider(p string) bool {
	return p == ProviderGoogle || p == ProviderGitHub
}

// OAuthAccount links a console user to an external identity. The pair
// (provider, provider_user_id) is unique: one external identity maps to
// exactly one user.
type OAuthAccount struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	Email          string // address the provider reported at link time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
