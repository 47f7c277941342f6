package authapi

import "github.com/jrsteele09/go-auth-client/internal/utils"

// Credentials is the body of POST /auth/authenticate. It is never persisted.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the body of POST /auth/register.
type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`

	// ConfirmPassword is checked locally and never sent.
	ConfirmPassword string `json:"-"`

	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
}

// TokenResponse is returned by the authenticate and refresh endpoints.
type TokenResponse struct {
	// AccessToken is the JWT sent as "Authorization: Bearer <access_token>"
	// on API calls. Short-lived.
	AccessToken *string `json:"access_token,omitempty"`

	// RefreshToken is exchanged at /auth/refresh for a new pair. Every
	// refresh rotates it.
	RefreshToken *string `json:"refresh_token,omitempty"`
}

func (tr TokenResponse) Tokens() (accessToken, refreshToken string) {
	return utils.Value(tr.AccessToken), utils.Value(tr.RefreshToken)
}
