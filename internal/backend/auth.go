// Package backend maps domain operations onto the hosted backend's REST
// endpoints. These clients are deliberately thin: shape normalization lives
// in internal/normalize, session policy in the controllers.
package backend

import (
	"context"
	"errors"
	"net/http"

	"github.com/thehub/storefront/internal/httpx"
)

var ErrNoToken = errors.New("auth response carried no token")

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthAPI struct {
	http *httpx.Client
}

func NewAuthAPI(c *httpx.Client) *AuthAPI {
	return &AuthAPI{http: c}
}

func (a *AuthAPI) Login(ctx context.Context, creds Credentials) (string, error) {
	return a.tokenRequest(ctx, "/auth/login", creds)
}

func (a *AuthAPI) Signup(ctx context.Context, payload SignupPayload) (string, error) {
	return a.tokenRequest(ctx, "/auth/signup", payload)
}

func (a *AuthAPI) Me(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := a.http.DoJSON(ctx, httpx.Config{
		Method: http.MethodGet,
		Path:   "/auth/me",
	}, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (a *AuthAPI) tokenRequest(ctx context.Context, path string, body any) (string, error) {
	// the backend has used several key names for the credential over time
	var resp struct {
		AuthToken  string `json:"authToken"`
		AuthToken2 string `json:"auth_token"`
		Token      string `json:"token"`
	}
	if err := a.http.DoJSON(ctx, httpx.Config{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	}, &resp); err != nil {
		return "", err
	}
	for _, tok := range []string{resp.AuthToken, resp.AuthToken2, resp.Token} {
		if tok != "" {
			return tok, nil
		}
	}
	return "", ErrNoToken
}
