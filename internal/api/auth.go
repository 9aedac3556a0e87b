package api

import (
	"context"
	"net/http"

	"github.com/hay-kot/storefront/internal/core/session"
)

// Credentials identify an account.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, creds Credentials) (session.Session, error) {
	var resp struct {
		Token    string `json:"token"`
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/auth/login", body: creds}, &resp); err != nil {
		return session.Session{}, err
	}

	return session.Session{
		Token: resp.Token,
		User:  session.User{ID: resp.ID, Username: resp.Username},
	}, nil
}

// Register creates an account. It does not sign in.
func (c *Client) Register(ctx context.Context, creds Credentials) (session.User, error) {
	var resp struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/auth/register", body: creds}, &resp); err != nil {
		return session.User{}, err
	}
	return session.User{ID: resp.ID, Username: resp.Username}, nil
}
