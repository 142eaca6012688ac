package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pricepulse/pricepulse-cli/internal/session"
)

// Credentials is an email/password pair for login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterInput is the payload for account creation.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname,omitempty"`
}

// Login authenticates with email and password and installs the resulting
// session into the store. The server also sets the long-lived refresh cookie
// on this response.
func (c *Client) Login(ctx context.Context, creds Credentials) (session.Record, error) {
	body, err := c.do(ctx, requestOpts{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   creds,
		noAuth: true,
	})
	if err != nil {
		return session.Record{}, err
	}

	payload := parseAuthPayload(body, time.Now())
	if payload.AccessToken == "" {
		return session.Record{}, fmt.Errorf("login response missing access token")
	}

	rec := session.Record{
		AccessToken: payload.AccessToken,
		ExpiresAt:   payload.ExpiresAt,
		User:        payload.User,
	}
	c.store.Set(rec)
	c.persistCookies()

	return rec, nil
}

// Register creates a new account. It does not sign the user in.
func (c *Client) Register(ctx context.Context, in RegisterInput) (string, error) {
	body, err := c.do(ctx, requestOpts{
		method: http.MethodPost,
		path:   "/auth/register",
		body:   in,
		noAuth: true,
	})
	if err != nil {
		return "", err
	}
	return decodeEnvelope(body).message(), nil
}

// Logout revokes the long-lived credential on the server and clears the
// local session. The local session is cleared even when the server call
// fails; a logout never leaves credentials behind.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.do(ctx, requestOpts{method: http.MethodPost, path: "/auth/logout"}); err != nil {
		log.Warn().Err(err).Msg("logout request failed, clearing local session anyway")
	}

	c.store.Clear()
	if c.cookies != nil {
		if err := c.cookies.DeleteCookies(); err != nil {
			log.Warn().Err(err).Msg("failed to delete persisted cookies")
		}
	}
	return nil
}

// RequestPasswordReset asks the server to email a reset code.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	body, err := c.do(ctx, requestOpts{
		method: http.MethodPost,
		path:   "/auth/request-password-reset",
		body:   map[string]string{"email": email},
		noAuth: true,
	})
	if err != nil {
		return "", err
	}
	return decodeEnvelope(body).message(), nil
}

// ResetPassword completes a password reset with the emailed code.
func (c *Client) ResetPassword(ctx context.Context, email, code, newPassword string) (string, error) {
	body, err := c.do(ctx, requestOpts{
		method: http.MethodPost,
		path:   "/auth/reset-password",
		body: map[string]string{
			"email":       email,
			"code":        code,
			"newPassword": newPassword,
		},
		noAuth: true,
	})
	if err != nil {
		return "", err
	}
	return decodeEnvelope(body).message(), nil
}
