package api

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pricepulse/pricepulse-cli/internal/session"
)

// One access token per process, so every refresh shares one flight slot.
const refreshKey = "session-refresh"

// Refresh obtains a new access token using the long-lived refresh cookie.
// Concurrent callers are deduplicated: while a refresh is in flight every
// caller waits on it and observes the same outcome, and the slot is cleared
// when it settles so a later call starts a fresh one.
//
// A terminated session is not an error: the store is cleared and ("", nil)
// is returned, which callers treat exactly like a logout. The error return
// is reserved for context cancellation, which aborts the caller without
// touching the session.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	v, err, _ := c.refreshGroup.Do(refreshKey, func() (any, error) {
		token, err := c.refreshOnce(ctx)
		return token, err
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) refreshOnce(ctx context.Context) (string, error) {
	// The expired access token is deliberately not attached; only the
	// cookie-jar credential authenticates this call.
	resp, err := c.httpClient.NewRequest().SetContext(ctx).Post("/auth/refresh")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Warn().Err(err).Msg("session refresh failed, clearing session")
		c.store.Clear()
		return "", nil
	}
	if resp.IsError() {
		log.Info().Int("status", resp.StatusCode()).Msg("session refresh rejected, clearing session")
		c.store.Clear()
		return "", nil
	}

	payload := parseAuthPayload(resp.Body(), time.Now())
	if payload.AccessToken == "" {
		log.Warn().Msg("session refresh response missing access token, clearing session")
		c.store.Clear()
		return "", nil
	}

	// The refresh response may omit the user; keep the one we have.
	user := payload.User
	if user == nil {
		current := c.store.Get()
		user = current.User
	}
	c.store.Set(session.Record{
		AccessToken: payload.AccessToken,
		ExpiresAt:   payload.ExpiresAt,
		User:        user,
	})
	c.persistCookies()

	return payload.AccessToken, nil
}
