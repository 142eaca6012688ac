package api

import (
	"encoding/json"
	"time"

	"github.com/pricepulse/pricepulse-cli/internal/session"
)

// Envelope is the common response wrapper used by every PricePulse endpoint.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Count   int             `json:"count,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// decodeEnvelope parses a response body defensively: a missing or malformed
// body yields a zero envelope, never an error, so callers can treat absent
// payloads uniformly.
func decodeEnvelope(body []byte) Envelope {
	var env Envelope
	if len(body) == 0 {
		return env
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}
	}
	return env
}

// message returns the server-supplied message, preferring message over error.
func (e Envelope) message() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// authPayload is the normalized shape of login/refresh responses.
type authPayload struct {
	AccessToken string            `json:"accessToken"`
	ExpiresAt   int64             `json:"accessTokenExpiresAt"`
	ExpiresIn   int64             `json:"expiresIn"`
	User        *session.AuthUser `json:"user"`
}

// parseAuthPayload extracts the access token, expiry and user from a
// login/refresh response. The server places these either at the envelope's
// top level or nested under data; both are accepted. A relative expiresIn
// (seconds) is converted to an absolute epoch-millisecond expiry against now.
// Malformed input yields a zero payload, never an error.
func parseAuthPayload(body []byte, now time.Time) authPayload {
	var p authPayload
	if len(body) == 0 {
		return p
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return authPayload{}
	}

	if p.AccessToken == "" {
		env := decodeEnvelope(body)
		if len(env.Data) > 0 {
			var nested authPayload
			if err := json.Unmarshal(env.Data, &nested); err == nil {
				p = nested
			}
		}
	}

	if p.ExpiresAt == 0 && p.ExpiresIn > 0 {
		p.ExpiresAt = now.Add(time.Duration(p.ExpiresIn) * time.Second).UnixMilli()
	}
	p.ExpiresIn = 0

	return p
}
