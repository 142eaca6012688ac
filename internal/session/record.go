package session

// AuthUser is the identity attached to a signed-in session.
type AuthUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Record is the canonical in-memory representation of the signed-in identity
// and its access credential. An empty AccessToken means no credential;
// ExpiresAt is epoch milliseconds, 0 when the server gave no expiry.
type Record struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   int64     `json:"accessTokenExpiresAt,omitempty"`
	User        *AuthUser `json:"user,omitempty"`
}

// Empty reports whether the record carries neither a credential nor a user.
// An empty record is never persisted; it maps to "no session".
func (r Record) Empty() bool {
	return r.AccessToken == "" && r.User == nil
}

// clone returns a copy that does not share the User pointer, so callers
// can't mutate the store's record through a returned snapshot.
func (r Record) clone() Record {
	if r.User != nil {
		u := *r.User
		r.User = &u
	}
	return r
}
