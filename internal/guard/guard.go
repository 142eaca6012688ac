// Package guard decides where a navigation should be redirected based on the
// derived session status. It is pure policy: it reads status and location and
// never mutates session state.
package guard

import (
	"net/url"
	"strings"

	"github.com/pricepulse/pricepulse-cli/internal/session"
)

// Location describes where the user currently is.
type Location struct {
	Path     string
	RawQuery string
	// HasRefreshCookie reports whether the long-lived credential is
	// present; entry pages bounce straight to the app when it is.
	HasRefreshCookie bool
}

// Redirect is a decision to send the user elsewhere.
type Redirect struct {
	Target string
}

// Guard holds the path policy.
type Guard struct {
	protected []string
	entry     []string
	loginPath string
	homePath  string
}

// New returns a guard with the default path policy.
func New() *Guard {
	return &Guard{
		protected: []string{"/dashboard", "/admin"},
		entry:     []string{"/login", "/register"},
		loginPath: "/login",
		homePath:  "/dashboard",
	}
}

// Evaluate returns the redirect for the given status and location, or nil
// when the user may stay where they are.
func (g *Guard) Evaluate(status session.Status, loc Location) *Redirect {
	if status == session.StatusUnauthenticated && g.isProtected(loc.Path) {
		target := loc.Path
		if loc.RawQuery != "" {
			target += "?" + loc.RawQuery
		}
		// Pointing the return target at the login page itself would
		// bounce forever.
		if target != "" && target != g.loginPath {
			q := url.Values{}
			q.Set("redirectTo", target)
			return &Redirect{Target: g.loginPath + "?" + q.Encode()}
		}
		return &Redirect{Target: g.loginPath}
	}

	if loc.HasRefreshCookie && g.isEntry(loc.Path) {
		return &Redirect{Target: g.homePath}
	}

	return nil
}

// isProtected matches the prefix itself and subpaths, but not sibling paths
// that merely share the prefix string ("/dashboardx").
func (g *Guard) isProtected(path string) bool {
	for _, p := range g.protected {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func (g *Guard) isEntry(path string) bool {
	for _, p := range g.entry {
		if path == p {
			return true
		}
	}
	return false
}
