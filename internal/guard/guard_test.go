package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricepulse/pricepulse-cli/internal/session"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		status session.Status
		loc    Location
		want   string // "" means no redirect
	}{
		{
			name:   "unauthenticated on protected path",
			status: session.StatusUnauthenticated,
			loc:    Location{Path: "/dashboard"},
			want:   "/login?redirectTo=%2Fdashboard",
		},
		{
			name:   "unauthenticated on nested protected path with query",
			status: session.StatusUnauthenticated,
			loc:    Location{Path: "/dashboard/products", RawQuery: "sort=price"},
			want:   "/login?redirectTo=%2Fdashboard%2Fproducts%3Fsort%3Dprice",
		},
		{
			name:   "unauthenticated on admin",
			status: session.StatusUnauthenticated,
			loc:    Location{Path: "/admin"},
			want:   "/login?redirectTo=%2Fadmin",
		},
		{
			name:   "prefix sibling is not protected",
			status: session.StatusUnauthenticated,
			loc:    Location{Path: "/dashboardx"},
			want:   "",
		},
		{
			name:   "authenticated stays on protected path",
			status: session.StatusAuthenticated,
			loc:    Location{Path: "/dashboard"},
			want:   "",
		},
		{
			name:   "loading does not redirect",
			status: session.StatusLoading,
			loc:    Location{Path: "/dashboard"},
			want:   "",
		},
		{
			name:   "entry page with refresh cookie bounces home",
			status: session.StatusUnauthenticated,
			loc:    Location{Path: "/login", HasRefreshCookie: true},
			want:   "/dashboard",
		},
		{
			name:   "register with refresh cookie bounces home",
			status: session.StatusUnauthenticated,
			loc:    Location{Path: "/register", RawQuery: "plan=pro", HasRefreshCookie: true},
			want:   "/dashboard",
		},
		{
			name:   "entry page without cookie stays",
			status: session.StatusUnauthenticated,
			loc:    Location{Path: "/login"},
			want:   "",
		},
		{
			name:   "public page stays",
			status: session.StatusUnauthenticated,
			loc:    Location{Path: "/"},
			want:   "",
		},
	}

	g := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.Evaluate(tt.status, tt.loc)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Target)
		})
	}
}
