// Package session resolves who is signed in, which profile they have, and where the
// front-end should send them next.
package session

import (
	"context"
	"log/slog"
	"strings"

	"campushub/internal/notice"
	"campushub/internal/profile"
)

// Event is an auth-state change that triggers resolution.
type Event string

const (
	InitialSession Event = "INITIAL_SESSION"
	SignedIn       Event = "SIGNED_IN"
	SignedOut      Event = "SIGNED_OUT"
	TokenRefreshed Event = "TOKEN_REFRESHED"
	UserUpdated    Event = "USER_UPDATED"
)

// Routes the resolver may redirect to.
const (
	RouteHome       = "/"
	RouteLogin      = "/login"
	RouteOnboarding = "/complete-profile"
)

var dashboards = map[string]string{
	profile.RoleAdmin:     "/admin-dashboard",
	profile.RoleStudent:   "/student-dashboard",
	profile.RoleFaculty:   "/faculty-dashboard",
	profile.RoleOrganizer: "/organizer-dashboard",
	profile.RoleCrew:      "/crew-dashboard",
}

// RedirectFor is the fixed (role, status) lookup: admitted users go to their role's
// dashboard, pending and everything else go home.
func RedirectFor(role, status string) string {
	if !profile.Admitted(status) {
		return RouteHome
	}
	if path, ok := dashboards[role]; ok {
		return path
	}
	return RouteHome
}

var publicPaths = []string{"/", "/login", "/signup", "/events", "/gallery", "/about", "/contact", RouteOnboarding}

// IsPublicPath reports whether p is reachable without signing in.
func IsPublicPath(p string) bool {
	if p == "" {
		return false
	}
	for _, pub := range publicPaths {
		if p == pub {
			return true
		}
	}
	return strings.HasPrefix(p, "/events/")
}

// Identity is the signed-in auth user.
type Identity struct {
	UserID      string `json:"id"`
	Email       string `json:"email"`
	PendingRole string `json:"pending_role,omitempty"`
}

// Resolution is the session state handed to the front-end.
type Resolution struct {
	Event                Event            `json:"event"`
	Authenticated        bool             `json:"authenticated"`
	User                 *Identity        `json:"user,omitempty"`
	Profile              *profile.Profile `json:"profile,omitempty"`
	NeedsProfileCreation bool             `json:"needs_profile_creation"`
	ProfileIncomplete    bool             `json:"profile_incomplete"`
	MissingFields        []string         `json:"missing_fields,omitempty"`
	Redirect             string           `json:"redirect,omitempty"`
	Notices              notice.List      `json:"notices,omitempty"`
}

// ProfileGetter loads a profile row, returning nil when the user has none.
type ProfileGetter interface {
	Get(ctx context.Context, id string) (*profile.Profile, error)
}

// Resolver turns an identity into a Resolution.
type Resolver struct {
	profiles ProfileGetter
	logger   *slog.Logger
}

func NewResolver(p ProfileGetter, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{profiles: p, logger: logger}
}

// Resolve runs the bootstrap for ev. currentPath is the front-end's location and
// only matters on sign-out.
func (r *Resolver) Resolve(ctx context.Context, ev Event, id *Identity, currentPath string) Resolution {
	if ev == SignedOut || id == nil {
		return signedOut(ev, currentPath)
	}

	res := Resolution{Event: ev, Authenticated: true, User: id}
	p, err := r.profiles.Get(ctx, id.UserID)
	if err != nil {
		r.logger.Error("profile lookup failed", "user_id", id.UserID, "event", ev, "err", err)
		out := Resolution{Event: ev, Redirect: RouteLogin}
		out.Notices.Fail("Could not load your profile", err)
		return out
	}

	if p == nil {
		if id.PendingRole != "" {
			res.NeedsProfileCreation = true
			res.Redirect = RouteOnboarding
		} else {
			res.Redirect = RouteHome
		}
		return res
	}

	res.Profile = p
	res.MissingFields = profile.Missing(p)
	res.ProfileIncomplete = len(res.MissingFields) > 0
	res.Redirect = RedirectFor(p.Role, p.Status)
	return res
}

func signedOut(ev Event, currentPath string) Resolution {
	res := Resolution{Event: ev}
	if !IsPublicPath(currentPath) {
		res.Redirect = RouteLogin
	}
	return res
}
