package session

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campushub/internal/auth"
	"campushub/internal/profile"
)

const sessionKey = "session"

// Session is the per-request view of the signed-in user.
type Session struct {
	Identity *Identity
	Profile  *profile.Profile
}

// Role returns the profile role, or "" without a profile.
func (s *Session) Role() string {
	if s == nil || s.Profile == nil {
		return ""
	}
	return s.Profile.Role
}

// From returns the session attached by Load.
func From(c *gin.Context) (*Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Session)
	return s, ok
}

// Load attaches the Session for the bearer's user. It must run after auth.Bearer.
func Load(m *Manager, profiles ProfileGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := auth.ClaimsFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
			return
		}
		ctx := c.Request.Context()
		id, err := m.Identity(ctx, claims.Subject)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session lookup failed"})
			return
		}
		if id == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user no longer exists"})
			return
		}
		p, err := profiles.Get(ctx, id.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "profile lookup failed"})
			return
		}
		c.Set(sessionKey, &Session{Identity: id, Profile: p})
		c.Next()
	}
}

// RequireRole admits users whose profile has one of roles and an approved/active status.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		s, ok := From(c)
		if !ok || s.Profile == nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "profile required", "redirect": RouteOnboarding})
			return
		}
		if !allowed[s.Profile.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":    "forbidden: you are not authorized to access this resource",
				"redirect": RedirectFor(s.Profile.Role, s.Profile.Status),
			})
			return
		}
		if !profile.Admitted(s.Profile.Status) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account awaiting approval", "redirect": RouteHome})
			return
		}
		c.Next()
	}
}

// RequireCompleteProfile blocks every route behind it until the required profile
// fields are filled in.
func RequireCompleteProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := From(c)
		if !ok || s.Profile == nil {
			c.AbortWithStatusJSON(http.StatusPreconditionRequired, gin.H{
				"error":    "profile not created",
				"redirect": RouteOnboarding,
			})
			return
		}
		if missing := profile.Missing(s.Profile); len(missing) > 0 {
			c.AbortWithStatusJSON(http.StatusPreconditionRequired, gin.H{
				"error":          "profile incomplete",
				"missing_fields": missing,
			})
			return
		}
		c.Next()
	}
}
