// Package httpapi exposes the services over HTTP with gin.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campushub/internal/account"
	"campushub/internal/auth"
	"campushub/internal/blob"
	"campushub/internal/dashboard"
	"campushub/internal/httpmiddleware"
	"campushub/internal/logging"
	"campushub/internal/metrics"
	"campushub/internal/portal"
	"campushub/internal/profile"
	"campushub/internal/realtime"
	"campushub/internal/session"
)

// HealthCheck reports one dependency's state.
type HealthCheck func(ctx context.Context) bool

// Server carries everything the handlers need.
type Server struct {
	Accounts  *account.Service
	Sessions  *session.Manager
	Profiles  *profile.Service
	Issuer    *auth.Issuer
	Dashboard *dashboard.Dashboard
	Portal    *portal.Service
	Broker    realtime.Broker
	Blobs     blob.Store
	// Files serves local storage under /files when set.
	Files *blob.Local

	MaxUploadBytes int64
	CORSOrigins    []string
	APILimiter     httpmiddleware.Limiter
	LoginLimiter   httpmiddleware.Limiter
	Health         map[string]HealthCheck
	Logger         *slog.Logger
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.MaxUploadBytes <= 0 {
		s.MaxUploadBytes = 10 << 20
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.Middleware(s.Logger, "/healthz", "/metrics"))
	r.Use(metrics.GinMiddleware())
	if len(s.CORSOrigins) > 0 {
		r.Use(httpmiddleware.CORS(s.CORSOrigins))
	}
	r.Use(httpmiddleware.SecurityHeaders())
	if s.APILimiter != nil {
		r.Use(httpmiddleware.RateLimit(s.APILimiter, "api"))
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", s.healthz)
	if s.Files != nil {
		r.GET("/files/:bucket/*path", s.serveFile)
	}

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	if s.LoginLimiter != nil {
		authGroup.Use(httpmiddleware.RateLimit(s.LoginLimiter, "login"))
	}
	authGroup.POST("/signup", s.signUp)
	authGroup.POST("/login", s.login)
	authGroup.POST("/demo", s.demoLogin)
	authGroup.GET("/demo", s.demoRoles)
	authGroup.POST("/refresh", s.refresh)
	authGroup.POST("/logout", s.logout)

	signedIn := api.Group("", auth.Bearer(s.Issuer))
	signedIn.GET("/session", s.currentSession)
	signedIn.GET("/realtime", s.realtimeFeed)

	withSession := signedIn.Group("", session.Load(s.Sessions, s.Profiles))
	withSession.POST("/profile/complete", s.completeProfile)
	withSession.POST("/profile/photo", s.uploadPhoto)

	gated := withSession.Group("", session.RequireCompleteProfile())

	admin := gated.Group("/admin", session.RequireRole(profile.RoleAdmin))
	admin.GET("/tabs", s.adminTabs)
	admin.GET("/:tab", s.adminList)
	admin.POST("/:tab", s.adminAdd)
	admin.POST("/:tab/reload", s.adminReload)
	admin.PATCH("/:tab/:id", s.adminUpdate)
	admin.DELETE("/:tab/:id", s.adminDelete)

	public := api.Group("/public")
	public.GET("/events", s.publicEvents)
	public.GET("/events/:id", s.publicEvent)
	public.GET("/gallery", s.publicGallery)
	public.GET("/notifications", s.publicNotifications)
	public.GET("/:table", s.publicTable)

	student := gated.Group("/student", session.RequireRole(profile.RoleStudent))
	student.GET("/certificates", s.studentCertificates)
	student.GET("/attendance", s.studentAttendance)
	student.GET("/results", s.studentResults)
	student.GET("/timetable", s.studentTimetable)
	student.GET("/notifications", s.studentNotifications)

	organizer := gated.Group("/organizer", session.RequireRole(profile.RoleOrganizer, profile.RoleAdmin))
	organizer.GET("/events", s.organizerEvents)
	organizer.POST("/events", s.organizerCreate)
	organizer.DELETE("/events/:id", s.organizerDelete)

	crew := gated.Group("/crew", session.RequireRole(profile.RoleCrew, profile.RoleOrganizer, profile.RoleAdmin))
	crew.GET("/events", s.crewEvents)

	return r
}

func (s *Server) healthz(c *gin.Context) {
	body := gin.H{}
	status := http.StatusOK
	for name, check := range s.Health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
		}
	}
	if status == http.StatusOK {
		body["status"] = "ok"
	} else {
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}

func (s *Server) serveFile(c *gin.Context) {
	p, err := s.Files.Resolve(c.Param("bucket"), c.Param("path"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.File(p)
}
