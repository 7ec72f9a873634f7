package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campushub/internal/auth"
	"campushub/internal/dashboard"
	"campushub/internal/profile"
	"campushub/internal/session"
)

type signUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required,oneof=student faculty organizer crew"`
}

func (s *Server) signUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := s.Accounts.SignUp(c.Request.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		fail(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": u.ID, "email": u.Email, "pending_role": u.PendingRole})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.Sessions.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err, res.Notices)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) demoRoles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"roles": s.Sessions.DemoRoles()})
}

func (s *Server) demoLogin(c *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.Sessions.DemoSignIn(c.Request.Context(), req.Role)
	if err != nil {
		fail(c, err, res.Notices)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.Sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		fail(c, err, res.Notices)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
		CurrentPath  string `json:"current_path"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.Sessions.SignOut(c.Request.Context(), req.RefreshToken, req.CurrentPath))
}

func (s *Server) currentSession(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	ev := session.InitialSession
	if e := c.Query("event"); e == string(session.UserUpdated) {
		ev = session.UserUpdated
	}
	c.JSON(http.StatusOK, s.Sessions.Current(c.Request.Context(), ev, claims.Subject))
}

func (s *Server) completeProfile(c *gin.Context) {
	var f profile.Fields
	if err := c.ShouldBind(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, _ := session.From(c)
	ctx := c.Request.Context()
	if _, err := s.Profiles.Complete(ctx, sess.Identity.UserID, sess.Identity.Email, sess.Identity.PendingRole, f); err != nil {
		fail(c, err, nil)
		return
	}
	res := s.Sessions.Current(ctx, session.UserUpdated, sess.Identity.UserID)
	res.Notices.Success("Profile saved", "")
	c.JSON(http.StatusOK, res)
}

func (s *Server) uploadPhoto(c *gin.Context) {
	sess, _ := session.From(c)
	if sess.Profile == nil {
		c.JSON(http.StatusPreconditionRequired, gin.H{"error": "profile not created", "redirect": session.RouteOnboarding})
		return
	}
	uploads, err := s.readUploads(c, "photo")
	if err != nil {
		fail(c, err, nil)
		return
	}
	if len(uploads) != 1 || !isImage(uploads[0].ContentType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one image is required"})
		return
	}
	ctx := c.Request.Context()
	obj, err := s.Blobs.Upload(ctx, dashboard.BucketStudentPhotos, uploads[0].Filename, uploads[0].ContentType, uploads[0].Body)
	if err != nil {
		fail(c, err, nil)
		return
	}
	old := sess.Profile.PhotoPath
	p, err := s.Profiles.SetPhoto(ctx, sess.Profile.ID, obj.URL, obj.Path)
	if err != nil {
		if derr := s.Blobs.Delete(ctx, dashboard.BucketStudentPhotos, obj.Path); derr != nil {
			s.Logger.Warn("photo compensation failed", "path", obj.Path, "err", derr)
		}
		fail(c, err, nil)
		return
	}
	if old != "" {
		if err := s.Blobs.Delete(ctx, dashboard.BucketStudentPhotos, old); err != nil {
			s.Logger.Warn("old photo delete failed", "path", old, "err", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"profile": p})
}
