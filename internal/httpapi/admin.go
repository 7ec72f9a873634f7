package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campushub/internal/dashboard"
)

func (s *Server) controller(c *gin.Context) (*dashboard.Controller, bool) {
	ctrl, err := s.Dashboard.Tab(c.Param("tab"))
	if err != nil {
		fail(c, err, nil)
		return nil, false
	}
	return ctrl, true
}

func (s *Server) adminTabs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tabs": s.Dashboard.Names()})
}

func (s *Server) adminList(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	view, err := ctrl.List(c.Request.Context(), c.Query("q"), c.Query("year"))
	if err != nil {
		fail(c, err, view.Notices)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) adminReload(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	if _, err := ctrl.Load(c.Request.Context(), c.Query("year")); err != nil {
		fail(c, err, nil)
		return
	}
	s.adminList(c)
}

func (s *Server) adminAdd(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	form, files, err := s.readForm(c, "files")
	if err != nil {
		fail(c, err, nil)
		return
	}
	out, err := ctrl.Add(c.Request.Context(), form, files)
	if err != nil {
		fail(c, err, out.Notices)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (s *Server) adminUpdate(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := ctrl.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		fail(c, err, out.Notices)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) adminDelete(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	out, err := ctrl.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err, out.Notices)
		return
	}
	c.JSON(http.StatusOK, out)
}
