package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campushub/internal/portal"
	"campushub/internal/profile"
	"campushub/internal/records"
	"campushub/internal/session"
)

func rows(c *gin.Context, rs []records.Row, err error) {
	if err != nil {
		fail(c, err, nil)
		return
	}
	if rs == nil {
		rs = []records.Row{}
	}
	c.JSON(http.StatusOK, gin.H{"rows": rs})
}

func (s *Server) publicEvents(c *gin.Context) {
	upcoming := c.DefaultQuery("upcoming", "true") != "false"
	rs, err := s.Portal.Events(c.Request.Context(), c.Query("q"), upcoming)
	rows(c, rs, err)
}

func (s *Server) publicEvent(c *gin.Context) {
	row, err := s.Portal.Event(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"row": row})
}

func (s *Server) publicGallery(c *gin.Context) {
	albums, err := s.Portal.Gallery(c.Request.Context(), c.Query("category"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"albums": albums})
}

func (s *Server) publicNotifications(c *gin.Context) {
	rs, err := s.Portal.Notifications(c.Request.Context(), portal.AudienceAll)
	rows(c, rs, err)
}

func (s *Server) publicTable(c *gin.Context) {
	table, ok := portal.PublicTables[c.Param("table")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	year := ""
	if table == "placements" {
		year = c.Query("year")
	}
	rs, err := s.Portal.Table(c.Request.Context(), table, year)
	rows(c, rs, err)
}

func currentProfile(c *gin.Context) *profile.Profile {
	sess, _ := session.From(c)
	return sess.Profile
}

func (s *Server) studentCertificates(c *gin.Context) {
	rs, err := s.Portal.Certificates(c.Request.Context(), currentProfile(c))
	rows(c, rs, err)
}

func (s *Server) studentAttendance(c *gin.Context) {
	rs, err := s.Portal.Attendance(c.Request.Context(), currentProfile(c))
	rows(c, rs, err)
}

func (s *Server) studentResults(c *gin.Context) {
	rs, err := s.Portal.Results(c.Request.Context(), currentProfile(c))
	rows(c, rs, err)
}

func (s *Server) studentTimetable(c *gin.Context) {
	rs, err := s.Portal.Timetable(c.Request.Context(), currentProfile(c))
	rows(c, rs, err)
}

func (s *Server) studentNotifications(c *gin.Context) {
	rs, err := s.Portal.Notifications(c.Request.Context(), portal.AudienceStudents)
	rows(c, rs, err)
}

func (s *Server) organizerEvents(c *gin.Context) {
	rs, err := s.Portal.OrganizerEvents(c.Request.Context(), currentProfile(c))
	rows(c, rs, err)
}

func (s *Server) organizerCreate(c *gin.Context) {
	form, files, err := s.readForm(c, "image")
	if err != nil {
		fail(c, err, nil)
		return
	}
	out, err := s.Portal.CreateEvent(c.Request.Context(), currentProfile(c), form, files)
	if err != nil {
		fail(c, err, out.Notices)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (s *Server) organizerDelete(c *gin.Context) {
	out, err := s.Portal.DeleteEvent(c.Request.Context(), currentProfile(c), c.Param("id"))
	if err != nil {
		fail(c, err, out.Notices)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) crewEvents(c *gin.Context) {
	rs, err := s.Portal.Events(c.Request.Context(), c.Query("q"), false)
	rows(c, rs, err)
}
