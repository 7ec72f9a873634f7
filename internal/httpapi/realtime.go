package httpapi

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"campushub/internal/records"
)

const keepAlive = 25 * time.Second

// realtimeFeed streams row changes as server-sent events named "change".
func (s *Server) realtimeFeed(c *gin.Context) {
	var tables []string
	if q := c.Query("tables"); q != "" {
		for _, t := range strings.Split(q, ",") {
			t = strings.TrimSpace(t)
			if _, err := records.Lookup(t); err != nil {
				fail(c, err, nil)
				return
			}
			tables = append(tables, t)
		}
	}
	ctx := c.Request.Context()
	changes, err := s.Broker.Subscribe(ctx, tables...)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime unavailable"})
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ch, ok := <-changes:
			if !ok {
				return false
			}
			c.SSEvent("change", ch)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Unix())
			return true
		}
	})
}
