package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"campushub/internal/blob"
	"campushub/internal/dashboard"
)

func isImage(contentType string) bool { return blob.IsImage(contentType) }

// readUploads reads every file under field, enforcing the size limit and sniffing
// the real content type.
func (s *Server) readUploads(c *gin.Context, field string) ([]dashboard.Upload, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.MaxUploadBytes*4)
	if err := c.Request.ParseMultipartForm(s.MaxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, blob.ErrTooLarge
		}
		return nil, fmt.Errorf("%w: %v", errBadForm, err)
	}
	var out []dashboard.Upload
	for _, fh := range c.Request.MultipartForm.File[field] {
		if fh.Size > s.MaxUploadBytes {
			return nil, fmt.Errorf("%w: %s", blob.ErrTooLarge, fh.Filename)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(io.LimitReader(f, s.MaxUploadBytes+1))
		f.Close()
		if err != nil {
			return nil, err
		}
		ct, err := blob.Sniff(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fh.Filename, err)
		}
		out = append(out, dashboard.Upload{Filename: fh.Filename, ContentType: ct, Body: bytes.NewReader(data)})
	}
	return out, nil
}

var errBadForm = errors.New("malformed form")

// readForm returns the submitted fields and files. Multipart bodies carry both;
// JSON bodies carry fields only.
func (s *Server) readForm(c *gin.Context, field string) (map[string]string, []dashboard.Upload, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		files, err := s.readUploads(c, field)
		if err != nil {
			return nil, nil, err
		}
		form := map[string]string{}
		if c.Request.MultipartForm == nil {
			return nil, nil, errBadForm
		}
		for k, v := range c.Request.MultipartForm.Value {
			if len(v) > 0 {
				form[k] = v[0]
			}
		}
		return form, files, nil
	}
	form := map[string]string{}
	if err := c.ShouldBindJSON(&form); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errBadForm, err)
	}
	return form, nil, nil
}
