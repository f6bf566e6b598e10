package api

import (
	"errors"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"lecturenotes/internal/fileutil"
	"lecturenotes/internal/services"
	"lecturenotes/internal/textutil"
)

// limitBody caps the request body at api.max_upload_mb.
func (s *server) limitBody(c *gin.Context) {
	if s.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	}
}

// formFile returns the named part or nil when the client omitted it.
func formFile(c *gin.Context, field string) (*multipart.FileHeader, error) {
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrInput, "upload", "read form", field, err)
	}
	return header, nil
}

// saveUpload writes header into dir under a sanitized name and returns the
// path.
func saveUpload(header *multipart.FileHeader, dir, fallback string) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", services.Wrap(services.ErrInput, "upload", "open part", header.Filename, err)
	}
	defer src.Close()
	path := filepath.Join(dir, textutil.UploadName(header.Filename, fallback))
	if _, err := fileutil.StreamAtomic(path, src, 0o644); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", err
		}
		return "", services.Wrap(services.ErrResource, "upload", "store part", header.Filename, err)
	}
	return path, nil
}

// formBool accepts the usual spellings of true; anything else is false.
func formBool(value string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && v
}

// userEmail reads the caller identity from X-User-Email, falling back to
// the user_email form or query value.
func userEmail(c *gin.Context) string {
	if v := strings.TrimSpace(c.GetHeader("X-User-Email")); v != "" {
		return v
	}
	if v := strings.TrimSpace(c.PostForm("user_email")); v != "" {
		return v
	}
	return strings.TrimSpace(c.Query("user_email"))
}
