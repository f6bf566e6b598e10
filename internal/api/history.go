package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"lecturenotes/internal/services"
)

// requireUser answers 400 when the caller did not identify itself.
func (s *server) requireUser(c *gin.Context) (string, bool) {
	if s.history == nil {
		s.writeError(c, errServiceDisabled)
		return "", false
	}
	user := userEmail(c)
	if user == "" {
		s.writeMessage(c, http.StatusBadRequest, "X-User-Email header is required")
		return "", false
	}
	return user, true
}

func (s *server) handleHistoryList(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}
	records, err := s.history.List(c.Request.Context(), user)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, HistoryListResponse{Records: records})
}

func (s *server) handleHistoryGet(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}
	rec, err := s.history.Get(c.Request.Context(), user, c.Param("filename"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *server) handleHistoryDelete(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}
	if err := s.history.Delete(c.Request.Context(), user, c.Param("filename")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleHistorySearch embeds q and ranks the user's stored slides.
func (s *server) handleHistorySearch(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}
	if s.embedder == nil {
		s.writeError(c, errServiceDisabled)
		return
	}
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		s.writeMessage(c, http.StatusBadRequest, "q is required")
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeMessage(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	vectors, err := s.embedder.Embed(c.Request.Context(), []string{query})
	if err != nil {
		s.writeError(c, err)
		return
	}
	if len(vectors) != 1 {
		s.writeError(c, services.Wrap(services.ErrExternalService, "history", "embed query", "embedder returned no vector", nil))
		return
	}
	hits, err := s.history.Search(c.Request.Context(), user, vectors[0], limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SearchResponse{Query: query, Hits: hits})
}
