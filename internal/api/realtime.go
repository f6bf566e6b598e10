package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lecturenotes/internal/realtime"
	"lecturenotes/internal/services"
)

func (s *server) handleRealtimeStart(c *gin.Context) {
	if s.realtime == nil {
		s.writeError(c, errServiceDisabled)
		return
	}
	s.limitBody(c)
	var deck *realtime.Upload
	if c.ContentType() == "multipart/form-data" {
		header, err := formFile(c, "doc_file")
		if err != nil {
			s.writeError(c, err)
			return
		}
		if header != nil {
			f, err := header.Open()
			if err != nil {
				s.writeError(c, services.Wrap(services.ErrInput, "upload", "open part", header.Filename, err))
				return
			}
			defer f.Close()
			deck = &realtime.Upload{Name: header.Filename, Body: f}
		}
	}
	id, err := s.realtime.Start(c.Request.Context(), deck)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SessionStarted{JobID: id})
}

func (s *server) handleRealtimeProcess(c *gin.Context) {
	if s.realtime == nil {
		s.writeError(c, errServiceDisabled)
		return
	}
	s.limitBody(c)
	header, err := formFile(c, "audio_file")
	if err != nil {
		s.writeError(c, err)
		return
	}
	chunk := realtime.Chunk{Meta: []byte(c.PostForm("meta_json"))}
	if header != nil {
		f, err := header.Open()
		if err != nil {
			s.writeError(c, services.Wrap(services.ErrInput, "upload", "open part", header.Filename, err))
			return
		}
		defer f.Close()
		chunk.Audio = &realtime.Upload{Name: header.Filename, Body: f}
	}
	notes, err := s.realtime.Process(c.Request.Context(), c.Param("id"), chunk)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

func (s *server) handleRealtimeResult(c *gin.Context) {
	if s.realtime == nil {
		s.writeError(c, errServiceDisabled)
		return
	}
	notes, err := s.realtime.Result(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}
