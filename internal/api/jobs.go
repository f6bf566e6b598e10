package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"lecturenotes/internal/jobs"
	"lecturenotes/internal/workflow"
)

func (s *server) handleSubmit(c *gin.Context) {
	s.limitBody(c)
	doc, err := formFile(c, "doc_file")
	if err != nil {
		s.writeError(c, err)
		return
	}
	if doc == nil {
		s.writeMessage(c, http.StatusBadRequest, "doc_file is required")
		return
	}
	audio, err := formFile(c, "audio_file")
	if err != nil {
		s.writeError(c, err)
		return
	}

	workDir, err := s.runner.NewWorkspace()
	if err != nil {
		s.writeError(c, err)
		return
	}
	req := workflow.Request{
		Filename:          doc.Filename,
		Owner:             userEmail(c),
		SkipTranscription: formBool(c.PostForm("skip_transcription")),
		Transcript:        c.PostForm("transcript"),
		WorkDir:           workDir,
	}
	if req.DeckPath, err = saveUpload(doc, workDir, "slides.pdf"); err != nil {
		_ = os.RemoveAll(workDir)
		s.writeError(c, err)
		return
	}
	if audio != nil {
		if req.AudioPath, err = saveUpload(audio, workDir, "lecture.audio"); err != nil {
			_ = os.RemoveAll(workDir)
			s.writeError(c, err)
			return
		}
	}

	id, err := s.runner.Submit(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, JobAccepted{JobID: id})
}

func (s *server) handleStatus(c *gin.Context) {
	progress, err := s.jobs.Progress(c.Param("id"))
	if err != nil {
		s.writeMessage(c, http.StatusNotFound, "job not found")
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (s *server) handleResult(c *gin.Context) {
	notes, err := s.jobs.Result(c.Request.Context(), c.Param("id"))
	if errors.Is(err, jobs.ErrNotFound) {
		s.writeMessage(c, http.StatusNotFound, "result not available")
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

func (s *server) handleListJobs(c *gin.Context) {
	snaps := s.jobs.List()
	views := make([]JobView, 0, len(snaps))
	for _, snap := range snaps {
		views = append(views, JobView{Snapshot: snap, Active: s.runner.Active(snap.ID)})
	}
	c.JSON(http.StatusOK, JobListResponse{Jobs: views})
}

func (s *server) handleGetJob(c *gin.Context) {
	snap, err := s.jobs.Snapshot(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, JobView{Snapshot: snap, Active: s.runner.Active(snap.ID)})
}

func (s *server) handlePartial(c *gin.Context) {
	notes, err := s.jobs.Partial(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

func (s *server) handleCancel(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.jobs.Snapshot(id); err != nil {
		s.writeError(c, err)
		return
	}
	if !s.runner.Cancel(id) {
		s.writeMessage(c, http.StatusConflict, "job is not running")
		return
	}
	c.JSON(http.StatusAccepted, CancelResponse{JobID: id, Cancelled: true})
}

// handleDeleteJob stops the job if it is still running and evicts it.
func (s *server) handleDeleteJob(c *gin.Context) {
	id := c.Param("id")
	s.runner.Cancel(id)
	if err := s.jobs.Delete(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
