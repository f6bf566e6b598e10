package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"lecturenotes/internal/jobs"
	"lecturenotes/internal/logging"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Access is governed by bearerAuth, not by origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// statusEvent is one websocket frame.
type statusEvent struct {
	JobID    string      `json:"job_id"`
	Status   jobs.Status `json:"status"`
	Progress int         `json:"progress"`
	Message  string      `json:"message"`
}

// handleStatusStream pushes a frame whenever the job's progress or message
// changes and closes the socket once the job is terminal or evicted.
func (s *server) handleStatusStream(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.jobs.Snapshot(id); err != nil {
		s.writeError(c, err)
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logging.WithContext(c.Request.Context(), s.logger).Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	poll := time.NewTicker(s.pollInterval)
	defer poll.Stop()
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	var last statusEvent
	sent := false
	for {
		snap, err := s.jobs.Snapshot(id)
		if err != nil {
			s.closeStream(conn, websocket.CloseNormalClosure, "job evicted")
			return
		}
		event := statusEvent{JobID: id, Status: snap.Status, Progress: snap.Progress, Message: snap.Message}
		if !sent || event != last {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
			last, sent = event, true
		}
		if snap.Status.Terminal() {
			s.closeStream(conn, websocket.CloseNormalClosure, string(snap.Status))
			return
		}

		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-poll.C:
		}
	}
}

func (s *server) closeStream(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}
