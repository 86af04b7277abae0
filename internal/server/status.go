package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/codecritic/codecritic/internal/db"
	"github.com/gorilla/websocket"
)

// statusUpdate is one frame of the live status stream.
type statusUpdate struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`
}

// handleStatusStream streams a job's state over a WebSocket until the job
// reaches a terminal state or the client disconnects. Unknown ids get a
// single not_found frame.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "job_id", jobID, "error", err)
		return
	}
	defer conn.Close()

	// Readers only disconnect; drain control frames in the background so
	// close handshakes are processed.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	push := func() (terminal bool, ok bool) {
		job, err := s.reviews.Get(r.Context(), jobID)
		if errors.Is(err, db.ErrNotFound) {
			_ = conn.WriteJSON(statusUpdate{ID: jobID, Status: "not_found"})
			return true, false
		}
		if err != nil {
			slog.Warn("status stream lookup failed", "job_id", jobID, "error", err)
			return true, false
		}

		update := statusUpdate{
			ID:          jobID,
			Status:      string(job.Status),
			CreatedAt:   job.CreatedAt,
			CompletedAt: job.CompletedAt,
			FailedAt:    job.FailedAt,
		}
		if err := conn.WriteJSON(update); err != nil {
			// Client went away; nothing to clean up beyond the deferred close.
			return true, false
		}
		return job.Status.Terminal(), true
	}

	if terminal, ok := push(); terminal {
		if ok {
			closeNormally(conn)
		}
		return
	}

	ticker := time.NewTicker(s.statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if terminal, ok := push(); terminal {
				if ok {
					closeNormally(conn)
				}
				return
			}
		}
	}
}

func closeNormally(conn *websocket.Conn) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "review finished"),
		deadline)
}
