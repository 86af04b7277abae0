package server

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/codecritic/codecritic/internal/auth"
	"github.com/codecritic/codecritic/internal/db"
	"github.com/codecritic/codecritic/internal/models"
	"github.com/codecritic/codecritic/internal/service"
)

// reviewResponse is the wire projection of a review. The record ID is
// flattened to its plain string form.
type reviewResponse struct {
	ID          string           `json:"id"`
	Code        string           `json:"code"`
	Language    string           `json:"language"`
	Status      string           `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	FailedAt    *time.Time       `json:"failed_at,omitempty"`
	Submitter   *string          `json:"submitter,omitempty"`
	Feedback    *models.Feedback `json:"feedback,omitempty"`
}

func projectReview(r *models.Review) reviewResponse {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		id = r.ID.String()
	}
	return reviewResponse{
		ID:          id,
		Code:        r.Code,
		Language:    r.Language,
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
		FailedAt:    r.FailedAt,
		Submitter:   r.Submitter,
		Feedback:    r.Feedback,
	}
}

type listResponse struct {
	Items []reviewResponse `json:"items"`
	Total int              `json:"total"`
	Skip  int              `json:"skip"`
	Limit int              `json:"limit"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps pipeline sentinels to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, "review not found")
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

type submitRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	job, err := s.reviews.Submit(r.Context(), service.SubmitInput{
		Code:       req.Code,
		Language:   req.Language,
		Submitter:  currentUser(r),
		ClientAddr: clientAddr(r),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusAccepted
	if job.Status == models.StatusCompleted {
		status = http.StatusOK
	}
	writeJSON(w, status, projectReview(job))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	job, err := s.reviews.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projectReview(job))
}

// parseFilter reads the shared listing parameters. Invalid numbers and
// timestamps are reported, not silently dropped.
func (s *Server) parseFilter(r *http.Request) (models.ReviewFilter, error) {
	q := r.URL.Query()
	f := models.ReviewFilter{
		Language: q.Get("language"),
		Status:   models.ReviewStatus(q.Get("status")),
		Limit:    s.defaultPageSize,
	}

	if raw := q.Get("skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, fmt.Errorf("invalid skip %q", raw)
		}
		f.Skip = n
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return f, fmt.Errorf("invalid limit %q", raw)
		}
		f.Limit = n
	}
	for name, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		if raw := q.Get(name); raw != "" {
			ts, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return f, fmt.Errorf("invalid %s timestamp %q", name, raw)
			}
			*dst = &ts
		}
	}
	return f, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := s.parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeListing(w, r, filter)
}

func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	filter, err := s.parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Submitter = *currentUser(r)
	s.writeListing(w, r, filter)
}

func (s *Server) writeListing(w http.ResponseWriter, r *http.Request, filter models.ReviewFilter) {
	items, total, err := s.reviews.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := listResponse{
		Items: make([]reviewResponse, 0, len(items)),
		Total: total,
		Skip:  filter.Skip,
		Limit: filter.Limit,
	}
	for i := range items {
		resp.Items = append(resp.Items, projectReview(&items[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.reviews.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleExport streams the filtered listing as CSV, capped at
// maxExportRows.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	filter, err := s.parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Limit = s.maxExportRows

	items, _, err := s.reviews.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="reviews.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "language", "status", "score", "issues", "submitter", "created_at", "completed_at"})

	for i := range items {
		row := projectReview(&items[i])

		score, issues := "", ""
		if row.Feedback != nil {
			if row.Feedback.HasValidScore() {
				score = strconv.Itoa(row.Feedback.Score)
			}
			issues = strconv.Itoa(len(row.Feedback.Issues))
		}
		submitter := ""
		if row.Submitter != nil {
			submitter = *row.Submitter
		}
		completedAt := ""
		if row.CompletedAt != nil {
			completedAt = row.CompletedAt.Format(time.RFC3339)
		}

		if err := cw.Write([]string{
			row.ID,
			row.Language,
			row.Status,
			score,
			issues,
			submitter,
			row.CreatedAt.Format(time.RFC3339),
			completedAt,
		}); err != nil {
			slog.Warn("csv export aborted", "error", err)
			return
		}
	}
	cw.Flush()
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	pair, err := s.auth.Register(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, "email and password are required")
	case err != nil:
		slog.Error("registration failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusCreated, pair)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	pair, err := s.auth.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case err != nil:
		slog.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusOK, pair)
	}
}

func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken string `json:"id_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	pair, err := s.auth.LoginWithGoogle(r.Context(), req.IDToken)
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid google token")
	case err != nil:
		slog.Error("google login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusOK, pair)
	}
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"email": *currentUser(r)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}
