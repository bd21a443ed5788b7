package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/helixir/research-report-service/internal/domain"
	"github.com/helixir/research-report-service/internal/observability"
)

// Request size and paging limits.
const (
	maxRequestBodySize     = 1 << 20 // 1 MB limit for request bodies
	defaultCheckpointLimit = 50
	maxCheckpointLimit     = 500
)

// startThreadRequest is the JSON request body for starting a thread.
type startThreadRequest struct {
	Topic        string `json:"topic" validate:"required,max=10000"`
	MaxRevisions *int   `json:"max_revisions,omitempty" validate:"omitempty,min=1,max=10"`
}

// feedbackRequest is the JSON request body for a human decision.
type feedbackRequest struct {
	ThreadID string `json:"thread_id" validate:"required"`
	Action   string `json:"action" validate:"required,oneof=approve reject"`
	Feedback string `json:"feedback,omitempty" validate:"required_if=Action reject,max=10000"`
}

// startThread handles POST /start. The thread is created but not run; the
// client drives it through /stream.
func (s *Server) startThread(w http.ResponseWriter, r *http.Request) {
	var req startThreadRequest
	if !s.decodeAndValidate(w, r, &req, func() { req.Topic = strings.TrimSpace(req.Topic) }) {
		return
	}

	maxRevisions := 0
	if req.MaxRevisions != nil {
		maxRevisions = *req.MaxRevisions
	}

	thread, err := s.engine.Start(r.Context(), req.Topic, maxRevisions)
	if err != nil {
		s.logError(r, err, "failed to start thread")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, startThreadResponse{ThreadID: thread.ID})
}

// submitFeedback handles POST /feedback.
func (s *Server) submitFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !s.decodeAndValidate(w, r, &req, func() {
		req.ThreadID = strings.TrimSpace(req.ThreadID)
		req.Action = strings.ToLower(strings.TrimSpace(req.Action))
		req.Feedback = strings.TrimSpace(req.Feedback)
	}) {
		return
	}

	action := domain.HumanAction(req.Action)
	if _, err := s.engine.SubmitDecision(r.Context(), req.ThreadID, action, req.Feedback); err != nil {
		s.logError(r, err, "failed to submit decision")
		writeDomainError(w, err)
		return
	}

	if action == domain.HumanActionApprove {
		writeJSON(w, http.StatusOK, feedbackResponse{
			Status:  "approved",
			Message: "Feedback received. Connect to /stream to resume.",
		})
		return
	}
	writeJSON(w, http.StatusOK, feedbackResponse{
		Status:  "rejected",
		Message: "Feedback recorded. Connect to /stream to resume (rolling back to Write).",
	})
}

// getThread handles GET /threads/{threadID}.
func (s *Server) getThread(w http.ResponseWriter, r *http.Request) {
	thread, err := s.engine.Get(r.Context(), chi.URLParam(r, "threadID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domainThreadToResponse(thread))
}

// listCheckpoints handles GET /threads/{threadID}/checkpoints.
func (s *Server) listCheckpoints(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")

	limit, ok := parseLimit(w, r, defaultCheckpointLimit, maxCheckpointLimit)
	if !ok {
		return
	}

	if _, err := s.engine.Get(r.Context(), threadID); err != nil {
		writeDomainError(w, err)
		return
	}

	checkpoints, err := s.engine.Checkpoints(r.Context(), threadID, limit)
	if err != nil {
		s.logError(r, err, "failed to list checkpoints")
		writeDomainError(w, err)
		return
	}

	resp := listCheckpointsResponse{
		ThreadID:    threadID,
		Checkpoints: make([]checkpointResponse, 0, len(checkpoints)),
	}
	for _, c := range checkpoints {
		resp.Checkpoints = append(resp.Checkpoints, domainCheckpointToResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeAndValidate reads a JSON body into dst, applies normalize and runs
// struct validation. It writes a 400 and returns false on any failure.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any, normalize func()) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}

	if normalize != nil {
		normalize()
	}

	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// validationMessage turns the first validator failure into a client message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// jsonFieldName makes validator report fields by their JSON names.
func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// parseLimit reads the optional limit query parameter.
func parseLimit(w http.ResponseWriter, r *http.Request, def, maxLimit int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	if limit == 0 {
		return def, true
	}
	return min(limit, maxLimit), true
}

// parseID parses a positive integer path parameter.
func parseID(w http.ResponseWriter, s, fieldName string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a positive integer", fieldName))
		return 0, false
	}
	return id, true
}

// logError logs unexpected failures. Client errors are not logged.
func (s *Server) logError(r *http.Request, err error, msg string) {
	status, _ := domainErrorStatus(err)
	if status < http.StatusInternalServerError {
		return
	}
	logger := observability.LoggerFromContext(r.Context(), s.logger)
	logger.Error().Err(err).Msg(msg)
}
