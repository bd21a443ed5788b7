package httpserver

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/research-report-service/internal/archive"
	"github.com/helixir/research-report-service/internal/domain"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// saveHistoryRequest is the JSON request body for archiving a report.
// Report and topic may be omitted when thread_id names a live thread.
type saveHistoryRequest struct {
	ThreadID string          `json:"thread_id" validate:"required,max=128"`
	Topic    string          `json:"topic" validate:"max=10000"`
	Report   string          `json:"report"`
	Sources  []domain.Source `json:"sources,omitempty" validate:"omitempty,max=500"`
}

// followupRequest is the JSON request body for a follow-up question.
type followupRequest struct {
	HistoryID int64  `json:"history_id" validate:"required,gt=0"`
	Question  string `json:"question" validate:"required,max=10000"`
}

// saveHistory handles POST /history/save.
func (s *Server) saveHistory(w http.ResponseWriter, r *http.Request) {
	var req saveHistoryRequest
	if !s.decodeAndValidate(w, r, &req, func() {
		req.ThreadID = strings.TrimSpace(req.ThreadID)
		req.Topic = strings.TrimSpace(req.Topic)
	}) {
		return
	}

	saved, err := s.archive.Save(r.Context(), archive.SaveRequest{
		ThreadID: req.ThreadID,
		Topic:    req.Topic,
		Report:   req.Report,
		Sources:  req.Sources,
	})
	if err != nil {
		s.logError(r, err, "failed to save report")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, saveHistoryResponse{Status: "ok", ID: saved.ID})
}

// listHistory handles GET /history/list.
func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, defaultHistoryLimit, maxHistoryLimit)
	if !ok {
		return
	}

	reports, err := s.archive.List(r.Context(), limit)
	if err != nil {
		s.logError(r, err, "failed to list reports")
		writeDomainError(w, err)
		return
	}

	resp := listHistoryResponse{Items: make([]historySummaryResponse, 0, len(reports))}
	for _, rep := range reports {
		resp.Items = append(resp.Items, domainReportToSummary(rep))
	}
	writeJSON(w, http.StatusOK, resp)
}

// getHistory handles GET /history/{historyID}.
func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "historyID"), "history_id")
	if !ok {
		return
	}

	report, err := s.archive.Get(r.Context(), id)
	if err != nil {
		s.logError(r, err, "failed to get report")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domainReportToResponse(report))
}

// deleteHistory handles DELETE /history/{historyID}.
func (s *Server) deleteHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "historyID"), "history_id")
	if !ok {
		return
	}

	if err := s.archive.Delete(r.Context(), id); err != nil {
		s.logError(r, err, "failed to delete report")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// clearHistory handles POST /history/clear.
func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	n, err := s.archive.Clear(r.Context())
	if err != nil {
		s.logError(r, err, "failed to clear reports")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clearHistoryResponse{Status: "ok", Deleted: n})
}

// followupHistory handles POST /history/followup.
func (s *Server) followupHistory(w http.ResponseWriter, r *http.Request) {
	var req followupRequest
	if !s.decodeAndValidate(w, r, &req, func() { req.Question = strings.TrimSpace(req.Question) }) {
		return
	}

	thread, err := s.archive.Followup(r.Context(), req.HistoryID, req.Question)
	if err != nil {
		s.logError(r, err, "failed to start follow-up")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, startThreadResponse{ThreadID: thread.ID})
}
