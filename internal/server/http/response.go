package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/helixir/research-report-service/internal/domain"
)

type startThreadResponse struct {
	ThreadID string `json:"thread_id"`
}

type feedbackResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type threadResponse struct {
	ThreadID       string          `json:"thread_id"`
	Status         string          `json:"status"`
	PendingStep    string          `json:"pending_step"`
	Version        int64           `json:"version"`
	Task           string          `json:"task"`
	Plan           []string        `json:"plan"`
	Content        string          `json:"content"`
	Critique       string          `json:"critique"`
	RevisionNumber int             `json:"revision_number"`
	MaxRevisions   int             `json:"max_revisions"`
	Sources        []domain.Source `json:"sources"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type checkpointResponse struct {
	Version     int64     `json:"version"`
	Step        string    `json:"step"`
	PendingStep string    `json:"pending_step"`
	Message     string    `json:"message,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type listCheckpointsResponse struct {
	ThreadID    string               `json:"thread_id"`
	Checkpoints []checkpointResponse `json:"checkpoints"`
}

type historySummaryResponse struct {
	ID        int64     `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Topic     string    `json:"topic"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

type listHistoryResponse struct {
	Items []historySummaryResponse `json:"items"`
}

type historyResponse struct {
	ID        int64           `json:"id"`
	ThreadID  string          `json:"thread_id"`
	Topic     string          `json:"topic"`
	Report    string          `json:"report"`
	Summary   string          `json:"summary"`
	Sources   []domain.Source `json:"sources"`
	CreatedAt time.Time       `json:"created_at"`
}

type saveHistoryResponse struct {
	Status string `json:"status"`
	ID     int64  `json:"id"`
}

type clearHistoryResponse struct {
	Status  string `json:"status"`
	Deleted int64  `json:"deleted"`
}

// Converter functions

func domainThreadToResponse(t *domain.Thread) threadResponse {
	sources := t.State.Sources
	if sources == nil {
		sources = []domain.Source{}
	}
	plan := t.State.Plan
	if plan == nil {
		plan = []string{}
	}
	return threadResponse{
		ThreadID:       t.ID,
		Status:         string(t.Status()),
		PendingStep:    string(t.Pending),
		Version:        t.Version,
		Task:           t.State.Task,
		Plan:           plan,
		Content:        t.State.Content,
		Critique:       t.State.Critique,
		RevisionNumber: t.State.RevisionNumber,
		MaxRevisions:   t.State.MaxRevisions,
		Sources:        sources,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func domainCheckpointToResponse(c *domain.Checkpoint) checkpointResponse {
	resp := checkpointResponse{
		Version:     c.Version,
		Step:        string(c.Step),
		PendingStep: string(c.Pending),
		CreatedAt:   c.CreatedAt,
	}
	if n := len(c.State.Log); n > 0 {
		resp.Message = c.State.Log[n-1].Message
	}
	return resp
}

func domainReportToSummary(r *domain.ArchivedReport) historySummaryResponse {
	return historySummaryResponse{
		ID:        r.ID,
		ThreadID:  r.ThreadID,
		Topic:     r.Topic,
		Summary:   r.Summary,
		CreatedAt: r.CreatedAt,
	}
}

func domainReportToResponse(r *domain.ArchivedReport) historyResponse {
	sources := r.Sources
	if sources == nil {
		sources = []domain.Source{}
	}
	return historyResponse{
		ID:        r.ID,
		ThreadID:  r.ThreadID,
		Topic:     r.Topic,
		Report:    r.Report,
		Summary:   r.Summary,
		Sources:   sources,
		CreatedAt: r.CreatedAt,
	}
}

// writeDomainError maps a domain error to an HTTP status and writes it.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	status, message := domainErrorStatus(err)
	writeError(w, status, message)
}

func domainErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return http.StatusNotFound, nf.Error()
		}
		return http.StatusNotFound, "resource not found"
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return http.StatusBadRequest, ve.Error()
		}
		return http.StatusBadRequest, "invalid input"
	case errors.Is(err, domain.ErrInvalidState):
		var se *domain.InvalidStateError
		if errors.As(err, &se) {
			return http.StatusBadRequest, se.Error()
		}
		return http.StatusBadRequest, "workflow already finished or invalid state"
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "resource already exists"
	case errors.Is(err, domain.ErrThreadBusy):
		return http.StatusConflict, "thread is already running"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "service unavailable"
	case errors.Is(err, domain.ErrCancelled):
		return http.StatusConflict, "operation cancelled"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
