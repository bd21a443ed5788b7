package httpserver

import (
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/research-report-service/internal/domain"
	"github.com/helixir/research-report-service/internal/observability"
)

// Stream markers understood by clients.
const (
	interruptNode = "__interrupt__"
	doneSentinel  = "[DONE]"
)

// sseFrame is one data frame of the stream.
type sseFrame struct {
	Node string `json:"node"`
	Data any    `json:"data"`
}

type interruptData struct {
	Pending string `json:"pending"`
}

// streamThread handles GET /stream/{threadID}. Connecting drives execution:
// the thread advances until it parks for human review or finishes, and each
// committed step is sent as it lands. Disconnecting stops the run after the
// step in flight without losing committed work.
func (s *Server) streamThread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threadID := chi.URLParam(r, "threadID")
	ctx = observability.WithThreadID(ctx, threadID)
	logger := observability.LoggerFromContext(ctx, s.logger)

	thread, err := s.engine.Get(ctx, threadID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	next, stop := iter.Pull2(s.engine.Advance(ctx, threadID))
	defer stop()

	// Pull the first result before committing to a stream so a busy or
	// unavailable thread still gets a plain status code.
	ev, evErr, ok := next()
	if ok && evErr != nil {
		logger.Debug().Err(evErr).Msg("stream rejected before first step")
		writeDomainError(w, evErr)
		return
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s.metrics.StreamOpened()
	defer s.metrics.StreamClosed()

	pending := thread.Pending
	steps := 0
	for ; ok; ev, evErr, ok = next() {
		if evErr != nil {
			logger.Error().Err(evErr).Int("steps", steps).Msg("stream aborted by step error")
			status, message := domainErrorStatus(evErr)
			if err := writeSSEError(w, rc, status, message); err != nil {
				return
			}
			break
		}

		if err := writeSSEData(w, rc, sseFrame{Node: string(ev.Step), Data: ev.Fields}); err != nil {
			logger.Debug().Err(err).Int("steps", steps).Msg("client went away, stopping stream")
			return
		}
		pending = ev.Pending
		steps++
	}

	if pending == domain.PendingAwaitingHuman {
		frame := sseFrame{Node: interruptNode, Data: interruptData{Pending: string(domain.StepHumanGate)}}
		if err := writeSSEData(w, rc, frame); err != nil {
			return
		}
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", doneSentinel); err == nil {
		_ = rc.Flush()
	}

	logger.Debug().
		Int("steps", steps).
		Str("pending", string(pending)).
		Msg("stream finished")
}

// writeSSEData writes one data frame and flushes it.
func writeSSEData(w http.ResponseWriter, rc *http.ResponseController, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal stream frame: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return rc.Flush()
}

// writeSSEError writes an error event and flushes it.
func writeSSEError(w http.ResponseWriter, rc *http.ResponseController, status int, message string) error {
	data, err := json.Marshal(map[string]any{"status": status, "error": message})
	if err != nil {
		return fmt.Errorf("marshal stream error: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: error\ndata: %s\n\n", data); err != nil {
		return err
	}
	return rc.Flush()
}
