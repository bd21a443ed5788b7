package httpserver

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/helixir/research-report-service/internal/archive"
	"github.com/helixir/research-report-service/internal/database"
	"github.com/helixir/research-report-service/internal/domain"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

// mockEngine implements Engine for HTTP handler tests.
type mockEngine struct {
	startFn       func(ctx context.Context, task string, maxRevisions int) (*domain.Thread, error)
	getFn         func(ctx context.Context, threadID string) (*domain.Thread, error)
	checkpointsFn func(ctx context.Context, threadID string, limit int) ([]*domain.Checkpoint, error)
	advanceFn     func(ctx context.Context, threadID string) iter.Seq2[domain.StepEvent, error]
	decisionFn    func(ctx context.Context, threadID string, action domain.HumanAction, feedback string) (*domain.Thread, error)
}

func (m *mockEngine) Start(ctx context.Context, task string, maxRevisions int) (*domain.Thread, error) {
	if m.startFn != nil {
		return m.startFn(ctx, task, maxRevisions)
	}
	return domain.NewThread("thread-new", domain.NewStepContext(task, maxRevisions)), nil
}

func (m *mockEngine) Get(ctx context.Context, threadID string) (*domain.Thread, error) {
	if m.getFn != nil {
		return m.getFn(ctx, threadID)
	}
	return nil, domain.NewNotFoundError("thread", threadID)
}

func (m *mockEngine) Checkpoints(ctx context.Context, threadID string, limit int) ([]*domain.Checkpoint, error) {
	if m.checkpointsFn != nil {
		return m.checkpointsFn(ctx, threadID, limit)
	}
	return nil, nil
}

func (m *mockEngine) Advance(ctx context.Context, threadID string) iter.Seq2[domain.StepEvent, error] {
	if m.advanceFn != nil {
		return m.advanceFn(ctx, threadID)
	}
	return func(func(domain.StepEvent, error) bool) {}
}

func (m *mockEngine) SubmitDecision(ctx context.Context, threadID string, action domain.HumanAction, feedback string) (*domain.Thread, error) {
	if m.decisionFn != nil {
		return m.decisionFn(ctx, threadID, action, feedback)
	}
	return &domain.Thread{ID: threadID}, nil
}

// mockArchive implements Archive for HTTP handler tests.
type mockArchive struct {
	saveFn     func(ctx context.Context, req archive.SaveRequest) (*domain.ArchivedReport, error)
	listFn     func(ctx context.Context, limit int) ([]*domain.ArchivedReport, error)
	getFn      func(ctx context.Context, id int64) (*domain.ArchivedReport, error)
	deleteFn   func(ctx context.Context, id int64) error
	clearFn    func(ctx context.Context) (int64, error)
	followupFn func(ctx context.Context, historyID int64, question string) (*domain.Thread, error)
}

func (m *mockArchive) Save(ctx context.Context, req archive.SaveRequest) (*domain.ArchivedReport, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, req)
	}
	return &domain.ArchivedReport{ID: 1, ThreadID: req.ThreadID}, nil
}

func (m *mockArchive) List(ctx context.Context, limit int) ([]*domain.ArchivedReport, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockArchive) Get(ctx context.Context, id int64) (*domain.ArchivedReport, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.NewNotFoundError("report", "x")
}

func (m *mockArchive) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockArchive) Clear(ctx context.Context) (int64, error) {
	if m.clearFn != nil {
		return m.clearFn(ctx)
	}
	return 0, nil
}

func (m *mockArchive) Followup(ctx context.Context, historyID int64, question string) (*domain.Thread, error) {
	if m.followupFn != nil {
		return m.followupFn(ctx, historyID, question)
	}
	return &domain.Thread{ID: "followup-thread"}, nil
}

// stubHealth implements HealthChecker.
type stubHealth struct {
	status database.HealthStatus
}

func (h stubHealth) Health(context.Context) database.HealthStatus {
	return h.status
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestServer(engine *mockEngine, arch *mockArchive) *Server {
	if engine == nil {
		engine = &mockEngine{}
	}
	if arch == nil {
		arch = &mockArchive{}
	}
	return NewServer(Config{Address: ":0"}, engine, arch, stubHealth{status: database.HealthStatus{Status: "healthy"}}, nil, zerolog.Nop())
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func doServe(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func httptestRequestWithContext(ctx context.Context, path string) *http.Request {
	return httptest.NewRequest(http.MethodGet, path, nil).WithContext(ctx)
}

// failingWriter accepts failAfter writes and then fails every write, like a
// connection whose client has gone away.
type failingWriter struct {
	header    http.Header
	writes    int
	failAfter int
	onFail    func()
}

func (w *failingWriter) Header() http.Header { return w.header }

func (w *failingWriter) WriteHeader(int) {}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes > w.failAfter {
		if w.onFail != nil {
			w.onFail()
		}
		return 0, errors.New("broken pipe")
	}
	return len(p), nil
}

func (w *failingWriter) Flush() {}
