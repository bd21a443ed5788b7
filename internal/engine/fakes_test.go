package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-report-service/internal/domain"
	"github.com/helixir/research-report-service/internal/llm"
	"github.com/helixir/research-report-service/internal/search"
	"github.com/helixir/research-report-service/internal/steps"
)

// memRepo is an in-memory CheckpointRepository with the same atomicity
// guarantees as the Postgres store.
type memRepo struct {
	mu          sync.Mutex
	threads     map[string]*domain.Thread
	checkpoints map[string][]*domain.Checkpoint
	failUpdate  error
}

func newMemRepo() *memRepo {
	return &memRepo{
		threads:     make(map[string]*domain.Thread),
		checkpoints: make(map[string][]*domain.Checkpoint),
	}
}

func copyThread(t *domain.Thread) *domain.Thread {
	out := *t
	out.State = t.State.Clone()
	return &out
}

func (r *memRepo) Create(_ context.Context, thread *domain.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.threads[thread.ID]; ok {
		return domain.NewAlreadyExistsError("thread", thread.ID)
	}
	r.threads[thread.ID] = copyThread(thread)
	return nil
}

func (r *memRepo) Get(_ context.Context, id string) (*domain.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.threads[id]
	if !ok {
		return nil, domain.NewNotFoundError("thread", id)
	}
	return copyThread(t), nil
}

func (r *memRepo) Update(_ context.Context, id string, step domain.StepName, fn func(*domain.Thread) error) (*domain.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate != nil {
		return nil, r.failUpdate
	}
	current, ok := r.threads[id]
	if !ok {
		return nil, domain.NewNotFoundError("thread", id)
	}

	working := copyThread(current)
	if err := fn(working); err != nil {
		return nil, err
	}
	working.Version = current.Version + 1
	working.UpdatedAt = time.Now().UTC()

	r.threads[id] = copyThread(working)
	r.checkpoints[id] = append(r.checkpoints[id], &domain.Checkpoint{
		ThreadID:  id,
		Version:   working.Version,
		Step:      step,
		Pending:   working.Pending,
		State:     working.State.Clone(),
		CreatedAt: working.UpdatedAt,
	})
	return copyThread(working), nil
}

func (r *memRepo) ListCheckpoints(_ context.Context, id string, limit int) ([]*domain.Checkpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.threads[id]; !ok {
		return nil, domain.NewNotFoundError("thread", id)
	}
	cps := r.checkpoints[id]
	if limit > 0 && len(cps) > limit {
		cps = cps[:limit]
	}
	return append([]*domain.Checkpoint{}, cps...), nil
}

// scriptedLLM answers by prompt kind. Review replies are consumed in order;
// once exhausted it approves.
type scriptedLLM struct {
	mu      sync.Mutex
	reviews []string
	prompts []string
	block   chan struct{}
}

func (s *scriptedLLM) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, m.Content)
	}
	prompt := strings.Join(parts, "\n")

	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	block := s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	switch {
	case strings.Contains(prompt, "research planner"):
		return `{"plan": ["Market", "Technology"]}`, nil
	case strings.Contains(prompt, "Section title:"):
		return "section body", nil
	case strings.Contains(prompt, "Section drafts:"):
		return "draft report", nil
	case strings.Contains(prompt, "Review the following"):
		s.mu.Lock()
		defer s.mu.Unlock()
		if len(s.reviews) == 0 {
			return "APPROVE", nil
		}
		reply := s.reviews[0]
		s.reviews = s.reviews[1:]
		return reply, nil
	}
	return "", errors.New("unexpected prompt")
}

func (s *scriptedLLM) Provider() string { return "scripted" }
func (s *scriptedLLM) Model() string    { return "scripted-1" }

func (s *scriptedLLM) promptsContaining(substr string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, p := range s.prompts {
		if strings.Contains(p, substr) {
			out = append(out, p)
		}
	}
	return out
}

type stubSearcher struct{}

func (stubSearcher) Search(_ context.Context, query string, _ int, _ search.Depth) ([]search.Result, error) {
	return []search.Result{{Title: query, URL: "https://example.com/" + strings.ReplaceAll(query, " ", "-"), Content: "about " + query}}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.ThreadEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event *domain.ThreadEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type harness struct {
	exec      *Executor
	repo      *memRepo
	llm       *scriptedLLM
	leaser    *LocalLeaser
	publisher *recordingPublisher
}

func newHarness(t *testing.T, maxResearchRounds int, reviews ...string) *harness {
	t.Helper()

	model := &scriptedLLM{reviews: reviews}
	s := steps.New(model, stubSearcher{}, nil, steps.Config{}, nil, zerolog.Nop())
	graph, err := NewGraph(s.Funcs(), maxResearchRounds)
	require.NoError(t, err)

	h := &harness{
		repo:      newMemRepo(),
		llm:       model,
		leaser:    NewLocalLeaser(),
		publisher: &recordingPublisher{},
	}
	h.exec = NewExecutor(h.repo, graph, h.leaser, h.publisher, Config{DefaultMaxRevisions: 2, StepTimeout: time.Minute}, nil, zerolog.Nop())
	return h
}

// drain runs Advance to completion and returns the event step names.
func drain(t *testing.T, e *Executor, threadID string) ([]domain.StepEvent, error) {
	t.Helper()
	var events []domain.StepEvent
	for ev, err := range e.Advance(context.Background(), threadID) {
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func stepNames(events []domain.StepEvent) []domain.StepName {
	out := make([]domain.StepName, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Step)
	}
	return out
}
