// Package domain provides domain models for the Research Report Service.
package domain

import (
	"time"
)

// StepName identifies a node in the workflow graph.
type StepName string

const (
	StepPlan          StepName = "Plan"
	StepRouteResearch StepName = "RouteResearch"
	StepResearch      StepName = "Research"
	StepMergeResearch StepName = "MergeResearch"
	StepWrite         StepName = "Write"
	StepReview        StepName = "Review"
	StepHumanGate     StepName = "HumanGate"
)

// PendingStep is the next thing the executor will do for a thread: either
// the name of a step to run or one of the two sentinels below.
type PendingStep string

const (
	// PendingAwaitingHuman parks the thread at the barrier before HumanGate.
	PendingAwaitingHuman PendingStep = "awaiting-human-decision"

	// PendingFinished marks a thread that reached the terminal state.
	PendingFinished PendingStep = "finished"
)

// PendingOn returns the pending marker that schedules the given step.
func PendingOn(step StepName) PendingStep {
	return PendingStep(step)
}

// Step returns the step scheduled by p. The second result is false for the
// sentinel values.
func (p PendingStep) Step() (StepName, bool) {
	switch p {
	case PendingAwaitingHuman, PendingFinished, "":
		return "", false
	default:
		return StepName(p), true
	}
}

// ThreadStatus is the coarse lifecycle state of a thread, derived from its
// pending step.
type ThreadStatus string

const (
	ThreadStatusRunning       ThreadStatus = "running"
	ThreadStatusAwaitingHuman ThreadStatus = "awaiting_human"
	ThreadStatusFinished      ThreadStatus = "finished"
)

// HumanAction is the decision recorded at the human review barrier.
type HumanAction string

const (
	HumanActionNone    HumanAction = ""
	HumanActionApprove HumanAction = "approve"
	HumanActionReject  HumanAction = "reject"
)

// IsValid reports whether a is a decision a reviewer can submit.
func (a HumanAction) IsValid() bool {
	return a == HumanActionApprove || a == HumanActionReject
}

// Source is one retrieved reference surfaced by the Research step.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// LogEntry records one completed step for audit and UI replay.
type LogEntry struct {
	Step     StepName  `json:"step"`
	Revision int       `json:"revision"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// StepContext is the state threaded through every step of one thread.
// It is persisted as JSONB in thread checkpoints.
//
// Merge policy per field (see Apply):
//   - replace: Plan, ResearchTasks, ResearchTask, Content, Critique,
//     HumanAction, HumanFeedback, RevisionNumber, ResearchRounds
//   - append:  ResearchChunks, Sources, Log
type StepContext struct {
	// Task is the user's request text.
	Task string `json:"task"`

	// Plan is the section outline produced by the Plan step.
	Plan []string `json:"plan"`

	// ResearchTasks is the routing output of RouteResearch.
	ResearchTasks []string `json:"research_tasks"`

	// ResearchTask is always ResearchTasks[0].
	ResearchTask string `json:"research_task"`

	// ResearchChunks accumulates one summary per Research execution.
	ResearchChunks []string `json:"research_chunks"`

	// Content is the merged research text or the current draft.
	Content string `json:"content"`

	// Critique is the last reviewer verdict in canonical form.
	Critique string `json:"critique"`

	// HumanAction is the recorded human decision, reset by Write.
	HumanAction HumanAction `json:"human_action"`

	// HumanFeedback is the free text supplied on rejection.
	HumanFeedback string `json:"human_feedback"`

	// HistoryContext is the prior report text for follow-up threads.
	HistoryContext string `json:"history_context"`

	// MaxRevisions caps the Write/Review loop.
	MaxRevisions int `json:"max_revisions"`

	// RevisionNumber is incremented only by Write.
	RevisionNumber int `json:"revision_number"`

	// ResearchRounds counts RouteResearch executions and bounds
	// reviewer-requested research loops.
	ResearchRounds int `json:"research_rounds"`

	// Sources accumulates references across Research executions.
	Sources []Source `json:"sources"`

	// Log holds one entry per completed step.
	Log []LogEntry `json:"log"`
}

// NewStepContext returns the initial state of a new thread.
func NewStepContext(task string, maxRevisions int) StepContext {
	return StepContext{
		Task:           task,
		Plan:           []string{},
		ResearchTasks:  []string{},
		ResearchChunks: []string{},
		MaxRevisions:   maxRevisions,
		Sources:        []Source{},
		Log:            []LogEntry{},
	}
}

// Clone returns a deep copy so step bodies can never alias persisted slices.
func (c StepContext) Clone() StepContext {
	out := c
	out.Plan = append([]string{}, c.Plan...)
	out.ResearchTasks = append([]string{}, c.ResearchTasks...)
	out.ResearchChunks = append([]string{}, c.ResearchChunks...)
	out.Sources = append([]Source{}, c.Sources...)
	out.Log = append([]LogEntry{}, c.Log...)
	return out
}

// StepUpdate is the partial update a step returns. For replace fields a nil
// value means "unchanged"; append fields are added to the accumulators.
type StepUpdate struct {
	Plan           []string
	ResearchTasks  []string
	ResearchTask   *string
	Content        *string
	Critique       *string
	HumanAction    *HumanAction
	HumanFeedback  *string
	RevisionNumber *int
	ResearchRounds *int

	ResearchChunks []string
	Sources        []Source
}

// Apply merges u into c using each field's merge policy.
//
// Sources whose non-empty URL is already present are skipped so a step
// re-executed after a crash does not duplicate references; sources without a
// URL are always appended.
func (c *StepContext) Apply(u StepUpdate) {
	if u.Plan != nil {
		c.Plan = append([]string{}, u.Plan...)
	}
	if u.ResearchTasks != nil {
		c.ResearchTasks = append([]string{}, u.ResearchTasks...)
	}
	if u.ResearchTask != nil {
		c.ResearchTask = *u.ResearchTask
	}
	if u.Content != nil {
		c.Content = *u.Content
	}
	if u.Critique != nil {
		c.Critique = *u.Critique
	}
	if u.HumanAction != nil {
		c.HumanAction = *u.HumanAction
	}
	if u.HumanFeedback != nil {
		c.HumanFeedback = *u.HumanFeedback
	}
	if u.RevisionNumber != nil && *u.RevisionNumber > c.RevisionNumber {
		c.RevisionNumber = *u.RevisionNumber
	}
	if u.ResearchRounds != nil {
		c.ResearchRounds = *u.ResearchRounds
	}

	c.ResearchChunks = append(c.ResearchChunks, u.ResearchChunks...)

	seen := make(map[string]struct{}, len(c.Sources))
	for _, s := range c.Sources {
		if s.URL != "" {
			seen[s.URL] = struct{}{}
		}
	}
	for _, s := range u.Sources {
		if s.URL != "" {
			if _, dup := seen[s.URL]; dup {
				continue
			}
			seen[s.URL] = struct{}{}
		}
		c.Sources = append(c.Sources, s)
	}
}

// AppendLog records a completed step.
func (c *StepContext) AppendLog(entry LogEntry) {
	c.Log = append(c.Log, entry)
}

// Thread is the unit of durable execution: the current StepContext snapshot
// plus the pending-step marker.
type Thread struct {
	ID        string      `json:"thread_id"`
	State     StepContext `json:"state"`
	Pending   PendingStep `json:"pending_step"`
	Version   int64       `json:"version"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewThread returns a thread scheduled to start at the Plan step.
func NewThread(id string, state StepContext) *Thread {
	now := time.Now().UTC()
	return &Thread{
		ID:        id,
		State:     state,
		Pending:   PendingOn(StepPlan),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Status derives the lifecycle status from the pending step.
func (t *Thread) Status() ThreadStatus {
	switch t.Pending {
	case PendingAwaitingHuman:
		return ThreadStatusAwaitingHuman
	case PendingFinished:
		return ThreadStatusFinished
	default:
		return ThreadStatusRunning
	}
}

// Checkpoint is one committed snapshot in a thread's history.
type Checkpoint struct {
	ThreadID  string      `json:"thread_id"`
	Version   int64       `json:"version"`
	Step      StepName    `json:"step"`
	Pending   PendingStep `json:"pending_step"`
	State     StepContext `json:"state"`
	CreatedAt time.Time   `json:"created_at"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// IntPtr returns a pointer to n.
func IntPtr(n int) *int { return &n }

// HumanActionPtr returns a pointer to a.
func HumanActionPtr(a HumanAction) *HumanAction { return &a }
