package steps

import (
	"context"
	"strings"
	"time"

	"github.com/helixir/research-report-service/internal/domain"
	"github.com/helixir/research-report-service/internal/llm"
)

// Review grades the draft. Once the revision cap is reached it approves
// without calling the model, and a failed model call also approves so the
// loop always terminates.
func (s *Steps) Review(ctx context.Context, state domain.StepContext) domain.StepUpdate {
	if state.RevisionNumber >= state.MaxRevisions {
		return critiqueUpdate(domain.Approve())
	}

	start := time.Now()
	defer s.logDone(ctx, domain.StepReview, start)

	text, err := s.complete(ctx, llm.UserMessage(buildReviewPrompt(state.Content)))
	if err != nil {
		s.recordFallback(ctx, domain.StepReview, "model_error", err)
		return critiqueUpdate(domain.Approve())
	}

	return critiqueUpdate(NormalizeVerdict(text))
}

// NormalizeVerdict returns the first line that is a recognized verdict.
// Free text becomes a revision request quoting its first non-empty line.
func NormalizeVerdict(text string) domain.Verdict {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	for _, line := range lines {
		if v, ok := domain.ParseVerdictLine(line); ok {
			return v
		}
	}
	if len(lines) > 0 {
		return domain.ReviseWith(lines[0])
	}
	return domain.ReviseWith(defaultReviseFeedback)
}

func critiqueUpdate(v domain.Verdict) domain.StepUpdate {
	return domain.StepUpdate{Critique: domain.StringPtr(v.String())}
}
