package steps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/helixir/research-report-service/internal/domain"
	"github.com/helixir/research-report-service/internal/llm"
)

// defaultOutline is used for section drafting when the plan is empty.
var defaultOutline = []string{
	"Background and current state",
	"Key findings",
	"Implications and recommendations",
	"Conclusion",
}

// Write drafts each outline section in parallel, asks the model to merge
// them into one report, and bumps the revision. If section drafting or the
// merge fails it retries once with a single-shot prompt before giving up
// with GenerationFailedMarker. The recorded human action is cleared.
func (s *Steps) Write(ctx context.Context, state domain.StepContext) domain.StepUpdate {
	start := time.Now()
	defer s.logDone(ctx, domain.StepWrite, start)

	in := newWriterInput(state, s.cfg.SourcesInPrompt)

	draft, err := s.writeBySections(ctx, in)
	if err != nil {
		s.recordFallback(ctx, domain.StepWrite, "sectioned_write_failed", err)

		draft, err = s.complete(ctx, llm.UserMessage(buildOneShotPrompt(in)))
		if err != nil {
			s.recordFallback(ctx, domain.StepWrite, "one_shot_write_failed", err)
			draft = GenerationFailedMarker
		}
	}

	return domain.StepUpdate{
		Content:        domain.StringPtr(draft),
		RevisionNumber: domain.IntPtr(state.RevisionNumber + 1),
		HumanAction:    domain.HumanActionPtr(domain.HumanActionNone),
	}
}

func (s *Steps) writeBySections(ctx context.Context, in writerInput) (string, error) {
	outline := outlineOf(in.Plan)
	bodies := make([]string, len(outline))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.SectionConcurrency)
	for i, section := range outline {
		g.Go(func() error {
			body, err := s.complete(gctx, llm.UserMessage(buildSectionPrompt(in, section)))
			if err != nil {
				return fmt.Errorf("section %q: %w", section, err)
			}
			body = strings.TrimSpace(body)
			if body == "" {
				body = SectionFailedMarker
			}
			bodies[i] = "## " + section + "\n" + body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	return s.complete(ctx, llm.UserMessage(buildFinalPrompt(in, outline, strings.Join(bodies, "\n\n"))))
}

func outlineOf(plan []string) []string {
	outline := make([]string, 0, len(plan))
	for _, p := range plan {
		if p = strings.TrimSpace(p); p != "" {
			outline = append(outline, p)
		}
	}
	if len(outline) == 0 {
		return defaultOutline
	}
	return outline
}
