package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/helixir/research-report-service/internal/domain"
	"github.com/helixir/research-report-service/internal/llm"
)

var errEmptyPlan = errors.New("plan is empty")

type planResponse struct {
	Plan []string `json:"plan"`
}

// DefaultPlan is the outline used when the model cannot produce one.
func DefaultPlan(task string) []string {
	return []string{
		fmt.Sprintf("Scope and current state of %s", task),
		"Key trends and drivers",
		"Conclusions and recommendations",
	}
}

// Plan asks the model for a 3-5 item outline in strict JSON.
func (s *Steps) Plan(ctx context.Context, state domain.StepContext) domain.StepUpdate {
	start := time.Now()
	defer s.logDone(ctx, domain.StepPlan, start)

	text, err := s.complete(ctx,
		llm.SystemMessage(planSystemPrompt),
		llm.UserMessage(buildPlanUserPrompt(state.Task, state.HistoryContext)),
	)
	if err != nil {
		s.recordFallback(ctx, domain.StepPlan, "model_error", err)
		return domain.StepUpdate{Plan: DefaultPlan(state.Task)}
	}

	plan, err := parsePlan(text)
	if err != nil {
		s.recordFallback(ctx, domain.StepPlan, "malformed_output", err)
		return domain.StepUpdate{Plan: DefaultPlan(state.Task)}
	}

	return domain.StepUpdate{Plan: plan}
}

// parsePlan accepts a bare or fenced JSON object with a "plan" string list.
func parsePlan(text string) ([]string, error) {
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var resp planResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}

	plan := make([]string, 0, len(resp.Plan))
	for _, item := range resp.Plan {
		if item = strings.TrimSpace(item); item != "" {
			plan = append(plan, item)
		}
	}
	if len(plan) == 0 {
		return nil, errEmptyPlan
	}
	return plan, nil
}
