package steps

import (
	"context"

	"github.com/helixir/research-report-service/internal/domain"
)

const maxPlanResearchTasks = 3

// RouteResearch chooses what to search for next: the reviewer's focus when
// the critique requests research, else the first plan items, else the task.
// A research request from the reviewer also advances ResearchRounds.
func RouteResearch(_ context.Context, state domain.StepContext) domain.StepUpdate {
	var tasks []string
	update := domain.StepUpdate{}

	if v, ok := domain.ParseVerdictLine(state.Critique); ok && v.Kind == domain.VerdictResearch {
		update.ResearchRounds = domain.IntPtr(state.ResearchRounds + 1)
		if v.Text != "" {
			tasks = []string{v.Text}
		}
	}
	if len(tasks) == 0 && len(state.Plan) > 0 {
		n := min(len(state.Plan), maxPlanResearchTasks)
		tasks = append([]string{}, state.Plan[:n]...)
	}
	if len(tasks) == 0 {
		tasks = []string{state.Task}
	}

	update.ResearchTasks = tasks
	update.ResearchTask = domain.StringPtr(tasks[0])
	return update
}
