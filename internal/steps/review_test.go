package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-report-service/internal/domain"
)

func TestReview_CapApprovesWithoutModel(t *testing.T) {
	t.Parallel()

	completer := replyWith("REVISE: never called")
	s := newTestSteps(completer, &fakeSearcher{}, nil)

	state := domain.NewStepContext("t", 2)
	state.RevisionNumber = 2

	update := s.Review(context.Background(), state)

	require.NotNil(t, update.Critique)
	assert.Equal(t, "APPROVE", *update.Critique)
	assert.Equal(t, 0, completer.calls())
}

func TestReview_ModelErrorApproves(t *testing.T) {
	t.Parallel()

	s := newTestSteps(failing(), &fakeSearcher{}, nil)
	state := domain.NewStepContext("t", 2)
	state.RevisionNumber = 1

	update := s.Review(context.Background(), state)

	assert.Equal(t, "APPROVE", *update.Critique)
}

func TestReview_Normalizes(t *testing.T) {
	t.Parallel()

	completer := replyWith("Thoughts first.\nresearch: 2024 sales figures\nREVISE: ignored")
	s := newTestSteps(completer, &fakeSearcher{}, nil)
	state := domain.NewStepContext("t", 2)
	state.Content = "the draft"
	state.RevisionNumber = 1

	update := s.Review(context.Background(), state)

	assert.Equal(t, "RESEARCH: 2024 sales figures", *update.Critique)
	require.Len(t, completer.prompts, 1)
	assert.Contains(t, completer.prompts[0], "the draft")
}

func TestNormalizeVerdict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "approve", input: "APPROVE", want: "APPROVE"},
		{name: "approve with trailing text", input: "approve looks good", want: "APPROVE"},
		{name: "revise", input: "REVISE: shorten the intro", want: "REVISE: shorten the intro"},
		{name: "first recognized line wins", input: "\n  \nREVISE: a\nAPPROVE", want: "REVISE: a"},
		{name: "free text", input: "\nThe draft lacks numbers.\nMore text.", want: "REVISE: The draft lacks numbers."},
		{name: "approved is not approve", input: "APPROVED", want: "REVISE: APPROVED"},
		{name: "empty", input: "  \n ", want: "REVISE: please add key data sources and improve structure"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, NormalizeVerdict(tc.input).String())
		})
	}
}

func TestFuncs(t *testing.T) {
	t.Parallel()

	funcs := newTestSteps(replyWith(""), &fakeSearcher{}, nil).Funcs()

	for _, name := range []domain.StepName{
		domain.StepPlan, domain.StepRouteResearch, domain.StepResearch,
		domain.StepMergeResearch, domain.StepWrite, domain.StepReview,
	} {
		assert.Contains(t, funcs, name)
	}
	assert.NotContains(t, funcs, domain.StepHumanGate)
}
