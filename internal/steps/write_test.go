package steps

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-report-service/internal/domain"
)

func writerState() domain.StepContext {
	state := domain.NewStepContext("EV battery trends", 2)
	state.Plan = []string{"Market", "Technology"}
	state.Content = "merged research"
	state.RevisionNumber = 1
	state.HumanAction = domain.HumanActionReject
	state.HumanFeedback = "add more data"
	return state
}

func TestWrite_Sectioned(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{respond: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "Section title:\nMarket"):
			return "market body", nil
		case strings.Contains(prompt, "Section title:\nTechnology"):
			return "  ", nil
		case strings.Contains(prompt, "Section drafts:"):
			return "final report", nil
		}
		return "", fmt.Errorf("unexpected prompt")
	}}
	s := newTestSteps(completer, &fakeSearcher{}, nil)

	update := s.Write(context.Background(), writerState())

	require.NotNil(t, update.Content)
	assert.Equal(t, "final report", *update.Content)
	assert.Equal(t, 2, *update.RevisionNumber)
	assert.Equal(t, domain.HumanActionNone, *update.HumanAction)
	assert.Equal(t, 3, completer.calls())

	final := completer.prompts[2]
	assert.Contains(t, final, "## Market\nmarket body\n\n## Technology\n"+SectionFailedMarker)
	assert.Contains(t, final, "add more data")
	assert.Contains(t, final, "Sources (title + URL):\nnone")
}

func TestWrite_SectionFailureUsesOneShot(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Section title:\nTechnology") {
			return "", errCollaborator
		}
		if strings.Contains(prompt, "Requirements:") {
			return "one-shot report", nil
		}
		return "body", nil
	}}
	s := newTestSteps(completer, &fakeSearcher{}, nil)

	update := s.Write(context.Background(), writerState())

	assert.Equal(t, "one-shot report", *update.Content)
	assert.Equal(t, 2, *update.RevisionNumber)
}

func TestWrite_AllFail(t *testing.T) {
	t.Parallel()

	s := newTestSteps(failing(), &fakeSearcher{}, nil)

	update := s.Write(context.Background(), writerState())

	assert.Equal(t, GenerationFailedMarker, *update.Content)
	assert.Equal(t, 2, *update.RevisionNumber)
	assert.Equal(t, domain.HumanActionNone, *update.HumanAction)
}

func TestWrite_DefaultOutlineAndConcurrencyLimit(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	completer := &fakeCompleter{respond: func(prompt string) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		return "text", nil
	}}
	s := newTestSteps(completer, &fakeSearcher{}, nil)

	state := writerState()
	state.Plan = []string{" ", ""}
	s.Write(context.Background(), state)

	assert.Equal(t, len(defaultOutline)+1, completer.calls())
	assert.LessOrEqual(t, peak.Load(), int32(2))
	for _, section := range defaultOutline {
		found := false
		for _, p := range completer.prompts {
			if strings.Contains(p, "Section title:\n"+section) {
				found = true
			}
		}
		assert.True(t, found, section)
	}
}

func TestFormatSources(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none", formatSources(nil, 8))

	sources := []domain.Source{
		{Title: "A", URL: "https://a"},
		{Title: "", URL: "https://b"},
		{Title: "C"},
	}
	assert.Equal(t, "1. A - https://a\n2. no title - https://b\n3. C", formatSources(sources, 8))

	many := make([]domain.Source, 10)
	for i := range many {
		many[i] = domain.Source{Title: fmt.Sprintf("S%d", i)}
	}
	lines := strings.Split(formatSources(many, 8), "\n")
	assert.Len(t, lines, 8)
	assert.Equal(t, "8. S7", lines[7])
}
