package steps

import (
	"fmt"
	"strings"

	"github.com/helixir/research-report-service/internal/domain"
)

const noneMarker = "none"

const planSystemPrompt = `You are a senior research planner.
Break the research task into 3-5 clear, actionable steps.
You MUST respond with strictly valid JSON in exactly this format:
{"plan": ["Step 1: description", "Step 2: description"]}
Do not output any other text, Markdown or explanation. Output JSON only.`

// writerInput carries the StepContext fields every writer prompt renders.
type writerInput struct {
	Task           string
	Plan           []string
	Content        string
	Sources        string
	HumanFeedback  string
	HistoryContext string
	Critique       string
}

func newWriterInput(state domain.StepContext, sourceLimit int) writerInput {
	return writerInput{
		Task:           state.Task,
		Plan:           state.Plan,
		Content:        state.Content,
		Sources:        formatSources(state.Sources, sourceLimit),
		HumanFeedback:  state.HumanFeedback,
		HistoryContext: state.HistoryContext,
		Critique:       state.Critique,
	}
}

func buildPlanUserPrompt(task, historyContext string) string {
	if historyContext == "" {
		return "Task: " + task
	}
	return fmt.Sprintf("Task: %s\n\nhistory context: existing report for reference:\n%s", task, historyContext)
}

// formatSources numbers the first limit sources as "N. title - url".
func formatSources(sources []domain.Source, limit int) string {
	if len(sources) == 0 {
		return noneMarker
	}
	if limit > 0 && len(sources) > limit {
		sources = sources[:limit]
	}

	lines := make([]string, 0, len(sources))
	for i, s := range sources {
		title := s.Title
		if title == "" {
			title = noTitle
		}
		if s.URL != "" {
			lines = append(lines, fmt.Sprintf("%d. %s - %s", i+1, title, s.URL))
		} else {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, title))
		}
	}
	return strings.Join(lines, "\n")
}

func writeContextBlocks(sb *strings.Builder, in writerInput) {
	sb.WriteString("Sources (title + URL):\n")
	sb.WriteString(in.Sources)
	sb.WriteString("\n\nHuman feedback (if any):\n")
	sb.WriteString(in.HumanFeedback)
	sb.WriteString("\n\nHistory context (if any):\n")
	sb.WriteString(in.HistoryContext)
	sb.WriteString("\n\nPrevious review critique (if any):\n")
	sb.WriteString(in.Critique)
	sb.WriteString("\n")
}

func buildSectionPrompt(in writerInput, section string) string {
	var sb strings.Builder

	sb.WriteString("You are a professional industry analyst.\n")
	sb.WriteString("Write only the body of a single section of a research report, based on the topic and material below. ")
	sb.WriteString("Keep it fluent, professional and objective.\n")
	sb.WriteString("Do not output the section heading and do not output a list of references.\n\n")

	fmt.Fprintf(&sb, "Research topic:\n%s\n\n", in.Task)
	fmt.Fprintf(&sb, "Section title:\n%s\n\n", section)
	fmt.Fprintf(&sb, "Research material:\n%s\n\n", in.Content)
	writeContextBlocks(&sb, in)

	return sb.String()
}

func buildFinalPrompt(in writerInput, outline []string, sections string) string {
	var sb strings.Builder

	sb.WriteString("You are a senior editor-in-chief.\n")
	sb.WriteString("Below are draft sections. Integrate them into one complete research report that is fluent, professional and objective. ")
	sb.WriteString("Add the transitions, introduction and conclusion needed for a coherent narrative. ")
	sb.WriteString("You may keep Markdown subheadings but avoid templated, mechanical listing.\n")
	sb.WriteString("End with a \"References\" section listing 5-8 primary sources (title + URL).\n\n")

	fmt.Fprintf(&sb, "Research topic:\n%s\n\n", in.Task)
	fmt.Fprintf(&sb, "Plan:\n%s\n\n", strings.Join(outline, "\n"))
	fmt.Fprintf(&sb, "Section drafts:\n%s\n\n", sections)
	writeContextBlocks(&sb, in)

	return sb.String()
}

func buildOneShotPrompt(in writerInput) string {
	var sb strings.Builder

	sb.WriteString("You are a professional industry analyst.\n")
	sb.WriteString("Write a complete research report based on the plan and research material below. ")
	sb.WriteString("Keep it fluent, professional and objective. Markdown subheadings are allowed.\n\n")

	fmt.Fprintf(&sb, "Research topic:\n%s\n\n", in.Task)
	fmt.Fprintf(&sb, "Plan:\n%s\n\n", strings.Join(in.Plan, "\n"))
	fmt.Fprintf(&sb, "Research material:\n%s\n\n", in.Content)
	writeContextBlocks(&sb, in)

	sb.WriteString("\nRequirements:\n")
	sb.WriteString("1. Synthesize the material into a clear narrative rather than piling up bullet points.\n")
	sb.WriteString("2. If there is human feedback, address it first.\n")
	sb.WriteString("3. If there is a review critique, respond to each point.\n")
	sb.WriteString("4. Suggested structure: title, background, key findings, implications and recommendations, conclusion.\n")
	sb.WriteString("5. End with a \"References\" section listing 5-8 primary sources (title + URL).\n")

	return sb.String()
}

func buildReviewPrompt(content string) string {
	var sb strings.Builder

	sb.WriteString("You are a senior editor. Review the following research report draft.\n\n")
	sb.WriteString("Draft:\n")
	sb.WriteString(content)
	sb.WriteString("\n\nRules (follow the output format strictly and output exactly one line):\n")
	sb.WriteString("1. To approve: output only `APPROVE`\n")
	sb.WriteString("2. If more material is needed: output `RESEARCH: <the specific information to search for>`\n")
	sb.WriteString("3. If a rewrite is needed: output `REVISE: <the specific points to rewrite>`\n")

	return sb.String()
}
