package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultSummaryLength is the rune length of an archived report summary.
const DefaultSummaryLength = 120

// ArchivedReport is a finalized copy of a thread's output, persisted
// independently of the live thread.
type ArchivedReport struct {
	ID        int64     `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Topic     string    `json:"topic"`
	Report    string    `json:"report,omitempty"`
	Summary   string    `json:"summary"`
	Sources   []Source  `json:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SummarizeReport derives the listing summary of a report: markdown heading
// and emphasis markers are removed and the text is cut to maxLen runes.
func SummarizeReport(report string, maxLen int) string {
	if report == "" {
		return ""
	}
	if maxLen <= 0 {
		maxLen = DefaultSummaryLength
	}
	text := strings.NewReplacer("#", "", "*", "").Replace(report)
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxLen]) + "…"
}
