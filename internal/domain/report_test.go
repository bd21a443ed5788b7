package domain

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeReport(t *testing.T) {
	t.Run("empty report", func(t *testing.T) {
		assert.Equal(t, "", SummarizeReport("", 120))
	})

	t.Run("strips markdown markers", func(t *testing.T) {
		assert.Equal(t, "Title\nSome bold text", SummarizeReport("# Title\nSome **bold** text\n", 120))
	})

	t.Run("short text is not truncated", func(t *testing.T) {
		assert.Equal(t, "short", SummarizeReport("short", 120))
	})

	t.Run("long text is truncated by runes", func(t *testing.T) {
		report := strings.Repeat("电", 200)
		got := SummarizeReport(report, 120)
		assert.Equal(t, 121, utf8.RuneCountInString(got))
		assert.True(t, strings.HasSuffix(got, "…"))
	})

	t.Run("non-positive length uses default", func(t *testing.T) {
		got := SummarizeReport(strings.Repeat("a", 300), 0)
		assert.Equal(t, DefaultSummaryLength+1, utf8.RuneCountInString(got))
	})
}
