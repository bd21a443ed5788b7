package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVerdictLine(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		want   Verdict
		wantOK bool
	}{
		{name: "approve", line: "APPROVE", want: Approve(), wantOK: true},
		{name: "approve lowercase", line: "  approve ", want: Approve(), wantOK: true},
		{name: "approve with trailing text", line: "Approve looks good", want: Approve(), wantOK: true},
		{name: "approve glued is not approve", line: "APPROVED", wantOK: false},
		{name: "research", line: "RESEARCH: inflation data", want: ResearchWith("inflation data"), wantOK: true},
		{name: "research mixed case", line: "Research:  battery costs", want: ResearchWith("battery costs"), wantOK: true},
		{name: "revise", line: "revise: tighten intro", want: ReviseWith("tighten intro"), wantOK: true},
		{name: "free text", line: "The draft is weak", wantOK: false},
		{name: "empty", line: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseVerdictLine(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "APPROVE", Approve().String())
	assert.Equal(t, "REVISE: add more data", ReviseWith(" add more data ").String())
	assert.Equal(t, "RESEARCH: inflation data", ResearchWith("inflation data").String())
}

func TestParseCritique(t *testing.T) {
	assert.Equal(t, VerdictApprove, ParseCritique("APPROVE").Kind)
	assert.Equal(t, VerdictResearch, ParseCritique("research: x").Kind)
	assert.Equal(t, VerdictRevise, ParseCritique("REVISE: x").Kind)
	assert.Equal(t, VerdictRevise, ParseCritique("").Kind)
	assert.Equal(t, ReviseWith("needs work"), ParseCritique("needs work"))
}
