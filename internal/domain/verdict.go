package domain

import "strings"

// VerdictKind tags a reviewer verdict.
type VerdictKind int

const (
	VerdictRevise VerdictKind = iota
	VerdictApprove
	VerdictResearch
)

// Canonical verdict prefixes.
const (
	approveToken   = "APPROVE"
	revisePrefix   = "REVISE:"
	researchPrefix = "RESEARCH:"
)

// Verdict is the normalized outcome of a review: Approve, ReviseWith(text)
// or ResearchWith(text). It is stored on the StepContext in its canonical
// string form and parsed back by the router.
type Verdict struct {
	Kind VerdictKind
	Text string
}

// Approve returns an approving verdict.
func Approve() Verdict { return Verdict{Kind: VerdictApprove} }

// ReviseWith returns a verdict asking for a rewrite.
func ReviseWith(text string) Verdict {
	return Verdict{Kind: VerdictRevise, Text: strings.TrimSpace(text)}
}

// ResearchWith returns a verdict asking for more research on a focus.
func ResearchWith(focus string) Verdict {
	return Verdict{Kind: VerdictResearch, Text: strings.TrimSpace(focus)}
}

// String renders the canonical critique form.
func (v Verdict) String() string {
	switch v.Kind {
	case VerdictApprove:
		return approveToken
	case VerdictResearch:
		return researchPrefix + " " + v.Text
	default:
		return revisePrefix + " " + v.Text
	}
}

// ParseVerdictLine recognizes one line in any of the accepted forms,
// case-insensitively: "APPROVE" (optionally followed by a space and text),
// "RESEARCH: <text>" or "REVISE: <text>".
func ParseVerdictLine(line string) (Verdict, bool) {
	line = strings.TrimSpace(line)
	upper := strings.ToUpper(line)
	switch {
	case upper == approveToken || strings.HasPrefix(upper, approveToken+" "):
		return Approve(), true
	case hasPrefixFold(line, researchPrefix):
		return ResearchWith(line[len(researchPrefix):]), true
	case hasPrefixFold(line, revisePrefix):
		return ReviseWith(line[len(revisePrefix):]), true
	default:
		return Verdict{}, false
	}
}

// ParseCritique interprets a stored critique for routing. Anything that is
// not a recognized verdict routes as a revision.
func ParseCritique(critique string) Verdict {
	if v, ok := ParseVerdictLine(critique); ok {
		return v
	}
	return ReviseWith(critique)
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
