package model

import "strings"

// Verdict is the classification outcome of a fact-check
type Verdict string

const (
	VerdictTrue       Verdict = "TRUE"
	VerdictFalse      Verdict = "FALSE"
	VerdictMisleading Verdict = "MISLEADING"
	VerdictUnverified Verdict = "UNVERIFIED"
)

// verdictSynonyms maps labels used by fact-check publishers and AI models
var verdictSynonyms = map[string]Verdict{
	"true":        VerdictTrue,
	"credible":    VerdictTrue,
	"authentic":   VerdictTrue,
	"accurate":    VerdictTrue,
	"false":       VerdictFalse,
	"fake":        VerdictFalse,
	"inaccurate":  VerdictFalse,
	"misleading":  VerdictMisleading,
	"manipulated": VerdictMisleading,
	"suspicious":  VerdictMisleading,
	"partly true": VerdictMisleading,
	"unverified":  VerdictUnverified,
}

// ParseVerdict converts a free-form label into a Verdict. Unknown labels are UNVERIFIED.
func ParseVerdict(label string) Verdict {
	key := strings.ToLower(strings.TrimSpace(label))
	key = strings.ReplaceAll(key, "_", " ")
	key = strings.ReplaceAll(key, "-", " ")
	if v, ok := verdictSynonyms[key]; ok {
		return v
	}
	return VerdictUnverified
}

// Valid reports whether v is one of the four verdicts
func (v Verdict) Valid() bool {
	switch v {
	case VerdictTrue, VerdictFalse, VerdictMisleading, VerdictUnverified:
		return true
	}
	return false
}

func (v Verdict) String() string {
	return string(v)
}
