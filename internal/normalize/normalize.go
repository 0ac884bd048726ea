// Package normalize turns raw user input into canonical claim text.
package normalize

import (
	"regexp"
	"strings"

	"github.com/ppiankov/verifact/internal/errs"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// DefaultLanguage is used when the caller supplies no usable language tag
const DefaultLanguage = "en"

// Claim is normalized claim text plus its canonical language tag
type Claim struct {
	Text     string
	Language string
}

var (
	urlPattern   = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	emailPattern = regexp.MustCompile(`[\p{L}\p{N}._%+\-]+@[\p{L}\p{N}.\-]+\.\p{L}{2,}`)
	// Everything except letters, marks, digits, underscore, whitespace and . , ! ? -
	punctPattern = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s.,!?\-]`)
	spacePattern = regexp.MustCompile(`\s+`)

	folder = cases.Fold()
)

// Normalize produces the canonical form of a claim. Embedding the same
// logical claim twice must go through here so both embeddings agree.
func Normalize(raw, lang string) (Claim, error) {
	text := CleanText(raw)
	if text == "" {
		return Claim{}, errs.New(errs.KindInput, "normalize", "claim is empty after normalization")
	}
	return Claim{Text: text, Language: CanonicalLanguage(lang)}, nil
}

// CleanText applies NFKC, strips URLs and e-mail addresses, drops
// punctuation, collapses whitespace and case-folds. It may return "".
func CleanText(raw string) string {
	text := norm.NFKC.String(raw)
	text = urlPattern.ReplaceAllString(text, " ")
	text = emailPattern.ReplaceAllString(text, " ")
	text = punctPattern.ReplaceAllString(text, " ")
	text = spacePattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	return folder.String(text)
}

// CanonicalLanguage returns the base language subtag of lang ("pt-BR" → "pt").
// Empty or unparseable tags fall back to DefaultLanguage.
func CanonicalLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return DefaultLanguage
	}
	tag, err := language.Parse(lang)
	if err != nil || tag == language.Und {
		return DefaultLanguage
	}
	base, conf := tag.Base()
	if conf == language.No {
		return DefaultLanguage
	}
	return base.String()
}

// Truncate cuts s to at most n runes
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
