package ai

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const systemPrompt = "You are a careful fact-checker. You answer only with a single JSON object and never add commentary outside it."

// BuildPrompt asks for a neutral assessment of claim in a fixed JSON shape
func BuildPrompt(claim, lang string) string {
	return fmt.Sprintf(`Analyze this statement: %q

The statement is written in %s. Judge whether it is factually accurate based on widely established knowledge. If you cannot tell, say so.

Respond ONLY with JSON in this format:
{"verdict": "true|false|misleading|unverified", "confidence": 0.0, "explanation": "brief explanation in the statement's language", "reasoning": "your analysis", "red_flags": ["issues, if any"]}

confidence is a number between 0.0 and 1.0 describing how sure you are of the verdict.`, claim, languageName(lang))
}

func languageName(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return "English"
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return "English"
}
