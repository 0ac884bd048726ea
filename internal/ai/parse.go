package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/verifact/internal/model"
)

var fencePattern = regexp.MustCompile("(?s)```(?:json)?(.*?)```")

type rawAssessment struct {
	Verdict     string          `json:"verdict"`
	Confidence  json.RawMessage `json:"confidence"`
	Explanation string          `json:"explanation"`
	Reasoning   string          `json:"reasoning"`
	RedFlags    []string        `json:"red_flags"`
}

// ParseAssessment extracts the JSON answer from model output that may be
// wrapped in code fences or surrounded by prose.
func ParseAssessment(text string) (*Assessment, error) {
	body := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(body); m != nil {
		body = strings.TrimSpace(m[1])
	}

	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model output")
	}
	body = body[start : end+1]

	var raw rawAssessment
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("malformed JSON in model output: %w", err)
	}

	conf, err := parseConfidence(raw.Confidence)
	if err != nil {
		return nil, err
	}

	return &Assessment{
		Verdict:     model.ParseVerdict(raw.Verdict),
		Confidence:  conf,
		Explanation: strings.TrimSpace(raw.Explanation),
		Reasoning:   strings.TrimSpace(raw.Reasoning),
		RedFlags:    raw.RedFlags,
	}, nil
}

// parseConfidence accepts a number or a numeric string and clamps to [0,1].
// Percent-style values above 1 are scaled down.
func parseConfidence(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("confidence is not a number: %s", raw)
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		f, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("confidence is not a number: %q", s)
		}
	}

	if f > 1 && f <= 100 {
		f /= 100
	}
	switch {
	case f < 0:
		return 0, nil
	case f > 1:
		return 1, nil
	}
	return f, nil
}
