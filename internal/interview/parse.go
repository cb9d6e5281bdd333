package interview

import (
	"encoding/json"
	"errors"
	"strings"
)

// Sentinel prefixes the structured profile the model emits when the interview is done.
const Sentinel = "ATHLETE_PROFILE:::"

var ErrMalformedProfile = errors.New("malformed athlete profile")

// HasSentinel reports whether an assistant message carries the completion marker.
func HasSentinel(text string) bool {
	return strings.Contains(text, Sentinel)
}

// SplitSentinel returns the prose before the marker and the raw payload after it.
func SplitSentinel(text string) (prose, payload string) {
	i := strings.Index(text, Sentinel)
	if i < 0 {
		return text, ""
	}
	return strings.TrimSpace(text[:i]), strings.TrimSpace(text[i+len(Sentinel):])
}

// ParseProfile decodes the JSON object that follows the marker. Markdown code
// fences around the object are tolerated.
func ParseProfile(text string) (map[string]any, error) {
	_, payload := SplitSentinel(text)
	payload = strings.TrimPrefix(payload, "```json")
	payload = strings.TrimPrefix(payload, "```")

	start := strings.Index(payload, "{")
	end := strings.LastIndex(payload, "}")
	if start < 0 || end <= start {
		return nil, ErrMalformedProfile
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(payload[start:end+1]), &out); err != nil {
		return nil, errors.Join(ErrMalformedProfile, err)
	}
	return out, nil
}

// Milestone maps celebration markers in assistant text onto UI hints.
func Milestone(text string) string {
	switch {
	case strings.Contains(text, "🎉"):
		return "progress"
	case strings.Contains(text, "🔥"):
		return "streak"
	}
	return ""
}

var forceKeywords = map[string]bool{"FORCE_COMPLETE": true, "DONE": true, "FINISH": true}

// IsForceComplete reports whether the whole user message asks to end the interview now.
func IsForceComplete(message string) bool {
	return forceKeywords[strings.ToUpper(strings.TrimSpace(message))]
}
