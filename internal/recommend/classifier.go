package recommend

import "strings"

// Classify tags generated text with a category by keyword matching over the
// lower-cased text. Rules are evaluated in priority order and the first match
// wins, so the function is total and deterministic: warning beats reschedule
// beats clothing, and activity_suggestion is the default.
func Classify(text string) Category {
	t := strings.ToLower(text)

	switch {
	case hasAny(t, "rain", "storm", "severe", "warning"):
		return CategoryWeatherWarning
	case hasAny(t, "reschedule", "postpone", "cancel"):
		return CategoryRescheduleAdvice
	case hasAny(t, "jacket", "coat", "umbrella", "clothing"):
		return CategoryClothingAdvice
	default:
		return CategoryActivitySuggestion
	}
}

func hasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
