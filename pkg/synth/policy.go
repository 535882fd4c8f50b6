package synth

import "time"

// neutralPreference is the fixed preference order for R3 neutral-model
// selection (spec section 4.7).
var neutralPreference = []string{
	"claude-3.7-sonnet",
	"gpt-4o",
	"gemini-2.0-flash-thinking",
	"llama-3.3-70b",
}

// containsSuffix reports whether any candidate in availableModels names
// the preferred model, matching OpenRouter's "<provider>/<model>" IDs
// against the preference list's bare model names.
func containsSuffix(availableModels []string, preferred string) (string, bool) {
	for _, m := range availableModels {
		if m == preferred || hasModelSuffix(m, preferred) {
			return m, true
		}
	}
	return "", false
}

func hasModelSuffix(modelID, suffix string) bool {
	if len(modelID) <= len(suffix) {
		return modelID == suffix
	}
	return modelID[len(modelID)-len(suffix):] == suffix && modelID[len(modelID)-len(suffix)-1] == '/'
}

// selectNeutral chooses the first model in neutralPreference order that
// also appears among metaModels. If none match, falls back to the first
// entry of metaModels.
func selectNeutral(metaModels []string) string {
	for _, pref := range neutralPreference {
		if found, ok := containsSuffix(metaModels, pref); ok {
			return found
		}
	}
	if len(metaModels) > 0 {
		return metaModels[0]
	}
	return ""
}

// synthesisTimeout implements the adaptive-timeout table of spec section
// 4.7: a base from peer context length, scaled ×1.2 when there are ≥4
// drafts, clamped to [60s, 300s].
func synthesisTimeout(peerCtxLen, nDrafts int) time.Duration {
	var base time.Duration
	switch {
	case peerCtxLen < 1000:
		base = 60 * time.Second
	case peerCtxLen <= 3000:
		base = 90 * time.Second
	case peerCtxLen <= 5000:
		base = 120 * time.Second
	default:
		base = 180 * time.Second
	}

	if nDrafts >= 4 {
		base = time.Duration(float64(base) * 1.2)
	}

	const min = 60 * time.Second
	const max = 300 * time.Second
	if base < min {
		return min
	}
	if base > max {
		return max
	}
	return base
}

// maxCharsPerDraft implements the adaptive truncation table of spec
// section 4.7, keyed by the final computed timeout.
func maxCharsPerDraft(timeout time.Duration) int {
	switch {
	case timeout >= 180*time.Second:
		return 2000
	case timeout >= 120*time.Second:
		return 1200
	case timeout >= 90*time.Second:
		return 800
	default:
		return 500
	}
}
