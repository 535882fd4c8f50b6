package synth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSelectNeutral_PrefersOrderedList(t *testing.T) {
	got := selectNeutral([]string{"meta-llama/llama-3.3-70b", "openai/gpt-4o"})
	assert.Equal(t, "openai/gpt-4o", got)
}

func TestSelectNeutral_FallsBackToFirstWhenNoMatch(t *testing.T) {
	got := selectNeutral([]string{"mistralai/mistral-small", "google/gemma-2-9b-it"})
	assert.Equal(t, "mistralai/mistral-small", got)
}

func TestSelectNeutral_EmptyReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", selectNeutral(nil))
}

func TestSynthesisTimeout_S5Scenario(t *testing.T) {
	got := synthesisTimeout(6000, 4)
	assert.Equal(t, 216*time.Second, got)
}

func TestSynthesisTimeout_Table(t *testing.T) {
	cases := []struct {
		ctxLen, drafts int
		want           time.Duration
	}{
		{500, 1, 60 * time.Second},
		{2000, 1, 90 * time.Second},
		{4000, 1, 120 * time.Second},
		{6000, 1, 180 * time.Second},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, synthesisTimeout(c.ctxLen, c.drafts))
	}
}

func TestSynthesisTimeout_AlwaysClamped(t *testing.T) {
	for _, ctxLen := range []int{0, 500, 5000, 100000} {
		for _, drafts := range []int{0, 1, 4, 20} {
			got := synthesisTimeout(ctxLen, drafts)
			assert.GreaterOrEqual(t, got, 60*time.Second)
			assert.LessOrEqual(t, got, 300*time.Second)
		}
	}
}

func TestMaxCharsPerDraft_NonDecreasingInTimeout(t *testing.T) {
	timeouts := []time.Duration{60 * time.Second, 89 * time.Second, 90 * time.Second, 119 * time.Second, 120 * time.Second, 179 * time.Second, 180 * time.Second, 300 * time.Second}
	prev := 0
	for _, tm := range timeouts {
		got := maxCharsPerDraft(tm)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}

func TestMaxCharsPerDraft_S5Scenario(t *testing.T) {
	assert.Equal(t, 2000, maxCharsPerDraft(216*time.Second))
}
