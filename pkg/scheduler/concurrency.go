package scheduler

// concurrencyLimit implements the table-driven concurrency policy of spec
// section 4.6: a base ceiling from context length, scaled down by
// attachment count, clamped to [1, 50].
func concurrencyLimit(contextLen, attachments int) int {
	var base int
	switch {
	case contextLen < 200:
		base = 50
	case contextLen <= 1000:
		base = 30
	case contextLen <= 5000:
		base = 15
	default:
		base = 5
	}

	var factor float64
	switch {
	case attachments <= 0:
		factor = 1.0
	case attachments == 1:
		factor = 0.5
	case attachments <= 3:
		factor = 0.25
	default:
		factor = 0.1
	}

	c := int(float64(base) * factor)
	if c < 1 {
		c = 1
	}
	if c > 50 {
		c = 50
	}
	return c
}

// effectiveConcurrency applies the min(C, K) cap so a small cocktail never
// over-provisions its own worker pool.
func effectiveConcurrency(contextLen, attachments, k int) int {
	c := concurrencyLimit(contextLen, attachments)
	if k < c {
		return k
	}
	return c
}
