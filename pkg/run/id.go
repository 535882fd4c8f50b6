// Package run defines RunID generation policies shared by the CLI and the
// HTTP control plane.
package run

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// idPattern mirrors the artifact store's path-safety whitelist; kept here
// too so callers can validate a caller-supplied ID before it ever reaches
// the store.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// NewCLIRunID generates a timestamp-based run ID: YYYYMMDD_HHMMSS, the
// policy used by the interactive CLI (spec section 3).
func NewCLIRunID(now time.Time) string {
	return now.Format("20060102_150405")
}

// NewAPIRunID generates an API run ID: api_<cocktail>_<timestamp>. cocktail
// is lower-cased and any character outside [A-Za-z0-9_-] is dropped so the
// result always satisfies idPattern regardless of caller input.
func NewAPIRunID(cocktail string, now time.Time) string {
	slug := sanitizeSlug(cocktail)
	return fmt.Sprintf("api_%s_%s", slug, now.Format("20060102_150405"))
}

// Valid reports whether id satisfies the run-ID character whitelist.
func Valid(id string) bool {
	return id != "" && idPattern.MatchString(id)
}

func sanitizeSlug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
