package config

import "os"

// ExpandEnv expands environment variables in YAML content using the
// standard library. Supports both ${VAR} and $VAR syntax (standard
// shell-style).
//
// Examples:
//   - ${OPENROUTER_API_KEY} → value of OPENROUTER_API_KEY
//   - $YOUR_SITE_URL → value of YOUR_SITE_URL
//
// Missing variables expand to empty string; validation catches required
// fields left empty by this substitution.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
