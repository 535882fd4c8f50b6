package config

import "time"

// SchedulerConfig bounds the Round Scheduler's concurrency and per-attempt
// timing, generalizing the teacher's QueueConfig from a DB-polled worker
// pool to an in-process bounded fan-out.
type SchedulerConfig struct {
	// PrimaryAttempts is the number of attempts given to a slot's primary
	// model before falling back (spec section 4.6: PRIMARY_ATTEMPTS = 2).
	PrimaryAttempts int `yaml:"primary_attempts"`

	// PrimaryTimeout bounds each primary attempt (spec: 15s).
	PrimaryTimeout time.Duration `yaml:"primary_timeout"`

	// FallbackTimeout bounds the single fallback attempt.
	FallbackTimeout time.Duration `yaml:"fallback_timeout"`

	// Quorum is the minimum number of non-error records required to
	// continue (spec: 2).
	Quorum int `yaml:"quorum"`

	// MaxConcurrency is the hard ceiling applied after concurrency_limit's
	// own [1,50] clamp, in case an operator wants a stricter cap.
	MaxConcurrency int `yaml:"max_concurrency"`
}

// DefaultSchedulerConfig returns the built-in scheduler defaults, matching
// spec section 4.6 and section 5 exactly.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		PrimaryAttempts: 2,
		PrimaryTimeout:  15 * time.Second,
		FallbackTimeout: 15 * time.Second,
		Quorum:          2,
		MaxConcurrency:  50,
	}
}

// GatewayConfig configures the LLM Gateway Client's connection to the
// upstream chat-completions endpoint.
type GatewayConfig struct {
	// BaseURL is the OpenAI-compatible chat-completions endpoint base
	// (e.g. "https://openrouter.ai/api/v1").
	BaseURL string `yaml:"base_url"`

	// APIKeyEnv names the environment variable holding the bearer token.
	APIKeyEnv string `yaml:"api_key_env"`

	// SiteURL and SiteName populate the HTTP-Referer / X-Title attribution
	// headers OpenRouter uses for usage dashboards.
	SiteURLEnv  string `yaml:"site_url_env"`
	SiteNameEnv string `yaml:"site_name_env"`

	// ConnectTimeout is the fixed TCP/TLS connection budget (spec: 10s).
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// ReadTimeout is the default total read budget when the caller does
	// not supply one (spec: 45s).
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// DefaultGatewayConfig returns the built-in gateway defaults.
func DefaultGatewayConfig() *GatewayConfig {
	return &GatewayConfig{
		BaseURL:        "https://openrouter.ai/api/v1",
		APIKeyEnv:      "OPENROUTER_API_KEY",
		SiteURLEnv:     "YOUR_SITE_URL",
		SiteNameEnv:    "YOUR_SITE_NAME",
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    45 * time.Second,
	}
}
