package config

import (
	"fmt"
	"os"
)

// Validator runs the ordered, fail-fast validation chain applied to a
// loaded Config at startup, mirroring the teacher's config Validator
// idiom (ValidateAll stops at the first failing stage rather than
// collecting every error in the tree).
type Validator struct {
	cfg *Config
}

// NewValidator constructs a Validator bound to cfg.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll runs every validation stage in order, returning the first
// error encountered.
func (v *Validator) ValidateAll() error {
	if err := v.validateCocktails(); err != nil {
		return err
	}
	if err := v.validateScheduler(); err != nil {
		return err
	}
	if err := v.validateGateway(); err != nil {
		return err
	}
	return nil
}

func (v *Validator) validateCocktails() error {
	all := v.cfg.Cocktails.GetAll()
	if len(all) == 0 {
		return fmt.Errorf("no cocktails configured")
	}
	for name, c := range all {
		c.Name = name
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateScheduler() error {
	s := v.cfg.Scheduler
	if s.PrimaryAttempts < 1 {
		return fmt.Errorf("scheduler.primary_attempts must be >= 1, got %d", s.PrimaryAttempts)
	}
	if s.Quorum < 1 {
		return fmt.Errorf("scheduler.quorum must be >= 1, got %d", s.Quorum)
	}
	if s.MaxConcurrency < 1 {
		return fmt.Errorf("scheduler.max_concurrency must be >= 1, got %d", s.MaxConcurrency)
	}
	if s.PrimaryTimeout <= 0 {
		return fmt.Errorf("scheduler.primary_timeout must be positive, got %s", s.PrimaryTimeout)
	}
	if s.FallbackTimeout <= 0 {
		return fmt.Errorf("scheduler.fallback_timeout must be positive, got %s", s.FallbackTimeout)
	}
	return nil
}

func (v *Validator) validateGateway() error {
	g := v.cfg.Gateway
	if g.BaseURL == "" {
		return fmt.Errorf("gateway.base_url must not be empty")
	}
	if g.APIKeyEnv == "" {
		return fmt.Errorf("gateway.api_key_env must not be empty")
	}
	if os.Getenv(g.APIKeyEnv) == "" {
		return fmt.Errorf("%s must be set in the environment", g.APIKeyEnv)
	}
	if g.ConnectTimeout <= 0 {
		return fmt.Errorf("gateway.connect_timeout must be positive, got %s", g.ConnectTimeout)
	}
	if g.ReadTimeout <= 0 {
		return fmt.Errorf("gateway.read_timeout must be positive, got %s", g.ReadTimeout)
	}
	return nil
}
