package validate

import (
	"fmt"
	"strings"

	"github.com/ultrai-run/ultrai/pkg/artifact"
	"github.com/ultrai-run/ultrai/pkg/config"
	"github.com/ultrai-run/ultrai/pkg/ultraierr"
)

// Raw is the unvalidated input the caller (API handler or CLI prompt)
// collects from the user.
type Raw struct {
	Query    string
	Analysis string
	Cocktail string
	Addons   []string
}

// Inputs is the validated, normalized shape written as 01_inputs.json.
type Inputs struct {
	Query    string   `json:"QUERY"`
	Analysis string   `json:"ANALYSIS"`
	Cocktail string   `json:"COCKTAIL"`
	Addons   []string `json:"ADDONS"`
}

const requiredAnalysis = "Synthesis"

// Validator is the Input Validator (spec section 4.4): it normalizes and
// validates QUERY/COCKTAIL/ANALYSIS/ADDONS and writes 01_inputs.json.
type Validator struct {
	cocktails *config.CocktailRegistry
	store     *artifact.Store
}

// NewValidator constructs a Validator bound to the cocktail registry and
// artifact store.
func NewValidator(cocktails *config.CocktailRegistry, store *artifact.Store) *Validator {
	return &Validator{cocktails: cocktails, store: store}
}

// Validate normalizes raw, checks every field, writes 01_inputs.json, and
// returns the validated Inputs. Failures wrap ultraierr.ErrUserInput.
func (v *Validator) Validate(runID string, raw Raw) (*Inputs, error) {
	query := strings.TrimSpace(raw.Query)
	if query == "" {
		return nil, ultraierr.NewValidationError(ultraierr.ErrUserInput, "QUERY", "must be non-empty after trimming")
	}

	analysis := strings.TrimSpace(raw.Analysis)
	if analysis != requiredAnalysis {
		return nil, ultraierr.NewValidationError(ultraierr.ErrUserInput, "ANALYSIS",
			fmt.Sprintf("must equal %q, got %q", requiredAnalysis, analysis))
	}

	cocktail := strings.TrimSpace(raw.Cocktail)
	if !v.cocktails.Has(cocktail) {
		return nil, ultraierr.NewValidationError(ultraierr.ErrUserInput, "COCKTAIL",
			fmt.Sprintf("%q is not one of the configured cocktails: %v", cocktail, v.cocktails.Names()))
	}

	if len(raw.Addons) != 0 {
		return nil, ultraierr.NewValidationError(ultraierr.ErrUserInput, "ADDONS", "must be an empty list")
	}

	inputs := &Inputs{
		Query:    query,
		Analysis: analysis,
		Cocktail: cocktail,
		Addons:   []string{},
	}

	if err := v.store.Write(runID, "01_inputs", inputs); err != nil {
		return nil, err
	}
	return inputs, nil
}
