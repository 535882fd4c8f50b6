package config

// BuiltinCocktails returns the default cocktail roster shipped with the
// binary so it runs out of the box; a user's cocktails.yaml is merged over
// this entry by entry, each cocktail it names replacing the built-in one of
// the same name.
//
// Model IDs follow OpenRouter's "<provider>/<model>" naming convention.
func BuiltinCocktails() map[string]Cocktail {
	return map[string]Cocktail{
		"LUXE": {
			Primaries: []string{
				"anthropic/claude-3.7-sonnet",
				"openai/gpt-4o",
				"google/gemini-2.0-flash-thinking-exp-01-21",
			},
			Fallbacks: []string{
				"anthropic/claude-3-haiku",
				"openai/gpt-4o-mini",
				"google/gemini-2.0-flash-001",
			},
		},
		"PREMIUM": {
			Primaries: []string{
				"openai/gpt-4o",
				"anthropic/claude-3.7-sonnet",
				"meta-llama/llama-3.3-70b-instruct",
			},
			Fallbacks: []string{
				"openai/gpt-4o-mini",
				"anthropic/claude-3-haiku",
				"meta-llama/llama-3.1-8b-instruct",
			},
		},
		"SPEEDY": {
			Primaries: []string{
				"openai/gpt-4o-mini",
				"anthropic/claude-3-haiku",
				"google/gemini-2.0-flash-001",
			},
			Fallbacks: []string{
				"meta-llama/llama-3.1-8b-instruct",
				"mistralai/mistral-small",
				"google/gemini-flash-1.5-8b",
			},
		},
		"BUDGET": {
			Primaries: []string{
				"meta-llama/llama-3.1-8b-instruct",
				"mistralai/mistral-small",
				"google/gemini-flash-1.5-8b",
			},
			Fallbacks: []string{
				"meta-llama/llama-3.2-3b-instruct",
				"mistralai/mistral-7b-instruct",
				"google/gemma-2-9b-it",
			},
		},
		"DEPTH": {
			Primaries: []string{
				"anthropic/claude-3.7-sonnet",
				"google/gemini-2.0-flash-thinking-exp-01-21",
				"deepseek/deepseek-r1",
			},
			Fallbacks: []string{
				"openai/gpt-4o",
				"google/gemini-2.0-flash-001",
				"meta-llama/llama-3.3-70b-instruct",
			},
		},
	}
}
