package llm

// Tier is a static equivalence class of models used as a fallback
// preference list when the caller's chosen model fails repeatedly.
type Tier string

const (
	TierFlagship Tier = "flagship"
	TierMidTier  Tier = "mid-tier"
	TierBudget   Tier = "budget"
	TierCoding   Tier = "coding"
)

// modelTiers mirrors the pre-distillation reference implementation's
// MODEL_TIERS table: each tier lists equivalent models in preference order.
var modelTiers = map[Tier][]string{
	TierFlagship: {
		"openai/gpt-4-turbo",
		"anthropic/claude-3-opus",
		"google/gemini-pro-1.5",
	},
	TierMidTier: {
		"openai/gpt-3.5-turbo",
		"anthropic/claude-3-sonnet",
		"google/gemini-pro",
	},
	TierBudget: {
		"openai/gpt-3.5-turbo-0125",
		"anthropic/claude-3-haiku",
		"mistralai/mistral-7b-instruct",
	},
	TierCoding: {
		"openai/gpt-4-turbo",
		"anthropic/claude-3-opus",
		"deepseek/deepseek-coder",
	},
}

// tierOf returns the tier a model belongs to, if any.
func tierOf(model string) (Tier, bool) {
	for tier, models := range modelTiers {
		for _, m := range models {
			if m == model {
				return tier, true
			}
		}
	}
	return "", false
}

// fallbackList builds the ordered list of models to try for model, capped
// at maxAttempts entries: model itself first, then the remaining members
// of its tier. A model outside any known tier falls back only to itself.
func fallbackList(model string, maxAttempts int) []string {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	list := []string{model}
	if tier, ok := tierOf(model); ok {
		for _, m := range modelTiers[tier] {
			if m == model {
				continue
			}
			if len(list) >= maxAttempts {
				break
			}
			list = append(list, m)
		}
	}
	if len(list) > maxAttempts {
		list = list[:maxAttempts]
	}
	return list
}
