package domain

// ModelCost holds dollar prices per 1K tokens.
type ModelCost struct {
	Input  float64
	Output float64
}

func DefaultModelCosts() map[string]ModelCost {
	return map[string]ModelCost{
		"gpt-4":              {Input: 0.03, Output: 0.06},
		"gpt-4-0613":         {Input: 0.03, Output: 0.06},
		"gpt-4-32k":          {Input: 0.06, Output: 0.12},
		"gpt-4-32k-0613":     {Input: 0.06, Output: 0.12},
		"gpt-3.5-turbo":      {Input: 0.0015, Output: 0.002},
		"gpt-3.5-turbo-0613": {Input: 0.0015, Output: 0.002},
		"gpt-3.5-turbo-16k":  {Input: 0.003, Output: 0.004},
	}
}

// TokensToDollars prices a blended token count at the model's output rate.
// Unknown models cost zero rather than failing the caller.
func TokensToDollars(model string, tokens int) float64 {
	cost, ok := DefaultModelCosts()[model]
	if !ok {
		return 0
	}
	return float64(tokens) / 1000.0 * cost.Output
}
