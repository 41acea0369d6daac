package models

// ValidationStrategy is the method used to check a constraint.
type ValidationStrategy string

const (
	// StrategyCode validates with a generated check function.
	StrategyCode ValidationStrategy = "code"
	// StrategyLLM validates with a model-judged report.
	StrategyLLM ValidationStrategy = "llm"
)

// Valid returns true if the strategy is a known value.
func (s ValidationStrategy) Valid() bool {
	switch s {
	case StrategyCode, StrategyLLM:
		return true
	default:
		return false
	}
}
