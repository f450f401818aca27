// Package strategy holds the base plumbing for pluggable domain policies.
package strategy

// StrategyType groups strategies by the decision they make.
type StrategyType string

// StrategyTypeSelection covers policies that choose which stock batches an
// outbound request draws from.
const StrategyTypeSelection StrategyType = "batch_selection"

func (t StrategyType) String() string { return string(t) }

// Strategy is implemented by every named, self-describing policy.
type Strategy interface {
	Name() string
	Type() StrategyType
	Description() string
}

// BaseStrategy carries the descriptive metadata so concrete policies only
// implement their decision logic.
type BaseStrategy struct {
	name         string
	strategyType StrategyType
	description  string
}

func NewBaseStrategy(name string, strategyType StrategyType, description string) BaseStrategy {
	return BaseStrategy{name: name, strategyType: strategyType, description: description}
}

func (s BaseStrategy) Name() string { return s.name }

func (s BaseStrategy) Type() StrategyType { return s.strategyType }

func (s BaseStrategy) Description() string { return s.description }
