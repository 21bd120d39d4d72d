// Package scoring evaluates generated surveys against a weighted five-pillar
// rule set. The primary path is a single consolidated LLM evaluation; a
// deterministic structural scorer serves as the fallback when the evaluator
// fails or returns an incomplete result.
package scoring

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Pillar identifies one of the five quality dimensions every survey is
// scored on.
type Pillar string

const (
	PillarContentValidity     Pillar = "content_validity"
	PillarMethodologicalRigor Pillar = "methodological_rigor"
	PillarClarity             Pillar = "clarity_comprehensibility"
	PillarStructuralCoherence Pillar = "structural_coherence"
	PillarDeploymentReadiness Pillar = "deployment_readiness"
)

// Pillars returns the five scoring pillars in their canonical order. Score
// artifacts always list pillars in this order.
func Pillars() []Pillar {
	return []Pillar{
		PillarContentValidity,
		PillarMethodologicalRigor,
		PillarClarity,
		PillarStructuralCoherence,
		PillarDeploymentReadiness,
	}
}

func knownPillar(p Pillar) bool {
	switch p {
	case PillarContentValidity, PillarMethodologicalRigor, PillarClarity,
		PillarStructuralCoherence, PillarDeploymentReadiness:
		return true
	}
	return false
}

// Priority expresses how heavily a rule counts within its pillar when the
// deterministic fallback scorer runs.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func priorityWeight(p Priority) float64 {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 1
	}
}

// Rule is a single quality criterion. The LLM evaluator reads the
// description; the fallback scorer runs the named structural check.
type Rule struct {
	ID          string   `yaml:"id"`
	Priority    Priority `yaml:"priority"`
	Description string   `yaml:"description"`
	Check       string   `yaml:"check"`
	Value       int      `yaml:"value,omitempty"`
}

// PillarRules groups the rules and weight for one pillar.
type PillarRules struct {
	Name   Pillar  `yaml:"name"`
	Weight float64 `yaml:"weight"`
	Rules  []Rule  `yaml:"rules"`
}

// RuleSet is the full scoring configuration: all five pillars with their
// weights and rules.
type RuleSet struct {
	Pillars []PillarRules `yaml:"pillars"`
}

// weightTolerance bounds how far pillar weights may drift from summing to 1.0.
const weightTolerance = 1e-6

// ConfigurationError reports an invalid rule set. It is fatal at startup: a
// service must not score surveys against a malformed configuration.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("scoring configuration: %s", e.Message)
}

func configError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// LoadDefault parses and validates the embedded rule set.
func LoadDefault() (*RuleSet, error) {
	return parseRuleSet(defaultRules)
}

// LoadFile parses and validates a rule set from a YAML file, for deployments
// that override the embedded defaults.
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configError("failed to read rule file %s: %v", path, err)
	}
	return parseRuleSet(data)
}

func parseRuleSet(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, configError("failed to parse rule set: %v", err)
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	rs.applyCheckDefaults()
	return &rs, nil
}

// Validate checks the structural invariants of the rule set: exactly the five
// known pillars, weights summing to 1.0 within tolerance, at least one rule
// per pillar, and every rule carrying a unique id, a known priority, and a
// known check.
func (rs *RuleSet) Validate() error {
	seenPillars := make(map[Pillar]bool, len(rs.Pillars))
	seenRules := make(map[string]bool)
	weightSum := 0.0

	for _, pillar := range rs.Pillars {
		if !knownPillar(pillar.Name) {
			return configError("unknown pillar %q", pillar.Name)
		}
		if seenPillars[pillar.Name] {
			return configError("pillar %q defined twice", pillar.Name)
		}
		seenPillars[pillar.Name] = true

		if pillar.Weight <= 0 {
			return configError("pillar %q has non-positive weight %v", pillar.Name, pillar.Weight)
		}
		weightSum += pillar.Weight

		if len(pillar.Rules) == 0 {
			return configError("pillar %q has no rules", pillar.Name)
		}
		for _, rule := range pillar.Rules {
			if rule.ID == "" {
				return configError("pillar %q contains a rule with no id", pillar.Name)
			}
			if seenRules[rule.ID] {
				return configError("rule id %q defined twice", rule.ID)
			}
			seenRules[rule.ID] = true

			switch rule.Priority {
			case PriorityHigh, PriorityMedium, PriorityLow:
			default:
				return configError("rule %q has unknown priority %q", rule.ID, rule.Priority)
			}
			if rule.Description == "" {
				return configError("rule %q has no description", rule.ID)
			}
			if !knownCheck(rule.Check) {
				return configError("rule %q references unknown check %q", rule.ID, rule.Check)
			}
		}
	}

	if len(seenPillars) != len(Pillars()) {
		var missing []Pillar
		for _, p := range Pillars() {
			if !seenPillars[p] {
				missing = append(missing, p)
			}
		}
		return configError("missing pillars: %v", missing)
	}

	if math.Abs(weightSum-1.0) > weightTolerance {
		return configError("pillar weights sum to %.6f, want 1.0", weightSum)
	}

	return nil
}

func (rs *RuleSet) applyCheckDefaults() {
	for pi := range rs.Pillars {
		for ri := range rs.Pillars[pi].Rules {
			rule := &rs.Pillars[pi].Rules[ri]
			if rule.Value == 0 {
				rule.Value = checkDefaultValue(rule.Check)
			}
		}
	}
}

// PillarWeight returns the configured weight for a pillar, or 0 if the pillar
// is not in the set.
func (rs *RuleSet) PillarWeight(p Pillar) float64 {
	for _, pillar := range rs.Pillars {
		if pillar.Name == p {
			return pillar.Weight
		}
	}
	return 0
}

// RulesFor returns the rules configured for a pillar.
func (rs *RuleSet) RulesFor(p Pillar) []Rule {
	for _, pillar := range rs.Pillars {
		if pillar.Name == p {
			return pillar.Rules
		}
	}
	return nil
}

// RuleByID resolves a rule id to its rule and owning pillar.
func (rs *RuleSet) RuleByID(id string) (Rule, Pillar, bool) {
	for _, pillar := range rs.Pillars {
		for _, rule := range pillar.Rules {
			if rule.ID == id {
				return rule, pillar.Name, true
			}
		}
	}
	return Rule{}, "", false
}

// RuleCount returns the total number of rules across all pillars.
func (rs *RuleSet) RuleCount() int {
	n := 0
	for _, pillar := range rs.Pillars {
		n += len(pillar.Rules)
	}
	return n
}
