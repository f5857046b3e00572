package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/joinopt/internal/costmodel"
	"github.com/roach88/joinopt/internal/ir"
	"github.com/roach88/joinopt/internal/mcts"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Iterations is the search budget. Zero is valid and yields the
	// input order.
	Iterations int `yaml:"iterations"`

	// JoinCost names the join heuristic. Empty means nested_loop.
	JoinCost string `yaml:"join_cost,omitempty"`

	// MaxNodes bounds the search tree. Zero means the default bound.
	MaxNodes int `yaml:"max_nodes,omitempty"`

	// Patterns is the query. It may be empty.
	Patterns []ir.Pattern `yaml:"patterns"`

	// Stats is the statistics snapshot. Nil selects the placeholder
	// statistics.
	Stats *ir.StatsSpec `yaml:"stats,omitempty"`

	// Assertions validate the plan.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates the optimizer result.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Order is the expected plan order (order).
	Order []int `yaml:"order,omitempty"`

	// Cost is the expected plan cost (cost).
	Cost *float64 `yaml:"cost,omitempty"`

	// Tolerance is the allowed absolute cost difference (cost).
	// Zero selects DefaultTolerance.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// Count is the expected extraction depth (extracted).
	Count *int `yaml:"count,omitempty"`

	// Code is the expected optimizer error code (error).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertPermutation      = "permutation"
	AssertOrder            = "order"
	AssertCost             = "cost"
	AssertExtracted        = "extracted"
	AssertNoWorseThanInput = "no_worse_than_input"
	AssertDeterministic    = "deterministic"
	AssertError            = "error"
)

// DefaultTolerance is the cost tolerance when an assertion gives none.
const DefaultTolerance = 1e-6

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches "assertion:" vs "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Iterations < 0 {
		return fmt.Errorf("iterations must be non-negative, got %d", s.Iterations)
	}
	if s.MaxNodes < 0 {
		return fmt.Errorf("max_nodes must be non-negative, got %d", s.MaxNodes)
	}
	if _, err := costmodel.JoinCostByName(s.JoinCost); err != nil {
		return fmt.Errorf("join_cost: %w", err)
	}
	if s.Stats != nil {
		if err := s.Stats.Validate(); err != nil {
			return fmt.Errorf("stats: %w", err)
		}
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertPermutation, AssertNoWorseThanInput, AssertDeterministic:
	case AssertOrder:
		if a.Order == nil {
			return fmt.Errorf("assertions[%d]: order is required for order", index)
		}
	case AssertCost:
		if a.Cost == nil {
			return fmt.Errorf("assertions[%d]: cost is required for cost", index)
		}
		if a.Tolerance < 0 {
			return fmt.Errorf("assertions[%d]: tolerance must be non-negative", index)
		}
	case AssertExtracted:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for extracted", index)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for extracted", index)
		}
	case AssertError:
		switch mcts.ErrorCode(a.Code) {
		case mcts.ErrCodeAllocation, mcts.ErrCodeCancelled, mcts.ErrCodeInvalidInput:
		case "":
			return fmt.Errorf("assertions[%d]: code is required for error", index)
		default:
			return fmt.Errorf("assertions[%d]: unknown error code %q", index, a.Code)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
