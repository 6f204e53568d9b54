package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultClock is the store clock of scenarios that do not set one.
const DefaultClock int64 = 1_700_000_000_000

// Scenario defines a store scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Clock is the initial store clock in epoch millis.
	Clock int64 `yaml:"clock,omitempty"`

	// Config is a configuration document in the format of the
	// healthstore config file. Database settings are ignored.
	Config yaml.Node `yaml:"config,omitempty"`

	// Steps run in order against one store.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and access log.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Operation names.
const (
	OpUpsert      = "upsert"
	OpRead        = "read"
	OpAggregate   = "aggregate"
	OpDelete      = "delete"
	OpSetPriority = "set_priority"
	OpSweep       = "sweep"
	OpAdvance     = "advance"
)

// Step is one operation. Which fields apply depends on Op.
type Step struct {
	Op         string `yaml:"op"`
	Package    string `yaml:"package,omitempty"`
	Background bool   `yaml:"background,omitempty"`

	// upsert
	Records []yaml.Node `yaml:"records,omitempty"`

	// read, delete
	Type string   `yaml:"type,omitempty"`
	IDs  []string `yaml:"ids,omitempty"`

	// read, aggregate, delete
	Start   int64    `yaml:"start,omitempty"`
	End     int64    `yaml:"end,omitempty"`
	Local   bool     `yaml:"local,omitempty"`
	Origins []string `yaml:"origins,omitempty"`

	// read
	PageSize   int  `yaml:"page_size,omitempty"`
	Descending bool `yaml:"descending,omitempty"`

	// aggregate, delete
	Types []string `yaml:"types,omitempty"`

	// aggregate
	Every string `yaml:"every,omitempty"`

	// set_priority
	Category string   `yaml:"category,omitempty"`
	Packages []string `yaml:"packages,omitempty"`

	// sweep
	Cutoff int64 `yaml:"cutoff,omitempty"`

	// advance
	By string `yaml:"by,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect checks the outcome of one step. Unset fields are not checked.
type Expect struct {
	// Error is the expected error code; empty expects success.
	Error string `yaml:"error,omitempty"`

	// Count is the number of records read, or deleted by a filter.
	Count *int `yaml:"count,omitempty"`

	// Outcomes are the per-record upsert outcomes.
	Outcomes []string `yaml:"outcomes,omitempty"`

	// Values are the aggregation values of the first bucket.
	Values map[string]float64 `yaml:"values,omitempty"`

	// Buckets is the number of aggregation buckets.
	Buckets *int `yaml:"buckets,omitempty"`
}

// Assertion validates the final trace or store state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op is the operation name (trace_count).
	Op string `yaml:"op,omitempty"`

	// Ops is the expected operation order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Package is the app whose access log entries are counted.
	Package string `yaml:"package,omitempty"`

	// Packages is the expected access log order, or the expected
	// priority list.
	Packages []string `yaml:"packages,omitempty"`

	// Category is the priority category (priority).
	Category string `yaml:"category,omitempty"`

	// Count is the expected number of occurrences.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceCount     = "trace_count"
	AssertTraceOrder     = "trace_order"
	AssertAccessLogCount = "access_log_count"
	AssertAccessLogOrder = "access_log_order"
	AssertPriority       = "priority"
)

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

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if scenario.Clock == 0 {
		scenario.Clock = DefaultClock
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
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateStep checks the fields each operation needs. Store-level
// validation is left to the store so scenarios can exercise it.
func validateStep(index int, s *Step) error {
	needsPackage := true
	switch s.Op {
	case OpUpsert, OpAggregate:
	case OpRead:
		if s.Type == "" {
			return fmt.Errorf("steps[%d]: type is required for read", index)
		}
	case OpDelete:
		if s.Type == "" && len(s.Types) == 0 {
			return fmt.Errorf("steps[%d]: type or types is required for delete", index)
		}
	case OpSetPriority:
		needsPackage = false
		if s.Category == "" {
			return fmt.Errorf("steps[%d]: category is required for set_priority", index)
		}
	case OpSweep:
		needsPackage = false
		if s.Cutoff == 0 {
			return fmt.Errorf("steps[%d]: cutoff is required for sweep", index)
		}
	case OpAdvance:
		needsPackage = false
		if _, err := time.ParseDuration(s.By); err != nil {
			return fmt.Errorf("steps[%d]: by must be a duration: %w", index, err)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, s.Op)
	}
	if needsPackage && s.Package == "" {
		return fmt.Errorf("steps[%d]: package is required for %s", index, s.Op)
	}
	if s.Every != "" {
		if _, err := time.ParseDuration(s.Every); err != nil {
			return fmt.Errorf("steps[%d]: every must be a duration: %w", index, err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertAccessLogCount:
		if a.Package == "" {
			return fmt.Errorf("assertions[%d]: package is required for access_log_count", index)
		}
	case AssertAccessLogOrder:
	case AssertPriority:
		if a.Category == "" {
			return fmt.Errorf("assertions[%d]: category is required for priority", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}
