package schema

import "encoding/json"

// PlanDefinition is the JSON-serializable plan format: the networks to
// materialize before anything runs, plus the top-level execution steps to run
// in declared order.
type PlanDefinition struct {
	Name          string              `json:"name,omitempty"`
	Networks      []NetworkDefinition `json:"networks,omitempty"`
	ExecutionStep []StepDefinition    `json:"execution_step"`
	Metadata      map[string]any      `json:"metadata,omitempty"`
}

// NetworkDefinition describes a single dataflow network. Type selects a
// registered network builder; Params is passed through to it untouched.
type NetworkDefinition struct {
	Name   string          `json:"name"`
	Type   string          `json:"type,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// StepDefinition is one node of the execution-step tree. A step holds either
// nested Substeps or a list of member network names, never both.
type StepDefinition struct {
	Name string `json:"name,omitempty"`

	// Substeps and Networks are mutually exclusive.
	Substeps []StepDefinition `json:"substeps,omitempty"`
	Networks []string         `json:"networks,omitempty"`

	// NumIter is the fixed iteration count. Mutually exclusive with
	// CriteriaNetwork. Unset (nil) means run once.
	NumIter *int `json:"num_iter,omitempty"`

	// CriteriaNetwork names a network whose single boolean output decides,
	// each iteration, whether to keep looping.
	CriteriaNetwork string `json:"criteria_network,omitempty"`

	// ReportNetwork is re-run every ReportInterval while the step executes.
	// ReportInterval is required whenever ReportNetwork is set.
	ReportNetwork  string `json:"report_network,omitempty"`
	ReportInterval int    `json:"report_interval,omitempty"` // seconds

	// ConcurrentSubsteps runs substeps with one worker per child instead of
	// sequentially in declared order.
	ConcurrentSubsteps bool `json:"concurrent_substeps,omitempty"`
}

// HasNumIter reports whether a fixed iteration count was declared.
func (s *StepDefinition) HasNumIter() bool {
	return s.NumIter != nil
}

// Iterations returns the declared fixed count, defaulting to 1.
func (s *StepDefinition) Iterations() int {
	if s.NumIter == nil {
		return 1
	}
	return *s.NumIter
}
