// Package validation checks plan definitions before execution: structural
// validation against a JSON Schema, then semantic checks the schema cannot
// express.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/mgrevis/gridplan/pkg/schema"
)

// planSchemaJSON is the JSON Schema for PlanDefinition validation.
// Embedded as a constant to avoid filesystem dependencies.
const planSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://gridplan.dev/schemas/plan.json",
  "type": "object",
  "required": ["execution_step"],
  "properties": {
    "name": { "type": "string" },
    "networks": {
      "type": "array",
      "items": { "$ref": "#/$defs/network" }
    },
    "execution_step": {
      "type": "array",
      "items": { "$ref": "#/$defs/step" }
    },
    "metadata": { "type": "object" }
  },
  "additionalProperties": false,
  "$defs": {
    "network": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": { "type": "string", "minLength": 1 },
        "type": { "type": "string" },
        "params": {}
      },
      "additionalProperties": false
    },
    "step": {
      "type": "object",
      "properties": {
        "name": { "type": "string" },
        "substeps": {
          "type": "array",
          "items": { "$ref": "#/$defs/step" }
        },
        "networks": {
          "type": "array",
          "items": { "type": "string", "minLength": 1 }
        },
        "num_iter": { "type": "integer", "minimum": 0 },
        "criteria_network": { "type": "string" },
        "report_network": { "type": "string" },
        "report_interval": { "type": "integer", "minimum": 1 },
        "concurrent_substeps": { "type": "boolean" }
      },
      "additionalProperties": false
    }
  }
}`

// Validator validates plan definitions. Safe for concurrent use.
type Validator struct {
	planSchema *jsonschema.Schema
}

// NewValidator creates a Validator with the plan schema pre-compiled.
func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(planSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal plan schema: %w", err)
	}
	if err := c.AddResource("https://gridplan.dev/schemas/plan.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add plan schema resource: %w", err)
	}

	compiled, err := c.Compile("https://gridplan.dev/schemas/plan.json")
	if err != nil {
		return nil, fmt.Errorf("compile plan schema: %w", err)
	}

	return &Validator{planSchema: compiled}, nil
}

// ValidatePlan runs structural then semantic validation.
func (v *Validator) ValidatePlan(plan *schema.PlanDefinition) error {
	if plan == nil {
		return schema.NewError(schema.ErrCodeValidation, "plan definition is nil")
	}

	doc, err := toJSONValue(plan)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize plan definition").WithCause(err)
	}
	if err := v.planSchema.Validate(doc); err != nil {
		return toPlanError(err)
	}

	return validateSemantic(plan)
}

// validateSemantic checks the constraints JSON Schema cannot express:
// duplicate network names, mutually exclusive step fields, and report
// configuration.
func validateSemantic(plan *schema.PlanDefinition) error {
	seen := make(map[string]struct{}, len(plan.Networks))
	for _, def := range plan.Networks {
		if _, exists := seen[def.Name]; exists {
			return schema.NewErrorf(schema.ErrCodeValidation,
				"duplicate network name %q", def.Name)
		}
		seen[def.Name] = struct{}{}
	}

	for i := range plan.ExecutionStep {
		path := fmt.Sprintf("execution_step[%d]", i)
		if err := validateStep(&plan.ExecutionStep[i], path); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step *schema.StepDefinition, path string) error {
	if len(step.Substeps) > 0 && len(step.Networks) > 0 {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"%s: a step should have either substeps or networks but not both", path).WithStep(step.Name)
	}
	if step.CriteriaNetwork != "" && step.HasNumIter() {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"%s: must not specify num_iter if criteria_network is set", path).WithStep(step.Name)
	}
	if step.ReportNetwork != "" && step.ReportInterval <= 0 {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"%s: a report_interval must be provided if report_network is set", path).WithStep(step.Name)
	}
	if step.ConcurrentSubsteps && len(step.Substeps) == 0 {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"%s: concurrent_substeps set on a step without substeps", path).WithStep(step.Name)
	}

	for j := range step.Substeps {
		if err := validateStep(&step.Substeps[j], fmt.Sprintf("%s.substeps[%d]", path, j)); err != nil {
			return err
		}
	}
	return nil
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toPlanError converts a jsonschema.ValidationError into a PlanError with
// leaf violation messages.
func toPlanError(err error) *schema.PlanError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}
	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0])
	}
	return schema.NewErrorf(schema.ErrCodeValidation,
		"validation failed with %d errors: %s", len(violations), strings.Join(violations, "; "))
}

// collectViolations walks a ValidationError tree and collects leaf error
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
