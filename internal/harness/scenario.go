package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tingo/internal/connector"
	"github.com/roach88/tingo/internal/filter"
)

// Scenario defines a conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is an optional CUE file with model definitions.
	// Relative paths are resolved against the scenario file location.
	Schema string `yaml:"schema,omitempty"`

	// Models are inline model definitions, defined after Schema.
	Models []ModelSpec `yaml:"models,omitempty"`

	// Steps run in order against one connector.
	Steps []Step `yaml:"steps"`
}

// ModelSpec is an inline model definition.
type ModelSpec struct {
	Name       string                        `yaml:"name"`
	Collection string                        `yaml:"collection,omitempty"`
	Properties map[string]connector.Property `yaml:"properties,omitempty"`
}

// Definition converts m to a connector model definition.
func (m ModelSpec) Definition() connector.ModelDefinition {
	def := connector.ModelDefinition{
		Name:       m.Name,
		Properties: m.Properties,
	}
	if m.Collection != "" {
		def.Settings = map[string]any{"collection": m.Collection}
	}
	return def
}

// Step is a single connector call.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Model is the model the operation runs against.
	Model string `yaml:"model"`

	// ID identifies the document for find, exists, update and destroy.
	// An integer n stands for the n-th generated id.
	ID any `yaml:"id,omitempty"`

	// Data is the document for create, save, update and upsert.
	Data map[string]any `yaml:"data,omitempty"`

	// Where is the condition for count and destroy-all.
	Where map[string]any `yaml:"where,omitempty"`

	// Filter is the query for all.
	Filter *filter.Filter `yaml:"filter,omitempty"`

	// Expect validates the step outcome. Without it the step must
	// succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Error names the expected failure: an error kind such as
	// "not_found" or "unique_violation", or a message substring.
	Error string `yaml:"error,omitempty"`

	// Count is the expected number for count and destroy-all, and the
	// expected result length for all.
	Count *int64 `yaml:"count,omitempty"`

	// Exists is the expected answer of exists.
	Exists *bool `yaml:"exists,omitempty"`

	// Null expects find to return no document.
	Null bool `yaml:"null,omitempty"`

	// Result is a subset of the returned document.
	Result map[string]any `yaml:"result,omitempty"`

	// Results are subsets of the returned documents of all, in order.
	Results []map[string]any `yaml:"results,omitempty"`
}

// Step operations.
const (
	OpCreate     = "create"
	OpSave       = "save"
	OpFind       = "find"
	OpExists     = "exists"
	OpAll        = "all"
	OpCount      = "count"
	OpUpdate     = "update"
	OpUpsert     = "upsert"
	OpDestroy    = "destroy"
	OpDestroyAll = "destroy-all"
)

var knownOps = map[string]bool{
	OpCreate: true, OpSave: true, OpFind: true, OpExists: true, OpAll: true,
	OpCount: true, OpUpdate: true, OpUpsert: true, OpDestroy: true, OpDestroyAll: true,
}

var idOps = map[string]bool{OpFind: true, OpExists: true, OpUpdate: true, OpDestroy: true}

var dataOps = map[string]bool{OpCreate: true, OpSave: true, OpUpdate: true, OpUpsert: true}

// LoadScenario reads and parses a scenario YAML file. A relative schema
// path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the schema path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) && basePath != "" {
		scenario.Schema = filepath.Join(basePath, scenario.Schema)
	}
	if scenario.Schema != "" {
		if _, err := os.Stat(scenario.Schema); err != nil {
			return nil, fmt.Errorf("invalid scenario: schema file not found: %s", scenario.Schema)
		}
	}

	return scenario, nil
}

// ParseScenario decodes scenario YAML. Unknown fields are rejected.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
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
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, m := range s.Models {
		if m.Name == "" {
			return fmt.Errorf("models[%d]: name is required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step) error {
	if step.Op == "" {
		return fmt.Errorf("steps[%d]: op is required", index)
	}
	if !knownOps[step.Op] {
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}
	if step.Model == "" {
		return fmt.Errorf("steps[%d]: model is required", index)
	}
	if idOps[step.Op] && step.ID == nil {
		return fmt.Errorf("steps[%d]: id is required for %s", index, step.Op)
	}
	if dataOps[step.Op] && step.Data == nil {
		return fmt.Errorf("steps[%d]: data is required for %s (use {} for none)", index, step.Op)
	}
	if step.Filter != nil && step.Op != OpAll {
		return fmt.Errorf("steps[%d]: filter is only valid for %s", index, OpAll)
	}
	if step.Where != nil && step.Op != OpCount && step.Op != OpDestroyAll {
		return fmt.Errorf("steps[%d]: where is only valid for %s and %s", index, OpCount, OpDestroyAll)
	}
	if e := step.Expect; e != nil {
		if e.Exists != nil && step.Op != OpExists {
			return fmt.Errorf("steps[%d].expect: exists is only valid for %s", index, OpExists)
		}
		if e.Null && step.Op != OpFind {
			return fmt.Errorf("steps[%d].expect: null is only valid for %s", index, OpFind)
		}
		if e.Results != nil && step.Op != OpAll {
			return fmt.Errorf("steps[%d].expect: results is only valid for %s", index, OpAll)
		}
		if e.Count != nil && *e.Count < 0 {
			return fmt.Errorf("steps[%d].expect: count must be non-negative", index)
		}
	}
	return nil
}
