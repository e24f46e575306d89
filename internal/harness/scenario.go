package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/traverse/internal/traversal"
)

// Scenario defines a conformance test scenario.
// A scenario compiles one traversal for each listed engine, executes it
// over a fixture graph, and asserts on the compiled plans and results.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Source is the CUE file declaring the traversal.
	// Relative paths resolve against the scenario file location.
	Source string `yaml:"source"`

	// Traversal names the traversal inside Source.
	Traversal string `yaml:"traversal"`

	// Graph is a YAML graph fixture. Empty means the built-in modern graph.
	Graph string `yaml:"graph,omitempty"`

	// Engines lists the engines to compile and run for, in order.
	// Empty means standard then computer.
	Engines []traversal.EngineKind `yaml:"engines,omitempty"`

	// Workers is the computer partition count. Zero means DefaultWorkers.
	Workers int `yaml:"workers,omitempty"`

	// Assertions validate the plans.
	// Supported types: compiled, results, result_count, step_present,
	// step_absent, side_effect, engines_agree
	Assertions []Assertion `yaml:"assertions"`
}

// DefaultWorkers is the partition count scenarios run the computer engine with.
const DefaultWorkers = 2

// Assertion validates one or more plans.
type Assertion struct {
	// Type specifies the assertion type:
	// - "compiled": the rendered compiled chain equals Expect
	// - "results": the rendered results equal Values (as a multiset unless Ordered)
	// - "result_count": exactly Count results
	// - "step_present": a step of kind Step exists anywhere in the compiled chain
	// - "step_absent": no step of kind Step exists anywhere in the compiled chain
	// - "side_effect": store(Key) collected Values
	// - "engines_agree": every engine produced the same results
	Type string `yaml:"type"`

	// Engine restricts the assertion to one engine. Empty means every
	// engine the scenario runs. Ignored by engines_agree.
	Engine string `yaml:"engine,omitempty"`

	// Expect is the rendered chain (used by compiled).
	Expect string `yaml:"expect,omitempty"`

	// Values are rendered results (used by results and side_effect).
	Values []string `yaml:"values,omitempty"`

	// Ordered makes results compare in order (used by results).
	Ordered bool `yaml:"ordered,omitempty"`

	// Count is the expected number of results (used by result_count).
	Count int `yaml:"count,omitempty"`

	// Step is a step kind name such as "range" (used by step_present and step_absent).
	Step string `yaml:"step,omitempty"`

	// Key is the side-effect key (used by side_effect).
	Key string `yaml:"key,omitempty"`
}

// Assertion type constants.
const (
	AssertCompiled     = "compiled"
	AssertResults      = "results"
	AssertResultCount  = "result_count"
	AssertStepPresent  = "step_present"
	AssertStepAbsent   = "step_absent"
	AssertSideEffect   = "side_effect"
	AssertEnginesAgree = "engines_agree"
)

// LoadScenario reads and parses a scenario YAML file. Source and Graph
// paths are resolved relative to the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	scenario.Source = resolve(base, scenario.Source)
	scenario.Graph = resolve(base, scenario.Graph)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]string, len(paths))
	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		if prev, ok := seen[s.Name]; ok {
			return nil, fmt.Errorf("%s: scenario %q already defined in %s", p, s.Name, prev)
		}
		seen[s.Name] = p
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// engines returns the engines to run, applying the default.
func (s *Scenario) engines() []traversal.EngineKind {
	if len(s.Engines) == 0 {
		return []traversal.EngineKind{traversal.EngineStandard, traversal.EngineComputer}
	}
	return s.Engines
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Source == "" {
		return fmt.Errorf("source is required")
	}
	if s.Traversal == "" {
		return fmt.Errorf("traversal is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers must be non-negative")
	}

	if _, err := os.Stat(s.Source); os.IsNotExist(err) {
		return fmt.Errorf("source file not found: %s", s.Source)
	}
	if s.Graph != "" {
		if _, err := os.Stat(s.Graph); os.IsNotExist(err) {
			return fmt.Errorf("graph file not found: %s", s.Graph)
		}
	}

	seen := make(map[traversal.EngineKind]bool)
	for i, e := range s.Engines {
		if e == traversal.EngineUnset {
			return fmt.Errorf("engines[%d]: engine is required", i)
		}
		if seen[e] {
			return fmt.Errorf("engines[%d]: %s listed twice", i, e)
		}
		seen[e] = true
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], s.engines()); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, engines []traversal.EngineKind) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	if a.Engine != "" {
		kind, err := traversal.ParseEngineKind(a.Engine)
		if err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		found := false
		for _, e := range engines {
			found = found || e == kind
		}
		if !found {
			return fmt.Errorf("assertions[%d]: engine %s is not run by this scenario", index, kind)
		}
	}

	switch a.Type {
	case AssertCompiled:
		if a.Expect == "" {
			return fmt.Errorf("assertions[%d]: expect is required for compiled", index)
		}
	case AssertResults:
		// An empty values list asserts no results.
	case AssertResultCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for result_count", index)
		}
	case AssertStepPresent, AssertStepAbsent:
		if a.Step == "" {
			return fmt.Errorf("assertions[%d]: step is required for %s", index, a.Type)
		}
		if _, ok := traversal.ParseKind(a.Step); !ok {
			return fmt.Errorf("assertions[%d]: unknown step %q", index, a.Step)
		}
	case AssertSideEffect:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for side_effect", index)
		}
	case AssertEnginesAgree:
		if len(engines) < 2 {
			return fmt.Errorf("assertions[%d]: engines_agree needs at least two engines", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
