package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/traverse/internal/traversal"
)

const testSource = `
traversal: sink: {
	steps: [
		{step: "V", ids: [2]},
		{step: "out"},
		{step: "count"},
		{step: "is", predicate: {compare: "eq", value: 0}},
	]
}
`

// writeScenario writes a source file and a scenario next to it.
func writeScenario(t *testing.T, scenario string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "traversals.cue"), []byte(testSource), 0644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenario), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: sink
description: "Count of a sink vertex"
source: traversals.cue
traversal: sink
engines: [computer]
workers: 3
assertions:
  - type: results
    values: ["0"]
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "sink", scenario.Name)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "traversals.cue"), scenario.Source)
	assert.Equal(t, []traversal.EngineKind{traversal.EngineComputer}, scenario.Engines)
	assert.Equal(t, 3, scenario.Workers)
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, []string{"0"}, scenario.Assertions[0].Values)
}

func TestLoadScenario_DefaultEngines(t *testing.T) {
	path := writeScenario(t, `
name: sink
description: "Count of a sink vertex"
source: traversals.cue
traversal: sink
assertions:
  - type: engines_agree
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Empty(t, scenario.Engines)
	assert.Equal(t,
		[]traversal.EngineKind{traversal.EngineStandard, traversal.EngineComputer},
		scenario.engines())
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: sink
description: "typo"
source: traversals.cue
traversal: sink
assertion:
  - type: engines_agree
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_UnknownEngine(t *testing.T) {
	path := writeScenario(t, `
name: sink
description: "bad engine"
source: traversals.cue
traversal: sink
engines: [olap]
assertions:
  - type: engines_agree
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown engine kind")
}

func TestValidateScenario(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "traversals.cue")
	require.NoError(t, os.WriteFile(src, []byte(testSource), 0644))

	valid := func() Scenario {
		return Scenario{
			Name:        "sink",
			Description: "Count of a sink vertex",
			Source:      src,
			Traversal:   "sink",
			Assertions:  []Assertion{{Type: AssertEnginesAgree}},
		}
	}

	tests := []struct {
		name   string
		mutate func(s *Scenario)
		errMsg string
	}{
		{"valid", func(*Scenario) {}, ""},
		{"missing name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"missing description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"missing source", func(s *Scenario) { s.Source = "" }, "source is required"},
		{"missing traversal", func(s *Scenario) { s.Traversal = "" }, "traversal is required"},
		{"no assertions", func(s *Scenario) { s.Assertions = nil }, "assertions list is required"},
		{"negative workers", func(s *Scenario) { s.Workers = -1 }, "workers must be non-negative"},
		{"source not found", func(s *Scenario) { s.Source = filepath.Join(dir, "nope.cue") }, "source file not found"},
		{"graph not found", func(s *Scenario) { s.Graph = filepath.Join(dir, "nope.yaml") }, "graph file not found"},
		{
			"duplicate engine",
			func(s *Scenario) {
				s.Engines = []traversal.EngineKind{traversal.EngineStandard, traversal.EngineStandard}
			},
			"listed twice",
		},
		{
			"agree needs two engines",
			func(s *Scenario) { s.Engines = []traversal.EngineKind{traversal.EngineStandard} },
			"engines_agree needs at least two engines",
		},
		{
			"engine not run",
			func(s *Scenario) {
				s.Engines = []traversal.EngineKind{traversal.EngineStandard}
				s.Assertions = []Assertion{{Type: AssertResultCount, Engine: "computer"}}
			},
			"engine computer is not run",
		},
		{
			"compiled without expect",
			func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertCompiled}} },
			"expect is required for compiled",
		},
		{
			"unknown step kind",
			func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertStepAbsent, Step: "repeat"}} },
			`unknown step "repeat"`,
		},
		{
			"side effect without key",
			func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertSideEffect}} },
			"key is required for side_effect",
		},
		{
			"unknown type",
			func(s *Scenario) { s.Assertions = []Assertion{{Type: "trace_order"}} },
			`unknown assertion type "trace_order"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			err := validateScenario(&s)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadScenarios_Testdata(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
	}
	assert.Equal(t, []string{
		"either_age",
		"labeled_friends",
		"lonely_people",
		"sink_count",
		"stored_friends",
	}, names)
}

func TestLoadScenarios_DuplicateName(t *testing.T) {
	path := writeScenario(t, `
name: sink
description: "first"
source: traversals.cue
traversal: sink
assertions:
  - type: engines_agree
`)
	dir := filepath.Dir(path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "again.yaml"), data, 0644))

	_, err = LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `scenario "sink" already defined`)
}
