package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/traverse/internal/ir"
)

// PlanSnapshot captures the compiled plans of a scenario execution.
// It is serialized with canonical JSON for deterministic comparison.
type PlanSnapshot struct {
	ScenarioName string
	Traversal    string
	Plans        []*Plan
}

// toCanonical converts the snapshot to an IRObject for canonical JSON
// serialization. Results are sorted, since the computer engine's result
// order depends on partitioning.
func (s *PlanSnapshot) toCanonical() ir.IRObject {
	plans := make(ir.IRArray, len(s.Plans))
	for i, p := range s.Plans {
		obj := ir.IRObject{
			"engine":   ir.IRString(p.Engine.String()),
			"compiled": ir.IRString(p.Compiled),
			"results":  stringsToIR(sorted(p.Results)),
		}
		if len(p.SideEffects) > 0 {
			effects := make(ir.IRObject, len(p.SideEffects))
			for key, values := range p.SideEffects {
				effects[key] = stringsToIR(sorted(values))
			}
			obj["side_effects"] = effects
		}
		plans[i] = obj
	}
	return ir.IRObject{
		"scenario_name": ir.IRString(s.ScenarioName),
		"traversal":     ir.IRString(s.Traversal),
		"plans":         plans,
	}
}

// Marshal returns the canonical JSON of the snapshot.
func (s *PlanSnapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonical())
}

// RunWithGolden executes a scenario and compares its compiled plans
// against a golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can inspect assertion failures.
// Test failure (via goldie) occurs if the plans don't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, scenario.Traversal, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's plans against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName, traversalName string, result *Result) error {
	t.Helper()

	snapshot := PlanSnapshot{
		ScenarioName: scenarioName,
		Traversal:    traversalName,
		Plans:        result.Plans,
	}
	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}

func stringsToIR(ss []string) ir.IRArray {
	arr := make(ir.IRArray, len(ss))
	for i, s := range ss {
		arr[i] = ir.IRString(s)
	}
	return arr
}
