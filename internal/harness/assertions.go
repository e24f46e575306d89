package harness

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/traverse/internal/traversal"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Engine   string // Engine the failing plan ran on, empty for cross-engine checks
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Plans    []*Plan
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	if e.Engine != "" {
		fmt.Fprintf(&buf, "Assertion failed: %s (%s)\n", e.Type, e.Engine)
	} else {
		fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	}
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nPlans:\n")
	for _, p := range e.Plans {
		fmt.Fprintf(&buf, "  [%s] %s -> %v\n", p.Engine, p.Compiled, p.Results)
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion against the result's plans and
// returns the failure messages. An empty slice means all assertions passed.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %s", i, err.Error()))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	if a.Type == AssertEnginesAgree {
		return assertEnginesAgree(result.Plans)
	}

	plans, err := selectPlans(result, a.Engine)
	if err != nil {
		return err
	}
	for _, p := range plans {
		var err error
		switch a.Type {
		case AssertCompiled:
			err = assertCompiled(p, a)
		case AssertResults:
			err = assertResults(p, a)
		case AssertResultCount:
			err = assertResultCount(p, a)
		case AssertStepPresent:
			err = assertStep(p, a, true)
		case AssertStepAbsent:
			err = assertStep(p, a, false)
		case AssertSideEffect:
			err = assertSideEffect(p, a)
		default:
			return fmt.Errorf("unknown assertion type: %s", a.Type)
		}
		if err != nil {
			var ae *AssertionError
			if errors.As(err, &ae) {
				ae.Plans = result.Plans
			}
			return err
		}
	}
	return nil
}

func selectPlans(result *Result, engine string) ([]*Plan, error) {
	if engine == "" {
		return result.Plans, nil
	}
	kind, err := traversal.ParseEngineKind(engine)
	if err != nil {
		return nil, err
	}
	p := result.Plan(kind)
	if p == nil {
		return nil, fmt.Errorf("no plan for engine %s", kind)
	}
	return []*Plan{p}, nil
}

// assertCompiled checks the rendered compiled chain.
func assertCompiled(p *Plan, a Assertion) error {
	if p.Compiled == a.Expect {
		return nil
	}
	return &AssertionError{
		Type:     AssertCompiled,
		Engine:   p.Engine.String(),
		Expected: a.Expect,
		Actual:   p.Compiled,
	}
}

// assertResults checks the rendered results, as a multiset unless ordered.
func assertResults(p *Plan, a Assertion) error {
	want, got := a.Values, p.Results
	if !a.Ordered {
		want, got = sorted(want), sorted(got)
	}
	if slices.Equal(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     AssertResults,
		Engine:   p.Engine.String(),
		Expected: fmt.Sprintf("%v", a.Values),
		Actual:   fmt.Sprintf("%v", p.Results),
	}
}

// assertResultCount checks the number of results.
func assertResultCount(p *Plan, a Assertion) error {
	if len(p.Results) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertResultCount,
		Engine:   p.Engine.String(),
		Expected: fmt.Sprintf("%d results", a.Count),
		Actual:   fmt.Sprintf("%d results", len(p.Results)),
	}
}

// assertStep checks whether a step kind occurs anywhere in the compiled chain tree.
func assertStep(p *Plan, a Assertion, present bool) error {
	kind, _ := traversal.ParseKind(a.Step)
	found := false
	if p.chain != nil {
		p.chain.Walk(func(s *traversal.Step) bool {
			found = s.Kind() == kind
			return !found
		})
	}
	if found == present {
		return nil
	}
	expected, actual := "present", "absent"
	if !present {
		expected, actual = actual, expected
	}
	return &AssertionError{
		Type:     a.Type,
		Engine:   p.Engine.String(),
		Expected: fmt.Sprintf("%s step %s", a.Step, expected),
		Actual:   fmt.Sprintf("%s step %s in %s", a.Step, actual, p.Compiled),
	}
}

// assertSideEffect checks what a store step collected, as a multiset.
func assertSideEffect(p *Plan, a Assertion) error {
	got := p.SideEffects[a.Key]
	if slices.Equal(sorted(a.Values), sorted(got)) {
		return nil
	}
	return &AssertionError{
		Type:     AssertSideEffect,
		Engine:   p.Engine.String(),
		Expected: fmt.Sprintf("%s = %v", a.Key, a.Values),
		Actual:   fmt.Sprintf("%s = %v", a.Key, got),
	}
}

// assertEnginesAgree checks that every plan produced the same multiset of results.
func assertEnginesAgree(plans []*Plan) error {
	if len(plans) < 2 {
		return nil
	}
	first := sorted(plans[0].Results)
	for _, p := range plans[1:] {
		if !slices.Equal(first, sorted(p.Results)) {
			return &AssertionError{
				Type:     AssertEnginesAgree,
				Expected: fmt.Sprintf("%s results %v", plans[0].Engine, plans[0].Results),
				Actual:   fmt.Sprintf("%s results %v", p.Engine, p.Results),
				Plans:    plans,
			}
		}
	}
	return nil
}

func sorted(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	if out == nil {
		out = []string{}
	}
	return out
}
