package traversal

import (
	"fmt"

	"github.com/roach88/traverse/internal/ir"
)

// Compare names the comparison a predicate performs.
type Compare int

const (
	CompareEq Compare = iota + 1
	CompareNeq
	CompareLt
	CompareLte
	CompareGt
	CompareGte
	CompareInside
	CompareOutside
	CompareWithin
	CompareWithout
)

var compareNames = map[Compare]string{
	CompareEq:      "eq",
	CompareNeq:     "neq",
	CompareLt:      "lt",
	CompareLte:     "lte",
	CompareGt:      "gt",
	CompareGte:     "gte",
	CompareInside:  "inside",
	CompareOutside: "outside",
	CompareWithin:  "within",
	CompareWithout: "without",
}

func (c Compare) String() string {
	if name, ok := compareNames[c]; ok {
		return name
	}
	return fmt.Sprintf("compare(%d)", int(c))
}

// ParseCompare resolves a comparison from its name ("eq", "within", ...).
func ParseCompare(name string) (Compare, bool) {
	for c, n := range compareNames {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

// P is a predicate: a comparison plus its operand.
//
// Range comparisons (inside, outside) carry a two-element IRArray;
// set comparisons (within, without) carry an IRArray of members.
type P struct {
	Compare Compare
	Value   ir.IRValue
}

// NewP builds a predicate from a comparison name and decoded operand.
func NewP(compare string, value any) (P, error) {
	c, ok := ParseCompare(compare)
	if !ok {
		return P{}, fmt.Errorf("unknown predicate %q", compare)
	}
	v, err := ir.FromAny(value)
	if err != nil {
		return P{}, fmt.Errorf("predicate %s: %w", compare, err)
	}
	switch c {
	case CompareInside, CompareOutside:
		arr, ok := v.(ir.IRArray)
		if !ok || len(arr) != 2 {
			return P{}, fmt.Errorf("predicate %s needs exactly two operands", compare)
		}
	case CompareWithin, CompareWithout:
		if _, ok := v.(ir.IRArray); !ok {
			v = ir.IRArray{v}
		}
	}
	return P{Compare: c, Value: v}, nil
}

// mustValue converts a Go literal to an IRValue, panicking on values the
// IR cannot represent. Predicate constructors are called with literals.
func mustValue(v any) ir.IRValue {
	iv, err := ir.FromAny(v)
	if err != nil {
		panic(fmt.Sprintf("traversal: %v", err))
	}
	return iv
}

func mustValues(vs []any) ir.IRArray {
	arr := make(ir.IRArray, len(vs))
	for i, v := range vs {
		arr[i] = mustValue(v)
	}
	return arr
}

// Eq matches values equal to v. The constructors below panic if an operand
// cannot be represented as an ir.IRValue (floats, nil).
func Eq(v any) P { return P{CompareEq, mustValue(v)} }

// Neq matches values not equal to v.
func Neq(v any) P { return P{CompareNeq, mustValue(v)} }

// Lt matches values less than v.
func Lt(v any) P { return P{CompareLt, mustValue(v)} }

// Lte matches values less than or equal to v.
func Lte(v any) P { return P{CompareLte, mustValue(v)} }

// Gt matches values greater than v.
func Gt(v any) P { return P{CompareGt, mustValue(v)} }

// Gte matches values greater than or equal to v.
func Gte(v any) P { return P{CompareGte, mustValue(v)} }

// Inside matches values strictly between low and high.
func Inside(low, high any) P { return P{CompareInside, mustValues([]any{low, high})} }

// Outside matches values strictly below low or strictly above high.
func Outside(low, high any) P { return P{CompareOutside, mustValues([]any{low, high})} }

// Within matches values equal to any member.
func Within(members ...any) P { return P{CompareWithin, mustValues(members)} }

// Without matches values equal to no member.
func Without(members ...any) P { return P{CompareWithout, mustValues(members)} }

// Test evaluates the predicate against v. Incomparable operands never match,
// except for neq and without which match anything they are not equal to.
func (p P) Test(v ir.IRValue) bool {
	switch p.Compare {
	case CompareEq:
		return ir.Equal(v, p.Value)
	case CompareNeq:
		return !ir.Equal(v, p.Value)
	case CompareLt:
		c, ok := ir.Compare(v, p.Value)
		return ok && c < 0
	case CompareLte:
		c, ok := ir.Compare(v, p.Value)
		return ok && c <= 0
	case CompareGt:
		c, ok := ir.Compare(v, p.Value)
		return ok && c > 0
	case CompareGte:
		c, ok := ir.Compare(v, p.Value)
		return ok && c >= 0
	case CompareInside, CompareOutside:
		arr, ok := p.Value.(ir.IRArray)
		if !ok || len(arr) != 2 {
			return false
		}
		lo, okLo := ir.Compare(v, arr[0])
		hi, okHi := ir.Compare(v, arr[1])
		if !okLo || !okHi {
			return false
		}
		if p.Compare == CompareInside {
			return lo > 0 && hi < 0
		}
		return lo < 0 || hi > 0
	case CompareWithin, CompareWithout:
		arr, _ := p.Value.(ir.IRArray)
		found := false
		for _, m := range arr {
			if ir.Equal(v, m) {
				found = true
				break
			}
		}
		return found == (p.Compare == CompareWithin)
	}
	return false
}

func (p P) String() string {
	return fmt.Sprintf("%s(%s)", p.Compare, ir.String(p.Value))
}

func (p P) encode() ir.IRObject {
	return ir.IRObject{
		"compare": ir.IRString(p.Compare.String()),
		"value":   p.Value,
	}
}
