package store

import (
	"fmt"

	"github.com/roach88/traverse/internal/ir"
)

// marshalProperties converts properties to canonical JSON TEXT for storage.
func marshalProperties(props ir.IRObject) (string, error) {
	if props == nil {
		props = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(props)
	if err != nil {
		return "", fmt.Errorf("marshal properties: %w", err)
	}
	return string(data), nil
}

// unmarshalProperties parses canonical JSON TEXT. Integers are decoded
// exactly, without a float64 round trip.
func unmarshalProperties(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal properties: %w", err)
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("unmarshal properties: expected object, got %T", v)
	}
	return obj, nil
}
