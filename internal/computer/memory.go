package computer

import (
	"maps"
	"slices"
)

// Memory is the job-wide aggregation space.
//
// Values written during a superstep become visible after the barrier, so
// every vertex of a superstep reads the same snapshot. Writes from
// different partitions are applied in partition order, which makes the
// aggregated lists deterministic for a fixed partitioning.
type Memory interface {
	// Superstep returns the current superstep, starting at 0.
	Superstep() int

	// Get returns the values aggregated under key.
	Get(key string) []any

	// Add appends value to key.
	Add(key string, value any)

	// Set replaces the values under key.
	Set(key string, values ...any)
}

type memOp struct {
	key     string
	values  []any
	replace bool
}

// sharedMemory is the snapshot every partition reads. It is written only
// between supersteps, by Setup, the barrier and the master hook.
type sharedMemory struct {
	superstep int
	values    map[string][]any
}

func newSharedMemory() *sharedMemory {
	return &sharedMemory{values: map[string][]any{}}
}

func (m *sharedMemory) Superstep() int { return m.superstep }

func (m *sharedMemory) Get(key string) []any { return slices.Clone(m.values[key]) }

func (m *sharedMemory) Add(key string, value any) {
	m.values[key] = append(m.values[key], value)
}

func (m *sharedMemory) Set(key string, values ...any) {
	m.values[key] = slices.Clone(values)
}

func (m *sharedMemory) apply(ops []memOp) {
	for _, op := range ops {
		if op.replace {
			m.Set(op.key, op.values...)
			continue
		}
		m.values[op.key] = append(m.values[op.key], op.values...)
	}
}

func (m *sharedMemory) snapshot() map[string][]any {
	out := make(map[string][]any, len(m.values))
	for k, v := range maps.All(m.values) {
		out[k] = slices.Clone(v)
	}
	return out
}

// partitionMemory reads the shared snapshot and buffers writes until the barrier.
type partitionMemory struct {
	shared *sharedMemory
	ops    []memOp
}

func (m *partitionMemory) Superstep() int { return m.shared.superstep }

func (m *partitionMemory) Get(key string) []any { return m.shared.Get(key) }

func (m *partitionMemory) Add(key string, value any) {
	m.ops = append(m.ops, memOp{key: key, values: []any{value}})
}

func (m *partitionMemory) Set(key string, values ...any) {
	m.ops = append(m.ops, memOp{key: key, values: slices.Clone(values), replace: true})
}
