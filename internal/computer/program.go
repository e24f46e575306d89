package computer

import (
	"context"

	"github.com/roach88/traverse/internal/graph"
)

// VertexProgram is the per-vertex computation of a job.
//
// Implementations are shared by every partition goroutine, so Execute must
// not mutate program fields. Per-vertex state belongs in Vertex.State.
type VertexProgram interface {
	// Setup runs once before superstep 0.
	Setup(mem Memory) error

	// Execute runs for every active vertex in every superstep. A halted
	// vertex becomes active again when it receives a message.
	Execute(ctx context.Context, v *Vertex, m Messenger, mem Memory) error

	// Terminate is asked after every barrier. Returning true ends the job
	// even if vertices are still active.
	Terminate(mem Memory) bool
}

// Master is implemented by programs with a global step between supersteps.
// It runs after the barrier, before Terminate is asked.
type Master interface {
	Master(superstep int, mem Memory) error
}

// Finisher is implemented by programs that post-process memory once the
// job has halted.
type Finisher interface {
	Finish(ctx context.Context, g graph.Graph, mem Memory) error
}

// Vertex is one vertex as seen by its program instance.
type Vertex struct {
	graph.Vertex

	// State is kept across supersteps and is private to this vertex.
	State any

	g      graph.Graph
	halted bool
}

// VoteToHalt marks the vertex inactive until it receives a message.
func (v *Vertex) VoteToHalt() { v.halted = true }

// Halted reports whether the vertex has voted to halt.
func (v *Vertex) Halted() bool { return v.halted }

// Graph gives read access to the graph around the vertex.
func (v *Vertex) Graph() graph.Graph { return v.g }

// Message is a payload sent from one vertex to another.
type Message struct {
	From    int64
	To      int64
	Payload any
}

// Messenger is the mailbox of one vertex for one superstep.
type Messenger interface {
	// Incoming returns the messages delivered at the last barrier, ordered
	// by sender id and then by send order.
	Incoming() []Message

	// Send queues a message for delivery at the next barrier.
	Send(to int64, payload any)
}

type mailbox struct {
	from int64
	in   []Message
	out  *[]Message
}

func (m *mailbox) Incoming() []Message { return m.in }

func (m *mailbox) Send(to int64, payload any) {
	*m.out = append(*m.out, Message{From: m.from, To: to, Payload: payload})
}
