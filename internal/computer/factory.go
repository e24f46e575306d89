package computer

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/traverse/internal/config"
)

// ProgramFactory builds a vertex program from configuration.
type ProgramFactory func(cfg config.Config) (VertexProgram, error)

// Programs maps program names to factories. Safe for concurrent use.
type Programs struct {
	mu        sync.RWMutex
	factories map[string]ProgramFactory
}

// NewPrograms creates an empty factory registry.
func NewPrograms() *Programs {
	return &Programs{factories: map[string]ProgramFactory{}}
}

// DefaultPrograms returns a registry holding the built-in programs.
func DefaultPrograms() *Programs {
	p := NewPrograms()
	if err := p.Register(TraversalProgramName, NewTraversalProgramFromConfig); err != nil {
		panic(err)
	}
	return p
}

// Register adds a factory. Names are unique.
func (p *Programs) Register(name string, f ProgramFactory) error {
	if name == "" || f == nil {
		return fmt.Errorf("computer: program needs a name and a factory")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.factories[name]; dup {
		return fmt.Errorf("computer: program %q already registered", name)
	}
	p.factories[name] = f
	return nil
}

// Names returns the registered program names, sorted.
func (p *Programs) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Sorted(maps.Keys(p.factories))
}

// New builds the program named by computer.program.
func (p *Programs) New(cfg config.Config) (string, VertexProgram, error) {
	name, ok := cfg.Get(config.KeyProgram)
	if !ok || name == "" {
		return "", nil, fmt.Errorf("%w: %s is not set", ErrUnknownProgram, config.KeyProgram)
	}
	p.mu.RLock()
	f, ok := p.factories[name]
	p.mu.RUnlock()
	if !ok {
		return name, nil, fmt.Errorf("%w: %q", ErrUnknownProgram, name)
	}
	prog, err := f(cfg)
	if err != nil {
		return name, nil, fmt.Errorf("build program %q: %w", name, err)
	}
	return name, prog, nil
}
