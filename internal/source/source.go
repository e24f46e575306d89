package source

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/traverse/internal/traversal"
)

//go:embed schema.cue
var schemaSource string

// Traversal is one named traversal decoded from a source file.
type Traversal struct {
	Name        string
	Description string
	// Engine is EngineUnset when the source leaves the choice to configuration.
	Engine traversal.EngineKind
	Pos    token.Pos

	steps []stepSpec
}

// Len returns the number of root steps.
func (t *Traversal) Len() int { return len(t.steps) }

// Build returns a fresh chain for the traversal. Each call builds new
// steps, so the result can be compiled independently of earlier builds.
func (t *Traversal) Build() (*traversal.Chain, error) {
	b, err := builderFor(t.steps)
	if err != nil {
		return nil, err
	}
	c, err := b.Build()
	if err != nil {
		return nil, &SourceError{Field: "traversal." + t.Name, Message: err.Error(), Pos: t.Pos}
	}
	return c, nil
}

// SourceError reports a malformed traversal source.
type SourceError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *SourceError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Parse decodes every traversal declared in a CUE document, in declaration order.
func Parse(filename string, data []byte) ([]*Traversal, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile traversal schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	v = schema.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	root := v.LookupPath(cue.ParsePath("traversal"))
	if !root.Exists() {
		return nil, nil
	}
	iter, err := root.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []*Traversal
	for iter.Next() {
		t, err := decodeTraversal(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// ParseTraversal decodes a single traversal body, as carried by the
// traversal.source configuration key: {steps: [...]}.
func ParseTraversal(name, text string) (*Traversal, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile traversal schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Traversal"))

	v := ctx.CompileString(text, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	v = def.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	return decodeTraversal(name, v)
}

// LoadFile parses one .cue file.
func LoadFile(path string) ([]*Traversal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, data)
}

// LoadDir parses every .cue file below dir in lexical path order.
// Traversal names must be unique across files.
func LoadDir(dir string) ([]*Traversal, error) {
	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}
	seen := map[string]token.Pos{}
	var out []*Traversal
	for _, f := range files {
		ts, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		for _, t := range ts {
			if prev, dup := seen[t.Name]; dup {
				return nil, &SourceError{
					Field:   "traversal." + t.Name,
					Message: fmt.Sprintf("duplicate traversal, first declared at %s", prev),
					Pos:     t.Pos,
				}
			}
			seen[t.Name] = t.Pos
			out = append(out, t)
		}
	}
	return out, nil
}

// FindCUEFiles walks dir and returns all .cue file paths, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

func decodeTraversal(name string, v cue.Value) (*Traversal, error) {
	t := &Traversal{Name: name, Pos: v.Pos()}
	if d := v.LookupPath(cue.ParsePath("description")); d.Exists() {
		s, err := d.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		t.Description = s
	}
	if e := v.LookupPath(cue.ParsePath("engine")); e.Exists() {
		s, err := e.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		kind, err := traversal.ParseEngineKind(s)
		if err != nil {
			return nil, &SourceError{Field: "traversal." + name + ".engine", Message: err.Error(), Pos: e.Pos()}
		}
		t.Engine = kind
	}
	steps, err := decodeSteps(v.LookupPath(cue.ParsePath("steps")), "traversal."+name+".steps")
	if err != nil {
		return nil, err
	}
	t.steps = steps
	return t, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &SourceError{Field: "cue", Message: err.Error()}
	}
	first := errs[0]
	se := &SourceError{Field: "cue", Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		se.Pos = positions[0]
	}
	return se
}
