package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/traverse/internal/ir"
)

// Plan is a compiled chain cached under the fingerprint of its input.
type Plan struct {
	// Fingerprint is the input chain fingerprint (before compilation).
	Fingerprint string
	// Engine is the engine the chain was compiled for.
	Engine string
	// Source is the input chain in traversal notation.
	Source string
	// Compiled is the canonical encoding of the compiled chain.
	Compiled ir.IRArray
	// Rendered is the compiled chain in traversal notation.
	Rendered        string
	CompilerVersion string
	// Seq orders plans by insertion. Assigned by the store.
	Seq int64
}

// WritePlan records a compiled plan. Writing the same (fingerprint, engine)
// again with the same compiler version is a no-op: compilation is
// deterministic, so the first plan stands. A plan from another compiler
// version is replaced in place and keeps its seq.
func (s *Store) WritePlan(ctx context.Context, p Plan) error {
	data, err := ir.MarshalCanonical(p.Compiled)
	if err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plans
		(fingerprint, engine, source, compiled, rendered, compiler_version, seq)
		VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM plans))
		ON CONFLICT(fingerprint, engine) DO UPDATE SET
			source = excluded.source,
			compiled = excluded.compiled,
			rendered = excluded.rendered,
			compiler_version = excluded.compiler_version
		WHERE plans.compiler_version <> excluded.compiler_version
	`,
		p.Fingerprint,
		p.Engine,
		p.Source,
		string(data),
		p.Rendered,
		p.CompilerVersion,
	)
	if err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	return nil
}

// ReadPlan returns the plan for (fingerprint, engine). The boolean is false
// when no plan is cached.
func (s *Store) ReadPlan(ctx context.Context, fingerprint, engine string) (Plan, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, engine, source, compiled, rendered, compiler_version, seq
		FROM plans
		WHERE fingerprint = ? AND engine = ?
	`, fingerprint, engine)
	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Plan{}, false, nil
	}
	if err != nil {
		return Plan{}, false, err
	}
	return p, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(row scanner) (Plan, error) {
	var (
		p        Plan
		compiled string
	)
	err := row.Scan(&p.Fingerprint, &p.Engine, &p.Source, &compiled, &p.Rendered, &p.CompilerVersion, &p.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return Plan{}, err
	}
	if err != nil {
		return Plan{}, fmt.Errorf("scan plan: %w", err)
	}
	v, err := ir.UnmarshalIRValue([]byte(compiled))
	if err != nil {
		return Plan{}, fmt.Errorf("plan %s: %w", p.Fingerprint, err)
	}
	arr, ok := v.(ir.IRArray)
	if !ok {
		return Plan{}, fmt.Errorf("plan %s: compiled chain is %T, want array", p.Fingerprint, v)
	}
	p.Compiled = arr
	return p, nil
}
