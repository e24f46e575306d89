package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/traverse/internal/graph"
)

// Graph returns the store as a graph.Graph / graph.Writer.
func (s *Store) Graph() *Graph {
	return &Graph{db: s.db}
}

// Graph is the property graph view of a Store.
type Graph struct {
	db *sql.DB
}

var (
	_ graph.Graph  = (*Graph)(nil)
	_ graph.Writer = (*Graph)(nil)
)

// AddVertex inserts a vertex. A duplicate id returns graph.ErrDuplicateID.
func (g *Graph) AddVertex(ctx context.Context, v graph.Vertex) error {
	props, err := marshalProperties(v.Properties)
	if err != nil {
		return fmt.Errorf("write vertex %d: %w", v.ID, err)
	}
	_, err = g.db.ExecContext(ctx, `
		INSERT INTO vertices (id, label, properties)
		VALUES (?, ?, ?)
	`, v.ID, v.Label, props)
	if err != nil {
		return fmt.Errorf("write vertex %d: %w", v.ID, classify(err))
	}
	return nil
}

// AddEdge inserts an edge. Both endpoints must already exist.
func (g *Graph) AddEdge(ctx context.Context, e graph.Edge) error {
	props, err := marshalProperties(e.Properties)
	if err != nil {
		return fmt.Errorf("write edge %d: %w", e.ID, err)
	}
	_, err = g.db.ExecContext(ctx, `
		INSERT INTO edges (id, label, out_v, in_v, properties)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID, e.Label, e.OutV, e.InV, props)
	if err != nil {
		return fmt.Errorf("write edge %d: %w", e.ID, classify(err))
	}
	return nil
}

// classify maps SQLite constraint violations onto the graph package errors.
func classify(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code != sqlite3.ErrConstraint {
		return err
	}
	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique:
		return fmt.Errorf("%w: %v", graph.ErrDuplicateID, err)
	case sqlite3.ErrConstraintForeignKey:
		return fmt.Errorf("%w: %v", graph.ErrMissingVertex, err)
	}
	return err
}

// Vertices implements graph.Graph. Results are ordered by id ASC.
func (g *Graph) Vertices(ctx context.Context, ids ...int64) ([]graph.Vertex, error) {
	query := `SELECT id, label, properties FROM vertices`
	args := make([]any, len(ids))
	if len(ids) > 0 {
		for i, id := range ids {
			args[i] = id
		}
		query += ` WHERE id IN (` + placeholders(len(ids)) + `)`
	}
	query += ` ORDER BY id ASC`

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vertices: %w", err)
	}
	defer rows.Close()

	vertices := []graph.Vertex{}
	for rows.Next() {
		var (
			v     graph.Vertex
			props string
		)
		if err := rows.Scan(&v.ID, &v.Label, &props); err != nil {
			return nil, fmt.Errorf("scan vertex: %w", err)
		}
		if v.Properties, err = unmarshalProperties(props); err != nil {
			return nil, fmt.Errorf("vertex %d: %w", v.ID, err)
		}
		vertices = append(vertices, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vertices: %w", err)
	}
	return vertices, nil
}

// Edges implements graph.Graph. Each direction is ordered by id ASC; for
// graph.DirBoth outgoing edges come first.
func (g *Graph) Edges(ctx context.Context, vertex int64, dir graph.Direction, labels ...string) ([]graph.Edge, error) {
	switch dir {
	case graph.DirOut:
		return g.edges(ctx, "out_v", vertex, labels)
	case graph.DirIn:
		return g.edges(ctx, "in_v", vertex, labels)
	case graph.DirBoth:
		out, err := g.edges(ctx, "out_v", vertex, labels)
		if err != nil {
			return nil, err
		}
		in, err := g.edges(ctx, "in_v", vertex, labels)
		if err != nil {
			return nil, err
		}
		return append(out, in...), nil
	}
	return nil, fmt.Errorf("invalid direction %s", dir)
}

// edges reads one direction. column is a fixed identifier, never user input.
func (g *Graph) edges(ctx context.Context, column string, vertex int64, labels []string) ([]graph.Edge, error) {
	query := `SELECT id, label, out_v, in_v, properties FROM edges WHERE ` + column + ` = ?`
	args := []any{vertex}
	if len(labels) > 0 {
		query += ` AND label IN (` + placeholders(len(labels)) + `)`
		for _, l := range labels {
			args = append(args, l)
		}
	}
	query += ` ORDER BY id ASC`

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	edges := []graph.Edge{}
	for rows.Next() {
		var (
			e     graph.Edge
			props string
		)
		if err := rows.Scan(&e.ID, &e.Label, &e.OutV, &e.InV, &props); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		if e.Properties, err = unmarshalProperties(props); err != nil {
			return nil, fmt.Errorf("edge %d: %w", e.ID, err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}
	return edges, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
