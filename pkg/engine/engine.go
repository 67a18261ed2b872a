// CLAUDE:SUMMARY Similarity executor: stages sources into a private in-memory SQLite database and runs a rendered template.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/namefinder/pkg/query"
	"github.com/hazyhaar/namefinder/pkg/source"
)

var (
	// ErrDataSource is returned when a source cannot be staged. It wraps the
	// source error, so source sentinels still match.
	ErrDataSource = errors.New("data source error")
	// ErrQueryExecution is returned when the engine rejects the rendered query.
	ErrQueryExecution = errors.New("query execution failed")
)

// Executor runs templates from a query.Set. It holds no per-call state and is
// safe for concurrent use.
type Executor struct {
	templates *query.Set
	logger    *slog.Logger
}

// New returns an executor over templates. A nil set means query.Builtin().
func New(templates *query.Set, logger *slog.Logger) *Executor {
	if templates == nil {
		templates = query.Builtin()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{templates: templates, logger: logger}
}

// Templates returns the template set used by the executor.
func (e *Executor) Templates() *query.Set { return e.templates }

// Execute stages each source as a table named by its key, renders templateID
// with params and runs the query. Besides params, the template receives the
// staged column names under query.ColumnsParam. Either every source is staged
// and the query runs to completion, or an error is returned; results are
// never partial.
func (e *Executor) Execute(ctx context.Context, templateID string, params map[string]any, sources map[string]source.Source) (*Table, error) {
	start := time.Now()

	if !e.templates.Has(templateID) {
		return nil, fmt.Errorf("%w: %q", query.ErrTemplateNotFound, templateID)
	}

	staged, err := decodeAll(ctx, sources)
	if err != nil {
		return nil, err
	}

	q, err := e.templates.Render(templateID, withColumns(params, staged))
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}
	defer db.Close()
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}
	defer conn.Close()

	if err := stage(ctx, conn, staged); err != nil {
		return nil, err
	}

	t, err := run(ctx, conn, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrQueryExecution, templateID, err)
	}

	e.logger.Debug("query executed",
		"template", templateID,
		"sources", len(staged),
		"rows", t.Len(),
		"duration", time.Since(start),
	)
	return t, nil
}

// decoded is a source read fully into memory.
type decoded struct {
	name   string
	schema source.Schema
	rows   [][]any
}

// decodeAll reads every source concurrently. Results are sorted by name so
// staging order does not depend on goroutine scheduling.
func decodeAll(ctx context.Context, sources map[string]source.Source) ([]decoded, error) {
	out := make([]decoded, 0, len(sources))
	for name := range sources {
		out = append(out, decoded{name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })

	g, gctx := errgroup.WithContext(ctx)
	for i := range out {
		d := &out[i]
		src := sources[d.name]
		g.Go(func() error {
			schema, err := src.Schema(gctx)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrDataSource, d.name, err)
			}
			if len(schema) == 0 {
				return fmt.Errorf("%w: %s: %w: no columns", ErrDataSource, d.name, source.ErrSchema)
			}
			d.schema = schema
			err = src.Scan(gctx, func(row []any) error {
				cp := make([]any, len(row))
				copy(cp, row)
				d.rows = append(d.rows, cp)
				return nil
			})
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrDataSource, d.name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// withColumns copies params and adds the column names of every staged table.
func withColumns(params map[string]any, staged []decoded) map[string]any {
	out := make(map[string]any, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	cols := make(map[string][]string, len(staged))
	for _, d := range staged {
		cols[d.name] = d.schema.Names()
	}
	out[query.ColumnsParam] = cols
	return out
}

// stage creates one table per decoded source and loads its rows in a single
// transaction.
func stage(ctx context.Context, conn *sql.Conn, staged []decoded) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrDataSource, err)
	}
	defer tx.Rollback()

	for _, d := range staged {
		if err := stageTable(ctx, tx, d); err != nil {
			return fmt.Errorf("%w: stage %s: %w", ErrDataSource, d.name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrDataSource, err)
	}
	return nil
}

// stageTable creates the table with query.RowColumn as its integer primary
// key ahead of the source columns, then inserts the rows in source order so
// the ordinal counts from 1.
func stageTable(ctx context.Context, tx *sql.Tx, d decoded) error {
	table, err := query.Ident(d.name)
	if err != nil {
		return err
	}
	ordinal, _ := query.Ident(query.RowColumn)
	defs := []string{ordinal + " INTEGER PRIMARY KEY"}
	names := make([]string, len(d.schema))
	for i, c := range d.schema {
		if strings.EqualFold(c.Name, query.RowColumn) {
			return fmt.Errorf("%w: column name %q is reserved", source.ErrSchema, c.Name)
		}
		name, err := query.Ident(c.Name)
		if err != nil {
			return fmt.Errorf("column %d: %w", i+1, err)
		}
		names[i] = name
		defs = append(defs, name+" "+c.Type)
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return err
	}
	if len(d.rows) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(names, ", "), placeholders)
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, row := range d.rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return nil
}

func run(ctx context.Context, conn *sql.Conn, q query.Query) (*Table, error) {
	rows, err := conn.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	t := &Table{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = append([]byte(nil), b...)
			}
		}
		t.Rows = append(t.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return t, nil
}
