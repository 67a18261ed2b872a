// CLAUDE:SUMMARY Named SQL templates rendered with quoted identifiers and bound parameters.
package query

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"text/template"
)

// Template identifiers shipped with the package.
const (
	FindPerson   = "find_person"
	CompareNames = "compare_names"
)

const templateExt = ".sql.tmpl"

// RowColumn is the ordinal column the executor adds to every staged table.
// It numbers rows from 1 in source order; templates join and sort on it with
// {{row}} and never see it through {{columns}}.
const RowColumn = "__row"

// ColumnsParam is the render parameter holding the column names of every
// staged table, keyed by table name.
const ColumnsParam = "Columns"

var (
	// ErrTemplateNotFound is returned when no template has the requested id.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrTemplateRender is returned when a template fails to render,
	// typically because a required parameter is missing.
	ErrTemplateRender = errors.New("template render failed")
)

//go:embed templates/*.sql.tmpl
var builtin embed.FS

// Query is a rendered statement. Caller-supplied values live in Args and are
// bound by the driver; SQL only contains placeholders and quoted identifiers.
type Query struct {
	SQL  string
	Args []any
}

// Set holds parsed templates keyed by id.
type Set struct {
	sources map[string]string
}

// Builtin returns the templates embedded in the binary.
func Builtin() *Set {
	s, err := Load(builtin, "templates")
	if err != nil {
		panic(fmt.Sprintf("query: embedded templates: %v", err))
	}
	return s
}

// Load reads every *.sql.tmpl file from dir in fsys. The template id is the
// file name without the extension.
func Load(fsys fs.FS, dir string) (*Set, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read template dir %s: %w", dir, err)
	}
	s := &Set{sources: make(map[string]string)}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), templateExt) {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", e.Name(), err)
		}
		id := strings.TrimSuffix(e.Name(), templateExt)
		// Parse once up front so syntax errors surface at load time.
		if _, err := template.New(id).Funcs(stubFuncs).Parse(string(data)); err != nil {
			return nil, fmt.Errorf("parse template %s: %w", id, err)
		}
		s.sources[id] = string(data)
	}
	return s, nil
}

// IDs returns the known template ids in sorted order.
func (s *Set) IDs() []string {
	ids := make([]string, 0, len(s.sources))
	for id := range s.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Has reports whether a template with the given id exists.
func (s *Set) Has(id string) bool {
	_, ok := s.sources[id]
	return ok
}

// Render produces the statement for template id with params.
func (s *Set) Render(id string, params map[string]any) (Query, error) {
	src, ok := s.sources[id]
	if !ok {
		return Query{}, fmt.Errorf("%w: %q", ErrTemplateNotFound, id)
	}

	var args []any
	funcs := template.FuncMap{
		"ident":   Ident,
		"row":     row,
		"columns": Columns,
		"bind": func(v any) string {
			args = append(args, v)
			return "?"
		},
	}
	tmpl, err := template.New(id).Funcs(funcs).Option("missingkey=error").Parse(src)
	if err != nil {
		return Query{}, fmt.Errorf("%w: %s: %w", ErrTemplateRender, id, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return Query{}, fmt.Errorf("%w: %s: %w", ErrTemplateRender, id, err)
	}
	return Query{SQL: buf.String(), Args: args}, nil
}

// Ident quotes an SQL identifier, doubling embedded quotes.
func Ident(v any) (string, error) {
	name, ok := v.(string)
	if !ok || name == "" {
		return "", fmt.Errorf("identifier must be a non-empty string, got %v", v)
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`, nil
}

// Columns renders a select list of names qualified by alias, each keeping
// its own name in the result: r."id" AS "id", r."city" AS "city".
// An empty alias leaves the names unqualified.
func Columns(alias string, names []string) (string, error) {
	if len(names) == 0 {
		return "", errors.New("empty column list")
	}
	parts := make([]string, len(names))
	for i, n := range names {
		q, err := Ident(n)
		if err != nil {
			return "", err
		}
		if alias == "" {
			parts[i] = q
			continue
		}
		parts[i] = alias + "." + q + " AS " + q
	}
	return strings.Join(parts, ", "), nil
}

func row() string {
	q, _ := Ident(RowColumn)
	return q
}

var stubFuncs = template.FuncMap{
	"ident":   Ident,
	"row":     row,
	"columns": Columns,
	"bind":    func(any) string { return "?" },
}
