package engine

// Table is a query result. Rows is never nil, so an empty result encodes as
// {"columns": [...], "rows": []}.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the value of column name in row i, or nil when the column
// does not exist.
func (t *Table) Value(i int, name string) any {
	j := t.Index(name)
	if j < 0 {
		return nil
	}
	return t.Rows[i][j]
}

// Records returns one map per row keyed by column name.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, len(t.Rows))
	for i, r := range t.Rows {
		m := make(map[string]any, len(t.Columns))
		for j, c := range t.Columns {
			m[c] = r[j]
		}
		out[i] = m
	}
	return out
}
