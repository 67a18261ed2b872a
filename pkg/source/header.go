package source

import (
	"fmt"
	"strings"
)

// headerSchema cleans raw header cells: blank cells become "Column N" and
// repeated names (compared case-insensitively, as SQL does) get a numeric
// suffix so every column stays addressable.
func headerSchema(cells []string, typ string) Schema {
	used := make(map[string]bool, len(cells))
	out := make(Schema, len(cells))
	for i, v := range cells {
		base := strings.TrimSpace(v)
		if base == "" {
			base = fmt.Sprintf("Column %d", i+1)
		}
		name := base
		for n := 2; used[strings.ToLower(name)]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		used[strings.ToLower(name)] = true
		out[i] = Column{Name: name, Type: typ}
	}
	return out
}

// fitRow pads or truncates cells to width, turning empty cells into NULLs.
func fitRow(cells []string, width int) []any {
	row := make([]any, width)
	for i := 0; i < width && i < len(cells); i++ {
		if cells[i] != "" {
			row[i] = cells[i]
		}
	}
	return row
}
