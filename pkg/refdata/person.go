// CLAUDE:SUMMARY Reference dataset records: Person with its precomputed comparison key, built from any tabular source.
package refdata

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hazyhaar/namefinder/pkg/names"
	"github.com/hazyhaar/namefinder/pkg/source"
)

// Person is one row of the reference dataset. NameForComparison always equals
// names.Key(FirstName, FamilyName).
type Person struct {
	ID                int64  `parquet:"id" json:"id"`
	FirstName         string `parquet:"first_name" json:"first_name"`
	FamilyName        string `parquet:"family_name" json:"family_name"`
	Address           string `parquet:"address,optional" json:"address,omitempty"`
	City              string `parquet:"city,optional" json:"city,omitempty"`
	Country           string `parquet:"country,optional" json:"country,omitempty"`
	Phone             string `parquet:"phone,optional" json:"phone,omitempty"`
	Email             string `parquet:"email,optional" json:"email,omitempty"`
	NameForComparison string `parquet:"name_for_comparison" json:"name_for_comparison"`
}

// Columns lists the reference dataset columns in file order.
var Columns = []string{
	"id", "first_name", "family_name", "address", "city",
	"country", "phone", "email", "name_for_comparison",
}

// NewPerson returns a Person with its comparison key filled in.
func NewPerson(id int64, first, family string) Person {
	return Person{
		ID:                id,
		FirstName:         first,
		FamilyName:        family,
		NameForComparison: names.Key(first, family),
	}
}

// record returns the person's values in Columns order.
func (p Person) record() []string {
	return []string{
		strconv.FormatInt(p.ID, 10), p.FirstName, p.FamilyName, p.Address, p.City,
		p.Country, p.Phone, p.Email, p.NameForComparison,
	}
}

// Build reads people from src. first_name and family_name are required; id
// defaults to the row number when the column is missing or not an integer.
// Any name_for_comparison in the input is ignored and recomputed.
func Build(ctx context.Context, src source.Source) ([]Person, error) {
	schema, err := src.Schema(ctx)
	if err != nil {
		return nil, err
	}
	for _, req := range []string{"first_name", "family_name"} {
		if !schema.Has(req) {
			return nil, fmt.Errorf("%w: missing required column %q", source.ErrSchema, req)
		}
	}

	idx := make(map[string]int, len(Columns))
	for _, c := range Columns {
		idx[c] = schema.Index(c)
	}
	get := func(row []any, col string) string {
		if i := idx[col]; i >= 0 {
			return cell(row[i])
		}
		return ""
	}

	var people []Person
	err = src.Scan(ctx, func(row []any) error {
		n := int64(len(people) + 1)
		id, err := strconv.ParseInt(get(row, "id"), 10, 64)
		if err != nil {
			id = n
		}
		p := NewPerson(id, get(row, "first_name"), get(row, "family_name"))
		p.Address = get(row, "address")
		p.City = get(row, "city")
		p.Country = get(row, "country")
		p.Phone = get(row, "phone")
		p.Email = get(row, "email")
		people = append(people, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return people, nil
}

// Source exposes people as an in-memory reference source with the same
// column types a Parquet reference file has.
func Source(people []Person) source.Source {
	schema := make(source.Schema, len(Columns))
	for i, c := range Columns {
		schema[i] = source.Column{Name: c, Type: source.TypeText}
	}
	schema[0].Type = source.TypeInteger

	rows := make([][]any, len(people))
	for i, p := range people {
		rec := p.record()
		row := make([]any, len(rec))
		row[0] = p.ID
		for j := 1; j < len(rec); j++ {
			if rec[j] != "" {
				row[j] = rec[j]
			}
		}
		rows[i] = row
	}
	return source.NewTable(schema, rows)
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
