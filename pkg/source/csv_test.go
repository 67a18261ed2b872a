package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

func TestCSV_Schema(t *testing.T) {
	path := writeFile(t, "people.csv", "first_name,family_name,phone\nJohn,Doe,123\n")
	schema, err := (&CSV{Path: path}).Schema(context.Background())
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	if !equalStrings(schema.Names(), []string{"first_name", "family_name", "phone"}) {
		t.Errorf("Names = %v", schema.Names())
	}
	for _, c := range schema {
		if c.Type != TypeText {
			t.Errorf("column %s type = %s, want TEXT", c.Name, c.Type)
		}
	}
}

func TestCSV_SchemaReadsHeaderOnly(t *testing.T) {
	var b strings.Builder
	b.WriteString("first_name,family_name,phone\n")
	for i := 0; b.Len() < 1<<20; i++ {
		fmt.Fprintf(&b, "first%d,family%d,%010d\n", i, i, i)
	}
	data := b.String()

	cr := &countingReader{r: strings.NewReader(data)}
	schema, err := ReadCSVSchema(cr)
	if err != nil {
		t.Fatalf("ReadCSVSchema: %v", err)
	}
	if !equalStrings(schema.Names(), []string{"first_name", "family_name", "phone"}) {
		t.Errorf("Names = %v", schema.Names())
	}
	if cr.n > 64<<10 {
		t.Errorf("read %d of %d bytes for the header", cr.n, len(data))
	}

	// The file path goes through the same reader.
	path := writeFile(t, "big.csv", data)
	if got, err := (&CSV{Path: path}).Schema(context.Background()); err != nil || !equalStrings(got.Names(), schema.Names()) {
		t.Errorf("Schema = %v, %v", got, err)
	}
}

func TestCSV_HeaderCleanup(t *testing.T) {
	path := writeFile(t, "h.csv", "\xef\xbb\xbfname, ,Name,name\n")
	schema, err := (&CSV{Path: path}).Schema(context.Background())
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	want := []string{"name", "Column 2", "Name_2", "name_3"}
	if !equalStrings(schema.Names(), want) {
		t.Errorf("Names = %v, want %v", schema.Names(), want)
	}
}

func TestCSV_Empty(t *testing.T) {
	path := writeFile(t, "empty.csv", "")
	_, err := (&CSV{Path: path}).Schema(context.Background())
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("err = %v, want ErrSchema", err)
	}
}

func TestCSV_Scan(t *testing.T) {
	path := writeFile(t, "people.csv", "first_name,family_name,phone\nJohn,Doe,123\nJane,,\nAdam\n")
	rows := collect(t, &CSV{Path: path})
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0][0] != "John" || rows[0][1] != "Doe" || rows[0][2] != "123" {
		t.Errorf("row 0 = %v", rows[0])
	}
	if rows[1][1] != nil || rows[1][2] != nil {
		t.Errorf("empty cells should be NULL, got %v", rows[1])
	}
	if len(rows[2]) != 3 || rows[2][0] != "Adam" || rows[2][1] != nil {
		t.Errorf("short row not padded: %v", rows[2])
	}
}

func TestCSV_Latin1(t *testing.T) {
	raw, err := charmap.ISO8859_1.NewEncoder().String("first_name,family_name,ville\n" +
		"François,Lefèvre,Besançon\n" +
		"Aurélie,Bénard,Orléans\n" +
		"Jérôme,Garçon,Défense\n" +
		"Hélène,Réault,Déville\n" +
		"Cécile,Français,Périgueux\n")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := writeFile(t, "latin1.csv", raw)
	rows := collect(t, &CSV{Path: path})
	if len(rows) != 5 {
		t.Fatalf("rows = %d, want 5", len(rows))
	}
	if rows[0][0] != "François" || rows[1][0] != "Aurélie" {
		t.Errorf("rows not decoded to UTF-8: %v, %v", rows[0], rows[1])
	}
}

func TestCSV_ScanStopsOnCallbackError(t *testing.T) {
	path := writeFile(t, "p.csv", "a\n1\n2\n3\n")
	stop := errors.New("stop")
	n := 0
	err := (&CSV{Path: path}).Scan(context.Background(), func([]any) error {
		n++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("err = %v, want callback error", err)
	}
	if n != 1 {
		t.Errorf("callback ran %d times, want 1", n)
	}
}

func TestCSV_ScanCanceled(t *testing.T) {
	path := writeFile(t, "p.csv", "a\n1\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := (&CSV{Path: path}).Scan(ctx, func([]any) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestCSV_MissingFile(t *testing.T) {
	_, err := (&CSV{Path: "/nonexistent/file.csv"}).Schema(context.Background())
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("err = %v, want ErrFileNotFound", err)
	}
}
