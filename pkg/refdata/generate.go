package refdata

import (
	"github.com/brianvoe/gofakeit/v7"
)

// Generate returns n fake people. The same seed always yields the same people.
func Generate(n int, seed uint64) []Person {
	f := gofakeit.New(seed)
	people := make([]Person, n)
	for i := range people {
		p := NewPerson(int64(i), f.FirstName(), f.LastName())
		p.Address = f.Street()
		p.City = f.City()
		p.Country = f.Country()
		p.Phone = f.Phone()
		p.Email = f.Email()
		people[i] = p
	}
	return people
}

// Trial is a row of a demonstration comparison file: names plus an unrelated
// extra column.
type Trial struct {
	FirstName  string `parquet:"first_name"`
	FamilyName string `parquet:"family_name"`
	Phone      string `parquet:"phone,optional"`
}

// TrialColumns lists the trial file columns in file order.
var TrialColumns = []string{"first_name", "family_name", "phone"}

func (t Trial) record() []string {
	return []string{t.FirstName, t.FamilyName, t.Phone}
}

// GenerateTrial returns n fake comparison rows. Use a different seed than the
// reference dataset so the two populations differ.
func GenerateTrial(n int, seed uint64) []Trial {
	f := gofakeit.New(seed)
	rows := make([]Trial, n)
	for i := range rows {
		rows[i] = Trial{FirstName: f.FirstName(), FamilyName: f.LastName(), Phone: f.Phone()}
	}
	return rows
}
