package engine

import (
	"database/sql/driver"
	"fmt"
	"strconv"

	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"
	"modernc.org/sqlite"

	"github.com/hazyhaar/namefinder/pkg/names"
)

// SQL scalar functions available to every template.
func init() {
	funcs := []struct {
		name  string
		nArgs int32
		fn    func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error)
	}{
		{"jaro_winkler_similarity", 2, func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return JaroWinkler(text(args[0]), text(args[1])), nil
		}},
		{"levenshtein", 2, func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return int64(Levenshtein(text(args[0]), text(args[1]))), nil
		}},
		{"normalize_name", 1, func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return names.Normalize(text(args[0])), nil
		}},
	}
	for _, f := range funcs {
		if err := sqlite.RegisterDeterministicScalarFunction(f.name, f.nArgs, f.fn); err != nil {
			panic(fmt.Sprintf("engine: register %s: %v", f.name, err))
		}
	}
}

// Winkler prefix bonus: applied when the Jaro score is above winklerBoost,
// over at most winklerPrefix leading bytes.
const (
	winklerBoost  = 0.7
	winklerPrefix = 4
)

// JaroWinkler returns the Jaro-Winkler similarity of a and b in [0,1],
// computed over bytes in float64. Identical non-empty strings score 1; an
// empty side always scores 0.
func JaroWinkler(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return smetrics.JaroWinkler(a, b, winklerBoost, winklerPrefix)
}

// Levenshtein returns the edit distance between a and b, counted in runes.
func Levenshtein(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// text renders a SQL value as a string; NULL becomes "".
func text(v driver.Value) string {
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
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
