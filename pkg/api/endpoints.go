package api

import (
	"context"
	"log/slog"
	"math"

	"github.com/hazyhaar/namefinder/pkg/engine"
	"github.com/hazyhaar/namefinder/pkg/finder"
	"github.com/hazyhaar/namefinder/pkg/kit"
)

// Shared request/response types used by both HTTP and MCP transports.

type normalizeReq struct {
	Name string
}

type normalizeResponse struct {
	Name       string `json:"name"`
	Normalized string `json:"normalized"`
}

type findPersonReq struct {
	Name      string
	Threshold float64
}

type columnsReq struct {
	Path string
}

// columnsResponse suggests the first two columns as the name columns.
type columnsResponse struct {
	Columns          []string `json:"columns"`
	FirstNameColumn  string   `json:"first_name_column"`
	FamilyNameColumn string   `json:"family_name_column"`
}

type compareReq struct {
	Path             string
	FirstNameColumn  string
	FamilyNameColumn string
	Threshold        float64
}

type matchesResponse struct {
	Count   int      `json:"count"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// endpoints are the four operations, each wrapped with logging and panic
// recovery.
type endpoints struct {
	normalize  kit.Endpoint
	findPerson kit.Endpoint
	columns    kit.Endpoint
	compare    kit.Endpoint
}

func newEndpoints(f *finder.Finder, opts Options) endpoints {
	wrap := func(name string, ep kit.Endpoint) kit.Endpoint {
		return kit.Chain(kit.Logging(opts.Logger, name), kit.Recover)(ep)
	}
	return endpoints{
		normalize:  wrap("normalize_name", normalizeEndpoint()),
		findPerson: wrap("find_person", findPersonEndpoint(f, opts.RoundScores)),
		columns:    wrap("get_columns", columnsEndpoint(f)),
		compare:    wrap("compare_names", compareEndpoint(f, opts.RoundScores)),
	}
}

func normalizeEndpoint() kit.Endpoint {
	return kit.Typed(func(_ context.Context, req *normalizeReq) (normalizeResponse, error) {
		return normalizeResponse{Name: req.Name, Normalized: finder.NormalizeName(req.Name)}, nil
	})
}

func findPersonEndpoint(f *finder.Finder, round int) kit.Endpoint {
	return kit.Typed(func(ctx context.Context, req *findPersonReq) (matchesResponse, error) {
		t, err := f.FindPerson(ctx, req.Name, req.Threshold, "")
		if err != nil {
			return matchesResponse{}, err
		}
		return matches(t, round), nil
	})
}

func columnsEndpoint(f *finder.Finder) kit.Endpoint {
	return kit.Typed(func(ctx context.Context, req *columnsReq) (columnsResponse, error) {
		cols, err := f.GetColumns(ctx, req.Path)
		if err != nil {
			return columnsResponse{}, err
		}
		return columnsResponse{Columns: cols, FirstNameColumn: cols[0], FamilyNameColumn: cols[1]}, nil
	})
}

func compareEndpoint(f *finder.Finder, round int) kit.Endpoint {
	return kit.Typed(func(ctx context.Context, req *compareReq) (matchesResponse, error) {
		first, family := req.FirstNameColumn, req.FamilyNameColumn
		if first == "" || family == "" {
			cols, err := f.GetColumns(ctx, req.Path)
			if err != nil {
				return matchesResponse{}, err
			}
			if first == "" {
				first = cols[0]
			}
			if family == "" {
				family = cols[1]
			}
		}
		t, err := f.CompareNames(ctx, req.Path, first, family, req.Threshold, "")
		if err != nil {
			return matchesResponse{}, err
		}
		return matches(t, round), nil
	})
}

// matches converts a result table, rounding the Jaro-Winkler score to round
// decimals. A negative round keeps full precision.
func matches(t *engine.Table, round int) matchesResponse {
	resp := matchesResponse{Count: t.Len(), Columns: t.Columns, Rows: t.Rows}
	if round < 0 {
		return resp
	}
	j := t.Index(finder.ColJaroWinkler)
	if j < 0 {
		return resp
	}
	scale := math.Pow(10, float64(round))
	resp.Rows = make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		row := append([]any(nil), r...)
		if v, ok := row[j].(float64); ok {
			row[j] = math.Round(v*scale) / scale
		}
		resp.Rows[i] = row
	}
	return resp
}

// Options configures the HTTP and MCP transports.
type Options struct {
	// UploadDir holds spooled uploads. Empty means the OS temp dir.
	UploadDir string
	// MaxUploadBytes caps multipart request bodies.
	MaxUploadBytes int64
	// RoundScores is the number of decimals kept in Jaro-Winkler scores; -1 disables rounding.
	RoundScores int
	// DefaultThreshold applies when a request omits the threshold. Zero is
	// a valid threshold and is used as given.
	DefaultThreshold float64
	Logger           *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 64 << 20
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
