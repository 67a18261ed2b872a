package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/namefinder/pkg/finder"
	"github.com/hazyhaar/namefinder/pkg/refdata"
)

func setupFinder(t *testing.T) *finder.Finder {
	t.Helper()
	people := []refdata.Person{
		refdata.NewPerson(1, "John", "Doe"),
		refdata.NewPerson(2, "Jane", "Smith"),
		refdata.NewPerson(3, "Adam", "Johnson"),
	}
	path := filepath.Join(t.TempDir(), "people.csv")
	if err := refdata.Write(path, people); err != nil {
		t.Fatalf("refdata.Write: %v", err)
	}
	return finder.New(finder.Config{ReferencePath: path}, nil)
}

func setupRouter(t *testing.T) http.Handler {
	t.Helper()
	return NewRouter(setupFinder(t), Options{UploadDir: t.TempDir(), RoundScores: 2})
}

func doJSON(t *testing.T, h http.Handler, req *http.Request, out any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
	return rec
}

func upload(t *testing.T, target, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestNormalize(t *testing.T) {
	h := setupRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/normalize", strings.NewReader(`{"name":"Jean-Paul  DUPONT"}`))
	var resp normalizeResponse
	rec := doJSON(t, h, req, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if resp.Normalized != "jean-paul-dupont" {
		t.Errorf("normalized = %q", resp.Normalized)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/normalize", strings.NewReader(`not json`))
	if rec := doJSON(t, h, req, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid body status = %d", rec.Code)
	}
}

func TestFindPerson(t *testing.T) {
	h := setupRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/persons?name="+url.QueryEscape("John Doe")+"&threshold=0.9", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	var resp matchesResponse
	rec := doJSON(t, h, req, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if rec.Header().Get(RequestIDHeader) != "req-42" {
		t.Errorf("request id not echoed: %q", rec.Header().Get(RequestIDHeader))
	}
	if resp.Count != 1 || len(resp.Rows) != 1 {
		t.Fatalf("count = %d rows = %v", resp.Count, resp.Rows)
	}
	idx := -1
	for i, c := range resp.Columns {
		if c == finder.ColJaroWinkler {
			idx = i
		}
	}
	if idx < 0 || resp.Rows[0][idx] != 1.0 {
		t.Errorf("score column missing or wrong: %v %v", resp.Columns, resp.Rows[0])
	}
}

func TestFindPerson_RoundsScores(t *testing.T) {
	h := setupRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/persons?name=JohnDoe&threshold=0.3", nil)
	var resp matchesResponse
	if rec := doJSON(t, h, req, &resp); rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	j := len(resp.Columns) - 1
	for _, r := range resp.Rows {
		s := r[j].(float64)
		if math.Abs(s*100-math.Round(s*100)) > 1e-9 {
			t.Errorf("score %v not rounded to 2 decimals", s)
		}
	}
}

func TestFindPerson_DefaultThreshold(t *testing.T) {
	f := setupFinder(t)
	tests := []struct {
		threshold float64
		want      int
	}{
		{0.95, 1},
		{0, 3},
	}
	for _, tt := range tests {
		h := NewRouter(f, Options{DefaultThreshold: tt.threshold})
		var resp matchesResponse
		rec := doJSON(t, h, httptest.NewRequest(http.MethodGet, "/v1/persons?name=JohnDoe", nil), &resp)
		if rec.Code != http.StatusOK {
			t.Fatalf("default %v: status = %d: %s", tt.threshold, rec.Code, rec.Body)
		}
		if resp.Count != tt.want {
			t.Errorf("default %v: count = %d, want %d", tt.threshold, resp.Count, tt.want)
		}
	}
}

func TestFindPerson_BadRequests(t *testing.T) {
	h := setupRouter(t)
	tests := []struct {
		query string
		want  int
	}{
		{"", http.StatusBadRequest},
		{"name=John&threshold=abc", http.StatusBadRequest},
		{"name=John&threshold=1.5", http.StatusBadRequest},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/v1/persons?"+tt.query, nil)
		var resp map[string]string
		rec := doJSON(t, h, req, &resp)
		if rec.Code != tt.want {
			t.Errorf("%q: status = %d, want %d", tt.query, rec.Code, tt.want)
		}
		if resp["error"] == "" {
			t.Errorf("%q: missing error message", tt.query)
		}
		if rec.Header().Get(RequestIDHeader) == "" {
			t.Errorf("%q: no generated request id", tt.query)
		}
	}
}

func TestFindPerson_MissingReference(t *testing.T) {
	f := finder.New(finder.Config{ReferencePath: filepath.Join(t.TempDir(), "gone.parquet")}, nil)
	h := NewRouter(f, Options{RoundScores: 2})
	req := httptest.NewRequest(http.MethodGet, "/v1/persons?name=John&threshold=0.5", nil)
	if rec := doJSON(t, h, req, nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestColumns(t *testing.T) {
	h := setupRouter(t)
	req := upload(t, "/v1/columns", "trial.csv", "prenom,nom,phone\nJohn,Doe,1\n", nil)
	var resp columnsResponse
	rec := doJSON(t, h, req, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if strings.Join(resp.Columns, ",") != "prenom,nom,phone" {
		t.Errorf("columns = %v", resp.Columns)
	}
	if resp.FirstNameColumn != "prenom" || resp.FamilyNameColumn != "nom" {
		t.Errorf("suggested columns = %q, %q", resp.FirstNameColumn, resp.FamilyNameColumn)
	}
}

func TestColumns_Errors(t *testing.T) {
	h := setupRouter(t)
	tests := []struct {
		name     string
		filename string
		content  string
		want     int
	}{
		{"single column", "one.csv", "name\nJohn\n", http.StatusUnprocessableEntity},
		{"unsupported", "people.json", "[]", http.StatusUnsupportedMediaType},
		{"no extension", "people", "a,b\n", http.StatusUnsupportedMediaType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, upload(t, "/v1/columns", tt.filename, tt.content, nil), nil)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/columns", strings.NewReader("x"))
	if rec := doJSON(t, h, req, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("non-multipart status = %d", rec.Code)
	}
}

func TestCompare(t *testing.T) {
	h := setupRouter(t)
	req := upload(t, "/v1/compare", "trial.csv", "prenom,nom\nJohn,Doe\nJane,Smyth\nXavier,Zzz\n", map[string]string{
		"first_name_column":  "prenom",
		"family_name_column": "nom",
		"threshold":          "0.85",
	})
	var resp matchesResponse
	rec := doJSON(t, h, req, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if resp.Count < 1 || resp.Count > 3*3 {
		t.Fatalf("count = %d", resp.Count)
	}
	cols := strings.Join(resp.Columns, ",")
	for _, want := range []string{finder.ColComparisonFirstName, finder.ColComparisonFamilyName, finder.ColJaroWinkler, finder.ColLevenshtein} {
		if !strings.Contains(cols, want) {
			t.Errorf("columns %s missing %s", cols, want)
		}
	}
}

func TestCompare_DefaultColumns(t *testing.T) {
	h := setupRouter(t)
	req := upload(t, "/v1/compare", "trial.csv", "prenom,nom\nJohn,Doe\n", map[string]string{"threshold": "0.9"})
	var resp matchesResponse
	rec := doJSON(t, h, req, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if resp.Count != 1 {
		t.Errorf("count = %d, want 1", resp.Count)
	}
}

func TestCompare_UnknownColumn(t *testing.T) {
	h := setupRouter(t)
	req := upload(t, "/v1/compare", "trial.csv", "prenom,nom\nJohn,Doe\n", map[string]string{
		"first_name_column":  "first",
		"family_name_column": "nom",
	})
	if rec := doJSON(t, h, req, nil); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	h := setupRouter(t)
	var resp healthResponse
	rec := doJSON(t, h, httptest.NewRequest(http.MethodGet, "/v1/health", nil), &resp)
	if rec.Code != http.StatusOK || resp.Status != "ok" {
		t.Fatalf("status = %d %+v", rec.Code, resp)
	}
	if resp.Reference != "people.csv" {
		t.Errorf("reference = %q", resp.Reference)
	}
	if !strings.Contains(strings.Join(resp.Formats, ","), ".parquet") {
		t.Errorf("formats = %v", resp.Formats)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := setupRouter(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/v1/persons", nil))
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %v", rec.Code, rec.Header())
	}
}

func callMCP(t *testing.T, srv *server.MCPServer, tool string, args map[string]any) string {
	t.Helper()
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": tool, "arguments": args},
	})
	if err != nil {
		t.Fatal(err)
	}
	resp := srv.HandleMessage(context.Background(), msg)
	out, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	return string(out)
}

func TestMCPTools(t *testing.T) {
	f := setupFinder(t)
	srv := server.NewMCPServer("namefinder-test", "0.0.0", server.WithToolCapabilities(false))
	RegisterMCPTools(srv, f, Options{RoundScores: 2})

	if out := callMCP(t, srv, "normalize_name", map[string]any{"name": "Hélène Dupré"}); !strings.Contains(out, "helene-dupre") {
		t.Errorf("normalize_name = %s", out)
	}
	if out := callMCP(t, srv, "find_person", map[string]any{"name": "JaneSmith", "threshold": 0.9}); !strings.Contains(out, "Smith") {
		t.Errorf("find_person = %s", out)
	}

	cmp := filepath.Join(t.TempDir(), "trial.csv")
	if err := refdata.WriteTrial(cmp, []refdata.Trial{{FirstName: "Adam", FamilyName: "Johnson"}}); err != nil {
		t.Fatal(err)
	}
	if out := callMCP(t, srv, "get_columns", map[string]any{"path": cmp}); !strings.Contains(out, "family_name") {
		t.Errorf("get_columns = %s", out)
	}
	if out := callMCP(t, srv, "compare_names", map[string]any{"path": cmp, "threshold": 0.9}); !strings.Contains(out, "adam-johnson") {
		t.Errorf("compare_names = %s", out)
	}
	if out := callMCP(t, srv, "get_columns", map[string]any{"path": filepath.Join(t.TempDir(), "x.csv")}); !strings.Contains(out, "file not found") {
		t.Errorf("get_columns on missing file = %s", out)
	}
}
