// CLAUDE:SUMMARY HTTP routes for normalize, find person, columns and compare, with upload spooling and error mapping.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/namefinder/pkg/engine"
	"github.com/hazyhaar/namefinder/pkg/finder"
	"github.com/hazyhaar/namefinder/pkg/kit"
	"github.com/hazyhaar/namefinder/pkg/source"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// NewRouter returns an http.Handler with all name finder API routes.
func NewRouter(f *finder.Finder, opts Options) http.Handler {
	opts = opts.withDefaults()
	mux := http.NewServeMux()
	h := &handler{
		eps:    newEndpoints(f, opts),
		finder: f,
		opts:   opts,
	}

	mux.HandleFunc("POST /v1/normalize", h.handleNormalize)
	mux.HandleFunc("GET /v1/persons", h.handleFindPerson)
	mux.HandleFunc("POST /v1/columns", h.handleColumns)
	mux.HandleFunc("POST /v1/compare", h.handleCompare)
	mux.HandleFunc("GET /v1/health", h.handleHealth)

	return cors(requestID(opts.Logger, mux))
}

type handler struct {
	eps    endpoints
	finder *finder.Finder
	opts   Options
}

// --- normalize ---

func (h *handler) handleNormalize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	h.serve(w, r, h.eps.normalize, &normalizeReq{Name: req.Name})
}

// --- find person ---

func (h *handler) handleFindPerson(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing name")
		return
	}
	threshold, err := h.threshold(r.URL.Query().Get("threshold"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.serve(w, r, h.eps.findPerson, &findPersonReq{Name: name, Threshold: threshold})
}

// --- columns ---

func (h *handler) handleColumns(w http.ResponseWriter, r *http.Request) {
	path, cleanup, ok := h.spool(w, r)
	if !ok {
		return
	}
	defer cleanup()
	h.serve(w, r, h.eps.columns, &columnsReq{Path: path})
}

// --- compare ---

func (h *handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	path, cleanup, ok := h.spool(w, r)
	if !ok {
		return
	}
	defer cleanup()
	threshold, err := h.threshold(r.FormValue("threshold"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.serve(w, r, h.eps.compare, &compareReq{
		Path:             path,
		FirstNameColumn:  r.FormValue("first_name_column"),
		FamilyNameColumn: r.FormValue("family_name_column"),
		Threshold:        threshold,
	})
}

// --- health ---

type healthResponse struct {
	Status    string   `json:"status"`
	Reference string   `json:"reference"`
	Formats   []string `json:"formats"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	var exts []string
	for _, f := range source.All() {
		exts = append(exts, f.Ext)
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Reference: filepath.Base(h.finder.ReferencePath()),
		Formats:   exts,
	})
}

// --- helpers ---

func (h *handler) serve(w http.ResponseWriter, r *http.Request, ep kit.Endpoint, req any) {
	resp, err := ep(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) threshold(v string) (float64, error) {
	if v == "" {
		return h.opts.DefaultThreshold, nil
	}
	t, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid threshold %q", v)
	}
	return t, nil
}

// spool copies the multipart "file" field to a temp file that keeps the
// uploaded extension, so format dispatch sees the client's file type.
func (h *handler) spool(w http.ResponseWriter, r *http.Request) (string, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return "", nil, false
	}
	form := r.MultipartForm
	file, header, err := r.FormFile("file")
	if err != nil {
		form.RemoveAll()
		writeError(w, http.StatusBadRequest, "missing file")
		return "", nil, false
	}
	defer file.Close()

	tmp, err := os.CreateTemp(h.opts.UploadDir, "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		form.RemoveAll()
		writeError(w, http.StatusInternalServerError, "spool upload: "+err.Error())
		return "", nil, false
	}
	cleanup := func() {
		os.Remove(tmp.Name())
		form.RemoveAll()
	}
	_, err = io.Copy(tmp, file)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return "", nil, false
	}
	return tmp.Name(), cleanup, true
}

// statusFor maps errors to HTTP statuses. Input problems are 4xx; template
// and engine failures are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, finder.ErrInvalidThreshold):
		return http.StatusBadRequest
	case errors.Is(err, source.ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, source.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, source.ErrSchema), errors.Is(err, source.ErrDataRead), errors.Is(err, engine.ErrDataSource):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// requestID tags each request with an id taken from X-Request-ID or freshly
// generated, echoes it back and logs the request.
func requestID(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := kit.WithRequestID(kit.WithTransport(r.Context(), kit.TransportHTTP), id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"request_id", id,
			"duration", time.Since(start),
		)
	})
}

// cors is a simple CORS middleware for browser-based clients.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
