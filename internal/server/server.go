// Package server exposes stored collections over a read-only HTTP API.
//
// Routes:
//
//	GET /healthz                   build information
//	GET /collections/{id}          the collection tree, {"ome": {...}}
//	GET /collections/{id}/records  the flat records of the collection
//
// Errors are JSON objects {"error": {"code": ..., "message": ...}}. An
// unknown collection, or one without readable records, answers 404.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/matzehuels/omecollection/pkg/buildinfo"
	"github.com/matzehuels/omecollection/pkg/collection"
	cerrors "github.com/matzehuels/omecollection/pkg/errors"
	ocio "github.com/matzehuels/omecollection/pkg/io"
	"github.com/matzehuels/omecollection/pkg/observability"
	"github.com/matzehuels/omecollection/pkg/store"
)

// RequestIDHeader carries the request id on requests and responses.
const RequestIDHeader = "X-Request-ID"

// shutdownTimeout bounds the graceful shutdown of [Server.ListenAndServe].
const shutdownTimeout = 10 * time.Second

type ctxKey struct{}

// RequestID returns the id assigned to the request carrying ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Server serves collections read through a [store.Transfer].
type Server struct {
	Transfer *store.Transfer
	Logger   *log.Logger
}

// New returns a server over tr. A nil logger uses log.Default().
func New(tr *store.Transfer, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{Transfer: tr, Logger: logger}
}

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Route("/collections/{id}", func(r chi.Router) {
		r.Get("/", s.getCollection)
		r.Get("/records", s.getRecords)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.Logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestID keeps a caller-supplied request id or assigns a new one.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// instrument reports requests to the HTTP hooks and logs them.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hooks := observability.HTTP()
		start := time.Now()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		hooks.OnResponse(r.Context(), r.Method, r.URL.Path, status, elapsed)
		s.Logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", status,
			"duration", elapsed, "request_id", RequestID(r.Context()))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"build":  buildinfo.Get(),
	})
}

func (s *Server) getCollection(w http.ResponseWriter, r *http.Request) {
	tree, ok := s.download(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := ocio.WriteJSON(tree, w); err != nil {
		s.Logger.Error("write response", "err", err, "request_id", RequestID(r.Context()))
	}
}

func (s *Server) getRecords(w http.ResponseWriter, r *http.Request) {
	tree, ok := s.download(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := ocio.WriteRecords(collection.Flatten(tree), w); err != nil {
		s.Logger.Error("write response", "err", err, "request_id", RequestID(r.Context()))
	}
}

// download reads the collection named in the URL. On failure it writes the
// error response and returns false.
func (s *Server) download(w http.ResponseWriter, r *http.Request) (*collection.Wrapper, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, r, cerrors.New(cerrors.ErrCodeInvalidInput, "collection id must be a positive integer, got %q", raw))
		return nil, false
	}
	tree, err := s.Transfer.Download(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return tree, true
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case cerrors.IsLookupFailure(err):
		return http.StatusNotFound
	case cerrors.Is(err, cerrors.ErrCodeInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.Logger.Error("request failed", "path", r.URL.Path, "err", err, "request_id", RequestID(r.Context()))
	}

	var body errorBody
	body.Error.Code = string(cerrors.GetCode(err))
	if body.Error.Code == "" {
		body.Error.Code = string(cerrors.ErrCodeInternal)
	}
	body.Error.Message = cerrors.UserMessage(err)
	body.RequestID = RequestID(r.Context())
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
