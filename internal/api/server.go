// Package api exposes the signature, outlier, solver and drift engines over
// HTTP. Request bodies carry raw file bytes; the name query parameter gives
// the file name whose extension hints the format.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/schemaproof/internal/detect"
	"github.com/sells-group/schemaproof/internal/drift"
	"github.com/sells-group/schemaproof/internal/fetcher"
	"github.com/sells-group/schemaproof/internal/model"
	"github.com/sells-group/schemaproof/internal/outlier"
	"github.com/sells-group/schemaproof/internal/signature"
	"github.com/sells-group/schemaproof/internal/solver"
)

// DefaultMaxBodyBytes bounds one uploaded file.
const DefaultMaxBodyBytes = 256 << 20

// Options configures the server.
type Options struct {
	Signature    signature.Options
	Outlier      outlier.Options
	Batch        solver.BatchOptions
	CORSOrigins  []string
	MaxBodyBytes int64
}

// Server holds the engines shared by every request.
type Server struct {
	det      *detect.Detector
	computer *signature.Computer
	drift    *drift.Detector
	opts     Options
}

// New returns a Server. A nil det uses the default tables; a nil driftDet
// disables the drift routes.
func New(det *detect.Detector, driftDet *drift.Detector, opts Options) *Server {
	if det == nil {
		det = detect.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Server{det: det, computer: signature.NewComputer(det), drift: driftDet, opts: opts}
}

// Router returns the HTTP handler with middleware applied.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/signature", s.handleSignature)
		r.Post("/outliers", s.handleOutliers)
		r.Post("/solve", s.handleSolve)
		r.Post("/drift/{source}", s.handleDrift)
		r.Get("/drift/{source}/history", s.handleHistory)
	})
	return r
}

func (s *Server) corsOrigins() []string {
	if len(s.opts.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return s.opts.CORSOrigins
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("component", "api"),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// signatureOptions applies per-request query overrides.
func (s *Server) signatureOptions(r *http.Request) (signature.Options, error) {
	opts := s.opts.Signature
	q := r.URL.Query()
	switch f := model.DateFormat(q.Get("date_format")); f {
	case "":
	case model.DateFormatUS, model.DateFormatEU:
		opts.DateFormatHint = f
	default:
		return opts, eris.Errorf("date_format must be us or eu, got %q", f)
	}
	if enc := q.Get("encoding"); enc != "" {
		opts.EncodingOverride = enc
	}
	if h := q.Get("headers"); h != "" {
		opts.HeaderOverrides = strings.Split(h, ",")
	}
	return opts, nil
}

// readSource buffers the request body into a seekable source.
func (s *Server) readSource(w http.ResponseWriter, r *http.Request) (*fetcher.Source, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE",
				fmt.Sprintf("body exceeds %d bytes", s.opts.MaxBodyBytes))
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "BAD_BODY", err.Error())
		return nil, false
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload"
	}
	return fetcher.BytesSource(name, body), true
}

func (s *Server) compute(w http.ResponseWriter, r *http.Request) (*fetcher.Source, *signature.Result, bool) {
	opts, err := s.signatureOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_OPTION", err.Error())
		return nil, nil, false
	}
	src, ok := s.readSource(w, r)
	if !ok {
		return nil, nil, false
	}
	res, err := s.computer.Compute(r.Context(), src, opts)
	if err != nil {
		writeEngineError(w, err)
		return nil, nil, false
	}
	return src, res, true
}

func (s *Server) handleSignature(w http.ResponseWriter, r *http.Request) {
	_, res, ok := s.compute(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type outliersResponse struct {
	Signature model.Signature `json:"signature"`
	*outlier.Result
}

func (s *Server) handleOutliers(w http.ResponseWriter, r *http.Request) {
	src, res, ok := s.compute(w, r)
	if !ok {
		return
	}
	if res.Signature.Components.Format == model.FormatBinary {
		writeError(w, http.StatusUnprocessableEntity, "BINARY", "binary input has no cells to check")
		return
	}
	opts := s.opts.Outlier
	if strict := r.URL.Query().Get("strict_nulls"); strict == "true" || strict == "1" {
		opts.StrictNulls = true
	}
	out, err := outlier.NewScanner(s.det, opts).Scan(r.Context(), src, &res.Signature)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out.Warnings.Merge(res.Warnings)
	writeJSON(w, http.StatusOK, outliersResponse{Signature: res.Signature, Result: out})
}

func (s *Server) handleDrift(w http.ResponseWriter, r *http.Request) {
	if s.drift == nil {
		writeError(w, http.StatusNotImplemented, "NO_STORE", "drift store not configured")
		return
	}
	_, res, ok := s.compute(w, r)
	if !ok {
		return
	}
	out, err := s.drift.Detect(r.Context(), chi.URLParam(r, "source"), &res.Signature)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.drift == nil {
		writeError(w, http.StatusNotImplemented, "NO_STORE", "drift store not configured")
		return
	}
	recs, err := s.drift.History(r.Context(), chi.URLParam(r, "source"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs})
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Code: code, Message: msg})
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, signature.ErrFileEmpty):
		writeError(w, http.StatusUnprocessableEntity, "FILE_EMPTY", err.Error())
	case eris.Is(err, signature.ErrTooManyColumns):
		writeError(w, http.StatusUnprocessableEntity, "TOO_MANY_COLUMNS", err.Error())
	case eris.Is(err, signature.ErrUnreadable):
		writeError(w, http.StatusUnprocessableEntity, "UNREADABLE", err.Error())
	default:
		zap.L().Error("request failed", zap.String("component", "api"), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
