// Package server exposes the reasoner-std translator over HTTP
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ncats/chp/internal/apperr"
	"ncats/chp/internal/config"
	"ncats/chp/internal/logger"
	"ncats/chp/internal/metrics"
	"ncats/chp/internal/reasoner"
	"ncats/chp/internal/translator"
)

// maxBodyBytes bounds a reasoner-std request body
const maxBodyBytes = 4 << 20

// Options configures a Server
type Options struct {
	HTTP       config.ServerConfig
	Vocabulary translator.Vocabulary
	Reasoner   reasoner.Options
}

// Server answers reasoner-std messages against one reasoner
type Server struct {
	r      *reasoner.Reasoner
	opts   Options
	router *chi.Mux
}

// New builds the router for r
func New(r *reasoner.Reasoner, opts Options) *Server {
	if opts.HTTP.SourceARA == "" {
		opts.HTTP.SourceARA = translator.DefaultSourceARA
	}
	s := &Server{r: r, opts: opts, router: chi.NewRouter()}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(countRequests)

	s.router.Post("/query", s.handleQuery)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.HTTP.Addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.HTTP.ReadTimeout,
		WriteTimeout: s.opts.HTTP.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("serving reasoner-std", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	msg, err := translator.DecodeMessage(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, err)
		return
	}

	source := r.URL.Query().Get("source_ara")
	if source == "" {
		source = s.opts.HTTP.SourceARA
	}
	h := translator.NewHandler(s.r, msg, translator.Options{
		SourceARA:  source,
		Vocabulary: s.opts.Vocabulary,
		Reasoner:   s.opts.Reasoner,
	})
	out, err := h.Run(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	g := s.r.Graph()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"components": g.NumComponents(),
		"inodes":     g.NumINodes(),
		"snodes":     g.NumSNodes(),
	})
}

type errorBody struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	code := apperr.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case apperr.CodeInputValidation:
		status = http.StatusBadRequest
	case apperr.CodeConsistency:
		status = http.StatusConflict
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		logger.Error("query failed", "error", err)
	}
	writeJSON(w, status, errorBody{ErrorCode: code, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("writing response", "error", err)
	}
}

// countRequests records chp_http_requests_total by route pattern and status
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}
