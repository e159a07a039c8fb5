// Package web serves the read-only ops surface: health and execution
// records. Credentials are redacted from every response.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/example/casualchat/internal/auth"
	"github.com/example/casualchat/internal/executions"
	"github.com/example/casualchat/internal/workflow"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var fs embed.FS

type Store interface {
	Get(ctx context.Context, id string) (workflow.Execution, error)
	List(ctx context.Context, f executions.Filter) ([]workflow.Execution, error)
}

type Server struct {
	Executions Store
	// Ping checks the database; nil means always healthy.
	Ping func(ctx context.Context) error
	// Guard protects everything but /healthz; nil leaves it open.
	Guard *auth.Guard
	Log   logrus.FieldLogger
}

type tmplData struct {
	Title      string
	Executions []workflow.Execution
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /executions", s.guard(s.handleList))
	mux.Handle("GET /executions/{id}", s.guard(s.handleGet))
	mux.Handle("GET /{$}", s.guard(s.handleHome))

	return s.logging(mux)
}

func (s *Server) guard(h http.HandlerFunc) http.Handler {
	if s.Guard == nil {
		return h
	}
	return s.Guard.Require(h)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Ping != nil {
		if err := s.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	list, err := s.Executions.List(r.Context(), executions.Filter{Limit: 50})
	if err != nil {
		s.fail(w, err)
		return
	}
	s.render(w, "templates/executions.html", tmplData{Title: "Executions", Executions: redact(list)})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := executions.Filter{
		AccountID: q.Get("account"),
		Status:    workflow.Status(q.Get("status")),
		Limit:     50,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			http.Error(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		f.Limit = n
	}

	list, err := s.Executions.List(r.Context(), f)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, redact(list))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	e, err := s.Executions.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, executions.ErrNotFound) {
		http.Error(w, "execution not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e.Redacted())
}

func redact(list []workflow.Execution) []workflow.Execution {
	out := make([]workflow.Execution, len(list))
	for i, e := range list {
		out[i] = e.Redacted()
	}
	return out
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.log().WithError(err).Error("ops request failed")
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) render(w http.ResponseWriter, name string, data tmplData) {
	t, err := template.ParseFS(fs,
		"templates/base.html",
		name,
	)
	if err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log().WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("http request")
	})
}

func (s *Server) log() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

// Start serves h on addr until ctx is cancelled.
func Start(ctx context.Context, addr string, h http.Handler, log logrus.FieldLogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
