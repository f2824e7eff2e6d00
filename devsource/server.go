// Package devsource serves the form-data API from a local SQLite store so the
// bot can run end to end without the production site.
package devsource

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cancetinn/ldm-discord/db"
	"github.com/cancetinn/ldm-discord/model"
)

// Store is the part of db.Store the server uses.
type Store interface {
	ListSubmissions(ctx context.Context) ([]model.Submission, error)
	GetSubmission(ctx context.Context, id string) (model.Submission, error)
	UpdateSubmissionStatus(ctx context.Context, id string, status model.Status) error
}

type updateRequest struct {
	SubmissionID any    `json:"submissionId"`
	Status       string `json:"status"`
}

// Server implements the three source endpoints.
type Server struct {
	store      Store
	credential string
	logger     *slog.Logger
}

// NewServer creates a Server. A non-empty credential must be sent as a bearer token.
func NewServer(store Store, credential string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: store, credential: credential, logger: logger}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /form-data", s.list)
	mux.HandleFunc("GET /form-data/{id}", s.get)
	mux.HandleFunc("POST /update-form", s.update)
	return s.middleware(mux)
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)
		start := time.Now()

		if s.credential != "" && r.Header.Get("Authorization") != "Bearer "+s.credential {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			s.logger.Warn("rejected request", "request", requestID, "method", r.Method, "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
		s.logger.Debug("request served", "request", requestID, "method", r.Method, "path", r.URL.Path,
			"duration", time.Since(start))
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	subs, err := s.store.ListSubmissions(r.Context())
	if err != nil {
		s.logger.Error("list submissions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not list submissions")
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	sub, err := s.store.GetSubmission(r.Context(), r.PathValue("id"))
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "submission not found")
		return
	}
	if err != nil {
		s.logger.Error("get submission failed", "submission", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "could not load submission")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	id := submissionID(req.SubmissionID)
	status, err := model.ParseStatus(req.Status)
	if id == "" || err != nil || !status.Terminal() {
		writeError(w, http.StatusBadRequest, "submissionId and a status of approved or rejected are required")
		return
	}

	err = s.store.UpdateSubmissionStatus(r.Context(), id, status)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "submission not found")
		return
	}
	if err != nil {
		s.logger.Error("update submission failed", "submission", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not update submission")
		return
	}
	s.logger.Info("submission status updated", "submission", id, "status", status)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "submissionId": id, "status": status})
}

// submissionID accepts the id as either a JSON string or number.
func submissionID(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case json.Number:
		return id.String()
	}
	return ""
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("dev source listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
