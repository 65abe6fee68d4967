package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/sitehealth/internal/domain"
	apimw "github.com/hamed0406/sitehealth/internal/httpapi/middleware"
	"github.com/hamed0406/sitehealth/internal/probe"
)

// Monitor is the probing engine as seen by the API.
type Monitor interface {
	MonitorURL(ctx context.Context, target string) (domain.SiteMonitorResult, error)
	MonitorURLs(ctx context.Context, targets []string) ([]domain.SiteMonitorResult, error)
}

type Server struct {
	Logger   *zap.Logger
	Monitor  Monitor
	MaxBatch int
}

func NewServer(l *zap.Logger, m Monitor, maxBatch int) *Server {
	if maxBatch <= 0 {
		maxBatch = 500
	}
	return &Server{Logger: l, Monitor: m, MaxBatch: maxBatch}
}

// Router wires the API. An empty origins list allows every origin.
func (s *Server) Router(origins []string, rpm, burst int) http.Handler {
	r := chi.NewRouter()
	if len(origins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
	}
	r.Use(apimw.AccessLog(s.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(rpm, burst))
		r.Get("/api/check", s.handleCheckOne)
		r.Post("/api/check", s.handleCheckBatch)
	})

	return r
}

func (s *Server) handleCheckOne(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	res, err := s.Monitor.MonitorURL(r.Context(), target)
	if err != nil {
		s.writeProbeError(w, err)
		return
	}
	s.Logger.Info("target_checked",
		zap.String("target", probe.NormalizeTarget(target)),
		zap.Bool("up", res.IsUp),
		zap.Int("status", res.GetCheck.StatusCode),
	)
	writeJSON(w, http.StatusOK, res)
}

type batchPayload struct {
	URLs []string `json:"urls"`
}

func (s *Server) handleCheckBatch(w http.ResponseWriter, r *http.Request) {
	var p batchPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || len(p.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if len(p.URLs) > s.MaxBatch {
		writeError(w, http.StatusRequestEntityTooLarge, "too many urls")
		return
	}

	batchID := uuid.NewString()
	start := time.Now()
	results, err := s.Monitor.MonitorURLs(r.Context(), p.URLs)
	if err != nil {
		s.writeProbeError(w, err)
		return
	}

	s.Logger.Info("batch_checked",
		zap.String("batch_id", batchID),
		zap.Int("urls", len(p.URLs)),
		zap.Duration("elapsed", time.Since(start)),
	)

	w.Header().Set("X-Batch-ID", batchID)
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) writeProbeError(w http.ResponseWriter, err error) {
	if errors.Is(err, probe.ErrInvalidURL) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.Logger.Error("check_failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "check failed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
