package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pixload/darkroom/internal/config"
	"github.com/pixload/darkroom/internal/convert"
	"github.com/pixload/darkroom/internal/metrics"
	"github.com/rs/zerolog"
)

// Version is reported by the health check.
const Version = "1.0.0"

type Server struct {
	config         *config.Config
	logger         zerolog.Logger
	convertHandler *convert.Handler
	metrics        *metrics.Metrics
	engineVersion  string
	requestTimeout time.Duration
}

// NewServer builds the HTTP surface. engineVersion is the first line of the
// engine's version banner; metrics may be nil.
func NewServer(
	cfg *config.Config,
	logger zerolog.Logger,
	convertHandler *convert.Handler,
	m *metrics.Metrics,
	engineVersion string,
) *Server {
	return &Server{
		config:         cfg,
		logger:         logger,
		convertHandler: convertHandler,
		metrics:        m,
		engineVersion:  engineVersion,
		requestTimeout: RequestTimeout(cfg),
	}
}

// RequestTimeout covers both fetches plus time for the engine and upload.
func RequestTimeout(cfg *config.Config) time.Duration {
	return cfg.SourceFetchTimeout + cfg.OverlayFetchTimeout + 90*time.Second
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.LoggingMiddleware)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition", "X-Storage-Key", "X-Storage-URL", "X-Upload-Error"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.HealthCheck)
	r.Get("/ping", s.HandlePing)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Post("/convert", s.convertHandler.HandleConvert)

	return r
}

// Middleware

func (s *Server) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("ip", r.RemoteAddr).
			Str("user_agent", r.UserAgent()).
			Msg("request")
	})
}

// Handlers

func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   Version,
	})
}

func (s *Server) HandlePing(w http.ResponseWriter, r *http.Request) {
	engine := s.config.ServiceName
	if s.engineVersion != "" {
		engine = fmt.Sprintf("%s (%s)", s.config.ServiceName, s.engineVersion)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":     true,
		"engine": engine,
	})
}
