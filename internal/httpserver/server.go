package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/radiusdt/game-ads/internal/ads"
	"github.com/radiusdt/game-ads/internal/config"
	"github.com/radiusdt/game-ads/internal/metrics"
	"github.com/radiusdt/game-ads/internal/middleware"
	"github.com/radiusdt/game-ads/internal/storage"
	"go.uber.org/zap"
)

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	// Backend is nil when the configured store could not be opened; data
	// endpoints then answer 503.
	Backend storage.Backend
	Config  *config.Config
	Logger  *zap.Logger
	// Metrics is nil when metrics are disabled.
	Metrics *metrics.Metrics
}

// Server wraps HTTP handlers and ad services.
type Server struct {
	adService        *ads.AdService
	eventService     *ads.EventService
	reportingService *ads.ReportingService
	backend          storage.Backend
	pages            *pages
	logger           *zap.Logger
	config           *config.Config
	metrics          *metrics.Metrics
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	backend := storage.NewInstrumented(deps.Backend, deps.Metrics)

	// A nil Backend must stay a nil interface for the services.
	var (
		repo     storage.AdRepo
		counters storage.CounterStore
	)
	if backend != nil {
		repo = backend
		counters = backend
	}

	adSvc := ads.NewAdService(repo, ads.NewNormalizer(deps.Config.Ads), deps.Logger)
	s := &Server{
		adService:        adSvc,
		eventService:     ads.NewEventService(counters, deps.Metrics, deps.Logger),
		reportingService: ads.NewReportingService(adSvc, counters, deps.Metrics, deps.Logger),
		backend:          backend,
		pages:            mustParsePages(),
		logger:           deps.Logger,
		config:           deps.Config,
		metrics:          deps.Metrics,
	}

	r := chi.NewRouter()
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics).Handler)
	}

	// Health check
	r.Get("/health", s.handleHealth)

	// Prometheus metrics
	if deps.Config.Metrics.Enabled && deps.Metrics != nil {
		r.Method(http.MethodGet, deps.Config.Metrics.Path, deps.Metrics.Handler())
	}

	// JSON API
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewCORSMiddleware(deps.Config.CORS).Handler)

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			s.errorResponse(w, "not found", http.StatusNotFound)
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		})

		r.Get("/banners", s.handleListAds("banner"))
		r.Get("/fullscreen", s.handleListAds("fullscreen"))
		r.Post("/impression", s.handleEvent("impression"))
		r.Post("/click", s.handleEvent("click"))
		r.Get("/metrics", s.handleMetrics)

		// Older clients
		r.Post("/ads/impression", s.handleEvent("impression"))
		r.Post("/ads/click", s.handleEvent("click"))
		r.Get("/ads/{type}", s.handleLegacyListAds)
	})

	// Dashboard
	r.Get("/", s.handleDashboard)
	for _, slug := range []string{"banner", "fullscreen"} {
		r.Get("/add-"+slug, s.handleAddForm(slug))
		r.Post("/add-"+slug, s.handleAddSubmit(slug))
		r.Get("/edit-"+slug+"/{id}", s.handleEditForm(slug))
		r.Post("/edit-"+slug+"/{id}", s.handleEditSubmit(slug))
		r.Post("/delete-"+slug+"/{id}", s.handleDelete(slug))
	}

	return r
}

// ---- Health Check ----

type healthResponse struct {
	Status    string `json:"status"`
	Backend   string `json:"backend"`
	BackendOK bool   `json:"backend_ok"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		s.jsonStatus(w, http.StatusServiceUnavailable, healthResponse{
			Status:  "degraded",
			Backend: "none",
			Error:   ads.ErrBackendUnavailable.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.backend.Health(ctx); err != nil {
		s.logger.Warn("backend health check failed", zap.String("backend", s.backend.Name()), zap.Error(err))
		s.jsonStatus(w, http.StatusServiceUnavailable, healthResponse{
			Status:  "degraded",
			Backend: s.backend.Name(),
			Error:   "backend unreachable",
		})
		return
	}

	s.jsonResponse(w, healthResponse{
		Status:    "healthy",
		Backend:   s.backend.Name(),
		BackendOK: true,
	})
}

// ---- Helper Methods ----

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) jsonStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	s.jsonStatus(w, code, map[string]string{"error": message})
}

// serviceError maps service errors to a status and a caller-safe message.
func serviceError(err error) (int, string) {
	switch {
	case errors.Is(err, ads.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ads.ErrNotFound):
		return http.StatusNotFound, ads.ErrNotFound.Error()
	case errors.Is(err, ads.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, ads.ErrBackendUnavailable.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
