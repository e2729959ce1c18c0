package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wellfront/scheduling-engine/internal/http/middleware"
	"github.com/wellfront/scheduling-engine/internal/httpx"
	"github.com/wellfront/scheduling-engine/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	SlotsHandler    *httpx.SlotsHandler
	BookingsHandler *httpx.BookingsHandler
	AdminHandler    *httpx.AdminHandler
	HealthHandler   *httpx.HealthHandler
	MetricsHandler  http.Handler

	// AdminAuthSecret signs admin JWTs; admin routes stay unregistered
	// without it.
	AdminAuthSecret    string
	CORSAllowedOrigins []string

	// Booking write rate limit per client IP. Zero disables limiting.
	RateLimitPerSec float64
	RateLimitBurst  int
}

// New creates a Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		if cfg.HealthHandler != nil {
			public.Get("/health", cfg.HealthHandler.Live)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}

		public.Route("/api", func(api chi.Router) {
			api.Route("/providers/{providerID}", func(provider chi.Router) {
				provider.Use(httpmiddleware.ProviderScope)
				provider.Get("/slots", cfg.SlotsHandler.GetSlots)
				provider.Get("/appointments", cfg.SlotsHandler.ListAppointments)
			})

			api.Route("/bookings", func(bookings chi.Router) {
				if cfg.RateLimitPerSec > 0 {
					bookings.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSec, cfg.RateLimitBurst))
				}
				bookings.Post("/", cfg.BookingsHandler.Create)
				bookings.Post("/{id}/cancel", cfg.BookingsHandler.Cancel)
			})
		})
	})

	// Admin routes (protected by HMAC JWT)
	if cfg.AdminAuthSecret != "" && cfg.AdminHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))

			admin.Route("/providers/{providerID}", func(provider chi.Router) {
				provider.Use(httpmiddleware.ProviderScope)
				provider.Get("/template", cfg.AdminHandler.GetTemplate)
				provider.Put("/template", cfg.AdminHandler.PutTemplate)
				provider.Post("/overrides", cfg.AdminHandler.AddOverride)
				provider.Delete("/overrides/{id}", cfg.AdminHandler.RemoveOverride)
				provider.Post("/blackouts", cfg.AdminHandler.AddBlackout)
				provider.Delete("/blackouts/{id}", cfg.AdminHandler.RemoveBlackout)
				provider.Get("/audit", cfg.AdminHandler.Audit)
			})

			admin.Post("/appointments/{id}/status", cfg.AdminHandler.UpdateAppointmentStatus)
			admin.Get("/dashboard/bookings", cfg.AdminHandler.Dashboard)
		})
	}

	return r
}
