package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig bundles the handlers and cross-cutting dependencies of the API.
type RouterConfig struct {
	Auth  *AuthHandler
	Sites *SiteHandler
	Teams *TeamHandler
	Users *UserHandler

	TokenParser     TokenParser
	Logger          *slog.Logger
	Metrics         RequestMetrics
	MetricsRegistry *prometheus.Registry
}

// NewRouter assembles the HTTP API. Registration, login, health and metrics
// are public; everything else requires a valid access token.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger(cfg.Logger))
	r.Use(InstrumentRequests(cfg.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Access-Token"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.MetricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	if cfg.Auth != nil {
		r.Post("/sessions", cfg.Auth.CreateSession)
	}
	if cfg.Users != nil {
		r.Post("/users", cfg.Users.Register)
	}

	r.Group(func(r chi.Router) {
		r.Use(RequireToken(cfg.TokenParser, cfg.Logger))

		if cfg.Sites != nil {
			r.Route("/sites", func(r chi.Router) {
				r.Get("/", cfg.Sites.List)
				r.Post("/", cfg.Sites.Create)
				r.Route("/{siteID}", func(r chi.Router) {
					r.Get("/", cfg.Sites.Get)
					r.Patch("/", cfg.Sites.Patch)
					r.Delete("/", cfg.Sites.Delete)
					r.Get("/appointments", cfg.Sites.ListAppointments)
					r.Post("/appointments", cfg.Sites.ProposeAppointment)
					r.Put("/appointments", cfg.Sites.ReviseAppointments)
					r.Delete("/appointments", cfg.Sites.CancelAppointment)
					r.Get("/utilization", cfg.Sites.Utilization)
				})
			})
		}

		if cfg.Teams != nil {
			r.Route("/teams", func(r chi.Router) {
				r.Get("/", cfg.Teams.List)
				r.Post("/", cfg.Teams.Create)
				r.Post("/join", cfg.Teams.Join)
				r.Get("/me", cfg.Teams.Me)
				r.Route("/{teamID}", func(r chi.Router) {
					r.Get("/", cfg.Teams.Get)
					r.Delete("/", cfg.Teams.Delete)
					r.Get("/appointments", cfg.Teams.Appointments)
				})
			})
		}

		// POST /users is the public registration endpoint above; the
		// remaining account routes stay behind the token check.
		if cfg.Users != nil {
			r.Get("/users", cfg.Users.List)
			r.Get("/users/{userID}", cfg.Users.Get)
			r.Put("/users/{userID}", cfg.Users.Update)
			r.Delete("/users/{userID}", cfg.Users.Delete)
		}
	})

	return r
}
