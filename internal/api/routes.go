package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

var defaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// Routes bundles everything the router serves. Nil members are skipped.
type Routes struct {
	Imports        *ImportHandlers
	Reference      *ReferenceHandlers
	Health         *HealthChecker
	Metrics        http.Handler
	AllowedOrigins []string
}

// SetupRoutes builds the router. Reference data is public to any caller;
// import routes need a workspace.
func SetupRoutes(rt Routes) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	origins := rt.AllowedOrigins
	if len(origins) == 0 {
		origins = defaultOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", WorkspaceHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if rt.Health != nil {
		r.Get("/health", rt.Health.HandleHealth)
		r.Get("/health/ready", rt.Health.HandleReadiness)
	}
	if rt.Metrics != nil {
		r.Handle("/metrics", rt.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		if rt.Reference != nil {
			rt.Reference.RegisterRoutes(r)
		}
		if rt.Imports != nil {
			r.Group(func(r chi.Router) {
				r.Use(RequireWorkspace)
				rt.Imports.RegisterRoutes(r)
			})
		}
	})

	return r
}
