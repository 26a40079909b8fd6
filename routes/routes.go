package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bfyxzls/webSecurity/app"
	"github.com/bfyxzls/webSecurity/handlers"
	"github.com/bfyxzls/webSecurity/middleware"
	"github.com/bfyxzls/webSecurity/utils"
)

// Route is an entry of the access policy table.
type Route struct {
	Path    string
	Policy  string
	Handler http.HandlerFunc
}

// PolicyTable lists the application endpoints and the access expression each
// one requires.
func PolicyTable(authHandler *handlers.AuthHandler) []Route {
	return []Route{
		{"/", "permitAll", handlers.Message("index")},
		{"/index", "permitAll", handlers.Message("index")},
		{"/hello", "authenticated", handlers.Message("hello")},
		{"/auth", "authenticated", authHandler.HandleCurrentPrincipal},
		{"/read", "hasAuthority('read')", handlers.Message("have a read authority")},
		{"/write", "hasAuthority('write')", handlers.Message("have a write authority")},
		{"/read-or-write", "hasAnyAuthority('read','write')", handlers.Message("have a read or write authority")},
		{"/admin-role", "hasRole('admin')", handlers.Message("have a admin role")},
		{"/user-role", "hasRole('USER')", handlers.Message("have a user role")},
		{"/admin/product", "authenticated", handlers.Message("admin.product")},
		{"/admin/user", "authenticated", handlers.Message("admin.user")},
	}
}

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) (http.Handler, error) {
	cfg := deps.Config
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	if cfg.Server.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
	}
	if deps.Metrics != nil {
		r.Use(middleware.HTTPMetrics(deps.Metrics))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	if deps.Metrics != nil {
		r.Handle(cfg.Observability.MetricsPath, deps.Metrics.Handler())
	}

	r.Get("/login", deps.AuthHandler.HandleLogin)
	r.Post("/login", deps.AuthHandler.HandleLogin)

	for _, route := range PolicyTable(deps.AuthHandler) {
		policy, err := middleware.ParsePolicy(route.Policy, cfg.Auth.RolePrefix)
		if err != nil {
			return nil, err
		}
		r.With(deps.AuthMiddleware.Enforce(policy)).Get(route.Path, route.Handler)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r, nil
}
