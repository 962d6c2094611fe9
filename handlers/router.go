package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"poimap-server/middleware"
	"poimap-server/models"
	"poimap-server/services"
	"poimap-server/store"
	"poimap-server/utils/errors"
)

var ErrMethodNotAllowed = errors.NewAPIError("METHOD_NOT_ALLOWED", "Method not allowed", http.StatusMethodNotAllowed)

// RouterConfig carries everything the HTTP layer needs.
type RouterConfig struct {
	Store      store.Store
	Auth       *services.AuthService
	Users      *services.UserService
	Points     *services.PointService
	Categories *services.CategoryService
	Admin      *services.AdminService
	// Events may be nil when Redis is not configured.
	Events         EventSource
	Registry       *prometheus.Registry
	AllowedOrigins []string
	Logger         *zap.Logger
}

func NewRouter(cfg RouterConfig) *mux.Router {
	authHandler := NewAuthHandler(cfg.Auth, cfg.Users)
	poiHandler := NewPOIHandler(cfg.Points)
	categoryHandler := NewCategoryHandler(cfg.Categories)
	mapHandler := NewMapHandler(cfg.Points)
	adminHandler := NewAdminHandler(cfg.Admin, cfg.Users, cfg.Events, cfg.Logger)
	healthHandler := NewHealthHandler(cfg.Store, cfg.Logger)

	r := mux.NewRouter()
	r.Use(middleware.ErrorMiddleware())
	r.Use(middleware.LoggingMiddleware(cfg.Logger))
	if cfg.Registry != nil {
		r.Use(middleware.NewMetrics(cfg.Registry).Middleware())
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})).Methods("GET")
	}
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.HandleFunc("/healthz", healthHandler.Health).Methods("GET")

	// Everything below resolves the caller from the optional bearer token
	api := r.NewRoute().Subrouter()
	api.Use(middleware.AuthMiddleware(cfg.Auth))

	// Auth routes
	authRouter := api.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/register", authHandler.RegisterUser).Methods("POST", "OPTIONS")
	authRouter.HandleFunc("/login", authHandler.LoginUser).Methods("POST", "OPTIONS")
	authRouter.HandleFunc("/logout", authHandler.LogoutUser).Methods("POST", "OPTIONS")
	authRouter.HandleFunc("/me", authHandler.Me).Methods("GET", "OPTIONS")

	// POI routes
	poiRouter := api.PathPrefix("/pois").Subrouter()
	poiRouter.HandleFunc("", poiHandler.ListPOIs).Methods("GET", "OPTIONS")
	poiRouter.HandleFunc("", poiHandler.CreatePOI).Methods("POST", "OPTIONS")
	poiRouter.HandleFunc("/nearby", poiHandler.GetNearbyPOIs).Methods("GET", "OPTIONS")
	poiRouter.HandleFunc("/{id}", poiHandler.GetPOI).Methods("GET", "OPTIONS")
	poiRouter.HandleFunc("/{id}", poiHandler.UpdatePOI).Methods("PUT", "OPTIONS")
	poiRouter.HandleFunc("/{id}", poiHandler.DeletePOI).Methods("DELETE", "OPTIONS")
	poiRouter.HandleFunc("/{id}/approve", poiHandler.ApprovePOI).Methods("POST", "OPTIONS")
	poiRouter.HandleFunc("/{id}/reject", poiHandler.RejectPOI).Methods("POST", "OPTIONS")
	poiRouter.HandleFunc("/{id}/hide", poiHandler.HidePOI).Methods("POST", "OPTIONS")
	poiRouter.HandleFunc("/{id}/unhide", poiHandler.UnhidePOI).Methods("POST", "OPTIONS")
	poiRouter.HandleFunc("/{id}/restore", poiHandler.RestorePOI).Methods("POST", "OPTIONS")
	poiRouter.HandleFunc("/{id}/purge", poiHandler.PurgePOI).Methods("DELETE", "OPTIONS")

	// Category routes
	categoryRouter := api.PathPrefix("/categories").Subrouter()
	categoryRouter.HandleFunc("", categoryHandler.ListCategories).Methods("GET", "OPTIONS")
	categoryRouter.HandleFunc("", categoryHandler.CreateCategory).Methods("POST", "OPTIONS")
	categoryRouter.HandleFunc("/{id}", categoryHandler.UpdateCategory).Methods("PUT", "OPTIONS")
	categoryRouter.HandleFunc("/{id}", categoryHandler.DeleteCategory).Methods("DELETE", "OPTIONS")

	api.HandleFunc("/map/layers", mapHandler.GetLayers).Methods("GET", "OPTIONS")

	// Admin routes
	adminRouter := api.PathPrefix("/admin").Subrouter()
	adminRouter.Use(middleware.RequireRole(models.RoleAdmin))
	adminRouter.HandleFunc("/stats", adminHandler.GetStats).Methods("GET", "OPTIONS")
	adminRouter.HandleFunc("/pending", adminHandler.GetPending).Methods("GET", "OPTIONS")
	adminRouter.HandleFunc("/users", adminHandler.ListUsers).Methods("GET", "OPTIONS")
	adminRouter.HandleFunc("/users/{id}/role", adminHandler.SetUserRole).Methods("PUT", "OPTIONS")
	adminRouter.HandleFunc("/export", adminHandler.Export).Methods("GET", "OPTIONS")
	adminRouter.HandleFunc("/import", adminHandler.Import).Methods("POST", "OPTIONS")
	adminRouter.HandleFunc("/events", adminHandler.StreamEvents).Methods("GET", "OPTIONS")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, errors.ErrNotFound.WithDetails("no route for "+r.URL.Path))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, ErrMethodNotAllowed)
	})
	return r
}
