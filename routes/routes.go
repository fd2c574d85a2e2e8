package routes

import (
	"net/http"

	"staff-portal/config"
	"staff-portal/handlers"
	"staff-portal/metrics"
	"staff-portal/middleware"
	"staff-portal/store"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Options carries the optional collaborators of the router. A nil Metrics
// disables /metrics; a nil RateLimiter leaves the auth routes unthrottled.
type Options struct {
	Logger      *zap.Logger
	Metrics     *metrics.Collector
	Gatherer    prometheus.Gatherer
	RateLimiter *middleware.RateLimiter
}

func SetupRoutes(cfg config.Config, accessor store.Accessor, opts Options) *mux.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	wrap := middleware.ErrorHandler(logger)

	authHandler := handlers.NewAuthHandler(cfg.Auth, accessor, logger)
	employeeHandler := handlers.NewEmployeeHandler(accessor)
	attendanceHandler := handlers.NewAttendanceHandler(accessor, cfg.Attendance.Location)
	recordHandler := handlers.NewRecordHandler(cfg.Collections, accessor)

	router := mux.NewRouter()
	router.Use(middleware.RequestLogger(logger))
	if opts.Metrics != nil {
		router.Use(opts.Metrics.Middleware)
		gatherer := opts.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		router.Handle("/metrics", metrics.Handler(gatherer)).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", handlers.HealthHandler).Methods(http.MethodGet)
	api.Handle("/save", wrap(recordHandler.SaveHandler)).Methods(http.MethodPost)
	api.Handle("/load/{collection}", wrap(recordHandler.LoadHandler)).Methods(http.MethodGet)
	api.Handle("/login", limited(opts.RateLimiter, wrap(authHandler.LoginHandler))).Methods(http.MethodPost)
	api.Handle("/register", limited(opts.RateLimiter, wrap(authHandler.RegisterHandler))).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.AuthMiddleware(cfg.Auth))

	protected.Handle("/employees", wrap(employeeHandler.ListHandler)).Methods(http.MethodGet)
	protected.Handle("/employees", wrap(employeeHandler.CreateHandler)).Methods(http.MethodPost)
	protected.Handle("/employees/{id}", wrap(employeeHandler.UpdateHandler)).Methods(http.MethodPut)
	protected.Handle("/employees/{id}", wrap(employeeHandler.DeleteHandler)).Methods(http.MethodDelete)
	protected.Handle("/attendance/login", wrap(attendanceHandler.LoginHandler)).Methods(http.MethodPost)
	protected.Handle("/attendance/{employeeId}", wrap(attendanceHandler.ListHandler)).Methods(http.MethodGet)

	return router
}

func limited(limiter *middleware.RateLimiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return limiter.Middleware(next)
}
