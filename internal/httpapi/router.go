package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"typstapi/internal/compiler"
	"typstapi/internal/httpapi/handlers"
	"typstapi/internal/httpkit"
	"typstapi/internal/pkg/logger"
	"typstapi/internal/pkg/middleware"
)

// CompilePath is the compile endpoint.
const CompilePath = "/api/typst/compile"

type Deps struct {
	Log      *logger.Logger
	Compiler compiler.Compiler
	Prober   handlers.VersionProber
	RDB      *redis.Client
	// Limiter throttles the compile endpoint; nil disables it.
	Limiter middleware.Limiter
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	MaxBodyBytes       int64
	CORSAllowedOrigins []string
	TrustProxy         bool
	Version            string
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.ClientIP(d.TrustProxy))
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))

	// ---- CORS (API reference + browser callers) ----
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins:   d.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAgeSeconds:    600,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	h := handlers.New(handlers.Deps{
		Compiler: d.Compiler,
		Prober:   d.Prober,
		RDB:      d.RDB,
		Log:      log,
		Version:  d.Version,
	})

	// ---- HEALTH ----
	r.Get("/health", h.Health)

	// ---- DOCS ----
	r.Get(handlers.OpenAPIPath, h.OpenAPI)
	r.Get("/scalar", h.Scalar)

	// ---- METRICS ----
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	// ---- COMPILE ----
	r.Group(func(r chi.Router) {
		if d.Limiter != nil {
			r.Use(middleware.RateLimit(d.Limiter, log))
		}
		r.Use(middleware.MaxBodyBytes(d.MaxBodyBytes))
		r.Post(CompilePath, middleware.WrapHandler(log, h.Compile))
	})

	return r
}
