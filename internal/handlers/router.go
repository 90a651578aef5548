package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"cadventory/internal/middleware"
)

// RouterConfig selects the optional parts of the router.
type RouterConfig struct {
	MetricsEnabled bool
	Logging        middleware.LoggingConfig
	Compression    middleware.CompressionConfig
}

// DefaultRouterConfig enables metrics with the default middleware settings.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		MetricsEnabled: true,
		Logging:        middleware.DefaultLoggingConfig(),
		Compression:    middleware.DefaultCompressionConfig(),
	}
}

// NewRouter registers every endpoint of h.
func NewRouter(h *Handlers, cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")

	if cfg.MetricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
		r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	}

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/version", h.GetVersion).Methods("GET")
	api.HandleFunc("/library", h.GetLibrary).Methods("GET")
	api.HandleFunc("/library/reindex", h.Reindex).Methods("POST")
	api.HandleFunc("/files/{category}", h.GetFiles).Methods("GET")

	api.HandleFunc("/models", h.ListModels).Methods("GET")
	api.HandleFunc("/models/{id:-?[0-9]+}", h.GetModel).Methods("GET")
	api.HandleFunc("/models/{id:-?[0-9]+}", h.UpdateModel).Methods("PATCH")
	api.HandleFunc("/models/{id:-?[0-9]+}/thumbnail", h.GetThumbnail).Methods("GET")
	api.HandleFunc("/models/{id:-?[0-9]+}/objects", h.GetObjects).Methods("GET")
	api.HandleFunc("/models/{id:-?[0-9]+}/tags", h.GetModelTags).Methods("GET")
	api.HandleFunc("/models/{id:-?[0-9]+}/tags", h.AddModelTag).Methods("POST")
	api.HandleFunc("/models/{id:-?[0-9]+}/tags", h.SetModelTags).Methods("PUT")
	api.HandleFunc("/models/{id:-?[0-9]+}/tags/{tag}", h.RemoveModelTag).Methods("DELETE")

	api.HandleFunc("/tags", h.GetAllTags).Methods("GET")
	api.HandleFunc("/tags/{tag}/models", h.GetModelsByTag).Methods("GET")
	api.HandleFunc("/selection", h.UpdateSelection).Methods("POST")

	api.HandleFunc("/process", h.GetProcessStatus).Methods("GET")
	api.HandleFunc("/process", h.StartProcess).Methods("POST")
	api.HandleFunc("/process", h.StopProcess).Methods("DELETE")

	api.HandleFunc("/search", h.Search).Methods("GET")
	api.HandleFunc("/audit", h.RunAudit).Methods("POST")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, "Not found", http.StatusNotFound)
	})

	return r
}

// Wrap applies request logging, then compression, around r.
func Wrap(r http.Handler, cfg RouterConfig) http.Handler {
	loggedHandler := middleware.Logger(cfg.Logging)(r)
	return middleware.Compression(cfg.Compression)(loggedHandler)
}
