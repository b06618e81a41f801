package routes

import (
	"net/http"

	"github.com/zatekoja/propertysearch/backend/internal/api/handlers"
	"github.com/zatekoja/propertysearch/backend/internal/api/middleware"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	searchHandler  *handlers.SearchHandler
	imageHandler   *handlers.ImageHandler
	historyHandler *handlers.HistoryHandler

	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	searchHandler *handlers.SearchHandler,
	imageHandler *handlers.ImageHandler,
	historyHandler *handlers.HistoryHandler,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		searchHandler:  searchHandler,
		imageHandler:   imageHandler,
		historyHandler: historyHandler,
		allowedOrigins: allowedOrigins,
		metrics:        metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", handlers.Health)

	r.mux.HandleFunc("POST /api/search", r.searchHandler.Search)
	r.mux.HandleFunc("GET /api/image", r.imageHandler.GetImage)
	r.mux.HandleFunc("POST /api/history", r.historyHandler.QueryHistory)

	// Apply middleware in reverse order (last middleware wraps first).
	// Logging sits outside observability so spans see the request id.
	var handler http.Handler = r.mux
	handler = middleware.Compression(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.LoggingMiddleware(handler)

	// CORS wraps everything so preflights never reach the mux
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
