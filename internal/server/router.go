package server

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"

	"github.com/reelsync/reelsync/internal/metrics"
	"github.com/reelsync/reelsync/internal/server/handlers"
)

// Router is the HTTP mux plus the middleware chain applied around it.
type Router struct {
	server      *Server
	mux         *http.ServeMux
	middlewares []Middleware
}

// Middleware wraps an http.Handler with cross-cutting behavior.
type Middleware func(http.Handler) http.Handler

// NewRouter builds the route table and middleware chain for srv.
func NewRouter(srv *Server) *Router {
	r := &Router{
		server: srv,
		mux:    http.NewServeMux(),
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

func (r *Router) setupMiddleware() {
	r.Use(RecoveryMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(MetricsMiddleware)

	if r.server.cfg.Server.CORS.Enabled {
		r.Use(CORSMiddleware(r.server.cfg.Server.CORS))
	}
	if r.server.cfg.Server.MaxBodySize > 0 {
		r.Use(MaxBodySizeMiddleware(r.server.cfg.Server.MaxBodySize))
	}
	if r.server.auth.Enabled() {
		r.Use(AuthMiddleware(r.server.auth))
	}
}

// Use appends a middleware; the first registered runs outermost.
func (r *Router) Use(mw Middleware) {
	r.middlewares = append(r.middlewares, mw)
}

func (r *Router) setupRoutes() {
	health := handlers.NewHealthHandlers(r.server.db, r.server.version)
	r.mux.HandleFunc("GET /", health.Health)
	r.mux.HandleFunc("GET /health", health.Health)
	r.mux.Handle("GET /metrics", metrics.Handler())

	authHandlers := handlers.NewAuthHandlers(r.server.auth)
	r.mux.HandleFunc("POST /api/auth/login", authHandlers.Login)

	taskHandlers := handlers.NewTaskHandlers(r.server.tasks, r.server.entities, r.server.sched, r.server.status)
	r.mux.HandleFunc("GET /api/tasks", taskHandlers.List)
	r.mux.HandleFunc("POST /api/tasks", taskHandlers.Create)
	r.mux.HandleFunc("GET /api/tasks/{id}", taskHandlers.Get)
	r.mux.HandleFunc("PATCH /api/tasks/{id}", taskHandlers.Update)
	r.mux.HandleFunc("DELETE /api/tasks/{id}", taskHandlers.Delete)
	r.mux.HandleFunc("POST /api/tasks/{id}/run", taskHandlers.Run)

	resolveHandlers := handlers.NewResolveHandlers(r.server.tasks, r.server.resolver, r.server.sched)
	r.mux.HandleFunc("GET /api/tasks/{id}/candidates", resolveHandlers.Candidates)
	r.mux.HandleFunc("POST /api/tasks/relink", resolveHandlers.Relink)
	r.mux.HandleFunc("POST /api/tasks/clean-invalid", resolveHandlers.CleanInvalid)

	entityHandlers := handlers.NewEntityHandlers(r.server.entities)
	r.mux.HandleFunc("GET /api/entities", entityHandlers.List)
	r.mux.HandleFunc("GET /api/entities/{id}", entityHandlers.Get)
	r.mux.HandleFunc("PUT /api/entities/{id}", entityHandlers.Upsert)
	r.mux.HandleFunc("DELETE /api/entities/{id}", entityHandlers.Delete)

	statusHandlers := handlers.NewStatusHandlers(r.server.status)
	r.mux.HandleFunc("GET /api/status", statusHandlers.Get)
	r.mux.HandleFunc("GET /api/status/{id}", statusHandlers.GetTask)

	rt := handlers.NewRealtimeHandler(r.server.status)
	r.mux.HandleFunc("GET /api/realtime", rt.HandleWebSocket)
}

// ServeHTTP applies the middleware chain and dispatches to the mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	handler := http.Handler(r.mux)

	if r.server.cfg.Server.Gzip {
		handler = gzhttp.GzipHandler(handler)
	}

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}

	handler.ServeHTTP(w, req)
}
