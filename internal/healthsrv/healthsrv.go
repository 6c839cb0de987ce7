// Package healthsrv implements shoald's thin liveness/readiness/metrics HTTP
// surface. shoald does not itself terminate the S3 wire protocol (out of
// scope -- a front end is built against internal/sal instead), so this is
// the server's entire externally visible HTTP API.
package healthsrv

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthBody is the JSON body returned by the liveness and readiness checks.
type HealthBody struct {
	Status string `json:"status" example:"ok" doc:"health status"`
}

// HealthOutput is the Huma output struct wrapping HealthBody.
type HealthOutput struct {
	Body HealthBody
}

// Server is shoald's health/metrics HTTP server.
type Server struct {
	router     chi.Router
	api        huma.API
	ready      atomic.Bool
	httpServer *http.Server
}

// New builds a Server with /healthz, /readyz, and /metrics registered.
// Readiness starts false; call SetReady(true) once bootstrap (index/object
// backend construction, sal.New) has completed.
func New() *Server {
	router := chi.NewMux()

	humaConfig := huma.DefaultConfig("shoald", "1.0.0")
	humaConfig.DocsPath = "/docs"
	humaConfig.OpenAPIPath = "/openapi"
	api := humachi.New(router, humaConfig)

	s := &Server{router: router, api: api}
	s.registerRoutes()
	return s
}

// SetReady flips the /readyz result. The GC queue and cluster transport, if
// enabled, should be up before the caller sets this true.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-healthz",
		Method:      http.MethodGet,
		Path:        "/healthz",
		Summary:     "Liveness check",
		Tags:        []string{"System"},
	}, func(ctx context.Context, input *struct{}) (*HealthOutput, error) {
		return &HealthOutput{Body: HealthBody{Status: "ok"}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-readyz",
		Method:      http.MethodGet,
		Path:        "/readyz",
		Summary:     "Readiness check",
		Tags:        []string{"System"},
	}, func(ctx context.Context, input *struct{}) (*HealthOutput, error) {
		if !s.ready.Load() {
			return nil, huma.NewError(http.StatusServiceUnavailable, "not ready")
		}
		return &HealthOutput{Body: HealthBody{Status: "ok"}}, nil
	})

	s.router.Handle("/metrics", promhttp.Handler())
}

// ListenAndServe starts the HTTP server on addr. The returned http.Server is
// stored so it can be shut down gracefully.
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server, waiting for in-flight
// requests to complete within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
