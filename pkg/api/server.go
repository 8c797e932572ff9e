package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/havocworlds/shuffle/go-offchain/pkg/config"
	"github.com/havocworlds/shuffle/go-offchain/pkg/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewServer(config *config.Config, svc *Service) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(ServiceMiddleware(svc))

	router.Get("/deployment", getDeployment)
	router.Get("/utxos/{addr}", listUtxos)
	router.Get("/utxos/{addr}/canonical", canonicalOrder)
	router.Get("/deploy-selection/{addr}", deploySelection)
	router.Get("/requests", listRequests)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return &Server{
		config: config,
		router: router,
		httpServer: http.Server{
			Addr:              config.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

type Server struct {
	config     *config.Config
	router     chi.Router
	httpServer http.Server
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe() error {
	log.Infow("Starting API Server",
		"listen_addr", s.httpServer.Addr,
		"network", s.config.Network,
	)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
