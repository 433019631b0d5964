package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/netcfgd/netcfgd/internal/middleware/logger"
	ratelimiter "github.com/netcfgd/netcfgd/internal/middleware/rate_limiter"
	"github.com/netcfgd/netcfgd/pkg/handlers"
	"github.com/netcfgd/netcfgd/pkg/snapshot"
)

type (
	// RegisterFunc function that is invoked by handlers to register their
	// endpoints
	RegisterFunc = func(pattern string, handlerFunc http.HandlerFunc)

	// HandlerConfigurer must be implemented by handlers that want to
	// register their handler in the server
	HandlerConfigurer interface {
		ConfigureHandler(register RegisterFunc)
	}

	// Server that will be initialized in ListenUntilContextCancelled
	Server struct {
		// configurers inject their handlers into the Server's mux
		configurers []HandlerConfigurer
		// server contains the HTTP server that will listen to requests
		server      *http.Server
		mux         *http.ServeMux
		requestRate rate.Limit
	}
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxTerminationWait    = defaultRequestTimeout + 5*time.Second
)

func newBaseServer(addr string, requestRate int) *Server {
	mux := http.NewServeMux()
	return &Server{
		mux: mux,
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  defaultRequestTimeout,
			WriteTimeout: defaultRequestTimeout,
		},
		requestRate: rate.Limit(requestRate),
	}
}

// NewStatusServer serves the cache snapshot, the probes and /metrics
func NewStatusServer(addr string, source snapshot.Source, prober handlers.Prober, requestRate int) *Server {
	srv := newBaseServer(addr, requestRate)
	srv.configurers = []HandlerConfigurer{
		handlers.NewSnapshotHandler(source),
		handlers.NewProbeHandler(prober),
	}
	srv.mux.Handle("/metrics", promhttp.Handler())
	return srv
}

// ListenUntilContextCancelled serves until ctx ends, then shuts down
// gracefully. It returns early if the listener cannot be opened.
func (p *Server) ListenUntilContextCancelled(ctx context.Context) error {
	log := logger.FromContext(ctx)
	p.configureHandler()

	// Run the server in a goroutine
	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Starting status server on %s...", p.server.Addr)
		if err := p.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		log.Debug("Server has stopped listening")
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("unable to start server: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")

	// Create a context with a timeout for the graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), maxTerminationWait)
	defer cancel()

	// Shutdown the server and wait for existing connections to be closed
	if err := p.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	log.Info("Server gracefully stopped")
	return nil
}

type interceptor = func(http.HandlerFunc) http.HandlerFunc

func (p *Server) configureHandler() {
	for _, configurer := range p.configurers {
		configurer.ConfigureHandler(func(pattern string, handler http.HandlerFunc) {
			rateLimiter := ratelimiter.NewRateLimiter(p.requestRate)

			// order here matters
			interceptors := []interceptor{
				// add logger so it can be used downstream
				logger.InjectLogger,
				// add rate limit to requests
				func(h http.HandlerFunc) http.HandlerFunc { return ratelimiter.RateLimitMiddleware(rateLimiter, h) },
			}

			for _, intercept := range interceptors {
				handler = intercept(handler)
			}

			// add the handler to the server mux
			p.mux.Handle(pattern, handler)
		})
	}
}

func (p *Server) Addr() string {
	return p.server.Addr
}
