package httpapi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/infrastructure/config"
	"github.com/dannymikay/agrimatch-go/internal/infrastructure/metrics"
)

// Registrar mounts a handler's routes on a router
type Registrar interface {
	Register(r *mux.Router)
}

// PublicRegistrar is implemented by handlers that additionally expose
// unauthenticated read routes.
type PublicRegistrar interface {
	RegisterPublic(r *mux.Router)
}

// Server owns the HTTP listener and the route tree. REST routes live under
// /api/v1; websocket upgrades stay top-level. Health, metrics, Stripe
// webhooks and marketplace reads skip auth; everything else sits behind the
// bearer token middleware.
type Server struct {
	httpServer      *http.Server
	logger          *zap.Logger
	shutdownTimeout time.Duration
}

// NewServer assembles the router and wraps it in an http.Server
func NewServer(
	cfg *config.ServerConfig,
	logger *zap.Logger,
	m *metrics.Metrics,
	auth *Authenticator,
	public []Registrar,
	protected []Registrar,
	sockets []Registrar,
) *Server {
	root := mux.NewRouter()
	root.Use(requestLogger(logger), instrument(m))

	root.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	root.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	apiPublic := root.PathPrefix("/api/v1").Subrouter()
	for _, h := range public {
		h.Register(apiPublic)
	}

	api := root.PathPrefix("/api/v1").Subrouter()
	api.Use(auth.Middleware)
	for _, h := range protected {
		h.Register(api)
		if p, ok := h.(PublicRegistrar); ok {
			p.RegisterPublic(apiPublic)
		}
	}

	ws := root.NewRoute().Subrouter()
	ws.Use(auth.Middleware)
	for _, h := range sockets {
		h.Register(ws)
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      root,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger:          logger,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Start blocks serving requests until the listener closes
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// statusRecorder captures the response code for instrumentation. It forwards
// Hijack so websocket upgrades still work through the middleware chain.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// requestLogger stamps a request-scoped logger onto the context
func requestLogger(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := logger.With(
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			ctx := common.WithLogger(r.Context(), reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// instrument records request counts and latency per route template
func instrument(m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
			m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		})
	}
}
