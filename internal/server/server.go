// Package server exposes the analyses as a JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/KaramelBytes/seascope/internal/app"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 5 * time.Second

// Config configures a Server.
type Config struct {
	Addr string
	// Watch invalidates the dataset cache when the local data file changes.
	Watch bool
}

// Server is the HTTP front end of an App.
type Server struct {
	app    *app.App
	cfg    Config
	log    *zap.Logger
	router chi.Router
}

// New builds the router. Nothing listens until Serve.
func New(a *app.App, cfg Config) *Server {
	s := &Server{app: a, cfg: cfg, log: a.Log.Named("server")}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID, s.logRequests, middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	if s.app.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.app.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/summary", s.handleSummary)
		r.Get("/columns", s.handleColumns)
		r.Get("/describe", s.handleDescribe)
		r.Get("/correlate", s.handleCorrelate)
		r.Get("/watermass", s.handleWaterMass)
		r.Get("/outliers", s.handleOutliers)
		r.Get("/anomalies", s.handleAnomalies)
		r.Get("/temporal", s.handleTemporal)
		r.Get("/seasonal", s.handleSeasonal)
		r.Get("/trend", s.handleTrend)
		r.Get("/pca", s.handlePCA)
		r.Get("/cluster", s.handleCluster)
		r.Get("/campaigns", s.handleCampaigns)
		r.Get("/vessels", s.handleVessels)
		r.Get("/nutrients", s.handleNutrients)
		r.Get("/hypoxia", s.handleHypoxia)
		r.Get("/profile", s.handleProfile)
		r.Get("/report", s.handleReport)
		r.Post("/reload", s.handleReload)
	})
	return r
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	eg, egctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return egctx },
	}
	s.log.Info("serving", zap.String("addr", ln.Addr().String()), zap.String("data", s.app.Location()))

	if s.cfg.Watch {
		eg.Go(func() error { return s.watch(egctx) })
	}
	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

type ctxKey struct{}

// requestID tags every request with a uuid, honoring an incoming
// X-Request-Id.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), ctxKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		took := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if s.app.Metrics != nil {
			s.app.Metrics.ObserveRequest(r.Method, route, status, took)
		}
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("took", took),
			zap.String("request_id", requestIDFrom(r.Context())))
	})
}
