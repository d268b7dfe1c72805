// Package web serves the live editor over HTTP. Every websocket connection is
// one editing surface with its own edit session and copy notice.
package web

import (
	"context"
	_ "embed"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcncl/gotyper-live/internal/errors"
	"github.com/mcncl/gotyper-live/internal/gateway"
	"github.com/mcncl/gotyper-live/internal/logging"
	"github.com/mcncl/gotyper-live/internal/metrics"
	"github.com/mcncl/gotyper-live/internal/notice"
	"github.com/mcncl/gotyper-live/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

//go:embed index.html
var indexHTML []byte

// Options configures the web surface
type Options struct {
	Converter      gateway.Converter
	Debounce       time.Duration
	NoticeDelay    time.Duration
	AllowedOrigins []string
	Logger         *zap.SugaredLogger
	Metrics        *metrics.Metrics
	// Gatherer backs /metrics; nil disables the endpoint
	Gatherer prometheus.Gatherer
}

// Server holds the shared dependencies of all connected surfaces
type Server struct {
	opts     Options
	logger   *zap.SugaredLogger
	upgrader websocket.Upgrader
	ctx      context.Context
}

// NewHandler builds the router. Connections are closed when ctx is done.
func NewHandler(ctx context.Context, opts Options) http.Handler {
	if opts.Debounce <= 0 {
		opts.Debounce = session.DefaultDebounce
	}
	if opts.NoticeDelay <= 0 {
		opts.NoticeDelay = notice.DefaultDelay
	}

	s := &Server{
		opts:   opts,
		logger: logging.OrNop(opts.Logger),
		ctx:    ctx,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ws", s.handleWebSocket)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		s.logger.Warnw("WebSocket upgrade failed", "error", err, "origin", r.Header.Get("Origin"))
		return
	}

	c := newClient(s, conn, uuid.NewString())
	s.logger.Infow("Editing surface connected", "client_id", c.id, "remote", r.RemoteAddr)

	go c.writePump()
	go c.readPump()
}

// checkOrigin allows requests without an Origin header and those whose
// origin starts with one of the allowed prefixes
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debugw("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// ListenAndServe runs handler on addr until ctx is done, then shuts down
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger *zap.SugaredLogger) error {
	logger = logging.OrNop(logger)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("Listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrapf(err, "listening on %s", addr)
	case <-ctx.Done():
		logger.Infow("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
