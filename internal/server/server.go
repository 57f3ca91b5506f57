// Package server is the development HTTP server. It serves the destination tree,
// injects the live reload client into HTML pages and pushes reload events to
// connected browsers over server-sent events.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	Host string
	Port int
	// Dir is the directory served at /.
	Dir string
	// Hub enables live reload when non-nil.
	Hub *LiveReloadHub
	// Registry enables /metrics when non-nil.
	Registry *prom.Registry
	Logger   *slog.Logger
}

// Server serves the destination tree.
type Server struct {
	opts Options
	srv  *http.Server
	ln   net.Listener
}

// New creates a server; nothing is bound until Listen.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{opts: opts}
	// no write timeout: live reload streams are long-lived
	s.srv = &http.Server{
		Handler:           withMiddleware(opts.Logger, s.routes()),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       300 * time.Second,
	}
	return s
}

// Handler returns the full handler chain.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	static := http.Handler(noCache(http.FileServer(http.Dir(s.opts.Dir))))
	if s.opts.Hub != nil {
		static = injectLiveReload(static)
		mux.Handle("/livereload", s.opts.Hub)
		mux.HandleFunc("/livereload.js", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			_, _ = w.Write([]byte(ClientScript))
		})
	}
	if s.opts.Registry != nil {
		mux.Handle("/metrics", metrics.HTTPHandler(s.opts.Registry))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/", static)
	return mux
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		next.ServeHTTP(w, r)
	})
}

// Listen binds the configured address so a busy port fails before anything runs.
func (s *Server) Listen(ctx context.Context) error {
	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return ferrors.ServerError("failed to bind dev server").WithCause(err).WithContext("addr", addr).Build()
	}
	s.ln = ln
	return nil
}

// Close releases the listener. Serve closes it on its own during shutdown.
func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// URL returns the browsable base URL of the bound server.
func (s *Server) URL() string { return "http://" + s.Addr() + "/" }

// Serve handles requests until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(ctx); err != nil {
			return err
		}
	}
	log := logfields.Logger(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(s.ln) }()
	log.Info("Dev server listening", slog.String("url", s.URL()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return ferrors.ServerError("dev server stopped").WithCause(err).Build()
	case <-ctx.Done():
	}

	if s.opts.Hub != nil {
		s.opts.Hub.Shutdown()
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Dev server shutdown", logfields.Error(err))
	}
	<-errCh
	log.Info("Dev server stopped")
	return nil
}
