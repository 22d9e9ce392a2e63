package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"hpackcodec/internal/cache"
	"hpackcodec/internal/config"
	"hpackcodec/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// Server exposes HPACK codec sessions over a JSON API and, optionally, a
// cleartext HTTP/2 listener that echoes decoded request headers.
type Server struct {
	cfg    *config.Config
	logger logging.Logger
	router chi.Router

	sessions *cache.Cache[*Session]
}

func New(cfg *config.Config, logger logging.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		sessions: cache.New[*Session](cfg.Server.SessionTTL, logger),
	}
	s.router = s.routes()
	return s
}

func (s *Server) Log(level logging.LogLevel, message string, args ...interface{}) {
	s.logger.Log(level, message, args...)
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.NotFound(s.notFoundHandler)
	r.MethodNotAllowed(s.methodNotAllowedHandler)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Post("/encode", s.encode)
			r.Post("/decode", s.decode)
			r.Get("/table", s.table)
			r.Delete("/", s.deleteSession)
		})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Log(logging.LogLevelDebug, "%s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.Log(logging.LogLevelWarn, "Not Found: %s %s", r.Method, r.URL.Path)
	writeError(w, http.StatusNotFound, "not found")
}

func (s *Server) methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	s.Log(logging.LogLevelWarn, "Method Not Allowed: %s %s", r.Method, r.URL.Path)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Server.Port))
	if err != nil {
		s.Log(logging.LogLevelError, "Failed to listen on port %d: %v", s.cfg.Server.Port, err)
		return err
	}

	var h2c net.Listener
	if s.cfg.Server.H2CPort != 0 {
		h2c, err = net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Server.H2CPort))
		if err != nil {
			_ = ln.Close()
			s.Log(logging.LogLevelError, "Failed to listen on port %d: %v", s.cfg.Server.H2CPort, err)
			return err
		}
	}

	return s.Serve(ctx, ln, h2c)
}

// Serve runs the API on ln and, if h2c is not nil, the HTTP/2 echo listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, h2c net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	go s.sessions.Run(ctx)

	errs := make(chan error, 2)
	h2cDone := make(chan struct{})
	go func() {
		s.Log(logging.LogLevelInfo, "Listening on http://%s", ln.Addr().String())
		errs <- httpServer.Serve(ln)
	}()
	if h2c != nil {
		go func() {
			defer close(h2cDone)
			errs <- s.ServeH2C(ctx, h2c)
		}()
	} else {
		close(h2cDone)
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-errs:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		s.Log(logging.LogLevelError, "Failed to shut down: %v", serr)
	}
	stop()
	<-h2cDone

	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
