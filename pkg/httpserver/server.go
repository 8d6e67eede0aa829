package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Config holds the HTTP server settings.
type Config struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Server wraps http.Server with signal-aware graceful shutdown.
type Server struct {
	cfg  Config
	log  *slog.Logger
	mu   sync.Mutex
	srv  *http.Server
	once sync.Once
}

// Option configures the Server.
type Option func(*Server)

// WithLogger supplies the logger used for lifecycle messages.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New returns a Server for the given config. Zero-valued timeouts are left
// to net/http's defaults.
func New(cfg Config, opts ...Option) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{cfg: cfg, log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run serves handler until the context is canceled or SIGINT/SIGTERM
// arrives, then shuts down gracefully. It blocks for the lifetime of the
// server and returns nil on a clean shutdown.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	if handler == nil {
		return errors.Join(ErrStart, errors.New("nil handler"))
	}

	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()
		return errors.Join(ErrStart, errors.New("server already running"))
	}
	s.srv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()
	s.log.InfoContext(ctx, "http server listening", slog.String("addr", s.cfg.Addr))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case <-ctx.Done():
		_ = s.Shutdown(context.Background())
		runErr = <-errCh
	case sig := <-stop:
		s.log.InfoContext(ctx, "shutdown signal received", slog.String("signal", sig.String()))
		_ = s.Shutdown(context.Background())
		runErr = <-errCh
	case runErr = <-errCh:
	}

	if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
		return errors.Join(ErrStart, runErr)
	}
	return nil
}

// Shutdown stops the server gracefully, bounded by the configured timeout.
// Safe for repeated calls.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		srv := s.srv
		s.mu.Unlock()
		if srv == nil {
			return
		}

		ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
		err = srv.Shutdown(ctx)
		s.log.InfoContext(ctx, "http server stopped")
	})

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Join(ErrShutdown, err)
	}
	return nil
}
