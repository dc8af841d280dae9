package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/openbuilders/highload-sender/internal/health"
	"github.com/openbuilders/highload-sender/internal/types"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIHandler is a custom handler type that returns data or an error
type APIHandler func(w http.ResponseWriter, r *http.Request) (interface{}, error)

type Publisher interface {
	Publish(ctx context.Context, message []byte) error
}

type MessageReader interface {
	GetMessage(ctx context.Context, hash string) (*types.MessageRecord, error)
}

type HealthChecker interface {
	GetHealthStatus() health.HealthStatus
}

type Server struct {
	config     *Config
	publisher  Publisher
	messages   MessageReader
	health     HealthChecker
	sender     MessageSender
	httpServer *http.Server
	log        *slog.Logger
}

type Config struct {
	ListenAddr   string
	ListenPort   int
	MetricsPort  int
	ProbesPort   int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	DBTimeout    time.Duration
	ID           string
}

func NewServer(config *Config, publisher Publisher, messages MessageReader,
	checker HealthChecker, messageSender MessageSender) *Server {
	return &Server{
		config:    config,
		publisher: publisher,
		messages:  messages,
		health:    checker,
		sender:    messageSender,
		log:       slog.With("pod", config.ID, "component", "web-server"),
		httpServer: &http.Server{
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}
}

// Handler returns the public routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/send", WithMethod(
		WithJSONResponse(s.SendHandler),
		http.MethodPost,
	))

	mux.HandleFunc("/send/boc", WithMethod(
		WithJSONResponse(s.SendBOCHandler),
		http.MethodPost,
	))

	mux.HandleFunc("/message", WithMethod(
		WithJSONResponse(s.MessageHandler),
		http.MethodGet,
	))

	return http.TimeoutHandler(mux, s.config.WriteTimeout, "Timeout")
}

// ProbesHandler returns the liveness and readiness routes.
func (s *Server) ProbesHandler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", WithMethod(
		WithJSONResponse(s.HealthHandler),
		http.MethodGet,
	))

	mux.Handle("/ready", WithMethod(
		WithJSONResponse(s.ReadinessHandler),
		http.MethodGet,
	))

	return mux
}

func (s *Server) StartProbesAndMetrics(ctx context.Context) {
	metrics := http.NewServeMux()
	metrics.Handle("/metrics", promhttp.Handler())

	go s.serve(ctx, "metrics", s.config.MetricsPort, metrics)
	go s.serve(ctx, "health probes", s.config.ProbesPort, s.ProbesHandler())
}

// Start serves until ctx is done and then shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	s.StartProbesAndMetrics(ctx)

	s.httpServer.Handler = s.Handler()

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp",
		fmt.Sprintf("%s:%d", s.config.ListenAddr, s.config.ListenPort))
	if err != nil {
		return fmt.Errorf("error creating listener: %w", err)
	}

	errs := make(chan error, 1)
	go func() {
		s.log.Info("Starting server", "port", s.config.ListenPort)
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("could not start server: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("Server forced to shutdown", "error", err)
	}

	s.log.Info("Server exiting")

	return nil
}

func (s *Server) serve(ctx context.Context, name string, port int, handler http.Handler) {
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     handler,
		ReadTimeout: s.config.ReadTimeout,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	s.log.Info("Serving "+name, "port", port)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Error(name+" HTTP listener failed", "error", err)
	}
}
