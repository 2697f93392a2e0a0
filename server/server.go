package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/maildispatch/dispatch"
	"github.com/jonwraymond/maildispatch/email"
	"github.com/jonwraymond/maildispatch/health"
	"github.com/jonwraymond/maildispatch/observe"
	"github.com/jonwraymond/maildispatch/queue"
)

// DefaultSendPath is the route messages are posted to.
const DefaultSendPath = "/api/email/send"

// Submitter admits messages for delivery.
//
// *dispatch.Dispatcher satisfies it.
type Submitter interface {
	Submit(ctx context.Context, msg email.Message, opts ...dispatch.SubmitOption) (*queue.Future, error)
}

// Config configures a Server.
type Config struct {
	// Addr is the listen address.
	// Default: ":3001"
	Addr string

	// SendPath is the primary submission route. /send is always mounted too.
	// Default: DefaultSendPath
	SendPath string

	// ReadTimeout bounds reading a request.
	// Default: 10s
	ReadTimeout time.Duration

	// WriteTimeout bounds writing a response, including the wait for
	// delivery.
	// Default: 60s
	WriteTimeout time.Duration

	Ingress IngressConfig

	// Health, when set, mounts the health routes.
	Health *health.Aggregator

	// Metrics serves /metrics.
	// Default: promhttp.Handler()
	Metrics http.Handler

	// Logger receives one entry per request.
	// Default: observe.NopLogger()
	Logger observe.Logger
}

// Server is the HTTP front end of a dispatcher.
type Server struct {
	config    Config
	submitter Submitter
	validate  *validator.Validate
	ingress   *ingressLimiter
	router    *chi.Mux
	http      *http.Server
}

// New builds a Server in front of submitter.
func New(submitter Submitter, config Config) (*Server, error) {
	if submitter == nil {
		return nil, errors.New("server: nil submitter")
	}
	if config.Addr == "" {
		config.Addr = ":3001"
	}
	if config.SendPath == "" {
		config.SendPath = DefaultSendPath
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 10 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 60 * time.Second
	}
	if config.Metrics == nil {
		config.Metrics = promhttp.Handler()
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}

	s := &Server{
		config:    config,
		submitter: submitter,
		validate:  validator.New(),
	}
	if config.Ingress.Rate > 0 {
		s.ingress = newIngressLimiter(config.Ingress)
	}
	s.router = s.routes()
	s.http = &http.Server{
		Addr:              config.Addr,
		Handler:           s.router,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
	}
	return s, nil
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.config.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Email dispatch service is running"))
	})

	r.Group(func(r chi.Router) {
		if s.ingress != nil {
			r.Use(s.ingress.middleware)
		}
		r.Post(s.config.SendPath, s.handleSend)
		if s.config.SendPath != "/send" {
			r.Post("/send", s.handleSend)
		}
	})

	if s.config.Health != nil {
		health.RegisterHandlers(r, s.config.Health)
	}
	r.Handle("/metrics", s.config.Metrics)
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.config.Addr
}

// ListenAndServe serves until Shutdown. It returns nil after a graceful
// shutdown.
func (s *Server) ListenAndServe() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(l net.Listener) error {
	if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// ends.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.ingress != nil {
		defer s.ingress.stop()
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var msg email.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.validate.Struct(msg); err != nil {
		writeValidationError(w, err)
		return
	}

	var opts []dispatch.SubmitOption
	if raw := r.URL.Query().Get("priority"); raw != "" {
		priority, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "priority must be an integer")
			return
		}
		opts = append(opts, dispatch.WithPriority(priority))
	}

	future, err := s.submitter.Submit(r.Context(), msg, opts...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	result, err := future.Wait(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
